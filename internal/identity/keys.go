package identity

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// DefaultCertsURL publishes the provider's current token-signing certificates
// as a JSON object of kid -> PEM certificate.
const DefaultCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

// ErrUnknownKey is returned when no public key matches a token's kid.
var ErrUnknownKey = errors.New("unknown signing key")

// KeySource resolves a key id to an RSA public key.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// StaticKeySource is a fixed kid -> key map.
type StaticKeySource map[string]*rsa.PublicKey

// Key implements KeySource.
func (s StaticKeySource) Key(_ context.Context, kid string) (*rsa.PublicKey, error) {
	if k, ok := s[kid]; ok {
		return k, nil
	}
	return nil, ErrUnknownKey
}

// X509KeySource downloads the certificate map from URL and keeps it until
// the Cache-Control max-age of the response runs out.
type X509KeySource struct {
	URL    string
	Client *http.Client
	Now    func() time.Time

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

// NewX509KeySource returns a key source for url (DefaultCertsURL when empty).
func NewX509KeySource(url string) *X509KeySource {
	if url == "" {
		url = DefaultCertsURL
	}
	return &X509KeySource{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
		Now:    time.Now,
	}
}

// Key implements KeySource. The certificate map is refreshed at most once
// per max-age window; concurrent callers wait for the refresh.
func (s *X509KeySource) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys == nil || !s.now().Before(s.expires) {
		if err := s.refresh(ctx); err != nil {
			return nil, err
		}
	}
	k, ok := s.keys[kid]
	if !ok {
		return nil, ErrUnknownKey
	}
	return k, nil
}

func (s *X509KeySource) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// refresh must be called with s.mu held.
func (s *X509KeySource) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch signing certs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch signing certs: unexpected status %d", resp.StatusCode)
	}

	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("decode signing certs: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(raw))
	for kid, certPEM := range raw {
		k, err := parseCertKey(certPEM)
		if err != nil {
			return fmt.Errorf("parse cert %q: %w", kid, err)
		}
		keys[kid] = k
	}

	s.keys = keys
	s.expires = s.now().Add(maxAge(resp.Header.Get("Cache-Control")))
	return nil
}

func parseCertKey(certPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	k, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate key is not RSA")
	}
	return k, nil
}

var maxAgeRE = regexp.MustCompile(`(?i)max-age=(\d+)`)

// maxAge extracts max-age from a Cache-Control header, defaulting to 1h.
func maxAge(cacheControl string) time.Duration {
	m := maxAgeRE.FindStringSubmatch(cacheControl)
	if m == nil {
		return time.Hour
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return time.Hour
	}
	return time.Duration(n) * time.Second
}
