package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssuerPrefix is prepended to the project id to form the expected "iss".
const IssuerPrefix = "https://securetoken.google.com/"

// maxSubjectLen mirrors the provider's documented uid limit.
const maxSubjectLen = 128

// idTokenClaims is the subset of ID token claims the API relies on.
type idTokenClaims struct {
	Email    string `json:"email,omitempty"`
	AuthTime int64  `json:"auth_time,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates provider ID tokens.
//
// RS256 tokens are checked against the key named by their "kid" header.
// When HS256Secret is set, HS256 tokens signed with it are also accepted,
// which is meant for local development only.
type JWTVerifier struct {
	ProjectID   string
	Keys        KeySource
	HS256Secret []byte

	// Leeway tolerates clock skew on exp/iat/auth_time. Defaults to 30s.
	Leeway time.Duration
	// Now is the verification clock. Defaults to time.Now.
	Now func() time.Time
}

// NewJWTVerifier returns a verifier for projectID backed by keys.
func NewJWTVerifier(projectID string, keys KeySource) *JWTVerifier {
	return &JWTVerifier{
		ProjectID: projectID,
		Keys:      keys,
		Leeway:    30 * time.Second,
		Now:       time.Now,
	}
}

func (v *JWTVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Verify parses and validates token. Failures caused by the token wrap
// ErrInvalidToken; key source errors are returned without it.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	methods := []string{jwt.SigningMethodRS256.Alg()}
	if len(v.HS256Secret) > 0 {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithIssuer(IssuerPrefix+v.ProjectID),
		jwt.WithAudience(v.ProjectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.Leeway),
		jwt.WithTimeFunc(v.now),
	)

	var (
		claims idTokenClaims
		keyErr error // key source trouble, not the token's fault
	)
	_, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() == jwt.SigningMethodHS256.Alg() {
			return v.HS256Secret, nil
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		if v.Keys == nil {
			keyErr = errors.New("no key source configured")
			return nil, keyErr
		}
		k, err := v.Keys.Key(ctx, kid)
		if err != nil && !errors.Is(err, ErrUnknownKey) {
			keyErr = err
		}
		return k, err
	})
	if keyErr != nil {
		return Identity{}, fmt.Errorf("signing keys: %w", keyErr)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub := claims.Subject
	if sub == "" || len(sub) > maxSubjectLen {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if claims.AuthTime > 0 && time.Unix(claims.AuthTime, 0).After(v.now().Add(v.Leeway)) {
		return Identity{}, fmt.Errorf("%w: auth_time in the future", ErrInvalidToken)
	}

	id := Identity{UserID: sub, Email: claims.Email}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}
