// Package utils holds small helpers shared by the HTTP and service layers.
package utils

import "strconv"

// Page size bounds for GET /todos?page=&page_size=.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault parses s as a base-10 int and falls back to def when s is
// empty or malformed. Surrounding spaces count as malformed.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// NormalizePage bounds a requested page: page is at least 1, and size lies
// in [1, MaxPageSize] with non-positive sizes replaced by DefaultPageSize.
func NormalizePage(page, size int) (int, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	return max(page, 1), min(size, MaxPageSize)
}

// ParsePage applies NormalizePage to raw query values.
func ParsePage(rawPage, rawSize string) (page, size int) {
	return NormalizePage(AtoiDefault(rawPage, 1), AtoiDefault(rawSize, DefaultPageSize))
}

// Offset is the number of rows before the first item of a 1-based page.
func Offset(page, size int) int {
	return (max(page, 1) - 1) * size
}

// TotalPages returns how many pages of pageSize hold total items. A
// non-positive pageSize yields 0.
func TotalPages(total int64, pageSize int) int64 {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}
