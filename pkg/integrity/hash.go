// Package integrity computes the content address pinned for every locked server.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// CanonicalString builds "{id}@{version}|{endpoint}|{scopes sorted, comma-joined}".
// The scopes slice is not modified.
func CanonicalString(id, version, endpoint string, scopes []string) string {
	sorted := make([]string, len(scopes))
	copy(sorted, scopes)
	sort.Strings(sorted)
	return id + "@" + version + "|" + endpoint + "|" + strings.Join(sorted, ",")
}

// Hash returns the lowercase hex SHA-256 of the canonical string. Tuples that
// differ only in scope order hash identically.
func Hash(id, version, endpoint string, scopes []string) string {
	sum := sha256.Sum256([]byte(CanonicalString(id, version, endpoint, scopes)))
	return hex.EncodeToString(sum[:])
}

// Valid reports whether h has the shape of a Hash result.
func Valid(h string) bool {
	if len(h) != sha256.Size*2 {
		return false
	}
	for _, c := range h {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
