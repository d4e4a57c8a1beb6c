// Package hash derives the stable identity digest for article links.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// DigestLen is the hex length of a link hash. It matches the CHAR(32)
// link_hash column consumed by the downstream storage stage.
const DigestLen = 32

// Linker implements pipeline.Hasher using truncated SHA-256 over the
// canonicalized link. The same link always yields the same digest.
type Linker struct{}

// New returns a link hasher.
func New() *Linker {
	return &Linker{}
}

// Hash canonicalizes the link and returns the first DigestLen hex
// characters of its SHA-256 digest.
func (Linker) Hash(link string) string {
	sum := sha256.Sum256([]byte(Canonicalize(link)))
	return hex.EncodeToString(sum[:])[:DigestLen]
}

// Canonicalize normalizes a link before hashing: the fragment is
// dropped, a missing scheme defaults to http, and an empty path becomes
// "/". Unparsable input is returned unchanged so it still hashes
// deterministically.
func Canonicalize(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parsed.Fragment = ""
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	return parsed.String()
}
