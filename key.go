package texbot

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeyLength is the length of a CacheKey's textual form.
const KeyLength = 16

// CacheKey is a short content fingerprint used for artifact file names and
// log correlation. It is not collision-resistant.
type CacheKey string

// String returns the key's textual form.
func (k CacheKey) String() string { return string(k) }

// DeriveKey fingerprints markup and mode. Identical inputs always produce the
// same key, across processes and restarts. Empty markup is a valid input.
func DeriveKey(markup string, mode Mode) CacheKey {
	d := xxhash.New()
	// Mode goes first so inline and displayed renders of the same text never
	// share artifacts.
	_, _ = d.Write([]byte{byte(mode), 0})
	_, _ = d.WriteString(markup)

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], d.Sum64())
	return CacheKey(hex.EncodeToString(sum[:]))
}

// ValidKey reports whether s has the shape of a derived key: 16 lowercase
// hex characters. Used to reject arbitrary file names from HTTP callers.
func ValidKey(s string) bool {
	if len(s) != KeyLength {
		return false
	}
	return strings.Trim(s, "0123456789abcdef") == ""
}
