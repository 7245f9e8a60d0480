package pantry

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Short recipe IDs are human-friendly handles in the form R{base36}{check},
// e.g. "R3FX". The trailing character is a checksum so a typo is caught
// before it resolves to the wrong recipe.

const shortIDPrefix = "R"

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ShortID generates the short ID for a numeric database ID.
// Returns an empty string for non-positive IDs.
func ShortID(id int64) string {
	if id <= 0 {
		return ""
	}
	body := toBase36(id)
	return shortIDPrefix + body + shortIDChecksum(body)
}

// ParseShortID parses a short ID back to the numeric database ID.
// Parsing is case-insensitive. Returns false for malformed input or a
// checksum mismatch.
func ParseShortID(shortID string) (int64, bool) {
	shortID = strings.ToUpper(strings.TrimSpace(shortID))
	if !strings.HasPrefix(shortID, shortIDPrefix) || len(shortID) < 3 {
		return 0, false
	}

	body := shortID[1 : len(shortID)-1]
	check := shortID[len(shortID)-1:]
	if shortIDChecksum(body) != check {
		return 0, false
	}

	return fromBase36(body)
}

func toBase36(n int64) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append(digits, base36Alphabet[n%36])
		n /= 36
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

func fromBase36(s string) (int64, bool) {
	var result int64
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(base36Alphabet, s[i])
		if idx < 0 {
			return 0, false
		}
		result = result*36 + int64(idx)
	}
	return result, true
}

// shortIDChecksum is the first hex digit (uppercased) of the MD5 of the
// base36 body. Weak, but it only needs to catch typos.
func shortIDChecksum(body string) string {
	sum := md5.Sum([]byte(body))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:1])
}
