// Package contentid derives stable integer document IDs from text content.
package contentid

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
)

const mask63 = 0x7FFFFFFFFFFFFFFF

// Normalize returns the form of s that is hashed. Surrounding whitespace is not significant.
func Normalize(s string) string {
	return strings.TrimSpace(s)
}

// ForText returns a non-negative 63-bit ID for the given text.
// Same text always yields the same ID, across processes and restarts.
func ForText(s string) int64 {
	sum := md5.Sum([]byte(Normalize(s)))
	head := hex.EncodeToString(sum[:])[:16]
	n, err := strconv.ParseUint(head, 16, 64)
	if err != nil {
		// 16 hex chars always fit in a uint64.
		panic(err)
	}
	return int64(n & mask63)
}

// ForParts returns an ID for a composite natural key such as (file id, interval, case name).
// Parts are normalized individually and joined with a unit separator so that
// ("a", "bc") and ("ab", "c") do not collide.
func ForParts(parts ...string) int64 {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = Normalize(p)
	}
	return ForText(strings.Join(normalized, "\x1f"))
}
