package rig

import (
	"github.com/twmb/murmur3"
	"golang.org/x/text/unicode/norm"
)

// HashString returns the 64-bit identifier of a name. Names are NFC
// normalized first so that equivalent Unicode spellings share an id.
// The empty string hashes to 0.
func HashString(s string) uint64 {
	if s == "" {
		return 0
	}
	return murmur3.Sum64(norm.NFC.Bytes([]byte(s)))
}
