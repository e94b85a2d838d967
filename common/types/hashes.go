package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/spacemeshos/go-scale"

	"github.com/causalmesh/go-causalmesh/hash"
)

// Hash32Length is the length of every content hash in the module.
const Hash32Length = hash.Size

// Hash32 is a blake3 digest of arbitrary data.
type Hash32 [Hash32Length]byte

// EmptyHash32 is the zero hash. It is never the hash of a real object.
var EmptyHash32 = Hash32{}

// CalcHash32 returns blake3 digest of the data.
func CalcHash32(data ...[]byte) Hash32 {
	return hash.Sum(data...)
}

// BytesToHash copies b into a hash.
// If b is longer than the hash it is cropped from the left.
func BytesToHash(b []byte) Hash32 {
	var h Hash32
	if len(b) > len(h) {
		b = b[len(b)-Hash32Length:]
	}
	copy(h[Hash32Length-len(b):], b)
	return h
}

// HexToHash32 decodes a full-length hex string (with or without 0x prefix).
func HexToHash32(s string) (Hash32, error) {
	var h Hash32
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s) != 2*Hash32Length {
		return h, fmt.Errorf("hash length %d: expected %d hex characters", len(s), 2*Hash32Length)
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("decode hash %q: %w", s, err)
	}
	return h, nil
}

// Bytes returns the byte representation of the hash.
func (h Hash32) Bytes() []byte { return h[:] }

// Hex returns 0x-prefixed hex encoding of the hash.
func (h Hash32) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash32) String() string {
	return h.Hex()
}

// ShortString returns the first 10 hex characters of the hash, for logging purposes.
func (h Hash32) ShortString() string {
	return hex.EncodeToString(h[:5])
}

// Empty is true for the zero hash.
func (h Hash32) Empty() bool {
	return h == EmptyHash32
}

// Compare hashes lexicographically.
func (h Hash32) Compare(other Hash32) int {
	return bytes.Compare(h[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash32) UnmarshalText(input []byte) error {
	decoded, err := HexToHash32(string(input))
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// EncodeScale implements scale codec interface.
func (h *Hash32) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, h[:])
}

// DecodeScale implements scale codec interface.
func (h *Hash32) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, h[:])
}

// SortHashes sorts the slice in place in lexicographic order.
func SortHashes(hashes []Hash32) {
	slices.SortFunc(hashes, func(a, b Hash32) int { return a.Compare(b) })
}

// HashesToStrings is a helper for logging slices of hashes.
func HashesToStrings(hashes []Hash32) []string {
	rst := make([]string, 0, len(hashes))
	for _, h := range hashes {
		rst = append(rst, h.ShortString())
	}
	return rst
}
