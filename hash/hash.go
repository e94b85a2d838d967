package hash

import (
	"fmt"

	"github.com/zeebo/blake3"
)

// Size of the blake3 digest used across the module.
const Size = 32

// Sum returns blake3 digest of the concatenated chunks.
func Sum(chunks ...[]byte) (rst [Size]byte) {
	hh := GetHasher()
	defer func() {
		hh.Reset()
		PutHasher(hh)
	}()
	for _, chunk := range chunks {
		hh.Write(chunk)
	}
	hh.Sum(rst[:0])
	return rst
}

// KeyedSum returns blake3 digest of the chunks in keyed mode.
// Key must be exactly Size bytes long.
func KeyedSum(key []byte, chunks ...[]byte) (rst [Size]byte, err error) {
	hh, err := blake3.NewKeyed(key)
	if err != nil {
		return rst, fmt.Errorf("keyed hasher: %w", err)
	}
	for _, chunk := range chunks {
		hh.Write(chunk)
	}
	hh.Sum(rst[:0])
	return rst, nil
}
