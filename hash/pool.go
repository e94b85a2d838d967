package hash

import (
	"sync"

	"github.com/zeebo/blake3"
)

var pool = &sync.Pool{
	New: func() any {
		return blake3.New()
	},
}

// GetHasher returns a blake3 hasher from the shared pool.
// The hasher must be reset before it is handed back with PutHasher.
func GetHasher() *blake3.Hasher {
	return pool.Get().(*blake3.Hasher)
}

// PutHasher puts a reset hasher back into the pool.
func PutHasher(hasher *blake3.Hasher) {
	pool.Put(hasher)
}
