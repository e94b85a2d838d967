package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func TestSumMatchesBlake3(t *testing.T) {
	require.Equal(t, blake3.Sum256([]byte("abcdef")), Sum([]byte("abc"), []byte("def")))
	// pooled hasher must be reset between uses
	require.Equal(t, blake3.Sum256([]byte("abcdef")), Sum([]byte("abcdef")))
}

func TestKeyedSum(t *testing.T) {
	key := make([]byte, Size)
	first, err := KeyedSum(key, []byte("object"))
	require.NoError(t, err)
	key[0] = 1
	second, err := KeyedSum(key, []byte("object"))
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.NotEqual(t, Sum([]byte("object")), first)

	_, err = KeyedSum(key[:10], []byte("object"))
	require.Error(t, err)
}
