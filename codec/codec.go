// Package codec wraps SCALE encoding used for literal bodies, wire messages
// and database blobs.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/spacemeshos/go-scale"
)

// Encodable is implemented by every type that is put on the wire or into the database.
type Encodable = scale.Encodable

// Decodable is the decoding counterpart of Encodable.
type Decodable = scale.Decodable

// EncodeTo encodes value into the writer.
func EncodeTo(w io.Writer, value Encodable) (int, error) {
	n, err := value.EncodeScale(scale.NewEncoder(w))
	if err != nil {
		return n, fmt.Errorf("encode scale: %w", err)
	}
	return n, nil
}

// DecodeFrom decodes value from the reader.
func DecodeFrom(r io.Reader, value Decodable) (int, error) {
	n, err := value.DecodeScale(scale.NewDecoder(r))
	if err != nil {
		return n, fmt.Errorf("decode scale: %w", err)
	}
	return n, nil
}

var encoderPool = sync.Pool{
	New: func() any {
		b := new(bytes.Buffer)
		b.Grow(64)
		return b
	},
}

// Encode value into a freshly allocated byte slice.
func Encode(value Encodable) ([]byte, error) {
	b := encoderPool.Get().(*bytes.Buffer)
	defer func() {
		b.Reset()
		encoderPool.Put(b)
	}()
	if _, err := EncodeTo(b, value); err != nil {
		return nil, err
	}
	buf := make([]byte, b.Len())
	copy(buf, b.Bytes())
	return buf, nil
}

// MustEncode is Encode for values that can't fail encoding, such as
// types without limited fields.
func MustEncode(value Encodable) []byte {
	buf, err := Encode(value)
	if err != nil {
		panic(err)
	}
	return buf
}

// Decode value from buf. Trailing bytes are rejected.
func Decode(buf []byte, value Decodable) error {
	rd := bytes.NewReader(buf)
	if _, err := DecodeFrom(rd, value); err != nil {
		return err
	}
	if rd.Len() != 0 {
		return fmt.Errorf("decode scale: %d trailing bytes", rd.Len())
	}
	return nil
}

// EncodeSlice encodes a slice of structs with compact length prefix.
func EncodeSlice[V any, H scale.EncodablePtr[V]](value []V) ([]byte, error) {
	var b bytes.Buffer
	if _, err := scale.EncodeStructSlice[V, H](scale.NewEncoder(&b), value); err != nil {
		return nil, fmt.Errorf("encode struct slice: %w", err)
	}
	return b.Bytes(), nil
}

// DecodeSlice decodes a slice produced by EncodeSlice.
func DecodeSlice[V any, H scale.DecodablePtr[V]](buf []byte) ([]V, error) {
	v, _, err := scale.DecodeStructSlice[V, H](scale.NewDecoder(bytes.NewReader(buf)))
	if err != nil {
		return nil, fmt.Errorf("decode struct slice: %w", err)
	}
	return v, nil
}
