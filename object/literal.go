// Package object implements the content-addressed object model synchronized
// between peers: literals, operations over mutable objects and the private
// context used to reconstruct operations from streamed literals.
package object

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/hash"
)

const (
	maxClassLength = 64
	maxValueSize   = 1 << 16
	maxDeps        = 1024
)

var (
	// ErrHashMismatch is returned when the literal content doesn't match its hash.
	ErrHashMismatch = errors.New("literal hash mismatch")
	// ErrUnexpectedClass is returned when a literal is decoded as a wrong object type.
	ErrUnexpectedClass = errors.New("unexpected literal class")
	// ErrMissingDependency is returned when a literal dependency can't be resolved.
	ErrMissingDependency = errors.New("missing dependency")
)

//go:generate scalegen -types Dependency

// DependencyKind describes how a literal relates to one of its dependencies.
type DependencyKind uint8

const (
	// KindTarget is the mutable object an operation applies to.
	KindTarget DependencyKind = iota + 1
	// KindPrev is a direct causal predecessor of an operation.
	KindPrev
	// KindEmbedded is an object that must be available to reconstruct the literal.
	KindEmbedded
	// KindReference is an operation referenced by id, e.g. an add removed by a delete.
	KindReference
)

func (k DependencyKind) String() string {
	switch k {
	case KindTarget:
		return "target"
	case KindPrev:
		return "prev"
	case KindEmbedded:
		return "embedded"
	case KindReference:
		return "reference"
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// Resolvable dependencies are shipped together with the literal or proven to be
// held by the receiver. Prev and reference dependencies are ordered by causal history.
func (k DependencyKind) Resolvable() bool {
	return k == KindTarget || k == KindEmbedded
}

// Dependency is a typed edge from a literal to another object.
type Dependency struct {
	Hash types.Hash32
	Kind DependencyKind
}

// Literal is the serialized form of an object. Hash is the blake3 digest
// of the encoded class, value and dependencies.
type Literal struct {
	Hash  types.Hash32
	Class string
	Value []byte
	Deps  []Dependency
}

// NewLiteral builds a literal and computes its hash.
func NewLiteral(class string, value []byte, deps []Dependency) *Literal {
	lit := &Literal{Class: class, Value: value, Deps: deps}
	lit.Hash = lit.ComputeHash()
	return lit
}

func (l *Literal) encodeBody(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeStringWithLimit(enc, l.Class, maxClassLength)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, l.Value, maxValueSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, l.Deps, maxDeps)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Body returns encoding of the hashed part of the literal.
func (l *Literal) Body() []byte {
	var buf bytes.Buffer
	if _, err := l.encodeBody(scale.NewEncoder(&buf)); err != nil {
		// only possible if limits are exceeded, which makes the literal invalid anyway
		return nil
	}
	return buf.Bytes()
}

// ComputeHash returns the hash of the literal content.
func (l *Literal) ComputeHash() types.Hash32 {
	return types.CalcHash32(l.Body())
}

// Validate checks that the literal hash matches its content.
func (l *Literal) Validate() error {
	body := l.Body()
	if body == nil {
		return fmt.Errorf("%w: %s exceeds encoding limits", ErrHashMismatch, l.Hash.ShortString())
	}
	if computed := types.CalcHash32(body); computed != l.Hash {
		return fmt.Errorf("%w: declared %s computed %s", ErrHashMismatch, l.Hash.ShortString(), computed.ShortString())
	}
	return nil
}

// HasDependency reports whether h is a recorded dependency of the literal.
func (l *Literal) HasDependency(h types.Hash32) bool {
	for _, dep := range l.Deps {
		if dep.Hash == h {
			return true
		}
	}
	return false
}

// EncodeScale implements scale codec interface.
func (l *Literal) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeByteArray(enc, l.Hash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	n, err := l.encodeBody(enc)
	return total + n, err
}

// DecodeScale implements scale codec interface.
func (l *Literal) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		n, err := scale.DecodeByteArray(dec, l.Hash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeStringWithLimit(dec, maxClassLength)
		if err != nil {
			return total, err
		}
		total += n
		l.Class = field
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, maxValueSize)
		if err != nil {
			return total, err
		}
		total += n
		l.Value = field
	}
	{
		field, n, err := scale.DecodeStructSliceWithLimit[Dependency](dec, maxDeps)
		if err != nil {
			return total, err
		}
		total += n
		l.Deps = field
	}
	return total, nil
}

// OwnershipProof binds the literal content to a per-request secret. The
// responder proves it held an omitted object and the requester recomputes
// the proof over its own copy.
func OwnershipProof(lit *Literal, secret types.Hash32) (types.Hash32, error) {
	proof, err := hash.KeyedSum(secret[:], lit.Hash[:], lit.Body())
	if err != nil {
		return types.Hash32{}, err
	}
	return proof, nil
}
