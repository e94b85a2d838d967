package object

import (
	"fmt"
	"slices"

	"github.com/causalmesh/go-causalmesh/codec"
	"github.com/causalmesh/go-causalmesh/common/types"
)

const (
	// OpClass is the literal class of every operation.
	OpClass = "causalmesh/op"
	// MutableClass is the literal class of mutable object descriptors.
	MutableClass = "causalmesh/mutable"
)

//go:generate scalegen -types opValue,MutableObject

type opValue struct {
	Kind    string
	Payload []byte
}

// Op is a single mutation of a mutable object. Ops form a DAG through Prev.
type Op struct {
	Target types.ObjectID
	// Kind is interpreted by the replica of the target, e.g. "orset/add".
	Kind    string
	Payload []byte
	// Prev are the op ids of the direct causal predecessors.
	Prev []types.OpID
	// Embedded are literals the op can't be interpreted without.
	Embedded []types.Hash32
	// References are other ops of the same target the op refers to.
	References []types.OpID
}

// Literal converts the op into its content-addressed form.
// Prev, Embedded and References are encoded in sorted order.
func (op *Op) Literal() *Literal {
	deps := make([]Dependency, 0, 1+len(op.Prev)+len(op.Embedded)+len(op.References))
	deps = append(deps, Dependency{Hash: op.Target, Kind: KindTarget})
	deps = appendSorted(deps, op.Prev, KindPrev)
	deps = appendSorted(deps, op.Embedded, KindEmbedded)
	deps = appendSorted(deps, op.References, KindReference)
	value := codec.MustEncode(&opValue{Kind: op.Kind, Payload: op.Payload})
	return NewLiteral(OpClass, value, deps)
}

func appendSorted(deps []Dependency, hashes []types.Hash32, kind DependencyKind) []Dependency {
	sorted := slices.Clone(hashes)
	types.SortHashes(sorted)
	for _, h := range slices.Compact(sorted) {
		deps = append(deps, Dependency{Hash: h, Kind: kind})
	}
	return deps
}

// ID returns the op id, which is the hash of the op literal.
func (op *Op) ID() types.OpID {
	return op.Literal().Hash
}

// OpFromLiteral decodes an op. The literal hash is not verified.
func OpFromLiteral(lit *Literal) (*Op, error) {
	if lit.Class != OpClass {
		return nil, fmt.Errorf("%w: %q is not an op", ErrUnexpectedClass, lit.Class)
	}
	var value opValue
	if err := codec.Decode(lit.Value, &value); err != nil {
		return nil, fmt.Errorf("decode op %s: %w", lit.Hash.ShortString(), err)
	}
	op := &Op{Kind: value.Kind, Payload: value.Payload}
	targets := 0
	for _, dep := range lit.Deps {
		switch dep.Kind {
		case KindTarget:
			op.Target = dep.Hash
			targets++
		case KindPrev:
			op.Prev = append(op.Prev, dep.Hash)
		case KindEmbedded:
			op.Embedded = append(op.Embedded, dep.Hash)
		case KindReference:
			op.References = append(op.References, dep.Hash)
		default:
			return nil, fmt.Errorf("op %s: unknown dependency kind %d", lit.Hash.ShortString(), dep.Kind)
		}
	}
	if targets != 1 {
		return nil, fmt.Errorf("op %s: expected exactly one target, got %d", lit.Hash.ShortString(), targets)
	}
	return op, nil
}

// MutableObject describes an object mutated by ops. Its literal hash is the
// object id shared by every replica.
type MutableObject struct {
	Type string
	Name string
	Seed []byte
}

// Literal returns the content-addressed form of the descriptor.
func (m *MutableObject) Literal() *Literal {
	return NewLiteral(MutableClass, codec.MustEncode(m), nil)
}

// ID returns the object id.
func (m *MutableObject) ID() types.ObjectID {
	return m.Literal().Hash
}

// MutableFromLiteral decodes a mutable object descriptor.
func MutableFromLiteral(lit *Literal) (*MutableObject, error) {
	if lit.Class != MutableClass {
		return nil, fmt.Errorf("%w: %q is not a mutable object", ErrUnexpectedClass, lit.Class)
	}
	var m MutableObject
	if err := codec.Decode(lit.Value, &m); err != nil {
		return nil, fmt.Errorf("decode mutable object %s: %w", lit.Hash.ShortString(), err)
	}
	return &m, nil
}
