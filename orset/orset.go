// Package orset implements an observed-remove set replicated through ops.
//
// An add op embeds the element literal. A delete op references the add ops
// of the element that were observed by its author; an element is present
// while at least one of its add ops is not referenced by a delete.
package orset

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/object"
)

const (
	// Type of the mutable object descriptor.
	Type = "orset"
	// KindAdd adds the embedded element.
	KindAdd = "orset/add"
	// KindDelete removes the referenced adds.
	KindDelete = "orset/delete"
	// ElementClass is the literal class of set elements.
	ElementClass = "orset/element"
)

var (
	// ErrMalformedOp is returned for ops that are not valid set ops.
	ErrMalformedOp = errors.New("malformed set op")
	// ErrNotPresent is returned when deleting an element that is not in the set.
	ErrNotPresent = errors.New("element is not present")
)

// Descriptor returns the mutable object of a set with the name.
func Descriptor(name string) *object.MutableObject {
	return &object.MutableObject{Type: Type, Name: name}
}

// Element wraps the value into an element literal.
func Element(value []byte) *object.Literal {
	return object.NewLiteral(ElementClass, value, nil)
}

// Validate checks that the op is a well formed set op. It doesn't need the
// replica, so it can be used before the op is persisted.
func Validate(op *object.Op) error {
	switch op.Kind {
	case KindAdd:
		if len(op.Embedded) != 1 || len(op.References) != 0 {
			return fmt.Errorf("%w: add embeds %d elements and references %d ops",
				ErrMalformedOp, len(op.Embedded), len(op.References))
		}
	case KindDelete:
		if len(op.References) == 0 || len(op.Embedded) != 0 {
			return fmt.Errorf("%w: delete references %d ops and embeds %d elements",
				ErrMalformedOp, len(op.References), len(op.Embedded))
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedOp, op.Kind)
	}
	if len(op.Payload) != 0 {
		return fmt.Errorf("%w: unexpected payload", ErrMalformedOp)
	}
	return nil
}

// LiteralLoader loads element literals.
type LiteralLoader func(types.Hash32) (*object.Literal, error)

// Set is a replica. Ops must be applied in causal order.
type Set struct {
	target types.ObjectID

	mu sync.RWMutex
	// adds of every element that are not deleted yet.
	adds     map[types.Hash32]types.HashSet
	elements map[types.Hash32]*object.Literal
	// element of every live add.
	addOf   map[types.OpID]types.Hash32
	deleted types.HashSet
	applied types.HashSet
}

// New creates an empty replica of the target.
func New(target types.ObjectID) *Set {
	return &Set{
		target:   target,
		adds:     map[types.Hash32]types.HashSet{},
		elements: map[types.Hash32]*object.Literal{},
		addOf:    map[types.OpID]types.Hash32{},
		deleted:  types.HashSet{},
		applied:  types.HashSet{},
	}
}

// Target is the id of the replicated object.
func (s *Set) Target() types.ObjectID {
	return s.target
}

// Apply updates the replica with the op. Applying the same op twice is a no-op.
func (s *Set) Apply(op *object.Op, load LiteralLoader) error {
	if op.Target != s.target {
		return fmt.Errorf("%w: op targets %s", ErrMalformedOp, op.Target.ShortString())
	}
	if err := Validate(op); err != nil {
		return err
	}
	id := op.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied.Has(id) {
		return nil
	}
	switch op.Kind {
	case KindAdd:
		h := op.Embedded[0]
		element, exist := s.elements[h]
		if !exist {
			lit, err := load(h)
			if err != nil {
				return fmt.Errorf("load element %s: %w", h.ShortString(), err)
			}
			if lit.Class != ElementClass {
				return fmt.Errorf("%w: element class %q", ErrMalformedOp, lit.Class)
			}
			element = lit
		}
		s.applied.Add(id)
		if s.deleted.Has(id) {
			return nil
		}
		live, exist := s.adds[h]
		if !exist {
			live = types.HashSet{}
			s.adds[h] = live
		}
		live.Add(id)
		s.addOf[id] = h
		s.elements[h] = element
	case KindDelete:
		s.applied.Add(id)
		for _, ref := range op.References {
			s.deleted.Add(ref)
			h, exist := s.addOf[ref]
			if !exist {
				continue
			}
			delete(s.addOf, ref)
			live := s.adds[h]
			delete(live, ref)
			if len(live) == 0 {
				delete(s.adds, h)
				delete(s.elements, h)
			}
		}
	}
	return nil
}

// NewAdd creates an add op for the element on top of prev.
func (s *Set) NewAdd(element *object.Literal, prev []types.OpID) *object.Op {
	return &object.Op{
		Target:   s.target,
		Kind:     KindAdd,
		Prev:     prev,
		Embedded: []types.Hash32{element.Hash},
	}
}

// NewDelete creates a delete op for every observed add of the element.
func (s *Set) NewDelete(element types.Hash32, prev []types.OpID) (*object.Op, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	live := s.adds[element]
	if len(live) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotPresent, element.ShortString())
	}
	return &object.Op{
		Target:     s.target,
		Kind:       KindDelete,
		Prev:       prev,
		References: live.Sorted(),
	}, nil
}

// Has reports whether the element is present.
func (s *Set) Has(element types.Hash32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exist := s.adds[element]
	return exist
}

// Size is the number of present elements.
func (s *Set) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.adds)
}

// Elements returns present elements ordered by hash.
func (s *Set) Elements() []*object.Literal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rst := make([]*object.Literal, 0, len(s.elements))
	for _, lit := range s.elements {
		rst = append(rst, lit)
	}
	slices.SortFunc(rst, func(a, b *object.Literal) int { return a.Hash.Compare(b.Hash) })
	return rst
}

// Values returns the values of present elements ordered by hash.
func (s *Set) Values() [][]byte {
	elements := s.Elements()
	rst := make([][]byte, 0, len(elements))
	for _, lit := range elements {
		rst = append(rst, lit.Value)
	}
	return rst
}
