package object

import (
	"fmt"

	"github.com/causalmesh/go-causalmesh/common/types"
)

// Context is a private set of validated literals used to reconstruct ops
// received from a single remote. Literals are kept in insertion order so that
// dependencies can be persisted before the objects that reference them.
type Context struct {
	literals map[types.Hash32]*Literal
	order    []types.Hash32
	// stored literals are persisted locally together with their dependencies.
	stored map[types.Hash32]struct{}
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{literals: map[types.Hash32]*Literal{}, stored: map[types.Hash32]struct{}{}}
}

// Add puts a validated literal into the context.
func (c *Context) Add(lit *Literal) {
	if _, exist := c.literals[lit.Hash]; exist {
		return
	}
	c.literals[lit.Hash] = lit
	c.order = append(c.order, lit.Hash)
}

// AddStored puts a locally persisted literal into the context. Its
// dependencies are not resolved.
func (c *Context) AddStored(lit *Literal) {
	c.stored[lit.Hash] = struct{}{}
	c.Add(lit)
}

// Get returns the literal if it is in the context.
func (c *Context) Get(h types.Hash32) (*Literal, bool) {
	lit, exist := c.literals[h]
	return lit, exist
}

// Has reports whether the literal is in the context.
func (c *Context) Has(h types.Hash32) bool {
	_, exist := c.literals[h]
	return exist
}

// Len returns the number of literals.
func (c *Context) Len() int {
	return len(c.order)
}

// Resolve returns every resolvable dependency of lit, transitively, with
// dependencies ordered before their dependents.
func (c *Context) Resolve(lit *Literal) ([]*Literal, error) {
	var (
		rst     []*Literal
		visited = map[types.Hash32]struct{}{}
		visit   func(*Literal) error
	)
	visit = func(current *Literal) error {
		for _, dep := range current.Deps {
			if !dep.Kind.Resolvable() {
				continue
			}
			if _, exist := visited[dep.Hash]; exist {
				continue
			}
			visited[dep.Hash] = struct{}{}
			resolved, exist := c.literals[dep.Hash]
			if !exist {
				return fmt.Errorf("%w: %s %s of %s", ErrMissingDependency,
					dep.Kind, dep.Hash.ShortString(), current.Hash.ShortString())
			}
			if _, stored := c.stored[dep.Hash]; !stored {
				if err := visit(resolved); err != nil {
					return err
				}
			}
			rst = append(rst, resolved)
		}
		return nil
	}
	if err := visit(lit); err != nil {
		return nil, err
	}
	return rst, nil
}

// Reconstruct validates the op literal and checks that every resolvable
// dependency is available in the context.
func (c *Context) Reconstruct(lit *Literal) (*Op, []*Literal, error) {
	if err := lit.Validate(); err != nil {
		return nil, nil, err
	}
	op, err := OpFromLiteral(lit)
	if err != nil {
		return nil, nil, err
	}
	if id := op.ID(); id != lit.Hash {
		return nil, nil, fmt.Errorf("%w: op %s is not in canonical form", ErrHashMismatch, lit.Hash.ShortString())
	}
	deps, err := c.Resolve(lit)
	if err != nil {
		return nil, nil, err
	}
	return op, deps, nil
}
