package onboard

import (
	"errors"
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrOperationNotFound is returned by Registry.Get for unknown types.
var ErrOperationNotFound = errors.New("operation not found")

// Registry maps operation types to their implementation.
//
// Ledger entries only store an OperationType, so the registry is how
// Rollback recovers the Operation that produced an entry.
type Registry struct {
	operations *xsync.MapOf[OperationType, Operation]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		operations: xsync.NewMapOf[OperationType, Operation](),
	}
}

// NewDefaultRegistry creates a Registry holding the eight onboarding
// operations bound to deps.
func NewDefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	for _, op := range DefaultOperations(deps) {
		// Types are distinct, Register cannot fail here.
		_ = r.Register(op)
	}
	return r
}

// Register adds an operation to the registry.
func (r *Registry) Register(op Operation) error {
	if _, loaded := r.operations.LoadOrStore(op.Type(), op); loaded {
		return fmt.Errorf("operation '%s' already registered", op.Type())
	}
	return nil
}

// Get retrieves an operation by type.
func (r *Registry) Get(t OperationType) (Operation, error) {
	op, ok := r.operations.Load(t)
	if !ok {
		return nil, fmt.Errorf("%s: %w", t, ErrOperationNotFound)
	}
	return op, nil
}

// Types returns the registered types, sorted.
func (r *Registry) Types() []OperationType {
	types := make([]OperationType, 0, r.operations.Size())
	r.operations.Range(func(t OperationType, _ Operation) bool {
		types = append(types, t)
		return true
	})
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
