// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prover

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pdiddy/proofbridge/pkg/types"
)

// Constructor builds an adapter for one backend kind. Constructors never
// touch the external process; that happens in Initialize.
type Constructor func(cfg types.AdapterConfig, opts Options) Verifier

// Registry maps backend-kind tokens to adapter constructors so backends are
// selected by configuration rather than compile-time binding. Implementations
// are safe for concurrent use and are handed to the orchestrator explicitly;
// there is no process-wide instance.
type Registry interface {
	// Register binds kind to ctor, replacing any previous binding.
	Register(kind types.BackendKind, ctor Constructor)

	// Create instantiates the adapter registered for kind. An unregistered
	// kind yields ErrUnknownBackend with the supported list.
	Create(kind types.BackendKind, cfg types.AdapterConfig, opts Options) (Verifier, error)

	// Kinds lists the registered backend kinds, sorted.
	Kinds() []types.BackendKind
}

// table is the Registry implementation: one explicit constructor map.
type table struct {
	mu    sync.RWMutex
	ctors map[types.BackendKind]Constructor
}

// NewRegistry returns a Registry pre-populated with the built-in adapters
// (lean, coq). Tests and embedders may Register additional kinds or replace
// the built-ins with fakes.
func NewRegistry() Registry {
	r := &table{ctors: make(map[types.BackendKind]Constructor, 2)}
	r.Register(types.BackendLean, newLeanVerifier)
	r.Register(types.BackendCoq, newCoqVerifier)
	return r
}

func (t *table) Register(kind types.BackendKind, ctor Constructor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ctors[kind] = ctor
}

func (t *table) Create(kind types.BackendKind, cfg types.AdapterConfig, opts Options) (Verifier, error) {
	t.mu.RLock()
	ctor, ok := t.ctors[kind]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownBackend, kind, t.Kinds())
	}
	return ctor(cfg, opts.normalized()), nil
}

func (t *table) Kinds() []types.BackendKind {
	t.mu.RLock()
	defer t.mu.RUnlock()
	kinds := make([]types.BackendKind, 0, len(t.ctors))
	for k := range t.ctors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
