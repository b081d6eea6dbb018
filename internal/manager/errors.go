package manager

import "errors"

// Error kinds surfaced to callers, matching spec.md §7's table.
var (
	// ErrNoSuchItem is returned by GetItemState when id resolves
	// nowhere — persistence, cache, nor any virtual provider.
	ErrNoSuchItem = errors.New("manager: no such item")

	// ErrReferentialIntegrity aborts a commit at Phase A when a
	// REFERENCE target cannot be resolved and its bundle is non-empty.
	ErrReferentialIntegrity = errors.New("manager: referential integrity violation")

	// ErrPersistenceFailure wraps a Phase E failure. The manager may be
	// poisoned afterward — see ErrManagerPoisoned.
	ErrPersistenceFailure = errors.New("manager: persistence failure")

	// ErrSchemaFailure aborts bootstrap when the node-type registry has
	// no usable root definition.
	ErrSchemaFailure = errors.New("manager: schema failure")

	// ErrManagerPoisoned is returned by GetItemState, GetNodeReferences
	// and Store after a Phase E failure leaves in-memory shared state
	// ahead of durable state (spec.md §9 Open Questions; SPEC_FULL.md
	// supplement 2 picks fail-stop); HasItemState reports false instead.
	// Call Reload to recover.
	ErrManagerPoisoned = errors.New("manager: poisoned by a prior persistence failure, call Reload")

	// errAlreadyConnected surfaces itemstate.ErrAlreadyConnected with a
	// manager-scoped message when Phase B's reconnection finds an item
	// already bound.
	errAlreadyConnected = errors.New("manager: item already connected in this commit")
)
