package itemstate

// Listener is the callback contract a state fires its lifecycle
// transitions through. Per spec.md §5, membership is registered once (at
// load/create) and removed on destruction; registration must be
// order-independent and duplicate-safe, which is why State.AddListener
// (state.go) uses a set rather than a slice.
//
// Source bound listeners from state to manager and back by shared
// reference (spec.md §9, "Mutable graph with listener backlinks"). Here
// a state holds a small callback set and the manager's own cache is its
// only owning reference to a state; neither side holds the other by a
// cycle.
type Listener interface {
	StateCreated(s *State)
	StateModified(s *State)
	StateDestroyed(s *State)
	StateDiscarded(s *State)
}
