package system

import "time"

// State is an object's enumerated behavioral state. It belongs to the object
// and is only touched from its scene's task.
type State struct {
	Current          int
	Previous         int
	Elapsed          time.Duration
	JustTransitioned bool
}

// Transition switches to next and resets the elapsed time. Transitioning to
// the current state is a no-op.
func (s *State) Transition(next int) bool {
	if next == s.Current {
		return false
	}
	s.Previous = s.Current
	s.Current = next
	s.Elapsed = 0
	s.JustTransitioned = true
	return true
}

// Advance accumulates time in the current state and clears the transition
// flag set during the previous frame.
func (s *State) Advance(dt time.Duration) {
	s.Elapsed += dt
	s.JustTransitioned = false
}
