package logic

// Selector is a cyclic cursor over a fixed list of choices (A→B→C→A).
//
// With lag enabled, Advance publishes the cursor value from before the
// advance, so the visible selection trails the button presses by one.
// Without lag the new cursor value is published.
type Selector[T comparable] struct {
	choices []T
	cursor  int
	lag     bool
}

// NewSelector creates a selector positioned on the first choice.
func NewSelector[T comparable](choices []T, lag bool) *Selector[T] {
	return &Selector[T]{choices: choices, lag: lag}
}

// Advance moves the cursor one step and returns the value to publish.
func (s *Selector[T]) Advance() T {
	prev := s.choices[s.cursor]
	s.cursor = (s.cursor + 1) % len(s.choices)
	if s.lag {
		return prev
	}
	return s.choices[s.cursor]
}

// Cursor returns the choice the cursor points at.
func (s *Selector[T]) Cursor() T {
	return s.choices[s.cursor]
}
