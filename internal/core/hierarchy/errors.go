package hierarchy

import "errors"

var (
	ErrEntityNotFound   = errors.New("entity not found")
	ErrCycle            = errors.New("entity cannot become a descendant of itself")
	ErrComponentExists  = errors.New("component type already attached")
	ErrInvariantBroken  = errors.New("hierarchy invariant broken")
	ErrEntityIDOverflow = errors.New("entity id space exhausted")
)
