package barneshut

import (
	"errors"
	"fmt"
)

// Build errors. Accumulate never fails once a tree exists.
var (
	// ErrNoBodies indicates Build was handed an empty body set.
	ErrNoBodies = errors.New("barneshut: no bodies to build from")

	// ErrInvalidBody indicates a body with a non-finite position or a
	// mass that is not positive and finite.
	ErrInvalidBody = errors.New("barneshut: invalid body (NaN/Inf position or non-positive mass)")

	// ErrInvalidTheta indicates an opening angle that is negative or not finite.
	ErrInvalidTheta = errors.New("barneshut: theta must be finite and >= 0")

	// ErrDegenerate indicates two or more bodies that all share one position.
	ErrDegenerate = errors.New("barneshut: degenerate extent")

	// ErrExtentOverflow indicates finite bodies spread too far apart for
	// their extent to be represented.
	ErrExtentOverflow = errors.New("barneshut: extent overflows float64")
)

// BuildError wraps a build failure with the stage that produced it.
type BuildError struct {
	Stage   string
	N       int
	Wrapped error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("barneshut: build %s (n=%d): %v", e.Stage, e.N, e.Wrapped)
}

func (e *BuildError) Unwrap() error {
	return e.Wrapped
}
