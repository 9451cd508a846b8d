package cut

import (
	"errors"
	"fmt"
)

var (
	ErrVolumeCellCreation  = errors.New("volume cell creation failed")
	ErrConflictingPosition = errors.New("conflicting node position")
	ErrVolumeConservation  = errors.New("volume not conserved")
	ErrInvalidCutSide      = errors.New("invalid cut side")
)

// ElementError ties a failure to the element it happened in
type ElementError struct {
	ElementID int
	Err       error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %d: %v", e.ElementID, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }
