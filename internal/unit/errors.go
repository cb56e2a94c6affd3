package unit

import (
	"errors"
	"fmt"
)

// Domain errors for the unit package.
//
//	if errors.Is(err, unit.ErrNameExists) {
//	    // reject the add with 409
//	}
var (
	// ErrUnitNotFound is returned when a unit id is not registered, or not
	// active in the store.
	ErrUnitNotFound = errors.New("unit: not found")

	// ErrUnitRetired is returned when a snapshot's unit has had its
	// hardware released by a later reconciliation. It matches
	// ErrUnitNotFound.
	ErrUnitRetired = fmt.Errorf("%w: retired", ErrUnitNotFound)

	// ErrNameExists is returned when adding a unit whose name is taken,
	// active or not.
	ErrNameExists = errors.New("unit: name already exists")

	// ErrInvalidUnit is returned when a unit definition fails validation.
	ErrInvalidUnit = errors.New("unit: invalid")
)
