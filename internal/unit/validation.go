package unit

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nerrad567/climate-core/internal/hardware"
)

// MaxNameLength is the maximum length of a unit name in characters.
const MaxNameLength = 64

// ValidateDefinition checks a definition before it is stored. Pin errors
// wrap hardware.ErrUnknownPin; everything else wraps ErrInvalidUnit.
func ValidateDefinition(d *Definition) error {
	d.Name = strings.TrimSpace(d.Name)
	d.SensorPin = strings.TrimSpace(d.SensorPin)

	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidUnit)
	}
	if utf8.RuneCountInString(d.Name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidUnit, MaxNameLength)
	}
	if d.SensorPin == "" {
		return fmt.Errorf("%w: sensor pin is required", ErrInvalidUnit)
	}

	if _, err := hardware.ResolvePin(d.SensorPin); err != nil {
		return fmt.Errorf("sensor pin: %w", err)
	}
	if _, err := hardware.ResolveActuatorPin(d.ActuatorPin); err != nil {
		return fmt.Errorf("actuator pin: %w", err)
	}
	return nil
}
