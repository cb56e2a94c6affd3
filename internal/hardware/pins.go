package hardware

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxGPIO is the highest usable BCM line on the 40-pin header.
const MaxGPIO = 27

// Pin is a resolved GPIO line.
type Pin struct {
	// Name is the identifier the pin was resolved from, e.g. "D4" or "SDA".
	Name string
	GPIO int
}

func (p Pin) String() string {
	return fmt.Sprintf("%s(GPIO%d)", p.Name, p.GPIO)
}

// pinAliases maps function names on the header to their BCM line.
var pinAliases = map[string]int{
	"SDA":  2,
	"SCL":  3,
	"CE1":  7,
	"CE0":  8,
	"MISO": 9,
	"MOSI": 10,
	"SCLK": 11,
	"SCK":  11,
	"TXD":  14,
	"RXD":  15,
}

// ResolvePin resolves a sensor pin identifier: a board name D0..D27 or one
// of the header aliases (SDA, SCL, MOSI, MISO, SCLK, SCK, CE0, CE1, TXD,
// RXD). Matching is case-sensitive, as on the board silkscreen.
func ResolvePin(id string) (Pin, error) {
	if gpio, ok := pinAliases[id]; ok {
		return Pin{Name: id, GPIO: gpio}, nil
	}

	if num, ok := strings.CutPrefix(id, "D"); ok && num != "" {
		gpio, err := strconv.Atoi(num)
		if err == nil && gpio >= 0 && gpio <= MaxGPIO && strconv.Itoa(gpio) == num {
			return Pin{Name: id, GPIO: gpio}, nil
		}
	}

	return Pin{}, fmt.Errorf("%w: %q", ErrUnknownPin, id)
}

// ResolveActuatorPin validates an actuator GPIO number.
func ResolveActuatorPin(gpio int) (Pin, error) {
	if gpio < 0 || gpio > MaxGPIO {
		return Pin{}, fmt.Errorf("%w: GPIO %d", ErrUnknownPin, gpio)
	}
	return Pin{Name: "GPIO" + strconv.Itoa(gpio), GPIO: gpio}, nil
}

// claims tracks which lines are held by open handles.
type claims struct {
	held map[int]string
}

// claim marks gpio as held by owner. Callers hold the driver mutex.
func (c *claims) claim(pin Pin, owner string) error {
	if c.held == nil {
		c.held = make(map[int]string)
	}
	if holder, taken := c.held[pin.GPIO]; taken {
		return fmt.Errorf("%w: GPIO%d held by %s", ErrPinInUse, pin.GPIO, holder)
	}
	c.held[pin.GPIO] = owner
	return nil
}

func (c *claims) release(pin Pin) {
	delete(c.held, pin.GPIO)
}

func (c *claims) count() int {
	return len(c.held)
}
