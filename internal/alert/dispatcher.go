package alert

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/climate-core/internal/notify"
)

// RecipientLister supplies the current recipients.
type RecipientLister interface {
	List(ctx context.Context) ([]string, error)
}

// Logger defines the logging interface used by the dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Event describes one dispatched alert.
type Event struct {
	ID          string    `json:"id"`
	UnitID      int64     `json:"unit_id"`
	Temperature float64   `json:"temperature"`
	Recipients  int       `json:"recipients"`
	Delivered   int       `json:"delivered"`
	At          time.Time `json:"at"`
}

// Dispatcher sends out-of-range alerts to every recipient. It holds no
// alert state unless a re-alert interval is set.
type Dispatcher struct {
	recipients RecipientLister
	sender     notify.Sender
	logger     Logger
	now        func() time.Time

	mu       sync.Mutex
	realert  time.Duration
	lastSent map[int64]time.Time
	onEvent  func(Event)
}

// NewDispatcher creates a dispatcher reading recipients from r and
// delivering through s.
func NewDispatcher(r RecipientLister, s notify.Sender) *Dispatcher {
	return &Dispatcher{
		recipients: r,
		sender:     s,
		logger:     noopLogger{},
		now:        time.Now,
		lastSent:   make(map[int64]time.Time),
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetRealertInterval suppresses repeat alerts for a unit within interval
// of the previous one. Zero, the default, alerts on every call.
func (d *Dispatcher) SetRealertInterval(interval time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.realert = interval
}

// SetOnEvent registers fn to be called after each dispatched alert.
func (d *Dispatcher) SetOnEvent(fn func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onEvent = fn
}

// Subject returns the alert subject for a unit.
func Subject(unitID int64) string {
	return fmt.Sprintf("Temperature Alert for Unit %d", unitID)
}

// Body returns the alert body for a unit and temperature.
func Body(unitID int64, temperature float64) string {
	return fmt.Sprintf("Alert: The temperature for unit %d is out of range: %s°C.", unitID, formatTemperature(temperature))
}

// formatTemperature prints t with at least one decimal place.
func formatTemperature(t float64) string {
	s := strconv.FormatFloat(t, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Dispatch sends one alert per current recipient. It never fails: a
// recipient lookup failure or a failed send is logged, and a failed send
// does not stop delivery to the remaining recipients.
func (d *Dispatcher) Dispatch(ctx context.Context, unitID int64, temperature float64) {
	release, ok := d.reserve(unitID)
	if !ok {
		d.logger.Debug("alert suppressed by re-alert interval", "unit_id", unitID, "temperature", temperature)
		return
	}

	recipients, err := d.recipients.List(ctx)
	if err != nil {
		release()
		d.logger.Error("loading alert recipients failed", "unit_id", unitID, "error", err)
		return
	}
	if len(recipients) == 0 {
		release()
		d.logger.Info("no alert recipients", "unit_id", unitID, "temperature", temperature)
		return
	}

	subject := Subject(unitID)
	body := Body(unitID, temperature)

	delivered := 0
	for _, to := range recipients {
		err := d.sender.Send(ctx, notify.Message{To: to, Subject: subject, Body: body, UnitID: unitID})
		if err != nil {
			d.logger.Error("alert delivery failed", "unit_id", unitID, "recipient", to, "error", err)
			continue
		}
		delivered++
		d.logger.Info("alert sent", "unit_id", unitID, "recipient", to)
	}

	event := Event{
		ID:          uuid.NewString(),
		UnitID:      unitID,
		Temperature: temperature,
		Recipients:  len(recipients),
		Delivered:   delivered,
		At:          d.now(),
	}

	d.mu.Lock()
	onEvent := d.onEvent
	d.mu.Unlock()

	if onEvent != nil {
		onEvent(event)
	}
}

// reserve claims the alert slot for unitID, stamping it in the same
// critical section as the interval check so concurrent dispatches for one
// unit cannot both pass. release hands the slot back when nothing was
// sent.
func (d *Dispatcher) reserve(unitID int64) (release func(), ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	last, had := d.lastSent[unitID]
	if d.realert > 0 && had && now.Sub(last) < d.realert {
		return nil, false
	}
	d.lastSent[unitID] = now

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.lastSent[unitID] != now {
			return
		}
		if had {
			d.lastSent[unitID] = last
		} else {
			delete(d.lastSent, unitID)
		}
	}, true
}
