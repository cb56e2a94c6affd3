package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/climate-core/internal/infrastructure/config"
)

// ErrSendFailed is returned when a message could not be delivered to its
// recipient.
var ErrSendFailed = errors.New("notify: send failed")

// Message is one outbound notification to a single recipient.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// UnitID is the unit the message concerns, for transports that route by it.
	UnitID int64 `json:"unit_id"`
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Logger defines the logging interface used by senders.
type Logger interface {
	Info(msg string, args ...any)
}

// Publisher is the MQTT publishing surface the MQTT sender needs.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, v any, retained bool) error
}

// New builds the sender selected by cfg.Transport. The MQTT transport
// requires a connected publisher; the log transport requires a logger.
func New(cfg config.NotifyConfig, publisher Publisher, logger Logger) (Sender, error) {
	switch cfg.Transport {
	case config.TransportSMTP:
		return NewSMTPSender(cfg.SMTP), nil
	case config.TransportWebhook:
		return NewWebhookSender(cfg.Webhook), nil
	case config.TransportMQTT:
		if publisher == nil {
			return nil, fmt.Errorf("notify transport %q requires an mqtt connection", cfg.Transport)
		}
		return NewMQTTSender(publisher), nil
	case config.TransportLog, "":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown notify transport %q", cfg.Transport)
	}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger Logger
}

// NewLogSender creates a sender that logs every message at info level.
func NewLogSender(logger Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs msg.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if s.logger != nil {
		s.logger.Info("notification", "to", msg.To, "unit_id", msg.UnitID, "subject", msg.Subject, "body", msg.Body)
	}
	return nil
}
