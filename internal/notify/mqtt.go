package notify

import (
	"context"
	"fmt"

	"github.com/nerrad567/climate-core/internal/infrastructure/mqtt"
)

// MQTTSender publishes each message on the unit's notification topic, for
// a downstream bridge to deliver.
type MQTTSender struct {
	publisher Publisher
}

// NewMQTTSender creates a sender publishing through p.
func NewMQTTSender(p Publisher) *MQTTSender {
	return &MQTTSender{publisher: p}
}

// Send publishes msg as JSON, not retained.
func (s *MQTTSender) Send(ctx context.Context, msg Message) error {
	if err := s.publisher.PublishJSON(ctx, mqtt.Topics{}.Notification(msg.UnitID), msg, false); err != nil {
		return fmt.Errorf("%w: mqtt for %s: %w", ErrSendFailed, msg.To, err)
	}
	return nil
}
