package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps outgoing payloads at 1MB.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker acknowledgement
// (QoS 1 and 2) or until ctx is done.
//
// Retained messages are for state (actuator commands, system status);
// samples and alerts are published without retain.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := await(ctx, c.client.Publish(topic, qos, retained, payload), defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishJSON marshals v and publishes it with the configured QoS.
//
// Example:
//
//	err := client.PublishJSON(ctx, mqtt.Topics{}.UnitAlert(3), alert, false)
func (c *Client) PublishJSON(ctx context.Context, topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(ctx, topic, payload, byte(c.cfg.QoS), retained)
}
