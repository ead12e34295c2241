package ingestion

import (
	"FlightSurety/internal/event"
	"FlightSurety/internal/observability"
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// EventSubjectPrefix is the outbound namespace:
// flightsurety.events.{notification_type}
const EventSubjectPrefix = "flightsurety.events."

// StreamPublisher is the subset of jetstream.JetStream the relay needs.
type StreamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// wireNotification is the outbound JSON envelope.
type wireNotification struct {
	Sequence  int64              `json:"sequence"`
	CallID    string             `json:"call_id"`
	Type      string             `json:"type"`
	Payload   event.Notification `json:"payload"`
	Timestamp int64              `json:"timestamp_us"`
}

// OutboxRelay publishes engine notifications from the outbox to NATS.
// Each message carries a Nats-Msg-Id of call_id:type:index so a relay
// restart inside the stream's duplicate window does not double-publish.
type OutboxRelay struct {
	js      StreamPublisher
	outbox  *event.Outbox
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewOutboxRelay(js StreamPublisher, outbox *event.Outbox, metrics *observability.Metrics, logger zerolog.Logger) *OutboxRelay {
	return &OutboxRelay{
		js:      js,
		outbox:  outbox,
		metrics: metrics,
		logger:  logger,
	}
}

// Run relays until ctx is cancelled, then publishes whatever is left.
func (r *OutboxRelay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.Flush(context.Background())
			return ctx.Err()
		case <-r.outbox.Ready():
			r.Flush(ctx)
		}
	}
}

// Flush publishes everything queued and returns how many were published.
// Publish failures are counted and dropped; subscribers can recover from
// the event log.
func (r *OutboxRelay) Flush(ctx context.Context) int {
	published := 0
	var lastSeq int64
	idx := 0
	for _, e := range r.outbox.Drain() {
		if e.Sequence != lastSeq {
			lastSeq, idx = e.Sequence, 0
		}
		if err := r.publish(ctx, e, idx); err != nil {
			r.logger.Warn().Err(err).Int64("sequence", e.Sequence).Str("type", e.Type.String()).Msg("outbound publish failed")
			if r.metrics != nil {
				r.metrics.PublishDrops.Inc()
			}
		} else {
			published++
		}
		idx++
	}
	return published
}

func (r *OutboxRelay) publish(ctx context.Context, e event.Emitted, idx int) error {
	data, err := json.Marshal(wireNotification{
		Sequence:  e.Sequence,
		CallID:    e.CallID,
		Type:      e.Type.String(),
		Payload:   e.Payload,
		Timestamp: e.Timestamp.UnixMicro(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msgID := fmt.Sprintf("%s:%s:%d", e.CallID, e.Type, idx)
	_, err = r.js.Publish(ctx, EventSubjectPrefix+e.Type.String(), data, jetstream.WithMsgID(msgID))
	return err
}
