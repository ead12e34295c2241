package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	CallStreamName  = "FLIGHTSURETY_CALLS"
	EventStreamName = "FLIGHTSURETY_EVENTS"
)

// RawCall is an inbound message not yet parsed into a typed call.
type RawCall struct {
	Subject    string
	Data       []byte
	ReceivedAt time.Time
	Ack        func() // processed (applied or rejected for good)
	Nak        func() // redeliver later
	Term       func() // never redeliver
}

// NATSSubscriber feeds inbound calls from a JetStream consumer into rawChan.
// A single durable consumer covers every call subject so the stream order
// is the order calls reach the engine.
type NATSSubscriber struct {
	js       jetstream.JetStream
	rawChan  chan<- RawCall
	consumer jetstream.ConsumeContext
	logger   zerolog.Logger
}

func NewNATSSubscriber(js jetstream.JetStream, rawChan chan<- RawCall, logger zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{
		js:      js,
		rawChan: rawChan,
		logger:  logger,
	}
}

// Subscribe creates (or resumes) the durable consumer. Consumers use explicit
// ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, durable string) error {
	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, CallStreamName, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: CallSubjectPrefix + ">",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		MaxAckPending: 1024,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", durable, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawCall{
			Subject:    msg.Subject(),
			Data:       msg.Data(),
			ReceivedAt: time.Now(),
			Ack:        func() { _ = msg.Ack() },
			Nak:        func() { _ = msg.Nak() },
			Term:       func() { _ = msg.Term() },
		}

		select {
		case ns.rawChan <- raw:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", durable, err)
	}

	ns.consumer = cc
	ns.logger.Info().Str("consumer", durable).Str("subjects", CallSubjectPrefix+">").Msg("subscribed")
	return nil
}

// Stop stops the consumer.
func (ns *NATSSubscriber) Stop() {
	if ns.consumer != nil {
		ns.consumer.Stop()
	}
	ns.logger.Info().Msg("NATS subscriber stopped")
}

// EnsureStreams creates the inbound and outbound streams if they don't
// exist. Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, logger zerolog.Logger) error {
	streams := []jetstream.StreamConfig{
		{
			Name:       CallStreamName,
			Subjects:   []string{CallSubjectPrefix + ">"},
			Storage:    jetstream.FileStorage,
			Retention:  jetstream.LimitsPolicy,
			MaxAge:     72 * time.Hour,
			Duplicates: 2 * time.Minute,
			Replicas:   1,
		},
		{
			Name:       EventStreamName,
			Subjects:   []string{EventSubjectPrefix + ">"},
			Storage:    jetstream.FileStorage,
			Retention:  jetstream.LimitsPolicy,
			MaxAge:     72 * time.Hour,
			Duplicates: 2 * time.Minute,
			Replicas:   1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		logger.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name("flightsurety"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}
