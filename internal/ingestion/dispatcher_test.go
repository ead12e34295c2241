package ingestion_test

import (
	"FlightSurety/internal/core"
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"FlightSurety/internal/ingestion"
	"FlightSurety/internal/observability"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submitFunc func(ctx context.Context, call event.Call) (*core.Receipt, error)

func (f submitFunc) Submit(ctx context.Context, call event.Call) (*core.Receipt, error) {
	return f(ctx, call)
}

type acks struct{ ack, nak, term int }

func (a *acks) raw(subject string, data []byte) ingestion.RawCall {
	return ingestion.RawCall{
		Subject:    subject,
		Data:       data,
		ReceivedAt: time.Now(),
		Ack:        func() { a.ack++ },
		Nak:        func() { a.nak++ },
		Term:       func() { a.term++ },
	}
}

func TestDispatcher_Outcomes(t *testing.T) {
	fund := func(t *testing.T) []byte { return payload(t, map[string]interface{}{"value": "10"}) }

	tests := []struct {
		name    string
		subject string
		data    func(t *testing.T) []byte
		submit  submitFunc
		outcome string
		want    acks
	}{
		{
			name:    "applied",
			subject: "flightsurety.calls.FundAirline",
			data:    fund,
			submit: func(context.Context, event.Call) (*core.Receipt, error) {
				return &core.Receipt{Sequence: 1}, nil
			},
			outcome: ingestion.OutcomeApplied,
			want:    acks{ack: 1},
		},
		{
			name:    "duplicate",
			subject: "flightsurety.calls.FundAirline",
			data:    fund,
			submit: func(context.Context, event.Call) (*core.Receipt, error) {
				return &core.Receipt{Duplicate: true}, nil
			},
			outcome: ingestion.OutcomeDuplicate,
			want:    acks{ack: 1},
		},
		{
			name:    "business rejection is final",
			subject: "flightsurety.calls.FundAirline",
			data:    fund,
			submit: func(context.Context, event.Call) (*core.Receipt, error) {
				return nil, errs.ErrAlreadyFunded
			},
			outcome: ingestion.OutcomeRejected,
			want:    acks{ack: 1},
		},
		{
			name:    "stopped executor redelivers",
			subject: "flightsurety.calls.FundAirline",
			data:    fund,
			submit: func(context.Context, event.Call) (*core.Receipt, error) {
				return nil, core.ErrExecutorStopped
			},
			outcome: ingestion.OutcomeRetry,
			want:    acks{nak: 1},
		},
		{
			name:    "malformed payload terminates",
			subject: "flightsurety.calls.FundAirline",
			data:    func(*testing.T) []byte { return []byte("{") },
			outcome: ingestion.OutcomeMalformed,
			want:    acks{term: 1},
		},
		{
			name:    "unknown subject terminates",
			subject: "flightsurety.calls.Liquidate",
			data:    fund,
			outcome: ingestion.OutcomeMalformed,
			want:    acks{term: 1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := observability.NewMetrics(prometheus.NewRegistry())
			var got acks
			submit := tc.submit
			if submit == nil {
				submit = func(context.Context, event.Call) (*core.Receipt, error) {
					t.Fatal("submit must not be called")
					return nil, nil
				}
			}
			d := ingestion.NewDispatcher(nil, submit, m, zerolog.Nop())

			outcome := d.Handle(context.Background(), got.raw(tc.subject, tc.data(t)))
			assert.Equal(t, tc.outcome, outcome)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDispatcher_RunCountsByCallType(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	raws := make(chan ingestion.RawCall, 2)
	var got acks
	raws <- got.raw("flightsurety.calls.PayInsuree", payload(t, nil))
	raws <- got.raw("flightsurety.calls.PayInsuree", payload(t, nil))
	close(raws)

	calls := 0
	d := ingestion.NewDispatcher(raws, submitFunc(func(context.Context, event.Call) (*core.Receipt, error) {
		calls++
		if calls == 2 {
			return nil, errs.ErrNoCredit
		}
		return &core.Receipt{Sequence: 1}, nil
	}), m, zerolog.Nop())

	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, 2, got.ack)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestMessages.WithLabelValues("PayInsuree", ingestion.OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestMessages.WithLabelValues("PayInsuree", ingestion.OutcomeRejected)))
}

type fakeStream struct {
	subjects []string
	bodies   [][]byte
	fail     bool
}

func (f *fakeStream) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.fail {
		return nil, errors.New("nats: no responders")
	}
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, data)
	return &jetstream.PubAck{Stream: ingestion.EventStreamName}, nil
}

func emitted(seq int64, n event.Notification) event.Emitted {
	return event.Emitted{
		Sequence:  seq,
		CallID:    callID,
		Type:      n.NotificationType(),
		Payload:   n,
		Timestamp: time.Unix(1_700_000_000, 0),
	}
}

func TestOutboxRelay_PublishesInOrder(t *testing.T) {
	outbox := event.NewOutbox()
	outbox.Append(
		emitted(4, event.FlightStatusUpdated{RequestID: "r1", StatusCode: event.StatusLateAirline}),
		emitted(5, event.InsureePaid{Amount: 1_500_000}),
	)

	js := &fakeStream{}
	r := ingestion.NewOutboxRelay(js, outbox, nil, zerolog.Nop())
	assert.Equal(t, 2, r.Flush(context.Background()))
	assert.Equal(t, []string{
		"flightsurety.events.FlightStatusUpdated",
		"flightsurety.events.InsureePaid",
	}, js.subjects)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(js.bodies[1], &body))
	assert.Equal(t, "InsureePaid", body["type"])
	assert.Equal(t, float64(5), body["sequence"])
	assert.Equal(t, 0, outbox.Len())
}

func TestOutboxRelay_CountsDrops(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	outbox := event.NewOutbox()
	outbox.Append(emitted(1, event.OperatingStatusChanged{Operational: false}))

	r := ingestion.NewOutboxRelay(&fakeStream{fail: true}, outbox, m, zerolog.Nop())
	assert.Equal(t, 0, r.Flush(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishDrops))
}

func TestOutboxRelay_RunFlushesOnShutdown(t *testing.T) {
	outbox := event.NewOutbox()
	js := &fakeStream{}
	r := ingestion.NewOutboxRelay(js, outbox, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	outbox.Append(emitted(1, event.AirlineFunded{Amount: 10}))
	require.Eventually(t, func() bool { return outbox.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
