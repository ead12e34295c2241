package ingestion

import (
	"FlightSurety/internal/core"
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"FlightSurety/internal/observability"
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Submitter applies a call; core.Executor satisfies it.
type Submitter interface {
	Submit(ctx context.Context, call event.Call) (*core.Receipt, error)
}

// Outcome labels for the ingest metric.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed"
	OutcomeRetry     = "retry"
)

// Dispatcher parses inbound calls and submits them to the engine. A call
// the engine rejects is still acknowledged: the rejection is final and
// redelivery would only be rejected again.
type Dispatcher struct {
	rawChan <-chan RawCall
	sink    Submitter
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewDispatcher(rawChan <-chan RawCall, sink Submitter, metrics *observability.Metrics, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		rawChan: rawChan,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
	}
}

func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-d.rawChan:
			if !ok {
				return nil
			}
			d.Handle(ctx, raw)
		}
	}
}

// Handle processes one message and returns its outcome.
func (d *Dispatcher) Handle(ctx context.Context, raw RawCall) string {
	ct, err := CallTypeFromSubject(raw.Subject)
	if err != nil {
		d.logger.Warn().Err(err).Msg("dropping message")
		d.count("unknown", OutcomeMalformed)
		raw.Term()
		return OutcomeMalformed
	}
	label := ct.String()

	call, err := ParseCall(ct, raw.Data)
	if err != nil {
		d.logger.Warn().Err(err).Str("call_type", label).Msg("malformed call")
		d.count(label, OutcomeMalformed)
		raw.Term()
		return OutcomeMalformed
	}

	receipt, err := d.sink.Submit(ctx, call)
	switch {
	case err == nil:
		raw.Ack()
		if d.metrics != nil {
			d.metrics.IngestToApply.WithLabelValues(label).Observe(time.Since(raw.ReceivedAt).Seconds())
		}
		if receipt.Duplicate {
			d.count(label, OutcomeDuplicate)
			return OutcomeDuplicate
		}
		d.count(label, OutcomeApplied)
		return OutcomeApplied

	case errs.KindOf(err) != errs.KindUnknown:
		d.logger.Info().
			Err(err).
			Str("call_type", label).
			Str("call_id", call.IdempotencyKey()).
			Msg("call rejected")
		raw.Ack()
		d.count(label, OutcomeRejected)
		return OutcomeRejected

	default:
		// executor stopped or context cancelled
		if !errors.Is(err, context.Canceled) {
			d.logger.Warn().Err(err).Str("call_type", label).Msg("submit failed, will redeliver")
		}
		raw.Nak()
		d.count(label, OutcomeRetry)
		return OutcomeRetry
	}
}

func (d *Dispatcher) count(callType, outcome string) {
	if d.metrics != nil {
		d.metrics.IngestMessages.WithLabelValues(callType, outcome).Inc()
	}
}
