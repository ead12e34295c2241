package persistence

import (
	"FlightSurety/internal/core"
	"FlightSurety/internal/event"
	"FlightSurety/internal/observability"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Record is one applied call in its storage form.
type Record struct {
	Call          CallRow
	Journals      []JournalRow
	Notifications []NotificationRow
}

// NewRecord converts an engine output into rows.
func NewRecord(out core.CoreOutput) (Record, error) {
	payload, err := event.EncodeCall(out.Call)
	if err != nil {
		return Record{}, fmt.Errorf("encode call %d: %w", out.Envelope.Sequence, err)
	}

	env := out.Envelope
	rec := Record{
		Call: CallRow{
			Sequence:       env.Sequence,
			CallType:       env.CallType.String(),
			IdempotencyKey: env.IdempotencyKey,
			Caller:         env.Caller.String(),
			Payload:        payload,
			StateHash:      env.StateHash[:],
			PrevHash:       env.PrevHash[:],
			Timestamp:      env.Timestamp,
		},
	}

	if out.Batch != nil {
		for _, j := range out.Batch.Journals {
			rec.Journals = append(rec.Journals, JournalRow{
				JournalID:     j.JournalID.String(),
				BatchID:       j.BatchID.String(),
				EventRef:      j.EventRef,
				Sequence:      j.Sequence,
				DebitAccount:  j.DebitAccount.AccountPath(),
				CreditAccount: j.CreditAccount.AccountPath(),
				AssetID:       uint16(j.AssetID),
				Amount:        j.Amount,
				JournalType:   int32(j.JournalType),
				Timestamp:     j.Timestamp,
			})
		}
	}

	for i, n := range out.Notifications {
		data, err := json.Marshal(n.Payload)
		if err != nil {
			return Record{}, fmt.Errorf("encode %s notification: %w", n.Type, err)
		}
		rec.Notifications = append(rec.Notifications, NotificationRow{
			Sequence:         n.Sequence,
			Position:         i,
			NotificationType: n.Type.String(),
			Payload:          data,
			Timestamp:        n.Timestamp,
		})
	}
	return rec, nil
}

// PersistenceWorker drains the persist channel and batch-writes to Postgres.
// The engine sends on the persist channel with a blocking send, so if this
// worker falls behind the engine stalls and no applied call is lost.
type PersistenceWorker struct {
	writer       *EventLogWriter
	inputChan    <-chan core.CoreOutput
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

func NewPersistenceWorker(
	db *sql.DB,
	inputChan <-chan core.CoreOutput,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *PersistenceWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushTimeout <= 0 {
		flushTimeout = 10 * time.Millisecond
	}
	return &PersistenceWorker{
		writer:       NewEventLogWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		logger:       logger,
	}
}

// Run batches incoming outputs and flushes either when the batch is full or
// the flush timeout expires. Blocks until ctx is cancelled or the input
// channel is closed.
func (pw *PersistenceWorker) Run(ctx context.Context) error {
	batch := make([]Record, 0, pw.batchSize)

	timer := time.NewTimer(pw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining
			if len(batch) > 0 {
				if err := pw.flush(context.Background(), batch); err != nil {
					pw.logger.Error().Err(err).Int("calls", len(batch)).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := pw.flush(context.Background(), batch); err != nil {
						pw.logger.Error().Err(err).Int("calls", len(batch)).Msg("final flush failed")
					}
				}
				return nil
			}

			rec, err := NewRecord(output)
			if err != nil {
				// a gap in the log cannot be replayed
				return err
			}
			batch = append(batch, rec)

			if len(batch) >= pw.batchSize {
				if err := pw.flushWithRetry(ctx, batch); err != nil {
					pw.logger.Error().Err(err).Msg("batch flush failed after retries")
				}
				batch = batch[:0]
				timer.Reset(pw.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := pw.flushWithRetry(ctx, batch); err != nil {
					pw.logger.Error().Err(err).Msg("timeout flush failed after retries")
				}
				batch = batch[:0]
			}
			timer.Reset(pw.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write succeeds
// or ctx is cancelled; on cancellation it makes one last attempt.
func (pw *PersistenceWorker) flushWithRetry(ctx context.Context, batch []Record) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			pw.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("calls", len(batch)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if err := pw.flush(context.Background(), batch); err != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", err)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := pw.flush(ctx, batch)
		if err == nil {
			if attempt > 0 {
				pw.logger.Info().Int("retries", attempt).Msg("persistence flush succeeded")
			}
			return nil
		}

		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

func (pw *PersistenceWorker) flush(ctx context.Context, batch []Record) error {
	start := time.Now()

	calls := make([]CallRow, 0, len(batch))
	var journals []JournalRow
	var notes []NotificationRow
	for _, r := range batch {
		calls = append(calls, r.Call)
		journals = append(journals, r.Journals...)
		notes = append(notes, r.Notifications...)
	}

	// Calls, journals and notifications land in one transaction
	tx, err := pw.writer.db.BeginTx(ctx, nil)
	if err != nil {
		pw.countError("tx_begin")
		return err
	}
	defer tx.Rollback()

	if err := pw.writer.WriteCallBatch(ctx, tx, calls); err != nil {
		pw.countError("write_calls")
		return err
	}
	if err := pw.writer.WriteJournalBatch(ctx, tx, journals); err != nil {
		pw.countError("write_journals")
		return err
	}
	if err := pw.writer.WriteNotificationBatch(ctx, tx, notes); err != nil {
		pw.countError("write_notifications")
		return err
	}
	if err := tx.Commit(); err != nil {
		pw.countError("tx_commit")
		return err
	}

	if pw.metrics != nil {
		pw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		pw.metrics.PersistBatchSize.Observe(float64(len(calls)))
		pw.metrics.PersistCallsWritten.Add(float64(len(calls)))
		pw.metrics.PersistJournalsWritten.Add(float64(len(journals)))
		pw.metrics.PersistLastSequence.Set(float64(calls[len(calls)-1].Sequence))
	}
	return nil
}

func (pw *PersistenceWorker) countError(stage string) {
	if pw.metrics != nil {
		pw.metrics.PersistErrors.WithLabelValues(stage).Inc()
	}
}
