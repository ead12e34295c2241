package projection

import (
	"FlightSurety/internal/core"
	"FlightSurety/internal/event"
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

const workerID = "main"

// Update is one applied call in the shape the projections consume.
type Update struct {
	Sequence      int64
	Journals      []Journal
	Notifications []event.Emitted
}

// NewUpdate extracts the projection input from an engine output.
func NewUpdate(out core.CoreOutput) Update {
	u := Update{
		Sequence:      out.Envelope.Sequence,
		Notifications: out.Notifications,
	}
	if out.Batch != nil {
		for _, j := range out.Batch.Journals {
			u.Journals = append(u.Journals, Journal{
				DebitAccount:  j.DebitAccount.AccountPath(),
				CreditAccount: j.CreditAccount.AccountPath(),
				AssetID:       uint16(j.AssetID),
				Amount:        j.Amount,
			})
		}
	}
	return u
}

// ProjectionWorker updates projection tables from applied calls.
// The projection channel is non-blocking with drop: a lagging worker misses
// updates, and the tables are rebuilt from the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan core.CoreOutput
	lastSeq   int64
	logger    zerolog.Logger
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan core.CoreOutput, logger zerolog.Logger) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		logger:    logger,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			u := NewUpdate(output)
			if u.Sequence != pw.lastSeq+1 && pw.lastSeq != 0 {
				pw.logger.Warn().
					Int64("expected", pw.lastSeq+1).
					Int64("got", u.Sequence).
					Msg("projection gap, rebuild from the event log to catch up")
			}
			if err := pw.apply(ctx, u); err != nil {
				// projections are eventually consistent
				pw.logger.Warn().Err(err).Int64("sequence", u.Sequence).Msg("projection update failed")
			}
			pw.lastSeq = u.Sequence
		}
	}
}

// LastSequence returns the last sequence the worker handled.
func (pw *ProjectionWorker) LastSequence() int64 {
	return pw.lastSeq
}

func (pw *ProjectionWorker) apply(ctx context.Context, u Update) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ApplyUpdate(ctx, tx, u); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyUpdate writes one update and advances the watermark.
func ApplyUpdate(ctx context.Context, ex execer, u Update) error {
	for _, j := range u.Journals {
		if err := applyJournal(ctx, ex, u.Sequence, j); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}
	for _, n := range u.Notifications {
		if err := applyNotification(ctx, ex, u.Sequence, n.Timestamp, n.Payload); err != nil {
			return err
		}
	}
	if err := setWatermark(ctx, ex, workerID, u.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}
	return nil
}

// RebuildProjections rebuilds all projection tables from the event log.
func RebuildProjections(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.airlines`,
		`TRUNCATE projections.flights`,
		`TRUNCATE projections.insurances`,
		`TRUNCATE projections.status_history`,
		`TRUNCATE projections.payouts`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT account_path, asset_id, SUM(delta), MAX(sequence)
		FROM (
			SELECT debit_account AS account_path, asset_id, amount AS delta, sequence FROM event_log.journal
			UNION ALL
			SELECT credit_account AS account_path, asset_id, -amount AS delta, sequence FROM event_log.journal
		) moves
		GROUP BY account_path, asset_id
	`); err != nil {
		return fmt.Errorf("rebuild balances: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT sequence, notification_type, payload, timestamp
		FROM event_log.notifications
		ORDER BY sequence ASC, position ASC
	`)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}
	var pending []event.Emitted
	for rows.Next() {
		var (
			e    event.Emitted
			kind string
			data []byte
		)
		if err := rows.Scan(&e.Sequence, &kind, &data, &e.Timestamp); err != nil {
			rows.Close()
			return err
		}
		nt, ok := event.ParseNotificationType(kind)
		if !ok {
			rows.Close()
			return fmt.Errorf("sequence %d: unknown notification %q", e.Sequence, kind)
		}
		if e.Payload, err = event.DecodeNotification(nt, data); err != nil {
			rows.Close()
			return err
		}
		e.Type = nt
		pending = append(pending, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var last int64
	for _, e := range pending {
		if err := applyNotification(ctx, tx, e.Sequence, e.Timestamp, e.Payload); err != nil {
			return err
		}
		last = e.Sequence
	}
	if last > 0 {
		if err := setWatermark(ctx, tx, workerID, last); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logger.Info().Int("notifications", len(pending)).Int64("sequence", last).Msg("projection rebuild complete")
	return nil
}
