package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// EventLogWriter writes applied calls, their journals and notifications to
// Postgres using multi-row INSERTs.
type EventLogWriter struct {
	db *sql.DB
}

// CallRow represents a row in event_log.calls
type CallRow struct {
	Sequence       int64
	CallType       string
	IdempotencyKey string
	Caller         string
	Payload        []byte // JSON; written as text so it lands in a JSONB column
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
}

// JournalRow represents a row in event_log.journal
type JournalRow struct {
	JournalID     string
	BatchID       string
	EventRef      string
	Sequence      int64
	DebitAccount  string
	CreditAccount string
	AssetID       uint16
	Amount        int64
	JournalType   int32
	Timestamp     int64
}

// NotificationRow represents a row in event_log.notifications
type NotificationRow struct {
	Sequence         int64
	Position         int // order within the call
	NotificationType string
	Payload          []byte
	Timestamp        time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteCallBatch writes applied calls to event_log.calls.
func (w *EventLogWriter) WriteCallBatch(ctx context.Context, ex execer, calls []CallRow) error {
	if len(calls) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(calls))
	for _, c := range calls {
		rows = append(rows, []interface{}{
			c.Sequence, c.CallType, c.IdempotencyKey, c.Caller,
			string(c.Payload), c.StateHash, c.PrevHash, c.Timestamp,
		})
	}
	return insertRows(ctx, ex, `INSERT INTO event_log.calls
		(sequence, call_type, idempotency_key, caller, payload, state_hash, prev_hash, timestamp)
		VALUES `, rows, " ON CONFLICT (sequence) DO NOTHING")
}

// WriteJournalBatch writes journal entries to event_log.journal.
func (w *EventLogWriter) WriteJournalBatch(ctx context.Context, ex execer, journals []JournalRow) error {
	if len(journals) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(journals))
	for _, j := range journals {
		rows = append(rows, []interface{}{
			j.JournalID, j.BatchID, j.EventRef, j.Sequence,
			j.DebitAccount, j.CreditAccount, j.AssetID, j.Amount,
			j.JournalType, j.Timestamp,
		})
	}
	return insertRows(ctx, ex, `INSERT INTO event_log.journal
		(journal_id, batch_id, event_ref, sequence, debit_account, credit_account, asset_id, amount, journal_type, timestamp)
		VALUES `, rows, " ON CONFLICT (journal_id) DO NOTHING")
}

// WriteNotificationBatch writes emitted notifications to event_log.notifications.
func (w *EventLogWriter) WriteNotificationBatch(ctx context.Context, ex execer, notes []NotificationRow) error {
	if len(notes) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(notes))
	for _, n := range notes {
		rows = append(rows, []interface{}{
			n.Sequence, n.Position, n.NotificationType, string(n.Payload), n.Timestamp,
		})
	}
	return insertRows(ctx, ex, `INSERT INTO event_log.notifications
		(sequence, position, notification_type, payload, timestamp)
		VALUES `, rows, " ON CONFLICT (sequence, position) DO NOTHING")
}

// insertRows builds one multi-row INSERT with numbered placeholders.
func insertRows(ctx context.Context, ex execer, prefix string, rows [][]interface{}, suffix string) error {
	width := len(rows[0])
	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*width)

	for i, row := range rows {
		ph := make([]string, width)
		for j := range row {
			ph[j] = fmt.Sprintf("$%d", i*width+j+1)
		}
		values = append(values, "("+strings.Join(ph, ", ")+")")
		args = append(args, row...)
	}

	_, err := ex.ExecContext(ctx, prefix+strings.Join(values, ", ")+suffix, args...)
	return err
}
