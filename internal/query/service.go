package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// QueryService provides read-only access to projection tables and the
// event log. Live state (funds, credit, operational flag) is read from the
// engine; this service answers the history and listing questions. Every
// projected row carries as_of_sequence for freshness.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	}
	return limit
}

// sqlBuilder appends numbered placeholders as conditions are added.
type sqlBuilder struct {
	sb   strings.Builder
	args []interface{}
}

func (b *sqlBuilder) write(s string) { b.sb.WriteString(s) }

func (b *sqlBuilder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) String() string { return b.sb.String() }

func buildListFlights(f FlightFilter) (string, []interface{}) {
	var b sqlBuilder
	b.write(`
		SELECT f.airline, f.code, f.departure, f.status_code, f.registered_at,
		       (SELECT COUNT(*) FROM projections.insurances i
		         WHERE i.airline = f.airline AND i.code = f.code AND i.departure = f.departure)
		FROM projections.flights f
		WHERE TRUE`)
	if f.Airline != "" {
		b.write(" AND f.airline = " + b.arg(f.Airline))
	}
	if f.StatusCode != nil {
		b.write(" AND f.status_code = " + b.arg(int16(*f.StatusCode)))
	}
	if f.AfterDeparture > 0 {
		b.write(" AND f.departure > " + b.arg(f.AfterDeparture))
	}
	b.write(" ORDER BY f.departure ASC, f.airline ASC, f.code ASC")
	b.write(" LIMIT " + b.arg(clampLimit(f.Limit)))
	return b.String(), b.args
}

// ListFlights returns registered flights ordered by departure.
func (qs *QueryService) ListFlights(ctx context.Context, f FlightFilter) ([]FlightRow, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	query, args := buildListFlights(f)
	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flights []FlightRow
	for rows.Next() {
		fl := FlightRow{AsOfSequence: asOfSeq}
		if err := rows.Scan(&fl.Airline, &fl.Code, &fl.Departure, &fl.StatusCode, &fl.RegisteredAt, &fl.Insured); err != nil {
			return nil, err
		}
		flights = append(flights, fl)
	}
	return flights, rows.Err()
}

// ListAirlines returns every airline that was registered or voted on.
func (qs *QueryService) ListAirlines(ctx context.Context) ([]AirlineRow, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT address, name, registered, funded, votes, funded_amount
		FROM projections.airlines
		ORDER BY last_sequence ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var airlines []AirlineRow
	for rows.Next() {
		a := AirlineRow{AsOfSequence: asOfSeq}
		if err := rows.Scan(&a.Address, &a.Name, &a.Registered, &a.Funded, &a.Votes, &a.FundedAmount); err != nil {
			return nil, err
		}
		airlines = append(airlines, a)
	}
	return airlines, rows.Err()
}

// GetPassengerPolicies returns every policy a passenger bought, newest first.
func (qs *QueryService) GetPassengerPolicies(ctx context.Context, passenger string) ([]PolicyRow, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT i.airline, i.code, i.departure, i.passenger, i.premium, i.credited,
		       COALESCE(f.status_code, 0)
		FROM projections.insurances i
		LEFT JOIN projections.flights f
		  ON f.airline = i.airline AND f.code = i.code AND f.departure = i.departure
		WHERE i.passenger = $1
		ORDER BY i.last_sequence DESC
	`, passenger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []PolicyRow
	for rows.Next() {
		p := PolicyRow{AsOfSequence: asOfSeq}
		if err := rows.Scan(&p.Airline, &p.Code, &p.Departure, &p.Passenger, &p.Premium, &p.Credited, &p.StatusCode); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// GetPayoutHistory returns a passenger's withdrawals, newest first. Pass the
// last sequence of the previous page as beforeSequence to continue.
func (qs *QueryService) GetPayoutHistory(ctx context.Context, passenger string, limit int, beforeSequence *int64) ([]PayoutRow, error) {
	var b sqlBuilder
	b.write(`
		SELECT sequence, passenger, amount, EXTRACT(EPOCH FROM paid_at)::BIGINT
		FROM projections.payouts
		WHERE passenger = ` + b.arg(passenger))
	if beforeSequence != nil {
		b.write(" AND sequence < " + b.arg(*beforeSequence))
	}
	b.write(" ORDER BY sequence DESC LIMIT " + b.arg(clampLimit(limit)))

	rows, err := qs.db.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []PayoutRow
	for rows.Next() {
		var p PayoutRow
		if err := rows.Scan(&p.Sequence, &p.Passenger, &p.Amount, &p.PaidAt); err != nil {
			return nil, err
		}
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

// GetStatusHistory returns every finalized status for one flight.
func (qs *QueryService) GetStatusHistory(ctx context.Context, airline, code string, departure int64) ([]StatusChange, error) {
	rows, err := qs.db.QueryContext(ctx, `
		SELECT sequence, request_id, status_code
		FROM projections.status_history
		WHERE airline = $1 AND code = $2 AND departure = $3
		ORDER BY sequence ASC
	`, airline, code, departure)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []StatusChange
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.Sequence, &c.RequestID, &c.StatusCode); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// GetJournalHistory returns journal entries touching accounts under
// accountPrefix (e.g. "passenger:0xab..:"), newest first.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	accountPrefix string,
	limit int,
	beforeSequence *int64,
) ([]JournalHistoryEntry, error) {
	var b sqlBuilder
	like := b.arg(accountPrefix + "%")
	b.write(`
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset_id, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE (debit_account LIKE ` + like + ` OR credit_account LIKE ` + like + `)`)
	if beforeSequence != nil {
		b.write(" AND sequence < " + b.arg(*beforeSequence))
	}
	b.write(" ORDER BY sequence DESC LIMIT " + b.arg(clampLimit(limit)))

	rows, err := qs.db.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity in the call log and that the
// projected balances sum to zero per asset.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT c1.sequence
		FROM event_log.calls c1
		JOIN event_log.calls c2 ON c2.sequence = c1.sequence - 1
		WHERE c1.prev_hash != c2.state_hash
		ORDER BY c1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT asset_id, SUM(balance) AS total
		FROM projections.balances
		GROUP BY asset_id
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var u UnbalancedAsset
		if err := balanceRows.Scan(&u.AssetID, &u.Imbalance); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, u)
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
