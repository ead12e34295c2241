package projection

import (
	"FlightSurety/internal/event"
	"context"
	"database/sql"
	"fmt"
	"time"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Journal is the part of a ledger journal the balance projection needs.
type Journal struct {
	DebitAccount  string
	CreditAccount string
	AssetID       uint16
	Amount        int64
}

// applyJournal moves a journal into projections.balances. Debits increase
// the balance of the debited account.
func applyJournal(ctx context.Context, ex execer, seq int64, j Journal) error {
	if _, err := ex.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance + $3, last_sequence = $4
	`, j.DebitAccount, j.AssetID, j.Amount, seq); err != nil {
		return err
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, -$3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance - $3, last_sequence = $4
	`, j.CreditAccount, j.AssetID, j.Amount, seq)
	return err
}

// applyNotification updates the read model for one notification.
// Notifications with no read-side effect are ignored.
func applyNotification(ctx context.Context, ex execer, seq int64, ts time.Time, n event.Notification) error {
	var err error
	switch v := n.(type) {
	case event.AirlineVoteCast:
		_, err = ex.ExecContext(ctx, `
			INSERT INTO projections.airlines (address, votes, last_sequence)
			VALUES ($1, $2, $3)
			ON CONFLICT (address) DO UPDATE SET votes = $2, last_sequence = $3
		`, v.Candidate.String(), v.Votes, seq)

	case event.AirlineRegistered:
		_, err = ex.ExecContext(ctx, `
			INSERT INTO projections.airlines (address, name, registered, votes, last_sequence)
			VALUES ($1, $2, TRUE, $3, $4)
			ON CONFLICT (address) DO UPDATE SET name = $2, registered = TRUE, votes = $3, last_sequence = $4
		`, v.Airline.String(), v.Name, v.Votes, seq)

	case event.AirlineFunded:
		_, err = ex.ExecContext(ctx, `
			INSERT INTO projections.airlines (address, registered, funded, funded_amount, last_sequence)
			VALUES ($1, TRUE, TRUE, $2, $3)
			ON CONFLICT (address) DO UPDATE SET funded = TRUE,
				funded_amount = projections.airlines.funded_amount + $2, last_sequence = $3
		`, v.Airline.String(), v.Amount, seq)

	case event.FlightRegistered:
		_, err = ex.ExecContext(ctx, `
			INSERT INTO projections.flights (airline, code, departure, status_code, registered_at, last_sequence)
			VALUES ($1, $2, $3, 0, $4, $5)
			ON CONFLICT (airline, code, departure) DO NOTHING
		`, v.Flight.Airline.String(), v.Flight.Code, v.Flight.Departure, ts.Unix(), seq)

	case event.InsurancePurchased:
		_, err = ex.ExecContext(ctx, `
			INSERT INTO projections.insurances (airline, code, departure, passenger, premium, last_sequence)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (airline, code, departure, passenger) DO NOTHING
		`, v.Flight.Airline.String(), v.Flight.Code, v.Flight.Departure, v.Passenger.String(), v.Premium, seq)

	case event.FlightStatusUpdated:
		if _, err = ex.ExecContext(ctx, `
			UPDATE projections.flights SET status_code = $4, last_sequence = $5
			WHERE airline = $1 AND code = $2 AND departure = $3
		`, v.Flight.Airline.String(), v.Flight.Code, v.Flight.Departure, int16(v.StatusCode), seq); err != nil {
			break
		}
		_, err = ex.ExecContext(ctx, `
			INSERT INTO projections.status_history (sequence, request_id, airline, code, departure, status_code)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (sequence, request_id) DO NOTHING
		`, seq, v.RequestID, v.Flight.Airline.String(), v.Flight.Code, v.Flight.Departure, int16(v.StatusCode))

	case event.InsureeCredited:
		_, err = ex.ExecContext(ctx, `
			UPDATE projections.insurances SET credited = $5, last_sequence = $6
			WHERE airline = $1 AND code = $2 AND departure = $3 AND passenger = $4
		`, v.Flight.Airline.String(), v.Flight.Code, v.Flight.Departure, v.Passenger.String(), v.Amount, seq)

	case event.InsureePaid:
		_, err = ex.ExecContext(ctx, `
			INSERT INTO projections.payouts (sequence, passenger, amount, paid_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (sequence) DO NOTHING
		`, seq, v.Passenger.String(), v.Amount, ts)

	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", n.NotificationType(), err)
	}
	return nil
}

func setWatermark(ctx context.Context, ex execer, workerID string, seq int64) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $2, updated_at = NOW()
	`, workerID, seq)
	return err
}
