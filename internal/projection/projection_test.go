package projection

import (
	"FlightSurety/internal/event"
	"FlightSurety/internal/testutil"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stmt struct {
	query string
	args  []interface{}
}

type recorder struct{ stmts []stmt }

func (r *recorder) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	r.stmts = append(r.stmts, stmt{query: query, args: args})
	return nil, nil
}

func (r *recorder) touching(table string) []stmt {
	var out []stmt
	for _, s := range r.stmts {
		if strings.Contains(s.query, table+" ") || strings.Contains(s.query, table+"\n") {
			out = append(out, s)
		}
	}
	return out
}

func TestApplyUpdate_SettledLifecycle(t *testing.T) {
	s := testutil.NewScenario(t)
	s.Settled()

	rec := &recorder{}
	var journals int
	for _, out := range s.Drain() {
		u := NewUpdate(out)
		journals += len(u.Journals)
		require.NoError(t, ApplyUpdate(context.Background(), rec, u))
	}

	assert.Len(t, rec.touching("projections.balances"), 2*journals)
	assert.Len(t, rec.touching("projections.insurances"), 4, "two purchases, two credits")
	assert.Len(t, rec.touching("projections.status_history"), 1)
	assert.Len(t, rec.touching("projections.payouts"), 1)

	wm := rec.touching("projections.watermark")
	require.NotEmpty(t, wm)
	assert.Equal(t, s.Engine.GetSequence(), wm[len(wm)-1].args[1])
}

func TestApplyUpdate_CreditUsesPassengerKey(t *testing.T) {
	f := testutil.Flight()
	rec := &recorder{}
	u := Update{
		Sequence: 9,
		Notifications: []event.Emitted{{
			Sequence: 9,
			Type:     event.NotificationInsureeCredited,
			Payload:  event.InsureeCredited{Flight: f, Passenger: testutil.Passenger1, Amount: 1_500_000},
		}},
	}
	require.NoError(t, ApplyUpdate(context.Background(), rec, u))

	credits := rec.touching("projections.insurances")
	require.Len(t, credits, 1)
	assert.Equal(t, []interface{}{
		f.Airline.String(), f.Code, f.Departure, testutil.Passenger1.String(), int64(1_500_000), int64(9),
	}, credits[0].args)
}

func TestApplyNotification_IgnoresTransientNotifications(t *testing.T) {
	rec := &recorder{}
	ctx := context.Background()
	for _, n := range []event.Notification{
		event.OperatingStatusChanged{Operational: false},
		event.OracleRegistered{Oracle: testutil.OracleAddr(1)},
		event.OracleRequest{RequestID: "r", Flight: testutil.Flight()},
		event.OracleReport{RequestID: "r", Flight: testutil.Flight()},
	} {
		require.NoError(t, applyNotification(ctx, rec, 1, time.Unix(0, 0), n))
	}
	assert.Empty(t, rec.stmts)
}

func TestApplyJournal_DebitIncreases(t *testing.T) {
	rec := &recorder{}
	j := Journal{DebitAccount: "system:airline_pool:ETH", CreditAccount: "external:funding:ETH", Amount: 10}
	require.NoError(t, applyJournal(context.Background(), rec, 3, j))

	require.Len(t, rec.stmts, 2)
	assert.Equal(t, "system:airline_pool:ETH", rec.stmts[0].args[0])
	assert.Contains(t, rec.stmts[0].query, "balance + $3")
	assert.Equal(t, "external:funding:ETH", rec.stmts[1].args[0])
	assert.Contains(t, rec.stmts[1].query, "balance - $3")
}
