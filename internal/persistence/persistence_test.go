package persistence

import (
	"FlightSurety/internal/core"
	"FlightSurety/internal/oracle"
	"FlightSurety/internal/testutil"
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	query string
	args  []interface{}
}

func (r *recordingExecer) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	r.query = query
	r.args = args
	return nil, nil
}

// sliceSource serves calls from memory.
type sliceSource []CallRow

func (s sliceSource) LoadCallsFrom(_ context.Context, from int64, limit int) ([]CallRow, error) {
	var out []CallRow
	for _, r := range s {
		if r.Sequence >= from && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func settledRows(t *testing.T) (*testutil.Scenario, []Record) {
	t.Helper()
	s := testutil.NewScenario(t)
	s.Settled()
	var recs []Record
	for _, out := range s.Drain() {
		rec, err := NewRecord(out)
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	return s, recs
}

func callRows(recs []Record) sliceSource {
	rows := make(sliceSource, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, r.Call)
	}
	return rows
}

func freshEngine(t *testing.T) *core.Engine {
	t.Helper()
	eng, err := core.NewEngine(core.EngineConfig{
		Genesis: testutil.Genesis(),
		Entropy: oracle.StaticEntropy{},
	})
	require.NoError(t, err)
	return eng
}

func TestInsertRows_NumbersPlaceholders(t *testing.T) {
	ex := &recordingExecer{}
	err := insertRows(context.Background(), ex, "INSERT INTO t (a, b, c) VALUES ",
		[][]interface{}{{1, 2, 3}, {4, 5, 6}}, " ON CONFLICT DO NOTHING")
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO t (a, b, c) VALUES ($1, $2, $3), ($4, $5, $6) ON CONFLICT DO NOTHING", ex.query)
	assert.Equal(t, []interface{}{1, 2, 3, 4, 5, 6}, ex.args)
}

func TestWriteBatches_SkipEmpty(t *testing.T) {
	w := NewEventLogWriter(nil)
	ex := &recordingExecer{}
	ctx := context.Background()

	require.NoError(t, w.WriteCallBatch(ctx, ex, nil))
	require.NoError(t, w.WriteJournalBatch(ctx, ex, nil))
	require.NoError(t, w.WriteNotificationBatch(ctx, ex, nil))
	assert.Empty(t, ex.query)
}

func TestNewRecord_FromEngineOutputs(t *testing.T) {
	_, recs := settledRows(t)
	require.NotEmpty(t, recs)

	for i, r := range recs {
		assert.Equal(t, int64(i+1), r.Call.Sequence)
		assert.Len(t, r.Call.StateHash, 32)
		for pos, n := range r.Notifications {
			assert.Equal(t, r.Call.Sequence, n.Sequence)
			assert.Equal(t, pos, n.Position)
		}
		for _, j := range r.Journals {
			assert.Equal(t, r.Call.Sequence, j.Sequence)
			assert.Positive(t, j.Amount)
		}
	}

	fund := recs[0]
	assert.Equal(t, "FundAirline", fund.Call.CallType)
	require.Len(t, fund.Journals, 1)
	assert.True(t, strings.HasPrefix(fund.Journals[0].DebitAccount, "system:airline_pool"))
	require.Len(t, fund.Notifications, 1)
	assert.Equal(t, "AirlineFunded", fund.Notifications[0].NotificationType)
}

func TestWriteCallBatch_StoresPayloadAsText(t *testing.T) {
	_, recs := settledRows(t)
	ex := &recordingExecer{}
	require.NoError(t, NewEventLogWriter(nil).WriteCallBatch(context.Background(), ex, []CallRow{recs[0].Call}))

	require.Len(t, ex.args, 8)
	payload, ok := ex.args[4].(string)
	require.True(t, ok)
	assert.Contains(t, payload, `"caller"`)
}

func TestReplayLog_RebuildsIdenticalState(t *testing.T) {
	s, recs := settledRows(t)

	eng := freshEngine(t)
	n, err := ReplayLog(context.Background(), eng, callRows(recs), 4, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, len(recs), n)
	assert.Equal(t, s.Engine.GetSequence(), eng.GetSequence())
	assert.Equal(t, s.Engine.GetStateHash(), eng.GetStateHash())
	assert.Equal(t, s.Engine.GetFunds(), eng.GetFunds())
	assert.Equal(t, s.Engine.GetPassengerBalance(testutil.Passenger2), eng.GetPassengerBalance(testutil.Passenger2))
}

func TestReplayLog_DetectsTamperedHash(t *testing.T) {
	_, recs := settledRows(t)
	rows := callRows(recs)
	bad := append([]byte(nil), rows[2].StateHash...)
	bad[0] ^= 0xff
	rows[2].StateHash = bad

	n, err := ReplayLog(context.Background(), freshEngine(t), rows, 100, zerolog.Nop())
	require.Error(t, err)
	assert.Equal(t, 2, n)
}

func TestReplayLog_DetectsBrokenChain(t *testing.T) {
	_, recs := settledRows(t)
	rows := callRows(recs)
	rows = append(rows[:3:3], rows[4:]...)

	n, err := ReplayLog(context.Background(), freshEngine(t), rows, 100, zerolog.Nop())
	require.Error(t, err)
	assert.Equal(t, 3, n)
}

func TestDecodeRow_RejectsUnknownType(t *testing.T) {
	_, _, err := DecodeRow(CallRow{Sequence: 1, CallType: "Liquidate"})
	assert.Error(t, err)
}

func TestLocalSnapshotCache_RetainsNewest(t *testing.T) {
	s, _ := settledRows(t)
	cache, err := OpenLocalSnapshotCache(t.TempDir(), 3)
	require.NoError(t, err)
	defer cache.Close()

	empty, err := cache.Latest()
	require.NoError(t, err)
	assert.Nil(t, empty)

	snap := s.Engine.CreateSnapshotState()
	for seq := int64(1); seq <= 4; seq++ {
		cp := *snap
		cp.Sequence = seq
		require.NoError(t, cache.Put(&cp))
	}

	seqs, err := cache.Sequences()
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, seqs)

	latest, err := cache.Latest()
	require.NoError(t, err)
	assert.Equal(t, int64(4), latest.Sequence)
	assert.Equal(t, snap.StateHash, latest.StateHash)
}

func TestLocalSnapshotCache_RestoresEngine(t *testing.T) {
	s, recs := settledRows(t)
	cache, err := OpenLocalSnapshotCache(t.TempDir(), 0)
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Put(s.Engine.CreateSnapshotState()))
	snap, err := cache.Latest()
	require.NoError(t, err)

	eng := freshEngine(t)
	require.NoError(t, eng.RestoreFromSnapshot(snap))
	assert.Equal(t, s.Engine.GetStateHash(), eng.GetStateHash())

	// nothing left to replay past the snapshot
	n, err := ReplayLog(context.Background(), eng, callRows(recs), 100, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLocalSnapshotCache_ChecksumAndClose(t *testing.T) {
	_, err := decodeCachedSnapshot([]byte("short"))
	assert.ErrorIs(t, err, ErrChecksumFailure)

	tampered := make([]byte, 40)
	_, err = decodeCachedSnapshot(tampered)
	assert.ErrorIs(t, err, ErrChecksumFailure)

	cache, err := OpenLocalSnapshotCache(t.TempDir(), 1)
	require.NoError(t, err)
	require.NoError(t, cache.Close())
	require.NoError(t, cache.Close())

	_, err = cache.Latest()
	assert.ErrorIs(t, err, ErrCacheClosed)
	assert.ErrorIs(t, cache.Put(&core.SnapshotState{}), ErrCacheClosed)
}

func TestSnapshotManager_Integration(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, NewMigrator(db, "../../migrations", zerolog.Nop()).Up(ctx))

	s, recs := settledRows(t)
	w := NewEventLogWriter(db)
	for _, r := range recs {
		require.NoError(t, w.WriteCallBatch(ctx, db, []CallRow{r.Call}))
		require.NoError(t, w.WriteJournalBatch(ctx, db, r.Journals))
		require.NoError(t, w.WriteNotificationBatch(ctx, db, r.Notifications))
	}

	sm := NewSnapshotManager(db)
	latest, err := sm.GetLatestSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(recs)), latest)

	dup, err := NewPostgresIdempotencyChecker(db).IsDuplicate(recs[0].Call.CallType, recs[0].Call.IdempotencyKey)
	require.NoError(t, err)
	assert.True(t, dup)

	snap := s.Engine.CreateSnapshotState()
	_, err = sm.SaveSnapshot(ctx, snap)
	require.NoError(t, err)
	none, err := sm.LoadLatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, none, "unverified snapshots are not loaded")

	require.NoError(t, sm.MarkVerified(ctx, snap.Sequence))
	loaded, err := sm.LoadLatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snap.StateHash, loaded.StateHash)

	eng := freshEngine(t)
	n, err := ReplayLog(ctx, eng, sm, 5, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, len(recs), n)
	assert.Equal(t, s.Engine.GetStateHash(), eng.GetStateHash())
}
