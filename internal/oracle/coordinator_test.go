package oracle

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Fee: 1_000_000, Quorum: 3, IndexDomain: 10}

func addr(n int) event.Address {
	return event.MustParseAddress(fmt.Sprintf("0x%040x", n))
}

func flight() event.FlightKey {
	return event.FlightKey{Airline: addr(1), Code: "ND1309", Departure: 1_700_000_000}
}

func newStatic(t *testing.T) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(testConfig, StaticEntropy{})
	require.NoError(t, err)
	return c
}

func register(t *testing.T, c *Coordinator, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, c.CheckRegister(addr(100+i), testConfig.Fee))
		c.Register(addr(100+i), [32]byte{})
	}
}

func respond(t *testing.T, c *Coordinator, oracle event.Address, index uint8, status event.StatusCode) ResponseOutcome {
	t.Helper()
	planned, err := c.CheckResponse(oracle, index, flight(), status)
	require.NoError(t, err)
	got := c.RecordResponse(oracle, index, flight(), status)
	require.Equal(t, planned, got)
	return got
}

func TestNewCoordinator_RejectsBadConfig(t *testing.T) {
	_, err := NewCoordinator(Config{Quorum: 3, IndexDomain: 2}, StaticEntropy{})
	assert.Error(t, err)
	_, err = NewCoordinator(Config{Quorum: 0, IndexDomain: 10}, StaticEntropy{})
	assert.Error(t, err)
}

func TestPickIndexes_DistinctAndInDomain(t *testing.T) {
	e := NewKeccakEntropy([]byte("seed"))
	for nonce := uint64(0); nonce < 500; nonce++ {
		idx := pickIndexes(e.Draw([32]byte{}, addr(1), nonce), 10)
		assert.NotEqual(t, idx[0], idx[1])
		assert.NotEqual(t, idx[0], idx[2])
		assert.NotEqual(t, idx[1], idx[2])
		for _, i := range idx {
			assert.Less(t, i, uint8(10))
		}
	}
}

func TestPickIndexes_SmallestDomain(t *testing.T) {
	var d StaticEntropy
	for i := range d {
		d[i] = 0xff
	}
	idx := pickIndexes(d, 3)
	assert.ElementsMatch(t, []uint8{0, 1, 2}, idx[:])
}

func TestKeccakEntropy_Deterministic(t *testing.T) {
	a := NewKeccakEntropy([]byte("seed"))
	b := NewKeccakEntropy([]byte("seed"))
	other := NewKeccakEntropy([]byte("other"))

	salt := [32]byte{1}
	assert.Equal(t, a.Draw(salt, addr(1), 7), b.Draw(salt, addr(1), 7))
	assert.NotEqual(t, a.Draw(salt, addr(1), 7), a.Draw(salt, addr(1), 8))
	assert.NotEqual(t, a.Draw(salt, addr(1), 7), a.Draw(salt, addr(2), 7))
	assert.NotEqual(t, a.Draw(salt, addr(1), 7), a.Draw([32]byte{2}, addr(1), 7))
	assert.NotEqual(t, a.Draw(salt, addr(1), 7), other.Draw(salt, addr(1), 7))
}

func TestRegister_FeeAndDuplicate(t *testing.T) {
	c := newStatic(t)

	require.ErrorIs(t, c.CheckRegister(addr(1), testConfig.Fee-1), errs.ErrInsufficientFee)
	require.NoError(t, c.CheckRegister(addr(1), testConfig.Fee))
	o := c.Register(addr(1), [32]byte{})
	assert.Equal(t, [IndexCount]uint8{0, 1, 2}, o.Indexes)
	assert.Equal(t, uint64(1), c.Nonce())

	require.ErrorIs(t, c.CheckRegister(addr(1), testConfig.Fee), errs.ErrDuplicateOracle)

	idx, err := c.Indexes(addr(1))
	require.NoError(t, err)
	assert.Equal(t, o.Indexes, idx)

	_, err = c.Indexes(addr(2))
	require.ErrorIs(t, err, errs.ErrUnknownOracle)
}

func TestRegister_SeededIsReproducible(t *testing.T) {
	run := func() [][IndexCount]uint8 {
		c, err := NewCoordinator(testConfig, NewKeccakEntropy([]byte("genesis")))
		require.NoError(t, err)
		var out [][IndexCount]uint8
		for i := 1; i <= 20; i++ {
			out = append(out, c.Register(addr(i), [32]byte{byte(i)}).Indexes)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestResponse_QuorumFinalizesFirstBucket(t *testing.T) {
	c := newStatic(t)
	register(t, c, 6)

	req := c.OpenRequest(flight(), addr(50), [32]byte{}, 10)
	require.Equal(t, uint8(0), req.Key.Index)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, 1, c.OpenRequests())

	out := respond(t, c, addr(101), 0, event.StatusOnTime)
	assert.Equal(t, 1, out.Votes)
	respond(t, c, addr(102), 0, event.StatusLateAirline)
	respond(t, c, addr(103), 0, event.StatusLateAirline)
	out = respond(t, c, addr(104), 0, event.StatusOnTime)
	assert.False(t, out.Finalized)

	out = respond(t, c, addr(105), 0, event.StatusLateAirline)
	assert.True(t, out.Finalized)
	assert.Equal(t, 3, out.Votes)
	assert.Equal(t, req.ID, out.RequestID)
	assert.False(t, req.Open)
	assert.Equal(t, event.StatusLateAirline, req.Final)
	assert.Zero(t, c.OpenRequests())

	// late response to a closed request is ignored
	out = respond(t, c, addr(106), 0, event.StatusOnTime)
	assert.True(t, out.Ignored)
	assert.Equal(t, 2, req.Votes(event.StatusOnTime))
	assert.Equal(t, event.StatusLateAirline, req.Final)
}

func TestResponse_Rejections(t *testing.T) {
	c := newStatic(t)
	register(t, c, 2)

	_, err := c.CheckResponse(addr(101), 0, flight(), event.StatusOnTime)
	require.ErrorIs(t, err, errs.ErrUnknownRequest)

	c.OpenRequest(flight(), addr(50), [32]byte{}, 10)

	_, err = c.CheckResponse(addr(999), 0, flight(), event.StatusOnTime)
	require.ErrorIs(t, err, errs.ErrUnknownOracle)

	_, err = c.CheckResponse(addr(101), 9, flight(), event.StatusOnTime)
	require.ErrorIs(t, err, errs.ErrIndexMismatch)

	// assigned index, but the request was opened under index 0
	_, err = c.CheckResponse(addr(101), 1, flight(), event.StatusOnTime)
	require.ErrorIs(t, err, errs.ErrIndexMismatch)

	_, err = c.CheckResponse(addr(101), 0, flight(), event.StatusCode(11))
	require.ErrorIs(t, err, errs.ErrInvalidStatusCode)

	respond(t, c, addr(101), 0, event.StatusOnTime)
	_, err = c.CheckResponse(addr(101), 0, flight(), event.StatusLateAirline)
	require.ErrorIs(t, err, errs.ErrDuplicateResponse)
	assert.Zero(t, c.Request(RequestKey{Index: 0, Flight: flight()}).Votes(event.StatusLateAirline))
}

func TestOpenRequest_KeepsVotesWhileOpen(t *testing.T) {
	c := newStatic(t)
	register(t, c, 3)

	first := c.OpenRequest(flight(), addr(50), [32]byte{}, 10)
	respond(t, c, addr(101), 0, event.StatusOnTime)

	again := c.OpenRequest(flight(), addr(51), [32]byte{}, 20)
	assert.Same(t, first, again)
	assert.Equal(t, 1, again.Votes(event.StatusOnTime))
	assert.Equal(t, int64(10), again.OpenedAt)
}

func TestOpenRequest_ReopensClosed(t *testing.T) {
	c := newStatic(t)
	register(t, c, 3)

	req := c.OpenRequest(flight(), addr(50), [32]byte{}, 10)
	for i := 1; i <= 3; i++ {
		respond(t, c, addr(100+i), 0, event.StatusUnknown)
	}
	require.False(t, req.Open)

	req = c.OpenRequest(flight(), addr(50), [32]byte{}, 30)
	assert.True(t, req.Open)
	assert.Zero(t, req.Votes(event.StatusUnknown))
	assert.False(t, req.HasResponded(addr(101)))
}

func TestCloseFlight_IgnoresLaterResponses(t *testing.T) {
	c := newStatic(t)
	register(t, c, 1)
	c.OpenRequest(flight(), addr(50), [32]byte{}, 10)

	c.CloseFlight(flight(), event.StatusOnTime)
	out := respond(t, c, addr(101), 0, event.StatusLateAirline)
	assert.True(t, out.Ignored)
}

func TestSnapshot_RestoreMatchesCanonical(t *testing.T) {
	c, err := NewCoordinator(testConfig, NewKeccakEntropy([]byte("x")))
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		c.Register(addr(100+i), [32]byte{byte(i)})
	}
	req := c.OpenRequest(flight(), addr(50), [32]byte{9}, 10)
	for i := 1; i <= 5; i++ {
		if o := c.oracles[addr(100+i)]; o.HasIndex(req.Key.Index) {
			c.RecordResponse(o.Address, req.Key.Index, flight(), event.StatusOnTime)
		}
	}

	restored, err := NewCoordinator(testConfig, NewKeccakEntropy([]byte("x")))
	require.NoError(t, err)
	restored.Restore(c.Snapshot())

	assert.Equal(t, c.AppendCanonical(nil), restored.AppendCanonical(nil))
	assert.Equal(t, c.Nonce(), restored.Nonce())
	assert.Equal(t, c.OracleCount(), restored.OracleCount())
}

func TestRequestKey_IDStable(t *testing.T) {
	k := RequestKey{Index: 3, Flight: flight()}
	assert.Equal(t, k.ID(), k.ID())

	other := k
	other.Index = 4
	assert.NotEqual(t, k.ID(), other.ID())
}
