package core_test

import (
	"FlightSurety/internal/core"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDB struct {
	seen map[string]bool
	err  error
}

func (s *stubDB) IsDuplicate(callType, key string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.seen[callType+":"+key], nil
}

func TestIdempotency_Tiers(t *testing.T) {
	db := &stubDB{seen: map[string]bool{"BuyInsurance:old": true}}
	ic := core.NewIdempotencyChecker(8, db)

	dup, tier := ic.IsDuplicate("FundAirline", "k1")
	assert.False(t, dup)
	assert.Empty(t, tier)

	ic.MarkProcessed("FundAirline", "k1")
	dup, tier = ic.IsDuplicate("FundAirline", "k1")
	assert.True(t, dup)
	assert.Equal(t, core.TierLRU, tier)

	dup, tier = ic.IsDuplicate("BuyInsurance", "old")
	assert.True(t, dup)
	assert.Equal(t, core.TierPostgres, tier)

	// promoted into the hot tier
	dup, tier = ic.IsDuplicate("BuyInsurance", "old")
	assert.True(t, dup)
	assert.Equal(t, core.TierLRU, tier)

	lru, pg := ic.GetMetrics().GetDuplicates("FundAirline")
	assert.Equal(t, int64(1), lru)
	assert.Zero(t, pg)
	lru, pg = ic.GetMetrics().GetDuplicates("BuyInsurance")
	assert.Equal(t, int64(1), lru)
	assert.Equal(t, int64(1), pg)
}

func TestIdempotency_DBErrorFailsOpen(t *testing.T) {
	ic := core.NewIdempotencyChecker(8, &stubDB{err: errors.New("connection refused")})

	dup, _ := ic.IsDuplicate("Withdraw", "k")
	assert.False(t, dup)
	assert.Equal(t, int64(1), ic.GetMetrics().GetTier2Errors())
}

func TestIdempotencyLRU_Eviction(t *testing.T) {
	lru := core.NewIdempotencyLRU(2)
	lru.Add("a")
	lru.Add("b")
	require.True(t, lru.Contains("a")) // a is now most recent
	lru.Add("c")

	assert.False(t, lru.Contains("b"))
	assert.Equal(t, []string{"a", "c"}, lru.Keys())
	assert.Equal(t, int64(1), lru.Evictions())

	lru.WarmFromKeys([]string{"c", "d", "e"})
	assert.Equal(t, 2, lru.Size())
	assert.Equal(t, []string{"d", "e"}, lru.Keys())
}
