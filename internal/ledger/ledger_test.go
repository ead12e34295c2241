package ledger_test

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"FlightSurety/internal/ledger"
	fpmath "FlightSurety/internal/math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner     = event.MustParseAddress("0x00000000000000000000000000000000000000a1")
	app       = event.MustParseAddress("0x00000000000000000000000000000000000000a2")
	passenger = event.MustParseAddress("0x00000000000000000000000000000000000000b1")
	other     = event.MustParseAddress("0x00000000000000000000000000000000000000b2")
)

func src(ref string) ledger.Source {
	return ledger.Source{Ref: ref, Sequence: 1, Timestamp: 1_700_000_000_000_000}
}

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_Paths(t *testing.T) {
	assert.Equal(t, "system:airline_pool:ETH", ledger.PoolAccount().AccountPath())
	assert.Equal(t, "system:oracle_fees:ETH", ledger.OracleFeeAccount().AccountPath())
	assert.Equal(t,
		"passenger:0x00000000000000000000000000000000000000b1:credit:ETH",
		ledger.CreditAccount(passenger).AccountPath())
	assert.Equal(t, "external:payouts:ETH",
		ledger.NewExternalAccountKey(ledger.SubTypeExternalPayouts, ledger.AssetETH).AccountPath())
}

func TestParseAccountPath_RoundTrip(t *testing.T) {
	keys := []ledger.AccountKey{
		ledger.PoolAccount(),
		ledger.OracleFeeAccount(),
		ledger.CreditAccount(passenger),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalOracleFees, ledger.AssetETH),
		ledger.NewExternalAccountKey(ledger.SubTypeExternalFunding, ledger.AssetETH),
	}
	for _, k := range keys {
		parsed, err := ledger.ParseAccountPath(k.AccountPath())
		require.NoError(t, err, k.AccountPath())
		assert.Equal(t, k, parsed)
	}
}

func TestParseAccountPath_Rejects(t *testing.T) {
	for _, p := range []string{
		"",
		"system:airline_pool",
		"system:credit:ETH",
		"system:airline_pool:DOGE",
		"passenger:nothex:credit:ETH",
		"user:x:collateral:ETH",
	} {
		_, err := ledger.ParseAccountPath(p)
		assert.Error(t, err, p)
	}
}

func TestGetAssetID(t *testing.T) {
	id, ok := ledger.GetAssetID("ETH")
	require.True(t, ok)
	assert.Equal(t, ledger.AssetETH, id)

	_, ok = ledger.GetAssetID("DOGE")
	assert.False(t, ok)
}

// ============================================================================
// Test: Batch validation
// ============================================================================

func TestBatchValidate(t *testing.T) {
	batchID := uuid.New()
	good := ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		DebitAccount:  ledger.PoolAccount(),
		CreditAccount: ledger.NewExternalAccountKey(ledger.SubTypeExternalFunding, ledger.AssetETH),
		AssetID:       ledger.AssetETH,
		Amount:        5,
	}

	t.Run("empty", func(t *testing.T) {
		b := &ledger.Batch{BatchID: batchID}
		assert.Error(t, b.Validate())
	})

	t.Run("non-positive amount", func(t *testing.T) {
		for _, amt := range []int64{0, -1} {
			j := good
			j.Amount = amt
			b := &ledger.Batch{BatchID: batchID, Journals: []ledger.Journal{j}}
			assert.Error(t, b.Validate())
		}
	})

	t.Run("self transfer", func(t *testing.T) {
		j := good
		j.CreditAccount = j.DebitAccount
		b := &ledger.Batch{BatchID: batchID, Journals: []ledger.Journal{j}}
		assert.Error(t, b.Validate())
	})

	t.Run("mismatched batch id", func(t *testing.T) {
		j := good
		j.BatchID = uuid.New()
		b := &ledger.Batch{BatchID: batchID, Journals: []ledger.Journal{j}}
		assert.Error(t, b.Validate())
	})

	t.Run("valid", func(t *testing.T) {
		b := &ledger.Batch{BatchID: batchID, Journals: []ledger.Journal{good}}
		assert.NoError(t, b.Validate())
	})
}

// ============================================================================
// Test: JournalGenerator + BalanceTracker
// ============================================================================

func TestGenerator_FundingAndPremiumsFillPool(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(bt)

	b, err := gen.GenerateAirlineFunding(src("fund-1"), fpmath.Units(10))
	require.NoError(t, err)
	require.NoError(t, bt.ApplyBatch(b))

	b, err = gen.GeneratePremium(src("buy-1"), fpmath.Units(1))
	require.NoError(t, err)
	require.NoError(t, bt.ApplyBatch(b))

	b, err = gen.GenerateOracleFee(src("oracle-1"), fpmath.Units(1))
	require.NoError(t, err)
	require.NoError(t, bt.ApplyBatch(b))

	assert.Equal(t, fpmath.Units(11), bt.PoolBalance())
	assert.Equal(t, fpmath.Units(1), bt.GetBalance(ledger.OracleFeeAccount()))
	assert.NoError(t, ledger.NewInvariantValidator(bt).ValidateAll())
}

func TestGenerator_DeterministicIDs(t *testing.T) {
	gen := ledger.NewJournalGenerator(ledger.NewBalanceTracker())

	a, err := gen.GeneratePremium(src("same-call"), 7)
	require.NoError(t, err)
	b, err := gen.GeneratePremium(src("same-call"), 7)
	require.NoError(t, err)
	c, err := gen.GeneratePremium(src("other-call"), 7)
	require.NoError(t, err)

	assert.Equal(t, a.BatchID, b.BatchID)
	assert.Equal(t, a.Journals[0].JournalID, b.Journals[0].JournalID)
	assert.NotEqual(t, a.BatchID, c.BatchID)
}

func TestGenerator_InsureeCredits(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(bt)

	b, _ := gen.GenerateAirlineFunding(src("fund"), fpmath.Units(10))
	require.NoError(t, bt.ApplyBatch(b))

	credit := fpmath.Units(1) * 3 / 2
	b, err := gen.GenerateInsureeCredits(src("credit"), []ledger.Credit{
		{Passenger: passenger, Amount: credit},
		{Passenger: other, Amount: credit},
	})
	require.NoError(t, err)
	require.Len(t, b.Journals, 2)
	assert.NotEqual(t, b.Journals[0].JournalID, b.Journals[1].JournalID)
	assert.Equal(t, 2*credit, b.Total(ledger.JournalTypeInsureeCredit))

	require.NoError(t, bt.ApplyBatch(b))
	assert.Equal(t, fpmath.Units(7), bt.PoolBalance())
	assert.Equal(t, credit, bt.PassengerCredit(passenger))
	assert.Equal(t, credit, bt.PassengerCredit(other))
	assert.NoError(t, ledger.NewInvariantValidator(bt).ValidateAll())
}

func TestGenerator_InsureeCreditsInsufficientPool(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(bt)

	_, err := gen.GenerateInsureeCredits(src("credit"), []ledger.Credit{
		{Passenger: passenger, Amount: 1},
	})
	require.ErrorIs(t, err, errs.ErrInsufficientPool)
	assert.Equal(t, errs.KindInvalidState, errs.KindOf(err))
}

func TestGenerator_PayoutAndRevert(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	gen := ledger.NewJournalGenerator(bt)

	b, _ := gen.GenerateAirlineFunding(src("fund"), 100)
	require.NoError(t, bt.ApplyBatch(b))
	b, _ = gen.GenerateInsureeCredits(src("credit"), []ledger.Credit{{Passenger: passenger, Amount: 15}})
	require.NoError(t, bt.ApplyBatch(b))

	_, err := gen.GeneratePayout(src("pay-too-much"), passenger, 16)
	require.ErrorIs(t, err, errs.ErrNoCredit)

	payout, err := gen.GeneratePayout(src("pay"), passenger, 15)
	require.NoError(t, err)
	before := bt.Snapshot()

	require.NoError(t, bt.ApplyBatch(payout))
	assert.Zero(t, bt.PassengerCredit(passenger))
	assert.NoError(t, ledger.NewInvariantValidator(bt).ValidateAll())

	bt.RevertBatch(payout)
	assert.Equal(t, before, bt.Snapshot())
}

// ============================================================================
// Test: InvariantValidator
// ============================================================================

func TestInvariantValidator_DetectsViolations(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	v := ledger.NewInvariantValidator(bt)
	require.NoError(t, v.ValidateAll())

	bt.SetBalance(ledger.PoolAccount(), -1)
	assert.Error(t, v.ValidatePoolNonNegative())
	assert.Error(t, v.ValidateGlobalBalance())

	bt.SetBalance(ledger.PoolAccount(), 0)
	bt.SetBalance(ledger.CreditAccount(passenger), -5)
	bt.SetBalance(ledger.NewExternalAccountKey(ledger.SubTypeExternalPayouts, ledger.AssetETH), 5)
	assert.NoError(t, v.ValidateGlobalBalance())
	assert.Error(t, v.ValidateCreditsNonNegative())
}

// ============================================================================
// Test: Treasury
// ============================================================================

func TestTreasury_OperatingStatus(t *testing.T) {
	tr := ledger.NewTreasury(owner)
	require.True(t, tr.IsOperational())
	require.NoError(t, tr.RequireOperational())

	_, err := tr.SetOperatingStatus(passenger, false)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	assert.True(t, tr.IsOperational())

	changed, err := tr.SetOperatingStatus(owner, false)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.ErrorIs(t, tr.RequireOperational(), errs.ErrSystemPaused)

	changed, err = tr.SetOperatingStatus(owner, false)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestTreasury_Authorization(t *testing.T) {
	tr := ledger.NewTreasury(owner)
	assert.ErrorIs(t, tr.RequireAuthorized(app), errs.ErrCallerNotAuthorized)

	require.ErrorIs(t, tr.Authorize(passenger, app, false), errs.ErrUnauthorized)
	require.NoError(t, tr.Authorize(owner, app, false))
	assert.NoError(t, tr.RequireAuthorized(app))
	assert.Equal(t, []event.Address{app}, tr.AuthorizedCallers())

	require.NoError(t, tr.Authorize(owner, app, true))
	assert.False(t, tr.IsAuthorized(app))
}
