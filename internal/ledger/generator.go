package ledger

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"strconv"

	"github.com/google/uuid"
)

// journalNamespace seeds the name-based UUIDs of batches and journals so that
// replaying the same call always yields the same IDs.
var journalNamespace = uuid.MustParse("6f1c2a8e-4d0b-5c3e-9a71-0b9e2f5d8c41")

// Source identifies the call a batch is generated for.
type Source struct {
	Ref       string // idempotency key of the call
	Sequence  int64
	Timestamp int64 // epoch microseconds
}

// Credit is one passenger's share of an insuree payout.
type Credit struct {
	Passenger event.Address
	Amount    int64
}

// JournalGenerator creates balanced journal batches from calls
type JournalGenerator struct {
	balanceTracker *BalanceTracker // for pre-checks
}

func NewJournalGenerator(tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		balanceTracker: tracker,
	}
}

// GenerateAirlineFunding moves seed funding into the airline pool.
// Moves funds: external:funding → system:airline_pool
func (jg *JournalGenerator) GenerateAirlineFunding(src Source, amount int64) (*Batch, error) {
	batch := jg.newBatch(src, 1)
	jg.appendJournal(batch, PoolAccount(),
		NewExternalAccountKey(SubTypeExternalFunding, AssetETH),
		amount, JournalTypeAirlineFunding)
	return batch, nil
}

// GeneratePremium moves a policy premium into the airline pool.
// Moves funds: external:premiums → system:airline_pool
func (jg *JournalGenerator) GeneratePremium(src Source, amount int64) (*Batch, error) {
	batch := jg.newBatch(src, 1)
	jg.appendJournal(batch, PoolAccount(),
		NewExternalAccountKey(SubTypeExternalPremiums, AssetETH),
		amount, JournalTypePremium)
	return batch, nil
}

// GenerateOracleFee collects an oracle registration fee.
// Moves funds: external:oracle_fees → system:oracle_fees
func (jg *JournalGenerator) GenerateOracleFee(src Source, amount int64) (*Batch, error) {
	batch := jg.newBatch(src, 1)
	jg.appendJournal(batch, OracleFeeAccount(),
		NewExternalAccountKey(SubTypeExternalOracleFees, AssetETH),
		amount, JournalTypeOracleFee)
	return batch, nil
}

// GenerateInsureeCredits credits every insured passenger from the pool, one
// journal per passenger in the order given.
// Pre-check: the pool must cover the aggregate payout.
func (jg *JournalGenerator) GenerateInsureeCredits(src Source, credits []Credit) (*Batch, error) {
	var total int64
	for _, c := range credits {
		total += c.Amount
	}

	// PRE-CHECK: pool must not go negative
	if pool := jg.balanceTracker.PoolBalance(); pool < total {
		return nil, errs.ErrInsufficientPool.With("pool=%d, payout=%d", pool, total)
	}

	batch := jg.newBatch(src, len(credits))
	for _, c := range credits {
		jg.appendJournal(batch, CreditAccount(c.Passenger), PoolAccount(),
			c.Amount, JournalTypeInsureeCredit)
	}
	return batch, nil
}

// GeneratePayout withdraws a passenger's credit to the outside world.
// Moves funds: passenger:credit → external:payouts
func (jg *JournalGenerator) GeneratePayout(src Source, passenger event.Address, amount int64) (*Batch, error) {
	// PRE-CHECK: cannot pay out more than is owed
	if owed := jg.balanceTracker.PassengerCredit(passenger); owed < amount {
		return nil, errs.ErrNoCredit.With("passenger %s owed %d, requested %d", passenger, owed, amount)
	}

	batch := jg.newBatch(src, 1)
	jg.appendJournal(batch, NewExternalAccountKey(SubTypeExternalPayouts, AssetETH),
		CreditAccount(passenger), amount, JournalTypePayout)
	return batch, nil
}

func (jg *JournalGenerator) newBatch(src Source, size int) *Batch {
	return &Batch{
		BatchID:   uuid.NewSHA1(journalNamespace, []byte(src.Ref)),
		EventRef:  src.Ref,
		Sequence:  src.Sequence,
		Timestamp: src.Timestamp,
		Journals:  make([]Journal, 0, size),
	}
}

func (jg *JournalGenerator) appendJournal(
	batch *Batch,
	debit, credit AccountKey,
	amount int64,
	jt JournalType,
) {
	leg := strconv.Itoa(len(batch.Journals))
	batch.Journals = append(batch.Journals, Journal{
		JournalID:     uuid.NewSHA1(batch.BatchID, []byte(leg)),
		BatchID:       batch.BatchID,
		EventRef:      batch.EventRef,
		Sequence:      batch.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		AssetID:       AssetETH,
		Amount:        amount,
		JournalType:   jt,
		Timestamp:     batch.Timestamp,
	})
}
