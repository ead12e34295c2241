package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeAirlineFunding JournalType = iota
	JournalTypePremium
	JournalTypeOracleFee
	JournalTypeInsureeCredit
	JournalTypePayout
)

func (jt JournalType) String() string {
	switch jt {
	case JournalTypeAirlineFunding:
		return "airline_funding"
	case JournalTypePremium:
		return "premium"
	case JournalTypeOracleFee:
		return "oracle_fee"
	case JournalTypeInsureeCredit:
		return "insuree_credit"
	case JournalTypePayout:
		return "payout"
	default:
		return "unknown"
	}
}

// Journal represents a single double-entry journal entry
type Journal struct {
	JournalID     uuid.UUID   // Derived from the call ID and leg index
	BatchID       uuid.UUID   // Groups balanced entries
	EventRef      string      // Idempotency key of source call
	Sequence      int64       // Global call sequence
	DebitAccount  AccountKey  // Account receiving debit (balance increases)
	CreditAccount AccountKey  // Account receiving credit (balance decreases)
	AssetID       AssetID     // Asset being transferred
	Amount        int64       // Fixed-point amount (ALWAYS positive)
	JournalType   JournalType // Entry type
	Timestamp     int64       // Versioned input timestamp (epoch microseconds)
}

// Batch represents a balanced set of journal entries
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Validate ensures the batch is well-formed.
// Each journal moves one positive amount from the credit account to the debit
// account, so every entry is balanced by construction.
func (b *Batch) Validate() error {
	if len(b.Journals) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}

	for _, j := range b.Journals {
		if j.Amount <= 0 {
			return fmt.Errorf("journal %s has non-positive amount: %d", j.JournalID, j.Amount)
		}

		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}

		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
	}

	return nil
}

// Total returns the sum of all journal amounts of the given type.
func (b *Batch) Total(jt JournalType) int64 {
	var total int64
	for _, j := range b.Journals {
		if j.JournalType == jt {
			total += j.Amount
		}
	}
	return total
}
