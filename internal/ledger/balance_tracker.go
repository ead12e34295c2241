package ledger

import (
	"FlightSurety/internal/event"
	"fmt"
)

// BalanceTracker maintains in-memory account balances
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// RevertBatch undoes a batch previously applied with ApplyBatch.
func (bt *BalanceTracker) RevertBatch(batch *Batch) {
	for i := len(batch.Journals) - 1; i >= 0; i-- {
		j := batch.Journals[i]
		bt.balances[j.DebitAccount] -= j.Amount
		bt.balances[j.CreditAccount] += j.Amount
		bt.prune(j.DebitAccount)
		bt.prune(j.CreditAccount)
	}
}

func (bt *BalanceTracker) prune(key AccountKey) {
	if bt.balances[key] == 0 {
		delete(bt.balances, key)
	}
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// SetBalance overwrites a balance; used only when restoring a snapshot.
func (bt *BalanceTracker) SetBalance(key AccountKey, amount int64) {
	if amount == 0 {
		delete(bt.balances, key)
		return
	}
	bt.balances[key] = amount
}

// PoolBalance is totalFunds: airline funding plus premiums minus credits.
func (bt *BalanceTracker) PoolBalance() int64 {
	return bt.GetBalance(PoolAccount())
}

// PassengerCredit returns what the registry owes a passenger.
func (bt *BalanceTracker) PassengerCredit(passenger event.Address) int64 {
	return bt.GetBalance(CreditAccount(passenger))
}

// ComputeGlobalBalance sums all account balances (should be 0 for zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() map[AssetID]int64 {
	totals := make(map[AssetID]int64)

	for key, balance := range bt.balances {
		totals[key.AssetID] += balance
	}

	return totals
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	balance := bt.GetBalance(key)
	if balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
	}
	return nil
}

// Snapshot returns a copy of all balances (for state hashing)
func (bt *BalanceTracker) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}
