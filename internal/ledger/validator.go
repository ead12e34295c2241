package ledger

import (
	"fmt"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is well-formed
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidatePoolNonNegative checks totalFunds >= 0
func (v *InvariantValidator) ValidatePoolNonNegative() error {
	return v.tracker.ValidateNonNegative(PoolAccount())
}

// ValidateCreditsNonNegative checks no passenger is owed a negative amount
func (v *InvariantValidator) ValidateCreditsNonNegative() error {
	for key, balance := range v.tracker.balances {
		if key.Scope == AccountScopePassenger && balance < 0 {
			return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
		}
	}
	return nil
}

// ValidateGlobalBalance verifies system is zero-sum
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}

// ValidateAll runs every post-apply check.
func (v *InvariantValidator) ValidateAll() error {
	if err := v.ValidatePoolNonNegative(); err != nil {
		return err
	}
	if err := v.ValidateCreditsNonNegative(); err != nil {
		return err
	}
	return v.ValidateGlobalBalance()
}
