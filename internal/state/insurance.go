package state

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"FlightSurety/internal/ledger"
	fpmath "FlightSurety/internal/math"
)

// InsuranceBook sells fixed-premium policies on registered flights and plans
// the payouts of LateAirline flights.
type InsuranceBook struct {
	flights   *FlightRegistry
	premium   int64
	payoutNum int64
	payoutDen int64
}

// NewInsuranceBook pays premium*payoutNum/payoutDen per insured passenger.
func NewInsuranceBook(flights *FlightRegistry, premium, payoutNum, payoutDen int64) *InsuranceBook {
	return &InsuranceBook{
		flights:   flights,
		premium:   premium,
		payoutNum: payoutNum,
		payoutDen: payoutDen,
	}
}

func (b *InsuranceBook) Premium() int64 {
	return b.premium
}

// PayoutPerPassenger is premium × multiplier, rounded down.
func (b *InsuranceBook) PayoutPerPassenger() (int64, error) {
	return fpmath.MulRatio(b.premium, b.payoutNum, b.payoutDen, fpmath.RoundDown)
}

// CheckPurchase validates a buy without mutating anything.
func (b *InsuranceBook) CheckPurchase(key event.FlightKey, passenger event.Address, value int64) error {
	f, err := b.flights.Lookup(key)
	if err != nil {
		return err
	}
	if value != b.premium {
		return errs.ErrPremiumMismatch.With("paid %d, premium is %d", value, b.premium)
	}
	if f.IsInsured(passenger) {
		return errs.ErrDuplicatePurchase.With("passenger %s on %s", passenger, key)
	}
	return nil
}

// RecordPurchase appends passenger to the insured list. Call CheckPurchase first.
func (b *InsuranceBook) RecordPurchase(key event.FlightKey, passenger event.Address) {
	b.flights.flights[key].addInsured(passenger)
}

// InsuredPassengers returns the insured list in purchase order.
func (b *InsuranceBook) InsuredPassengers(key event.FlightKey) ([]event.Address, error) {
	f, err := b.flights.Lookup(key)
	if err != nil {
		return nil, err
	}
	return f.InsuredPassengers(), nil
}

// PlanCredits returns the credits creditInsurees would apply. It returns no
// credits when the flight is not LateAirline, was already credited, or has
// no insured passengers; the call is then a no-op.
func (b *InsuranceBook) PlanCredits(key event.FlightKey) ([]ledger.Credit, error) {
	f, err := b.flights.Lookup(key)
	if err != nil {
		return nil, err
	}
	if f.Status != event.StatusLateAirline || f.Credited || len(f.insured) == 0 {
		return nil, nil
	}

	amount, err := b.PayoutPerPassenger()
	if err != nil {
		return nil, err
	}

	credits := make([]ledger.Credit, 0, len(f.insured))
	for _, p := range f.insured {
		credits = append(credits, ledger.Credit{Passenger: p, Amount: amount})
	}
	return credits, nil
}

// MarkCredited makes later creditInsurees calls on key no-ops.
func (b *InsuranceBook) MarkCredited(key event.FlightKey) {
	if f := b.flights.flights[key]; f != nil {
		f.Credited = true
	}
}
