package core

import (
	"FlightSurety/internal/event"
	fpmath "FlightSurety/internal/math"
	"fmt"
)

// Params fixes the economics and governance rules at genesis. They never
// change afterwards.
type Params struct {
	SeedFunding    int64 // minimum fund() payment
	Premium        int64 // exact buy() payment
	OracleFee      int64 // minimum registerOracle() payment
	PayoutNum      int64 // payout = premium * PayoutNum / PayoutDen
	PayoutDen      int64
	BootstrapCount int   // airlines admitted without votes while fewer are funded
	OracleQuorum   int   // matching responses needed to finalize a status
	IndexDomain    uint8 // oracle indices are drawn from [0, IndexDomain)
}

func DefaultParams() Params {
	return Params{
		SeedFunding:    fpmath.Units(10),
		Premium:        fpmath.Units(1),
		OracleFee:      fpmath.Units(1),
		PayoutNum:      3,
		PayoutDen:      2,
		BootstrapCount: 4,
		OracleQuorum:   3,
		IndexDomain:    10,
	}
}

func (p Params) Validate() error {
	switch {
	case p.SeedFunding <= 0:
		return fmt.Errorf("seed funding must be positive")
	case p.Premium <= 0:
		return fmt.Errorf("premium must be positive")
	case p.OracleFee < 0:
		return fmt.Errorf("oracle fee must not be negative")
	case p.PayoutNum <= 0 || p.PayoutDen <= 0:
		return fmt.Errorf("payout multiplier %d/%d must be positive", p.PayoutNum, p.PayoutDen)
	case p.BootstrapCount < 1:
		return fmt.Errorf("bootstrap count must be at least 1")
	case p.OracleQuorum < 1:
		return fmt.Errorf("oracle quorum must be at least 1")
	}
	return nil
}

// DefaultAppID is the identity the ledger authorizes at genesis when none
// is configured.
var DefaultAppID = event.AddressFromBytes([]byte("FlightSuretyApp"))

// Genesis is the initial state of the registry.
type Genesis struct {
	Owner                event.Address
	AppID                event.Address // authorized on the ledger at genesis
	FirstAirline         event.Address
	FirstAirlineName     string
	AutoFundFirstAirline bool
	Params               Params
}

func (g Genesis) Validate() error {
	if g.Owner.IsZero() {
		return fmt.Errorf("genesis owner is required")
	}
	if g.FirstAirline.IsZero() {
		return fmt.Errorf("genesis first airline is required")
	}
	return g.Params.Validate()
}
