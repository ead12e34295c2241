package testutil

import (
	"FlightSurety/internal/core"
	"FlightSurety/internal/event"
	fpmath "FlightSurety/internal/math"
	"FlightSurety/internal/oracle"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Addr returns a deterministic test address.
func Addr(n int) event.Address {
	return event.MustParseAddress(fmt.Sprintf("0x%040x", n))
}

var (
	Owner      = Addr(0xa1)
	Airline    = Addr(0x11)
	Passenger1 = Addr(0xb1)
	Passenger2 = Addr(0xb2)
)

func OracleAddr(n int) event.Address { return Addr(0x100 + n) }

func Genesis() core.Genesis {
	return core.Genesis{
		Owner:            Owner,
		FirstAirline:     Airline,
		FirstAirlineName: "Udacity Air",
		Params:           core.DefaultParams(),
	}
}

// Scenario drives an engine with static oracle indexes and deterministic
// call IDs and timestamps, collecting every persisted output.
type Scenario struct {
	T       *testing.T
	Engine  *core.Engine
	Wallet  *core.WalletPayer
	Persist chan core.CoreOutput
	clock   int64
}

func NewScenario(t *testing.T) *Scenario {
	t.Helper()
	s := &Scenario{
		T:       t,
		Wallet:  core.NewWalletPayer(),
		Persist: make(chan core.CoreOutput, 4096),
	}
	eng, err := core.NewEngine(core.EngineConfig{
		Genesis:     Genesis(),
		Entropy:     oracle.StaticEntropy{},
		Payer:       s.Wallet,
		PersistChan: s.Persist,
	})
	require.NoError(t, err)
	s.Engine = eng
	return s
}

// Meta builds call metadata; call IDs are derived from the clock so two
// scenarios issue identical calls.
func (s *Scenario) Meta(caller event.Address, value int64) event.CallMeta {
	s.clock++
	return event.CallMeta{
		CallID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("call-%d", s.clock))),
		Caller:    caller,
		Value:     value,
		Timestamp: time.Unix(1_700_000_000+s.clock, 0).UTC(),
	}
}

func (s *Scenario) Exec(call event.Call) *core.Receipt {
	s.T.Helper()
	r, err := s.Engine.Execute(call)
	require.NoError(s.T, err, "%s", call.CallType())
	return r
}

// Flight is the flight registered by Settled.
func Flight() event.FlightKey {
	return event.FlightKey{Airline: Airline, Code: "ND1309", Departure: 1_700_000_000}
}

// Settled runs the full lifecycle: fund, register a flight, two purchases,
// three oracles reporting LateAirline, credit, and one payout to Passenger1.
func (s *Scenario) Settled() {
	s.T.Helper()
	f := Flight()
	s.Exec(&event.FundAirline{CallMeta: s.Meta(Airline, fpmath.Units(10))})
	s.Exec(&event.RegisterFlight{CallMeta: s.Meta(Airline, 0), FlightCode: f.Code, Departure: f.Departure})
	s.Exec(&event.BuyInsurance{CallMeta: s.Meta(Passenger1, fpmath.Units(1)), Flight: f})
	s.Exec(&event.BuyInsurance{CallMeta: s.Meta(Passenger2, fpmath.Units(1)), Flight: f})
	for i := 1; i <= 3; i++ {
		s.Exec(&event.RegisterOracle{CallMeta: s.Meta(OracleAddr(i), fpmath.Units(1))})
	}
	s.Exec(&event.FetchFlightStatus{CallMeta: s.Meta(Passenger1, 0), Flight: f})
	for i := 1; i <= 3; i++ {
		s.Exec(&event.SubmitOracleResponse{
			CallMeta:   s.Meta(OracleAddr(i), 0),
			Index:      0,
			Flight:     f,
			StatusCode: event.StatusLateAirline,
		})
	}
	s.Exec(&event.CreditInsurees{CallMeta: s.Meta(Owner, 0), Flight: f})
	s.Exec(&event.PayInsuree{CallMeta: s.Meta(Passenger1, 0)})
}

// Drain returns every output persisted so far.
func (s *Scenario) Drain() []core.CoreOutput {
	var outputs []core.CoreOutput
	for {
		select {
		case o := <-s.Persist:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}
