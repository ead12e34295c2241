package core

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"FlightSurety/internal/ledger"
	"FlightSurety/internal/oracle"
	"FlightSurety/internal/state"
)

// Read-only views. They never fail on a paused system.

// AirlineView is the public form of an airline.
type AirlineView struct {
	Address event.Address `json:"address"`
	Name    string        `json:"name"`
	State   string        `json:"state"`
	Funding int64         `json:"funding"`
	Votes   int           `json:"votes"`
}

// FlightView is the public form of a flight.
type FlightView struct {
	Key          event.FlightKey  `json:"key"`
	Status       event.StatusCode `json:"status"`
	StatusName   string           `json:"status_name"`
	RegisteredAt int64            `json:"registered_at"`
	UpdatedAt    int64            `json:"updated_at"`
	Credited     bool             `json:"credited"`
	Insured      int              `json:"insured"`
}

func (e *Engine) IsOperational() bool {
	return e.treasury.IsOperational()
}

// GetFunds returns the airline pool balance (totalFunds).
func (e *Engine) GetFunds() int64 {
	return e.balanceTracker.PoolBalance()
}

// OracleFees returns the collected oracle registration fees.
func (e *Engine) OracleFees() int64 {
	return e.balanceTracker.GetBalance(ledger.OracleFeeAccount())
}

// GetPassengerBalance returns the withdrawable credit of passenger.
func (e *Engine) GetPassengerBalance(passenger event.Address) int64 {
	return e.balanceTracker.PassengerCredit(passenger)
}

func (e *Engine) IsAuthorized(id event.Address) bool {
	return e.treasury.IsAuthorized(id)
}

func (e *Engine) IsAirlineRegistered(addr event.Address) bool {
	return e.airlines.IsRegistered(addr)
}

func (e *Engine) IsAirlineFunded(addr event.Address) bool {
	return e.airlines.IsFunded(addr)
}

// TotalAirlines counts registered and funded airlines.
func (e *Engine) TotalAirlines() int {
	return e.airlines.TotalAirlines()
}

func (e *Engine) FundedCount() int {
	return e.airlines.FundedCount()
}

// Airline returns the airline or ErrNotRegistered if it was never referenced.
func (e *Engine) Airline(addr event.Address) (AirlineView, error) {
	a := e.airlines.Get(addr)
	if a == nil {
		return AirlineView{}, errs.ErrNotRegistered.With("airline %s", addr)
	}
	return airlineView(a), nil
}

// Airlines lists every known airline in creation order.
func (e *Engine) Airlines() []AirlineView {
	all := e.airlines.Airlines()
	out := make([]AirlineView, 0, len(all))
	for _, a := range all {
		out = append(out, airlineView(a))
	}
	return out
}

func (e *Engine) IsFlightRegistered(key event.FlightKey) bool {
	return e.flights.IsRegistered(key)
}

// CheckFlightStatus returns the finalized status of a flight, or Unknown.
func (e *Engine) CheckFlightStatus(key event.FlightKey) (event.StatusCode, error) {
	f, err := e.flights.Lookup(key)
	if err != nil {
		return event.StatusUnknown, err
	}
	return f.Status, nil
}

// Flight returns one flight.
func (e *Engine) Flight(key event.FlightKey) (FlightView, error) {
	f, err := e.flights.Lookup(key)
	if err != nil {
		return FlightView{}, err
	}
	return flightView(f), nil
}

// Flights lists every flight in registration order.
func (e *Engine) Flights() []FlightView {
	all := e.flights.Flights()
	out := make([]FlightView, 0, len(all))
	for _, f := range all {
		out = append(out, flightView(f))
	}
	return out
}

// InsuredPassengers returns the insured list of a flight in purchase order.
func (e *Engine) InsuredPassengers(key event.FlightKey) ([]event.Address, error) {
	return e.insurance.InsuredPassengers(key)
}

// MyIndexes returns the indices assigned to a registered oracle.
func (e *Engine) MyIndexes(caller event.Address) ([oracle.IndexCount]uint8, error) {
	return e.oracles.Indexes(caller)
}

func (e *Engine) OracleCount() int {
	return e.oracles.OracleCount()
}

func airlineView(a *state.Airline) AirlineView {
	return AirlineView{
		Address: a.Address,
		Name:    a.Name,
		State:   a.State.String(),
		Funding: a.Funding,
		Votes:   a.VoteCount(),
	}
}

func flightView(f *state.Flight) FlightView {
	return FlightView{
		Key:          f.Key,
		Status:       f.Status,
		StatusName:   f.Status.String(),
		RegisteredAt: f.RegisteredAt,
		UpdatedAt:    f.UpdatedAt,
		Credited:     f.Credited,
		Insured:      len(f.InsuredPassengers()),
	}
}
