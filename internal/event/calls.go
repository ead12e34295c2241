package event

// SetOperatingStatus pauses or resumes every mutating operation. Owner only.
type SetOperatingStatus struct {
	CallMeta
	Operational bool `json:"operational"`
}

func (c *SetOperatingStatus) CallType() CallType { return CallTypeSetOperatingStatus }

// AuthorizeCaller grants (or with Revoke, withdraws) ledger access to Target. Owner only.
type AuthorizeCaller struct {
	CallMeta
	Target Address `json:"target"`
	Revoke bool    `json:"revoke"`
}

func (c *AuthorizeCaller) CallType() CallType { return CallTypeAuthorizeCaller }

// RegisterAirline registers Candidate directly during bootstrap, or casts the
// caller's vote for it once enough airlines are funded.
type RegisterAirline struct {
	CallMeta
	Name      string  `json:"name"`
	Candidate Address `json:"candidate"`
}

func (c *RegisterAirline) CallType() CallType { return CallTypeRegisterAirline }

// FundAirline pays the seed funding. Payable.
type FundAirline struct {
	CallMeta
}

func (c *FundAirline) CallType() CallType { return CallTypeFundAirline }

// RegisterFlight creates a flight owned by the calling airline.
type RegisterFlight struct {
	CallMeta
	FlightCode string `json:"flight_code"`
	Departure  int64  `json:"departure"`
}

func (c *RegisterFlight) CallType() CallType { return CallTypeRegisterFlight }

// Key returns the flight key owned by the caller.
func (c *RegisterFlight) Key() FlightKey {
	return FlightKey{Airline: c.Caller, Code: c.FlightCode, Departure: c.Departure}
}

// BuyInsurance purchases a policy on Flight at the fixed premium. Payable.
type BuyInsurance struct {
	CallMeta
	Flight FlightKey `json:"flight"`
}

func (c *BuyInsurance) CallType() CallType { return CallTypeBuyInsurance }

// FetchFlightStatus opens an oracle request for Flight.
type FetchFlightStatus struct {
	CallMeta
	Flight FlightKey `json:"flight"`
}

func (c *FetchFlightStatus) CallType() CallType { return CallTypeFetchFlightStatus }

// RegisterOracle enrolls the caller as an oracle. Payable.
type RegisterOracle struct {
	CallMeta
}

func (c *RegisterOracle) CallType() CallType { return CallTypeRegisterOracle }

// SubmitOracleResponse is one oracle's vote on an open request.
type SubmitOracleResponse struct {
	CallMeta
	Index      uint8      `json:"index"`
	Flight     FlightKey  `json:"flight"`
	StatusCode StatusCode `json:"status_code"`
}

func (c *SubmitOracleResponse) CallType() CallType { return CallTypeSubmitOracleResponse }

// CreditInsurees pays out every insured passenger of a LateAirline flight. Owner only.
type CreditInsurees struct {
	CallMeta
	Flight FlightKey `json:"flight"`
}

func (c *CreditInsurees) CallType() CallType { return CallTypeCreditInsurees }

// PayInsuree withdraws the caller's accumulated credit.
type PayInsuree struct {
	CallMeta
}

func (c *PayInsuree) CallType() CallType { return CallTypePayInsuree }
