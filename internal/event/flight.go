package event

import "fmt"

// StatusCode is the oracle-reported state of a flight.
type StatusCode uint8

const (
	StatusUnknown       StatusCode = 0
	StatusOnTime        StatusCode = 10
	StatusLateAirline   StatusCode = 20
	StatusLateWeather   StatusCode = 30
	StatusLateTechnical StatusCode = 40
	StatusLateOther     StatusCode = 50
)

// Valid reports whether s is one of the defined status codes.
func (s StatusCode) Valid() bool {
	switch s {
	case StatusUnknown, StatusOnTime, StatusLateAirline, StatusLateWeather, StatusLateTechnical, StatusLateOther:
		return true
	}
	return false
}

func (s StatusCode) String() string {
	switch s {
	case StatusUnknown:
		return "Unknown"
	case StatusOnTime:
		return "OnTime"
	case StatusLateAirline:
		return "LateAirline"
	case StatusLateWeather:
		return "LateWeather"
	case StatusLateTechnical:
		return "LateTechnical"
	case StatusLateOther:
		return "LateOther"
	default:
		return fmt.Sprintf("StatusCode(%d)", uint8(s))
	}
}

// FlightKey is the composite identity of a flight. The airline owns it.
type FlightKey struct {
	Airline   Address `json:"airline"`
	Code      string  `json:"code"`
	Departure int64   `json:"departure"` // unix seconds
}

func (k FlightKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Airline, k.Code, k.Departure)
}
