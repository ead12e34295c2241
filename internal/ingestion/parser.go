package ingestion

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	fpmath "FlightSurety/internal/math"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CallSubjectPrefix is the subject namespace for inbound calls; the last
// token names the call type, e.g. flightsurety.calls.BuyInsurance.
const CallSubjectPrefix = "flightsurety.calls."

// CallTypeFromSubject extracts the call type from an inbound subject.
func CallTypeFromSubject(subject string) (event.CallType, error) {
	name, ok := strings.CutPrefix(subject, CallSubjectPrefix)
	if !ok {
		return event.CallTypeUnknown, fmt.Errorf("subject %q outside %s>", subject, CallSubjectPrefix)
	}
	ct, ok := event.ParseCallType(name)
	if !ok {
		return event.CallTypeUnknown, fmt.Errorf("subject %q: unknown call type %q", subject, name)
	}
	return ct, nil
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers. Amounts are
// decimal strings ("1.5") so no producer has to know the fixed-point scale.

type metaJSON struct {
	CallID      string `json:"call_id"`
	Caller      string `json:"caller"`
	Value       string `json:"value,omitempty"`
	TimestampUs int64  `json:"timestamp_us"`
}

type flightJSON struct {
	Airline   string `json:"airline"`
	Code      string `json:"code"`
	Departure int64  `json:"departure"`
}

type callJSON struct {
	metaJSON
	Operational *bool       `json:"operational,omitempty"`
	Target      string      `json:"target,omitempty"`
	Revoke      bool        `json:"revoke,omitempty"`
	Name        string      `json:"name,omitempty"`
	Candidate   string      `json:"candidate,omitempty"`
	FlightCode  string      `json:"flight_code,omitempty"`
	Departure   int64       `json:"departure,omitempty"`
	Flight      *flightJSON `json:"flight,omitempty"`
	Index       *uint8      `json:"index,omitempty"`
	StatusCode  *uint8      `json:"status_code,omitempty"`
}

func malformed(format string, args ...interface{}) error {
	return errs.ErrInvalidCallPayload.With(format, args...)
}

func (m metaJSON) parse() (event.CallMeta, error) {
	var meta event.CallMeta
	id, err := uuid.Parse(m.CallID)
	if err != nil {
		return meta, malformed("call_id: %v", err)
	}
	caller, err := event.ParseAddress(m.Caller)
	if err != nil {
		return meta, malformed("caller: %v", err)
	}
	if m.TimestampUs <= 0 {
		return meta, malformed("timestamp_us is required")
	}
	var value int64
	if m.Value != "" {
		if value, err = fpmath.ParseAmount(m.Value); err != nil {
			return meta, malformed("value: %v", err)
		}
	}
	return event.CallMeta{
		CallID:    id,
		Caller:    caller,
		Value:     value,
		Timestamp: time.UnixMicro(m.TimestampUs).UTC(),
	}, nil
}

func (f *flightJSON) parse() (event.FlightKey, error) {
	if f == nil {
		return event.FlightKey{}, malformed("flight is required")
	}
	airline, err := event.ParseAddress(f.Airline)
	if err != nil {
		return event.FlightKey{}, malformed("flight.airline: %v", err)
	}
	if f.Code == "" {
		return event.FlightKey{}, malformed("flight.code is required")
	}
	return event.FlightKey{Airline: airline, Code: f.Code, Departure: f.Departure}, nil
}

// ParseCall converts a wire payload into a typed call. Every failure is an
// ErrInvalidCallPayload: redelivering the same bytes cannot succeed.
func ParseCall(ct event.CallType, data []byte) (event.Call, error) {
	var j callJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, malformed("parse %s: %v", ct, err)
	}
	meta, err := j.metaJSON.parse()
	if err != nil {
		return nil, err
	}

	switch ct {
	case event.CallTypeSetOperatingStatus:
		if j.Operational == nil {
			return nil, malformed("operational is required")
		}
		return &event.SetOperatingStatus{CallMeta: meta, Operational: *j.Operational}, nil

	case event.CallTypeAuthorizeCaller:
		target, err := event.ParseAddress(j.Target)
		if err != nil {
			return nil, malformed("target: %v", err)
		}
		return &event.AuthorizeCaller{CallMeta: meta, Target: target, Revoke: j.Revoke}, nil

	case event.CallTypeRegisterAirline:
		candidate, err := event.ParseAddress(j.Candidate)
		if err != nil {
			return nil, malformed("candidate: %v", err)
		}
		return &event.RegisterAirline{CallMeta: meta, Name: j.Name, Candidate: candidate}, nil

	case event.CallTypeFundAirline:
		return &event.FundAirline{CallMeta: meta}, nil

	case event.CallTypeRegisterFlight:
		if j.FlightCode == "" {
			return nil, malformed("flight_code is required")
		}
		return &event.RegisterFlight{CallMeta: meta, FlightCode: j.FlightCode, Departure: j.Departure}, nil

	case event.CallTypeBuyInsurance, event.CallTypeFetchFlightStatus, event.CallTypeCreditInsurees:
		flight, err := j.Flight.parse()
		if err != nil {
			return nil, err
		}
		switch ct {
		case event.CallTypeBuyInsurance:
			return &event.BuyInsurance{CallMeta: meta, Flight: flight}, nil
		case event.CallTypeFetchFlightStatus:
			return &event.FetchFlightStatus{CallMeta: meta, Flight: flight}, nil
		default:
			return &event.CreditInsurees{CallMeta: meta, Flight: flight}, nil
		}

	case event.CallTypeRegisterOracle:
		return &event.RegisterOracle{CallMeta: meta}, nil

	case event.CallTypeSubmitOracleResponse:
		flight, err := j.Flight.parse()
		if err != nil {
			return nil, err
		}
		if j.Index == nil || j.StatusCode == nil {
			return nil, malformed("index and status_code are required")
		}
		return &event.SubmitOracleResponse{
			CallMeta:   meta,
			Index:      *j.Index,
			Flight:     flight,
			StatusCode: event.StatusCode(*j.StatusCode),
		}, nil

	case event.CallTypePayInsuree:
		return &event.PayInsuree{CallMeta: meta}, nil

	default:
		return nil, malformed("unknown call type %s", ct)
	}
}
