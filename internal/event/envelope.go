package event

import (
	"time"

	"github.com/google/uuid"
)

// CallType discriminator for call payloads
type CallType int32

const (
	CallTypeUnknown CallType = iota
	CallTypeSetOperatingStatus
	CallTypeAuthorizeCaller
	CallTypeRegisterAirline
	CallTypeFundAirline
	CallTypeRegisterFlight
	CallTypeBuyInsurance
	CallTypeFetchFlightStatus
	CallTypeRegisterOracle
	CallTypeSubmitOracleResponse
	CallTypeCreditInsurees
	CallTypePayInsuree
)

// AllCallTypes lists every call type that may be submitted to the engine.
var AllCallTypes = []CallType{
	CallTypeSetOperatingStatus,
	CallTypeAuthorizeCaller,
	CallTypeRegisterAirline,
	CallTypeFundAirline,
	CallTypeRegisterFlight,
	CallTypeBuyInsurance,
	CallTypeFetchFlightStatus,
	CallTypeRegisterOracle,
	CallTypeSubmitOracleResponse,
	CallTypeCreditInsurees,
	CallTypePayInsuree,
}

func (ct CallType) String() string {
	switch ct {
	case CallTypeSetOperatingStatus:
		return "SetOperatingStatus"
	case CallTypeAuthorizeCaller:
		return "AuthorizeCaller"
	case CallTypeRegisterAirline:
		return "RegisterAirline"
	case CallTypeFundAirline:
		return "FundAirline"
	case CallTypeRegisterFlight:
		return "RegisterFlight"
	case CallTypeBuyInsurance:
		return "BuyInsurance"
	case CallTypeFetchFlightStatus:
		return "FetchFlightStatus"
	case CallTypeRegisterOracle:
		return "RegisterOracle"
	case CallTypeSubmitOracleResponse:
		return "SubmitOracleResponse"
	case CallTypeCreditInsurees:
		return "CreditInsurees"
	case CallTypePayInsuree:
		return "PayInsuree"
	default:
		return "Unknown"
	}
}

// ParseCallType is the inverse of CallType.String.
func ParseCallType(s string) (CallType, bool) {
	for _, ct := range AllCallTypes {
		if ct.String() == s {
			return ct, true
		}
	}
	return CallTypeUnknown, false
}

// Call is the interface all state-mutating operations implement.
type Call interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// CallType returns the discriminator
	CallType() CallType

	// Sender returns the identity the call is executed as
	Sender() Address

	// Payment returns the value attached to the call (zero if not payable)
	Payment() int64

	// CallTimestamp returns the versioned input timestamp
	CallTimestamp() time.Time
}

// CallMeta carries the fields shared by every call.
type CallMeta struct {
	CallID    uuid.UUID `json:"call_id"`
	Caller    Address   `json:"caller"`
	Value     int64     `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

func (m CallMeta) IdempotencyKey() string {
	return m.CallID.String()
}

func (m CallMeta) Sender() Address {
	return m.Caller
}

func (m CallMeta) Payment() int64 {
	return m.Value
}

func (m CallMeta) CallTimestamp() time.Time {
	return m.Timestamp
}

// NewMeta builds call metadata with a fresh call ID.
func NewMeta(caller Address, value int64, ts time.Time) CallMeta {
	return CallMeta{
		CallID:    uuid.New(),
		Caller:    caller,
		Value:     value,
		Timestamp: ts,
	}
}

// CallEnvelope wraps every applied call in the log
type CallEnvelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Stable idempotency key from the submitter
	IdempotencyKey string

	// Call type discriminator
	CallType CallType

	// Identity the call executed as
	Caller Address

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// SHA-256 of state AFTER applying this call
	StateHash [32]byte

	// Previous call's state hash (chain integrity)
	PrevHash [32]byte
}
