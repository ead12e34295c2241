package event

import (
	"encoding/json"
	"fmt"
)

// NewCall returns an empty call of the given type.
func NewCall(ct CallType) (Call, error) {
	switch ct {
	case CallTypeSetOperatingStatus:
		return &SetOperatingStatus{}, nil
	case CallTypeAuthorizeCaller:
		return &AuthorizeCaller{}, nil
	case CallTypeRegisterAirline:
		return &RegisterAirline{}, nil
	case CallTypeFundAirline:
		return &FundAirline{}, nil
	case CallTypeRegisterFlight:
		return &RegisterFlight{}, nil
	case CallTypeBuyInsurance:
		return &BuyInsurance{}, nil
	case CallTypeFetchFlightStatus:
		return &FetchFlightStatus{}, nil
	case CallTypeRegisterOracle:
		return &RegisterOracle{}, nil
	case CallTypeSubmitOracleResponse:
		return &SubmitOracleResponse{}, nil
	case CallTypeCreditInsurees:
		return &CreditInsurees{}, nil
	case CallTypePayInsuree:
		return &PayInsuree{}, nil
	default:
		return nil, fmt.Errorf("unknown call type %d", ct)
	}
}

// EncodeCall serializes a call for the event log. The call type is stored
// alongside, not inside, the payload.
func EncodeCall(c Call) ([]byte, error) {
	return json.Marshal(c)
}

// DecodeCall is the inverse of EncodeCall.
func DecodeCall(ct CallType, data []byte) (Call, error) {
	c, err := NewCall(ct)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ct, err)
	}
	return c, nil
}

// ParseNotificationType is the inverse of NotificationType.String.
func ParseNotificationType(s string) (NotificationType, bool) {
	for nt := NotificationOperatingStatusChanged; nt <= NotificationInsureePaid; nt++ {
		if nt.String() == s {
			return nt, true
		}
	}
	return NotificationUnknown, false
}

func newNotification(nt NotificationType) (Notification, error) {
	switch nt {
	case NotificationOperatingStatusChanged:
		return &OperatingStatusChanged{}, nil
	case NotificationCallerAuthorized:
		return &CallerAuthorized{}, nil
	case NotificationAirlineVoteCast:
		return &AirlineVoteCast{}, nil
	case NotificationAirlineRegistered:
		return &AirlineRegistered{}, nil
	case NotificationAirlineFunded:
		return &AirlineFunded{}, nil
	case NotificationFlightRegistered:
		return &FlightRegistered{}, nil
	case NotificationInsurancePurchased:
		return &InsurancePurchased{}, nil
	case NotificationOracleRegistered:
		return &OracleRegistered{}, nil
	case NotificationOracleRequest:
		return &OracleRequest{}, nil
	case NotificationOracleReport:
		return &OracleReport{}, nil
	case NotificationFlightStatusUpdated:
		return &FlightStatusUpdated{}, nil
	case NotificationInsureeCredited:
		return &InsureeCredited{}, nil
	case NotificationInsureePaid:
		return &InsureePaid{}, nil
	default:
		return nil, fmt.Errorf("unknown notification type %d", nt)
	}
}

// DecodeNotification decodes a stored notification payload. The result is
// a value, not a pointer, so it compares equal to what the engine emitted.
func DecodeNotification(nt NotificationType, data []byte) (Notification, error) {
	n, err := newNotification(nt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, n); err != nil {
		return nil, fmt.Errorf("decode %s: %w", nt, err)
	}
	switch v := n.(type) {
	case *OperatingStatusChanged:
		return *v, nil
	case *CallerAuthorized:
		return *v, nil
	case *AirlineVoteCast:
		return *v, nil
	case *AirlineRegistered:
		return *v, nil
	case *AirlineFunded:
		return *v, nil
	case *FlightRegistered:
		return *v, nil
	case *InsurancePurchased:
		return *v, nil
	case *OracleRegistered:
		return *v, nil
	case *OracleRequest:
		return *v, nil
	case *OracleReport:
		return *v, nil
	case *FlightStatusUpdated:
		return *v, nil
	case *InsureeCredited:
		return *v, nil
	case *InsureePaid:
		return *v, nil
	}
	return n, nil
}
