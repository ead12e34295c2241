package event

// NotificationType discriminator for emitted notifications
type NotificationType int32

const (
	NotificationUnknown NotificationType = iota
	NotificationOperatingStatusChanged
	NotificationCallerAuthorized
	NotificationAirlineVoteCast
	NotificationAirlineRegistered
	NotificationAirlineFunded
	NotificationFlightRegistered
	NotificationInsurancePurchased
	NotificationOracleRegistered
	NotificationOracleRequest
	NotificationOracleReport
	NotificationFlightStatusUpdated
	NotificationInsureeCredited
	NotificationInsureePaid
)

func (nt NotificationType) String() string {
	switch nt {
	case NotificationOperatingStatusChanged:
		return "OperatingStatusChanged"
	case NotificationCallerAuthorized:
		return "CallerAuthorized"
	case NotificationAirlineVoteCast:
		return "AirlineVoteCast"
	case NotificationAirlineRegistered:
		return "AirlineRegistered"
	case NotificationAirlineFunded:
		return "AirlineFunded"
	case NotificationFlightRegistered:
		return "FlightRegistered"
	case NotificationInsurancePurchased:
		return "InsurancePurchased"
	case NotificationOracleRegistered:
		return "OracleRegistered"
	case NotificationOracleRequest:
		return "OracleRequest"
	case NotificationOracleReport:
		return "OracleReport"
	case NotificationFlightStatusUpdated:
		return "FlightStatusUpdated"
	case NotificationInsureeCredited:
		return "InsureeCredited"
	case NotificationInsureePaid:
		return "InsureePaid"
	default:
		return "Unknown"
	}
}

// Notification is the interface every emitted notification payload implements.
type Notification interface {
	NotificationType() NotificationType
}

type OperatingStatusChanged struct {
	Operational bool `json:"operational"`
}

func (OperatingStatusChanged) NotificationType() NotificationType {
	return NotificationOperatingStatusChanged
}

type CallerAuthorized struct {
	Target     Address `json:"target"`
	Authorized bool    `json:"authorized"`
}

func (CallerAuthorized) NotificationType() NotificationType { return NotificationCallerAuthorized }

// AirlineVoteCast is emitted when a vote is recorded but quorum is not yet reached.
type AirlineVoteCast struct {
	Candidate Address `json:"candidate"`
	Voter     Address `json:"voter"`
	Votes     int     `json:"votes"`
	Required  int     `json:"required"`
}

func (AirlineVoteCast) NotificationType() NotificationType { return NotificationAirlineVoteCast }

type AirlineRegistered struct {
	Airline Address `json:"airline"`
	Name    string  `json:"name"`
	Votes   int     `json:"votes"`
}

func (AirlineRegistered) NotificationType() NotificationType { return NotificationAirlineRegistered }

type AirlineFunded struct {
	Airline Address `json:"airline"`
	Amount  int64   `json:"amount"`
}

func (AirlineFunded) NotificationType() NotificationType { return NotificationAirlineFunded }

type FlightRegistered struct {
	Flight FlightKey `json:"flight"`
}

func (FlightRegistered) NotificationType() NotificationType { return NotificationFlightRegistered }

type InsurancePurchased struct {
	Flight    FlightKey `json:"flight"`
	Passenger Address   `json:"passenger"`
	Premium   int64     `json:"premium"`
}

func (InsurancePurchased) NotificationType() NotificationType {
	return NotificationInsurancePurchased
}

type OracleRegistered struct {
	Oracle  Address  `json:"oracle"`
	Indexes [3]uint8 `json:"indexes"`
}

func (OracleRegistered) NotificationType() NotificationType { return NotificationOracleRegistered }

// OracleRequest asks every oracle holding Index to report on Flight.
type OracleRequest struct {
	RequestID string    `json:"request_id"`
	Index     uint8     `json:"index"`
	Flight    FlightKey `json:"flight"`
}

func (OracleRequest) NotificationType() NotificationType { return NotificationOracleRequest }

type OracleReport struct {
	RequestID  string     `json:"request_id"`
	Index      uint8      `json:"index"`
	Flight     FlightKey  `json:"flight"`
	Oracle     Address    `json:"oracle"`
	StatusCode StatusCode `json:"status_code"`
	Votes      int        `json:"votes"`
}

func (OracleReport) NotificationType() NotificationType { return NotificationOracleReport }

type FlightStatusUpdated struct {
	RequestID  string     `json:"request_id"`
	Flight     FlightKey  `json:"flight"`
	StatusCode StatusCode `json:"status_code"`
}

func (FlightStatusUpdated) NotificationType() NotificationType {
	return NotificationFlightStatusUpdated
}

type InsureeCredited struct {
	Flight    FlightKey `json:"flight"`
	Passenger Address   `json:"passenger"`
	Amount    int64     `json:"amount"`
}

func (InsureeCredited) NotificationType() NotificationType { return NotificationInsureeCredited }

type InsureePaid struct {
	Passenger Address `json:"passenger"`
	Amount    int64   `json:"amount"`
}

func (InsureePaid) NotificationType() NotificationType { return NotificationInsureePaid }
