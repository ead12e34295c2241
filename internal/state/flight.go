package state

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
)

// Flight is created by registerFlight and never deleted.
type Flight struct {
	Key          event.FlightKey
	Status       event.StatusCode
	RegisteredAt int64 // call timestamp, epoch microseconds
	UpdatedAt    int64 // last status change, epoch microseconds
	Credited     bool  // creditInsurees already ran with effect

	insured    []event.Address // purchase order
	insuredSet map[event.Address]struct{}
}

// InsuredPassengers returns a copy of the insured list in purchase order.
func (f *Flight) InsuredPassengers() []event.Address {
	out := make([]event.Address, len(f.insured))
	copy(out, f.insured)
	return out
}

func (f *Flight) IsInsured(passenger event.Address) bool {
	_, ok := f.insuredSet[passenger]
	return ok
}

func (f *Flight) addInsured(passenger event.Address) {
	f.insured = append(f.insured, passenger)
	f.insuredSet[passenger] = struct{}{}
}

// CanonicalBytes returns deterministic serialization for hashing
func (f *Flight) CanonicalBytes() []byte {
	buf := make([]byte, 0, 96+len(f.insured)*event.AddressLength)

	buf = appendFlightKey(buf, f.Key)
	buf = append(buf, byte(f.Status))
	buf = appendInt64LE(buf, f.RegisteredAt)
	buf = appendInt64LE(buf, f.UpdatedAt)
	buf = appendBool(buf, f.Credited)

	// insured (count-prefixed, purchase order)
	buf = appendInt64LE(buf, int64(len(f.insured)))
	for _, p := range f.insured {
		buf = append(buf, p[:]...)
	}

	return buf
}

// FlightRegistry holds flight existence and status, keyed by
// (airline, flight code, departure).
type FlightRegistry struct {
	flights map[event.FlightKey]*Flight
	order   []event.FlightKey // registration order
}

func NewFlightRegistry() *FlightRegistry {
	return &FlightRegistry{
		flights: make(map[event.FlightKey]*Flight),
	}
}

// Register creates a flight with status Unknown and no passengers.
func (r *FlightRegistry) Register(key event.FlightKey, timestamp int64) (*Flight, error) {
	if key.Code == "" {
		return nil, errs.ErrInvalidCallPayload.With("flight code is empty")
	}
	if _, ok := r.flights[key]; ok {
		return nil, errs.ErrDuplicateFlight.With("flight %s", key)
	}
	f := &Flight{
		Key:          key,
		Status:       event.StatusUnknown,
		RegisteredAt: timestamp,
		insuredSet:   make(map[event.Address]struct{}),
	}
	r.flights[key] = f
	r.order = append(r.order, key)
	return f, nil
}

// Get returns the flight or nil.
func (r *FlightRegistry) Get(key event.FlightKey) *Flight {
	return r.flights[key]
}

// Lookup returns the flight or ErrUnknownFlight.
func (r *FlightRegistry) Lookup(key event.FlightKey) (*Flight, error) {
	f := r.flights[key]
	if f == nil {
		return nil, errs.ErrUnknownFlight.With("flight %s", key)
	}
	return f, nil
}

func (r *FlightRegistry) IsRegistered(key event.FlightKey) bool {
	_, ok := r.flights[key]
	return ok
}

// Status returns the flight's status code, Unknown for absent flights.
func (r *FlightRegistry) Status(key event.FlightKey) event.StatusCode {
	if f := r.flights[key]; f != nil {
		return f.Status
	}
	return event.StatusUnknown
}

// CheckFinalize validates a finalize without mutating anything. It reports
// whether applying it would change the stored status.
func (r *FlightRegistry) CheckFinalize(key event.FlightKey, status event.StatusCode) (bool, error) {
	f, err := r.Lookup(key)
	if err != nil {
		return false, err
	}
	if !status.Valid() {
		return false, errs.ErrInvalidStatusCode.With("status %d", uint8(status))
	}
	if f.Status == status {
		return false, nil
	}
	if f.Status != event.StatusUnknown {
		return false, errs.ErrStatusFinalized.With("flight %s is %s", key, f.Status)
	}
	return true, nil
}

// FinalizeStatus writes the quorum status once. Re-finalizing with the same
// status is a no-op; a different status on a decided flight is rejected.
func (r *FlightRegistry) FinalizeStatus(key event.FlightKey, status event.StatusCode, timestamp int64) (bool, error) {
	changed, err := r.CheckFinalize(key, status)
	if err != nil || !changed {
		return false, err
	}
	f := r.flights[key]
	f.Status = status
	f.UpdatedAt = timestamp
	return true, nil
}

// Flights returns every flight in registration order.
func (r *FlightRegistry) Flights() []*Flight {
	out := make([]*Flight, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.flights[k])
	}
	return out
}

// AppendCanonical appends the registry's hashing bytes to buf.
func (r *FlightRegistry) AppendCanonical(buf []byte) []byte {
	buf = appendInt64LE(buf, int64(len(r.order)))
	for _, k := range r.order {
		buf = append(buf, r.flights[k].CanonicalBytes()...)
	}
	return buf
}

// FlightRecord is the snapshot form of a Flight.
type FlightRecord struct {
	Key          event.FlightKey  `json:"key"`
	Status       event.StatusCode `json:"status"`
	RegisteredAt int64            `json:"registered_at"`
	UpdatedAt    int64            `json:"updated_at"`
	Credited     bool             `json:"credited"`
	Insured      []event.Address  `json:"insured,omitempty"`
}

// Records exports the registry in registration order.
func (r *FlightRegistry) Records() []FlightRecord {
	out := make([]FlightRecord, 0, len(r.order))
	for _, f := range r.Flights() {
		out = append(out, FlightRecord{
			Key:          f.Key,
			Status:       f.Status,
			RegisteredAt: f.RegisteredAt,
			UpdatedAt:    f.UpdatedAt,
			Credited:     f.Credited,
			Insured:      f.InsuredPassengers(),
		})
	}
	return out
}

// Restore replaces the registry contents with records.
func (r *FlightRegistry) Restore(records []FlightRecord) {
	r.flights = make(map[event.FlightKey]*Flight, len(records))
	r.order = make([]event.FlightKey, 0, len(records))
	for _, rec := range records {
		f := &Flight{
			Key:          rec.Key,
			Status:       rec.Status,
			RegisteredAt: rec.RegisteredAt,
			UpdatedAt:    rec.UpdatedAt,
			Credited:     rec.Credited,
			insuredSet:   make(map[event.Address]struct{}, len(rec.Insured)),
		}
		for _, p := range rec.Insured {
			f.addInsured(p)
		}
		r.flights[rec.Key] = f
		r.order = append(r.order, rec.Key)
	}
}
