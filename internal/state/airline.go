package state

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"sort"
)

// AirlineState is the admission lifecycle of an airline.
type AirlineState uint8

const (
	AirlineUnregistered AirlineState = iota
	AirlinePendingVotes
	AirlineRegistered
	AirlineFunded
)

func (s AirlineState) String() string {
	switch s {
	case AirlinePendingVotes:
		return "PendingVotes"
	case AirlineRegistered:
		return "Registered"
	case AirlineFunded:
		return "Funded"
	default:
		return "Unregistered"
	}
}

// Airline is created on first reference and never deleted.
type Airline struct {
	Address event.Address
	Name    string
	State   AirlineState
	Funding int64 // amount paid on fund

	votes map[event.Address]struct{}
}

// VoteCount returns the number of distinct airlines that voted for a.
func (a *Airline) VoteCount() int {
	return len(a.votes)
}

// HasVoted reports whether voter already voted for a.
func (a *Airline) HasVoted(voter event.Address) bool {
	_, ok := a.votes[voter]
	return ok
}

// Voters returns the voter set in byte order.
func (a *Airline) Voters() []event.Address {
	return sortedAddresses(a.votes)
}

// IsRegistered is true for Registered and Funded airlines.
func (a *Airline) IsRegistered() bool {
	return a.State == AirlineRegistered || a.State == AirlineFunded
}

// CanonicalBytes returns deterministic serialization for hashing
func (a *Airline) CanonicalBytes() []byte {
	buf := make([]byte, 0, 64+len(a.Name)+len(a.votes)*event.AddressLength)

	buf = append(buf, a.Address[:]...)

	// name (length-prefixed)
	buf = appendString(buf, a.Name)

	buf = append(buf, byte(a.State))
	buf = appendInt64LE(buf, a.Funding)

	// votes (count-prefixed, sorted)
	voters := a.Voters()
	buf = appendInt64LE(buf, int64(len(voters)))
	for _, v := range voters {
		buf = append(buf, v[:]...)
	}

	return buf
}

// RegistrationResult describes the effect of a registerAirline call.
type RegistrationResult struct {
	Registered bool // candidate reached Registered with this call
	Bootstrap  bool // no vote was needed
	Votes      int
	Required   int
}

// AirlineRegistry is the membership state machine over airlines:
// Unregistered -> PendingVotes -> Registered -> Funded.
type AirlineRegistry struct {
	airlines       map[event.Address]*Airline
	order          []event.Address // creation order
	fundedCount    int
	bootstrapCount int
}

// NewAirlineRegistry creates a registry that admits candidates without a
// vote while fewer than bootstrapCount airlines are funded.
func NewAirlineRegistry(bootstrapCount int) *AirlineRegistry {
	return &AirlineRegistry{
		airlines:       make(map[event.Address]*Airline),
		bootstrapCount: bootstrapCount,
	}
}

// Get returns the airline or nil.
func (r *AirlineRegistry) Get(addr event.Address) *Airline {
	return r.airlines[addr]
}

func (r *AirlineRegistry) getOrCreate(addr event.Address) *Airline {
	a := r.airlines[addr]
	if a == nil {
		a = &Airline{
			Address: addr,
			State:   AirlineUnregistered,
			votes:   make(map[event.Address]struct{}),
		}
		r.airlines[addr] = a
		r.order = append(r.order, addr)
	}
	return a
}

func (r *AirlineRegistry) IsRegistered(addr event.Address) bool {
	a := r.airlines[addr]
	return a != nil && a.IsRegistered()
}

func (r *AirlineRegistry) IsFunded(addr event.Address) bool {
	a := r.airlines[addr]
	return a != nil && a.State == AirlineFunded
}

func (r *AirlineRegistry) FundedCount() int {
	return r.fundedCount
}

// TotalAirlines counts Registered and Funded airlines.
func (r *AirlineRegistry) TotalAirlines() int {
	n := 0
	for _, a := range r.airlines {
		if a.IsRegistered() {
			n++
		}
	}
	return n
}

// RequiredVotes is ⌈fundedCount/2⌉, or zero during bootstrap.
func (r *AirlineRegistry) RequiredVotes() int {
	if r.fundedCount < r.bootstrapCount {
		return 0
	}
	return (r.fundedCount + 1) / 2
}

// RequireFunded fails with ErrCallerNotFunded unless caller is Funded.
func (r *AirlineRegistry) RequireFunded(caller event.Address) error {
	if !r.IsFunded(caller) {
		return errs.ErrCallerNotFunded.With("airline %s is not funded", caller)
	}
	return nil
}

// Register registers candidate directly during bootstrap, otherwise records
// caller's vote and registers candidate once the vote count reaches
// RequiredVotes. Nothing is mutated when an error is returned.
func (r *AirlineRegistry) Register(name string, candidate, caller event.Address) (RegistrationResult, error) {
	if err := r.RequireFunded(caller); err != nil {
		return RegistrationResult{}, err
	}
	if candidate.IsZero() {
		return RegistrationResult{}, errs.ErrInvalidCallPayload.With("candidate address is zero")
	}
	if r.IsRegistered(candidate) {
		return RegistrationResult{}, errs.ErrAlreadyRegistered.With("airline %s", candidate)
	}

	required := r.RequiredVotes()
	if existing := r.airlines[candidate]; required > 0 && existing != nil && existing.HasVoted(caller) {
		return RegistrationResult{}, errs.ErrDuplicateVote.With("airline %s already voted for %s", caller, candidate)
	}

	a := r.getOrCreate(candidate)
	if a.Name == "" {
		a.Name = name
	}

	if required == 0 {
		a.State = AirlineRegistered
		return RegistrationResult{Registered: true, Bootstrap: true}, nil
	}

	a.votes[caller] = struct{}{}
	res := RegistrationResult{Votes: len(a.votes), Required: required}
	if res.Votes >= required {
		a.State = AirlineRegistered
		res.Registered = true
	} else {
		a.State = AirlinePendingVotes
	}
	return res, nil
}

// CheckFund validates a fund call without mutating anything.
func (r *AirlineRegistry) CheckFund(caller event.Address, amount, seedFunding int64) error {
	a := r.airlines[caller]
	if a == nil || !a.IsRegistered() {
		return errs.ErrNotRegistered.With("airline %s is not registered", caller)
	}
	if a.State == AirlineFunded {
		return errs.ErrAlreadyFunded.With("airline %s", caller)
	}
	if amount < seedFunding {
		return errs.ErrInsufficientFunding.With("paid %d, need %d", amount, seedFunding)
	}
	return nil
}

// MarkFunded moves a Registered airline to Funded. Call CheckFund first.
func (r *AirlineRegistry) MarkFunded(caller event.Address, amount int64) {
	a := r.airlines[caller]
	a.State = AirlineFunded
	a.Funding = amount
	r.fundedCount++
}

// Bootstrap registers the first airline at genesis, optionally funded
// without any funds moving.
func (r *AirlineRegistry) Bootstrap(addr event.Address, name string, funded bool) {
	a := r.getOrCreate(addr)
	a.Name = name
	a.State = AirlineRegistered
	if funded {
		a.State = AirlineFunded
		r.fundedCount++
	}
}

// Airlines returns every known airline in creation order.
func (r *AirlineRegistry) Airlines() []*Airline {
	out := make([]*Airline, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.airlines[addr])
	}
	return out
}

// AppendCanonical appends the registry's hashing bytes to buf.
func (r *AirlineRegistry) AppendCanonical(buf []byte) []byte {
	buf = appendInt64LE(buf, int64(len(r.order)))
	for _, addr := range r.order {
		buf = append(buf, r.airlines[addr].CanonicalBytes()...)
	}
	return buf
}

// AirlineRecord is the snapshot form of an Airline.
type AirlineRecord struct {
	Address event.Address   `json:"address"`
	Name    string          `json:"name"`
	State   AirlineState    `json:"state"`
	Funding int64           `json:"funding"`
	Votes   []event.Address `json:"votes,omitempty"`
}

// Records exports the registry in creation order.
func (r *AirlineRegistry) Records() []AirlineRecord {
	out := make([]AirlineRecord, 0, len(r.order))
	for _, a := range r.Airlines() {
		out = append(out, AirlineRecord{
			Address: a.Address,
			Name:    a.Name,
			State:   a.State,
			Funding: a.Funding,
			Votes:   a.Voters(),
		})
	}
	return out
}

// Restore replaces the registry contents with records.
func (r *AirlineRegistry) Restore(records []AirlineRecord) {
	r.airlines = make(map[event.Address]*Airline, len(records))
	r.order = r.order[:0]
	r.fundedCount = 0
	for _, rec := range records {
		a := r.getOrCreate(rec.Address)
		a.Name = rec.Name
		a.State = rec.State
		a.Funding = rec.Funding
		for _, v := range rec.Votes {
			a.votes[v] = struct{}{}
		}
		if a.State == AirlineFunded {
			r.fundedCount++
		}
	}
}

func sortedAddresses(set map[event.Address]struct{}) []event.Address {
	out := make([]event.Address, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i][:]) < string(out[j][:])
	})
	return out
}
