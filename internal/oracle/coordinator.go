// Package oracle assigns oracle indices, opens flight status requests and
// tallies oracle responses until one status reaches quorum.
package oracle

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/mr-tron/base58"
)

// IndexCount is the number of indices every oracle holds.
const IndexCount = 3

// Oracle is an enrolled responder. Indexes never change after registration.
type Oracle struct {
	Address event.Address     `json:"address"`
	Indexes [IndexCount]uint8 `json:"indexes"`
}

func (o *Oracle) HasIndex(index uint8) bool {
	for _, i := range o.Indexes {
		if i == index {
			return true
		}
	}
	return false
}

// RequestKey identifies a status request: one index for one flight.
type RequestKey struct {
	Index  uint8
	Flight event.FlightKey
}

// ID is the compact textual form of the key: base58(Keccak256(key)).
func (k RequestKey) ID() string {
	var dep [8]byte
	binary.BigEndian.PutUint64(dep[:], uint64(k.Flight.Departure))
	sum := keccak([]byte{k.Index}, k.Flight.Airline[:], []byte(k.Flight.Code), dep[:])
	return base58.Encode(sum[:])
}

// Request collects responses per status until one bucket reaches quorum.
type Request struct {
	Key       RequestKey
	ID        string
	Requester event.Address
	OpenedAt  int64
	Open      bool
	Final     event.StatusCode // meaningful once closed

	responses  map[event.StatusCode]map[event.Address]struct{}
	responders map[event.Address]event.StatusCode
}

// Votes returns how many oracles reported status.
func (r *Request) Votes(status event.StatusCode) int {
	return len(r.responses[status])
}

// HasResponded reports whether oracle already answered this request.
func (r *Request) HasResponded(oracle event.Address) bool {
	_, ok := r.responders[oracle]
	return ok
}

func (r *Request) reset() {
	r.Open = true
	r.Final = event.StatusUnknown
	r.responses = make(map[event.StatusCode]map[event.Address]struct{})
	r.responders = make(map[event.Address]event.StatusCode)
}

// ResponseOutcome describes the effect of one submitOracleResponse.
type ResponseOutcome struct {
	RequestID string
	Ignored   bool // request already closed; the response has no effect
	Votes     int  // votes for the submitted status, including this one
	Finalized bool // this response reached quorum and closed the request
}

// Config fixes the coordinator's parameters at genesis.
type Config struct {
	Fee         int64
	Quorum      int
	IndexDomain uint8
}

// Coordinator owns oracle registrations and open requests.
type Coordinator struct {
	cfg     Config
	entropy Entropy
	nonce   uint64

	oracles     map[event.Address]*Oracle
	oracleOrder []event.Address

	requests     map[RequestKey]*Request
	requestOrder []RequestKey
	byFlight     map[event.FlightKey][]RequestKey
}

func NewCoordinator(cfg Config, entropy Entropy) (*Coordinator, error) {
	if cfg.IndexDomain < IndexCount {
		return nil, fmt.Errorf("index domain %d smaller than %d indices", cfg.IndexDomain, IndexCount)
	}
	if cfg.Quorum < 1 {
		return nil, fmt.Errorf("oracle quorum must be positive, got %d", cfg.Quorum)
	}
	return &Coordinator{
		cfg:      cfg,
		entropy:  entropy,
		oracles:  make(map[event.Address]*Oracle),
		requests: make(map[RequestKey]*Request),
		byFlight: make(map[event.FlightKey][]RequestKey),
	}, nil
}

func (c *Coordinator) Fee() int64 {
	return c.cfg.Fee
}

// Nonce is the number of entropy draws taken so far.
func (c *Coordinator) Nonce() uint64 {
	return c.nonce
}

func (c *Coordinator) draw(salt [32]byte, caller event.Address) [32]byte {
	d := c.entropy.Draw(salt, caller, c.nonce)
	c.nonce++
	return d
}

// ============================================================================
// Registration
// ============================================================================

// CheckRegister validates a registerOracle call without mutating anything.
func (c *Coordinator) CheckRegister(caller event.Address, fee int64) error {
	if _, ok := c.oracles[caller]; ok {
		return errs.ErrDuplicateOracle.With("oracle %s", caller)
	}
	if fee < c.cfg.Fee {
		return errs.ErrInsufficientFee.With("paid %d, fee is %d", fee, c.cfg.Fee)
	}
	return nil
}

// Register assigns caller three distinct indices. Call CheckRegister first.
func (c *Coordinator) Register(caller event.Address, salt [32]byte) *Oracle {
	o := &Oracle{
		Address: caller,
		Indexes: pickIndexes(c.draw(salt, caller), c.cfg.IndexDomain),
	}
	c.oracles[caller] = o
	c.oracleOrder = append(c.oracleOrder, caller)
	return o
}

// Indexes returns the oracle's assigned indices.
func (c *Coordinator) Indexes(caller event.Address) ([IndexCount]uint8, error) {
	o := c.oracles[caller]
	if o == nil {
		return [IndexCount]uint8{}, errs.ErrUnknownOracle.With("oracle %s", caller)
	}
	return o.Indexes, nil
}

func (c *Coordinator) IsRegistered(caller event.Address) bool {
	_, ok := c.oracles[caller]
	return ok
}

func (c *Coordinator) OracleCount() int {
	return len(c.oracles)
}

// ============================================================================
// Requests
// ============================================================================

// OpenRequest picks a pseudo-random index and opens a request for flight.
// An open request under the same key keeps its responses; a closed one is
// reopened empty.
func (c *Coordinator) OpenRequest(flight event.FlightKey, requester event.Address, salt [32]byte, ts int64) *Request {
	index := uint8(word(c.draw(salt, requester), 0) % uint64(c.cfg.IndexDomain))
	key := RequestKey{Index: index, Flight: flight}

	req := c.requests[key]
	if req == nil {
		req = &Request{Key: key, ID: key.ID()}
		req.reset()
		c.requests[key] = req
		c.requestOrder = append(c.requestOrder, key)
		c.byFlight[flight] = append(c.byFlight[flight], key)
	} else if !req.Open {
		req.reset()
	} else {
		return req
	}
	req.Requester = requester
	req.OpenedAt = ts
	return req
}

// Request returns the request or nil.
func (c *Coordinator) Request(key RequestKey) *Request {
	return c.requests[key]
}

// OpenRequests counts requests still collecting responses.
func (c *Coordinator) OpenRequests() int {
	n := 0
	for _, r := range c.requests {
		if r.Open {
			n++
		}
	}
	return n
}

// CheckResponse validates a submitOracleResponse and reports what recording
// it would do, without mutating anything.
func (c *Coordinator) CheckResponse(
	caller event.Address,
	index uint8,
	flight event.FlightKey,
	status event.StatusCode,
) (ResponseOutcome, error) {
	o := c.oracles[caller]
	if o == nil {
		return ResponseOutcome{}, errs.ErrUnknownOracle.With("oracle %s", caller)
	}
	if !o.HasIndex(index) {
		return ResponseOutcome{}, errs.ErrIndexMismatch.With("index %d not assigned to %s", index, caller)
	}
	if !status.Valid() {
		return ResponseOutcome{}, errs.ErrInvalidStatusCode.With("status %d", uint8(status))
	}

	key := RequestKey{Index: index, Flight: flight}
	req := c.requests[key]
	if req == nil {
		if len(c.byFlight[flight]) > 0 {
			return ResponseOutcome{}, errs.ErrIndexMismatch.With("no request for %s under index %d", flight, index)
		}
		return ResponseOutcome{}, errs.ErrUnknownRequest.With("flight %s", flight)
	}

	out := ResponseOutcome{RequestID: req.ID}
	if !req.Open {
		out.Ignored = true
		return out, nil
	}
	if req.HasResponded(caller) {
		return ResponseOutcome{}, errs.ErrDuplicateResponse.With("oracle %s on request %s", caller, req.ID)
	}

	out.Votes = req.Votes(status) + 1
	out.Finalized = out.Votes >= c.cfg.Quorum
	return out, nil
}

// RecordResponse records caller's vote and closes the request on quorum.
// Call CheckResponse first; ignored responses are not recorded.
func (c *Coordinator) RecordResponse(
	caller event.Address,
	index uint8,
	flight event.FlightKey,
	status event.StatusCode,
) ResponseOutcome {
	req := c.requests[RequestKey{Index: index, Flight: flight}]
	out := ResponseOutcome{RequestID: req.ID}
	if !req.Open {
		out.Ignored = true
		return out
	}

	bucket := req.responses[status]
	if bucket == nil {
		bucket = make(map[event.Address]struct{})
		req.responses[status] = bucket
	}
	bucket[caller] = struct{}{}
	req.responders[caller] = status

	out.Votes = len(bucket)
	if out.Votes >= c.cfg.Quorum {
		req.Open = false
		req.Final = status
		out.Finalized = true
	}
	return out
}

// CloseFlight closes every open request for flight once its status is
// decided; later responses to them are ignored.
func (c *Coordinator) CloseFlight(flight event.FlightKey, status event.StatusCode) {
	for _, key := range c.byFlight[flight] {
		if req := c.requests[key]; req.Open {
			req.Open = false
			req.Final = status
		}
	}
}

// ============================================================================
// Hashing + snapshots
// ============================================================================

// AppendCanonical appends the coordinator's hashing bytes to buf.
func (c *Coordinator) AppendCanonical(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, c.nonce)

	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(c.oracleOrder)))
	for _, addr := range c.oracleOrder {
		o := c.oracles[addr]
		buf = append(buf, addr[:]...)
		buf = append(buf, o.Indexes[:]...)
	}

	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(c.requestOrder)))
	for _, key := range c.requestOrder {
		r := c.requests[key]
		buf = append(buf, r.ID...)
		buf = append(buf, r.Requester[:]...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(r.OpenedAt))
		if r.Open {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = append(buf, byte(r.Final))
		for _, resp := range r.responseRecords() {
			buf = append(buf, resp.Oracle[:]...)
			buf = append(buf, byte(resp.Status))
		}
	}
	return buf
}

// ResponseRecord is one oracle's vote on a request.
type ResponseRecord struct {
	Oracle event.Address    `json:"oracle"`
	Status event.StatusCode `json:"status"`
}

func (r *Request) responseRecords() []ResponseRecord {
	out := make([]ResponseRecord, 0, len(r.responders))
	for addr, st := range r.responders {
		out = append(out, ResponseRecord{Oracle: addr, Status: st})
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Oracle[:]) < string(out[j].Oracle[:])
	})
	return out
}

// RequestRecord is the snapshot form of a Request.
type RequestRecord struct {
	Index     uint8            `json:"index"`
	Flight    event.FlightKey  `json:"flight"`
	Requester event.Address    `json:"requester"`
	OpenedAt  int64            `json:"opened_at"`
	Open      bool             `json:"open"`
	Final     event.StatusCode `json:"final"`
	Responses []ResponseRecord `json:"responses,omitempty"`
}

// Snapshot is the serializable coordinator state.
type Snapshot struct {
	Nonce    uint64          `json:"nonce"`
	Oracles  []Oracle        `json:"oracles"`
	Requests []RequestRecord `json:"requests"`
}

// Snapshot exports the coordinator state.
func (c *Coordinator) Snapshot() Snapshot {
	s := Snapshot{
		Nonce:    c.nonce,
		Oracles:  make([]Oracle, 0, len(c.oracleOrder)),
		Requests: make([]RequestRecord, 0, len(c.requestOrder)),
	}
	for _, addr := range c.oracleOrder {
		s.Oracles = append(s.Oracles, *c.oracles[addr])
	}
	for _, key := range c.requestOrder {
		r := c.requests[key]
		s.Requests = append(s.Requests, RequestRecord{
			Index:     key.Index,
			Flight:    key.Flight,
			Requester: r.Requester,
			OpenedAt:  r.OpenedAt,
			Open:      r.Open,
			Final:     r.Final,
			Responses: r.responseRecords(),
		})
	}
	return s
}

// Restore replaces the coordinator state with s.
func (c *Coordinator) Restore(s Snapshot) {
	c.nonce = s.Nonce
	c.oracles = make(map[event.Address]*Oracle, len(s.Oracles))
	c.oracleOrder = make([]event.Address, 0, len(s.Oracles))
	for i := range s.Oracles {
		o := s.Oracles[i]
		c.oracles[o.Address] = &o
		c.oracleOrder = append(c.oracleOrder, o.Address)
	}

	c.requests = make(map[RequestKey]*Request, len(s.Requests))
	c.requestOrder = make([]RequestKey, 0, len(s.Requests))
	c.byFlight = make(map[event.FlightKey][]RequestKey)
	for _, rec := range s.Requests {
		key := RequestKey{Index: rec.Index, Flight: rec.Flight}
		r := &Request{Key: key, ID: key.ID()}
		r.reset()
		r.Requester = rec.Requester
		r.OpenedAt = rec.OpenedAt
		r.Open = rec.Open
		r.Final = rec.Final
		for _, resp := range rec.Responses {
			bucket := r.responses[resp.Status]
			if bucket == nil {
				bucket = make(map[event.Address]struct{})
				r.responses[resp.Status] = bucket
			}
			bucket[resp.Oracle] = struct{}{}
			r.responders[resp.Oracle] = resp.Status
		}
		c.requests[key] = r
		c.requestOrder = append(c.requestOrder, key)
		c.byFlight[key.Flight] = append(c.byFlight[key.Flight], key)
	}
}
