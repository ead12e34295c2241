package server

import (
	"FlightSurety/internal/core"
	"FlightSurety/internal/event"
	"FlightSurety/internal/ingestion"
	fpmath "FlightSurety/internal/math"
	"FlightSurety/internal/query"
	"context"
	"encoding/hex"
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Engine is the serialized access point to the core; core.Executor
// satisfies it.
type Engine interface {
	Submit(ctx context.Context, call event.Call) (*core.Receipt, error)
	View(ctx context.Context, fn func(*core.Engine)) error
}

// Deps holds everything the service reads from or writes to. Query, Snapshot
// and Rebuild may be nil when Postgres is not configured.
type Deps struct {
	Engine   Engine
	Query    *query.QueryService
	Snapshot func(ctx context.Context) (int64, error)
	Rebuild  func(ctx context.Context) error
	LogInfo  func(ctx context.Context) (int64, error)
}

// Service implements every RPC. Transport adapters (gRPC, HTTP gateway)
// only decode requests and map errors.
type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// --- Calls ---

type SubmitRequest struct {
	CallType string          `json:"call_type"`
	Payload  json.RawMessage `json:"payload"`
}

type NotificationJSON struct {
	Type    string             `json:"type"`
	Payload event.Notification `json:"payload"`
}

type SubmitResponse struct {
	Sequence      int64              `json:"sequence"`
	Duplicate     bool               `json:"duplicate"`
	StateHash     string             `json:"state_hash,omitempty"`
	Notifications []NotificationJSON `json:"notifications,omitempty"`
	Indexes       []uint8            `json:"indexes,omitempty"`
	RequestID     string             `json:"request_id,omitempty"`
	Index         *uint8             `json:"index,omitempty"`
	Amount        string             `json:"amount,omitempty"`
}

// Submit applies one call. The payload uses the same wire format as the
// NATS ingestion path.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	ct, ok := event.ParseCallType(req.CallType)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown call_type %q", req.CallType)
	}
	call, err := ingestion.ParseCall(ct, req.Payload)
	if err != nil {
		return nil, toStatus(err)
	}

	r, err := s.deps.Engine.Submit(ctx, call)
	if err != nil {
		return nil, toStatus(err)
	}
	return receiptResponse(ct, r), nil
}

func receiptResponse(ct event.CallType, r *core.Receipt) *SubmitResponse {
	if r.Duplicate {
		return &SubmitResponse{Duplicate: true}
	}
	resp := &SubmitResponse{
		Sequence:  r.Sequence,
		StateHash: hex.EncodeToString(r.StateHash[:]),
		RequestID: r.RequestID,
	}
	for _, n := range r.Notifications {
		resp.Notifications = append(resp.Notifications, NotificationJSON{Type: n.Type.String(), Payload: n.Payload})
	}
	switch ct {
	case event.CallTypeRegisterOracle:
		resp.Indexes = r.Indexes[:]
	case event.CallTypeFetchFlightStatus:
		if r.RequestID != "" {
			idx := r.Index
			resp.Index = &idx
		}
	case event.CallTypeCreditInsurees, event.CallTypePayInsuree:
		resp.Amount = fpmath.FormatAmount(r.Amount)
	}
	return resp
}

// --- Live reads ---

type StatusRequest struct{}

type StatusResponse struct {
	Operational   bool   `json:"operational"`
	Sequence      int64  `json:"sequence"`
	StateHash     string `json:"state_hash"`
	Funds         string `json:"funds"`
	OracleFees    string `json:"oracle_fees"`
	Airlines      int    `json:"airlines"`
	FundedAirline int    `json:"funded_airlines"`
	Oracles       int    `json:"oracles"`
}

func (s *Service) GetStatus(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	var resp StatusResponse
	err := s.deps.Engine.View(ctx, func(e *core.Engine) {
		hash := e.GetStateHash()
		resp = StatusResponse{
			Operational:   e.IsOperational(),
			Sequence:      e.GetSequence(),
			StateHash:     hex.EncodeToString(hash[:]),
			Funds:         fpmath.FormatAmount(e.GetFunds()),
			OracleFees:    fpmath.FormatAmount(e.OracleFees()),
			Airlines:      e.TotalAirlines(),
			FundedAirline: e.FundedCount(),
			Oracles:       e.OracleCount(),
		}
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

type AddressRequest struct {
	Address string `json:"address"`
}

func (r *AddressRequest) parse() (event.Address, error) {
	a, err := event.ParseAddress(r.Address)
	if err != nil {
		return a, status.Errorf(codes.InvalidArgument, "address: %v", err)
	}
	return a, nil
}

func (s *Service) GetAirline(ctx context.Context, req *AddressRequest) (*core.AirlineView, error) {
	addr, err := req.parse()
	if err != nil {
		return nil, err
	}
	var (
		view    core.AirlineView
		viewErr error
	)
	if err := s.deps.Engine.View(ctx, func(e *core.Engine) { view, viewErr = e.Airline(addr) }); err != nil {
		return nil, toStatus(err)
	}
	if viewErr != nil {
		return nil, toStatus(viewErr)
	}
	return &view, nil
}

type FlightRequest struct {
	Airline   string `json:"airline"`
	Code      string `json:"code"`
	Departure int64  `json:"departure"`
}

func (s *Service) GetFlight(ctx context.Context, req *FlightRequest) (*core.FlightView, error) {
	airline, err := event.ParseAddress(req.Airline)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "airline: %v", err)
	}
	key := event.FlightKey{Airline: airline, Code: req.Code, Departure: req.Departure}

	var (
		view    core.FlightView
		viewErr error
	)
	if err := s.deps.Engine.View(ctx, func(e *core.Engine) { view, viewErr = e.Flight(key) }); err != nil {
		return nil, toStatus(err)
	}
	if viewErr != nil {
		return nil, toStatus(viewErr)
	}
	return &view, nil
}

type PassengerResponse struct {
	Address string `json:"address"`
	Credit  string `json:"credit"`
}

func (s *Service) GetPassenger(ctx context.Context, req *AddressRequest) (*PassengerResponse, error) {
	addr, err := req.parse()
	if err != nil {
		return nil, err
	}
	var credit int64
	if err := s.deps.Engine.View(ctx, func(e *core.Engine) { credit = e.GetPassengerBalance(addr) }); err != nil {
		return nil, toStatus(err)
	}
	return &PassengerResponse{Address: addr.String(), Credit: fpmath.FormatAmount(credit)}, nil
}

type IndexesResponse struct {
	Oracle  string  `json:"oracle"`
	Indexes []uint8 `json:"indexes"`
}

func (s *Service) GetOracleIndexes(ctx context.Context, req *AddressRequest) (*IndexesResponse, error) {
	addr, err := req.parse()
	if err != nil {
		return nil, err
	}
	var (
		idx     [3]uint8
		viewErr error
	)
	if err := s.deps.Engine.View(ctx, func(e *core.Engine) { idx, viewErr = e.MyIndexes(addr) }); err != nil {
		return nil, toStatus(err)
	}
	if viewErr != nil {
		return nil, toStatus(viewErr)
	}
	return &IndexesResponse{Oracle: addr.String(), Indexes: idx[:]}, nil
}

// --- Projection reads ---

func (s *Service) requireQuery() error {
	if s.deps.Query == nil {
		return status.Error(codes.Unimplemented, "history queries need Postgres")
	}
	return nil
}

type ListFlightsRequest struct {
	Airline        string `json:"airline,omitempty"`
	StatusCode     *uint8 `json:"status_code,omitempty"`
	AfterDeparture int64  `json:"after_departure,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

type ListFlightsResponse struct {
	Flights []query.FlightRow `json:"flights"`
}

func (s *Service) ListFlights(ctx context.Context, req *ListFlightsRequest) (*ListFlightsResponse, error) {
	if err := s.requireQuery(); err != nil {
		return nil, err
	}
	rows, err := s.deps.Query.ListFlights(ctx, query.FlightFilter{
		Airline:        req.Airline,
		StatusCode:     req.StatusCode,
		AfterDeparture: req.AfterDeparture,
		Limit:          req.Limit,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list flights: %v", err)
	}
	return &ListFlightsResponse{Flights: rows}, nil
}

type PoliciesResponse struct {
	Policies []query.PolicyRow `json:"policies"`
}

func (s *Service) GetPassengerPolicies(ctx context.Context, req *AddressRequest) (*PoliciesResponse, error) {
	if err := s.requireQuery(); err != nil {
		return nil, err
	}
	addr, err := req.parse()
	if err != nil {
		return nil, err
	}
	rows, err := s.deps.Query.GetPassengerPolicies(ctx, addr.String())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "policies: %v", err)
	}
	return &PoliciesResponse{Policies: rows}, nil
}

type PayoutsRequest struct {
	Address        string `json:"address"`
	Limit          int    `json:"limit,omitempty"`
	BeforeSequence int64  `json:"before_sequence,omitempty"`
}

type PayoutsResponse struct {
	Payouts []query.PayoutRow `json:"payouts"`
}

func (s *Service) GetPayoutHistory(ctx context.Context, req *PayoutsRequest) (*PayoutsResponse, error) {
	if err := s.requireQuery(); err != nil {
		return nil, err
	}
	addr, err := (&AddressRequest{Address: req.Address}).parse()
	if err != nil {
		return nil, err
	}
	var before *int64
	if req.BeforeSequence > 0 {
		before = &req.BeforeSequence
	}
	rows, err := s.deps.Query.GetPayoutHistory(ctx, addr.String(), req.Limit, before)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "payouts: %v", err)
	}
	return &PayoutsResponse{Payouts: rows}, nil
}

type AirlinesResponse struct {
	Airlines []query.AirlineRow `json:"airlines"`
}

func (s *Service) ListAirlines(ctx context.Context, _ *AdminRequest) (*AirlinesResponse, error) {
	if err := s.requireQuery(); err != nil {
		return nil, err
	}
	rows, err := s.deps.Query.ListAirlines(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list airlines: %v", err)
	}
	return &AirlinesResponse{Airlines: rows}, nil
}

type StatusHistoryResponse struct {
	Changes []query.StatusChange `json:"changes"`
}

func (s *Service) GetStatusHistory(ctx context.Context, req *FlightRequest) (*StatusHistoryResponse, error) {
	if err := s.requireQuery(); err != nil {
		return nil, err
	}
	airline, err := event.ParseAddress(req.Airline)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "airline: %v", err)
	}
	rows, err := s.deps.Query.GetStatusHistory(ctx, airline.String(), req.Code, req.Departure)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "status history: %v", err)
	}
	return &StatusHistoryResponse{Changes: rows}, nil
}

// JournalRequest selects journal entries by account path prefix, e.g.
// "passenger:0xab..:" or "system:airline_pool".
type JournalRequest struct {
	AccountPrefix  string `json:"account_prefix"`
	Limit          int    `json:"limit,omitempty"`
	BeforeSequence int64  `json:"before_sequence,omitempty"`
}

type JournalResponse struct {
	Entries []query.JournalHistoryEntry `json:"entries"`
}

func (s *Service) GetJournalHistory(ctx context.Context, req *JournalRequest) (*JournalResponse, error) {
	if err := s.requireQuery(); err != nil {
		return nil, err
	}
	if req.AccountPrefix == "" {
		return nil, status.Error(codes.InvalidArgument, "account_prefix is required")
	}
	var before *int64
	if req.BeforeSequence > 0 {
		before = &req.BeforeSequence
	}
	rows, err := s.deps.Query.GetJournalHistory(ctx, req.AccountPrefix, req.Limit, before)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "journal history: %v", err)
	}
	return &JournalResponse{Entries: rows}, nil
}

// --- Admin ---

type AdminRequest struct{}

type SnapshotResponse struct {
	Sequence int64 `json:"sequence"`
}

func (s *Service) TakeSnapshot(ctx context.Context, _ *AdminRequest) (*SnapshotResponse, error) {
	if s.deps.Snapshot == nil {
		return nil, status.Error(codes.Unimplemented, "snapshots are not configured")
	}
	seq, err := s.deps.Snapshot(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "snapshot: %v", err)
	}
	return &SnapshotResponse{Sequence: seq}, nil
}

type RebuildResponse struct {
	Rebuilt bool `json:"rebuilt"`
}

func (s *Service) RebuildProjections(ctx context.Context, _ *AdminRequest) (*RebuildResponse, error) {
	if s.deps.Rebuild == nil {
		return nil, status.Error(codes.Unimplemented, "projections are not configured")
	}
	if err := s.deps.Rebuild(ctx); err != nil {
		return nil, status.Errorf(codes.Internal, "rebuild failed: %v", err)
	}
	return &RebuildResponse{Rebuilt: true}, nil
}

type IntegrityResponse struct {
	Report       *query.IntegrityReport `json:"report"`
	LastSequence int64                  `json:"last_sequence"`
}

func (s *Service) VerifyIntegrity(ctx context.Context, _ *AdminRequest) (*IntegrityResponse, error) {
	if err := s.requireQuery(); err != nil {
		return nil, err
	}
	report, err := s.deps.Query.VerifyIntegrity(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "verify integrity: %v", err)
	}
	resp := &IntegrityResponse{Report: report}
	if s.deps.LogInfo != nil {
		if resp.LastSequence, err = s.deps.LogInfo(ctx); err != nil {
			return nil, status.Errorf(codes.Internal, "latest sequence: %v", err)
		}
	}
	return resp, nil
}
