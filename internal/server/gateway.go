package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	st := status.Convert(toStatus(err))
	writeJSON(w, runtime.HTTPStatusFromCode(st.Code()), errorBody{Code: st.Code().String(), Message: st.Message()})
}

// handle adapts a Service method to a gateway route. decode fills the
// request from path params, query string and body.
func handle[Req any, Resp any](
	svc *Service,
	fn func(*Service, context.Context, *Req) (*Resp, error),
	decode func(r *http.Request, params map[string]string, req *Req) error,
) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		req := new(Req)
		if decode != nil {
			if err := decode(r, params, req); err != nil {
				writeError(w, status.Error(codes.InvalidArgument, err.Error()))
				return
			}
		}
		resp, err := fn(svc, r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func decodeAddress(_ *http.Request, params map[string]string, req *AddressRequest) error {
	req.Address = params["address"]
	return nil
}

func decodeSubmit(r *http.Request, params map[string]string, req *SubmitRequest) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	req.CallType = params["call_type"]
	req.Payload = body
	return nil
}

func decodeFlight(_ *http.Request, params map[string]string, req *FlightRequest) error {
	dep, err := strconv.ParseInt(params["departure"], 10, 64)
	if err != nil {
		return fmt.Errorf("departure: %w", err)
	}
	req.Airline, req.Code, req.Departure = params["airline"], params["code"], dep
	return nil
}

func decodeListFlights(r *http.Request, _ map[string]string, req *ListFlightsRequest) error {
	q := r.URL.Query()
	req.Airline = q.Get("airline")
	if v := q.Get("status_code"); v != "" {
		code, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return fmt.Errorf("status_code: %w", err)
		}
		c := uint8(code)
		req.StatusCode = &c
	}
	var err error
	if v := q.Get("after_departure"); v != "" {
		if req.AfterDeparture, err = strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("after_departure: %w", err)
		}
	}
	if v := q.Get("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("limit: %w", err)
		}
	}
	return nil
}

func decodePayouts(r *http.Request, params map[string]string, req *PayoutsRequest) error {
	req.Address = params["address"]
	q := r.URL.Query()
	var err error
	if v := q.Get("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("limit: %w", err)
		}
	}
	if v := q.Get("before_sequence"); v != "" {
		if req.BeforeSequence, err = strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("before_sequence: %w", err)
		}
	}
	return nil
}

func decodeJournal(r *http.Request, _ map[string]string, req *JournalRequest) error {
	q := r.URL.Query()
	req.AccountPrefix = q.Get("account")
	var err error
	if v := q.Get("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("limit: %w", err)
		}
	}
	if v := q.Get("before_sequence"); v != "" {
		if req.BeforeSequence, err = strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("before_sequence: %w", err)
		}
	}
	return nil
}

// RegisterGateway mounts the HTTP/JSON routes on mux.
func RegisterGateway(mux *runtime.ServeMux, svc *Service) error {
	routes := []struct {
		method, path string
		h            runtime.HandlerFunc
	}{
		{"POST", "/v1/calls/{call_type}", handle(svc, (*Service).Submit, decodeSubmit)},
		{"GET", "/v1/status", handle(svc, (*Service).GetStatus, nil)},
		{"GET", "/v1/airlines/{address}", handle(svc, (*Service).GetAirline, decodeAddress)},
		{"GET", "/v1/flights", handle(svc, (*Service).ListFlights, decodeListFlights)},
		{"GET", "/v1/flights/{airline}/{code}/{departure}", handle(svc, (*Service).GetFlight, decodeFlight)},
		{"GET", "/v1/passengers/{address}", handle(svc, (*Service).GetPassenger, decodeAddress)},
		{"GET", "/v1/passengers/{address}/policies", handle(svc, (*Service).GetPassengerPolicies, decodeAddress)},
		{"GET", "/v1/passengers/{address}/payouts", handle(svc, (*Service).GetPayoutHistory, decodePayouts)},
		{"GET", "/v1/airlines", handle(svc, (*Service).ListAirlines, nil)},
		{"GET", "/v1/flights/{airline}/{code}/{departure}/history", handle(svc, (*Service).GetStatusHistory, decodeFlight)},
		{"GET", "/v1/journal", handle(svc, (*Service).GetJournalHistory, decodeJournal)},
		{"GET", "/v1/oracles/{address}/indexes", handle(svc, (*Service).GetOracleIndexes, decodeAddress)},
		{"POST", "/v1/admin/snapshot", handle(svc, (*Service).TakeSnapshot, nil)},
		{"POST", "/v1/admin/rebuild-projections", handle(svc, (*Service).RebuildProjections, nil)},
		{"GET", "/v1/admin/integrity", handle(svc, (*Service).VerifyIntegrity, nil)},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, rt.h); err != nil {
			return fmt.Errorf("%s %s: %w", rt.method, rt.path, err)
		}
	}
	return nil
}
