package server

import (
	"FlightSurety/internal/core"
	"FlightSurety/internal/errs"
	"FlightSurety/internal/observability"
	"FlightSurety/internal/testutil"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{errs.ErrUnauthorized, codes.PermissionDenied},
		{errs.ErrSystemPaused, codes.Unavailable},
		{errs.ErrAlreadyFunded.With("airline x"), codes.FailedPrecondition},
		{errs.ErrInvalidCallPayload.With("caller"), codes.InvalidArgument},
		{errs.ErrDuplicatePurchase, codes.AlreadyExists},
		{errs.ErrPremiumMismatch, codes.InvalidArgument},
		{errs.ErrUnknownFlight, codes.NotFound},
		{core.ErrExecutorStopped, codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{fmt.Errorf("boom"), codes.Internal},
		{status.Error(codes.Unimplemented, "x"), codes.Unimplemented},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.code, status.Code(toStatus(tc.err)), tc.err.Error())
	}
	assert.NoError(t, toStatus(nil))
}

// running starts an executor over a fresh scenario engine.
func running(t *testing.T) (*Service, *testutil.Scenario) {
	t.Helper()
	s := testutil.NewScenario(t)
	x := core.NewExecutor(s.Engine, 64)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = x.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		x.Stop()
	})
	return NewService(Deps{Engine: x}), s
}

func fundPayload(caller string) string {
	return fmt.Sprintf(`{"call_id":%q,"caller":%q,"value":"10","timestamp_us":1700000000000000}`, uuid.NewString(), caller)
}

func gateway(t *testing.T, svc *Service) http.Handler {
	t.Helper()
	mux := runtime.NewServeMux()
	require.NoError(t, RegisterGateway(mux, svc))
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestGateway_SubmitAndRead(t *testing.T) {
	svc, _ := running(t)
	h := gateway(t, svc)
	airline := testutil.Airline.String()

	rec, body := do(t, h, "POST", "/v1/calls/FundAirline", fundPayload(airline))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), body["sequence"])
	notes := body["notifications"].([]interface{})
	require.Len(t, notes, 1)
	assert.Equal(t, "AirlineFunded", notes[0].(map[string]interface{})["type"])

	rec, body = do(t, h, "GET", "/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", body["funds"])
	assert.Equal(t, float64(1), body["funded_airlines"])
	assert.Equal(t, true, body["operational"])

	rec, body = do(t, h, "GET", "/v1/airlines/"+airline, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Udacity Air", body["name"])
}

func TestGateway_ErrorMapping(t *testing.T) {
	svc, _ := running(t)
	h := gateway(t, svc)
	airline := testutil.Airline.String()

	rec, body := do(t, h, "POST", "/v1/calls/FundAirline", `{"call_id":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidArgument", body["code"])

	rec, _ = do(t, h, "POST", "/v1/calls/Liquidate", fundPayload(airline))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, h, "GET", fmt.Sprintf("/v1/flights/%s/ND1309/1", airline), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["message"], "UnknownFlight")

	rec, _ = do(t, h, "GET", fmt.Sprintf("/v1/flights/%s/ND1309/soon", airline), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, path := range []string{"/v1/flights", "/v1/airlines", "/v1/journal?account=system:airline_pool"} {
		rec, _ = do(t, h, "GET", path, "")
		assert.Equal(t, http.StatusNotImplemented, rec.Code, path)
	}

	rec, _ = do(t, h, "GET", "/v1/oracles/"+testutil.OracleAddr(9).String()+"/indexes", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGateway_PassengerCreditAfterSettlement(t *testing.T) {
	svc, s := running(t)
	h := gateway(t, svc)

	// drive the lifecycle on the executor goroutine
	require.NoError(t, svc.deps.Engine.View(context.Background(), func(*core.Engine) { s.Settled() }))

	rec, body := do(t, h, "GET", "/v1/passengers/"+testutil.Passenger2.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.5", body["credit"])

	rec, body = do(t, h, "GET", "/v1/passengers/"+testutil.Passenger1.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", body["credit"])
}

func TestGRPC_JSONCodecRoundTrip(t *testing.T) {
	svc, _ := running(t)
	m := observability.NewMetrics(prometheus.NewRegistry())
	srv := NewGRPCServer("", "", svc, nil, m, zerolog.Nop())

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.grpcServer.Serve(lis) }()
	t.Cleanup(srv.grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	var submit SubmitResponse
	err = conn.Invoke(ctx, "/"+ServiceName+"/Submit", &SubmitRequest{
		CallType: "FundAirline",
		Payload:  json.RawMessage(fundPayload(testutil.Airline.String())),
	}, &submit)
	require.NoError(t, err)
	assert.Equal(t, int64(1), submit.Sequence)
	assert.Len(t, submit.StateHash, 64)

	var st StatusResponse
	require.NoError(t, conn.Invoke(ctx, "/"+ServiceName+"/GetStatus", &StatusRequest{}, &st))
	assert.Equal(t, "10", st.Funds)
	assert.Equal(t, int64(1), st.Sequence)

	err = conn.Invoke(ctx, "/"+ServiceName+"/Submit", &SubmitRequest{
		CallType: "FundAirline",
		Payload:  json.RawMessage(fundPayload(testutil.Airline.String())),
	}, &submit)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	assert.Equal(t, 1.0, prom.ToFloat64(m.QueryErrors.WithLabelValues("/"+ServiceName+"/Submit", "FailedPrecondition")))
	assert.Equal(t, 2.0, prom.ToFloat64(m.QueryRequests.WithLabelValues("/"+ServiceName+"/Submit")))
}
