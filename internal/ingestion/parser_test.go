package ingestion_test

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"FlightSurety/internal/ingestion"
	fpmath "FlightSurety/internal/math"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	callID    = "550e8400-e29b-41d4-a716-446655440000"
	airlineHx = "0x0000000000000000000000000000000000000011"
	paxHx     = "0x00000000000000000000000000000000000000b1"
)

func payload(t *testing.T, fields map[string]interface{}) []byte {
	t.Helper()
	base := map[string]interface{}{
		"call_id":      callID,
		"caller":       paxHx,
		"timestamp_us": int64(1_700_000_000_000_000),
	}
	for k, v := range fields {
		base[k] = v
	}
	data, err := json.Marshal(base)
	require.NoError(t, err)
	return data
}

func flight() map[string]interface{} {
	return map[string]interface{}{"airline": airlineHx, "code": "ND1309", "departure": 1_700_000_000}
}

func TestCallTypeFromSubject(t *testing.T) {
	ct, err := ingestion.CallTypeFromSubject("flightsurety.calls.BuyInsurance")
	require.NoError(t, err)
	assert.Equal(t, event.CallTypeBuyInsurance, ct)

	_, err = ingestion.CallTypeFromSubject("flightsurety.calls.Liquidate")
	assert.Error(t, err)
	_, err = ingestion.CallTypeFromSubject("other.calls.BuyInsurance")
	assert.Error(t, err)
}

func TestParseBuyInsurance(t *testing.T) {
	call, err := ingestion.ParseCall(event.CallTypeBuyInsurance, payload(t, map[string]interface{}{
		"value":  "1",
		"flight": flight(),
	}))
	require.NoError(t, err)

	buy, ok := call.(*event.BuyInsurance)
	require.True(t, ok, "got %T", call)
	assert.Equal(t, callID, buy.IdempotencyKey())
	assert.Equal(t, paxHx, buy.Caller.String())
	assert.Equal(t, fpmath.Units(1), buy.Value)
	assert.Equal(t, time.UnixMicro(1_700_000_000_000_000).UTC(), buy.Timestamp)
	assert.Equal(t, "ND1309", buy.Flight.Code)
	assert.Equal(t, airlineHx, buy.Flight.Airline.String())
}

func TestParseFractionalValue(t *testing.T) {
	call, err := ingestion.ParseCall(event.CallTypeFundAirline, payload(t, map[string]interface{}{"value": "10.5"}))
	require.NoError(t, err)
	assert.Equal(t, int64(10_500_000), call.Payment())
}

func TestParseSubmitOracleResponse(t *testing.T) {
	call, err := ingestion.ParseCall(event.CallTypeSubmitOracleResponse, payload(t, map[string]interface{}{
		"flight":      flight(),
		"index":       3,
		"status_code": 20,
	}))
	require.NoError(t, err)

	resp := call.(*event.SubmitOracleResponse)
	assert.Equal(t, uint8(3), resp.Index)
	assert.Equal(t, event.StatusLateAirline, resp.StatusCode)
}

func TestParseEveryCallType(t *testing.T) {
	fields := map[string]interface{}{
		"operational": true,
		"target":      airlineHx,
		"candidate":   airlineHx,
		"name":        "Second Air",
		"flight_code": "ND1309",
		"departure":   1_700_000_000,
		"flight":      flight(),
		"index":       0,
		"status_code": 10,
	}
	for _, ct := range event.AllCallTypes {
		call, err := ingestion.ParseCall(ct, payload(t, fields))
		require.NoError(t, err, ct.String())
		assert.Equal(t, ct, call.CallType())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		ct   event.CallType
		data []byte
	}{
		{"not json", event.CallTypeFundAirline, []byte("{")},
		{"bad call id", event.CallTypeFundAirline, payload(t, map[string]interface{}{"call_id": "nope"})},
		{"bad caller", event.CallTypeFundAirline, payload(t, map[string]interface{}{"caller": "0x12"})},
		{"missing timestamp", event.CallTypeFundAirline, payload(t, map[string]interface{}{"timestamp_us": 0})},
		{"negative value", event.CallTypeFundAirline, payload(t, map[string]interface{}{"value": "-1"})},
		{"too many decimals", event.CallTypeFundAirline, payload(t, map[string]interface{}{"value": "0.0000001"})},
		{"missing flight", event.CallTypeBuyInsurance, payload(t, nil)},
		{"missing operational", event.CallTypeSetOperatingStatus, payload(t, nil)},
		{"missing status", event.CallTypeSubmitOracleResponse, payload(t, map[string]interface{}{"flight": flight(), "index": 1})},
		{"missing flight code", event.CallTypeRegisterFlight, payload(t, nil)},
		{"bad target", event.CallTypeAuthorizeCaller, payload(t, map[string]interface{}{"target": "x"})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ingestion.ParseCall(tc.ct, tc.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrInvalidCallPayload)
		})
	}
}
