package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultLimit, clampLimit(0))
	assert.Equal(t, defaultLimit, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, maxLimit, clampLimit(maxLimit+1))
}

func TestBuildListFlights(t *testing.T) {
	tests := []struct {
		name     string
		filter   FlightFilter
		contains []string
		args     []interface{}
	}{
		{
			name:     "no filter",
			filter:   FlightFilter{},
			contains: []string{"LIMIT $1"},
			args:     []interface{}{defaultLimit},
		},
		{
			name:     "airline and cursor",
			filter:   FlightFilter{Airline: "0xabc", AfterDeparture: 100, Limit: 10},
			contains: []string{"f.airline = $1", "f.departure > $2", "LIMIT $3"},
			args:     []interface{}{"0xabc", int64(100), 10},
		},
		{
			name:     "status only",
			filter:   FlightFilter{StatusCode: func() *uint8 { s := uint8(20); return &s }()},
			contains: []string{"f.status_code = $1", "LIMIT $2"},
			args:     []interface{}{int16(20), defaultLimit},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, args := buildListFlights(tc.filter)
			for _, s := range tc.contains {
				assert.Contains(t, q, s)
			}
			assert.Equal(t, tc.args, args)
		})
	}
}

func TestSQLBuilder_ReusesPlaceholder(t *testing.T) {
	var b sqlBuilder
	p := b.arg("x")
	b.write("a = " + p + " OR b = " + p)
	assert.Equal(t, "a = $1 OR b = $1", b.String())
	assert.Len(t, b.args, 1)
}
