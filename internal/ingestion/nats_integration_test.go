package ingestion_test

import (
	"FlightSurety/internal/core"
	"FlightSurety/internal/ingestion"
	"FlightSurety/internal/testutil"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Publishes a call on JetStream and follows it through the subscriber,
// dispatcher, engine and outbox relay back onto the event stream.
func TestNATS_CallRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)

	logger := zerolog.Nop()
	nc, js, err := ingestion.ConnectNATS(testutil.TestNATSURL(), logger)
	if err != nil {
		t.Skipf("test NATS not available: %v", err)
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	require.NoError(t, ingestion.EnsureStreams(ctx, js, logger))
	for _, name := range []string{ingestion.CallStreamName, ingestion.EventStreamName} {
		s, err := js.Stream(ctx, name)
		require.NoError(t, err)
		require.NoError(t, s.Purge(ctx))
	}

	s := testutil.NewScenario(t)
	x := core.NewExecutor(s.Engine, 16)
	go func() { _ = x.Run(ctx) }()
	defer x.Stop()

	rawChan := make(chan ingestion.RawCall, 16)
	sub := ingestion.NewNATSSubscriber(js, rawChan, logger)
	require.NoError(t, sub.Subscribe(ctx, "it-"+uuid.NewString()[:8]))
	defer sub.Stop()
	go func() { _ = ingestion.NewDispatcher(rawChan, x, nil, logger).Run(ctx) }()

	body := fmt.Sprintf(`{"call_id":%q,"caller":%q,"value":"10","timestamp_us":1700000000000000}`,
		uuid.NewString(), testutil.Airline.String())
	_, err = js.Publish(ctx, ingestion.CallSubjectPrefix+"FundAirline", []byte(body))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var seq int64
		_ = x.View(ctx, func(e *core.Engine) { seq = e.GetSequence() })
		return seq == 1
	}, 10*time.Second, 20*time.Millisecond)

	relay := ingestion.NewOutboxRelay(js, s.Engine.Outbox(), nil, logger)
	assert.Equal(t, 1, relay.Flush(ctx))

	events, err := js.Stream(ctx, ingestion.EventStreamName)
	require.NoError(t, err)
	msg, err := events.GetLastMsgForSubject(ctx, ingestion.EventSubjectPrefix+"AirlineFunded")
	require.NoError(t, err)
	assert.Contains(t, string(msg.Data), testutil.Airline.String())
}
