package persistence

import (
	"FlightSurety/internal/core"
	"FlightSurety/internal/event"
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// CallSource pages through the call log in sequence order.
type CallSource interface {
	LoadCallsFrom(ctx context.Context, fromSequence int64, limit int) ([]CallRow, error)
}

// DecodeRow rebuilds a call and its envelope from a log row.
func DecodeRow(row CallRow) (event.Call, *event.CallEnvelope, error) {
	ct, ok := event.ParseCallType(row.CallType)
	if !ok {
		return nil, nil, fmt.Errorf("sequence %d: unknown call type %q", row.Sequence, row.CallType)
	}
	call, err := event.DecodeCall(ct, row.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("sequence %d: %w", row.Sequence, err)
	}
	caller, err := event.ParseAddress(row.Caller)
	if err != nil {
		return nil, nil, fmt.Errorf("sequence %d: caller: %w", row.Sequence, err)
	}
	if len(row.StateHash) != 32 || len(row.PrevHash) != 32 {
		return nil, nil, fmt.Errorf("sequence %d: malformed hash", row.Sequence)
	}

	env := &event.CallEnvelope{
		Sequence:       row.Sequence,
		IdempotencyKey: row.IdempotencyKey,
		CallType:       ct,
		Caller:         caller,
		Timestamp:      row.Timestamp,
	}
	copy(env.StateHash[:], row.StateHash)
	copy(env.PrevHash[:], row.PrevHash)
	return call, env, nil
}

// ReplayLog re-applies every logged call after the engine's current sequence
// and returns how many were replayed. Any hash mismatch aborts the replay.
func ReplayLog(ctx context.Context, eng *core.Engine, src CallSource, pageSize int, logger zerolog.Logger) (int, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}
	replayed := 0
	for {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		from := eng.GetSequence() + 1
		rows, err := src.LoadCallsFrom(ctx, from, pageSize)
		if err != nil {
			return replayed, fmt.Errorf("load calls from %d: %w", from, err)
		}
		for _, row := range rows {
			call, env, err := DecodeRow(row)
			if err != nil {
				return replayed, err
			}
			if env.PrevHash != eng.GetStateHash() {
				return replayed, fmt.Errorf("sequence %d: chain broken: prev %x, engine at %x",
					env.Sequence, env.PrevHash, eng.GetStateHash())
			}
			if err := eng.Replay(call, env); err != nil {
				return replayed, err
			}
			replayed++
		}
		if len(rows) < pageSize {
			break
		}
		logger.Info().Int("replayed", replayed).Int64("sequence", eng.GetSequence()).Msg("replay progress")
	}
	return replayed, nil
}
