package core

import (
	"FlightSurety/internal/event"
	"FlightSurety/internal/ledger"
	"FlightSurety/internal/oracle"
	"FlightSurety/internal/state"
	"fmt"
)

// --- Snapshot Restore & Startup Methods ---

// SnapshotState holds the serializable in-memory state for restore.
// Balances are keyed by account path so the whole value encodes as JSON.
type SnapshotState struct {
	Sequence        int64                 `json:"sequence"`
	StateHash       [32]byte              `json:"state_hash"`
	Operational     bool                  `json:"operational"`
	Authorized      []event.Address       `json:"authorized"`
	Balances        map[string]int64      `json:"balances"`
	Airlines        []state.AirlineRecord `json:"airlines"`
	Flights         []state.FlightRecord  `json:"flights"`
	Oracles         oracle.Snapshot       `json:"oracles"`
	IdempotencyKeys []string              `json:"idempotency_keys"`
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	balances := e.balanceTracker.Snapshot()
	paths := make(map[string]int64, len(balances))
	for key, bal := range balances {
		if bal != 0 {
			paths[key.AccountPath()] = bal
		}
	}

	return &SnapshotState{
		Sequence:        e.sequence - 1, // last applied
		StateHash:       e.hasher.GetPrevHash(),
		Operational:     e.treasury.IsOperational(),
		Authorized:      e.treasury.AuthorizedCallers(),
		Balances:        paths,
		Airlines:        e.airlines.Records(),
		Flights:         e.flights.Records(),
		Oracles:         e.oracles.Snapshot(),
		IdempotencyKeys: e.idempotency.LRU().Keys(),
	}
}

// RestoreFromSnapshot replaces the engine's state with snap. The engine must
// be freshly built from the same genesis; calls after snap.Sequence are then
// replayed on top.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) error {
	// Parse everything first so a bad snapshot leaves the engine untouched
	balances := make(map[ledger.AccountKey]int64, len(snap.Balances))
	for path, bal := range snap.Balances {
		key, err := ledger.ParseAccountPath(path)
		if err != nil {
			return fmt.Errorf("restore balances: %w", err)
		}
		balances[key] = bal
	}

	e.balanceTracker = ledger.NewBalanceTracker()
	for key, bal := range balances {
		e.balanceTracker.SetBalance(key, bal)
	}
	e.journalGen = ledger.NewJournalGenerator(e.balanceTracker)
	e.validator = ledger.NewInvariantValidator(e.balanceTracker)

	e.treasury.Restore(snap.Operational, snap.Authorized)
	e.airlines.Restore(snap.Airlines)
	e.flights.Restore(snap.Flights)
	e.oracles.Restore(snap.Oracles)

	// Restore sequence and the hash chain
	e.sequence = snap.Sequence + 1
	e.hasher.SetPrevHash(snap.StateHash)
	e.WarmLRU(snap.IdempotencyKeys)

	if err := e.validator.ValidateAll(); err != nil {
		return fmt.Errorf("restored state violates ledger invariants: %w", err)
	}
	return nil
}
