package core

import (
	"FlightSurety/internal/errs"
	"FlightSurety/internal/event"
	"FlightSurety/internal/ledger"
	"FlightSurety/internal/observability"
	"FlightSurety/internal/oracle"
	"FlightSurety/internal/state"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Engine is the single-threaded call processor. It validates and applies
// each call atomically: a rejected call leaves no trace. Engine is not safe
// for concurrent use; the Executor serializes access to it.
type Engine struct {
	sequence       int64 // next sequence to assign
	hasher         *StateHasher
	genesis        Genesis
	treasury       *ledger.Treasury
	balanceTracker *ledger.BalanceTracker
	journalGen     *ledger.JournalGenerator
	validator      *ledger.InvariantValidator
	airlines       *state.AirlineRegistry
	flights        *state.FlightRegistry
	insurance      *state.InsuranceBook
	oracles        *oracle.Coordinator
	idempotency    *IdempotencyChecker
	payer          Payer
	outbox         *event.Outbox
	metrics        *observability.Metrics
	logger         zerolog.Logger

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

// CoreOutput is everything one applied call produced.
type CoreOutput struct {
	Envelope      *event.CallEnvelope
	Call          event.Call
	Batch         *ledger.Batch // nil when no funds moved
	Notifications []event.Emitted
}

// Receipt is returned to the submitter of an applied call.
type Receipt struct {
	Sequence      int64
	Duplicate     bool // already applied earlier; nothing happened now
	StateHash     [32]byte
	Notifications []event.Emitted

	// Per-call results
	Indexes   [oracle.IndexCount]uint8 // registerOracle
	RequestID string                   // fetchFlightStatus, submitOracleResponse
	Index     uint8                    // fetchFlightStatus
	Amount    int64                    // creditInsurees total, pay amount
}

// EngineConfig wires the engine's collaborators. Only Genesis is required.
type EngineConfig struct {
	Genesis        Genesis
	Entropy        oracle.Entropy // defaults to Keccak over an empty seed
	Payer          Payer          // defaults to an in-memory WalletPayer
	Outbox         *event.Outbox
	PersistChan    chan<- CoreOutput
	ProjectionChan chan<- CoreOutput
	DBChecker      DBIdempotencyChecker
	LRUCapacity    int
	Metrics        *observability.Metrics
	Logger         *zerolog.Logger
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	g := cfg.Genesis
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	if g.AppID.IsZero() {
		g.AppID = DefaultAppID
	}

	entropy := cfg.Entropy
	if entropy == nil {
		entropy = oracle.NewKeccakEntropy(nil)
	}
	coordinator, err := oracle.NewCoordinator(oracle.Config{
		Fee:         g.Params.OracleFee,
		Quorum:      g.Params.OracleQuorum,
		IndexDomain: g.Params.IndexDomain,
	}, entropy)
	if err != nil {
		return nil, err
	}

	payer := cfg.Payer
	if payer == nil {
		payer = NewWalletPayer()
	}
	outbox := cfg.Outbox
	if outbox == nil {
		outbox = event.NewOutbox()
	}
	capacity := cfg.LRUCapacity
	if capacity <= 0 {
		capacity = 1_000_000
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	balanceTracker := ledger.NewBalanceTracker()
	flights := state.NewFlightRegistry()

	e := &Engine{
		sequence:       1,
		hasher:         NewStateHasher(),
		genesis:        g,
		treasury:       ledger.NewTreasury(g.Owner),
		balanceTracker: balanceTracker,
		journalGen:     ledger.NewJournalGenerator(balanceTracker),
		validator:      ledger.NewInvariantValidator(balanceTracker),
		airlines:       state.NewAirlineRegistry(g.Params.BootstrapCount),
		flights:        flights,
		insurance:      state.NewInsuranceBook(flights, g.Params.Premium, g.Params.PayoutNum, g.Params.PayoutDen),
		oracles:        coordinator,
		idempotency:    NewIdempotencyChecker(capacity, cfg.DBChecker),
		payer:          payer,
		outbox:         outbox,
		metrics:        cfg.Metrics,
		logger:         logger,
		persistChan:    cfg.PersistChan,
		projectionChan: cfg.ProjectionChan,
	}

	// The ledger trusts the application identity from the start.
	if err := e.treasury.Authorize(g.Owner, g.AppID, false); err != nil {
		return nil, err
	}
	e.airlines.Bootstrap(g.FirstAirline, g.FirstAirlineName, g.AutoFundFirstAirline)

	return e, nil
}

// Execute is the main processing pipeline for live calls.
func (e *Engine) Execute(call event.Call) (*Receipt, error) {
	callType := call.CallType().String()

	// Step 1: Idempotency check (two-tier)
	if dup, tier := e.idempotency.IsDuplicate(callType, call.IdempotencyKey()); dup {
		if e.metrics != nil {
			e.metrics.CoreCallsRejected.WithLabelValues(callType, "duplicate").Inc()
			e.metrics.IdempotencyDuplicates.WithLabelValues(callType, tier).Inc()
		}
		return &Receipt{Duplicate: true}, nil
	}

	receipt, output, err := e.apply(call, e.payer)
	if err != nil {
		return nil, err
	}

	// Emit outputs: persistence is a blocking send so nothing is lost,
	// projections are best effort and rebuild from the event log.
	if e.persistChan != nil {
		select {
		case e.persistChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.PersistBackpressure.Inc()
			}
			e.persistChan <- output
		}
	}
	if e.projectionChan != nil {
		select {
		case e.projectionChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.ProjectionDrops.Inc()
			}
		}
	}
	e.outbox.Append(output.Notifications...)

	return receipt, nil
}

// Replay re-applies a call from the event log. Nothing is emitted, no
// external transfer is repeated, and the resulting state hash must match
// the one recorded in env.
func (e *Engine) Replay(call event.Call, env *event.CallEnvelope) error {
	if env.Sequence != e.sequence {
		return fmt.Errorf("replay: expected sequence %d, log has %d", e.sequence, env.Sequence)
	}
	receipt, _, err := e.apply(call, replayPayer{})
	if err != nil {
		return fmt.Errorf("replay sequence %d: %w", env.Sequence, err)
	}
	if receipt.StateHash != env.StateHash {
		return fmt.Errorf("replay sequence %d: state hash mismatch: computed %x, logged %x",
			env.Sequence, receipt.StateHash, env.StateHash)
	}
	if e.metrics != nil {
		e.metrics.ReplayCallsTotal.Inc()
	}
	return nil
}

func (e *Engine) apply(call event.Call, payer Payer) (*Receipt, CoreOutput, error) {
	start := time.Now()
	callType := call.CallType().String()
	seq := e.sequence

	// Step 2: Validate + mutate (handlers check every precondition first)
	fx, err := e.dispatch(call, seq, payer)
	if err != nil {
		e.reject(call, err)
		return nil, CoreOutput{}, err
	}

	// Step 3: Post-checks
	if err := e.validator.ValidateAll(); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 4: Chain the state hash
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(seq, e.computeStateDigest())

	envelope := &event.CallEnvelope{
		Sequence:       seq,
		IdempotencyKey: call.IdempotencyKey(),
		CallType:       call.CallType(),
		Caller:         call.Sender(),
		Timestamp:      call.CallTimestamp(),
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	emitted := make([]event.Emitted, 0, len(fx.notes))
	for _, n := range fx.notes {
		emitted = append(emitted, event.Emitted{
			Sequence:  seq,
			CallID:    call.IdempotencyKey(),
			Type:      n.NotificationType(),
			Payload:   n,
			Timestamp: call.CallTimestamp(),
		})
	}

	e.idempotency.MarkProcessed(callType, call.IdempotencyKey())
	e.sequence++

	receipt := fx.receipt
	receipt.Sequence = seq
	receipt.StateHash = stateHash
	receipt.Notifications = emitted

	e.recordApplied(callType, fx, emitted, start)

	return &receipt, CoreOutput{
		Envelope:      envelope,
		Call:          call,
		Batch:         fx.batch,
		Notifications: emitted,
	}, nil
}

func (e *Engine) reject(call event.Call, err error) {
	callType := call.CallType().String()
	if e.metrics != nil {
		e.metrics.CoreCallsRejected.WithLabelValues(callType, errs.KindOf(err).String()).Inc()
	}
	e.logger.Debug().
		Str("call_type", callType).
		Str("call_id", call.IdempotencyKey()).
		Str("caller", call.Sender().String()).
		Err(err).
		Msg("call rejected")
}

func (e *Engine) recordApplied(callType string, fx effect, emitted []event.Emitted, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.CoreCallsApplied.WithLabelValues(callType).Inc()
	e.metrics.CoreCallDuration.WithLabelValues(callType).Observe(time.Since(start).Seconds())
	e.metrics.CoreSequence.Set(float64(e.sequence - 1))
	if fx.batch != nil {
		for _, j := range fx.batch.Journals {
			e.metrics.CoreJournals.WithLabelValues(j.JournalType.String()).Inc()
		}
	}
	for _, n := range emitted {
		e.metrics.CoreNotifications.WithLabelValues(n.Type.String()).Inc()
	}
	e.metrics.TotalFunds.Set(float64(e.balanceTracker.PoolBalance()))
	e.metrics.OracleFeesCollected.Set(float64(e.balanceTracker.GetBalance(ledger.OracleFeeAccount())))
	e.metrics.FundedAirlines.Set(float64(e.airlines.FundedCount()))
	e.metrics.RegisteredOracles.Set(float64(e.oracles.OracleCount()))
	e.metrics.OpenOracleRequests.Set(float64(e.oracles.OpenRequests()))
	e.metrics.DedupLRUSize.Set(float64(e.idempotency.LRU().Size()))
}

// computeStateDigest creates canonical bytes for the state hash: balances
// sorted by account path, then the treasury, airlines, flights and oracles.
func (e *Engine) computeStateDigest() []byte {
	balances := e.balanceTracker.Snapshot()
	accounts := make([]ledger.AccountKey, 0, len(balances))
	for key, bal := range balances {
		if bal != 0 {
			accounts = append(accounts, key)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, 256+len(accounts)*64)
	for _, key := range accounts {
		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, path...)
		digest = appendInt64LE(digest, balances[key])
	}

	if e.treasury.IsOperational() {
		digest = append(digest, 1)
	} else {
		digest = append(digest, 0)
	}
	for _, a := range e.treasury.AuthorizedCallers() {
		digest = append(digest, a[:]...)
	}

	digest = e.airlines.AppendCanonical(digest)
	digest = e.flights.AppendCanonical(digest)
	digest = e.oracles.AppendCanonical(digest)
	return digest
}

// WarmLRU loads recent idempotency keys into the LRU cache.
func (e *Engine) WarmLRU(keys []string) {
	e.idempotency.LRU().WarmFromKeys(keys)
}

// GetSequence returns the last applied sequence (0 before any call).
func (e *Engine) GetSequence() int64 {
	return e.sequence - 1
}

// GetStateHash returns the current state hash (chain tip).
func (e *Engine) GetStateHash() [32]byte {
	return e.hasher.GetPrevHash()
}

// Outbox returns the notification queue the relay layer drains.
func (e *Engine) Outbox() *event.Outbox {
	return e.outbox
}

// Genesis returns the genesis the engine was created with.
func (e *Engine) Genesis() Genesis {
	return e.genesis
}
