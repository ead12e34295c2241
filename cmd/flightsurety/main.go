package main

import (
	"FlightSurety/internal/config"
	"FlightSurety/internal/core"
	"FlightSurety/internal/event"
	"FlightSurety/internal/ingestion"
	"FlightSurety/internal/observability"
	"FlightSurety/internal/oracle"
	"FlightSurety/internal/persistence"
	"FlightSurety/internal/projection"
	"FlightSurety/internal/query"
	"FlightSurety/internal/server"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default: $FLIGHTSURETY_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLoggerWithLevel("flightsurety", observability.ParseLogLevel(cfg.LogLevel))
	logger.Info().Msg("FlightSurety starting")

	genesis, err := cfg.Genesis.CoreGenesis()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid genesis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("postgres ping")
	}
	logger.Info().Msg("postgres connected")

	if err := persistence.NewMigrator(db, cfg.MigrationsDir, logger).Up(ctx); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	// --- Observability ---
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	healthChecker := observability.NewHealthChecker()

	// --- Engine ---
	persistChan := make(chan core.CoreOutput, cfg.PersistChanSize)
	projectionChan := make(chan core.CoreOutput, cfg.ProjectionChanSize)
	outbox := event.NewOutbox()
	engineLogger := logger.With().Str("component", "engine").Logger()

	var entropy oracle.Entropy
	if cfg.Genesis.EntropySeed != "" {
		entropy = oracle.NewKeccakEntropy([]byte(cfg.Genesis.EntropySeed))
	}

	eng, err := core.NewEngine(core.EngineConfig{
		Genesis:        genesis,
		Entropy:        entropy,
		Payer:          core.NewWalletPayer(),
		Outbox:         outbox,
		PersistChan:    persistChan,
		ProjectionChan: projectionChan,
		DBChecker:      persistence.NewPostgresIdempotencyChecker(db),
		LRUCapacity:    cfg.IdempotencyLRUCapacity,
		Metrics:        metrics,
		Logger:         &engineLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build engine")
	}

	// --- Recovery: snapshot + replay ---
	snapMgr := persistence.NewSnapshotManager(db)
	cache, err := persistence.OpenLocalSnapshotCache(cfg.SnapshotDir, cfg.SnapshotKeep)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.SnapshotDir).Msg("open snapshot cache")
	}
	defer cache.Close()

	if err := restore(ctx, eng, cache, snapMgr, logger); err != nil {
		logger.Fatal().Err(err).Msg("restore snapshot")
	}
	replayed, err := persistence.ReplayLog(ctx, eng, snapMgr, 1000, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("event log replay failed")
	}
	startSequence := eng.GetSequence()
	logger.Info().
		Int("replayed", replayed).
		Int64("sequence", startSequence).
		Hex("state_hash", hashBytes(eng.GetStateHash())).
		Msg("state recovered")

	executor := core.NewExecutor(eng, cfg.ExecutorQueueSize)

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()

	if err := ingestion.EnsureStreams(ctx, js, logger); err != nil {
		logger.Fatal().Err(err).Msg("ensure NATS streams")
	}

	rawChan := make(chan ingestion.RawCall, 4096)
	subscriber := ingestion.NewNATSSubscriber(js, rawChan, logger)
	if err := subscriber.Subscribe(ctx, cfg.ConsumerName); err != nil {
		logger.Fatal().Err(err).Msg("nats subscribe")
	}
	dispatcher := ingestion.NewDispatcher(rawChan, executor, metrics, logger)
	relay := ingestion.NewOutboxRelay(js, outbox, metrics, logger)

	// --- Workers ---
	// Workers outlive ctx so they can drain after the executor stops.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	persistWorker := persistence.NewPersistenceWorker(db, persistChan, cfg.PersistBatchSize, cfg.PersistFlushTimeout, metrics, logger)
	projWorker := projection.NewProjectionWorker(db, projectionChan, logger)

	snapshots := &snapshotter{executor: executor, cache: cache, mgr: snapMgr, metrics: metrics, logger: logger}

	svc := server.NewService(server.Deps{
		Engine:   executor,
		Query:    query.NewQueryService(db),
		Snapshot: snapshots.Take,
		Rebuild:  func(ctx context.Context) error { return projection.RebuildProjections(ctx, db, logger) },
		LogInfo:  snapMgr.GetLatestSequence,
	})
	grpcServer := server.NewGRPCServer(cfg.GRPCAddr, cfg.HTTPAddr, svc, healthChecker, metrics, logger)

	// --- Start goroutines ---
	errChan := make(chan error, 10)
	var executorDone, workersDone sync.WaitGroup

	// 1. Executor
	executorDone.Add(1)
	go func() {
		defer executorDone.Done()
		if err := executor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("executor: %w", err)
		}
	}()

	// 2. Persistence worker
	workersDone.Add(2)
	go func() {
		defer workersDone.Done()
		if err := persistWorker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("persistence worker: %w", err)
		}
	}()

	// 3. Projection worker
	go func() {
		defer workersDone.Done()
		if err := projWorker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("projection worker: %w", err)
		}
	}()

	// 4. NATS -> executor
	go func() { _ = dispatcher.Run(ctx) }()

	// 5. Outbox -> NATS
	go func() { _ = relay.Run(ctx) }()

	// 6. gRPC server
	go func() { errChan <- grpcServer.StartGRPC(ctx) }()

	// 7. HTTP/JSON gateway
	go func() { errChan <- grpcServer.StartHTTPGateway(ctx) }()

	// 8. Periodic snapshots
	go snapshots.RunPeriodic(ctx, cfg.SnapshotInterval, startSequence)

	// 9. Prometheus metrics server
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			_ = metricsServer.Shutdown(shutCtx)
		}()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	healthChecker.SetReady(true)
	logger.Info().
		Int64("sequence", startSequence).
		Str("grpc", cfg.GRPCAddr).
		Str("http", cfg.HTTPAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("FlightSurety ready")

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		logger.Error().Err(err).Msg("goroutine failed, shutting down")
	}

	// --- Graceful shutdown ---
	// Stop intake, let the executor finish, drain the workers, then snapshot.
	healthChecker.SetReady(false)
	subscriber.Stop()
	cancel()
	executor.Stop()
	executorDone.Wait()

	close(persistChan)
	close(projectionChan)
	drained := make(chan struct{})
	go func() {
		workersDone.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(30 * time.Second):
		logger.Error().Msg("workers did not drain in time")
		workerCancel()
		<-drained
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if n := relay.Flush(shutdownCtx); n > 0 {
		logger.Info().Int("published", n).Msg("outbox flushed")
	}

	// The executor is stopped, so the engine can be read directly.
	if err := snapshots.save(shutdownCtx, eng.CreateSnapshotState()); err != nil {
		logger.Error().Err(err).Msg("final snapshot failed")
	} else {
		logger.Info().Int64("sequence", eng.GetSequence()).Msg("final snapshot saved")
	}

	logger.Info().Msg("FlightSurety shutdown complete")
}

// restore loads the newest snapshot from the local cache or Postgres,
// whichever is further ahead.
func restore(ctx context.Context, eng *core.Engine, cache *persistence.LocalSnapshotCache, mgr *persistence.SnapshotManager, logger zerolog.Logger) error {
	local, err := cache.Latest()
	if err != nil {
		logger.Warn().Err(err).Msg("local snapshot unreadable, falling back to postgres")
		local = nil
	}
	remote, err := mgr.LoadLatestSnapshot(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("load postgres snapshot")
		remote = nil
	}

	snap, source := local, "local"
	if remote != nil && (snap == nil || remote.Sequence > snap.Sequence) {
		snap, source = remote, "postgres"
	}
	if snap == nil {
		logger.Info().Msg("no snapshot found, replaying from genesis")
		return nil
	}

	if err := eng.RestoreFromSnapshot(snap); err != nil {
		return fmt.Errorf("%s snapshot at %d: %w", source, snap.Sequence, err)
	}
	logger.Info().Str("source", source).Int64("sequence", snap.Sequence).Msg("snapshot restored")
	return nil
}

func hashBytes(h [32]byte) []byte { return h[:] }

// snapshotter captures engine state on the executor goroutine and stores it
// in both the local cache and Postgres.
type snapshotter struct {
	executor *core.Executor
	cache    *persistence.LocalSnapshotCache
	mgr      *persistence.SnapshotManager
	metrics  *observability.Metrics
	logger   zerolog.Logger
	mu       sync.Mutex
}

// Take snapshots the live engine and returns the sequence captured.
func (s *snapshotter) Take(ctx context.Context) (int64, error) {
	var snap *core.SnapshotState
	if err := s.executor.View(ctx, func(e *core.Engine) { snap = e.CreateSnapshotState() }); err != nil {
		return 0, err
	}
	if err := s.save(ctx, snap); err != nil {
		return 0, err
	}
	return snap.Sequence, nil
}

func (s *snapshotter) save(ctx context.Context, snap *core.SnapshotState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	if err := s.cache.Put(snap); err != nil {
		s.logger.Warn().Err(err).Int64("sequence", snap.Sequence).Msg("local snapshot write failed")
	}
	if _, err := s.mgr.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	// taken from live state, so it is trusted immediately
	if err := s.mgr.MarkVerified(ctx, snap.Sequence); err != nil {
		s.logger.Warn().Err(err).Int64("sequence", snap.Sequence).Msg("mark snapshot verified failed")
	}

	if s.metrics != nil {
		s.metrics.SnapshotTaken.Inc()
		s.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
		s.metrics.SnapshotLastSeq.Set(float64(snap.Sequence))
	}
	return nil
}

// RunPeriodic snapshots every interval applied calls, checking every 10s.
func (s *snapshotter) RunPeriodic(ctx context.Context, interval, lastSeq int64) {
	if interval <= 0 {
		interval = 10_000
	}
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var seq int64
			if err := s.executor.View(ctx, func(e *core.Engine) { seq = e.GetSequence() }); err != nil {
				return
			}
			if seq-lastSeq < interval {
				continue
			}
			taken, err := s.Take(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("periodic snapshot failed")
				continue
			}
			lastSeq = taken
			s.logger.Info().Int64("sequence", taken).Msg("periodic snapshot")
		}
	}
}
