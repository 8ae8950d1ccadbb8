package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"steelfront.dev/internal/persistence/indexdb"
	matchlog "steelfront.dev/internal/persistence/log"
	"steelfront.dev/internal/sim/battle"
	"steelfront.dev/internal/sim/catalogs"
	"steelfront.dev/internal/sim/scenario"
	"steelfront.dev/internal/sim/tuning"
	"steelfront.dev/internal/transport/observer"
	"steelfront.dev/internal/transport/ws"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		matchID      = flag.String("match", "match_1", "match id")
		seed         = flag.Int64("seed", 1337, "match seed")
		roster       = flag.String("roster", "P1,P2", "comma-separated player ids")
		configDir    = flag.String("configs", "./configs", "config directory")
		scenarioPath = flag.String("scenario", "", "path to scenario.yaml (default: <configs>/scenario.yaml)")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite match index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	sp := strings.TrimSpace(*scenarioPath)
	if sp == "" {
		sp = filepath.Join(*configDir, "scenario.yaml")
	}
	scen, err := scenario.Load(sp)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}

	players := strings.Split(*roster, ",")
	for i := range players {
		players[i] = strings.TrimSpace(players[i])
	}

	b, err := battle.New(battle.Config{
		MatchID: *matchID,
		Seed:    *seed,
		Roster:  players,
		Tuning:  tune,
	}, cats, scen)
	if err != nil {
		logger.Fatalf("new battle: %v", err)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		idx.RecordMatch(b.Header())
	}

	ml, err := matchlog.Create(filepath.Join(*dataDir, "matches"), b.Header())
	if err != nil {
		logger.Fatalf("open match log: %v", err)
	}
	defer ml.Close()
	b.SetTickLogger(tickSink{matchID: *matchID, log: ml, idx: idx})

	srv := ws.NewServer(b, logger)
	obs := observer.NewServer(b, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", srv.Handler())
	mux.HandleFunc("/v1/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obs.WSHandler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go srv.Broadcast(ctx)
	go obs.Pump(ctx)

	httpSrv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s (match %s, %d players, %d Hz)",
			*addr, *matchID, len(players), tune.TickRateHz)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http: %v", err)
		}
	}()

	err = b.Run(ctx)
	_ = httpSrv.Shutdown(context.Background())

	var fault battle.Fault
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Printf("match %s stopped at tick %d", *matchID, b.Tick())
	case errors.As(err, &fault):
		if idx != nil {
			idx.RecordFault(*matchID, fault)
			idx.Flush()
		}
		// Fatalf exits without running the defers; seal the log first so
		// the faulted match can still be replayed.
		_ = ml.Close()
		logger.Fatalf("match %s died: %v", *matchID, fault)
	default:
		_ = ml.Close()
		logger.Fatalf("match %s: %v", *matchID, err)
	}
}

// tickSink fans each tick entry to the replay log and, when enabled, the
// sqlite index.
type tickSink struct {
	matchID string
	log     *matchlog.MatchLog
	idx     *indexdb.SQLiteIndex
}

func (s tickSink) WriteTick(e battle.TickLogEntry) error {
	if err := s.log.WriteTick(e); err != nil {
		return err
	}
	return s.idx.WriteTick(s.matchID, e)
}
