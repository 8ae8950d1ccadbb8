package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	matchlog "steelfront.dev/internal/persistence/log"
	"steelfront.dev/internal/sim/battle"
	"steelfront.dev/internal/sim/catalogs"
	"steelfront.dev/internal/sim/scenario"
	"steelfront.dev/internal/sim/tuning"
)

// Re-simulates a recorded match from its log and config files, verifying
// every tick digest. A nonzero exit names the first mismatched tick.
func main() {
	var (
		logPath      = flag.String("log", "", "path to <match>.jsonl.zst")
		configDir    = flag.String("configs", "./configs", "config directory")
		scenarioPath = flag.String("scenario", "", "path to scenario.yaml (default: <configs>/scenario.yaml)")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		toTick       = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *logPath == "" {
		fmt.Fprintln(os.Stderr, "missing -log")
		os.Exit(2)
	}

	r, err := matchlog.Open(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open log:", err)
		os.Exit(1)
	}
	defer r.Close()
	hdr := r.Header()

	fmt.Printf("match=%s seed=%d tick_rate=%d roster=%s scenario=%s\n",
		hdr.MatchID, hdr.Seed, hdr.TickRateHz, strings.Join(hdr.Roster, ","), hdr.ScenarioID)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	tune.TickRateHz = hdr.TickRateHz

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	if cats.Units.Digest != hdr.UnitsDigest || cats.Weapons.Digest != hdr.WeaponsDigest {
		fmt.Fprintln(os.Stderr, "catalog digests do not match the recorded match; wrong config dir?")
		os.Exit(1)
	}

	sp := strings.TrimSpace(*scenarioPath)
	if sp == "" {
		sp = filepath.Join(*configDir, "scenario.yaml")
	}
	scen, err := scenario.Load(sp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load scenario:", err)
		os.Exit(1)
	}
	if scen.Digest != hdr.ScenarioDigest {
		fmt.Fprintln(os.Stderr, "scenario digest does not match the recorded match")
		os.Exit(1)
	}

	b, err := battle.New(battle.Config{
		MatchID: hdr.MatchID,
		Seed:    hdr.Seed,
		Roster:  hdr.Roster,
		Tuning:  tune,
	}, cats, scen)
	if err != nil {
		fmt.Fprintln(os.Stderr, "new battle:", err)
		os.Exit(1)
	}

	var checked uint64
	for {
		entry, ok, err := r.Next()
		if err != nil {
			fmt.Fprintln(os.Stderr, "read log:", err)
			os.Exit(1)
		}
		if !ok {
			break
		}
		if *toTick != 0 && entry.Tick > *toTick {
			break
		}
		if entry.Tick != b.Tick() {
			fmt.Fprintf(os.Stderr, "tick gap in log: want=%d got=%d\n", b.Tick(), entry.Tick)
			os.Exit(1)
		}
		tick, sample := b.StepOnce(entry.Commands)
		if sample.Digest != entry.Digest {
			fmt.Fprintf(os.Stderr, "digest mismatch at tick %d: got=%s want=%s\n", tick, sample.Digest, entry.Digest)
			os.Exit(1)
		}
		checked++
	}
	fmt.Printf("replay ok: checked=%d ticks\n", checked)
}
