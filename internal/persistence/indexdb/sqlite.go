// Package indexdb maintains a queryable sqlite index beside the match
// logs: one row per match, one per tick digest, one per fault. The JSONL
// logs remain the source of truth; the index exists for lookups.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"steelfront.dev/internal/sim/battle"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqMatch reqKind = iota + 1
	reqTick
	reqFault
	reqFlush
)

type req struct {
	kind    reqKind
	matchID string

	header battle.MatchHeader
	tick   battle.TickLogEntry
	fault  battle.Fault
	flush  chan struct{}
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: tick digests arrive every frame and must never
		// stall the sim loop.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			tick_rate_hz INTEGER NOT NULL,
			roster TEXT NOT NULL,
			scenario_id TEXT NOT NULL,
			scenario_digest TEXT NOT NULL,
			units_digest TEXT NOT NULL,
			weapons_digest TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			match_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			commands INTEGER NOT NULL,
			PRIMARY KEY (match_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS faults (
			match_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			code TEXT NOT NULL,
			msg TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (match_id, tick, code)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_faults_code ON faults(code);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) RecordMatch(hdr battle.MatchHeader) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqMatch, matchID: hdr.MatchID, header: hdr}:
	default:
	}
}

func (s *SQLiteIndex) WriteTick(matchID string, entry battle.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, matchID: matchID, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
	}
	return nil
}

func (s *SQLiteIndex) RecordFault(matchID string, f battle.Fault) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqFault, matchID: matchID, fault: f}:
	default:
	}
}

// Flush blocks until every request queued so far has been committed.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqFlush, flush: done}
	<-done
}

// TickDigest returns the recorded digest for a tick, or "" when unknown.
func (s *SQLiteIndex) TickDigest(matchID string, tick uint64) (string, error) {
	var d string
	err := s.db.QueryRow(`SELECT digest FROM ticks WHERE match_id=? AND tick=?`, matchID, int64(tick)).Scan(&d)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return d, err
}

// Faults returns the faults recorded for a match in tick order.
func (s *SQLiteIndex) Faults(matchID string) ([]battle.Fault, error) {
	rows, err := s.db.Query(`SELECT tick, code, msg FROM faults WHERE match_id=? ORDER BY tick`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []battle.Fault
	for rows.Next() {
		var f battle.Fault
		var tick int64
		if err := rows.Scan(&tick, &f.Code, &f.Msg); err != nil {
			return nil, err
		}
		f.Tick = uint64(tick)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertMatch, _ := s.db.Prepare(`INSERT OR REPLACE INTO matches(match_id,seed,tick_rate_hz,roster,scenario_id,scenario_digest,units_digest,weapons_digest,started_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(match_id,tick,digest,commands) VALUES(?,?,?,?)`)
	insertFault, _ := s.db.Prepare(`INSERT OR REPLACE INTO faults(match_id,tick,code,msg,recorded_at) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertMatch != nil {
			_ = insertMatch.Close()
		}
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertFault != nil {
			_ = insertFault.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.flush)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		switch r.kind {
		case reqMatch:
			h := r.header
			if insertMatch != nil {
				roster := ""
				for i, p := range h.Roster {
					if i > 0 {
						roster += ","
					}
					roster += p
				}
				if _, err := tx.Stmt(insertMatch).Exec(
					h.MatchID, h.Seed, h.TickRateHz, roster,
					h.ScenarioID, h.ScenarioDigest, h.UnitsDigest, h.WeaponsDigest, now,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqTick:
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					r.matchID, int64(r.tick.Tick), r.tick.Digest, len(r.tick.Commands),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqFault:
			f := r.fault
			if insertFault != nil {
				if _, err := tx.Stmt(insertFault).Exec(
					r.matchID, int64(f.Tick), f.Code, f.Msg, now,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}
	commit()
}
