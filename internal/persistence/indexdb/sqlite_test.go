package indexdb

import (
	"path/filepath"
	"testing"

	"steelfront.dev/internal/protocol"
	"steelfront.dev/internal/sim/battle"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIndexTickDigests(t *testing.T) {
	s := openTestIndex(t)
	s.RecordMatch(battle.MatchHeader{
		MatchID: "m-1", Seed: 7, TickRateHz: 60,
		Roster: []string{"P1", "P2"}, ScenarioID: "TEST",
	})
	for i := 0; i < 5; i++ {
		_ = s.WriteTick("m-1", battle.TickLogEntry{
			Tick:   uint64(i),
			Digest: string(rune('a' + i)),
			Commands: []protocol.Command{
				{Type: protocol.CmdMove, PlayerID: "P1"},
			},
		})
	}
	s.Flush()

	d, err := s.TickDigest("m-1", 3)
	if err != nil {
		t.Fatalf("tick digest: %v", err)
	}
	if d != "d" {
		t.Fatalf("tick 3 digest = %q, want %q", d, "d")
	}
	if d, _ := s.TickDigest("m-1", 99); d != "" {
		t.Fatalf("unknown tick returned digest %q", d)
	}
}

func TestIndexFaults(t *testing.T) {
	s := openTestIndex(t)
	s.RecordFault("m-1", battle.Fault{Code: protocol.ErrDesync, Tick: 41, Msg: "digest mismatch vs P2"})
	s.RecordFault("m-1", battle.Fault{Code: protocol.ErrStall, Tick: 12, Msg: "barrier timeout"})
	s.Flush()

	fs, err := s.Faults("m-1")
	if err != nil {
		t.Fatalf("faults: %v", err)
	}
	if len(fs) != 2 {
		t.Fatalf("got %d faults, want 2", len(fs))
	}
	if fs[0].Tick != 12 || fs[0].Code != protocol.ErrStall {
		t.Fatalf("faults not in tick order: %+v", fs)
	}
	if fs[1].Tick != 41 || fs[1].Code != protocol.ErrDesync {
		t.Fatalf("desync fault wrong: %+v", fs[1])
	}
}

func TestIndexWriteAfterCloseIsNoOp(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.WriteTick("m-1", battle.TickLogEntry{Tick: 0}); err != nil {
		t.Fatalf("write after close should be a silent no-op: %v", err)
	}
	s.RecordFault("m-1", battle.Fault{Code: protocol.ErrStall})
	s.Flush()
}
