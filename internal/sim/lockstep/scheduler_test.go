package lockstep

import (
	"errors"
	"testing"

	"steelfront.dev/internal/protocol"
)

func cmd(player string, tick uint64, unit string) protocol.Command {
	return protocol.Command{
		Type:     protocol.CmdStop,
		Tick:     tick,
		PlayerID: player,
		UnitIDs:  []string{unit},
	}
}

func newRunning(t *testing.T) *Scheduler {
	t.Helper()
	s := New([]string{"P1", "P2"}, 2)
	s.Start()
	return s
}

func TestSubmitInsideMarginRejected(t *testing.T) {
	s := newRunning(t)

	// current=0, margin=2: ticks 0 and 1 are too late, tick 2 is fine.
	err := s.Submit(cmd("P1", 1, "U1"))
	var se *SubmitError
	if !errors.As(err, &se) || se.Code != protocol.ErrTooLate {
		t.Fatalf("expected E_TOO_LATE, got %v", err)
	}
	if err := s.Submit(cmd("P1", 2, "U1")); err != nil {
		t.Fatalf("submit at margin: %v", err)
	}
}

func TestSubmitUnknownPlayerRejected(t *testing.T) {
	s := newRunning(t)
	err := s.Submit(cmd("P9", 5, "U1"))
	var se *SubmitError
	if !errors.As(err, &se) || se.Code != protocol.ErrBadRequest {
		t.Fatalf("expected E_BAD_REQUEST, got %v", err)
	}
}

func TestAdvanceStallsUntilBarrier(t *testing.T) {
	s := newRunning(t)

	if _, err := s.Advance(); err == nil {
		t.Fatalf("expected stall with no completeness marks")
	}

	s.MarkComplete("P1", 0)
	_, err := s.Advance()
	var st *StallError
	if !errors.As(err, &st) {
		t.Fatalf("expected *StallError, got %v", err)
	}
	if st.Tick != 0 || len(st.Missing) != 1 || st.Missing[0] != "P2" {
		t.Fatalf("stall should name tick 0 and P2: %+v", st)
	}

	s.MarkComplete("P2", 0)
	if _, err := s.Advance(); err != nil {
		t.Fatalf("advance after barrier: %v", err)
	}
	if s.Tick() != 1 {
		t.Fatalf("tick = %d, want 1", s.Tick())
	}
}

func TestReadyTracksBarrier(t *testing.T) {
	s := newRunning(t)
	if s.Ready(0) {
		t.Fatalf("ready with no completeness marks")
	}
	s.MarkComplete("P1", 2)
	if s.Ready(0) {
		t.Fatalf("ready with P2 outstanding")
	}
	s.MarkComplete("P2", 2)
	for tick := uint64(0); tick <= 2; tick++ {
		if !s.Ready(tick) {
			t.Fatalf("tick %d not ready after both marks", tick)
		}
	}
	if s.Ready(3) {
		t.Fatalf("tick 3 ready: marks only covered through 2")
	}

	// Advance must agree with Ready tick for tick.
	for s.Ready(s.Tick()) {
		if _, err := s.Advance(); err != nil {
			t.Fatalf("advance on ready tick: %v", err)
		}
	}
	if _, err := s.Advance(); err == nil {
		t.Fatalf("advance on unready tick succeeded")
	}
	if s.Tick() != 3 {
		t.Fatalf("tick = %d, want 3", s.Tick())
	}
}

func TestMarkCompleteClosesEarlierTicks(t *testing.T) {
	s := newRunning(t)
	s.MarkComplete("P1", 5)
	s.MarkComplete("P2", 5)
	for want := uint64(1); want <= 6; want++ {
		if _, err := s.Advance(); err != nil {
			t.Fatalf("advance to %d: %v", want, err)
		}
		if s.Tick() != want {
			t.Fatalf("tick = %d, want %d", s.Tick(), want)
		}
	}
	if _, err := s.Advance(); err == nil {
		t.Fatalf("tick 6 should stall: marks only covered through 5")
	}
}

func TestReleaseOrderStable(t *testing.T) {
	s := newRunning(t)

	// Interleave players; within a player, submission order must hold.
	if err := s.Submit(cmd("P2", 3, "U20")); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(cmd("P1", 3, "U10")); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(cmd("P2", 3, "U21")); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(cmd("P1", 3, "U11")); err != nil {
		t.Fatal(err)
	}

	s.MarkComplete("P1", 3)
	s.MarkComplete("P2", 3)
	var released []protocol.Command
	for s.Tick() <= 3 {
		out, err := s.Advance()
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		released = append(released, out...)
	}

	want := []string{"U10", "U11", "U20", "U21"}
	if len(released) != len(want) {
		t.Fatalf("released %d commands, want %d", len(released), len(want))
	}
	for i, u := range want {
		if released[i].UnitIDs[0] != u {
			t.Fatalf("release[%d] = %s, want %s", i, released[i].UnitIDs[0], u)
		}
	}
}

func TestCommandsReleaseExactlyOnce(t *testing.T) {
	s := newRunning(t)
	if err := s.Submit(cmd("P1", 2, "U1")); err != nil {
		t.Fatal(err)
	}
	s.MarkComplete("P1", 10)
	s.MarkComplete("P2", 10)

	total := 0
	for s.Tick() <= 10 {
		out, err := s.Advance()
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		total += len(out)
	}
	if total != 1 {
		t.Fatalf("command released %d times, want exactly once", total)
	}
}

func TestSubmitAfterPlayerClosedTickRejected(t *testing.T) {
	s := newRunning(t)
	s.MarkComplete("P1", 5)
	err := s.Submit(cmd("P1", 4, "U1"))
	var se *SubmitError
	if !errors.As(err, &se) || se.Code != protocol.ErrTooLate {
		t.Fatalf("expected E_TOO_LATE after close, got %v", err)
	}
	// Other player unaffected.
	if err := s.Submit(cmd("P2", 4, "U2")); err != nil {
		t.Fatalf("P2 submit: %v", err)
	}
}

func TestLifecycleStates(t *testing.T) {
	s := New([]string{"P1"}, 1)
	if s.StateName() != Idle {
		t.Fatalf("new scheduler not idle")
	}
	if err := s.Submit(cmd("P1", 5, "U1")); err == nil {
		t.Fatalf("idle scheduler accepted a command")
	}
	s.Start()
	if s.StateName() != Running {
		t.Fatalf("not running after Start")
	}
	s.Stop()
	if _, err := s.Advance(); err == nil {
		t.Fatalf("stopped scheduler advanced")
	}
}
