// Package lockstep buffers commands by target tick and releases them, in a
// stable order, only once every participant has proven its command set for
// that tick is complete. The scheduler never guesses past a missing peer:
// an unsatisfied barrier stalls the frame and is reported explicitly.
package lockstep

import (
	"fmt"
	"sort"

	"steelfront.dev/internal/protocol"
)

type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Running:
		return "RUNNING"
	case Stopped:
		return "STOPPED"
	}
	return "UNKNOWN"
}

// SubmitError reports a rejected command submission.
type SubmitError struct {
	Code string // protocol.ErrTooLate or protocol.ErrBadRequest
	Msg  string
}

func (e *SubmitError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Msg) }

// StallError reports an unsatisfied tick barrier. It is recoverable: the
// caller retries Advance next frame, and escalates after its own timeout.
type StallError struct {
	Tick    uint64
	Missing []string // roster players that have not closed the tick
}

func (e *StallError) Error() string {
	return fmt.Sprintf("tick %d stalled waiting for %v", e.Tick, e.Missing)
}

type entry struct {
	seq uint64
	cmd protocol.Command
}

// Scheduler is single-threaded; the simulation loop owns it.
type Scheduler struct {
	state   State
	current uint64 // tick Advance will release next
	margin  uint64 // command delay: min distance of submissions ahead of current

	roster   []string
	inRoster map[string]bool

	seq     uint64
	buckets map[uint64][]entry
	done    map[uint64]map[string]bool
}

func New(roster []string, commandDelayTicks int) *Scheduler {
	inRoster := make(map[string]bool, len(roster))
	for _, p := range roster {
		inRoster[p] = true
	}
	m := commandDelayTicks
	if m < 1 {
		m = 1
	}
	return &Scheduler{
		state:    Idle,
		margin:   uint64(m),
		roster:   append([]string(nil), roster...),
		inRoster: inRoster,
		buckets:  map[uint64][]entry{},
		done:     map[uint64]map[string]bool{},
	}
}

func (s *Scheduler) StateName() State { return s.state }

// Tick is the tick the next Advance call will release.
func (s *Scheduler) Tick() uint64 { return s.current }

func (s *Scheduler) Start() {
	if s.state == Idle {
		s.state = Running
	}
}

func (s *Scheduler) Stop() {
	s.state = Stopped
}

// Submit buckets the command under its target tick. Commands addressed
// inside the delay margin (or to an already-released tick) are rejected,
// never clamped forward.
func (s *Scheduler) Submit(cmd protocol.Command) error {
	if s.state != Running {
		return &SubmitError{Code: protocol.ErrBadRequest, Msg: fmt.Sprintf("scheduler %s", s.state)}
	}
	if !s.inRoster[cmd.PlayerID] {
		return &SubmitError{Code: protocol.ErrBadRequest, Msg: fmt.Sprintf("player %s not in roster", cmd.PlayerID)}
	}
	if cmd.Tick < s.current+s.margin {
		return &SubmitError{
			Code: protocol.ErrTooLate,
			Msg:  fmt.Sprintf("tick %d is inside the delay margin (current %d, margin %d)", cmd.Tick, s.current, s.margin),
		}
	}
	if s.closedThrough(cmd.PlayerID, cmd.Tick) {
		return &SubmitError{
			Code: protocol.ErrTooLate,
			Msg:  fmt.Sprintf("player %s already closed tick %d", cmd.PlayerID, cmd.Tick),
		}
	}
	s.seq++
	s.buckets[cmd.Tick] = append(s.buckets[cmd.Tick], entry{seq: s.seq, cmd: cmd})
	return nil
}

// MarkComplete records the transport's proof that playerID will submit no
// more commands for any tick <= tick. Closing tick T closes every earlier
// tick for that player as well, so a quiet player only needs to keep one
// mark moving.
func (s *Scheduler) MarkComplete(playerID string, tick uint64) {
	if !s.inRoster[playerID] {
		return
	}
	m := s.done[tick]
	if m == nil {
		m = map[string]bool{}
		s.done[tick] = m
	}
	m[playerID] = true
}

// closedThrough reports whether playerID has closed tick (directly or via a
// later mark).
func (s *Scheduler) closedThrough(playerID string, tick uint64) bool {
	for t, m := range s.done {
		if t >= tick && m[playerID] {
			return true
		}
	}
	return false
}

// missing returns the roster players that have not closed tick, in roster
// order.
func (s *Scheduler) missing(tick uint64) []string {
	var out []string
	for _, p := range s.roster {
		if !s.closedThrough(p, tick) {
			out = append(out, p)
		}
	}
	return out
}

// Ready reports whether every roster player has closed the given tick.
func (s *Scheduler) Ready(tick uint64) bool { return len(s.missing(tick)) == 0 }

// Advance releases the commands for the current tick, sorted by
// (player_id, submission sequence), and moves the counter forward. If any
// roster player has not closed the tick it returns a *StallError and does
// not advance. Each released bucket is deleted: a command executes exactly
// once.
func (s *Scheduler) Advance() ([]protocol.Command, error) {
	if s.state != Running {
		return nil, fmt.Errorf("advance in state %s", s.state)
	}
	if missing := s.missing(s.current); len(missing) > 0 {
		return nil, &StallError{Tick: s.current, Missing: missing}
	}

	bucket := s.buckets[s.current]
	delete(s.buckets, s.current)
	sort.SliceStable(bucket, func(i, j int) bool {
		if bucket[i].cmd.PlayerID != bucket[j].cmd.PlayerID {
			return bucket[i].cmd.PlayerID < bucket[j].cmd.PlayerID
		}
		return bucket[i].seq < bucket[j].seq
	})
	out := make([]protocol.Command, len(bucket))
	for i, e := range bucket {
		out[i] = e.cmd
	}

	// Drop stale completeness marks.
	for t := range s.done {
		if t < s.current {
			delete(s.done, t)
		}
	}
	s.current++
	return out, nil
}
