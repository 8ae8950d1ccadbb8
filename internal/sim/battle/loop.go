package battle

import (
	"context"
	"errors"
	"time"

	"steelfront.dev/internal/protocol"
	"steelfront.dev/internal/sim/lockstep"
)

// Run drives the fixed-rate simulation loop on the calling goroutine.
// All channel traffic is drained between ticks; the sim itself never
// blocks on I/O. Run returns nil on Stop, ctx.Err on cancellation, and a
// Fault when the match dies (stall timeout or checksum divergence).
func (b *Battle) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(b.cfg.Tuning.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.stop:
			return nil

		case env := <-b.inbox:
			b.handleSubmit(env)

		case m := <-b.marks:
			b.sched.MarkComplete(m.PlayerID, m.Tick)

		case ps := <-b.remote:
			if fault, bad := b.checkRemote(ps); bad {
				b.reportFault(fault)
				return fault
			}

		case <-ticker.C:
			nowTick, sample, err := b.advanceOnce()
			if err != nil {
				var stall *lockstep.StallError
				if errors.As(err, &stall) {
					b.stallFrames++
					if b.stallFrames > b.cfg.Tuning.StallTimeoutTicks {
						fault := Fault{
							Code: protocol.ErrStall,
							Tick: stall.Tick,
							Msg:  stall.Error(),
						}
						b.reportFault(fault)
						return fault
					}
					continue // deliberate stall: no partial tick
				}
				return err
			}
			b.stallFrames = 0

			select {
			case b.digests <- sample:
			default:
			}
			sendLatestSnapshot(b.snapshots, b.snapshot(nowTick))
		}
	}
}

func (b *Battle) Stop() { close(b.stop) }

func (b *Battle) handleSubmit(env SubmitEnvelope) {
	var results []error
	for _, c := range env.Commands {
		// Session identity wins over whatever the payload claims.
		c.PlayerID = env.PlayerID
		var err error
		if !protocol.ValidShape(c) {
			err = &lockstep.SubmitError{Code: protocol.ErrBadRequest, Msg: "bad command shape"}
		} else {
			err = b.sched.Submit(c)
		}
		if env.Resp != nil {
			results = append(results, err)
		}
	}
	if env.Resp != nil {
		env.Resp <- results
	}
}

func (b *Battle) reportFault(f Fault) {
	select {
	case b.faults <- f:
	default:
	}
}

// sendLatestSnapshot keeps only the freshest snapshot when rendering is
// slower than the sim.
func sendLatestSnapshot(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
