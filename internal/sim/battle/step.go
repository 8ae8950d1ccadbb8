package battle

import (
	"steelfront.dev/internal/protocol"
)

// step runs one full tick: commands, then systems in fixed order, then the
// digest. Either the whole tick runs or none of it does; there is no
// partial-tick execution.
func (b *Battle) step(nowTick uint64, cmds []protocol.Command) Sample {
	for _, u := range b.sortedUnits() {
		u.hitThisTick = false
	}

	b.applyCommands(cmds)
	b.systemMovement()
	b.systemCombat()
	b.systemMorale()

	sample := b.computeDigest(nowTick)
	b.ring.push(sample)

	if b.tickLogger != nil {
		_ = b.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Commands: cmds, Digest: sample.Digest})
	}
	b.tick = nowTick + 1
	return sample
}

// StepOnce advances the battle by a single tick with an already-ordered
// command list, bypassing the scheduler barrier. It exists for replays and
// determinism tests; the commands must be in scheduler release order.
func (b *Battle) StepOnce(cmds []protocol.Command) (uint64, Sample) {
	nowTick := b.tick
	sample := b.step(nowTick, cmds)
	return nowTick, sample
}

// advanceOnce is the live path: release the current tick's commands
// through the barrier and run the step. A *lockstep.StallError return
// means the tick did not run at all.
func (b *Battle) advanceOnce() (uint64, Sample, error) {
	cmds, err := b.sched.Advance()
	if err != nil {
		return 0, Sample{}, err
	}
	nowTick := b.tick
	sample := b.step(nowTick, cmds)
	return nowTick, sample, nil
}
