// Package rng is the single seeded random source shared by all gameplay
// systems. Lockstep correctness requires "same seed + same draw order =>
// same outputs", so every probabilistic decision (target picks, accuracy,
// penetration, suppression) must draw from the battle's one Source and
// never from an unshared generator.
package rng

// Source is a splitmix64 generator. The whole state is a single uint64 so
// it can be logged, compared across peers, and snapshot/restored exactly.
//
// Not safe for concurrent use; the simulation loop owns it.
type Source struct {
	state uint64
}

func New(seed int64) *Source {
	s := &Source{}
	s.Seed(seed)
	return s
}

// Seed resets the generator to a deterministic state.
func (s *Source) Seed(seed int64) {
	s.state = uint64(seed)
}

// State returns the exact internal state for snapshotting.
func (s *Source) State() uint64 { return s.state }

// SetState restores a state captured with State.
func (s *Source) SetState(v uint64) { s.state = v }

func (s *Source) nextU64() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Next advances the state and returns a float64 in [0,1).
// The value depends only on prior state, never on the caller or the clock.
func (s *Source) Next() float64 {
	// 53 high bits -> exactly representable in float64.
	return float64(s.nextU64()>>11) / (1 << 53)
}

// NextInt advances the state and returns an int in [0,bound).
// bound must be > 0.
func (s *Source) NextInt(bound int) int {
	if bound <= 0 {
		return 0
	}
	return int(s.nextU64() % uint64(bound))
}
