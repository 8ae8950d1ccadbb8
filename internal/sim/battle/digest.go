package battle

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"steelfront.dev/internal/protocol"
)

// Sample is one tick's checksum: a cheap, frequent integrity check, not a
// cryptographic guarantee. Collisions are tolerable; its job is to catch
// divergence early, at the first tick where peer states differ.
type Sample struct {
	Tick   uint64 `json:"tick"`
	Digest string `json:"digest"`
}

func Compare(a, b Sample) bool {
	return a.Tick == b.Tick && a.Digest == b.Digest
}

// computeDigest folds the simulation-authoritative state into a sha256,
// iterating units in ascending ID order. Only state that feeds future
// simulation goes in: positions, health, morale, ammo, cooldowns, order
// queues, flags, threat memory, and the RNG state. Transport tokens,
// render caches, and anything wall-clock derived stay out.
func (b *Battle) computeDigest(nowTick uint64) Sample {
	h := sha256.New()
	var tmp [8]byte

	writeU64(h, &tmp, nowTick)
	writeU64(h, &tmp, b.rng.State())

	writeU64(h, &tmp, uint64(len(b.unitIDs)))
	for _, id := range b.unitIDs {
		u := b.units[id]
		writeStr(h, &tmp, u.ID)
		writeStr(h, &tmp, u.Owner)
		writeStr(h, &tmp, u.Type)
		writeU64(h, &tmp, math.Float64bits(u.Pos.X))
		writeU64(h, &tmp, math.Float64bits(u.Pos.Y))
		writeI64(h, &tmp, int64(u.Health))
		writeI64(h, &tmp, int64(u.MoraleMilli))
		h.Write([]byte{boolByte(u.ReturnFireOnly), boolByte(u.DugIn), boolByte(u.Routed)})
		writeStr(h, &tmp, u.GarrisonedIn)
		writeStr(h, &tmp, u.MountedIn)
		writeStr(h, &tmp, u.LastHitBy)
		writeU64(h, &tmp, math.Float64bits(u.LastThreatPos.X))
		writeU64(h, &tmp, math.Float64bits(u.LastThreatPos.Y))

		writeU64(h, &tmp, uint64(len(u.Passengers)))
		for _, pid := range u.Passengers {
			writeStr(h, &tmp, pid)
		}

		writeU64(h, &tmp, uint64(len(u.Weapons)))
		for i := range u.Weapons {
			w := &u.Weapons[i]
			writeI64(h, &tmp, int64(w.Ammo))
			writeI64(h, &tmp, int64(w.CooldownTicks))
			writeI64(h, &tmp, int64(w.DamageDealt))
		}

		writeU64(h, &tmp, uint64(len(u.Orders)))
		for i := range u.Orders {
			o := &u.Orders[i]
			writeI64(h, &tmp, int64(o.Kind))
			writeU64(h, &tmp, math.Float64bits(o.Target.X))
			writeU64(h, &tmp, math.Float64bits(o.Target.Y))
			writeStr(h, &tmp, o.TargetID)
			writeStr(h, &tmp, o.BuildingID)
			writeStr(h, &tmp, o.TransportID)
			h.Write([]byte{boolByte(o.Fast), boolByte(o.Reverse)})
		}
	}

	return Sample{Tick: nowTick, Digest: hex.EncodeToString(h.Sum(nil))}
}

func writeU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeI64(h hash.Hash, tmp *[8]byte, v int64) {
	writeU64(h, tmp, uint64(v))
}

func writeStr(h hash.Hash, tmp *[8]byte, s string) {
	writeU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// digestRing retains the most recent samples so a remote mismatch report
// can be checked against local history.
type digestRing struct {
	buf  []Sample
	next int
	full bool
}

func newDigestRing(n int) *digestRing {
	if n < 1 {
		n = 1
	}
	return &digestRing{buf: make([]Sample, n)}
}

func (r *digestRing) push(s Sample) {
	r.buf[r.next] = s
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *digestRing) lookup(tick uint64) (Sample, bool) {
	n := len(r.buf)
	if !r.full {
		n = r.next
	}
	for i := 0; i < n; i++ {
		if r.buf[i].Tick == tick {
			return r.buf[i], true
		}
	}
	return Sample{}, false
}

// checkRemote compares a peer's sample against local history. The second
// return is false when the tick has already rotated out of the ring (or
// has not run yet), which is not a desync by itself.
func (b *Battle) checkRemote(ps PeerSample) (Fault, bool) {
	local, ok := b.ring.lookup(ps.Sample.Tick)
	if !ok {
		return Fault{}, false
	}
	if Compare(local, ps.Sample) {
		return Fault{}, false
	}
	return Fault{
		Code: protocol.ErrDesync,
		Tick: ps.Sample.Tick,
		Msg:  "peer " + ps.PeerID + " digest " + ps.Sample.Digest + " != local " + local.Digest,
	}, true
}
