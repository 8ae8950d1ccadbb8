// Package observerproto defines the read-only spectator protocol: a
// bootstrap document plus a stream of per-tick unit frames. Spectators
// never submit commands and never influence the simulation.
package observerproto

import (
	"steelfront.dev/internal/protocol"
	"steelfront.dev/internal/sim/battle"
)

const Version = "1.0"

// SUBSCRIBE (spectator -> host). EveryNTicks throttles the frame stream;
// 1 means every tick.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EveryNTicks     int    `json:"every_n_ticks,omitempty"`
}

// BootstrapResponse is served over plain http so a spectator can size its
// view before opening the stream.
type BootstrapResponse struct {
	ProtocolVersion string                  `json:"protocol_version"`
	MatchID         string                  `json:"match_id"`
	Tick            uint64                  `json:"tick"`
	Params          protocol.MatchParams    `json:"match_params"`
	Catalogs        protocol.CatalogDigests `json:"catalogs"`
}

// FRAME (host -> spectator): one snapshot of every unit.
type FrameMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Tick            uint64            `json:"tick"`
	Units           []battle.UnitView `json:"units"`
}
