package protocol

// HELLO (peer -> host)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
	MatchID         string `json:"match_id,omitempty"`
}

// WELCOME (host -> peer): everything a peer needs to run the identical
// simulation locally.
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	MatchID         string         `json:"match_id"`
	PlayerID        string         `json:"player_id"`
	Params          MatchParams    `json:"match_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type MatchParams struct {
	TickRateHz        int      `json:"tick_rate_hz"`
	CommandDelayTicks int      `json:"command_delay_ticks"`
	StallTimeoutTicks int      `json:"stall_timeout_ticks"`
	Seed              int64    `json:"seed"`
	Roster            []string `json:"roster"`
}

// CatalogDigests pin the tuning data both peers must agree on before the
// first tick; a mismatch here would diverge the sim from tick 0.
type CatalogDigests struct {
	UnitsDigest   string `json:"units_digest"`
	WeaponsDigest string `json:"weapons_digest"`
}

// CMD (peer -> host): an ordered batch of commands from one player.
type CmdMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	PlayerID        string    `json:"player_id"`
	Commands        []Command `json:"commands"`
}

// DONE (peer -> host): the player's command set for Tick is complete.
// This is the completeness proof the scheduler barrier waits on.
type DoneMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
	Tick            uint64 `json:"tick"`
}

// DIGEST (both directions): a checksum sample for one completed tick.
type DigestMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
	Tick            uint64 `json:"tick"`
	Digest          string `json:"digest"`
}

// FAULT (host -> peer): the match died; Code is E_STALL or E_DESYNC and
// Tick identifies the offending tick.
type FaultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Tick            uint64 `json:"tick"`
	Message         string `json:"message,omitempty"`
}
