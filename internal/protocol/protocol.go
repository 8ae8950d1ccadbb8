package protocol

import "encoding/json"

const Version = "1.0"

// Message types on the peer link. CMD carries command batches, DONE marks a
// player's command set for a tick as complete (the scheduler barrier proof),
// DIGEST carries a checksum sample for cross-peer comparison.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCmd     = "CMD"
	TypeDone    = "DONE"
	TypeDigest  = "DIGEST"
	TypeFault   = "FAULT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
