package protocol

import "fmt"

// Decode failure codes. All of these are local, recoverable errors: the
// offending message is dropped and must never reach the scheduler.
const (
	ErrMalformed   = "E_MALFORMED"
	ErrUnknownType = "E_UNKNOWN_TYPE"
	ErrBadShape    = "E_BAD_SHAPE"
)

// Submission/runtime fault codes surfaced on the peer link.
const (
	ErrTooLate      = "E_TOO_LATE"
	ErrStall        = "E_STALL"
	ErrDesync       = "E_DESYNC"
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrUnknownMatch = "E_UNKNOWN_MATCH"
)

// DecodeError reports a rejected inbound command message.
type DecodeError struct {
	Code string
	Msg  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func decodeErrf(code, format string, args ...any) *DecodeError {
	return &DecodeError{Code: code, Msg: fmt.Sprintf(format, args...)}
}
