package protocol

import (
	"bytes"
	"encoding/json"
)

// Encode serializes one command as a single JSON object.
func Encode(c Command) ([]byte, error) {
	if err := shapeError(c); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

// Decode parses and shape-checks one command. A malformed payload or an
// unknown type tag yields a *DecodeError and never a partially populated
// command.
func Decode(b []byte) (Command, error) {
	var c Command
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Command{}, decodeErrf(ErrMalformed, "bad command payload: %v", err)
	}
	if err := shapeError(c); err != nil {
		return Command{}, err
	}
	return c, nil
}

// EncodeBatch serializes commands as a JSON array, preserving order.
// Order is semantically significant: commands from the same player for the
// same tick apply in transmission order.
func EncodeBatch(cmds []Command) ([]byte, error) {
	for _, c := range cmds {
		if err := shapeError(c); err != nil {
			return nil, err
		}
	}
	return json.Marshal(cmds)
}

// DecodeBatch parses a JSON array of commands, preserving array order.
// Any invalid element rejects the whole batch.
func DecodeBatch(b []byte) ([]Command, error) {
	var cmds []Command
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cmds); err != nil {
		return nil, decodeErrf(ErrMalformed, "bad command batch: %v", err)
	}
	for i, c := range cmds {
		if err := shapeError(c); err != nil {
			return nil, decodeErrf(err.Code, "batch[%d]: %s", i, err.Msg)
		}
	}
	return cmds, nil
}
