// Package protocol implements the wire Envelope codec shared by every
// room type: a length-delimited binary frame carrying exactly one of a
// ChatMessage or a GameMessage tagged payload.
//
// The frame layout generalizes the teacher's fixed-size binary messages
// (internal/network/protocol.go in the teacher repo) to the variable-length,
// richly-typed payloads this spec requires: [1-byte kind][4-byte big-endian
// length][payload]. The payload itself is JSON, which keeps decode
// tolerant of unknown fields/tags (spec.md §4.1: "Unknown enum values must
// not cause decode failure").
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
)

// Kind tags which inner variant an Envelope carries.
type Kind uint8

const (
	KindChat Kind = 1
	KindGame Kind = 2
)

var (
	ErrTruncated    = errors.New("protocol: truncated frame")
	ErrUnknownKind  = errors.New("protocol: unknown envelope kind")
	ErrBadPayload   = errors.New("protocol: malformed payload")
)

// Envelope is the outer wire frame. Exactly one of Chat/Game is non-nil.
type Envelope struct {
	Kind Kind
	Chat *ChatMessage
	Game *GameMessage
}

// Encode serializes the envelope to its wire form.
func Encode(env *Envelope) ([]byte, error) {
	var payload []byte
	var err error

	switch env.Kind {
	case KindChat:
		payload, err = json.Marshal(env.Chat)
	case KindGame:
		payload, err = json.Marshal(env.Game)
	default:
		return nil, ErrUnknownKind
	}
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 1+4+len(payload))
	buf[0] = byte(env.Kind)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[5:], payload)
	return buf, nil
}

// Decode parses a wire frame back into an Envelope. Unknown kinds are
// reported as ErrUnknownKind so callers can silently discard the frame
// per spec.md §7 (protocol errors are ignored, not fatal).
func Decode(data []byte) (*Envelope, error) {
	if len(data) < 5 {
		return nil, ErrTruncated
	}

	kind := Kind(data[0])
	length := binary.BigEndian.Uint32(data[1:5])
	if uint32(len(data)-5) < length {
		return nil, ErrTruncated
	}
	payload := data[5 : 5+length]

	env := &Envelope{Kind: kind}
	switch kind {
	case KindChat:
		var msg ChatMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, ErrBadPayload
		}
		env.Chat = &msg
	case KindGame:
		var msg GameMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, ErrBadPayload
		}
		env.Game = &msg
	default:
		return nil, ErrUnknownKind
	}

	return env, nil
}

// EncodeChat is a convenience wrapper for the common chat-envelope case.
func EncodeChat(msg *ChatMessage) ([]byte, error) {
	return Encode(&Envelope{Kind: KindChat, Chat: msg})
}

// EncodeGame is a convenience wrapper for the common game-envelope case.
func EncodeGame(msg *GameMessage) ([]byte, error) {
	return Encode(&Envelope{Kind: KindGame, Game: msg})
}
