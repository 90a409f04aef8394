// Package wire carries frames and commands across process and actor
// boundaries. Protobuf Struct envelopes are the actor message payloads;
// msgpack is the compact binary form used for traces.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/micro"
)

var (
	// ErrMalformed is returned when a payload cannot be decoded into the
	// expected message.
	ErrMalformed = errors.New("malformed payload")
	// ErrRemote wraps a failure reported by the other side in an error envelope.
	ErrRemote = errors.New("remote error")
)

// Envelope kinds.
const (
	KindFrame    = "frame"
	KindCommands = "commands"
	KindError    = "error"
)

type envelope[T any] struct {
	Kind string `json:"kind"`
	Tick uint64 `json:"tick"`
	Body T      `json:"body"`
}

// Kind returns the kind field of an envelope, or "" when there is none.
func Kind(s *structpb.Struct) string {
	if s == nil {
		return ""
	}
	return s.GetFields()["kind"].GetStringValue()
}

// EncodeFrame wraps frame into a Struct envelope of kind KindFrame.
// Non-finite numbers cannot be represented and fail the encoding.
func EncodeFrame(frame *micro.Frame) (*structpb.Struct, error) {
	if frame == nil {
		return nil, fmt.Errorf("encode frame: %w: nil frame", ErrMalformed)
	}
	return encode(envelope[*micro.Frame]{Kind: KindFrame, Tick: frame.Tick, Body: frame})
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(s *structpb.Struct) (*micro.Frame, error) {
	env, err := decode[*micro.Frame](s, KindFrame)
	if err != nil {
		return nil, err
	}
	if env.Body == nil {
		return nil, fmt.Errorf("decode %s: %w: empty body", KindFrame, ErrMalformed)
	}
	return env.Body, nil
}

// EncodeCommands wraps the commands of one tick into a Struct envelope of
// kind KindCommands.
func EncodeCommands(tick uint64, commands []micro.Command) (*structpb.Struct, error) {
	if commands == nil {
		commands = []micro.Command{}
	}
	return encode(envelope[[]micro.Command]{Kind: KindCommands, Tick: tick, Body: commands})
}

// EncodeError reports a failed tick.
func EncodeError(tick uint64, cause error) (*structpb.Struct, error) {
	return encode(envelope[string]{Kind: KindError, Tick: tick, Body: cause.Error()})
}

// DecodeCommands is the inverse of EncodeCommands. An error envelope is
// returned as an error wrapping ErrRemote.
func DecodeCommands(s *structpb.Struct) (uint64, []micro.Command, error) {
	if Kind(s) == KindError {
		env, err := decode[string](s, KindError)
		if err != nil {
			return 0, nil, err
		}
		return env.Tick, nil, fmt.Errorf("tick %d: %w: %s", env.Tick, ErrRemote, env.Body)
	}
	env, err := decode[[]micro.Command](s, KindCommands)
	if err != nil {
		return 0, nil, err
	}
	return env.Tick, env.Body, nil
}

func encode[T any](env envelope[T]) (*structpb.Struct, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", env.Kind, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("encode %s: %w", env.Kind, err)
	}
	return s, nil
}

func decode[T any](s *structpb.Struct, kind string) (envelope[T], error) {
	var env envelope[T]
	if got := Kind(s); got != kind {
		return env, fmt.Errorf("decode %s: %w: got kind %q", kind, ErrMalformed, got)
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return env, fmt.Errorf("decode %s: %w: %w", kind, ErrMalformed, err)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode %s: %w: %w", kind, ErrMalformed, err)
	}
	return env, nil
}
