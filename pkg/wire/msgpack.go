package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/micro"
)

// MarshalFrame encodes frame as msgpack.
func MarshalFrame(frame *micro.Frame) ([]byte, error) {
	b, err := msgpack.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	return b, nil
}

// UnmarshalFrame decodes a msgpack frame.
func UnmarshalFrame(data []byte) (*micro.Frame, error) {
	var f micro.Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w: %w", ErrMalformed, err)
	}
	return &f, nil
}

// TraceRecord is the commands issued for one tick.
type TraceRecord struct {
	Tick     uint64          `msgpack:"tick"`
	Commands []micro.Command `msgpack:"commands"`
}

// TraceWriter appends one msgpack record per tick to a stream.
type TraceWriter struct {
	enc *msgpack.Encoder
}

// NewTraceWriter writes records to w.
func NewTraceWriter(w io.Writer) *TraceWriter {
	return &TraceWriter{enc: msgpack.NewEncoder(w)}
}

// Write appends the commands of tick.
func (t *TraceWriter) Write(tick uint64, commands []micro.Command) error {
	if err := t.enc.Encode(TraceRecord{Tick: tick, Commands: commands}); err != nil {
		return fmt.Errorf("trace tick %d: %w", tick, err)
	}
	return nil
}

// TraceReader reads records written by a TraceWriter.
type TraceReader struct {
	dec *msgpack.Decoder
}

// NewTraceReader reads records from r.
func NewTraceReader(r io.Reader) *TraceReader {
	return &TraceReader{dec: msgpack.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at a clean end of stream.
func (t *TraceReader) Next() (TraceRecord, error) {
	var rec TraceRecord
	if err := t.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("read trace: %w: %w", ErrMalformed, err)
	}
	return rec, nil
}
