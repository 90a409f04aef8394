package main

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/micro"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/wire"
)

var errDiskFull = errors.New("disk full")

type fakeFile struct {
	bytes.Buffer
	writeErr error
	closed   bool
}

func (f *fakeFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.Buffer.Write(p)
}

func (f *fakeFile) Close() error {
	f.closed = true
	return nil
}

func TestTraceFile(t *testing.T) {
	commands := []micro.Command{{AgentID: "a", Velocity: geometry.Vector2D{X: 1}, Slot: micro.NoSlot, Cluster: micro.NoCluster}}

	t.Run("close flushes the records", func(t *testing.T) {
		f := &fakeFile{}
		tf := newTraceFile(f)
		require.NoError(t, tf.Write(1, commands))
		assert.Zero(t, f.Len(), "records stay buffered until close")
		require.NoError(t, tf.Close())
		assert.True(t, f.closed)

		rec, err := wire.NewTraceReader(&f.Buffer).Next()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), rec.Tick)
		assert.Equal(t, commands, rec.Commands)
	})

	t.Run("flush error is reported", func(t *testing.T) {
		f := &fakeFile{writeErr: errDiskFull}
		tf := newTraceFile(f)
		require.NoError(t, tf.Write(1, commands))
		err := tf.Close()
		assert.ErrorIs(t, err, errDiskFull)
		assert.True(t, f.closed, "the file is closed even when the flush fails")
	})
}

func TestBounce(t *testing.T) {
	pos, vel := bounce(-2, -1, 10)
	assert.Equal(t, 2.0, pos)
	assert.Equal(t, 1.0, vel)
	pos, vel = bounce(12, 3, 10)
	assert.Equal(t, 8.0, pos)
	assert.Equal(t, -3.0, vel)
}

var _ io.WriteCloser = (*fakeFile)(nil)
