package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/micro"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/swarm"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/wire"
)

func startSystem(t *testing.T) (context.Context, actor.ActorSystem) {
	t.Helper()
	ctx := context.Background()
	system, err := actor.NewActorSystem("CoordinatorTest", actor.WithLogger(golog.DiscardLogger))
	require.NoError(t, err)
	require.NoError(t, system.Start(ctx))
	t.Cleanup(func() { _ = system.Stop(ctx) })
	return ctx, system
}

func TestCoordinator_Step(t *testing.T) {
	ctx, system := startSystem(t)
	cfg := *swarm.DefaultConfig()
	pid, err := system.Spawn(ctx, "coordinator", NewCoordinator(cfg, 2))
	require.NoError(t, err)

	frame := &micro.Frame{
		Tick:    1,
		DT:      0.1,
		MapSize: geometry.Vector2D{X: 100, Y: 100},
		Agents: []swarm.AgentSample{
			{ID: "a", Position: geometry.Vector2D{X: 10, Y: 10}},
			{ID: "b", Position: geometry.Vector2D{X: 60, Y: 60}, Velocity: geometry.Vector2D{X: 1, Y: 0}},
		},
		Orders: map[string]micro.Order{
			"a": {Mode: micro.ModeSeek, Goal: geometry.Vector2D{X: 90, Y: 10}},
			"b": {Mode: micro.ModeFlock},
		},
	}

	commands, err := Step(ctx, pid, frame, time.Second)
	require.NoError(t, err)
	require.Len(t, commands, 2)
	assert.Equal(t, "a", commands[0].AgentID)
	assert.True(t, commands[0].HasTarget)
	assert.Greater(t, commands[0].Velocity.X, 0.0)
	assert.LessOrEqual(t, commands[0].Velocity.Len(), cfg.MaxSpeed+1e-9)
	assert.Equal(t, geometry.Vector2D{X: 1, Y: 0}, commands[1].Velocity)

	frame.Tick = 2
	_, err = Step(ctx, pid, frame, time.Second)
	require.NoError(t, err, "the actor keeps serving after a tick")
}

func TestCoordinator_ReportsBadFrames(t *testing.T) {
	ctx, system := startSystem(t)
	pid, err := system.Spawn(ctx, "coordinator", NewCoordinator(*swarm.DefaultConfig(), 1))
	require.NoError(t, err)

	_, err = Step(ctx, pid, &micro.Frame{Tick: 5, MapSize: geometry.Vector2D{X: -1, Y: 1}}, time.Second)
	assert.ErrorIs(t, err, wire.ErrRemote)
	assert.Contains(t, err.Error(), "invalid frame")
}

func TestCoordinator_InvalidConfig(t *testing.T) {
	ctx, system := startSystem(t)
	cfg := *swarm.DefaultConfig()
	cfg.MaxSpeed = 0
	_, err := system.Spawn(ctx, "broken", NewCoordinator(cfg, 1))
	assert.Error(t, err)
}
