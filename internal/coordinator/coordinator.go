// Package coordinator hosts a MicroController behind a goakt actor. The actor
// owns the per-agent PID state, so frames for one swarm must all go to the
// same actor; the mailbox keeps the smoother single-writer.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/micro"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/swarm"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/wire"
)

// ErrUnexpectedReply is returned by Step when the actor answers with
// something other than a Struct envelope.
var ErrUnexpectedReply = errors.New("unexpected reply")

// Coordinator answers frame envelopes with smoothed command envelopes.
type Coordinator struct {
	cfg        swarm.Config
	workers    int
	controller *micro.MicroController
	smoother   *micro.Smoother

	// telemetry, logged about once per second
	ticks       int
	commands    int
	failures    int
	lastLogTime time.Time
}

var _ actor.Actor = (*Coordinator)(nil)

// NewCoordinator creates the actor state. The controller itself is built in
// PreStart, so an invalid configuration makes the spawn fail.
func NewCoordinator(cfg swarm.Config, workers int) *Coordinator {
	return &Coordinator{cfg: cfg, workers: workers}
}

// PreStart builds the controller with the actor system logger.
func (c *Coordinator) PreStart(ctx *actor.Context) error {
	controller, err := micro.New(c.cfg,
		micro.WithLogger(ctx.ActorSystem().Logger()),
		micro.WithWorkers(c.workers))
	if err != nil {
		return fmt.Errorf("coordinator %s: %w", ctx.ActorName(), err)
	}
	c.controller = controller
	c.smoother = micro.NewSmoother(c.cfg)
	c.lastLogTime = time.Now()
	return nil
}

// Receive handles one message at a time.
func (c *Coordinator) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Infof("%s started", ctx.Self().Name())

	case *structpb.Struct:
		if wire.Kind(msg) != wire.KindFrame {
			ctx.Unhandled()
			return
		}
		ctx.Response(c.step(ctx, msg))

	default:
		ctx.Unhandled()
	}
}

func (c *Coordinator) step(ctx *actor.ReceiveContext, msg *structpb.Struct) *structpb.Struct {
	frame, err := wire.DecodeFrame(msg)
	if err != nil {
		return c.fail(ctx, 0, err)
	}
	commands, err := c.controller.Compute(frame)
	if err != nil {
		return c.fail(ctx, frame.Tick, err)
	}
	commands = c.smoother.Apply(frame, commands)

	reply, err := wire.EncodeCommands(frame.Tick, commands)
	if err != nil {
		return c.fail(ctx, frame.Tick, err)
	}
	c.ticks++
	c.commands += len(commands)
	c.logStats(ctx)
	return reply
}

func (c *Coordinator) fail(ctx *actor.ReceiveContext, tick uint64, cause error) *structpb.Struct {
	c.failures++
	ctx.Logger().Errorf("%s tick %d: %v", ctx.Self().Name(), tick, cause)
	reply, err := wire.EncodeError(tick, cause)
	if err != nil {
		// a plain string body always encodes
		return &structpb.Struct{}
	}
	return reply
}

func (c *Coordinator) logStats(ctx *actor.ReceiveContext) {
	if time.Since(c.lastLogTime) < time.Second {
		return
	}
	ctx.Logger().Infof("%s: %d ticks/sec, %d commands, %d failures, %d live controllers",
		ctx.Self().Name(), c.ticks, c.commands, c.failures, c.smoother.Len())
	c.ticks, c.commands, c.failures = 0, 0, 0
	c.lastLogTime = time.Now()
}

// PostStop logs the shutdown.
func (c *Coordinator) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("%s stopped", ctx.ActorName())
	return nil
}

// Step sends frame to the coordinator behind pid and waits for its
// commands.
func Step(ctx context.Context, pid *actor.PID, frame *micro.Frame, timeout time.Duration) ([]micro.Command, error) {
	msg, err := wire.EncodeFrame(frame)
	if err != nil {
		return nil, err
	}
	reply, err := actor.Ask(ctx, pid, msg, timeout)
	if err != nil {
		return nil, fmt.Errorf("step tick %d: %w", frame.Tick, err)
	}
	envelope, ok := reply.(*structpb.Struct)
	if !ok {
		return nil, fmt.Errorf("step tick %d: %w: %T", frame.Tick, ErrUnexpectedReply, reply)
	}
	_, commands, err := wire.DecodeCommands(envelope)
	if err != nil {
		return nil, fmt.Errorf("step tick %d: %w", frame.Tick, err)
	}
	return commands, nil
}
