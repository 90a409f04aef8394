package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-swarm-micro/internal/coordinator"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/micro"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/swarm"
	"github.com/lao-tseu-is-alive/go-swarm-micro/pkg/wire"
)

const (
	defaultAgents  = 60
	defaultEnemies = 12
	defaultTicks   = 300
	worldWidth     = 200.0
	worldHeight    = 200.0
	stepTimeout    = 2 * time.Second
)

var logLevels = map[string]golog.Level{
	"debug": golog.DebugLevel,
	"info":  golog.InfoLevel,
	"warn":  golog.WarningLevel,
	"error": golog.ErrorLevel,
}

func main() {
	var (
		configFile = flag.String("config", "", "JSON config file (defaults apply when empty)")
		numAgents  = flag.Int("agents", defaultAgents, "controlled agents")
		numEnemies = flag.Int("enemies", defaultEnemies, "enemy agents")
		numTicks   = flag.Int("ticks", defaultTicks, "ticks to simulate")
		dt         = flag.Float64("dt", 0.1, "seconds per tick")
		seed       = flag.Uint64("seed", 1, "scenario seed")
		tracePath  = flag.String("trace", "", "write per-tick commands as msgpack to this file")
		level      = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	logLevel, ok := logLevels[*level]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown log level %q\n", *level)
		os.Exit(2)
	}
	logger := golog.New(logLevel, os.Stdout)

	cfg := swarm.DefaultConfig()
	if *configFile != "" {
		loaded, err := swarm.LoadConfig(*configFile)
		if err != nil {
			logger.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	if err := run(logger, *cfg, *numAgents, *numEnemies, *numTicks, *dt, *seed, *tracePath); err != nil {
		logger.Fatal(err)
	}
}

func run(logger golog.Logger, cfg swarm.Config, numAgents, numEnemies, numTicks int, dt float64, seed uint64, tracePath string) (err error) {
	ctx := context.Background()

	system, err := actor.NewActorSystem("SwarmMicro",
		actor.WithLogger(logger),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		return fmt.Errorf("creating actor system: %w", err)
	}
	if err := system.Start(ctx); err != nil {
		return fmt.Errorf("starting actor system: %w", err)
	}
	defer func() { _ = system.Stop(ctx) }()

	pid, err := system.Spawn(ctx, "coordinator", coordinator.NewCoordinator(cfg, 0))
	if err != nil {
		return fmt.Errorf("spawning coordinator: %w", err)
	}

	var trace *traceFile
	if tracePath != "" {
		f, createErr := os.Create(tracePath)
		if createErr != nil {
			return fmt.Errorf("creating trace: %w", createErr)
		}
		trace = newTraceFile(f)
		defer func() {
			if closeErr := trace.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
	}

	sc := newScenario(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), numAgents, numEnemies)
	logger.Infof("simulating %d agents against %d enemies for %d ticks", numAgents, numEnemies, numTicks)

	start := time.Now()
	for tick := 1; tick <= numTicks; tick++ {
		frame := sc.frame(uint64(tick), dt)
		commands, err := coordinator.Step(ctx, pid, frame, stepTimeout)
		if err != nil {
			return err
		}
		if trace != nil {
			if err := trace.Write(frame.Tick, commands); err != nil {
				return err
			}
		}
		sc.apply(commands, dt)
	}
	logger.Infof("done in %s, mean spread %.2f", time.Since(start).Round(time.Millisecond), sc.spread())
	return nil
}

// traceFile buffers the msgpack trace. Close reports a failed flush, so a
// truncated trace is never silent.
type traceFile struct {
	*wire.TraceWriter
	buf *bufio.Writer
	dst io.WriteCloser
}

func newTraceFile(dst io.WriteCloser) *traceFile {
	buf := bufio.NewWriter(dst)
	return &traceFile{TraceWriter: wire.NewTraceWriter(buf), buf: buf, dst: dst}
}

// Close flushes the buffer and closes the file, returning the first error.
func (t *traceFile) Close() error {
	flushErr := t.buf.Flush()
	closeErr := t.dst.Close()
	if flushErr != nil {
		return fmt.Errorf("flushing trace: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing trace: %w", closeErr)
	}
	return nil
}

// scenario is the caller side of the engine: it owns agent state, hands
// out orders and integrates the returned velocities.
type scenario struct {
	rng     *rand.Rand
	agents  []swarm.AgentSample
	enemies []swarm.AgentSample
	orders  map[string]micro.Order
}

func newScenario(rng *rand.Rand, numAgents, numEnemies int) *scenario {
	sc := &scenario{rng: rng, orders: make(map[string]micro.Order, numAgents)}
	modes := []micro.Mode{micro.ModeFlock, micro.ModeFormation, micro.ModeEngage}
	for i := 0; i < numAgents; i++ {
		a := swarm.AgentSample{
			ID:       uuid.NewString(),
			Position: geometry.Vector2D{X: rng.Float64() * worldWidth / 2, Y: rng.Float64() * worldHeight},
			Velocity: geometry.NewVectorPolar(1, rng.Float64()*2*math.Pi),
			Radius:   0.5,
		}
		sc.agents = append(sc.agents, a)
		sc.orders[a.ID] = micro.Order{Mode: modes[i%len(modes)], Group: "alpha"}
	}
	for i := 0; i < numEnemies; i++ {
		sc.enemies = append(sc.enemies, swarm.AgentSample{
			ID:       uuid.NewString(),
			Position: geometry.Vector2D{X: worldWidth*0.75 + rng.NormFloat64()*10, Y: worldHeight/2 + rng.NormFloat64()*30},
		})
	}
	return sc
}

func (sc *scenario) frame(tick uint64, dt float64) *micro.Frame {
	enemies := make([]geometry.Vector2D, len(sc.enemies))
	for i, e := range sc.enemies {
		enemies[i] = e.Position
	}
	center := geometry.Vector2D{X: worldWidth / 2, Y: worldHeight / 2}
	return &micro.Frame{
		Tick:    tick,
		DT:      dt,
		MapSize: geometry.Vector2D{X: worldWidth, Y: worldHeight},
		Agents:  sc.agents,
		Enemies: sc.enemies,
		Orders:  sc.orders,
		Formations: map[string]micro.FormationSpec{
			"alpha": {
				Type:   micro.FormationWedge,
				Center: center,
				Facing: geometry.Centroid(enemies).Sub(center),
			},
		},
	}
}

// apply integrates the commands and bounces agents off the map edges.
// Enemies wander a little each tick.
func (sc *scenario) apply(commands []micro.Command, dt float64) {
	for i, cmd := range commands {
		a := &sc.agents[i]
		a.Velocity = cmd.Velocity
		a.Position = a.Position.Add(a.Velocity.Mul(dt))
		a.Position.X, a.Velocity.X = bounce(a.Position.X, a.Velocity.X, worldWidth)
		a.Position.Y, a.Velocity.Y = bounce(a.Position.Y, a.Velocity.Y, worldHeight)
	}
	for i := range sc.enemies {
		e := &sc.enemies[i]
		e.Position = e.Position.Add(geometry.Vector2D{X: sc.rng.NormFloat64(), Y: sc.rng.NormFloat64()}.Mul(dt))
		e.Position.X, _ = bounce(e.Position.X, 0, worldWidth)
		e.Position.Y, _ = bounce(e.Position.Y, 0, worldHeight)
	}
}

func bounce(pos, vel, limit float64) (float64, float64) {
	switch {
	case pos < 0:
		return -pos, -vel
	case pos > limit:
		return 2*limit - pos, -vel
	}
	return pos, vel
}

// spread is the mean distance of agents from their centroid.
func (sc *scenario) spread() float64 {
	if len(sc.agents) == 0 {
		return 0
	}
	c := geometry.Centroid(swarm.Positions(sc.agents))
	total := 0.0
	for _, a := range sc.agents {
		total += a.Position.DistanceTo(c)
	}
	return total / float64(len(sc.agents))
}
