package swarm

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid swarm config")

//go:embed config.schema.json
var configSchema []byte

const configSchemaURL = "mem://swarm/config.schema.json"

// AlignmentScope selects which neighbors the Boids alignment rule averages.
type AlignmentScope string

const (
	// AlignmentBySpeed keeps neighbors whose speed is below AlignmentRadius.
	// This reproduces the historical behavior.
	AlignmentBySpeed AlignmentScope = "by_speed"
	// AlignmentByDistance keeps neighbors closer than AlignmentRadius, like
	// separation and cohesion do.
	AlignmentByDistance AlignmentScope = "by_distance"
)

// PIDConfig holds the gains and limits of one per-agent PID controller.
type PIDConfig struct {
	Kp          float64 `json:"kp"`
	Ki          float64 `json:"ki"`
	Kd          float64 `json:"kd"`
	MaxIntegral float64 `json:"maxIntegral"` // clamp on the accumulated error, before Ki
	MaxOutput   float64 `json:"maxOutput"`

	// SoftStart takes the first derivative after a reset from the measured
	// velocity instead of (error - 0)/dt, which avoids the derivative kick.
	SoftStart bool `json:"softStart"`
}

// Config is the immutable set of tunables for one controller. Constructors
// take it by value and keep their own copy.
type Config struct {
	// Radii
	SeparationDistance float64 `json:"separationDistance"`
	AlignmentRadius    float64 `json:"alignmentRadius"`
	CohesionRadius     float64 `json:"cohesionRadius"`

	// Boids weights
	SeparationWeight float64 `json:"separationWeight"`
	AlignmentWeight  float64 `json:"alignmentWeight"`
	CohesionWeight   float64 `json:"cohesionWeight"`

	// Potential field
	ObstacleRepulsion      float64 `json:"obstacleRepulsion"`
	PotentialFieldStrength float64 `json:"potentialFieldStrength"`
	RepulsionEpsilon       float64 `json:"repulsionEpsilon"` // keeps repulsion/(d+eps) finite

	MaxSpeed float64 `json:"maxSpeed"`

	AlignmentScope AlignmentScope `json:"alignmentScope"`

	// Spatial index
	CellSize         float64 `json:"cellSize"`
	DensityThreshold int     `json:"densityThreshold"` // grid at or above this many points

	// Orchestration
	ClusterRadius     float64 `json:"clusterRadius"`
	FormationSpacing  float64 `json:"formationSpacing"`
	RetargetTolerance float64 `json:"retargetTolerance"` // target moves beyond this reset the PID

	PID PIDConfig `json:"pid"`
}

// DefaultConfig returns the tuning used when nothing else is supplied.
func DefaultConfig() *Config {
	return &Config{
		SeparationDistance:     2.0,
		AlignmentRadius:        5.0,
		CohesionRadius:         8.0,
		SeparationWeight:       1.5,
		AlignmentWeight:        1.0,
		CohesionWeight:         1.0,
		ObstacleRepulsion:      3.0,
		PotentialFieldStrength: 2.0,
		RepulsionEpsilon:       0.1,
		MaxSpeed:               4.0,
		AlignmentScope:         AlignmentBySpeed,
		CellSize:               5.0,
		DensityThreshold:       10,
		ClusterRadius:          6.0,
		FormationSpacing:       2.0,
		RetargetTolerance:      0.5,
		PID: PIDConfig{
			Kp:          1.2,
			Ki:          0.05,
			Kd:          0.1,
			MaxIntegral: 10,
			MaxOutput:   4.0,
		},
	}
}

// Validate checks every field and reports all problems at once.
// The historical engine accepted any value; failing fast here keeps negative
// radii and zero speeds from turning into silent misbehavior.
func (c *Config) Validate() error {
	var errs []error
	nonNegative := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			errs = append(errs, fmt.Errorf("%s must be a finite value >= 0, got %v", name, v))
		}
	}
	positive := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a finite value > 0, got %v", name, v))
		}
	}

	positive("separationDistance", c.SeparationDistance)
	nonNegative("alignmentRadius", c.AlignmentRadius)
	nonNegative("cohesionRadius", c.CohesionRadius)
	nonNegative("separationWeight", c.SeparationWeight)
	nonNegative("alignmentWeight", c.AlignmentWeight)
	nonNegative("cohesionWeight", c.CohesionWeight)
	nonNegative("obstacleRepulsion", c.ObstacleRepulsion)
	nonNegative("potentialFieldStrength", c.PotentialFieldStrength)
	positive("repulsionEpsilon", c.RepulsionEpsilon)
	positive("maxSpeed", c.MaxSpeed)
	positive("cellSize", c.CellSize)
	nonNegative("clusterRadius", c.ClusterRadius)
	positive("formationSpacing", c.FormationSpacing)
	nonNegative("retargetTolerance", c.RetargetTolerance)
	nonNegative("pid.kp", c.PID.Kp)
	nonNegative("pid.ki", c.PID.Ki)
	nonNegative("pid.kd", c.PID.Kd)
	nonNegative("pid.maxIntegral", c.PID.MaxIntegral)
	positive("pid.maxOutput", c.PID.MaxOutput)

	if c.DensityThreshold < 0 {
		errs = append(errs, fmt.Errorf("densityThreshold must be >= 0, got %d", c.DensityThreshold))
	}
	switch c.AlignmentScope {
	case AlignmentBySpeed, AlignmentByDistance:
	default:
		errs = append(errs, fmt.Errorf("alignmentScope must be %q or %q, got %q",
			AlignmentBySpeed, AlignmentByDistance, c.AlignmentScope))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// NeighborRadius is the widest positional radius any flocking rule needs.
func (c *Config) NeighborRadius() float64 {
	r := math.Max(c.SeparationDistance, c.CohesionRadius)
	if c.AlignmentScope == AlignmentByDistance {
		r = math.Max(r, c.AlignmentRadius)
	}
	return r
}

// LoadConfig reads a JSON file, validates it against the embedded schema and
// decodes it on top of DefaultConfig, so omitted fields keep their defaults.
func LoadConfig(configFile string) (*Config, error) {
	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(b)
}

// ParseConfig is LoadConfig for bytes already in memory.
func ParseConfig(data []byte) (*Config, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(configSchemaURL, bytes.NewReader(configSchema)); err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	sch, err := compiler.Compile(configSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return decodeValidated(sch, data)
}

// LoadConfigWithSchema validates configFile against an external schema file
// instead of the embedded one.
func LoadConfigWithSchema(configFile string, schemaFile string) (*Config, error) {
	sch, err := jsonschema.Compile(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decodeValidated(sch, b)
}

func decodeValidated(sch *jsonschema.Schema, data []byte) (*Config, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
