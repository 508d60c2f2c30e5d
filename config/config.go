// Package config loads the simulator configuration from YAML.
package config

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/measure"
	"github.com/fumin/qcirc/state"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Backends.
const (
	Vector  = "vector"
	Density = "density"
	MPS     = "mps"
)

// Config configures a simulation run.
type Config struct {
	// Qubits is the number of qubits of the simulated register.
	Qubits int `yaml:"qubits" validate:"gte=1,lte=24"`
	// Backend is one of vector, density and mps.
	Backend string `yaml:"backend" validate:"oneof=vector density mps"`
	// Chi is the bond dimension of matrix product states.
	Chi   int `yaml:"chi" validate:"gte=1"`
	Batch int `yaml:"batch" validate:"gte=1"`

	Shots int `yaml:"shots" validate:"gte=0"`
	// Seed seeds sampling, a negative seed picks a random one.
	Seed int64 `yaml:"seed"`

	// Debug turns on the warnings on parameters larger than MaxParam.
	Debug    bool    `yaml:"debug"`
	MaxParam float64 `yaml:"max_param" validate:"gt=0"`

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
	// DB is the SQLite database that results are saved to, none if empty.
	DB string `yaml:"db"`
}

var validate = validator.New()

// Default returns the default configuration.
func Default() Config {
	sampling := measure.DefaultConfig()
	return Config{
		Qubits:   2,
		Backend:  Vector,
		Chi:      16,
		Batch:    1,
		Shots:    sampling.Shots,
		Seed:     sampling.Seed,
		MaxParam: 2 * math.Pi,
		LogLevel: "info",
	}
}

// Load reads the configuration at path on top of the defaults.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Parse decodes the YAML document b on top of the defaults and validates the result.
// Unknown fields are rejected.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, qcirc.Errorf(qcirc.Construction, qcirc.BadConfig, "%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	return cfg, nil
}

// Validate checks the field constraints of c.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "")
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" "+fe.Tag()+" "+fe.Param())
	}
	return qcirc.Errorf(qcirc.Construction, qcirc.BadConfig, "%s", strings.Join(fields, "; "))
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return b, nil
}

// Level returns the slog level of c.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Sampling returns the sampler configuration of c.
func (c Config) Sampling() measure.Config {
	return measure.Config{Shots: c.Shots, Seed: c.Seed}
}

// NewState returns a batch of all zero states on the configured backend.
func (c Config) NewState() (state.State, error) {
	switch c.Backend {
	case Vector, Density:
		amps := make([][]complex64, c.Batch)
		for i := range amps {
			amps[i] = make([]complex64, 1<<c.Qubits)
			amps[i][0] = 1
		}
		v, err := state.FromAmplitudes(amps, c.Qubits)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		if c.Backend == Density {
			return state.Density(v), nil
		}
		return v, nil
	case MPS:
		s, err := state.ZerosMPS(c.Qubits, c.Batch, c.Chi)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return s, nil
	default:
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.BadConfig, "backend %q", c.Backend)
	}
}
