// Command run simulates a quench of the transverse field Ising chain with Trotterized circuits on matrix product states,
// and prints the energy and magnetization for a range of bond dimensions.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"slices"

	"github.com/fumin/qcirc/circuit"
	"github.com/fumin/qcirc/gate"
	"github.com/fumin/qcirc/mps"
	"github.com/fumin/qcirc/state"
	"github.com/pkg/errors"
)

var (
	length = flag.Int("l", 16, "chain length")
	steps  = flag.Int("steps", 20, "number of Trotter steps")
	dt     = flag.Float64("dt", 0.05, "Trotter time step")
)

type Config struct {
	l       int
	h       float64
	bondDim int
}

func newConfigs() []Config {
	hLogs := []float64{0.2, 0.5, 1}
	// Add negative logs, so that hLogs becomes {-1, -0.5, -0.2, 0.2, 0.5, 1}.
	hLogsLen := len(hLogs)
	for i := range hLogsLen {
		hLogs = append(hLogs, -hLogs[i])
	}
	slices.Sort(hLogs)

	configs := make([]Config, 0)
	for _, hl := range hLogs {
		for _, bondDim := range []int{2, 4, 8} {
			configs = append(configs, Config{l: *length, h: math.Pow(10, hl), bondDim: bondDim})
		}
	}
	return configs
}

// trotterStep returns one first order step of exp(-i H dt) for H = -sum_i Z_i Z_{i+1} - h sum_i X_i.
func trotterStep(l int, h, dt float64) (*circuit.Circuit, error) {
	c, err := circuit.New(l)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	// exp(i dt Z Z) is diagonal.
	p, m := complex64(cmplx.Exp(complex(0, dt))), complex64(cmplx.Exp(complex(0, -dt)))
	zz, err := gate.Unitary(l, [][]complex64{{p, 0, 0, 0}, {0, m, 0, 0}, {0, 0, m, 0}, {0, 0, 0, p}}, []int{0, 1})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	// Even bonds first, then odd bonds.
	for _, start := range []int{0, 1} {
		for i := start; i+1 < l; i += 2 {
			if err := c.Add(zz, circuit.On(i, i+1)); err != nil {
				return nil, errors.Wrap(err, "")
			}
		}
	}

	// exp(i h dt X) = Rx(-2 h dt).
	rx, err := gate.Rx(l, 0, gate.NewParam(-2*h*dt, false))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	for i := range l {
		if err := c.Add(rx, circuit.On(i)); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	return c, nil
}

type Statistics struct {
	cfg       Config
	e         float32
	variance  float32
	m         float32
	discarded float64
}

func solve(cfg Config) (Statistics, error) {
	step, err := trotterStep(cfg.l, cfg.h, *dt)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}

	// Start from the all up state, the ground state at h = 0.
	var s state.State
	s, err = state.ZerosMPS(cfg.l, 1, cfg.bondDim)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	for range *steps {
		if s, err = step.Forward(s); err != nil {
			return Statistics{}, errors.Wrap(err, "")
		}
	}

	chain := s.(*state.MPS).Chains()[0]
	ising := mps.Ising(cfg.l, complex(float32(cfg.h), 0))
	e, err := chain.Expectation(ising)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	// Exact evolution conserves the energy and its variance.
	v, err := chain.Variance(ising)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	mz, err := chain.Expectation(mps.MagnetizationZ(cfg.l))
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	m := real(mz) / float32(cfg.l) // per spin

	return Statistics{cfg: cfg, e: real(e), variance: real(v), m: m, discarded: chain.Discarded}, nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	configs := newConfigs()
	statistics := make([]Statistics, 0, len(configs))
	for _, cfg := range configs {
		stat, err := solve(cfg)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("%#v", cfg))
		}
		statistics = append(statistics, stat)
		log.Printf("%#v", stat)
	}

	fmt.Printf("l,h,b,e,variance,m,discarded\n")
	for _, s := range statistics {
		fmt.Printf("%d,%f,%d,%f,%f,%f,%g\n", s.cfg.l, s.cfg.h, s.cfg.bondDim, s.e, s.variance, s.m, s.discarded)
	}

	return nil
}
