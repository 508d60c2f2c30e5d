// Command run prepares a GHZ state on the configured backend, samples it and optionally saves the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/fumin/qcirc/circuit"
	"github.com/fumin/qcirc/config"
	"github.com/fumin/qcirc/gate"
	"github.com/fumin/qcirc/measure"
	"github.com/fumin/qcirc/qasm"
	"github.com/fumin/qcirc/state"
	"github.com/fumin/qcirc/store"
)

var (
	configPath = flag.String("c", "", "YAML configuration, defaults are used if empty")
	qasmPath   = flag.String("qasm", "", "write the circuit as OpenQASM to this file")
	name       = flag.String("name", "ghz", "name under which results are saved")
)

// ghz returns a circuit that prepares (|0...0> + |1...1>) / sqrt(2).
func ghz(n int, opts ...circuit.Option) (*circuit.Circuit, error) {
	c, err := circuit.New(n, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	h, err := gate.H(n, 0)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := c.Add(h); err != nil {
		return nil, errors.Wrap(err, "")
	}
	for i := range n - 1 {
		cnot, err := gate.CNOT(n, i, i+1)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		if err := c.Add(cnot); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	return c, nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return errors.Wrap(err, "")
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	opts := []circuit.Option{circuit.WithLogger(logger)}
	if cfg.Debug {
		opts = append(opts, circuit.WithDebug(cfg.MaxParam))
	}
	c, err := ghz(cfg.Qubits, opts...)
	if err != nil {
		return errors.Wrap(err, "")
	}
	logger.Debug("circuit", "ops", len(c.Ops()), "depth", c.Depth())

	if *qasmPath != "" {
		if err := os.WriteFile(*qasmPath, []byte(qasm.NewSession().Export(c)), 0644); err != nil {
			return errors.Wrap(err, "")
		}
	}

	s, err := cfg.NewState()
	if err != nil {
		return errors.Wrap(err, "")
	}
	out, err := c.Forward(s)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if m, ok := out.(*state.MPS); ok {
		logger.Info("truncation", "discarded", m.Discarded())
	}

	ps := "Z"
	if cfg.Qubits > 1 {
		ps = "ZZ" + strings.Repeat("I", cfg.Qubits-2)
	}
	zz, err := state.Expectation(out, ps)
	if err != nil {
		return errors.Wrap(err, "")
	}
	counts, err := measure.NewSampler(cfg.Sampling()).State(out)
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("batch,%s,counts\n", ps)
	for i := range counts {
		fmt.Printf("%d,%f,%s\n", i, zz[i], counts[i])
	}

	if cfg.DB == "" {
		return nil
	}
	db, err := store.Open(cfg.DB)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer db.Close()
	ctx := context.Background()
	if err := db.SaveState(ctx, *name, out); err != nil {
		return errors.Wrap(err, "")
	}
	if err := db.SaveCounts(ctx, *name, counts); err != nil {
		return errors.Wrap(err, "")
	}
	logger.Info("saved", "db", cfg.DB, "name", *name)
	return nil
}
