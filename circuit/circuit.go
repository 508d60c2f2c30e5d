// Package circuit holds ordered sequences of gates on a register of qubits, and evolves states through them.
package circuit

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/gate"
	"github.com/fumin/qcirc/state"
	"github.com/pkg/errors"
)

// Circuit is an ordered sequence of gates on n qubits.
type Circuit struct {
	n        int
	ops      []*gate.Gate
	encoders []*gate.Gate
	depth    []int

	logger   *slog.Logger
	debug    bool
	maxParam float64
}

// An Option configures a Circuit.
type Option func(*Circuit)

// WithLogger sets the logger of a circuit, which defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Circuit) { c.logger = l }
}

// WithDebug warns whenever a gate is applied with a parameter larger than maxParam in magnitude.
func WithDebug(maxParam float64) Option {
	return func(c *Circuit) {
		c.debug = true
		c.maxParam = maxParam
	}
}

// New returns an empty circuit on n qubits.
func New(n int, opts ...Option) (*Circuit, error) {
	if n < 1 {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%d qubits", n)
	}
	c := &Circuit{n: n, depth: make([]int, n), logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type addOptions struct {
	wires    []int
	controls []int
	remap    bool
	encode   bool
}

// An AddOption configures how a gate is added to a circuit.
type AddOption func(*addOptions)

// On places the gate on wires instead of its own, keeping its controls.
// The placed gate shares the parameters of the original.
func On(wires ...int) AddOption {
	return func(o *addOptions) {
		o.wires = wires
		o.remap = true
	}
}

// ControlledBy replaces the controls of the gate, sharing its parameters like On.
func ControlledBy(controls ...int) AddOption {
	return func(o *addOptions) {
		o.controls = controls
		o.remap = true
	}
}

// Encode marks the gate as a data encoder, whose parameters are set by Encode.
func Encode() AddOption {
	return func(o *addOptions) { o.encode = true }
}

// Add appends op to c.
func (c *Circuit) Add(op *gate.Gate, opts ...AddOption) error {
	var o addOptions
	for _, f := range opts {
		f(&o)
	}

	if o.remap {
		wires, controls := op.Wires(), op.Controls()
		if o.wires != nil {
			wires = o.wires
		}
		if o.controls != nil {
			controls = o.controls
		}
		var err error
		if op, err = op.On(c.n, wires, controls); err != nil {
			return errors.Wrap(err, "")
		}
	}
	if op.NumQubits() != c.n {
		return qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%s on %d qubits, circuit of %d qubits", op, op.NumQubits(), c.n)
	}

	c.ops = append(c.ops, op)
	for _, w := range op.Wires() {
		c.depth[w]++
	}
	if o.encode {
		c.encoders = append(c.encoders, op)
	}
	return nil
}

// Append appends the gates and encoders of other to c.
func (c *Circuit) Append(other *Circuit) error {
	if other.n != c.n {
		return qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "circuit of %d qubits, %d qubits", other.n, c.n)
	}
	c.ops = append(c.ops, other.ops...)
	c.encoders = append(c.encoders, other.encoders...)
	for i, d := range other.depth {
		c.depth[i] += d
	}
	return nil
}

func (c *Circuit) NumQubits() int { return c.n }

// Ops returns the gates of c in order.
func (c *Circuit) Ops() []*gate.Gate { return append([]*gate.Gate(nil), c.ops...) }

// Depth returns the number of gates acting on each wire, not counting controls.
func (c *Circuit) Depth() []int { return append([]int(nil), c.depth...) }

// NumParams returns the number of distinct trainable parameters.
func (c *Circuit) NumParams() int {
	seen := make(map[*gate.Param]bool)
	for _, op := range c.ops {
		for _, p := range op.Params() {
			if p.Trainable() {
				seen[p] = true
			}
		}
	}
	return len(seen)
}

// NumData returns the number of values consumed by Encode.
func (c *Circuit) NumData() int {
	var n int
	for _, op := range c.encoders {
		n += len(op.Params())
	}
	return n
}

// Encode sets the parameters of the encoders of c from data, in the order the encoders were added.
// No parameter is changed if an error is returned.
func (c *Circuit) Encode(data []float64) error {
	if len(data) < c.NumData() {
		return qcirc.Errorf(qcirc.Evolution, qcirc.ShapeMismatch, "%d values, %d encoder parameters", len(data), c.NumData())
	}
	for _, op := range c.encoders {
		if op.Trainable() {
			return qcirc.Errorf(qcirc.Evolution, qcirc.TrainableEncoder, "%s", op)
		}
	}

	var i int
	for _, op := range c.encoders {
		for _, p := range op.Params() {
			p.Set(data[i])
			i++
		}
	}
	return nil
}

// Forward applies the gates of c to s in order.
func (c *Circuit) Forward(s state.State) (state.State, error) {
	for _, op := range c.ops {
		c.warnLarge(op)
		var err error
		if s, err = state.Apply(s, op); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%s", op))
		}
	}
	return s, nil
}

// ForwardBatch encodes each sample of data and applies c to s, returning one state per sample.
// Samples are run one after another rather than along the batch axis of s, since the parameters of a gate hold a single value at a time.
func (c *Circuit) ForwardBatch(data [][]float64, s state.State) ([]state.State, error) {
	out := make([]state.State, 0, len(data))
	for i, d := range data {
		if err := c.Encode(d); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("sample %d", i))
		}
		y, err := c.Forward(s)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("sample %d", i))
		}
		out = append(out, y)
	}
	return out, nil
}

// Unitary returns the unitary matrix of c.
func (c *Circuit) Unitary() ([][]complex64, error) {
	dim := 1 << c.n
	basis := make([][]complex64, dim)
	for i := range basis {
		basis[i] = make([]complex64, dim)
		basis[i][i] = 1
	}
	v, err := state.FromAmplitudes(basis, c.n)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	y, err := c.Forward(v)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	columns := state.Dense(y)

	u := make([][]complex64, dim)
	for i := range u {
		u[i] = make([]complex64, dim)
		for j := range u[i] {
			u[i][j] = columns[j][i]
		}
	}
	return u, nil
}

func (c *Circuit) warnLarge(op *gate.Gate) {
	if !c.debug {
		return
	}
	for _, p := range op.Params() {
		if math.Abs(p.Value()) > c.maxParam {
			c.logger.Warn("parameter may be too large", "gate", op.String(), "value", p.Value(), "max", c.maxParam)
		}
	}
}

func (c *Circuit) String() string {
	ss := make([]string, 0, len(c.ops))
	for _, op := range c.ops {
		ss = append(ss, op.String())
	}
	return fmt.Sprintf("Circuit(%d) %s", c.n, strings.Join(ss, " "))
}
