package photonic

import (
	"cmp"
	"fmt"
	"math/cmplx"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/evolve"
	"github.com/fumin/qcirc/index"
	"github.com/fumin/qcirc/measure"
	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

// Circuit is an ordered sequence of linear optical gates on nmode modes, truncated at cutoff photons per mode.
type Circuit struct {
	nmode    int
	cutoff   int
	ops      []*Gate
	encoders []*Gate
}

// NewCircuit returns an empty circuit.
func NewCircuit(nmode, cutoff int) (*Circuit, error) {
	if nmode < 1 || cutoff < 2 {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%d modes, cutoff %d", nmode, cutoff)
	}
	return &Circuit{nmode: nmode, cutoff: cutoff}, nil
}

type addOptions struct {
	wires  []int
	encode bool
}

// An AddOption configures how a gate is added to a circuit.
type AddOption func(*addOptions)

// On places the gate on wires, sharing its parameters with the original.
func On(wires ...int) AddOption {
	return func(o *addOptions) { o.wires = wires }
}

// Encode marks the gate as a data encoder.
func Encode() AddOption {
	return func(o *addOptions) { o.encode = true }
}

// Add appends op to c.
func (c *Circuit) Add(op *Gate, opts ...AddOption) error {
	var o addOptions
	for _, f := range opts {
		f(&o)
	}
	if op.nmode != c.nmode {
		return qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%s on %d modes, circuit of %d modes", op, op.nmode, c.nmode)
	}
	if o.wires != nil {
		var err error
		if op, err = op.On(o.wires); err != nil {
			return errors.Wrap(err, "")
		}
	}
	c.ops = append(c.ops, op)
	if o.encode {
		c.encoders = append(c.encoders, op)
	}
	return nil
}

func (c *Circuit) NumModes() int { return c.nmode }
func (c *Circuit) Cutoff() int   { return c.cutoff }

// Encode sets the parameters of the encoders of c from data.
// No parameter is changed if an error is returned.
func (c *Circuit) Encode(data []float64) error {
	var n int
	for _, op := range c.encoders {
		if op.Trainable() {
			return qcirc.Errorf(qcirc.Evolution, qcirc.TrainableEncoder, "%s", op)
		}
		n += len(op.params)
	}
	if len(data) < n {
		return qcirc.Errorf(qcirc.Evolution, qcirc.ShapeMismatch, "%d values, %d encoder parameters", len(data), n)
	}

	var i int
	for _, op := range c.encoders {
		for _, p := range op.params {
			p.Set(data[i])
			i++
		}
	}
	return nil
}

// Unitary returns the unitary of c on the creation operators of all modes.
func (c *Circuit) Unitary() [][]complex128 {
	u := identity(c.nmode)
	for _, op := range c.ops {
		u = matMul(embed(op.Matrix(), op.wires, c.nmode), u)
	}
	return u
}

// FockState returns a batch of Fock state tensors of shape (batch, cutoff, ..., cutoff), one per occupation.
func (c *Circuit) FockState(occupations ...[]int) (*tensor.Dense, error) {
	amps := make([][]complex64, 0, len(occupations))
	for _, occ := range occupations {
		if err := c.checkOccupation(occ); err != nil {
			return nil, errors.Wrap(err, "")
		}
		a := make([]complex64, index.Pow(c.cutoff, c.nmode))
		a[undigits(occ, c.cutoff)] = 1
		amps = append(amps, a)
	}
	x, err := evolve.FromAmplitudes(amps, c.cutoff, c.nmode)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return x, nil
}

// Forward applies c to the Fock state tensor x.
func (c *Circuit) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	for _, op := range c.ops {
		m := tensor.T2(FockMatrix(op.Matrix(), c.cutoff))
		var err error
		if x, err = evolve.State(x, m, op.wires, nil, c.cutoff); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%s", op))
		}
	}
	return x, nil
}

// Basis is a Fock basis state and its amplitude.
type Basis struct {
	State     []int
	Amplitude complex128
}

func (b Basis) String() string {
	ss := make([]string, 0, len(b.State))
	for _, n := range b.State {
		ss = append(ss, fmt.Sprintf("%d", n))
	}
	return "|" + strings.Join(ss, ",") + ">"
}

// ForwardBasis returns the amplitudes of all output basis states of c for the input occupation in.
// Outputs with more than cutoff-1 photons in a mode are dropped, and the rest are in decreasing lexicographic order.
func (c *Circuit) ForwardBasis(in []int) ([]Basis, error) {
	if err := c.checkOccupation(in); err != nil {
		return nil, errors.Wrap(err, "")
	}
	u := c.Unitary()
	var out []Basis
	for _, occ := range Combinations(c.nmode, sum(in)) {
		if slices.Max(occ) >= c.cutoff {
			continue
		}
		out = append(out, Basis{State: occ, Amplitude: Amplitude(u, in, occ)})
	}
	return out, nil
}

// Measure samples shots outcomes from the basis amplitudes, marginalised to wires if any are given.
func Measure(amps []Basis, shots int, rng *rand.Rand, wires ...int) (measure.Counts, error) {
	merged := make(map[string]float64)
	for _, b := range amps {
		occ := b.State
		if len(wires) > 0 {
			occ = make([]int, 0, len(wires))
			for _, w := range wires {
				if w < 0 || w >= len(b.State) {
					return nil, qcirc.Errorf(qcirc.Evolution, qcirc.AxisRange, "wire %d, %d modes", w, len(b.State))
				}
				occ = append(occ, b.State[w])
			}
		}
		p := cmplx.Abs(b.Amplitude)
		merged[Basis{State: occ}.String()] += p * p
	}

	labels := make([]string, 0, len(merged))
	for l := range merged {
		labels = append(labels, l)
	}
	slices.SortFunc(labels, func(a, b string) int { return cmp.Compare(b, a) })
	probs := make([]float64, 0, len(labels))
	for _, l := range labels {
		probs = append(probs, merged[l])
	}
	counts, err := measure.Sample(probs, labels, shots, rng)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return counts, nil
}

func (c *Circuit) checkOccupation(occ []int) error {
	if len(occ) != c.nmode {
		return qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "occupation %v, %d modes", occ, c.nmode)
	}
	for _, n := range occ {
		if n < 0 || n >= c.cutoff {
			return qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "occupation %v, cutoff %d", occ, c.cutoff)
		}
	}
	return nil
}

func identity(n int) [][]complex128 {
	u := make([][]complex128, n)
	for i := range u {
		u[i] = make([]complex128, n)
		u[i][i] = 1
	}
	return u
}

// embed returns the nmode x nmode unitary of u acting on wires.
func embed(u [][]complex128, wires []int, nmode int) [][]complex128 {
	e := identity(nmode)
	for i, wi := range wires {
		for j, wj := range wires {
			e[wi][wj] = u[i][j]
		}
	}
	return e
}

func matMul(a, b [][]complex128) [][]complex128 {
	c := make([][]complex128, len(a))
	for i := range a {
		c[i] = make([]complex128, len(b[0]))
		for k := range b {
			for j := range b[0] {
				c[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return c
}
