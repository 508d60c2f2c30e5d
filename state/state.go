// Package state holds quantum states as dense vectors, density matrices or matrix product states, and applies operators to them.
//
// Every state carries a leading batch axis, and operators are applied to all batch items at once.
package state

import (
	"fmt"
	"math"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/evolve"
	"github.com/fumin/qcirc/mps"
	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

// State is one of *Vector, *DensityMatrix or *MPS.
type State interface {
	NumQubits() int
	BatchSize() int
	isState()
}

// Operator is a local unitary on a register of qubits.
type Operator interface {
	NumQubits() int
	Wires() []int
	Controls() []int
	// Tensor returns the matrix acting on Wires.
	Tensor() *tensor.Dense
	// Local returns the matrix acting on the increasing sites Wires and Controls, including the action of the controls.
	Local() ([][]complex64, []int, error)
}

// Vector is a batch of pure states of shape (batch, 2, ..., 2).
type Vector struct {
	t *tensor.Dense
	n int
}

// DensityMatrix is a batch of density matrices of shape (batch, 2 x n ket axes, 2 x n bra axes).
type DensityMatrix struct {
	t *tensor.Dense
	n int
}

// MPS is a batch of matrix product states, one chain per batch item.
type MPS struct {
	chains []*mps.MPS
	n      int
}

func (*Vector) isState()        {}
func (*DensityMatrix) isState() {}
func (*MPS) isState()           {}

func (v *Vector) NumQubits() int        { return v.n }
func (v *DensityMatrix) NumQubits() int { return v.n }
func (v *MPS) NumQubits() int           { return v.n }

func (v *Vector) BatchSize() int        { return v.t.Shape()[0] }
func (v *DensityMatrix) BatchSize() int { return v.t.Shape()[0] }
func (v *MPS) BatchSize() int           { return len(v.chains) }

// Tensor returns the underlying tensor of v.
func (v *Vector) Tensor() *tensor.Dense { return v.t }

// Tensor returns the underlying tensor of v.
func (v *DensityMatrix) Tensor() *tensor.Dense { return v.t }

// Chains returns copies of the chains of v.
func (v *MPS) Chains() []*mps.MPS {
	chains := make([]*mps.MPS, 0, len(v.chains))
	for _, c := range v.chains {
		chains = append(chains, c.Clone())
	}
	return chains
}

// Discarded returns the largest truncated weight among the chains of v.
func (v *MPS) Discarded() float64 {
	var d float64
	for _, c := range v.chains {
		d = max(d, c.Discarded)
	}
	return d
}

// Zeros returns the state |0...0> of n qubits.
func Zeros(n int) (*Vector, error) {
	if n < 1 {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%d qubits", n)
	}
	amps := make([]complex64, 1<<n)
	amps[0] = 1
	return FromAmplitudes([][]complex64{amps}, n)
}

// FromAmplitudes returns a batch of pure states of n qubits, whose amplitudes are not normalized.
func FromAmplitudes(amps [][]complex64, n int) (*Vector, error) {
	t, err := evolve.FromAmplitudes(amps, 2, n)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &Vector{t: t, n: n}, nil
}

// NewDensity returns a batch of density matrices of n qubits, each given as a 2^n x 2^n matrix.
func NewDensity(rhos [][][]complex64, n int) (*DensityMatrix, error) {
	dim := 1 << n
	flat := make([][]complex64, 0, len(rhos))
	for i, rho := range rhos {
		if len(rho) != dim {
			return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "batch %d has %d rows, expected %d", i, len(rho), dim)
		}
		f := make([]complex64, 0, dim*dim)
		for _, row := range rho {
			if len(row) != dim {
				return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "batch %d has %d columns, expected %d", i, len(row), dim)
			}
			f = append(f, row...)
		}
		flat = append(flat, f)
	}
	t, err := evolve.FromAmplitudes(flat, 2, 2*n)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &DensityMatrix{t: t, n: n}, nil
}

// Density returns |psi><psi| for each batch item of v.
func Density(v *Vector) *DensityMatrix {
	amps := evolve.Flatten(v.t)
	rhos := make([][][]complex64, 0, len(amps))
	for _, a := range amps {
		rho := make([][]complex64, len(a))
		for i := range rho {
			rho[i] = make([]complex64, len(a))
			for j := range rho[i] {
				rho[i][j] = a[i] * complex(real(a[j]), -imag(a[j]))
			}
		}
		rhos = append(rhos, rho)
	}
	d, err := NewDensity(rhos, v.n)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return d
}

// ZerosMPS returns batch copies of |0...0> as matrix product states with maximum bond dimension chi.
func ZerosMPS(n, batch, chi int) (*MPS, error) {
	if n < 1 || batch < 1 {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%d qubits, batch %d", n, batch)
	}
	chains := make([]*mps.MPS, 0, batch)
	for range batch {
		chains = append(chains, mps.Zeros(n, chi, true))
	}
	return &MPS{chains: chains, n: n}, nil
}

// MPSFromVector decomposes each batch item of v into a matrix product state with maximum bond dimension chi.
func MPSFromVector(v *Vector, chi int) (*MPS, error) {
	chains := make([]*mps.MPS, 0, v.BatchSize())
	for _, amps := range evolve.Flatten(v.t) {
		c, err := mps.FromDense(amps, v.n, chi, true)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		chains = append(chains, c)
	}
	return &MPS{chains: chains, n: v.n}, nil
}

// Apply returns the state after applying op to s.
// s is left unchanged.
func Apply(s State, op Operator) (State, error) {
	if op.NumQubits() != s.NumQubits() {
		return nil, qcirc.Errorf(qcirc.Evolution, qcirc.ShapeMismatch, "operator on %d qubits, state of %d qubits", op.NumQubits(), s.NumQubits())
	}

	switch v := s.(type) {
	case *Vector:
		t, err := evolve.State(v.t, op.Tensor(), op.Wires(), op.Controls(), 2)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return &Vector{t: t, n: v.n}, nil
	case *DensityMatrix:
		t, err := evolve.DensityMatrix(v.t, op.Tensor(), op.Wires(), op.Controls(), 2)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return &DensityMatrix{t: t, n: v.n}, nil
	case *MPS:
		u, sites, err := op.Local()
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		mpo, left, err := mps.NewMPO(tensor.T2(u), sites)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		chains := make([]*mps.MPS, 0, len(v.chains))
		for _, c := range v.chains {
			c = c.Clone()
			if err := c.Apply(mpo, left); err != nil {
				return nil, errors.Wrap(err, "")
			}
			chains = append(chains, c)
		}
		return &MPS{chains: chains, n: v.n}, nil
	default:
		panic(fmt.Sprintf("%T", s))
	}
}

// Dense returns the amplitudes of each batch item of s.
// Density matrices are flattened in row major order.
func Dense(s State) [][]complex64 {
	switch v := s.(type) {
	case *Vector:
		return evolve.Flatten(v.t)
	case *DensityMatrix:
		return evolve.Flatten(v.t)
	case *MPS:
		amps := make([][]complex64, 0, len(v.chains))
		for _, c := range v.chains {
			amps = append(amps, c.Dense())
		}
		return amps
	default:
		panic(fmt.Sprintf("%T", s))
	}
}

// Probabilities returns the probabilities of the computational basis states of each batch item of s.
func Probabilities(s State) [][]float64 {
	dense := Dense(s)
	probs := make([][]float64, 0, len(dense))
	for _, amps := range dense {
		var p []float64
		switch s.(type) {
		case *DensityMatrix:
			dim := 1 << s.NumQubits()
			p = make([]float64, dim)
			for i := range dim {
				p[i] = float64(real(amps[i*dim+i]))
			}
		default:
			p = make([]float64, len(amps))
			for i, a := range amps {
				p[i] = sqAbs(a)
			}
		}
		probs = append(probs, p)
	}
	return probs
}

// Norm returns the norm, or the trace for density matrices, of each batch item of s.
func Norm(s State) []float64 {
	norms := make([]float64, 0, s.BatchSize())
	if _, ok := s.(*DensityMatrix); ok {
		for _, p := range Probabilities(s) {
			var tr float64
			for _, v := range p {
				tr += v
			}
			norms = append(norms, tr)
		}
		return norms
	}
	for _, p := range Probabilities(s) {
		var n2 float64
		for _, v := range p {
			n2 += v
		}
		norms = append(norms, math.Sqrt(n2))
	}
	return norms
}

func sqAbs(a complex64) float64 {
	return float64(real(a)*real(a) + imag(a)*imag(a))
}
