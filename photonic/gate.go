// Package photonic simulates linear optical circuits on qumodes, either as Fock state tensors truncated at a cutoff or as Fock basis states.
//
// A gate is described by the unitary U acting on the creation operators of its modes, a^dagger_i -> sum_j U_ji a^dagger_j.
package photonic

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/gate"
	"github.com/fumin/qcirc/index"
	"github.com/pkg/errors"
)

const unitaryTol = 1e-6

// Gate is a linear optical element acting on wires of a circuit of nmode modes.
type Gate struct {
	name   string
	nmode  int
	wires  []int
	params []*gate.Param
	matrix func(params []float64) [][]complex128
}

func newGate(name string, nmode int, wires []int, params []*gate.Param, matrix func([]float64) [][]complex128) (*Gate, error) {
	g := &Gate{name: name, nmode: nmode, wires: slices.Clone(wires), params: params, matrix: matrix}
	if err := index.Validate(nmode, g.wires, nil); err != nil {
		return nil, errors.Wrap(err, name)
	}
	u := g.Matrix()
	if len(u) != len(wires) {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%s: %d x %d matrix, %d wires", name, len(u), len(u), len(wires))
	}
	if !isUnitary(u) {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.NotUnitary, "%s: %v", name, u)
	}
	return g, nil
}

// PhaseShift multiplies the creation operator of wire by exp(i theta).
func PhaseShift(nmode, wire int, theta *gate.Param) (*Gate, error) {
	return newGate("PS", nmode, []int{wire}, []*gate.Param{theta}, func(p []float64) [][]complex128 {
		return [][]complex128{{cmplx.Exp(complex(0, p[0]))}}
	})
}

// BeamSplitter mixes two modes with transmission angle theta and phase phi.
func BeamSplitter(nmode, wire0, wire1 int, theta, phi *gate.Param) (*Gate, error) {
	return newGate("BS", nmode, []int{wire0, wire1}, []*gate.Param{theta, phi}, func(p []float64) [][]complex128 {
		c, s := complex(math.Cos(p[0]), 0), complex(math.Sin(p[0]), 0)
		return [][]complex128{
			{c, -cmplx.Exp(complex(0, -p[1])) * s},
			{cmplx.Exp(complex(0, p[1])) * s, c},
		}
	})
}

// UAny is an arbitrary linear optical unitary on wires.
func UAny(nmode int, u [][]complex128, wires []int) (*Gate, error) {
	cp := make([][]complex128, 0, len(u))
	for _, row := range u {
		if len(row) != len(u) {
			return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "UAny: not square %v", u)
		}
		cp = append(cp, slices.Clone(row))
	}
	return newGate("UAny", nmode, wires, nil, func([]float64) [][]complex128 { return cp })
}

// On returns the same gate placed on other wires, sharing its parameter cells.
func (g *Gate) On(wires []int) (*Gate, error) {
	if len(wires) != len(g.wires) {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%s: %d wires, got %v", g.name, len(g.wires), wires)
	}
	if err := index.Validate(g.nmode, wires, nil); err != nil {
		return nil, errors.Wrap(err, g.name)
	}
	return &Gate{name: g.name, nmode: g.nmode, wires: slices.Clone(wires), params: g.params, matrix: g.matrix}, nil
}

func (g *Gate) Name() string          { return g.name }
func (g *Gate) NumModes() int         { return g.nmode }
func (g *Gate) Wires() []int          { return slices.Clone(g.wires) }
func (g *Gate) Params() []*gate.Param { return slices.Clone(g.params) }

// Trainable reports whether any parameter of g is trainable.
func (g *Gate) Trainable() bool {
	return slices.ContainsFunc(g.params, (*gate.Param).Trainable)
}

// Matrix returns the unitary of g on the creation operators of its wires.
func (g *Gate) Matrix() [][]complex128 {
	values := make([]float64, 0, len(g.params))
	for _, p := range g.params {
		values = append(values, p.Value())
	}
	return g.matrix(values)
}

func (g *Gate) String() string {
	return fmt.Sprintf("%s%v%v", g.name, g.wires, g.params)
}

func isUnitary(u [][]complex128) bool {
	for i := range u {
		for j := range u {
			var s complex128
			for k := range u {
				s += u[i][k] * cmplx.Conj(u[j][k])
			}
			if i == j {
				s--
			}
			if cmplx.Abs(s) > unitaryTol {
				return false
			}
		}
	}
	return true
}
