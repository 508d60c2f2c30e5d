// Package gate defines quantum gates: local unitaries placed on target wires, optionally controlled by other wires.
package gate

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/evolve"
	"github.com/fumin/qcirc/index"
	"github.com/fumin/qcirc/mat"
	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

const unitaryTol = 1e-4

// Param is a numeric parameter cell.
// Gates placed on different wires observe the same value when they hold the same *Param.
type Param struct {
	value     float64
	trainable bool
}

// NewParam returns a parameter cell.
func NewParam(v float64, trainable bool) *Param {
	return &Param{value: v, trainable: trainable}
}

func (p *Param) Value() float64  { return p.value }
func (p *Param) Set(v float64)   { p.value = v }
func (p *Param) Trainable() bool { return p.trainable }

func (p *Param) String() string {
	return fmt.Sprintf("%g", p.value)
}

// MatrixFunc returns the local matrix of a gate for the given parameter values.
type MatrixFunc func(params []float64) [][]complex64

// Gate is a local unitary on wires, controlled by controls, of a register of nqubit qubits.
// The structure of a gate is fixed once constructed, only the values of its parameters may change.
type Gate struct {
	name     string
	nqubit   int
	wires    []int
	controls []int
	params   []*Param
	matrix   MatrixFunc
}

// New returns a gate whose local matrix is computed by matrix from params.
func New(name string, nqubit int, wires, controls []int, params []*Param, matrix MatrixFunc) (*Gate, error) {
	g := &Gate{name: name, nqubit: nqubit, wires: slices.Clone(wires), controls: slices.Clone(controls), params: slices.Clone(params), matrix: matrix}
	if err := index.Validate(nqubit, g.wires, g.controls); err != nil {
		return nil, errors.Wrap(err, name)
	}

	m := g.Matrix()
	dim := 1 << len(wires)
	if len(m) != dim || len(m[0]) != dim {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%s: matrix %dx%d, %d wires", name, len(m), len(m[0]), len(wires))
	}
	if !mat.IsUnitary(m, unitaryTol) {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.NotUnitary, "%s: %v", name, m)
	}
	return g, nil
}

// On returns the same gate placed on other wires and controls, sharing its parameter cells.
func (g *Gate) On(nqubit int, wires, controls []int) (*Gate, error) {
	if len(wires) != len(g.wires) {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%s: %d wires, got %v", g.name, len(g.wires), wires)
	}
	placed := &Gate{name: g.name, nqubit: nqubit, wires: slices.Clone(wires), controls: slices.Clone(controls), params: g.params, matrix: g.matrix}
	if err := index.Validate(nqubit, placed.wires, placed.controls); err != nil {
		return nil, errors.Wrap(err, g.name)
	}
	return placed, nil
}

func (g *Gate) Name() string    { return g.name }
func (g *Gate) NumQubits() int  { return g.nqubit }
func (g *Gate) Wires() []int    { return slices.Clone(g.wires) }
func (g *Gate) Controls() []int { return slices.Clone(g.controls) }

// Params returns the parameter cells of g.
func (g *Gate) Params() []*Param { return slices.Clone(g.params) }

// Trainable reports whether any parameter of g is trainable.
func (g *Gate) Trainable() bool {
	return slices.ContainsFunc(g.params, (*Param).Trainable)
}

// Matrix returns the local matrix over wires for the current parameter values.
func (g *Gate) Matrix() [][]complex64 {
	values := make([]float64, 0, len(g.params))
	for _, p := range g.params {
		values = append(values, p.value)
	}
	return g.matrix(values)
}

// Tensor returns the local matrix as a tensor.
func (g *Gate) Tensor() *tensor.Dense {
	return tensor.T2(g.Matrix())
}

// Identity returns the textual identity of the operation g performs, which is the same for every placement of gates of the same kind, number of wires and number of controls.
// Gates on more than one wire carry their wire count.
func (g *Gate) Identity() string {
	name := strings.ToLower(g.name)
	if len(g.wires) > 1 {
		name += strconv.Itoa(len(g.wires))
	}
	if n := len(g.controls); n > 2 {
		return fmt.Sprintf("c%d%s_", n, name)
	}
	return strings.Repeat("c", len(g.controls)) + name + "_"
}

func (g *Gate) String() string {
	s := fmt.Sprintf("%s%v", g.name, g.wires)
	if len(g.controls) > 0 {
		s += fmt.Sprintf("c%v", g.controls)
	}
	if len(g.params) > 0 {
		s += fmt.Sprintf("%v", g.params)
	}
	return s
}

// Local returns the unitary of g over the increasing sites wires and controls, including the action of the controls.
func (g *Gate) Local() ([][]complex64, []int, error) {
	sites := slices.Concat(g.wires, g.controls)
	slices.Sort(sites)
	position := func(axes []int) []int {
		pos := make([]int, 0, len(axes))
		for _, a := range axes {
			pos = append(pos, slices.Index(sites, a))
		}
		return pos
	}

	// Apply g to every basis state, the i-th output is the i-th column.
	dim := 1 << len(sites)
	basis := make([][]complex64, dim)
	for i := range basis {
		basis[i] = make([]complex64, dim)
		basis[i][i] = 1
	}
	x, err := evolve.FromAmplitudes(basis, 2, len(sites))
	if err != nil {
		return nil, nil, errors.Wrap(err, "")
	}
	y, err := evolve.State(x, g.Tensor(), position(g.wires), position(g.controls), 2)
	if err != nil {
		return nil, nil, errors.Wrap(err, "")
	}
	columns := evolve.Flatten(y)

	u := make([][]complex64, dim)
	for i := range u {
		u[i] = make([]complex64, dim)
		for j := range u[i] {
			u[i][j] = columns[j][i]
		}
	}
	return u, sites, nil
}
