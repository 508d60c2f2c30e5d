// Package mbqc runs measurement based quantum computation patterns.
//
// A pattern is a sequence of commands on nodes:
//   - N prepares a node in |+>.
//   - E entangles two nodes with a controlled Z.
//   - M measures a node in a plane of the Bloch sphere.
//   - X and Z correct a node, depending on the parity of earlier outcomes.
//
// The angle of a measurement is adapted to (-1)^s angle + t pi, where s and t are the parities of the outcomes of its s and t domains.
package mbqc

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/evolve"
	"github.com/fumin/qcirc/measure"
	"github.com/fumin/qcirc/state"
	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

// Plane is a measurement plane of the Bloch sphere.
type Plane int

const (
	XY Plane = iota
	XZ
	YZ
)

func (p Plane) String() string {
	switch p {
	case XY:
		return "XY"
	case XZ:
		return "XZ"
	case YZ:
		return "YZ"
	default:
		return fmt.Sprintf("Plane(%d)", int(p))
	}
}

// Kind is the type of a command.
// Kinds are ordered as they appear in a standard pattern.
type Kind int

const (
	N Kind = iota
	E
	M
	X
	Z
)

func (k Kind) String() string {
	switch k {
	case N:
		return "N"
	case E:
		return "E"
	case M:
		return "M"
	case X:
		return "X"
	case Z:
		return "Z"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Command is a single step of a pattern.
type Command struct {
	Kind Kind
	// Nodes holds the two nodes of an E command, and the single node of the others.
	Nodes []int

	Plane   Plane
	Angle   float64
	SDomain []int
	TDomain []int

	// Domain is the signal domain of an X or Z command.
	Domain []int
}

func (c Command) String() string {
	switch c.Kind {
	case N:
		return fmt.Sprintf("N(%d)", c.Nodes[0])
	case E:
		return fmt.Sprintf("E(%d,%d)", c.Nodes[0], c.Nodes[1])
	case M:
		return fmt.Sprintf("M(%d,%s,%s,s=%v,t=%v)", c.Nodes[0], c.Plane, strconv.FormatFloat(c.Angle, 'g', -1, 64), c.SDomain, c.TDomain)
	default:
		return fmt.Sprintf("%s(%d,%v)", c.Kind, c.Nodes[0], c.Domain)
	}
}

// Pattern is a measurement pattern.
type Pattern struct {
	inputs   []int
	nodes    []int
	prepared map[int]bool
	measured map[int]bool
	cmds     []Command
}

// NewPattern returns an empty pattern on the input nodes.
func NewPattern(inputs ...int) (*Pattern, error) {
	p := &Pattern{prepared: make(map[int]bool), measured: make(map[int]bool)}
	for _, i := range inputs {
		if err := p.prepare(i); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	p.inputs = slices.Clone(inputs)
	return p, nil
}

// Inputs returns the input nodes of p.
func (p *Pattern) Inputs() []int { return slices.Clone(p.inputs) }

// Outputs returns the nodes of p that are never measured, in the order they were prepared.
func (p *Pattern) Outputs() []int {
	var out []int
	for _, n := range p.nodes {
		if !p.measured[n] {
			out = append(out, n)
		}
	}
	return out
}

// Commands returns the commands of p.
func (p *Pattern) Commands() []Command { return slices.Clone(p.cmds) }

func (p *Pattern) String() string {
	ss := make([]string, 0, len(p.cmds))
	for _, c := range p.cmds {
		ss = append(ss, c.String())
	}
	return strings.Join(ss, " ")
}

// N prepares node in |+>.
func (p *Pattern) N(node int) error {
	if err := p.prepare(node); err != nil {
		return errors.Wrap(err, "")
	}
	p.cmds = append(p.cmds, Command{Kind: N, Nodes: []int{node}})
	return nil
}

// E entangles nodes a and b.
func (p *Pattern) E(a, b int) error {
	if a == b {
		return qcirc.Errorf(qcirc.Construction, qcirc.AxisDuplicate, "E(%d,%d)", a, b)
	}
	if err := p.alive(a, b); err != nil {
		return errors.Wrap(err, "")
	}
	p.cmds = append(p.cmds, Command{Kind: E, Nodes: []int{a, b}})
	return nil
}

// M measures node in plane at angle, adapted by the outcomes of the nodes in sDomain and tDomain.
func (p *Pattern) M(node int, plane Plane, angle float64, sDomain, tDomain []int) error {
	if plane < XY || plane > YZ {
		return qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "plane %s", plane)
	}
	if err := p.alive(node); err != nil {
		return errors.Wrap(err, "")
	}
	if err := p.outcomes(slices.Concat(sDomain, tDomain)); err != nil {
		return errors.Wrap(err, "")
	}
	p.measured[node] = true
	p.cmds = append(p.cmds, Command{Kind: M, Nodes: []int{node}, Plane: plane, Angle: angle, SDomain: slices.Clone(sDomain), TDomain: slices.Clone(tDomain)})
	return nil
}

// X applies a Pauli X to node if the parity of the outcomes of domain is odd.
func (p *Pattern) X(node int, domain ...int) error {
	return p.correct(X, node, domain)
}

// Z applies a Pauli Z to node if the parity of the outcomes of domain is odd.
func (p *Pattern) Z(node int, domain ...int) error {
	return p.correct(Z, node, domain)
}

func (p *Pattern) correct(kind Kind, node int, domain []int) error {
	if err := p.alive(node); err != nil {
		return errors.Wrap(err, "")
	}
	if err := p.outcomes(domain); err != nil {
		return errors.Wrap(err, "")
	}
	p.cmds = append(p.cmds, Command{Kind: kind, Nodes: []int{node}, Domain: slices.Clone(domain)})
	return nil
}

func (p *Pattern) prepare(node int) error {
	if node < 0 {
		return qcirc.Errorf(qcirc.Construction, qcirc.AxisRange, "node %d", node)
	}
	if p.prepared[node] {
		return qcirc.Errorf(qcirc.Construction, qcirc.AxisDuplicate, "node %d already prepared", node)
	}
	p.prepared[node] = true
	p.nodes = append(p.nodes, node)
	return nil
}

func (p *Pattern) alive(nodes ...int) error {
	for _, n := range nodes {
		if !p.prepared[n] {
			return qcirc.Errorf(qcirc.Construction, qcirc.AxisRange, "node %d not prepared", n)
		}
		if p.measured[n] {
			return qcirc.Errorf(qcirc.Construction, qcirc.AxisRange, "node %d already measured", n)
		}
	}
	return nil
}

func (p *Pattern) outcomes(domain []int) error {
	for _, n := range domain {
		if !p.measured[n] {
			return qcirc.Errorf(qcirc.Construction, qcirc.AxisRange, "domain node %d not measured", n)
		}
	}
	return nil
}

// IsStandard reports whether p is in the N* E* M* (X|Z)* order.
func (p *Pattern) IsStandard() bool {
	rank := func(k Kind) int { return int(min(k, X)) }
	for i := 1; i < len(p.cmds); i++ {
		if rank(p.cmds[i].Kind) < rank(p.cmds[i-1].Kind) {
			return false
		}
	}
	return true
}

// Standardize reorders p into the standard order without changing its outcome.
// Corrections that precede an entanglement are pushed through it, and corrections that precede a measurement of their node are absorbed into its domains.
// The corrections left are appended, Z before X.
func (p *Pattern) Standardize() {
	var ns, es, ms []Command
	xs, zs := newCorrections(), newCorrections()
	for _, c := range p.cmds {
		switch c.Kind {
		case N:
			ns = append(ns, c)
		case E:
			// E_ab X_a = X_a Z_b E_ab.
			for i, a := range c.Nodes {
				if d, ok := xs.domains[a]; ok {
					zs.add(c.Nodes[1-i], d)
				}
			}
			es = append(es, c)
		case M:
			node := c.Nodes[0]
			if d, ok := xs.pop(node); ok {
				c.SDomain = xor(c.SDomain, d)
			}
			if d, ok := zs.pop(node); ok {
				c.TDomain = xor(c.TDomain, d)
			}
			ms = append(ms, c)
		case X:
			xs.add(c.Nodes[0], c.Domain)
		case Z:
			zs.add(c.Nodes[0], c.Domain)
		}
	}

	cmds := slices.Concat(ns, es, ms)
	cmds = append(cmds, zs.commands(Z)...)
	cmds = append(cmds, xs.commands(X)...)
	p.cmds = cmds
}

// corrections holds pending corrections by node, in the order nodes were first corrected.
type corrections struct {
	order   []int
	domains map[int][]int
}

func newCorrections() *corrections {
	return &corrections{domains: make(map[int][]int)}
}

func (c *corrections) add(node int, domain []int) {
	prev, ok := c.domains[node]
	if !ok {
		c.order = append(c.order, node)
	}
	c.domains[node] = xor(prev, domain)
}

func (c *corrections) pop(node int) ([]int, bool) {
	d, ok := c.domains[node]
	if !ok {
		return nil, false
	}
	delete(c.domains, node)
	c.order = slices.DeleteFunc(c.order, func(n int) bool { return n == node })
	return d, true
}

func (c *corrections) commands(kind Kind) []Command {
	var cmds []Command
	for _, n := range c.order {
		if d := c.domains[n]; len(d) > 0 {
			cmds = append(cmds, Command{Kind: kind, Nodes: []int{n}, Domain: d})
		}
	}
	return cmds
}

// xor returns the symmetric difference of a and b in sorted order.
func xor(a, b []int) []int {
	count := make(map[int]int)
	for _, n := range slices.Concat(a, b) {
		count[n]++
	}
	d := make([]int, 0, len(count))
	for n, c := range count {
		if c%2 == 1 {
			d = append(d, n)
		}
	}
	slices.Sort(d)
	return d
}

// Result is the outcome of running a pattern.
type Result struct {
	// Outputs are the unmeasured nodes, and Amplitudes their state with Outputs[0] as the most significant qubit.
	Outputs    []int
	Amplitudes []complex64
	// Outcomes maps each measured node to its outcome.
	Outcomes map[int]int
}

// State returns the output state of r.
func (r *Result) State() (*state.Vector, error) {
	v, err := state.FromAmplitudes([][]complex64{r.Amplitudes}, len(r.Outputs))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return v, nil
}

// Run executes p on input, the amplitudes of the input nodes with Inputs()[0] as the most significant qubit.
// A nil input is |+> on every input node.
func (p *Pattern) Run(input []complex64, rng *rand.Rand) (*Result, error) {
	nin := len(p.inputs)
	if input == nil {
		input = make([]complex64, 1<<nin)
		for i := range input {
			input[i] = complex(float32(math.Pow(2, -float64(nin)/2)), 0)
		}
	}
	if len(input) != 1<<nin {
		return nil, qcirc.Errorf(qcirc.Evolution, qcirc.ShapeMismatch, "%d amplitudes, %d inputs", len(input), nin)
	}

	r := &runner{alive: slices.Clone(p.inputs), amps: slices.Clone(input), outcomes: make(map[int]int), rng: rng}
	for _, c := range p.cmds {
		if err := r.run(c); err != nil {
			return nil, errors.Wrap(err, c.String())
		}
	}

	res := &Result{Outputs: p.Outputs(), Outcomes: r.outcomes}
	// Bring the unmeasured nodes into preparation order.
	perm := make([]int, 0, len(res.Outputs))
	for _, n := range res.Outputs {
		perm = append(perm, slices.Index(r.alive, n))
	}
	res.Amplitudes = permute(r.amps, perm)
	return res, nil
}

type runner struct {
	// alive lists the nodes of the qubits of amps, alive[0] being the most significant.
	alive    []int
	amps     []complex64
	outcomes map[int]int
	rng      *rand.Rand
}

var (
	pauliX = tensor.T2([][]complex64{{0, 1}, {1, 0}})
	pauliZ = tensor.T2([][]complex64{{1, 0}, {0, -1}})
)

func (r *runner) run(c Command) error {
	switch c.Kind {
	case N:
		plus := complex64(complex(1/math.Sqrt2, 0))
		amps := make([]complex64, 0, 2*len(r.amps))
		for _, a := range r.amps {
			amps = append(amps, a*plus, a*plus)
		}
		r.amps = amps
		r.alive = append(r.alive, c.Nodes[0])
		return nil
	case E:
		return r.apply(pauliZ, c.Nodes[1], c.Nodes[0])
	case M:
		return r.measure(c)
	case X:
		if r.parity(c.Domain) == 0 {
			return nil
		}
		return r.apply(pauliX, c.Nodes[0])
	case Z:
		if r.parity(c.Domain) == 0 {
			return nil
		}
		return r.apply(pauliZ, c.Nodes[0])
	default:
		return errors.Errorf("%s", c.Kind)
	}
}

func (r *runner) apply(m *tensor.Dense, node int, controls ...int) error {
	wire, err := r.position(node)
	if err != nil {
		return errors.Wrap(err, "")
	}
	var ctrl []int
	for _, n := range controls {
		pos, err := r.position(n)
		if err != nil {
			return errors.Wrap(err, "")
		}
		ctrl = append(ctrl, pos)
	}

	x, err := evolve.FromAmplitudes([][]complex64{r.amps}, 2, len(r.alive))
	if err != nil {
		return errors.Wrap(err, "")
	}
	y, err := evolve.State(x, m, []int{wire}, ctrl, 2)
	if err != nil {
		return errors.Wrap(err, "")
	}
	r.amps = evolve.Flatten(y)[0]
	return nil
}

func (r *runner) measure(c Command) error {
	node := c.Nodes[0]
	angle := c.Angle
	if r.parity(c.SDomain) == 1 {
		angle = -angle
	}
	angle += math.Pi * float64(r.parity(c.TDomain))
	if err := r.apply(basis(c.Plane, angle), node); err != nil {
		return errors.Wrap(err, "")
	}

	pos, _ := r.position(node)
	n := len(r.alive)
	probs := make([]float64, len(r.amps))
	for i, a := range r.amps {
		probs[i] = float64(real(a)*real(a) + imag(a)*imag(a))
	}
	counts, err := measure.Sample(measure.Marginal(probs, n, []int{pos}), []string{"0", "1"}, 1, r.rng)
	if err != nil {
		return errors.Wrap(err, "")
	}
	var outcome int
	if counts["1"] > 0 {
		outcome = 1
	}

	// Project onto the outcome and drop the qubit.
	amps := make([]complex64, 0, len(r.amps)/2)
	var norm float64
	for i, a := range r.amps {
		if (i>>(n-1-pos))&1 != outcome {
			continue
		}
		amps = append(amps, a)
		norm += probs[i]
	}
	scale := complex64(complex(1/math.Sqrt(norm), 0))
	for i := range amps {
		amps[i] *= scale
	}
	r.amps = amps
	r.alive = slices.Delete(r.alive, pos, pos+1)
	r.outcomes[node] = outcome
	return nil
}

func (r *runner) position(node int) (int, error) {
	pos := slices.Index(r.alive, node)
	if pos < 0 {
		return -1, qcirc.Errorf(qcirc.Evolution, qcirc.AxisRange, "node %d", node)
	}
	return pos, nil
}

func (r *runner) parity(domain []int) int {
	var s int
	for _, n := range domain {
		s ^= r.outcomes[n]
	}
	return s
}

// basis returns the matrix whose rows are the bras of the outcomes 0 and 1 of a measurement in plane at angle.
// Outcome 0 of XY is (|0> + e^{i angle}|1>)/sqrt(2), of XZ cos(angle/2)|0> + sin(angle/2)|1>, and of YZ cos(angle/2)|0> + i sin(angle/2)|1>.
func basis(plane Plane, angle float64) *tensor.Dense {
	c, s := math.Cos(angle/2), math.Sin(angle/2)
	var m [][]complex128
	switch plane {
	case XY:
		e := cmplx.Exp(complex(0, -angle)) / math.Sqrt2
		h := complex(1/math.Sqrt2, 0)
		m = [][]complex128{{h, e}, {h, -e}}
	case XZ:
		m = [][]complex128{{complex(c, 0), complex(s, 0)}, {complex(s, 0), complex(-c, 0)}}
	case YZ:
		m = [][]complex128{{complex(c, 0), complex(0, -s)}, {complex(s, 0), complex(0, c)}}
	}
	m64 := make([][]complex64, len(m))
	for i, row := range m {
		m64[i] = make([]complex64, len(row))
		for j, v := range row {
			m64[i][j] = complex64(v)
		}
	}
	return tensor.T2(m64)
}

// permute reorders the qubits of amps so that qubit i of the result is qubit perm[i] of amps.
func permute(amps []complex64, perm []int) []complex64 {
	n := len(perm)
	out := make([]complex64, len(amps))
	for i := range out {
		var src int
		for j, p := range perm {
			bit := (i >> (n - 1 - j)) & 1
			src |= bit << (n - 1 - p)
		}
		out[i] = amps[src]
	}
	return out
}
