// Package gaussian simulates Gaussian states of qumodes by their covariance matrix and mean vector.
//
// Quadratures are in xxpp order, (x_0, ..., x_{n-1}, p_0, ..., p_{n-1}), with hbar = 2 so that the vacuum covariance is the identity.
package gaussian

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/gate"
	"github.com/fumin/qcirc/index"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	Hbar = 2

	// HomodyneEps is the squeezing of the homodyne measurement.
	HomodyneEps = 2e-4
)

// State is a Gaussian state of n modes.
type State struct {
	n    int
	cov  *mat.Dense
	mean *mat.VecDense
}

// Vacuum returns the vacuum of n modes.
func Vacuum(n int) (*State, error) {
	if n < 1 {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%d modes", n)
	}
	return &State{n: n, cov: identity(2 * n), mean: mat.NewVecDense(2*n, nil)}, nil
}

func (s *State) NumModes() int { return s.n }

// Cov returns a copy of the covariance matrix.
func (s *State) Cov() *mat.Dense { return mat.DenseCopyOf(s.cov) }

// Mean returns a copy of the mean vector.
func (s *State) Mean() []float64 {
	return slices.Clone(s.mean.RawVector().Data)
}

// PhotonNumber returns the mean photon number of mode wire.
func (s *State) PhotonNumber(wire int) float64 {
	x, p := wire, wire+s.n
	mx, mp := s.mean.AtVec(x), s.mean.AtVec(p)
	return (s.cov.At(x, x)+s.cov.At(p, p)+mx*mx+mp*mp)/(2*Hbar) - 0.5
}

// Apply returns the state after g.
func (s *State) Apply(g *Gate) (*State, error) {
	if g.nmode != s.n {
		return nil, qcirc.Errorf(qcirc.Evolution, qcirc.ShapeMismatch, "%s on %d modes, state of %d modes", g, g.nmode, s.n)
	}
	sym := g.Symplectic()

	var sc, cov mat.Dense
	sc.Mul(sym, s.cov)
	cov.Mul(&sc, sym.T())

	var mean mat.VecDense
	mean.MulVec(sym, s.mean)
	if d := g.Displacement(); d != nil {
		mean.AddVec(&mean, mat.NewVecDense(len(d), d))
	}
	return &State{n: s.n, cov: &cov, mean: &mean}, nil
}

// Homodyne measures the quadrature cos(phi) x + sin(phi) p of wire.
// It returns the outcome and the state of the other modes conditioned on it, in which wire is reset to the vacuum.
func (s *State) Homodyne(wire int, phi float64, rng *rand.Rand) (float64, *State, error) {
	if wire < 0 || wire >= s.n {
		return 0, nil, qcirc.Errorf(qcirc.Evolution, qcirc.AxisRange, "wire %d, %d modes", wire, s.n)
	}
	r, err := PhaseShift(s.n, wire, gate.NewParam(-phi, false))
	if err != nil {
		return 0, nil, errors.Wrap(err, "")
	}
	rotated, err := s.Apply(r)
	if err != nil {
		return 0, nil, errors.Wrap(err, "")
	}
	covM := mat.NewDense(2, 2, []float64{HomodyneEps * HomodyneEps, 0, 0, 1 / (HomodyneEps * HomodyneEps)})
	samples, post, err := rotated.generaldyne([]int{wire}, covM, rng)
	if err != nil {
		return 0, nil, errors.Wrap(err, "")
	}
	return samples[0], post, nil
}

// generaldyne measures wires with measurement covariance covM, see Eq. (5.143) and (5.144) of Quantum Continuous Variables, Alessio Serafini.
func (s *State) generaldyne(wires []int, covM *mat.Dense, rng *rand.Rand) ([]float64, *State, error) {
	idx := make([]int, 0, 2*len(wires))
	idx = append(idx, wires...)
	for _, w := range wires {
		idx = append(idx, w+s.n)
	}
	var rest []int
	for i := range 2 * s.n {
		if !slices.Contains(idx, i) {
			rest = append(rest, i)
		}
	}

	covB := submatrix(s.cov, idx, idx)
	meanB := subvector(s.mean, idx)

	var covT mat.Dense
	covT.Add(covB, covM)
	sample, err := sampleNormal(meanB, &covT, rng)
	if err != nil {
		return nil, nil, errors.Wrap(err, "")
	}

	cov := identity(2 * s.n)
	mean := mat.NewVecDense(2*s.n, nil)
	if len(rest) > 0 {
		covAB := submatrix(s.cov, rest, idx)

		// covA - covAB covT^-1 covAB^T
		var solved mat.Dense
		if err := solved.Solve(&covT, covAB.T()); err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		var update, covA mat.Dense
		update.Mul(covAB, &solved)
		covA.Sub(submatrix(s.cov, rest, rest), &update)

		// meanA + covAB covT^-1 (sample - meanB)
		var diff, solvedDiff, meanA mat.VecDense
		diff.SubVec(mat.NewVecDense(len(sample), sample), meanB)
		if err := solvedDiff.SolveVec(&covT, &diff); err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		meanA.MulVec(covAB, &solvedDiff)
		meanA.AddVec(&meanA, subvector(s.mean, rest))

		for i, ri := range rest {
			for j, rj := range rest {
				cov.Set(ri, rj, covA.At(i, j))
			}
			mean.SetVec(ri, meanA.AtVec(i))
		}
	}
	return sample, &State{n: s.n, cov: cov, mean: mean}, nil
}

// sampleNormal draws from the multivariate normal distribution N(mean, cov) through the Cholesky factor of cov.
func sampleNormal(mean *mat.VecDense, cov *mat.Dense, rng *rand.Rand) ([]float64, error) {
	n := mean.Len()
	sym := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (cov.At(i, j)+cov.At(j, i))/2)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, errors.Errorf("covariance not positive definite %v", mat.Formatted(cov))
	}
	var l mat.TriDense
	chol.LTo(&l)

	z := mat.NewVecDense(n, nil)
	for i := range n {
		z.SetVec(i, rng.NormFloat64())
	}
	var x mat.VecDense
	x.MulVec(&l, z)
	x.AddVec(&x, mean)
	return x.RawVector().Data, nil
}

// Gate is a Gaussian operation on wires of nmode modes.
type Gate struct {
	name         string
	nmode        int
	wires        []int
	params       []*gate.Param
	symplectic   func(p []float64) *mat.Dense
	displacement func(p []float64) []float64
}

func newGate(name string, nmode int, wires []int, params []*gate.Param, symplectic func([]float64) *mat.Dense, displacement func([]float64) []float64) (*Gate, error) {
	if err := index.Validate(nmode, wires, nil); err != nil {
		return nil, errors.Wrap(err, name)
	}
	return &Gate{name: name, nmode: nmode, wires: slices.Clone(wires), params: params, symplectic: symplectic, displacement: displacement}, nil
}

// PhaseShift rotates the quadratures of wire by theta.
func PhaseShift(nmode, wire int, theta *gate.Param) (*Gate, error) {
	return newGate("PS", nmode, []int{wire}, []*gate.Param{theta}, func(p []float64) *mat.Dense {
		c, s := math.Cos(p[0]), math.Sin(p[0])
		return mat.NewDense(2, 2, []float64{c, -s, s, c})
	}, nil)
}

// BeamSplitter mixes two modes, acting on the creation operators by [[cos theta, -exp(-i phi) sin theta], [exp(i phi) sin theta, cos theta]].
func BeamSplitter(nmode, wire0, wire1 int, theta, phi *gate.Param) (*Gate, error) {
	return newGate("BS", nmode, []int{wire0, wire1}, []*gate.Param{theta, phi}, func(p []float64) *mat.Dense {
		c, s := math.Cos(p[0]), math.Sin(p[0])
		cp, sp := math.Cos(p[1]), math.Sin(p[1])
		// Real and imaginary parts of the unitary.
		re := []float64{c, -cp * s, cp * s, c}
		im := []float64{0, sp * s, sp * s, 0}
		return passive(re, im, 2)
	}, nil)
}

// Squeeze squeezes wire by r along the angle phi.
func Squeeze(nmode, wire int, r, phi *gate.Param) (*Gate, error) {
	return newGate("S", nmode, []int{wire}, []*gate.Param{r, phi}, func(p []float64) *mat.Dense {
		ch, sh := math.Cosh(p[0]), math.Sinh(p[0])
		c, s := math.Cos(p[1]), math.Sin(p[1])
		return mat.NewDense(2, 2, []float64{
			ch - c*sh, -s * sh,
			-s * sh, ch + c*sh,
		})
	}, nil)
}

// Displace displaces wire by the complex amplitude r exp(i phi).
func Displace(nmode, wire int, r, phi *gate.Param) (*Gate, error) {
	g, err := newGate("D", nmode, []int{wire}, []*gate.Param{r, phi}, func([]float64) *mat.Dense {
		return identity(2)
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	g.displacement = func(p []float64) []float64 {
		d := make([]float64, 2*nmode)
		d[wire] = math.Sqrt(2*Hbar) * p[0] * math.Cos(p[1])
		d[wire+nmode] = math.Sqrt(2*Hbar) * p[0] * math.Sin(p[1])
		return d
	}
	return g, nil
}

func (g *Gate) Name() string          { return g.name }
func (g *Gate) Wires() []int          { return slices.Clone(g.wires) }
func (g *Gate) Params() []*gate.Param { return slices.Clone(g.params) }

func (g *Gate) values() []float64 {
	values := make([]float64, 0, len(g.params))
	for _, p := range g.params {
		values = append(values, p.Value())
	}
	return values
}

// Symplectic returns the symplectic matrix of g on all modes.
func (g *Gate) Symplectic() *mat.Dense {
	local := g.symplectic(g.values())
	k := len(g.wires)
	idx := make([]int, 0, 2*k)
	idx = append(idx, g.wires...)
	for _, w := range g.wires {
		idx = append(idx, w+g.nmode)
	}

	s := identity(2 * g.nmode)
	for i, ri := range idx {
		for j, rj := range idx {
			s.Set(ri, rj, local.At(i, j))
		}
	}
	return s
}

// Displacement returns the displacement of the mean by g, or nil.
func (g *Gate) Displacement() []float64 {
	if g.displacement == nil {
		return nil
	}
	return g.displacement(g.values())
}

func (g *Gate) String() string {
	return fmt.Sprintf("%s%v%v", g.name, g.wires, g.params)
}

// Circuit is an ordered sequence of Gaussian gates.
type Circuit struct {
	nmode int
	ops   []*Gate
}

// NewCircuit returns an empty circuit on nmode modes.
func NewCircuit(nmode int) (*Circuit, error) {
	if nmode < 1 {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%d modes", nmode)
	}
	return &Circuit{nmode: nmode}, nil
}

// Add appends op to c.
func (c *Circuit) Add(op *Gate) error {
	if op.nmode != c.nmode {
		return qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%s on %d modes, circuit of %d modes", op, op.nmode, c.nmode)
	}
	c.ops = append(c.ops, op)
	return nil
}

// Forward applies c to s.
func (c *Circuit) Forward(s *State) (*State, error) {
	for _, op := range c.ops {
		var err error
		if s, err = s.Apply(op); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	return s, nil
}

// Symplectic returns the symplectic matrix of c.
func (c *Circuit) Symplectic() *mat.Dense {
	s := identity(2 * c.nmode)
	for _, op := range c.ops {
		var next mat.Dense
		next.Mul(op.Symplectic(), s)
		s = &next
	}
	return s
}

// passive returns the symplectic matrix [[re, -im], [im, re]] of the k x k unitary re + i im.
func passive(re, im []float64, k int) *mat.Dense {
	s := mat.NewDense(2*k, 2*k, nil)
	for i := range k {
		for j := range k {
			s.Set(i, j, re[i*k+j])
			s.Set(i, j+k, -im[i*k+j])
			s.Set(i+k, j, im[i*k+j])
			s.Set(i+k, j+k, re[i*k+j])
		}
	}
	return s
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := range n {
		m.Set(i, i, 1)
	}
	return m
}

func submatrix(a *mat.Dense, rows, cols []int) *mat.Dense {
	s := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			s.Set(i, j, a.At(r, c))
		}
	}
	return s
}

func subvector(v *mat.VecDense, idx []int) *mat.VecDense {
	s := mat.NewVecDense(len(idx), nil)
	for i, j := range idx {
		s.SetVec(i, v.AtVec(j))
	}
	return s
}
