package state

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/gate"
	"github.com/pkg/errors"
)

func TestScenarios(t *testing.T) {
	t.Parallel()
	s := float32(1 / math.Sqrt2)
	tests := []struct {
		amps     []complex64
		gate     func() (*gate.Gate, error)
		expected []complex64
	}{
		{
			amps:     []complex64{1, 0, 0, 0},
			gate:     func() (*gate.Gate, error) { return gate.H(2, 0) },
			expected: []complex64{complex(s, 0), 0, complex(s, 0), 0},
		},
		{
			amps:     []complex64{1, 0, 0, 0},
			gate:     func() (*gate.Gate, error) { return gate.CNOT(2, 0, 1) },
			expected: []complex64{1, 0, 0, 0},
		},
		{
			amps:     []complex64{0, 0, 1, 0},
			gate:     func() (*gate.Gate, error) { return gate.CNOT(2, 0, 1) },
			expected: []complex64{0, 0, 0, 1},
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.amps), func(t *testing.T) {
			t.Parallel()
			g, err := test.gate()
			if err != nil {
				t.Fatalf("%+v", err)
			}
			v, err := FromAmplitudes([][]complex64{test.amps}, 2)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			m, err := MPSFromVector(v, 4)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			for _, st := range []State{v, m} {
				out, err := Apply(st, g)
				if err != nil {
					t.Fatalf("%+v", err)
				}
				if d := maxDiff(Dense(out)[0], test.expected); d > 1e-5 {
					t.Fatalf("%T %v, expected %v", st, Dense(out)[0], test.expected)
				}
			}
		})
	}
}

func TestRepresentationsAgree(t *testing.T) {
	t.Parallel()
	const n = 4
	rng := rand.New(rand.NewPCG(0, 0))
	v, err := FromAmplitudes([][]complex64{randAmps(rng, n), randAmps(rng, n)}, n)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var states []State
	states = append(states, v, Density(v))
	m, err := MPSFromVector(v, 1<<(n/2))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	states = append(states, m)

	theta := gate.NewParam(0.3, true)
	ops := []func() (*gate.Gate, error){
		func() (*gate.Gate, error) { return gate.H(n, 0) },
		func() (*gate.Gate, error) { return gate.CNOT(n, 0, 3) },
		func() (*gate.Gate, error) { return gate.Ry(n, 1, theta, 3) },
		func() (*gate.Gate, error) { return gate.Swap(n, 2, 0) },
		func() (*gate.Gate, error) { return gate.Toffoli(n, 3, 1, 2) },
		func() (*gate.Gate, error) { return gate.Rz(n, 2, theta) },
	}
	for _, op := range ops {
		g, err := op()
		if err != nil {
			t.Fatalf("%+v", err)
		}
		for i, st := range states {
			if states[i], err = Apply(st, g); err != nil {
				t.Fatalf("%+v", err)
			}
		}
	}

	vec, rho, chain := Dense(states[0]), Dense(states[1]), Dense(states[2])
	for b, amps := range vec {
		if d := maxDiff(chain[b], amps); d > 1e-4 {
			t.Fatalf("batch %d %v, expected %v", b, chain[b], amps)
		}
		dim := len(amps)
		for i := range dim {
			for j := range dim {
				expected := amps[i] * complex(real(amps[j]), -imag(amps[j]))
				if d := cmplx.Abs(complex128(rho[b][i*dim+j] - expected)); d > 1e-4 {
					t.Fatalf("batch %d rho[%d][%d] %v, expected %v", b, i, j, rho[b][i*dim+j], expected)
				}
			}
		}
	}
	for _, st := range states {
		for _, norm := range Norm(st) {
			if math.Abs(norm-1) > 1e-4 {
				t.Fatalf("%T %f", st, norm)
			}
		}
	}
}

func TestMPSMatchesVector(t *testing.T) {
	t.Parallel()
	const n = 6
	rng := rand.New(rand.NewPCG(11, 12))
	for trial := range 10 {
		v, err := FromAmplitudes([][]complex64{randAmps(rng, n)}, n)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		m, err := MPSFromVector(v, 1<<(n/2))
		if err != nil {
			t.Fatalf("%+v", err)
		}

		var vs, ms State = v, m
		for range 12 {
			// Wires and controls in random order, not necessarily adjacent.
			perm := rng.Perm(n)
			nw, nc := 1+rng.IntN(2), rng.IntN(3)
			g, err := gate.Unitary(n, randUnitary(rng, 1<<nw), perm[:nw], perm[nw:nw+nc]...)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if vs, err = Apply(vs, g); err != nil {
				t.Fatalf("%+v", err)
			}
			if ms, err = Apply(ms, g); err != nil {
				t.Fatalf("%+v", err)
			}
		}

		if d := maxDiff(Dense(ms)[0], Dense(vs)[0]); d > 1e-3 {
			t.Fatalf("trial %d: %f", trial, d)
		}
	}
}

func TestApplyLeavesInput(t *testing.T) {
	t.Parallel()
	m, err := ZerosMPS(3, 2, 4)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	before := Dense(m)
	g, err := gate.H(3, 1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	out, err := Apply(m, g)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if d := maxDiff(Dense(m)[1], before[1]); d != 0 {
		t.Fatalf("%v, expected %v", Dense(m)[1], before[1])
	}
	if out.BatchSize() != 2 {
		t.Fatalf("%d", out.BatchSize())
	}
	probs := Probabilities(out)[1]
	if math.Abs(probs[0]-0.5) > 1e-5 || math.Abs(probs[2]-0.5) > 1e-5 {
		t.Fatalf("%v", probs)
	}
}

func TestExpectation(t *testing.T) {
	t.Parallel()
	s := complex(float32(1/math.Sqrt2), 0)
	bell, err := FromAmplitudes([][]complex64{{s, 0, 0, s}}, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	chain, err := MPSFromVector(bell, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	tests := []struct {
		ps       string
		expected float64
	}{
		{ps: "ZZ", expected: 1},
		{ps: "XX", expected: 1},
		{ps: "YY", expected: -1},
		{ps: "ZI", expected: 0},
		{ps: "IX", expected: 0},
	}
	for _, test := range tests {
		t.Run(test.ps, func(t *testing.T) {
			t.Parallel()
			for _, st := range []State{bell, Density(bell), chain} {
				es, err := Expectation(st, test.ps)
				if err != nil {
					t.Fatalf("%+v", err)
				}
				if math.Abs(es[0]-test.expected) > 1e-5 {
					t.Fatalf("%T %f, expected %f", st, es[0], test.expected)
				}
			}
		})
	}
}

func TestEnergy(t *testing.T) {
	t.Parallel()
	s := complex(float32(1/math.Sqrt2), 0)
	bell, err := FromAmplitudes([][]complex64{{s, 0, 0, s}, {0, 1, 0, 0}}, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	chain, err := MPSFromVector(bell, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	terms := []Term{{Coef: 0.5, Pauli: "ZZ"}, {Coef: -2, Pauli: "XX"}, {Coef: 1, Pauli: "ZI"}}
	// The second batch item is |01>.
	expected := []float64{0.5 - 2, -0.5 + 1}
	for _, st := range []State{bell, Density(bell), chain} {
		es, err := Energy(st, terms)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		for i, e := range es {
			if math.Abs(e-expected[i]) > 1e-5 {
				t.Fatalf("%T %d: %f, expected %f", st, i, e, expected[i])
			}
		}
	}

	if _, err := Energy(bell, []Term{{Coef: 1, Pauli: "Z"}}); !errors.Is(err, qcirc.ErrShapeMismatch) {
		t.Fatalf("%+v", err)
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()
	v, err := Zeros(3)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	g, err := gate.X(2, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if _, err := Apply(v, g); !errors.Is(err, qcirc.ErrShapeMismatch) {
		t.Fatalf("%+v", err)
	}
	if _, err := Expectation(v, "ZZ"); !errors.Is(err, qcirc.ErrShapeMismatch) {
		t.Fatalf("%+v", err)
	}
	if _, err := NewDensity([][][]complex64{{{1, 0}}}, 1); !errors.Is(err, qcirc.ErrShapeMismatch) {
		t.Fatalf("%+v", err)
	}
	if _, err := FromAmplitudes([][]complex64{{1, 0, 0}}, 2); !errors.Is(err, qcirc.ErrShapeMismatch) {
		t.Fatalf("%+v", err)
	}
}

func randAmps(rng *rand.Rand, n int) []complex64 {
	amps := make([]complex64, 1<<n)
	var norm2 float64
	for i := range amps {
		amps[i] = complex(float32(rng.NormFloat64()), float32(rng.NormFloat64()))
		norm2 += sqAbs(amps[i])
	}
	norm := complex(float32(math.Sqrt(norm2)), 0)
	for i := range amps {
		amps[i] /= norm
	}
	return amps
}

func maxDiff(a, b []complex64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var d float64
	for i := range a {
		d = max(d, cmplx.Abs(complex128(a[i]-b[i])))
	}
	return d
}

func randUnitary(rng *rand.Rand, dim int) [][]complex64 {
	cols := make([][]complex128, 0, dim)
	for range dim {
		c := make([]complex128, dim)
		for i := range c {
			c[i] = complex(rng.NormFloat64(), rng.NormFloat64())
		}
		for _, q := range cols {
			qc := dot(q, c)
			for i := range c {
				c[i] -= qc * q[i]
			}
		}
		norm := complex(math.Sqrt(real(dot(c, c))), 0)
		for i := range c {
			c[i] /= norm
		}
		cols = append(cols, c)
	}

	u := make([][]complex64, 0, dim)
	for i := range dim {
		row := make([]complex64, 0, dim)
		for _, c := range cols {
			row = append(row, complex64(c[i]))
		}
		u = append(u, row)
	}
	return u
}

func dot(a, b []complex128) complex128 {
	var d complex128
	for i := range a {
		d += cmplx.Conj(a[i]) * b[i]
	}
	return d
}
