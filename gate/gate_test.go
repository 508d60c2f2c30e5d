package gate

import (
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/mat"
	"github.com/pkg/errors"
)

func TestLocal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		gate     func() (*Gate, error)
		sites    []int
		expected [][]complex64
	}{
		{
			gate:  func() (*Gate, error) { return CNOT(3, 0, 2) },
			sites: []int{0, 2},
			expected: [][]complex64{
				{1, 0, 0, 0},
				{0, 1, 0, 0},
				{0, 0, 0, 1},
				{0, 0, 1, 0},
			},
		},
		// The control is the least significant site.
		{
			gate:  func() (*Gate, error) { return CNOT(3, 2, 0) },
			sites: []int{0, 2},
			expected: [][]complex64{
				{1, 0, 0, 0},
				{0, 0, 0, 1},
				{0, 0, 1, 0},
				{0, 1, 0, 0},
			},
		},
		{
			gate:     func() (*Gate, error) { return Z(4, 3) },
			sites:    []int{3},
			expected: mat.PauliZ,
		},
	}
	for i, test := range tests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			t.Parallel()
			g, err := test.gate()
			if err != nil {
				t.Fatalf("%+v", err)
			}
			u, sites, err := g.Local()
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if fmt.Sprint(sites) != fmt.Sprint(test.sites) {
				t.Fatalf("%v, expected %v", sites, test.sites)
			}
			if d := maxDiff(u, test.expected); d > 1e-6 {
				t.Fatalf("%v, expected %v", u, test.expected)
			}
		})
	}
}

func TestUnitary(t *testing.T) {
	t.Parallel()
	theta := NewParam(0.7, true)
	constructors := []func() (*Gate, error){
		func() (*Gate, error) { return H(1, 0) },
		func() (*Gate, error) { return Y(1, 0) },
		func() (*Gate, error) { return S(1, 0) },
		func() (*Gate, error) { return T(1, 0) },
		func() (*Gate, error) { return Rx(1, 0, theta) },
		func() (*Gate, error) { return Ry(1, 0, theta) },
		func() (*Gate, error) { return Rz(1, 0, theta) },
		func() (*Gate, error) { return Phase(1, 0, theta) },
		func() (*Gate, error) { return Swap(2, 0, 1) },
	}
	for _, c := range constructors {
		g, err := c()
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if !mat.IsUnitary(g.Matrix(), 1e-6) {
			t.Fatalf("%s %v", g, g.Matrix())
		}
	}
}

func TestRotations(t *testing.T) {
	t.Parallel()
	theta := NewParam(math.Pi, false)
	rx, err := Rx(1, 0, theta)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	expected := [][]complex64{{0, -1i}, {-1i, 0}}
	if d := maxDiff(rx.Matrix(), expected); d > 1e-6 {
		t.Fatalf("%v, expected %v", rx.Matrix(), expected)
	}

	rz, err := Rz(1, 0, NewParam(math.Pi/2, false))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	phase := complex64(cmplx.Exp(complex(0, -math.Pi/4)))
	expected = [][]complex64{{phase, 0}, {0, 1 / phase}}
	if d := maxDiff(rz.Matrix(), expected); d > 1e-6 {
		t.Fatalf("%v, expected %v", rz.Matrix(), expected)
	}
}

func TestSharedParam(t *testing.T) {
	t.Parallel()
	theta := NewParam(0, true)
	a, err := Ry(3, 0, theta)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	b, err := a.On(3, []int{2}, []int{1})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if fmt.Sprint(a.Wires(), b.Wires(), b.Controls()) != "[0] [2] [1]" {
		t.Fatalf("%v %v %v", a.Wires(), b.Wires(), b.Controls())
	}

	theta.Set(math.Pi)
	expected := [][]complex64{{0, -1}, {1, 0}}
	for _, g := range []*Gate{a, b} {
		if d := maxDiff(g.Matrix(), expected); d > 1e-6 {
			t.Fatalf("%s %v, expected %v", g, g.Matrix(), expected)
		}
	}
	if !b.Trainable() {
		t.Fatalf("not trainable")
	}
}

func TestIdentity(t *testing.T) {
	t.Parallel()
	u := [][]complex64{{0, 1}, {1, 0}}
	tests := []struct {
		gate     func() (*Gate, error)
		expected string
	}{
		{gate: func() (*Gate, error) { return Unitary(2, u, []int{0}) }, expected: "uany_"},
		{gate: func() (*Gate, error) { return Unitary(3, u, []int{0}, 1) }, expected: "cuany_"},
		{gate: func() (*Gate, error) { return Unitary(3, u, []int{0}, 2, 1) }, expected: "ccuany_"},
		{gate: func() (*Gate, error) { return Unitary(5, u, []int{0}, 1, 2, 3) }, expected: "c3uany_"},
		{gate: func() (*Gate, error) { return H(2, 1) }, expected: "h_"},
		{gate: func() (*Gate, error) { return Swap(4, 0, 3, 1, 2) }, expected: "ccswap2_"},
		{gate: func() (*Gate, error) { return Unitary(3, mat.Kron(u, u).Dense(), []int{2, 0}) }, expected: "uany2_"},
	}
	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			t.Parallel()
			g, err := test.gate()
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if id := g.Identity(); id != test.expected {
				t.Fatalf("%s, expected %s", id, test.expected)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		gate     func() (*Gate, error)
		expected error
	}{
		{gate: func() (*Gate, error) { return X(2, 2) }, expected: qcirc.ErrAxisRange},
		{gate: func() (*Gate, error) { return X(2, 1, 1) }, expected: qcirc.ErrAxisOverlap},
		{gate: func() (*Gate, error) { return Toffoli(3, 0, 0, 1) }, expected: qcirc.ErrAxisDuplicate},
		{gate: func() (*Gate, error) { return Unitary(2, [][]complex64{{1, 1}, {0, 1}}, []int{0}) }, expected: qcirc.ErrNotUnitary},
		{gate: func() (*Gate, error) { return Unitary(2, mat.PauliX, []int{0, 1}) }, expected: qcirc.ErrShapeMismatch},
		{
			gate: func() (*Gate, error) {
				g, err := Swap(3, 0, 1)
				if err != nil {
					return nil, err
				}
				return g.On(3, []int{2}, nil)
			},
			expected: qcirc.ErrShapeMismatch,
		},
	}
	for i, test := range tests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			t.Parallel()
			_, err := test.gate()
			if !errors.Is(err, test.expected) {
				t.Fatalf("%+v, expected %v", err, test.expected)
			}
			if stage, _ := qcirc.StageOf(err); stage != qcirc.Construction {
				t.Fatalf("%v", stage)
			}
		})
	}
}

func maxDiff(a, b [][]complex64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var d float64
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return math.Inf(1)
		}
		for j := range a[i] {
			d = max(d, cmplx.Abs(complex128(a[i][j]-b[i][j])))
		}
	}
	return d
}
