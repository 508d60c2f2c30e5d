package evolve

import (
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/mat"
	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

var (
	s      = complex(float32(1/math.Sqrt2), 0)
	hadam  = [][]complex64{{s, s}, {s, -s}}
	cnot   = [][]complex64{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 0, 1}, {0, 0, 1, 0}}
	random = [][]complex64{
		{0.5 + 0.5i, 0.5 - 0.5i},
		{0.5 - 0.5i, 0.5 + 0.5i},
	}
)

func TestState(t *testing.T) {
	t.Parallel()
	tests := []struct {
		amps     [][]complex64
		m        [][]complex64
		wires    []int
		controls []int
		expected [][]complex64
	}{
		// Hadamard on qubit 0 of |00>.
		{
			amps:     [][]complex64{{1, 0, 0, 0}},
			m:        hadam,
			wires:    []int{0},
			expected: [][]complex64{{s, 0, s, 0}},
		},
		// CNOT on |00> and |10>, as a batch.
		{
			amps:     [][]complex64{{1, 0, 0, 0}, {0, 0, 1, 0}},
			m:        mat.PauliX,
			wires:    []int{1},
			controls: []int{0},
			expected: [][]complex64{{1, 0, 0, 0}, {0, 0, 0, 1}},
		},
		// CNOT as a two qubit matrix, with the target first.
		{
			amps:     [][]complex64{{0, 1, 0, 0}},
			m:        cnot,
			wires:    []int{1, 0},
			expected: [][]complex64{{0, 0, 0, 1}},
		},
		// Toffoli on |110>.
		{
			amps:     [][]complex64{{0, 0, 0, 0, 0, 0, 1, 0}},
			m:        mat.PauliX,
			wires:    []int{2},
			controls: []int{0, 1},
			expected: [][]complex64{{0, 0, 0, 0, 0, 0, 0, 1}},
		},
		// Pauli X on the middle qubit.
		{
			amps:     [][]complex64{{1, 2, 3, 4, 5, 6, 7, 8}},
			m:        mat.PauliX,
			wires:    []int{1},
			expected: [][]complex64{{3, 4, 1, 2, 7, 8, 5, 6}},
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v %v", test.amps, test.wires, test.controls), func(t *testing.T) {
			t.Parallel()
			n := int(math.Log2(float64(len(test.amps[0]))))
			x, err := FromAmplitudes(test.amps, 2, n)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			y, err := State(x, tensor.T2(test.m), test.wires, test.controls, 2)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if d := maxDiff(Flatten(y), test.expected); d > 1e-6 {
				t.Fatalf("%v, expected %v", Flatten(y), test.expected)
			}
		})
	}
}

// TestControlSlices checks that components whose controls are not all on are unchanged.
func TestControlSlices(t *testing.T) {
	t.Parallel()
	amps := make([]complex64, 16)
	for i := range amps {
		amps[i] = complex(float32(i), float32(-i))
	}
	x, err := FromAmplitudes([][]complex64{amps}, 2, 4)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	y, err := State(x, tensor.T2(random), []int{2}, []int{3, 0}, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	got := Flatten(y)[0]
	for i := range amps {
		if i&0b1000 != 0 && i&0b0001 != 0 {
			continue
		}
		if got[i] != amps[i] {
			t.Fatalf("%d: %v, expected %v", i, got[i], amps[i])
		}
	}
	// The transformed slice has the same norm.
	var before, after float64
	for i := range amps {
		if i&0b1000 != 0 && i&0b0001 != 0 {
			before += sqAbs(amps[i])
			after += sqAbs(got[i])
		}
	}
	if math.Abs(before-after) > 1e-3 {
		t.Fatalf("%f %f", before, after)
	}
}

func TestQutrit(t *testing.T) {
	t.Parallel()
	shift := [][]complex64{
		{0, 0, 1},
		{1, 0, 0},
		{0, 1, 0},
	}
	// |1 2> -> |1 0>
	amps := make([]complex64, 9)
	amps[1*3+2] = 1
	x, err := FromAmplitudes([][]complex64{amps}, 3, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	y, err := State(x, tensor.T2(shift), []int{1}, nil, 3)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if got := Flatten(y)[0][1*3+0]; got != 1 {
		t.Fatalf("%v", Flatten(y))
	}
}

func TestDensityMatrix(t *testing.T) {
	t.Parallel()
	psi := []complex64{0.5, 0.5i, -0.5, 0.5}
	tests := []struct {
		m        [][]complex64
		wires    []int
		controls []int
	}{
		{m: random, wires: []int{1}},
		{m: hadam, wires: []int{0}, controls: []int{1}},
		{m: cnot, wires: []int{1, 0}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v %v", test.m, test.wires, test.controls), func(t *testing.T) {
			t.Parallel()
			// rho = |psi><psi|.
			rho := make([]complex64, 0, 16)
			for _, a := range psi {
				for _, b := range psi {
					rho = append(rho, a*conj(b))
				}
			}
			x, err := FromAmplitudes([][]complex64{rho}, 2, 4)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			y, err := DensityMatrix(x, tensor.T2(test.m), test.wires, test.controls, 2)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			// Compare with the density matrix of the evolved vector.
			v, err := FromAmplitudes([][]complex64{psi}, 2, 2)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			v, err = State(v, tensor.T2(test.m), test.wires, test.controls, 2)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			phi := Flatten(v)[0]
			expected := make([]complex64, 0, 16)
			for _, a := range phi {
				for _, b := range phi {
					expected = append(expected, a*conj(b))
				}
			}
			if d := maxDiff(Flatten(y), [][]complex64{expected}); d > 1e-5 {
				t.Fatalf("%v, expected %v", Flatten(y), expected)
			}
		})
	}
}

func TestNormPreserved(t *testing.T) {
	t.Parallel()
	amps := []complex64{0.1, 0.2i, 0.3, -0.4, 0.5, 0.1i, -0.2, 0.3i}
	var norm float64
	for _, a := range amps {
		norm += sqAbs(a)
	}
	x, err := FromAmplitudes([][]complex64{amps}, 2, 3)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for _, w := range [][]int{{0}, {2}, {1}} {
		x, err = State(x, tensor.T2(random), w, nil, 2)
		if err != nil {
			t.Fatalf("%+v", err)
		}
	}
	x, err = State(x, tensor.T2(cnot), []int{2, 0}, nil, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var after float64
	for _, a := range Flatten(x)[0] {
		after += sqAbs(a)
	}
	if math.Abs(norm-after) > 1e-5 {
		t.Fatalf("%f, expected %f", after, norm)
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()
	x, err := FromAmplitudes([][]complex64{{1, 0, 0, 0}}, 2, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	tests := []struct {
		m        [][]complex64
		wires    []int
		controls []int
		err      error
	}{
		{m: hadam, wires: []int{2}, err: qcirc.ErrAxisRange},
		{m: hadam, wires: []int{0}, controls: []int{0}, err: qcirc.ErrAxisOverlap},
		{m: cnot, wires: []int{0}, err: qcirc.ErrShapeMismatch},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v", test.wires, test.controls), func(t *testing.T) {
			t.Parallel()
			_, err := State(x, tensor.T2(test.m), test.wires, test.controls, 2)
			if !errors.Is(err, test.err) {
				t.Fatalf("%v, expected %v", err, test.err)
			}
		})
	}

	odd, err := FromAmplitudes([][]complex64{make([]complex64, 8)}, 2, 3)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if _, err := DensityMatrix(odd, tensor.T2(hadam), []int{0}, nil, 2); !errors.Is(err, qcirc.ErrShapeMismatch) {
		t.Fatalf("%v", err)
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

func sqAbs(a complex64) float64 {
	return real(complex128(a) * cmplx.Conj(complex128(a)))
}

func conj(a complex64) complex64 {
	return complex64(cmplx.Conj(complex128(a)))
}
