package gate

import (
	"math"
	"math/cmplx"
	"slices"

	"github.com/fumin/qcirc/mat"
)

var (
	invSqrt2 = complex(float32(1/math.Sqrt2), 0)

	hadamard = [][]complex64{
		{invSqrt2, invSqrt2},
		{invSqrt2, -invSqrt2},
	}
	phaseS = [][]complex64{
		{1, 0},
		{0, 1i},
	}
	phaseT = [][]complex64{
		{1, 0},
		{0, complex64(cmplx.Exp(complex(0, math.Pi/4)))},
	}
	swap = [][]complex64{
		{1, 0, 0, 0},
		{0, 0, 1, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 1},
	}
)

func constant(m [][]complex64) MatrixFunc {
	return func([]float64) [][]complex64 { return m }
}

func H(nqubit, wire int, controls ...int) (*Gate, error) {
	return New("H", nqubit, []int{wire}, controls, nil, constant(hadamard))
}

func X(nqubit, wire int, controls ...int) (*Gate, error) {
	return New("X", nqubit, []int{wire}, controls, nil, constant(mat.PauliX))
}

func Y(nqubit, wire int, controls ...int) (*Gate, error) {
	return New("Y", nqubit, []int{wire}, controls, nil, constant(mat.PauliY))
}

func Z(nqubit, wire int, controls ...int) (*Gate, error) {
	return New("Z", nqubit, []int{wire}, controls, nil, constant(mat.PauliZ))
}

func S(nqubit, wire int, controls ...int) (*Gate, error) {
	return New("S", nqubit, []int{wire}, controls, nil, constant(phaseS))
}

func T(nqubit, wire int, controls ...int) (*Gate, error) {
	return New("T", nqubit, []int{wire}, controls, nil, constant(phaseT))
}

// CNOT flips target when control is |1>.
func CNOT(nqubit, control, target int) (*Gate, error) {
	return X(nqubit, target, control)
}

// Toffoli flips target when both controls are |1>.
func Toffoli(nqubit, control0, control1, target int) (*Gate, error) {
	return X(nqubit, target, control0, control1)
}

func Swap(nqubit, a, b int, controls ...int) (*Gate, error) {
	return New("SWAP", nqubit, []int{a, b}, controls, nil, constant(swap))
}

// Rx is exp(-i theta X / 2).
func Rx(nqubit, wire int, theta *Param, controls ...int) (*Gate, error) {
	return New("Rx", nqubit, []int{wire}, controls, []*Param{theta}, func(p []float64) [][]complex64 {
		c, s := cosSin(p[0] / 2)
		return [][]complex64{
			{c, complex(0, -real(s))},
			{complex(0, -real(s)), c},
		}
	})
}

// Ry is exp(-i theta Y / 2).
func Ry(nqubit, wire int, theta *Param, controls ...int) (*Gate, error) {
	return New("Ry", nqubit, []int{wire}, controls, []*Param{theta}, func(p []float64) [][]complex64 {
		c, s := cosSin(p[0] / 2)
		return [][]complex64{
			{c, -s},
			{s, c},
		}
	})
}

// Rz is exp(-i theta Z / 2).
func Rz(nqubit, wire int, theta *Param, controls ...int) (*Gate, error) {
	return New("Rz", nqubit, []int{wire}, controls, []*Param{theta}, func(p []float64) [][]complex64 {
		return [][]complex64{
			{complex64(cmplx.Exp(complex(0, -p[0]/2))), 0},
			{0, complex64(cmplx.Exp(complex(0, p[0]/2)))},
		}
	})
}

// Phase multiplies |1> by exp(i theta).
func Phase(nqubit, wire int, theta *Param, controls ...int) (*Gate, error) {
	return New("P", nqubit, []int{wire}, controls, []*Param{theta}, func(p []float64) [][]complex64 {
		return [][]complex64{
			{1, 0},
			{0, complex64(cmplx.Exp(complex(0, p[0])))},
		}
	})
}

// Unitary is an arbitrary unitary on wires, whose most significant qubit is wires[0].
func Unitary(nqubit int, m [][]complex64, wires []int, controls ...int) (*Gate, error) {
	cp := make([][]complex64, 0, len(m))
	for _, row := range m {
		cp = append(cp, slices.Clone(row))
	}
	return New("UAny", nqubit, wires, controls, nil, constant(cp))
}

func cosSin(theta float64) (complex64, complex64) {
	return complex(float32(math.Cos(theta)), 0), complex(float32(math.Sin(theta)), 0)
}
