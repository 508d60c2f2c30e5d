// Package evolve applies local operators to dense state tensors.
//
// A state tensor of n subsystems of local dimension d has shape (batch, d, ..., d), and a density matrix has shape (batch, d x n ket axes, d x n bra axes).
// Subsystem 0 is the most significant digit of the flattened state.
package evolve

import (
	"fmt"
	"slices"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/index"
	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

// State applies the d^k x d^k operator m to the subsystems wires of the state x.
// If controls is not empty, m is applied only to the components in which every control subsystem is in its highest level, which is |1> for qubits.
func State(x, m *tensor.Dense, wires, controls []int, dim int) (*tensor.Dense, error) {
	n, err := NumSubsystems(x, dim, 1)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := index.Validate(n, wires, controls); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkOperator(m, dim, len(wires)); err != nil {
		return nil, errors.Wrap(err, "")
	}

	y, err := apply(x, m, index.Offset(wires, 1), index.Offset(controls, 1), dim)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return y, nil
}

// DensityMatrix evolves the density matrix x by m rho m^dagger, where m acts on wires and is controlled by controls.
func DensityMatrix(x, m *tensor.Dense, wires, controls []int, dim int) (*tensor.Dense, error) {
	n, err := NumSubsystems(x, dim, 2)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := index.Validate(n, wires, controls); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkOperator(m, dim, len(wires)); err != nil {
		return nil, errors.Wrap(err, "")
	}

	// Ket side.
	ket, err := apply(x, m, index.Offset(wires, 1), index.Offset(controls, 1), dim)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	// Bra side.
	rho, err := apply(ket, m.Conj(), index.Offset(wires, 1+n), index.Offset(controls, 1+n), dim)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return rho, nil
}

// NumSubsystems returns the number of subsystems of x, which has a batch axis followed by sides*n axes of dimension dim.
func NumSubsystems(x *tensor.Dense, dim, sides int) (int, error) {
	shape := x.Shape()
	if len(shape) < 1+sides || (len(shape)-1)%sides != 0 {
		return -1, qcirc.Errorf(qcirc.Evolution, qcirc.ShapeMismatch, "shape %v, sides %d", shape, sides)
	}
	for _, d := range shape[1:] {
		if d != dim {
			return -1, qcirc.Errorf(qcirc.Evolution, qcirc.ShapeMismatch, "shape %v, dim %d", shape, dim)
		}
	}
	return (len(shape) - 1) / sides, nil
}

func checkOperator(m *tensor.Dense, dim, k int) error {
	dk := index.Pow(dim, k)
	if !slices.Equal(m.Shape(), []int{dk, dk}) {
		return qcirc.Errorf(qcirc.Evolution, qcirc.ShapeMismatch, "operator %v, %d wires of dim %d", m.Shape(), k, dim)
	}
	return nil
}

// apply applies m to the tensor axes wires, controlled by the tensor axes controls.
func apply(x, m *tensor.Dense, wires, controls []int, dim int) (*tensor.Dense, error) {
	shape := x.Shape()
	perm, err := index.Controlled(len(shape), wires, controls)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	permShape := index.Permute(shape, perm)
	dw := index.Pow(dim, len(wires))
	dc := index.Pow(dim, len(controls))
	rest := index.Volume(shape) / dw / dc

	// xt is of shape {wires, rest, controls}.
	xt := resetCopy(tensor.Zeros(1), x.Transpose(perm...)).Reshape(dw, rest, dc)

	if dc == 1 {
		y := tensor.Contract(tensor.Zeros(1), m, xt.Reshape(dw, rest), [][2]int{{1, 0}})
		return resetCopy(tensor.Zeros(1), y.Reshape(permShape...).Transpose(index.Inverse(perm)...)), nil
	}

	// Only the slice where all controls are on is transformed, the others are left as they are.
	on := xt.Slice([][2]int{{0, dw}, {0, rest}, {dc - 1, dc}})
	target := resetCopy(tensor.Zeros(1), on).Reshape(dw, rest)
	y := tensor.Contract(tensor.Zeros(1), m, target, [][2]int{{1, 0}})
	digit := []int{0, 0, dc - 1}
	for ij, v := range y.All() {
		digit[0], digit[1] = ij[0], ij[1]
		xt.SetAt(digit, v)
	}

	return resetCopy(tensor.Zeros(1), xt.Reshape(permShape...).Transpose(index.Inverse(perm)...)), nil
}

func resetCopy(dst, src *tensor.Dense) *tensor.Dense {
	shape := src.Shape()
	zeroDigit := make([]int, len(shape))
	dst.Reset(shape...).Set(zeroDigit, src)
	return dst
}

// Flatten returns the amplitudes of each batch item of x.
func Flatten(x *tensor.Dense) [][]complex64 {
	shape := x.Shape()
	if len(shape) == 0 {
		panic(fmt.Sprintf("%#v", shape))
	}
	return resetCopy(tensor.Zeros(1), x).Reshape(shape[0], -1).ToSlice2()
}

// FromAmplitudes returns a state tensor of shape (len(amps), dim, ..., dim) with n subsystems.
func FromAmplitudes(amps [][]complex64, dim, n int) (*tensor.Dense, error) {
	if len(amps) == 0 {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "empty batch")
	}
	size := index.Pow(dim, n)
	for i, a := range amps {
		if len(a) != size {
			return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "batch %d has %d amplitudes, expected %d", i, len(a), size)
		}
	}
	shape := append([]int{len(amps)}, slices.Repeat([]int{dim}, n)...)
	return tensor.T2(amps).Reshape(shape...), nil
}
