package mps

import (
	"fmt"

	"github.com/fumin/qcirc/mat"
	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

var (
	zero = [][]complex64{
		{0, 0},
		{0, 0},
	}
)

// MagnetizationZ returns the MPO of sum_i Z_i on a chain of n sites.
func MagnetizationZ(n int) []*tensor.Dense {
	w := tensor.T4([][][][]complex64{
		{mat.Identity, zero},
		{mat.PauliZ, mat.Identity},
	})
	return newMPO(w, n)
}

// Ising returns the MPO of the transverse field Ising model -sum_i Z_i Z_{i+1} - h sum_i X_i on a chain of n sites.
func Ising(n int, h complex64) []*tensor.Dense {
	mul := func(c complex64, x [][]complex64) [][]complex64 {
		return tensor.T2(x).Mul(c).ToSlice2()
	}
	w := tensor.T4([][][][]complex64{
		{mat.Identity, zero, zero},
		{mat.PauliZ, zero, zero},
		{mul(-h, mat.PauliX), mul(-1, mat.PauliZ), mat.Identity},
	})
	return newMPO(w, n)
}

// PauliString returns the MPO of a product of Pauli matrices such as "XIZ", one letter per site.
func PauliString(ps string) ([]*tensor.Dense, error) {
	if len(ps) == 0 {
		return nil, errors.Errorf("empty Pauli string")
	}
	mpo := make([]*tensor.Dense, 0, len(ps))
	for i := range len(ps) {
		p, ok := mat.Pauli(ps[i])
		if !ok {
			return nil, errors.Errorf("%q at %d in %q", ps[i], i, ps)
		}
		mpo = append(mpo, tensor.T4([][][][]complex64{{p}}))
	}
	return mpo, nil
}

func newMPO(w *tensor.Dense, n int) []*tensor.Dense {
	if n < 2 {
		panic(fmt.Sprintf("%d", n))
	}
	d0, d1, d2, d3 := w.Shape()[0], w.Shape()[1], w.Shape()[2], w.Shape()[3]
	mpo := make([]*tensor.Dense, 0, n)

	// First MPO is w[-1].
	mpo = append(mpo, w.Slice([][2]int{{d0 - 1, d0}, {0, d1}, {0, d2}, {0, d3}}))

	for range n - 2 {
		mpo = append(mpo, w)
	}

	// Last MPO is w[:, 0].
	mpo = append(mpo, w.Slice([][2]int{{0, d0}, {0, 1}, {0, d2}, {0, d3}}))

	return mpo
}
