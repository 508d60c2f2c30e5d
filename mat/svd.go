package mat

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

// SVD is a truncated singular value decomposition a ~ U diag(S) Vh of a complex matrix.
type SVD struct {
	U  [][]complex64
	S  []float64
	Vh [][]complex64

	// Discarded is the sum of the squares of the dropped singular values.
	Discarded float64
}

// Truncation controls which singular values are kept.
type Truncation struct {
	// MaxRank is the maximum number of kept singular values, no limit if non-positive.
	MaxRank int
	// Cutoff drops singular values below Cutoff times the largest one.
	Cutoff float64
}

// Factorize computes the singular value decomposition of the rows x cols matrix a.
// Singular values are sorted in descending order, and at least one is always kept.
func Factorize(a [][]complex64, trunc Truncation) (SVD, error) {
	rows, cols := len(a), len(a[0])
	// The bidiagonalization of tensor.SVD needs at least two rows and two columns.
	if min(rows, cols) == 1 {
		return rankOne(a), nil
	}

	var bufs [3]*tensor.Dense
	for i := range len(bufs) {
		bufs[i] = tensor.Zeros(1)
	}
	u, v := tensor.Zeros(1), tensor.Zeros(1)
	s, err := tensor.SVD(u, v, tensor.T2(a), bufs)
	if err != nil {
		return SVD{}, errors.Wrap(err, fmt.Sprintf("%d %d", rows, cols))
	}

	n := min(rows, cols)
	vals := make([]float64, 0, n)
	var total float64
	for k := range n {
		sk := float64(real(s.At(k, k)))
		vals = append(vals, sk)
		total += sk * sk
	}

	rank := n
	if trunc.MaxRank > 0 {
		rank = min(rank, trunc.MaxRank)
	}
	floor := trunc.Cutoff * vals[0]
	for rank > 1 && (vals[rank-1] <= floor || vals[rank-1] == 0) {
		rank--
	}

	out := SVD{S: vals[:rank]}
	var kept float64
	for _, sk := range out.S {
		kept += sk * sk
	}
	out.Discarded = max(total-kept, 0)

	out.U = make([][]complex64, 0, rows)
	for i := range rows {
		row := make([]complex64, 0, rank)
		for k := range rank {
			row = append(row, u.At(i, k))
		}
		out.U = append(out.U, row)
	}
	// Vh = v.H.
	out.Vh = make([][]complex64, 0, rank)
	for k := range rank {
		row := make([]complex64, 0, cols)
		for j := range cols {
			vjk := v.At(j, k)
			row = append(row, complex(real(vjk), -imag(vjk)))
		}
		out.Vh = append(out.Vh, row)
	}

	return out, nil
}

// rankOne decomposes a single row or column.
func rankOne(a [][]complex64) SVD {
	var n2 float64
	for _, row := range a {
		for _, v := range row {
			av := cmplx.Abs(complex128(v))
			n2 += av * av
		}
	}
	norm := math.Sqrt(n2)
	unit := func(v complex64) complex64 {
		if norm == 0 {
			return 0
		}
		return v / complex(float32(norm), 0)
	}

	out := SVD{S: []float64{norm}}
	if len(a[0]) == 1 {
		for _, row := range a {
			out.U = append(out.U, []complex64{unit(row[0])})
		}
		out.Vh = [][]complex64{{1}}
	} else {
		out.U = [][]complex64{{1}}
		vh := make([]complex64, 0, len(a[0]))
		for _, v := range a[0] {
			vh = append(vh, unit(v))
		}
		out.Vh = [][]complex64{vh}
	}
	if norm == 0 {
		// a is zero, any unit vectors will do.
		out.U[0][0], out.Vh[0][0] = 1, 1
	}
	return out
}
