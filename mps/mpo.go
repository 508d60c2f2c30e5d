package mps

import (
	"fmt"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/mat"
	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

// NewMPO converts the operator u, acting on the increasing sites, to a matrix product operator spanning sites[0] to sites[len(sites)-1].
// u is a 2^k x 2^k matrix whose most significant qubit is sites[0].
// Sites in between that u does not act on are filled with identities, which carry the bond across them.
// Each tensor has shape {left, right, up, down}, where down is contracted with the state.
func NewMPO(u *tensor.Dense, sites []int) ([]*tensor.Dense, int, error) {
	k := len(sites)
	if k == 0 {
		return nil, -1, qcirc.Errorf(qcirc.Construction, qcirc.AxisRange, "no sites")
	}
	for i, s := range sites {
		if s < 0 {
			return nil, -1, qcirc.Errorf(qcirc.Construction, qcirc.AxisRange, "sites %v", sites)
		}
		if i > 0 && s <= sites[i-1] {
			return nil, -1, qcirc.Errorf(qcirc.Construction, qcirc.AxisDuplicate, "sites %v not increasing", sites)
		}
	}
	dim := 1 << k
	if us := u.Shape(); len(us) != 2 || us[0] != dim || us[1] != dim {
		return nil, -1, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "operator %v, %d sites", us, k)
	}

	// Interleave output and input qubits to {out0, in0, out1, in1, ...}.
	qubits := make([]int, 0, 2*k)
	for range 2 * k {
		qubits = append(qubits, 2)
	}
	perm := make([]int, 0, 2*k)
	for i := range k {
		perm = append(perm, i, k+i)
	}
	contiguous := resetCopy(tensor.Zeros(1), u)
	interleaved := resetCopy(tensor.Zeros(1), contiguous.Reshape(qubits...).Transpose(perm...)).Reshape(1, -1)

	local, _, err := decompose(interleaved, 4, k, 0, false)
	if err != nil {
		return nil, -1, errors.Wrap(err, "")
	}

	mpo := make([]*tensor.Dense, 0, sites[k-1]-sites[0]+1)
	for i, l := range local {
		ls := l.Shape()
		// l is of shape {left, out, in, right}.
		l = l.Reshape(ls[0], 2, 2, ls[2])
		mpo = append(mpo, resetCopy(tensor.Zeros(1), l.Transpose(0, 3, 1, 2)))

		if i == k-1 {
			break
		}
		chi := ls[2]
		for range sites[i+1] - sites[i] - 1 {
			mpo = append(mpo, identityMPO(chi))
		}
	}

	return mpo, sites[0], nil
}

// identityMPO returns delta_{left,right} delta_{up,down} with bond dimension chi.
func identityMPO(chi int) *tensor.Dense {
	w := tensor.Zeros(chi, chi, 2, 2)
	for a := range chi {
		for s := range 2 {
			w.SetAt([]int{a, a, s, s}, 1)
		}
	}
	return w
}

// decompose splits state, of shape {1, phys^n}, into n tensors of shape {left, phys, right} by successive singular value decompositions from the left.
// It returns the tensors and the discarded weight.
func decompose(state *tensor.Dense, phys, n, maxRank int, normalize bool) ([]*tensor.Dense, float64, error) {
	if n < 1 {
		panic(fmt.Sprintf("%d", n))
	}
	sites := make([]*tensor.Dense, 0, n)
	var discarded float64
	var leftD int = 1
	for range n - 1 {
		a := state.Reshape(leftD*phys, -1)
		f, err := mat.Factorize(a.ToSlice2(), mat.Truncation{MaxRank: maxRank, Cutoff: epsilon})
		if err != nil {
			return nil, -1, errors.Wrap(err, "")
		}
		discarded += f.Discarded
		scaleRows(f.Vh, f.S, normalize)

		sites = append(sites, tensor.T2(f.U).Reshape(leftD, phys, len(f.S)))
		leftD = len(f.S)
		state = tensor.T2(f.Vh)
	}
	sites = append(sites, resetCopy(tensor.Zeros(1), state.Reshape(leftD, phys, 1)))
	return sites, discarded, nil
}
