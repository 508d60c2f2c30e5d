// Package index computes the axis permutations that move the axes an operator acts on to the front of a state tensor.
//
// State tensors carry a leading batch axis, so subsystem i lives on tensor axis i+1.
// Functions in this package work on tensor axes, and Offset converts subsystem indices to tensor axes.
package index

import (
	"fmt"
	"slices"

	"github.com/fumin/qcirc"
)

// Validate checks that wires and controls are within [0, n), have no duplicates and are disjoint.
func Validate(n int, wires, controls []int) error {
	if len(wires) == 0 {
		return qcirc.Errorf(qcirc.Construction, qcirc.AxisRange, "no wires")
	}
	seen := make(map[int]bool, len(wires)+len(controls))
	for _, w := range wires {
		if w < 0 || w >= n {
			return qcirc.Errorf(qcirc.Construction, qcirc.AxisRange, "wire %d, n %d", w, n)
		}
		if seen[w] {
			return qcirc.Errorf(qcirc.Construction, qcirc.AxisDuplicate, "wires %v", wires)
		}
		seen[w] = true
	}

	ctrl := make(map[int]bool, len(controls))
	for _, c := range controls {
		if c < 0 || c >= n {
			return qcirc.Errorf(qcirc.Construction, qcirc.AxisRange, "control %d, n %d", c, n)
		}
		if ctrl[c] {
			return qcirc.Errorf(qcirc.Construction, qcirc.AxisDuplicate, "controls %v", controls)
		}
		ctrl[c] = true
		if seen[c] {
			return qcirc.Errorf(qcirc.Construction, qcirc.AxisOverlap, "wires %v, controls %v", wires, controls)
		}
	}
	return nil
}

// Forward returns the permutation of a rank-rank tensor that puts axes first, in the given order, followed by the remaining axes in their original order.
func Forward(rank int, axes []int) ([]int, error) {
	return Controlled(rank, axes, nil)
}

// Controlled returns the permutation that puts wires first, then the remaining axes in their original order, then controls.
func Controlled(rank int, wires, controls []int) ([]int, error) {
	picked := make([]bool, rank)
	for _, a := range slices.Concat(wires, controls) {
		if a < 0 || a >= rank {
			return nil, qcirc.Errorf(qcirc.Evolution, qcirc.AxisRange, "axis %d, rank %d", a, rank)
		}
		if picked[a] {
			return nil, qcirc.Errorf(qcirc.Evolution, qcirc.AxisDuplicate, "wires %v, controls %v", wires, controls)
		}
		picked[a] = true
	}

	perm := make([]int, 0, rank)
	perm = append(perm, wires...)
	for a := range rank {
		if !picked[a] {
			perm = append(perm, a)
		}
	}
	perm = append(perm, controls...)
	return perm, nil
}

// Inverse returns the permutation q such that q[perm[i]] = i.
func Inverse(perm []int) []int {
	inv := make([]int, len(perm))
	for i, p := range perm {
		inv[p] = i
	}
	return inv
}

// Permute returns the shape of a tensor of shape shape after transposing it by perm.
func Permute(shape, perm []int) []int {
	if len(shape) != len(perm) {
		panic(fmt.Sprintf("%#v %#v", shape, perm))
	}
	permuted := make([]int, len(perm))
	for i, p := range perm {
		permuted[i] = shape[p]
	}
	return permuted
}

// Offset returns axes shifted by k.
func Offset(axes []int, k int) []int {
	shifted := make([]int, len(axes))
	for i, a := range axes {
		shifted[i] = a + k
	}
	return shifted
}

// Volume returns the number of elements of a tensor of shape shape.
func Volume(shape []int) int {
	v := 1
	for _, d := range shape {
		v *= d
	}
	return v
}

// Pow returns d^k.
func Pow(d, k int) int {
	p := 1
	for range k {
		p *= d
	}
	return p
}
