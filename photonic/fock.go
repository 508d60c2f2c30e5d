package photonic

import (
	"fmt"
	"math"
	"slices"

	"github.com/fumin/qcirc/index"
)

// FockMatrix returns the matrix of u on the Fock space of len(u) modes truncated at cutoff photons per mode.
// Rows and columns are occupations in base cutoff, with mode 0 as the most significant digit.
// The element <out|U|in> is perm(U[out, in]) / sqrt(prod out! prod in!), and vanishes unless the photon numbers match.
func FockMatrix(u [][]complex128, cutoff int) [][]complex64 {
	k := len(u)
	dim := index.Pow(cutoff, k)
	m := make([][]complex64, dim)
	for i := range m {
		m[i] = make([]complex64, dim)
	}

	out, in := make([]int, k), make([]int, k)
	for r := range dim {
		digits(out, r, cutoff)
		for c := range dim {
			digits(in, c, cutoff)
			m[r][c] = complex64(Amplitude(u, in, out))
		}
	}
	return m
}

// Amplitude returns <out|U|in> for the occupations in and out.
func Amplitude(u [][]complex128, in, out []int) complex128 {
	if sum(in) != sum(out) {
		return 0
	}
	rows := repeat(out)
	cols := repeat(in)
	sub := make([][]complex128, len(rows))
	for i, r := range rows {
		sub[i] = make([]complex128, len(cols))
		for j, c := range cols {
			sub[i][j] = u[r][c]
		}
	}
	norm := 1.0
	for _, n := range slices.Concat(in, out) {
		norm *= factorial(n)
	}
	return Permanent(sub) / complex(math.Sqrt(norm), 0)
}

// Permanent returns the permanent of the square matrix a by Ryser's formula.
func Permanent(a [][]complex128) complex128 {
	n := len(a)
	if n == 0 {
		return 1
	}
	var perm complex128
	rowSums := make([]complex128, n)
	for set := 1; set < 1<<n; set++ {
		clear(rowSums)
		var size int
		for j := range n {
			if set&(1<<j) == 0 {
				continue
			}
			size++
			for i := range n {
				rowSums[i] += a[i][j]
			}
		}
		prod := complex(1, 0)
		for _, s := range rowSums {
			prod *= s
		}
		if (n-size)%2 == 1 {
			prod = -prod
		}
		perm += prod
	}
	return perm
}

// Combinations returns all occupations of nmode modes with nphoton photons in total, in decreasing lexicographic order.
func Combinations(nmode, nphoton int) [][]int {
	if nmode == 0 {
		if nphoton == 0 {
			return [][]int{{}}
		}
		return nil
	}
	var combs [][]int
	for first := nphoton; first >= 0; first-- {
		for _, rest := range Combinations(nmode-1, nphoton-first) {
			combs = append(combs, append([]int{first}, rest...))
		}
	}
	return combs
}

func digits(dst []int, x, base int) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = x % base
		x /= base
	}
}

func undigits(occ []int, base int) int {
	var x int
	for _, d := range occ {
		if d < 0 || d >= base {
			panic(fmt.Sprintf("%v %d", occ, base))
		}
		x = x*base + d
	}
	return x
}

// repeat lists mode i occ[i] times.
func repeat(occ []int) []int {
	var modes []int
	for i, n := range occ {
		for range n {
			modes = append(modes, i)
		}
	}
	return modes
}

func sum(xs []int) int {
	var s int
	for _, x := range xs {
		s += x
	}
	return s
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}
