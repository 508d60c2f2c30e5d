// Package mat provides small complex matrices: Pauli matrices, sparse COO matrices with Kronecker products, and a complex singular value decomposition.
package mat

import (
	"cmp"
	"fmt"
	"math/cmplx"
	"slices"
	"strings"
)

var (
	Identity = [][]complex64{
		{1, 0},
		{0, 1},
	}
	PauliX = [][]complex64{
		{0, 1},
		{1, 0},
	}
	PauliY = [][]complex64{
		{0, -1i},
		{1i, 0},
	}
	PauliZ = [][]complex64{
		{1, 0},
		{0, -1},
	}
)

// Pauli returns the Pauli matrix named by c, which is one of "I", "X", "Y" and "Z".
func Pauli(c byte) ([][]complex64, bool) {
	switch c {
	case 'I', 'i':
		return Identity, true
	case 'X', 'x':
		return PauliX, true
	case 'Y', 'y':
		return PauliY, true
	case 'Z', 'z':
		return PauliZ, true
	default:
		return nil, false
	}
}

type vRowCol struct {
	v   complex64
	row int
	col int
}

// COO is a sparse matrix in coordinate format, with entries sorted in row major order.
type COO struct {
	rows int
	cols int
	Data []vRowCol

	m map[[2]int]complex64
}

// M returns the sparse matrix of a dense one.
func M(dense [][]complex64) *COO {
	m := &COO{rows: len(dense), cols: len(dense[0]), Data: make([]vRowCol, 0), m: make(map[[2]int]complex64)}
	for i, row := range dense {
		for j, v := range row {
			if v == 0 {
				continue
			}
			m.Data = append(m.Data, vRowCol{v: v, row: i, col: j})
		}
	}
	return m
}

// Kron returns the Kronecker product of ms, from left to right.
func Kron(ms ...[][]complex64) *COO {
	k := M([][]complex64{{1}})
	for _, m := range ms {
		k.Kron(M(m))
	}
	return k
}

func (m *COO) Rows() int { return m.rows }
func (m *COO) Cols() int { return m.cols }

func (a *COO) Equal(b *COO) bool {
	if a.rows != b.rows {
		return false
	}
	if a.cols != b.cols {
		return false
	}
	if len(a.Data) != len(b.Data) {
		return false
	}
	for i, av := range a.Data {
		bv := b.Data[i]
		if av != bv {
			return false
		}
	}
	return true
}

// Add sets a = a + c*b.
func (a *COO) Add(c complex64, b *COO) {
	clear(b.m)
	for _, v := range b.Data {
		b.m[[2]int{v.row, v.col}] = v.v
	}

	for i, av := range a.Data {
		var byx [2]int
		switch {
		case b.rows == 1 && b.cols == 1:
		case b.rows == a.rows && b.cols == 1:
			byx[0] = av.row
		case b.rows == a.rows && b.cols == a.cols:
			byx[0], byx[1] = av.row, av.col
		default:
			panic(fmt.Sprintf("wrong dimensions"))
		}
		bv := b.m[byx]
		delete(b.m, byx)

		a.Data[i].v = av.v + c*bv
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	for yx, bv := range b.m {
		a.Data = append(a.Data, vRowCol{v: c * bv, row: yx[0], col: yx[1]})
	}
	slices.SortFunc(a.Data, rowMajor)
	clear(b.m)
}

// Mul sets a to the elementwise product of a and b, broadcasting b if it is a scalar or a column.
func (a *COO) Mul(b *COO) {
	clear(b.m)
	for _, v := range b.Data {
		b.m[[2]int{v.row, v.col}] = v.v
	}

	for i, av := range a.Data {
		var byx [2]int
		switch {
		case b.rows == 1 && b.cols == 1:
		case b.rows == a.rows && b.cols == 1:
			byx[0] = av.row
		case b.rows == a.rows && b.cols == a.cols:
			byx[0], byx[1] = av.row, av.col
		default:
			panic(fmt.Sprintf("wrong dimensions"))
		}
		bv := b.m[byx]

		a.Data[i].v = av.v * bv
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	clear(b.m)
}

// Kron sets a to the Kronecker product of a and b.
func (a *COO) Kron(b *COO) {
	rows := a.rows * b.rows
	cols := a.cols * b.cols
	a.rows, a.cols = rows, cols

	prevElemNum := len(a.Data)
	for i := prevElemNum - 1; i >= 0; i-- {
		av := a.Data[i]
		a.Data[i].v = 0
		for _, bv := range b.Data {
			ky := av.row*b.rows + bv.row
			kx := av.col*b.cols + bv.col
			a.Data = append(a.Data, vRowCol{v: av.v * bv.v, row: ky, col: kx})
		}
	}

	a.Data = slices.DeleteFunc(a.Data, func(v vRowCol) bool {
		return v.v == 0
	})
	slices.SortFunc(a.Data, rowMajor)
}

// MulVec returns a @ x.
func (a *COO) MulVec(x []complex64) []complex64 {
	if len(x) != a.cols {
		panic(fmt.Sprintf("%d %d", len(x), a.cols))
	}
	y := make([]complex64, a.rows)
	for _, v := range a.Data {
		y[v.row] += v.v * x[v.col]
	}
	return y
}

// TraceMul returns the trace of a @ b.
func (a *COO) TraceMul(b [][]complex64) complex64 {
	if len(b) != a.cols {
		panic(fmt.Sprintf("%d %d", len(b), a.cols))
	}
	var tr complex64
	for _, v := range a.Data {
		tr += v.v * b[v.col][v.row]
	}
	return tr
}

func (m *COO) Dense() [][]complex64 {
	dense := make([][]complex64, m.rows)
	for i := range dense {
		dense[i] = make([]complex64, m.cols)
	}

	for _, v := range m.Data {
		dense[v.row][v.col] = v.v
	}

	return dense
}

func (m *COO) String() string {
	dense := m.Dense()

	lines := []string{}
	for i := 0; i < m.rows; i++ {
		cs := []string{}
		for j := 0; j < m.cols; j++ {
			v := dense[i][j]
			switch {
			case imag(v) == 0:
				cs = append(cs, format(real(v)))
			case real(v) == 0:
				cs = append(cs, format(imag(v))+"i")
			default:
				cs = append(cs, format(real(v))+"+"+format(imag(v))+"i")
			}
		}
		l := strings.Join(cs, "\t")
		lines = append(lines, l)
	}

	return strings.Join(lines, "\n")
}

// IsUnitary reports whether m @ m^dagger is the identity within tol.
func IsUnitary(m [][]complex64, tol float64) bool {
	n := len(m)
	for _, row := range m {
		if len(row) != n {
			return false
		}
	}
	for i := range n {
		for j := range n {
			var s complex128
			for k := range n {
				s += complex128(m[i][k]) * cmplx.Conj(complex128(m[j][k]))
			}
			if i == j {
				s--
			}
			if cmplx.Abs(s) > tol {
				return false
			}
		}
	}
	return true
}

// Dagger returns the conjugate transpose of m.
func Dagger(m [][]complex64) [][]complex64 {
	if len(m) == 0 {
		return nil
	}
	d := make([][]complex64, len(m[0]))
	for j := range d {
		d[j] = make([]complex64, len(m))
		for i := range m {
			d[j][i] = complex64(cmplx.Conj(complex128(m[i][j])))
		}
	}
	return d
}

// MatMul returns a @ b.
func MatMul(a, b [][]complex64) [][]complex64 {
	if len(a[0]) != len(b) {
		panic(fmt.Sprintf("%d %d", len(a[0]), len(b)))
	}
	c := make([][]complex64, len(a))
	for i := range a {
		c[i] = make([]complex64, len(b[0]))
		for j := range b[0] {
			var s complex64
			for k := range b {
				s += a[i][k] * b[k][j]
			}
			c[i][j] = s
		}
	}
	return c
}

func rowMajor(a, b vRowCol) int {
	if c := cmp.Compare(a.row, b.row); c != 0 {
		return c
	}
	return cmp.Compare(a.col, b.col)
}

func format(v float32) string {
	// If v is 0 or -0, return "0" immediately to avoid returning "-0".
	if v == 0 {
		return " 0"
	}

	s := fmt.Sprintf("%v", v)

	// Add a space before non-negative numbers to align with other negative numbers in the same column.
	if v >= 0 {
		s = " " + s
	}

	return s
}
