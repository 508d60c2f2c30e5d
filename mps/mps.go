// Package mps implements matrix product states, and the application of gates to them as matrix product operators.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
//   - Efficient classical simulation of slightly entangled quantum computations, Guifre Vidal
package mps

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/mat"
	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

const (
	// mpsLeftAxis is the axis of a_{l-1} in Figure 6.
	mpsLeftAxis  = 0
	mpsUpAxis    = 1
	mpsRightAxis = 2
	// mpoLeftAxis is the axis of b_{l-1} in Figure 35.
	mpoLeftAxis  = 0
	mpoRightAxis = 1
	mpoUpAxis    = 2
	mpoDownAxis  = 3

	// Machine precision.
	epsilon = 0x1p-23

	// NoCenter is the center of a state that is not in mixed canonical form.
	NoCenter = -1
)

// MPS is a matrix product state of qubits.
// Each site is a tensor of shape {left, 2, right}, and the bonds at both ends are of dimension 1.
type MPS struct {
	Sites []*tensor.Dense
	// Chi is the maximum bond dimension kept by truncation, no truncation if non-positive.
	Chi int
	// Normalize rescales the state to unit norm after truncation.
	Normalize bool
	// Center is the orthogonality center, or NoCenter.
	Center int
	// Discarded is the accumulated weight of the singular values dropped by truncation.
	Discarded float64
}

// New creates a matrix product state from site tensors.
func New(sites []*tensor.Dense, chi int, normalize bool) (*MPS, error) {
	if len(sites) == 0 {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "no sites")
	}
	for i, s := range sites {
		shape := s.Shape()
		if len(shape) != 3 || shape[mpsUpAxis] != 2 {
			return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "site %d %v", i, shape)
		}
		if i > 0 && sites[i-1].Shape()[mpsRightAxis] != shape[mpsLeftAxis] {
			return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "bond %d %v %v", i, sites[i-1].Shape(), shape)
		}
	}
	if sites[0].Shape()[mpsLeftAxis] != 1 || sites[len(sites)-1].Shape()[mpsRightAxis] != 1 {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "open boundaries %v %v", sites[0].Shape(), sites[len(sites)-1].Shape())
	}

	m := &MPS{Chi: chi, Normalize: normalize, Center: NoCenter}
	for _, s := range sites {
		m.Sites = append(m.Sites, resetCopy(tensor.Zeros(1), s))
	}
	return m, nil
}

// Zeros returns the state |0...0> of n qubits.
// A product state is canonical at every site, we place the center at the first.
func Zeros(n, chi int, normalize bool) *MPS {
	m := &MPS{Chi: chi, Normalize: normalize, Center: 0}
	for range n {
		s := tensor.Zeros(1, 2, 1)
		s.SetAt([]int{0, 0, 0}, 1)
		m.Sites = append(m.Sites, s)
	}
	return m
}

// FromDense creates a matrix product representation from the amplitudes of a general state of n qubits.
// Bonds are truncated to chi if it is positive, and the returned state is canonical at the last site.
func FromDense(amps []complex64, n, chi int, normalize bool) (*MPS, error) {
	if n < 1 || len(amps) != 1<<n {
		return nil, qcirc.Errorf(qcirc.Construction, qcirc.ShapeMismatch, "%d amplitudes for %d qubits", len(amps), n)
	}
	sites, discarded, err := decompose(tensor.T2([][]complex64{amps}), 2, n, chi, normalize)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &MPS{Sites: sites, Chi: chi, Normalize: normalize, Center: n - 1, Discarded: discarded}, nil
}

// Random creates a random matrix product state whose bond dimensions are capped by chi.
func Random(n, chi int, rng *rand.Rand) *MPS {
	m := &MPS{Chi: chi, Center: NoCenter}
	leftD := 1
	for i := range n {
		// The maximum useful bond is limited by the number of qubits on either side.
		rightD := min(1<<min(i+1, n-i-1), chi)
		if chi <= 0 {
			rightD = 1 << min(i+1, n-i-1)
		}
		m.Sites = append(m.Sites, randTensor(rng, leftD, 2, rightD))
		leftD = rightD
	}
	return m
}

// Clone returns a deep copy of m.
func (m *MPS) Clone() *MPS {
	c := *m
	c.Sites = make([]*tensor.Dense, 0, len(m.Sites))
	for _, s := range m.Sites {
		c.Sites = append(c.Sites, resetCopy(tensor.Zeros(1), s))
	}
	return &c
}

// Len returns the number of sites.
func (m *MPS) Len() int { return len(m.Sites) }

// Bonds returns the dimensions of the bonds between neighbouring sites.
func (m *MPS) Bonds() []int {
	bonds := make([]int, 0, len(m.Sites)-1)
	for _, s := range m.Sites[:len(m.Sites)-1] {
		bonds = append(bonds, s.Shape()[mpsRightAxis])
	}
	return bonds
}

// CenterOrthogonalize brings m to mixed canonical form with orthogonality center target.
// If maxBond is positive, bonds are truncated by singular value decomposition, otherwise they are orthogonalized by QR decompositions.
// If normalize is true, the state is rescaled to unit norm.
func (m *MPS) CenterOrthogonalize(target, maxBond int, normalize bool) error {
	if target < 0 || target >= len(m.Sites) {
		return qcirc.Errorf(qcirc.Evolution, qcirc.ChainRange, "center %d, %d sites", target, len(m.Sites))
	}

	// Singular values are Schmidt values only in canonical form, so a state without a center is first orthogonalized without truncation.
	if m.Center == NoCenter {
		for i := len(m.Sites) - 1; i > 0; i-- {
			rightNormalize(m.Sites, i, newBufs(3))
		}
		m.Center = 0
	}
	for i := m.Center; i < target; i++ {
		if err := m.moveRight(i, maxBond, normalize); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", i))
		}
	}
	for i := m.Center; i > target; i-- {
		if err := m.moveLeft(i, maxBond, normalize); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", i))
		}
	}
	m.Center = target

	if normalize {
		c := m.Sites[target]
		norm := frobenius(c)
		if norm < epsilon {
			return errors.Errorf("vanishing norm %f", norm)
		}
		m.Sites[target] = c.Mul(complex(float32(1/norm), 0))
	}
	return nil
}

// moveRight makes site i left orthonormal and moves its remainder into site i+1.
func (m *MPS) moveRight(i, maxBond int, normalize bool) error {
	if maxBond <= 0 {
		leftNormalize(m.Sites, i, newBufs(3))
		return nil
	}

	s := m.Sites[i].Shape()
	dLeft, dUp := s[mpsLeftAxis], s[mpsUpAxis]

	// Decompose ms[i] = u @ s @ vh.
	mi := m.Sites[i].Reshape(dLeft*dUp, s[mpsRightAxis])
	f, err := mat.Factorize(mi.ToSlice2(), mat.Truncation{MaxRank: maxBond, Cutoff: epsilon})
	if err != nil {
		return errors.Wrap(err, "")
	}
	m.Discarded += f.Discarded
	scaleRows(f.Vh, f.S, normalize)

	// ms[i+1] = s @ vh @ ms[i+1].
	axes := [][2]int{{1, mpsLeftAxis}}
	m.Sites[i+1] = tensor.Contract(tensor.Zeros(1), tensor.T2(f.Vh), m.Sites[i+1], axes)

	// ms[i] = u.
	m.Sites[i] = tensor.T2(f.U).Reshape(dLeft, dUp, len(f.S))
	return nil
}

// moveLeft makes site i right orthonormal and moves its remainder into site i-1.
func (m *MPS) moveLeft(i, maxBond int, normalize bool) error {
	if maxBond <= 0 {
		rightNormalize(m.Sites, i, newBufs(3))
		return nil
	}

	s := m.Sites[i].Shape()
	dUp, dRight := s[mpsUpAxis], s[mpsRightAxis]

	// Decompose ms[i] = u @ s @ vh.
	mi := m.Sites[i].Reshape(s[mpsLeftAxis], dUp*dRight)
	f, err := mat.Factorize(mi.ToSlice2(), mat.Truncation{MaxRank: maxBond, Cutoff: epsilon})
	if err != nil {
		return errors.Wrap(err, "")
	}
	m.Discarded += f.Discarded
	sv := singularValues(f.S, normalize)
	for _, row := range f.U {
		for k := range row {
			row[k] *= complex(float32(sv[k]), 0)
		}
	}

	// ms[i-1] = ms[i-1] @ u @ s.
	axes := [][2]int{{mpsRightAxis, 0}}
	m.Sites[i-1] = tensor.Contract(tensor.Zeros(1), m.Sites[i-1], tensor.T2(f.U), axes)

	// ms[i] = vh.
	m.Sites[i] = tensor.T2(f.Vh).Reshape(len(f.S), dUp, dRight)
	return nil
}

// scaleRows multiplies row k of a by s[k], after rescaling s to unit norm if normalize is true.
func scaleRows(a [][]complex64, s []float64, normalize bool) {
	sv := singularValues(s, normalize)
	for k, row := range a {
		c := complex(float32(sv[k]), 0)
		for j := range row {
			row[j] *= c
		}
	}
}

func singularValues(s []float64, normalize bool) []float64 {
	if !normalize {
		return s
	}
	var n2 float64
	for _, v := range s {
		n2 += v * v
	}
	if n2 == 0 {
		return s
	}
	scaled := make([]float64, len(s))
	for k, v := range s {
		scaled[k] = v / math.Sqrt(n2)
	}
	return scaled
}

// Apply applies the matrix product operator mpo, whose first tensor acts on site left.
// The state is first orthogonalized to left, and afterwards to the last site acted on.
// Bonds within the acted sites are truncated to m.Chi.
func (m *MPS) Apply(mpo []*tensor.Dense, left int) error {
	if left < 0 || left+len(mpo) > len(m.Sites) || len(mpo) == 0 {
		return qcirc.Errorf(qcirc.Evolution, qcirc.ChainRange, "operator on [%d, %d), %d sites", left, left+len(mpo), len(m.Sites))
	}
	for i, w := range mpo {
		ws := w.Shape()
		if len(ws) != 4 || ws[mpoDownAxis] != m.Sites[left+i].Shape()[mpsUpAxis] {
			return qcirc.Errorf(qcirc.Evolution, qcirc.ShapeMismatch, "operator %d %v", i, ws)
		}
	}
	if err := m.CenterOrthogonalize(left, m.Chi, m.Normalize); err != nil {
		return errors.Wrap(err, "")
	}

	for i, w := range mpo {
		site := m.Sites[left+i]

		// wm is of shape {mpoLeft, mpoRight, mpoUp, mpsLeft, mpsRight}.
		wm := tensor.Contract(tensor.Zeros(1), w, site, [][2]int{{mpoDownAxis, mpsUpAxis}})
		ws, ss := w.Shape(), site.Shape()

		// Merge the left and right bonds.
		merged := resetCopy(tensor.Zeros(1), wm.Transpose(0, 3, 2, 1, 4))
		m.Sites[left+i] = merged.Reshape(ws[mpoLeftAxis]*ss[mpsLeftAxis], ws[mpoUpAxis], ws[mpoRightAxis]*ss[mpsRightAxis])
	}

	// Sites in [left, right] are no longer orthonormal.
	// Restore the form without truncation, then truncate sweeping left, where every bond is cut at its Schmidt values.
	right := left + len(mpo) - 1
	m.Center = left
	if err := m.CenterOrthogonalize(right, 0, false); err != nil {
		return errors.Wrap(err, "")
	}
	if err := m.CenterOrthogonalize(left, m.Chi, m.Normalize); err != nil {
		return errors.Wrap(err, "")
	}
	if err := m.CenterOrthogonalize(right, 0, m.Normalize); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Dense returns the amplitudes of m.
func (m *MPS) Dense() []complex64 {
	p := product(tensor.Zeros(1), m.Sites, tensor.Zeros(1))
	return p.Reshape(1, -1).ToSlice2()[0]
}

// Norm returns the norm of m.
func (m *MPS) Norm() float64 {
	ip := InnerProduct(m.Sites, m.Sites, [2]*tensor.Dense(newBufs(2)))
	return math.Sqrt(math.Max(float64(real(ip)), 0))
}

// Expectation returns <m|mpo|m> / <m|m>.
func (m *MPS) Expectation(mpo []*tensor.Dense) (complex64, error) {
	if len(mpo) != len(m.Sites) {
		return 0, qcirc.Errorf(qcirc.Evolution, qcirc.ChainRange, "operator of %d sites, %d sites", len(mpo), len(m.Sites))
	}
	bufs := [2]*tensor.Dense(newBufs(2))
	norm2 := InnerProduct(m.Sites, m.Sites, bufs)
	if abs(norm2) < epsilon {
		return 0, errors.Errorf("%f", norm2)
	}
	fs := newBufs(len(mpo))
	return LExpressions(fs, mpo, m.Sites, bufs) / norm2, nil
}

// Variance returns <mpo^2> - <mpo>^2.
func (m *MPS) Variance(mpo []*tensor.Dense) (complex64, error) {
	e, err := m.Expectation(mpo)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	bufs := [2]*tensor.Dense(newBufs(2))
	norm2 := InnerProduct(m.Sites, m.Sites, bufs)
	h2 := H2(mpo, m.Sites, bufs) / norm2
	return h2 - e*e, nil
}

func (m *MPS) String() string {
	ss := make([]string, 0, len(m.Sites))
	for _, s := range m.Sites {
		ss = append(ss, format(s))
	}
	return fmt.Sprintf("center %d chi %d %s", m.Center, m.Chi, strings.Join(ss, " "))
}

// InnerProduct computes the inner product between x and y.
// See Section 4.2.1 Efficient evaluation of contractions, Ulrich Schollwock.
func InnerProduct(x, y []*tensor.Dense, bufs [2]*tensor.Dense) complex64 {
	if len(x) != len(y) {
		panic(fmt.Sprintf("%d %d", len(x), len(y)))
	}

	f := ones(bufs[0], 1, 1)
	const fTopAxis, fBottomAxis = 0, 1
	for i, xi := range x {
		yi := y[i]

		fyi := tensor.Contract(bufs[1], f, yi, [][2]int{{fBottomAxis, mpsLeftAxis}})
		tensor.Contract(f, xi.Conj(), fyi, [][2]int{{mpsLeftAxis, fTopAxis}, {mpsUpAxis, mpsUpAxis}})
	}

	if !slices.Equal(f.Shape(), []int{1, 1}) {
		panic(fmt.Sprintf("%#v", f.Shape()))
	}
	return f.At(0, 0)
}

// LExpressions returns the L expressions defined in Equation 192, Section 6.2 Applying a Hamiltonian MPO to a mixed canonical state, Ulrich Schollwock.
// See Figure 38, Ulrich Schollwock for a graphical explanation.
func LExpressions(fs, ws, ms []*tensor.Dense, bufs [2]*tensor.Dense) complex64 {
	if len(fs) != len(ws) {
		panic(fmt.Sprintf("%d %d", len(fs), len(ws)))
	}
	if len(ws) != len(ms) {
		panic(fmt.Sprintf("%d %d", len(ws), len(ms)))
	}

	fi1 := ones(tensor.Zeros(1), 1, 1, 1)
	for i, w := range ws {
		m := ms[i]
		fi1 = lExpression(fs[i], fi1, w, m, bufs[:])
	}

	if !slices.Equal(fi1.Shape(), []int{1, 1, 1}) {
		panic(fmt.Sprintf("%#v", fi1.Shape()))
	}
	return fi1.At(0, 0, 0)
}

func lExpression(fi, fi1, w, m *tensor.Dense, bufs []*tensor.Dense) *tensor.Dense {
	// fi1 is of shape {fTop, fMid, fBot}.
	// fm is of shape {fTop, fMid, mpsTop, mpsRight}.
	fm := tensor.Contract(bufs[0], fi1, m, [][2]int{{2, mpsLeftAxis}})

	// wfm is of shape {mpoRight, mpoUp, fTop, mpsRight}.
	wfm := tensor.Contract(bufs[1], w, fm, [][2]int{{mpoDownAxis, 2}, {mpoLeftAxis, 1}})

	// fi is of shape {mpsRight.conj, mpoRight, mpsRight}.
	tensor.Contract(fi, m.Conj(), wfm, [][2]int{{mpsLeftAxis, 2}, {mpsUpAxis, 1}})

	return fi
}

// H2 returns <psi|H^2|psi>.
// See Figure 44, Section 6.4 Conventional DMRG in MPS language: the subtle differences, Ulrich Schollwock for a graphical explanation.
func H2(ws, ms []*tensor.Dense, bufs [2]*tensor.Dense) complex64 {
	if len(ws) != len(ms) {
		panic(fmt.Sprintf("%d %d", len(ws), len(ms)))
	}

	// fi1 is the F expression at site i-1, and is of shape {fTop, fMid2, fMid, fBot}.
	fi1 := ones(tensor.Zeros(1), 1, 1, 1, 1)
	for i, w := range ws {
		m := ms[i]

		// fm is of shape {fTop, fMid2, fMid, mpsTop, mpsRight}.
		fm := tensor.Contract(bufs[1], fi1, m, [][2]int{{3, mpsLeftAxis}})

		// wfm is of shape {mpoRight, mpoUp, fTop, fMid2, mpsRight}.
		wfm := tensor.Contract(bufs[0], w, fm, [][2]int{{mpoDownAxis, 3}, {mpoLeftAxis, 2}})

		// wwfm is of shape {mpoRight2, mpoUp2, mpoRight, fTop, mpsRight}.
		wwfm := tensor.Contract(bufs[1], w, wfm, [][2]int{{mpoDownAxis, 1}, {mpoLeftAxis, 3}})

		// fi1 is of shape {mpsRight.conj, mpoRight2, mpoRight, mpsRight}.
		fi1 = tensor.Contract(bufs[0], m.Conj(), wwfm, [][2]int{{mpsLeftAxis, 3}, {mpsUpAxis, 1}})
	}

	if !slices.Equal(fi1.Shape(), []int{1, 1, 1, 1}) {
		panic(fmt.Sprintf("%#v", fi1.Shape()))
	}
	return fi1.At(0, 0, 0, 0)
}

// rightNormalize normalizes a MPS site from the right.
// See Section 4.4.2 Generation of a right-canonical MPS, Ulrich Schollwock.
func rightNormalize(ms []*tensor.Dense, i int, bufs []*tensor.Dense) {
	s := ms[i].Shape()
	dUp, dRight := s[mpsUpAxis], s[mpsRightAxis]

	// Decompose ms[i] = l @ q.H.
	mi := ms[i].Reshape(s[mpsLeftAxis], dUp*dRight)
	q, lqbufs := bufs[0], [2]*tensor.Dense(bufs[1:])
	l := lq(q, mi, lqbufs)

	// ms[i-1] = ms[i-1] @ l.
	axes := [][2]int{{mpsRightAxis, 0}}
	ms[i-1] = tensor.Contract(tensor.Zeros(1), ms[i-1], l, axes)

	// ms[i] = q.H.
	ms[i] = resetCopy(tensor.Zeros(1), q.H()).Reshape(-1, dUp, dRight)
}

func leftNormalize(ms []*tensor.Dense, i int, bufs []*tensor.Dense) {
	s := ms[i].Shape()
	dLeft, dUp := s[mpsLeftAxis], s[mpsUpAxis]

	// Decompose ms[i] = q @ r.
	mi := ms[i].Reshape(dLeft*dUp, s[mpsRightAxis])
	q, qrbufs := bufs[0], [2]*tensor.Dense(bufs[1:])
	r := tensor.QR(q, mi, qrbufs)

	// ms[i+1] = r @ ms[i+1].
	axes := [][2]int{{1, mpsLeftAxis}}
	ms[i+1] = tensor.Contract(tensor.Zeros(1), r, ms[i+1], axes)

	// ms[i] = q.
	ms[i] = resetCopy(tensor.Zeros(1), q).Reshape(dLeft, dUp, -1)
}

func lq(q, a *tensor.Dense, bufs [2]*tensor.Dense) *tensor.Dense {
	r := tensor.QR(q, a.H(), bufs)
	return r.H()
}

func product(p *tensor.Dense, ms []*tensor.Dense, buf *tensor.Dense) *tensor.Dense {
	if len(ms) == 1 {
		return resetCopy(p, ms[0])
	}

	// mmi is the product of m0 @ m1 @ ... mi.
	var mmi *tensor.Dense

	// Do mmi = mmi @ mi.
	mmiPrev := buf
	resetCopy(mmiPrev, ms[0])
	for _, mi := range ms[1:] {
		if mmiPrev == buf {
			mmi = p
		} else {
			mmi = buf
		}
		axes := [][2]int{{len(mmiPrev.Shape()) - 1, 0}}
		tensor.Contract(mmi, mmiPrev, mi, axes)

		mmiPrev = mmi
	}

	if mmi == buf {
		resetCopy(p, mmi)
	}
	return p
}

func format(a *tensor.Dense) string {
	shapeStrs := make([]string, 0, len(a.Shape()))
	for _, d := range a.Shape() {
		shapeStrs = append(shapeStrs, strconv.Itoa(d))
	}
	shapeS := strings.Join(shapeStrs, ",")

	ss := make([]string, 0)
	for _, v := range a.All() {
		s := fmt.Sprintf("%v", v)
		s = strings.ReplaceAll(s, "i", "j")
		ss = append(ss, s)
	}
	s := strings.Join(ss, ",")

	return fmt.Sprintf("[%s][%s]", shapeS, s)
}

func resetCopy(dst, src *tensor.Dense) *tensor.Dense {
	shape := src.Shape()
	zeroDigit := make([]int, len(shape))
	dst.Reset(shape...).Set(zeroDigit, src)
	return dst
}

func ones(t *tensor.Dense, shape ...int) *tensor.Dense {
	t.Reset(shape...)
	for ijk := range t.All() {
		t.SetAt(ijk, 1)
	}
	return t
}

func newBufs(n int) []*tensor.Dense {
	bufs := make([]*tensor.Dense, 0, n)
	for range n {
		bufs = append(bufs, tensor.Zeros(1))
	}
	return bufs
}

func frobenius(a *tensor.Dense) float64 {
	var s float64
	for _, v := range a.All() {
		av := float64(abs(v))
		s += av * av
	}
	return math.Sqrt(s)
}

func abs(x complex64) float32 {
	return float32(cmplx.Abs(complex128(x)))
}

func randTensor(rng *rand.Rand, shape ...int) *tensor.Dense {
	t := tensor.Zeros(shape...)
	for ijk := range t.All() {
		v := complex(rng.Float32()*2-1, rng.Float32()*2-1)
		t.SetAt(ijk, v)
	}
	return t
}
