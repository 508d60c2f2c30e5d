package state

import (
	"fmt"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/mat"
	"github.com/fumin/qcirc/mps"
	"github.com/pkg/errors"
)

// Expectation returns the expectation value of the Pauli string ps, such as "ZZI", for each batch item of s.
// The first letter acts on qubit 0.
func Expectation(s State, ps string) ([]float64, error) {
	if len(ps) != s.NumQubits() {
		return nil, qcirc.Errorf(qcirc.Evolution, qcirc.ShapeMismatch, "Pauli string %q, %d qubits", ps, s.NumQubits())
	}

	if v, ok := s.(*MPS); ok {
		mpo, err := mps.PauliString(ps)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		es := make([]float64, 0, len(v.chains))
		for _, c := range v.chains {
			e, err := c.Expectation(mpo)
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
			es = append(es, float64(real(e)))
		}
		return es, nil
	}

	op, err := pauliMatrix(ps)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return denseExpectation(s, op), nil
}

// Term is a weighted Pauli string.
type Term struct {
	Coef  float64
	Pauli string
}

// Energy returns the expectation value of the sum of terms for each batch item of s.
func Energy(s State, terms []Term) ([]float64, error) {
	if len(terms) == 0 {
		return nil, qcirc.Errorf(qcirc.Evolution, qcirc.ShapeMismatch, "no terms")
	}
	for _, t := range terms {
		if len(t.Pauli) != s.NumQubits() {
			return nil, qcirc.Errorf(qcirc.Evolution, qcirc.ShapeMismatch, "Pauli string %q, %d qubits", t.Pauli, s.NumQubits())
		}
	}

	if _, ok := s.(*MPS); ok {
		es := make([]float64, s.BatchSize())
		for _, t := range terms {
			te, err := Expectation(s, t.Pauli)
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
			for i, e := range te {
				es[i] += t.Coef * e
			}
		}
		return es, nil
	}

	h, err := pauliMatrix(terms[0].Pauli)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	h.Mul(mat.M([][]complex64{{complex(float32(terms[0].Coef), 0)}}))
	for _, t := range terms[1:] {
		op, err := pauliMatrix(t.Pauli)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		h.Add(complex(float32(t.Coef), 0), op)
	}
	return denseExpectation(s, h), nil
}

func pauliMatrix(ps string) (*mat.COO, error) {
	paulis := make([][][]complex64, 0, len(ps))
	for i := range len(ps) {
		p, ok := mat.Pauli(ps[i])
		if !ok {
			return nil, errors.Errorf("%q at %d in %q", ps[i], i, ps)
		}
		paulis = append(paulis, p)
	}
	return mat.Kron(paulis...), nil
}

// denseExpectation returns <op> for each batch item of the vector or density matrix s.
func denseExpectation(s State, op *mat.COO) []float64 {
	dense := Dense(s)
	es := make([]float64, 0, len(dense))
	for _, amps := range dense {
		switch s.(type) {
		case *Vector:
			var e, norm2 complex64
			for i, a := range op.MulVec(amps) {
				conj := complex(real(amps[i]), -imag(amps[i]))
				e += conj * a
				norm2 += conj * amps[i]
			}
			es = append(es, float64(real(e)/real(norm2)))
		case *DensityMatrix:
			dim := 1 << s.NumQubits()
			rho := make([][]complex64, 0, dim)
			for i := range dim {
				rho = append(rho, amps[i*dim:(i+1)*dim])
			}
			es = append(es, float64(real(op.TraceMul(rho))))
		default:
			panic(fmt.Sprintf("%T", s))
		}
	}
	return es
}
