package circuit

import (
	"bytes"
	"log/slog"
	"math"
	"math/cmplx"
	"strings"
	"testing"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/gate"
	"github.com/fumin/qcirc/state"
	"github.com/pkg/errors"
)

func TestUnitary(t *testing.T) {
	t.Parallel()
	c := must(New(2))
	if err := c.Add(must(gate.H(2, 0))); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := c.Add(must(gate.CNOT(2, 0, 1))); err != nil {
		t.Fatalf("%+v", err)
	}
	u, err := c.Unitary()
	if err != nil {
		t.Fatalf("%+v", err)
	}

	s := complex(float32(1/math.Sqrt2), 0)
	expected := [][]complex64{
		{s, 0, s, 0},
		{0, s, 0, s},
		{0, s, 0, -s},
		{s, 0, -s, 0},
	}
	if d := maxDiff(u, expected); d > 1e-6 {
		t.Fatalf("%v, expected %v", u, expected)
	}
	if depth := c.Depth(); depth[0] != 1 || depth[1] != 1 {
		t.Fatalf("%v", depth)
	}
}

func TestSharedParam(t *testing.T) {
	t.Parallel()
	theta := gate.NewParam(0, true)
	ry := must(gate.Ry(2, 0, theta))
	c := must(New(2))
	if err := c.Add(ry); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := c.Add(ry, On(1)); err != nil {
		t.Fatalf("%+v", err)
	}
	if n := c.NumParams(); n != 1 {
		t.Fatalf("%d", n)
	}

	theta.Set(math.Pi)
	y, err := c.Forward(must(state.Zeros(2)))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	probs := state.Probabilities(y)[0]
	if math.Abs(probs[3]-1) > 1e-5 {
		t.Fatalf("%v", probs)
	}
}

func TestControlledBy(t *testing.T) {
	t.Parallel()
	c := must(New(3))
	if err := c.Add(must(gate.X(3, 0)), ControlledBy(1, 2)); err != nil {
		t.Fatalf("%+v", err)
	}
	if controls := c.Ops()[0].Controls(); len(controls) != 2 {
		t.Fatalf("%v", controls)
	}
	v := must(state.FromAmplitudes([][]complex64{{0, 0, 0, 1, 0, 0, 0, 0}}, 3))
	y, err := c.Forward(v)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if p := state.Probabilities(y)[0][7]; math.Abs(p-1) > 1e-6 {
		t.Fatalf("%v", state.Probabilities(y)[0])
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()
	c := must(New(1))
	if err := c.Add(must(gate.Rx(1, 0, gate.NewParam(0, false))), Encode()); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := c.Encode([]float64{math.Pi}); err != nil {
		t.Fatalf("%+v", err)
	}
	y, err := c.Forward(must(state.Zeros(1)))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if p := state.Probabilities(y)[0][1]; math.Abs(p-1) > 1e-6 {
		t.Fatalf("%f", p)
	}

	ys, err := c.ForwardBatch([][]float64{{0}, {math.Pi / 2}}, must(state.Zeros(1)))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if p := state.Probabilities(ys[0])[0][0]; math.Abs(p-1) > 1e-6 {
		t.Fatalf("%f", p)
	}
	if p := state.Probabilities(ys[1])[0][0]; math.Abs(p-0.5) > 1e-6 {
		t.Fatalf("%f", p)
	}

	if err := c.Encode(nil); !errors.Is(err, qcirc.ErrShapeMismatch) {
		t.Fatalf("%+v", err)
	}
}

func TestTrainableEncoder(t *testing.T) {
	t.Parallel()
	c := must(New(1))
	if err := c.Add(must(gate.Rz(1, 0, gate.NewParam(0, true))), Encode()); err != nil {
		t.Fatalf("%+v", err)
	}
	err := c.Encode([]float64{1})
	if !errors.Is(err, qcirc.ErrTrainableEncoder) {
		t.Fatalf("%+v", err)
	}
	if stage, _ := qcirc.StageOf(err); stage != qcirc.Evolution {
		t.Fatalf("%v", stage)
	}

	// A trainable encoder after a non-trainable one leaves both unchanged.
	c = must(New(1))
	p0, p1 := gate.NewParam(0.1, false), gate.NewParam(0.2, true)
	for _, p := range []*gate.Param{p0, p1} {
		if err := c.Add(must(gate.Rx(1, 0, p)), Encode()); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	if err := c.Encode([]float64{5, 6}); !errors.Is(err, qcirc.ErrTrainableEncoder) {
		t.Fatalf("%+v", err)
	}
	if p0.Value() != 0.1 || p1.Value() != 0.2 {
		t.Fatalf("%v %v", p0, p1)
	}
}

func TestDebugWarning(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	c := must(New(1, WithLogger(logger), WithDebug(4)))
	if err := c.Add(must(gate.Phase(1, 0, gate.NewParam(1, false)))); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := c.Add(must(gate.Phase(1, 0, gate.NewParam(16, false)))); err != nil {
		t.Fatalf("%+v", err)
	}
	if _, err := c.Forward(must(state.Zeros(1))); err != nil {
		t.Fatalf("%+v", err)
	}
	if n := strings.Count(buf.String(), "parameter may be too large"); n != 1 {
		t.Fatalf("%d %s", n, buf.String())
	}
}

func TestAddErrors(t *testing.T) {
	t.Parallel()
	c := must(New(2))
	if err := c.Add(must(gate.H(3, 0))); !errors.Is(err, qcirc.ErrShapeMismatch) {
		t.Fatalf("%+v", err)
	}
	if err := c.Add(must(gate.H(2, 0)), On(2)); !errors.Is(err, qcirc.ErrAxisRange) {
		t.Fatalf("%+v", err)
	}
	if err := c.Add(must(gate.CNOT(2, 0, 1)), On(0)); !errors.Is(err, qcirc.ErrAxisOverlap) {
		t.Fatalf("%+v", err)
	}
	if err := c.Append(must(New(3))); !errors.Is(err, qcirc.ErrShapeMismatch) {
		t.Fatalf("%+v", err)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func maxDiff(a, b [][]complex64) float64 {
	var d float64
	for i := range a {
		for j := range a[i] {
			d = max(d, cmplx.Abs(complex128(a[i][j]-b[i][j])))
		}
	}
	return d
}
