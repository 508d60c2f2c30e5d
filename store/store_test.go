package store

import (
	"context"
	"fmt"
	"math/cmplx"
	"path/filepath"
	"reflect"
	"slices"
	"testing"

	"github.com/fumin/qcirc/measure"
	"github.com/fumin/qcirc/state"
)

func TestState(t *testing.T) {
	t.Parallel()
	s := complex64(complex(0.5, 0))
	v, err := state.FromAmplitudes([][]complex64{
		{s, 0, 0, s * 1i},
		{0, 1, 0, 0},
	}, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	ghz, err := state.FromAmplitudes([][]complex64{{s * 1.4142135, 0, 0, 0, 0, 0, 0, s * 1.4142135}}, 3)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	m, err := state.MPSFromVector(ghz, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	tests := []struct {
		name string
		s    state.State
	}{
		{name: "vector", s: v},
		{name: "density", s: state.Density(v)},
		{name: "mps", s: m},
	}

	db, err := Open(filepath.Join(t.TempDir(), "qcirc.db"))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer db.Close()
	ctx := context.Background()
	for _, test := range tests {
		if err := db.SaveState(ctx, test.name, test.s); err != nil {
			t.Fatalf("%+v", err)
		}
		// Saving twice replaces.
		if err := db.SaveState(ctx, test.name, test.s); err != nil {
			t.Fatalf("%+v", err)
		}
		loaded, err := db.LoadState(ctx, test.name)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if reflect.TypeOf(loaded) != reflect.TypeOf(test.s) {
			t.Fatalf("%s: %T, expected %T", test.name, loaded, test.s)
		}
		if loaded.NumQubits() != test.s.NumQubits() || loaded.BatchSize() != test.s.BatchSize() {
			t.Fatalf("%s: %d qubits batch %d", test.name, loaded.NumQubits(), loaded.BatchSize())
		}
		if d := maxDiff(state.Dense(loaded), state.Dense(test.s)); d > 1e-6 {
			t.Fatalf("%s: %v, expected %v", test.name, state.Dense(loaded), state.Dense(test.s))
		}
	}

	names, err := db.Names(ctx)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !slices.Equal(names, []string{"density", "mps", "vector"}) {
		t.Fatalf("%#v", names)
	}
	if _, err := db.LoadState(ctx, "missing"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCounts(t *testing.T) {
	t.Parallel()
	db, err := Open(filepath.Join(t.TempDir(), "qcirc.db"))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	ctx := context.Background()

	counts := []measure.Counts{{"00": 3, "11": 5}, {"01": 8}}
	if err := db.SaveCounts(ctx, "bell", counts); err != nil {
		t.Fatalf("%+v", err)
	}
	loaded, err := db.LoadCounts(ctx, "bell")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !reflect.DeepEqual(loaded, counts) {
		t.Fatalf("%v, expected %v", loaded, counts)
	}

	// Reopening keeps the data.
	if err := db.Close(); err != nil {
		t.Fatalf("%+v", err)
	}
	reopened, err := Open(db.Path)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer reopened.Close()
	loaded, err = reopened.LoadCounts(ctx, "bell")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if fmt.Sprint(loaded) != fmt.Sprint(counts) {
		t.Fatalf("%v, expected %v", loaded, counts)
	}

	none, err := reopened.LoadCounts(ctx, "none")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if none != nil {
		t.Fatalf("%v", none)
	}
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
