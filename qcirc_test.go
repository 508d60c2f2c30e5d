package qcirc

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
)

func TestErrorIs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err    error
		target error
		is     bool
		stage  Stage
	}{
		{err: Errorf(Construction, AxisRange, "%d", 3), target: ErrAxisRange, is: true, stage: Construction},
		{err: errors.Wrap(Errorf(Evolution, ChainRange, ""), "apply"), target: ErrChainRange, is: true, stage: Evolution},
		{err: Errorf(Evolution, ShapeMismatch, ""), target: ErrAxisOverlap, is: false, stage: Evolution},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.err), func(t *testing.T) {
			t.Parallel()
			if is := errors.Is(test.err, test.target); is != test.is {
				t.Fatalf("%t, expected %t", is, test.is)
			}
			stage, ok := StageOf(test.err)
			if !ok {
				t.Fatalf("no stage")
			}
			if stage != test.stage {
				t.Fatalf("%s, expected %s", stage, test.stage)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	t.Parallel()
	err := &Error{Stage: Construction, Rule: AxisOverlap, Detail: "[0] [0]"}
	if err.Error() != "construction: wires overlap controls: [0] [0]" {
		t.Fatalf("%s", err)
	}
}
