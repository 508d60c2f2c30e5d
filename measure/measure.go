// Package measure samples measurement outcomes from probability distributions.
package measure

import (
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"

	"github.com/fumin/qcirc"
	"github.com/fumin/qcirc/state"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

const probTol = 1e-4

// Counts maps outcome labels to the number of times they were sampled.
type Counts map[string]int

// Total returns the number of shots in c.
func (c Counts) Total() int {
	var n int
	for _, v := range c {
		n += v
	}
	return n
}

// String lists outcomes in label order.
func (c Counts) String() string {
	ss := make([]string, 0, len(c))
	for _, k := range slices.Sorted(maps.Keys(c)) {
		ss = append(ss, fmt.Sprintf("%s:%d", k, c[k]))
	}
	return "{" + strings.Join(ss, " ") + "}"
}

// Config configures a Sampler.
type Config struct {
	Shots int
	// Seed seeds the random number generator, a negative seed picks a random one.
	Seed int64
}

// DefaultConfig returns the default sampling configuration.
func DefaultConfig() Config {
	return Config{Shots: 1024, Seed: -1}
}

// Sampler draws shots from quantum states.
type Sampler struct {
	config Config
	rng    *rand.Rand
}

// NewSampler returns a sampler with the given configuration.
func NewSampler(config Config) *Sampler {
	seed := uint64(config.Seed)
	if config.Seed < 0 {
		seed = rand.Uint64()
	}
	return &Sampler{config: config, rng: rand.New(rand.NewPCG(seed, seed))}
}

// State samples each batch item of s in the computational basis, optionally restricted to wires.
// Labels are bit strings whose first bit is wires[0], or qubit 0 if wires is empty.
func (s *Sampler) State(st state.State, wires ...int) ([]Counts, error) {
	n := st.NumQubits()
	if len(wires) == 0 {
		for i := range n {
			wires = append(wires, i)
		}
	}
	for _, w := range wires {
		if w < 0 || w >= n {
			return nil, qcirc.Errorf(qcirc.Evolution, qcirc.AxisRange, "wire %d, %d qubits", w, n)
		}
	}

	counts := make([]Counts, 0, st.BatchSize())
	for _, probs := range state.Probabilities(st) {
		marginal := Marginal(probs, n, wires)
		c, err := Sample(marginal, Bitstrings(len(wires)), s.config.Shots, s.rng)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		counts = append(counts, c)
	}
	return counts, nil
}

// Sample draws shots outcomes with replacement, where labels[i] has probability probs[i].
// probs is normalized before sampling.
func Sample(probs []float64, labels []string, shots int, rng *rand.Rand) (Counts, error) {
	if len(probs) != len(labels) || len(probs) == 0 {
		return nil, errors.Errorf("%d probabilities, %d labels", len(probs), len(labels))
	}
	if shots < 0 {
		return nil, errors.Errorf("%d shots", shots)
	}
	for i, p := range probs {
		if p < -probTol || math.IsNaN(p) {
			return nil, errors.Errorf("probability %f of %s", p, labels[i])
		}
	}

	cdf := make([]float64, len(probs))
	floats.CumSum(cdf, probs)
	total := cdf[len(cdf)-1]
	if total <= 0 {
		return nil, errors.Errorf("total probability %f", total)
	}

	counts := make(Counts)
	for range shots {
		u := rng.Float64() * total
		i := sort.Search(len(cdf), func(i int) bool { return cdf[i] > u })
		// Floating point error may leave u at the very end.
		i = min(i, len(cdf)-1)
		for probs[i] <= 0 && i > 0 {
			i--
		}
		counts[labels[i]]++
	}
	return counts, nil
}

// Marginal returns the distribution of wires, given the distribution probs over all n qubits.
func Marginal(probs []float64, n int, wires []int) []float64 {
	if len(probs) != 1<<n {
		panic(fmt.Sprintf("%d %d", len(probs), n))
	}
	k := len(wires)
	marginal := make([]float64, 1<<k)
	for b, p := range probs {
		var m int
		for j, w := range wires {
			bit := (b >> (n - 1 - w)) & 1
			m |= bit << (k - 1 - j)
		}
		marginal[m] += p
	}
	return marginal
}

// Bitstrings returns the labels of the 2^n computational basis states, such as "01".
func Bitstrings(n int) []string {
	labels := make([]string, 0, 1<<n)
	for i := range 1 << n {
		labels = append(labels, fmt.Sprintf("%0*b", n, i))
	}
	return labels
}
