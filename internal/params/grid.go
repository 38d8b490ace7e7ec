package params

import (
	"fmt"
	"math"

	"github.com/kleroscope/kleroscope/internal/payoff"
)

// Range describes a swept parameter as an inclusive [Min, Max] interval
// walked in Step increments.
type Range struct {
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Step float64 `yaml:"step" json:"step"`
}

// Expand enumerates the range's concrete values in ascending order. Max is
// included when the walk lands on it within float tolerance; a value past
// Max is never emitted, so a Max that is not a step multiple simply ends
// the range at the last boundary below it.
func (r Range) Expand() ([]float64, error) {
	if r.Step <= 0 {
		return nil, fmt.Errorf("%w: range step = %v, want > 0", ErrInvalidParameter, r.Step)
	}
	if r.Max < r.Min {
		return nil, fmt.Errorf("%w: range max %v < min %v", ErrInvalidParameter, r.Max, r.Min)
	}
	tol := r.Step * 1e-9
	var vals []float64
	for i := 0; ; i++ {
		v := r.Min + float64(i)*r.Step
		if v > r.Max+tol {
			break
		}
		if v > r.Max {
			v = r.Max
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// Grid is the cartesian sweep specification for a batch run: each swept
// parameter carries its ordered concrete values, the rest are fixed.
// Mechanism, attack flag, epsilon and belief-noise are held fixed across
// the sweep.
type Grid struct {
	Jurors      []int
	Reward      []float64
	Deposit     []float64
	Lambda      []float64
	Noise       []float64
	XMean       []float64
	XGuessNoise float64
	Mechanism   payoff.Mechanism
	Attack      bool
	Epsilon     float64
}

// Size returns the number of parameter combinations the grid expands to.
func (g Grid) Size() int {
	return len(g.Jurors) * len(g.Reward) * len(g.Deposit) * len(g.Lambda) * len(g.Noise) * len(g.XMean)
}

// Expand enumerates every combination in a fixed nesting order (jurors
// outermost, then reward, deposit, lambda, noise, x_mean innermost), so two
// expansions of the same grid always produce the same job sequence. Every
// combination is validated; the first invalid one aborts the expansion.
func (g Grid) Expand() ([]Parameters, error) {
	if g.Size() == 0 {
		return nil, fmt.Errorf("%w: grid has an empty axis", ErrInvalidParameter)
	}

	out := make([]Parameters, 0, g.Size())
	for _, m := range g.Jurors {
		for _, p := range g.Reward {
			for _, d := range g.Deposit {
				for _, l := range g.Lambda {
					for _, n := range g.Noise {
						for _, x := range g.XMean {
							prm := Parameters{
								Jurors:      m,
								Reward:      round3(p),
								Deposit:     round3(d),
								Lambda:      round3(l),
								Noise:       round3(n),
								XMean:       round3(x),
								XGuessNoise: g.XGuessNoise,
								Mechanism:   g.Mechanism,
								Attack:      g.Attack,
								Epsilon:     g.Epsilon,
							}
							if err := prm.Validate(); err != nil {
								return nil, fmt.Errorf("grid combination %s: %w", prm, err)
							}
							out = append(out, prm)
						}
					}
				}
			}
		}
	}
	return out, nil
}

// round3 snaps range-walk values to 3 decimals so float step accumulation
// doesn't leak into labels and persisted output.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
