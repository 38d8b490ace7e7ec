// Package juror implements the quantal-response decision model for a single
// juror. Each decision draws a private noisy belief about how the other
// jurors split, prices both vote options under that belief, and samples a
// vote from the resulting softmax probability.
package juror

import (
	"math"
	"math/rand/v2"

	"github.com/kleroscope/kleroscope/internal/params"
	"github.com/kleroscope/kleroscope/internal/payoff"
)

// Decision is the outcome of one juror's choice, with the intermediate
// quantities kept for diagnostics and tests.
type Decision struct {
	Vote      payoff.Vote
	ProbX     float64 // quantal-response probability of voting X
	BelievedX int     // sampled belief: how many others vote X
}

// Model evaluates juror decisions for a fixed parameter set. It holds no
// mutable state; randomness comes from the *rand.Rand passed to Decide, so
// callers control seeding and reproducibility.
type Model struct {
	p params.Parameters
}

// NewModel validates p and returns a decision model for it.
func NewModel(p params.Parameters) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{p: p}, nil
}

// Decide samples one vote.
//
// The juror first guesses x, the number of OTHER jurors voting X, from a
// normal around XMean*(M-1) with spread XGuessNoise*(M-1). The payoff table
// is computed from that belief, each entry is perturbed by independent
// perception noise, and the two votes are priced as expected payoffs with
// the believed X share standing in for the probability that X wins. The
// vote is then a Bernoulli draw on the quantal-response probability.
//
// For the Basic mechanism the table itself does not depend on the belief;
// the belief still weights the expected payoffs, which at the symmetric
// focal point XMean=0.5 leaves the two options priced equally.
func (m *Model) Decide(rng *rand.Rand) Decision {
	believedX := m.sampleBelief(rng)
	table := payoff.Compute(m.p.PayoffInputs(), believedX)

	// Perception noise: each observed payoff entry is distorted
	// independently.
	uXWinX := table.VoteXWinX + rng.NormFloat64()*m.p.Noise
	uXWinY := table.VoteXWinY + rng.NormFloat64()*m.p.Noise
	uYWinX := table.VoteYWinX + rng.NormFloat64()*m.p.Noise
	uYWinY := table.VoteYWinY + rng.NormFloat64()*m.p.Noise

	q := m.believedShare(believedX)
	uX := q*uXWinX + (1-q)*uXWinY
	uY := q*uYWinX + (1-q)*uYWinY

	probX := Probability(m.p.Lambda, uX, uY)

	vote := payoff.VoteY
	if rng.Float64() < probX {
		vote = payoff.VoteX
	}
	return Decision{Vote: vote, ProbX: probX, BelievedX: believedX}
}

// sampleBelief draws the juror's private estimate of how many of the other
// M-1 jurors vote X, clamped to the feasible range.
func (m *Model) sampleBelief(rng *rand.Rand) int {
	others := m.p.Jurors - 1
	if others == 0 {
		return 0
	}
	mean := m.p.XMean * float64(others)
	spread := m.p.XGuessNoise * float64(others)
	guess := int(math.Round(mean + rng.NormFloat64()*spread))
	if guess < 0 {
		return 0
	}
	if guess > others {
		return others
	}
	return guess
}

// believedShare converts the belief count into the juror's subjective
// probability that X ends up winning. A lone juror (M=1) falls back to the
// focal expectation directly.
func (m *Model) believedShare(believedX int) float64 {
	others := m.p.Jurors - 1
	if others == 0 {
		return m.p.XMean
	}
	return float64(believedX) / float64(others)
}

// Probability is the quantal-response choice rule: the softmax of the two
// scaled utilities, restricted to the X component. The max of the scaled
// utilities is subtracted before exponentiating, so large lambda*utility
// cannot overflow. lambda = 0 yields exactly 0.5 regardless of utilities.
func Probability(lambda, uX, uY float64) float64 {
	a := lambda * uX
	b := lambda * uY
	s := math.Max(a, b)
	ea := math.Exp(a - s)
	eb := math.Exp(b - s)
	return ea / (ea + eb)
}
