// Package oracle runs Schelling-oracle voting rounds: independent juror
// draws, tallying, majority resolution and realized payoffs, plus the
// multi-round model that aggregates histories and statistics.
package oracle

import (
	"math/rand/v2"

	"github.com/kleroscope/kleroscope/internal/juror"
	"github.com/kleroscope/kleroscope/internal/params"
	"github.com/kleroscope/kleroscope/internal/payoff"
)

// RoundResult is the outcome of one voting round.
type RoundResult struct {
	VotesX   int
	VotesY   int
	Majority payoff.Vote

	// AvgPayoffX / AvgPayoffY are the realized payoffs averaged over the
	// jurors who voted X and Y respectively, computed from the actual vote
	// counts and the realized majority. Zero when no juror took that side.
	AvgPayoffX float64
	AvgPayoffY float64
}

// playRound runs M independent juror decisions and settles the round.
//
// Ties resolve to X: Y is the majority only when it strictly outnumbers X.
// This asymmetry favors the focal outcome in even splits and is part of the
// model's contract; win-rate statistics depend on it.
func playRound(m *juror.Model, p params.Parameters, rng *rand.Rand) RoundResult {
	votesX := 0
	for i := 0; i < p.Jurors; i++ {
		if m.Decide(rng).Vote == payoff.VoteX {
			votesX++
		}
	}
	votesY := p.Jurors - votesX

	majority := payoff.VoteX
	if votesY > votesX {
		majority = payoff.VoteY
	}

	// Realized payoffs come from the actual counts, not beliefs. Every
	// juror on the same side faces the same table, so the side average is
	// that single entry.
	res := RoundResult{VotesX: votesX, VotesY: votesY, Majority: majority}
	in := p.PayoffInputs()
	if votesX > 0 {
		res.AvgPayoffX = payoff.Compute(in, votesX-1).Payoff(payoff.VoteX, majority)
	}
	if votesY > 0 {
		res.AvgPayoffY = payoff.Compute(in, votesX).Payoff(payoff.VoteY, majority)
	}
	return res
}
