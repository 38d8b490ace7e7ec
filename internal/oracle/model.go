package oracle

import (
	"fmt"
	"math/rand/v2"

	"github.com/kleroscope/kleroscope/internal/juror"
	"github.com/kleroscope/kleroscope/internal/params"
	"github.com/kleroscope/kleroscope/internal/payoff"
)

// Observer receives progress updates while a simulation runs. fraction is in
// [0, 1]. Implementations render however they like; the model knows nothing
// about the caller's UI.
type Observer func(fraction float64, message string)

// OutcomeCounts tallies how many rounds each outcome won.
type OutcomeCounts struct {
	X int
	Y int
}

// Result aggregates a full simulation: per-round histories plus derived
// statistics, with the input parameters echoed for downstream labeling.
// The no-attack fields are populated only when the attack was enabled.
type Result struct {
	Params params.Parameters
	Rounds int
	Seed   uint64

	Outcomes   OutcomeCounts
	HistoryX   []int
	HistoryY   []int
	AvgPayoffX []float64
	AvgPayoffY []float64

	HistoryXNoAttack []int
	HistoryYNoAttack []int

	AverageVotesX float64
	AverageVotesY float64

	// AttackSuccessRate is the percentage-point margin by which the
	// observed Y-win rate exceeds the matched no-attack baseline.
	AttackSuccessRate float64
}

// Model orchestrates repeated voting rounds for one parameter set.
type Model struct {
	p        params.Parameters
	decider  *juror.Model
	baseline *juror.Model // no-attack twin, nil unless p.Attack
}

// New validates p and builds the model. When the attack is enabled a second
// juror model with the bribe stripped is prepared for the counterfactual.
func New(p params.Parameters) (*Model, error) {
	decider, err := juror.NewModel(p)
	if err != nil {
		return nil, err
	}
	m := &Model{p: p, decider: decider}
	if p.Attack {
		m.baseline, err = juror.NewModel(p.WithoutAttack())
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Params returns the parameter set the model was built with.
func (m *Model) Params() params.Parameters { return m.p }

// Run executes rounds voting rounds and returns the aggregated result.
//
// Each round draws from its own RNG seeded deterministically from seed and
// the round index, so identical (parameters, seed) pairs reproduce identical
// histories. When the attack is enabled, every round is replayed from the
// same round seed with the bribe removed: the counterfactual shares the
// underlying randomness and differs only through the payoff change, which
// keeps the attack-success comparison free of independent sampling noise.
//
// obs, when non-nil, is invoked on a throttled subset of rounds and once on
// completion.
func (m *Model) Run(rounds int, seed uint64, obs Observer) (*Result, error) {
	if rounds < 1 {
		return nil, fmt.Errorf("rounds = %d, want >= 1", rounds)
	}

	res := &Result{
		Params:     m.p,
		Rounds:     rounds,
		Seed:       seed,
		HistoryX:   make([]int, 0, rounds),
		HistoryY:   make([]int, 0, rounds),
		AvgPayoffX: make([]float64, 0, rounds),
		AvgPayoffY: make([]float64, 0, rounds),
	}

	notifyEvery := rounds / 100
	if notifyEvery < 1 {
		notifyEvery = 1
	}

	baselineYWins := 0
	for i := 0; i < rounds; i++ {
		roundSeed := DeriveSeed(seed, uint64(i))
		rr := playRound(m.decider, m.p, newRoundRand(roundSeed))

		res.HistoryX = append(res.HistoryX, rr.VotesX)
		res.HistoryY = append(res.HistoryY, rr.VotesY)
		res.AvgPayoffX = append(res.AvgPayoffX, rr.AvgPayoffX)
		res.AvgPayoffY = append(res.AvgPayoffY, rr.AvgPayoffY)
		if rr.Majority == payoff.VoteX {
			res.Outcomes.X++
		} else {
			res.Outcomes.Y++
		}

		if m.baseline != nil {
			br := playRound(m.baseline, m.p.WithoutAttack(), newRoundRand(roundSeed))
			res.HistoryXNoAttack = append(res.HistoryXNoAttack, br.VotesX)
			res.HistoryYNoAttack = append(res.HistoryYNoAttack, br.VotesY)
			if br.Majority == payoff.VoteY {
				baselineYWins++
			}
		}

		if obs != nil && ((i+1)%notifyEvery == 0 || i == rounds-1) {
			obs(float64(i+1)/float64(rounds), fmt.Sprintf("round %d/%d", i+1, rounds))
		}
	}

	res.AverageVotesX = meanInts(res.HistoryX)
	res.AverageVotesY = meanInts(res.HistoryY)
	if m.baseline != nil {
		yRate := float64(res.Outcomes.Y) / float64(rounds)
		baseRate := float64(baselineYWins) / float64(rounds)
		res.AttackSuccessRate = (yRate - baseRate) * 100
	}
	return res, nil
}

// newRoundRand builds the round-local RNG. All of a round's draws (belief
// sampling, perception noise, vote sampling) come from this single stream.
func newRoundRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb))
}

// DeriveSeed maps (base seed, stream index) to an independent seed via a
// SplitMix64 step. Reusing one global seed verbatim across parallel streams
// would correlate their Monte Carlo draws; this keeps them apart.
func DeriveSeed(base, idx uint64) uint64 {
	z := base + (idx+1)*0x9e3779b97f4a7c15
	z ^= z >> 30
	z *= 0xbf58476d1ce4e5b9
	z ^= z >> 27
	z *= 0x94d049bb133111eb
	z ^= z >> 31
	return z
}

func meanInts(vals []int) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}
