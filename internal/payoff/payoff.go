// Package payoff computes juror payoff tables for the supported reward
// mechanisms. A table is the 2x2 matrix of (own vote) x (realized outcome)
// payouts, parameterized by the number of other jurors voting X. Tables are
// recomputed per juror per round; they are derived values, never stored.
package payoff

import "fmt"

// Vote identifies one of the two outcomes a juror can vote for. X is the
// coherent (focal) option by convention.
type Vote string

const (
	VoteX Vote = "X"
	VoteY Vote = "Y"
)

// Opposite returns the other vote option.
func (v Vote) Opposite() Vote {
	if v == VoteX {
		return VoteY
	}
	return VoteX
}

// Mechanism selects the reward formula family.
type Mechanism string

const (
	// Basic rewards majority voters a fixed p; minority voters lose their
	// deposit d.
	Basic Mechanism = "Basic"

	// Redistributive splits the losers' deposits plus the reward pool among
	// the winners, so payouts depend on how many others voted the same way.
	Redistributive Mechanism = "Redistributive"

	// Symbiotic scales the reward with coordination: the more jurors vote
	// the same way, the larger each winner's payout.
	Symbiotic Mechanism = "Symbiotic"
)

// Mechanisms lists all supported mechanisms in display order.
func Mechanisms() []Mechanism {
	return []Mechanism{Basic, Redistributive, Symbiotic}
}

// ParseMechanism maps a string to a Mechanism, case-sensitively.
func ParseMechanism(s string) (Mechanism, error) {
	switch Mechanism(s) {
	case Basic, Redistributive, Symbiotic:
		return Mechanism(s), nil
	}
	return "", fmt.Errorf("unknown payoff mechanism %q (want Basic, Redistributive or Symbiotic)", s)
}

// Valid reports whether m is one of the supported mechanisms.
func (m Mechanism) Valid() bool {
	_, err := ParseMechanism(string(m))
	return err == nil
}

// SaturationCap bounds the Redistributive winner payout when its denominator
// degenerates (x = M, i.e. every other juror voted X while the formula is
// evaluated for a Y win). The limiting payout is unbounded; we saturate to a
// large finite value instead of producing +Inf or a runtime fault.
const SaturationCap = 1e9

// Inputs carries the mechanism parameters needed to compute a table.
// Jurors is the total juror count M, including the juror whose table is
// being computed.
type Inputs struct {
	Mechanism Mechanism
	Jurors    int
	Reward    float64 // base reward p
	Deposit   float64 // deposit d
	Epsilon   float64 // bribe amount, only meaningful when Attack is set
	Attack    bool
}

// Table is the full payoff matrix for one juror: own vote crossed with the
// realized (or believed) winning outcome.
type Table struct {
	VoteXWinX float64 // voted X, X won
	VoteXWinY float64 // voted X, Y won
	VoteYWinX float64 // voted Y, X won
	VoteYWinY float64 // voted Y, Y won
}

// Payoff returns the table entry for the given vote and outcome.
func (t Table) Payoff(vote, outcome Vote) float64 {
	switch {
	case vote == VoteX && outcome == VoteX:
		return t.VoteXWinX
	case vote == VoteX && outcome == VoteY:
		return t.VoteXWinY
	case vote == VoteY && outcome == VoteX:
		return t.VoteYWinX
	default:
		return t.VoteYWinY
	}
}

// Compute builds the payoff table for a juror given othersX, the number of
// OTHER jurors (excluding this one) voting or believed to vote X.
//
// othersX outside [0, M-1] is clamped before evaluation; the Redistributive
// Y-win branch additionally saturates at SaturationCap when its denominator
// would reach zero. Under attack the pay(Y, X wins) cell is replaced by the
// bribe payout: the mechanism's pay(X, X wins) value plus epsilon, so a
// bribed minority voter never does worse than a coordinated winner.
func Compute(in Inputs, othersX int) Table {
	m := float64(in.Jurors)
	x := float64(clamp(othersX, 0, in.Jurors-1))

	var t Table
	switch in.Mechanism {
	case Redistributive:
		t.VoteXWinX = ((m-x-1)*in.Deposit + m*in.Reward) / (x + 1)
		t.VoteXWinY = -in.Deposit
		t.VoteYWinX = -in.Deposit
		if m-x < 1 {
			t.VoteYWinY = SaturationCap
		} else {
			t.VoteYWinY = (x*in.Deposit + m*in.Reward) / (m - x)
		}
	case Symbiotic:
		t.VoteXWinX = in.Reward * (x + 1) / m
		t.VoteXWinY = -in.Deposit
		t.VoteYWinX = -in.Deposit
		t.VoteYWinY = in.Reward * (m - x) / m
	default: // Basic
		t.VoteXWinX = in.Reward
		t.VoteXWinY = -in.Deposit
		t.VoteYWinX = -in.Deposit
		t.VoteYWinY = in.Reward
	}

	if in.Attack {
		t.VoteYWinX = t.VoteXWinX + in.Epsilon
	}
	return t
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
