// Package params defines the validated simulation parameter set and the
// parameter-grid expansion used by batch runs. Parameters are plain values:
// once validated they are passed by copy and never mutated.
package params

import (
	"errors"
	"fmt"

	"github.com/kleroscope/kleroscope/internal/payoff"
)

// ErrInvalidParameter wraps every parameter validation failure.
var ErrInvalidParameter = errors.New("invalid simulation parameter")

// Parameters is one complete configuration of the oracle model.
type Parameters struct {
	// Jurors is the number of voting jurors M.
	Jurors int `yaml:"jurors" json:"jurors"`

	// Reward is the base reward p for voting with the majority.
	Reward float64 `yaml:"reward" json:"reward"`

	// Deposit is the stake d forfeited by minority voters.
	Deposit float64 `yaml:"deposit" json:"deposit"`

	// Lambda is the QRE sensitivity. 0 means fully random voting; larger
	// values sharpen choices toward the higher-utility vote.
	Lambda float64 `yaml:"lambda" json:"lambda"`

	// Noise is the spread of the perception noise applied to each payoff
	// a juror observes, in [0, 1].
	Noise float64 `yaml:"noise" json:"noise"`

	// XMean is the focal expected share of other jurors voting X, in [0, 1].
	XMean float64 `yaml:"x_mean" json:"x_mean"`

	// XGuessNoise is the spread of the juror's private belief about the
	// X-vote count, in [0, 1], as a fraction of M-1.
	XGuessNoise float64 `yaml:"x_guess_noise" json:"x_guess_noise"`

	// Mechanism selects the payoff formula family.
	Mechanism payoff.Mechanism `yaml:"mechanism" json:"mechanism"`

	// Attack enables the p+epsilon bribe.
	Attack bool `yaml:"attack" json:"attack"`

	// Epsilon is the bribe amount, only used when Attack is set.
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`
}

// Validate checks every field range. All failures wrap ErrInvalidParameter.
func (p Parameters) Validate() error {
	if p.Jurors < 1 {
		return fmt.Errorf("%w: jurors = %d, want >= 1", ErrInvalidParameter, p.Jurors)
	}
	if p.Reward < 0 {
		return fmt.Errorf("%w: reward = %v, want >= 0", ErrInvalidParameter, p.Reward)
	}
	if p.Deposit < 0 {
		return fmt.Errorf("%w: deposit = %v, want >= 0", ErrInvalidParameter, p.Deposit)
	}
	if p.Epsilon < 0 {
		return fmt.Errorf("%w: epsilon = %v, want >= 0", ErrInvalidParameter, p.Epsilon)
	}
	if p.Lambda < 0 {
		return fmt.Errorf("%w: lambda = %v, want >= 0", ErrInvalidParameter, p.Lambda)
	}
	if p.Noise < 0 || p.Noise > 1 {
		return fmt.Errorf("%w: noise = %v, want in [0, 1]", ErrInvalidParameter, p.Noise)
	}
	if p.XMean < 0 || p.XMean > 1 {
		return fmt.Errorf("%w: x_mean = %v, want in [0, 1]", ErrInvalidParameter, p.XMean)
	}
	if p.XGuessNoise < 0 || p.XGuessNoise > 1 {
		return fmt.Errorf("%w: x_guess_noise = %v, want in [0, 1]", ErrInvalidParameter, p.XGuessNoise)
	}
	if !p.Mechanism.Valid() {
		return fmt.Errorf("%w: mechanism %q", ErrInvalidParameter, p.Mechanism)
	}
	return nil
}

// PayoffInputs returns the payoff-mechanism view of these parameters.
func (p Parameters) PayoffInputs() payoff.Inputs {
	return payoff.Inputs{
		Mechanism: p.Mechanism,
		Jurors:    p.Jurors,
		Reward:    p.Reward,
		Deposit:   p.Deposit,
		Epsilon:   p.Epsilon,
		Attack:    p.Attack,
	}
}

// WithoutAttack returns a copy with the bribe disabled, used for the
// matched no-attack counterfactual.
func (p Parameters) WithoutAttack() Parameters {
	p.Attack = false
	p.Epsilon = 0
	return p
}

func (p Parameters) String() string {
	return fmt.Sprintf("M=%d p=%v d=%v lambda=%v noise=%v x_mean=%v x_guess_noise=%v mech=%s attack=%v eps=%v",
		p.Jurors, p.Reward, p.Deposit, p.Lambda, p.Noise, p.XMean, p.XGuessNoise, p.Mechanism, p.Attack, p.Epsilon)
}
