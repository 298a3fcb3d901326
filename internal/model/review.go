package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Verdict is the binary outcome of a review or a consensus.
type Verdict string

const (
	VerdictTrue  Verdict = "true"
	VerdictFalse Verdict = "false"
)

// Valid reports whether v is a known verdict.
func (v Verdict) Valid() bool { return v == VerdictTrue || v == VerdictFalse }

// ClaimStatus maps a verdict onto the resolved claim status.
func (v Verdict) ClaimStatus() ClaimStatus {
	if v == VerdictTrue {
		return ClaimStatusTrue
	}
	return ClaimStatusFalse
}

// ParseVerdict accepts "true"/"false" (also "t"/"f", "yes"/"no").
func ParseVerdict(s string) (Verdict, error) {
	switch s {
	case "true", "t", "yes", "TRUE", "True":
		return VerdictTrue, nil
	case "false", "f", "no", "FALSE", "False":
		return VerdictFalse, nil
	}
	return "", eris.Wrapf(ErrValidation, "unknown verdict %q", s)
}

// MaxConfidence is the upper bound of a review's confidence.
const MaxConfidence uint32 = 100

// Review is one expert's stake-backed verdict on one claim.
type Review struct {
	ID          uint64    `json:"id" yaml:"id"`
	ClaimID     uint64    `json:"claim_id" yaml:"claim_id"`
	Expert      Address   `json:"expert" yaml:"expert"`
	Verdict     Verdict   `json:"verdict" yaml:"verdict"`
	Reasoning   string    `json:"reasoning" yaml:"reasoning"`
	Confidence  uint32    `json:"confidence" yaml:"confidence"`
	StakeAmount int64     `json:"stake_amount" yaml:"stake_amount"`
	Rewarded    bool      `json:"rewarded" yaml:"rewarded"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// ConsensusParams are the tunables stored in the review consensus contract.
type ConsensusParams struct {
	MinReviews       uint32 `json:"min_reviews" yaml:"min_reviews" mapstructure:"min_reviews"`
	RewardPercentage uint32 `json:"reward_percentage" yaml:"reward_percentage" mapstructure:"reward_percentage"`
	SlashPercentage  uint32 `json:"slash_percentage" yaml:"slash_percentage" mapstructure:"slash_percentage"`
	CorrectPoints    int64  `json:"correct_points" yaml:"correct_points" mapstructure:"correct_points"`
	IncorrectPoints  int64  `json:"incorrect_points" yaml:"incorrect_points" mapstructure:"incorrect_points"`
}

// DefaultConsensusParams returns the protocol defaults: three reviews for
// consensus, 80% of stake to winners, 10% slash, +10/-20 reputation.
func DefaultConsensusParams() ConsensusParams {
	return ConsensusParams{
		MinReviews:       3,
		RewardPercentage: 80,
		SlashPercentage:  10,
		CorrectPoints:    10,
		IncorrectPoints:  -20,
	}
}

// Validate rejects parameter sets that cannot be settled.
func (p ConsensusParams) Validate() error {
	if p.MinReviews == 0 {
		return eris.Wrap(ErrValidation, "min_reviews must be at least 1")
	}
	if p.RewardPercentage > 100 {
		return eris.Wrapf(ErrValidation, "reward_percentage %d exceeds 100", p.RewardPercentage)
	}
	if p.SlashPercentage > 100 {
		return eris.Wrapf(ErrValidation, "slash_percentage %d exceeds 100", p.SlashPercentage)
	}
	return nil
}

// ConsensusResult is the stake-weighted verdict snapshot for a claim.
type ConsensusResult struct {
	ClaimID              uint64    `json:"claim_id" yaml:"claim_id"`
	FinalVerdict         Verdict   `json:"final_verdict" yaml:"final_verdict"`
	TotalStakeTrue       int64     `json:"total_stake_true" yaml:"total_stake_true"`
	TotalStakeFalse      int64     `json:"total_stake_false" yaml:"total_stake_false"`
	ConfidencePercentage uint32    `json:"confidence_percentage" yaml:"confidence_percentage"`
	IsFinalized          bool      `json:"is_finalized" yaml:"is_finalized"`
	Distributed          bool      `json:"distributed" yaml:"distributed"`
	ComputedAt           time.Time `json:"computed_at" yaml:"computed_at"`
}

// Tally computes the stake-weighted verdict over reviews. True wins only
// with strictly more stake; ties and an empty pool resolve to False.
func Tally(claimID uint64, reviews []Review) (ConsensusResult, error) {
	var stakeTrue, stakeFalse int64
	var err error
	for _, r := range reviews {
		switch r.Verdict {
		case VerdictTrue:
			stakeTrue, err = AddAmount(stakeTrue, r.StakeAmount)
		case VerdictFalse:
			stakeFalse, err = AddAmount(stakeFalse, r.StakeAmount)
		default:
			err = eris.Wrapf(ErrValidation, "review %d has unknown verdict %q", r.ID, r.Verdict)
		}
		if err != nil {
			return ConsensusResult{}, err
		}
	}

	total, err := AddAmount(stakeTrue, stakeFalse)
	if err != nil {
		return ConsensusResult{}, err
	}

	verdict, winning := VerdictFalse, stakeFalse
	if stakeTrue > stakeFalse {
		verdict, winning = VerdictTrue, stakeTrue
	}

	var confidence uint32
	if total > 0 {
		pct, err := MulDiv(winning, 100, total)
		if err != nil {
			return ConsensusResult{}, err
		}
		confidence = uint32(pct)
	}

	return ConsensusResult{
		ClaimID:              claimID,
		FinalVerdict:         verdict,
		TotalStakeTrue:       stakeTrue,
		TotalStakeFalse:      stakeFalse,
		ConfidencePercentage: confidence,
		IsFinalized:          true,
	}, nil
}

// ConsensusState is the per-claim review state machine position.
type ConsensusState string

const (
	StateNoReviews          ConsensusState = "no_reviews"
	StateAccumulating       ConsensusState = "accumulating"
	StateConsensusReached   ConsensusState = "consensus_reached"
	StateRewardsDistributed ConsensusState = "rewards_distributed"
)

// StateOf derives the state from the review count and the stored result.
func StateOf(reviewCount int, result *ConsensusResult) ConsensusState {
	switch {
	case result != nil && result.Distributed:
		return StateRewardsDistributed
	case result != nil:
		return StateConsensusReached
	case reviewCount > 0:
		return StateAccumulating
	default:
		return StateNoReviews
	}
}

// Payout is the settlement of one review during distribution.
type Payout struct {
	ReviewID     uint64  `json:"review_id" yaml:"review_id"`
	Expert       Address `json:"expert" yaml:"expert"`
	Correct      bool    `json:"correct" yaml:"correct"`
	Reward       int64   `json:"reward" yaml:"reward"`
	Slashed      int64   `json:"slashed" yaml:"slashed"`
	PointsChange int64   `json:"points_change" yaml:"points_change"`
}

// Distribution summarizes one distributeRewards call.
type Distribution struct {
	ClaimID           uint64   `json:"claim_id" yaml:"claim_id"`
	FinalVerdict      Verdict  `json:"final_verdict" yaml:"final_verdict"`
	TotalWinningStake int64    `json:"total_winning_stake" yaml:"total_winning_stake"`
	TotalLosingStake  int64    `json:"total_losing_stake" yaml:"total_losing_stake"`
	TotalRewardPool   int64    `json:"total_reward_pool" yaml:"total_reward_pool"`
	Payouts           []Payout `json:"payouts" yaml:"payouts"`
}
