package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ExpertLevel is the staking tier of an expert.
type ExpertLevel string

const (
	ExpertLevelGeneral      ExpertLevel = "general"
	ExpertLevelSpecialized  ExpertLevel = "specialized"
	ExpertLevelProfessional ExpertLevel = "professional"
)

// Minimum stakes in stroops. Thresholds are inclusive lower bounds.
const (
	MinStakeGeneral      int64 = 1_000_000_000  // 100 XLM
	MinStakeSpecialized  int64 = 5_000_000_000  // 500 XLM
	MinStakeProfessional int64 = 10_000_000_000 // 1000 XLM
)

// ReputationLevel is the tier derived from reputation points.
type ReputationLevel string

const (
	ReputationSeedling    ReputationLevel = "seedling"
	ReputationSprout      ReputationLevel = "sprout"
	ReputationEstablished ReputationLevel = "established"
	ReputationExpert      ReputationLevel = "expert"
	ReputationMaster      ReputationLevel = "master"
)

// ExpertLevelFor derives the tier for a staked amount. Anything below the
// Specialized threshold is General, which is also the floor for experts
// whose collateral was slashed under the registration minimum.
func ExpertLevelFor(stake int64) ExpertLevel {
	switch {
	case stake >= MinStakeProfessional:
		return ExpertLevelProfessional
	case stake >= MinStakeSpecialized:
		return ExpertLevelSpecialized
	default:
		return ExpertLevelGeneral
	}
}

// RegistrationLevel is ExpertLevelFor with the registration minimum
// enforced.
func RegistrationLevel(stake int64) (ExpertLevel, error) {
	if stake < MinStakeGeneral {
		return "", eris.Wrapf(ErrValidation, "stake amount too low: %d < %d", stake, MinStakeGeneral)
	}
	return ExpertLevelFor(stake), nil
}

// ReputationLevelFor maps points onto the five fixed bands.
func ReputationLevelFor(points int64) ReputationLevel {
	switch {
	case points >= 5000:
		return ReputationMaster
	case points >= 1000:
		return ReputationExpert
	case points >= 500:
		return ReputationEstablished
	case points >= 100:
		return ReputationSprout
	default:
		return ReputationSeedling
	}
}

// Expert is a staked identity entitled to submit reviews.
type Expert struct {
	Address          Address         `json:"address" yaml:"address"`
	Name             string          `json:"name" yaml:"name"`
	Bio              string          `json:"bio" yaml:"bio"`
	Categories       []string        `json:"expertise_categories" yaml:"expertise_categories"`
	StakedAmount     int64           `json:"staked_amount" yaml:"staked_amount"`
	Level            ExpertLevel     `json:"expert_level" yaml:"expert_level"`
	ReputationPoints int64           `json:"reputation_points" yaml:"reputation_points"`
	ReputationLevel  ReputationLevel `json:"reputation_level" yaml:"reputation_level"`
	TotalReviews     uint32          `json:"total_reviews" yaml:"total_reviews"`
	CorrectReviews   uint32          `json:"correct_reviews" yaml:"correct_reviews"`
	TotalEarnings    int64           `json:"total_earnings" yaml:"total_earnings"`
	RegisteredAt     time.Time       `json:"registered_at" yaml:"registered_at"`
}

// Recompute refreshes the derived tiers from their driving fields. Every
// mutation of StakedAmount or ReputationPoints must be followed by it.
func (e *Expert) Recompute() {
	e.Level = ExpertLevelFor(e.StakedAmount)
	e.ReputationLevel = ReputationLevelFor(e.ReputationPoints)
}

// Accuracy returns correct reviews as a floor percentage; 0 with no reviews.
func (e *Expert) Accuracy() uint32 {
	if e.TotalReviews == 0 {
		return 0
	}
	return uint32(uint64(e.CorrectReviews) * 100 / uint64(e.TotalReviews))
}
