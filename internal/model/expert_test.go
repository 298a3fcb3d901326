package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpertLevelFor_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stake int64
		want  ExpertLevel
	}{
		{"zero floors to general", 0, ExpertLevelGeneral},
		{"general threshold", MinStakeGeneral, ExpertLevelGeneral},
		{"just below specialized", MinStakeSpecialized - 1, ExpertLevelGeneral},
		{"specialized threshold", MinStakeSpecialized, ExpertLevelSpecialized},
		{"just below professional", MinStakeProfessional - 1, ExpertLevelSpecialized},
		{"professional threshold", MinStakeProfessional, ExpertLevelProfessional},
		{"far above", 10 * MinStakeProfessional, ExpertLevelProfessional},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExpertLevelFor(tt.stake))
		})
	}
}

func TestRegistrationLevel_RejectsBelowGeneral(t *testing.T) {
	t.Parallel()

	_, err := RegistrationLevel(MinStakeGeneral - 1)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "stake amount too low")

	level, err := RegistrationLevel(MinStakeGeneral)
	require.NoError(t, err)
	assert.Equal(t, ExpertLevelGeneral, level)
}

func TestReputationLevelFor_Bands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		points int64
		want   ReputationLevel
	}{
		{0, ReputationSeedling},
		{99, ReputationSeedling},
		{100, ReputationSprout},
		{499, ReputationSprout},
		{500, ReputationEstablished},
		{999, ReputationEstablished},
		{1000, ReputationExpert},
		{4999, ReputationExpert},
		{5000, ReputationMaster},
		{1 << 40, ReputationMaster},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ReputationLevelFor(tt.points), "points=%d", tt.points)
	}
}

func TestExpert_Recompute(t *testing.T) {
	t.Parallel()

	e := &Expert{StakedAmount: MinStakeProfessional, ReputationPoints: 700}
	e.Recompute()
	assert.Equal(t, ExpertLevelProfessional, e.Level)
	assert.Equal(t, ReputationEstablished, e.ReputationLevel)

	e.StakedAmount = MinStakeGeneral / 2
	e.ReputationPoints = 0
	e.Recompute()
	assert.Equal(t, ExpertLevelGeneral, e.Level)
	assert.Equal(t, ReputationSeedling, e.ReputationLevel)
}

func TestExpert_Accuracy(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0), (&Expert{}).Accuracy())
	assert.Equal(t, uint32(66), (&Expert{TotalReviews: 3, CorrectReviews: 2}).Accuracy())
	assert.Equal(t, uint32(100), (&Expert{TotalReviews: 4, CorrectReviews: 4}).Accuracy())
}
