package model

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rv(verdict Verdict, stake int64) Review {
	return Review{Verdict: verdict, StakeAmount: stake}
}

func TestTally_MajorityStake(t *testing.T) {
	t.Parallel()

	res, err := Tally(1, []Review{
		rv(VerdictTrue, 2_000_000_000),
		rv(VerdictTrue, 1_500_000_000),
		rv(VerdictFalse, 500_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, VerdictTrue, res.FinalVerdict)
	assert.Equal(t, int64(3_500_000_000), res.TotalStakeTrue)
	assert.Equal(t, int64(500_000_000), res.TotalStakeFalse)
	assert.Equal(t, uint32(87), res.ConfidencePercentage)
	assert.True(t, res.IsFinalized)
	assert.Equal(t, uint64(1), res.ClaimID)
}

func TestTally_TieGoesToFalse(t *testing.T) {
	t.Parallel()

	res, err := Tally(7, []Review{
		rv(VerdictTrue, 1_000),
		rv(VerdictFalse, 600),
		rv(VerdictFalse, 400),
	})
	require.NoError(t, err)
	assert.Equal(t, VerdictFalse, res.FinalVerdict)
	assert.Equal(t, uint32(50), res.ConfidencePercentage)
}

func TestTally_ZeroStake(t *testing.T) {
	t.Parallel()

	res, err := Tally(2, []Review{rv(VerdictTrue, 0), rv(VerdictTrue, 0)})
	require.NoError(t, err)
	assert.Equal(t, VerdictFalse, res.FinalVerdict)
	assert.Equal(t, uint32(0), res.ConfidencePercentage)
}

func TestTally_Overflow(t *testing.T) {
	t.Parallel()

	_, err := Tally(3, []Review{rv(VerdictTrue, math.MaxInt64), rv(VerdictTrue, 1)})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrArithmetic))
}

func TestTally_UnknownVerdict(t *testing.T) {
	t.Parallel()

	_, err := Tally(3, []Review{{ID: 9, Verdict: "maybe", StakeAmount: 1}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrValidation))
}

func TestClaimStatus_CanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to ClaimStatus
		want     bool
	}{
		{ClaimStatusPending, ClaimStatusUnderReview, true},
		{ClaimStatusPending, ClaimStatusTrue, false},
		{ClaimStatusPending, ClaimStatusFalse, false},
		{ClaimStatusPending, ClaimStatusPending, false},
		{ClaimStatusUnderReview, ClaimStatusUnderReview, false},
		{ClaimStatusUnderReview, ClaimStatusFalse, true},
		{ClaimStatusTrue, ClaimStatusFalse, true},
		{ClaimStatusTrue, ClaimStatusTrue, true},
		{ClaimStatusTrue, ClaimStatusUnderReview, false},
		{ClaimStatusFalse, ClaimStatusPending, false},
		{ClaimStatusUnderReview, ClaimStatusPending, false},
		{ClaimStatusPending, "archived", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStateOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StateNoReviews, StateOf(0, nil))
	assert.Equal(t, StateAccumulating, StateOf(2, nil))
	assert.Equal(t, StateConsensusReached, StateOf(3, &ConsensusResult{}))
	assert.Equal(t, StateRewardsDistributed, StateOf(3, &ConsensusResult{Distributed: true}))
}

func TestConsensusParams_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConsensusParams().Validate())

	p := DefaultConsensusParams()
	p.MinReviews = 0
	assert.True(t, eris.Is(p.Validate(), ErrValidation))

	p = DefaultConsensusParams()
	p.RewardPercentage = 101
	assert.True(t, eris.Is(p.Validate(), ErrValidation))

	p = DefaultConsensusParams()
	p.SlashPercentage = 200
	assert.True(t, eris.Is(p.Validate(), ErrValidation))
}

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	v, err := ParseVerdict("true")
	require.NoError(t, err)
	assert.Equal(t, VerdictTrue, v)

	v, err = ParseVerdict("no")
	require.NoError(t, err)
	assert.Equal(t, VerdictFalse, v)

	_, err = ParseVerdict("unsure")
	assert.True(t, eris.Is(err, ErrValidation))
}

func TestMulDiv(t *testing.T) {
	t.Parallel()

	// 10e9 * 10e9 overflows int64 before the division.
	got, err := MulDiv(10_000_000_000, 10_000_000_000, 20_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000_000), got)

	_, err = MulDiv(1, 1, 0)
	assert.True(t, eris.Is(err, ErrArithmetic))

	_, err = MulDiv(math.MaxInt64, 4, 2)
	assert.True(t, eris.Is(err, ErrArithmetic))
}

func TestSaturatingAdd(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(math.MaxInt64), SaturatingAdd(math.MaxInt64, 10))
	assert.Equal(t, int64(math.MinInt64), SaturatingAdd(math.MinInt64, -10))
	assert.Equal(t, int64(-10), SaturatingAdd(10, -20))
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(eris.Wrap(ErrNotFound, "claim 4")))
	assert.Equal(t, KindUnauthorized, KindOf(eris.Wrapf(ErrUnauthorized, "caller %s", "x")))
	assert.Equal(t, KindInternal, KindOf(eris.New("disk full")))
}
