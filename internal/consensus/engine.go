// Package consensus implements review submission, stake-weighted consensus,
// and reward and slash distribution.
package consensus

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/truthstamp/internal/host"
	"github.com/sells-group/truthstamp/internal/model"
	"github.com/sells-group/truthstamp/internal/store"
)

const contract = model.ContractReviewConsensus

// ClaimStore is the part of the claim registry the engine drives.
type ClaimStore interface {
	Address() model.Address
	GetClaim(ctx context.Context, env *host.Env, id uint64) (*model.Claim, error)
	IncrementReviewCount(ctx context.Context, env *host.Env, caller model.Address, id uint64) error
	UpdateStatus(ctx context.Context, env *host.Env, caller model.Address, id uint64, status model.ClaimStatus) error
}

// ExpertStore is the part of the expert registry the engine drives.
type ExpertStore interface {
	Address() model.Address
	IsExpert(ctx context.Context, env *host.Env, addr model.Address) (bool, error)
	UpdateReputation(ctx context.Context, env *host.Env, addr model.Address, delta int64, wasCorrect bool) error
	AddEarnings(ctx context.Context, env *host.Env, addr model.Address, amount int64) error
	SlashStake(ctx context.Context, env *host.Env, addr model.Address, amount int64) (int64, error)
}

// Engine is the review consensus component.
type Engine struct {
	self    model.Address
	claims  ClaimStore
	experts ExpertStore
}

// New returns an Engine with contract identity self that settles against
// the given registries.
func New(self model.Address, claims ClaimStore, experts ExpertStore) *Engine {
	return &Engine{self: self, claims: claims, experts: experts}
}

// Address returns the contract identity of the engine.
func (e *Engine) Address() model.Address { return e.self }

// Initialize creates the engine configuration with admin and params.
func (e *Engine) Initialize(ctx context.Context, env *host.Env, admin model.Address, params model.ConsensusParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	return host.InitContract(ctx, env, contract, admin, &params)
}

// SetClaimRegistry binds the claim registry address.
func (e *Engine) SetClaimRegistry(ctx context.Context, env *host.Env, admin, addr model.Address) error {
	return host.BindPartner(ctx, env, contract, admin, model.ContractClaimRegistry, addr)
}

// SetExpertRegistry binds the expert registry address.
func (e *Engine) SetExpertRegistry(ctx context.Context, env *host.Env, admin, addr model.Address) error {
	return host.BindPartner(ctx, env, contract, admin, model.ContractExpertRegistry, addr)
}

// Params returns the stored consensus parameters.
func (e *Engine) Params(ctx context.Context, env *host.Env) (model.ConsensusParams, error) {
	c, err := host.LoadContract(ctx, env, contract)
	if err != nil {
		return model.ConsensusParams{}, err
	}
	return paramsOf(c), nil
}

func paramsOf(c *model.Contract) model.ConsensusParams {
	if c.Params == nil {
		return model.DefaultConsensusParams()
	}
	return *c.Params
}

// checkPartners verifies that both registries are bound to the components
// this engine settles against.
func (e *Engine) checkPartners(c *model.Contract) error {
	for _, p := range []struct {
		name model.ContractName
		addr model.Address
	}{
		{model.ContractClaimRegistry, e.claims.Address()},
		{model.ContractExpertRegistry, e.experts.Address()},
	} {
		bound, ok := c.Partner(p.name)
		if !ok {
			return eris.Wrapf(model.ErrValidation, "%s not bound", p.name)
		}
		if bound != p.addr {
			return eris.Wrapf(model.ErrValidation, "%s bound to %s, expected %s", p.name, bound, p.addr)
		}
	}
	return nil
}

// SubmitReview records expert's verdict on a claim. Once the claim has at
// least MinReviews reviews, consensus is recomputed and the claim status
// follows it.
func (e *Engine) SubmitReview(ctx context.Context, env *host.Env, expert model.Address, claimID uint64, verdict model.Verdict, reasoning string, confidence uint32, stake int64) (uint64, error) {
	if err := env.RequireAuth(expert); err != nil {
		return 0, err
	}
	if confidence > model.MaxConfidence {
		return 0, eris.Wrapf(model.ErrValidation, "confidence %d must be between 0 and %d", confidence, model.MaxConfidence)
	}
	if stake < 0 {
		return 0, eris.Wrapf(model.ErrValidation, "negative stake %d", stake)
	}
	if !verdict.Valid() {
		return 0, eris.Wrapf(model.ErrValidation, "unknown verdict %q", verdict)
	}

	cfg, err := host.LoadContract(ctx, env, contract)
	if err != nil {
		return 0, err
	}
	if err := e.checkPartners(cfg); err != nil {
		return 0, err
	}
	params := paramsOf(cfg)

	ok, err := e.experts.IsExpert(ctx, env, expert)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, eris.Wrapf(model.ErrNotFound, "expert %s", expert)
	}
	claim, err := e.claims.GetClaim(ctx, env, claimID)
	if err != nil {
		return 0, err
	}
	if claim == nil {
		return 0, eris.Wrapf(model.ErrNotFound, "claim %d", claimID)
	}

	existing, err := env.Tx.GetConsensus(ctx, claimID)
	if err != nil {
		return 0, err
	}
	if existing != nil && existing.Distributed {
		return 0, eris.Wrapf(model.ErrValidation, "claim %d rewards already distributed", claimID)
	}

	reviews, err := env.Tx.ListClaimReviews(ctx, claimID)
	if err != nil {
		return 0, err
	}
	for _, r := range reviews {
		if r.Expert == expert {
			return 0, eris.Wrapf(model.ErrValidation, "expert %s has already reviewed claim %d", expert, claimID)
		}
	}

	id, err := env.Tx.NextID(ctx, store.CounterReviews)
	if err != nil {
		return 0, err
	}
	review := model.Review{
		ID:          id,
		ClaimID:     claimID,
		Expert:      expert,
		Verdict:     verdict,
		Reasoning:   reasoning,
		Confidence:  confidence,
		StakeAmount: stake,
		CreatedAt:   env.Now,
	}
	if err := env.Tx.PutReview(ctx, &review); err != nil {
		return 0, err
	}
	reviews = append(reviews, review)

	self := env.As(e.self)
	if err := e.claims.IncrementReviewCount(ctx, self, e.self, claimID); err != nil {
		return 0, eris.Wrapf(err, "claim %d review count", claimID)
	}
	if err := env.EmitID(ctx, model.EventReviewSubmitted, id); err != nil {
		return 0, err
	}

	if uint64(len(reviews)) >= uint64(params.MinReviews) {
		if err := e.reachConsensus(ctx, self, claimID, reviews); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (e *Engine) reachConsensus(ctx context.Context, env *host.Env, claimID uint64, reviews []model.Review) error {
	result, err := model.Tally(claimID, reviews)
	if err != nil {
		return eris.Wrapf(err, "claim %d consensus", claimID)
	}
	result.ComputedAt = env.Now
	if err := env.Tx.PutConsensus(ctx, &result); err != nil {
		return err
	}
	if err := env.EmitID(ctx, model.EventConsensusReached, claimID); err != nil {
		return err
	}

	zap.L().Info("consensus reached",
		zap.Uint64("claim_id", claimID),
		zap.String("verdict", string(result.FinalVerdict)),
		zap.Uint32("confidence", result.ConfidencePercentage),
		zap.Int("reviews", len(reviews)),
	)
	return e.claims.UpdateStatus(ctx, env, e.self, claimID, result.FinalVerdict.ClaimStatus())
}

// DistributeRewards settles every unsettled review of a claim: correct
// reviewers share the reward pool in proportion to stake, incorrect ones are
// slashed. Settled reviews are skipped, so repeated calls pay nothing.
func (e *Engine) DistributeRewards(ctx context.Context, env *host.Env, admin model.Address, claimID uint64) (*model.Distribution, error) {
	cfg, err := host.RequireAdmin(ctx, env, contract, admin)
	if err != nil {
		return nil, err
	}
	params := paramsOf(cfg)

	result, err := env.Tx.GetConsensus(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, eris.Wrapf(model.ErrNotFound, "claim %d: consensus not reached", claimID)
	}

	reviews, err := env.Tx.ListClaimReviews(ctx, claimID)
	if err != nil {
		return nil, err
	}

	var winning, losing int64
	for _, r := range reviews {
		if r.Verdict == result.FinalVerdict {
			winning, err = model.AddAmount(winning, r.StakeAmount)
		} else {
			losing, err = model.AddAmount(losing, r.StakeAmount)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "claim %d stake totals", claimID)
		}
	}
	total, err := model.AddAmount(winning, losing)
	if err != nil {
		return nil, eris.Wrapf(err, "claim %d stake totals", claimID)
	}
	pool, err := model.MulDiv(total, int64(params.RewardPercentage), 100)
	if err != nil {
		return nil, err
	}
	if winning == 0 {
		return nil, eris.Wrapf(model.ErrArithmetic, "claim %d: no winning stake to divide the pool by", claimID)
	}

	dist := &model.Distribution{
		ClaimID:           claimID,
		FinalVerdict:      result.FinalVerdict,
		TotalWinningStake: winning,
		TotalLosingStake:  losing,
		TotalRewardPool:   pool,
		Payouts:           []model.Payout{},
	}

	self := env.As(e.self)
	for i := range reviews {
		r := &reviews[i]
		if r.Rewarded {
			continue
		}
		payout, err := e.settle(ctx, self, params, r, result.FinalVerdict, pool, winning)
		if err != nil {
			return nil, eris.Wrapf(err, "settle review %d", r.ID)
		}
		r.Rewarded = true
		if err := env.Tx.PutReview(ctx, r); err != nil {
			return nil, err
		}
		dist.Payouts = append(dist.Payouts, payout)
	}

	result.Distributed = true
	if err := env.Tx.PutConsensus(ctx, result); err != nil {
		return nil, err
	}
	if err := env.EmitID(ctx, model.EventRewardsDistributed, claimID); err != nil {
		return nil, err
	}

	zap.L().Info("rewards distributed",
		zap.Uint64("claim_id", claimID),
		zap.Int64("pool", pool),
		zap.Int("payouts", len(dist.Payouts)),
	)
	return dist, nil
}

func (e *Engine) settle(ctx context.Context, env *host.Env, params model.ConsensusParams, r *model.Review, verdict model.Verdict, pool, winning int64) (model.Payout, error) {
	payout := model.Payout{ReviewID: r.ID, Expert: r.Expert, Correct: r.Verdict == verdict}

	if payout.Correct {
		reward, err := model.MulDiv(r.StakeAmount, pool, winning)
		if err != nil {
			return payout, err
		}
		if err := e.experts.AddEarnings(ctx, env, r.Expert, reward); err != nil {
			return payout, err
		}
		if err := env.Transfer(ctx, model.Transfer{
			Kind: model.TransferReward, From: e.self, To: r.Expert, Amount: reward,
			ClaimID: r.ClaimID, ReviewID: r.ID,
		}); err != nil {
			return payout, err
		}
		payout.Reward = reward
		payout.PointsChange = params.CorrectPoints
	} else {
		slash, err := model.MulDiv(r.StakeAmount, int64(params.SlashPercentage), 100)
		if err != nil {
			return payout, err
		}
		actual, err := e.experts.SlashStake(ctx, env, r.Expert, slash)
		if err != nil {
			return payout, err
		}
		if err := env.Transfer(ctx, model.Transfer{
			Kind: model.TransferSlash, From: r.Expert, To: e.self, Amount: actual,
			ClaimID: r.ClaimID, ReviewID: r.ID,
		}); err != nil {
			return payout, err
		}
		payout.Slashed = actual
		payout.PointsChange = params.IncorrectPoints
	}

	if err := e.experts.UpdateReputation(ctx, env, r.Expert, payout.PointsChange, payout.Correct); err != nil {
		return payout, err
	}
	return payout, nil
}

// GetReview returns the review with the given id, or nil.
func (e *Engine) GetReview(ctx context.Context, env *host.Env, id uint64) (*model.Review, error) {
	return env.Tx.GetReview(ctx, id)
}

// ClaimReviews returns a claim's reviews in submission order.
func (e *Engine) ClaimReviews(ctx context.Context, env *host.Env, claimID uint64) ([]model.Review, error) {
	return env.Tx.ListClaimReviews(ctx, claimID)
}

// ExpertReviews returns an expert's reviews in submission order.
func (e *Engine) ExpertReviews(ctx context.Context, env *host.Env, expert model.Address) ([]model.Review, error) {
	return env.Tx.ListExpertReviews(ctx, expert)
}

// Consensus returns the stored consensus for a claim, or nil.
func (e *Engine) Consensus(ctx context.Context, env *host.Env, claimID uint64) (*model.ConsensusResult, error) {
	return env.Tx.GetConsensus(ctx, claimID)
}

// ReviewCount returns the number of reviews across all claims.
func (e *Engine) ReviewCount(ctx context.Context, env *host.Env) (uint64, error) {
	return env.Tx.Count(ctx, store.CounterReviews)
}

// State reports where a claim sits in the review lifecycle.
func (e *Engine) State(ctx context.Context, env *host.Env, claimID uint64) (model.ConsensusState, error) {
	reviews, err := env.Tx.ListClaimReviews(ctx, claimID)
	if err != nil {
		return "", err
	}
	result, err := env.Tx.GetConsensus(ctx, claimID)
	if err != nil {
		return "", err
	}
	return model.StateOf(len(reviews), result), nil
}

// Transfers returns the journaled transfers of a claim.
func (e *Engine) Transfers(ctx context.Context, env *host.Env, claimID uint64) ([]model.Transfer, error) {
	if claimID == 0 {
		return nil, eris.Wrap(model.ErrValidation, "claim id required")
	}
	return env.Tx.ListTransfers(ctx, store.TransferFilter{ClaimID: claimID})
}
