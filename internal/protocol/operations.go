package protocol

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/truthstamp/internal/host"
	"github.com/sells-group/truthstamp/internal/model"
	"github.com/sells-group/truthstamp/internal/store"
)

// Bootstrap initializes all three components with admin and binds their
// partner addresses to the configured contract identities.
func (p *Protocol) Bootstrap(ctx context.Context, admin model.Address, params model.ConsensusParams) error {
	_, err := run(ctx, p, "bootstrap", func(ctx context.Context, env *host.Env) (struct{}, error) {
		steps := []func() error{
			func() error { return p.claims.Initialize(ctx, env, admin) },
			func() error { return p.experts.Initialize(ctx, env, admin) },
			func() error { return p.consensus.Initialize(ctx, env, admin, params) },
			func() error { return p.claims.SetReviewConsensus(ctx, env, admin, p.contracts.ReviewConsensus) },
			func() error { return p.claims.SetExpertRegistry(ctx, env, admin, p.contracts.ExpertRegistry) },
			func() error { return p.consensus.SetClaimRegistry(ctx, env, admin, p.contracts.ClaimRegistry) },
			func() error { return p.consensus.SetExpertRegistry(ctx, env, admin, p.contracts.ExpertRegistry) },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	return err
}

// SetPartner rebinds the partner address stored on contract.
func (p *Protocol) SetPartner(ctx context.Context, admin model.Address, contract, partner model.ContractName, addr model.Address) error {
	_, err := run(ctx, p, "set_partner", func(ctx context.Context, env *host.Env) (struct{}, error) {
		switch {
		case contract == model.ContractClaimRegistry && partner == model.ContractExpertRegistry:
			return struct{}{}, p.claims.SetExpertRegistry(ctx, env, admin, addr)
		case contract == model.ContractClaimRegistry && partner == model.ContractReviewConsensus:
			return struct{}{}, p.claims.SetReviewConsensus(ctx, env, admin, addr)
		case contract == model.ContractReviewConsensus && partner == model.ContractClaimRegistry:
			return struct{}{}, p.consensus.SetClaimRegistry(ctx, env, admin, addr)
		case contract == model.ContractReviewConsensus && partner == model.ContractExpertRegistry:
			return struct{}{}, p.consensus.SetExpertRegistry(ctx, env, admin, addr)
		default:
			return struct{}{}, eris.Wrapf(model.ErrValidation, "%s has no %s binding", contract, partner)
		}
	})
	return err
}

// Contract returns the configuration record of a component.
func (p *Protocol) Contract(ctx context.Context, name model.ContractName) (*model.Contract, error) {
	return run(ctx, p, "get_contract", func(ctx context.Context, env *host.Env) (*model.Contract, error) {
		return host.LoadContract(ctx, env, name)
	})
}

// -- claims --

// SubmitClaim records a claim from submitter and returns its id.
func (p *Protocol) SubmitClaim(ctx context.Context, submitter model.Address, text, category string, sources []string) (uint64, error) {
	return run(ctx, p, "submit_claim", func(ctx context.Context, env *host.Env) (uint64, error) {
		return p.claims.SubmitClaim(ctx, env, submitter, text, category, sources)
	})
}

// GetClaim returns a claim, failing with ErrNotFound if it does not exist.
func (p *Protocol) GetClaim(ctx context.Context, id uint64) (*model.Claim, error) {
	return run(ctx, p, "get_claim", func(ctx context.Context, env *host.Env) (*model.Claim, error) {
		c, err := p.claims.GetClaim(ctx, env, id)
		if err == nil && c == nil {
			err = eris.Wrapf(model.ErrNotFound, "claim %d", id)
		}
		return c, err
	})
}

// ListClaims returns up to limit claims after start.
func (p *Protocol) ListClaims(ctx context.Context, start, limit uint64) ([]model.Claim, error) {
	return run(ctx, p, "list_claims", func(ctx context.Context, env *host.Env) ([]model.Claim, error) {
		return p.claims.ListClaims(ctx, env, start, limit)
	})
}

// ClaimCount returns the number of claims.
func (p *Protocol) ClaimCount(ctx context.Context) (uint64, error) {
	return run(ctx, p, "claim_count", func(ctx context.Context, env *host.Env) (uint64, error) {
		return p.claims.ClaimCount(ctx, env)
	})
}

// AddToStakePool tops up a claim's stake pool.
func (p *Protocol) AddToStakePool(ctx context.Context, caller model.Address, id uint64, amount int64) error {
	_, err := run(ctx, p, "add_to_stake_pool", func(ctx context.Context, env *host.Env) (struct{}, error) {
		return struct{}{}, p.claims.AddToStakePool(ctx, env, caller, id, amount)
	})
	return err
}

// -- experts --

// RegisterExpert stakes addr as a new expert.
func (p *Protocol) RegisterExpert(ctx context.Context, addr model.Address, name, bio string, categories []string, stake int64) (bool, error) {
	return run(ctx, p, "register_expert", func(ctx context.Context, env *host.Env) (bool, error) {
		return p.experts.RegisterExpert(ctx, env, addr, name, bio, categories, stake)
	})
}

// GetExpert returns an expert, failing with ErrNotFound if unregistered.
func (p *Protocol) GetExpert(ctx context.Context, addr model.Address) (*model.Expert, error) {
	return run(ctx, p, "get_expert", func(ctx context.Context, env *host.Env) (*model.Expert, error) {
		e, err := p.experts.GetExpert(ctx, env, addr)
		if err == nil && e == nil {
			err = eris.Wrapf(model.ErrNotFound, "expert %s", addr)
		}
		return e, err
	})
}

// ExpertCount returns the number of registered experts.
func (p *Protocol) ExpertCount(ctx context.Context) (uint64, error) {
	return run(ctx, p, "expert_count", func(ctx context.Context, env *host.Env) (uint64, error) {
		return p.experts.ExpertCount(ctx, env)
	})
}

// AddStake deposits more collateral for addr.
func (p *Protocol) AddStake(ctx context.Context, addr model.Address, amount int64) error {
	_, err := run(ctx, p, "add_stake", func(ctx context.Context, env *host.Env) (struct{}, error) {
		return struct{}{}, p.experts.AddStake(ctx, env, addr, amount)
	})
	return err
}

// Accuracy returns an expert's correct-review percentage.
func (p *Protocol) Accuracy(ctx context.Context, addr model.Address) (uint32, error) {
	return run(ctx, p, "accuracy", func(ctx context.Context, env *host.Env) (uint32, error) {
		return p.experts.Accuracy(ctx, env, addr)
	})
}

// -- reviews --

// SubmitReview records an expert's verdict and returns the review id.
func (p *Protocol) SubmitReview(ctx context.Context, expert model.Address, claimID uint64, verdict model.Verdict, reasoning string, confidence uint32, stake int64) (uint64, error) {
	return run(ctx, p, "submit_review", func(ctx context.Context, env *host.Env) (uint64, error) {
		return p.consensus.SubmitReview(ctx, env, expert, claimID, verdict, reasoning, confidence, stake)
	})
}

// GetReview returns a review, failing with ErrNotFound if it does not exist.
func (p *Protocol) GetReview(ctx context.Context, id uint64) (*model.Review, error) {
	return run(ctx, p, "get_review", func(ctx context.Context, env *host.Env) (*model.Review, error) {
		r, err := p.consensus.GetReview(ctx, env, id)
		if err == nil && r == nil {
			err = eris.Wrapf(model.ErrNotFound, "review %d", id)
		}
		return r, err
	})
}

// ClaimReviews returns the reviews of a claim.
func (p *Protocol) ClaimReviews(ctx context.Context, claimID uint64) ([]model.Review, error) {
	return run(ctx, p, "claim_reviews", func(ctx context.Context, env *host.Env) ([]model.Review, error) {
		return p.consensus.ClaimReviews(ctx, env, claimID)
	})
}

// ExpertReviews returns the reviews written by an expert.
func (p *Protocol) ExpertReviews(ctx context.Context, expert model.Address) ([]model.Review, error) {
	return run(ctx, p, "expert_reviews", func(ctx context.Context, env *host.Env) ([]model.Review, error) {
		return p.consensus.ExpertReviews(ctx, env, expert)
	})
}

// ReviewCount returns the number of reviews across all claims.
func (p *Protocol) ReviewCount(ctx context.Context) (uint64, error) {
	return run(ctx, p, "review_count", func(ctx context.Context, env *host.Env) (uint64, error) {
		return p.consensus.ReviewCount(ctx, env)
	})
}

// Consensus returns the consensus of a claim, failing with ErrNotFound
// before it is reached.
func (p *Protocol) Consensus(ctx context.Context, claimID uint64) (*model.ConsensusResult, error) {
	return run(ctx, p, "get_consensus", func(ctx context.Context, env *host.Env) (*model.ConsensusResult, error) {
		c, err := p.consensus.Consensus(ctx, env, claimID)
		if err == nil && c == nil {
			err = eris.Wrapf(model.ErrNotFound, "claim %d: consensus not reached", claimID)
		}
		return c, err
	})
}

// State reports a claim's review lifecycle state.
func (p *Protocol) State(ctx context.Context, claimID uint64) (model.ConsensusState, error) {
	return run(ctx, p, "consensus_state", func(ctx context.Context, env *host.Env) (model.ConsensusState, error) {
		return p.consensus.State(ctx, env, claimID)
	})
}

// DistributeRewards settles a claim's reviews.
func (p *Protocol) DistributeRewards(ctx context.Context, admin model.Address, claimID uint64) (*model.Distribution, error) {
	return run(ctx, p, "distribute_rewards", func(ctx context.Context, env *host.Env) (*model.Distribution, error) {
		return p.consensus.DistributeRewards(ctx, env, admin, claimID)
	})
}

// -- journals --

// Transfers lists journaled transfers.
func (p *Protocol) Transfers(ctx context.Context, filter store.TransferFilter) ([]model.Transfer, error) {
	return run(ctx, p, "list_transfers", func(ctx context.Context, env *host.Env) ([]model.Transfer, error) {
		if filter.ClaimID > 0 && filter.Address == "" && filter.Limit == 0 {
			return p.consensus.Transfers(ctx, env, filter.ClaimID)
		}
		return env.Tx.ListTransfers(ctx, filter)
	})
}

// Events lists committed events.
func (p *Protocol) Events(ctx context.Context, filter store.EventFilter) ([]model.Event, error) {
	return run(ctx, p, "list_events", func(ctx context.Context, env *host.Env) ([]model.Event, error) {
		return env.Tx.ListEvents(ctx, filter)
	})
}

// Migrate applies the store schema.
func (p *Protocol) Migrate(ctx context.Context) error {
	return p.store.Migrate(ctx)
}
