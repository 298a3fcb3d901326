// Package claims implements the claim store: submission, lookup, status
// transitions driven by review consensus, and the per-claim stake pool.
package claims

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/truthstamp/internal/host"
	"github.com/sells-group/truthstamp/internal/model"
	"github.com/sells-group/truthstamp/internal/store"
)

const contract = model.ContractClaimRegistry

// Registry is the claim store component. It holds no state of its own;
// everything lives in the Env transaction.
type Registry struct {
	self model.Address
}

// New returns a Registry whose contract identity is self. Fees are
// journaled as transfers to self.
func New(self model.Address) *Registry {
	return &Registry{self: self}
}

// Address returns the contract identity of the registry.
func (r *Registry) Address() model.Address { return r.self }

// Initialize creates the registry configuration with admin as its admin.
func (r *Registry) Initialize(ctx context.Context, env *host.Env, admin model.Address) error {
	return host.InitContract(ctx, env, contract, admin, nil)
}

// SetExpertRegistry binds the trusted expert registry address.
func (r *Registry) SetExpertRegistry(ctx context.Context, env *host.Env, admin, addr model.Address) error {
	return host.BindPartner(ctx, env, contract, admin, model.ContractExpertRegistry, addr)
}

// SetReviewConsensus binds the trusted review consensus address. Only that
// address may change claim status or review counts.
func (r *Registry) SetReviewConsensus(ctx context.Context, env *host.Env, admin, addr model.Address) error {
	return host.BindPartner(ctx, env, contract, admin, model.ContractReviewConsensus, addr)
}

// SubmitClaim records a new claim and charges the submission fee into its
// stake pool.
func (r *Registry) SubmitClaim(ctx context.Context, env *host.Env, submitter model.Address, text, category string, sources []string) (uint64, error) {
	if err := env.RequireAuth(submitter); err != nil {
		return 0, err
	}

	id, err := env.Tx.NextID(ctx, store.CounterClaims)
	if err != nil {
		return 0, err
	}

	if sources == nil {
		sources = []string{}
	}
	c := &model.Claim{
		ID:        id,
		Submitter: submitter,
		Text:      text,
		Category:  category,
		Sources:   sources,
		Status:    model.ClaimStatusPending,
		StakePool: model.ClaimFee,
		CreatedAt: env.Now,
	}
	if err := env.Tx.PutClaim(ctx, c); err != nil {
		return 0, err
	}

	if err := env.Transfer(ctx, model.Transfer{
		Kind:    model.TransferFee,
		From:    submitter,
		To:      r.self,
		Amount:  model.ClaimFee,
		ClaimID: id,
	}); err != nil {
		return 0, err
	}
	if err := env.EmitID(ctx, model.EventClaimSubmitted, id); err != nil {
		return 0, err
	}

	zap.L().Debug("claim submitted",
		zap.Uint64("claim_id", id),
		zap.String("submitter", string(submitter)),
		zap.String("category", category),
	)
	return id, nil
}

// GetClaim returns the claim with the given id, or nil if none exists.
func (r *Registry) GetClaim(ctx context.Context, env *host.Env, id uint64) (*model.Claim, error) {
	return env.Tx.GetClaim(ctx, id)
}

// ClaimCount returns the number of claims ever submitted.
func (r *Registry) ClaimCount(ctx context.Context, env *host.Env) (uint64, error) {
	return env.Tx.Count(ctx, store.CounterClaims)
}

// ListClaims returns claims start+1 through min(start+limit, count).
func (r *Registry) ListClaims(ctx context.Context, env *host.Env, start, limit uint64) ([]model.Claim, error) {
	count, err := r.ClaimCount(ctx, env)
	if err != nil {
		return nil, err
	}
	end := start + limit
	if end < start || end > count {
		end = count
	}
	if start >= end {
		return []model.Claim{}, nil
	}
	return env.Tx.ListClaims(ctx, start, end)
}

// UpdateStatus sets a claim's status. caller must be the bound review
// consensus contract.
func (r *Registry) UpdateStatus(ctx context.Context, env *host.Env, caller model.Address, id uint64, status model.ClaimStatus) error {
	if err := host.RequirePartner(ctx, env, contract, model.ContractReviewConsensus, caller); err != nil {
		return err
	}
	c, err := r.mustGet(ctx, env, id)
	if err != nil {
		return err
	}
	if !c.Status.CanTransition(status) {
		return eris.Wrapf(model.ErrValidation, "claim %d: cannot move from %s to %s", id, c.Status, status)
	}

	c.Status = status
	if err := env.Tx.PutClaim(ctx, c); err != nil {
		return err
	}
	return env.EmitID(ctx, model.EventStatusUpdated, id)
}

// IncrementReviewCount bumps a claim's review count, moving a pending claim
// under review. caller must be the bound review consensus contract.
func (r *Registry) IncrementReviewCount(ctx context.Context, env *host.Env, caller model.Address, id uint64) error {
	if err := host.RequirePartner(ctx, env, contract, model.ContractReviewConsensus, caller); err != nil {
		return err
	}
	c, err := r.mustGet(ctx, env, id)
	if err != nil {
		return err
	}

	if c.ReviewCount == ^uint32(0) {
		return eris.Wrapf(model.ErrArithmetic, "claim %d: review count overflow", id)
	}
	c.ReviewCount++
	if c.Status == model.ClaimStatusPending {
		c.Status = model.ClaimStatusUnderReview
	}
	return env.Tx.PutClaim(ctx, c)
}

// AddToStakePool credits amount to a claim's stake pool. Any authorizing
// caller may top up a pool.
func (r *Registry) AddToStakePool(ctx context.Context, env *host.Env, caller model.Address, id uint64, amount int64) error {
	if err := env.RequireAuth(caller); err != nil {
		return err
	}
	if amount < 0 {
		return eris.Wrapf(model.ErrValidation, "claim %d: negative stake pool amount %d", id, amount)
	}
	c, err := r.mustGet(ctx, env, id)
	if err != nil {
		return err
	}

	pool, err := model.AddAmount(c.StakePool, amount)
	if err != nil {
		return eris.Wrapf(err, "claim %d stake pool", id)
	}
	c.StakePool = pool
	if err := env.Tx.PutClaim(ctx, c); err != nil {
		return err
	}

	if err := env.Transfer(ctx, model.Transfer{
		Kind:    model.TransferPoolTopUp,
		From:    caller,
		To:      r.self,
		Amount:  amount,
		ClaimID: id,
	}); err != nil {
		return err
	}
	return env.EmitID(ctx, model.EventStakePoolIncreased, id)
}

func (r *Registry) mustGet(ctx context.Context, env *host.Env, id uint64) (*model.Claim, error) {
	c, err := env.Tx.GetClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, eris.Wrapf(model.ErrNotFound, "claim %d", id)
	}
	return c, nil
}
