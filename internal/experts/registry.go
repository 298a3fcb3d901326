// Package experts implements the expert registry: staked registration,
// reputation accounting, earnings, and stake slashing.
package experts

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/truthstamp/internal/host"
	"github.com/sells-group/truthstamp/internal/model"
	"github.com/sells-group/truthstamp/internal/store"
)

const contract = model.ContractExpertRegistry

// Registry is the expert registry component.
type Registry struct {
	self model.Address
}

// New returns a Registry whose contract identity is self. Stake deposits
// are journaled as transfers to self.
func New(self model.Address) *Registry {
	return &Registry{self: self}
}

// Address returns the contract identity of the registry.
func (r *Registry) Address() model.Address { return r.self }

// Initialize creates the registry configuration with admin as its admin.
func (r *Registry) Initialize(ctx context.Context, env *host.Env, admin model.Address) error {
	return host.InitContract(ctx, env, contract, admin, nil)
}

// RegisterExpert stakes addr as a new expert. The tier is derived from
// stake, which must meet the General minimum.
func (r *Registry) RegisterExpert(ctx context.Context, env *host.Env, addr model.Address, name, bio string, categories []string, stake int64) (bool, error) {
	if err := env.RequireAuth(addr); err != nil {
		return false, err
	}

	existing, err := env.Tx.GetExpert(ctx, addr)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, eris.Wrapf(model.ErrAlreadyRegistered, "expert %s", addr)
	}

	level, err := model.RegistrationLevel(stake)
	if err != nil {
		return false, err
	}

	if categories == nil {
		categories = []string{}
	}
	e := &model.Expert{
		Address:         addr,
		Name:            name,
		Bio:             bio,
		Categories:      categories,
		StakedAmount:    stake,
		Level:           level,
		ReputationLevel: model.ReputationSeedling,
		RegisteredAt:    env.Now,
	}
	if err := env.Tx.PutExpert(ctx, e); err != nil {
		return false, err
	}
	if _, err := env.Tx.NextID(ctx, store.CounterExperts); err != nil {
		return false, err
	}

	if err := env.Transfer(ctx, model.Transfer{
		Kind:   model.TransferStakeDeposit,
		From:   addr,
		To:     r.self,
		Amount: stake,
	}); err != nil {
		return false, err
	}
	if err := env.Emit(ctx, model.EventExpertRegistered, string(addr)); err != nil {
		return false, err
	}

	zap.L().Debug("expert registered",
		zap.String("expert", string(addr)),
		zap.String("level", string(level)),
		zap.Int64("stake", stake),
	)
	return true, nil
}

// GetExpert returns the expert profile for addr, or nil if none exists.
func (r *Registry) GetExpert(ctx context.Context, env *host.Env, addr model.Address) (*model.Expert, error) {
	return env.Tx.GetExpert(ctx, addr)
}

// IsExpert reports whether addr is registered.
func (r *Registry) IsExpert(ctx context.Context, env *host.Env, addr model.Address) (bool, error) {
	e, err := env.Tx.GetExpert(ctx, addr)
	return e != nil, err
}

// ExpertCount returns the number of registered experts.
func (r *Registry) ExpertCount(ctx context.Context, env *host.Env) (uint64, error) {
	return env.Tx.Count(ctx, store.CounterExperts)
}

// UpdateReputation applies delta to the expert's points, clamping at zero,
// and counts one more review, correct or not.
func (r *Registry) UpdateReputation(ctx context.Context, env *host.Env, addr model.Address, delta int64, wasCorrect bool) error {
	e, err := r.mustGet(ctx, env, addr)
	if err != nil {
		return err
	}

	e.ReputationPoints = max(model.SaturatingAdd(e.ReputationPoints, delta), 0)
	if e.TotalReviews == ^uint32(0) {
		return eris.Wrapf(model.ErrArithmetic, "expert %s: review count overflow", addr)
	}
	e.TotalReviews++
	if wasCorrect {
		e.CorrectReviews++
	}
	e.Recompute()

	if err := env.Tx.PutExpert(ctx, e); err != nil {
		return err
	}
	return env.Emit(ctx, model.EventReputationUpdated, string(addr))
}

// AddEarnings credits amount to the expert's lifetime earnings.
func (r *Registry) AddEarnings(ctx context.Context, env *host.Env, addr model.Address, amount int64) error {
	if amount < 0 {
		return eris.Wrapf(model.ErrValidation, "expert %s: negative earnings %d", addr, amount)
	}
	e, err := r.mustGet(ctx, env, addr)
	if err != nil {
		return err
	}

	total, err := model.AddAmount(e.TotalEarnings, amount)
	if err != nil {
		return eris.Wrapf(err, "expert %s earnings", addr)
	}
	e.TotalEarnings = total
	return env.Tx.PutExpert(ctx, e)
}

// SlashStake removes up to amount from the expert's stake and returns what
// was actually removed. The tier is recomputed and floors at General.
func (r *Registry) SlashStake(ctx context.Context, env *host.Env, addr model.Address, amount int64) (int64, error) {
	if amount < 0 {
		return 0, eris.Wrapf(model.ErrValidation, "expert %s: negative slash %d", addr, amount)
	}
	e, err := r.mustGet(ctx, env, addr)
	if err != nil {
		return 0, err
	}

	actual := min(amount, e.StakedAmount)
	e.StakedAmount -= actual
	e.Recompute()
	if err := env.Tx.PutExpert(ctx, e); err != nil {
		return 0, err
	}

	if actual > 0 {
		if err := env.Emit(ctx, model.EventStakeSlashed, string(addr)); err != nil {
			return 0, err
		}
	}
	return actual, nil
}

// AddStake deposits more collateral and recomputes the tier.
func (r *Registry) AddStake(ctx context.Context, env *host.Env, addr model.Address, amount int64) error {
	if err := env.RequireAuth(addr); err != nil {
		return err
	}
	if amount < 0 {
		return eris.Wrapf(model.ErrValidation, "expert %s: negative stake %d", addr, amount)
	}
	e, err := r.mustGet(ctx, env, addr)
	if err != nil {
		return err
	}

	staked, err := model.AddAmount(e.StakedAmount, amount)
	if err != nil {
		return eris.Wrapf(err, "expert %s stake", addr)
	}
	e.StakedAmount = staked
	e.Recompute()
	if err := env.Tx.PutExpert(ctx, e); err != nil {
		return err
	}

	if err := env.Transfer(ctx, model.Transfer{
		Kind:   model.TransferStakeDeposit,
		From:   addr,
		To:     r.self,
		Amount: amount,
	}); err != nil {
		return err
	}
	return env.Emit(ctx, model.EventStakeAdded, string(addr))
}

// Accuracy returns the expert's correct-review percentage.
func (r *Registry) Accuracy(ctx context.Context, env *host.Env, addr model.Address) (uint32, error) {
	e, err := r.mustGet(ctx, env, addr)
	if err != nil {
		return 0, err
	}
	return e.Accuracy(), nil
}

func (r *Registry) mustGet(ctx context.Context, env *host.Env, addr model.Address) (*model.Expert, error) {
	e, err := env.Tx.GetExpert(ctx, addr)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, eris.Wrapf(model.ErrNotFound, "expert %s", addr)
	}
	return e, nil
}
