package host

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/truthstamp/internal/model"
)

// InitContract creates the configuration record for name. It fails with
// ErrAlreadyInitialized if the record exists.
func InitContract(ctx context.Context, env *Env, name model.ContractName, admin model.Address, params *model.ConsensusParams) error {
	if admin == "" {
		return eris.Wrapf(model.ErrValidation, "%s: admin address required", name)
	}
	existing, err := env.Tx.GetContract(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil {
		return eris.Wrapf(model.ErrAlreadyInitialized, "%s", name)
	}
	return env.Tx.PutContract(ctx, &model.Contract{
		Name:          name,
		Admin:         admin,
		Partners:      map[model.ContractName]model.Address{},
		Params:        params,
		InitializedAt: env.Now,
	})
}

// LoadContract returns the configuration record for name, failing with
// ErrNotFound if the contract was never initialized.
func LoadContract(ctx context.Context, env *Env, name model.ContractName) (*model.Contract, error) {
	c, err := env.Tx.GetContract(ctx, name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, eris.Wrapf(model.ErrNotFound, "%s not initialized", name)
	}
	return c, nil
}

// RequireAdmin loads the record for name and checks that admin both
// authorized the call and is the stored admin.
func RequireAdmin(ctx context.Context, env *Env, name model.ContractName, admin model.Address) (*model.Contract, error) {
	if err := env.RequireAuth(admin); err != nil {
		return nil, err
	}
	c, err := LoadContract(ctx, env, name)
	if err != nil {
		return nil, err
	}
	if c.Admin != admin {
		return nil, eris.Wrapf(model.ErrUnauthorized, "%s is not the %s admin", admin, name)
	}
	return c, nil
}

// BindPartner records addr as the trusted address of partner on the record
// for name. Bindings may be replaced.
func BindPartner(ctx context.Context, env *Env, name model.ContractName, admin model.Address, partner model.ContractName, addr model.Address) error {
	if addr == "" {
		return eris.Wrapf(model.ErrValidation, "%s: empty %s address", name, partner)
	}
	c, err := RequireAdmin(ctx, env, name, admin)
	if err != nil {
		return err
	}
	if c.Partners == nil {
		c.Partners = map[model.ContractName]model.Address{}
	}
	c.Partners[partner] = addr
	return env.Tx.PutContract(ctx, c)
}

// RequirePartner checks that caller authorized the call and is the bound
// partner of the given kind on the record for name.
func RequirePartner(ctx context.Context, env *Env, name model.ContractName, partner model.ContractName, caller model.Address) error {
	if err := env.RequireAuth(caller); err != nil {
		return err
	}
	c, err := LoadContract(ctx, env, name)
	if err != nil {
		return err
	}
	if !c.IsTrustedCaller(partner, caller) {
		return eris.Wrapf(model.ErrUnauthorized, "%s is not the bound %s", caller, partner)
	}
	return nil
}
