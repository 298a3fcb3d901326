package experts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/truthstamp/internal/host"
	"github.com/sells-group/truthstamp/internal/model"
	"github.com/sells-group/truthstamp/internal/store"
)

const (
	admin model.Address = "admin"
	bob   model.Address = "bob"
	self  model.Address = "expert-registry"
)

var testNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "experts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func run(s store.Store, fn func(ctx context.Context, env *host.Env) error, callers ...model.Address) error {
	return s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, host.New(tx, testNow, callers...))
	})
}

func registered(t *testing.T, stake int64) (store.Store, *Registry) {
	t.Helper()
	s := newTestStore(t)
	r := New(self)
	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		if err := r.Initialize(ctx, env, admin); err != nil {
			return err
		}
		_, err := r.RegisterExpert(ctx, env, bob, "Bob", "climate scientist", []string{"climate"}, stake)
		return err
	}, bob))
	return s, r
}

func get(t *testing.T, s store.Store, r *Registry) *model.Expert {
	t.Helper()
	var e *model.Expert
	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		var err error
		e, err = r.GetExpert(ctx, env, bob)
		return err
	}))
	require.NotNil(t, e)
	return e
}

func TestRegisterExpert_GeneralSeedling(t *testing.T) {
	s, r := registered(t, model.MinStakeGeneral)

	e := get(t, s, r)
	assert.Equal(t, model.ExpertLevelGeneral, e.Level)
	assert.Equal(t, model.ReputationSeedling, e.ReputationLevel)
	assert.Zero(t, e.ReputationPoints)
	assert.True(t, testNow.Equal(e.RegisteredAt))

	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		n, err := r.ExpertCount(ctx, env)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)

		ok, err := r.IsExpert(ctx, env, bob)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = r.IsExpert(ctx, env, "carol")
		require.NoError(t, err)
		assert.False(t, ok)

		deposits, err := env.Tx.ListTransfers(ctx, store.TransferFilter{Address: bob})
		require.NoError(t, err)
		require.Len(t, deposits, 1)
		assert.Equal(t, model.TransferStakeDeposit, deposits[0].Kind)
		assert.Equal(t, model.MinStakeGeneral, deposits[0].Amount)
		return nil
	}))
}

func TestRegisterExpert_Levels(t *testing.T) {
	tests := []struct {
		stake int64
		want  model.ExpertLevel
	}{
		{model.MinStakeSpecialized, model.ExpertLevelSpecialized},
		{model.MinStakeProfessional, model.ExpertLevelProfessional},
	}
	for _, tt := range tests {
		s, r := registered(t, tt.stake)
		assert.Equal(t, tt.want, get(t, s, r).Level)
	}
}

func TestRegisterExpert_Rejections(t *testing.T) {
	s, r := registered(t, model.MinStakeGeneral)

	err := run(s, func(ctx context.Context, env *host.Env) error {
		_, err := r.RegisterExpert(ctx, env, bob, "Bob", "", nil, model.MinStakeGeneral)
		return err
	}, bob)
	assert.True(t, eris.Is(err, model.ErrAlreadyRegistered))

	err = run(s, func(ctx context.Context, env *host.Env) error {
		_, err := r.RegisterExpert(ctx, env, "carol", "Carol", "", nil, model.MinStakeGeneral-1)
		return err
	}, "carol")
	assert.True(t, eris.Is(err, model.ErrValidation))
	assert.Contains(t, err.Error(), "stake amount too low")

	err = run(s, func(ctx context.Context, env *host.Env) error {
		_, err := r.RegisterExpert(ctx, env, "carol", "Carol", "", nil, model.MinStakeGeneral)
		return err
	})
	assert.True(t, eris.Is(err, model.ErrUnauthorized))
}

func TestUpdateReputation_FloorClamp(t *testing.T) {
	s, r := registered(t, model.MinStakeGeneral)

	apply := func(delta int64, correct bool) {
		require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
			return r.UpdateReputation(ctx, env, bob, delta, correct)
		}))
	}

	apply(10, true)
	apply(-20, false)
	e := get(t, s, r)
	assert.Zero(t, e.ReputationPoints)
	assert.Equal(t, uint32(2), e.TotalReviews)
	assert.Equal(t, uint32(1), e.CorrectReviews)

	apply(150, true)
	e = get(t, s, r)
	assert.Equal(t, int64(150), e.ReputationPoints)
	assert.Equal(t, model.ReputationSprout, e.ReputationLevel)

	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		acc, err := r.Accuracy(ctx, env, bob)
		require.NoError(t, err)
		assert.Equal(t, uint32(66), acc)
		return nil
	}))
}

func TestUpdateReputation_UnknownExpert(t *testing.T) {
	s, r := registered(t, model.MinStakeGeneral)

	err := run(s, func(ctx context.Context, env *host.Env) error {
		return r.UpdateReputation(ctx, env, "ghost", 10, true)
	})
	assert.True(t, eris.Is(err, model.ErrNotFound))
}

func TestAddEarnings(t *testing.T) {
	s, r := registered(t, model.MinStakeGeneral)

	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		return r.AddEarnings(ctx, env, bob, 1_234)
	}))
	assert.Equal(t, int64(1_234), get(t, s, r).TotalEarnings)

	err := run(s, func(ctx context.Context, env *host.Env) error {
		return r.AddEarnings(ctx, env, bob, -1)
	})
	assert.True(t, eris.Is(err, model.ErrValidation))
}

func TestSlashStake_CapsAndFloorsLevel(t *testing.T) {
	s, r := registered(t, model.MinStakeSpecialized)

	var actual int64
	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		var err error
		actual, err = r.SlashStake(ctx, env, bob, 1)
		return err
	}))
	assert.Equal(t, int64(1), actual)
	e := get(t, s, r)
	assert.Equal(t, model.MinStakeSpecialized-1, e.StakedAmount)
	assert.Equal(t, model.ExpertLevelGeneral, e.Level)

	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		var err error
		actual, err = r.SlashStake(ctx, env, bob, 10*model.MinStakeProfessional)
		return err
	}))
	assert.Equal(t, model.MinStakeSpecialized-1, actual)
	e = get(t, s, r)
	assert.Zero(t, e.StakedAmount)
	assert.Equal(t, model.ExpertLevelGeneral, e.Level)
}

func TestAddStake_Promotes(t *testing.T) {
	s, r := registered(t, model.MinStakeGeneral)

	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		return r.AddStake(ctx, env, bob, model.MinStakeProfessional)
	}, bob))
	e := get(t, s, r)
	assert.Equal(t, model.ExpertLevelProfessional, e.Level)
	assert.Equal(t, model.MinStakeGeneral+model.MinStakeProfessional, e.StakedAmount)

	err := run(s, func(ctx context.Context, env *host.Env) error {
		return r.AddStake(ctx, env, bob, 1)
	})
	assert.True(t, eris.Is(err, model.ErrUnauthorized))
}
