package claims

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
	admin     model.Address = "admin"
	alice     model.Address = "alice"
	consensus model.Address = "review-consensus"
	self      model.Address = "claim-registry"
)

var testNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// run executes fn in one transaction with callers authorized.
func run(s store.Store, fn func(ctx context.Context, env *host.Env) error, callers ...model.Address) error {
	return s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, host.New(tx, testNow, callers...))
	})
}

// newInitialized returns a store with the registry initialized and the
// consensus partner bound.
func newInitialized(t *testing.T) (store.Store, *Registry) {
	t.Helper()
	s := newTestStore(t)
	r := New(self)
	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		if err := r.Initialize(ctx, env, admin); err != nil {
			return err
		}
		return r.SetReviewConsensus(ctx, env, admin, consensus)
	}, admin))
	return s, r
}

func submit(t *testing.T, s store.Store, r *Registry) uint64 {
	t.Helper()
	var id uint64
	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		var err error
		id, err = r.SubmitClaim(ctx, env, alice, "water boils at 100C at sea level", "science", []string{"https://example.org"})
		return err
	}, alice))
	return id
}

func TestInitialize_Once(t *testing.T) {
	s, r := newInitialized(t)

	err := run(s, func(ctx context.Context, env *host.Env) error {
		return r.Initialize(ctx, env, admin)
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrAlreadyInitialized))
}

func TestSetPartners_RequireAdmin(t *testing.T) {
	s, r := newInitialized(t)

	tests := []struct {
		name    string
		caller  model.Address
		signers []model.Address
	}{
		{"not signed", admin, nil},
		{"wrong admin", alice, []model.Address{alice}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(s, func(ctx context.Context, env *host.Env) error {
				return r.SetExpertRegistry(ctx, env, tt.caller, "experts")
			}, tt.signers...)
			require.Error(t, err)
			assert.True(t, eris.Is(err, model.ErrUnauthorized))
		})
	}

	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		return r.SetExpertRegistry(ctx, env, admin, "experts")
	}, admin))
}

func TestSetPartner_Uninitialized(t *testing.T) {
	s := newTestStore(t)
	r := New(self)

	err := run(s, func(ctx context.Context, env *host.Env) error {
		return r.SetReviewConsensus(ctx, env, admin, consensus)
	}, admin)
	assert.True(t, eris.Is(err, model.ErrNotFound))
}

func TestSubmitClaim(t *testing.T) {
	s, r := newInitialized(t)

	id := submit(t, s, r)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, uint64(2), submit(t, s, r))

	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		c, err := r.GetClaim(ctx, env, id)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, model.ClaimStatusPending, c.Status)
		assert.Equal(t, model.ClaimFee, c.StakePool)
		assert.Zero(t, c.ReviewCount)
		assert.Equal(t, alice, c.Submitter)
		assert.True(t, testNow.Equal(c.CreatedAt))

		fees, err := env.Tx.ListTransfers(ctx, store.TransferFilter{ClaimID: id})
		require.NoError(t, err)
		require.Len(t, fees, 1)
		assert.Equal(t, model.TransferFee, fees[0].Kind)
		assert.Equal(t, self, fees[0].To)

		events, err := env.Tx.ListEvents(ctx, store.EventFilter{Kind: model.EventClaimSubmitted})
		require.NoError(t, err)
		assert.Len(t, events, 2)
		return nil
	}))
}

func TestSubmitClaim_RequiresAuth(t *testing.T) {
	s, r := newInitialized(t)

	err := run(s, func(ctx context.Context, env *host.Env) error {
		_, err := r.SubmitClaim(ctx, env, alice, "x", "y", nil)
		return err
	})
	assert.True(t, eris.Is(err, model.ErrUnauthorized))

	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		n, err := r.ClaimCount(ctx, env)
		assert.Zero(t, n)
		return err
	}))
}

func TestListClaims_Window(t *testing.T) {
	s, r := newInitialized(t)
	for range 5 {
		submit(t, s, r)
	}

	tests := []struct {
		start, limit uint64
		want         []uint64
	}{
		{0, 2, []uint64{1, 2}},
		{3, 10, []uint64{4, 5}},
		{5, 3, nil},
		{9, 3, nil},
		{0, ^uint64(0), []uint64{1, 2, 3, 4, 5}},
	}
	for _, tt := range tests {
		require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
			got, err := r.ListClaims(ctx, env, tt.start, tt.limit)
			require.NoError(t, err)
			var ids []uint64
			for _, c := range got {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids, "start=%d limit=%d", tt.start, tt.limit)
			return nil
		}))
	}
}

func TestUpdateStatus_TrustedCallerOnly(t *testing.T) {
	s, r := newInitialized(t)
	id := submit(t, s, r)

	err := run(s, func(ctx context.Context, env *host.Env) error {
		return r.UpdateStatus(ctx, env, alice, id, model.ClaimStatusTrue)
	}, alice)
	assert.True(t, eris.Is(err, model.ErrUnauthorized))

	err = run(s, func(ctx context.Context, env *host.Env) error {
		return r.UpdateStatus(ctx, env, consensus, id, model.ClaimStatusTrue)
	})
	assert.True(t, eris.Is(err, model.ErrUnauthorized), "consensus address must also authorize")

	err = run(s, func(ctx context.Context, env *host.Env) error {
		return r.UpdateStatus(ctx, env, consensus, 99, model.ClaimStatusTrue)
	}, consensus)
	assert.True(t, eris.Is(err, model.ErrNotFound))
}

func TestUpdateStatus_NeverRegresses(t *testing.T) {
	s, r := newInitialized(t)
	id := submit(t, s, r)

	set := func(status model.ClaimStatus) error {
		return run(s, func(ctx context.Context, env *host.Env) error {
			return r.UpdateStatus(ctx, env, consensus, id, status)
		}, consensus)
	}

	assert.True(t, eris.Is(set(model.ClaimStatusTrue), model.ErrValidation), "pending claim cannot resolve")
	assert.True(t, eris.Is(set(model.ClaimStatusPending), model.ErrValidation))
	require.NoError(t, set(model.ClaimStatusUnderReview))
	assert.True(t, eris.Is(set(model.ClaimStatusUnderReview), model.ErrValidation))
	require.NoError(t, set(model.ClaimStatusTrue))
	require.NoError(t, set(model.ClaimStatusFalse))
	assert.True(t, eris.Is(set(model.ClaimStatusUnderReview), model.ErrValidation))
	assert.True(t, eris.Is(set(model.ClaimStatusPending), model.ErrValidation))
	assert.True(t, eris.Is(set("archived"), model.ErrValidation))
}

func TestIncrementReviewCount(t *testing.T) {
	s, r := newInitialized(t)
	id := submit(t, s, r)

	for range 2 {
		require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
			return r.IncrementReviewCount(ctx, env, consensus, id)
		}, consensus))
	}

	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		c, err := r.GetClaim(ctx, env, id)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), c.ReviewCount)
		assert.Equal(t, model.ClaimStatusUnderReview, c.Status)
		return nil
	}))

	err := run(s, func(ctx context.Context, env *host.Env) error {
		return r.IncrementReviewCount(ctx, env, alice, id)
	}, alice)
	assert.True(t, eris.Is(err, model.ErrUnauthorized))
}

func TestAddToStakePool(t *testing.T) {
	s, r := newInitialized(t)
	id := submit(t, s, r)

	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		return r.AddToStakePool(ctx, env, "bob", id, 1_000)
	}, "bob"))

	err := run(s, func(ctx context.Context, env *host.Env) error {
		return r.AddToStakePool(ctx, env, "bob", id, -1)
	}, "bob")
	assert.True(t, eris.Is(err, model.ErrValidation))

	err = run(s, func(ctx context.Context, env *host.Env) error {
		return r.AddToStakePool(ctx, env, "bob", id, 1)
	})
	assert.True(t, eris.Is(err, model.ErrUnauthorized))

	require.NoError(t, run(s, func(ctx context.Context, env *host.Env) error {
		c, err := r.GetClaim(ctx, env, id)
		require.NoError(t, err)
		assert.Equal(t, model.ClaimFee+1_000, c.StakePool)

		topups, err := env.Tx.ListTransfers(ctx, store.TransferFilter{Address: "bob"})
		require.NoError(t, err)
		require.Len(t, topups, 1)
		assert.Equal(t, model.TransferPoolTopUp, topups[0].Kind)
		return nil
	}))
}
