package protocol

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/truthstamp/internal/auth"
	"github.com/sells-group/truthstamp/internal/metrics"
	"github.com/sells-group/truthstamp/internal/model"
	"github.com/sells-group/truthstamp/internal/resilience"
	"github.com/sells-group/truthstamp/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

const (
	admin model.Address = "admin"
	alice model.Address = "alice"
	bob   model.Address = "bob"
	carol model.Address = "carol"
	dave  model.Address = "dave"
)

var testNow = time.Date(2026, 5, 11, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "protocol.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func as(addrs ...model.Address) context.Context {
	return auth.WithCallers(context.Background(), addrs...)
}

func newTestProtocol(t *testing.T, s store.Store, opts ...Option) *Protocol {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	p := New(s, DefaultContracts(), opts...)
	require.NoError(t, p.Bootstrap(as(admin), admin, model.DefaultConsensusParams()))
	return p
}

// flakyStore fails the first n transactions with a transient error.
type flakyStore struct {
	store.Store
	failures int
	calls    int
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	f.calls++
	if f.calls <= f.failures {
		return resilience.NewTransientError(eris.New("database is locked"))
	}
	return f.Store.WithTx(ctx, fn)
}

func TestBootstrap_BindsPartners(t *testing.T) {
	p := newTestProtocol(t, newTestStore(t))
	ctx := context.Background()

	c, err := p.Contract(ctx, model.ContractClaimRegistry)
	require.NoError(t, err)
	assert.Equal(t, admin, c.Admin)
	addr, ok := c.Partner(model.ContractReviewConsensus)
	require.True(t, ok)
	assert.Equal(t, p.Contracts().ReviewConsensus, addr)

	c, err = p.Contract(ctx, model.ContractReviewConsensus)
	require.NoError(t, err)
	addr, ok = c.Partner(model.ContractExpertRegistry)
	require.True(t, ok)
	assert.Equal(t, p.Contracts().ExpertRegistry, addr)

	err = p.Bootstrap(as(admin), admin, model.DefaultConsensusParams())
	assert.True(t, eris.Is(err, model.ErrAlreadyInitialized))
}

func TestBootstrap_RollsBackAsOneTransaction(t *testing.T) {
	s := newTestStore(t)
	p := New(s, DefaultContracts())

	// Without the admin's authorization the partner bindings fail after the
	// three contracts were initialized in the same transaction.
	err := p.Bootstrap(context.Background(), admin, model.DefaultConsensusParams())
	require.True(t, eris.Is(err, model.ErrUnauthorized))

	_, err = p.Contract(context.Background(), model.ContractClaimRegistry)
	assert.True(t, eris.Is(err, model.ErrNotFound))
}

func TestSetPartner(t *testing.T) {
	p := newTestProtocol(t, newTestStore(t))

	err := p.SetPartner(as(admin), admin, model.ContractExpertRegistry, model.ContractClaimRegistry, "x")
	assert.True(t, eris.Is(err, model.ErrValidation))

	err = p.SetPartner(as(alice), alice, model.ContractClaimRegistry, model.ContractReviewConsensus, "x")
	assert.True(t, eris.Is(err, model.ErrUnauthorized))

	require.NoError(t, p.SetPartner(as(admin), admin, model.ContractClaimRegistry, model.ContractReviewConsensus, "elsewhere"))
	c, err := p.Contract(context.Background(), model.ContractClaimRegistry)
	require.NoError(t, err)
	addr, _ := c.Partner(model.ContractReviewConsensus)
	assert.Equal(t, model.Address("elsewhere"), addr)
}

func TestProtocol_Scenario(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	var seen []model.EventKind
	p := newTestProtocol(t, newTestStore(t),
		WithMetrics(m),
		WithObserver(ObserverFunc(func(ev model.Event) { seen = append(seen, ev.Kind) })),
	)

	id, err := p.SubmitClaim(as(alice), alice, "the dam was finished in 1936", "history", []string{"https://example.org/dam"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	for addr, stake := range map[model.Address]int64{bob: 1_000_000_000, carol: 1_000_000_000, dave: 1_000_000_000} {
		ok, err := p.RegisterExpert(as(addr), addr, string(addr), "", []string{"history"}, stake)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	_, err = p.SubmitReview(as(bob), bob, id, model.VerdictTrue, "reports", 90, 400_000_000)
	require.NoError(t, err)
	_, err = p.SubmitReview(as(carol), carol, id, model.VerdictTrue, "archive", 80, 300_000_000)
	require.NoError(t, err)

	state, err := p.State(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StateAccumulating, state)
	_, err = p.Consensus(context.Background(), id)
	assert.True(t, eris.Is(err, model.ErrNotFound))

	_, err = p.SubmitReview(as(dave), dave, id, model.VerdictFalse, "doubt", 60, 100_000_000)
	require.NoError(t, err)

	res, err := p.Consensus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictTrue, res.FinalVerdict)
	assert.Equal(t, uint32(87), res.ConfidencePercentage)

	c, err := p.GetClaim(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusTrue, c.Status)
	assert.Equal(t, uint32(3), c.ReviewCount)

	dist, err := p.DistributeRewards(as(admin), admin, id)
	require.NoError(t, err)
	require.Len(t, dist.Payouts, 3)

	e, err := p.GetExpert(context.Background(), dave)
	require.NoError(t, err)
	assert.Equal(t, int64(990_000_000), e.StakedAmount)

	acc, err := p.Accuracy(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), acc)

	transfers, err := p.Transfers(context.Background(), store.TransferFilter{ClaimID: id})
	require.NoError(t, err)
	assert.NotEmpty(t, transfers)

	events, err := p.Events(context.Background(), store.EventFilter{Kind: model.EventRewardsDistributed})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "1", events[0].EntityID)

	assert.Contains(t, seen, model.EventClaimSubmitted)
	assert.Contains(t, seen, model.EventConsensusReached)
	assert.Equal(t, model.EventRewardsDistributed, seen[len(seen)-1])

	n, err := testutil.GatherAndCount(reg, "truthstamp_operations_total")
	require.NoError(t, err)
	assert.Greater(t, n, 10)
	n, err = testutil.GatherAndCount(reg, "truthstamp_events_total")
	require.NoError(t, err)
	assert.Greater(t, n, 5)
}

func TestProtocol_LookupsReportNotFound(t *testing.T) {
	p := newTestProtocol(t, newTestStore(t))
	ctx := context.Background()

	_, err := p.GetClaim(ctx, 9)
	assert.True(t, eris.Is(err, model.ErrNotFound))
	_, err = p.GetExpert(ctx, "nobody")
	assert.True(t, eris.Is(err, model.ErrNotFound))
	_, err = p.GetReview(ctx, 9)
	assert.True(t, eris.Is(err, model.ErrNotFound))

	n, err := p.ClaimCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	list, err := p.ListClaims(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProtocol_FailedOperationPublishesNothing(t *testing.T) {
	var seen []model.Event
	p := newTestProtocol(t, newTestStore(t),
		WithObserver(ObserverFunc(func(ev model.Event) { seen = append(seen, ev) })))

	_, err := p.SubmitClaim(context.Background(), alice, "unsigned", "misc", nil)
	require.True(t, eris.Is(err, model.ErrUnauthorized))
	assert.Empty(t, seen)

	n, err := p.ClaimCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProtocol_RetriesTransientStoreErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	fs := &flakyStore{Store: newTestStore(t)}
	p := newTestProtocol(t, fs,
		WithMetrics(m),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}),
	)

	fs.failures, fs.calls = 2, 0
	id, err := p.SubmitClaim(as(alice), alice, "retried", "misc", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, 3, fs.calls)
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP truthstamp_operation_retries_total Total number of transaction retries after transient store errors
# TYPE truthstamp_operation_retries_total counter
truthstamp_operation_retries_total{operation="submit_claim"} 2
`), "truthstamp_operation_retries_total"))

	fs.failures, fs.calls = 5, 0
	_, err = p.SubmitClaim(as(alice), alice, "gives up", "misc", nil)
	require.Error(t, err)
	assert.Equal(t, 3, fs.calls)
	assert.True(t, resilience.IsTransient(err))
}

func TestProtocol_AddStakeAndTopUp(t *testing.T) {
	p := newTestProtocol(t, newTestStore(t))

	_, err := p.RegisterExpert(as(bob), bob, "Bob", "", nil, 1_000_000_000)
	require.NoError(t, err)
	require.NoError(t, p.AddStake(as(bob), bob, 4_000_000_000))

	e, err := p.GetExpert(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000_000), e.StakedAmount)
	assert.Equal(t, model.ExpertLevelSpecialized, e.Level)

	id, err := p.SubmitClaim(as(alice), alice, "top me up", "misc", nil)
	require.NoError(t, err)
	require.NoError(t, p.AddToStakePool(as(bob), bob, id, 10_000_000))

	c, err := p.GetClaim(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimFee+10_000_000, c.StakePool)

	n, err := p.ExpertCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}
