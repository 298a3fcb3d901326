// Package protocol wires the claim store, expert registry, and review
// consensus components behind one transactional API. Every operation runs
// in a single store transaction, retried on transient store errors, and
// committed events are published to observers afterwards.
package protocol

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/truthstamp/internal/auth"
	"github.com/sells-group/truthstamp/internal/claims"
	"github.com/sells-group/truthstamp/internal/consensus"
	"github.com/sells-group/truthstamp/internal/experts"
	"github.com/sells-group/truthstamp/internal/host"
	"github.com/sells-group/truthstamp/internal/metrics"
	"github.com/sells-group/truthstamp/internal/model"
	"github.com/sells-group/truthstamp/internal/resilience"
	"github.com/sells-group/truthstamp/internal/store"
)

// Contracts holds the identities of the three components.
type Contracts struct {
	ClaimRegistry   model.Address `yaml:"claim_registry" mapstructure:"claim_registry"`
	ExpertRegistry  model.Address `yaml:"expert_registry" mapstructure:"expert_registry"`
	ReviewConsensus model.Address `yaml:"review_consensus" mapstructure:"review_consensus"`
}

// DefaultContracts returns the identities used when none are configured.
func DefaultContracts() Contracts {
	return Contracts{
		ClaimRegistry:   "contract:claim_registry",
		ExpertRegistry:  "contract:expert_registry",
		ReviewConsensus: "contract:review_consensus",
	}
}

// Observer receives committed events.
type Observer interface {
	Observe(ev model.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev model.Event)

// Observe calls f.
func (f ObserverFunc) Observe(ev model.Event) { f(ev) }

// Option configures a Protocol.
type Option func(*Protocol)

// WithMetrics records operation and event metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Protocol) { p.metrics = m }
}

// WithObserver adds an event observer.
func WithObserver(o Observer) Option {
	return func(p *Protocol) { p.observers = append(p.observers, o) }
}

// WithRetry overrides the transaction retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(p *Protocol) { p.retry = cfg }
}

// WithClock overrides the ledger clock.
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) { p.now = now }
}

// Protocol is the transactional facade over the three components.
type Protocol struct {
	store     store.Store
	contracts Contracts

	claims    *claims.Registry
	experts   *experts.Registry
	consensus *consensus.Engine

	retry     resilience.RetryConfig
	metrics   *metrics.Metrics
	observers []Observer
	now       func() time.Time
}

// New builds a Protocol over s.
func New(s store.Store, contracts Contracts, opts ...Option) *Protocol {
	cr := claims.New(contracts.ClaimRegistry)
	er := experts.New(contracts.ExpertRegistry)
	p := &Protocol{
		store:     s,
		contracts: contracts,
		claims:    cr,
		experts:   er,
		consensus: consensus.New(contracts.ReviewConsensus, cr, er),
		retry:     resilience.DefaultRetryConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Contracts returns the component identities.
func (p *Protocol) Contracts() Contracts { return p.contracts }

type outcome[T any] struct {
	val    T
	events []model.Event
}

// run executes fn as operation op in one transaction. Callers recorded on
// ctx with auth.WithCallers authorize the call.
func run[T any](ctx context.Context, p *Protocol, op string, fn func(ctx context.Context, env *host.Env) (T, error)) (T, error) {
	start := time.Now()

	cfg := p.retry
	cfg.OnRetry = func(attempt int, err error) {
		resilience.RetryLogger(op)(attempt, err)
		if p.metrics != nil {
			p.metrics.RecordRetry(op)
		}
	}

	out, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (outcome[T], error) {
		var res outcome[T]
		err := p.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			env := host.New(tx, p.now(), auth.Callers(ctx)...)
			v, err := fn(ctx, env)
			if err != nil {
				return err
			}
			res = outcome[T]{val: v, events: env.Events()}
			return nil
		})
		return res, err
	})

	label := "ok"
	if err != nil {
		label = string(model.KindOf(err))
	}
	if p.metrics != nil {
		p.metrics.RecordOperation(op, label, time.Since(start))
	}
	if err != nil {
		zap.L().Debug("operation failed", zap.String("operation", op), zap.String("kind", label), zap.Error(err))
		var zero T
		return zero, err
	}

	p.publish(out.events)
	return out.val, nil
}

func (p *Protocol) publish(events []model.Event) {
	for _, ev := range events {
		if p.metrics != nil {
			p.metrics.RecordEvent(string(ev.Kind))
		}
		for _, o := range p.observers {
			o.Observe(ev)
		}
	}
}

// LogObserver logs every committed event through the global zap logger.
func LogObserver() Observer {
	return ObserverFunc(func(ev model.Event) {
		zap.L().Info("event",
			zap.String("kind", string(ev.Kind)),
			zap.String("entity_id", ev.EntityID),
			zap.Int64("seq", ev.Seq),
			zap.String("event_id", ev.ID),
		)
	})
}
