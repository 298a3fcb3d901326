package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/truthstamp/internal/auth"
	"github.com/sells-group/truthstamp/internal/model"
	"github.com/sells-group/truthstamp/internal/protocol"
	"github.com/sells-group/truthstamp/internal/resilience"
	"github.com/sells-group/truthstamp/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "truthstamp.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func contractsFromConfig() protocol.Contracts {
	return protocol.Contracts{
		ClaimRegistry:   model.Address(cfg.Contracts.ClaimRegistry),
		ExpertRegistry:  model.Address(cfg.Contracts.ExpertRegistry),
		ReviewConsensus: model.Address(cfg.Contracts.ReviewConsensus),
	}
}

// openProtocol opens and migrates the configured store and wraps it in a
// Protocol. The returned func closes the store.
func openProtocol(ctx context.Context, mode string, opts ...protocol.Option) (*protocol.Protocol, func(), error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}

	opts = append([]protocol.Option{
		protocol.WithRetry(resilience.FromMillis(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)),
		protocol.WithObserver(protocol.LogObserver()),
	}, opts...)
	p := protocol.New(st, contractsFromConfig(), opts...)
	return p, func() { st.Close() }, nil //nolint:errcheck
}

func keyPath() string {
	if keyFile != "" {
		return keyFile
	}
	return cfg.Identity.KeyFile
}

// withIdentity loads the signing key and records its address as the caller
// of every operation run under the returned context.
func withIdentity(ctx context.Context) (context.Context, model.Address, error) {
	key, err := auth.LoadKey(keyPath())
	if err != nil {
		return nil, "", eris.Wrap(err, "load signing key (run `truthstamp keygen` first)")
	}
	addr := key.Address()
	return auth.WithCallers(ctx, addr), addr, nil
}
