package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/truthstamp/internal/api"
	"github.com/sells-group/truthstamp/internal/metrics"
	"github.com/sells-group/truthstamp/internal/protocol"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the protocol over a signed HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, err := metrics.New(registry)
		if err != nil {
			return eris.Wrap(err, "register metrics")
		}

		p, closeFn, err := openProtocol(ctx, "serve", protocol.WithMetrics(m))
		if err != nil {
			return err
		}
		defer closeFn()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		apiSrv := api.New(p, api.Config{
			CORSOrigins:    cfg.Server.CORSOrigins,
			RateLimitRPS:   cfg.Server.RateLimitRPS,
			RateLimitBurst: cfg.Server.RateLimitBurst,
			NonceTTL:       time.Duration(cfg.Server.NonceTTLSecs) * time.Second,
		}, m)
		defer apiSrv.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           apiSrv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		// Graceful shutdown
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
