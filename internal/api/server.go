// Package api serves the protocol over HTTP. Queries are open; every
// mutating request must carry an ed25519 signature from the acting address.
package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/truthstamp/internal/auth"
	"github.com/sells-group/truthstamp/internal/metrics"
	"github.com/sells-group/truthstamp/internal/model"
	"github.com/sells-group/truthstamp/internal/protocol"
)

const (
	maxBodyBytes  = 1 << 20
	sweepInterval = time.Minute
)

// Config holds HTTP serving options.
type Config struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	NonceTTL       time.Duration
}

// Server routes HTTP requests to a Protocol.
type Server struct {
	proto   *protocol.Protocol
	metrics *metrics.Metrics
	nonces  *auth.NonceGuard
	limiter *limiter
	origins []string

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Server and starts the sweeper that expires nonces and idle
// rate-limit buckets. Call Close to stop it. m may be nil, in which case
// /metrics is not served.
func New(p *protocol.Protocol, cfg Config, m *metrics.Metrics) *Server {
	ttl := cfg.NonceTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{
		proto:   p,
		metrics: m,
		nonces:  auth.NewNonceGuard(ttl),
		limiter: newLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 0),
		origins: origins,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.sweep(sweepInterval)
	return s
}

// Close stops the sweeper. It is safe to call more than once.
func (s *Server) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Server) sweep(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.nonces.Sweep()
			s.limiter.sweep()
		}
	}
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", auth.HeaderAddress, auth.HeaderNonce, auth.HeaderSignature},
		MaxAge:         300,
	}))
	r.Use(s.observe)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(api chi.Router) {
		api.Get("/contracts/{name}", s.getContract)

		api.Get("/claims", s.listClaims)
		api.Get("/claims/count", s.claimCount)
		api.Get("/claims/{id}", s.getClaim)
		api.Get("/claims/{id}/reviews", s.claimReviews)
		api.Get("/claims/{id}/consensus", s.getConsensus)
		api.Get("/claims/{id}/state", s.getState)
		api.Get("/claims/{id}/transfers", s.claimTransfers)

		api.Get("/experts/count", s.expertCount)
		api.Get("/experts/{address}", s.getExpert)
		api.Get("/experts/{address}/accuracy", s.getAccuracy)
		api.Get("/experts/{address}/reviews", s.expertReviews)

		api.Get("/reviews/count", s.reviewCount)
		api.Get("/reviews/{id}", s.getReview)

		api.Get("/events", s.listEvents)

		api.Group(func(signed chi.Router) {
			signed.Use(s.verify)

			signed.Post("/contracts/{name}/partners", s.setPartner)
			signed.Post("/claims", s.submitClaim)
			signed.Post("/claims/{id}/stake", s.addToStakePool)
			signed.Post("/claims/{id}/distribute", s.distributeRewards)
			signed.Post("/experts", s.registerExpert)
			signed.Post("/experts/stake", s.addStake)
			signed.Post("/reviews", s.submitReview)
		})
	})
	return r
}

// verify authenticates the signing address and records it as the caller.
func (s *Server) verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			writeError(w, eris.Wrap(model.ErrValidation, "read body"))
			return
		}
		if len(body) > maxBodyBytes {
			writeError(w, eris.Wrap(model.ErrValidation, "request body too large"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		addr := model.Address(r.Header.Get(auth.HeaderAddress))
		if addr == "" {
			s.authFailed(w, "missing_address", eris.Wrap(model.ErrUnauthorized, "missing signer address"))
			return
		}
		nonce := r.Header.Get(auth.HeaderNonce)
		if err := auth.VerifyRequest(addr, r.Method, r.URL.Path, nonce, body, r.Header.Get(auth.HeaderSignature)); err != nil {
			s.authFailed(w, "bad_signature", err)
			return
		}
		if err := s.nonces.Use(addr, nonce); err != nil {
			s.authFailed(w, "replay", err)
			return
		}
		if !s.limiter.allow(addr) {
			if s.metrics != nil {
				s.metrics.RecordRateLimited()
			}
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithCallers(r.Context(), addr)))
	})
}

func (s *Server) authFailed(w http.ResponseWriter, reason string, err error) {
	if s.metrics != nil {
		s.metrics.RecordAuthFailure(reason)
	}
	zap.L().Debug("api: rejected signature", zap.String("reason", reason), zap.Error(err))
	writeError(w, err)
}

// observe records request metrics keyed by the matched route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if s.metrics == nil {
			return
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
	})
}

// signer returns the verified address of a signed request.
func signer(r *http.Request) model.Address {
	callers := auth.Callers(r.Context())
	if len(callers) == 0 {
		return ""
	}
	return callers[0]
}
