package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sharepool/core"
	"sharepool/core/tx"
	"sharepool/crypto"
	"sharepool/indexer"
	"sharepool/native/pool"
)

const (
	defaultMaxBodyBytes = 1 << 20 // 1 MiB
	shutdownTimeout     = 10 * time.Second
)

// Ledger is the node surface served over HTTP.
type Ledger interface {
	Apply(ctx context.Context, ins *tx.Instruction) (*core.Receipt, error)
	Pool(addr crypto.Address) (*pool.Pool, error)
	Distribution(poolAddr crypto.Address) (*pool.Distribution, error)
	HolderClaim(poolAddr, holder crypto.Address) (*pool.HolderClaim, error)
	Metadata(mint crypto.Address) (*pool.Metadata, error)
	Balance(mint, owner crypto.Address) (uint64, error)
	Nonce(addr crypto.Address) (uint64, error)
	Head() ([32]byte, error)
}

// ActivitySource lists indexed pool activity.
type ActivitySource interface {
	ListByPool(ctx context.Context, pool string, after uint64, limit int) ([]indexer.Activity, error)
}

// ServerConfig carries the HTTP limits of the gateway.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxBodyBytes      int64
	RateLimitPerSec   float64
	RateLimitBurst    int
}

type Server struct {
	ledger   Ledger
	activity ActivitySource
	hub      *Hub
	limiter  *RateLimiter
	cfg      ServerConfig
	logger   *slog.Logger
}

// Option customises a Server.
type Option func(*Server)

// WithActivity enables the activity endpoint.
func WithActivity(src ActivitySource) Option { return func(s *Server) { s.activity = src } }

// WithHub enables the websocket event stream.
func WithHub(hub *Hub) Option { return func(s *Server) { s.hub = hub } }

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewServer(ledger Ledger, cfg ServerConfig, opts ...Option) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	s := &Server{ledger: ledger, cfg: cfg, logger: slog.Default()}
	if cfg.RateLimitPerSec > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		if s.limiter != nil {
			v1.Use(s.limiter.Middleware)
		}
		v1.Post("/instructions", s.handleSubmit)
		v1.Get("/head", s.handleHead)
		v1.Get("/derive/pool/{reference}", s.handleDerivePool)
		v1.Route("/pools/{pool}", func(pr chi.Router) {
			pr.Get("/", s.handleGetPool)
			pr.Get("/distribution", s.handleGetDistribution)
			pr.Get("/claims/{holder}", s.handleGetClaim)
			pr.Get("/activity", s.handleGetActivity)
		})
		v1.Get("/accounts/{owner}/balances/{mint}", s.handleGetBalance)
		v1.Get("/accounts/{owner}/nonce", s.handleGetNonce)
		v1.Get("/events", s.handleEventsWS)
	})
	return otelhttp.NewHandler(r, "sharepool-rpc")
}

// Serve runs the HTTP server on ln until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("rpc server listening", slog.String("address", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeLedgerError maps a ledger error onto its HTTP status and stable code.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	code := core.ErrorCode(err)
	status := statusForCode(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("rpc request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.String("error", err.Error()))
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}

func statusForCode(code string) int {
	switch code {
	case "NotFound", "PoolNotFound", "MintNotFound":
		return http.StatusNotFound
	case "InvalidParams", "InvalidInput", "InvalidDeposit", "UnknownInstruction", "ChainIDMismatch", "InvalidSignature":
		return http.StatusBadRequest
	case "MissingSignature":
		return http.StatusUnauthorized
	case "AddressConstraint", "SignerNotAuthorized", "CreatorNotAuthorized":
		return http.StatusForbidden
	case "NonceMismatch", "ReferenceUsed", "AlreadyInitialized", "MintExists", "PoolClosed", "PoolNotClosed":
		return http.StatusConflict
	case core.CodeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusUnprocessableEntity
}
