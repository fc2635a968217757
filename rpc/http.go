package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nftstake/core"
	"nftstake/observability"
	"nftstake/observability/logging"
)

const maxRequestBytes = 1 << 20 // 1 MiB

// ServerConfig tunes the JSON-RPC server guards.
type ServerConfig struct {
	JWT                JWTConfig
	RateLimitPerMinute int
	Burst              int
	AllowedOrigins     []string
	ReadTimeout        time.Duration
	Logger             *slog.Logger
}

type Server struct {
	node    *core.Node
	cfg     ServerConfig
	limiter *rateLimiter
	logger  *slog.Logger
	httpSrv *http.Server
}

// NewServer builds a server for node.
func NewServer(node *core.Node, cfg ServerConfig) (*Server, error) {
	if node == nil {
		return nil, errors.New("rpc: node required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		node:    node,
		cfg:     cfg,
		limiter: newRateLimiter(cfg.RateLimitPerMinute, cfg.Burst),
		logger:  logger.With(slog.String("component", "rpc")),
	}, nil
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.cors)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !s.node.Initialized() {
			http.Error(w, "genesis not applied", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.With(s.limiter.Middleware).Post("/", s.handle)
	return otelhttp.NewHandler(r, "nftstake-rpc")
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	readTimeout := s.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
		errCh <- s.httpSrv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	origins := s.cfg.AllowedOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(origins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(allowed []string, origin string) bool {
	for _, candidate := range allowed {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.EqualFold(candidate, origin) {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// statusRecorder captures the JSON-RPC error code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *Server) fail(w http.ResponseWriter, req *RPCRequest, err error) {
	status, rpcErr := classify(err)
	writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = rpcErr.Code
	}
}

func (s *Server) invalidParams(w http.ResponseWriter, req *RPCRequest, message string, data interface{}) {
	writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, message, data)
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = codeInvalidParams
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	rec := &statusRecorder{ResponseWriter: w}
	start := time.Now()
	defer func() {
		observability.ModuleMetrics().Observe(req.Method, rec.code, time.Since(start))
	}()

	switch req.Method {
	case MethodStake, MethodUnstake, MethodClaim, MethodWithdraw,
		MethodUpdateRate, MethodPause, MethodUnpause,
		MethodApprove, MethodSetApprovalForAll, MethodMint:
		if authErr := s.requireAuth(r); authErr != nil {
			rec.code = authErr.Code
			s.logger.Warn("rejected unauthenticated call",
				slog.String("method", req.Method),
				logging.MaskField("authorization", r.Header.Get("Authorization")))
			writeError(rec, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleMutation(rec, r, req)
	case MethodEarningInfo:
		s.handleEarningInfo(rec, req)
	case MethodGetDeposit:
		s.handleGetDeposit(rec, req)
	case MethodRateHistory:
		s.handleRateHistory(rec, req)
	case MethodParams:
		s.handleParams(rec, req)
	case MethodHistory:
		s.handleHistory(rec, r, req)
	case MethodNonce:
		s.handleNonce(rec, req)
	case MethodOwnerOf:
		s.handleOwnerOf(rec, req)
	case MethodBalanceOf:
		s.handleBalanceOf(rec, req)
	default:
		rec.code = codeMethodNotFound
		writeError(rec, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("exactly one parameter object expected")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("invalid parameter object: %w", err)
	}
	return nil
}
