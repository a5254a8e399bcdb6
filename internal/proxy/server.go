package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"otterproxy/internal/otter"
)

// Config holds all front-end configuration, injected from main.
type Config struct {
	ListenAddr  string
	SessionTTL  time.Duration
	MaxSessions int
	RateRPS     float64
	RateBurst   int
	Client      otter.Config // configuration for per-login client instances
}

// Server is the thin HTTP front-end over the API client. It validates
// requests, maps session tokens to client instances (one instance per
// authenticated identity), and forwards remote envelopes unchanged. It adds
// no durability: sessions and clients are in-memory only.
type Server struct {
	cfg      Config
	sessions *sessionStore
	limiter  *ipLimiter
	mux      *http.ServeMux

	// newClient builds the per-login client instance; swapped in tests.
	newClient func() *otter.Client
}

// New creates the front-end, filling defaults for any zero field.
func New(cfg Config) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8890"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	s := &Server{
		cfg:      cfg,
		sessions: newSessionStore(cfg.MaxSessions, cfg.SessionTTL),
		limiter:  newIPLimiter(cfg.RateRPS, cfg.RateBurst),
		mux:      http.NewServeMux(),
	}
	s.newClient = func() *otter.Client { return otter.New(cfg.Client) }

	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/speeches", s.handleSpeeches)
	s.mux.HandleFunc("GET /api/speech", s.handleSpeech)
	s.mux.HandleFunc("POST /api/logout", s.handleLogout)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	return s
}

// Handler returns the route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.withLogging(s.withSecurityHeaders(s.withRateLimit(s.mux)))
}

// ListenAndServe runs the front-end until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("proxy: listening", slog.String("addr", s.cfg.ListenAddr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// --- handlers ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	client := s.newClient()
	resp, err := client.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		slog.Warn("proxy: login transport failure", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "login failed")
		return
	}
	if resp.StatusCode != http.StatusOK {
		// Wrong credentials vs. service trouble is the caller's call;
		// the upstream envelope goes through unchanged.
		forwardEnvelope(w, resp)
		return
	}

	token := s.sessions.put(client)
	slog.Info("proxy: session created", slog.String("userid", client.UserID()))
	writeJSON(w, http.StatusOK, map[string]string{
		"session_token": token,
		"userid":        client.UserID(),
	})
}

func (s *Server) handleSpeeches(w http.ResponseWriter, r *http.Request) {
	client, _, ok := s.clientFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown or expired session")
		return
	}

	folder := intParam(r, "folder", 0)
	maxPerSource := intParam(r, "max", 45)

	out, err := client.GetAllSpeechesFromAllSources(r.Context(), folder, maxPerSource)
	if err != nil {
		if errors.Is(err, otter.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, "session is not authenticated")
			return
		}
		slog.Warn("proxy: speeches fetch failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "speeches fetch failed")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	client, _, ok := s.clientFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown or expired session")
		return
	}
	otid := r.URL.Query().Get("otid")
	if otid == "" {
		writeError(w, http.StatusBadRequest, "otid is required")
		return
	}

	resp, err := client.GetSpeech(r.Context(), otid)
	if err != nil {
		slog.Warn("proxy: speech fetch failed", slog.String("otid", otid), slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "speech fetch failed")
		return
	}
	forwardEnvelope(w, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, token, ok := s.clientFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown or expired session")
		return
	}
	// Logout is stateless upstream: dropping the client instance is all
	// there is to it.
	s.sessions.remove(token)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.len()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(otter.FormatMetrics()))
}

// clientFromRequest resolves the session token from the X-Session-Token
// header or a Bearer Authorization header.
func (s *Server) clientFromRequest(r *http.Request) (*otter.Client, string, bool) {
	token := r.Header.Get("X-Session-Token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		return nil, "", false
	}
	client, ok := s.sessions.get(token)
	return client, token, ok
}

// --- middleware ---

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(r.RemoteAddr) {
			otter.IncrRateLimited()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		otter.IncrProxyRequests()
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("proxy: request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)))
	})
}

// --- helpers ---

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// forwardEnvelope passes a remote envelope to the caller unchanged.
func forwardEnvelope(w http.ResponseWriter, resp *otter.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}
