package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rzbill/triage/internal/assign"
	"github.com/rzbill/triage/internal/item"
	"github.com/rzbill/triage/internal/runtime"
	logpkg "github.com/rzbill/triage/pkg/log"
)

// Agent identity travels in headers so command bodies stay about the
// item.
const (
	headerAgentID   = "X-Agent-Id"
	headerAgentName = "X-Agent-Name"
)

type Server struct {
	rt     *runtime.Runtime
	coord  *assign.Coordinator
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
}

func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	mux := http.NewServeMux()
	s := &Server{
		rt:     rt,
		coord:  rt.Coordinator(),
		srv:    &http.Server{Handler: cors(mux)},
		logger: logger.With(logpkg.Component("http")),
	}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/items/create", s.handleCreate)
	mux.HandleFunc("/v1/items/get", s.handleGet)
	mux.HandleFunc("/v1/items/claimable", s.handleClaimable)
	mux.HandleFunc("/v1/items/stats", s.handleStats)
	mux.HandleFunc("/v1/items/claim", s.handleClaim)
	mux.HandleFunc("/v1/items/activate", s.handleActivate)
	mux.HandleFunc("/v1/items/release", s.handleRelease)
	mux.HandleFunc("/v1/items/resolve", s.handleResolve)
	mux.HandleFunc("/v1/feed/sse", s.handleFeedSSE)
	mux.HandleFunc("/v1/feed/ws", s.handleFeedWS)
	return s
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Agent-Id, X-Agent-Name")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	switch {
	case errors.Is(err, item.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, item.ErrAlreadyClaimed):
		status, code = http.StatusConflict, "already_claimed"
	case errors.Is(err, item.ErrInvalidState):
		status, code = http.StatusUnprocessableEntity, "invalid_state"
	case errors.Is(err, item.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	}
	writeJSON(w, status, map[string]string{"error": code, "message": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": msg})
}

// agentIdentity pulls the acting agent from the request headers. The id
// is required for lifecycle commands; the name is optional.
func agentIdentity(r *http.Request) (id, name string) {
	return r.Header.Get(headerAgentID), r.Header.Get(headerAgentName)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createReq struct {
	CustomerName string `json:"customerName"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	if req.CustomerName == "" {
		badRequest(w, "customerName required")
		return
	}
	it, err := s.coord.Create(r.Context(), req.CustomerName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		badRequest(w, "id required")
		return
	}
	it, err := s.coord.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items := s.coord.ListClaimable()
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Stats())
}

type commandReq struct {
	ID string `json:"id"`
}

// command decodes the shared lifecycle request shape and identity
// headers, rejecting commands without an agent id.
func command(w http.ResponseWriter, r *http.Request) (id, agentID, agentName string, ok bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return "", "", "", false
	}
	var req commandReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid body")
		return "", "", "", false
	}
	if req.ID == "" {
		badRequest(w, "id required")
		return "", "", "", false
	}
	agentID, agentName = agentIdentity(r)
	if agentID == "" {
		badRequest(w, "X-Agent-Id header required")
		return "", "", "", false
	}
	return req.ID, agentID, agentName, true
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	id, agentID, agentName, ok := command(w, r)
	if !ok {
		return
	}
	it, err := s.coord.Claim(r.Context(), id, agentID, agentName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	id, agentID, _, ok := command(w, r)
	if !ok {
		return
	}
	it, err := s.coord.Activate(r.Context(), id, agentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	id, agentID, _, ok := command(w, r)
	if !ok {
		return
	}
	it, err := s.coord.Release(r.Context(), id, agentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

type resolveReq struct {
	ID       string `json:"id"`
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
	Summary  string `json:"summary"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req resolveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	if req.ID == "" {
		badRequest(w, "id required")
		return
	}
	agentID, _ := agentIdentity(r)
	if agentID == "" {
		badRequest(w, "X-Agent-Id header required")
		return
	}
	it, err := s.coord.Resolve(r.Context(), req.ID, agentID, assign.Resolution{
		Problem:  req.Problem,
		Solution: req.Solution,
		Summary:  req.Summary,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}
