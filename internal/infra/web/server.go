package web

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"campus-assistant/internal/infra/api"
	"campus-assistant/internal/infra/logging"
	"campus-assistant/internal/usecase"
)

// Server exposes the admin API under /api/admin.
type Server struct {
	adminUC usecase.AdminUseCase
	apiKey  string
	auth    *AuthManager
	log     *zerolog.Logger
}

func NewServer(adminUC usecase.AdminUseCase, apiKey string, auth *AuthManager, logger *zerolog.Logger) *Server {
	compLog := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{adminUC: adminUC, apiKey: apiKey, auth: auth, log: &compLog}
}

// Routes sets up the routing for the admin API.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/chat/conversations", conversationsListHandler(s.adminUC))
			r.Get("/chat/conversations/{id}", conversationGetHandler(s.adminUC))
			r.Patch("/chat/conversations/{id}/resolve", conversationResolveHandler(s.adminUC))
			r.Delete("/chat/conversations/{id}", conversationDeleteHandler(s.adminUC))
			r.Get("/chat/stats/tokens", tokenStatsHandler(s.adminUC))
			r.Get("/chat/knowledge/preview", knowledgePreviewHandler(s.adminUC))
			r.Get("/chat/knowledge/stats", knowledgeStatsHandler(s.adminUC))
			r.Post("/chat/test-prompt", testPromptHandler(s.adminUC, s.log))
		})
	})
}

// authMiddleware accepts the static API key as a bearer token, or a session
// JWT from the bearer header or cookie.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" && !s.auth.Enabled() {
			logging.With(r.Context(), s.log).Error().Msg("admin auth is not configured")
			api.WriteError(w, http.StatusForbidden, "forbidden")
			return
		}

		if tok, ok := bearer(r); ok && s.validKey(tok) {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err == nil {
			next.ServeHTTP(w, r)
			return
		}
		api.WriteError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func (s *Server) validKey(candidate string) bool {
	if s.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.apiKey)) == 1
}

type loginRequest struct {
	APIKey string `json:"apiKey"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.validKey(req.APIKey) {
		logging.With(r.Context(), s.log).Warn().Msg("admin login rejected")
		api.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	tok, err := s.auth.Mint(w)
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("admin session mint failed")
		api.WriteError(w, http.StatusServiceUnavailable, "admin sessions are not available")
		return
	}
	api.WriteJSON(w, http.StatusOK, loginResponse{Token: tok, ExpiresIn: int(s.auth.cfg.TTL.Seconds())})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}
