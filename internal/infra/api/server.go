package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/model"
	"campus-assistant/internal/domain/ports/adapter"
	"campus-assistant/internal/infra/logging"
	"campus-assistant/internal/infra/metrics"
	"campus-assistant/internal/usecase"
)

const maxBodyBytes = 64 << 10

// Server exposes the public chat endpoints.
type Server struct {
	chatUC  usecase.ChatUseCase
	limiter adapter.RateLimiter
	backend string
	log     *zerolog.Logger
}

func NewServer(chatUC usecase.ChatUseCase, limiter adapter.RateLimiter, backend string, logger *zerolog.Logger) *Server {
	compLog := logger.With().Str("component", "PublicAPI").Logger()
	return &Server{chatUC: chatUC, limiter: limiter, backend: backend, log: &compLog}
}

// Routes attaches the chat, health and metrics handlers to r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/session", s.handleCreateSession)
		r.With(RateLimit(s.limiter, s.backend, s.log)).Post("/message", s.handleMessage)
	})
}

type participantFields struct {
	IsLogged         *bool   `json:"isLogged"`
	ParticipantName  *string `json:"participantName"`
	ParticipantEmail *string `json:"participantEmail"`
}

// participant defaults isLogged to true.
func (p participantFields) participant() model.Participant {
	logged := true
	if p.IsLogged != nil {
		logged = *p.IsLogged
	}
	return model.Participant{Name: p.ParticipantName, Email: p.ParticipantEmail, IsLogged: logged}
}

type sessionResponse struct {
	SessionID      string `json:"sessionId"`
	ConversationID string `json:"conversationId"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req participantFields
	if err := decodeBody(r, &req, true); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := s.chatUC.CreateSession(r.Context(), req.participant())
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("create session failed")
		WriteError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	WriteJSON(w, http.StatusCreated, sessionResponse{SessionID: conv.SessionID, ConversationID: conv.ID})
}

type messageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	participantFields
}

type messageResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId,omitempty"`
	TokensUsed     int    `json:"tokensUsed"`
	IsModerated    bool   `json:"isModerated,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeBody(r, &req, false); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.chatUC.SendMessage(r.Context(), usecase.SendMessageInput{
		SessionID:   req.SessionID,
		Message:     req.Message,
		Participant: req.participant(),
	})
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{
		Reply:          res.Reply,
		ConversationID: res.ConversationID,
		TokensUsed:     res.TokensUsed,
		IsModerated:    res.IsModerated,
	})
}

func (s *Server) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	var failure *domain.ChatFailure
	switch {
	case errors.Is(err, domain.ErrMessageTooLong), errors.Is(err, domain.ErrInvalidArgument):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &failure):
		WriteChatFailure(w, failure)
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("chat message failed")
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody reads a bounded JSON body. With allowEmpty an empty body
// leaves v untouched.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
