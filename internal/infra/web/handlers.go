package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/model"
	"campus-assistant/internal/infra/api"
	"campus-assistant/internal/infra/logging"
	"campus-assistant/internal/usecase"
)

type messageDTO struct {
	ID         string     `json:"id"`
	Role       model.Role `json:"role"`
	Content    string     `json:"content"`
	TokenCount *int       `json:"tokenCount"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type conversationDTO struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"sessionId"`
	ParticipantName  *string   `json:"participantName"`
	ParticipantEmail *string   `json:"participantEmail"`
	IsLogged         bool      `json:"isLogged"`
	IsResolved       bool      `json:"isResolved"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	MessageCount     *int      `json:"messageCount,omitempty"`
}

// conversationDetailDTO always carries the message array, even when empty.
type conversationDetailDTO struct {
	conversationDTO
	Messages []messageDTO `json:"messages"`
}

func toConversationDTO(c *model.Conversation) conversationDTO {
	return conversationDTO{
		ID:               c.ID,
		SessionID:        c.SessionID,
		ParticipantName:  c.ParticipantName,
		ParticipantEmail: c.ParticipantEmail,
		IsLogged:         c.IsLogged,
		IsResolved:       c.IsResolved,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func toConversationDetailDTO(c *model.Conversation) conversationDetailDTO {
	dto := conversationDetailDTO{
		conversationDTO: toConversationDTO(c),
		Messages:        make([]messageDTO, 0, len(c.Messages)),
	}
	for _, m := range c.Messages {
		dto.Messages = append(dto.Messages, messageDTO{
			ID:         m.ID,
			Role:       m.Role,
			Content:    m.Content,
			TokenCount: m.TokenCount,
			CreatedAt:  m.CreatedAt,
		})
	}
	return dto
}

// writeUCError maps use case errors onto admin responses.
func writeUCError(w http.ResponseWriter, err error, fallback string) {
	var failure *domain.ChatFailure
	switch {
	case errors.Is(err, domain.ErrNotFound):
		api.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidArgument):
		api.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &failure):
		api.WriteChatFailure(w, failure)
	default:
		api.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// conversationsListHandler returns a page of conversations, most recently
// active first. It accepts 'limit' and 'offset' query parameters.
func conversationsListHandler(adminUC usecase.AdminUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		page, err := adminUC.ListConversations(r.Context(), limit, offset)
		if err != nil {
			writeUCError(w, err, "failed to list conversations")
			return
		}

		items := make([]conversationDTO, 0, len(page.Items))
		for i := range page.Items {
			dto := toConversationDTO(&page.Items[i].Conversation)
			n := page.Items[i].MessageCount
			dto.MessageCount = &n
			items = append(items, dto)
		}
		api.WriteJSON(w, http.StatusOK, struct {
			Items []conversationDTO `json:"items"`
			Total int               `json:"total"`
		}{Items: items, Total: page.Total})
	}
}

func conversationGetHandler(adminUC usecase.AdminUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, err := adminUC.GetConversation(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeUCError(w, err, "failed to get conversation")
			return
		}
		api.WriteJSON(w, http.StatusOK, toConversationDetailDTO(conv))
	}
}

func conversationResolveHandler(adminUC usecase.AdminUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, err := adminUC.ToggleResolved(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeUCError(w, err, "failed to update conversation")
			return
		}
		api.WriteJSON(w, http.StatusOK, toConversationDTO(conv))
	}
}

func conversationDeleteHandler(adminUC usecase.AdminUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := adminUC.DeleteConversation(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeUCError(w, err, "failed to delete conversation")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func tokenStatsHandler(adminUC usecase.AdminUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 0
		if raw := r.URL.Query().Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				api.WriteError(w, http.StatusBadRequest, "days must be an integer between 1 and 365")
				return
			}
			days = n
		}

		stats, err := adminUC.TokenStats(r.Context(), days)
		if err != nil {
			writeUCError(w, err, "failed to compute token stats")
			return
		}
		api.WriteJSON(w, http.StatusOK, stats)
	}
}

func knowledgePreviewHandler(adminUC usecase.AdminUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		preview, err := adminUC.KnowledgePreview(r.Context(), r.URL.Query().Get("message"))
		if err != nil {
			writeUCError(w, err, "failed to build knowledge preview")
			return
		}
		api.WriteJSON(w, http.StatusOK, preview)
	}
}

func knowledgeStatsHandler(adminUC usecase.AdminUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := adminUC.KnowledgeStats(r.Context())
		if err != nil {
			writeUCError(w, err, "failed to compute knowledge stats")
			return
		}
		api.WriteJSON(w, http.StatusOK, stats)
	}
}

type testPromptRequest struct {
	Message      string `json:"message"`
	SystemPrompt string `json:"systemPrompt"`
}

func testPromptHandler(adminUC usecase.AdminUseCase, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req testPromptRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 256<<10)).Decode(&req); err != nil {
			api.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		res, err := adminUC.TestPrompt(r.Context(), req.Message, req.SystemPrompt)
		if err != nil {
			logging.With(r.Context(), logger).Warn().Err(err).Msg("test prompt failed")
			writeUCError(w, err, "failed to run test prompt")
			return
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}
