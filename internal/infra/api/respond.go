package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"campus-assistant/internal/domain"
)

type errorBody struct {
	Error      string                 `json:"error"`
	Category   domain.FailureCategory `json:"category,omitempty"`
	Fallback   bool                   `json:"fallback,omitempty"`
	RetryAfter int                    `json:"retryAfter,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{Error: msg})
}

// WriteChatFailure renders a failed turn as 503 with fallback set, so the
// client can offer its inquiry form.
func WriteChatFailure(w http.ResponseWriter, f *domain.ChatFailure) {
	WriteJSON(w, http.StatusServiceUnavailable, errorBody{
		Error:    f.Message,
		Category: f.Category,
		Fallback: true,
	})
}

func writeRateLimited(w http.ResponseWriter, rl *domain.RateLimitError) {
	secs := rl.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteJSON(w, http.StatusTooManyRequests, errorBody{Error: msgRateLimited, RetryAfter: secs})
}
