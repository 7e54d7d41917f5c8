//go:build !integration

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"campus-assistant/internal/domain"
	"campus-assistant/internal/domain/model"
	"campus-assistant/internal/domain/ports/adapter"
	"campus-assistant/internal/infra/api"
	"campus-assistant/internal/infra/logging"
	"campus-assistant/internal/infra/ratelimit"
	"campus-assistant/internal/usecase"
)

//
// ---------------- fakes ----------------
//

type fakeChatUC struct {
	mu       sync.Mutex
	inputs   []usecase.SendMessageInput
	sessions []model.Participant

	result     *usecase.SendMessageResult
	sendErr    error
	sessionErr error
}

func (f *fakeChatUC) CreateSession(_ context.Context, p model.Participant) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	f.sessions = append(f.sessions, p)
	return model.NewConversation("conv-1", "sess_01TEST", p), nil
}

func (f *fakeChatUC) SendMessage(_ context.Context, in usecase.SendMessageInput) (*usecase.SendMessageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &usecase.SendMessageResult{Reply: "hello", ConversationID: "conv-1", TokensUsed: 42}, nil
}

func (f *fakeChatUC) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type stubLimiter struct {
	dec adapter.RateDecision
	err error
}

func (s stubLimiter) Allow(context.Context, string) (adapter.RateDecision, error) {
	return s.dec, s.err
}

//
// -------------------- helpers --------------------
//

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

func newRouter(uc usecase.ChatUseCase, limiter adapter.RateLimiter) *chi.Mux {
	log := newLogger()
	r := chi.NewRouter()
	r.Use(api.TraceID(log), api.ClientIP(true), api.Recover(log))
	api.NewServer(uc, limiter, "memory", log).Routes(r)
	return r
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return m
}

//
// -------------------- tests --------------------
//

func TestCreateSession(t *testing.T) {
	t.Run("201 with ids and logged default", func(t *testing.T) {
		uc := &fakeChatUC{}
		rr := post(t, newRouter(uc, stubLimiter{dec: adapter.RateDecision{Allowed: true}}), "/api/chat/session", `{"participantName":"Ada"}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
		}
		body := decode(t, rr)
		if body["sessionId"] != "sess_01TEST" || body["conversationId"] != "conv-1" {
			t.Fatalf("body = %v", body)
		}
		if !uc.sessions[0].IsLogged || *uc.sessions[0].Name != "Ada" {
			t.Fatalf("participant = %+v", uc.sessions[0])
		}
	})

	t.Run("empty body is accepted", func(t *testing.T) {
		uc := &fakeChatUC{}
		rr := post(t, newRouter(uc, stubLimiter{}), "/api/chat/session", "")
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d", rr.Code)
		}
	})

	t.Run("repository failure is 500", func(t *testing.T) {
		uc := &fakeChatUC{sessionErr: errors.New("db down")}
		rr := post(t, newRouter(uc, stubLimiter{}), "/api/chat/session", `{}`)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rr.Code)
		}
	})
}

func TestSendMessage(t *testing.T) {
	allow := stubLimiter{dec: adapter.RateDecision{Allowed: true, Remaining: 9}}

	t.Run("200 with reply and usage", func(t *testing.T) {
		uc := &fakeChatUC{}
		rr := post(t, newRouter(uc, allow), "/api/chat/message", `{"sessionId":"sess_1","message":"hi","isLogged":false}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
		}
		body := decode(t, rr)
		if body["reply"] != "hello" || body["conversationId"] != "conv-1" || body["tokensUsed"] != float64(42) {
			t.Fatalf("body = %v", body)
		}
		if _, ok := body["isModerated"]; ok {
			t.Fatalf("isModerated should be omitted: %v", body)
		}
		if uc.inputs[0].Participant.IsLogged {
			t.Fatal("isLogged=false not forwarded")
		}
	})

	t.Run("moderated reply", func(t *testing.T) {
		uc := &fakeChatUC{result: &usecase.SendMessageResult{Reply: usecase.SafeGuidanceReply, IsModerated: true}}
		rr := post(t, newRouter(uc, allow), "/api/chat/message", `{"sessionId":"sess_1","message":"bad"}`)
		body := decode(t, rr)
		if rr.Code != http.StatusOK || body["isModerated"] != true || body["tokensUsed"] != float64(0) {
			t.Fatalf("status=%d body=%v", rr.Code, body)
		}
	})

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", fmt.Errorf("%w: sessionId and message are required", domain.ErrInvalidArgument), http.StatusBadRequest},
		{"too long", fmt.Errorf("%w: at most 2000 characters", domain.ErrMessageTooLong), http.StatusBadRequest},
		{"chat failure", &domain.ChatFailure{Category: domain.FailureUnavailable, Message: "The chatbot is currently unavailable."}, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &fakeChatUC{sendErr: tc.err}
			rr := post(t, newRouter(uc, allow), "/api/chat/message", `{"sessionId":"s","message":"m"}`)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
		})
	}

	t.Run("chat failure body carries fallback", func(t *testing.T) {
		uc := &fakeChatUC{sendErr: &domain.ChatFailure{Category: domain.FailureRateLimited, Message: "busy"}}
		rr := post(t, newRouter(uc, allow), "/api/chat/message", `{"sessionId":"s","message":"m"}`)
		body := decode(t, rr)
		if body["fallback"] != true || body["category"] != "rate_limited" || body["error"] != "busy" {
			t.Fatalf("body = %v", body)
		}
	})

	t.Run("malformed json is 400", func(t *testing.T) {
		uc := &fakeChatUC{}
		rr := post(t, newRouter(uc, allow), "/api/chat/message", `{"sessionId":`)
		if rr.Code != http.StatusBadRequest || uc.sent() != 0 {
			t.Fatalf("status = %d sent=%d", rr.Code, uc.sent())
		}
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("rejection never reaches the pipeline", func(t *testing.T) {
		uc := &fakeChatUC{}
		lim := stubLimiter{dec: adapter.RateDecision{Allowed: false, RetryAfter: 1500 * time.Millisecond}}
		rr := post(t, newRouter(uc, lim), "/api/chat/message", `{"sessionId":"s","message":"m"}`)
		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d", rr.Code)
		}
		if rr.Header().Get("Retry-After") != "2" || decode(t, rr)["retryAfter"] != float64(2) {
			t.Fatalf("retry after header=%q body=%s", rr.Header().Get("Retry-After"), rr.Body.String())
		}
		if uc.sent() != 0 {
			t.Fatal("rejected message reached the use case")
		}
	})

	t.Run("limiter error lets the request through", func(t *testing.T) {
		uc := &fakeChatUC{}
		rr := post(t, newRouter(uc, stubLimiter{err: errors.New("redis down")}), "/api/chat/message", `{"sessionId":"s","message":"m"}`)
		if rr.Code != http.StatusOK || uc.sent() != 1 {
			t.Fatalf("status = %d sent=%d", rr.Code, uc.sent())
		}
	})

	t.Run("session creation is not limited", func(t *testing.T) {
		uc := &fakeChatUC{}
		lim := stubLimiter{dec: adapter.RateDecision{Allowed: false, RetryAfter: time.Minute}}
		rr := post(t, newRouter(uc, lim), "/api/chat/session", `{}`)
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d", rr.Code)
		}
	})

	t.Run("eleventh message in the window gets 429", func(t *testing.T) {
		uc := &fakeChatUC{}
		h := newRouter(uc, ratelimit.NewMemoryLimiter(10, time.Minute))
		for i := 0; i < 10; i++ {
			if rr := post(t, h, "/api/chat/message", `{"sessionId":"s","message":"m"}`); rr.Code != http.StatusOK {
				t.Fatalf("message %d: status %d", i+1, rr.Code)
			}
		}
		rr := post(t, h, "/api/chat/message", `{"sessionId":"s","message":"m"}`)
		if rr.Code != http.StatusTooManyRequests || decode(t, rr)["retryAfter"].(float64) <= 0 {
			t.Fatalf("11th: status=%d body=%s", rr.Code, rr.Body.String())
		}
		if uc.sent() != 10 {
			t.Fatalf("sent = %d", uc.sent())
		}
	})
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		trust   bool
		headers map[string]string
		remote  string
		want    string
	}{
		{"first forwarded entry", true, map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "10.0.0.1:80", "203.0.113.7"},
		{"real ip", true, map[string]string{"X-Real-IP": "198.51.100.3"}, "10.0.0.1:80", "198.51.100.3"},
		{"remote host", true, nil, "192.0.2.9:1234", "192.0.2.9"},
		{"headers ignored without trust", false, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "192.0.2.9:1234", "192.0.2.9"},
		{"unknown", true, nil, "", "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := api.ClientIP(tc.trust)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = logging.ClientIP(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tc.want {
				t.Fatalf("client ip = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRecoverAndHealth(t *testing.T) {
	log := newLogger()
	panicky := api.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), api.TraceID(log), api.Recover(log))
	rr := httptest.NewRecorder()
	panicky.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError || rr.Header().Get("X-Trace-Id") == "" {
		t.Fatalf("status = %d trace=%q", rr.Code, rr.Header().Get("X-Trace-Id"))
	}

	h := newRouter(&fakeChatUC{}, stubLimiter{})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", bytes.NewReader(nil)))
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Fatalf("health = %d %q", rr.Code, rr.Body.String())
	}
}
