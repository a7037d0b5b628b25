package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quasar-ai/quasar/internal/agent"
	"github.com/quasar-ai/quasar/internal/log"
)

// mockAnswerer scripts the agent's reply for handler tests.
type mockAnswerer struct {
	result agent.Result
	err    error

	gotQuestion string
}

func (m *mockAnswerer) Answer(_ context.Context, question string) (agent.Result, error) {
	m.gotQuestion = question
	return m.result, m.err
}

func newChatServer(t *testing.T, a Answerer) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{Agent: a, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func postChat(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestChat_Success(t *testing.T) {
	answerer := &mockAnswerer{
		result: agent.Result{
			Answer: "It predicts disease progression [1].",
			Sources: []agent.Source{
				{Source: "paper.pdf", Page: "3"},
			},
		},
	}
	srv := newChatServer(t, answerer)

	w := postChat(t, srv, `{"question": "What does the model do?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var resp agent.Result
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Answer != answerer.result.Answer {
		t.Errorf("answer = %q, want %q", resp.Answer, answerer.result.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Source != "paper.pdf" {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if answerer.gotQuestion != "What does the model do?" {
		t.Errorf("agent saw question %q", answerer.gotQuestion)
	}
}

func TestChat_EmptySourcesSerializeAsArray(t *testing.T) {
	srv := newChatServer(t, &mockAnswerer{
		result: agent.Result{Answer: "Hello!"},
	})

	w := postChat(t, srv, `{"question": "hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"sources":[]`) {
		t.Errorf("body = %s, want sources serialized as []", w.Body.String())
	}
}

func TestChat_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "malformed json", body: `{"question":`, wantCode: "invalid_request"},
		{name: "missing question", body: `{}`, wantCode: "empty_question"},
		{name: "blank question", body: `{"question": "   "}`, wantCode: "empty_question"},
		{name: "oversized question", body: fmt.Sprintf(`{"question": %q}`, strings.Repeat("x", MaxQuestionRunes+1)), wantCode: "question_too_long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answerer := &mockAnswerer{}
			srv := newChatServer(t, answerer)

			w := postChat(t, srv, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body: %s", w.Code, w.Body.String())
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding error response: %v", err)
			}
			if resp.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantCode)
			}
			if answerer.gotQuestion != "" {
				t.Error("agent was called for an invalid request")
			}
		})
	}
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "model service failure maps to 502",
			err:        fmt.Errorf("node %q: %w", "router", agent.ErrService),
			wantStatus: http.StatusBadGateway,
			wantCode:   "model_unavailable",
		},
		{
			name:       "other failures map to 500",
			err:        errors.New("connection pool exhausted"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newChatServer(t, &mockAnswerer{err: tt.err})

			w := postChat(t, srv, `{"question": "anything"}`)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding error response: %v", err)
			}
			if resp.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestChat_MethodNotAllowed(t *testing.T) {
	srv := newChatServer(t, &mockAnswerer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
