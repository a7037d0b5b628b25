package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/quasar-ai/quasar/internal/agent"
	"github.com/quasar-ai/quasar/internal/log"
)

// MaxQuestionRunes bounds the accepted question length. Longer inputs
// are almost certainly abuse and would waste model tokens.
const MaxQuestionRunes = 4000

// Answerer is the question-answering surface the chat handler consumes,
// satisfied by *agent.Agent.
type Answerer interface {
	Answer(ctx context.Context, question string) (agent.Result, error)
}

// chatRequest is the POST /api/v1/chat request body.
type chatRequest struct {
	Question string `json:"question"`
}

// chatHandler serves the question-answering endpoint.
type chatHandler struct {
	agent  Answerer
	logger log.Logger
}

// ask handles POST /api/v1/chat. Upstream model failures map to 502 so
// operators can tell an outage of the model service apart from a bug in
// this service.
func (h *chatHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a question field", h.logger)
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "empty_question", "question cannot be empty", h.logger)
		return
	}
	if utf8.RuneCountInString(question) > MaxQuestionRunes {
		writeError(w, http.StatusBadRequest, "question_too_long", "question exceeds maximum length", h.logger)
		return
	}

	result, err := h.agent.Answer(r.Context(), question)
	if err != nil {
		requestID := requestIDFromContext(r.Context())
		h.logger.Error("answering question failed", "error", err, "request_id", requestID)

		if errors.Is(err, agent.ErrService) {
			writeError(w, http.StatusBadGateway, "model_unavailable", "the model service is unavailable", h.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	// The zero-value slice would serialize as null; clients expect [].
	if result.Sources == nil {
		result.Sources = []agent.Source{}
	}
	writeJSON(w, http.StatusOK, result, h.logger)
}
