package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// ErrService wraps failures of the underlying model service. Callers can
// errors.Is against it to distinguish upstream outages from local bugs.
var ErrService = errors.New("model service error")

// Default model names. Routing, grading and answer generation run at
// temperature 0 so repeated calls over the same input converge; the
// conversational reply and query expansion run warmer for variety.
const (
	DefaultGenerationModel = "googleai/gemini-2.5-flash"

	deterministicTemperature float32 = 0
	creativeTemperature      float32 = 0.7
)

// LLM is the model surface the graph nodes consume. Implementations make
// one model call per method; none of them retry.
type LLM interface {
	// RouteQuestion classifies the question into a Route.
	RouteQuestion(ctx context.Context, question string) (Route, error)

	// ExpandQuestion generates three search-optimized reformulations of
	// the question. The original question is not included.
	ExpandQuestion(ctx context.Context, question string) ([]string, error)

	// GradeContext judges whether the formatted context can answer the
	// question.
	GradeContext(ctx context.Context, question, contextText string) (Relevance, error)

	// GenerateAnswer produces the cited final answer from the formatted
	// context.
	GenerateAnswer(ctx context.Context, question, contextText string) (string, error)

	// Chat produces a direct conversational reply with no retrieval.
	Chat(ctx context.Context, question string) (string, error)
}

// routeDecision is the structured output schema for routing.
type routeDecision struct {
	// Route is either "vectorstore" or "conversational".
	Route string `json:"route" jsonschema_description:"Either 'vectorstore' or 'conversational'."`
}

// generatedQueries is the structured output schema for query expansion.
type generatedQueries struct {
	Queries []string `json:"queries" jsonschema_description:"A list of 3 search queries optimized for a vector database."`
}

// relevanceDecision is the structured output schema for context grading.
type relevanceDecision struct {
	// Grade is either "relevant" or "irrelevant".
	Grade string `json:"grade" jsonschema_description:"Either 'relevant' or 'irrelevant'."`
}

// GenkitLLM implements LLM on top of a Genkit instance. The structured
// calls constrain the model with a JSON schema so the decision fields
// come back as parseable enums rather than free text.
type GenkitLLM struct {
	genkit *genkit.Genkit
	model  string
}

// NewGenkitLLM creates an LLM backed by the given Genkit instance. An
// empty model name selects DefaultGenerationModel.
func NewGenkitLLM(g *genkit.Genkit, model string) *GenkitLLM {
	if model == "" {
		model = DefaultGenerationModel
	}
	return &GenkitLLM{genkit: g, model: model}
}

// RouteQuestion implements LLM.
func (l *GenkitLLM) RouteQuestion(ctx context.Context, question string) (Route, error) {
	response, err := genkit.Generate(ctx, l.genkit,
		ai.WithModelName(l.model),
		ai.WithPrompt(routerPrompt, question),
		ai.WithOutputType(routeDecision{}),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(deterministicTemperature),
		}),
	)
	if err != nil {
		return RouteUnset, fmt.Errorf("%w: routing question: %w", ErrService, err)
	}

	var decision routeDecision
	if err := response.Output(&decision); err != nil {
		return RouteUnset, fmt.Errorf("%w: parsing route decision: %w", ErrService, err)
	}

	switch Route(decision.Route) {
	case RouteVectorstore:
		return RouteVectorstore, nil
	case RouteConversational:
		return RouteConversational, nil
	default:
		return RouteUnset, fmt.Errorf("%w: unexpected route %q", ErrService, decision.Route)
	}
}

// ExpandQuestion implements LLM.
func (l *GenkitLLM) ExpandQuestion(ctx context.Context, question string) ([]string, error) {
	response, err := genkit.Generate(ctx, l.genkit,
		ai.WithModelName(l.model),
		ai.WithPrompt(expandPrompt, question),
		ai.WithOutputType(generatedQueries{}),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(creativeTemperature),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: expanding question: %w", ErrService, err)
	}

	var queries generatedQueries
	if err := response.Output(&queries); err != nil {
		return nil, fmt.Errorf("%w: parsing generated queries: %w", ErrService, err)
	}
	if len(queries.Queries) == 0 {
		return nil, fmt.Errorf("%w: model returned no queries", ErrService)
	}
	return queries.Queries, nil
}

// GradeContext implements LLM.
func (l *GenkitLLM) GradeContext(ctx context.Context, question, contextText string) (Relevance, error) {
	response, err := genkit.Generate(ctx, l.genkit,
		ai.WithModelName(l.model),
		ai.WithPrompt(gradePrompt, contextText, question),
		ai.WithOutputType(relevanceDecision{}),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(deterministicTemperature),
		}),
	)
	if err != nil {
		return RelevanceUnset, fmt.Errorf("%w: grading context: %w", ErrService, err)
	}

	var decision relevanceDecision
	if err := response.Output(&decision); err != nil {
		return RelevanceUnset, fmt.Errorf("%w: parsing relevance decision: %w", ErrService, err)
	}

	switch Relevance(decision.Grade) {
	case RelevanceRelevant:
		return RelevanceRelevant, nil
	case RelevanceIrrelevant:
		return RelevanceIrrelevant, nil
	default:
		return RelevanceUnset, fmt.Errorf("%w: unexpected grade %q", ErrService, decision.Grade)
	}
}

// GenerateAnswer implements LLM.
func (l *GenkitLLM) GenerateAnswer(ctx context.Context, question, contextText string) (string, error) {
	response, err := genkit.Generate(ctx, l.genkit,
		ai.WithModelName(l.model),
		ai.WithPrompt(answerPrompt, question, contextText),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(deterministicTemperature),
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: generating answer: %w", ErrService, err)
	}
	return response.Text(), nil
}

// Chat implements LLM.
func (l *GenkitLLM) Chat(ctx context.Context, question string) (string, error) {
	response, err := genkit.Generate(ctx, l.genkit,
		ai.WithModelName(l.model),
		ai.WithPrompt("%s", question),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(creativeTemperature),
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: conversational reply: %w", ErrService, err)
	}
	return response.Text(), nil
}
