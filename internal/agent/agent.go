// Package agent implements the adaptive question-answering flow: a
// router decides between knowledge-base retrieval and a direct
// conversational reply, retrieval fans the question out over generated
// search queries, and a relevance gate decides between a cited answer
// and a clarification message.
package agent

import (
	"context"
	"fmt"

	"github.com/quasar-ai/quasar/internal/graph"
	"github.com/quasar-ai/quasar/internal/knowledge"
	"github.com/quasar-ai/quasar/internal/log"
)

// Source identifies one document a generated answer drew from.
type Source struct {
	// Source is the origin identifier from ingestion, typically a file
	// name.
	Source string `json:"source"`

	// Page is the page number within the source, or "N/A" when the
	// source has no page structure.
	Page string `json:"page"`
}

// Result is the outcome of one answered question.
type Result struct {
	// Answer is the final answer text. On the clarification path it is
	// exactly ClarificationMessage.
	Answer string `json:"answer"`

	// Sources lists the origin of each context chunk that backed the
	// answer, in context order. Empty for conversational and
	// clarification answers.
	Sources []Source `json:"sources"`
}

// Agent answers questions by running the compiled flow graph. An Agent
// is immutable after New and safe for concurrent use.
type Agent struct {
	llm      LLM
	searcher Searcher
	runnable *graph.Runnable[State]
	logger   log.Logger
}

// New creates an Agent over the given model surface and retrieval store.
// The flow graph compiles once here; a compile failure means the wiring
// in this package is broken and is returned as an error rather than a
// panic so callers surface it through their startup path.
func New(llm LLM, searcher Searcher, logger log.Logger) (*Agent, error) {
	a := &Agent{
		llm:      llm,
		searcher: searcher,
		logger:   logger,
	}

	runnable, err := a.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("compiling agent graph: %w", err)
	}
	a.runnable = runnable
	return a, nil
}

// Answer runs one question through the flow and returns the answer with
// its supporting sources. Each call is independent; no conversation
// state is carried between calls.
func (a *Agent) Answer(ctx context.Context, question string) (Result, error) {
	final, err := a.runnable.Invoke(ctx, State{Question: question})
	if err != nil {
		return Result{}, err
	}

	result := Result{Answer: final.Answer}
	// Sources accompany generated answers only: the conversational and
	// clarification paths never consulted the knowledge base.
	if final.Route == RouteVectorstore && final.Relevance == RelevanceRelevant {
		result.Sources = collectSources(final.Context)
	}
	return result, nil
}

// collectSources extracts source attributions from the context chunks,
// in order. Chunks without a source are skipped rather than reported as
// unknown.
func collectSources(docs []knowledge.Document) []Source {
	sources := make([]Source, 0, len(docs))
	for _, doc := range docs {
		src, ok := doc.Metadata["source"]
		if !ok || src == "" {
			continue
		}
		page := doc.Metadata["page_number"]
		if page == "" {
			page = "N/A"
		}
		sources = append(sources, Source{Source: src, Page: page})
	}
	return sources
}
