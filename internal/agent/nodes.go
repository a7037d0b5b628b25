package agent

import (
	"context"
	"fmt"

	"github.com/quasar-ai/quasar/internal/graph"
	"github.com/quasar-ai/quasar/internal/knowledge"
)

// Searcher is the retrieval surface the agent consumes, satisfied by
// *knowledge.Store.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// routeQuestion classifies the question and records the branch decision.
func (a *Agent) routeQuestion(ctx context.Context, s State) (State, error) {
	route, err := a.llm.RouteQuestion(ctx, s.Question)
	if err != nil {
		return s, err
	}
	a.logger.Debug("question routed", "route", string(route))
	s.Route = route
	return s, nil
}

// retrieveContext expands the question into extra search queries, runs
// every query against the store, and merges the results into a single
// deduplicated context set.
func (a *Agent) retrieveContext(ctx context.Context, s State) (State, error) {
	generated, err := a.llm.ExpandQuestion(ctx, s.Question)
	if err != nil {
		return s, err
	}

	// The original question always searches first; the generated queries
	// follow in model order.
	queries := append([]string{s.Question}, generated...)

	var merged []knowledge.Document
	for _, query := range queries {
		results, err := a.searcher.Search(ctx, query)
		if err != nil {
			return s, fmt.Errorf("searching %q: %w", query, err)
		}
		for _, r := range results {
			merged = append(merged, r.Document)
		}
	}

	s.Context = dedupeByContent(merged)
	a.logger.Debug("context retrieved",
		"queries", len(queries),
		"chunks", len(merged),
		"deduplicated", len(s.Context))
	return s, nil
}

// dedupeByContent collapses chunks with identical content. The output
// preserves the position of each content's first occurrence, but a later
// duplicate replaces the earlier document in place, so its metadata wins.
func dedupeByContent(docs []knowledge.Document) []knowledge.Document {
	if len(docs) == 0 {
		return nil
	}

	position := make(map[string]int, len(docs))
	unique := make([]knowledge.Document, 0, len(docs))
	for _, doc := range docs {
		if i, seen := position[doc.Content]; seen {
			unique[i] = doc
			continue
		}
		position[doc.Content] = len(unique)
		unique = append(unique, doc)
	}
	return unique
}

// evaluateContext grades the merged context against the question.
func (a *Agent) evaluateContext(ctx context.Context, s State) (State, error) {
	// Nothing retrieved cannot be relevant; skip the model call.
	if len(s.Context) == 0 {
		s.Relevance = RelevanceIrrelevant
		return s, nil
	}

	relevance, err := a.llm.GradeContext(ctx, s.Question, formatContext(s.Context))
	if err != nil {
		return s, err
	}
	a.logger.Debug("context graded", "relevance", string(relevance))
	s.Relevance = relevance
	return s, nil
}

// generateAnswer produces the cited answer from the relevant context.
func (a *Agent) generateAnswer(ctx context.Context, s State) (State, error) {
	answer, err := a.llm.GenerateAnswer(ctx, s.Question, formatContext(s.Context))
	if err != nil {
		return s, err
	}
	s.Answer = answer
	return s, nil
}

// converse answers the question directly, without retrieval.
func (a *Agent) converse(ctx context.Context, s State) (State, error) {
	answer, err := a.llm.Chat(ctx, s.Question)
	if err != nil {
		return s, err
	}
	s.Answer = answer
	return s, nil
}

// clarify terminates the run with the fixed clarification message. No
// model call is made.
func (a *Agent) clarify(_ context.Context, s State) (State, error) {
	s.Answer = ClarificationMessage
	return s, nil
}

// buildGraph wires the six nodes into the question-answering flow:
//
//	router ──(vectorstore)──▶ retrieve ─▶ content_evaluator ──(relevant)──▶ generate
//	   │                                        │
//	   └──(conversational)─▶ conversational     └──(irrelevant)─▶ clarification
//
// A compile error here is a programming defect, never a runtime
// condition, so New treats it as fatal.
func (a *Agent) buildGraph() (*graph.Runnable[State], error) {
	g := graph.New[State]()

	if err := g.AddNode(nodeRouter, a.routeQuestion); err != nil {
		return nil, err
	}
	if err := g.AddNode(nodeRetrieve, a.retrieveContext); err != nil {
		return nil, err
	}
	if err := g.AddNode(nodeEvaluator, a.evaluateContext); err != nil {
		return nil, err
	}
	if err := g.AddNode(nodeGenerate, a.generateAnswer); err != nil {
		return nil, err
	}
	if err := g.AddNode(nodeConversational, a.converse); err != nil {
		return nil, err
	}
	if err := g.AddNode(nodeClarification, a.clarify); err != nil {
		return nil, err
	}

	g.SetEntryPoint(nodeRouter)

	if err := g.AddConditionalEdges(nodeRouter,
		func(s State) string { return string(s.Route) },
		map[string]string{
			string(RouteVectorstore):    nodeRetrieve,
			string(RouteConversational): nodeConversational,
		}); err != nil {
		return nil, err
	}
	if err := g.AddEdge(nodeRetrieve, nodeEvaluator); err != nil {
		return nil, err
	}
	if err := g.AddConditionalEdges(nodeEvaluator,
		func(s State) string { return string(s.Relevance) },
		map[string]string{
			string(RelevanceRelevant):   nodeGenerate,
			string(RelevanceIrrelevant): nodeClarification,
		}); err != nil {
		return nil, err
	}
	if err := g.AddEdge(nodeGenerate, graph.End); err != nil {
		return nil, err
	}
	if err := g.AddEdge(nodeConversational, graph.End); err != nil {
		return nil, err
	}
	if err := g.AddEdge(nodeClarification, graph.End); err != nil {
		return nil, err
	}

	return g.Compile()
}
