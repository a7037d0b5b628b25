package agent

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/quasar-ai/quasar/internal/knowledge"
	"github.com/quasar-ai/quasar/internal/log"
)

// mockLLM scripts every model decision and records which calls were made.
type mockLLM struct {
	route    Route
	routeErr error

	queries   []string
	expandErr error

	grade    Relevance
	gradeErr error

	answer      string
	generateErr error

	chatReply string
	chatErr   error

	routeCalls    int
	expandCalls   int
	gradeCalls    int
	generateCalls int
	chatCalls     int

	gradedContext   string
	answeredContext string
}

func (m *mockLLM) RouteQuestion(_ context.Context, _ string) (Route, error) {
	m.routeCalls++
	return m.route, m.routeErr
}

func (m *mockLLM) ExpandQuestion(_ context.Context, _ string) ([]string, error) {
	m.expandCalls++
	return m.queries, m.expandErr
}

func (m *mockLLM) GradeContext(_ context.Context, _ string, contextText string) (Relevance, error) {
	m.gradeCalls++
	m.gradedContext = contextText
	return m.grade, m.gradeErr
}

func (m *mockLLM) GenerateAnswer(_ context.Context, _ string, contextText string) (string, error) {
	m.generateCalls++
	m.answeredContext = contextText
	return m.answer, m.generateErr
}

func (m *mockLLM) Chat(_ context.Context, _ string) (string, error) {
	m.chatCalls++
	return m.chatReply, m.chatErr
}

// mockSearcher returns scripted results per query and records the order
// queries were issued.
type mockSearcher struct {
	results map[string][]knowledge.Result
	err     error

	queries []string
}

func (m *mockSearcher) Search(_ context.Context, query string, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return m.results[query], nil
}

func doc(id, content string, meta map[string]string) knowledge.Document {
	return knowledge.Document{ID: id, Content: content, Metadata: meta}
}

func results(docs ...knowledge.Document) []knowledge.Result {
	rs := make([]knowledge.Result, len(docs))
	for i, d := range docs {
		rs[i] = knowledge.Result{Document: d, Similarity: 0.9}
	}
	return rs
}

func newTestAgent(t *testing.T, llm LLM, searcher Searcher) *Agent {
	t.Helper()
	a, err := New(llm, searcher, log.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestAgent_Answer_GeneratedWithSources(t *testing.T) {
	llm := &mockLLM{
		route:   RouteVectorstore,
		queries: []string{"q1", "q2", "q3"},
		grade:   RelevanceRelevant,
		answer:  "The model predicts progression [1].",
	}
	searcher := &mockSearcher{
		results: map[string][]knowledge.Result{
			"original": results(doc("a", "chunk one", map[string]string{"source": "paper.pdf", "page_number": "3"})),
			"q2":       results(doc("b", "chunk two", map[string]string{"source": "notes.md"})),
		},
	}

	agent := newTestAgent(t, llm, searcher)
	result, err := agent.Answer(context.Background(), "original")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if result.Answer != llm.answer {
		t.Errorf("Answer = %q, want %q", result.Answer, llm.answer)
	}
	want := []Source{
		{Source: "paper.pdf", Page: "3"},
		{Source: "notes.md", Page: "N/A"},
	}
	if !reflect.DeepEqual(result.Sources, want) {
		t.Errorf("Sources = %+v, want %+v", result.Sources, want)
	}
	if llm.chatCalls != 0 {
		t.Errorf("chat called %d times on the retrieval path", llm.chatCalls)
	}
}

func TestAgent_Answer_SearchesOriginalPlusGeneratedInOrder(t *testing.T) {
	llm := &mockLLM{
		route:   RouteVectorstore,
		queries: []string{"alpha", "beta", "gamma"},
		grade:   RelevanceIrrelevant,
	}
	searcher := &mockSearcher{}

	agent := newTestAgent(t, llm, searcher)
	if _, err := agent.Answer(context.Background(), "the question"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	want := []string{"the question", "alpha", "beta", "gamma"}
	if !reflect.DeepEqual(searcher.queries, want) {
		t.Errorf("search queries = %v, want %v", searcher.queries, want)
	}
}

func TestAgent_Answer_Clarification(t *testing.T) {
	llm := &mockLLM{
		route:   RouteVectorstore,
		queries: []string{"q1", "q2", "q3"},
		grade:   RelevanceIrrelevant,
	}
	searcher := &mockSearcher{
		results: map[string][]knowledge.Result{
			"off-topic": results(doc("a", "unrelated text", map[string]string{"source": "x.pdf"})),
		},
	}

	agent := newTestAgent(t, llm, searcher)
	result, err := agent.Answer(context.Background(), "off-topic")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if result.Answer != ClarificationMessage {
		t.Errorf("Answer = %q, want the clarification message", result.Answer)
	}
	if len(result.Sources) != 0 {
		t.Errorf("Sources = %+v, want none on the clarification path", result.Sources)
	}
	if llm.generateCalls != 0 {
		t.Errorf("generate called %d times after an irrelevant grade", llm.generateCalls)
	}
}

func TestAgent_Answer_Conversational(t *testing.T) {
	llm := &mockLLM{
		route:     RouteConversational,
		chatReply: "Hello! How can I help?",
	}
	searcher := &mockSearcher{}

	agent := newTestAgent(t, llm, searcher)
	result, err := agent.Answer(context.Background(), "hi there")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if result.Answer != llm.chatReply {
		t.Errorf("Answer = %q, want %q", result.Answer, llm.chatReply)
	}
	if len(result.Sources) != 0 {
		t.Errorf("Sources = %+v, want none on the conversational path", result.Sources)
	}
	if len(searcher.queries) != 0 {
		t.Errorf("search ran %d times on the conversational path", len(searcher.queries))
	}
	if llm.expandCalls != 0 || llm.gradeCalls != 0 || llm.generateCalls != 0 {
		t.Error("retrieval-path model calls made on the conversational path")
	}
}

func TestAgent_Answer_EmptyRetrievalSkipsGrading(t *testing.T) {
	llm := &mockLLM{
		route:   RouteVectorstore,
		queries: []string{"q1", "q2", "q3"},
		grade:   RelevanceRelevant, // must not be consulted
	}
	searcher := &mockSearcher{}

	agent := newTestAgent(t, llm, searcher)
	result, err := agent.Answer(context.Background(), "question with no matches")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if result.Answer != ClarificationMessage {
		t.Errorf("Answer = %q, want the clarification message", result.Answer)
	}
	if llm.gradeCalls != 0 {
		t.Errorf("grade called %d times with empty context", llm.gradeCalls)
	}
}

func TestAgent_Answer_Errors(t *testing.T) {
	sentinel := errors.New("boom")

	tests := []struct {
		name     string
		llm      *mockLLM
		searcher *mockSearcher
		wantNode string
	}{
		{
			name:     "router failure",
			llm:      &mockLLM{routeErr: sentinel},
			searcher: &mockSearcher{},
			wantNode: nodeRouter,
		},
		{
			name:     "expansion failure",
			llm:      &mockLLM{route: RouteVectorstore, expandErr: sentinel},
			searcher: &mockSearcher{},
			wantNode: nodeRetrieve,
		},
		{
			name:     "search failure",
			llm:      &mockLLM{route: RouteVectorstore, queries: []string{"q1", "q2", "q3"}},
			searcher: &mockSearcher{err: sentinel},
			wantNode: nodeRetrieve,
		},
		{
			name: "grading failure",
			llm:  &mockLLM{route: RouteVectorstore, queries: []string{"q1", "q2", "q3"}, gradeErr: sentinel},
			searcher: &mockSearcher{results: map[string][]knowledge.Result{
				"q1": results(doc("a", "text", nil)),
			}},
			wantNode: nodeEvaluator,
		},
		{
			name: "generation failure",
			llm:  &mockLLM{route: RouteVectorstore, queries: []string{"q1", "q2", "q3"}, grade: RelevanceRelevant, generateErr: sentinel},
			searcher: &mockSearcher{results: map[string][]knowledge.Result{
				"q1": results(doc("a", "text", nil)),
			}},
			wantNode: nodeGenerate,
		},
		{
			name:     "chat failure",
			llm:      &mockLLM{route: RouteConversational, chatErr: sentinel},
			searcher: &mockSearcher{},
			wantNode: nodeConversational,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := newTestAgent(t, tt.llm, tt.searcher)
			_, err := agent.Answer(context.Background(), "question")
			if !errors.Is(err, sentinel) {
				t.Fatalf("Answer() error = %v, want wrapped sentinel", err)
			}
			wantPrefix := fmt.Sprintf("node %q", tt.wantNode)
			if got := err.Error(); len(got) < len(wantPrefix) || got[:len(wantPrefix)] != wantPrefix {
				t.Errorf("error = %q, want prefix %q", got, wantPrefix)
			}
		})
	}
}

func TestAgent_Answer_ContextCancellation(t *testing.T) {
	llm := &mockLLM{route: RouteVectorstore, queries: []string{"q1", "q2", "q3"}}
	agent := newTestAgent(t, llm, &mockSearcher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.Answer(ctx, "question")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Answer() error = %v, want context.Canceled", err)
	}
	if llm.routeCalls != 0 {
		t.Errorf("router ran %d times under a cancelled context", llm.routeCalls)
	}
}

func TestDedupeByContent(t *testing.T) {
	tests := []struct {
		name string
		in   []knowledge.Document
		want []knowledge.Document
	}{
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
		{
			name: "no duplicates preserved in order",
			in: []knowledge.Document{
				doc("a", "one", nil),
				doc("b", "two", nil),
			},
			want: []knowledge.Document{
				doc("a", "one", nil),
				doc("b", "two", nil),
			},
		},
		{
			name: "duplicate keeps first position, last value",
			in: []knowledge.Document{
				doc("a", "shared", map[string]string{"source": "old.pdf"}),
				doc("b", "unique", nil),
				doc("c", "shared", map[string]string{"source": "new.pdf"}),
			},
			want: []knowledge.Document{
				doc("c", "shared", map[string]string{"source": "new.pdf"}),
				doc("b", "unique", nil),
			},
		},
		{
			name: "triple duplicate collapses to one",
			in: []knowledge.Document{
				doc("a", "same", nil),
				doc("b", "same", nil),
				doc("c", "same", nil),
			},
			want: []knowledge.Document{
				doc("c", "same", nil),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dedupeByContent(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("dedupeByContent() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFormatContext(t *testing.T) {
	got := formatContext([]knowledge.Document{
		doc("a", "first chunk", nil),
		doc("b", "second chunk", nil),
	})
	want := "[SOURCE 1] first chunk\n\n[SOURCE 2] second chunk"
	if got != want {
		t.Errorf("formatContext() = %q, want %q", got, want)
	}

	if formatContext(nil) != "" {
		t.Error("formatContext(nil) should be empty")
	}
}

func TestCollectSources(t *testing.T) {
	got := collectSources([]knowledge.Document{
		doc("a", "x", map[string]string{"source": "a.pdf", "page_number": "1"}),
		doc("b", "y", nil),
		doc("c", "z", map[string]string{"source": "c.md"}),
		doc("d", "w", map[string]string{"source": ""}),
	})
	want := []Source{
		{Source: "a.pdf", Page: "1"},
		{Source: "c.md", Page: "N/A"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("collectSources() = %+v, want %+v", got, want)
	}
}

// The compiled graph is reused across calls; with deterministic model
// decisions, repeated questions must produce identical results.
func TestAgent_Answer_RepeatedCallsDeterministic(t *testing.T) {
	llm := &mockLLM{
		route:   RouteVectorstore,
		queries: []string{"q1", "q2", "q3"},
		grade:   RelevanceRelevant,
		answer:  "stable answer [1]",
	}
	searcher := &mockSearcher{
		results: map[string][]knowledge.Result{
			"question": results(doc("a", "chunk", map[string]string{"source": "a.pdf"})),
		},
	}

	agent := newTestAgent(t, llm, searcher)

	first, err := agent.Answer(context.Background(), "question")
	if err != nil {
		t.Fatalf("first Answer() error = %v", err)
	}
	second, err := agent.Answer(context.Background(), "question")
	if err != nil {
		t.Fatalf("second Answer() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated calls diverged: %+v vs %+v", first, second)
	}
	if llm.routeCalls != 2 {
		t.Errorf("routeCalls = %d, want one per Answer call", llm.routeCalls)
	}
}

// Grading and generation must see the identical formatted context, so
// the source numbering the model cites matches what was graded.
func TestAgent_Answer_GradeAndGenerateSeeSameContext(t *testing.T) {
	llm := &mockLLM{
		route:   RouteVectorstore,
		queries: []string{"q1", "q2", "q3"},
		grade:   RelevanceRelevant,
		answer:  "answer [1]",
	}
	searcher := &mockSearcher{
		results: map[string][]knowledge.Result{
			"question": results(
				doc("a", "chunk one", map[string]string{"source": "a.pdf"}),
				doc("b", "chunk two", map[string]string{"source": "b.pdf"}),
			),
		},
	}

	agent := newTestAgent(t, llm, searcher)
	if _, err := agent.Answer(context.Background(), "question"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if llm.gradedContext != llm.answeredContext {
		t.Errorf("grader saw %q but generator saw %q", llm.gradedContext, llm.answeredContext)
	}
	want := "[SOURCE 1] chunk one\n\n[SOURCE 2] chunk two"
	if llm.answeredContext != want {
		t.Errorf("generator context = %q, want %q", llm.answeredContext, want)
	}
}
