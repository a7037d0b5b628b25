package agent

import "github.com/quasar-ai/quasar/internal/knowledge"

// Route is the routing decision selecting which execution branch a
// question takes.
type Route string

const (
	// RouteUnset means the router has not run yet.
	RouteUnset Route = ""

	// RouteVectorstore sends the question through retrieval.
	RouteVectorstore Route = "vectorstore"

	// RouteConversational answers directly, with no retrieval.
	RouteConversational Route = "conversational"
)

// Relevance is the grading decision over the retrieved context.
type Relevance string

const (
	// RelevanceUnset means the grader has not run yet.
	RelevanceUnset Relevance = ""

	// RelevanceRelevant allows answer generation from the context.
	RelevanceRelevant Relevance = "relevant"

	// RelevanceIrrelevant blocks generation; the run ends with the
	// clarification message.
	RelevanceIrrelevant Relevance = "irrelevant"
)

// State is the record threaded through one graph run for one question.
// Every field except Question starts at its zero value and is populated
// by exactly one node. A State is owned by a single run and discarded
// when the answer is returned.
type State struct {
	// Question is the user's input, immutable after creation.
	Question string

	// Route is set by the router node.
	Route Route

	// Context holds the deduplicated retrieved chunks, set by the
	// retrieve node. Empty on the conversational path.
	Context []knowledge.Document

	// Relevance is set by the content evaluator node.
	Relevance Relevance

	// Answer is set exactly once, by one of the three terminal nodes.
	Answer string
}

// Graph node names. The wiring in buildGraph is the single place these
// connect; tests reference them to assert transitions.
const (
	nodeRouter         = "router"
	nodeRetrieve       = "retrieve"
	nodeEvaluator      = "content_evaluator"
	nodeGenerate       = "generate"
	nodeConversational = "conversational_agent"
	nodeClarification  = "clarification"
)

// ClarificationMessage is the fixed terminal answer when no relevant
// context was found. It is a successful outcome, not an error.
const ClarificationMessage = "I'm sorry, but I could not find any documents in my knowledge base that are relevant to your question."
