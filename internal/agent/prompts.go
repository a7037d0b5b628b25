package agent

import (
	"fmt"
	"strings"

	"github.com/quasar-ai/quasar/internal/knowledge"
)

// routerPrompt classifies a question as knowledge lookup or small talk.
// The worked examples matter: without them the model routes meta-questions
// ("what can you do?") into the vectorstore.
const routerPrompt = `You are an expert at routing a user question to a vectorstore or to a conversational agent.
A 'vectorstore' question is one that requires looking up information from a knowledge base.
A 'conversational' question is a simple greeting, a thank you, or a question about the AI itself.

For example:
- User question: 'Hi there', route: 'conversational'
- User question: 'thanks!', route: 'conversational'
- User question: 'What is the main purpose of the ADRD model?', route: 'vectorstore'
- User question: 'Summarize the document.', route: 'vectorstore'

Route the following user question.

User question: %s
`

// expandPrompt asks for three reformulations optimized for vector search.
const expandPrompt = `You are an expert at crafting search queries.
Your task is to take a user's question and generate a list of 3 search queries that are optimized for a vector database.
The queries should be different from each other and cover different aspects or phrasings of the original question.

Original Question: %s
`

// gradePrompt asks for one aggregate relevance judgment over the whole
// context set, not per chunk.
const gradePrompt = `You are a grader assessing the relevance of retrieved context to a user question.
If the context contains information that can be used to answer the question, grade it as 'relevant'.
Otherwise grade it as 'irrelevant'. The goal is to filter out retrievals that do not address the question at all.

Here is the retrieved context:
%s

Here is the user question:
%s

Grade the relevance of the context to the question.
`

// answerPrompt generates the final answer with inline [n] citations that
// refer to the 1-based [SOURCE n] numbering of the context.
const answerPrompt = `You are an assistant for question-answering tasks.
Use the following pieces of retrieved context to answer the question.
Each piece of context is prefixed with its source number (e.g., [SOURCE 1], [SOURCE 2], ...).
When you use information from a specific source, you MUST cite it in your answer by including the corresponding source number (e.g., [1], [2]).

If you don't know the answer, just say that you don't know.
Use three sentences maximum and keep the answer concise.

Question: %s
Context:
%s

Answer (with citations):
`

// formatContext renders the context chunks for the answer prompt,
// numbering each chunk 1-based in sequence order. The numbering must
// match the order of State.Context exactly: the caller maps cited [n]
// back to sources by the same ordinals.
func formatContext(docs []knowledge.Document) string {
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[SOURCE %d] %s", i+1, doc.Content)
	}
	return b.String()
}
