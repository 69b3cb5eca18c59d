// Package router classifies a user message into a routing scope and
// gathers retrieval context for it before any model is called.
package router

import (
	"context"
	"log/slog"
	"strings"
)

// Scopes a Decision can carry. The last four are answered by the model;
// the others are answered directly.
const (
	ScopeWelcome    = "welcome"
	ScopeMeta       = "meta"
	ScopeOutOfScope = "out_of_scope"

	ScopeSQL      = "sql"
	ScopeDBT      = "dbt"
	ScopeAirflow  = "airflow"
	ScopeBigQuery = "bigquery"
)

// WelcomeAnswer is returned for greetings and questions about the assistant.
const WelcomeAnswer = "Hi 👋 I'm a **Data Engineering Assistant**.\n\n" +
	"I can help you with:\n" +
	"- Airflow DAGs\n" +
	"- dbt models & tests\n" +
	"- BigQuery SQL & optimization\n" +
	"- Data quality & pipelines"

// OutOfScopeAnswer is returned for messages unrelated to data engineering.
const OutOfScopeAnswer = "I can only help with Data Engineering topics: SQL, dbt, Airflow, " +
	"BigQuery, pipelines and data quality. Try rephrasing your question around one of those."

var (
	smallTalk = map[string]bool{"hi": true, "hello": true, "hey": true, "yo": true, "bonjour": true}

	metaKeywords = []string{"purpose", "assistant", "conventions", "help", "what can you do", "scope"}

	deKeywords = []string{
		"sql", "bigquery", "dbt", "airflow", "dag", "pipeline",
		"etl", "elt", "data quality", "dq", "schema",
		"partition", "cluster", "incremental", "model",
		"warehouse", "dataset", "table",
		"count", "show", "list", "select", "data", "rows", "records", "query",
	}
)

// Decision is the outcome of routing one message.
type Decision struct {
	Scope string

	// Context is retrieved knowledge to include in the prompt, possibly empty.
	Context string

	// Answer is set for scopes answered without the model.
	Answer string
}

// Direct reports whether the decision is answered without calling the model.
func (d Decision) Direct() bool {
	switch d.Scope {
	case ScopeWelcome, ScopeMeta, ScopeOutOfScope:
		return true
	}
	return false
}

// Retriever supplies knowledge context for a message.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// NoRetriever never returns context.
type NoRetriever struct{}

func (NoRetriever) Retrieve(context.Context, string) (string, error) { return "", nil }

// Router routes messages. It is safe for concurrent use when its
// Retriever is.
type Router struct {
	retriever Retriever
	logger    *slog.Logger
}

// New returns a Router. A nil retriever behaves like NoRetriever.
func New(retriever Retriever, logger *slog.Logger) *Router {
	if retriever == nil {
		retriever = NoRetriever{}
	}
	return &Router{retriever: retriever, logger: logger}
}

// Route classifies message. Greetings are matched before retrieval runs.
// Retrieval failures are logged and treated as no context.
func (r *Router) Route(ctx context.Context, message string) Decision {
	msg := strings.ToLower(strings.TrimSpace(message))

	if smallTalk[msg] {
		return Decision{Scope: ScopeWelcome, Answer: WelcomeAnswer}
	}

	knowledge, err := r.retriever.Retrieve(ctx, message)
	if err != nil {
		r.logger.Warn("retrieval failed, routing without context", "error", err)
		knowledge = ""
	}

	if containsAny(msg, metaKeywords) {
		return Decision{Scope: ScopeMeta, Context: knowledge, Answer: WelcomeAnswer}
	}

	if !containsAny(msg, deKeywords) && knowledge == "" {
		return Decision{Scope: ScopeOutOfScope, Answer: OutOfScopeAnswer}
	}

	return Decision{Scope: scopeFor(msg), Context: knowledge}
}

func scopeFor(msg string) string {
	switch {
	case strings.Contains(msg, "dbt"):
		return ScopeDBT
	case strings.Contains(msg, "airflow"), strings.Contains(msg, "dag"):
		return ScopeAirflow
	case strings.Contains(msg, "bigquery"):
		return ScopeBigQuery
	default:
		return ScopeSQL
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
