package router_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/dechat/pkg/logger"
	"github.com/papercomputeco/dechat/pkg/router"
)

type stubRetriever struct {
	context string
	err     error
	calls   int
}

func (s *stubRetriever) Retrieve(context.Context, string) (string, error) {
	s.calls++
	return s.context, s.err
}

var _ = Describe("Router", func() {
	var (
		ctx       context.Context
		retriever *stubRetriever
		r         *router.Router
	)

	BeforeEach(func() {
		ctx = context.Background()
		retriever = &stubRetriever{}
		r = router.New(retriever, logger.Nop())
	})

	It("answers greetings without retrieval", func() {
		d := r.Route(ctx, "  Hello ")
		Expect(d.Scope).To(Equal(router.ScopeWelcome))
		Expect(d.Answer).To(Equal(router.WelcomeAnswer))
		Expect(d.Direct()).To(BeTrue())
		Expect(retriever.calls).To(BeZero())
	})

	It("only treats an exact greeting as small talk", func() {
		d := r.Route(ctx, "hello, show me the orders table")
		Expect(d.Scope).To(Equal(router.ScopeSQL))
	})

	It("answers meta questions directly", func() {
		d := r.Route(ctx, "What can you do?")
		Expect(d.Scope).To(Equal(router.ScopeMeta))
		Expect(d.Direct()).To(BeTrue())
		Expect(d.Answer).NotTo(BeEmpty())
	})

	It("rejects messages with no data engineering keyword and no context", func() {
		d := r.Route(ctx, "what is the capital of France?")
		Expect(d.Scope).To(Equal(router.ScopeOutOfScope))
		Expect(d.Answer).To(Equal(router.OutOfScopeAnswer))
	})

	It("lets retrieved context override the keyword guardrail", func() {
		retriever.context = "[Source: runbooks/oncall.md]\npage the owner"
		d := r.Route(ctx, "who do I page at night?")
		Expect(d.Scope).To(Equal(router.ScopeSQL))
		Expect(d.Context).To(Equal(retriever.context))
		Expect(d.Direct()).To(BeFalse())
	})

	It("routes without context when retrieval fails", func() {
		retriever.err = errors.New("vector store down")
		d := r.Route(ctx, "count rows in orders")
		Expect(d.Scope).To(Equal(router.ScopeSQL))
		Expect(d.Context).To(BeEmpty())
	})

	DescribeTable("scope selection",
		func(message, scope string) {
			Expect(r.Route(ctx, message).Scope).To(Equal(scope))
		},
		Entry("dbt wins over everything", "my dbt model on bigquery fails", router.ScopeDBT),
		Entry("airflow", "airflow task keeps retrying", router.ScopeAirflow),
		Entry("dag implies airflow", "my DAG is stuck", router.ScopeAirflow),
		Entry("bigquery", "BigQuery partition pruning", router.ScopeBigQuery),
		Entry("default sql", "select the top customers", router.ScopeSQL),
	)

	It("treats a nil retriever as no retriever", func() {
		r := router.New(nil, logger.Nop())
		Expect(r.Route(ctx, "tell me a joke").Scope).To(Equal(router.ScopeOutOfScope))
	})
})
