package mcp_test

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apimcp "github.com/papercomputeco/dechat/api/mcp"
	"github.com/papercomputeco/dechat/pkg/logger"
	"github.com/papercomputeco/dechat/pkg/sqlrunner"
	"github.com/papercomputeco/dechat/pkg/vector"
)

type fakeSearcher struct {
	results []vector.QueryResult
	err     error
	topK    int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, topK int) ([]vector.QueryResult, error) {
	f.topK = topK
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > topK {
		return f.results[:topK], nil
	}
	return f.results, nil
}

// connect opens an in-process client session on s.
func connect(s *apimcp.Server) *mcp.ClientSession {
	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()

	_, err := s.MCPServer().Connect(ctx, serverT, nil)
	Expect(err).NotTo(HaveOccurred())

	client := mcp.NewClient(&mcp.Implementation{Name: "dechat-test", Version: "v0.0.0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = cs.Close() })

	return cs
}

func toolNames(cs *mcp.ClientSession) []string {
	res, err := cs.ListTools(context.Background(), nil)
	Expect(err).NotTo(HaveOccurred())

	names := make([]string, 0, len(res.Tools))
	for _, t := range res.Tools {
		names = append(names, t.Name)
	}
	return names
}

func callTool(cs *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, string) {
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	Expect(err).NotTo(HaveOccurred())
	Expect(res.Content).NotTo(BeEmpty())

	text, ok := res.Content[0].(*mcp.TextContent)
	Expect(ok).To(BeTrue())
	return res, text.Text
}

var _ = Describe("MCP Server", func() {
	var searcher *fakeSearcher

	BeforeEach(func() {
		searcher = &fakeSearcher{results: []vector.QueryResult{
			{Document: vector.Document{ID: "a", Source: "docs/runbooks/late-orders.md", Content: "Late orders are retried nightly."}, Score: 0.91},
			{Document: vector.Document{ID: "b", Source: "docs/runbooks/refunds.md", Content: "Refunds post within a day."}, Score: 0.72},
		}}
	})

	Describe("NewServer", func() {
		It("returns an error when logger is nil", func() {
			_, err := apimcp.NewServer(apimcp.Config{Searcher: searcher})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("returns an error without any backend unless noop", func() {
			_, err := apimcp.NewServer(apimcp.Config{Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("a searcher or a warehouse is required")))
		})

		It("returns an HTTP handler", func() {
			server, err := apimcp.NewServer(apimcp.Config{Searcher: searcher, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("tools", func() {
		It("serves no tools in noop mode", func() {
			server, err := apimcp.NewServer(apimcp.Config{Noop: true, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())

			Expect(toolNames(connect(server))).To(BeEmpty())
		})

		It("registers search only when retrieval is configured", func() {
			server, err := apimcp.NewServer(apimcp.Config{Searcher: searcher, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			Expect(toolNames(connect(server))).To(ConsistOf("search"))
		})
	})

	Describe("search", func() {
		var cs *mcp.ClientSession

		BeforeEach(func() {
			server, err := apimcp.NewServer(apimcp.Config{Searcher: searcher, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			cs = connect(server)
		})

		It("returns matched documents as JSON text", func() {
			res, text := callTool(cs, "search", map[string]any{"query": "late orders", "top_k": 1})
			Expect(res.IsError).To(BeFalse())

			var out apimcp.SearchOutput
			Expect(json.Unmarshal([]byte(text), &out)).To(Succeed())
			Expect(out.Query).To(Equal("late orders"))
			Expect(out.Count).To(Equal(1))
			Expect(out.Results[0].Source).To(Equal("docs/runbooks/late-orders.md"))
			Expect(out.Results[0].Preview).To(Equal("Late orders are retried nightly."))
		})

		It("defaults top_k to 5", func() {
			_, _ = callTool(cs, "search", map[string]any{"query": "refunds"})
			Expect(searcher.topK).To(Equal(5))
		})

		It("reports an empty query as a tool error", func() {
			res, text := callTool(cs, "search", map[string]any{"query": ""})
			Expect(res.IsError).To(BeTrue())
			Expect(text).To(Equal("query is required"))
		})

		It("reports search failures as a tool error", func() {
			searcher.err = errors.New("vector store offline")

			res, text := callTool(cs, "search", map[string]any{"query": "refunds"})
			Expect(res.IsError).To(BeTrue())
			Expect(text).To(ContainSubstring("vector store offline"))
		})
	})

	Describe("run_sql", func() {
		var cs *mcp.ClientSession

		BeforeEach(func() {
			warehouse, err := sqlrunner.Open(":memory:", logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(warehouse.Close)

			server, err := apimcp.NewServer(apimcp.Config{Warehouse: warehouse, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			cs = connect(server)
		})

		It("is the only tool without retrieval", func() {
			Expect(toolNames(cs)).To(ConsistOf("run_sql"))
		})

		It("returns rows keyed by column", func() {
			res, text := callTool(cs, "run_sql", map[string]any{"query": "SELECT 1 AS n"})
			Expect(res.IsError).To(BeFalse())

			var out apimcp.RunSQLOutput
			Expect(json.Unmarshal([]byte(text), &out)).To(Succeed())
			Expect(out.Columns).To(Equal([]string{"n"}))
			Expect(out.Rows).To(HaveLen(1))
			Expect(out.Rows[0]).To(HaveKeyWithValue("n", BeNumerically("==", 1)))
		})

		It("refuses statements that modify data", func() {
			res, text := callTool(cs, "run_sql", map[string]any{"query": "DROP TABLE orders"})
			Expect(res.IsError).To(BeTrue())
			Expect(text).To(ContainSubstring("Only SELECT"))
		})
	})
})
