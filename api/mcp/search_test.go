package mcp

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/dechat/pkg/vector"
)

var _ = Describe("Search tool", func() {
	Describe("buildSearchOutput", func() {
		It("builds a result per match", func() {
			out := buildSearchOutput("orders", []vector.QueryResult{
				{Document: vector.Document{ID: "1", Source: "a.md", Content: "alpha"}, Score: 0.95},
				{Document: vector.Document{ID: "2", Source: "b.md", Content: "beta"}, Score: 0.5},
			})

			Expect(out.Query).To(Equal("orders"))
			Expect(out.Count).To(Equal(2))
			Expect(out.Results[0].ID).To(Equal("1"))
			Expect(out.Results[0].Score).To(Equal(float32(0.95)))
			Expect(out.Results[1].Source).To(Equal("b.md"))
		})

		It("truncates long previews", func() {
			out := buildSearchOutput("q", []vector.QueryResult{
				{Document: vector.Document{ID: "1", Content: strings.Repeat("x", 500)}},
			})
			Expect(len(out.Results[0].Preview)).To(BeNumerically("<=", previewLen+3))
			Expect(out.Results[0].Preview).NotTo(Equal(strings.Repeat("x", 500)))
		})

		It("handles no matches", func() {
			out := buildSearchOutput("q", nil)
			Expect(out.Results).To(BeEmpty())
			Expect(out.Results).NotTo(BeNil())
			Expect(out.Count).To(BeZero())
		})
	})
})
