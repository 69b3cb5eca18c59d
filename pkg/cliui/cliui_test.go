package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/dechat/pkg/cliui"
)

var _ = Describe("Step", func() {
	It("returns the callback error and prints a fail mark", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")

		err := cliui.Step(&buf, "connecting", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring("connecting"))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})

	It("prints a success mark when the callback succeeds", func() {
		var buf bytes.Buffer

		Expect(cliui.Step(&buf, "checking health", func() error { return nil })).To(Succeed())
		Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
	})
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below one second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses seconds with one decimal otherwise", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("ScopeBadge", func() {
	It("is empty without a scope", func() {
		Expect(cliui.ScopeBadge("")).To(BeEmpty())
	})

	It("wraps known and unknown scopes in brackets", func() {
		Expect(cliui.ScopeBadge("dbt")).To(ContainSubstring("[dbt]"))
		Expect(cliui.ScopeBadge("custom")).To(ContainSubstring("[custom]"))
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("keeps the text of the document", func() {
		out, err := cliui.RenderMarkdown("# Title\n\nsome **bold** text")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Title"))
		Expect(out).To(ContainSubstring("bold"))
	})
})
