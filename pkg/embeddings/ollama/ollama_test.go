package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/dechat/pkg/embeddings"
	"github.com/papercomputeco/dechat/pkg/embeddings/ollama"
)

var _ = Describe("Embedder", func() {
	It("posts the model and input to /api/embed", func() {
		var got map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/api/embed"))
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.5, 0.25}}})
		}))
		defer server.Close()

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL + "/"})
		Expect(err).NotTo(HaveOccurred())

		emb, err := e.Embed(context.Background(), "how do I partition a table?")
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{0.5, 0.25}))
		Expect(got).To(HaveKeyWithValue("model", ollama.DefaultEmbeddingModel))
		Expect(got).To(HaveKeyWithValue("input", "how do I partition a table?"))
	})

	It("wraps upstream failures in ErrEmbedding", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer server.Close()

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Model: "missing"})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "x")
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("model not found"))
	})

	It("fails when no embeddings are returned", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"embeddings":[]}`))
		}))
		defer server.Close()

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "x")
		Expect(err).To(MatchError(ContainSubstring("returned 0 embeddings for 1 inputs")))
	})

	It("embeds a batch with one request", func() {
		var (
			requests int
			got      struct {
				Input []string `json:"input"`
			}
		)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			requests++
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1, 0}, {0, 1}}})
		}))
		defer server.Close()

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		embs, err := e.EmbedBatch(context.Background(), []string{"orders", "refunds"})
		Expect(err).NotTo(HaveOccurred())
		Expect(embs).To(Equal([][]float32{{1, 0}, {0, 1}}))
		Expect(got.Input).To(Equal([]string{"orders", "refunds"}))
		Expect(requests).To(Equal(1))
	})

	It("rejects a batch answer of the wrong size", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1, 0}}})
		}))
		defer server.Close()

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
	})
})
