package chroma_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/dechat/pkg/logger"
	"github.com/papercomputeco/dechat/pkg/vector"
	"github.com/papercomputeco/dechat/pkg/vector/chroma"
)

var _ vector.Driver = (*chroma.Driver)(nil)

var _ = Describe("Driver", func() {
	var log *slog.Logger

	BeforeEach(func() {
		log = logger.Nop()
	})

	Describe("NewDriver", func() {
		It("returns an error when URL is empty", func() {
			_, err := chroma.NewDriver(chroma.Config{URL: ""}, log)
			Expect(err).To(MatchError(ContainSubstring("chroma URL is required")))
		})

		It("succeeds after retrying when Chroma becomes available", func() {
			var attempts atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				// Each cycle is a GET followed by a create POST; fail two cycles.
				if attempts.Add(1) <= 4 {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "de_knowledge"})
			}))
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    5,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(attempts.Load()).To(BeNumerically(">=", int32(5)))
		})

		It("returns an error after exhausting all retries", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			_, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    3,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, log)
			Expect(err).To(MatchError(vector.ErrConnection))
			Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		})
	})

	Describe("document operations", func() {
		var (
			server   *httptest.Server
			driver   *chroma.Driver
			upserted chan map[string]any
			deleted  chan []string
		)

		BeforeEach(func() {
			upserted = make(chan map[string]any, 1)
			deleted = make(chan []string, 1)

			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				switch {
				case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/collections/de_knowledge"):
					_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "de_knowledge"})

				case strings.HasSuffix(r.URL.Path, "/col-1/upsert"):
					var body map[string]any
					_ = json.NewDecoder(r.Body).Decode(&body)
					upserted <- body
					_, _ = w.Write([]byte("{}"))

				case strings.HasSuffix(r.URL.Path, "/col-1/query"):
					_ = json.NewEncoder(w).Encode(map[string]any{
						"ids":       [][]string{{"/docs/dbt.md", "/docs/airflow.md"}},
						"distances": [][]float32{{0, 1}},
						"metadatas": [][]map[string]any{{{"source": "/docs/dbt.md"}, nil}},
						"documents": [][]string{{"dbt runbook", "airflow runbook"}},
					})

				case strings.HasSuffix(r.URL.Path, "/col-1/count"):
					_, _ = w.Write([]byte("2"))

				case strings.HasSuffix(r.URL.Path, "/col-1/delete"):
					var body struct {
						IDs []string `json:"ids"`
					}
					_ = json.NewDecoder(r.Body).Decode(&body)
					deleted <- body.IDs
					_, _ = w.Write([]byte("{}"))

				default:
					http.NotFound(w, r)
				}
			}))

			var err error
			driver, err = chroma.NewDriver(chroma.Config{URL: server.URL, MaxRetries: 1}, log)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			server.Close()
		})

		It("upserts documents with text and source metadata", func() {
			err := driver.Add(context.Background(), []vector.Document{
				{ID: "/docs/dbt.md", Source: "/docs/dbt.md", Content: "dbt runbook", Embedding: []float32{0.1, 0.2}},
			})
			Expect(err).NotTo(HaveOccurred())

			var body map[string]any
			Eventually(upserted).Should(Receive(&body))
			Expect(body["ids"]).To(ConsistOf("/docs/dbt.md"))
			Expect(body["documents"]).To(ConsistOf("dbt runbook"))
			Expect(body["metadatas"]).To(ConsistOf(HaveKeyWithValue("source", "/docs/dbt.md")))
		})

		It("maps query results to documents", func() {
			results, err := driver.Query(context.Background(), []float32{0.1, 0.2}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Content).To(Equal("dbt runbook"))
			Expect(results[0].Source).To(Equal("/docs/dbt.md"))
			Expect(results[0].Score).To(BeNumerically("==", 1))

			// Missing metadata falls back to the id as source.
			Expect(results[1].Source).To(Equal("/docs/airflow.md"))
			Expect(results[1].Score).To(BeNumerically("~", 0.5, 0.001))
		})

		It("counts documents", func() {
			n, err := driver.Count(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})

		It("deletes documents by id", func() {
			Expect(driver.Delete(context.Background(), []string{"/docs/dbt.md"})).To(Succeed())
			Eventually(deleted).Should(Receive(ConsistOf("/docs/dbt.md")))
		})

		It("skips requests for empty input", func() {
			Expect(driver.Add(context.Background(), nil)).To(Succeed())
			Expect(driver.Delete(context.Background(), nil)).To(Succeed())
			Consistently(upserted, 20*time.Millisecond).ShouldNot(Receive())
		})
	})
})
