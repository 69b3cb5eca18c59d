package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/dechat/pkg/history"
	"github.com/papercomputeco/dechat/pkg/history/inmemory"
	"github.com/papercomputeco/dechat/pkg/logger"
	"github.com/papercomputeco/dechat/pkg/reply"
	"github.com/papercomputeco/dechat/pkg/sqlrunner"
	"github.com/papercomputeco/dechat/pkg/vector"
	"github.com/papercomputeco/dechat/pkg/worker"
)

// fakeLLM replays tokens and records the prompts it was given.
type fakeLLM struct {
	mu     sync.Mutex
	tokens []string
	err    error
	system string
	user   string
}

func (f *fakeLLM) ChatStream(_ context.Context, system, user string, fn func(string) error) error {
	f.mu.Lock()
	f.system, f.user = system, user
	f.mu.Unlock()

	for _, t := range f.tokens {
		if err := fn(t); err != nil {
			return err
		}
	}
	return f.err
}

func (f *fakeLLM) prompts() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.system, f.user
}

// slowLLM emits token every tick until ctx is cancelled. cancelled is
// closed once the model has observed the cancellation.
type slowLLM struct {
	token     string
	tick      time.Duration
	started   chan struct{}
	cancelled chan struct{}
	once      sync.Once
}

func newSlowLLM(token string, tick time.Duration) *slowLLM {
	return &slowLLM{
		token:     token,
		tick:      tick,
		started:   make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

func (f *slowLLM) ChatStream(ctx context.Context, _, _ string, fn func(string) error) error {
	close(f.started)

	var ticks <-chan time.Time
	if f.tick > 0 {
		t := time.NewTicker(f.tick)
		defer t.Stop()
		ticks = t.C
	}

	for {
		select {
		case <-ctx.Done():
			f.once.Do(func() { close(f.cancelled) })
			return ctx.Err()
		case <-ticks:
			if err := fn(f.token); err != nil {
				if ctx.Err() != nil {
					f.once.Do(func() { close(f.cancelled) })
				}
				return err
			}
		}
	}
}

type fakeSearcher struct {
	results []vector.QueryResult
}

func (f fakeSearcher) Search(_ context.Context, _ string, topK int) ([]vector.QueryResult, error) {
	if len(f.results) > topK {
		return f.results[:topK], nil
	}
	return f.results, nil
}

func doJSON(s *Server, method, path string, body any) *http.Response {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		r = strings.NewReader(string(b))
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return string(b)
}

func decodeJSON(resp *http.Response, v any) {
	Expect(json.Unmarshal([]byte(readBody(resp)), v)).To(Succeed())
}

var _ = Describe("Server", func() {
	var (
		server    *Server
		store     *inmemory.Store
		llm       *fakeLLM
		warehouse *sqlrunner.Runner
		cfg       Config
		ctx       context.Context
	)

	JustBeforeEach(func() {
		var model LLM
		if llm != nil {
			model = llm
		}

		var err error
		server, err = NewServer(cfg, store, model, warehouse, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
		llm = &fakeLLM{tokens: []string{"## Answer\n", "```sql\nSELECT ", "1;\n```\n"}}
		cfg = Config{ListenAddr: ":0", StreamFraming: reply.FramingLine}

		var err error
		warehouse, err = sqlrunner.Open(":memory:", logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.cancel()
		server.pool.Close()
		warehouse.Close()
	})

	It("reports health", func() {
		resp := doJSON(server, http.MethodGet, "/health", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(readBody(resp)).To(MatchJSON(`{"status":"ok"}`))
	})

	Describe("POST /chat", func() {
		It("answers greetings directly as JSON", func() {
			resp := doJSON(server, http.MethodPost, "/chat", ChatRequest{Message: "hello"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))

			var out ChatResponse
			decodeJSON(resp, &out)
			Expect(out.Scope).To(Equal("welcome"))
			Expect(out.Answer).To(ContainSubstring("Data Engineering Assistant"))
			Expect(out.ChatID).NotTo(BeEmpty())

			msgs, err := store.Messages(ctx, out.ChatID)
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[1].Scope).To(Equal("welcome"))
		})

		It("answers out of scope questions without the model", func() {
			resp := doJSON(server, http.MethodPost, "/chat", ChatRequest{Message: "what's the weather in Paris?"})

			var out ChatResponse
			decodeJSON(resp, &out)
			Expect(out.Scope).To(Equal("out_of_scope"))

			sys, _ := llm.prompts()
			Expect(sys).To(BeEmpty())
		})

		It("streams a line-framed header followed by the model tokens", func() {
			resp := doJSON(server, http.MethodPost, "/chat", ChatRequest{Message: "count rows in orders"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/plain"))

			body := readBody(resp)
			line, rest, found := strings.Cut(body, "\n")
			Expect(found).To(BeTrue())

			var header StreamHeader
			Expect(json.Unmarshal([]byte(line), &header)).To(Succeed())
			Expect(header.Scope).To(Equal("sql"))
			Expect(rest).To(Equal("## Answer\n```sql\nSELECT 1;\n```\n"))

			Eventually(func() int {
				msgs, _ := store.Messages(ctx, header.ChatID)
				return len(msgs)
			}).Should(Equal(2))
		})

		It("produces a reply the decoder splits into header and body", func() {
			resp := doJSON(server, http.MethodPost, "/chat", ChatRequest{Message: "fix my dbt model"})

			r := reply.NewReader(resp.Body)
			var last *reply.Result
			for {
				res, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				if res == nil {
					break
				}
				last = res
			}
			resp.Body.Close()

			Expect(last.Done).To(BeTrue())
			Expect(last.HeaderExtracted).To(BeTrue())
			Expect(last.Header.Scope).To(Equal("dbt"))
			Expect(last.Body).To(HavePrefix("## Answer"))
		})

		It("builds prompts from the schema, dbt context and question", func() {
			_ = readBody(doJSON(server, http.MethodPost, "/chat", ChatRequest{Message: "list tables"}))

			sys, user := llm.prompts()
			Expect(sys).To(HavePrefix("You are a senior Data Engineering assistant."))
			Expect(sys).To(ContainSubstring("(No tables found in database)"))
			Expect(sys).To(ContainSubstring("(dbt manifest not found. Using SQL context only.)"))
			Expect(user).To(Equal("User question:\nlist tables\n\nContext (RAG):\n\n"))
		})

		It("keeps a valid chat id and replaces a malformed one", func() {
			const id = "4b1f3c9a-2d8e-4f6a-9b0c-1d2e3f4a5b6c"

			var out ChatResponse
			decodeJSON(doJSON(server, http.MethodPost, "/chat", ChatRequest{Message: "hi", ChatID: id}), &out)
			Expect(out.ChatID).To(Equal(id))

			decodeJSON(doJSON(server, http.MethodPost, "/chat", ChatRequest{Message: "hi", ChatID: "not-a-uuid"}), &out)
			Expect(out.ChatID).NotTo(Equal("not-a-uuid"))
			Expect(out.ChatID).To(HaveLen(36))
		})

		It("rejects empty messages", func() {
			resp := doJSON(server, http.MethodPost, "/chat", ChatRequest{Message: "  "})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("appends a notice when the model fails mid-stream", func() {
			llm.tokens = []string{"partial"}
			llm.err = errors.New("connection reset")

			body := readBody(doJSON(server, http.MethodPost, "/chat", ChatRequest{Message: "sql please"}))
			Expect(body).To(ContainSubstring("partial"))
			Expect(body).To(ContainSubstring("connection reset"))
		})

		Context("with embedded framing", func() {
			BeforeEach(func() {
				cfg.StreamFraming = reply.FramingEmbedded
			})

			It("writes the body directly after the header object", func() {
				body := readBody(doJSON(server, http.MethodPost, "/chat", ChatRequest{Message: "select data"}))
				Expect(body).To(MatchRegexp(`^\{"chat_id":"[0-9a-f-]{36}","scope":"sql"\}## Answer`))
			})
		})

		Context("without a model", func() {
			BeforeEach(func() {
				llm = nil
			})

			It("still answers direct scopes but refuses model scopes", func() {
				Expect(doJSON(server, http.MethodPost, "/chat", ChatRequest{Message: "hey"}).StatusCode).To(Equal(http.StatusOK))
				Expect(doJSON(server, http.MethodPost, "/chat", ChatRequest{Message: "sql"}).StatusCode).To(Equal(http.StatusServiceUnavailable))
			})
		})
	})

	Describe("chat history", func() {
		It("lists, shows and deletes chats", func() {
			Expect(store.Append(ctx, "c1", history.Message{Role: history.RoleUser, Content: "hi"})).To(Succeed())

			var chats []history.Chat
			decodeJSON(doJSON(server, http.MethodGet, "/chats", nil), &chats)
			Expect(chats).To(HaveLen(1))
			Expect(chats[0].Title).To(Equal("Chat c1"))

			var hist ChatHistoryResponse
			decodeJSON(doJSON(server, http.MethodGet, "/chats/c1", nil), &hist)
			Expect(hist.Messages).To(HaveLen(1))

			Expect(doJSON(server, http.MethodDelete, "/chats/c1", nil).StatusCode).To(Equal(http.StatusNoContent))
			Expect(doJSON(server, http.MethodDelete, "/chats/c1", nil).StatusCode).To(Equal(http.StatusNotFound))
			Expect(doJSON(server, http.MethodGet, "/chats/c1", nil).StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /run-sql", func() {
		It("returns rows keyed by column", func() {
			var out RunSQLResponse
			decodeJSON(doJSON(server, http.MethodPost, "/run-sql", RunSQLRequest{Query: "SELECT 1 AS one, 'x' AS two"}), &out)
			Expect(out.Error).To(BeEmpty())
			Expect(out.Columns).To(Equal([]string{"one", "two"}))
			Expect(out.Rows).To(Equal([]map[string]any{{"one": float64(1), "two": "x"}}))
		})

		It("blocks writes with the safety message", func() {
			var out RunSQLResponse
			decodeJSON(doJSON(server, http.MethodPost, "/run-sql", RunSQLRequest{Query: "DROP TABLE orders"}), &out)
			Expect(out.Error).To(Equal("Safety Block: Only SELECT queries are allowed."))
		})

		It("reports database errors in the body", func() {
			resp := doJSON(server, http.MethodPost, "/run-sql", RunSQLRequest{Query: "SELECT * FROM nope"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out RunSQLResponse
			decodeJSON(resp, &out)
			Expect(out.Error).To(ContainSubstring("no such table"))
		})
	})

	Describe("POST /fix-sql", func() {
		It("returns the model's query without fences", func() {
			llm.tokens = []string{"```sql\n", "SELECT id FROM orders;", "\n```"}

			var out FixSQLResponse
			decodeJSON(doJSON(server, http.MethodPost, "/fix-sql", FixSQLRequest{Query: "SELEC id FROM orders", Error: "syntax error"}), &out)
			Expect(out.FixedQuery).To(Equal("SELECT id FROM orders;"))

			sys, user := llm.prompts()
			Expect(sys).To(HavePrefix("You are a SQL Debugging Expert."))
			Expect(user).To(Equal("Broken Query:\nSELEC id FROM orders\n\nError Message:\nsyntax error\n\nCorrected SQL:"))
		})

		It("maps model failures to 502", func() {
			llm.err = errors.New("boom")
			resp := doJSON(server, http.MethodPost, "/fix-sql", FixSQLRequest{Query: "x", Error: "y"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("POST /render", func() {
		It("renders highlighted HTML", func() {
			var out RenderResponse
			decodeJSON(doJSON(server, http.MethodPost, "/render", RenderRequest{Markdown: "```sql\nSELECT 1;\n```"}), &out)
			Expect(out.HTML).To(ContainSubstring(`<div class="code-block language-sql">`))
		})
	})

	Describe("/mcp", func() {
		It("answers MCP initialize over streamable HTTP", func() {
			body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{` +
				`"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"curl","version":"1"}}}`

			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")

			resp, err := server.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(ContainSubstring(`"name":"dechat"`))
		})
	})

	Describe("GET /v1/search", func() {
		It("is unavailable without a knowledge base", func() {
			Expect(doJSON(server, http.MethodGet, "/v1/search?query=dbt", nil).StatusCode).To(Equal(http.StatusServiceUnavailable))
		})

		Context("with a knowledge base", func() {
			BeforeEach(func() {
				cfg.Knowledge = fakeSearcher{results: []vector.QueryResult{
					{Document: vector.Document{ID: "/docs/dbt.md", Source: "/docs/dbt.md", Content: "Use incremental models."}, Score: 0.9},
					{Document: vector.Document{ID: "/docs/airflow.md", Source: "/docs/airflow.md", Content: "Set retries."}, Score: 0.4},
				}}
			})

			It("returns previews limited to top_k", func() {
				var out SearchOutput
				decodeJSON(doJSON(server, http.MethodGet, "/v1/search?query=dbt&top_k=1", nil), &out)
				Expect(out.Count).To(Equal(1))
				Expect(out.Results[0].Source).To(Equal("/docs/dbt.md"))
				Expect(out.Results[0].Preview).To(Equal("Use incremental models."))
			})

			It("validates parameters", func() {
				Expect(doJSON(server, http.MethodGet, "/v1/search", nil).StatusCode).To(Equal(http.StatusBadRequest))
				Expect(doJSON(server, http.MethodGet, "/v1/search?query=x&top_k=0", nil).StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})
})

var _ = Describe("Server lifecycle", func() {
	var (
		server *Server
		store  *inmemory.Store
		base   string
	)

	// listen serves server on a loopback port so the test can drop the
	// connection mid-stream.
	listen := func(model LLM) {
		store = inmemory.NewStore()

		var err error
		server, err = NewServer(Config{StreamFraming: reply.FramingLine}, store, model, nil, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		go func() { _ = server.app.Listener(ln) }()

		base = "http://" + ln.Addr().String()
	}

	// openStream posts a model-backed question and returns the open body
	// and the decoded header line.
	openStream := func() (io.ReadCloser, StreamHeader) {
		resp, err := http.Post(base+"/chat", "application/json", strings.NewReader(`{"message":"count rows in orders"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		line, err := bufio.NewReader(resp.Body).ReadString('\n')
		Expect(err).NotTo(HaveOccurred())

		var header StreamHeader
		Expect(json.Unmarshal([]byte(line), &header)).To(Succeed())
		return resp.Body, header
	}

	shutdown := func() {
		done := make(chan error, 1)
		go func() { done <- server.Shutdown() }()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
	}

	It("shuts down cleanly while a dropped client's reply is still generating", func() {
		model := newSlowLLM("", 0)
		listen(model)

		body, header := openStream()
		Eventually(model.started).Should(BeClosed())
		Expect(body.Close()).To(Succeed())

		shutdown()
		Expect(model.cancelled).To(BeClosed())

		// The partial reply was recorded before the pool closed.
		msgs, err := store.Messages(context.Background(), header.ChatID)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[1].Role).To(Equal(history.RoleAssistant))
		Expect(msgs[1].Content).To(ContainSubstring("context canceled"))

		Expect(func() {
			server.pool.Enqueue(worker.Job{ChatID: header.ChatID, Message: history.Message{Content: "late"}})
		}).NotTo(Panic())
		Expect(func() { _ = server.Shutdown() }).NotTo(Panic())
	})

	It("stops the model request when the client stops reading", func() {
		model := newSlowLLM(strings.Repeat("x", 1024), 5*time.Millisecond)
		listen(model)

		body, _ := openStream()
		Eventually(model.started).Should(BeClosed())
		Expect(body.Close()).To(Succeed())

		Eventually(model.cancelled, 5*time.Second).Should(BeClosed())

		shutdown()
	})
})
