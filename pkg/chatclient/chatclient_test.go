package chatclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/dechat/api"
	"github.com/papercomputeco/dechat/pkg/chatclient"
	"github.com/papercomputeco/dechat/pkg/logger"
	"github.com/papercomputeco/dechat/pkg/reply"
)

// streamChunks writes each chunk as its own flushed write.
func streamChunks(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	flusher := w.(http.Flusher)
	for _, c := range chunks {
		_, _ = io.WriteString(w, c)
		flusher.Flush()
	}
}

var _ = Describe("Client", func() {
	var (
		server  *httptest.Server
		mux     *http.ServeMux
		client  *chatclient.Client
		ctx     context.Context
		lastReq api.ChatRequest
	)

	BeforeEach(func() {
		ctx = context.Background()
		mux = http.NewServeMux()
		server = httptest.NewServer(mux)
		client = chatclient.New(chatclient.Config{Target: server.URL + "/"}, logger.Nop())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Chat", func() {
		It("decodes a streamed reply whose header is split across reads", func() {
			mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
				Expect(json.NewDecoder(r.Body).Decode(&lastReq)).To(Succeed())
				streamChunks(w, `{"chat_id":"c-1",`, `"scope":"dbt"}`+"\n## Lin", "eage\n")
			})

			var updates []reply.Result
			rep, conv, err := client.Chat(ctx, chatclient.Conversation{}, "show lineage", func(r reply.Result) {
				updates = append(updates, r)
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(lastReq.Message).To(Equal("show lineage"))
			Expect(lastReq.ChatID).To(BeEmpty())

			Expect(rep.Body).To(Equal("## Lineage\n"))
			Expect(rep.Streamed).To(BeTrue())
			Expect(conv).To(Equal(chatclient.Conversation{ChatID: "c-1", Scope: "dbt"}))

			Expect(updates).NotTo(BeEmpty())
			Expect(updates[len(updates)-1].Done).To(BeTrue())
			for _, u := range updates {
				Expect(u.Body).NotTo(ContainSubstring("chat_id"))
			}
		})

		It("sends the conversation id and keeps it when the reply has no header", func() {
			mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
				Expect(json.NewDecoder(r.Body).Decode(&lastReq)).To(Succeed())
				streamChunks(w, "plain ", "answer")
			})

			rep, conv, err := client.Chat(ctx, chatclient.Conversation{ChatID: "keep", Scope: "sql"}, "q", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(lastReq.ChatID).To(Equal("keep"))
			Expect(rep.Body).To(Equal("plain answer"))
			Expect(conv.ChatID).To(Equal("keep"))
		})

		It("takes the JSON fast path for direct answers", func() {
			mux.HandleFunc("POST /chat", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(api.ChatResponse{ChatID: "c-2", Scope: "welcome", Answer: "Hi 👋"})
			})

			called := false
			rep, conv, err := client.Chat(ctx, chatclient.Conversation{}, "hi", func(reply.Result) { called = true })
			Expect(err).NotTo(HaveOccurred())
			Expect(called).To(BeFalse())
			Expect(rep.Body).To(Equal("Hi 👋"))
			Expect(rep.Streamed).To(BeFalse())
			Expect(conv).To(Equal(chatclient.Conversation{ChatID: "c-2", Scope: "welcome"}))
		})

		It("prefers welcome_answer and falls back to the raw JSON", func() {
			body := `{"chat_id":"c-3","scope":"meta","welcome_answer":"W","answer":"A"}`
			mux.HandleFunc("POST /chat", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, body)
				body = `{"chat_id":"c-3","scope":"meta"}`
			})

			rep, _, err := client.Chat(ctx, chatclient.Conversation{}, "x", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Body).To(Equal("W"))

			rep, _, err = client.Chat(ctx, chatclient.Conversation{}, "x", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Body).To(Equal(`{"chat_id":"c-3","scope":"meta"}`))
		})

		It("returns a StatusError for failures", func() {
			mux.HandleFunc("POST /chat", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, `{"error":"no model configured"}`)
			})

			_, conv, err := client.Chat(ctx, chatclient.Conversation{ChatID: "x"}, "q", nil)
			var se *chatclient.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(err.Error()).To(Equal("server returned 503: no model configured"))
			Expect(conv.ChatID).To(Equal("x"))
		})
	})

	Describe("SQL", func() {
		It("returns rows from RunSQL", func() {
			mux.HandleFunc("POST /run-sql", func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(api.RunSQLResponse{Columns: []string{"n"}, Rows: []map[string]any{{"n": 3}}})
			})

			out, err := client.RunSQL(ctx, "SELECT 3 AS n")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Columns).To(Equal([]string{"n"}))
		})

		It("turns server-reported query errors into errors", func() {
			mux.HandleFunc("POST /run-sql", func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(api.RunSQLResponse{Error: "no such table: x"})
			})

			_, err := client.RunSQL(ctx, "SELECT * FROM x")
			Expect(err).To(MatchError("no such table: x"))
		})

		It("returns the fixed query", func() {
			mux.HandleFunc("POST /fix-sql", func(w http.ResponseWriter, r *http.Request) {
				var req api.FixSQLRequest
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				Expect(req.Error).To(Equal("no such table: x"))
				_ = json.NewEncoder(w).Encode(api.FixSQLResponse{FixedQuery: "SELECT * FROM y"})
			})

			fixed, err := client.FixSQL(ctx, "SELECT * FROM x", "no such table: x")
			Expect(err).NotTo(HaveOccurred())
			Expect(fixed).To(Equal("SELECT * FROM y"))
		})
	})

	Describe("history", func() {
		It("lists, reads and deletes chats", func() {
			mux.HandleFunc("GET /chats", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `[{"id":"c-1","title":"Chat c-1","message_count":2}]`)
			})
			mux.HandleFunc("GET /chats/{id}", func(w http.ResponseWriter, r *http.Request) {
				Expect(r.PathValue("id")).To(Equal("c-1"))
				_, _ = io.WriteString(w, `{"chat_id":"c-1","messages":[{"role":"user","content":"hi"}]}`)
			})
			mux.HandleFunc("DELETE /chats/{id}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			chats, err := client.ListChats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(chats).To(HaveLen(1))
			Expect(chats[0].MessageCount).To(Equal(2))

			msgs, err := client.GetChat(ctx, "c-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs[0].Content).To(Equal("hi"))

			Expect(client.DeleteChat(ctx, "c-1")).To(Succeed())
		})

		It("checks health", func() {
			mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"status":"ok"}`)
			})
			Expect(client.Health(ctx)).To(Succeed())
		})
	})
})
