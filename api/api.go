package api

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/dechat/api/mcp"
	"github.com/papercomputeco/dechat/pkg/history"
	"github.com/papercomputeco/dechat/pkg/render"
	"github.com/papercomputeco/dechat/pkg/router"
	"github.com/papercomputeco/dechat/pkg/worker"
)

// Server is the dechat backend.
type Server struct {
	config    Config
	store     history.Store
	llm       LLM
	warehouse Warehouse
	router    *router.Router
	html      *render.HTML
	pool      *worker.Pool
	logger    *slog.Logger
	app       *fiber.App

	// ctx is the parent of every model request and is cancelled by
	// Shutdown. streams counts reply goroutines still writing.
	ctx     context.Context
	cancel  context.CancelFunc
	streams sync.WaitGroup
}

// NewServer creates a new API server.
// llm and warehouse may be nil: model-backed scopes then answer 503 and
// /run-sql reports that no warehouse is configured.
func NewServer(config Config, store history.Store, llm LLM, warehouse Warehouse, logger *slog.Logger) (*Server, error) {
	pool, err := worker.NewPool(&worker.Config{
		Store:      store,
		NumWorkers: config.NumWorkers,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	mcpConfig := mcp.Config{
		Noop:   config.Knowledge == nil && warehouse == nil,
		Logger: logger,
	}
	if config.Knowledge != nil {
		mcpConfig.Searcher = config.Knowledge
	}
	if warehouse != nil {
		mcpConfig.Warehouse = warehouse
	}
	mcpServer, err := mcp.NewServer(mcpConfig)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:    config,
		store:     store,
		llm:       llm,
		warehouse: warehouse,
		router:    router.New(config.Retriever, logger),
		html:      render.NewHTML(),
		pool:      pool,
		logger:    logger,
		app:       app,
		ctx:       ctx,
		cancel:    cancel,
	}

	app.Get("/health", s.handleHealth)
	app.Get("/chats", s.handleListChats)
	app.Get("/chats/:id", s.handleGetChat)
	app.Delete("/chats/:id", s.handleDeleteChat)
	app.Post("/chat", s.handleChat)
	app.Post("/run-sql", s.handleRunSQL)
	app.Post("/fix-sql", s.handleFixSQL)
	app.Post("/render", s.handleRender)
	app.Get("/v1/search", s.handleSearchEndpoint)
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"stream_framing", s.config.StreamFraming.String(),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server and drains pending
// history writes. Model requests still in flight are cancelled so their
// partial replies are recorded before the pool closes.
func (s *Server) Shutdown() error {
	s.cancel()
	err := s.app.Shutdown()
	s.streams.Wait()
	s.pool.Close()
	return err
}
