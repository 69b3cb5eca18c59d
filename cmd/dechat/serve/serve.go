// Package servecmder provides the serve command, which runs the dechat
// backend.
package servecmder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/dechat/api"
	"github.com/papercomputeco/dechat/cmd/dechat/cmdutil"
	"github.com/papercomputeco/dechat/pkg/config"
	"github.com/papercomputeco/dechat/pkg/history/inmemory"
	"github.com/papercomputeco/dechat/pkg/logger"
	"github.com/papercomputeco/dechat/pkg/ollama"
	"github.com/papercomputeco/dechat/pkg/rag"
	"github.com/papercomputeco/dechat/pkg/reply"
	"github.com/papercomputeco/dechat/pkg/sqlrunner"
)

type serveCommander struct {
	listen        string
	ollamaURL     string
	model         string
	streamFraming string
	sqlitePath    string
	dbtManifest   string

	ragProvider    string
	ragTarget      string
	embeddingModel string
	dimensions     uint

	logFile string
	logJSON bool
	debug   bool

	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagOllamaURL,
	config.FlagModel,
	config.FlagStreamFraming,
	config.FlagSQLite,
	config.FlagDBTManifest,
	config.FlagRAGProvider,
	config.FlagRAGTarget,
	config.FlagEmbedModel,
	config.FlagEmbedDims,
}

const serveLongDesc string = `Run the dechat server.

The server routes each chat message, answers greetings and off-topic
questions directly, and streams everything else from Ollama with the
warehouse schema, dbt manifest and retrieved runbooks as context.

Streamed replies start with a JSON header carrying the chat id and
scope. With --stream-framing line (the default) the header ends with a
newline; with embedded the body follows the closing brace directly.

Chat history is kept in memory for the lifetime of the process.

Examples:
  dechat serve
  dechat serve --sqlite ./warehouse.db --dbt-manifest ./target/manifest.json
  dechat serve --rag-provider sqlite --rag-target ./knowledge.db
  dechat serve --log-file ./dechat.log`

const serveShortDesc string = "Run the dechat server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := cmdutil.LoadViper(cmd, serveFlags...)
			if err != nil {
				return err
			}

			cmder.listen = v.GetString("server.listen")
			cmder.ollamaURL = v.GetString("server.ollama_url")
			cmder.model = v.GetString("server.model")
			cmder.streamFraming = v.GetString("server.stream_framing")
			cmder.sqlitePath = v.GetString("warehouse.sqlite_path")
			cmder.dbtManifest = v.GetString("warehouse.dbt_manifest")
			cmder.ragProvider = v.GetString("rag.provider")
			cmder.ragTarget = v.GetString("rag.target")
			cmder.embeddingModel = v.GetString("rag.embedding_model")
			cmder.dimensions = v.GetUint("rag.dimensions")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagOllamaURL, &cmder.ollamaURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagStreamFraming, &cmder.streamFraming)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagDBTManifest, &cmder.dbtManifest)
	config.AddStringFlag(cmd, config.Flags, config.FlagRAGProvider, &cmder.ragProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagRAGTarget, &cmder.ragTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbedModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbedDims, &cmder.dimensions)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().BoolVar(&cmder.logJSON, "log-json", false, "Write JSON logs to stdout instead of colorized text")

	return cmd
}

func (c *serveCommander) run() error {
	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	framing, ok := reply.ParseFraming(c.streamFraming)
	if !ok || framing == reply.FramingAuto {
		return fmt.Errorf("invalid stream framing %q (available: line, embedded)", c.streamFraming)
	}

	store := inmemory.NewStore()
	defer store.Close()

	cfg := api.Config{
		ListenAddr:    c.listen,
		StreamFraming: framing,
		DBTManifest:   c.dbtManifest,
	}

	stack, err := rag.Open(rag.Options{
		Provider:       c.ragProvider,
		Target:         c.ragTarget,
		OllamaURL:      c.ollamaURL,
		EmbeddingModel: c.embeddingModel,
		Dimensions:     c.dimensions,
		Logger:         c.logger,
	})
	switch {
	case errors.Is(err, rag.ErrDisabled):
		c.logger.Info("knowledge retrieval disabled")
	case err != nil:
		return err
	default:
		defer stack.Close()
		cfg.Retriever = stack.Retriever
		cfg.Knowledge = stack.Retriever
	}

	var warehouse api.Warehouse
	if c.sqlitePath != "" {
		runner, err := sqlrunner.Open(c.sqlitePath, c.logger)
		if err != nil {
			return fmt.Errorf("opening warehouse: %w", err)
		}
		defer runner.Close()

		warehouse = runner
		c.logger.Info("using SQLite warehouse", "path", c.sqlitePath)
	} else {
		c.logger.Warn("no warehouse configured; /run-sql is disabled and prompts carry no schema")
	}

	llm := ollama.New(ollama.Config{
		BaseURL: c.ollamaURL,
		Model:   c.model,
	}, c.logger)

	server, err := api.NewServer(cfg, store, llm, warehouse, c.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	c.logger.Info("starting dechat server",
		"listen", c.listen,
		"ollama_url", c.ollamaURL,
		"model", c.model,
		"stream_framing", framing.String(),
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// setupLogger builds the server logger. With --log-file, records also go
// to the file as JSON.
func (c *serveCommander) setupLogger() (func(), error) {
	format := logger.FormatPretty
	if c.logJSON {
		format = logger.FormatJSON
	}
	stdout := logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(format),
	)

	if c.logFile == "" {
		c.logger = stdout
		return func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(stdout, logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(logger.FormatJSON),
		logger.WithWriter(f),
	))

	return func() { _ = f.Close() }, nil
}
