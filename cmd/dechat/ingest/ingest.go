// Package ingestcmder provides the ingest command, which embeds Markdown
// documents into the knowledge base used for chat retrieval.
package ingestcmder

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/dechat/cmd/dechat/cmdutil"
	"github.com/papercomputeco/dechat/pkg/cliui"
	"github.com/papercomputeco/dechat/pkg/config"
	"github.com/papercomputeco/dechat/pkg/rag"
)

// DefaultPath is ingested when no paths are given.
const DefaultPath = "docs/runbooks"

type ingestCommander struct {
	ollamaURL      string
	ragProvider    string
	ragTarget      string
	embeddingModel string
	dimensions     uint

	logger *slog.Logger
}

var ingestFlags = []string{
	config.FlagOllamaURL,
	config.FlagRAGProvider,
	config.FlagRAGTarget,
	config.FlagEmbedModel,
	config.FlagEmbedDims,
}

const ingestLongDesc string = `Embed Markdown documents into the knowledge base.

Each file is embedded with the configured Ollama embedding model and stored
in the [rag] vector store, keyed by its absolute path. Re-ingesting a file
replaces the stored copy. Directories contribute their *.md files.

The server must use the same [rag] settings to retrieve the documents.

Examples:
  dechat ingest
  dechat ingest docs/runbooks docs/models/orders.md
  dechat ingest --rag-provider sqlite --rag-target ./knowledge.db`

const ingestShortDesc string = "Index documents for retrieval"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest [path...]",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := cmdutil.LoadViper(cmd, ingestFlags...)
			if err != nil {
				return err
			}

			cmder.ollamaURL = v.GetString("server.ollama_url")
			cmder.ragProvider = v.GetString("rag.provider")
			cmder.ragTarget = v.GetString("rag.target")
			cmder.embeddingModel = v.GetString("rag.embedding_model")
			cmder.dimensions = v.GetUint("rag.dimensions")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.logger, err = cmdutil.NewLogger(cmd)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				args = []string{DefaultPath}
			}
			return cmder.run(cmd, args)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagOllamaURL, &cmder.ollamaURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagRAGProvider, &cmder.ragProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagRAGTarget, &cmder.ragTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbedModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbedDims, &cmder.dimensions)

	return cmd
}

func (c *ingestCommander) run(cmd *cobra.Command, paths []string) error {
	stack, err := rag.Open(rag.Options{
		Provider:       c.ragProvider,
		Target:         c.ragTarget,
		OllamaURL:      c.ollamaURL,
		EmbeddingModel: c.embeddingModel,
		Dimensions:     c.dimensions,
		Logger:         c.logger,
	})
	if errors.Is(err, rag.ErrDisabled) {
		return fmt.Errorf("%w: set it with --rag-provider or \"dechat config set rag.provider sqlite\"", err)
	}
	if err != nil {
		return err
	}
	defer stack.Close()

	out := cmd.OutOrStdout()

	var count int
	err = cliui.Step(out, "Embedding documents", func() error {
		var ingestErr error
		count, ingestErr = stack.Ingester.IngestPaths(cmd.Context(), paths)
		return ingestErr
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s ingested %d document(s) into %s\n", cliui.SuccessMark, count, c.ragTarget)
	return nil
}
