package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/dechat/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the DECHAT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (DECHAT_SERVER_LISTEN, DECHAT_CLIENT_TARGET, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("DECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.ollama_url", d.Server.OllamaURL)
	v.SetDefault("server.model", d.Server.Model)
	v.SetDefault("server.stream_framing", d.Server.StreamFraming)

	// Client
	v.SetDefault("client.target", d.Client.Target)
	v.SetDefault("client.framing", d.Client.Framing)
	v.SetDefault("client.render", d.Client.Render)

	// Warehouse
	v.SetDefault("warehouse.sqlite_path", d.Warehouse.SQLitePath)
	v.SetDefault("warehouse.dbt_manifest", d.Warehouse.DBTManifest)

	// Retrieval
	v.SetDefault("rag.provider", d.RAG.Provider)
	v.SetDefault("rag.target", d.RAG.Target)
	v.SetDefault("rag.embedding_model", d.RAG.EmbeddingModel)
	v.SetDefault("rag.dimensions", d.RAG.Dimensions)
}
