package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent dechat configuration stored as config.toml
// in the .dechat/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Server    ServerConfig    `toml:"server"`
	Client    ClientConfig    `toml:"client"`
	Warehouse WarehouseConfig `toml:"warehouse"`
	RAG       RAGConfig       `toml:"rag"`
}

// ServerConfig holds settings for "dechat serve".
type ServerConfig struct {
	Listen    string `toml:"listen,omitempty"`
	OllamaURL string `toml:"ollama_url,omitempty"`
	Model     string `toml:"model,omitempty"`

	// StreamFraming is how streamed replies frame the metadata header:
	// "line" terminates it with a newline, "embedded" does not.
	StreamFraming string `toml:"stream_framing,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// dechat server (e.g. dechat chat, dechat chats, dechat sql).
// Target is a full URL (scheme + host + port).
type ClientConfig struct {
	Target  string `toml:"target,omitempty"`
	Framing string `toml:"framing,omitempty"`
	Render  string `toml:"render,omitempty"`
}

// WarehouseConfig points the server at the data it answers questions about.
type WarehouseConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	DBTManifest string `toml:"dbt_manifest,omitempty"`
}

// RAGConfig holds knowledge retrieval settings. Retrieval is disabled
// when Provider is empty.
type RAGConfig struct {
	// Provider is the vector store: "sqlite" or "chroma".
	Provider string `toml:"provider,omitempty"`

	// Target is the sqlite-vec database path or the Chroma URL.
	Target string `toml:"target,omitempty"`

	EmbeddingModel string `toml:"embedding_model,omitempty"`
	Dimensions     uint   `toml:"dimensions,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.ollama_url": {
		get: func(c *Config) string { return c.Server.OllamaURL },
		set: func(c *Config, v string) error { c.Server.OllamaURL = v; return nil },
	},
	"server.model": {
		get: func(c *Config) string { return c.Server.Model },
		set: func(c *Config, v string) error { c.Server.Model = v; return nil },
	},
	"server.stream_framing": {
		get: func(c *Config) string { return c.Server.StreamFraming },
		set: func(c *Config, v string) error {
			if err := validateOneOf("server.stream_framing", v, serverFramings); err != nil {
				return err
			}
			c.Server.StreamFraming = v
			return nil
		},
	},
	"client.target": {
		get: func(c *Config) string { return c.Client.Target },
		set: func(c *Config, v string) error { c.Client.Target = v; return nil },
	},
	"client.framing": {
		get: func(c *Config) string { return c.Client.Framing },
		set: func(c *Config, v string) error {
			if err := validateOneOf("client.framing", v, clientFramings); err != nil {
				return err
			}
			c.Client.Framing = v
			return nil
		},
	},
	"client.render": {
		get: func(c *Config) string { return c.Client.Render },
		set: func(c *Config, v string) error {
			if err := validateOneOf("client.render", v, renderKinds); err != nil {
				return err
			}
			c.Client.Render = v
			return nil
		},
	},
	"warehouse.sqlite_path": {
		get: func(c *Config) string { return c.Warehouse.SQLitePath },
		set: func(c *Config, v string) error { c.Warehouse.SQLitePath = v; return nil },
	},
	"warehouse.dbt_manifest": {
		get: func(c *Config) string { return c.Warehouse.DBTManifest },
		set: func(c *Config, v string) error { c.Warehouse.DBTManifest = v; return nil },
	},
	"rag.provider": {
		get: func(c *Config) string { return c.RAG.Provider },
		set: func(c *Config, v string) error {
			if v != "" {
				if err := validateOneOf("rag.provider", v, ragProviders); err != nil {
					return err
				}
			}
			c.RAG.Provider = v
			return nil
		},
	},
	"rag.target": {
		get: func(c *Config) string { return c.RAG.Target },
		set: func(c *Config, v string) error { c.RAG.Target = v; return nil },
	},
	"rag.embedding_model": {
		get: func(c *Config) string { return c.RAG.EmbeddingModel },
		set: func(c *Config, v string) error { c.RAG.EmbeddingModel = v; return nil },
	},
	"rag.dimensions": {
		get: func(c *Config) string {
			if c.RAG.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.RAG.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for rag.dimensions: %w", err)
			}
			c.RAG.Dimensions = uint(n)
			return nil
		},
	},
}

var (
	serverFramings = []string{"line", "embedded"}
	clientFramings = []string{"auto", "line", "embedded"}
	renderKinds    = []string{"terminal", "html", "plain"}
	ragProviders   = []string{"sqlite", "chroma"}
)
