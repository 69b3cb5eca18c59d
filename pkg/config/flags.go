package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --target
// on "dechat chat", "dechat chats" and "dechat sql").
type Flag struct {
	// Name is the long flag name (e.g. "target").
	Name string

	// Shorthand is the one-letter short flag (e.g. "t"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "client.target").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag and BindRegisteredFlags
// to avoid typos or drift from one command to another.
const (
	FlagListen        = "listen"
	FlagOllamaURL     = "ollama-url"
	FlagModel         = "model"
	FlagStreamFraming = "stream-framing"
	FlagSQLite        = "sqlite"
	FlagDBTManifest   = "dbt-manifest"
	FlagTarget        = "target"
	FlagFraming       = "framing"
	FlagRender        = "render"
	FlagRAGProvider   = "rag-provider"
	FlagRAGTarget     = "rag-target"
	FlagEmbedModel    = "embedding-model"
	FlagEmbedDims     = "embedding-dimensions"
)

// Flags is the registry shared by all dechat commands.
var Flags = FlagSet{
	FlagListen:        {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the server to listen on"},
	FlagOllamaURL:     {Name: "ollama-url", ViperKey: "server.ollama_url", Description: "Ollama base URL"},
	FlagModel:         {Name: "model", Shorthand: "m", ViperKey: "server.model", Description: "Ollama model name"},
	FlagStreamFraming: {Name: "stream-framing", ViperKey: "server.stream_framing", Description: "Reply header framing (line, embedded)"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "warehouse.sqlite_path", Description: "Path to the SQLite warehouse queried by /run-sql"},
	FlagDBTManifest:   {Name: "dbt-manifest", ViperKey: "warehouse.dbt_manifest", Description: "Path to a dbt manifest.json used as dbt context"},
	FlagTarget:        {Name: "target", Shorthand: "t", ViperKey: "client.target", Description: "dechat server URL"},
	FlagFraming:       {Name: "framing", ViperKey: "client.framing", Description: "Expected reply header framing (auto, line, embedded)"},
	FlagRender:        {Name: "render", Shorthand: "r", ViperKey: "client.render", Description: "Reply output (terminal, html, plain)"},
	FlagRAGProvider:   {Name: "rag-provider", ViperKey: "rag.provider", Description: "Knowledge vector store (sqlite, chroma); empty disables retrieval"},
	FlagRAGTarget:     {Name: "rag-target", ViperKey: "rag.target", Description: "sqlite-vec database path or Chroma URL"},
	FlagEmbedModel:    {Name: "embedding-model", ViperKey: "rag.embedding_model", Description: "Ollama embedding model"},
	FlagEmbedDims:     {Name: "embedding-dimensions", ViperKey: "rag.dimensions", Description: "Embedding dimensionality (sqlite provider)"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddPersistentStringFlag is AddStringFlag for a flag shared with every
// subcommand of cmd.
func AddPersistentStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	cmd.PersistentFlags().StringVarP(target, def.Name, def.Shorthand, defaultString(def.ViperKey), def.Description)
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
