package config

const (
	defaultServerListen  = ":8090"
	defaultOllamaURL     = "http://localhost:11434"
	defaultModel         = "qwen2.5:7b"
	defaultStreamFraming = "line"

	defaultClientTarget  = "http://localhost:8090"
	defaultClientFraming = "auto"
	defaultClientRender  = "terminal"

	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen:        defaultServerListen,
			OllamaURL:     defaultOllamaURL,
			Model:         defaultModel,
			StreamFraming: defaultStreamFraming,
		},
		Client: ClientConfig{
			Target:  defaultClientTarget,
			Framing: defaultClientFraming,
			Render:  defaultClientRender,
		},
		RAG: RAGConfig{
			EmbeddingModel: defaultEmbeddingModel,
			Dimensions:     defaultEmbeddingDimensions,
		},
	}
}
