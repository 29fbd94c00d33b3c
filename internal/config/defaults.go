package config

// Defaults returns a Config populated with working defaults. Values the
// deployment must supply, such as API keys, are left empty.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			Provider: "claude",
		},
		Server: ServerConfig{
			Host:       "127.0.0.1",
			Port:       8000,
			CORSOrigin: "*",
		},
		Providers: map[string]ProviderConfig{
			"claude": {
				Enabled:   true,
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 800,
			},
			"openai": {
				Enabled:   false,
				Model:     "gpt-4o-mini",
				MaxTokens: 800,
			},
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			BatchSize: 64,
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
		Chunking: ChunkingConfig{
			MaxChars:     800,
			OverlapChars: 100,
		},
		Search: SearchConfig{
			MaxResults: 5,
		},
		Session: SessionConfig{
			MaxHistory: 2,
		},
		Docs: DocsConfig{
			Path: "./docs",
		},
		QueryLog: QueryLogConfig{
			Enabled: false,
			DBPath:  "~/.coursechat/queries.db",
		},
	}
}
