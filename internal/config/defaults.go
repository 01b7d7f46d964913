package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/mondai/data/db/lectures.db"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "/usr/local/var/mondai/data/indices"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/mondai/data/uploads"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.EmbeddingDimensions == 0 {
		cfg.OpenAI.EmbeddingDimensions = 1536
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4o"
	}
	if cfg.OpenAI.Temperature == 0 {
		cfg.OpenAI.Temperature = 0.7
	}
	if cfg.OpenAI.RequestTimeoutSecs == 0 {
		cfg.OpenAI.RequestTimeoutSecs = 60
	}
	if cfg.OpenAI.CacheSize == 0 {
		cfg.OpenAI.CacheSize = 10000
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Generation.MaxPerRequest == 0 {
		cfg.Generation.MaxPerRequest = 20
	}
	if cfg.Generation.MaxParseRetries == 0 {
		cfg.Generation.MaxParseRetries = 2
	}
	if cfg.Generation.MaxRounds == 0 {
		cfg.Generation.MaxRounds = 3
	}
	if cfg.Generation.DuplicateThreshold == 0 {
		cfg.Generation.DuplicateThreshold = 0.85
	}
	if cfg.Evaluation.SemanticThreshold == 0 {
		cfg.Evaluation.SemanticThreshold = 0.80
	}
	if cfg.Stats.CacheTTLSecs == 0 {
		cfg.Stats.CacheTTLSecs = 30
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
