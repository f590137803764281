package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Index      IndexConfig      `yaml:"index" mapstructure:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
	Chunk      ChunkConfig      `yaml:"chunk" mapstructure:"chunk"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Prompt     PromptConfig     `yaml:"prompt" mapstructure:"prompt"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures query-run persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// IndexConfig configures the vector and lexical index backends.
type IndexConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"`
	VectorPath  string `yaml:"vector_path" mapstructure:"vector_path"`
	LexicalPath string `yaml:"lexical_path" mapstructure:"lexical_path"`
	QdrantAddr  string `yaml:"qdrant_addr" mapstructure:"qdrant_addr"`
	Collection  string `yaml:"collection" mapstructure:"collection"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	Dimension int    `yaml:"dimension" mapstructure:"dimension"`
}

// RetrievalConfig configures hybrid retrieval fusion.
type RetrievalConfig struct {
	VectorWeight  float64 `yaml:"vector_weight" mapstructure:"vector_weight"`
	LexicalWeight float64 `yaml:"lexical_weight" mapstructure:"lexical_weight"`
	LexicalScale  float64 `yaml:"lexical_scale" mapstructure:"lexical_scale"`
	TopK          int     `yaml:"top_k" mapstructure:"top_k"`
	UseBM25       bool    `yaml:"use_bm25" mapstructure:"use_bm25"`
}

// ChunkConfig configures the chunker.
type ChunkConfig struct {
	Size    int `yaml:"size" mapstructure:"size"`
	Overlap int `yaml:"overlap" mapstructure:"overlap"`
}

// GenerationConfig configures the text generation provider.
type GenerationConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PromptConfig configures prompt assembly.
type PromptConfig struct {
	MaxContextChars int    `yaml:"max_context_chars" mapstructure:"max_context_chars"`
	Agent           string `yaml:"agent" mapstructure:"agent"`
}

// MetricsConfig configures metric validation.
type MetricsConfig struct {
	ReferencePath string `yaml:"reference_path" mapstructure:"reference_path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures answer-quality alerting.
type MonitoringConfig struct {
	WebhookURL                 string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold       float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	LowConfidenceFloor         float64 `yaml:"low_confidence_floor" mapstructure:"low_confidence_floor"`
	LowConfidenceRateThreshold float64 `yaml:"low_confidence_rate_threshold" mapstructure:"low_confidence_rate_threshold"`
	CheckIntervalSecs          int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours        int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("KNOWLEDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "knowledge.db")
	v.SetDefault("index.backend", "memory")
	v.SetDefault("index.vector_path", "vector.index")
	v.SetDefault("index.lexical_path", "lexical.index")
	v.SetDefault("index.qdrant_addr", "localhost:6334")
	v.SetDefault("index.collection", "knowledge")
	v.SetDefault("embedding.provider", "mock")
	v.SetDefault("embedding.model", "text-embedding-v3")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("retrieval.vector_weight", 0.7)
	v.SetDefault("retrieval.lexical_weight", 0.3)
	v.SetDefault("retrieval.lexical_scale", 10.0)
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.use_bm25", true)
	v.SetDefault("chunk.size", 500)
	v.SetDefault("chunk.overlap", 50)
	v.SetDefault("generation.provider", "mock")
	v.SetDefault("generation.model", "qwen3-next-80b-a3b-thinking")
	v.SetDefault("generation.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("generation.max_tokens", 2048)
	v.SetDefault("prompt.max_context_chars", 3500)
	v.SetDefault("prompt.agent", "dev")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.low_confidence_floor", 0.5)
	v.SetDefault("monitoring.low_confidence_rate_threshold", 0.5)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given run mode. Shared bounds
// are always checked; mode-specific requirements only for their command.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Chunk.Size <= 0 {
		problems = append(problems, "chunk.size must be > 0")
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		problems = append(problems, "chunk.overlap must be in [0, chunk.size)")
	}
	if c.Retrieval.TopK <= 0 {
		problems = append(problems, "retrieval.top_k must be > 0")
	}
	if c.Retrieval.VectorWeight < 0 || c.Retrieval.LexicalWeight < 0 {
		problems = append(problems, "retrieval weights must be >= 0")
	}
	if c.Retrieval.LexicalScale <= 0 {
		problems = append(problems, "retrieval.lexical_scale must be > 0")
	}

	switch mode {
	case "index", "query", "eval", "runs":
		switch c.Index.Backend {
		case "memory", "qdrant":
		default:
			problems = append(problems, "index.backend must be memory or qdrant")
		}
		if c.Index.Backend == "qdrant" && c.Index.QdrantAddr == "" {
			problems = append(problems, "index.qdrant_addr is required for the qdrant backend")
		}
		if mode != "index" {
			switch c.Generation.Provider {
			case "mock":
			case "anthropic", "dashscope":
				if c.Generation.Key == "" {
					problems = append(problems, "generation.key is required for provider "+c.Generation.Provider)
				}
			default:
				problems = append(problems, "generation.provider must be mock, anthropic or dashscope")
			}
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
