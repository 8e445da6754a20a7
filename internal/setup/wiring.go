package setup

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/answer"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/assemble"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/corpus"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/embedding"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/gate"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/llm"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/retry"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/rewrite"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/sessionlog"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/sourcetext"
	"github.com/olivoe/kb-legal-assistant-ui-sub000/internal/websearch"
	"github.com/rs/zerolog"
)

type Config struct {
	Port      string
	LogLevel  string
	LogPretty bool

	AWSRegion        string
	ClaudeModelID    string
	EmbeddingModelID string
	LLMProvider      string
	OpenAIKey        string
	OpenAIModelID    string

	CorpusPath        string
	CorpusURL         string
	SourceTextBaseURL string
	DatabaseURL       string

	WebSearchAPIKey   string
	WebSearchEndpoint string

	RedisAddr     string
	RedisPassword string

	GateRulesPath string

	TopK                int
	MinScore            float64
	WebFallbackMinScore float64
	MaxHistoryTurns     int
	ExcerptMaxChars     int
}

type Dependencies struct {
	Handler  *answer.Handler
	Service  *answer.Service
	Defaults answer.Defaults
	Logger   *zerolog.Logger
}

func LoadConfig() *Config {
	return &Config{
		Port:      getEnv("APP_PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvBool("LOG_PRETTY", false),

		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		ClaudeModelID:    getEnv("CLAUDE_MODEL_ID", ""),
		EmbeddingModelID: getEnv("EMBEDDING_MODEL_ID", "amazon.titan-embed-text-v2:0"),
		LLMProvider:      getEnv("LLM_PROVIDER", "bedrock"),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModelID:    getEnv("OPENAI_MODEL_ID", ""),

		CorpusPath:        getEnv("CORPUS_PATH", ""),
		CorpusURL:         getEnv("CORPUS_URL", ""),
		SourceTextBaseURL: getEnv("SOURCE_TEXT_BASE_URL", ""),
		DatabaseURL:       getEnv("DATABASE_URL", ""),

		WebSearchAPIKey:   getEnv("WEB_SEARCH_API_KEY", ""),
		WebSearchEndpoint: getEnv("WEB_SEARCH_ENDPOINT", "https://google.serper.dev/search"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		GateRulesPath: getEnv("GATE_RULES_PATH", ""),

		TopK:                getEnvInt("TOP_K", 8),
		MinScore:            getEnvFloat("MIN_SCORE", 0.35),
		WebFallbackMinScore: getEnvFloat("WEB_FALLBACK_MIN_SCORE", 0.55),
		MaxHistoryTurns:     getEnvInt("MAX_HISTORY_TURNS", 10),
		ExcerptMaxChars:     getEnvInt("EXCERPT_MAX_CHARS", assemble.DefaultMaxExcerptChars),
	}
}

// Wire builds the full dependency graph of the answer pipeline.
func Wire(ctx context.Context, cfg *Config, logger *zerolog.Logger) (*Dependencies, error) {
	rules, err := gate.LoadRules(cfg.GateRulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load gate rules: %w", err)
	}
	domainGate := gate.New(rules)

	store := corpus.NewStore(cfg.CorpusPath, cfg.CorpusURL)

	llmClient, embedder, err := createProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}

	policy := retry.DefaultPolicy()

	resolver, err := createResolver(ctx, cfg, policy)
	if err != nil {
		return nil, err
	}
	assembler := assemble.New(resolver, cfg.ExcerptMaxChars)

	var web answer.WebSearcher
	if cfg.WebSearchAPIKey != "" {
		web = websearch.NewClient(websearch.Config{
			Endpoint:            cfg.WebSearchEndpoint,
			APIKey:              cfg.WebSearchAPIKey,
			Timeout:             10 * time.Second,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
		}, policy)
	} else {
		logger.Warn().Msg("No web search API key configured, fallback disabled")
	}

	var sink sessionlog.Sink = sessionlog.NopSink{}
	if cfg.RedisAddr != "" {
		redisSink, err := sessionlog.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, 5)
		if err != nil {
			logger.Warn().Err(err).Msg("Session log sink unavailable, continuing without it")
		} else {
			sink = redisSink
		}
	}

	service := answer.NewService(
		store,
		embedder,
		domainGate,
		assembler,
		web,
		llmClient,
		rewrite.New(llmClient),
		sink,
		answer.Config{
			MaxHistoryTurns:     cfg.MaxHistoryTurns,
			WebFallbackMinScore: cfg.WebFallbackMinScore,
		},
	)

	defaults := answer.Defaults{
		TopK:     cfg.TopK,
		MinScore: cfg.MinScore,
	}

	return &Dependencies{
		Handler:  answer.NewHandler(service, defaults),
		Service:  service,
		Defaults: defaults,
		Logger:   logger,
	}, nil
}

func createProviders(ctx context.Context, cfg *Config) (llm.Client, embedding.Embedder, error) {
	switch cfg.LLMProvider {
	case "openai":
		client, err := llm.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModelID)
		if err != nil {
			return nil, nil, err
		}
		embedder, err := embedding.NewOpenAIEmbedder(cfg.OpenAIKey, "")
		if err != nil {
			return nil, nil, err
		}
		return client, embedder, nil
	default:
		client, err := llm.NewClaudeClient(ctx, cfg.AWSRegion, cfg.ClaudeModelID)
		if err != nil {
			return nil, nil, err
		}
		embedder, err := embedding.NewBedrockEmbedder(ctx, cfg.AWSRegion, cfg.EmbeddingModelID)
		if err != nil {
			return nil, nil, err
		}
		return client, embedder, nil
	}
}

func createResolver(ctx context.Context, cfg *Config, policy retry.Policy) (sourcetext.Resolver, error) {
	if cfg.DatabaseURL != "" {
		resolver, err := sourcetext.NewPostgresResolver(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return resolver, nil
	}
	if cfg.SourceTextBaseURL == "" {
		return nil, fmt.Errorf("either DATABASE_URL or SOURCE_TEXT_BASE_URL must be configured")
	}
	return sourcetext.NewHTTPResolver(cfg.SourceTextBaseURL, policy), nil
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		value = defaultValue
	}

	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		value = defaultValue
	}

	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		value = defaultValue
	}

	return value
}
