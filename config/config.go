package config

import (
	"os"
	"strconv"
	"strings"
)

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const (
	VectorStorePostgres = "postgres"
	VectorStoreBadger   = "badger"
	VectorStoreNone     = "none"
)

const DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

type Config struct {
	HTTPAddr    string
	CORSOrigins []string
	ProductName string
	DataDir     string

	LLM        LLMConfig
	Embeddings EmbeddingConfig

	GroqAPIKey    string
	GroqBaseURL   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaHost    string

	VectorStore   string
	BadgerDir     string
	PostgresDSN   string
	Neo4jEnabled  bool
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPass     string
	FallbackChain bool

	ArticlesDB        string
	ArticlesJSON      string
	KeywordFetchFresh bool
	HelpCenterURL     string

	Freshservice FreshserviceConfig

	KafkaBrokers []string
	KafkaTopic   string

	VocabularyFile string
}

type LLMConfig struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
}

type EmbeddingConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type FreshserviceConfig struct {
	Domain string
	APIKey string
}

// Enabled reports whether both the domain and the API key are present.
func (f FreshserviceConfig) Enabled() bool {
	return f.Domain != "" && f.APIKey != ""
}

func Load() Config {
	return Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":5000"),
		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ProductName: getEnv("PRODUCT_NAME", "DVSum"),
		DataDir:     getEnv("DATA_DIR", "./data"),
		LLM: LLMConfig{
			Provider:    strings.ToLower(getEnv("LLM_PROVIDER", ProviderGroq)),
			Model:       getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
		},
		Embeddings: EmbeddingConfig{
			Provider:  strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderOllama)),
			Model:     getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			Dimension: getEnvInt("EMBEDDING_DIMENSION", 768),
		},
		GroqAPIKey:    os.Getenv("GROQ_API_KEY"),
		GroqBaseURL:   getEnv("GROQ_BASE_URL", DefaultGroqBaseURL),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),

		VectorStore:   strings.ToLower(getEnv("VECTOR_STORE", VectorStorePostgres)),
		BadgerDir:     getEnv("BADGER_DIR", "./vector_db"),
		PostgresDSN:   getEnv("POSTGRES_DSN", "postgres://localhost:5432/support-agent?sslmode=disable"),
		Neo4jEnabled:  getEnvBool("NEO4J_ENABLED", false),
		Neo4jURI:      getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:     getEnv("NEO4J_PASSWORD", "password"),
		FallbackChain: getEnvBool("FALLBACK_CHAIN", false),

		ArticlesDB:        getEnv("ARTICLES_DB", "./data/articles.db"),
		ArticlesJSON:      getEnv("ARTICLES_JSON", "./data/zendesk_articles.json"),
		KeywordFetchFresh: getEnvBool("KEYWORD_FETCH_FRESH", false),
		HelpCenterURL:     getEnv("HELP_CENTER_URL", "https://dvsum.zendesk.com/hc/en-us"),

		Freshservice: FreshserviceConfig{
			Domain: os.Getenv("FRESHSERVICE_DOMAIN"),
			APIKey: os.Getenv("FRESHSERVICE_API_KEY"),
		},

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "support-events"),

		VocabularyFile: os.Getenv("VOCABULARY_FILE"),
	}
}

// LLMAPIKey returns the key for the selected chat provider.
func (c Config) LLMAPIKey() string {
	switch c.LLM.Provider {
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	default:
		return ""
	}
}

// LLMBaseURL returns the OpenAI-compatible endpoint for the selected provider.
func (c Config) LLMBaseURL() string {
	switch c.LLM.Provider {
	case ProviderGroq:
		return c.GroqBaseURL
	case ProviderOpenAI:
		return c.OpenAIBaseURL
	default:
		return ""
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
