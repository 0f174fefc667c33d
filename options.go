package vecbot

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	driver   string // "azure", "redis" or "valkey"
	endpoint string
	adminKey string
	addrs    []string
	password string

	embedder    Embedder
	openai      *openAISettings
	maxAttempts int

	index        string
	vectorFields []string
	k            int
	top          int
	semantic     string
	language     string

	logger *zap.Logger
}

type openAISettings struct {
	serviceName string
	apiKey      string
	deployment  string
	timeout     time.Duration
}

// WithAzureSearch sends queries to an Azure Cognitive Search service.
func WithAzureSearch(endpoint, adminKey string) Option {
	return func(c *clientConfig) {
		c.driver = "azure"
		c.endpoint = endpoint
		c.adminKey = adminKey
	}
}

// WithRedis sends queries to a Redis 8+ instance with the search and JSON modules.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithValkey sends queries to a Valkey instance with the search and JSON modules.
func WithValkey(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithAzureOpenAI embeds query text with an Azure OpenAI deployment.
func WithAzureOpenAI(serviceName, apiKey, deployment string) Option {
	return func(c *clientConfig) {
		c.openai = &openAISettings{
			serviceName: serviceName,
			apiKey:      apiKey,
			deployment:  deployment,
			timeout:     30 * time.Second,
		}
	}
}

// WithEmbedder sets a custom text embedding provider. It takes precedence over WithAzureOpenAI.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithRetries sets how many times a failed embedding call is attempted. Default: 1.
func WithRetries(maxAttempts int) Option {
	return func(c *clientConfig) {
		c.maxAttempts = maxAttempts
	}
}

// WithIndex sets the index to query and its default vector fields.
// The first vector field is used by single-field modes.
func WithIndex(name string, vectorFields ...string) Option {
	return func(c *clientConfig) {
		c.index = name
		c.vectorFields = vectorFields
	}
}

// WithNearestNeighbors sets the default k per vector field. Default: 3.
func WithNearestNeighbors(k int) Option {
	return func(c *clientConfig) {
		c.k = k
	}
}

// WithTop sets the default number of results. Default: 3.
func WithTop(n int) Option {
	return func(c *clientConfig) {
		c.top = n
	}
}

// WithSemanticConfiguration sets the semantic configuration used by ModeSemanticHybrid.
func WithSemanticConfiguration(name string) Option {
	return func(c *clientConfig) {
		c.semantic = name
	}
}

// WithLogger enables structured logging for client operations. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
