package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
	"github.com/kailas-cloud/vecbot/internal/domain/search/mode"
)

// Search backend drivers.
const (
	DriverAzure  = "azure"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// Config holds the vecbot configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Search     SearchConfig     `yaml:"search"`
	Redis      RedisConfig      `yaml:"redis"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Query      QueryConfig      `yaml:"query"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Schema     schema.Index     `yaml:"schema"`
	Bot        BotConfig        `yaml:"bot"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// SearchConfig selects and configures the search backend.
type SearchConfig struct {
	Driver            string `yaml:"driver"` // azure (default), redis, valkey
	Endpoint          string `yaml:"endpoint"`
	AdminKey          string `yaml:"admin_key"`
	IndexName         string `yaml:"index_name"`
	APIVersion        string `yaml:"api_version"`
	TimeoutSec        int    `yaml:"timeout_sec"`
	UploadBatchSize   int    `yaml:"upload_batch_size"`
	UploadConcurrency int    `yaml:"upload_concurrency"`
}

// RedisConfig holds the Redis/Valkey connection used by the FT backend and the embedding cache.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// EmbeddingConfig holds the Azure OpenAI embedding deployment settings.
type EmbeddingConfig struct {
	ServiceName      string      `yaml:"service_name"`
	APIBase          string      `yaml:"api_base"`
	APIKey           string      `yaml:"api_key"`
	APIVersion       string      `yaml:"api_version"`
	Deployment       string      `yaml:"deployment"`
	Model            string      `yaml:"model"`
	Dimensions       int         `yaml:"dimensions"`
	TimeoutSec       int         `yaml:"timeout_sec"`
	MaxAttempts      int         `yaml:"max_attempts"`
	RetryBaseDelayMS int         `yaml:"retry_base_delay_ms"`
	Cache            CacheConfig `yaml:"cache"`
}

// CacheConfig toggles the Redis embedding cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
}

// QueryConfig holds query facade defaults.
type QueryConfig struct {
	NearestNeighbors      int      `yaml:"nearest_neighbors"`
	DefaultTop            int      `yaml:"default_top"`
	VectorFields          []string `yaml:"vector_fields"`
	Select                []string `yaml:"select"`
	SemanticConfiguration string   `yaml:"semantic_configuration"`
	Language              string   `yaml:"language"`
	BotMode               string   `yaml:"bot_mode"`
}

// FieldMapping pairs a text field with the vector field it feeds.
type FieldMapping struct {
	Source string `yaml:"source"`
	Vector string `yaml:"vector"`
}

// EnrichmentConfig holds setup pipeline settings.
type EnrichmentConfig struct {
	DataPath        string         `yaml:"data_path"`
	OutputPath      string         `yaml:"output_path"`
	QueryVectorPath string         `yaml:"query_vector_path"`
	SampleQuery     string         `yaml:"sample_query"`
	Workers         int            `yaml:"workers"`
	MissingField    string         `yaml:"missing_field"` // fail (default), null
	Fields          []FieldMapping `yaml:"fields"`
}

// BotConfig holds messaging-extension card settings.
type BotConfig struct {
	TitleField      string `yaml:"title_field"`
	DetailField     string `yaml:"detail_field"`
	PreviewImageURL string `yaml:"preview_image_url"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates one YAML file.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML after substituting ${VAR} and ${VAR:-default}.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3978
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	c.applySearchDefaults()
	c.applyEmbeddingDefaults()
	c.applySchemaDefaults()
	c.applyQueryDefaults()
	c.applyEnrichmentDefaults()
}

func (c *Config) applySearchDefaults() {
	if c.Search.Driver == "" {
		c.Search.Driver = DriverAzure
	}
	if c.Search.APIVersion == "" {
		c.Search.APIVersion = "2023-07-01-Preview"
	}
	if c.Search.TimeoutSec <= 0 {
		c.Search.TimeoutSec = 30
	}
	if c.Search.UploadBatchSize <= 0 {
		c.Search.UploadBatchSize = 1000
	}
	if c.Search.UploadConcurrency <= 0 {
		c.Search.UploadConcurrency = 2
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = domain.KeyPrefix
	}
}

func (c *Config) applyEmbeddingDefaults() {
	e := &c.Embedding
	if e.APIBase == "" && e.ServiceName != "" {
		e.APIBase = fmt.Sprintf("https://%s.openai.azure.com", e.ServiceName)
	}
	if e.APIVersion == "" {
		e.APIVersion = "2023-05-15"
	}
	if e.Model == "" {
		e.Model = domain.DefaultVectorConfig().Model
	}
	if e.Dimensions <= 0 {
		e.Dimensions = domain.DefaultDimensions
	}
	if e.TimeoutSec <= 0 {
		e.TimeoutSec = 30
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = 1
	}
	if e.RetryBaseDelayMS <= 0 {
		e.RetryBaseDelayMS = 200
	}
}

// defaultAlgorithm names the HNSW configuration added when the schema declares none.
const defaultAlgorithm = "vector-config"

func (c *Config) applySchemaDefaults() {
	s := &c.Schema
	if s.Name == "" {
		s.Name = c.Search.IndexName
	}
	if c.Search.IndexName == "" {
		c.Search.IndexName = s.Name
	}

	needsAlgo := false
	for i := range s.Fields {
		f := &s.Fields[i]
		if !f.IsVector() {
			continue
		}
		if f.Dimensions == 0 {
			f.Dimensions = c.Embedding.Dimensions
		}
		if f.VectorConfig == "" {
			if len(s.Algorithms) == 1 {
				f.VectorConfig = s.Algorithms[0].Name
			} else {
				f.VectorConfig = defaultAlgorithm
				needsAlgo = true
			}
		}
	}
	if needsAlgo && len(s.Algorithms) == 0 {
		vc := domain.DefaultVectorConfig()
		s.Algorithms = append(s.Algorithms, schema.HNSW{
			Name:           defaultAlgorithm,
			M:              vc.M,
			EFConstruction: vc.EFConstruction,
			EFSearch:       vc.EFSearch,
			Metric:         schema.Metric(vc.DistanceMetric),
		})
	}
}

func (c *Config) applyQueryDefaults() {
	q := &c.Query
	if q.NearestNeighbors <= 0 {
		q.NearestNeighbors = 3
	}
	if q.DefaultTop <= 0 {
		q.DefaultTop = 3
	}
	if q.Language == "" {
		q.Language = "en-us"
	}
	if q.BotMode == "" {
		q.BotMode = string(mode.PureVector)
	}
	if len(q.VectorFields) == 0 {
		for _, f := range c.Schema.VectorFields() {
			q.VectorFields = append(q.VectorFields, f.Name)
		}
	}
	if q.SemanticConfiguration == "" && len(c.Schema.Semantic) > 0 {
		q.SemanticConfiguration = c.Schema.Semantic[0].Name
	}
}

func (c *Config) applyEnrichmentDefaults() {
	e := &c.Enrichment
	if e.DataPath == "" {
		e.DataPath = "data/text-sample.json"
	}
	if e.OutputPath == "" {
		e.OutputPath = "output/docVectors.json"
	}
	if e.QueryVectorPath == "" {
		e.QueryVectorPath = "output/queryVector.json"
	}
	if e.Workers <= 0 {
		e.Workers = 1
	}
	if e.MissingField == "" {
		e.MissingField = "fail"
	}
	// titleVector <- title, unless mappings are declared.
	if len(e.Fields) == 0 {
		for _, f := range c.Schema.VectorFields() {
			if src, ok := strings.CutSuffix(f.Name, "Vector"); ok && src != "" {
				e.Fields = append(e.Fields, FieldMapping{Source: src, Vector: f.Name})
			}
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Search.Driver {
	case DriverAzure:
		if c.Search.Endpoint == "" {
			return fmt.Errorf("search.endpoint is required for driver %q", DriverAzure)
		}
		if c.Search.AdminKey == "" {
			return fmt.Errorf("search.admin_key is required for driver %q", DriverAzure)
		}
	case DriverRedis, DriverValkey:
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required for driver %q", c.Search.Driver)
		}
	default:
		return fmt.Errorf("search.driver must be azure, redis or valkey, got %q", c.Search.Driver)
	}
	if c.Embedding.Cache.Enabled && len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required when embedding.cache.enabled is set")
	}

	if err := c.validateEmbedding(); err != nil {
		return err
	}

	if err := c.Schema.Validate(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if c.Search.IndexName != c.Schema.Name {
		return fmt.Errorf("search.index_name %q differs from schema.name %q", c.Search.IndexName, c.Schema.Name)
	}

	return c.validateQueryAndEnrichment()
}

func (c *Config) validateEmbedding() error {
	e := c.Embedding
	if e.APIBase == "" {
		return fmt.Errorf("embedding.service_name or embedding.api_base is required")
	}
	if e.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required")
	}
	if e.Deployment == "" {
		return fmt.Errorf("embedding.deployment is required")
	}
	return nil
}

func (c *Config) validateQueryAndEnrichment() error {
	for _, name := range c.Query.VectorFields {
		if f, ok := c.Schema.FieldByName(name); !ok || !f.IsVector() {
			return fmt.Errorf("query.vector_fields: %q is not a vector field of the schema", name)
		}
	}
	if len(c.Query.VectorFields) == 0 {
		return fmt.Errorf("query.vector_fields is empty and the schema declares no vector fields")
	}
	if c.Query.SemanticConfiguration != "" {
		if _, ok := c.Schema.SemanticConfig(c.Query.SemanticConfiguration); !ok {
			return fmt.Errorf("query.semantic_configuration %q is not declared in the schema",
				c.Query.SemanticConfiguration)
		}
	}
	if !mode.Mode(c.Query.BotMode).IsValid() {
		return fmt.Errorf("query.bot_mode %q is not a known mode", c.Query.BotMode)
	}

	switch c.Enrichment.MissingField {
	case "fail", "null":
	default:
		return fmt.Errorf("enrichment.missing_field must be \"fail\" or \"null\", got %q", c.Enrichment.MissingField)
	}
	for _, m := range c.Enrichment.Fields {
		if f, ok := c.Schema.FieldByName(m.Vector); !ok || !f.IsVector() {
			return fmt.Errorf("enrichment.fields: %q is not a vector field of the schema", m.Vector)
		}
		if _, ok := c.Schema.FieldByName(m.Source); !ok {
			return fmt.Errorf("enrichment.fields: source %q is not a field of the schema", m.Source)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
