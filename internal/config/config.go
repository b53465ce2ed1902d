// Package config loads service configuration from an optional YAML file and
// CLINICAL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/medassist/clinical-core/internal/acidbase"
	"github.com/medassist/clinical-core/internal/classifier"
	"github.com/medassist/clinical-core/internal/partogram"
)

// EnvPrefix prefixes every environment override, e.g. CLINICAL_SERVER_PORT.
const EnvPrefix = "CLINICAL"

// ConfigFileEnv names the variable holding the optional config file path.
const ConfigFileEnv = "CLINICAL_CONFIG"

// Config is the full service configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	AcidBase   AcidBaseConfig   `mapstructure:"acidbase"`
	Partogram  partogram.Config `mapstructure:"partogram"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds the PostgreSQL connection. An empty URL runs the API
// on the in-memory labor store.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// KafkaConfig holds broker settings
type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	AlertTopic string   `mapstructure:"alert_topic"`
	GroupID    string   `mapstructure:"group_id"`
}

// RedisConfig holds the chart cache connection. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	ChartTTL time.Duration `mapstructure:"chart_ttl"`
}

// AuthConfig maps API keys to client IDs. An empty map disables authentication.
type AuthConfig struct {
	APIKeys map[string]string `mapstructure:"api_keys"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

// AcidBaseConfig mirrors acidbase.Options
type AcidBaseConfig struct {
	IncludePotassium bool    `mapstructure:"include_potassium"`
	VenousPHOffset   float64 `mapstructure:"venous_ph_offset"`
	VenousPCO2Offset float64 `mapstructure:"venous_pco2_offset"`
}

// Options converts the section to engine options
func (c AcidBaseConfig) Options() acidbase.Options {
	return acidbase.Options{
		IncludePotassium: c.IncludePotassium,
		VenousPHOffset:   c.VenousPHOffset,
		VenousPCO2Offset: c.VenousPCO2Offset,
	}
}

// ClassifierConfig points at optional YAML lexicons; empty paths use the built-in tables.
type ClassifierConfig struct {
	IntentLexiconPath string `mapstructure:"intent_lexicon_path"`
	ScoreLexiconPath  string `mapstructure:"score_lexicon_path"`
	IntentThreshold   int    `mapstructure:"intent_threshold"`
}

// Build creates the intent (weighted-sum) and score (context-match) classifiers.
func (c ClassifierConfig) Build() (intent, score *classifier.Classifier, err error) {
	intentLex := classifier.DefaultIntentLexicon()
	if c.IntentLexiconPath != "" {
		if intentLex, err = classifier.LoadLexiconFile(c.IntentLexiconPath); err != nil {
			return nil, nil, fmt.Errorf("intent lexicon: %w", err)
		}
	}
	scoreLex := classifier.DefaultScoreLexicon()
	if c.ScoreLexiconPath != "" {
		if scoreLex, err = classifier.LoadLexiconFile(c.ScoreLexiconPath); err != nil {
			return nil, nil, fmt.Errorf("score lexicon: %w", err)
		}
	}

	policy := classifier.NewWeightedSum()
	if c.IntentThreshold > 0 {
		policy.Threshold = c.IntentThreshold
	}
	if intent, err = classifier.New(intentLex, policy, classifier.WithNumberExtraction()); err != nil {
		return nil, nil, err
	}
	if score, err = classifier.NewScoreClassifier(scoreLex); err != nil {
		return nil, nil, err
	}
	return intent, score, nil
}

// DispatcherConfig holds alert delivery settings
type DispatcherConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	ab := acidbase.DefaultOptions()
	pg := partogram.DefaultConfig()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("database.url", "")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.alert_topic", "labor.alerts")
	v.SetDefault("kafka.group_id", "alert-dispatcher")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.chart_ttl", 10*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("acidbase.include_potassium", ab.IncludePotassium)
	v.SetDefault("acidbase.venous_ph_offset", ab.VenousPHOffset)
	v.SetDefault("acidbase.venous_pco2_offset", ab.VenousPCO2Offset)
	v.SetDefault("partogram.alert_dilation_start_cm", pg.AlertDilationStartCm)
	v.SetDefault("partogram.alert_rate_cm_per_hour", pg.AlertRateCmPerHour)
	v.SetDefault("partogram.action_offset_hours", pg.ActionOffsetHours)
	v.SetDefault("classifier.intent_lexicon_path", "")
	v.SetDefault("classifier.score_lexicon_path", "")
	v.SetDefault("classifier.intent_threshold", 8)
	v.SetDefault("dispatcher.workers", 8)
	v.SetDefault("dispatcher.queue_size", 256)
	v.SetDefault("dispatcher.max_retries", 3)
	v.SetDefault("dispatcher.retry_delay", 500*time.Millisecond)
	v.SetDefault("dispatcher.webhook_url", "")
	v.SetDefault("dispatcher.webhook_timeout", 10*time.Second)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

// Load reads the file at path when non-empty, then applies env overrides,
// defaults and validation.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", path, err)
		}
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv loads the file named by CLINICAL_CONFIG, if any.
func LoadFromEnv() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	return Load(v.GetString(ConfigFileEnv))
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	// brokers arrive as one comma-separated string from the environment
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if err := c.AcidBase.Options().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Partogram.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Classifier.IntentThreshold <= 0 {
		errs = append(errs, errors.New("classifier.intent_threshold must be positive"))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 || math.IsNaN(c.Tracing.SampleRate) {
		errs = append(errs, errors.New("tracing.sample_rate must be within [0, 1]"))
	}
	if c.Dispatcher.Workers <= 0 {
		errs = append(errs, errors.New("dispatcher.workers must be positive"))
	}
	return errors.Join(errs...)
}
