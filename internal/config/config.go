package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/HarllyZhou/statcn-etl/internal/domain"
)

// KafkaConfig enables publishing assembled panel rows to a topic. Leaving
// Brokers empty disables the publisher.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic"   yaml:"topic"`
}

// Config holds all settings for a download run. Candidate lists and the
// indicator table are configuration data, not logic: the upstream API is
// undocumented and unstable, so which locale/database combinations are worth
// trying belongs in the config file, not in code.
type Config struct {
	// Endpoints are candidate API base URLs, tried in order. A 404 from one
	// base moves the request to the next.
	Endpoints []string `mapstructure:"endpoints" yaml:"endpoints"`

	// Locales are candidate cn codes for the session bootstrap and queries.
	Locales []string `mapstructure:"locales" yaml:"locales"`

	// Databases are candidate dbcode values probed per locale.
	Databases []string `mapstructure:"databases" yaml:"databases"`

	// Indicators is the ordered label -> zb code table joined into the panel.
	Indicators []domain.Indicator `mapstructure:"indicators" yaml:"indicators"`

	// SearchPatterns are logged against the indicator tree to help locate
	// series codes before Indicators is filled in.
	SearchPatterns []string `mapstructure:"search_patterns" yaml:"search_patterns"`

	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`

	BootTimeout  time.Duration `mapstructure:"boot_timeout"  yaml:"boot_timeout"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`

	LogLevel  string `mapstructure:"log_level"  yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// HTTPAddr, when set, serves /healthz, /readyz and /metrics during a run.
	HTTPAddr string `mapstructure:"http_addr" yaml:"http_addr"`

	Kafka KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
}

// Default returns the shipped configuration. The candidate lists reproduce
// the combinations known to work against the public deployment.
func Default() *Config {
	return &Config{
		Endpoints:      []string{"https://data.stats.gov.cn"},
		Locales:        []string{"E0102", "E0101", "E0103", "C01"},
		Databases:      []string{"fsnd", "hgnd", "csyd"},
		SearchPatterns: []string{"一般公共预算收入", "税收收入", "非税收入", "政府性基金收入", "土地", "出让"},
		OutputDir:      "data",
		BootTimeout:    30 * time.Second,
		QueryTimeout:   60 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads configuration from an optional YAML file and STATCN_-prefixed
// environment variables, on top of the shipped defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("STATCN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("statcn")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && configPath != "" {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// Missing file is fine when no explicit path was given.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency. It does not require Indicators: the
// trees subcommand runs usefully without them.
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("at least one endpoint is required")
	}
	if len(c.Locales) == 0 {
		return errors.New("at least one locale candidate is required")
	}
	if len(c.Databases) == 0 {
		return errors.New("at least one database candidate is required")
	}
	if c.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	if c.BootTimeout <= 0 || c.QueryTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	for i, ind := range c.Indicators {
		if ind.Label == "" || ind.Code == "" {
			return fmt.Errorf("indicator %d: label and code are both required", i)
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required when kafka.brokers is set")
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("endpoints", cfg.Endpoints)
	v.SetDefault("locales", cfg.Locales)
	v.SetDefault("databases", cfg.Databases)
	v.SetDefault("search_patterns", cfg.SearchPatterns)
	v.SetDefault("output_dir", cfg.OutputDir)
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("boot_timeout", cfg.BootTimeout)
	v.SetDefault("query_timeout", cfg.QueryTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("http_addr", cfg.HTTPAddr)
	v.SetDefault("kafka.brokers", cfg.Kafka.Brokers)
	v.SetDefault("kafka.topic", cfg.Kafka.Topic)
}
