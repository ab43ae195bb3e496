package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	LogLevel   string          `koanf:"log_level"`
	HTTPListen string          `koanf:"http_listen"`
	Mongo      MongoConfig     `koanf:"mongo"`
	Collector  CollectorConfig `koanf:"collector"`
	Generator  GeneratorConfig `koanf:"generator"`
}

type MongoConfig struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Host     string `koanf:"host"`
}

type CollectorConfig struct {
	NRUser   string   `koanf:"nr_user"`
	NRPass   string   `koanf:"nr_pass"`
	NRHost   string   `koanf:"nr_host"`
	NRPort   int      `koanf:"nr_port"`
	Attempts int      `koanf:"attempts"`
	PPM      bool     `koanf:"ppm"`
	TD       bool     `koanf:"td"`
	TM       bool     `koanf:"tm"`
	TDTopics []string `koanf:"td_topics"`
}

type GeneratorConfig struct {
	RateSeconds   int     `koanf:"rate_seconds"`
	K             float64 `koanf:"k"`
	Iterations    int     `koanf:"iterations"`
	CutDistance   float64 `koanf:"cut_distance"`
	Scale         float64 `koanf:"scale"`
	DeltaBSeconds int     `koanf:"delta_b_seconds"`
	DeltaTHours   int     `koanf:"delta_t_hours"`
}

// envKeys maps the deployment's environment variables onto config keys.
// Variables not listed here are ignored.
var envKeys = map[string]string{
	"LOG_LEVEL":                  "log_level",
	"HTTP_LISTEN":                "http_listen",
	"MONGO_INITDB_ROOT_USERNAME": "mongo.username",
	"MONGO_INITDB_ROOT_PASSWORD": "mongo.password",
	"MONGO_HOST":                 "mongo.host",
	"COLLECTOR_NR_USER":          "collector.nr_user",
	"COLLECTOR_NR_PASS":          "collector.nr_pass",
	"COLLECTOR_NR_HOST":          "collector.nr_host",
	"COLLECTOR_NR_PORT":          "collector.nr_port",
	"COLLECTOR_ATTEMPTS":         "collector.attempts",
	"COLLECTOR_PPM":              "collector.ppm",
	"COLLECTOR_TD":               "collector.td",
	"COLLECTOR_TM":               "collector.tm",
	"COLLECTOR_TD_TOPICS":        "collector.td_topics",
	"GENERATOR_RATE":             "generator.rate_seconds",
	"GENERATOR_K":                "generator.k",
	"GENERATOR_ITER":             "generator.iterations",
	"GENERATOR_CUT_D":            "generator.cut_distance",
	"GENERATOR_SCALE":            "generator.scale",
	"GENERATOR_DELTA_B":          "generator.delta_b_seconds",
	"GENERATOR_DELTA_T":          "generator.delta_t_hours",
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load YAML file first, if given.
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables using the explicit name mapping.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		LogLevel:   "info",
		HTTPListen: ":8080",
		Mongo: MongoConfig{
			Host: "mongo:27017",
		},
		Collector: CollectorConfig{
			NRHost:   "datafeeds.networkrail.co.uk",
			NRPort:   61618,
			Attempts: 5,
		},
		Generator: GeneratorConfig{
			RateSeconds:   3600,
			K:             1e-6,
			Iterations:    5000,
			CutDistance:   0.25,
			Scale:         100000,
			DeltaBSeconds: 5,
			DeltaTHours:   1,
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Split comma-separated env strings for slice fields.
	if len(cfg.Collector.TDTopics) == 1 && strings.Contains(cfg.Collector.TDTopics[0], ",") {
		cfg.Collector.TDTopics = strings.Split(cfg.Collector.TDTopics[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Collector.Attempts <= 0 {
		return fmt.Errorf("config: collector.attempts must be > 0 (got %d)", c.Collector.Attempts)
	}
	if c.Collector.NRHost == "" {
		return fmt.Errorf("config: collector.nr_host is required")
	}
	if c.Collector.NRPort <= 0 || c.Collector.NRPort > 65535 {
		return fmt.Errorf("config: collector.nr_port is invalid (got %d)", c.Collector.NRPort)
	}
	if c.Mongo.Host == "" {
		return fmt.Errorf("config: mongo.host is required")
	}
	if c.Generator.RateSeconds <= 0 {
		return fmt.Errorf("config: generator.rate_seconds must be > 0 (got %d)", c.Generator.RateSeconds)
	}
	if c.Generator.K <= 0 {
		return fmt.Errorf("config: generator.k must be > 0 (got %g)", c.Generator.K)
	}
	if c.Generator.Iterations <= 0 {
		return fmt.Errorf("config: generator.iterations must be > 0 (got %d)", c.Generator.Iterations)
	}
	if c.Generator.CutDistance <= 0 {
		return fmt.Errorf("config: generator.cut_distance must be > 0 (got %g)", c.Generator.CutDistance)
	}
	if c.Generator.Scale <= 0 {
		return fmt.Errorf("config: generator.scale must be > 0 (got %g)", c.Generator.Scale)
	}
	if c.Generator.DeltaBSeconds < 0 {
		return fmt.Errorf("config: generator.delta_b_seconds must be >= 0 (got %d)", c.Generator.DeltaBSeconds)
	}
	if c.Generator.DeltaTHours <= 0 {
		return fmt.Errorf("config: generator.delta_t_hours must be > 0 (got %d)", c.Generator.DeltaTHours)
	}
	return nil
}

// URI assembles the MongoDB connection string from the store credentials.
func (m MongoConfig) URI() string {
	if m.Username == "" {
		return fmt.Sprintf("mongodb://%s", m.Host)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s",
		url.QueryEscape(m.Username), url.QueryEscape(m.Password), m.Host)
}
