// Package config loads application configuration.
//
// Values are layered: built-in defaults, then the optional YAML file, then
// SALESBI_* environment variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"salesbi/internal/domain/branch"
	"salesbi/internal/domain/feature"
	"salesbi/internal/domain/pipeline"
	"salesbi/internal/domain/reports"
	"salesbi/internal/domain/sales"
	"salesbi/internal/domain/sanitizer"
	"salesbi/internal/infrastructure/storage/postgres"
	"salesbi/pkg/logger"
)

// EnvPrefix prefixes every environment variable, e.g. SALESBI_DATABASE_URL.
const EnvPrefix = "SALESBI"

// Config is the root configuration shared by every command.
type Config struct {
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	Log      LogConfig      `yaml:"log" envconfig:"LOG"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Auth     AuthConfig     `yaml:"auth" envconfig:"AUTH"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `yaml:"url" envconfig:"URL" validate:"required"`
	MaxConns        int32         `yaml:"max_conns" envconfig:"MAX_CONNS" validate:"gte=1"`
	MinConns        int32         `yaml:"min_conns" envconfig:"MIN_CONNS" validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" envconfig:"MAX_CONN_LIFETIME"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" envconfig:"MAX_CONN_IDLE_TIME"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// ServerConfig configures the reporting API.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// AuthConfig enables bearer authentication when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" envconfig:"JWT_SECRET" validate:"omitempty,min=16"`
	Issuer    string `yaml:"issuer" envconfig:"ISSUER"`
}

// Enabled reports whether the API requires a bearer token.
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

// PipelineConfig holds the sources and the rule tables of the consolidation run.
type PipelineConfig struct {
	Sources        []pipeline.SourceSpec `yaml:"sources" ignored:"true" validate:"required,min=1,dive"`
	Predicate      string                `yaml:"predicate" envconfig:"PREDICATE"`
	AnomalyPolicy  string                `yaml:"anomaly_policy" envconfig:"ANOMALY_POLICY" validate:"oneof=halt quarantine"`
	CategoryRules  []feature.Rule        `yaml:"category_rules" ignored:"true" validate:"dive"`
	BranchSentinel string                `yaml:"branch_sentinel" envconfig:"BRANCH_SENTINEL" validate:"required"`
	BucketEdges    []string              `yaml:"bucket_edges" envconfig:"BUCKET_EDGES" validate:"required,min=1"`
	TopN           int                   `yaml:"top_n" envconfig:"TOP_N" validate:"gte=1,lte=1000"`
	ExportDir      string                `yaml:"export_dir" envconfig:"EXPORT_DIR"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	edges := make([]string, len(reports.DefaultBucketEdges))
	for i, e := range reports.DefaultBucketEdges {
		edges[i] = e.String()
	}

	return Config{
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{Issuer: "salesbi"},
		Pipeline: PipelineConfig{
			Sources: []pipeline.SourceSpec{
				{Name: "Muttathara", Table: "muttathara"},
				{Name: "Palayam", Table: "palayam", Renames: map[string]string{
					"invoice_no":      sales.ColInvoiceID,
					"mode_of_payment": sales.ColPaymentMode,
				}},
			},
			AnomalyPolicy:  string(sanitizer.PolicyHalt),
			CategoryRules:  append([]feature.Rule(nil), feature.DefaultRules...),
			BranchSentinel: branch.DefaultSentinel,
			BucketEdges:    edges,
			TopN:           reports.DefaultTopN,
			ExportDir:      "reports",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// sequences in the file replace the defaults instead of merging with them
	cfg.Pipeline.Sources = nil
	cfg.Pipeline.CategoryRules = nil
	cfg.Pipeline.BucketEdges = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	def := Default()
	if cfg.Pipeline.Sources == nil {
		cfg.Pipeline.Sources = def.Pipeline.Sources
	}
	if cfg.Pipeline.CategoryRules == nil {
		cfg.Pipeline.CategoryRules = def.Pipeline.CategoryRules
	}
	if cfg.Pipeline.BucketEdges == nil {
		cfg.Pipeline.BucketEdges = def.Pipeline.BucketEdges
	}
	return nil
}

// Validate checks struct constraints and the values that need parsing.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if _, err := c.Pipeline.Edges(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Pipeline.Sources))
	for _, s := range c.Pipeline.Sources {
		if seen[s.Name] {
			return fmt.Errorf("duplicate source %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Edges parses the distribution bucket edges; they must be strictly ascending.
func (p PipelineConfig) Edges() ([]decimal.Decimal, error) {
	edges := make([]decimal.Decimal, 0, len(p.BucketEdges))
	for _, s := range p.BucketEdges {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("bucket edge %q: %w", s, err)
		}
		if n := len(edges); n > 0 && !d.GreaterThan(edges[n-1]) {
			return nil, errors.New("bucket edges must be strictly ascending")
		}
		edges = append(edges, d)
	}
	return edges, nil
}

// Sanitizer builds the sanitizer from the predicate and anomaly policy.
func (p PipelineConfig) Sanitizer() (*sanitizer.Sanitizer, error) {
	pred, err := sanitizer.NewPredicate(p.Predicate)
	if err != nil {
		return nil, err
	}
	return sanitizer.New(sanitizer.Config{
		Predicate: pred,
		Policy:    sanitizer.AnomalyPolicy(p.AnomalyPolicy),
	}), nil
}

// PoolConfig maps the database section onto the postgres pool settings.
func (d DatabaseConfig) PoolConfig() postgres.PoolConfig {
	cfg := postgres.DefaultPoolConfig(d.URL)
	cfg.MaxConns = d.MaxConns
	cfg.MinConns = d.MinConns
	if d.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = d.MaxConnLifetime
	}
	if d.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = d.MaxConnIdleTime
	}
	return cfg
}

// LoggerConfig maps the log section onto pkg/logger.
func (l LogConfig) LoggerConfig() logger.Config {
	return logger.Config{Level: l.Level, Development: l.Development}
}
