package config

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/spf13/viper"

	"github.com/roach88/gqlbridge/internal/logging"
	"github.com/roach88/gqlbridge/internal/store"
)

// EnvPrefix prefixes every environment override, e.g.
// GQLBRIDGE_STORE_PROJECT_ID sets store.project_id.
const EnvPrefix = "GQLBRIDGE"

//go:embed schema.cue
var schemaSource string

// Config is the complete gqlbridge configuration.
type Config struct {
	Store   StoreConfig    `mapstructure:"store" json:"store"`
	Log     logging.Config `mapstructure:"log" json:"log"`
	Metrics MetricsConfig  `mapstructure:"metrics" json:"metrics"`

	// Workers bounds how many scenarios run at once.
	Workers int `mapstructure:"workers" json:"workers"`
}

// StoreConfig holds the remote connection settings.
type StoreConfig struct {
	BaseURL           string        `mapstructure:"base_url" json:"base_url"`
	ProjectID         string        `mapstructure:"project_id" json:"project_id"`
	DatabaseID        string        `mapstructure:"database_id" json:"database_id"`
	NamespaceID       string        `mapstructure:"namespace_id" json:"namespace_id"`
	Token             string        `mapstructure:"token" json:"token"`
	AllowLiterals     bool          `mapstructure:"allow_literals" json:"allow_literals"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxPages          int           `mapstructure:"max_pages" json:"max_pages"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" json:"requests_per_second"`
	Burst             int           `mapstructure:"burst" json:"burst"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

// defaults are applied before files and environment.
var defaults = map[string]any{
	"store.base_url":            "http://localhost:8081",
	"store.project_id":          "",
	"store.database_id":         "",
	"store.namespace_id":        "",
	"store.token":               "",
	"store.allow_literals":      true,
	"store.timeout":             "30s",
	"store.max_pages":           100,
	"store.requests_per_second": 0.0,
	"store.burst":               0,
	"log.level":                 "INFO",
	"log.format":                "text",
	"log.add_source":            false,
	"metrics.addr":              "",
	"workers":                   4,
}

// Load reads configuration from path (YAML or JSON, optional when empty),
// then applies GQLBRIDGE_ environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Log.Level = strings.ToUpper(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidationError reports a configuration value the schema rejects.
type ValidationError struct {
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
	}
	return "invalid config: " + e.Message
}

// Validate checks cfg against the embedded CUE schema.
func Validate(cfg *Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	val := def.Unify(ctx.Encode(cfg))
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError returns the first CUE error with its field path.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	out := &ValidationError{
		Field:   fieldPath(first.Path()),
		Message: fmt.Sprintf(format, args...),
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}

// fieldPath joins a CUE error path, dropping definition selectors such as
// #Config.
func fieldPath(path []string) string {
	parts := make([]string, 0, len(path))
	for _, p := range path {
		if strings.HasPrefix(p, "#") {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ".")
}

// ClientConfig converts the store section into the client configuration.
func (c *Config) ClientConfig() store.Config {
	return store.Config{
		BaseURL:           c.Store.BaseURL,
		ProjectID:         c.Store.ProjectID,
		DatabaseID:        c.Store.DatabaseID,
		NamespaceID:       c.Store.NamespaceID,
		Token:             c.Store.Token,
		AllowLiterals:     c.Store.AllowLiterals,
		Timeout:           c.Store.Timeout,
		MaxPages:          c.Store.MaxPages,
		RequestsPerSecond: c.Store.RequestsPerSecond,
		Burst:             c.Store.Burst,
	}
}
