package internal

import (
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Source SourceConfig      `yaml:"source"`
	Output OutputConfig      `yaml:"output"`
	Cache  CacheConfig       `yaml:"cache"`
	Script ScriptConfig      `yaml:"script"`
	Policy PolicyConfig      `yaml:"policy"`
	Serve  ServeConfig       `yaml:"serve"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Script.Validate(); err != nil {
		return err
	}
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	return c.Serve.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// SourceConfig points at the knowledge-base export to convert.
type SourceConfig struct {
	// Path is the Logseq JSON export file.
	Path string `yaml:"path"`
	// Watch keeps the process alive and re-runs the export on change.
	Watch bool `yaml:"watch"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// OutputConfig controls where rendered pages land.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	Extension string `yaml:"extension"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// CacheConfig holds the render cache database location.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ScriptConfig points at the Lua policy script.
type ScriptConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the script configuration.
func (c *ScriptConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PolicyConfig carries the evaluator's configuration tables.
type PolicyConfig struct {
	// Autotag maps keywords to tags for the script's autotag helper.
	Autotag map[string]string `yaml:"autotag"`
	// NamespaceTags maps page-title namespace segments to tags.
	NamespaceTags map[string]string `yaml:"namespace_tags"`
	// OmitTags are removed from every final tag set.
	OmitTags []string `yaml:"omit_tags"`
	// MaxEmbedDepth bounds nested embed expansion; 0 uses the default.
	MaxEmbedDepth int `yaml:"max_embed_depth"`
	// Workers sizes the per-phase worker pool; 0 uses NumCPU.
	Workers int `yaml:"workers"`
	// StrictWarnings makes the process exit non-zero when any
	// recovered warning occurred.
	StrictWarnings bool `yaml:"strict_warnings"`
}

// Validate validates the policy configuration.
func (c *PolicyConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxEmbedDepth, validation.Min(0)),
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

// ServeConfig controls the output preview server.
type ServeConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Validate validates the serve configuration.
func (c *ServeConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Source: SourceConfig{
			Path: "./graph.json",
		},
		Output: OutputConfig{
			Dir:       "./site",
			Extension: "html",
		},
		Cache: CacheConfig{
			Path: "./graphpress.db",
		},
		Script: ScriptConfig{
			Path: "./export.lua",
		},
		Policy: PolicyConfig{
			MaxEmbedDepth: 4,
		},
		Serve: ServeConfig{
			Port: 8080,
		},
	}
}
