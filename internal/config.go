package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/backlinker/internal/storage"
	"github.com/starford/backlinker/internal/updater"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Corpus   CorpusConfig      `yaml:"corpus"`
	Mentions MentionsConfig    `yaml:"mentions"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Watch    WatchConfig       `yaml:"watch"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Corpus.Validate(); err != nil {
		return err
	}
	if err := c.Mentions.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CorpusConfig selects the Markdown documents to process.
type CorpusConfig struct {
	Root    string   `yaml:"root"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// Validate validates the corpus configuration.
func (c *CorpusConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Include, validation.Each(validation.By(globPattern))),
		validation.Field(&c.Exclude, validation.Each(validation.By(globPattern))),
	)
}

// StorageOptions converts the glob lists into storage options.
func (c *CorpusConfig) StorageOptions() []storage.FSOption {
	var opts []storage.FSOption
	if len(c.Include) > 0 {
		opts = append(opts, storage.WithInclude(c.Include...))
	}
	if len(c.Exclude) > 0 {
		opts = append(opts, storage.WithExclude(c.Exclude...))
	}
	return opts
}

func globPattern(value any) error {
	p, _ := value.(string)
	if !doublestar.ValidatePattern(p) {
		return fmt.Errorf("invalid glob pattern %q", p)
	}
	return nil
}

// MentionsConfig holds the tagged-link class and the managed block syntax.
type MentionsConfig struct {
	Class       string `yaml:"class"`
	StartMarker string `yaml:"start_marker"`
	EndMarker   string `yaml:"end_marker"`
	Separator   string `yaml:"separator"`
}

// Validate validates the mentions configuration.
func (c *MentionsConfig) Validate() error {
	c.Class = strings.TrimPrefix(c.Class, ".")
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Class, validation.Required, validation.By(noSpace)),
		validation.Field(&c.StartMarker, validation.Required),
		validation.Field(&c.EndMarker, validation.Required),
		validation.Field(&c.Separator, validation.Required),
	); err != nil {
		return err
	}
	if c.StartMarker == c.EndMarker {
		return errors.New("mentions: start_marker and end_marker must differ")
	}
	return nil
}

func noSpace(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, " \t\r\n}") {
		return errors.New("must be a single attribute token")
	}
	return nil
}

// UpdaterOptions converts the mention syntax into updater options.
func (c *MentionsConfig) UpdaterOptions() []updater.Option {
	return []updater.Option{
		updater.WithClass(c.Class),
		updater.WithMarkers(c.StartMarker, c.EndMarker),
		updater.WithSeparator(c.Separator),
	}
}

// SQLiteConfig holds the snapshot database configuration. An empty path
// disables the snapshot outside of serve and mcp modes.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether a snapshot database is configured.
func (c *SQLiteConfig) Enabled() bool {
	return c.Path != ""
}

// WatchConfig holds file watcher configuration.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Corpus: CorpusConfig{
			Root:    "./dsa-notes",
			Include: slices.Clone(storage.DefaultInclude),
		},
		Mentions: MentionsConfig{
			Class:       updater.DefaultClass,
			StartMarker: updater.DefaultStartMarker,
			EndMarker:   updater.DefaultEndMarker,
			Separator:   updater.DefaultSeparator,
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
