package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/automaton/internal/action"
	"github.com/starford/automaton/internal/opener"
	"github.com/starford/automaton/internal/prefs"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Prefs   PrefsConfig       `yaml:"prefs"`
	Schemes SchemesConfig     `yaml:"schemes"`
	Opener  OpenerConfig      `yaml:"opener"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Prefs.Validate(); err != nil {
		return err
	}
	if err := c.Opener.Validate(); err != nil {
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

// PrefsConfig selects where the action mapping is persisted.
type PrefsConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	// Watch reloads actions when another process rewrites the json file.
	Watch bool `yaml:"watch"`
}

// Validate validates the preference store configuration.
func (c *PrefsConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = prefs.BackendJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(prefs.BackendJSON, prefs.BackendSQLite, prefs.BackendMemory)),
		validation.Field(&c.Path, validation.When(c.Backend != prefs.BackendMemory, validation.Required)),
	)
}

// SchemesConfig holds the URL scheme whitelist.
type SchemesConfig struct {
	Queryable []string `yaml:"queryable"`
}

// Whitelist builds the scheme set used to gate following.
func (c *SchemesConfig) Whitelist() action.Schemes {
	return action.NewSchemes(c.Queryable...)
}

// OpenerConfig selects how URLs are handed to the operating system.
type OpenerConfig struct {
	Mode    string `yaml:"mode"`
	Command string `yaml:"command"`
}

// Validate validates the opener configuration.
func (c *OpenerConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = opener.ModeExec
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(opener.ModeExec, opener.ModeLog, opener.ModeDisabled)),
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
	// Normalise empty mode to "disabled" for backward compatibility.
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
		Prefs: PrefsConfig{
			Backend: prefs.BackendJSON,
			Path:    "./data/preferences.json",
			Watch:   true,
		},
		Schemes: SchemesConfig{
			Queryable: []string{"http", "https", "mailto", "tel", "sms", "geo"},
		},
		Opener: OpenerConfig{
			Mode: opener.ModeExec,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
