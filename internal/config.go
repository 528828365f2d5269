package internal

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ariadna/internal/index"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config is the file layout of config/config.yaml. Sections left out of the
// file keep the values of NewDefaultConfig.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Session   SessionConfig     `yaml:"session"`
	Events    EventsConfig      `yaml:"events"`
}

// Validate checks every section. Errors are keyed by field name, e.g.
// "Auth: (Token: is required when mode is token.)."
func (c *Config) Validate() error {
	c.Auth.normalize()
	return validation.ValidateStruct(c,
		validation.Field(&c.App),
		validation.Field(&c.Workspace),
		validation.Field(&c.SQLite),
		validation.Field(&c.Auth),
		validation.Field(&c.Session),
		validation.Field(&c.Events),
	)
}

type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

func (c ApplicationConfig) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.HTTP))
}

// HTTPConfig is the REST listener. Host defaults to loopback: a thread
// workspace is a local, single-user thing.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns the listen address in host:port form.
func (c HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c HTTPConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

type WorkspaceConfig struct {
	Path string `yaml:"path"`
}

func (c WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Path, validation.Required))
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

func (c SQLiteConfig) Validate() error {
	return validation.ValidateStruct(&c, validation.Field(&c.Path, validation.Required))
}

// AuthConfig guards the REST API. Mode "disabled" (the default) lets every
// request through; "token" requires a bearer token equal to Token.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// An empty mode, as left by a config without an auth section, is disabled.
func (c *AuthConfig) normalize() {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
}

func (c AuthConfig) Validate() error {
	c.normalize()
	return validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken).Error("must be disabled or token")),
		validation.Field(&c.Token,
			validation.When(c.Mode == AuthModeToken, validation.Required.Error("is required when mode is token")),
		),
	)
}

// AuthEnabled reports whether requests must carry the token.
func (c AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SessionConfig controls the editing session.
type SessionConfig struct {
	// RecentLimit bounds the recent-threads list.
	RecentLimit int `yaml:"recent_limit"`
	// DetectVCS fills vcs_rev of new threads from the root path's repository.
	DetectVCS bool `yaml:"detect_vcs"`
	// RestoreLast reopens the last thread on start.
	RestoreLast bool `yaml:"restore_last"`
	// AutoReload reloads a clean thread when its file changes on disk.
	AutoReload bool `yaml:"auto_reload"`
}

func (c SessionConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RecentLimit, validation.Required, validation.Min(1), validation.Max(index.MaxRecent)),
	)
}

// EventsConfig tunes the change stream at GET /api/events.
type EventsConfig struct {
	// RefreshThrottle is the minimum gap between tree.refresh events.
	RefreshThrottle time.Duration `yaml:"refresh_throttle"`
}

func (c EventsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RefreshThrottle, validation.Min(time.Duration(0)), validation.Max(time.Minute)),
	)
}

// NewDefaultConfig returns the configuration used when no file is given.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP:     HTTPConfig{Host: "127.0.0.1", Port: 8080},
		},
		Workspace: WorkspaceConfig{Path: "./threads"},
		SQLite:    SQLiteConfig{Path: "./ariadna.db"},
		Auth:      AuthConfig{Mode: AuthModeDisabled},
		Session: SessionConfig{
			RecentLimit: index.MaxRecent,
			DetectVCS:   true,
			RestoreLast: true,
			AutoReload:  true,
		},
		Events: EventsConfig{RefreshThrottle: 2 * time.Second},
	}
}
