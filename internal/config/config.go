// Package config handles loading and validating Huddle configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	goutils "github.com/jkaninda/go-utils"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for Huddle.
type Config struct {
	DataDir       string               `json:"data_dir,omitempty" yaml:"data_dir,omitempty"` // Default: ~/.huddle/data. Override: HUDDLE_DATA_DIR.
	Timezone      string               `json:"timezone,omitempty" yaml:"timezone,omitempty"` // IANA name. Default: local. Override: HUDDLE_TIMEZONE.
	Providers     ProvidersConfig      `json:"providers" yaml:"providers"`
	Zoom          ZoomConfig           `json:"zoom" yaml:"zoom"`
	Calendar      CalendarConfig       `json:"calendar" yaml:"calendar"`
	Storage       *StorageConfig       `json:"storage,omitempty" yaml:"storage,omitempty"` // nil = SQLite in data_dir.
	Agent         AgentConfig          `json:"agent" yaml:"agent"`
	Joiner        JoinerConfig         `json:"joiner" yaml:"joiner"`
	Scheduler     *SchedulerConfig     `json:"scheduler,omitempty" yaml:"scheduler,omitempty"` // nil = no background jobs.
	Gateways      GatewaysConfig       `json:"gateways" yaml:"gateways"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = disabled.
}

// ProvidersConfig selects and configures LLM providers.
type ProvidersConfig struct {
	Default  string       `json:"default" yaml:"default"`                       // "gemini" (default) or "openai".
	Fallback []string     `json:"fallback,omitempty" yaml:"fallback,omitempty"` // Tried in order when the default fails.
	Gemini   GeminiConfig `json:"gemini" yaml:"gemini"`
	OpenAI   OpenAIConfig `json:"openai" yaml:"openai"`
}

type GeminiConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`       // Default: gemini-2.0-flash.
	BaseURL string `json:"base_url" yaml:"base_url"` // Optional. Defaults to https://generativelanguage.googleapis.com.
}

type OpenAIConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url" yaml:"base_url"` // Optional. Defaults to https://api.openai.com.
}

// Zoom authentication strategies.
const (
	ZoomAuthAccount           = "account"
	ZoomAuthAuthorizationCode = "authorization_code"
)

// ZoomConfig configures the Zoom REST client and its OAuth flow.
type ZoomConfig struct {
	Auth         string `json:"auth,omitempty" yaml:"auth,omitempty"` // "account" or "authorization_code". Empty = account when account_id is set.
	AccountID    string `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	ClientID     string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty" yaml:"redirect_uri,omitempty"` // Default: http://localhost:3000/oauth/callback.
	APIBaseURL   string `json:"api_base_url,omitempty" yaml:"api_base_url,omitempty"` // Default: https://api.zoom.us/v2.
	OAuthBaseURL string `json:"oauth_base_url,omitempty" yaml:"oauth_base_url,omitempty"`
	TokenCache   string `json:"token_cache,omitempty" yaml:"token_cache,omitempty"` // Default: <data_dir>/zoom_token.json.
}

// AuthMode returns the effective authentication strategy.
func (z *ZoomConfig) AuthMode() string {
	if z.Auth != "" {
		return z.Auth
	}
	if z.AccountID != "" {
		return ZoomAuthAccount
	}
	return ZoomAuthAuthorizationCode
}

// Redirect returns the OAuth redirect URI with its default.
func (z *ZoomConfig) Redirect() string {
	if z.RedirectURI != "" {
		return z.RedirectURI
	}
	return "http://localhost:3000/oauth/callback"
}

// Calendar drivers.
const (
	CalendarDriverDB   = "db"
	CalendarDriverFile = "file"
)

// CalendarConfig selects where calendar events live.
type CalendarConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"` // "db" (default) or "file".
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`     // File driver path. Default: <data_dir>/mock_calendar.json.
}

// StorageConfig configures the persistence backend.
type StorageConfig struct {
	Driver   string                 `json:"driver" yaml:"driver"` // "sqlite" (default) or "postgres".
	SQLite   *SQLiteStorageConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres *PostgresStorageConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
}

// StorageDriver returns the configured driver, defaulting to "sqlite".
func (s *StorageConfig) StorageDriver() string {
	if s != nil && s.Driver != "" {
		return s.Driver
	}
	return "sqlite"
}

type SQLiteStorageConfig struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	JournalMode string `json:"journal_mode" yaml:"journal_mode"` // Default: wal.
}

type PostgresStorageConfig struct {
	DSN              string `json:"dsn" yaml:"dsn"` // Override: HUDDLE_DB_DSN.
	MaxOpenConns     int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns     int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s" yaml:"conn_max_lifetime_s"`
}

// AgentConfig tunes the agent loop.
type AgentConfig struct {
	MaxIterations   int `json:"max_iterations" yaml:"max_iterations"`     // Default: 10.
	MaxHistory      int `json:"max_history" yaml:"max_history"`           // Conversation messages kept per session. Default: 50.
	MaxOutputTokens int `json:"max_output_tokens" yaml:"max_output_tokens"` // Default: 4096.
}

// Iterations returns the iteration cap with a default of 10.
func (a *AgentConfig) Iterations() int {
	if a.MaxIterations > 0 {
		return a.MaxIterations
	}
	return 10
}

// History returns the per-conversation history cap with a default of 50.
func (a *AgentConfig) History() int {
	if a.MaxHistory > 0 {
		return a.MaxHistory
	}
	return 50
}

// OutputTokens returns the max tokens per completion with a default of 4096.
func (a *AgentConfig) OutputTokens() int {
	if a.MaxOutputTokens > 0 {
		return a.MaxOutputTokens
	}
	return 4096
}

// JoinerConfig configures the meeting auto-joiner.
type JoinerConfig struct {
	WindowSeconds int  `json:"window_seconds" yaml:"window_seconds"` // Default: 300.
	DryRun        bool `json:"dry_run" yaml:"dry_run"`               // Record joins without opening a browser.
}

// Window returns the look-ahead window with a default of 5 minutes.
func (j *JoinerConfig) Window() time.Duration {
	if j.WindowSeconds > 0 {
		return time.Duration(j.WindowSeconds) * time.Second
	}
	return 5 * time.Minute
}

// SchedulerConfig configures periodic background jobs.
type SchedulerConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	JoinerSpec      string `json:"joiner_spec" yaml:"joiner_spec"`           // Default: "@every 1m".
	WorkflowSpec    string `json:"workflow_spec" yaml:"workflow_spec"`       // Empty = workflow not scheduled.
	WorkflowRequest string `json:"workflow_request" yaml:"workflow_request"` // Prompt for scheduled runs.
}

// Joiner returns the joiner cron spec with its default.
func (s *SchedulerConfig) Joiner() string {
	if s != nil && s.JoinerSpec != "" {
		return s.JoinerSpec
	}
	return "@every 1m"
}

// Request returns the prompt for scheduled workflow runs.
func (s *SchedulerConfig) Request() string {
	if s != nil && s.WorkflowRequest != "" {
		return s.WorkflowRequest
	}
	return "Check my emails and schedule any meetings they require."
}

type GatewaysConfig struct {
	CLI  *CLIGatewayConfig  `json:"cli,omitempty" yaml:"cli,omitempty"`
	HTTP *HTTPGatewayConfig `json:"http,omitempty" yaml:"http,omitempty"`
}

type CLIGatewayConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type HTTPGatewayConfig struct {
	Enabled           bool              `json:"enabled" yaml:"enabled"`
	EnableDocs        bool              `json:"enable_docs" yaml:"enable_docs"`
	ListenAddr        string            `json:"listen_addr" yaml:"listen_addr"`                   // Default: ":8080". Override: HUDDLE_LISTEN_ADDR.
	APIKeyUserMapping map[string]string `json:"api_key_user_mapping" yaml:"api_key_user_mapping"` // API key → user ID.
	WebSocket         bool              `json:"websocket" yaml:"websocket"`                       // Mount /v1/ws chat endpoint.
	RateLimit         *RateLimitConfig  `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"` // nil = unlimited.
}

// RateLimitConfig throttles /v1 requests per API user.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
	BurstSize         int `json:"burst_size" yaml:"burst_size"` // Default: requests_per_minute.
}

// Addr returns the listen address with its default.
func (h *HTTPGatewayConfig) Addr() string {
	if h != nil && h.ListenAddr != "" {
		return h.ListenAddr
	}
	return ":8080"
}

// ObservabilityConfig configures metrics, tracing and health checks.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "huddle"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`
}

// DefaultConfigPath returns ~/.huddle/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/huddle.yaml"
	}
	return filepath.Join(home, ".huddle", "config.yaml")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Default: "gemini",
			Gemini:  GeminiConfig{Model: "gemini-2.0-flash"},
		},
		Calendar: CalendarConfig{Driver: CalendarDriverDB},
	}
}

// Load reads the config file at path on top of Default, applies environment
// overrides and validates the result. A missing file is not an error when
// optional is true; the defaults plus environment are used instead.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		resolved, err := resolvePath(path)
		if err != nil {
			return nil, fmt.Errorf("resolving config path %s: %w", path, err)
		}
		data, err := os.ReadFile(resolved)
		switch {
		case err == nil:
			if err := decode(resolved, data, cfg); err != nil {
				return nil, err
			}
		case optional && errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DataDir = filepath.Join(home, ".huddle", "data")
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing YAML config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing JSON config %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Providers.Gemini.APIKey = goutils.Env("GEMINI_API_KEY", c.Providers.Gemini.APIKey)
	c.Providers.OpenAI.APIKey = goutils.Env("OPENAI_API_KEY", c.Providers.OpenAI.APIKey)

	c.Zoom.AccountID = goutils.Env("ZOOM_ACCOUNT_ID", c.Zoom.AccountID)
	c.Zoom.ClientID = goutils.Env("ZOOM_CLIENT_ID", c.Zoom.ClientID)
	c.Zoom.ClientSecret = goutils.Env("ZOOM_CLIENT_SECRET", c.Zoom.ClientSecret)
	c.Zoom.RedirectURI = goutils.Env("ZOOM_REDIRECT_URI", c.Zoom.RedirectURI)

	c.DataDir = goutils.Env("HUDDLE_DATA_DIR", c.DataDir)
	c.Timezone = goutils.Env("HUDDLE_TIMEZONE", c.Timezone)

	if dsn := os.Getenv("HUDDLE_DB_DSN"); dsn != "" {
		if c.Storage == nil {
			c.Storage = &StorageConfig{Driver: "postgres"}
		}
		if c.Storage.Postgres == nil {
			c.Storage.Postgres = &PostgresStorageConfig{}
		}
		c.Storage.Postgres.DSN = dsn
	}
	if addr := os.Getenv("HUDDLE_LISTEN_ADDR"); addr != "" {
		if c.Gateways.HTTP == nil {
			c.Gateways.HTTP = &HTTPGatewayConfig{Enabled: true}
		}
		c.Gateways.HTTP.ListenAddr = addr
	}
}

func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// ResolvedDataDir returns the absolute data directory.
func (c *Config) ResolvedDataDir() string {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		return filepath.Join(home, ".huddle", "data")
	}
	resolved, err := resolvePath(c.DataDir)
	if err != nil {
		return c.DataDir
	}
	return resolved
}

// DatabasePath returns the SQLite database path.
func (c *Config) DatabasePath() string {
	if c.Storage != nil && c.Storage.SQLite != nil && c.Storage.SQLite.Path != "" {
		if p, err := resolvePath(c.Storage.SQLite.Path); err == nil {
			return p
		}
		return c.Storage.SQLite.Path
	}
	return filepath.Join(c.ResolvedDataDir(), "huddle.db")
}

// CalendarPath returns the JSON calendar file used by the file driver.
func (c *Config) CalendarPath() string {
	if c.Calendar.Path != "" {
		if p, err := resolvePath(c.Calendar.Path); err == nil {
			return p
		}
		return c.Calendar.Path
	}
	return filepath.Join(c.ResolvedDataDir(), "mock_calendar.json")
}

// ZoomTokenCachePath returns where authorization-code tokens are cached.
func (c *Config) ZoomTokenCachePath() string {
	if c.Zoom.TokenCache != "" {
		if p, err := resolvePath(c.Zoom.TokenCache); err == nil {
			return p
		}
		return c.Zoom.TokenCache
	}
	return filepath.Join(c.ResolvedDataDir(), "zoom_token.json")
}

// Location returns the configured time zone, defaulting to local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// StorageDriverName returns the effective storage driver.
func (c *Config) StorageDriverName() string {
	return c.Storage.StorageDriver()
}

func (c *Config) validate() error {
	if c.Providers.Default == "" {
		c.Providers.Default = "gemini"
	}
	switch c.Providers.Default {
	case "gemini", "openai":
	default:
		return fmt.Errorf("providers.default %q is not supported (use gemini or openai)", c.Providers.Default)
	}
	for _, name := range c.Providers.Fallback {
		if name != "gemini" && name != "openai" {
			return fmt.Errorf("providers.fallback: unknown provider %q", name)
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone %q: %w", c.Timezone, err)
		}
	}
	switch c.Zoom.Auth {
	case "", ZoomAuthAccount, ZoomAuthAuthorizationCode:
	default:
		return fmt.Errorf("zoom.auth %q is not supported (use %s or %s)", c.Zoom.Auth, ZoomAuthAccount, ZoomAuthAuthorizationCode)
	}
	switch c.Calendar.Driver {
	case "", CalendarDriverDB, CalendarDriverFile:
	default:
		return fmt.Errorf("calendar.driver %q is not supported (use db or file)", c.Calendar.Driver)
	}
	if c.Storage != nil {
		switch c.Storage.StorageDriver() {
		case "sqlite":
		case "postgres":
			if c.Storage.Postgres == nil || c.Storage.Postgres.DSN == "" {
				return fmt.Errorf("storage.postgres.dsn is required for the postgres driver (set HUDDLE_DB_DSN)")
			}
		default:
			return fmt.Errorf("storage.driver %q is not supported (use sqlite or postgres)", c.Storage.Driver)
		}
	}
	if c.Joiner.WindowSeconds < 0 {
		return fmt.Errorf("joiner.window_seconds must not be negative")
	}
	if t := c.Observability; t != nil && t.Tracing != nil && t.Tracing.Enabled {
		if t.Tracing.SampleRate < 0 || t.Tracing.SampleRate > 1 {
			return fmt.Errorf("observability.tracing.sample_rate must be between 0 and 1")
		}
	}
	return nil
}

// ValidateProvider checks that the default LLM provider has credentials.
// It is separate from Load so commands that never call the model (resolve,
// calendar, zoom) work without an API key.
func (c *Config) ValidateProvider() error {
	switch c.Providers.Default {
	case "gemini":
		if c.Providers.Gemini.Model == "" {
			return fmt.Errorf("providers.gemini.model is required")
		}
		if c.Providers.Gemini.APIKey == "" {
			return fmt.Errorf("providers.gemini.api_key is required (set GEMINI_API_KEY env var)")
		}
	case "openai":
		if c.Providers.OpenAI.Model == "" {
			return fmt.Errorf("providers.openai.model is required")
		}
		if c.Providers.OpenAI.APIKey == "" {
			return fmt.Errorf("providers.openai.api_key is required (set OPENAI_API_KEY env var)")
		}
	}
	return nil
}

// ValidateZoom checks that the credentials for the selected Zoom auth mode are present.
func (c *Config) ValidateZoom() error {
	if c.Zoom.ClientID == "" || c.Zoom.ClientSecret == "" {
		return fmt.Errorf("zoom.client_id and zoom.client_secret are required (set ZOOM_CLIENT_ID and ZOOM_CLIENT_SECRET)")
	}
	if c.Zoom.AuthMode() == ZoomAuthAccount && c.Zoom.AccountID == "" {
		return fmt.Errorf("zoom.account_id is required for account credentials (set ZOOM_ACCOUNT_ID)")
	}
	return nil
}
