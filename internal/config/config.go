// Package config loads the harness configuration record.
//
// Configuration is read from an optional YAML file (tickcheck.yaml in the
// working directory, or the path given by --config), overlaid with
// TICKCHECK_* environment variables. A .env file in the working directory
// is loaded first so local credentials never need to live in the YAML.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Authentication modes. The harness never guesses which scheme a backend
// uses; one of these must be selected globally or per actor.
const (
	AuthCookie = "cookie" // session cookie read from a credential file
	AuthLogin  = "login"  // form login, falling back to basic auth
	AuthBasic  = "basic"  // basic auth pair from configuration
	AuthBearer = "bearer" // bearer token from file or literal
)

// ValidAuthModes lists the accepted auth_mode values.
var ValidAuthModes = []string{AuthCookie, AuthLogin, AuthBasic, AuthBearer}

// Config is the explicit configuration record handed to the harness.
type Config struct {
	BaseURL     string                 `mapstructure:"base_url"`
	AuthMode    string                 `mapstructure:"auth_mode"`
	HTTPTimeout time.Duration          `mapstructure:"http_timeout"`
	Poll        PollConfig             `mapstructure:"poll"`
	Log         LogConfig              `mapstructure:"log"`
	HistoryPath string                 `mapstructure:"history_path"`
	MetricsFile string                 `mapstructure:"metrics_file"`
	Actors      map[string]ActorConfig `mapstructure:"actors"`
}

// PollConfig bounds the poll-until-condition primitive.
type PollConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

// ActorConfig names the credential source for one role.
type ActorConfig struct {
	CredentialFile string `mapstructure:"credential_file"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	Token          string `mapstructure:"token"`
	TokenFile      string `mapstructure:"token_file"`
	AuthMode       string `mapstructure:"auth_mode"`
}

// Defaults used when neither file nor environment sets a value.
const (
	DefaultBaseURL      = "http://localhost:8080"
	DefaultHTTPTimeout  = 10 * time.Second
	DefaultPollTimeout  = 10 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
)

// Load reads configuration from cfgFile (optional), the environment and
// .env. A missing default config file is not an error; a missing explicit
// one is.
func Load(cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("tickcheck")
	}

	v.SetEnvPrefix("TICKCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("auth_mode", AuthCookie)
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("poll.timeout", DefaultPollTimeout)
	v.SetDefault("poll.interval", DefaultPollInterval)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("history_path", "")
	v.SetDefault("metrics_file", "")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Role keys are case-insensitive in the file; viper lowercases them.
	actors := make(map[string]ActorConfig, len(cfg.Actors))
	for role, ac := range cfg.Actors {
		actors[strings.ToUpper(role)] = ac
	}
	cfg.Actors = actors

	// Per-role secrets are commonly injected through the environment only.
	for _, role := range []string{"EMPLOYEE", "MANAGER", "SUPPORT", "ADMIN"} {
		prefix := "actors." + strings.ToLower(role) + "."
		ac := cfg.Actors[role]
		ac.CredentialFile = firstNonEmpty(ac.CredentialFile, v.GetString(prefix+"credential_file"))
		ac.Username = firstNonEmpty(ac.Username, v.GetString(prefix+"username"))
		ac.Password = firstNonEmpty(ac.Password, v.GetString(prefix+"password"))
		ac.Token = firstNonEmpty(ac.Token, v.GetString(prefix+"token"))
		ac.TokenFile = firstNonEmpty(ac.TokenFile, v.GetString(prefix+"token_file"))
		ac.AuthMode = firstNonEmpty(ac.AuthMode, v.GetString(prefix+"auth_mode"))
		if ac != (ActorConfig{}) {
			cfg.Actors[role] = ac
		}
	}
	return &cfg, nil
}

// Validate checks field-level constraints.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q must be an absolute http(s) URL", c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url %q must use http or https", c.BaseURL)
	}
	if !isValidAuthMode(c.AuthMode) {
		return fmt.Errorf("auth_mode %q: must be one of %v", c.AuthMode, ValidAuthModes)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	if c.Poll.Timeout <= 0 || c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.timeout and poll.interval must be positive")
	}
	if c.Poll.Interval > c.Poll.Timeout {
		return fmt.Errorf("poll.interval (%s) exceeds poll.timeout (%s)", c.Poll.Interval, c.Poll.Timeout)
	}
	for _, role := range c.Roles() {
		ac := c.Actors[role]
		if ac.AuthMode != "" && !isValidAuthMode(ac.AuthMode) {
			return fmt.Errorf("actors.%s.auth_mode %q: must be one of %v", role, ac.AuthMode, ValidAuthModes)
		}
	}
	return nil
}

// Roles returns the configured actor roles in sorted order.
func (c *Config) Roles() []string {
	roles := make([]string, 0, len(c.Actors))
	for role := range c.Actors {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// ModeFor returns the effective auth mode for a role.
func (c *Config) ModeFor(role string) string {
	if ac, ok := c.Actors[role]; ok && ac.AuthMode != "" {
		return ac.AuthMode
	}
	return c.AuthMode
}

func isValidAuthMode(mode string) bool {
	for _, m := range ValidAuthModes {
		if m == mode {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
