package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	RuntimeServer = "server"
	RuntimeLambda = "lambda"

	AuthModeNone    = "none"
	AuthModeStatic  = "static"
	AuthModeCognito = "cognito"

	// BaseURLEnv overrides remote.base_url and is re-read on every remote call.
	BaseURLEnv = "REMOTE_BASE_URL"
)

type Config struct {
	Runtime string        `mapstructure:"runtime"`
	App     AppConfig     `mapstructure:"app"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Journal JournalConfig `mapstructure:"journal"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Logging LoggingConfig `mapstructure:"logging"`
	Console ConsoleConfig `mapstructure:"console"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

type RemoteConfig struct {
	BaseURL               string        `mapstructure:"base_url"`
	ProductionHostPattern string        `mapstructure:"production_host_pattern"`
	Timeout               time.Duration `mapstructure:"timeout"`
	Traced                bool          `mapstructure:"traced"`
}

type AuthConfig struct {
	Mode          string        `mapstructure:"mode"`
	StaticToken   string        `mapstructure:"static_token"`
	RequiredGroup string        `mapstructure:"required_group"`
	Cognito       CognitoConfig `mapstructure:"cognito"`
}

type CognitoConfig struct {
	UserPoolID string `mapstructure:"user_pool_id"`
	Region     string `mapstructure:"region"`
}

type JournalConfig struct {
	TableName string `mapstructure:"table_name"`
	Region    string `mapstructure:"region"`
}

func (j JournalConfig) Enabled() bool { return j.TableName != "" }

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

func (r RedisConfig) Enabled() bool { return r.Address != "" }

type NotifyConfig struct {
	SES SESConfig `mapstructure:"ses"`
}

type SESConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Region    string `mapstructure:"region"`
	FromEmail string `mapstructure:"from_email"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type ConsoleConfig struct {
	PageSize int `mapstructure:"page_size"`
}

var defaults = map[string]any{
	"runtime":                        RuntimeServer,
	"app.name":                       "review-console",
	"app.environment":                "development",
	"http.port":                      8080,
	"remote.base_url":                "",
	"remote.production_host_pattern": `(^|\.)marketplace\.com$`,
	"remote.timeout":                 "15s",
	"remote.traced":                  false,
	"auth.mode":                      AuthModeNone,
	"auth.static_token":              "",
	"auth.required_group":            "",
	"auth.cognito.user_pool_id":      "",
	"auth.cognito.region":            "",
	"journal.table_name":             "",
	"journal.region":                 "us-east-1",
	"redis.address":                  "",
	"redis.password":                 "",
	"redis.db":                       0,
	"redis.lock_ttl":                 "30s",
	"notify.ses.enabled":             false,
	"notify.ses.region":              "us-east-1",
	"notify.ses.from_email":          "",
	"logging.level":                  "info",
	"console.page_size":              10,
}

// Load reads config.yaml from ./configs or the working directory, merges a
// .env file when present and lets environment variables override any key
// (remote.base_url becomes REMOTE_BASE_URL).
func Load() (*Config, error) {
	loadEnvFile()
	return LoadFrom("./configs", ".")
}

func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func normalize(cfg *Config) {
	cfg.Runtime = strings.ToLower(strings.TrimSpace(cfg.Runtime))
	cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(cfg.Auth.Mode))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Remote.BaseURL = strings.TrimSpace(cfg.Remote.BaseURL)
	if cfg.Auth.Cognito.Region == "" {
		cfg.Auth.Cognito.Region = cfg.Journal.Region
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Remote.BaseURL == "" {
		errs = append(errs, errors.New("remote.base_url is required"))
	}
	if _, err := regexp.Compile(c.Remote.ProductionHostPattern); err != nil {
		errs = append(errs, fmt.Errorf("remote.production_host_pattern: %w", err))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	switch c.Runtime {
	case RuntimeServer, RuntimeLambda:
	default:
		errs = append(errs, fmt.Errorf("runtime must be %s or %s, got %q", RuntimeServer, RuntimeLambda, c.Runtime))
	}
	switch c.Auth.Mode {
	case AuthModeNone:
	case AuthModeStatic:
		if c.Auth.StaticToken == "" {
			errs = append(errs, errors.New("auth.static_token is required in static mode"))
		}
	case AuthModeCognito:
		if c.Auth.Cognito.UserPoolID == "" {
			errs = append(errs, errors.New("auth.cognito.user_pool_id is required in cognito mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth.mode %q", c.Auth.Mode))
	}
	if c.Notify.SES.Enabled && c.Notify.SES.FromEmail == "" {
		errs = append(errs, errors.New("notify.ses.from_email is required when SES is enabled"))
	}
	if c.Console.PageSize <= 0 {
		errs = append(errs, errors.New("console.page_size must be positive"))
	}
	return errors.Join(errs...)
}

func loadEnvFile() {
	candidates := []string{".env"}
	if root := findProjectRoot(); root != "" {
		candidates = append(candidates, filepath.Join(root, ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
