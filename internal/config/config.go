// Package config handles configuration loading for resim-launch.
// It reads GitHub Actions inputs from the environment, an optional project
// file and command-line flags into a single flat Config.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/resim-ai/launch/internal/auth"
	"github.com/resim-ai/launch/internal/batch"
	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/internal/secrets"
)

// ProjectFileName is searched for in the working directory and its parents.
const ProjectFileName = ".resim-launch.yaml"

// EnvPrefix is the prefix GitHub Actions puts on step inputs.
const EnvPrefix = "INPUT"

// Cache backends.
const (
	CacheSQLite = "sqlite"
	CacheS3     = "s3"
	CacheNone   = "none"
)

// Config holds every input resim-launch reads.
type Config struct {
	APIEndpoint    string `mapstructure:"api_endpoint"`
	Auth0TenantURL string `mapstructure:"auth0_tenant_url"`

	ClientID             string `mapstructure:"client_id"`
	ClientSecret         string `mapstructure:"client_secret"`
	ResimUsername        string `mapstructure:"resim_username"`
	ResimPassword        string `mapstructure:"resim_password"`
	PasswordAuthClientID string `mapstructure:"password_auth_client_id"`

	Project   string `mapstructure:"project"`
	System    string `mapstructure:"system"`
	TestSuite string `mapstructure:"test_suite"`
	Image     string `mapstructure:"image"`
	BuildID   string `mapstructure:"build_id"`

	Experiences             string `mapstructure:"experiences"`
	ExperienceTags          string `mapstructure:"experience_tags"`
	PoolLabels              string `mapstructure:"pool_labels"`
	AllowableFailurePercent string `mapstructure:"allowable_failure_percent"`
	MetricsBuildID          string `mapstructure:"metrics_build_id"`
	Parameters              string `mapstructure:"parameters"`

	DebugLogging bool   `mapstructure:"debug_logging"`
	CommentOnPR  bool   `mapstructure:"comment_on_pr"`
	GitHubToken  string `mapstructure:"github_token"`
	BypassCache  bool   `mapstructure:"bypass_cache"`

	CacheBackend    string `mapstructure:"cache_backend"`
	CachePath       string `mapstructure:"cache_path"`
	CacheS3Bucket   string `mapstructure:"cache_s3_bucket"`
	CacheS3Prefix   string `mapstructure:"cache_s3_prefix"`
	CacheS3Endpoint string `mapstructure:"cache_s3_endpoint"`
	AWSRegion       string `mapstructure:"aws_region"`

	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	LogFile     string        `mapstructure:"log_file"`
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// ConfigFile, when set, is read instead of searching for ProjectFileName.
	ConfigFile string
	// Flags are bound by name with dashes mapped to underscores.
	Flags *pflag.FlagSet
	// Dir is where the project file search starts. Defaults to the working directory.
	Dir string
}

// Load resolves configuration.
// Precedence (highest to lowest):
// 1. Flags that were set on the command line
// 2. Environment (INPUT_<KEY>, plus RESIM_* and GITHUB_TOKEN aliases)
// 3. Project config (.resim-launch.yaml in the working directory or a parent)
// 4. Built-in defaults
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	path := opts.ConfigFile
	if path == "" {
		path = findProjectConfig(opts.Dir)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	bindAliases(v)

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.trim()
	return cfg, nil
}

// setDefaults registers every key so the environment can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api_endpoint", "https://api.resim.ai/v1/")
	v.SetDefault("auth0_tenant_url", "https://resim.us.auth0.com/")

	v.SetDefault("client_id", "")
	v.SetDefault("client_secret", "")
	v.SetDefault("resim_username", "")
	v.SetDefault("resim_password", "")
	v.SetDefault("password_auth_client_id", "0Ip56H1LLAo6Dc6IfePaNzgpUxbJGyVI")

	v.SetDefault("project", "")
	v.SetDefault("system", "")
	v.SetDefault("test_suite", "")
	v.SetDefault("image", "")
	v.SetDefault("build_id", "")

	v.SetDefault("experiences", "")
	v.SetDefault("experience_tags", "")
	v.SetDefault("pool_labels", "")
	v.SetDefault("allowable_failure_percent", "")
	v.SetDefault("metrics_build_id", "")
	v.SetDefault("parameters", "")

	v.SetDefault("debug_logging", false)
	v.SetDefault("comment_on_pr", false)
	v.SetDefault("github_token", "")
	v.SetDefault("bypass_cache", false)

	v.SetDefault("cache_backend", CacheSQLite)
	v.SetDefault("cache_path", ".resim/cache.db")
	v.SetDefault("cache_s3_bucket", "")
	v.SetDefault("cache_s3_prefix", "resim-launch")
	v.SetDefault("cache_s3_endpoint", "")
	v.SetDefault("aws_region", "")

	v.SetDefault("http_timeout", "0s")
	v.SetDefault("log_file", "")
}

// bindAliases maps the non-prefixed variables some keys also answer to.
// The first non-empty variable wins.
func bindAliases(v *viper.Viper) {
	aliases := map[string][]string{
		"api_endpoint":   {"INPUT_API_ENDPOINT", "RESIM_API_ENDPOINT"},
		"client_id":      {"INPUT_CLIENT_ID", "RESIM_CLIENT_ID"},
		"client_secret":  {"INPUT_CLIENT_SECRET", "RESIM_CLIENT_SECRET"},
		"resim_username": {"INPUT_RESIM_USERNAME", "RESIM_USERNAME"},
		"resim_password": {"INPUT_RESIM_PASSWORD", "RESIM_PASSWORD"},
		"bypass_cache":   {"INPUT_BYPASS_CACHE", "RESIM_BYPASS_CACHE"},
		"github_token":   {"INPUT_GITHUB_TOKEN", "GITHUB_TOKEN"},
		"aws_region":     {"INPUT_AWS_REGION", "AWS_REGION"},
	}
	for key, envs := range aliases {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	known := make(map[string]bool)
	for _, k := range v.AllKeys() {
		known[k] = true
	}

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !known[key] || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("binding flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// findProjectConfig searches for ProjectFileName in dir and its parents.
func findProjectConfig(dir string) string {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = cwd
	}

	for {
		configPath := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// GetProjectConfigPath returns the project config file Load would read from
// the working directory, or "".
func GetProjectConfigPath() string {
	return findProjectConfig("")
}

func (c *Config) trim() {
	for _, s := range []*string{
		&c.APIEndpoint, &c.Auth0TenantURL,
		&c.ClientID, &c.ClientSecret, &c.ResimUsername, &c.PasswordAuthClientID,
		&c.Project, &c.System, &c.TestSuite, &c.Image, &c.BuildID,
		&c.MetricsBuildID, &c.CacheBackend, &c.CachePath, &c.CacheS3Bucket,
	} {
		*s = strings.TrimSpace(*s)
	}
	c.CacheBackend = strings.ToLower(c.CacheBackend)
}

// Validate checks the settings that are not batch inputs.
func (c *Config) Validate() error {
	if c.APIEndpoint == "" {
		return errs.Config("api_endpoint is required")
	}
	if c.Auth0TenantURL == "" {
		return errs.Config("auth0_tenant_url is required")
	}
	switch c.CacheBackend {
	case CacheSQLite:
		if c.CachePath == "" {
			return errs.Config("cache_path is required for the sqlite cache")
		}
	case CacheS3:
		if c.CacheS3Bucket == "" {
			return errs.Config("cache_s3_bucket is required for the s3 cache")
		}
	case CacheNone:
	default:
		return errs.Config("cache_backend must be one of sqlite, s3, none; got %q", c.CacheBackend)
	}
	if c.HTTPTimeout < 0 {
		return errs.Config("http_timeout must not be negative")
	}
	return nil
}

// Credentials returns the configured credentials.
func (c *Config) Credentials() auth.Credentials {
	return auth.Credentials{
		ClientID:         c.ClientID,
		ClientSecret:     c.ClientSecret,
		Username:         c.ResimUsername,
		Password:         c.ResimPassword,
		PasswordClientID: c.PasswordAuthClientID,
	}
}

// AuthConfig returns the token provider settings.
func (c *Config) AuthConfig() auth.Config {
	return auth.Config{
		APIEndpoint: c.APIEndpoint,
		TenantURL:   c.Auth0TenantURL,
		BypassCache: c.BypassCache,
	}
}

// BatchInput returns the raw batch inputs.
func (c *Config) BatchInput() batch.Input {
	return batch.Input{
		Project:                 c.Project,
		TestSuite:               c.TestSuite,
		Experiences:             c.Experiences,
		ExperienceTags:          c.ExperienceTags,
		PoolLabels:              c.PoolLabels,
		AllowableFailurePercent: c.AllowableFailurePercent,
		MetricsBuildID:          c.MetricsBuildID,
		Parameters:              c.Parameters,
	}
}

// SecretResolver resolves secret references in credential values.
type SecretResolver interface {
	Resolve(ctx context.Context, value string) (string, error)
}

func (c *Config) secretFields() map[string]*string {
	return map[string]*string{
		"client_id":      &c.ClientID,
		"client_secret":  &c.ClientSecret,
		"resim_username": &c.ResimUsername,
		"resim_password": &c.ResimPassword,
		"github_token":   &c.GitHubToken,
	}
}

// HasSecretReferences reports whether any credential needs resolving.
func (c *Config) HasSecretReferences(isRef func(string) bool) bool {
	for _, f := range c.secretFields() {
		if isRef(*f) {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces credential values in place. A missing, empty or
// unreadable secret is a configuration error; any other failure reaching
// the secret store is a transport error.
func (c *Config) ResolveSecrets(ctx context.Context, r SecretResolver) error {
	for key, f := range c.secretFields() {
		v, err := r.Resolve(ctx, *f)
		if err != nil {
			return errs.Wrap(secretErrorCode(err), key, err)
		}
		*f = v
	}
	return nil
}

func secretErrorCode(err error) errs.Code {
	switch {
	case errors.Is(err, secrets.ErrSecretNotFound),
		errors.Is(err, secrets.ErrAccessDenied),
		errors.Is(err, secrets.ErrSecretEmpty),
		errors.Is(err, secrets.ErrInvalidReference):
		return errs.CodeConfiguration
	}
	if code := errs.CodeOf(err); code != errs.CodeInternal {
		return code
	}
	return errs.CodeTransport
}
