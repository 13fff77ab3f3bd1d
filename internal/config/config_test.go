package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/internal/secrets"
)

// clearEnv blanks the variables Load reads so the host environment does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GITHUB_TOKEN", "AWS_REGION",
		"RESIM_API_ENDPOINT", "RESIM_CLIENT_ID", "RESIM_CLIENT_SECRET",
		"RESIM_USERNAME", "RESIM_PASSWORD", "RESIM_BYPASS_CACHE",
	} {
		t.Setenv(k, "")
	}
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, EnvPrefix+"_") {
			t.Setenv(k, "")
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(LoadOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "https://api.resim.ai/v1/", cfg.APIEndpoint)
	assert.Equal(t, "https://resim.us.auth0.com/", cfg.Auth0TenantURL)
	assert.Equal(t, CacheSQLite, cfg.CacheBackend)
	assert.Equal(t, ".resim/cache.db", cfg.CachePath)
	assert.Equal(t, "resim-launch", cfg.CacheS3Prefix)
	assert.NotEmpty(t, cfg.PasswordAuthClientID)
	assert.False(t, cfg.BypassCache)
	assert.Zero(t, cfg.HTTPTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ActionInputs(t *testing.T) {
	clearEnv(t)
	t.Setenv("INPUT_PROJECT", " robotics ")
	t.Setenv("INPUT_EXPERIENCE_TAGS", "nightly,regression")
	t.Setenv("INPUT_BYPASS_CACHE", "true")
	t.Setenv("INPUT_COMMENT_ON_PR", "true")
	t.Setenv("INPUT_HTTP_TIMEOUT", "30s")
	t.Setenv("INPUT_CACHE_BACKEND", "S3")
	t.Setenv("INPUT_CACHE_S3_BUCKET", "ci-cache")

	cfg, err := Load(LoadOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "robotics", cfg.Project)
	assert.Equal(t, "nightly,regression", cfg.ExperienceTags)
	assert.True(t, cfg.BypassCache)
	assert.True(t, cfg.CommentOnPR)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, CacheS3, cfg.CacheBackend)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Aliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("RESIM_BYPASS_CACHE", "true")
	t.Setenv("RESIM_CLIENT_ID", "from-resim")
	t.Setenv("GITHUB_TOKEN", "gh-token")

	cfg, err := Load(LoadOptions{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, cfg.BypassCache)
	assert.Equal(t, "from-resim", cfg.ClientID)
	assert.Equal(t, "gh-token", cfg.GitHubToken)

	t.Setenv("INPUT_CLIENT_ID", "from-input")
	cfg, err = Load(LoadOptions{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "from-input", cfg.ClientID)
}

func TestLoad_ProjectFileSearchAndPrecedence(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	child := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(child, 0o755))
	content := "project: from-file\nsystem: perception\npool_labels: gpu\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectFileName), []byte(content), 0o644))

	assert.Equal(t, filepath.Join(root, ProjectFileName), findProjectConfig(child))

	t.Setenv("INPUT_SYSTEM", "planning")
	cfg, err := Load(LoadOptions{Dir: child})
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Project)
	assert.Equal(t, "planning", cfg.System)
	assert.Equal(t, "gpu", cfg.PoolLabels)
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("test_suite: smoke\n"), 0o644))

	cfg, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "smoke", cfg.TestSuite)

	_, err = Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestLoad_FlagsWinOverEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("INPUT_PROJECT", "from-env")
	t.Setenv("INPUT_IMAGE", "from-env:1")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("project", "", "")
	fs.String("image", "", "")
	fs.Bool("bypass-cache", false, "")
	fs.String("unrelated", "", "")
	require.NoError(t, fs.Parse([]string{"--project=from-flag", "--bypass-cache"}))

	cfg, err := Load(LoadOptions{Dir: t.TempDir(), Flags: fs})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Project)
	assert.Equal(t, "from-env:1", cfg.Image)
	assert.True(t, cfg.BypassCache)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			APIEndpoint:    "https://api.example.com/v1",
			Auth0TenantURL: "https://tenant.example.com",
			CacheBackend:   CacheSQLite,
			CachePath:      "cache.db",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"none backend", func(c *Config) { c.CacheBackend = CacheNone }, true},
		{"missing endpoint", func(c *Config) { c.APIEndpoint = "" }, false},
		{"missing tenant", func(c *Config) { c.Auth0TenantURL = "" }, false},
		{"unknown backend", func(c *Config) { c.CacheBackend = "redis" }, false},
		{"sqlite without path", func(c *Config) { c.CachePath = "" }, false},
		{"s3 without bucket", func(c *Config) { c.CacheBackend = CacheS3 }, false},
		{"negative timeout", func(c *Config) { c.HTTPTimeout = -time.Second }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.CodeConfiguration))
		})
	}
}

func TestAccessors(t *testing.T) {
	cfg := &Config{
		APIEndpoint:             "https://api",
		Auth0TenantURL:          "https://tenant",
		BypassCache:             true,
		ClientID:                "id",
		ClientSecret:            "secret",
		PasswordAuthClientID:    "pw-client",
		Project:                 "p",
		TestSuite:               "s",
		PoolLabels:              "a,b",
		AllowableFailurePercent: "10",
	}

	creds := cfg.Credentials()
	assert.Equal(t, "id", creds.ClientID)
	assert.Equal(t, "pw-client", creds.PasswordClientID)

	ac := cfg.AuthConfig()
	assert.Equal(t, "https://api", ac.APIEndpoint)
	assert.Equal(t, "https://tenant", ac.TenantURL)
	assert.True(t, ac.BypassCache)

	in := cfg.BatchInput()
	assert.Equal(t, "p", in.Project)
	assert.Equal(t, "s", in.TestSuite)
	assert.Equal(t, "a,b", in.PoolLabels)
	assert.Equal(t, "10", in.AllowableFailurePercent)
}

type fakeSecrets struct {
	values map[string]string
	err    error
}

func (f fakeSecrets) Resolve(_ context.Context, v string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if r, ok := f.values[v]; ok {
		return r, nil
	}
	return v, nil
}

func TestResolveSecrets(t *testing.T) {
	isRef := func(v string) bool { return strings.HasPrefix(v, "aws-sm:") }

	cfg := &Config{ClientID: "aws-sm:ci#id", ClientSecret: "aws-sm:ci#secret", ResimUsername: "plain"}
	assert.True(t, cfg.HasSecretReferences(isRef))

	err := cfg.ResolveSecrets(context.Background(), fakeSecrets{values: map[string]string{
		"aws-sm:ci#id":     "resolved-id",
		"aws-sm:ci#secret": "resolved-secret",
	}})
	require.NoError(t, err)
	assert.Equal(t, "resolved-id", cfg.ClientID)
	assert.Equal(t, "resolved-secret", cfg.ClientSecret)
	assert.Equal(t, "plain", cfg.ResimUsername)
	assert.False(t, cfg.HasSecretReferences(isRef))

}

func TestResolveSecrets_ErrorCodes(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  errs.Code
	}{
		{"not found", fmt.Errorf("resolve secret x: %w", secrets.ErrSecretNotFound), errs.CodeConfiguration},
		{"access denied", fmt.Errorf("resolve secret x: %w", secrets.ErrAccessDenied), errs.CodeConfiguration},
		{"empty", fmt.Errorf("resolve secret x: %w", secrets.ErrSecretEmpty), errs.CodeConfiguration},
		{"invalid reference", fmt.Errorf("resolve secret: %w", secrets.ErrInvalidReference), errs.CodeConfiguration},
		{"throttled", errors.New("resolve secret x: get secret value: ThrottlingException: rate exceeded"), errs.CodeTransport},
		{"network", fmt.Errorf("resolve secret x: %w", errors.New("dial tcp: connection refused")), errs.CodeTransport},
		{"coded cause", errs.Newf(errs.CodeUnauthorized, "expired session"), errs.CodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Config{ClientID: "aws-sm:x"}).ResolveSecrets(context.Background(), fakeSecrets{err: tt.cause})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.cause)
			assert.Equal(t, tt.want, errs.CodeOf(err))
		})
	}
}
