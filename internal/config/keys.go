package config

import (
	"fmt"
	"strings"
)

// MaskSecret returns a masked version of a credential for display.
// Secret references are not secret themselves and are shown as is.
func MaskSecret(value string) string {
	if value == "" {
		return "(not set)"
	}
	if strings.HasPrefix(value, "aws-sm:") {
		return value
	}
	if len(value) <= 15 {
		return "***"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

// CredentialSource names which grant flow the configured credentials select.
type CredentialSource string

const (
	CredentialSourceClient   CredentialSource = "client_credentials"
	CredentialSourcePassword CredentialSource = "password_realm"
	CredentialSourceNone     CredentialSource = "none"
)

// GetCredentialSource reports which credential variant will be used.
func GetCredentialSource(cfg *Config) CredentialSource {
	if cfg == nil {
		return CredentialSourceNone
	}
	switch cfg.Credentials().Flow() {
	case string(CredentialSourceClient):
		return CredentialSourceClient
	case string(CredentialSourcePassword):
		return CredentialSourcePassword
	default:
		return CredentialSourceNone
	}
}

// Setting is one resolved key for display.
type Setting struct {
	Key   string
	Value string
}

// Settings lists every key in a stable order with credentials masked.
func (c *Config) Settings() []Setting {
	b := func(v bool) string { return fmt.Sprintf("%t", v) }
	return []Setting{
		{"api_endpoint", c.APIEndpoint},
		{"auth0_tenant_url", c.Auth0TenantURL},
		{"client_id", MaskSecret(c.ClientID)},
		{"client_secret", MaskSecret(c.ClientSecret)},
		{"resim_username", c.ResimUsername},
		{"resim_password", MaskSecret(c.ResimPassword)},
		{"password_auth_client_id", c.PasswordAuthClientID},
		{"project", c.Project},
		{"system", c.System},
		{"test_suite", c.TestSuite},
		{"image", c.Image},
		{"build_id", c.BuildID},
		{"experiences", c.Experiences},
		{"experience_tags", c.ExperienceTags},
		{"pool_labels", c.PoolLabels},
		{"allowable_failure_percent", c.AllowableFailurePercent},
		{"metrics_build_id", c.MetricsBuildID},
		{"parameters", c.Parameters},
		{"debug_logging", b(c.DebugLogging)},
		{"comment_on_pr", b(c.CommentOnPR)},
		{"github_token", MaskSecret(c.GitHubToken)},
		{"bypass_cache", b(c.BypassCache)},
		{"cache_backend", c.CacheBackend},
		{"cache_path", c.CachePath},
		{"cache_s3_bucket", c.CacheS3Bucket},
		{"cache_s3_prefix", c.CacheS3Prefix},
		{"cache_s3_endpoint", c.CacheS3Endpoint},
		{"aws_region", c.AWSRegion},
		{"http_timeout", c.HTTPTimeout.String()},
		{"log_file", c.LogFile},
	}
}
