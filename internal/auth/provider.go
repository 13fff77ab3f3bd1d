// Package auth obtains the bearer token for the ReSim API. A cached token is
// reused when an authenticated request accepts it; otherwise a fresh one is granted by
// the OAuth tenant and written back to the cache.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/internal/logging"
	"github.com/resim-ai/launch/internal/transport"
)

// Token is an opaque bearer credential. It is never decoded.
type Token string

// LogValue keeps tokens out of structured logs.
func (t Token) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// Cache is the token storage the provider needs.
type Cache interface {
	Restore(ctx context.Context) (bool, error)
	Read() (string, error)
	Write(token string) error
	Save(ctx context.Context) (string, error)
	Remove() error
}

// Config locates the API and the OAuth tenant.
type Config struct {
	// APIEndpoint is the ReSim API base URL; cached tokens are checked against {APIEndpoint}/projects.
	APIEndpoint string
	// TenantURL is the OAuth tenant; grants are POSTed to {TenantURL}/oauth/token.
	TenantURL string
	// Audience defaults to DefaultAudience.
	Audience string
	// BypassCache skips validation of a restored token and forces a fresh grant.
	BypassCache bool
}

// Provider runs the token acquisition state machine.
type Provider struct {
	cfg    Config
	creds  Credentials
	cache  Cache
	doer   transport.Doer
	logger *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = logging.OrDiscard(l) }
}

// NewProvider creates a Provider.
func NewProvider(cfg Config, creds Credentials, cache Cache, doer transport.Doer, opts ...Option) *Provider {
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	p := &Provider{
		cfg:    cfg,
		creds:  creds,
		cache:  cache,
		doer:   doer,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetToken returns a bearer token, reusing a cached one when the API accepts
// it. The local token file is removed before returning on every path.
func (p *Provider) GetToken(ctx context.Context) (Token, error) {
	g, err := p.creds.grant()
	if err != nil {
		return "", err
	}

	defer func() {
		if err := p.cache.Remove(); err != nil {
			p.logger.WarnContext(ctx, "token file cleanup failed", "error", err)
		}
	}()

	hit, err := p.cache.Restore(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "token cache unavailable, treating as miss", "error", err)
		hit = false
	}

	if hit && !p.cfg.BypassCache {
		tok, err := p.cachedToken(ctx)
		if err != nil {
			return "", err
		}
		if tok != "" {
			p.logger.InfoContext(ctx, "restored token is valid")
			return tok, nil
		}
	} else if hit {
		p.logger.InfoContext(ctx, "cache bypass set, ignoring restored token")
	}

	tok, err := p.grant(ctx, g)
	if err != nil {
		return "", err
	}

	if err := p.cache.Write(string(tok)); err != nil {
		return "", errs.Wrap(errs.CodeInternal, "persist token", err)
	}
	if _, err := p.cache.Save(ctx); err != nil {
		p.logger.WarnContext(ctx, "token cache save failed", "error", err)
	}
	return tok, nil
}

// cachedToken reads and checks the restored token. It returns "" when the
// token is unreadable or rejected.
func (p *Provider) cachedToken(ctx context.Context) (Token, error) {
	raw, err := p.cache.Read()
	if err != nil {
		p.logger.WarnContext(ctx, "restored token unreadable", "error", err)
		return "", nil
	}
	if raw == "" {
		return "", nil
	}

	tok := Token(raw)
	valid, err := p.checkToken(ctx, tok)
	if err != nil {
		return "", err
	}
	if !valid {
		p.logger.InfoContext(ctx, "restored token rejected, re-authenticating")
		return "", nil
	}
	return tok, nil
}

// checkToken makes one authenticated GET. [200,300) is valid, [300,500) is
// invalid, anything else is a transport error.
func (p *Provider) checkToken(ctx context.Context, tok Token) (bool, error) {
	resp, err := p.doer.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    strings.TrimSuffix(p.cfg.APIEndpoint, "/") + "/projects",
		Header: map[string]string{"Authorization": "Bearer " + string(tok)},
	})
	if err != nil {
		return false, fmt.Errorf("validate cached token: %w", err)
	}
	switch {
	case resp.IsSuccess():
		return true, nil
	case resp.StatusCode >= 300 && resp.StatusCode < 500:
		return false, nil
	default:
		return false, errs.Newf(errs.CodeTransport, "validate cached token: status %d", resp.StatusCode)
	}
}

// grant requests a fresh token. Any status is accepted; only a missing
// access_token is a failure.
func (p *Provider) grant(ctx context.Context, g grant) (Token, error) {
	p.logger.InfoContext(ctx, "requesting new token", "flow", g.name())

	resp, err := p.doer.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    TokenEndpoint(p.cfg.TenantURL),
		Header: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:   []byte(g.form(p.cfg.Audience).Encode()),
	})
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}

	tok := gjson.GetBytes(resp.Body, "access_token").String()
	if tok == "" {
		msg := fmt.Sprintf("token endpoint returned no access_token (status %d)", resp.StatusCode)
		if desc := gjson.GetBytes(resp.Body, "error_description").String(); desc != "" {
			msg += ": " + desc
		}
		return "", errs.New(errs.CodeUnauthorized, msg)
	}
	return Token(tok), nil
}

// TokenEndpoint derives the grant URL from the tenant URL.
func TokenEndpoint(tenantURL string) string {
	return strings.TrimSuffix(tenantURL, "/") + "/oauth/token"
}
