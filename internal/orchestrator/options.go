package orchestrator

import (
	"log/slog"

	"github.com/resim-ai/launch/internal/ci"
	"github.com/resim-ai/launch/internal/config"
	"github.com/resim-ai/launch/internal/transport"
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Config is the loaded configuration.
	Config *config.Config
	// Event is the CI context of this run.
	Event *ci.Event
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration. Anything left nil is
// built from Config when the pipeline reaches it.
type orchestratorOptions struct {
	logger   *slog.Logger
	progress func(step, detail string)

	// Injectable dependencies for testing
	doer     transport.Doer
	tokens   TokenSource
	newAPI   APIFactory
	secrets  config.SecretResolver
	notifier ci.Notifier
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithProgress sets a callback invoked as each pipeline step completes.
func WithProgress(fn func(step, detail string)) Option {
	return func(o *orchestratorOptions) { o.progress = fn }
}

// WithDoer sets the HTTP transport shared by every outbound call.
func WithDoer(d transport.Doer) Option {
	return func(o *orchestratorOptions) { o.doer = d }
}

// WithTokenSource sets a custom token source (mainly for testing).
func WithTokenSource(t TokenSource) Option {
	return func(o *orchestratorOptions) { o.tokens = t }
}

// WithAPIFactory sets how the ReSim client is built from a token (mainly for testing).
func WithAPIFactory(f APIFactory) Option {
	return func(o *orchestratorOptions) { o.newAPI = f }
}

// WithSecretResolver sets the resolver for secret references in credentials.
func WithSecretResolver(r config.SecretResolver) Option {
	return func(o *orchestratorOptions) { o.secrets = r }
}

// WithNotifier sets the pull request notifier.
func WithNotifier(n ci.Notifier) Option {
	return func(o *orchestratorOptions) { o.notifier = n }
}
