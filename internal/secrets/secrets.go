// Package secrets resolves credential values that point into AWS Secrets
// Manager. A value of the form aws-sm:<secret-id>[#<json.path>] is replaced
// by the secret (or one JSON field of it); anything else passes through.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/tidwall/gjson"

	"github.com/resim-ai/launch/internal/logging"
)

// Prefix marks a value as a Secrets Manager reference.
const Prefix = "aws-sm:"

var (
	// ErrSecretNotFound is returned when the referenced secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrSecretEmpty is returned when the secret, or the selected field, is empty.
	ErrSecretEmpty = errors.New("secret value is empty")
	// ErrAccessDenied is returned when the caller may not read the secret.
	ErrAccessDenied = errors.New("access denied to secret")
	// ErrInvalidReference is returned for a reference with no secret id.
	ErrInvalidReference = errors.New("invalid secret reference")
)

// ManagerAPI is the Secrets Manager call the resolver makes.
type ManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// IsReference reports whether value points into Secrets Manager.
func IsReference(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Resolver fetches referenced secrets, memoising each secret ID.
type Resolver struct {
	api    ManagerAPI
	cache  map[string]string
	logger *slog.Logger
}

// NewResolver wraps an existing client.
func NewResolver(api ManagerAPI, logger *slog.Logger) *Resolver {
	return &Resolver{api: api, cache: make(map[string]string), logger: logging.OrDiscard(logger)}
}

// NewAWSResolver builds a Resolver from the default AWS credential chain.
func NewAWSResolver(ctx context.Context, region string, logger *slog.Logger) (*Resolver, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewResolver(secretsmanager.NewFromConfig(cfg), logger), nil
}

// Resolve returns value unchanged unless it is a reference, in which case it
// returns the secret or the selected JSON field.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}

	id, path, _ := strings.Cut(strings.TrimPrefix(value, Prefix), "#")
	if id == "" {
		return "", fmt.Errorf("resolve secret: empty secret id in %q: %w", value, ErrInvalidReference)
	}

	secret, err := r.get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("resolve secret %s: %w", id, err)
	}
	if path == "" {
		return secret, nil
	}

	field := gjson.Get(secret, path)
	if !field.Exists() || field.String() == "" {
		return "", fmt.Errorf("resolve secret %s field %s: %w", id, path, ErrSecretEmpty)
	}
	return field.String(), nil
}

func (r *Resolver) get(ctx context.Context, id string) (string, error) {
	if v, ok := r.cache[id]; ok {
		return v, nil
	}

	r.logger.DebugContext(ctx, "retrieving secret", "secret_id", id)
	out, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &id})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "ResourceNotFoundException":
				return "", ErrSecretNotFound
			case "AccessDeniedException":
				return "", ErrAccessDenied
			}
			return "", fmt.Errorf("get secret value: %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return "", fmt.Errorf("get secret value: %w", err)
	}

	var v string
	switch {
	case out.SecretString != nil:
		v = *out.SecretString
	case out.SecretBinary != nil:
		v = string(out.SecretBinary)
	}
	if v == "" {
		return "", ErrSecretEmpty
	}

	r.cache[id] = v
	return v, nil
}
