package orchestrator

import (
	"context"
	"fmt"

	"github.com/resim-ai/launch/internal/auth"
	"github.com/resim-ai/launch/internal/blobstore"
	"github.com/resim-ai/launch/internal/config"
	"github.com/resim-ai/launch/internal/secrets"
	"github.com/resim-ai/launch/internal/tokencache"
)

// OpenStore opens the durable cache backend cfg selects. The returned close
// func is never nil.
func OpenStore(ctx context.Context, cfg *config.Config) (blobstore.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.CacheBackend {
	case config.CacheSQLite:
		s, err := blobstore.OpenSQLite(cfg.CachePath)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite cache: %w", err)
		}
		return s, s.Close, nil
	case config.CacheS3:
		s, err := blobstore.OpenS3(ctx, cfg.CacheS3Bucket, cfg.CacheS3Prefix,
			blobstore.WithRegion(cfg.AWSRegion),
			blobstore.WithEndpoint(cfg.CacheS3Endpoint),
		)
		if err != nil {
			return nil, noop, fmt.Errorf("open s3 cache: %w", err)
		}
		return s, noop, nil
	case config.CacheNone:
		return blobstore.Nop{}, noop, nil
	default:
		return nil, noop, fmt.Errorf("open cache: unknown backend %q", cfg.CacheBackend)
	}
}

func (o *Orchestrator) tokenSource(ctx context.Context) (TokenSource, error) {
	if o.tokens != nil {
		return o.tokens, nil
	}

	store, closeFn, err := OpenStore(ctx, o.cfg)
	if err != nil {
		return nil, err
	}
	o.closers = append(o.closers, closeFn)

	cache := tokencache.New(store, tokencache.WithLogger(o.logger))
	o.tokens = auth.NewProvider(o.cfg.AuthConfig(), o.cfg.Credentials(), cache, o.doer, auth.WithLogger(o.logger))
	return o.tokens, nil
}

func (o *Orchestrator) resolveSecrets(ctx context.Context) error {
	if !o.cfg.HasSecretReferences(secrets.IsReference) {
		return nil
	}
	r := o.secrets
	if r == nil {
		aws, err := secrets.NewAWSResolver(ctx, o.cfg.AWSRegion, o.logger)
		if err != nil {
			return fmt.Errorf("resolve secrets: %w", err)
		}
		r = aws
	}
	return o.cfg.ResolveSecrets(ctx, r)
}
