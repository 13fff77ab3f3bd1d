package resolve

import (
	"context"
	"fmt"

	"github.com/resim-ai/launch/internal/errs"
	"github.com/resim-ai/launch/pkg/models"
)

// DefaultPageSize is the page size used for every full listing.
const DefaultPageSize = 100

// Page is one page of a listing.
type Page[T any] struct {
	Items         []T
	NextPageToken string
}

// Lister fetches the page that starts at pageToken; "" is the first page.
type Lister[T any] func(ctx context.Context, pageToken string) (Page[T], error)

// ListAll follows page tokens until one comes back empty and returns every
// item in listing order.
func ListAll[T any](ctx context.Context, list Lister[T]) ([]T, error) {
	var all []T
	token := ""
	for {
		page, err := list(ctx, token)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if page.NextPageToken == "" {
			return all, nil
		}
		if page.NextPageToken == token {
			return nil, errs.Newf(errs.CodeTransport, "pagination stalled on page token %q", token)
		}
		token = page.NextPageToken
	}
}

// FindByName returns the first item whose name equals name exactly.
func FindByName[T models.Named](items []T, name string) (T, bool) {
	for _, item := range items {
		if item.GetName() == name {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// findAll lists everything and looks name up, failing with a not-found
// error naming kind.
func findAll[T models.Named](ctx context.Context, kind, name string, list Lister[T]) (T, error) {
	var zero T
	items, err := ListAll(ctx, list)
	if err != nil {
		return zero, fmt.Errorf("list %ss: %w", kind, err)
	}
	item, ok := FindByName(items, name)
	if !ok {
		return zero, errs.NotFound("could not find %s %s", kind, name)
	}
	return item, nil
}
