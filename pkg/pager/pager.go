// Package pager walks cursor-paginated list endpoints.
//
// A Pager starts with an empty cursor and keeps asking for the next page until
// a page comes back without a continuation cursor. A hard page cap protects
// against endpoints that never stop.
package pager

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// DefaultMaxPages bounds iteration when no WithMaxPages option is given.
const DefaultMaxPages = 1000

// ErrExhausted is returned when the page cap is exceeded or an endpoint hands
// back a cursor that was already requested.
var ErrExhausted = errors.New("pagination exhausted")

// Page is one page of results. An empty Next marks the final page.
type Page[T any] struct {
	Items []T
	Next  string
}

// FetchFunc fetches the page identified by cursor ("" for the first page).
type FetchFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

type Option func(*config)

type config struct {
	maxPages int
}

// WithMaxPages caps the number of pages fetched. Values below 1 are ignored.
func WithMaxPages(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// Pager iterates over all items of a paginated listing.
type Pager[T any] struct {
	fetch FetchFunc[T]
	cfg   config
}

func New[T any](fetch FetchFunc[T], opts ...Option) *Pager[T] {
	cfg := config{maxPages: DefaultMaxPages}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Pager[T]{fetch: fetch, cfg: cfg}
}

// All yields every item in API order. Iteration stops at the first error,
// which is yielded with the zero value of T.
func (p *Pager[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		seen := make(map[string]struct{})
		cursor := ""

		for pages := 0; ; pages++ {
			if pages >= p.cfg.maxPages {
				yield(zero, fmt.Errorf("%w: more than %d pages", ErrExhausted, p.cfg.maxPages))
				return
			}
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			page, err := p.fetch(ctx, cursor)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}

			if page.Next == "" {
				return
			}
			seen[cursor] = struct{}{}
			if _, dup := seen[page.Next]; dup {
				yield(zero, fmt.Errorf("%w: cursor %q repeated", ErrExhausted, page.Next))
				return
			}
			cursor = page.Next
		}
	}
}

// Collect flattens all pages into one slice. The result is never nil.
func (p *Pager[T]) Collect(ctx context.Context) ([]T, error) {
	items := make([]T, 0)
	for item, err := range p.All(ctx) {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Collect is shorthand for New(fetch, opts...).Collect(ctx).
func Collect[T any](ctx context.Context, fetch FetchFunc[T], opts ...Option) ([]T, error) {
	return New(fetch, opts...).Collect(ctx)
}
