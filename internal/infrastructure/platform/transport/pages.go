package transport

import (
	"context"
	"fmt"
	"iter"

	"store-sync-engine/internal/domain"
)

// FetchPage fetches page number page (1-based) and reports whether another page follows
type FetchPage[T any] func(ctx context.Context, page int) (items []T, more bool, err error)

// Pages turns a page fetcher into a lazy sequence. Pages are fetched one at a time,
// only when the consumer asks for the next one. The sequence ends after the fetcher
// reports no further page, on the first error, or with a page_limit error once
// maxPages pages have been read and the remote still claims more.
func Pages[T any](ctx context.Context, op string, maxPages int, fetch FetchPage[T]) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		for page := 1; ; page++ {
			if page > maxPages {
				yield(nil, domain.NewPlatformError(domain.KindPageLimit, op, 0,
					fmt.Sprintf("stopped after %d pages", maxPages)))
				return
			}
			if ctx.Err() != nil {
				yield(nil, domain.NewPlatformError(domain.KindCancelled, op, 0, "cancelled"))
				return
			}

			items, more, err := fetch(ctx, page)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(items, nil) {
				return
			}
			if !more {
				return
			}
		}
	}
}
