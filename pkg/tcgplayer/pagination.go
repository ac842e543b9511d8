package tcgplayer

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

// PageLister fetches one page of a paginated listing. Client implements it
// through NewPageLister; tests can substitute their own.
type PageLister[T any] interface {
	ListPage(ctx context.Context, path string, params *QueryParams) (*Page[T], error)
}

// NewPageLister adapts a Client into a PageLister for result type T.
func NewPageLister[T any](client Client) PageLister[T] {
	return &clientPager[T]{client: client}
}

type clientPager[T any] struct {
	client Client
}

func (p *clientPager[T]) ListPage(ctx context.Context, path string, params *QueryParams) (*Page[T], error) {
	resp, err := p.client.Get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	envelope, err := resp.DecodeEnvelope()
	if err != nil {
		return nil, err
	}

	results, err := DecodeResults[T](envelope)
	if err != nil {
		return nil, err
	}

	page := &Page[T]{
		Results:    results,
		TotalItems: envelope.TotalItems,
	}
	if params != nil {
		page.Offset = params.Offset
		page.Limit = params.Limit
	}

	return page, nil
}

// PaginationOptions controls bulk page fetching.
type PaginationOptions struct {
	// PageSize is the number of items requested per page. Values above the
	// API maximum of 100 are reduced; zero uses the API default.
	PageSize int
	// MaxPages caps how many pages are fetched. Zero means no explicit cap
	// beyond the built-in runaway guard.
	MaxPages int
}

// DefaultPaginationOptions returns options using the API's maximum page size.
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{
		PageSize: constants.MaxPageLimit,
	}
}

// PaginationIterator walks a paginated listing item by item, fetching pages
// lazily as needed. It is not safe for concurrent use.
type PaginationIterator[T any] struct {
	ctx    context.Context
	client PageLister[T]
	path   string
	params QueryParams

	buffer   []T
	index    int
	offset   int
	consumed int
	total    int
	done     bool
}

// NewPaginationIterator creates an iterator over the listing at path.
// Params may be nil; its Offset seeds the starting position.
func NewPaginationIterator[T any](ctx context.Context, client PageLister[T], path string, params *QueryParams) *PaginationIterator[T] {
	it := &PaginationIterator[T]{
		ctx:    ctx,
		client: client,
		path:   path,
		total:  -1,
	}

	if params != nil {
		it.params = *params
		it.offset = params.Offset
	}

	if it.params.Limit <= 0 {
		it.params.Limit = constants.DefaultPageLimit
	}

	if it.params.Limit > constants.MaxPageLimit {
		it.params.Limit = constants.MaxPageLimit
	}

	return it
}

// HasNext reports whether another item is available. It never fetches; an
// optimistic true before the first fetch is resolved by Next.
func (it *PaginationIterator[T]) HasNext() bool {
	if it.index < len(it.buffer) {
		return true
	}

	if it.done {
		return false
	}

	if it.total < 0 {
		return true
	}

	return it.consumed < it.total
}

// Next returns the next item, fetching the next page when the current one is
// exhausted. It returns ErrNoMoreItems past the end of the listing.
func (it *PaginationIterator[T]) Next() (T, error) {
	var zero T

	if it.index >= len(it.buffer) {
		if err := it.fetchPage(); err != nil {
			return zero, err
		}
	}

	if it.index >= len(it.buffer) {
		return zero, ErrNoMoreItems
	}

	item := it.buffer[it.index]
	it.index++
	it.consumed++

	return item, nil
}

func (it *PaginationIterator[T]) fetchPage() error {
	if it.done {
		return nil
	}

	if err := it.ctx.Err(); err != nil {
		return fmt.Errorf("pagination aborted: %w", err)
	}

	params := it.params
	params.Offset = it.offset

	page, err := it.client.ListPage(it.ctx, it.path, &params)
	if err != nil {
		return err
	}

	it.buffer = page.Results
	it.index = 0
	it.offset += len(page.Results)
	it.total = page.TotalItems

	if len(page.Results) == 0 || (it.total >= 0 && it.offset >= it.total) {
		it.done = true
	}

	return nil
}

// All fetches every remaining item into a slice.
func (it *PaginationIterator[T]) All() ([]T, error) {
	var items []T

	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				break
			}

			return nil, err
		}

		items = append(items, item)
	}

	return items, nil
}

// ForEach applies fn to every remaining item. Returning an error from fn
// stops the iteration and propagates the error.
func (it *PaginationIterator[T]) ForEach(fn func(item T) error) error {
	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				return nil
			}

			return err
		}

		if err := fn(item); err != nil {
			return err
		}
	}

	return nil
}

// FetchAllPages collects every item of a listing into a single slice.
// Options may be nil.
func FetchAllPages[T any](ctx context.Context, client PageLister[T], path string, params *QueryParams, options *PaginationOptions) ([]T, error) {
	maxPages := constants.MaxPages

	pageParams := QueryParams{}
	if params != nil {
		pageParams = *params
	}

	if options != nil {
		if options.PageSize > 0 {
			pageParams.Limit = options.PageSize
		}

		if options.MaxPages > 0 {
			maxPages = options.MaxPages
		}
	}

	if pageParams.Limit <= 0 {
		pageParams.Limit = constants.DefaultPageLimit
	}

	if pageParams.Limit > constants.MaxPageLimit {
		pageParams.Limit = constants.MaxPageLimit
	}

	var items []T

	for fetched := 0; fetched < maxPages; fetched++ {
		if err := ctx.Err(); err != nil {
			return items, fmt.Errorf("pagination aborted: %w", err)
		}

		page, err := client.ListPage(ctx, path, &pageParams)
		if err != nil {
			return items, err
		}

		items = append(items, page.Results...)

		pageParams.Offset += len(page.Results)
		if len(page.Results) == 0 || (page.TotalItems > 0 && pageParams.Offset >= page.TotalItems) {
			break
		}
	}

	return items, nil
}

// PageResult is one page delivered by StreamPages.
type PageResult[T any] struct {
	Items []T
	Err   error
}

// StreamPages fetches pages in the background and delivers them on the
// returned channel. The channel is closed after the last page or the first
// error; a canceled context also ends the stream.
func StreamPages[T any](ctx context.Context, client PageLister[T], path string, params *QueryParams, options *PaginationOptions) <-chan PageResult[T] {
	out := make(chan PageResult[T])

	maxPages := constants.MaxPages

	pageParams := QueryParams{}
	if params != nil {
		pageParams = *params
	}

	if options != nil {
		if options.PageSize > 0 {
			pageParams.Limit = options.PageSize
		}

		if options.MaxPages > 0 {
			maxPages = options.MaxPages
		}
	}

	if pageParams.Limit <= 0 {
		pageParams.Limit = constants.DefaultPageLimit
	}

	if pageParams.Limit > constants.MaxPageLimit {
		pageParams.Limit = constants.MaxPageLimit
	}

	go func() {
		defer close(out)

		for fetched := 0; fetched < maxPages; fetched++ {
			page, err := client.ListPage(ctx, path, &pageParams)
			if err != nil {
				select {
				case out <- PageResult[T]{Err: err}:
				case <-ctx.Done():
				}

				return
			}

			select {
			case out <- PageResult[T]{Items: page.Results}:
			case <-ctx.Done():
				return
			}

			pageParams.Offset += len(page.Results)
			if len(page.Results) == 0 || (page.TotalItems > 0 && pageParams.Offset >= page.TotalItems) {
				return
			}
		}
	}()

	return out
}
