package catalog

import (
	"context"
	"time"
)

// ListFunc fetches one page of a filtered catalog listing.
type ListFunc func(ctx context.Context, params ListParams) (*Page, error)

// Paginator lazily walks a cursor-paginated catalog listing filtered by
// a modified-since bound. It keeps no persisted resume position; a
// fresh paginator always starts from the first cursor.
type Paginator struct {
	fetch   ListFunc
	from    time.Time
	perPage int

	cursor    string
	exhausted bool
}

// NewPaginator creates a paginator over one listing endpoint.
func NewPaginator(fetch ListFunc, from time.Time, perPage int) *Paginator {
	return &Paginator{
		fetch:   fetch,
		from:    from,
		perPage: perPage,
		cursor:  FirstCursor,
	}
}

// Next returns the next page of records. It returns an empty slice
// with a nil error once the upstream listing is exhausted.
func (p *Paginator) Next(ctx context.Context) ([]Record, error) {
	if p.exhausted {
		return nil, nil
	}

	page, err := p.fetch(ctx, ListParams{
		From:    p.from,
		Cursor:  p.cursor,
		PerPage: p.perPage,
	})
	if err != nil {
		return nil, err
	}

	if page.NextCursor == "" {
		p.exhausted = true
	} else {
		p.cursor = page.NextCursor
	}
	if len(page.Records) == 0 {
		p.exhausted = true
	}
	return page.Records, nil
}
