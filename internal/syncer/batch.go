package syncer

import (
	"context"

	"worksync/internal/catalog"
)

// batchingSource re-slices an upstream record stream into batches of a
// fixed size, so checkpoint granularity is independent of the catalog
// page size. Records already fetched when the upstream errors are
// emitted before the error surfaces.
type batchingSource struct {
	src  RecordSource
	size int

	buf  []catalog.Record
	err  error
	done bool
}

func newBatchingSource(src RecordSource, size int) *batchingSource {
	if size <= 0 {
		size = 200
	}
	return &batchingSource{src: src, size: size}
}

func (b *batchingSource) Next(ctx context.Context) ([]catalog.Record, error) {
	for b.err == nil && !b.done && len(b.buf) < b.size {
		records, err := b.src.Next(ctx)
		if err != nil {
			b.err = err
			break
		}
		if len(records) == 0 {
			b.done = true
			break
		}
		b.buf = append(b.buf, records...)
	}

	if len(b.buf) > 0 {
		n := b.size
		if len(b.buf) < n {
			n = len(b.buf)
		}
		out := b.buf[:n]
		b.buf = b.buf[n:]
		return out, nil
	}
	if b.err != nil {
		return nil, b.err
	}
	return nil, nil
}
