package repositories

import (
	"context"

	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/query"
)

// Iterator is a lazy, forward-only cursor. It is not restartable: a new
// scan has to be opened to read the same results again.
type Iterator interface {
	Next(ctx context.Context) bool
	Variant() *indexes.Variant
	Err() error
	Close() error
	// Skip advances up to n results without materializing them and
	// returns how many were skipped
	Skip(ctx context.Context, n int) int
}

type Strategy int

const (
	// one bounded server side fetch
	STRATEGY_DIRECT Strategy = iota
	// pages re-issued from the last seen key
	STRATEGY_CHECKPOINTED
)

// ChooseStrategy picks a direct fetch when the requested window fits
// into the server result window, and a checkpointed scan otherwise. A
// checkpointed scan with skip > 0 skips on the client.
func ChooseStrategy(opts query.Options, maxWindow int) Strategy {
	if opts.Limit > 0 && opts.Skip+opts.Limit <= maxWindow {
		return STRATEGY_DIRECT
	}
	return STRATEGY_CHECKPOINTED
}

// DEFAULT_GET_LIMIT bounds Get when no limit is given. Unbounded scans
// go through Iterator.
const DEFAULT_GET_LIMIT = 100

// BoundGet applies DEFAULT_GET_LIMIT to the options of a Get
func BoundGet(opts query.Options) query.Options {
	if opts.Limit <= 0 {
		opts.Limit = DEFAULT_GET_LIMIT
	}
	return opts
}

// PageFunc fetches up to size variants with key greater than after (or
// from the start when after is empty), in key order. With keysOnly, only
// Variant.Id needs to be set.
type PageFunc func(ctx context.Context, after string, size int, keysOnly bool) ([]*indexes.Variant, error)

// CheckpointIterator re-issues the scan page by page from the last key
// it has seen, so that no server cursor has to be kept alive between
// pages.
type CheckpointIterator struct {
	fetch     PageFunc
	batchSize int
	limit     int

	after   string
	buffer  []*indexes.Variant
	current *indexes.Variant
	emitted int
	done    bool
	closed  bool
	err     error
}

func NewCheckpointIterator(fetch PageFunc, batchSize int, limit int) *CheckpointIterator {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &CheckpointIterator{fetch: fetch, batchSize: batchSize, limit: limit}
}

func (it *CheckpointIterator) Next(ctx context.Context) bool {
	if it.closed || it.err != nil {
		return false
	}
	if it.limit > 0 && it.emitted >= it.limit {
		return false
	}
	if len(it.buffer) == 0 {
		if it.done {
			return false
		}
		if !it.fill(ctx) {
			return false
		}
	}

	it.current, it.buffer = it.buffer[0], it.buffer[1:]
	it.emitted++
	return true
}

func (it *CheckpointIterator) fill(ctx context.Context) bool {
	page, err := it.fetch(ctx, it.after, it.batchSize, false)
	if err != nil {
		it.err = err
		return false
	}
	if len(page) < it.batchSize {
		it.done = true
	}
	if len(page) == 0 {
		return false
	}
	it.after = page[len(page)-1].Id
	it.buffer = page
	return true
}

func (it *CheckpointIterator) Skip(ctx context.Context, n int) int {
	skipped := 0
	for skipped < n && !it.closed && it.err == nil {
		if len(it.buffer) > 0 {
			take := n - skipped
			if take > len(it.buffer) {
				take = len(it.buffer)
			}
			it.buffer = it.buffer[take:]
			skipped += take
			continue
		}
		if it.done {
			break
		}

		size := n - skipped
		if size > it.batchSize {
			size = it.batchSize
		}
		page, err := it.fetch(ctx, it.after, size, true)
		if err != nil {
			it.err = err
			break
		}
		if len(page) < size {
			it.done = true
		}
		if len(page) == 0 {
			break
		}
		it.after = page[len(page)-1].Id
		skipped += len(page)
	}
	return skipped
}

func (it *CheckpointIterator) Variant() *indexes.Variant {
	return it.current
}

func (it *CheckpointIterator) Err() error {
	return it.err
}

func (it *CheckpointIterator) Close() error {
	it.closed = true
	it.buffer = nil
	return nil
}

// SliceIterator serves an already fetched, bounded result
type SliceIterator struct {
	variants []*indexes.Variant
	current  *indexes.Variant
	err      error
}

func NewSliceIterator(variants []*indexes.Variant, err error) *SliceIterator {
	return &SliceIterator{variants: variants, err: err}
}

func (it *SliceIterator) Next(ctx context.Context) bool {
	if it.err != nil || len(it.variants) == 0 {
		return false
	}
	it.current, it.variants = it.variants[0], it.variants[1:]
	return true
}

func (it *SliceIterator) Skip(ctx context.Context, n int) int {
	if n > len(it.variants) {
		n = len(it.variants)
	}
	it.variants = it.variants[n:]
	return n
}

func (it *SliceIterator) Variant() *indexes.Variant { return it.current }
func (it *SliceIterator) Err() error                { return it.err }
func (it *SliceIterator) Close() error {
	it.variants = nil
	return nil
}

// Collect drains an iterator. It always closes it.
func Collect(ctx context.Context, it Iterator) ([]*indexes.Variant, error) {
	defer it.Close()

	out := []*indexes.Variant{}
	for it.Next(ctx) {
		out = append(out, it.Variant())
	}
	return out, it.Err()
}
