// Package batch resolves identifier sets against the upstream index in bounded chunks.
package batch

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/tokenscope/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultChunkSize bounds the number of identifiers sent in one upstream query.
const DefaultChunkSize = 500

// FetchFunc resolves one chunk of identifiers. Unknown identifiers are simply absent from the result.
type FetchFunc[T any] func(ctx context.Context, ids []string) ([]T, error)

// KeyFunc returns the identifier a fetched row answers for.
type KeyFunc[T any] func(row T) string

// Fetcher runs chunk queries concurrently on a shared worker pool.
type Fetcher struct {
	pool      pond.Pool
	chunkSize int
}

// NewFetcher returns a Fetcher submitting chunks to pool. chunkSize <= 0 selects DefaultChunkSize.
func NewFetcher(pool pond.Pool, chunkSize int) *Fetcher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Fetcher{pool: pool, chunkSize: chunkSize}
}

// ChunkSize returns the maximum identifiers per upstream query.
func (f *Fetcher) ChunkSize() int {
	return f.chunkSize
}

// Pending deduplicates ids, preserving first-seen order, and drops the ones known reports as resolved.
// known may be nil.
func Pending(ids []string, known func(id string) bool) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if known != nil && known(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Chunks splits ids into consecutive slices of at most size elements.
func Chunks(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Fetch resolves the pending subset of ids (see Pending) and returns the rows in identifier order.
// Every chunk is awaited; if any chunk fails the whole call fails and no rows are returned.
// Rows whose key was not requested are discarded, and only the first row per key is kept.
func Fetch[T any](ctx context.Context, f *Fetcher, ids []string, known func(string) bool, key KeyFunc[T], fetch FetchFunc[T]) (rows []T, err error) {
	pending := Pending(ids, known)
	if len(pending) == 0 {
		return []T{}, nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "batch.Fetch")
	defer func() { telemetry.EndSpan(span, err) }()

	chunks := Chunks(pending, f.chunkSize)
	span.SetAttributes(
		attribute.Int("batch.ids", len(pending)),
		attribute.Int("batch.chunks", len(chunks)),
	)

	results := make([][]T, len(chunks))
	group := f.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i, chunk := range chunks {
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			got, err := fetch(groupCtx, chunk)
			if err != nil {
				return fmt.Errorf("fetch chunk %d/%d (%d ids): %w", i+1, len(chunks), len(chunk), err)
			}
			results[i] = got
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	byKey := make(map[string]T, len(pending))
	for _, chunkRows := range results {
		for _, row := range chunkRows {
			k := key(row)
			if _, ok := byKey[k]; !ok {
				byKey[k] = row
			}
		}
	}

	rows = make([]T, 0, len(byKey))
	for _, id := range pending {
		if row, ok := byKey[id]; ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
