package window

import (
	"context"
	"runtime"
)

// DefaultBatchSize is the number of rows materialized per turn.
const DefaultBatchSize = 100

// Batches calls fn for consecutive chunks of items, yielding the processor
// and checking ctx between chunks.
func Batches[T any](ctx context.Context, items []T, size int, fn func([]T) error) error {
	if size <= 0 {
		size = DefaultBatchSize
	}
	for lo := 0; lo < len(items); lo += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := min(lo+size, len(items))
		if err := fn(items[lo:hi]); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}
