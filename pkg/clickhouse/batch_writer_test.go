package clickhouse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flushRecorder captures flushed batches for assertions.
type flushRecorder struct {
	mu      sync.Mutex
	batches [][]interface{}
	fail    bool
}

func (r *flushRecorder) flush(ctx context.Context, batch []interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return assert.AnError
	}
	r.batches = append(r.batches, batch)
	return nil
}

func (r *flushRecorder) totalRows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func (r *flushRecorder) batchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func newTestWriter(rec *flushRecorder, maxBatch int, maxAge time.Duration) *BatchWriter {
	return NewBatchWriter(BatchWriterConfig{
		FlushFunc:    rec.flush,
		TableName:    "engagement_samples",
		MaxBatchSize: maxBatch,
		MaxAge:       maxAge,
	})
}

func TestBatchWriter_FlushesWhenFull(t *testing.T) {
	rec := &flushRecorder{}
	bw := newTestWriter(rec, 3, 10*time.Second)

	ctx := context.Background()
	require.NoError(t, bw.Add(ctx, "sample1"))
	require.NoError(t, bw.Add(ctx, "sample2"))
	assert.Equal(t, 0, rec.batchCount(), "below max size, nothing flushed")

	require.NoError(t, bw.Add(ctx, "sample3"))

	require.Equal(t, 1, rec.batchCount())
	assert.Equal(t, 3, rec.totalRows())
	assert.Equal(t, 0, bw.BufferSize())

	stats := bw.GetStats()
	assert.Equal(t, int64(1), stats.Flushes)
	assert.Equal(t, int64(3), stats.RowsWritten)
}

func TestBatchWriter_FlushesOnAge(t *testing.T) {
	rec := &flushRecorder{}
	bw := newTestWriter(rec, 100, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)

	require.NoError(t, bw.Add(ctx, "sample1"))
	require.NoError(t, bw.Add(ctx, "sample2"))

	time.Sleep(150 * time.Millisecond)

	assert.GreaterOrEqual(t, rec.batchCount(), 1)
	assert.Equal(t, 2, rec.totalRows())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bw.Stop(stopCtx))
}

func TestBatchWriter_StopFlushesRemainder(t *testing.T) {
	rec := &flushRecorder{}
	bw := newTestWriter(rec, 100, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)

	for _, row := range []string{"sample1", "sample2", "sample3"} {
		require.NoError(t, bw.Add(ctx, row))
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bw.Stop(stopCtx))

	assert.Equal(t, 3, rec.totalRows())
	assert.False(t, bw.GetStats().Running)
}

func TestBatchWriter_FlushErrorKeepsCounting(t *testing.T) {
	rec := &flushRecorder{fail: true}
	bw := newTestWriter(rec, 2, 10*time.Second)

	ctx := context.Background()
	require.NoError(t, bw.Add(ctx, "sample1"))
	require.Error(t, bw.Add(ctx, "sample2"))

	stats := bw.GetStats()
	assert.Equal(t, int64(1), stats.Flushes)
	assert.Equal(t, int64(1), stats.FlushErrors)
	assert.Equal(t, int64(0), stats.RowsWritten)

	// Failed rows are not re-queued; the next batch starts clean
	assert.Equal(t, 0, bw.BufferSize())
}

func TestBatchWriter_ConcurrentAdds(t *testing.T) {
	rec := &flushRecorder{}
	bw := newTestWriter(rec, 10, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(row int) {
			defer wg.Done()
			_ = bw.Add(ctx, row)
		}(i)
	}
	wg.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bw.Stop(stopCtx))

	assert.Equal(t, 50, rec.totalRows())
}
