package clickhouse

import (
	"context"
	"sync"
	"time"

	"resonance/pkg/logger"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// FlushFunc persists one batch, typically via PrepareBatch/Append/Send on
// the connection the writer was configured with.
type FlushFunc func(ctx context.Context, batch []interface{}) error

// BatchWriterConfig configures a BatchWriter.
type BatchWriterConfig struct {
	Conn         driver.Conn
	FlushFunc    FlushFunc
	TableName    string        // logging only
	MaxBatchSize int           // default 500
	MaxAge       time.Duration // default 5s
}

// BatchWriter buffers rows and writes them to ClickHouse in batches, on
// whichever comes first: the buffer filling up or the oldest row reaching
// MaxAge. Single-row inserts are pathological for ClickHouse; every hot
// write path (sample archive, stats snapshots) goes through one of these.
type BatchWriter struct {
	conn  driver.Conn
	flush FlushFunc
	table string
	log   *logger.Logger

	maxBatch int
	maxAge   time.Duration

	mu        sync.Mutex
	buf       []interface{}
	lastFlush time.Time
	running   bool

	// lifetime counters, reported via GetStats
	flushes     int64
	flushErrors int64
	rowsWritten int64

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewBatchWriter creates a writer; Start launches the age-based flusher.
func NewBatchWriter(cfg BatchWriterConfig) *BatchWriter {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Second
	}

	return &BatchWriter{
		conn:      cfg.Conn,
		flush:     cfg.FlushFunc,
		table:     cfg.TableName,
		maxBatch:  cfg.MaxBatchSize,
		maxAge:    cfg.MaxAge,
		buf:       make([]interface{}, 0, cfg.MaxBatchSize),
		lastFlush: time.Now(),
		stop:      make(chan struct{}),
		log:       logger.Get().With("component", "batch_writer", "table", cfg.TableName),
	}
}

// Start launches the background age flusher. Idempotent.
func (bw *BatchWriter) Start(ctx context.Context) {
	bw.mu.Lock()
	if bw.running {
		bw.mu.Unlock()
		return
	}
	bw.running = true
	bw.mu.Unlock()

	bw.wg.Add(1)
	go bw.ageLoop(ctx)

	bw.log.Infof("Batch writer started (max_batch=%d, max_age=%v)", bw.maxBatch, bw.maxAge)
}

// Add buffers one row, flushing synchronously when the buffer fills.
func (bw *BatchWriter) Add(ctx context.Context, row interface{}) error {
	bw.mu.Lock()
	bw.buf = append(bw.buf, row)
	full := len(bw.buf) >= bw.maxBatch
	bw.mu.Unlock()

	if full {
		return bw.Flush(ctx)
	}
	return nil
}

// takeBatch swaps the buffer out under the lock so the actual write never
// blocks concurrent Adds.
func (bw *BatchWriter) takeBatch() []interface{} {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if len(bw.buf) == 0 {
		return nil
	}
	batch := bw.buf
	bw.buf = make([]interface{}, 0, bw.maxBatch)
	bw.lastFlush = time.Now()
	return batch
}

// Flush writes everything currently buffered.
func (bw *BatchWriter) Flush(ctx context.Context) error {
	batch := bw.takeBatch()
	if batch == nil {
		return nil
	}

	start := time.Now()
	err := bw.flush(ctx, batch)
	elapsed := time.Since(start)

	bw.mu.Lock()
	bw.flushes++
	if err != nil {
		bw.flushErrors++
	} else {
		bw.rowsWritten += int64(len(batch))
	}
	bw.mu.Unlock()

	if err != nil {
		bw.log.Errorf("Flush of %d rows failed after %v: %v", len(batch), elapsed, err)
		return err
	}

	bw.log.Debugf("Flushed %d rows in %v", len(batch), elapsed)
	return nil
}

func (bw *BatchWriter) ageLoop(ctx context.Context) {
	defer bw.wg.Done()

	ticker := time.NewTicker(bw.maxAge)
	defer ticker.Stop()

	final := func() {
		// Detached context: the final flush must not be lost to whatever
		// cancelled us
		if err := bw.Flush(context.Background()); err != nil {
			bw.log.Errorf("Final flush failed: %v", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			final()
			return
		case <-bw.stop:
			final()
			return
		case <-ticker.C:
			if err := bw.Flush(ctx); err != nil {
				bw.log.Errorf("Periodic flush failed: %v", err)
			}
		}
	}
}

// Stop flushes the remainder and waits for the age loop to exit, bounded
// by ctx.
func (bw *BatchWriter) Stop(ctx context.Context) error {
	bw.mu.Lock()
	if !bw.running {
		bw.mu.Unlock()
		return nil
	}
	bw.running = false
	bw.mu.Unlock()

	close(bw.stop)

	done := make(chan struct{})
	go func() {
		bw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		bw.log.Info("Batch writer stopped")
		return nil
	case <-ctx.Done():
		bw.log.Warn("Batch writer stop timed out")
		return ctx.Err()
	}
}

// BufferSize returns the number of rows waiting to be flushed.
func (bw *BatchWriter) BufferSize() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buf)
}

// BatchWriterStats is a monitoring snapshot.
type BatchWriterStats struct {
	BufferSize   int
	LastFlushAge time.Duration
	MaxBatchSize int
	MaxAge       time.Duration
	Running      bool
	Flushes      int64
	FlushErrors  int64
	RowsWritten  int64
}

// GetStats snapshots the writer state.
func (bw *BatchWriter) GetStats() BatchWriterStats {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	return BatchWriterStats{
		BufferSize:   len(bw.buf),
		LastFlushAge: time.Since(bw.lastFlush),
		MaxBatchSize: bw.maxBatch,
		MaxAge:       bw.maxAge,
		Running:      bw.running,
		Flushes:      bw.flushes,
		FlushErrors:  bw.flushErrors,
		RowsWritten:  bw.rowsWritten,
	}
}
