package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "resonance/internal/adapters/clickhouse"
	"resonance/internal/adapters/kafka"
	pgclient "resonance/internal/adapters/postgres"
	redisclient "resonance/internal/adapters/redis"
	"resonance/internal/api"
	"resonance/internal/workers"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

const (
	shutdownBudget       = 150 * time.Second
	httpDrainTimeout     = 5 * time.Second
	goroutineWaitTimeout = 5 * time.Second
	archiveFlushTimeout  = 10 * time.Second
	trackerFlushTimeout  = 3 * time.Second
)

// Lifecycle coordinates graceful shutdown.
type Lifecycle struct {
	shutdownTimeout time.Duration
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{shutdownTimeout: shutdownBudget}
}

// Shutdown tears components down in dependency order:
// HTTP stops accepting requests first; workers finish their cycle;
// Kafka consumers close to unblock ReadMessage before goroutines are
// awaited; the sample archive flushes its tail; the producer closes
// after everything that publishes; tracker and logs flush; databases
// close last because the archive flush still needs ClickHouse.
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	httpServer *api.Server,
	workerScheduler *workers.Scheduler,
	sampleArchive *SampleArchive,
	kafkaProducer *kafka.Producer,
	kafkaConsumers map[string]*kafka.Consumer,
	pgClient *pgclient.Client,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	ctx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer cancel()

	steps := []struct {
		name string
		run  func() error
	}{
		{"Stopping HTTP server", func() error {
			httpCtx, httpCancel := context.WithTimeout(ctx, httpDrainTimeout)
			defer httpCancel()
			return httpServer.Shutdown(httpCtx)
		}},
		{"Stopping background workers", workerScheduler.Stop},
		{"Closing Kafka consumers", func() error {
			var merr errors.MultiError
			for name, consumer := range kafkaConsumers {
				if consumer == nil {
					continue
				}
				if err := consumer.Close(); err != nil {
					merr.Add(errors.Wrap(err, name))
				}
			}
			return merr.ToError()
		}},
		{"Waiting for goroutines", func() error {
			return waitWithTimeout(wg, goroutineWaitTimeout)
		}},
		{"Flushing sample archive", func() error {
			if sampleArchive == nil {
				return nil
			}
			archiveCtx, archiveCancel := context.WithTimeout(ctx, archiveFlushTimeout)
			defer archiveCancel()
			return sampleArchive.Stop(archiveCtx)
		}},
		{"Closing Kafka producer", func() error {
			if kafkaProducer == nil {
				return nil
			}
			return kafkaProducer.Close()
		}},
		{"Flushing error tracker", func() error {
			if errorTracker == nil {
				return nil
			}
			flushCtx, flushCancel := context.WithTimeout(ctx, trackerFlushTimeout)
			defer flushCancel()
			return errorTracker.Flush(flushCtx)
		}},
		{"Syncing logs", logger.Sync},
		{"Closing database connections", func() error {
			return closeStores(pgClient, chClient, redisClient)
		}},
	}

	total := len(steps)
	for i, step := range steps {
		log.Infof("[%d/%d] %s...", i+1, total, step.name)
		if err := step.run(); err != nil {
			log.Error(step.name+" failed", "error", err)
			continue
		}
		log.Info("✓ " + step.name)
	}

	log.Info("✅ Graceful shutdown complete")
}

func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.Wrapf(errors.ErrTimeout, "goroutines still running after %s", timeout)
	}
}

func closeStores(pgClient *pgclient.Client, chClient *chclient.Client, redisClient *redisclient.Client) error {
	var merr errors.MultiError

	if pgClient != nil {
		if err := pgClient.Close(); err != nil {
			merr.Add(errors.Wrap(err, "postgres"))
		}
	}
	if chClient != nil {
		if err := chClient.Close(); err != nil {
			merr.Add(errors.Wrap(err, "clickhouse"))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			merr.Add(errors.Wrap(err, "redis"))
		}
	}

	return merr.ToError()
}
