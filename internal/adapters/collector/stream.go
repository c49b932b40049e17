package collector

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"resonance/internal/adapters/config"
	"resonance/internal/domain/engagement"
	"resonance/internal/metrics"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
	"resonance/pkg/reconnect"
)

const (
	streamReadLimit      = 1 << 20
	streamPingInterval   = 30 * time.Second
	streamWriteTimeout   = 5 * time.Second
	streamHandshakeLimit = 10 * time.Second
)

// SampleIngester receives samples pulled off the stream. Invalid samples are
// the ingester's problem; the feed only decodes and forwards.
type SampleIngester interface {
	Ingest(sample engagement.MetricSample) error
}

// StreamFeed consumes the collector's live sample stream over WebSocket.
// Connection loss is handled by the reconnect manager: exponential backoff,
// a circuit breaker on repeated failures, and a heartbeat that forces a
// reconnect when the stream goes quiet.
type StreamFeed struct {
	url      string
	apiToken string
	ingester SampleIngester
	manager  *reconnect.Manager
	log      *logger.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStreamFeed creates a stream feed client. Returns an error when no
// stream URL is configured; deployments without streaming use the poll
// worker instead.
func NewStreamFeed(cfg config.CollectorConfig, ingester SampleIngester, log *logger.Logger) (*StreamFeed, error) {
	if cfg.StreamURL == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "collector stream URL is required")
	}
	if ingester == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "sample ingester is required")
	}

	manager := reconnect.NewManager(reconnect.Config{
		MinBackoff:       time.Second,
		MaxBackoff:       time.Minute,
		HeartbeatTimeout: 2 * time.Minute,
	}, log)

	return &StreamFeed{
		url:      cfg.StreamURL,
		apiToken: cfg.APIToken,
		ingester: ingester,
		manager:  manager,
		log:      log.With("component", "collector_stream"),
	}, nil
}

// Start connects and consumes the stream until the context is cancelled.
// Runs the read loop on the caller's goroutine; callers wanting a background
// feed start it themselves.
func (f *StreamFeed) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := f.connect(ctx); err != nil {
			f.manager.RecordFailure()
			metrics.FeedReconnects.WithLabelValues("stream", "failed").Inc()

			if !f.manager.ShouldRetry() {
				return errors.Wrap(errors.ErrFeedMaxReconnectAttempts, "collector stream gave up")
			}

			select {
			case <-time.After(f.manager.GetBackoff()):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		f.manager.RecordSuccess()
		metrics.FeedReconnects.WithLabelValues("stream", "success").Inc()
		metrics.FeedConnections.WithLabelValues("stream").Set(1)

		err := f.readLoop(ctx)
		metrics.FeedConnections.WithLabelValues("stream").Set(0)
		f.closeConn()

		if ctx.Err() != nil {
			return nil
		}

		f.log.Warnw("Collector stream disconnected, reconnecting", "error", err)
	}
}

// Stop cancels the read loop and closes the connection.
func (f *StreamFeed) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.closeConn()
	f.wg.Wait()
}

// Stats exposes the reconnect manager's view of the connection.
func (f *StreamFeed) Stats() reconnect.Stats {
	return f.manager.GetStats()
}

func (f *StreamFeed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: streamHandshakeLimit}

	var header map[string][]string
	if f.apiToken != "" {
		header = map[string][]string{"Authorization": {"Bearer " + f.apiToken}}
	}

	conn, _, err := dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return errors.Wrapf(errors.ErrFeedNotConnected, "dial collector stream: %v", err)
	}
	conn.SetReadLimit(streamReadLimit)

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	f.log.Infow("Collector stream connected", "url", f.url)
	return nil
}

func (f *StreamFeed) readLoop(ctx context.Context) error {
	f.wg.Add(1)
	go f.pingLoop(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()
		if conn == nil {
			return errors.ErrFeedNotConnected
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read collector stream")
		}

		f.manager.RecordMessageReceived()

		var sample engagement.MetricSample
		if err := json.Unmarshal(data, &sample); err != nil {
			f.log.Warnw("Dropping undecodable stream message", "error", err)
			metrics.RecordSample("stream", errors.ErrInvalidSample)
			continue
		}

		if err := f.ingester.Ingest(sample); err != nil {
			// Invalid samples are logged and dropped; the stream stays up.
			f.log.Debugw("Sample rejected by aggregator",
				"topic_id", sample.TopicID,
				"error", err)
		}
		metrics.RecordSample("stream", nil)
	}
}

func (f *StreamFeed) pingLoop(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			conn := f.conn
			f.mu.Unlock()
			if conn == nil {
				return
			}
			deadline := time.Now().Add(streamWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				f.log.Debugw("Stream ping failed", "error", err)
				return
			}
		}
	}
}

func (f *StreamFeed) closeConn() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
}
