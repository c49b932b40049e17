package telegram

import (
	"sync"
	"time"

	"resonance/pkg/logger"
)

const (
	defaultQueueWorkers = 5
	defaultSendDelay    = 50 * time.Millisecond
	queueCapacity       = 1000
)

var (
	ErrQueueFull    = &BotError{Code: "QUEUE_FULL", Message: "Message queue is full"}
	ErrQueueStopped = &BotError{Code: "QUEUE_STOPPED", Message: "Message queue is stopped"}
)

// BotError is an error with a stable code for callers that branch on
// failure kind.
type BotError struct {
	Code    string
	Message string
}

func (e *BotError) Error() string { return e.Message }

// AsyncMessageQueue decouples message submission from delivery. A small
// worker pool drains the queue with a delay between sends so bursts of
// notifications stay under Telegram's rate limits.
type AsyncMessageQueue struct {
	bot       Bot
	queue     chan *queuedMessage
	workers   int
	sendDelay time.Duration
	log       *logger.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

type queuedMessage struct {
	chatID   int64
	text     string
	opts     MessageOptions
	callback func(messageID int, err error)
}

func NewAsyncMessageQueue(bot Bot, workers int, rateLimitDelay time.Duration, log *logger.Logger) *AsyncMessageQueue {
	if workers <= 0 {
		workers = defaultQueueWorkers
	}
	if rateLimitDelay == 0 {
		rateLimitDelay = defaultSendDelay
	}

	return &AsyncMessageQueue{
		bot:       bot,
		queue:     make(chan *queuedMessage, queueCapacity),
		workers:   workers,
		sendDelay: rateLimitDelay,
		log:       log.With("component", "async_message_queue"),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the worker pool. Idempotent while running.
func (q *AsyncMessageQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		q.log.Warnw("Async message queue already running")
		return
	}
	q.running = true

	q.log.Infow("Starting async message queue", "workers", q.workers)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop signals the workers and waits for them to exit.
func (q *AsyncMessageQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	q.log.Infow("Stopping async message queue")
	close(q.stopCh)
	q.wg.Wait()
	q.running = false
	q.log.Infow("Async message queue stopped")
}

// Enqueue submits a message without blocking. A full queue drops the
// message and returns ErrQueueFull rather than stalling the caller.
func (q *AsyncMessageQueue) Enqueue(chatID int64, text string, opts MessageOptions, callback func(messageID int, err error)) error {
	msg := &queuedMessage{chatID: chatID, text: text, opts: opts, callback: callback}

	select {
	case q.queue <- msg:
		return nil
	case <-q.stopCh:
		return ErrQueueStopped
	default:
		q.log.Warnw("Message queue full, message dropped",
			"chat_id", chatID,
			"queue_size", len(q.queue),
		)
		return ErrQueueFull
	}
}

func (q *AsyncMessageQueue) worker(id int) {
	defer q.wg.Done()

	q.log.Debugw("Worker started", "worker_id", id)

	for {
		select {
		case msg := <-q.queue:
			q.deliver(msg, id)
			time.Sleep(q.sendDelay)
		case <-q.stopCh:
			q.log.Debugw("Worker stopping", "worker_id", id)
			return
		}
	}
}

func (q *AsyncMessageQueue) deliver(msg *queuedMessage, workerID int) {
	q.log.Debugw("Processing queued message",
		"worker_id", workerID,
		"chat_id", msg.chatID,
	)

	messageID, err := q.bot.SendMessageWithOptions(msg.chatID, msg.text, msg.opts)
	if err != nil {
		q.log.Errorw("Failed to send queued message",
			"worker_id", workerID,
			"chat_id", msg.chatID,
			"error", err,
		)
	}

	if msg.callback != nil {
		msg.callback(messageID, err)
	}

	if err == nil && msg.opts.SelfDestruct > 0 {
		q.selfDestruct(msg.chatID, messageID, msg.opts.SelfDestruct)
	}
}

func (q *AsyncMessageQueue) selfDestruct(chatID int64, messageID int, after time.Duration) {
	go func() {
		time.Sleep(after)
		q.log.Debugw("Self-destructing message",
			"chat_id", chatID,
			"message_id", messageID,
			"duration", after,
		)
		if err := q.bot.DeleteMessage(chatID, messageID); err != nil {
			q.log.Errorw("Failed to self-destruct message",
				"chat_id", chatID,
				"message_id", messageID,
				"error", err,
			)
		}
	}()
}

// GetQueueSize reports the number of pending messages.
func (q *AsyncMessageQueue) GetQueueSize() int { return len(q.queue) }

func (q *AsyncMessageQueue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}
