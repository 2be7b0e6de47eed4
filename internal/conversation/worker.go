package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shadowspark/support-ai-platform/pkg/logging"
)

const (
	defaultWorkerCount = 5
	defaultReceiveWait = 5 * time.Second
	defaultBatchSize   = 10

	// defaultJobsPerSecond caps throughput across all workers so a
	// burst of webhooks cannot stampede the model provider.
	defaultJobsPerSecond = 20
)

// Processor handles one inbound message. A returned error leaves the
// job on the queue for redelivery.
type Processor interface {
	ProcessMessage(ctx context.Context, msg InboundMessage) error
}

type workerConfig struct {
	workers          int
	receiveWait      time.Duration
	receiveBatchSize int
	jobsPerSecond    float64
}

// WorkerOption configures a Worker.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets how many goroutines consume the queue.
func WithWorkerCount(n int) WorkerOption {
	return func(cfg *workerConfig) {
		if n > 0 {
			cfg.workers = n
		}
	}
}

// WithJobRate caps total jobs started per second across all workers.
func WithJobRate(perSecond float64) WorkerOption {
	return func(cfg *workerConfig) {
		if perSecond > 0 {
			cfg.jobsPerSecond = perSecond
		}
	}
}

// Worker consumes message jobs from the queue and runs them through
// the processor.
type Worker struct {
	processor Processor
	queue     jobQueue
	limiter   *jobLimiter
	logger    *logging.Logger
	cfg       workerConfig
	wg        sync.WaitGroup
}

// NewWorker wires a queue consumer.
func NewWorker(processor Processor, queue jobQueue, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWait:      defaultReceiveWait,
		receiveBatchSize: defaultBatchSize,
		jobsPerSecond:    defaultJobsPerSecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		processor: processor,
		queue:     queue,
		limiter:   newJobLimiter(cfg.jobsPerSecond),
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("message worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("message worker stopping", "worker_id", workerID)
			return
		default:
		}

		deliveries, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWait)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive message jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, d := range deliveries {
			if err := w.limiter.wait(ctx); err != nil {
				return
			}
			w.handleDelivery(ctx, d)
		}
	}
}

func (w *Worker) handleDelivery(ctx context.Context, d jobDelivery) {
	env, err := openJob(d.Body)
	if err != nil {
		// Malformed jobs never become processable; drop them.
		w.logger.Error("failed to decode message job", "error", err, "msg_id", d.MessageID)
		w.acknowledge(context.Background(), d.Receipt)
		return
	}

	w.logger.Debug("worker processing job",
		"job_id", env.JobID,
		"channel", env.Message.ChannelType,
		"channel_message_id", env.Message.ChannelMessageID,
		"queue_latency_ms", time.Since(env.EnqueuedAt).Milliseconds())

	if err := w.processor.ProcessMessage(ctx, env.Message); err != nil {
		// Leave the job for redelivery; dedup makes the retry safe.
		w.logger.Error("message job failed",
			"job_id", env.JobID,
			"channel_message_id", env.Message.ChannelMessageID,
			"error", err)
		return
	}

	w.acknowledge(context.Background(), d.Receipt)
}

func (w *Worker) acknowledge(ctx context.Context, receipt string) {
	if err := w.queue.Delete(ctx, receipt); err != nil {
		w.logger.Error("failed to delete message job", "error", err)
	}
}

// jobLimiter is a token bucket shared by all worker goroutines.
type jobLimiter struct {
	mu       sync.Mutex
	tokens   float64
	rate     float64
	burst    float64
	lastTime time.Time
}

func newJobLimiter(rate float64) *jobLimiter {
	return &jobLimiter{
		tokens:   rate,
		rate:     rate,
		burst:    rate,
		lastTime: time.Now(),
	}
}

func (l *jobLimiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.lastTime).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastTime = now

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// wait blocks until a token is available or ctx is done.
func (l *jobLimiter) wait(ctx context.Context) error {
	for {
		if l.allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
