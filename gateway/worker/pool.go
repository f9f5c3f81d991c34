// Package worker provides an asynchronous worker pool for publishing chat
// lifecycle events through the configured eventstream.Publisher.
//
// The pool decouples event publishing from the gateway's HTTP hot path so
// that a slow broker never back-pressures a client's stream.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crosswireco/crosswire/pkg/eventstream"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a completed chat turn awaiting publication.
type Job struct {
	Provider    string
	Model       string
	UserID      string
	StartedAt   time.Time
	CompletedAt time.Time
	ChunkCount  int
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives the chat completed events.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool publishes lifecycle events asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, fmt.Errorf("worker pool requires a publisher")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			zap.String("provider", job.Provider),
			zap.String("model", job.Model),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("provider", job.Provider),
			zap.String("model", job.Model),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the gateway HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("event worker stopped", zap.Uint("worker_id", id))
}

// processJob publishes a chat completed event for the job.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	event := eventstream.NewChatCompletedEvent(
		eventstream.EventSource{
			Provider: job.Provider,
			UserID:   job.UserID,
		},
		eventstream.ChatRequestMeta{
			Model:       job.Model,
			StartedAt:   job.StartedAt,
			CompletedAt: job.CompletedAt,
			DurationMs:  job.CompletedAt.Sub(job.StartedAt).Milliseconds(),
			ChunkCount:  job.ChunkCount,
		},
	)

	if err := p.config.Publisher.PublishChat(ctx, event); err != nil {
		p.logger.Error("async event publish failed",
			zap.String("provider", job.Provider),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("chat event published",
		zap.String("event_id", event.EventID),
		zap.String("provider", job.Provider),
	)
}
