// Package worker provides an asynchronous worker pool for recording
// conversation turns in a history.Store.
//
// The pool decouples history writes from the server's streaming hot path so
// a reply is never held back by its own bookkeeping.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/dechat/pkg/history"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	ChatID  string
	Message history.Message
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Store is the history backend messages are appended to.
	Store history.Store

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes history jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed and every send on queue.
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Store == nil {
		return nil, fmt.Errorf("worker pool requires a history store")
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
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed, job dropped",
			"chat_id", job.ChatID,
			"role", job.Message.Role,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"chat_id", job.ChatID,
			"role", job.Message.Role,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"chat_id", job.ChatID,
			"role", job.Message.Role,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
// Close is idempotent; later calls only wait for the drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("history worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	if err := p.config.Store.Append(context.Background(), job.ChatID, job.Message); err != nil {
		p.logger.Error("async history write failed",
			"chat_id", job.ChatID,
			"error", err,
		)
		return
	}

	p.logger.Info("message recorded",
		"chat_id", job.ChatID,
		"role", job.Message.Role,
		"scope", job.Message.Scope,
		"content_bytes", len(job.Message.Content),
	)
}
