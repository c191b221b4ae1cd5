// Package clicks processes click-count updates off the redirect path.
// Submission never blocks a redirect and failed updates are logged and
// dropped: click counts are best-effort, not correctness-critical.
package clicks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/julioborgesigt/encurtador/internal/repository"
)

// Click is one redirect event pending a counter update.
type Click struct {
	LinkID    int64
	ShortCode string
	At        time.Time
}

// Sink accepts clicks for asynchronous processing.
type Sink interface {
	SubmitClick(click *Click) error
}

// Config holds worker-pool settings for the processor.
type Config struct {
	WorkerCount     int           // number of worker goroutines
	BufferSize      int           // size of the job queue buffer
	StoreTimeout    time.Duration // per-update store deadline
	ShutdownTimeout time.Duration // time to wait for graceful shutdown
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		WorkerCount:     3,
		BufferSize:      1000,
		StoreTimeout:    5 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Processor drains a bounded queue of clicks into the store.
type Processor struct {
	config   Config
	storage  repository.Storage
	log      *zap.Logger
	jobQueue chan *Click
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
}

// NewProcessor creates a new click processor.
func NewProcessor(storage repository.Storage, log *zap.Logger, config Config) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		config:   config,
		storage:  storage,
		log:      log,
		jobQueue: make(chan *Click, config.BufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing clicks.
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("processor already started")
	}

	p.log.Info("starting click processor",
		zap.Int("workers", p.config.WorkerCount),
		zap.Int("buffer_size", p.config.BufferSize),
	)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.started = true
	return nil
}

// Stop gracefully shuts down the processor, draining what it can within
// the shutdown timeout.
func (p *Processor) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return fmt.Errorf("processor not started")
	}

	p.log.Info("stopping click processor")

	p.cancel()
	close(p.jobQueue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("click processor stopped gracefully")
	case <-time.After(p.config.ShutdownTimeout):
		p.log.Warn("click processor shutdown timeout reached")
		return fmt.Errorf("shutdown timeout reached")
	}

	p.started = false
	return nil
}

// SubmitClick queues a click for asynchronous processing. When the queue
// is full the click is dropped; the caller is never blocked.
func (p *Processor) SubmitClick(click *Click) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return fmt.Errorf("processor not started")
	}

	select {
	case p.jobQueue <- click:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("processor is shutting down")
	default:
		p.log.Warn("click queue is full, dropping click",
			zap.String("code", click.ShortCode),
			zap.Int("queue_size", len(p.jobQueue)),
		)
		return fmt.Errorf("click queue is full")
	}
}

// worker drains the queue. Update failures are logged and dropped, not
// retried: a lost click is tolerated, a stuck redirect path is not.
func (p *Processor) worker(workerID int) {
	defer p.wg.Done()

	log := p.log.With(zap.Int("worker_id", workerID))
	log.Debug("click worker started")

	for click := range p.jobQueue {
		if click == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.config.StoreTimeout)
		err := p.storage.IncrementClicks(ctx, click.LinkID)
		cancel()

		if err != nil {
			log.Warn("failed to record click",
				zap.String("code", click.ShortCode),
				zap.Int64("link_id", click.LinkID),
				zap.Error(err),
			)
			continue
		}

		log.Debug("recorded click", zap.String("code", click.ShortCode))
	}

	log.Debug("click worker stopped")
}
