package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/quote-cache/internal/core/ports"
)

// RefreshPoolConfig groups configuration parameters for the refresh pool.
type RefreshPoolConfig struct {
	Workers   int
	QueueSize int
}

// RefreshPool runs refresh jobs on a fixed set of goroutines fed by a bounded
// queue. Submit never blocks.
//
// At most one job per cache key is queued or running at a time: Submit claims
// the key before enqueueing and the worker releases it when done. This closes
// the window in which two readers could both see a key as expired before the
// first refresh stamps it.
type RefreshPool struct {
	worker   *RefreshWorker
	jobs     chan ports.RefreshJob
	inflight *xsync.MapOf[string, struct{}]
	workers  int
	logger   *logrus.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewRefreshPool(worker *RefreshWorker, cfg *RefreshPoolConfig, logger *logrus.Logger) *RefreshPool {
	// Apply defaults
	n := 4
	q := 256
	if cfg != nil {
		if cfg.Workers > 0 {
			n = cfg.Workers
		}
		if cfg.QueueSize > 0 {
			q = cfg.QueueSize
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshPool{
		worker:   worker,
		jobs:     make(chan ports.RefreshJob, q),
		inflight: xsync.NewMapOf[string, struct{}](),
		workers:  n,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines. Calling it more than once has no effect.
func (p *RefreshPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{"workers": p.workers, "queue": cap(p.jobs)}).Info("quote refresh pool started")
	}
}

// Submit queues job unless a refresh for the same key is already pending or
// the queue is full. It reports whether the job was accepted.
func (p *RefreshPool) Submit(job ports.RefreshJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		quoteRefreshSkipped.WithLabelValues("stopped").Inc()
		return false
	}

	key := CacheKey(job.Lookup.Key)
	if _, loaded := p.inflight.LoadOrStore(key, struct{}{}); loaded {
		quoteRefreshSkipped.WithLabelValues("in_flight").Inc()
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		p.inflight.Delete(key)
		quoteRefreshSkipped.WithLabelValues("queue_full").Inc()
		if p.logger != nil {
			p.logger.WithFields(logrus.Fields{"hash": job.EntityHash, "lookup": job.Lookup.Key}).Warn("quote refresh queue full, dropping job")
		}
		return false
	}
}

// InFlight returns the number of keys queued or being refreshed.
func (p *RefreshPool) InFlight() int {
	return p.inflight.Size()
}

// Stop stops accepting jobs and waits for queued ones to finish. If ctx ends
// first, running refreshes are cancelled and ctx's error is returned.
func (p *RefreshPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	started := p.started
	p.mu.Unlock()

	if !started {
		p.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *RefreshPool) loop() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *RefreshPool) run(job ports.RefreshJob) {
	defer p.inflight.Delete(CacheKey(job.Lookup.Key))
	defer func() {
		if r := recover(); r != nil {
			quoteRefreshTotal.WithLabelValues("panic").Inc()
			if p.logger != nil {
				p.logger.WithFields(logrus.Fields{"hash": job.EntityHash, "lookup": job.Lookup.Key}).Error(fmt.Sprintf("quote refresh panicked: %v", r))
			}
		}
	}()
	p.worker.Refresh(p.ctx, job)
}
