package webhook

import (
	"sync"

	"github.com/gammazero/workerpool"
	"go.uber.org/zap"

	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/infra/metrics"
)

// Pool is a workerpool that tolerates Submit after StopWait. A handler that
// outlives the server's shutdown deadline can still reach Submit; its task
// is dropped and logged instead of panicking on the closed queue.
type Pool struct {
	mu      sync.RWMutex
	stopped bool
	wp      *workerpool.WorkerPool
	log     *zap.Logger
}

func NewPool(workers int, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{wp: workerpool.New(workers), log: log}
}

func (p *Pool) Submit(task func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		metrics.WebhookUpdates.WithLabelValues(metrics.OutcomeDropped).Inc()
		p.log.Warn("webhook pool stopped, update dropped")
		return
	}
	p.wp.Submit(task)
}

func (p *Pool) WaitingQueueSize() int {
	return p.wp.WaitingQueueSize()
}

// StopWait runs every queued task and then stops the workers. Later calls
// are no-ops.
func (p *Pool) StopWait() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.wp.StopWait()
}
