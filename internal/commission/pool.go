package commission

import (
	"context"
	"fmt"
	"sync"

	"github.com/danielvasquez-dev/marketplace-billing/pkg/config"
	pkgerrors "github.com/danielvasquez-dev/marketplace-billing/pkg/errors"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/logger"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/metrics"
)

// Pool is an in-process JobSink: a bounded queue drained by a fixed set of
// workers. A full queue rejects submissions instead of blocking the caller.
type Pool struct {
	jobs    chan Job
	workers int
	runner  *Runner
	logg    *logger.Logger
	metrics *metrics.ChargeMetrics
}

// NewPool builds a worker pool sized by the dispatch config.
func NewPool(cfg config.DispatchConfig, runner *Runner, logg *logger.Logger, chargeMetrics *metrics.ChargeMetrics) (*Pool, error) {
	if runner == nil {
		return nil, fmt.Errorf("job runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 1
	}
	return &Pool{
		jobs:    make(chan Job, depth),
		workers: workers,
		runner:  runner,
		logg:    logg,
		metrics: chargeMetrics,
	}, nil
}

// Submit queues a job, returning RATE_LIMIT_EXCEEDED when the queue is full.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case p.jobs <- job:
		p.metrics.SetQueueDepth(len(p.jobs))
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeRateLimit, "charge queue is full")
	}
}

// Run drains the queue with the configured workers until the context is
// canceled, then waits for in-flight jobs to finish.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (p *Pool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			p.metrics.SetQueueDepth(len(p.jobs))
			// Jobs run to completion even during shutdown; the charge
			// itself is bounded by the gateway timeout.
			if err := p.runner.Run(context.WithoutCancel(ctx), job); err != nil {
				p.logg.Error(ctx, "charge job failed to record its result", err)
			}
		}
	}
}

var _ JobSink = (*Pool)(nil)
