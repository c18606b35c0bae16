package commission

import (
	"context"
	"fmt"

	"github.com/danielvasquez-dev/marketplace-billing/pkg/db/models"
	pkgerrors "github.com/danielvasquez-dev/marketplace-billing/pkg/errors"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/logger"
)

type chargeService interface {
	Charge(ctx context.Context, params ChargeParams) (*models.Payment, error)
}

// JobSink accepts queued charge jobs for eventual execution.
type JobSink interface {
	Submit(ctx context.Context, job Job) error
}

// Dispatcher hands charges to a sink and tracks them with process tokens.
type Dispatcher struct {
	registry Registry
	sink     JobSink
	logg     *logger.Logger
}

// DispatcherParams carries the dependencies for NewDispatcher.
type DispatcherParams struct {
	Registry Registry
	Sink     JobSink
	Logger   *logger.Logger
}

// NewDispatcher validates dependencies and builds a dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("process registry required")
	}
	if params.Sink == nil {
		return nil, fmt.Errorf("job sink required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{registry: params.Registry, sink: params.Sink, logg: params.Logger}, nil
}

// Enqueue mints a process token and submits the charge. When submission fails
// the token is completed as failed so pollers never wait on a job that was
// never queued.
func (d *Dispatcher) Enqueue(ctx context.Context, params ChargeParams) (ProcessStatus, error) {
	status, err := d.registry.Create(ctx)
	if err != nil {
		return ProcessStatus{}, err
	}

	ctx = d.logg.WithProcessToken(ctx, status.ProcessToken)
	job := Job{ProcessToken: status.ProcessToken, Op: OpChargeCommission, Params: params}
	if err := d.sink.Submit(ctx, job); err != nil {
		result := Outcome{Success: false, ErrorCode: string(pkgerrors.CodeDependency), ErrorMessage: "charge dispatch failed"}
		if _, cerr := d.registry.Complete(ctx, status.ProcessToken, result); cerr != nil {
			d.logg.Error(ctx, "failed to fail dispatched process", cerr)
		}
		return ProcessStatus{}, err
	}

	d.logg.Info(ctx, "commission charge dispatched")
	return status, nil
}

// Poll returns the current process state for a token.
func (d *Dispatcher) Poll(ctx context.Context, token string) (ProcessStatus, error) {
	return d.registry.Get(ctx, token)
}

// Runner executes queued jobs and completes their process tokens.
type Runner struct {
	service  chargeService
	registry Registry
	logg     *logger.Logger
}

// RunnerParams carries the dependencies for NewRunner.
type RunnerParams struct {
	Service  chargeService
	Registry Registry
	Logger   *logger.Logger
}

// NewRunner validates dependencies and builds a job runner.
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Service == nil {
		return nil, fmt.Errorf("commission service required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("process registry required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Runner{
		service:  params.Service,
		registry: params.Registry,
		logg:     params.Logger,
	}, nil
}

// Run charges one job and records its outcome against the process token.
// The returned error reports a completion failure only; charge failures are
// captured in the stored outcome.
func (r *Runner) Run(ctx context.Context, job Job) error {
	ctx = r.logg.WithProcessToken(ctx, job.ProcessToken)

	payment, err := r.service.Charge(ctx, job.Params)
	outcome := outcomeFrom(payment, err)
	if err != nil {
		r.logg.Error(ctx, "dispatched commission charge failed", err)
	}

	won, cerr := r.registry.Complete(ctx, job.ProcessToken, outcome)
	if cerr != nil {
		return fmt.Errorf("completing process %s: %w", job.ProcessToken, cerr)
	}
	if !won {
		r.logg.Warn(ctx, "process already completed, dropping duplicate result")
	}
	return nil
}

func outcomeFrom(payment *models.Payment, err error) Outcome {
	if err == nil {
		return Outcome{Success: true, Payment: PaymentOutcomeFrom(payment)}
	}
	outcome := Outcome{Success: false, ErrorMessage: err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		outcome.ErrorCode = string(typed.Code())
		outcome.ErrorMessage = typed.Message()
	}
	return outcome
}
