package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundrise/wallet/internal/logger"
	"github.com/soundrise/wallet/internal/models"
	"github.com/soundrise/wallet/internal/repository"
)

const (
	defaultCountWorkers = 4
	defaultInterval     = 30 * time.Second
	defaultGraceWindow  = 2 * time.Minute

	// How long a withdrawal sits in pending before the sweep clears it for
	// dispatch. Gives the internal cancellation window a chance to act.
	defaultApprovalDelay = 10 * time.Second

	defaultBatchSize = 100
)

type dispatchService interface {
	Approve(ctx context.Context, id uuid.UUID, meta models.RequestMeta) (models.Withdrawal, error)
	Reject(ctx context.Context, id uuid.UUID, reason string, meta models.RequestMeta) (models.Withdrawal, error)
}

// sweepTask is one withdrawal picked up by the producer. Approve marks the
// automatic approval sweep, otherwise the task is a reconcile.
type sweepTask struct {
	id      uuid.UUID
	approve bool
}

// Poller drives the withdrawal lifecycle in the background with a small
// worker pool. Every interval it sweeps two sets: pending withdrawals past
// the approval delay are cleared for dispatch (or rejected when their
// payout method lost verification), and withdrawals stuck in approved or
// processing beyond the grace window are reconciled against the provider.
type Poller struct {
	interval      time.Duration
	graceWindow   time.Duration
	approvalDelay time.Duration
	countWorkers  int
	batchSize     int

	storage     repository.Storage
	reconciler  *Service
	withdrawals dispatchService
	logger      logger.Logger
}

// Audit entries written by the sweep carry no client address.
var sweepMeta = models.RequestMeta{UserAgent: "walletd-sweep"}

func NewPoller(storage repository.Storage, reconciler *Service, withdrawals dispatchService, interval time.Duration, l logger.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Poller{
		interval:      interval,
		graceWindow:   defaultGraceWindow,
		approvalDelay: defaultApprovalDelay,
		countWorkers:  defaultCountWorkers,
		batchSize:     defaultBatchSize,
		storage:       storage,
		reconciler:    reconciler,
		withdrawals:   withdrawals,
		logger:        l,
	}
}

// Run starts the producer and workers and returns a channel closed when
// everything has drained after context cancellation.
func (p *Poller) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	tasks := make(chan sweepTask)

	producerStopped := p.produce(ctx, tasks)
	workersStopped := p.consume(ctx, tasks)

	go func() {
		defer close(idleStopped)
		<-producerStopped
		close(tasks)
		<-workersStopped
		p.logger.Debug("Withdrawal sweep stopped")
	}()

	return idleStopped
}

func (p *Poller) produce(ctx context.Context, out chan<- sweepTask) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting withdrawal sweep", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				if !p.sweep(ctx, out) {
					return
				}
			}
		}
	}()

	return idleStopped
}

// sweep queues one round of tasks. Returns false when the context was
// cancelled mid-round.
func (p *Poller) sweep(ctx context.Context, out chan<- sweepTask) bool {
	pending, err := p.storage.Withdrawals().ListStale(ctx,
		[]string{models.WithdrawalStatusPending},
		time.Now().Add(-p.approvalDelay),
		p.batchSize,
	)
	if err != nil {
		p.logger.Error("Failed to list pending withdrawals", "error", err)
	}
	for _, w := range pending {
		select {
		case <-ctx.Done():
			return false
		case out <- sweepTask{id: w.ID, approve: true}:
		}
	}

	stale, err := p.storage.Withdrawals().ListStale(ctx,
		[]string{models.WithdrawalStatusApproved, models.WithdrawalStatusProcessing},
		time.Now().Add(-p.graceWindow),
		p.batchSize,
	)
	if err != nil {
		p.logger.Error("Failed to list stale withdrawals", "error", err)
	}
	for _, w := range stale {
		// An approved row with no transfer code never reached the provider
		// (dispatch timed out), there is nothing to reconcile yet. Retry the
		// dispatch instead.
		retryDispatch := w.Status == models.WithdrawalStatusApproved && w.ProviderTransferCode == nil

		select {
		case <-ctx.Done():
			return false
		case out <- sweepTask{id: w.ID, approve: retryDispatch}:
		}
	}

	return true
}

func (p *Poller) consume(ctx context.Context, in <-chan sweepTask) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < p.countWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, in)
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
	}()

	return idleStopped
}

func (p *Poller) worker(ctx context.Context, in <-chan sweepTask) {
	for task := range in {
		if ctx.Err() != nil {
			return
		}

		var err error
		if task.approve {
			err = p.dispatch(ctx, task.id)
		} else {
			_, err = p.reconciler.Reconcile(ctx, task.id)
		}
		if err != nil {
			p.logger.Error("Background withdrawal sweep failed", "transaction_id", task.id, "error", err)
		}
	}
}

// dispatch clears one pending withdrawal. A payout method that lost its
// verification since the request cancels the withdrawal instead.
func (p *Poller) dispatch(ctx context.Context, id uuid.UUID) error {
	w, err := p.storage.Withdrawals().Get(ctx, id)
	if err != nil {
		return err
	}

	method, err := p.storage.PayoutMethods().Get(ctx, w.PayoutMethodID)
	if err != nil {
		return err
	}

	if !method.IsVerified && w.Status == models.WithdrawalStatusPending {
		_, err = p.withdrawals.Reject(ctx, id, "payout method is no longer verified", sweepMeta)
		return err
	}

	_, err = p.withdrawals.Approve(ctx, id, sweepMeta)
	return err
}
