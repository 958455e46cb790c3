package finalizer

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/payflow/internal/domain"
	"github.com/GlebRadaev/payflow/internal/loyalty"
	"github.com/GlebRadaev/payflow/internal/notification"
	"github.com/GlebRadaev/payflow/pkg/retry"
)

const queueSize = 1024

type mode int

const (
	modeProcess mode = iota
	modeFinalize
)

func (m mode) String() string {
	if m == modeProcess {
		return "process"
	}
	return "finalize"
}

// Job carries everything the detached phase needs to settle one payment.
type Job struct {
	PaymentID int
	UserID    int
	Amount    decimal.Decimal
	Currency  string
	Bonus     decimal.Decimal
}

type Settler interface {
	Settle(ctx context.Context, paymentID int, userID int, amount decimal.Decimal, bonus decimal.Decimal) error
	MarkStatus(ctx context.Context, paymentID int, status string, message string, bonus decimal.Decimal) error
}

type LoyaltyClient interface {
	Award(ctx context.Context, userID int, amount decimal.Decimal) (*loyalty.Response, error)
}

type NotificationClient interface {
	Notify(ctx context.Context, userID int, status string) (*notification.Response, error)
}

type task struct {
	job  Job
	mode mode
}

// Service runs detached finalizations. Jobs are queued by the request path,
// picked up by a worker pool, and observed only through logs and the
// persisted payment status. A first-writer-wins guard keyed by payment_id
// keeps two concurrently queued finalizations of the same payment from both
// debiting the user.
type Service struct {
	settler    Settler
	loyalty    LoyaltyClient
	notifier   NotificationClient
	workerPool WorkerPoolI
	queue      chan task
	inflight   sync.Map
}

func New(settler Settler, loyaltyClient LoyaltyClient, notifier NotificationClient) *Service {
	return &Service{
		settler:    settler,
		loyalty:    loyaltyClient,
		notifier:   notifier,
		workerPool: NewWorkerPool(10),
		queue:      make(chan task, queueSize),
	}
}

func (s *Service) Start(ctx context.Context) {
	zap.L().Info("Finalizer service started")
	go s.run(ctx)
}

// Process handles the simple path: settle with zero bonus and leave the
// loyalty call to an unbounded background retry.
func (s *Service) Process(job Job) {
	s.enqueue(task{job: job, mode: modeProcess})
}

// Finalize handles the fan-out path: settle with the bonus estimate and
// reconcile the bonus afterwards when the estimate was zero.
func (s *Service) Finalize(job Job) {
	s.enqueue(task{job: job, mode: modeFinalize})
}

func (s *Service) enqueue(t task) {
	zap.L().Info("finalization pending",
		zap.Int("paymentID", t.job.PaymentID), zap.String("mode", t.mode.String()))
	s.queue <- t
}

func (s *Service) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Context canceled, stopping finalizer")
			return
		case t := <-s.queue:
			if _, loaded := s.inflight.LoadOrStore(t.job.PaymentID, struct{}{}); loaded {
				zap.L().Warn("finalization already in progress, skipping",
					zap.Int("paymentID", t.job.PaymentID))
				continue
			}

			err := s.workerPool.AddTask(ctx, func() error {
				defer s.inflight.Delete(t.job.PaymentID)
				return s.handle(ctx, t)
			})
			if err != nil {
				s.inflight.Delete(t.job.PaymentID)
				zap.L().Error("failed to schedule finalization",
					zap.Int("paymentID", t.job.PaymentID), zap.Error(err))
			}
		}
	}
}

func (s *Service) handle(ctx context.Context, t task) error {
	zap.L().Info("finalization in progress",
		zap.Int("paymentID", t.job.PaymentID), zap.String("mode", t.mode.String()))

	var err error
	if t.mode == modeProcess {
		err = s.process(ctx, t.job)
	} else {
		err = s.finalize(ctx, t.job)
	}

	if err != nil {
		zap.L().Error("finalization failed",
			zap.Int("paymentID", t.job.PaymentID), zap.String("mode", t.mode.String()), zap.Error(err))
		return err
	}
	zap.L().Info("finalization done",
		zap.Int("paymentID", t.job.PaymentID), zap.String("mode", t.mode.String()))
	return nil
}

func (s *Service) process(ctx context.Context, job Job) error {
	err := s.settler.Settle(ctx, job.PaymentID, job.UserID, job.Amount, decimal.Zero)
	if err != nil {
		s.markFailed(ctx, job.PaymentID, err)
		return err
	}

	s.notify(ctx, job, domain.StatusSuccess)

	// the computed bonus is only logged here; the payment record keeps
	// bonus 0.00 on this path
	go func() {
		resp, err := retry.Until(ctx, retry.DefaultUntilPolicy, "loyalty bonus accrual",
			func(ctx context.Context) (*loyalty.Response, error) {
				return s.loyalty.Award(ctx, job.UserID, job.Amount)
			},
			func(r *loyalty.Response) bool { return r.Success() })
		if err != nil {
			zap.L().Error("deferred loyalty call abandoned",
				zap.Int("paymentID", job.PaymentID), zap.Error(err))
			return
		}
		zap.L().Info("deferred loyalty call succeeded",
			zap.Int("paymentID", job.PaymentID), zap.String("bonus", resp.Bonus.String()))
	}()

	return nil
}

func (s *Service) finalize(ctx context.Context, job Job) error {
	err := s.settler.Settle(ctx, job.PaymentID, job.UserID, job.Amount, job.Bonus)
	if err != nil {
		s.markFailed(ctx, job.PaymentID, err)
		s.notify(ctx, job, domain.StatusFailed)
		return err
	}

	s.notify(ctx, job, domain.StatusSuccess)

	if !job.Bonus.IsZero() {
		return nil
	}

	resp, err := retry.Until(ctx, retry.DefaultUntilPolicy, "loyalty bonus accrual",
		func(ctx context.Context) (*loyalty.Response, error) {
			return s.loyalty.Award(ctx, job.UserID, job.Amount)
		},
		func(r *loyalty.Response) bool { return r.Success() })
	if err != nil {
		zap.L().Error("bonus reconciliation abandoned",
			zap.Int("paymentID", job.PaymentID), zap.Error(err))
		return err
	}

	return s.settler.MarkStatus(ctx, job.PaymentID, domain.StatusSuccess,
		"loyalty bonus accrued successfully", resp.Bonus)
}

// markFailed records a settlement failure unless the coordinator already
// wrote the terminal status itself.
func (s *Service) markFailed(ctx context.Context, paymentID int, settleErr error) {
	if retry.IsTerminal(settleErr) {
		return
	}
	if err := s.settler.MarkStatus(ctx, paymentID, domain.StatusFailed,
		"payment processing failed: "+settleErr.Error(), decimal.Zero); err != nil {
		zap.L().Error("failed to mark payment failed",
			zap.Int("paymentID", paymentID), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, job Job, status string) {
	resp, err := s.notifier.Notify(ctx, job.UserID, status)
	if err != nil {
		zap.L().Warn("final notification failed",
			zap.Int("paymentID", job.PaymentID), zap.Error(err))
		return
	}
	zap.L().Info("final notification sent",
		zap.Int("paymentID", job.PaymentID), zap.String("status", resp.Status))
}
