package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	abusedomain "github.com/smallbiznis/rotation/internal/abuse/domain"
	"github.com/smallbiznis/rotation/internal/clock"
	jobdomain "github.com/smallbiznis/rotation/internal/job/domain"
	ledgerdomain "github.com/smallbiznis/rotation/internal/ledger/domain"
	"github.com/smallbiznis/rotation/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    jobdomain.Repository
	Ledger  ledgerdomain.Service
	Abuse   abusedomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    jobdomain.Repository
	ledger  ledgerdomain.Service
	abuse   abusedomain.Service
	metrics *metrics.Metrics
}

func NewService(p Params) jobdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("job.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		ledger:  p.Ledger,
		abuse:   p.Abuse,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req jobdomain.CreateJobRequest) (*jobdomain.Job, error) {
	serviceID := strings.TrimSpace(req.ServiceID)
	switch {
	case req.UserID == 0:
		return nil, jobdomain.ErrInvalidUser
	case serviceID == "":
		return nil, jobdomain.ErrInvalidService
	case !req.Action.Valid():
		return nil, jobdomain.ErrInvalidAction
	case !req.Trigger.Valid():
		return nil, jobdomain.ErrInvalidTrigger
	case req.AmountSats < 0:
		return nil, jobdomain.ErrInvalidAmount
	}

	if err := s.abuse.GateSubmission(ctx, req.UserID, serviceID, req.Trigger); err != nil {
		s.log.Info("job submission refused",
			zap.String("user_id", req.UserID.String()),
			zap.String("service_id", serviceID),
			zap.String("trigger", string(req.Trigger)),
			zap.Error(err),
		)
		return nil, err
	}

	now := s.clock.Now()
	job := &jobdomain.Job{
		ID:         s.genID.Generate(),
		UserID:     req.UserID,
		ServiceID:  serviceID,
		Action:     req.Action,
		Trigger:    req.Trigger,
		Status:     jobdomain.StatusPending,
		AmountSats: req.AmountSats,
		InvoiceID:  req.InvoiceID,
		Metadata:   req.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*jobdomain.Job, error) {
	job, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, jobdomain.ErrJobNotFound
	}
	return job, nil
}

// UpdateStatus applies a status change and, when the job becomes terminal,
// its ledger and abuse effects in the same transaction. Operator alerts are
// posted only after that transaction commits.
func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status jobdomain.Status, opts jobdomain.UpdateStatusOptions) (*jobdomain.Job, error) {
	if !status.Valid() {
		return nil, jobdomain.ErrInvalidStatus
	}

	var (
		job     *jobdomain.Job
		prior   jobdomain.Status
		applied bool
		alert   *abusedomain.OperatorAlert
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		job, err = s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return jobdomain.ErrJobNotFound
		}

		transition, err := jobdomain.CheckTransition(job.Status, status, false)
		if err != nil {
			return err
		}
		if transition == jobdomain.TransitionNoop {
			return nil
		}

		prior = job.Status
		if err := s.writeStatus(ctx, tx, job, status, opts.FailureReason); err != nil {
			return err
		}
		applied = true

		if !status.IsTerminal() {
			return nil
		}
		alert, err = s.applyTerminalEffects(ctx, tx, job, prior)
		return err
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.log.Info("job status updated",
			zap.String("job_id", job.ID.String()),
			zap.String("from", string(prior)),
			zap.String("to", string(job.Status)),
		)
		if job.Status.IsTerminal() {
			s.metrics.RecordJobTerminal(ctx, string(job.Status), job.ServiceID)
		}
	}
	s.abuse.NotifyAlert(ctx, alert)
	return job, nil
}

func (s *Service) SettleJobDebt(ctx context.Context, id snowflake.ID, paymentSats int64) (*jobdomain.Settlement, error) {
	if paymentSats <= 0 {
		return nil, ledgerdomain.ErrInvalidPayment
	}

	var settlement *jobdomain.Settlement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return jobdomain.ErrJobNotFound
		}
		if job.Status != jobdomain.StatusCompletedReneged {
			return jobdomain.ErrJobNotReneged.WithMessage("job is %s", job.Status)
		}
		if _, err := jobdomain.CheckTransition(job.Status, jobdomain.StatusCompletedEventual, true); err != nil {
			return err
		}
		if err := s.writeStatus(ctx, tx, job, jobdomain.StatusCompletedEventual, ""); err != nil {
			return err
		}

		jobID := job.ID
		result, err := s.ledger.SettleDebtTx(ctx, tx, ledgerdomain.SettleRequest{
			UserID:      job.UserID,
			JobID:       &jobID,
			PaymentSats: paymentSats,
			InvoiceID:   job.InvoiceID,
		})
		if err != nil {
			return err
		}

		settlement = &jobdomain.Settlement{
			Job:           job,
			AppliedSats:   result.AppliedSats,
			SurplusSats:   result.SurplusSats,
			RemainingDebt: result.RemainingDebt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reneged job settled",
		zap.String("job_id", settlement.Job.ID.String()),
		zap.Int64("applied_sats", settlement.AppliedSats),
		zap.Int64("surplus_sats", settlement.SurplusSats),
		zap.Int64("remaining_debt", settlement.RemainingDebt),
	)
	s.metrics.RecordJobTerminal(ctx, string(settlement.Job.Status), settlement.Job.ServiceID)
	return settlement, nil
}

func (s *Service) writeStatus(ctx context.Context, tx *gorm.DB, job *jobdomain.Job, status jobdomain.Status, failureReason string) error {
	var reason *string
	if r := strings.TrimSpace(failureReason); r != "" {
		reason = &r
	} else {
		reason = job.FailureReason
	}

	now := s.clock.Now()
	changed, err := s.repo.UpdateStatus(ctx, tx, job.ID, job.Status, status, reason, now)
	if err != nil {
		return err
	}
	if !changed {
		return jobdomain.ErrInvalidTransition.WithMessage("job %s changed concurrently", job.ID.String())
	}

	job.Status = status
	job.FailureReason = reason
	job.UpdatedAt = now
	return nil
}

func (s *Service) applyTerminalEffects(ctx context.Context, tx *gorm.DB, job *jobdomain.Job, prior jobdomain.Status) (*abusedomain.OperatorAlert, error) {
	if job.Status == jobdomain.StatusCompletedReneged {
		if _, err := s.ledger.RecordDebt(ctx, tx, job, prior); err != nil {
			return nil, err
		}
	}
	return s.abuse.RecordActionOutcome(ctx, tx, job.UserID, job.ServiceID, outcomeOf(job))
}

func outcomeOf(job *jobdomain.Job) abusedomain.Outcome {
	switch job.Status {
	case jobdomain.StatusCompletedPaid, jobdomain.StatusCompletedEventual:
		return abusedomain.OutcomeSuccess
	case jobdomain.StatusUserAbandon:
		return abusedomain.OutcomeUserAbandon
	case jobdomain.StatusUserSkip, jobdomain.StatusImpliedSkip:
		return abusedomain.OutcomeSkipped
	case jobdomain.StatusFailed:
		if job.FailureReason != nil && *job.FailureReason == jobdomain.FailureCredentialInvalid {
			return abusedomain.OutcomeCredentialInvalid
		}
		return abusedomain.OutcomeFailed
	default:
		return abusedomain.OutcomeFailed
	}
}
