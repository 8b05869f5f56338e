package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rotation/internal/clock"
	"github.com/smallbiznis/rotation/internal/config"
	jobdomain "github.com/smallbiznis/rotation/internal/job/domain"
	ledgerdomain "github.com/smallbiznis/rotation/internal/ledger/domain"
	"github.com/smallbiznis/rotation/internal/observability/metrics"
	"github.com/smallbiznis/rotation/internal/providers/payment"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	"github.com/smallbiznis/rotation/pkg/apperror"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultHistoryLimit = 50

type Config struct {
	ProviderTimeout time.Duration
}

func ConfigFrom(cfg config.RotationConfig) Config {
	return Config{ProviderTimeout: cfg.ProviderTimeout}
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   Config
	Repo     ledgerdomain.Repository
	UserRepo userdomain.Repository
	JobRepo  jobdomain.Repository
	Payments payment.Provider
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	cfg      Config
	repo     ledgerdomain.Repository
	userRepo userdomain.Repository
	jobRepo  jobdomain.Repository
	payments payment.Provider
	metrics  *metrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("ledger.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		cfg:      p.Config,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		jobRepo:  p.JobRepo,
		payments: p.Payments,
		metrics:  p.Metrics,
	}
}

func (s *Service) Balance(ctx context.Context, userID snowflake.ID) (int64, error) {
	return s.BalanceTx(ctx, s.db, userID)
}

func (s *Service) BalanceTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (int64, error) {
	if userID == 0 {
		return 0, ledgerdomain.ErrInvalidUser
	}
	return s.repo.SumByUser(ctx, s.handle(tx), userID)
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, req ledgerdomain.RecordRequest) (*ledgerdomain.CreditTransaction, error) {
	if req.UserID == 0 {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if !req.Type.Valid() {
		return nil, ledgerdomain.ErrInvalidTransactionType
	}
	if req.AmountSats == 0 || (req.Type.Credit() != (req.AmountSats > 0)) {
		return nil, ledgerdomain.ErrInvalidAmountSign.WithMessage("%s with %d sats", req.Type, req.AmountSats)
	}

	row := &ledgerdomain.CreditTransaction{
		ID:          s.genID.Generate(),
		UserID:      req.UserID,
		Type:        req.Type,
		AmountSats:  req.AmountSats,
		ReferenceID: req.ReferenceID,
		Description: req.Description,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.handle(tx), row); err != nil {
		return nil, err
	}
	s.metrics.RecordLedgerTransaction(ctx, string(row.Type))
	return row, nil
}

func (s *Service) History(ctx context.Context, userID snowflake.ID, limit int) ([]ledgerdomain.CreditTransaction, error) {
	if userID == 0 {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.repo.ListByUser(ctx, s.db, userID, limit)
}

func (s *Service) RecordDebt(ctx context.Context, tx *gorm.DB, job *jobdomain.Job, prior jobdomain.Status) (bool, error) {
	if job == nil || job.Status != jobdomain.StatusCompletedReneged {
		return false, nil
	}
	// A redelivered reneged update arrives with a terminal prior status.
	if !prior.IsNonTerminal() {
		return false, nil
	}
	if job.AmountSats <= 0 {
		return false, nil
	}

	db := s.handle(tx)
	user, err := s.userRepo.FindByIDForUpdate(ctx, db, job.UserID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, ledgerdomain.ErrUserNotFound
	}

	debt := user.DebtSats + job.AmountSats
	if err := s.userRepo.UpdateDebt(ctx, db, user.ID, debt, s.clock.Now()); err != nil {
		return false, err
	}

	s.log.Info("debt recorded",
		zap.String("user_id", user.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Int64("amount_sats", job.AmountSats),
		zap.Int64("debt_sats", debt),
	)
	return true, nil
}

func (s *Service) SettleDebt(ctx context.Context, req ledgerdomain.SettleRequest) (*ledgerdomain.SettlementResult, error) {
	var result *ledgerdomain.SettlementResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.SettleDebtTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) SettleDebtTx(ctx context.Context, tx *gorm.DB, req ledgerdomain.SettleRequest) (*ledgerdomain.SettlementResult, error) {
	if req.UserID == 0 {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if req.PaymentSats <= 0 {
		return nil, ledgerdomain.ErrInvalidPayment
	}

	db := s.handle(tx)
	user, err := s.userRepo.FindByIDForUpdate(ctx, db, req.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ledgerdomain.ErrUserNotFound
	}

	applied := min(req.PaymentSats, user.DebtSats)
	surplus := req.PaymentSats - applied
	remaining := user.DebtSats - applied
	now := s.clock.Now()

	if applied > 0 {
		if err := s.userRepo.UpdateDebt(ctx, db, user.ID, remaining, now); err != nil {
			return nil, err
		}
	}

	record := &ledgerdomain.DebtPayment{
		ID:          s.genID.Generate(),
		UserID:      user.ID,
		JobID:       req.JobID,
		AmountSats:  req.PaymentSats,
		AppliedSats: applied,
		SurplusSats: surplus,
		InvoiceID:   req.InvoiceID,
		CreatedAt:   now,
	}
	if err := s.repo.InsertDebtPayment(ctx, db, record); err != nil {
		return nil, err
	}

	if surplus > 0 {
		s.log.Warn("debt payment exceeded outstanding debt",
			zap.String("user_id", user.ID.String()),
			zap.Int64("payment_sats", req.PaymentSats),
			zap.Int64("surplus_sats", surplus),
		)
	}

	return &ledgerdomain.SettlementResult{
		PaymentID:     record.ID,
		AppliedSats:   applied,
		SurplusSats:   surplus,
		RemainingDebt: remaining,
	}, nil
}

func (s *Service) DebtSummary(ctx context.Context, userID snowflake.ID) (*ledgerdomain.DebtSummary, error) {
	if userID == 0 {
		return nil, ledgerdomain.ErrInvalidUser
	}
	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ledgerdomain.ErrUserNotFound
	}
	jobs, err := s.jobRepo.ListByStatus(ctx, s.db, userID, jobdomain.StatusCompletedReneged)
	if err != nil {
		return nil, err
	}
	return &ledgerdomain.DebtSummary{
		UserID:      user.ID,
		DebtSats:    user.DebtSats,
		RenegedJobs: jobs,
	}, nil
}

func (s *Service) CreateDebtInvoice(ctx context.Context, userID snowflake.ID) (*payment.Invoice, error) {
	summary, err := s.DebtSummary(ctx, userID)
	if err != nil {
		return nil, err
	}
	if summary.DebtSats <= 0 {
		return nil, ledgerdomain.ErrNoDebt
	}

	callCtx, cancel := s.providerContext(ctx)
	defer cancel()

	invoice, err := s.payments.CreateInvoice(callCtx, payment.CreateInvoiceRequest{
		AmountSats: summary.DebtSats,
		Memo:       "Outstanding rotation debt",
		Reference:  fmt.Sprintf("debt:%s", userID.String()),
	})
	if err != nil {
		return nil, apperror.Provider(err)
	}
	return invoice, nil
}

func (s *Service) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ProviderTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.ProviderTimeout)
}

func (s *Service) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
