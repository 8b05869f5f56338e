package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/rotation/internal/catalog/domain"
	"github.com/smallbiznis/rotation/internal/config"
	ledgerdomain "github.com/smallbiznis/rotation/internal/ledger/domain"
	margindomain "github.com/smallbiznis/rotation/internal/margin/domain"
	"github.com/smallbiznis/rotation/internal/pricing"
	queuedomain "github.com/smallbiznis/rotation/internal/queue/domain"
	slotdomain "github.com/smallbiznis/rotation/internal/slot/domain"
	"github.com/smallbiznis/rotation/pkg/apperror"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Config struct {
	ProviderTimeout time.Duration
}

func ConfigFrom(cfg config.RotationConfig) Config {
	return Config{ProviderTimeout: cfg.ProviderTimeout}
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Config      Config
	QueueRepo   queuedomain.Repository
	SlotRepo    slotdomain.Repository
	CatalogRepo catalogdomain.Repository
	Ledger      ledgerdomain.Service
	Oracle      pricing.Oracle
	Fees        pricing.FeeSource
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	queueRepo   queuedomain.Repository
	slotRepo    slotdomain.Repository
	catalogRepo catalogdomain.Repository
	ledger      ledgerdomain.Service
	oracle      pricing.Oracle
	fees        pricing.FeeSource
}

func NewService(p Params) margindomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("margin.service"),
		cfg:         p.Config,
		queueRepo:   p.QueueRepo,
		slotRepo:    p.SlotRepo,
		catalogRepo: p.CatalogRepo,
		ledger:      p.Ledger,
		oracle:      p.Oracle,
		fees:        p.Fees,
	}
}

func (s *Service) RequiredBalance(ctx context.Context, userID snowflake.ID) (*margindomain.Requirement, error) {
	return s.RequiredBalanceTx(ctx, s.db, userID)
}

func (s *Service) RequiredBalanceTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (*margindomain.Requirement, error) {
	if userID == 0 {
		return nil, queuedomain.ErrInvalidUser
	}
	db := s.handle(tx)

	slots, err := s.slotRepo.ListByUser(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.queueRepo.ListByUser(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	head := queuedomain.Head(entries, slotdomain.OccupiedServices(slots)...)
	if head == nil {
		return &margindomain.Requirement{}, nil
	}
	return s.Quote(ctx, db, head.ServiceID)
}

func (s *Service) Shortfall(ctx context.Context, userID snowflake.ID) (int64, error) {
	return s.ShortfallTx(ctx, s.db, userID)
}

func (s *Service) ShortfallTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (int64, error) {
	db := s.handle(tx)
	req, err := s.RequiredBalanceTx(ctx, db, userID)
	if err != nil {
		return 0, err
	}
	if req.TotalSats == 0 {
		return 0, nil
	}
	balance, err := s.ledger.BalanceTx(ctx, db, userID)
	if err != nil {
		return 0, err
	}
	return max(0, req.TotalSats-balance), nil
}

func (s *Service) Quote(ctx context.Context, tx *gorm.DB, serviceID string) (*margindomain.Requirement, error) {
	svc, err := s.catalogRepo.FindByID(ctx, s.handle(tx), serviceID)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, catalogdomain.ErrServiceNotFound.WithMessage("%s", serviceID)
	}

	callCtx, cancel := s.providerContext(ctx)
	defer cancel()

	fee, err := s.fees.PlatformFeeSats(callCtx)
	if err != nil {
		return nil, apperror.Provider(err)
	}
	giftCard, err := s.oracle.ConvertUSDCentsToSats(callCtx, svc.MonthlyCostCents)
	if err != nil {
		s.log.Warn("price conversion failed",
			zap.String("service_id", svc.ID),
			zap.Int64("monthly_cost_cents", svc.MonthlyCostCents),
			zap.Error(err),
		)
		return nil, apperror.Provider(err)
	}

	return &margindomain.Requirement{
		NextService:     svc,
		PlatformFeeSats: fee,
		GiftCardSats:    giftCard,
		TotalSats:       fee + giftCard,
	}, nil
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
