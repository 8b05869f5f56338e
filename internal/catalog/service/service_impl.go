package service

import (
	"context"
	"strings"

	catalogdomain "github.com/smallbiznis/rotation/internal/catalog/domain"
	"github.com/smallbiznis/rotation/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  catalogdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  catalogdomain.Repository
}

func NewService(p Params) catalogdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Upsert(ctx context.Context, req catalogdomain.UpsertServiceRequest) (*catalogdomain.StreamingService, error) {
	id := strings.TrimSpace(strings.ToLower(req.ID))
	if id == "" {
		return nil, catalogdomain.ErrInvalidServiceID
	}
	if req.MonthlyCostCents < 0 {
		return nil, catalogdomain.ErrInvalidMonthlyCost
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = id
	}

	now := s.clock.Now()
	svc := &catalogdomain.StreamingService{
		ID:               id,
		DisplayName:      name,
		MonthlyCostCents: req.MonthlyCostCents,
		Supported:        req.Supported,
		Standalone:       req.Standalone,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Upsert(ctx, s.db, svc); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*catalogdomain.StreamingService, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, catalogdomain.ErrInvalidServiceID
	}
	svc, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, catalogdomain.ErrServiceNotFound
	}
	return svc, nil
}

func (s *Service) GetSupported(ctx context.Context, id string) (*catalogdomain.StreamingService, error) {
	svc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !svc.Supported {
		return nil, catalogdomain.ErrServiceUnsupported
	}
	return svc, nil
}

func (s *Service) List(ctx context.Context) ([]catalogdomain.StreamingService, error) {
	return s.repo.List(ctx, s.db, true)
}

func (s *Service) DisplayName(ctx context.Context, id string) string {
	svc, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		s.log.Warn("display name lookup failed", zap.String("service_id", id), zap.Error(err))
		return id
	}
	if svc == nil || svc.DisplayName == "" {
		return id
	}
	return svc.DisplayName
}
