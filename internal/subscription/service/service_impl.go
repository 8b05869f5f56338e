package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rotation/internal/clock"
	subscriptiondomain "github.com/smallbiznis/rotation/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  subscriptiondomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  subscriptiondomain.Repository
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, userID snowflake.ID, serviceID string) (*subscriptiondomain.Subscription, error) {
	sub, err := s.repo.FindByUserService(ctx, s.db, userID, serviceID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	return s.repo.ListByUser(ctx, s.db, userID)
}

func (s *Service) Schedule(ctx context.Context, tx *gorm.DB, userID snowflake.ID, serviceID string, status subscriptiondomain.Status) (*subscriptiondomain.Subscription, error) {
	if !status.Valid() {
		return nil, subscriptiondomain.ErrInvalidStatus
	}
	if tx == nil {
		tx = s.db
	}

	now := s.clock.Now()
	sub, err := s.repo.FindByUserServiceForUpdate(ctx, tx, userID, serviceID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		sub = &subscriptiondomain.Subscription{
			ID:        s.genID.Generate(),
			UserID:    userID,
			ServiceID: serviceID,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Insert(ctx, tx, sub); err != nil {
			return nil, err
		}
		return sub, nil
	}

	if err := s.repo.UpdateStatus(ctx, tx, sub.ID, status, now); err != nil {
		return nil, err
	}
	sub.Status = status
	sub.UpdatedAt = now
	return sub, nil
}

func (s *Service) SetStatus(ctx context.Context, userID snowflake.ID, serviceID string, status subscriptiondomain.Status) (*subscriptiondomain.Subscription, error) {
	if !status.Valid() {
		return nil, subscriptiondomain.ErrInvalidStatus
	}
	var out *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByUserServiceForUpdate(ctx, tx, userID, serviceID)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		now := s.clock.Now()
		if err := s.repo.UpdateStatus(ctx, tx, sub.ID, status, now); err != nil {
			return err
		}
		sub.Status = status
		sub.UpdatedAt = now
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("subscription status changed",
		zap.String("user_id", userID.String()),
		zap.String("service_id", serviceID),
		zap.String("status", string(status)),
	)
	return out, nil
}
