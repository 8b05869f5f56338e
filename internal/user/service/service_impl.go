package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rotation/internal/clock"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	"github.com/smallbiznis/rotation/pkg/db"
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
	Repo  userdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  userdomain.Repository
}

func NewService(p Params) userdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req userdomain.CreateUserRequest) (*userdomain.User, error) {
	capacity := req.SlotCapacity
	if capacity == 0 {
		capacity = 1
	}
	user, err := userdomain.NewUser(s.genID.Generate(), req.Email, req.Role, capacity, 0, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, s.db, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, userdomain.ErrEmailTaken
		}
		return nil, err
	}
	s.log.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*userdomain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) Principal(ctx context.Context, id snowflake.ID) (userdomain.Principal, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return userdomain.Principal{}, err
	}
	return userdomain.Principal{UserID: user.ID, Role: user.Role}, nil
}

func (s *Service) MarkOnboarded(ctx context.Context, id snowflake.ID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.MarkOnboarded(ctx, s.db, id, s.clock.Now())
}
