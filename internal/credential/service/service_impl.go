package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rotation/internal/clock"
	credentialdomain "github.com/smallbiznis/rotation/internal/credential/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   credentialdomain.Repository
	Sealer *Sealer
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	repo   credentialdomain.Repository
	sealer *Sealer
}

func NewService(p Params) credentialdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("credential.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		repo:   p.Repo,
		sealer: p.Sealer,
	}
}

func (s *Service) Store(ctx context.Context, userID snowflake.ID, serviceID string, creds credentialdomain.Credentials) error {
	serviceID = strings.TrimSpace(serviceID)
	if userID == 0 || serviceID == "" {
		return credentialdomain.ErrInvalidCredential
	}
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return credentialdomain.ErrInvalidCredential
	}

	emailEnc, err := s.sealer.Seal([]byte(creds.Email), fieldAAD(userID, serviceID, "email"))
	if err != nil {
		return err
	}
	passwordEnc, err := s.sealer.Seal([]byte(creds.Password), fieldAAD(userID, serviceID, "password"))
	if err != nil {
		return err
	}

	now := s.clock.Now()
	return s.repo.Upsert(ctx, s.db, &credentialdomain.StreamingCredential{
		ID:          s.genID.Generate(),
		UserID:      userID,
		ServiceID:   serviceID,
		EmailEnc:    emailEnc,
		PasswordEnc: passwordEnc,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *Service) Reveal(ctx context.Context, userID snowflake.ID, serviceID string) (*credentialdomain.Credentials, error) {
	row, err := s.repo.Find(ctx, s.db, userID, serviceID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, credentialdomain.ErrCredentialNotFound
	}

	email, err := s.sealer.Open(row.EmailEnc, fieldAAD(userID, serviceID, "email"))
	if err != nil {
		s.log.Error("credential open failed", zap.String("user_id", userID.String()), zap.String("service_id", serviceID))
		return nil, err
	}
	password, err := s.sealer.Open(row.PasswordEnc, fieldAAD(userID, serviceID, "password"))
	if err != nil {
		s.log.Error("credential open failed", zap.String("user_id", userID.String()), zap.String("service_id", serviceID))
		return nil, err
	}
	return &credentialdomain.Credentials{Email: string(email), Password: string(password)}, nil
}

func (s *Service) Delete(ctx context.Context, userID snowflake.ID, serviceID string) error {
	return s.repo.DeleteByUserService(ctx, s.db, userID, serviceID)
}
