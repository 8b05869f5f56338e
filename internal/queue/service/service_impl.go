package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/rotation/internal/catalog/domain"
	"github.com/smallbiznis/rotation/internal/clock"
	credentialdomain "github.com/smallbiznis/rotation/internal/credential/domain"
	jobdomain "github.com/smallbiznis/rotation/internal/job/domain"
	queuedomain "github.com/smallbiznis/rotation/internal/queue/domain"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	"github.com/smallbiznis/rotation/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           queuedomain.Repository
	UserRepo       userdomain.Repository
	CatalogRepo    catalogdomain.Repository
	JobRepo        jobdomain.Repository
	CredentialRepo credentialdomain.Repository
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           queuedomain.Repository
	userRepo       userdomain.Repository
	catalogRepo    catalogdomain.Repository
	jobRepo        jobdomain.Repository
	credentialRepo credentialdomain.Repository
}

func NewService(p Params) queuedomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("queue.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		userRepo:       p.UserRepo,
		catalogRepo:    p.CatalogRepo,
		jobRepo:        p.JobRepo,
		credentialRepo: p.CredentialRepo,
	}
}

func (s *Service) Enqueue(ctx context.Context, userID snowflake.ID, serviceID string) (*queuedomain.RotationQueueEntry, error) {
	serviceID = strings.TrimSpace(serviceID)
	if userID == 0 {
		return nil, queuedomain.ErrInvalidUser
	}
	if serviceID == "" {
		return nil, queuedomain.ErrInvalidService
	}

	svc, err := s.catalogRepo.FindByID(ctx, s.db, serviceID)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, catalogdomain.ErrServiceNotFound
	}
	if !svc.Supported {
		return nil, catalogdomain.ErrServiceUnsupported
	}

	var entry *queuedomain.RotationQueueEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries, err := s.lockQueue(ctx, tx, userID)
		if err != nil {
			return err
		}
		if queuedomain.FindService(entries, serviceID) != nil {
			return queuedomain.ErrAlreadyQueued
		}

		now := s.clock.Now()
		entry = &queuedomain.RotationQueueEntry{
			ID:        s.genID.Generate(),
			UserID:    userID,
			ServiceID: serviceID,
			Position:  len(entries) + 1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Insert(ctx, tx, entry); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return queuedomain.ErrAlreadyQueued
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("service enqueued",
		zap.String("user_id", userID.String()),
		zap.String("service_id", serviceID),
		zap.Int("position", entry.Position),
	)
	return entry, nil
}

func (s *Service) Dequeue(ctx context.Context, userID snowflake.ID, serviceID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.DequeueTx(ctx, tx, userID, serviceID)
	})
}

func (s *Service) DequeueTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID, serviceID string) error {
	serviceID = strings.TrimSpace(serviceID)
	if userID == 0 {
		return queuedomain.ErrInvalidUser
	}
	if serviceID == "" {
		return queuedomain.ErrInvalidService
	}

	entries, err := s.lockQueue(ctx, tx, userID)
	if err != nil {
		return err
	}
	target := queuedomain.FindService(entries, serviceID)
	if target == nil {
		return queuedomain.ErrEntryNotFound
	}

	active, err := s.jobRepo.CountNonTerminal(ctx, tx, userID, serviceID)
	if err != nil {
		return err
	}
	if active > 0 {
		return queuedomain.ErrActiveJob.WithMessage("%d open job(s) for %s", active, serviceID)
	}

	if err := s.repo.Delete(ctx, tx, target.ID); err != nil {
		return err
	}
	if err := s.credentialRepo.DeleteByUserService(ctx, tx, userID, serviceID); err != nil {
		return err
	}

	remaining := make([]queuedomain.RotationQueueEntry, 0, len(entries)-1)
	for _, e := range entries {
		if e.ID != target.ID {
			remaining = append(remaining, e)
		}
	}
	if err := s.renumber(ctx, tx, remaining); err != nil {
		return err
	}

	s.log.Info("service dequeued",
		zap.String("user_id", userID.String()),
		zap.String("service_id", serviceID),
		zap.Int("remaining", len(remaining)),
	)
	return nil
}

func (s *Service) List(ctx context.Context, userID snowflake.ID) ([]queuedomain.RotationQueueEntry, error) {
	if userID == 0 {
		return nil, queuedomain.ErrInvalidUser
	}
	return s.repo.ListByUser(ctx, s.db, userID)
}

func (s *Service) Head(ctx context.Context, tx *gorm.DB, userID snowflake.ID, exclude ...string) (*queuedomain.RotationQueueEntry, error) {
	if tx == nil {
		tx = s.db
	}
	entries, err := s.repo.ListByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return queuedomain.Head(entries, exclude...), nil
}

func (s *Service) Reorder(ctx context.Context, userID snowflake.ID, serviceIDs []string) ([]queuedomain.RotationQueueEntry, error) {
	if userID == 0 {
		return nil, queuedomain.ErrInvalidUser
	}

	var ordered []queuedomain.RotationQueueEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries, err := s.lockQueue(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(serviceIDs) != len(entries) {
			return queuedomain.ErrInvalidReorder.WithMessage("expected %d services, got %d", len(entries), len(serviceIDs))
		}

		seen := make(map[string]struct{}, len(serviceIDs))
		ordered = make([]queuedomain.RotationQueueEntry, 0, len(entries))
		for _, id := range serviceIDs {
			id = strings.TrimSpace(id)
			if _, dup := seen[id]; dup {
				return queuedomain.ErrInvalidReorder.WithMessage("duplicate service %s", id)
			}
			seen[id] = struct{}{}
			entry := queuedomain.FindService(entries, id)
			if entry == nil {
				return queuedomain.ErrInvalidReorder.WithMessage("service %s is not queued", id)
			}
			ordered = append(ordered, *entry)
		}
		return s.renumber(ctx, tx, ordered)
	})
	if err != nil {
		return nil, err
	}
	return ordered, nil
}

// lockQueue serializes queue mutations for one user on the user row and then
// locks the user's entries.
func (s *Service) lockQueue(ctx context.Context, tx *gorm.DB, userID snowflake.ID) ([]queuedomain.RotationQueueEntry, error) {
	user, err := s.userRepo.FindByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrUserNotFound
	}
	return s.repo.ListByUserForUpdate(ctx, tx, userID)
}

// renumber assigns positions 1..N in slice order, touching only rows that move.
func (s *Service) renumber(ctx context.Context, tx *gorm.DB, entries []queuedomain.RotationQueueEntry) error {
	now := s.clock.Now()
	for i := range entries {
		want := i + 1
		if entries[i].Position == want {
			continue
		}
		if err := s.repo.UpdatePosition(ctx, tx, entries[i].ID, want, now); err != nil {
			return err
		}
		entries[i].Position = want
		entries[i].UpdatedAt = now
	}
	return nil
}
