package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	abusedomain "github.com/smallbiznis/rotation/internal/abuse/domain"
	"github.com/smallbiznis/rotation/internal/authorization"
	catalogdomain "github.com/smallbiznis/rotation/internal/catalog/domain"
	"github.com/smallbiznis/rotation/internal/clock"
	"github.com/smallbiznis/rotation/internal/config"
	jobdomain "github.com/smallbiznis/rotation/internal/job/domain"
	"github.com/smallbiznis/rotation/internal/observability/metrics"
	"github.com/smallbiznis/rotation/internal/providers/slack"
	"github.com/smallbiznis/rotation/internal/ratelimit"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Config struct {
	AlertThreshold  int
	RateLimit       int
	RateWindow      time.Duration
	AbandonLimit    int
	AbandonCooldown time.Duration
	StrikeLimit     int
	StrikeCooldown  time.Duration
	AlertChannel    string
	NotifierTimeout time.Duration
}

func ConfigFrom(cfg config.RotationConfig) Config {
	return Config{
		AlertThreshold:  cfg.CredentialAlertThreshold,
		RateLimit:       cfg.OnDemandRateLimit,
		RateWindow:      cfg.OnDemandRateWindow,
		AbandonLimit:    cfg.UserAbandonLimit,
		AbandonCooldown: cfg.UserAbandonCooldown,
		StrikeLimit:     cfg.CredentialStrikeLimit,
		StrikeCooldown:  cfg.CredentialStrikeCooldown,
		AlertChannel:    cfg.OperatorAlertChannel,
		NotifierTimeout: cfg.ProviderTimeout,
	}
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      Config
	Repo        abusedomain.Repository
	JobRepo     jobdomain.Repository
	CatalogRepo catalogdomain.Repository
	Authorizer  authorization.Authorizer
	Notifier    slack.Provider
	Window      *ratelimit.SlidingWindow `optional:"true"`
	Metrics     *metrics.Metrics         `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	cfg         Config
	repo        abusedomain.Repository
	jobRepo     jobdomain.Repository
	catalogRepo catalogdomain.Repository
	authz       authorization.Authorizer
	notifier    slack.Provider
	window      *ratelimit.SlidingWindow
	metrics     *metrics.Metrics
}

func NewService(p Params) abusedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("abuse.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         p.Config,
		repo:        p.Repo,
		jobRepo:     p.JobRepo,
		catalogRepo: p.CatalogRepo,
		authz:       p.Authorizer,
		notifier:    p.Notifier,
		window:      p.Window,
		metrics:     p.Metrics,
	}
}

// RecordActionOutcome notifies the alert channel itself only when it owns the
// transaction. With a caller-supplied tx the returned alert is handed back so
// the caller can call NotifyAlert once its transaction commits.
func (s *Service) RecordActionOutcome(ctx context.Context, tx *gorm.DB, userID snowflake.ID, serviceID string, outcome abusedomain.Outcome) (*abusedomain.OperatorAlert, error) {
	if userID == 0 || strings.TrimSpace(serviceID) == "" {
		return nil, abusedomain.ErrInvalidTarget
	}
	switch outcome {
	case abusedomain.OutcomeCredentialInvalid:
	case abusedomain.OutcomeSuccess, abusedomain.OutcomeUserAbandon, abusedomain.OutcomeSkipped, abusedomain.OutcomeFailed:
		return nil, nil
	default:
		return nil, abusedomain.ErrInvalidOutcome.WithMessage("%q", outcome)
	}

	if tx != nil {
		return s.recordFailure(ctx, tx, userID, serviceID)
	}
	var alert *abusedomain.OperatorAlert
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		alert, err = s.recordFailure(ctx, tx, userID, serviceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.NotifyAlert(ctx, alert)
	return alert, nil
}

func (s *Service) recordFailure(ctx context.Context, tx *gorm.DB, userID snowflake.ID, serviceID string) (*abusedomain.OperatorAlert, error) {
	count, err := s.repo.IncrementFailure(ctx, tx, userID, serviceID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.log.Info("credential failure recorded",
		zap.String("user_id", userID.String()),
		zap.String("service_id", serviceID),
		zap.Int("credential_failures", count),
	)
	return s.raiseAlert(ctx, tx, userID, serviceID)
}

func (s *Service) CheckAlertThreshold(ctx context.Context, tx *gorm.DB, userID snowflake.ID, serviceID string) (*abusedomain.OperatorAlert, error) {
	if tx != nil {
		return s.raiseAlert(ctx, tx, userID, serviceID)
	}
	var alert *abusedomain.OperatorAlert
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		alert, err = s.raiseAlert(ctx, tx, userID, serviceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.NotifyAlert(ctx, alert)
	return alert, nil
}

// NotifyAlert posts the alert to the operator channel. Failures are logged and
// never surface to the caller.
func (s *Service) NotifyAlert(ctx context.Context, alert *abusedomain.OperatorAlert) {
	if alert == nil {
		return
	}
	s.notify(ctx, alert.Message)
}

func (s *Service) raiseAlert(ctx context.Context, tx *gorm.DB, userID snowflake.ID, serviceID string) (*abusedomain.OperatorAlert, error) {
	rec, err := s.repo.FindFailure(ctx, tx, userID, serviceID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.CredentialFailures < s.cfg.AlertThreshold {
		return nil, nil
	}

	displayName := s.displayName(ctx, tx, serviceID)
	message := fmt.Sprintf("User %s has %d consecutive credential failures for %s",
		userID.String(), rec.CredentialFailures, displayName)
	metadata, err := json.Marshal(map[string]any{
		"credential_failures": rec.CredentialFailures,
		"threshold":           s.cfg.AlertThreshold,
		"service_name":        displayName,
	})
	if err != nil {
		return nil, err
	}

	uid := userID
	sid := serviceID
	alert := &abusedomain.OperatorAlert{
		ID:        s.genID.Generate(),
		AlertType: abusedomain.AlertTypeCredentialFailures,
		UserID:    &uid,
		ServiceID: &sid,
		Message:   message,
		Metadata:  datatypes.JSON(metadata),
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertAlert(ctx, tx, alert); err != nil {
		return nil, err
	}
	s.metrics.RecordOperatorAlert(ctx, alert.AlertType)
	s.log.Warn("operator alert raised",
		zap.String("alert_id", alert.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("service_id", serviceID),
		zap.Int("credential_failures", rec.CredentialFailures),
	)
	return alert, nil
}

func (s *Service) RateLimit(ctx context.Context, userID snowflake.ID) error {
	if s.cfg.RateLimit <= 0 {
		return nil
	}
	now := s.clock.Now()

	if s.window.Enabled() {
		res, err := s.window.Allow(ctx, rateLimitKey(userID), s.cfg.RateLimit, s.cfg.RateWindow, now)
		if err == nil {
			if !res.Allowed {
				s.metrics.RecordRateLimitDenied(ctx, "on_demand")
				return abusedomain.ErrOnDemandRateLimited.WithMessage("%d on-demand requests per %s, retry after %s",
					s.cfg.RateLimit, s.cfg.RateWindow, res.RetryAfter.Round(time.Second))
			}
			return nil
		}
		s.log.Warn("redis rate limiter unavailable, counting jobs instead",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}

	count, err := s.jobRepo.CountByTriggerSince(ctx, s.db, userID, jobdomain.TriggerOnDemand, now.Add(-s.cfg.RateWindow))
	if err != nil {
		return err
	}
	if count >= int64(s.cfg.RateLimit) {
		s.metrics.RecordRateLimitDenied(ctx, "on_demand")
		return abusedomain.ErrOnDemandRateLimited.WithMessage("%d on-demand requests per %s", s.cfg.RateLimit, s.cfg.RateWindow)
	}
	return nil
}

func (s *Service) AbandonCooldown(ctx context.Context, userID snowflake.ID) error {
	if s.cfg.AbandonLimit <= 0 {
		return nil
	}
	jobs, err := s.jobRepo.ListRecentTerminal(ctx, s.db, userID, s.cfg.AbandonLimit)
	if err != nil {
		return err
	}
	if len(jobs) < s.cfg.AbandonLimit {
		return nil
	}
	for _, job := range jobs {
		if job.Status != jobdomain.StatusUserAbandon {
			return nil
		}
	}

	until := jobs[0].UpdatedAt.Add(s.cfg.AbandonCooldown)
	if s.clock.Now().Before(until) {
		s.metrics.RecordRateLimitDenied(ctx, "user_abandon")
		return abusedomain.ErrAbandonCooldown.WithMessage("%d consecutive abandons, retry after %s",
			s.cfg.AbandonLimit, until.Format(time.RFC3339))
	}
	return nil
}

func (s *Service) CredentialStrike(ctx context.Context, userID snowflake.ID, serviceID string) error {
	if s.cfg.StrikeLimit <= 0 {
		return nil
	}
	rec, err := s.repo.FindFailure(ctx, s.db, userID, serviceID)
	if err != nil {
		return err
	}
	if rec == nil || rec.CredentialFailures < s.cfg.StrikeLimit || rec.LastFailureAt == nil {
		return nil
	}

	until := rec.LastFailureAt.Add(s.cfg.StrikeCooldown)
	if s.clock.Now().Before(until) {
		s.metrics.RecordRateLimitDenied(ctx, "credential_strike")
		return abusedomain.ErrCredentialStrike.WithMessage("%s blocked after %d credential failures until %s",
			serviceID, rec.CredentialFailures, until.Format(time.RFC3339))
	}
	return nil
}

// GateSubmission refuses a job the guard would not admit. The rate limit is
// checked last so refused submissions do not consume window capacity.
func (s *Service) GateSubmission(ctx context.Context, userID snowflake.ID, serviceID string, trigger jobdomain.Trigger) error {
	if userID == 0 || strings.TrimSpace(serviceID) == "" {
		return abusedomain.ErrInvalidTarget
	}
	if err := s.AbandonCooldown(ctx, userID); err != nil {
		return err
	}
	if err := s.CredentialStrike(ctx, userID, serviceID); err != nil {
		return err
	}
	if trigger == jobdomain.TriggerOnDemand {
		return s.RateLimit(ctx, userID)
	}
	return nil
}

func (s *Service) FailureCount(ctx context.Context, userID snowflake.ID, serviceID string) (int, error) {
	rec, err := s.repo.FindFailure(ctx, s.db, userID, serviceID)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	return rec.CredentialFailures, nil
}

func (s *Service) ResetCredentialFailures(ctx context.Context, principal userdomain.Principal, userID snowflake.ID, serviceID string) error {
	if err := s.authz.Authorize(ctx, principal, authorization.ObjectCredentialFailures, authorization.ActionReset); err != nil {
		return err
	}
	if userID == 0 || strings.TrimSpace(serviceID) == "" {
		return abusedomain.ErrInvalidTarget
	}

	deleted, err := s.repo.DeleteFailure(ctx, s.db, userID, serviceID)
	if err != nil {
		return err
	}
	s.log.Info("credential failures reset",
		zap.String("operator_id", principal.UserID.String()),
		zap.String("user_id", userID.String()),
		zap.String("service_id", serviceID),
		zap.Bool("existed", deleted),
	)
	return nil
}

func (s *Service) ListAlerts(ctx context.Context, principal userdomain.Principal, filter abusedomain.AlertFilter) ([]abusedomain.OperatorAlert, error) {
	if err := s.authz.Authorize(ctx, principal, authorization.ObjectOperatorAlert, authorization.ActionView); err != nil {
		return nil, err
	}
	return s.repo.ListAlerts(ctx, s.db, filter)
}

func (s *Service) AcknowledgeAlert(ctx context.Context, principal userdomain.Principal, alertID snowflake.ID) (*abusedomain.OperatorAlert, error) {
	if err := s.authz.Authorize(ctx, principal, authorization.ObjectOperatorAlert, authorization.ActionAcknowledge); err != nil {
		return nil, err
	}

	var alert *abusedomain.OperatorAlert
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		alert, err = s.repo.FindAlertForUpdate(ctx, tx, alertID)
		if err != nil {
			return err
		}
		if alert == nil {
			return abusedomain.ErrAlertNotFound
		}
		if alert.AcknowledgedAt != nil {
			return nil
		}

		now := s.clock.Now()
		if err := s.repo.AcknowledgeAlert(ctx, tx, alertID, principal.UserID, now); err != nil {
			return err
		}
		by := principal.UserID
		alert.AcknowledgedAt = &now
		alert.AcknowledgedBy = &by
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// displayName falls back to the raw id when the catalog lookup fails.
func (s *Service) displayName(ctx context.Context, db *gorm.DB, serviceID string) string {
	svc, err := s.catalogRepo.FindByID(ctx, db, serviceID)
	if err != nil || svc == nil || svc.DisplayName == "" {
		return serviceID
	}
	return svc.DisplayName
}

func (s *Service) notify(ctx context.Context, message string) {
	if s.notifier == nil || s.cfg.AlertChannel == "" {
		return
	}
	callCtx, cancel := s.notifierContext(ctx)
	defer cancel()
	if err := s.notifier.PostMessage(callCtx, s.cfg.AlertChannel, message); err != nil {
		s.log.Warn("operator alert notification failed", zap.Error(err))
	}
}

func (s *Service) notifierContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.NotifierTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.NotifierTimeout)
}

func rateLimitKey(userID snowflake.ID) string {
	return "rotation:on_demand:" + userID.String()
}
