package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rotation/internal/clock"
	"github.com/smallbiznis/rotation/internal/config"
	ledgerdomain "github.com/smallbiznis/rotation/internal/ledger/domain"
	margindomain "github.com/smallbiznis/rotation/internal/margin/domain"
	"github.com/smallbiznis/rotation/internal/observability/metrics"
	"github.com/smallbiznis/rotation/internal/providers/giftcard"
	queuedomain "github.com/smallbiznis/rotation/internal/queue/domain"
	slotdomain "github.com/smallbiznis/rotation/internal/slot/domain"
	subscriptiondomain "github.com/smallbiznis/rotation/internal/subscription/domain"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	"github.com/smallbiznis/rotation/pkg/apperror"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Config struct {
	ProviderTimeout        time.Duration
	SubscriptionPeriodDays int
}

func ConfigFrom(cfg config.RotationConfig) Config {
	return Config{
		ProviderTimeout:        cfg.ProviderTimeout,
		SubscriptionPeriodDays: cfg.SubscriptionPeriodDays,
	}
}

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	Config           Config
	Repo             slotdomain.Repository
	UserRepo         userdomain.Repository
	QueueRepo        queuedomain.Repository
	Queue            queuedomain.Service
	SubscriptionRepo subscriptiondomain.Repository
	Subscriptions    subscriptiondomain.Service
	Ledger           ledgerdomain.Service
	Margin           margindomain.Service
	GiftCards        giftcard.Provider
	Metrics          *metrics.Metrics `optional:"true"`
}

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	cfg              Config
	repo             slotdomain.Repository
	userRepo         userdomain.Repository
	queueRepo        queuedomain.Repository
	queue            queuedomain.Service
	subscriptionRepo subscriptiondomain.Repository
	subscriptions    subscriptiondomain.Service
	ledger           ledgerdomain.Service
	margin           margindomain.Service
	giftCards        giftcard.Provider
	metrics          *metrics.Metrics
}

func NewService(p Params) slotdomain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("slot.service"),
		genID:            p.GenID,
		clock:            p.Clock,
		cfg:              p.Config,
		repo:             p.Repo,
		userRepo:         p.UserRepo,
		queueRepo:        p.QueueRepo,
		queue:            p.Queue,
		subscriptionRepo: p.SubscriptionRepo,
		subscriptions:    p.Subscriptions,
		ledger:           p.Ledger,
		margin:           p.Margin,
		giftCards:        p.GiftCards,
		metrics:          p.Metrics,
	}
}

func (s *Service) EnsureSlots(ctx context.Context, userID snowflake.ID) ([]slotdomain.RotationSlot, error) {
	var slots []slotdomain.RotationSlot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.FindByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return slotdomain.ErrUserNotFound
		}

		existing, err := s.repo.ListByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		have := make(map[int]struct{}, len(existing))
		for _, slot := range existing {
			have[slot.SlotNumber] = struct{}{}
		}

		now := s.clock.Now()
		for n := 1; n <= user.SlotCapacity; n++ {
			if _, ok := have[n]; ok {
				continue
			}
			slot := &slotdomain.RotationSlot{
				ID:         s.genID.Generate(),
				UserID:     userID,
				SlotNumber: n,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := s.repo.Insert(ctx, tx, slot); err != nil {
				return err
			}
		}

		slots, err = s.repo.ListByUser(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *Service) RequestStay(ctx context.Context, userID snowflake.ID, serviceID string) error {
	serviceID = strings.TrimSpace(serviceID)
	if userID == 0 || serviceID == "" {
		return queuedomain.ErrInvalidService
	}

	sub, err := s.subscriptionRepo.FindByUserService(ctx, s.db, userID, serviceID)
	if err != nil {
		return err
	}
	if sub == nil || !sub.Status.Live() {
		return slotdomain.ErrSubscriptionNotLive.WithMessage("%s is not active", serviceID)
	}

	ok, err := s.queueRepo.SetExtendCurrent(ctx, s.db, userID, serviceID, true, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return slotdomain.ErrQueueEntryNotFound.WithMessage("%s is not queued", serviceID)
	}

	s.log.Info("stay requested",
		zap.String("user_id", userID.String()),
		zap.String("service_id", serviceID),
	)
	return nil
}

// LockIn commits the slot to its next period: extend the current service when
// the user asked to stay, otherwise advance to the queue head once funded.
func (s *Service) LockIn(ctx context.Context, userID snowflake.ID, slotNumber int) (*slotdomain.LockInResult, error) {
	if slotNumber < 1 {
		return nil, slotdomain.ErrInvalidSlotNumber
	}

	var result *slotdomain.LockInResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The user row serializes lock-ins across all of the user's slots.
		user, err := s.userRepo.FindByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return slotdomain.ErrUserNotFound
		}

		slot, err := s.repo.FindForUpdate(ctx, tx, userID, slotNumber)
		if err != nil {
			return err
		}
		if slot == nil {
			return slotdomain.ErrSlotNotFound
		}

		if current := slot.Current(); current != "" {
			entries, err := s.queueRepo.ListByUser(ctx, tx, userID)
			if err != nil {
				return err
			}
			if entry := queuedomain.FindService(entries, current); entry != nil && entry.ExtendCurrent {
				result, err = s.extend(ctx, tx, slot)
				return err
			}
		}

		result, err = s.advance(ctx, tx, slot)
		return err
	})
	if err != nil {
		s.log.Warn("lock-in failed",
			zap.String("user_id", userID.String()),
			zap.Int("slot_number", slotNumber),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordLockIn(ctx, string(result.Outcome))
	s.log.Info("lock-in decided",
		zap.String("user_id", userID.String()),
		zap.Int("slot_number", slotNumber),
		zap.String("outcome", string(result.Outcome)),
		zap.String("service_id", result.ServiceID),
		zap.Int64("charged_sats", result.ChargedSats),
		zap.Int64("shortfall_sats", result.ShortfallSats),
	)
	return result, nil
}

func (s *Service) extend(ctx context.Context, tx *gorm.DB, slot *slotdomain.RotationSlot) (*slotdomain.LockInResult, error) {
	serviceID := slot.Current()
	quote, err := s.margin.Quote(ctx, tx, serviceID)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledger.BalanceTx(ctx, tx, slot.UserID)
	if err != nil {
		return nil, err
	}
	if balance < quote.TotalSats {
		return nil, slotdomain.ErrInsufficientFunds.WithMessage("extending %s needs %d sats, balance is %d",
			serviceID, quote.TotalSats, balance)
	}

	now := s.clock.Now()
	if err := s.charge(ctx, tx, slot, quote); err != nil {
		return nil, err
	}

	sub, err := s.subscriptions.Schedule(ctx, tx, slot.UserID, serviceID, subscriptiondomain.StatusActive)
	if err != nil {
		return nil, err
	}
	base := now
	if sub.SubscriptionEndDate != nil && sub.SubscriptionEndDate.After(now) {
		base = *sub.SubscriptionEndDate
	}
	if err := s.subscriptionRepo.UpdateEndDate(ctx, tx, sub.ID, s.periodEnd(base), now); err != nil {
		return nil, err
	}

	if _, err := s.queueRepo.SetExtendCurrent(ctx, tx, slot.UserID, serviceID, false, now); err != nil {
		return nil, err
	}
	slot.LockedAt = &now
	slot.UpdatedAt = now
	if err := s.repo.Update(ctx, tx, slot); err != nil {
		return nil, err
	}

	purchase, err := s.purchase(ctx, slot, quote, now)
	if err != nil {
		return nil, err
	}

	return &slotdomain.LockInResult{
		Outcome:         slotdomain.OutcomeExtended,
		Slot:            *slot,
		ServiceID:       serviceID,
		ChargedSats:     quote.TotalSats,
		GiftCardOrderID: purchase.OrderID,
	}, nil
}

func (s *Service) advance(ctx context.Context, tx *gorm.DB, slot *slotdomain.RotationSlot) (*slotdomain.LockInResult, error) {
	req, err := s.margin.RequiredBalanceTx(ctx, tx, slot.UserID)
	if err != nil {
		return nil, err
	}
	if req.NextService == nil {
		return &slotdomain.LockInResult{
			Outcome:   slotdomain.OutcomeIdle,
			Slot:      *slot,
			ServiceID: slot.Current(),
		}, nil
	}

	balance, err := s.ledger.BalanceTx(ctx, tx, slot.UserID)
	if err != nil {
		return nil, err
	}
	if shortfall := req.TotalSats - balance; shortfall > 0 {
		return &slotdomain.LockInResult{
			Outcome:       slotdomain.OutcomeDeferred,
			Slot:          *slot,
			ServiceID:     req.NextService.ID,
			ShortfallSats: shortfall,
		}, nil
	}

	now := s.clock.Now()
	retiring := slot.Current()
	promoted := req.NextService.ID

	if retiring != "" {
		err := s.queue.DequeueTx(ctx, tx, slot.UserID, retiring)
		if err != nil && !errors.Is(err, queuedomain.ErrEntryNotFound) {
			return nil, err
		}
		if _, err := s.subscriptions.Schedule(ctx, tx, slot.UserID, retiring, subscriptiondomain.StatusCancelScheduled); err != nil {
			return nil, err
		}
	}

	slot.CurrentServiceID = &promoted
	slot.LockedAt = &now
	slot.UpdatedAt = now
	next, err := s.followingHead(ctx, tx, slot)
	if err != nil {
		return nil, err
	}
	slot.NextServiceID = next
	if err := s.repo.Update(ctx, tx, slot); err != nil {
		return nil, err
	}

	sub, err := s.subscriptions.Schedule(ctx, tx, slot.UserID, promoted, subscriptiondomain.StatusSignupScheduled)
	if err != nil {
		return nil, err
	}
	if err := s.subscriptionRepo.UpdateEndDate(ctx, tx, sub.ID, s.periodEnd(now), now); err != nil {
		return nil, err
	}

	if err := s.charge(ctx, tx, slot, req); err != nil {
		return nil, err
	}
	purchase, err := s.purchase(ctx, slot, req, now)
	if err != nil {
		return nil, err
	}

	return &slotdomain.LockInResult{
		Outcome:         slotdomain.OutcomeAdvanced,
		Slot:            *slot,
		ServiceID:       promoted,
		RetiredService:  retiring,
		ChargedSats:     req.TotalSats,
		GiftCardOrderID: purchase.OrderID,
	}, nil
}

func (s *Service) Describe(ctx context.Context, userID snowflake.ID) ([]slotdomain.SlotView, error) {
	slots, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.queueRepo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	head := queuedomain.Head(entries, slotdomain.OccupiedServices(slots)...)

	var (
		shortfall      int64
		shortfallKnown bool
	)
	advanceShortfall := func() (int64, error) {
		if shortfallKnown {
			return shortfall, nil
		}
		v, err := s.margin.Shortfall(ctx, userID)
		if err != nil {
			return 0, err
		}
		shortfall, shortfallKnown = v, true
		return v, nil
	}

	views := make([]slotdomain.SlotView, 0, len(slots))
	for _, slot := range slots {
		view := slotdomain.SlotView{Slot: slot}
		current := slot.Current()

		switch {
		case current == "" && head == nil:
			view.State = slotdomain.StateEmpty
		case current == "":
			view.State = slotdomain.StateFunding
			if view.ShortfallSats, err = advanceShortfall(); err != nil {
				return nil, err
			}
		case isExtendRequested(entries, current):
			view.State = slotdomain.StateExtendRequested
			if view.ShortfallSats, err = s.extendShortfall(ctx, userID, current); err != nil {
				return nil, err
			}
		case head != nil:
			view.State = slotdomain.StateAdvancePending
			if view.ShortfallSats, err = advanceShortfall(); err != nil {
				return nil, err
			}
		default:
			view.State = slotdomain.StateLocked
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) RefreshNext(ctx context.Context, userID snowflake.ID) ([]slotdomain.RotationSlot, error) {
	var slots []slotdomain.RotationSlot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		slots, err = s.repo.ListByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		entries, err := s.queueRepo.ListByUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		// Each slot gets a distinct advisory next service.
		taken := slotdomain.OccupiedServices(slots)
		now := s.clock.Now()
		for i := range slots {
			var next *string
			if head := queuedomain.Head(entries, taken...); head != nil {
				id := head.ServiceID
				next = &id
				taken = append(taken, id)
			}
			if slots[i].Next() == derefOrEmpty(next) {
				continue
			}
			if err := s.repo.UpdateNext(ctx, tx, slots[i].ID, next, now); err != nil {
				return err
			}
			slots[i].NextServiceID = next
			slots[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// followingHead is the queue head once slot holds its new current service.
func (s *Service) followingHead(ctx context.Context, tx *gorm.DB, slot *slotdomain.RotationSlot) (*string, error) {
	slots, err := s.repo.ListByUser(ctx, tx, slot.UserID)
	if err != nil {
		return nil, err
	}
	occupied := []string{slot.Current()}
	for i := range slots {
		if slots[i].ID == slot.ID {
			continue
		}
		if id := slots[i].Current(); id != "" {
			occupied = append(occupied, id)
		}
	}

	entries, err := s.queueRepo.ListByUser(ctx, tx, slot.UserID)
	if err != nil {
		return nil, err
	}
	head := queuedomain.Head(entries, occupied...)
	if head == nil {
		return nil, nil
	}
	id := head.ServiceID
	return &id, nil
}

func (s *Service) extendShortfall(ctx context.Context, userID snowflake.ID, serviceID string) (int64, error) {
	quote, err := s.margin.Quote(ctx, s.db, serviceID)
	if err != nil {
		return 0, err
	}
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}
	return max(0, quote.TotalSats-balance), nil
}

// charge debits the gift card and the platform fee for one lock-in.
func (s *Service) charge(ctx context.Context, tx *gorm.DB, slot *slotdomain.RotationSlot, quote *margindomain.Requirement) error {
	ref := slot.ID.String()
	serviceID := quote.NextService.ID

	if quote.GiftCardSats > 0 {
		desc := fmt.Sprintf("Gift card for %s", serviceID)
		if _, err := s.ledger.Record(ctx, tx, ledgerdomain.RecordRequest{
			UserID:      slot.UserID,
			Type:        ledgerdomain.TypeGiftCardPurchase,
			AmountSats:  -quote.GiftCardSats,
			ReferenceID: &ref,
			Description: &desc,
		}); err != nil {
			return err
		}
	}
	if quote.PlatformFeeSats > 0 {
		desc := fmt.Sprintf("Platform fee for %s", serviceID)
		if _, err := s.ledger.Record(ctx, tx, ledgerdomain.RecordRequest{
			UserID:      slot.UserID,
			Type:        ledgerdomain.TypePlatformFee,
			AmountSats:  -quote.PlatformFeeSats,
			ReferenceID: &ref,
			Description: &desc,
		}); err != nil {
			return err
		}
	}
	return nil
}

// purchase runs last inside the lock-in transaction so a provider failure
// rolls back every write made before it.
func (s *Service) purchase(ctx context.Context, slot *slotdomain.RotationSlot, quote *margindomain.Requirement, at time.Time) (*giftcard.Purchase, error) {
	callCtx, cancel := s.providerContext(ctx)
	defer cancel()

	purchase, err := s.giftCards.PurchaseGiftCard(callCtx, giftcard.PurchaseRequest{
		IdempotencyKey: fmt.Sprintf("lockin:%s:%s:%d", slot.ID.String(), quote.NextService.ID, at.Unix()),
		ServiceID:      quote.NextService.ID,
		AmountCents:    quote.NextService.MonthlyCostCents,
		AmountSats:     quote.GiftCardSats,
	})
	if err != nil {
		return nil, apperror.Provider(err)
	}
	if purchase == nil {
		return nil, apperror.Provider(errors.New("gift card provider returned no purchase"))
	}
	return purchase, nil
}

func (s *Service) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ProviderTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.ProviderTimeout)
}

func (s *Service) periodEnd(from time.Time) time.Time {
	days := s.cfg.SubscriptionPeriodDays
	if days <= 0 {
		days = 30
	}
	return from.AddDate(0, 0, days)
}

func isExtendRequested(entries []queuedomain.RotationQueueEntry, serviceID string) bool {
	entry := queuedomain.FindService(entries, serviceID)
	return entry != nil && entry.ExtendCurrent
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
