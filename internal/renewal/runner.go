// Package renewal runs the periodic sweep that locks in every slot whose
// period is about to end.
package renewal

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/rotation/internal/authorization"
	"github.com/smallbiznis/rotation/internal/clock"
	"github.com/smallbiznis/rotation/internal/ratelimit"
	slotdomain "github.com/smallbiznis/rotation/internal/slot/domain"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	"github.com/smallbiznis/rotation/pkg/apperror"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const leaseKey = "rotation:renewal:lease"

var ErrInvalidConfig = errors.New("invalid renewal config")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Config     Config
	SlotRepo   slotdomain.Repository
	Slots      slotdomain.Service
	Authorizer authorization.Authorizer
	Locker     *ratelimit.Locker `optional:"true"`
}

type Runner struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	cfg        Config
	slotRepo   slotdomain.Repository
	slots      slotdomain.Service
	authorizer authorization.Authorizer
	locker     *ratelimit.Locker
	cron       *cron.Cron
}

// Report summarises one sweep.
type Report struct {
	Due      int
	Advanced int
	Extended int
	Deferred int
	Idle     int
	Failed   int

	// Skipped is set when another process held the sweep lease.
	Skipped bool
}

func New(p Params) (*Runner, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.SlotRepo == nil || p.Slots == nil || p.Authorizer == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, err
	}
	return &Runner{
		db:         p.DB,
		log:        p.Log.Named("renewal").With(zap.String("component", "renewal")),
		clock:      p.Clock,
		cfg:        cfg,
		slotRepo:   p.SlotRepo,
		slots:      p.Slots,
		authorizer: p.Authorizer,
		locker:     p.Locker,
	}, nil
}

// Start schedules the sweep. Overlapping runs are skipped.
func (r *Runner) Start() error {
	r.cron = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := r.cron.AddFunc(r.cfg.Schedule, r.tick); err != nil {
		return err
	}
	r.cron.Start()
	r.log.Info("renewal scheduled", zap.String("schedule", r.cfg.Schedule))
	return nil
}

func (r *Runner) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	if _, err := r.RunOnce(ctx); err != nil {
		r.log.Warn("renewal run failed", zap.Error(err))
	}
}

// RunOnce locks in every slot due within the lead time, a page of BatchSize
// slots at a time. A failing slot is logged and counted; it does not stop the
// sweep.
func (r *Runner) RunOnce(ctx context.Context) (*Report, error) {
	if err := r.authorizer.Authorize(ctx, userdomain.SystemPrincipal(), authorization.ObjectSlot, authorization.ActionLockIn); err != nil {
		return nil, err
	}

	report := &Report{}
	if r.locker.Enabled() {
		lease, err := r.locker.Acquire(ctx, leaseKey, r.cfg.LeaseTTL)
		if err != nil {
			return nil, err
		}
		if lease == nil {
			r.log.Debug("renewal lease held elsewhere")
			report.Skipped = true
			return report, nil
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				r.log.Warn("release renewal lease", zap.Error(err))
			}
		}()
	}

	start := r.clock.Now()
	dueBefore := start.Add(r.cfg.LeadTime)
	var (
		afterUser snowflake.ID
		afterSlot int
	)
	for {
		page, err := r.slotRepo.ListDue(ctx, r.db, dueBefore, afterUser, afterSlot, r.cfg.BatchSize)
		if err != nil {
			return report, err
		}
		report.Due += len(page)

		for _, slot := range page {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			r.lockIn(ctx, slot, report)
		}
		if len(page) < r.cfg.BatchSize {
			break
		}
		last := page[len(page)-1]
		afterUser, afterSlot = last.UserID, last.SlotNumber
	}

	r.log.Info("renewal run finished",
		zap.Int("due", report.Due),
		zap.Int("advanced", report.Advanced),
		zap.Int("extended", report.Extended),
		zap.Int("deferred", report.Deferred),
		zap.Int("idle", report.Idle),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", r.clock.Now().Sub(start)),
	)
	return report, nil
}

func (r *Runner) lockIn(ctx context.Context, slot slotdomain.RotationSlot, report *Report) {
	log := r.log.With(
		zap.String("user_id", slot.UserID.String()),
		zap.Int("slot_number", slot.SlotNumber),
	)

	result, err := r.slots.LockIn(ctx, slot.UserID, slot.SlotNumber)
	if err != nil {
		report.Failed++
		log.Warn("slot lock-in failed",
			zap.String("kind", string(apperror.KindOf(err))),
			zap.Error(err),
		)
		return
	}
	switch result.Outcome {
	case slotdomain.OutcomeAdvanced:
		report.Advanced++
	case slotdomain.OutcomeExtended:
		report.Extended++
	case slotdomain.OutcomeDeferred:
		report.Deferred++
		log.Info("slot deferred", zap.Int64("shortfall_sats", result.ShortfallSats))
	case slotdomain.OutcomeIdle:
		report.Idle++
	}
}
