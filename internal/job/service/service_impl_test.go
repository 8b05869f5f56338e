package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	abusedomain "github.com/smallbiznis/rotation/internal/abuse/domain"
	abuserepository "github.com/smallbiznis/rotation/internal/abuse/repository"
	abuseservice "github.com/smallbiznis/rotation/internal/abuse/service"
	"github.com/smallbiznis/rotation/internal/authorization"
	catalogrepository "github.com/smallbiznis/rotation/internal/catalog/repository"
	"github.com/smallbiznis/rotation/internal/clock"
	"github.com/smallbiznis/rotation/internal/config"
	jobdomain "github.com/smallbiznis/rotation/internal/job/domain"
	jobrepository "github.com/smallbiznis/rotation/internal/job/repository"
	ledgerdomain "github.com/smallbiznis/rotation/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/rotation/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/rotation/internal/ledger/service"
	"github.com/smallbiznis/rotation/internal/providers/payment"
	"github.com/smallbiznis/rotation/internal/testutil"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	userrepository "github.com/smallbiznis/rotation/internal/user/repository"
	"github.com/smallbiznis/rotation/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) PostMessage(ctx context.Context, channelID string, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	ledger   ledgerdomain.Service
	abuse    abusedomain.Service
	notifier *recordingNotifier
	svc      jobdomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Repo:     ledgerrepository.Provide(),
		UserRepo: userrepository.Provide(),
		JobRepo:  jobrepository.Provide(),
		Payments: payment.Unconfigured{},
	})
	abuseCfg := abuseservice.ConfigFrom(config.DefaultRotationConfig())
	abuseCfg.AlertChannel = "#ops-alerts"
	notifier := &recordingNotifier{}
	abuse := abuseservice.NewService(abuseservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Config:      abuseCfg,
		Repo:        abuserepository.Provide(),
		JobRepo:     jobrepository.Provide(),
		CatalogRepo: catalogrepository.Provide(),
		Authorizer:  authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer}),
		Notifier:    notifier,
	})
	svc := NewService(Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  clk,
		Repo:   jobrepository.Provide(),
		Ledger: ledger,
		Abuse:  abuse,
	})
	return fixture{db: db, node: node, clock: clk, ledger: ledger, abuse: abuse, notifier: notifier, svc: svc}
}

func (f fixture) create(t *testing.T, userID snowflake.ID, amount int64) *jobdomain.Job {
	t.Helper()
	job, err := f.svc.Create(context.Background(), jobdomain.CreateJobRequest{
		UserID:     userID,
		ServiceID:  "netflix",
		Action:     jobdomain.ActionCancel,
		Trigger:    jobdomain.TriggerScheduled,
		AmountSats: amount,
	})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return job
}

func (f fixture) debt(t *testing.T, userID snowflake.ID) int64 {
	t.Helper()
	user, err := userrepository.Provide().FindByID(context.Background(), f.db, userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user.DebtSats
}

func TestRenegedJobChargesDebtOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)
	job := f.create(t, user.ID, 3000)

	_, err := f.svc.UpdateStatus(ctx, job.ID, jobdomain.StatusDispatched, jobdomain.UpdateStatusOptions{})
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(ctx, job.ID, jobdomain.StatusCompletedReneged, jobdomain.UpdateStatusOptions{})
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusCompletedReneged, updated.Status)
	assert.Equal(t, int64(3000), f.debt(t, user.ID))

	// Redelivery of the same terminal status is absorbed.
	_, err = f.svc.UpdateStatus(ctx, job.ID, jobdomain.StatusCompletedReneged, jobdomain.UpdateStatusOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), f.debt(t, user.ID))

	summary, err := f.ledger.DebtSummary(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), summary.DebtSats)
	require.Len(t, summary.RenegedJobs, 1)
	assert.Equal(t, job.ID, summary.RenegedJobs[0].ID)
}

func TestSettleJobDebt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)
	job := f.create(t, user.ID, 3000)

	_, err := f.svc.UpdateStatus(ctx, job.ID, jobdomain.StatusCompletedReneged, jobdomain.UpdateStatusOptions{})
	require.NoError(t, err)

	settlement, err := f.svc.SettleJobDebt(ctx, job.ID, 5000)
	require.NoError(t, err)
	assert.Equal(t, jobdomain.StatusCompletedEventual, settlement.Job.Status)
	assert.Equal(t, int64(3000), settlement.AppliedSats)
	assert.Equal(t, int64(2000), settlement.SurplusSats)
	assert.Zero(t, settlement.RemainingDebt)
	assert.Zero(t, f.debt(t, user.ID))

	// Surplus is never credited to the balance.
	balance, err := f.ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	_, err = f.svc.SettleJobDebt(ctx, job.ID, 1000)
	assert.ErrorIs(t, err, jobdomain.ErrJobNotReneged)
	assert.True(t, apperror.IsConflict(err))

	// Late payment is only reachable through settlement.
	other := f.create(t, user.ID, 1000)
	_, err = f.svc.UpdateStatus(ctx, other.ID, jobdomain.StatusCompletedReneged, jobdomain.UpdateStatusOptions{})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, other.ID, jobdomain.StatusCompletedEventual, jobdomain.UpdateStatusOptions{})
	assert.ErrorIs(t, err, jobdomain.ErrInvalidTransition)
}

func TestSettlePaidJobConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)
	job := f.create(t, user.ID, 3000)

	_, err := f.svc.UpdateStatus(ctx, job.ID, jobdomain.StatusCompletedPaid, jobdomain.UpdateStatusOptions{})
	require.NoError(t, err)

	_, err = f.svc.SettleJobDebt(ctx, job.ID, 3000)
	assert.True(t, apperror.IsConflict(err))
	assert.Zero(t, f.debt(t, user.ID))
}

func TestStatusMachine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)
	job := f.create(t, user.ID, 0)

	_, err := f.svc.UpdateStatus(ctx, job.ID, jobdomain.StatusActive, jobdomain.UpdateStatusOptions{})
	assert.ErrorIs(t, err, jobdomain.ErrInvalidTransition)

	for _, status := range []jobdomain.Status{
		jobdomain.StatusSnoozed,
		jobdomain.StatusPending,
		jobdomain.StatusDispatched,
		jobdomain.StatusActive,
		jobdomain.StatusAwaitingOTP,
		jobdomain.StatusActive,
		jobdomain.StatusCompletedPaid,
	} {
		updated, err := f.svc.UpdateStatus(ctx, job.ID, status, jobdomain.UpdateStatusOptions{})
		require.NoError(t, err, "transition to %s", status)
		assert.Equal(t, status, updated.Status)
	}

	_, err = f.svc.UpdateStatus(ctx, job.ID, jobdomain.StatusFailed, jobdomain.UpdateStatusOptions{})
	assert.ErrorIs(t, err, jobdomain.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, job.ID, jobdomain.Status("exploded"), jobdomain.UpdateStatusOptions{})
	assert.ErrorIs(t, err, jobdomain.ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(ctx, f.node.Generate(), jobdomain.StatusFailed, jobdomain.UpdateStatusOptions{})
	assert.ErrorIs(t, err, jobdomain.ErrJobNotFound)
}

func TestCredentialFailuresReachAbuseGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	testutil.SeedService(t, f.db, "netflix", 1549)
	user := testutil.SeedUser(t, f.db, f.node, 0)

	for i := 0; i < 3; i++ {
		job := f.create(t, user.ID, 0)
		_, err := f.svc.UpdateStatus(ctx, job.ID, jobdomain.StatusFailed, jobdomain.UpdateStatusOptions{
			FailureReason: jobdomain.FailureCredentialInvalid,
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.notifier.count())

	other := f.create(t, user.ID, 0)
	updated, err := f.svc.UpdateStatus(ctx, other.ID, jobdomain.StatusFailed, jobdomain.UpdateStatusOptions{FailureReason: "timeout"})
	require.NoError(t, err)
	require.NotNil(t, updated.FailureReason)
	assert.Equal(t, "timeout", *updated.FailureReason)

	count, err := f.abuse.FailureCount(ctx, user.ID, "netflix")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	operator := userdomain.Principal{UserID: f.node.Generate(), Role: userdomain.RoleOperator}
	alerts, err := f.abuse.ListAlerts(ctx, operator, abusedomain.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestCreateValidatesAndGates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)

	_, err := f.svc.Create(ctx, jobdomain.CreateJobRequest{UserID: user.ID, ServiceID: "netflix", Action: "dance", Trigger: jobdomain.TriggerOnDemand})
	assert.ErrorIs(t, err, jobdomain.ErrInvalidAction)

	_, err = f.svc.Create(ctx, jobdomain.CreateJobRequest{UserID: user.ID, ServiceID: "netflix", Action: jobdomain.ActionCancel, Trigger: "whenever"})
	assert.ErrorIs(t, err, jobdomain.ErrInvalidTrigger)

	for i := 0; i < 5; i++ {
		job, err := f.svc.Create(ctx, jobdomain.CreateJobRequest{
			UserID:    user.ID,
			ServiceID: "netflix",
			Action:    jobdomain.ActionResume,
			Trigger:   jobdomain.TriggerOnDemand,
		})
		require.NoError(t, err)
		assert.Equal(t, jobdomain.StatusPending, job.Status)
		f.clock.Advance(time.Minute)
	}

	_, err = f.svc.Create(ctx, jobdomain.CreateJobRequest{
		UserID:    user.ID,
		ServiceID: "netflix",
		Action:    jobdomain.ActionResume,
		Trigger:   jobdomain.TriggerOnDemand,
	})
	assert.True(t, apperror.IsRateLimited(err))
}
