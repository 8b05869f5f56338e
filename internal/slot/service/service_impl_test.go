package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogrepository "github.com/smallbiznis/rotation/internal/catalog/repository"
	"github.com/smallbiznis/rotation/internal/clock"
	credentialrepository "github.com/smallbiznis/rotation/internal/credential/repository"
	jobdomain "github.com/smallbiznis/rotation/internal/job/domain"
	jobrepository "github.com/smallbiznis/rotation/internal/job/repository"
	ledgerdomain "github.com/smallbiznis/rotation/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/rotation/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/rotation/internal/ledger/service"
	marginservice "github.com/smallbiznis/rotation/internal/margin/service"
	"github.com/smallbiznis/rotation/internal/pricing"
	"github.com/smallbiznis/rotation/internal/providers/giftcard"
	"github.com/smallbiznis/rotation/internal/providers/payment"
	queuedomain "github.com/smallbiznis/rotation/internal/queue/domain"
	queuerepository "github.com/smallbiznis/rotation/internal/queue/repository"
	queueservice "github.com/smallbiznis/rotation/internal/queue/service"
	slotdomain "github.com/smallbiznis/rotation/internal/slot/domain"
	slotrepository "github.com/smallbiznis/rotation/internal/slot/repository"
	subscriptiondomain "github.com/smallbiznis/rotation/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/rotation/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/rotation/internal/subscription/service"
	"github.com/smallbiznis/rotation/internal/testutil"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	userrepository "github.com/smallbiznis/rotation/internal/user/repository"
	"github.com/smallbiznis/rotation/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeGiftCards struct {
	mu        sync.Mutex
	err       error
	purchases []giftcard.PurchaseRequest
}

func (f *fakeGiftCards) PurchaseGiftCard(ctx context.Context, req giftcard.PurchaseRequest) (*giftcard.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.purchases = append(f.purchases, req)
	return &giftcard.Purchase{
		OrderID:     fmt.Sprintf("order-%d", len(f.purchases)),
		ServiceID:   req.ServiceID,
		AmountCents: req.AmountCents,
		AmountSats:  req.AmountSats,
	}, nil
}

func (f *fakeGiftCards) FetchGiftCardCode(ctx context.Context, orderID string) (string, error) {
	return "", giftcard.ErrPending
}

func (f *fakeGiftCards) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeGiftCards) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.purchases)
}

type fixture struct {
	db            *gorm.DB
	node          *snowflake.Node
	clock         *clock.FakeClock
	giftCards     *fakeGiftCards
	ledger        ledgerdomain.Service
	queue         queuedomain.Service
	subscriptions subscriptiondomain.Service
	svc           slotdomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	giftCards := &fakeGiftCards{}

	// 1000 sats per dollar: netflix 25000, hulu 10000, max 20000 sats.
	testutil.SeedService(t, db, "netflix", 2500)
	testutil.SeedService(t, db, "hulu", 1000)
	testutil.SeedService(t, db, "max", 2000)

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
	queue := queueservice.NewService(queueservice.Params{
		DB:             db,
		Log:            log,
		GenID:          node,
		Clock:          clk,
		Repo:           queuerepository.Provide(),
		UserRepo:       userrepository.Provide(),
		CatalogRepo:    catalogrepository.Provide(),
		JobRepo:        jobrepository.Provide(),
		CredentialRepo: credentialrepository.Provide(),
	})
	subscriptions := subscriptionservice.NewService(subscriptionservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  subscriptionrepository.Provide(),
	})
	margin := marginservice.NewService(marginservice.Params{
		DB:          db,
		Log:         log,
		Config:      marginservice.Config{ProviderTimeout: time.Second},
		QueueRepo:   queuerepository.Provide(),
		SlotRepo:    slotrepository.Provide(),
		CatalogRepo: catalogrepository.Provide(),
		Ledger:      ledger,
		Oracle:      pricing.FixedRateOracle{SatsPerUSD: 1000},
		Fees:        pricing.StaticFee(4400),
	})
	svc := NewService(Params{
		DB:               db,
		Log:              log,
		GenID:            node,
		Clock:            clk,
		Config:           Config{ProviderTimeout: time.Second, SubscriptionPeriodDays: 30},
		Repo:             slotrepository.Provide(),
		UserRepo:         userrepository.Provide(),
		QueueRepo:        queuerepository.Provide(),
		Queue:            queue,
		SubscriptionRepo: subscriptionrepository.Provide(),
		Subscriptions:    subscriptions,
		Ledger:           ledger,
		Margin:           margin,
		GiftCards:        giftCards,
	})
	return fixture{
		db:            db,
		node:          node,
		clock:         clk,
		giftCards:     giftCards,
		ledger:        ledger,
		queue:         queue,
		subscriptions: subscriptions,
		svc:           svc,
	}
}

// setupUser seeds a user with one slot, the given queue and a prepaid balance.
func (f fixture) setupUser(t *testing.T, balance int64, services ...string) *userdomain.User {
	t.Helper()
	ctx := context.Background()
	user := testutil.SeedUser(t, f.db, f.node, 0)
	_, err := f.svc.EnsureSlots(ctx, user.ID)
	require.NoError(t, err)
	for _, id := range services {
		_, err := f.queue.Enqueue(ctx, user.ID, id)
		require.NoError(t, err)
	}
	if balance > 0 {
		f.topUp(t, user.ID, balance)
	}
	return user
}

func (f fixture) topUp(t *testing.T, userID snowflake.ID, amount int64) {
	t.Helper()
	_, err := f.ledger.Record(context.Background(), nil, ledgerdomain.RecordRequest{
		UserID:     userID,
		Type:       ledgerdomain.TypePrepayment,
		AmountSats: amount,
	})
	require.NoError(t, err)
}

func (f fixture) balance(t *testing.T, userID snowflake.ID) int64 {
	t.Helper()
	balance, err := f.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return balance
}

func queueOrder(t *testing.T, q queuedomain.Service, userID snowflake.ID) []string {
	t.Helper()
	entries, err := q.List(context.Background(), userID)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for i, e := range entries {
		require.Equal(t, i+1, e.Position)
		out = append(out, e.ServiceID)
	}
	return out
}

func TestEnsureSlotsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)
	require.NoError(t, f.db.Model(&userdomain.User{}).Where("id = ?", user.ID).Update("slot_capacity", 2).Error)

	slots, err := f.svc.EnsureSlots(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 1, slots[0].SlotNumber)
	assert.Equal(t, 2, slots[1].SlotNumber)

	slots, err = f.svc.EnsureSlots(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, slots, 2)

	_, err = f.svc.EnsureSlots(ctx, f.node.Generate())
	assert.ErrorIs(t, err, slotdomain.ErrUserNotFound)
}

func TestLockInAdvancesIntoEmptySlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.setupUser(t, 40000, "netflix", "hulu")

	result, err := f.svc.LockIn(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, slotdomain.OutcomeAdvanced, result.Outcome)
	assert.Equal(t, "netflix", result.ServiceID)
	assert.Empty(t, result.RetiredService)
	assert.Equal(t, int64(29400), result.ChargedSats)
	assert.Equal(t, "order-1", result.GiftCardOrderID)
	assert.Equal(t, "netflix", result.Slot.Current())
	assert.Equal(t, "hulu", result.Slot.Next())
	require.NotNil(t, result.Slot.LockedAt)

	assert.Equal(t, int64(40000-29400), f.balance(t, user.ID))
	assert.Equal(t, []string{"netflix", "hulu"}, queueOrder(t, f.queue, user.ID))

	sub, err := f.subscriptions.Get(ctx, user.ID, "netflix")
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusSignupScheduled, sub.Status)
	require.NotNil(t, sub.SubscriptionEndDate)
	assert.True(t, sub.SubscriptionEndDate.Equal(f.clock.Now().AddDate(0, 0, 30)))

	history, err := f.ledger.History(ctx, user.ID, 10)
	require.NoError(t, err)
	types := map[ledgerdomain.TransactionType]int64{}
	for _, row := range history {
		types[row.Type] += row.AmountSats
	}
	assert.Equal(t, int64(-25000), types[ledgerdomain.TypeGiftCardPurchase])
	assert.Equal(t, int64(-4400), types[ledgerdomain.TypePlatformFee])
}

func TestLockInDefersOnShortfall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.setupUser(t, 10000, "netflix")

	result, err := f.svc.LockIn(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, slotdomain.OutcomeDeferred, result.Outcome)
	assert.Equal(t, int64(19400), result.ShortfallSats)
	assert.Empty(t, result.Slot.Current())

	assert.Equal(t, int64(10000), f.balance(t, user.ID))
	assert.Zero(t, f.giftCards.count())

	views, err := f.svc.Describe(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, slotdomain.StateFunding, views[0].State)
	assert.Equal(t, int64(19400), views[0].ShortfallSats)
}

func TestLockInRetiresCurrentService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.setupUser(t, 29400, "netflix", "hulu", "max")

	_, err := f.svc.LockIn(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Zero(t, f.balance(t, user.ID))

	views, err := f.svc.Describe(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, slotdomain.StateAdvancePending, views[0].State)
	assert.Equal(t, int64(14400), views[0].ShortfallSats)

	f.topUp(t, user.ID, 14400)
	f.clock.Advance(30 * 24 * time.Hour)

	result, err := f.svc.LockIn(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, slotdomain.OutcomeAdvanced, result.Outcome)
	assert.Equal(t, "hulu", result.ServiceID)
	assert.Equal(t, "netflix", result.RetiredService)
	assert.Equal(t, int64(14400), result.ChargedSats)
	assert.Equal(t, "max", result.Slot.Next())

	assert.Equal(t, []string{"hulu", "max"}, queueOrder(t, f.queue, user.ID))

	retired, err := f.subscriptions.Get(ctx, user.ID, "netflix")
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusCancelScheduled, retired.Status)

	promoted, err := f.subscriptions.Get(ctx, user.ID, "hulu")
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusSignupScheduled, promoted.Status)
}

func TestLockInConflictsOnOpenJobForRetiringService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.setupUser(t, 29400+14400, "netflix", "hulu")

	_, err := f.svc.LockIn(ctx, user.ID, 1)
	require.NoError(t, err)

	now := f.clock.Now()
	require.NoError(t, jobrepository.Provide().Insert(ctx, f.db, &jobdomain.Job{
		ID:        f.node.Generate(),
		UserID:    user.ID,
		ServiceID: "netflix",
		Action:    jobdomain.ActionSignup,
		Trigger:   jobdomain.TriggerScheduled,
		Status:    jobdomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	_, err = f.svc.LockIn(ctx, user.ID, 1)
	assert.True(t, apperror.IsConflict(err))

	assert.Equal(t, int64(14400), f.balance(t, user.ID))
	assert.Equal(t, []string{"netflix", "hulu"}, queueOrder(t, f.queue, user.ID))
	assert.Equal(t, 1, f.giftCards.count())
}

func TestLockInIdleWithoutQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.setupUser(t, 50000)

	result, err := f.svc.LockIn(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, slotdomain.OutcomeIdle, result.Outcome)
	assert.Equal(t, int64(50000), f.balance(t, user.ID))

	_, err = f.svc.LockIn(ctx, user.ID, 2)
	assert.ErrorIs(t, err, slotdomain.ErrSlotNotFound)

	_, err = f.svc.LockIn(ctx, user.ID, 0)
	assert.ErrorIs(t, err, slotdomain.ErrInvalidSlotNumber)

	views, err := f.svc.Describe(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, slotdomain.StateEmpty, views[0].State)
}

func TestLockInLocksUserRowBeforeSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.setupUser(t, 40000, "netflix")

	var (
		mu     sync.Mutex
		tables []string
	)
	record := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if !strings.Contains(sql, "FOR UPDATE") {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch {
		case strings.Contains(sql, "FROM users"):
			tables = append(tables, "users")
		case strings.Contains(sql, "FROM rotation_slots"):
			tables = append(tables, "rotation_slots")
		}
	}
	require.NoError(t, f.db.Callback().Row().Before("sqlite_strip_locks_row").Register("record_row_locks", record))
	require.NoError(t, f.db.Callback().Query().Before("sqlite_strip_locks").Register("record_query_locks", record))

	_, err := f.svc.LockIn(ctx, user.ID, 1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(tables), 2)
	assert.Equal(t, []string{"users", "rotation_slots"}, tables[:2])

	_, err = f.svc.LockIn(ctx, f.node.Generate(), 1)
	assert.ErrorIs(t, err, slotdomain.ErrUserNotFound)
}

func TestLockInAcrossSlotsNeverPromotesTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.setupUser(t, 29400, "netflix", "hulu")
	require.NoError(t, f.db.Model(&userdomain.User{}).Where("id = ?", user.ID).Update("slot_capacity", 2).Error)
	_, err := f.svc.EnsureSlots(ctx, user.ID)
	require.NoError(t, err)

	first, err := f.svc.LockIn(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, slotdomain.OutcomeAdvanced, first.Outcome)
	assert.Equal(t, "netflix", first.ServiceID)

	second, err := f.svc.LockIn(ctx, user.ID, 2)
	require.NoError(t, err)
	assert.NotEqual(t, slotdomain.OutcomeAdvanced, second.Outcome)
	assert.NotEqual(t, "netflix", second.Slot.Current())

	assert.Equal(t, 1, f.giftCards.count())
	assert.Zero(t, f.balance(t, user.ID))
}

func TestRequestStay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.setupUser(t, 29400, "netflix", "hulu")

	err := f.svc.RequestStay(ctx, user.ID, "netflix")
	assert.ErrorIs(t, err, slotdomain.ErrSubscriptionNotLive)

	_, err = f.svc.LockIn(ctx, user.ID, 1)
	require.NoError(t, err)

	// Still signup_scheduled until the signup job completes.
	err = f.svc.RequestStay(ctx, user.ID, "netflix")
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.subscriptions.SetStatus(ctx, user.ID, "netflix", subscriptiondomain.StatusActive)
	require.NoError(t, err)
	require.NoError(t, f.svc.RequestStay(ctx, user.ID, "netflix"))

	entries, err := f.queue.List(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, queuedomain.FindService(entries, "netflix").ExtendCurrent)

	_, err = f.subscriptions.Schedule(ctx, nil, user.ID, "max", subscriptiondomain.StatusLapsing)
	require.NoError(t, err)
	err = f.svc.RequestStay(ctx, user.ID, "max")
	assert.ErrorIs(t, err, slotdomain.ErrQueueEntryNotFound)
}

func TestLockInExtendRollsBackOnProviderFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.setupUser(t, 29400, "netflix", "hulu")

	_, err := f.svc.LockIn(ctx, user.ID, 1)
	require.NoError(t, err)
	_, err = f.subscriptions.SetStatus(ctx, user.ID, "netflix", subscriptiondomain.StatusActive)
	require.NoError(t, err)
	require.NoError(t, f.svc.RequestStay(ctx, user.ID, "netflix"))

	_, err = f.svc.LockIn(ctx, user.ID, 1)
	assert.ErrorIs(t, err, slotdomain.ErrInsufficientFunds)
	assert.True(t, apperror.IsInsufficientFunds(err))

	views, err := f.svc.Describe(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, slotdomain.StateExtendRequested, views[0].State)
	assert.Equal(t, int64(29400), views[0].ShortfallSats)

	f.topUp(t, user.ID, 29400)
	f.giftCards.fail(errors.New("upstream unavailable"))

	_, err = f.svc.LockIn(ctx, user.ID, 1)
	require.Error(t, err)
	assert.True(t, apperror.IsProviderError(err))

	assert.Equal(t, int64(29400), f.balance(t, user.ID))
	entries, err := f.queue.List(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, queuedomain.FindService(entries, "netflix").ExtendCurrent)

	before, err := f.subscriptions.Get(ctx, user.ID, "netflix")
	require.NoError(t, err)
	require.NotNil(t, before.SubscriptionEndDate)
	firstEnd := *before.SubscriptionEndDate

	f.giftCards.fail(nil)
	result, err := f.svc.LockIn(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, slotdomain.OutcomeExtended, result.Outcome)
	assert.Equal(t, "netflix", result.ServiceID)
	assert.Equal(t, int64(29400), result.ChargedSats)
	assert.Zero(t, f.balance(t, user.ID))

	entries, err = f.queue.List(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, queuedomain.FindService(entries, "netflix").ExtendCurrent)
	assert.Equal(t, []string{"netflix", "hulu"}, queueOrder(t, f.queue, user.ID))

	after, err := f.subscriptions.Get(ctx, user.ID, "netflix")
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusActive, after.Status)
	require.NotNil(t, after.SubscriptionEndDate)
	assert.True(t, after.SubscriptionEndDate.Equal(firstEnd.AddDate(0, 0, 30)))
}

func TestRefreshNextAssignsDistinctServices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)
	require.NoError(t, f.db.Model(&userdomain.User{}).Where("id = ?", user.ID).Update("slot_capacity", 2).Error)
	_, err := f.svc.EnsureSlots(ctx, user.ID)
	require.NoError(t, err)
	for _, id := range []string{"netflix", "hulu", "max"} {
		_, err := f.queue.Enqueue(ctx, user.ID, id)
		require.NoError(t, err)
	}

	slots, err := f.svc.RefreshNext(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "netflix", slots[0].Next())
	assert.Equal(t, "hulu", slots[1].Next())

	stored, err := slotrepository.Provide().Find(ctx, f.db, user.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "hulu", stored.Next())
}
