package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rotation/internal/clock"
	jobdomain "github.com/smallbiznis/rotation/internal/job/domain"
	jobrepository "github.com/smallbiznis/rotation/internal/job/repository"
	ledgerdomain "github.com/smallbiznis/rotation/internal/ledger/domain"
	"github.com/smallbiznis/rotation/internal/ledger/repository"
	"github.com/smallbiznis/rotation/internal/providers/payment"
	"github.com/smallbiznis/rotation/internal/testutil"
	userrepository "github.com/smallbiznis/rotation/internal/user/repository"
	"github.com/smallbiznis/rotation/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakePayments struct {
	requests []payment.CreateInvoiceRequest
}

func (f *fakePayments) CreateInvoice(ctx context.Context, req payment.CreateInvoiceRequest) (*payment.Invoice, error) {
	f.requests = append(f.requests, req)
	return &payment.Invoice{ID: "inv-1", AmountSats: req.AmountSats, PaymentRequest: "lnbc1", Memo: req.Memo}, nil
}

func (f *fakePayments) PayInvoice(ctx context.Context, paymentRequest string) (*payment.Payment, error) {
	return nil, payment.ErrNotConfigured
}

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	payments *fakePayments
	svc      ledgerdomain.Service
}

func newFixture(t *testing.T, payments payment.Provider) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	fake, _ := payments.(*fakePayments)
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Config:   Config{ProviderTimeout: time.Second},
		Repo:     repository.Provide(),
		UserRepo: userrepository.Provide(),
		JobRepo:  jobrepository.Provide(),
		Payments: payments,
	})
	return fixture{db: db, node: node, payments: fake, svc: svc}
}

func (f fixture) debt(t *testing.T, userID snowflake.ID) int64 {
	t.Helper()
	user, err := userrepository.Provide().FindByID(context.Background(), f.db, userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user.DebtSats
}

func TestBalanceIsSumOfSignedRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.Unconfigured{})
	user := testutil.SeedUser(t, f.db, f.node, 0)

	balance, err := f.svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	rows := []ledgerdomain.RecordRequest{
		{UserID: user.ID, Type: ledgerdomain.TypePrepayment, AmountSats: 50000},
		{UserID: user.ID, Type: ledgerdomain.TypeZapTopup, AmountSats: 1000},
		{UserID: user.ID, Type: ledgerdomain.TypeGiftCardPurchase, AmountSats: -25000},
		{UserID: user.ID, Type: ledgerdomain.TypePlatformFee, AmountSats: -4400},
		{UserID: user.ID, Type: ledgerdomain.TypeRefund, AmountSats: 400},
	}
	for _, req := range rows {
		_, err := f.svc.Record(ctx, nil, req)
		require.NoError(t, err)
	}

	balance, err = f.svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(22000), balance)

	history, err := f.svc.History(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, len(rows))

	_, err = f.svc.Balance(ctx, 0)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidUser)
}

func TestRecordRejectsWrongSign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.Unconfigured{})
	user := testutil.SeedUser(t, f.db, f.node, 0)

	cases := []ledgerdomain.RecordRequest{
		{UserID: user.ID, Type: ledgerdomain.TypePrepayment, AmountSats: -1},
		{UserID: user.ID, Type: ledgerdomain.TypePlatformFee, AmountSats: 4400},
		{UserID: user.ID, Type: ledgerdomain.TypeRefund, AmountSats: 0},
	}
	for _, req := range cases {
		_, err := f.svc.Record(ctx, nil, req)
		assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmountSign, "%s %d", req.Type, req.AmountSats)
	}

	_, err := f.svc.Record(ctx, nil, ledgerdomain.RecordRequest{UserID: user.ID, Type: "bonus", AmountSats: 10})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidTransactionType)

	balance, err := f.svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestRecordDebtOnlyFromNonTerminalPrior(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.Unconfigured{})
	user := testutil.SeedUser(t, f.db, f.node, 100)

	job := &jobdomain.Job{
		ID:         f.node.Generate(),
		UserID:     user.ID,
		ServiceID:  "netflix",
		Status:     jobdomain.StatusCompletedReneged,
		AmountSats: 3000,
	}

	charged, err := f.svc.RecordDebt(ctx, nil, job, jobdomain.StatusActive)
	require.NoError(t, err)
	assert.True(t, charged)
	assert.Equal(t, int64(3100), f.debt(t, user.ID))

	charged, err = f.svc.RecordDebt(ctx, nil, job, jobdomain.StatusCompletedReneged)
	require.NoError(t, err)
	assert.False(t, charged)

	paid := *job
	paid.Status = jobdomain.StatusCompletedPaid
	charged, err = f.svc.RecordDebt(ctx, nil, &paid, jobdomain.StatusActive)
	require.NoError(t, err)
	assert.False(t, charged)

	assert.Equal(t, int64(3100), f.debt(t, user.ID))
}

func TestSettleDebtFloorsAtZeroAndRecordsSurplus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.Unconfigured{})
	user := testutil.SeedUser(t, f.db, f.node, 3000)

	result, err := f.svc.SettleDebt(ctx, ledgerdomain.SettleRequest{UserID: user.ID, PaymentSats: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), result.AppliedSats)
	assert.Zero(t, result.SurplusSats)
	assert.Equal(t, int64(2000), result.RemainingDebt)

	result, err = f.svc.SettleDebt(ctx, ledgerdomain.SettleRequest{UserID: user.ID, PaymentSats: 5000})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), result.AppliedSats)
	assert.Equal(t, int64(3000), result.SurplusSats)
	assert.Zero(t, result.RemainingDebt)
	assert.Zero(t, f.debt(t, user.ID))

	balance, err := f.svc.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	payments, err := repository.Provide().ListDebtPayments(ctx, f.db, user.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	var surplus int64
	for _, p := range payments {
		surplus += p.SurplusSats
	}
	assert.Equal(t, int64(3000), surplus)

	_, err = f.svc.SettleDebt(ctx, ledgerdomain.SettleRequest{UserID: user.ID, PaymentSats: 0})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidPayment)

	_, err = f.svc.SettleDebt(ctx, ledgerdomain.SettleRequest{UserID: f.node.Generate(), PaymentSats: 10})
	assert.ErrorIs(t, err, ledgerdomain.ErrUserNotFound)
}

func TestCreateDebtInvoice(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, &fakePayments{})
	clean := testutil.SeedUser(t, f.db, f.node, 0)
	_, err := f.svc.CreateDebtInvoice(ctx, clean.ID)
	assert.ErrorIs(t, err, ledgerdomain.ErrNoDebt)

	owing := testutil.SeedUser(t, f.db, f.node, 4200)
	invoice, err := f.svc.CreateDebtInvoice(ctx, owing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), invoice.AmountSats)
	require.Len(t, f.payments.requests, 1)
	assert.Equal(t, "debt:"+owing.ID.String(), f.payments.requests[0].Reference)

	unconfigured := newFixture(t, payment.Unconfigured{})
	owing = testutil.SeedUser(t, unconfigured.db, unconfigured.node, 4200)
	_, err = unconfigured.svc.CreateDebtInvoice(ctx, owing.ID)
	assert.True(t, apperror.IsProviderError(err))
}
