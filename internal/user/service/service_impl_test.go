package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/rotation/internal/clock"
	"github.com/smallbiznis/rotation/internal/testutil"
	userdomain "github.com/smallbiznis/rotation/internal/user/domain"
	"github.com/smallbiznis/rotation/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (userdomain.Service, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewService(Params{
		DB:    testutil.NewDB(t),
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clk,
		Repo:  repository.Provide(),
	}), clk
}

func TestCreateUserDefaults(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	user, err := svc.Create(ctx, userdomain.CreateUserRequest{Email: "  Ada@Example.TEST "})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.test", user.Email)
	assert.Equal(t, userdomain.RoleUser, user.Role)
	assert.Equal(t, 1, user.SlotCapacity)
	assert.Zero(t, user.DebtSats)

	_, err = svc.Create(ctx, userdomain.CreateUserRequest{Email: "ada@example.test"})
	assert.ErrorIs(t, err, userdomain.ErrEmailTaken)

	_, err = svc.Create(ctx, userdomain.CreateUserRequest{Email: "root@example.test", Role: "root"})
	assert.ErrorIs(t, err, userdomain.ErrInvalidRole)

	_, err = svc.Create(ctx, userdomain.CreateUserRequest{Email: "x@example.test", SlotCapacity: -1})
	assert.ErrorIs(t, err, userdomain.ErrInvalidSlotCapacity)

	_, err = svc.Create(ctx, userdomain.CreateUserRequest{})
	assert.ErrorIs(t, err, userdomain.ErrInvalidEmail)
}

func TestPrincipalAndOnboarding(t *testing.T) {
	ctx := context.Background()
	svc, clk := newTestService(t)

	op, err := svc.Create(ctx, userdomain.CreateUserRequest{Email: "ops@example.test", Role: userdomain.RoleOperator, SlotCapacity: 2})
	require.NoError(t, err)

	principal, err := svc.Principal(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, userdomain.Principal{UserID: op.ID, Role: userdomain.RoleOperator}, principal)

	require.NoError(t, svc.MarkOnboarded(ctx, op.ID))
	first := clk.Now()
	clk.Advance(time.Hour)
	require.NoError(t, svc.MarkOnboarded(ctx, op.ID))

	got, err := svc.Get(ctx, op.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OnboardedAt)
	assert.True(t, got.OnboardedAt.Equal(first))

	_, err = svc.Get(ctx, op.ID+1)
	assert.ErrorIs(t, err, userdomain.ErrUserNotFound)
}
