package service

import (
	"context"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogrepository "github.com/smallbiznis/rotation/internal/catalog/repository"
	"github.com/smallbiznis/rotation/internal/clock"
	credentialdomain "github.com/smallbiznis/rotation/internal/credential/domain"
	credentialrepository "github.com/smallbiznis/rotation/internal/credential/repository"
	jobdomain "github.com/smallbiznis/rotation/internal/job/domain"
	jobrepository "github.com/smallbiznis/rotation/internal/job/repository"
	queuedomain "github.com/smallbiznis/rotation/internal/queue/domain"
	queuerepository "github.com/smallbiznis/rotation/internal/queue/repository"
	"github.com/smallbiznis/rotation/internal/testutil"
	userrepository "github.com/smallbiznis/rotation/internal/user/repository"
	"github.com/smallbiznis/rotation/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  queuedomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	for _, id := range []string{"netflix", "hulu", "max", "peacock"} {
		testutil.SeedService(t, db, id, 1549)
	}
	svc := NewService(Params{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          node,
		Clock:          clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Repo:           queuerepository.Provide(),
		UserRepo:       userrepository.Provide(),
		CatalogRepo:    catalogrepository.Provide(),
		JobRepo:        jobrepository.Provide(),
		CredentialRepo: credentialrepository.Provide(),
	})
	return fixture{db: db, node: node, svc: svc}
}

func positions(entries []queuedomain.RotationQueueEntry) map[string]int {
	out := make(map[string]int, len(entries))
	for _, e := range entries {
		out[e.ServiceID] = e.Position
	}
	return out
}

func TestEnqueueAppendsContiguously(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)

	for i, id := range []string{"netflix", "hulu", "max"} {
		entry, err := f.svc.Enqueue(ctx, user.ID, id)
		require.NoError(t, err)
		assert.Equal(t, i+1, entry.Position)
	}

	_, err := f.svc.Enqueue(ctx, user.ID, "hulu")
	assert.ErrorIs(t, err, queuedomain.ErrAlreadyQueued)

	_, err = f.svc.Enqueue(ctx, user.ID, "unknown")
	assert.True(t, apperror.IsNotFound(err))

	entries, err := f.svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"netflix": 1, "hulu": 2, "max": 3}, positions(entries))
}

func TestDequeueRenumbersAndDropsCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)

	for _, id := range []string{"netflix", "hulu", "max"} {
		_, err := f.svc.Enqueue(ctx, user.ID, id)
		require.NoError(t, err)
	}

	now := time.Now().UTC()
	require.NoError(t, credentialrepository.Provide().Upsert(ctx, f.db, &credentialdomain.StreamingCredential{
		ID:          f.node.Generate(),
		UserID:      user.ID,
		ServiceID:   "hulu",
		EmailEnc:    []byte("sealed-email"),
		PasswordEnc: []byte("sealed-password"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	require.NoError(t, f.svc.Dequeue(ctx, user.ID, "hulu"))

	entries, err := f.svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"netflix": 1, "max": 2}, positions(entries))

	cred, err := credentialrepository.Provide().Find(ctx, f.db, user.ID, "hulu")
	require.NoError(t, err)
	assert.Nil(t, cred)

	err = f.svc.Dequeue(ctx, user.ID, "hulu")
	assert.ErrorIs(t, err, queuedomain.ErrEntryNotFound)
}

func TestDequeueBlockedByOpenJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)

	_, err := f.svc.Enqueue(ctx, user.ID, "netflix")
	require.NoError(t, err)
	_, err = f.svc.Enqueue(ctx, user.ID, "hulu")
	require.NoError(t, err)

	now := time.Now().UTC()
	job := &jobdomain.Job{
		ID:        f.node.Generate(),
		UserID:    user.ID,
		ServiceID: "netflix",
		Action:    jobdomain.ActionCancel,
		Trigger:   jobdomain.TriggerScheduled,
		Status:    jobdomain.StatusDispatched,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, jobrepository.Provide().Insert(ctx, f.db, job))

	err = f.svc.Dequeue(ctx, user.ID, "netflix")
	assert.ErrorIs(t, err, queuedomain.ErrActiveJob)
	assert.True(t, apperror.IsConflict(err))

	entries, err := f.svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = jobrepository.Provide().UpdateStatus(ctx, f.db, job.ID, jobdomain.StatusDispatched, jobdomain.StatusCompletedPaid, nil, now)
	require.NoError(t, err)

	require.NoError(t, f.svc.Dequeue(ctx, user.ID, "netflix"))
	entries, err = f.svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"hulu": 1}, positions(entries))
}

func TestReorder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)

	for _, id := range []string{"netflix", "hulu", "max"} {
		_, err := f.svc.Enqueue(ctx, user.ID, id)
		require.NoError(t, err)
	}

	ordered, err := f.svc.Reorder(ctx, user.ID, []string{"max", "netflix", "hulu"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"max": 1, "netflix": 2, "hulu": 3}, positions(ordered))

	entries, err := f.svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "max", entries[0].ServiceID)
	assert.Equal(t, map[string]int{"max": 1, "netflix": 2, "hulu": 3}, positions(entries))

	_, err = f.svc.Reorder(ctx, user.ID, []string{"max", "max", "hulu"})
	assert.ErrorIs(t, err, queuedomain.ErrInvalidReorder)

	_, err = f.svc.Reorder(ctx, user.ID, []string{"max", "netflix"})
	assert.ErrorIs(t, err, queuedomain.ErrInvalidReorder)

	_, err = f.svc.Reorder(ctx, user.ID, []string{"max", "netflix", "peacock"})
	assert.ErrorIs(t, err, queuedomain.ErrInvalidReorder)
}

func TestHeadSkipsExcluded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)

	head, err := f.svc.Head(ctx, nil, user.ID)
	require.NoError(t, err)
	assert.Nil(t, head)

	for _, id := range []string{"netflix", "hulu"} {
		_, err := f.svc.Enqueue(ctx, user.ID, id)
		require.NoError(t, err)
	}

	head, err = f.svc.Head(ctx, nil, user.ID, "netflix")
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, "hulu", head.ServiceID)
}

func TestRandomEnqueueDequeueKeepsPositionsContiguous(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testutil.SeedUser(t, f.db, f.node, 0)

	catalog := []string{"netflix", "hulu", "max", "peacock", "paramount", "disney", "apple", "crunchyroll"}
	for _, id := range catalog[4:] {
		testutil.SeedService(t, f.db, id, 999)
	}

	rng := rand.New(rand.NewSource(42))
	var model []string
	for step := 0; step < 200; step++ {
		var waiting []string
		for _, id := range catalog {
			if !slices.Contains(model, id) {
				waiting = append(waiting, id)
			}
		}

		switch op := rng.Intn(5); {
		case op < 2 && len(waiting) > 0:
			id := waiting[rng.Intn(len(waiting))]
			entry, err := f.svc.Enqueue(ctx, user.ID, id)
			require.NoError(t, err, "step %d enqueue %s", step, id)
			model = append(model, id)
			assert.Equal(t, len(model), entry.Position)
		case op < 4 && len(model) > 0:
			i := rng.Intn(len(model))
			require.NoError(t, f.svc.Dequeue(ctx, user.ID, model[i]), "step %d dequeue %s", step, model[i])
			model = slices.Delete(model, i, i+1)
		case len(model) > 1:
			rng.Shuffle(len(model), func(i, j int) { model[i], model[j] = model[j], model[i] })
			_, err := f.svc.Reorder(ctx, user.ID, slices.Clone(model))
			require.NoError(t, err, "step %d reorder", step)
		}

		entries, err := f.svc.List(ctx, user.ID)
		require.NoError(t, err)
		got := make([]string, 0, len(entries))
		for i, e := range entries {
			require.Equal(t, i+1, e.Position, "step %d", step)
			got = append(got, e.ServiceID)
		}
		require.True(t, slices.Equal(model, got), "step %d: want %v, got %v", step, model, got)
	}
}
