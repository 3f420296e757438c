package usage

import (
	"context"
	"testing"
	"time"

	"wordpilot/internal/shared/model"
	sqlitedriver "wordpilot/internal/shared/storage/driver/sqlite"
	"wordpilot/internal/shared/storage/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) (*Tracker, *repository.Store) {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := repository.NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })
	return NewTracker(store), store
}

func createSubscription(t *testing.T, store *repository.Store, userID string, active bool, used, limit int64) {
	t.Helper()
	now := time.Now().Truncate(time.Second)
	require.NoError(t, store.CreateSubscription(context.Background(), &model.Subscription{
		ID: "sub-" + userID, UserID: userID, Plan: "pro", Active: active,
		TokensUsed: used, TokensLimit: limit,
		CreatedAt: now, UpdatedAt: now,
	}))
}

func TestTrackRecordsUsage(t *testing.T) {
	tracker, store := newTestTracker(t)
	ctx := context.Background()
	createSubscription(t, store, "user-1", true, 0, 10000)

	require.NoError(t, tracker.Track(ctx, "user-1", 500))
	require.NoError(t, tracker.Track(ctx, "user-1", 300))

	sub, err := store.GetSubscriptionByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(800), sub.TokensUsed)
}

func TestTrackLimitExceeded(t *testing.T) {
	tracker, store := newTestTracker(t)
	ctx := context.Background()
	createSubscription(t, store, "user-1", true, 9900, 10000)

	err := tracker.Track(ctx, "user-1", 500)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLimitExceeded)

	// 用量先入账再校验：超限调用的消耗仍被计入
	sub, _ := store.GetSubscriptionByUser(ctx, "user-1")
	assert.Equal(t, int64(10400), sub.TokensUsed)
}

func TestTrackNoSubscription(t *testing.T) {
	tracker, _ := newTestTracker(t)

	err := tracker.Track(context.Background(), "user-unknown", 100)
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestTrackInactiveSubscription(t *testing.T) {
	tracker, store := newTestTracker(t)
	createSubscription(t, store, "user-1", false, 0, 10000)

	err := tracker.Track(context.Background(), "user-1", 100)
	assert.ErrorIs(t, err, ErrInactive)

	// 未生效订阅不入账
	sub, _ := store.GetSubscriptionByUser(context.Background(), "user-1")
	assert.Equal(t, int64(0), sub.TokensUsed)
}
