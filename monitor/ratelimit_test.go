package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/mmdatafocus/moldpark_backend/models/modelstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldSendTrueThenFalseAfterASend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := modelstest.CreateUser(t, f.db)
	limiter := NewRateLimiter(f.store, modelstest.Clock)

	ok, err := limiter.ShouldSend(ctx, u.ID, KindPerformanceSuggestion, 7*day)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.store.CreateNotification(ctx, &models.Notification{
		RecipientID: u.ID,
		Kind:        string(KindPerformanceSuggestion),
		Category:    string(CategoryCenter),
		Severity:    "info",
		Verb:        Verb(KindPerformanceSuggestion),
		Unread:      true,
		Timestamp:   modelstest.Now,
	}))

	ok, err = limiter.ShouldSend(ctx, u.ID, KindPerformanceSuggestion, 7*day)
	require.NoError(t, err)
	assert.False(t, ok)

	// other kinds and other recipients are unaffected
	ok, err = limiter.ShouldSend(ctx, u.ID, KindWeeklyReport, 7*day)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = limiter.ShouldSend(ctx, u.ID+1, KindPerformanceSuggestion, 7*day)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestShouldSendAfterCooldownElapses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := modelstest.CreateUser(t, f.db)
	modelstest.CreateNotification(t, f.db, u.ID, string(KindStaleRevisions), modelstest.Ago(3*day), true)

	exact := NewRateLimiter(f.store, modelstest.Clock)
	ok, err := exact.ShouldSend(ctx, u.ID, KindStaleRevisions, 3*day)
	require.NoError(t, err)
	assert.True(t, ok, "now - last == cooldown is allowed")

	early := NewRateLimiter(f.store, func() time.Time { return modelstest.Now.Add(-time.Second) })
	ok, err = early.ShouldSend(ctx, u.ID, KindStaleRevisions, 3*day)
	require.NoError(t, err)
	assert.False(t, ok)
}

type historyFunc func(ctx context.Context, recipientID uint, kind string) (*time.Time, error)

func (h historyFunc) LastNotificationAt(ctx context.Context, recipientID uint, kind string) (*time.Time, error) {
	return h(ctx, recipientID, kind)
}

func TestShouldSendZeroCooldownSkipsLookup(t *testing.T) {
	called := false
	limiter := NewRateLimiter(historyFunc(func(context.Context, uint, string) (*time.Time, error) {
		called = true
		return nil, errors.New("unreachable")
	}), modelstest.Clock)

	ok, err := limiter.ShouldSend(context.Background(), 1, KindQuotaPressure, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, called)
}

func TestShouldSendPropagatesLookupErrors(t *testing.T) {
	limiter := NewRateLimiter(historyFunc(func(context.Context, uint, string) (*time.Time, error) {
		return nil, errors.New("db gone")
	}), modelstest.Clock)

	_, err := limiter.ShouldSend(context.Background(), 1, KindWeeklyReport, day)
	assert.Error(t, err)
}
