package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/mmdatafocus/moldpark_backend/models/modelstest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCache CacheState

func (c fixedCache) Check(context.Context) CacheState { return CacheState(c) }

type pingFailReader struct {
	Reader
}

func (pingFailReader) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }

func (f *fixture) statusService(reader Reader, opts ...StatusOption) *StatusService {
	sm := NewSystemMonitor(reader, f.cfg, f.logger, WithMonitorClock(modelstest.Clock))
	return NewStatusService(reader, f.store, sm, f.cfg, f.logger, append([]StatusOption{WithStatusClock(modelstest.Clock)}, opts...)...)
}

// seedStatus builds one center, one producer, an active network and six orders:
// two delivered, three received (one overdue) and one urgent in production.
func seedStatus(t *testing.T, f *fixture) (models.Center, models.Producer) {
	t.Helper()
	c := modelstest.CreateCenter(t, f.db, 10)
	p := modelstest.CreateProducer(t, f.db, 10)
	modelstest.CreateNetwork(t, f.db, p.ID, c.ID, models.NetworkStatusActive)
	modelstest.CreateMolds(t, f.db, c.ID, 9, modelstest.Ago(2*time.Hour))

	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 2,
		modelstest.Created(modelstest.Ago(5*day)),
		modelstest.Delivered(modelstest.Ago(day)),
		modelstest.Price("100.00"))
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 2)
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 1, modelstest.Estimated(modelstest.Ago(day)))
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 1,
		modelstest.Status(models.OrderStatusProduction),
		modelstest.Priority(models.OrderPriorityUrgent))
	return c, p
}

func TestSystemStatusCounts(t *testing.T) {
	f := newFixture(t)
	seedStatus(t, f)

	svc := f.statusService(f.store,
		WithStatusDisk(fixedDisk{usage: DiskUsage{TotalBytes: 100, FreeBytes: 15}}, "/"),
		WithCacheProbe(fixedCache(CacheHealthy)))
	st, err := svc.SystemStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, UserStats{Total: 2, Centers: 1, Producers: 1, VerifiedProducers: 1}, st.Users)
	assert.Equal(t, int64(6), st.Orders.Total)
	assert.Equal(t, int64(4), st.Orders.Active)
	assert.Equal(t, int64(2), st.Orders.Completed30d)
	assert.Equal(t, int64(3), st.Orders.Pending)
	assert.Equal(t, int64(1), st.Orders.Overdue)
	assert.True(t, decimal.NewFromInt(200).Equal(st.Orders.Revenue30d), "revenue %s", st.Orders.Revenue30d)
	assert.Equal(t, MoldStats{Total: 9, Created24h: 9, Created7d: 9, Created30d: 9}, st.Molds)
	assert.Equal(t, NetworkStats{Total: 1, Active: 1, HealthScore: 100}, st.Networks)
	assert.Equal(t, 4.0, st.Performance.AvgDeliveryDays)
	assert.Equal(t, 33.3, st.Performance.CompletionRate)
	assert.Zero(t, st.Performance.AvgQualityScore)

	assert.Equal(t, "connected", st.System.Database)
	assert.Equal(t, "healthy", st.System.Cache)
	assert.Equal(t, 85.0, st.System.DiskUsage)
	assert.Equal(t, 90, st.System.HealthScore)
	assert.Equal(t, HealthExcellent, st.System.Status)
	assert.Equal(t, Version, st.System.Version)
	assert.Empty(t, st.Critical)
}

func TestSystemStatusCountsQualityCheckAsActive(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 10)
	p := modelstest.CreateProducer(t, f.db, 10)
	modelstest.CreateNetwork(t, f.db, p.ID, c.ID, models.NetworkStatusActive)
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 3, modelstest.Status(models.OrderStatusQualityCheck))

	st, err := f.statusService(f.store, WithCacheProbe(fixedCache(CacheHealthy))).SystemStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), st.Orders.Active)
	assert.Zero(t, st.Orders.Completed30d)
	assert.Equal(t, 90, st.System.HealthScore)
	require.Len(t, st.System.Penalties, 1)
	assert.Equal(t, 10, st.System.Penalties[0].Points)
}

func TestSystemStatusCriticalItems(t *testing.T) {
	f := newFixture(t)
	_, p := seedStatus(t, f)
	modelstest.Elevate(t, f.db, p.UserID)

	st, err := f.statusService(f.store, WithCacheProbe(fixedCache(CacheMismatch))).SystemStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, st.Critical, 1)
	assert.Equal(t, KindSecurityRisk, st.Critical[0].Kind)
	assert.Equal(t, "warning", st.System.Cache)
	// privileged producer and cache mismatch
	assert.Equal(t, 65, st.System.HealthScore)
	assert.Equal(t, HealthWarning, st.System.Status)
}

func TestSystemStatusDatabaseDown(t *testing.T) {
	f := newFixture(t)
	st, err := f.statusService(pingFailReader{Reader: f.store}).SystemStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unreachable", st.System.Database)
	require.Len(t, st.Critical, 1)
	assert.Equal(t, KindDataAccess, st.Critical[0].Kind)
	assert.Equal(t, 70, st.System.HealthScore)
	require.Len(t, st.System.Penalties, 1)
	assert.Equal(t, 30, st.System.Penalties[0].Points)
}

func TestPipeline(t *testing.T) {
	f := newFixture(t)
	seedStatus(t, f)

	pl, err := f.statusService(f.store).Pipeline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), pl.TotalActiveOrders)
	require.Len(t, pl.Stages, len(models.PipelineStages))
	assert.Equal(t, PipelineStage{Stage: "Received Orders", StageCode: models.OrderStatusReceived, Count: 3, Percentage: 75}, pl.Stages[0])
	assert.Equal(t, PipelineStage{Stage: "In Production", StageCode: models.OrderStatusProduction, Count: 1, Percentage: 25}, pl.Stages[2])
	assert.Zero(t, pl.Stages[1].Count)
	assert.True(t, pl.LastUpdated.Equal(modelstest.Now))
}

func TestPipelineEmpty(t *testing.T) {
	f := newFixture(t)
	pl, err := f.statusService(f.store).Pipeline(context.Background())
	require.NoError(t, err)
	for _, s := range pl.Stages {
		assert.Zero(t, s.Percentage)
	}
}

func TestAlerts(t *testing.T) {
	f := newFixture(t)
	_, p := seedStatus(t, f)
	other := modelstest.CreateCenter(t, f.db, 10)
	modelstest.CreateNetwork(t, f.db, p.ID, other.ID, models.NetworkStatusSuspended)
	pending := modelstest.CreateProducer(t, f.db, 10)
	require.NoError(t, f.db.Model(&models.Producer{}).Where("id = ?", pending.ID).Update("is_verified", false).Error)

	al, err := f.statusService(f.store).Alerts(context.Background())
	require.NoError(t, err)
	titles := make(map[string]Alert)
	for _, a := range al.Alerts {
		titles[a.Title] = a
	}
	assert.Equal(t, 4, al.TotalAlerts)
	assert.Equal(t, 2, al.HighPriority)
	assert.Equal(t, "medium", titles["Overdue Orders"].Priority)
	assert.Equal(t, int64(1), titles["Suspended Networks"].Count)
	assert.Equal(t, "low", titles["Producers Awaiting Verification"].Priority)
	assert.Equal(t, int64(1), titles["Urgent Orders"].Count)
	assert.NotContains(t, titles, "Security Risk")
}

func TestAlertsEmptyIsNotNil(t *testing.T) {
	f := newFixture(t)
	al, err := f.statusService(f.store).Alerts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, al.Alerts)
	assert.Zero(t, al.TotalAlerts)
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	out, err := f.statusService(f.store).HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "MoldPark system monitor")
	assert.Contains(t, out, "System healthy, no issues detected.")

	_, err = f.statusService(pingFailReader{Reader: f.store}).HealthCheck(context.Background())
	assert.ErrorIs(t, err, ErrDatabaseDown)
}

func TestNotificationStatusForCenter(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 10)
	modelstest.CreateMolds(t, f.db, c.ID, 10, modelstest.Ago(8*day))
	modelstest.CreateNotification(t, f.db, c.UserID, string(KindQuotaPressure), modelstest.Ago(time.Hour), true)
	modelstest.CreateNotification(t, f.db, c.UserID, string(KindQuotaPressure), modelstest.Ago(2*time.Hour), false)
	modelstest.CreateNotification(t, f.db, c.UserID, string(KindCenterInactive), modelstest.Ago(3*day), true)

	ns, err := f.statusService(f.store).NotificationStatus(context.Background(), c.UserID, false)
	require.NoError(t, err)
	assert.Nil(t, ns.System)
	assert.Equal(t, int64(2), ns.User.Total24h)
	assert.Equal(t, int64(1), ns.User.Unread)
	assert.Equal(t, map[string]int64{string(KindQuotaPressure): 2}, ns.User.Kinds)
	require.Len(t, ns.User.Suggestions, 2)
	assert.Equal(t, Suggestion{Type: "limit_warning", Message: "You have used 100% of your mold limit", Priority: "high"}, ns.User.Suggestions[0])
	assert.Equal(t, "inactive_warning", ns.User.Suggestions[1].Type)
	assert.Contains(t, ns.User.Suggestions[1].Message, "8 days")
}

func TestNotificationStatusForProducerAndAdmin(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 10)
	p := modelstest.CreateProducer(t, f.db, 100)
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 6)
	admin := modelstest.CreateAdmin(t, f.db)
	modelstest.CreateNotification(t, f.db, p.UserID, string(KindPendingBacklog), modelstest.Ago(time.Hour), true)
	modelstest.CreateNotification(t, f.db, admin.ID, string(KindWeeklyReport), modelstest.Ago(time.Hour), true)

	svc := f.statusService(f.store)
	ns, err := svc.NotificationStatus(context.Background(), p.UserID, false)
	require.NoError(t, err)
	require.Len(t, ns.User.Suggestions, 1)
	assert.Equal(t, Suggestion{Type: "pending_orders", Message: "6 orders are waiting", Priority: "high"}, ns.User.Suggestions[0])

	ns, err = svc.NotificationStatus(context.Background(), admin.ID, true)
	require.NoError(t, err)
	assert.NotNil(t, ns.User.Suggestions)
	assert.Empty(t, ns.User.Suggestions)
	require.NotNil(t, ns.System)
	assert.Equal(t, int64(2), ns.System.Total24h)
	assert.Equal(t, int64(2), ns.System.Unread)
}
