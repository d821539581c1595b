package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/mmdatafocus/moldpark_backend/models/modelstest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenterPassInactiveNearQuotaWithStaleRevision(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 10)
	modelstest.CreateMolds(t, f.db, c.ID, 9, modelstest.Ago(40*day))
	modelstest.CreateRevision(t, f.db, c.ID, models.RevisionStatusPending, modelstest.Ago(5*day))

	res := f.evaluator().Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeAll}, nil)
	require.Zero(t, res.Failures)
	assert.Equal(t, 1, res.Subjects)

	got := byKind(res.Findings)
	require.Len(t, got[KindCenterInactive], 1)
	assert.Equal(t, int64(40), got[KindCenterInactive][0].Count)
	assert.Equal(t, AudienceOwner, got[KindCenterInactive][0].Audience)

	require.Len(t, got[KindCenterInactiveAdmin], 1)
	assert.Equal(t, SeverityWarning, got[KindCenterInactiveAdmin][0].Severity)
	assert.Equal(t, AudienceAdmins, got[KindCenterInactiveAdmin][0].Audience)

	require.Len(t, got[KindQuotaPressure], 1)
	quota := got[KindQuotaPressure][0]
	assert.Equal(t, 90.0, quota.Percent)
	assert.Equal(t, int64(1), quota.Count)
	assert.Contains(t, quota.Message, "90%")
	assert.Contains(t, quota.Message, "1 molds remaining")

	require.Len(t, got[KindStaleRevisions], 1)
	assert.Equal(t, int64(1), got[KindStaleRevisions][0].Count)

	assert.Empty(t, got[KindOrdersCompleted])
	assert.Empty(t, got[KindPerformanceSuggestion])
	assert.Len(t, res.Findings, 4)
}

func TestQuotaPressureReportsRemaining(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 100)
	modelstest.CreateMolds(t, f.db, c.ID, 85, modelstest.Ago(day))

	res := f.evaluator().Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeAll}, nil)
	quota := byKind(res.Findings)[KindQuotaPressure]
	require.Len(t, quota, 1)
	assert.Equal(t, "You have used 85% of your mold limit. 15 molds remaining.", quota[0].Message)
	assert.Equal(t, int64(15), quota[0].Count)
	assert.Equal(t, SeverityInfo, quota[0].Severity)
	assert.Empty(t, byKind(res.Findings)[KindCenterInactive])
}

func TestQuotaBelowThresholdAndExceeded(t *testing.T) {
	f := newFixture(t)
	below := modelstest.CreateCenter(t, f.db, 10)
	modelstest.CreateMolds(t, f.db, below.ID, 7, modelstest.Ago(day))
	over := modelstest.CreateCenter(t, f.db, 5)
	modelstest.CreateMolds(t, f.db, over.ID, 6, modelstest.Ago(day))

	ev := f.evaluator()
	res := ev.Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeCenter, CenterID: below.ID}, nil)
	assert.Empty(t, byKind(res.Findings)[KindQuotaPressure])

	res = ev.Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeCenter, CenterID: over.ID}, nil)
	quota := byKind(res.Findings)[KindQuotaPressure]
	require.Len(t, quota, 1)
	assert.Equal(t, SeverityWarning, quota[0].Severity)
	assert.Equal(t, int64(1), quota[0].Count)
	assert.Equal(t, "You have used 120% of your mold limit. 1 molds over the limit.", quota[0].Message)
}

func TestQuotaAtLimitReportsZeroRemaining(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 5)
	modelstest.CreateMolds(t, f.db, c.ID, 5, modelstest.Ago(day))

	res := f.evaluator().Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeAll}, nil)
	quota := byKind(res.Findings)[KindQuotaPressure]
	require.Len(t, quota, 1)
	assert.Equal(t, SeverityInfo, quota[0].Severity)
	assert.Equal(t, int64(0), quota[0].Count)
	assert.Equal(t, "You have used 100% of your mold limit. 0 molds remaining.", quota[0].Message)
}

func TestCenterWithoutMoldsIsNotInactive(t *testing.T) {
	f := newFixture(t)
	modelstest.CreateCenter(t, f.db, 10)

	res := f.evaluator().Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeAll}, nil)
	assert.Empty(t, res.Findings)
}

func TestInactivityBoundaryIsThirtyWholeDays(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 100)
	modelstest.CreateMolds(t, f.db, c.ID, 1, modelstest.Ago(30*day-time.Hour))
	ev := f.evaluator()
	res := ev.Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeAll}, nil)
	assert.Empty(t, byKind(res.Findings)[KindCenterInactive])

	c2 := modelstest.CreateCenter(t, f.db, 100)
	modelstest.CreateMolds(t, f.db, c2.ID, 1, modelstest.Ago(30*day))
	res = ev.Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeCenter, CenterID: c2.ID}, nil)
	assert.Len(t, byKind(res.Findings)[KindCenterInactive], 1)
}

func TestCompletedOrdersAndPerformance(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 100)
	p := modelstest.CreateProducer(t, f.db, 100)
	modelstest.CreateMolds(t, f.db, c.ID, 1, modelstest.Ago(day))
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 2,
		modelstest.Created(modelstest.Ago(5*day)), modelstest.Delivered(modelstest.Ago(2*time.Hour)))
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 1,
		modelstest.Created(modelstest.Ago(10*day)), modelstest.Delivered(modelstest.Ago(2*day)))
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 2, modelstest.Created(modelstest.Ago(3*day)))

	res := f.evaluator().Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeAll}, nil)
	got := byKind(res.Findings)

	require.Len(t, got[KindOrdersCompleted], 1)
	assert.Equal(t, int64(2), got[KindOrdersCompleted][0].Count)

	require.Len(t, got[KindPerformanceSuggestion], 1)
	perf := got[KindPerformanceSuggestion][0]
	assert.Equal(t, int64(5), perf.Count)
	assert.Equal(t, "/center/dashboard/", perf.Link)
	// per order: (5d-2h) twice and 8d, averaged
	assert.Contains(t, perf.Message, "5.9 days average delivery")
}

func TestInactiveCentersAreSkippedUnlessNamed(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 10)
	modelstest.CreateMolds(t, f.db, c.ID, 9, modelstest.Ago(day))
	require.NoError(t, f.db.Model(&models.Center{}).Where("id = ?", c.ID).Update("is_active", false).Error)

	ev := f.evaluator()
	res := ev.Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeAll}, nil)
	assert.Zero(t, res.Subjects)

	res = ev.Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeCenter, CenterID: c.ID}, nil)
	assert.Equal(t, 1, res.Subjects)
	assert.Len(t, byKind(res.Findings)[KindQuotaPressure], 1)
}

func TestProducerOnTimeNeedsTenSamples(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 100)
	p := modelstest.CreateProducer(t, f.db, 1000)
	late := []modelstest.OrderOption{
		modelstest.Created(modelstest.Ago(10 * day)),
		modelstest.Estimated(modelstest.Ago(5 * day)),
		modelstest.Delivered(modelstest.Ago(3 * day)),
	}
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 9, late...)

	ev := f.evaluator()
	res := ev.Evaluate(context.Background(), CategoryProducer, Scope{Type: ScopeAll}, nil)
	assert.Empty(t, byKind(res.Findings)[KindOnTimeRate])

	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 1, late...)
	res = ev.Evaluate(context.Background(), CategoryProducer, Scope{Type: ScopeAll}, nil)
	onTime := byKind(res.Findings)[KindOnTimeRate]
	require.Len(t, onTime, 1)
	assert.Equal(t, 0.0, onTime[0].Percent)
	assert.Equal(t, int64(10), onTime[0].Count)
}

func TestProducerOnTimeAtSeventyPercentIsFine(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 100)
	p := modelstest.CreateProducer(t, f.db, 1000)
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 7,
		modelstest.Created(modelstest.Ago(10*day)),
		modelstest.Estimated(modelstest.Ago(2*day)),
		modelstest.Delivered(modelstest.Ago(3*day)))
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 3,
		modelstest.Created(modelstest.Ago(10*day)),
		modelstest.Estimated(modelstest.Ago(5*day)),
		modelstest.Delivered(modelstest.Ago(3*day)))

	res := f.evaluator().Evaluate(context.Background(), CategoryProducer, Scope{Type: ScopeAll}, nil)
	assert.Empty(t, byKind(res.Findings)[KindOnTimeRate])
}

func TestProducerBacklogCapacityAndExpansion(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 100)
	p := modelstest.CreateProducer(t, f.db, 10)
	modelstest.CreateNetwork(t, f.db, p.ID, c.ID, models.NetworkStatusActive)
	// created this month, received more than a day ago
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 9, modelstest.Created(modelstest.Ago(2*day)))
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 1, modelstest.Created(modelstest.Ago(time.Hour)))

	res := f.evaluator().Evaluate(context.Background(), CategoryProducer, Scope{Type: ScopeAll}, nil)
	require.Zero(t, res.Failures)
	got := byKind(res.Findings)

	require.Len(t, got[KindPendingBacklog], 1)
	assert.Equal(t, int64(9), got[KindPendingBacklog][0].Count)

	require.Len(t, got[KindCapacityPressure], 1)
	assert.Equal(t, 100.0, got[KindCapacityPressure][0].Percent)
	assert.Equal(t, SeverityWarning, got[KindCapacityPressure][0].Severity)

	require.Len(t, got[KindNetworkExpansion], 1)
	assert.Equal(t, int64(1), got[KindNetworkExpansion][0].Count)
}

func TestUnverifiedProducersAreSkipped(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 100)
	p := modelstest.CreateProducer(t, f.db, 10)
	require.NoError(t, f.db.Model(&models.Producer{}).Where("id = ?", p.ID).Update("is_verified", false).Error)
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 10, modelstest.Created(modelstest.Ago(2*day)))

	res := f.evaluator().Evaluate(context.Background(), CategoryProducer, Scope{Type: ScopeAll}, nil)
	assert.Zero(t, res.Subjects)
	assert.Empty(t, res.Findings)
}

func TestOverdueWorkflowThreshold(t *testing.T) {
	cases := []struct {
		overdue int
		want    bool
	}{
		{9, false},
		{10, false},
		{11, true},
	}
	for _, c := range cases {
		f := newFixture(t)
		center := modelstest.CreateCenter(t, f.db, 100)
		p := modelstest.CreateProducer(t, f.db, 100)
		modelstest.CreateOrders(t, f.db, center.ID, p.ID, c.overdue,
			modelstest.Status(models.OrderStatusProduction),
			modelstest.Estimated(modelstest.Ago(day)))
		// late but finished: never overdue
		modelstest.CreateOrders(t, f.db, center.ID, p.ID, 5,
			modelstest.Estimated(modelstest.Ago(3*day)),
			modelstest.Delivered(modelstest.Ago(day)))

		res := f.evaluator().Evaluate(context.Background(), CategoryAdmin, Scope{Type: ScopeAll}, nil)
		wf := byKind(res.Findings)[KindOverdueWorkflow]
		if !c.want {
			assert.Empty(t, wf, "overdue=%d", c.overdue)
			continue
		}
		require.Len(t, wf, 1)
		assert.Equal(t, SeverityCritical, wf[0].Severity)
		assert.Equal(t, int64(c.overdue), wf[0].Count)
	}
}

func TestAdminChecks(t *testing.T) {
	f := newFixture(t)
	admin := modelstest.CreateAdmin(t, f.db)
	c := modelstest.CreateCenter(t, f.db, 100)
	p := modelstest.CreateProducer(t, f.db, 100)
	modelstest.Elevate(t, f.db, p.UserID)
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 3)
	modelstest.CreateOrders(t, f.db, c.ID, 0, 2)
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 1, modelstest.Delivered(modelstest.Ago(day)))

	admins := []Recipient{RecipientFromUser(admin)}
	res := f.evaluator().Evaluate(context.Background(), CategoryAdmin, Scope{Type: ScopeAdmin}, admins)
	require.Zero(t, res.Failures)
	got := byKind(res.Findings)

	require.Len(t, got[KindWeeklyReport], 1)
	assert.Equal(t, "System summary: 6 total orders, 5 active orders. Details are in the admin panel.", got[KindWeeklyReport][0].Message)
	assert.Equal(t, AdminActor{Admin: admins[0]}, got[KindWeeklyReport][0].Subject)

	require.Len(t, got[KindSecurityRisk], 1)
	assert.Equal(t, SeverityCritical, got[KindSecurityRisk][0].Severity)
	assert.Equal(t, int64(1), got[KindSecurityRisk][0].Count)

	require.Len(t, got[KindUnassignedOrders], 1)
	assert.Equal(t, int64(2), got[KindUnassignedOrders][0].Count)
}

func TestPanickingCheckIsIsolated(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 10)
	modelstest.CreateMolds(t, f.db, c.ID, 9, modelstest.Ago(day))

	ev := f.evaluator()
	ev.RegisterCenterCheck("exploding", func(context.Context, *Evaluator, models.Center, time.Time) ([]Finding, error) {
		var m map[string]int
		m["boom"]++
		return nil, nil
	})
	ev.RegisterCenterCheck("failing", func(context.Context, *Evaluator, models.Center, time.Time) ([]Finding, error) {
		return []Finding{{Kind: "ignored"}}, errors.New("malformed record")
	})

	res := ev.Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeAll}, nil)
	assert.Equal(t, 2, res.Failures)
	assert.Len(t, byKind(res.Findings)[KindQuotaPressure], 1)
	assert.Empty(t, byKind(res.Findings)["ignored"])

	var errorsLogged int
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			errorsLogged++
			assert.Equal(t, "center", string(e.Data["category"].(Category)))
		}
	}
	assert.Equal(t, 2, errorsLogged)
}

type failingReader struct {
	Reader
	err error
}

func (r failingReader) ListCenters(context.Context, models.CenterFilter) ([]models.Center, error) {
	return nil, r.err
}

func (r failingReader) CountOrders(context.Context, models.OrderQuery) (int64, error) {
	return 0, r.err
}

func TestListingFailureBecomesCriticalFinding(t *testing.T) {
	f := newFixture(t)
	reader := failingReader{Reader: f.store, err: errors.New("connection refused")}
	ev := NewEvaluator(reader, f.cfg, f.logger, WithClock(modelstest.Clock))

	res := ev.Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeAll}, nil)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, KindDataAccess, res.Findings[0].Kind)
	assert.Equal(t, SeverityCritical, res.Findings[0].Severity)
	assert.Equal(t, AudienceAdmins, res.Findings[0].Audience)

	// admin checks that need orders fail one by one; the security check still runs
	p := modelstest.CreateProducer(t, f.db, 10)
	modelstest.Elevate(t, f.db, p.UserID)
	res = ev.Evaluate(context.Background(), CategoryAdmin, Scope{Type: ScopeAdmin}, []Recipient{{UserID: 99}})
	assert.Equal(t, 3, res.Failures)
	assert.Len(t, byKind(res.Findings)[KindSecurityRisk], 1)
}

func TestWithoutDefaultChecks(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 10)
	modelstest.CreateMolds(t, f.db, c.ID, 10, modelstest.Ago(60*day))

	res := f.evaluator(WithoutDefaultChecks()).Evaluate(context.Background(), CategoryCenter, Scope{Type: ScopeAll}, nil)
	assert.Equal(t, 1, res.Subjects)
	assert.Empty(t, res.Findings)
}
