package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/mmdatafocus/moldpark_backend/models/modelstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedDisk struct {
	usage DiskUsage
	err   error
}

func (d fixedDisk) Usage(string) (DiskUsage, error) { return d.usage, d.err }

func (f *fixture) systemMonitor(opts ...SystemMonitorOption) *SystemMonitor {
	return NewSystemMonitor(f.store, f.cfg, f.logger, append([]SystemMonitorOption{WithMonitorClock(modelstest.Clock)}, opts...)...)
}

func TestSystemMonitorCleanRun(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 10)
	p := modelstest.CreateProducer(t, f.db, 10)
	modelstest.CreateNetwork(t, f.db, p.ID, c.ID, models.NetworkStatusActive)
	modelstest.CreateMolds(t, f.db, c.ID, 3, modelstest.Ago(day))
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 2)

	report := f.systemMonitor(WithDiskProbe(fixedDisk{usage: DiskUsage{TotalBytes: 100 << 30, FreeBytes: 60 << 30}}, "/")).
		Run(context.Background())
	assert.Zero(t, report.Total())
	assert.Equal(t, SystemStats{
		Timestamp:         modelstest.Now,
		Users:             2,
		Centers:           1,
		Producers:         1,
		VerifiedProducers: 1,
		TotalOrders:       2,
		ActiveOrders:      2,
		TotalMolds:        3,
		ActiveNetworks:    1,
	}, report.Stats)

	_, ok := SystemAlert(report)
	assert.False(t, ok)
}

func TestSystemMonitorOverdueSeverity(t *testing.T) {
	f := newFixture(t)
	c := modelstest.CreateCenter(t, f.db, 10)
	p := modelstest.CreateProducer(t, f.db, 10)
	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 3, modelstest.Estimated(modelstest.Ago(day)))

	m := f.systemMonitor()
	report := m.Run(context.Background())
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, KindOverdueOrders, report.Warnings[0].Kind)
	assert.Equal(t, int64(3), report.Warnings[0].Count)

	modelstest.CreateOrders(t, f.db, c.ID, p.ID, 8, modelstest.Estimated(modelstest.Ago(day)))
	report = m.Run(context.Background())
	require.Len(t, report.Critical, 1)
	assert.Equal(t, KindOverdueOrders, report.Critical[0].Kind)
	assert.Equal(t, int64(11), report.Critical[0].Count)
}

func TestSystemMonitorSecurityFindings(t *testing.T) {
	f := newFixture(t)
	p := modelstest.CreateProducer(t, f.db, 10)
	modelstest.Elevate(t, f.db, p.UserID)
	c := modelstest.CreateCenter(t, f.db, 10)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", c.UserID).Updates(map[string]interface{}{
		"date_joined": modelstest.Ago(2 * day),
	}).Error)
	weak := modelstest.CreateUser(t, f.db, modelstest.Joined(modelstest.Ago(day)), modelstest.Password("123456"))
	// old accounts are outside the sample window
	modelstest.CreateUser(t, f.db, modelstest.Joined(modelstest.Ago(30*day)), modelstest.Password("password"))
	modelstest.CreateUser(t, f.db, modelstest.Joined(modelstest.Ago(day)), modelstest.Password("a long passphrase"))

	report := f.systemMonitor().Run(context.Background())
	crit := byKind(report.Critical)
	require.Len(t, crit[KindSecurityRisk], 1)
	assert.Equal(t, int64(1), crit[KindSecurityRisk][0].Count)
	require.Len(t, crit[KindWeakPasswords], 1)
	assert.Equal(t, int64(1), crit[KindWeakPasswords][0].Count, "only user %s", weak.Username)

	alert, ok := SystemAlert(report)
	require.True(t, ok)
	assert.Equal(t, KindSystemAlert, alert.Kind)
	assert.Equal(t, SeverityCritical, alert.Severity)
	assert.Equal(t, "2 critical issues, 0 warnings detected. Check the admin panel.", alert.Message)
}

func TestSystemMonitorThresholdWarnings(t *testing.T) {
	f := newFixture(t)
	f.cfg.Thresholds.LargeMoldTable = 5
	f.cfg.Thresholds.OrphanUserLimit = 1
	f.cfg.Thresholds.SuspendedNetworkLimit = 1
	f.cfg.Thresholds.TerminationLimit = 1

	c := modelstest.CreateCenter(t, f.db, 100)
	p := modelstest.CreateProducer(t, f.db, 100)
	modelstest.CreateMolds(t, f.db, c.ID, 6, modelstest.Ago(day))
	modelstest.CreateUser(t, f.db)
	modelstest.CreateUser(t, f.db)
	for i := 0; i < 2; i++ {
		other := modelstest.CreateCenter(t, f.db, 10)
		modelstest.CreateNetwork(t, f.db, p.ID, other.ID, models.NetworkStatusSuspended)
		gone := modelstest.CreateCenter(t, f.db, 10)
		modelstest.CreateNetwork(t, f.db, p.ID, gone.ID, models.NetworkStatusTerminated)
	}
	modelstest.CreateOrders(t, f.db, c.ID, 0, 1)

	report := f.systemMonitor(WithDiskProbe(fixedDisk{usage: DiskUsage{TotalBytes: 100 << 30, FreeBytes: 10 << 30}}, "/")).
		Run(context.Background())
	assert.Empty(t, report.Critical)
	warn := byKind(report.Warnings)
	for _, k := range []Kind{KindLargeMoldTable, KindOrphanUsers, KindSuspendedNetworks, KindNetworkTerminations, KindUnassignedOrders, KindDiskSpace} {
		assert.Len(t, warn[k], 1, "kind %s", k)
	}
	assert.Equal(t, int64(2), warn[KindOrphanUsers][0].Count)
	assert.Equal(t, 90.0, warn[KindDiskSpace][0].Percent)
	assert.Equal(t, int64(10), warn[KindDiskSpace][0].Count)
}

func TestSystemMonitorDiskErrorIsNotAFinding(t *testing.T) {
	f := newFixture(t)
	report := f.systemMonitor(WithDiskProbe(fixedDisk{err: errors.New("permission denied")}, "/srv")).Run(context.Background())
	assert.Zero(t, report.Total())

	var warned bool
	for _, e := range f.hook.AllEntries() {
		if e.Data["check"] == "disk_space" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestSystemMonitorFailedQueryBecomesCritical(t *testing.T) {
	f := newFixture(t)
	reader := failingReader{Reader: f.store, err: errors.New("too many connections")}
	m := NewSystemMonitor(reader, f.cfg, f.logger, WithMonitorClock(modelstest.Clock))

	report := m.Run(context.Background())
	crit := byKind(report.Critical)
	// overdue and unassigned both count orders
	assert.Len(t, crit[KindDataAccess], 2)
}

func TestDiskUsage(t *testing.T) {
	u := DiskUsage{TotalBytes: 200 << 30, FreeBytes: 50 << 30}
	assert.Equal(t, 75.0, u.UsedPercent())
	assert.Equal(t, uint64(50), u.FreeGB())
	assert.Zero(t, DiskUsage{}.UsedPercent())
}
