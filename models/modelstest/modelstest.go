// Package modelstest opens migrated in-memory sqlite databases and seeds
// fixtures for store and engine tests.
package modelstest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/mmdatafocus/moldpark_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	utils.PasswordCost = bcrypt.MinCost
}

// Now is the fixed clock every fixture is relative to. It is whole-second UTC
// so sqlite's text timestamps compare in time order.
var Now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func Clock() time.Time { return Now }

// Ago is Now minus d.
func Ago(d time.Duration) time.Time { return Now.Add(-d) }

func Days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: Clock,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection of ":memory:" is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.MigrateTable(db))
	return db
}

func NewStore(t testing.TB) (*models.Store, *gorm.DB) {
	db := NewDB(t)
	return models.NewStore(db), db
}

var seq atomic.Int64

func next() int64 { return seq.Add(1) }

type UserOption func(*models.User)

func Superuser() UserOption {
	return func(u *models.User) { u.IsSuperuser = true; u.IsStaff = true }
}

func Email(e string) UserOption {
	return func(u *models.User) { u.Email = e }
}

func Joined(at time.Time) UserOption {
	return func(u *models.User) { u.DateJoined = at }
}

func Password(plain string) UserOption {
	return func(u *models.User) {
		if err := u.SetPassword(plain); err != nil {
			panic(err)
		}
	}
}

func CreateUser(t testing.TB, db *gorm.DB, opts ...UserOption) models.User {
	t.Helper()
	n := next()
	u := models.User{
		Username:   fmt.Sprintf("user%d", n),
		Email:      fmt.Sprintf("user%d@example.com", n),
		Password:   "!",
		IsActive:   true,
		DateJoined: Ago(Days(365)),
	}
	for _, opt := range opts {
		opt(&u)
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func CreateAdmin(t testing.TB, db *gorm.DB, opts ...UserOption) models.User {
	t.Helper()
	return CreateUser(t, db, append([]UserOption{Superuser()}, opts...)...)
}

func CreateCenter(t testing.TB, db *gorm.DB, moldLimit int) models.Center {
	t.Helper()
	owner := CreateUser(t, db)
	c := models.Center{
		UserID:    owner.ID,
		Name:      fmt.Sprintf("Center %d", owner.ID),
		MoldLimit: moldLimit,
		IsActive:  true,
		CreatedAt: Ago(Days(400)),
	}
	require.NoError(t, db.Create(&c).Error)
	c.User = owner
	return c
}

func CreateProducer(t testing.TB, db *gorm.DB, moldLimit int) models.Producer {
	t.Helper()
	owner := CreateUser(t, db)
	p := models.Producer{
		UserID:      owner.ID,
		CompanyName: fmt.Sprintf("Lab %d", owner.ID),
		MoldLimit:   moldLimit,
		IsActive:    true,
		IsVerified:  true,
		CreatedAt:   Ago(Days(400)),
	}
	require.NoError(t, db.Create(&p).Error)
	p.User = owner
	return p
}

// Elevate marks userID staff and superuser, bypassing the save hooks that forbid it for producers.
func Elevate(t testing.TB, db *gorm.DB, userID uint) {
	t.Helper()
	require.NoError(t, db.Session(&gorm.Session{SkipHooks: true}).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"is_staff": true, "is_superuser": true}).Error)
}

func CreateMolds(t testing.TB, db *gorm.DB, centerID uint, n int, createdAt time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		m := models.EarMold{
			CenterID:    centerID,
			PatientName: fmt.Sprintf("Patient %d", next()),
			Status:      models.MoldStatusCompleted,
			CreatedAt:   createdAt,
		}
		require.NoError(t, db.Create(&m).Error)
	}
}

func CreateRevision(t testing.TB, db *gorm.DB, centerID uint, status models.RevisionStatus, createdAt time.Time) models.RevisionRequest {
	t.Helper()
	r := models.RevisionRequest{
		CenterID:  centerID,
		Title:     "Fit adjustment",
		Status:    status,
		Priority:  models.OrderPriorityNormal,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(&r).Error)
	return r
}

type OrderOption func(*models.ProducerOrder)

func Status(s models.OrderStatus) OrderOption {
	return func(o *models.ProducerOrder) { o.Status = s }
}

func Priority(p models.OrderPriority) OrderOption {
	return func(o *models.ProducerOrder) { o.Priority = p }
}

func Created(at time.Time) OrderOption {
	return func(o *models.ProducerOrder) { o.CreatedAt = at }
}

func Estimated(at time.Time) OrderOption {
	return func(o *models.ProducerOrder) { o.EstimatedDelivery = &at }
}

func Delivered(at time.Time) OrderOption {
	return func(o *models.ProducerOrder) {
		o.Status = models.OrderStatusDelivered
		o.ActualDelivery = &at
	}
}

func Price(p string) OrderOption {
	return func(o *models.ProducerOrder) { o.Price = decimal.RequireFromString(p) }
}

func Unassigned() OrderOption {
	return func(o *models.ProducerOrder) { o.ProducerID = nil }
}

// CreateOrders inserts n orders from centerID to producerID (0 leaves it unassigned).
func CreateOrders(t testing.TB, db *gorm.DB, centerID, producerID uint, n int, opts ...OrderOption) {
	t.Helper()
	for i := 0; i < n; i++ {
		o := models.ProducerOrder{
			CenterID:  centerID,
			Status:    models.OrderStatusReceived,
			Priority:  models.OrderPriorityNormal,
			CreatedAt: Ago(Days(2)),
		}
		if producerID != 0 {
			id := producerID
			o.ProducerID = &id
		}
		for _, opt := range opts {
			opt(&o)
		}
		require.NoError(t, db.Create(&o).Error)
	}
}

func CreateNetwork(t testing.TB, db *gorm.DB, producerID, centerID uint, status models.NetworkStatus) models.ProducerNetwork {
	t.Helper()
	n := models.ProducerNetwork{
		ProducerID: producerID,
		CenterID:   centerID,
		Status:     status,
		JoinedAt:   Ago(Days(100)),
	}
	switch status {
	case models.NetworkStatusActive:
		at := Ago(Days(90))
		n.ActivatedAt = &at
		n.CanReceiveOrders = true
	case models.NetworkStatusSuspended:
		at := Ago(Days(10))
		n.SuspendedAt = &at
		n.StatusReason = "quality issues"
	case models.NetworkStatusTerminated:
		at := Ago(Days(2))
		n.TerminatedAt = &at
		n.StatusReason = "contract ended"
	}
	require.NoError(t, db.Create(&n).Error)
	return n
}

func CreateNotification(t testing.TB, db *gorm.DB, recipientID uint, kind string, at time.Time, unread bool) {
	t.Helper()
	n := models.Notification{
		RecipientID: recipientID,
		Kind:        kind,
		Category:    "center",
		Severity:    "info",
		Verb:        kind,
		Unread:      unread,
		Timestamp:   at,
	}
	require.NoError(t, db.Create(&n).Error)
}
