package monitor

import (
	"context"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/shopspring/decimal"
)

// Reader is the read side the rules, the system monitor and the status
// service run against. *models.Store implements it.
type Reader interface {
	Ping(ctx context.Context) error

	ListCenters(ctx context.Context, f models.CenterFilter) ([]models.Center, error)
	CountCenters(ctx context.Context, f models.CenterFilter) (int64, error)
	ListProducers(ctx context.Context, f models.ProducerFilter) ([]models.Producer, error)
	CountProducers(ctx context.Context, f models.ProducerFilter) (int64, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context, q models.UserQuery) (int64, error)
	SampleUsers(ctx context.Context, q models.UserQuery, limit int) ([]models.User, error)

	CountMolds(ctx context.Context, centerID uint, since *time.Time) (int64, error)
	LastMoldAt(ctx context.Context, centerID uint) (*time.Time, error)
	AverageQualityScore(ctx context.Context) (float64, bool, error)
	CountRevisions(ctx context.Context, centerID uint, status models.RevisionStatus, createdBefore *time.Time) (int64, error)

	CountOrders(ctx context.Context, q models.OrderQuery) (int64, error)
	SumOrderPrice(ctx context.Context, q models.OrderQuery) (decimal.Decimal, error)
	DeliveryDurations(ctx context.Context, q models.OrderQuery) ([]time.Duration, error)
	OrderStatusCounts(ctx context.Context) (map[models.OrderStatus]int64, error)
	CountNetworks(ctx context.Context, q models.NetworkQuery) (int64, error)
}

// NotificationHistory is what the rate limiter needs.
type NotificationHistory interface {
	LastNotificationAt(ctx context.Context, recipientID uint, kind string) (*time.Time, error)
}

// NotificationStore persists dispatched notifications.
type NotificationStore interface {
	NotificationHistory
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// NotificationStats backs the notification status endpoint.
type NotificationStats interface {
	CountNotifications(ctx context.Context, q models.NotificationQuery) (int64, error)
	NotificationKindCounts(ctx context.Context, q models.NotificationQuery) (map[string]int64, error)
	CenterOwnedBy(ctx context.Context, userID uint) (*models.Center, error)
	ProducerOwnedBy(ctx context.Context, userID uint) (*models.Producer, error)
}

// MaintenanceStore is the write side of the system check's fix mode.
type MaintenanceStore interface {
	CountProducerAdmins(ctx context.Context) (int64, error)
	DeleteOrphanUsers(ctx context.Context) (int64, error)
	DemotePrivilegedProducerUsers(ctx context.Context) (int64, error)
	DuplicateTaxNumbers(ctx context.Context) (int64, error)
	CountBrokenNetworks(ctx context.Context) (int64, error)
	DeleteBrokenNetworks(ctx context.Context) (int64, error)
	MissingIndexes(ctx context.Context) ([]string, error)
	ScanFiles(ctx context.Context) ([]string, error)
}

var (
	_ Reader            = (*models.Store)(nil)
	_ NotificationStore = (*models.Store)(nil)
	_ NotificationStats = (*models.Store)(nil)
	_ MaintenanceStore  = (*models.Store)(nil)
)

// LoadAdmins lists administrator recipients.
func LoadAdmins(ctx context.Context, r Reader) ([]Recipient, error) {
	users, err := r.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	return RecipientsFromUsers(users), nil
}
