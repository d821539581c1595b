package models

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mmdatafocus/moldpark_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Store answers the read queries the monitoring engine runs and writes the
// notification records it produces. Reads are plain non-locking queries, so two
// counts taken during one pass may disagree with each other.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type CenterFilter struct {
	ID         uint
	ActiveOnly bool
}

func (f CenterFilter) scope(db *gorm.DB) *gorm.DB {
	if f.ID != 0 {
		db = db.Where("centers.id = ?", f.ID)
	}
	if f.ActiveOnly {
		db = db.Where("centers.is_active = ?", true)
	}
	return db
}

type ProducerFilter struct {
	ID           uint
	ActiveOnly   bool
	VerifiedOnly bool
	// Unverified restricts to producers that are not yet verified.
	Unverified bool
	// Privileged restricts to producers whose owner account is staff or superuser.
	Privileged bool
}

func (f ProducerFilter) scope(db *gorm.DB) *gorm.DB {
	if f.ID != 0 {
		db = db.Where("producers.id = ?", f.ID)
	}
	if f.ActiveOnly {
		db = db.Where("producers.is_active = ?", true)
	}
	if f.VerifiedOnly {
		db = db.Where("producers.is_verified = ?", true)
	}
	if f.Unverified {
		db = db.Where("producers.is_verified = ?", false)
	}
	if f.Privileged {
		db = db.Where("producers.user_id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).Model(&User{}).Select("id").Where("is_staff = ? OR is_superuser = ?", true, true))
	}
	return db
}

type OrderQuery struct {
	CenterID        uint
	ProducerID      uint
	Statuses        []OrderStatus
	ExcludeStatuses []OrderStatus
	Priority        OrderPriority
	CreatedSince    *time.Time
	CreatedBefore   *time.Time
	DeliveredSince  *time.Time
	EstimatedBefore *time.Time
	Unassigned      bool
	OnTime          bool
}

// Overdue matches orders past their estimated delivery in a non-terminal status.
func Overdue(now time.Time) OrderQuery {
	return OrderQuery{ExcludeStatuses: TerminalOrderStatuses, EstimatedBefore: &now}
}

func (q OrderQuery) scope(db *gorm.DB) *gorm.DB {
	if q.CenterID != 0 {
		db = db.Where("center_id = ?", q.CenterID)
	}
	if q.ProducerID != 0 {
		db = db.Where("producer_id = ?", q.ProducerID)
	}
	if len(q.Statuses) > 0 {
		db = db.Where("status IN ?", q.Statuses)
	}
	if len(q.ExcludeStatuses) > 0 {
		db = db.Where("status NOT IN ?", q.ExcludeStatuses)
	}
	if q.Priority != "" {
		db = db.Where("priority = ?", q.Priority)
	}
	if q.CreatedSince != nil {
		db = db.Where("created_at >= ?", *q.CreatedSince)
	}
	if q.CreatedBefore != nil {
		db = db.Where("created_at < ?", *q.CreatedBefore)
	}
	if q.DeliveredSince != nil {
		db = db.Where("actual_delivery IS NOT NULL AND actual_delivery >= ?", *q.DeliveredSince)
	}
	if q.EstimatedBefore != nil {
		db = db.Where("estimated_delivery IS NOT NULL AND estimated_delivery < ?", *q.EstimatedBefore)
	}
	if q.Unassigned {
		db = db.Where("producer_id IS NULL")
	}
	if q.OnTime {
		db = db.Where("actual_delivery IS NOT NULL AND estimated_delivery IS NOT NULL AND actual_delivery <= estimated_delivery")
	}
	return db
}

type NetworkQuery struct {
	ProducerID      uint
	CenterID        uint
	Statuses        []NetworkStatus
	TerminatedSince *time.Time
}

func (q NetworkQuery) scope(db *gorm.DB) *gorm.DB {
	if q.ProducerID != 0 {
		db = db.Where("producer_id = ?", q.ProducerID)
	}
	if q.CenterID != 0 {
		db = db.Where("center_id = ?", q.CenterID)
	}
	if len(q.Statuses) > 0 {
		db = db.Where("status IN ?", q.Statuses)
	}
	if q.TerminatedSince != nil {
		db = db.Where("terminated_at IS NOT NULL AND terminated_at >= ?", *q.TerminatedSince)
	}
	return db
}

type UserQuery struct {
	Superusers bool
	// Orphans are non-superuser accounts that back neither a center nor a producer.
	Orphans     bool
	JoinedSince *time.Time
	LoginSince  *time.Time
}

func (q UserQuery) scope(db *gorm.DB) *gorm.DB {
	if q.Superusers {
		db = db.Where("is_superuser = ?", true)
	}
	if q.Orphans {
		tx := db.Session(&gorm.Session{NewDB: true})
		db = db.Where("is_superuser = ?", false).
			Where("id NOT IN (?)", tx.Model(&Center{}).Select("user_id")).
			Where("id NOT IN (?)", tx.Model(&Producer{}).Select("user_id"))
	}
	if q.JoinedSince != nil {
		db = db.Where("date_joined >= ?", *q.JoinedSince)
	}
	if q.LoginSince != nil {
		db = db.Where("last_login IS NOT NULL AND last_login >= ?", *q.LoginSince)
	}
	return db
}

type NotificationQuery struct {
	RecipientID uint
	Since       *time.Time
	UnreadOnly  bool
}

func (q NotificationQuery) scope(db *gorm.DB) *gorm.DB {
	if q.RecipientID != 0 {
		db = db.Where("recipient_id = ?", q.RecipientID)
	}
	if q.Since != nil {
		db = db.Where("timestamp >= ?", *q.Since)
	}
	if q.UnreadOnly {
		db = db.Where("unread = ?", true)
	}
	return db
}

func (s *Store) ListCenters(ctx context.Context, f CenterFilter) ([]Center, error) {
	var centers []Center
	err := s.db.WithContext(ctx).Preload("User").Scopes(f.scope).Order("centers.id").Find(&centers).Error
	return centers, err
}

func (s *Store) CountCenters(ctx context.Context, f CenterFilter) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Center{}).Scopes(f.scope).Count(&n).Error
	return n, err
}

func (s *Store) ListProducers(ctx context.Context, f ProducerFilter) ([]Producer, error) {
	var producers []Producer
	err := s.db.WithContext(ctx).Preload("User").Scopes(f.scope).Order("producers.id").Find(&producers).Error
	return producers, err
}

func (s *Store) CountProducers(ctx context.Context, f ProducerFilter) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Producer{}).Scopes(f.scope).Count(&n).Error
	return n, err
}

// ListAdmins returns active superusers.
func (s *Store) ListAdmins(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.WithContext(ctx).Where("is_superuser = ? AND is_active = ?", true, true).Order("id").Find(&users).Error
	return users, err
}

func (s *Store) GetUser(ctx context.Context, id uint) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CenterOwnedBy returns the center whose owner is userID, or utils.ErrorRecordNotFound.
func (s *Store) CenterOwnedBy(ctx context.Context, userID uint) (*Center, error) {
	var c Center
	err := s.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ProducerOwnedBy(ctx context.Context, userID uint) (*Producer, error) {
	var p Producer
	err := s.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CountUsers(ctx context.Context, q UserQuery) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&User{}).Scopes(q.scope).Count(&n).Error
	return n, err
}

// SampleUsers returns up to limit users matching q, newest first.
func (s *Store) SampleUsers(ctx context.Context, q UserQuery, limit int) ([]User, error) {
	var users []User
	err := s.db.WithContext(ctx).Scopes(q.scope).Order("date_joined DESC").Limit(limit).Find(&users).Error
	return users, err
}

func (s *Store) CountMolds(ctx context.Context, centerID uint, since *time.Time) (int64, error) {
	db := s.db.WithContext(ctx).Model(&EarMold{})
	if centerID != 0 {
		db = db.Where("center_id = ?", centerID)
	}
	if since != nil {
		db = db.Where("created_at >= ?", *since)
	}
	var n int64
	err := db.Count(&n).Error
	return n, err
}

// LastMoldAt is nil when the center has no molds.
func (s *Store) LastMoldAt(ctx context.Context, centerID uint) (*time.Time, error) {
	var mold EarMold
	err := s.db.WithContext(ctx).
		Select("id", "created_at").
		Where("center_id = ?", centerID).
		Order("created_at DESC").
		Take(&mold).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := mold.CreatedAt
	return &t, nil
}

// AverageQualityScore reports ok=false when no mold has a score.
func (s *Store) AverageQualityScore(ctx context.Context) (float64, bool, error) {
	var avg sql.NullFloat64
	err := s.db.WithContext(ctx).Model(&EarMold{}).
		Where("quality_score IS NOT NULL").
		Select("AVG(quality_score)").
		Row().Scan(&avg)
	if err != nil {
		return 0, false, err
	}
	return avg.Float64, avg.Valid, nil
}

// ScanFiles lists the non-empty scan file paths referenced by molds.
func (s *Store) ScanFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := s.db.WithContext(ctx).Model(&EarMold{}).Where("scan_file <> ''").Pluck("scan_file", &files).Error
	return files, err
}

func (s *Store) CountRevisions(ctx context.Context, centerID uint, status RevisionStatus, createdBefore *time.Time) (int64, error) {
	db := s.db.WithContext(ctx).Model(&RevisionRequest{})
	if centerID != 0 {
		db = db.Where("center_id = ?", centerID)
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if createdBefore != nil {
		db = db.Where("created_at < ?", *createdBefore)
	}
	var n int64
	err := db.Count(&n).Error
	return n, err
}

func (s *Store) CountOrders(ctx context.Context, q OrderQuery) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&ProducerOrder{}).Scopes(q.scope).Count(&n).Error
	return n, err
}

func (s *Store) SumOrderPrice(ctx context.Context, q OrderQuery) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := s.db.WithContext(ctx).Model(&ProducerOrder{}).Scopes(q.scope).Select("SUM(price)").Row().Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// DeliveryDurations returns actual_delivery - created_at for every delivered match.
func (s *Store) DeliveryDurations(ctx context.Context, q OrderQuery) ([]time.Duration, error) {
	var orders []ProducerOrder
	err := s.db.WithContext(ctx).
		Select("id", "created_at", "actual_delivery").
		Scopes(q.scope).
		Where("actual_delivery IS NOT NULL").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	out := make([]time.Duration, 0, len(orders))
	for _, o := range orders {
		if o.ActualDelivery == nil {
			continue
		}
		out = append(out, o.ActualDelivery.Sub(o.CreatedAt))
	}
	return out, nil
}

// OrderStatusCounts groups every order by status.
func (s *Store) OrderStatusCounts(ctx context.Context) (map[OrderStatus]int64, error) {
	var rows []struct {
		Status OrderStatus
		Total  int64
	}
	err := s.db.WithContext(ctx).Model(&ProducerOrder{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[OrderStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}

func (s *Store) CountNetworks(ctx context.Context, q NetworkQuery) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&ProducerNetwork{}).Scopes(q.scope).Count(&n).Error
	return n, err
}

func (s *Store) CreateNotification(ctx context.Context, n *Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

// LastNotificationAt is nil when recipientID never received kind.
func (s *Store) LastNotificationAt(ctx context.Context, recipientID uint, kind string) (*time.Time, error) {
	var n Notification
	err := s.db.WithContext(ctx).
		Select("id", "timestamp").
		Where("recipient_id = ? AND kind = ?", recipientID, kind).
		Order("timestamp DESC").
		Take(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := n.Timestamp
	return &t, nil
}

func (s *Store) CountNotifications(ctx context.Context, q NotificationQuery) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Notification{}).Scopes(q.scope).Count(&n).Error
	return n, err
}

func (s *Store) NotificationKindCounts(ctx context.Context, q NotificationQuery) (map[string]int64, error) {
	var rows []struct {
		Kind  string
		Total int64
	}
	err := s.db.WithContext(ctx).Model(&Notification{}).
		Scopes(q.scope).
		Select("kind, COUNT(*) AS total").
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Kind] = r.Total
	}
	return out, nil
}

// SaveSuperuser creates the administrator account username, or resets the
// password, e-mail and privileges of an existing one. created reports which.
func (s *Store) SaveSuperuser(ctx context.Context, username, email, password string) (u *User, created bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing User
		lookup := tx.Where("username = ?", username).Take(&existing).Error
		if lookup != nil && !errors.Is(lookup, gorm.ErrRecordNotFound) {
			return lookup
		}
		created = errors.Is(lookup, gorm.ErrRecordNotFound)
		if created {
			existing = User{Username: username, Name: username}
		}
		if email != "" {
			existing.Email = email
		}
		if err := existing.SetPassword(password); err != nil {
			return err
		}
		existing.IsActive = true
		existing.IsStaff = true
		existing.IsSuperuser = true
		u = &existing
		return tx.Save(&existing).Error
	})
	if err != nil {
		return nil, false, err
	}
	return u, created, nil
}

// RoleOf is the API role of u: admin for superusers, otherwise whichever
// center or producer the account owns.
func (s *Store) RoleOf(ctx context.Context, u User) (UserRole, error) {
	if u.IsAdmin() {
		return UserRoleAdmin, nil
	}
	if _, err := s.CenterOwnedBy(ctx, u.ID); err == nil {
		return UserRoleCenter, nil
	} else if !errors.Is(err, utils.ErrorRecordNotFound) {
		return UserRoleNone, err
	}
	if _, err := s.ProducerOwnedBy(ctx, u.ID); err == nil {
		return UserRoleProducer, nil
	} else if !errors.Is(err, utils.ErrorRecordNotFound) {
		return UserRoleNone, err
	}
	return UserRoleNone, nil
}
