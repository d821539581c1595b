package models

import (
	"context"

	"gorm.io/gorm"
)

// DeleteOrphanUsers removes non-superuser accounts without a center or producer.
func (s *Store) DeleteOrphanUsers(ctx context.Context) (int64, error) {
	tx := s.db.WithContext(ctx)
	var ids []uint
	if err := tx.Model(&User{}).Scopes(UserQuery{Orphans: true}.scope).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := tx.Where("id IN ?", ids).Delete(&User{})
	return res.RowsAffected, res.Error
}

// DemotePrivilegedProducerUsers clears staff and superuser flags on producer owners.
func (s *Store) DemotePrivilegedProducerUsers(ctx context.Context) (int64, error) {
	tx := s.db.WithContext(ctx)
	// hooks would re-check the very privilege being removed
	res := tx.Session(&gorm.Session{SkipHooks: true}).Model(&User{}).
		Where("id IN (?)", tx.Session(&gorm.Session{NewDB: true}).Model(&Producer{}).Select("user_id")).
		Where("is_staff = ? OR is_superuser = ?", true, true).
		Updates(map[string]interface{}{"is_staff": false, "is_superuser": false})
	return res.RowsAffected, res.Error
}

// CountProducerAdmins counts producer owners holding the staff flag.
func (s *Store) CountProducerAdmins(ctx context.Context) (int64, error) {
	tx := s.db.WithContext(ctx)
	var n int64
	err := tx.Model(&User{}).
		Where("id IN (?)", tx.Session(&gorm.Session{NewDB: true}).Model(&Producer{}).Select("user_id")).
		Where("is_staff = ?", true).
		Count(&n).Error
	return n, err
}

// DuplicateTaxNumbers counts tax numbers shared by more than one producer.
func (s *Store) DuplicateTaxNumbers(ctx context.Context) (int64, error) {
	var taxNumbers []string
	err := s.db.WithContext(ctx).Model(&Producer{}).
		Where("tax_number <> ''").
		Group("tax_number").
		Having("COUNT(*) > 1").
		Pluck("tax_number", &taxNumbers).Error
	return int64(len(taxNumbers)), err
}

func brokenNetworks(db *gorm.DB) *gorm.DB {
	tx := db.Session(&gorm.Session{NewDB: true})
	return db.Where("producer_id NOT IN (?) OR center_id NOT IN (?)",
		tx.Model(&Producer{}).Select("id"),
		tx.Model(&Center{}).Select("id"))
}

// CountBrokenNetworks counts networks pointing at a missing producer or center.
func (s *Store) CountBrokenNetworks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&ProducerNetwork{}).Scopes(brokenNetworks).Count(&n).Error
	return n, err
}

func (s *Store) DeleteBrokenNetworks(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Scopes(brokenNetworks).Delete(&ProducerNetwork{})
	return res.RowsAffected, res.Error
}

// MissingIndexes lists the expected monitoring indexes that the schema lacks.
func (s *Store) MissingIndexes(ctx context.Context) ([]string, error) {
	expected := []struct {
		model interface{}
		table string
		field string
	}{
		{&EarMold{}, "ear_molds", "CenterID"},
		{&EarMold{}, "ear_molds", "CreatedAt"},
		{&ProducerOrder{}, "producer_orders", "Status"},
		{&ProducerOrder{}, "producer_orders", "EstimatedDelivery"},
		{&Notification{}, "notifications", "Timestamp"},
	}
	m := s.db.WithContext(ctx).Migrator()
	var missing []string
	for _, e := range expected {
		if !m.HasIndex(e.model, e.field) {
			missing = append(missing, e.table+"."+e.field)
		}
	}
	return missing, nil
}
