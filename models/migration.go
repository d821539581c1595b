package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AllModels lists every table MigrateTable manages.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Center{}, &Producer{}, &ProducerNetwork{},
		&EarMold{}, &RevisionRequest{},
		&ProducerOrder{},
		&Notification{},
	}
}

func MigrateTable(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
