package store

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_evidence_and_sessions",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&EvidenceRecord{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&SessionRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("evidence_packages", "call_sessions")
			},
		},
		{
			ID: "002_scammer_profiles",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&ProfileRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("scammer_profiles")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}
	return nil
}
