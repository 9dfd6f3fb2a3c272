package database

import (
	"errors"
	"time"

	"github.com/allanon74/kor35-app-sub002/internal/wiki"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationClampBannerOffsets = "2026-08-12_clamp_banner_offsets"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationClampBannerOffsets, apply: clampBannerOffsets},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// clampBannerOffsets resets banner offsets written before the 0-100 bound was
// enforced at the store boundary.
func clampBannerOffsets(db *gorm.DB) error {
	return db.Model(&wiki.Page{}).
		Where("banner_vertical_offset < 0 OR banner_vertical_offset > 100").
		Update("banner_vertical_offset", wiki.DefaultBannerVerticalOffset).Error
}
