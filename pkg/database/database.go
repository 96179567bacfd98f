package database

import (
	"horajudaica-backend/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewPostgresConnection opens the shared GORM connection. TranslateError is
// enabled so unique-constraint violations surface as gorm.ErrDuplicatedKey,
// which the repositories rely on for conflict detection.
func NewPostgresConnection(cfg *config.Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
	})
}
