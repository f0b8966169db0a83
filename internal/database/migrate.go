package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stwalsh4118/tokkosync/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models lists every table owned by the service, in no particular order;
// GORM resolves foreign key dependencies itself.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Location{},
		&models.Branch{},
		&models.Property{},
		&models.Photo{},
		&models.Video{},
		&models.Tag{},
		&models.TagLink{},
	}
}

// AutoMigrate creates or updates the schema on an open GORM connection.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Migrate runs AutoMigrate over the existing pgx pool.
func (db *Database) Migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to open gorm over pool: %w", err)
	}

	return AutoMigrate(gdb.WithContext(ctx))
}
