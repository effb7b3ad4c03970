package db

import (
	"fmt"

	"github.com/feedcaster/feedcaster/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.Feed{},
		&models.Article{},
		&models.Post{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_articles_relevant_created
		ON articles (relevant, created_at)
	`).Error; errIndex != nil {
		return fmt.Errorf("db: create article index: %w", errIndex)
	}
	if errIndex := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_posts_status_created
		ON posts (status, created_at)
	`).Error; errIndex != nil {
		return fmt.Errorf("db: create post index: %w", errIndex)
	}
	return nil
}
