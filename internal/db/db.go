package db

import (
	"fmt"
	"log"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/miniblog/internal/models"
)

// Init opens a GORM database connection for the given URL.
// "postgres://" and "sqlite://" prefixes select the dialector.
func Init(dbURL string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch {
	case strings.HasPrefix(dbURL, "postgres://"):
		dialector = postgres.Open(dbURL)
		log.Println("Connecting to PostgreSQL database...")
	case strings.HasPrefix(dbURL, "sqlite://"):
		dsn := strings.TrimPrefix(dbURL, "sqlite://")
		// Referential integrity is storage-enforced; SQLite needs the
		// pragma or FK violations pass silently.
		if !strings.Contains(dsn, "_pragma") {
			dsn += "?_pragma=foreign_keys(1)"
		}
		dialector = sqlite.Open(dsn)
		log.Println("Connecting to SQLite database at", dsn)
	default:
		return nil, fmt.Errorf("invalid DATABASE_URL %q: must start with 'postgres://' or 'sqlite://'", dbURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Be quiet by default
		// Constraint violations surface as gorm.ErrDuplicatedKey /
		// gorm.ErrForeignKeyViolated instead of raw driver errors.
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Println("Database connection established.")
	return db, nil
}

// Migrate ensures the users, posts and comments tables exist, including
// the unique username constraint and both foreign keys. Safe to run on
// every startup.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{})
}
