package db

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/linker-back/internal/config"
	"github.com/Rogue-Bear-Innovations/linker-back/internal/logging"
)

type (
	GormForkedModel struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	User struct {
		GormForkedModel
		Email    string `gorm:"unique;not null"`
		Password string `gorm:"not null"`
		Token    string `gorm:"index;not null"`
		Links    []Link
	}

	Issue struct {
		GormForkedModel
		Title string `gorm:"not null"`
	}

	Link struct {
		GormForkedModel
		URL         string `gorm:"size:255;not null"`
		Title       string `gorm:"size:255;not null"`
		Description *string
		Position    *int
		IssueID     *uint64 `gorm:"index"`
		Issue       *Issue
		UserID      uint64 `gorm:"index;not null"`
		User        User
	}
)

func NewGormClient(cfg *config.Config, l *zap.SugaredLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DBPath)
	default:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logging.NewGormLogger(l),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}); err != nil {
		return errors.Wrap(err, "migrate user")
	}
	if err := db.AutoMigrate(&Issue{}); err != nil {
		return errors.Wrap(err, "migrate issue")
	}
	if err := db.AutoMigrate(&Link{}); err != nil {
		return errors.Wrap(err, "migrate link")
	}
	return nil
}
