// Package dbtest provides an isolated, migrated in-memory database for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rogue-Bear-Innovations/linker-back/internal/db"
)

func New(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(conn))
	return conn
}

func CreateUser(t *testing.T, conn *gorm.DB, email string) *db.User {
	t.Helper()

	user := db.User{
		Email:    email,
		Password: "hash",
		Token:    uuid.New().String(),
	}
	require.NoError(t, conn.Create(&user).Error)
	return &user
}

func CreateIssue(t *testing.T, conn *gorm.DB, title string) *db.Issue {
	t.Helper()

	issue := db.Issue{Title: title}
	require.NoError(t, conn.Create(&issue).Error)
	return &issue
}

func CreateLink(t *testing.T, conn *gorm.DB, owner *db.User, title string, position *int) *db.Link {
	t.Helper()

	link := db.Link{
		URL:      "https://example.com/" + uuid.New().String(),
		Title:    title,
		Position: position,
		UserID:   owner.ID,
	}
	require.NoError(t, conn.Omit("User", "Issue").Create(&link).Error)
	return &link
}

func Int(v int) *int {
	return &v
}
