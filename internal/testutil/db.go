// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shinyyama/unimarket-backend/internal/db"
	"github.com/shinyyama/unimarket-backend/internal/model"
)

// NewDB opens a migrated in-memory sqlite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// every connection to :memory: is a new database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func CreateUser(t *testing.T, gdb *gorm.DB, name string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@ait.asia", Role: model.RoleUser}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

func CreateItem(t *testing.T, gdb *gorm.DB, title string, sellerID uint64) *model.Item {
	t.Helper()
	it := &model.Item{Title: title, Description: title, Price: 100, SellerID: sellerID}
	require.NoError(t, gdb.Create(it).Error)
	return it
}
