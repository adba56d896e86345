// Package testutil builds throwaway sqlite databases and fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"memberhub/config"
	"memberhub/internal/database"
	"memberhub/internal/domain"
	"memberhub/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewDB returns a migrated in-memory sqlite database private to the test.
// A single connection serializes writers the way row locks do on MySQL.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, dbSeq.Add(1))
	db, err := database.NewDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          dsn,
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateAccount inserts an account with the given role and opening balance.
func CreateAccount(t *testing.T, db *gorm.DB, username, role string, balance int64) *models.Account {
	t.Helper()
	if role == "" {
		role = domain.RoleUser
	}
	acc := &models.Account{
		Username: username,
		Email:    username + "@example.test",
		Role:     role,
		Balance:  balance,
	}
	require.NoError(t, db.Create(acc).Error)
	return acc
}

// Balance reloads an account's balance.
func Balance(t *testing.T, db *gorm.DB, id uint) int64 {
	t.Helper()
	var acc models.Account
	require.NoError(t, db.First(&acc, id).Error)
	return acc.Balance
}

// CountRows counts rows of model matching the optional where clause.
func CountRows(t *testing.T, db *gorm.DB, model any, where ...any) int64 {
	t.Helper()
	q := db.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	var n int64
	require.NoError(t, q.Count(&n).Error)
	return n
}
