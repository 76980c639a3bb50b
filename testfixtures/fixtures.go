// Package testfixtures builds throwaway Redis and SQL backends for tests.
package testfixtures

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"constructlink/db"
	"constructlink/models"
	"constructlink/security"
)

var dbSeq atomic.Int64

// Redis starts an in-process Redis that is stopped with the test.
func Redis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

// DB opens a private in-memory sqlite database with the full schema.
func DB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:cltest%d?mode=memory&cache=shared", dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// CreateUser inserts an active user whose password is password.
func CreateUser(t testing.TB, gdb *gorm.DB, username, role, password string) models.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	require.NoError(t, err)
	u := models.User{
		Username:     username,
		FullName:     strings.ToUpper(username[:1]) + username[1:],
		Email:        username + "@example.com",
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
	}
	require.NoError(t, gdb.WithContext(context.Background()).Create(&u).Error)
	return u
}

// Deactivate marks a user inactive; gorm skips false on insert because of
// the column default.
func Deactivate(t testing.TB, gdb *gorm.DB, userID uint) {
	t.Helper()
	require.NoError(t, gdb.Model(&models.User{}).Where("id = ?", userID).Update("is_active", false).Error)
}

// CreateProject inserts an active project.
func CreateProject(t testing.TB, gdb *gorm.DB, code string) models.Project {
	t.Helper()
	p := models.Project{Name: "Project " + code, Code: code, IsActive: true}
	require.NoError(t, gdb.Create(&p).Error)
	return p
}

// AssignProject sets the user's current project.
func AssignProject(t testing.TB, gdb *gorm.DB, userID, projectID uint) {
	t.Helper()
	require.NoError(t, gdb.Model(&models.User{}).Where("id = ?", userID).Update("current_project_id", projectID).Error)
}

// CreateBatch inserts a batch in project with one borrowed tool per asset ref.
func CreateBatch(t testing.TB, gdb *gorm.DB, reference string, projectID uint, assetRefs ...string) models.BorrowedToolBatch {
	t.Helper()
	b := models.BorrowedToolBatch{
		Reference:    reference,
		ProjectID:    projectID,
		BorrowerName: "Juan Dela Cruz",
		Purpose:      "Formworks",
		Status:       "released",
	}
	require.NoError(t, gdb.Create(&b).Error)
	for _, ref := range assetRefs {
		a := models.Asset{Ref: ref, Name: "Asset " + ref, ProjectID: &projectID, Status: "borrowed"}
		require.NoError(t, gdb.Create(&a).Error)
		it := models.BorrowedTool{BatchID: b.ID, AssetID: a.ID, Quantity: 1, Condition: "Good", Status: "borrowed"}
		require.NoError(t, gdb.Create(&it).Error)
		b.Items = append(b.Items, it)
	}
	return b
}
