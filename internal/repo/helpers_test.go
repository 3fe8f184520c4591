package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-comment-rating/internal/domain"
)

// newTestDB returns a migrated in-memory database private to t, opened
// through OpenSQLite so tests run with the production pragmas and pool.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite("file:repo_" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedComment(t *testing.T, db *gorm.DB, id int64) {
	t.Helper()
	if err := EnsureComment(context.Background(), db, id); err != nil {
		t.Fatalf("seed comment %d: %v", id, err)
	}
}

// countRows counts stored vote rows for commentID, whatever their value.
func countRows(t *testing.T, db *gorm.DB, commentID int64) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Vote{}).Where(&domain.Vote{CommentID: commentID}).Count(&n).Error; err != nil {
		t.Fatalf("count votes: %v", err)
	}
	return n
}
