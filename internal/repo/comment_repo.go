package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-comment-rating/internal/domain"
)

// CommentExists reports whether id is a registered comment.
func CommentExists(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("id = ?", id).
		Count(&n).Error
	return n > 0, err
}

// EnsureComment registers id if it is not known yet. Registering an existing
// comment is a no-op.
func EnsureComment(ctx context.Context, db *gorm.DB, id int64) error {
	c := &domain.Comment{ID: id, CreatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(c).Error
}

// DeleteComment unregisters id; its votes go with it through the cascading
// foreign key. It returns ErrNotFound for unknown ids.
func DeleteComment(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).Delete(&domain.Comment{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
