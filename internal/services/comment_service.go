package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-comment-rating/internal/repo"
)

// CommentService registers and removes the comment ids votes may target.
type CommentService struct {
	DB *gorm.DB
}

// Register makes id votable. Registering a known id is a no-op.
func (s *CommentService) Register(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidCommentID
	}
	if err := repo.EnsureComment(ctx, s.DB, id); err != nil {
		return storeErr("register comment", err)
	}
	return nil
}

// Remove deletes id together with every vote cast on it.
func (s *CommentService) Remove(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidCommentID
	}
	if err := repo.DeleteComment(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrCommentNotFound
		}
		return storeErr("remove comment", err)
	}
	return nil
}
