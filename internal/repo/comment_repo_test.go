package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-comment-rating/internal/domain"
)

func TestCommentRepo_EnsureExistsDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if ok, err := CommentExists(ctx, db, 42); err != nil || ok {
		t.Fatalf("CommentExists before ensure = %v, %v", ok, err)
	}
	if err := EnsureComment(ctx, db, 42); err != nil {
		t.Fatalf("EnsureComment: %v", err)
	}
	// second registration is a no-op
	if err := EnsureComment(ctx, db, 42); err != nil {
		t.Fatalf("EnsureComment again: %v", err)
	}
	if ok, err := CommentExists(ctx, db, 42); err != nil || !ok {
		t.Fatalf("CommentExists after ensure = %v, %v", ok, err)
	}

	if err := DeleteComment(ctx, db, 42); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if err := DeleteComment(ctx, db, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteComment unknown err = %v; want ErrNotFound", err)
	}
}

func TestDeleteComment_CascadesVotes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedComment(t, db, 11)

	_ = InsertVote(ctx, db, 11, domain.UserVoter("a"), domain.Upvote)
	_ = InsertVote(ctx, db, 11, domain.AnonVoter("b"), domain.Downvote)
	if n := countRows(t, db, 11); n != 2 {
		t.Fatalf("rows before delete = %d", n)
	}

	if err := DeleteComment(ctx, db, 11); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if n := countRows(t, db, 11); n != 0 {
		t.Fatalf("rows after cascade = %d; want 0", n)
	}
}
