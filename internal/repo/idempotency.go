package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-comment-rating/internal/domain"
)

// idemKey scopes a query to one (voter, comment, key) triple.
func idemKey(voter domain.VoterKey, commentID int64, key string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("voter_kind = ? AND voter_id = ? AND comment_id = ? AND key = ?",
			string(voter.Kind), voter.ID, commentID, key)
	}
}

// GetIdempotency returns the record for key if it is still live at now, or
// ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, voter domain.VoterKey, commentID int64, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	if err := db.WithContext(ctx).
		Scopes(idemKey(voter, commentID, key)).
		Where("expires_at > ?", now).
		Take(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency remembers key and the vote value it carried for
// (voter, comment) until ttl elapses,
// first clearing an expired record under the same key. A live record makes
// it fail with ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, voter domain.VoterKey, commentID int64, key string, value domain.VoteValue, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	q := db.WithContext(ctx)

	stale := q.Scopes(idemKey(voter, commentID, key)).Where("expires_at <= ?", now)
	if err := stale.Delete(&domain.Idempotency{}).Error; err != nil {
		return nil, err
	}

	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		VoterKind: string(voter.Kind),
		VoterID:   voter.ID,
		CommentID: commentID,
		Key:       key,
		Value:     int(value),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := q.Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeIdempotency deletes records expired at now and reports how many went.
func PurgeIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
