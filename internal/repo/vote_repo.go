// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the vote store: point lookups, the three
// mutations a transition can resolve to, the per-voter lock, and the derived
// aggregate.
//
// Every function takes the *gorm.DB to run on, so the service layer can
// compose lock → read → write inside one transaction.
//
// Error semantics:
//   - A missing vote is reported as ErrNotFound.
//   - An insert that collides with the (comment_id, voter) unique index is
//     reported as ErrDuplicate.
//   - Anything else is the raw gorm error.
package repo

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-comment-rating/internal/domain"
)

// GetVote returns the stored vote of voter on commentID, or ErrNotFound.
func GetVote(ctx context.Context, db *gorm.DB, commentID int64, voter domain.VoterKey) (*domain.Vote, error) {
	var v domain.Vote
	err := db.WithContext(ctx).
		Where("comment_id = ? AND voter_kind = ? AND voter_id = ?", commentID, string(voter.Kind), voter.ID).
		Take(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetVoteValue is GetVote reduced to the stored value; nil means no vote.
func GetVoteValue(ctx context.Context, db *gorm.DB, commentID int64, voter domain.VoterKey) (*domain.VoteValue, error) {
	v, err := GetVote(ctx, db, commentID, voter)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	val := domain.VoteValue(v.Value)
	return &val, nil
}

// InsertVote stores a new vote. It returns ErrDuplicate when the voter
// already holds a vote on the comment.
func InsertVote(ctx context.Context, db *gorm.DB, commentID int64, voter domain.VoterKey, value domain.VoteValue) error {
	now := time.Now().UTC()
	v := &domain.Vote{
		ID:        uuid.NewString(),
		CommentID: commentID,
		VoterKind: string(voter.Kind),
		VoterID:   voter.ID,
		Value:     int(value),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(v).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateVote overwrites the value of an existing vote. It returns
// ErrNotFound when there is nothing to update.
func UpdateVote(ctx context.Context, db *gorm.DB, commentID int64, voter domain.VoterKey, value domain.VoteValue) error {
	res := db.WithContext(ctx).
		Model(&domain.Vote{}).
		Where("comment_id = ? AND voter_kind = ? AND voter_id = ?", commentID, string(voter.Kind), voter.ID).
		Updates(map[string]any{"value": int(value), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteVote removes a vote. It returns ErrNotFound when there is nothing
// to delete.
func DeleteVote(ctx context.Context, db *gorm.DB, commentID int64, voter domain.VoterKey) error {
	res := db.WithContext(ctx).
		Where("comment_id = ? AND voter_kind = ? AND voter_id = ?", commentID, string(voter.Kind), voter.ID).
		Delete(&domain.Vote{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyDecision performs exactly the one mutation d names.
func ApplyDecision(ctx context.Context, db *gorm.DB, commentID int64, voter domain.VoterKey, d domain.Decision) error {
	switch d.Op {
	case domain.OpInsert:
		return InsertVote(ctx, db, commentID, voter, d.Value)
	case domain.OpUpdate:
		return UpdateVote(ctx, db, commentID, voter, d.Value)
	case domain.OpDelete:
		return DeleteVote(ctx, db, commentID, voter)
	}
	return fmt.Errorf("unknown vote op %s", d.Op)
}

// LockVoter serializes transactions working on the same (comment, voter)
// pair. It must run inside a transaction.
//
// On PostgreSQL it takes a transaction-scoped advisory lock, which also covers
// the first vote when there is no row yet for SELECT ... FOR UPDATE to lock.
// SQLite allows a single writer per database, and Open caps its pool at one
// connection, so there is nothing further to lock there.
func LockVoter(ctx context.Context, tx *gorm.DB, commentID int64, voter domain.VoterKey) error {
	if tx.Dialector.Name() != DriverPostgres {
		return nil
	}
	return tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", voterLockKey(commentID, voter)).Error
}

// voterLockKey hashes the pair into the bigint space of pg advisory locks.
func voterLockKey(commentID int64, voter domain.VoterKey) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "votes:%d:%s", commentID, voter.String())
	return int64(h.Sum64())
}

// CountVotes derives the aggregate for commentID from the stored votes in a
// single pass.
func CountVotes(ctx context.Context, db *gorm.DB, commentID int64) (domain.VoteCounts, error) {
	var row struct {
		Upvotes   int64
		Downvotes int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Vote{}).
		Select(
			"COALESCE(SUM(CASE WHEN value = 1 THEN 1 ELSE 0 END), 0) AS upvotes, "+
				"COALESCE(SUM(CASE WHEN value = -1 THEN 1 ELSE 0 END), 0) AS downvotes").
		Where("comment_id = ?", commentID).
		Scan(&row).Error
	if err != nil {
		return domain.VoteCounts{}, err
	}
	return domain.NewVoteCounts(row.Upvotes, row.Downvotes), nil
}
