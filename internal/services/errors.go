// Package services defines the business logic for voting on comments.
// This file centralizes the service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/go-comment-rating/internal/domain"
)

var (
	// ErrInvalidVote is returned when the requested vote value is outside
	// {-1, +1}. It matches domain.ErrInvalidVoteValue under errors.Is.
	ErrInvalidVote = domain.ErrInvalidVoteValue

	// ErrInvalidCommentID is returned for a non-positive comment id.
	ErrInvalidCommentID = errors.New("comment id must be a positive integer")

	// ErrCommentNotFound indicates that the comment is not registered.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrIdempotencyConflict is returned when an Idempotency-Key already
	// used by the voter on the comment arrives with the other vote value.
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different vote value")

	// ErrStore wraps any persistence failure while reading or writing votes.
	// Nothing is committed when it is returned from Cast.
	ErrStore = errors.New("vote store failure")
)

// storeErr tags err as a persistence failure during op.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
