// Package services – VoteService
//
// This file implements VoteService, the application-level component that owns
// the vote-state machine for (comment, voter) pairs. A cast validates the
// requested value, checks the comment, then runs lock → read → decide → write
// inside one transaction so two racing requests from the same voter can never
// both act on the same snapshot. After commit the aggregate and the voter's
// own vote are read back from the store instead of being inferred from the
// decision.
//
// Observability: public methods are OpenTelemetry-instrumented and applied
// transitions are counted in Prometheus.
package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-comment-rating/internal/domain"
	"github.com/tbourn/go-comment-rating/internal/repo"
)

// VoteResult is the post-commit state of one (comment, voter) pair.
type VoteResult struct {
	CommentID int64
	Votes     domain.VoteCounts
	// UserVote is the voter's stored vote after the request; nil means none.
	UserVote *domain.VoteValue
	// Decision is the transition that was applied. It is zero for reads and
	// for replayed requests.
	Decision domain.Decision
	// Replayed is set when an Idempotency-Key matched an earlier request and
	// nothing was written.
	Replayed bool
}

// UserVoteInt renders UserVote for the wire: +1, -1, or 0 for no vote.
func (r *VoteResult) UserVoteInt() int {
	if r == nil || r.UserVote == nil {
		return 0
	}
	return int(*r.UserVote)
}

// VoteService implements casting and reading votes.
type VoteService struct {
	DB *gorm.DB

	// IdempotencyTTL bounds how long an Idempotency-Key is remembered.
	// Zero means 24h.
	IdempotencyTTL time.Duration

	locks keyLock
}

// NewVoteService returns a VoteService over db.
func NewVoteService(db *gorm.DB, idemTTL time.Duration) *VoteService {
	return &VoteService{DB: db, IdempotencyTTL: idemTTL}
}

// Cast applies voter's requested value to commentID.
//
// Validation runs before anything touches the store: the value must be -1 or
// +1 (ErrInvalidVote), the id positive (ErrInvalidCommentID), and the comment
// registered (ErrCommentNotFound). Store failures come back wrapped in
// ErrStore and leave nothing committed.
//
// A non-empty idemKey that was already used by this voter on this comment
// skips the transition and reports the current state with Replayed set. The
// key is bound to the requested value: reusing it with the other value fails
// with ErrIdempotencyConflict and changes nothing.
func (s *VoteService) Cast(ctx context.Context, commentID int64, voter domain.VoterKey, value int, idemKey string) (res *VoteResult, err error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "Cast",
		trace.WithAttributes(
			attribute.Int64("comment.id", commentID),
			attribute.String("voter.kind", string(voter.Kind)),
			attribute.Int("vote.requested", value),
		),
	)
	defer func() {
		if err != nil {
			voteFailures.WithLabelValues(failureKind(err)).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	requested, err := domain.ParseVoteValue(value)
	if err != nil {
		return nil, ErrInvalidVote
	}
	if err := s.checkComment(ctx, commentID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(strconv.FormatInt(commentID, 10) + "|" + voter.String())
	defer unlock()

	var (
		decision domain.Decision
		replayed bool
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.LockVoter(ctx, tx, commentID, voter); err != nil {
			return storeErr("lock voter", err)
		}

		if idemKey != "" {
			rec, err := repo.GetIdempotency(ctx, tx, voter, commentID, idemKey, time.Now().UTC())
			switch {
			case err == nil && rec.Value != 0 && rec.Value != int(requested):
				return ErrIdempotencyConflict
			case err == nil:
				replayed = true
				return nil
			case !errors.Is(err, repo.ErrNotFound):
				return storeErr("read idempotency", err)
			}
		}

		current, err := repo.GetVoteValue(ctx, tx, commentID, voter)
		if err != nil {
			return storeErr("read vote", err)
		}
		d, err := domain.Decide(current, requested)
		if err != nil {
			return storeErr("decide", err)
		}
		if err := repo.ApplyDecision(ctx, tx, commentID, voter, d); err != nil {
			return storeErr(d.Op.String(), err)
		}

		if idemKey != "" {
			if _, err := repo.CreateIdempotency(ctx, tx, voter, commentID, idemKey, requested, s.idemTTL()); err != nil {
				return storeErr("record idempotency", err)
			}
		}
		decision = d
		return nil
	})
	if errors.Is(err, ErrIdempotencyConflict) {
		return nil, err
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Int64("comment_id", commentID).
			Str("voter_kind", string(voter.Kind)).
			Msg("vote transaction failed")
		return nil, err
	}

	if replayed {
		span.SetAttributes(attribute.Bool("vote.replayed", true))
	} else {
		votesApplied.WithLabelValues(decision.Op.String()).Inc()
		span.SetAttributes(attribute.String("vote.decision", decision.Op.String()))
	}

	res, err = s.read(ctx, commentID, voter)
	if err != nil {
		return nil, err
	}
	res.Decision = decision
	res.Replayed = replayed
	return res, nil
}

// State returns the aggregate for commentID and voter's current vote.
func (s *VoteService) State(ctx context.Context, commentID int64, voter domain.VoterKey) (*VoteResult, error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "State",
		trace.WithAttributes(
			attribute.Int64("comment.id", commentID),
			attribute.String("voter.kind", string(voter.Kind)),
		),
	)
	defer span.End()

	if err := s.checkComment(ctx, commentID); err != nil {
		return nil, err
	}
	return s.read(ctx, commentID, voter)
}

func (s *VoteService) checkComment(ctx context.Context, commentID int64) error {
	if commentID <= 0 {
		return ErrInvalidCommentID
	}
	ok, err := repo.CommentExists(ctx, s.DB, commentID)
	if err != nil {
		return storeErr("check comment", err)
	}
	if !ok {
		return ErrCommentNotFound
	}
	return nil
}

// read derives both halves of the result from the store.
func (s *VoteService) read(ctx context.Context, commentID int64, voter domain.VoterKey) (*VoteResult, error) {
	counts, err := repo.CountVotes(ctx, s.DB, commentID)
	if err != nil {
		return nil, storeErr("count votes", err)
	}
	uv, err := repo.GetVoteValue(ctx, s.DB, commentID, voter)
	if err != nil {
		return nil, storeErr("read vote", err)
	}
	return &VoteResult{CommentID: commentID, Votes: counts, UserVote: uv}, nil
}

func (s *VoteService) idemTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 24 * time.Hour
}
