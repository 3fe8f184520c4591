package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comment-rating/internal/domain"
	"github.com/tbourn/go-comment-rating/internal/http/middleware"
	"github.com/tbourn/go-comment-rating/internal/services"
)

// VoteService casts and reads votes.
//
// Implementations must be safe for concurrent use and honor ctx.
type VoteService interface {
	// Cast applies the voter's requested value (-1 or +1) to a comment and
	// returns the state read back after commit.
	Cast(ctx context.Context, commentID int64, voter domain.VoterKey, value int, idemKey string) (*services.VoteResult, error)
	// State returns the aggregate and the voter's own vote.
	State(ctx context.Context, commentID int64, voter domain.VoterKey) (*services.VoteResult, error)
}

// NonceIssuer issues and checks anti-forgery tokens bound to a subject.
type NonceIssuer interface {
	Issue(subject string) string
	Verify(subject, token string) error
	ExpiresIn() time.Duration
}

// Options tunes handler behavior.
type Options struct {
	// FailureStatusOK keeps HTTP 200 on endpoint failures; the envelope's
	// "success": false is then the only failure signal.
	FailureStatusOK bool
}

// Handlers groups the vote endpoints. It depends on abstract services to keep
// transport concerns apart from the vote logic.
type Handlers struct {
	votes  VoteService
	nonces NonceIssuer
	opt    Options
}

// New constructs Handlers bound to the given services.
func New(votes VoteService, nonces NonceIssuer, opt Options) *Handlers {
	return &Handlers{votes: votes, nonces: nonces, opt: opt}
}

// nonceSubject binds nonces to the signed-in user, or to the session cookie
// for anonymous visitors.
func nonceSubject(c *gin.Context) string {
	if v := middleware.VoterKeyFrom(c); v.Authenticated() {
		return "user:" + v.ID
	}
	return "anon:" + middleware.SessionIDFrom(c)
}

// idempotencyKey prefers the key validated by the middleware and falls back
// to the raw header when no middleware ran.
func idempotencyKey(c *gin.Context) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}
