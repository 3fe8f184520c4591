package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comment-rating/internal/i18n"
	"github.com/tbourn/go-comment-rating/internal/services"
)

// Failure codes carried in the envelope's "code" field. Clients branch on
// these; the message beside them is for display only.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeInvalidNonce     = "invalid_nonce"
	ErrCodeInvalidVote      = "invalid_vote"
	ErrCodeInvalidComment   = "invalid_comment"
	ErrCodeNotFound         = "not_found"
	ErrCodeIdemConflict     = "idempotency_key_conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"
)

type failure struct {
	status int
	code   string
	msg    i18n.Key
}

// serviceFailures lists the service errors a client can act on. Anything
// else is answered as internal_error.
var serviceFailures = []struct {
	err error
	failure
}{
	{services.ErrInvalidVote, failure{http.StatusBadRequest, ErrCodeInvalidVote, i18n.MsgInvalidVote}},
	{services.ErrInvalidCommentID, failure{http.StatusBadRequest, ErrCodeInvalidComment, i18n.MsgInvalidComment}},
	{services.ErrCommentNotFound, failure{http.StatusNotFound, ErrCodeNotFound, i18n.MsgCommentNotFound}},
	{services.ErrIdempotencyConflict, failure{http.StatusConflict, ErrCodeIdemConflict, i18n.MsgIdemConflict}},
}

// failService maps a VoteService error to its response.
func (h *Handlers) failService(c *gin.Context, err error) {
	for _, sf := range serviceFailures {
		if errors.Is(err, sf.err) {
			h.fail(c, sf.status, sf.code, sf.msg)
			return
		}
	}
	_ = c.Error(err)
	h.fail(c, http.StatusInternalServerError, ErrCodeInternal, i18n.MsgGeneric)
}
