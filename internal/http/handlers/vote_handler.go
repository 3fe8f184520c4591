// Vote HTTP handlers.
//
// This file exposes the endpoints the widget talks to:
//   - POST /votes                  (cast, toggle or switch a vote)
//   - GET  /comments/{id}/votes    (read the aggregate and the caller's vote)
//
// Cast checks run in a fixed order and stop at the first failure: the nonce,
// then the vote value, then the comment id, then (in the service) whether
// the comment exists.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comment-rating/internal/domain"
	"github.com/tbourn/go-comment-rating/internal/http/middleware"
	"github.com/tbourn/go-comment-rating/internal/i18n"
)

// VoteRequest is the vote payload, sent as JSON or as an URL-encoded form.
// Numbers may arrive quoted; they are parsed after the nonce is checked.
type VoteRequest struct {
	CommentID scalar `json:"comment_id" form:"comment_id" swaggertype:"integer" example:"42"`
	VoteValue scalar `json:"vote_value" form:"vote_value" swaggertype:"integer" enums:"-1,1" example:"1"`
	// Nonce may instead be sent in the X-CR-Nonce header.
	Nonce string `json:"nonce,omitempty" form:"nonce" example:"q0yT3f0c2R9nYk1xv7bW0A"`
}

// scalar holds a JSON value as text, unquoting strings, so a malformed
// number surfaces as a validation failure instead of a decode error.
type scalar string

func (s *scalar) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = scalar(str)
		return nil
	}
	*s = scalar(b)
	return nil
}

// Vote godoc
// @ID          castVote
// @Summary     Vote on a comment
// @Description Casts +1 or -1 on a comment. Repeating the held vote removes it; the opposite vote replaces it.
// @Description Returns the aggregate and the caller's vote read back after the write.
// @Tags        Votes
// @Accept      json,x-www-form-urlencoded
// @Produce     json
//
// @Param       Authorization    header  string  false "Bearer token; anonymous voters are keyed by address"
// @Param       X-CR-Nonce       header  string  false "Anti-forgery nonce (alternative to the body field)"
// @Param       Idempotency-Key  header  string  false "Retry key; a repeated key does not toggle again"
// @Param       body             body    handlers.VoteRequest true "Vote payload"
//
// @Success     200  {object} handlers.VoteResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid vote value or comment id"
// @Failure     403  {object} handlers.ErrorResponse "Missing or expired nonce"
// @Failure     404  {object} handlers.ErrorResponse "Comment not found"
// @Failure     409  {object} handlers.ErrorResponse "Idempotency-Key reused with the other vote value"
// @Failure     429  {object} handlers.ErrorResponse "Rate limited"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /votes [post]
func (h *Handlers) Vote(c *gin.Context) {
	var req VoteRequest
	bindErr := c.ShouldBind(&req)

	if !c.GetBool(nonceCheckedKey) {
		token := strings.TrimSpace(req.Nonce)
		if token == "" {
			token = c.GetHeader(middleware.HeaderNonce)
		}
		if !h.verifyNonce(c, token) {
			return
		}
	}
	if bindErr != nil {
		h.fail(c, http.StatusBadRequest, ErrCodeBadRequest, i18n.MsgInvalidVote)
		return
	}

	value, err := strconv.Atoi(strings.TrimSpace(string(req.VoteValue)))
	if err != nil || !domain.VoteValue(value).Valid() {
		h.fail(c, http.StatusBadRequest, ErrCodeInvalidVote, i18n.MsgInvalidVote)
		return
	}
	commentID, valid := parseCommentID(string(req.CommentID))
	if !valid {
		h.fail(c, http.StatusBadRequest, ErrCodeInvalidComment, i18n.MsgInvalidComment)
		return
	}

	res, err := h.votes.Cast(c.Request.Context(), commentID, middleware.VoterKeyFrom(c), value, idempotencyKey(c))
	if err != nil {
		h.failService(c, err)
		return
	}
	if res.Replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	ok(c, http.StatusOK, newVoteResponse(res))
}

// VoteState godoc
// @ID          getVoteState
// @Summary     Read a comment's votes
// @Description Returns the aggregate and the caller's current vote. Clients use it to resync after a lost response.
// @Tags        Votes
// @Produce     json
//
// @Param       id   path     int  true  "Comment ID"  minimum(1) example(42)
//
// @Success     200  {object} handlers.VoteResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid comment id"
// @Failure     404  {object} handlers.ErrorResponse "Comment not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /comments/{id}/votes [get]
func (h *Handlers) VoteState(c *gin.Context) {
	commentID, valid := parseCommentID(c.Param("id"))
	if !valid {
		h.fail(c, http.StatusBadRequest, ErrCodeInvalidComment, i18n.MsgInvalidComment)
		return
	}
	res, err := h.votes.State(c.Request.Context(), commentID, middleware.VoterKeyFrom(c))
	if err != nil {
		h.failService(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, newVoteResponse(res))
}

func parseCommentID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
