package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comment-rating/internal/http/middleware"
	"github.com/tbourn/go-comment-rating/internal/i18n"
	"github.com/tbourn/go-comment-rating/internal/render"
)

// Nonce godoc
// @ID          issueNonce
// @Summary     Issue a vote nonce
// @Description Returns an anti-forgery token for the caller's session (or account). Send it with every vote.
// @Tags        Votes
// @Produce     json
//
// @Success     200  {object} handlers.NonceResponse
// @Router      /votes/nonce [get]
func (h *Handlers) Nonce(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, NonceResponse{
		Success: true,
		Data: NonceData{
			Nonce:     h.nonces.Issue(nonceSubject(c)),
			ExpiresIn: int64(h.nonces.ExpiresIn().Seconds()),
		},
	})
}

// Widget godoc
// @ID          renderWidget
// @Summary     Render the vote widget
// @Description Returns the HTML fragment for a comment: both vote buttons (the caller's vote marked active), the total, and a fresh nonce.
// @Tags        Votes
// @Produce     html
//
// @Param       id   path     int  true  "Comment ID"  minimum(1) example(42)
//
// @Success     200  {string} string "HTML fragment"
// @Failure     400  {object} handlers.ErrorResponse "Invalid comment id"
// @Failure     404  {object} handlers.ErrorResponse "Comment not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /comments/{id}/widget [get]
func (h *Handlers) Widget(c *gin.Context) {
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

	var buf bytes.Buffer
	err = render.Render(&buf, render.Widget{
		CommentID: commentID,
		Votes:     res.Votes,
		UserVote:  res.UserVote,
		Nonce:     h.nonces.Issue(nonceSubject(c)),
		Lang:      middleware.LangFrom(c),
	})
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, i18n.MsgGeneric)
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
