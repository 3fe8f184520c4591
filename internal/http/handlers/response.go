// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response envelopes shared by every endpoint. Both
// outcomes wrap their payload the same way so the widget script can branch on
// a single field:
//
//	HTTP/1.1 200 OK
//	{"success": true, "data": {"votes": {"upvotes": 1, "downvotes": 0, "total": 1}, "user_vote": 1}}
//
//	HTTP/1.1 404 Not Found
//	{"success": false, "data": {"message": "Comment not found.", "code": "not_found", "request_id": "..."}}
//
// Failure messages are localized through the negotiated request language.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comment-rating/internal/domain"
	"github.com/tbourn/go-comment-rating/internal/http/middleware"
	"github.com/tbourn/go-comment-rating/internal/i18n"
	"github.com/tbourn/go-comment-rating/internal/services"
)

// VoteData is the state of one comment as seen by the requesting voter.
type VoteData struct {
	Votes domain.VoteCounts `json:"votes"`
	// UserVote is 1, -1, or 0 when the voter holds no vote.
	UserVote int `json:"user_vote" example:"1" enums:"-1,0,1"`
}

// VoteResponse is the success envelope of the vote and state endpoints.
type VoteResponse struct {
	Success bool     `json:"success" example:"true"`
	Data    VoteData `json:"data"`
}

// NonceData carries a freshly issued anti-forgery token.
type NonceData struct {
	Nonce string `json:"nonce" example:"q0yT3f0c2R9nYk1xv7bW0A"`
	// ExpiresIn is the guaranteed remaining validity in seconds.
	ExpiresIn int64 `json:"expires_in" example:"43200"`
}

// NonceResponse is the success envelope of the nonce endpoint.
type NonceResponse struct {
	Success bool      `json:"success" example:"true"`
	Data    NonceData `json:"data"`
}

// ErrorResponse documents the failure envelope in the OpenAPI document.
type ErrorResponse = middleware.Failure

func newVoteResponse(res *services.VoteResult) VoteResponse {
	return VoteResponse{
		Success: true,
		Data: VoteData{
			Votes:    res.Votes,
			UserVote: res.UserVoteInt(),
		},
	}
}

// fail aborts the request with the failure envelope. Server errors (>=500)
// are logged with the request-scoped logger.
func fail(c *gin.Context, status int, code string, key i18n.Key) {
	logFailure(c, status, code)
	middleware.AbortFailure(c, status, code, key)
}

// Fail is the exported variant of fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code string, key i18n.Key) { fail(c, status, code, key) }

// fail answers an endpoint failure. With FailureStatusOK the envelope is
// sent with status 200 and only "success": false tells the client it failed.
func (h *Handlers) fail(c *gin.Context, status int, code string, key i18n.Key) {
	logFailure(c, status, code)
	if h.opt.FailureStatusOK {
		status = http.StatusOK
	}
	middleware.AbortFailure(c, status, code, key)
}

func logFailure(c *gin.Context, status int, code string) {
	if status < http.StatusInternalServerError {
		return
	}
	lg := middleware.LoggerFrom(c)
	lg.Error().
		Int("status", status).
		Str("code", code).
		Strs("errors", c.Errors.Errors()).
		Msg("api error")
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
