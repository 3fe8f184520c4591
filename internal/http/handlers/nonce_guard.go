package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comment-rating/internal/http/middleware"
	"github.com/tbourn/go-comment-rating/internal/i18n"
)

// nonceCheckedKey marks a request whose nonce RequireNonce already verified.
const nonceCheckedKey = "nonce.checked"

// RequireNonce verifies the vote nonce before anything else on the route
// runs. A request that fails gets 403 invalid_nonce and never reaches the
// idempotency validator or the rate limiter. The body is put back for the
// handler to bind.
func (h *Handlers) RequireNonce() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.verifyNonce(c, requestNonce(c)) {
			return
		}
		c.Set(nonceCheckedKey, true)
		c.Next()
	}
}

// verifyNonce fails the request and reports false when token does not verify
// for the caller's session.
func (h *Handlers) verifyNonce(c *gin.Context, token string) bool {
	if err := h.nonces.Verify(nonceSubject(c), token); err != nil {
		h.fail(c, http.StatusForbidden, ErrCodeInvalidNonce, i18n.MsgInvalidNonce)
		return false
	}
	return true
}

// requestNonce reads the nonce the way Vote binds it: the "nonce" field of
// the JSON or form body, then the X-CR-Nonce header.
func requestNonce(c *gin.Context) string {
	var token string
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if body, ok := middleware.PeekBody(c); ok {
			var in struct {
				Nonce string `json:"nonce"`
			}
			if json.Unmarshal(body, &in) == nil {
				token = in.Nonce
			}
		}
	} else {
		token = c.Request.FormValue("nonce")
	}
	if token = strings.TrimSpace(token); token != "" {
		return token
	}
	return c.GetHeader(middleware.HeaderNonce)
}
