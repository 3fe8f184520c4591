// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header of vote requests. A key is
// scoped to one voter and one comment. The vote transaction is what actually
// refuses to apply a key twice; the lookup here only recognises replays early
// so the rate limiter does not charge them.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comment-rating/internal/domain"
	"github.com/tbourn/go-comment-rating/internal/i18n"
)

// HeaderIdempotencyKey carries a client-chosen key that is stable across
// retries of the same vote.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	// maxPeekBytes bounds how much of a request body is buffered to find the
	// comment id.
	maxPeekBytes = 64 << 10

	defaultIdemKeyMaxLen = 200

	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultIdemKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key IdempotencyValidator accepted, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyIdemKey)
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup found this voter already used the key
// on this comment.
func IsReplay(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyIdemReplay)
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures key validation.
type IdempotencyOptions struct {
	// MaxLen defaults to 200.
	MaxLen int
	// Pattern defaults to token characters: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a live record exists for
// (voter, commentID, key) at now. Expiry is the lookup's concern.
type IdempotencyLookup func(ctx context.Context, voter domain.VoterKey, commentID int64, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator passes requests without the header through untouched
// and rejects a malformed key with 400 bad_idempotency_key. An accepted key
// is stored for GetIdempotencyKey. When lookup is set and finds a prior use,
// the request is flagged as a replay and exempted from rate limiting. Lookup
// errors only cost the exemption.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemKeyMaxLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			AbortFailure(c, http.StatusBadRequest, "bad_idempotency_key", i18n.MsgBadIdemKey)
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			if commentID, ok := peekCommentID(c); ok {
				exists, err := lookup(c.Request.Context(), VoterKeyFrom(c), commentID, key, time.Now().UTC())
				switch {
				case err != nil:
					LoggerFrom(c).Warn().Err(err).Int64("comment_id", commentID).Msg("idempotency lookup failed")
				case exists:
					c.Set(ctxKeyIdemReplay, true)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}
		c.Next()
	}
}

// peekCommentID finds comment_id in the path, the query, or the form or JSON
// body. A buffered body is put back for the handler to bind.
func peekCommentID(c *gin.Context) (int64, bool) {
	if v := c.Param("id"); v != "" {
		return parseID(v)
	}
	if v := c.Query("comment_id"); v != "" {
		return parseID(v)
	}
	body, ok := PeekBody(c)
	if !ok {
		return 0, false
	}

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var in struct {
			CommentID json.Number `json:"comment_id"`
		}
		if json.Unmarshal(body, &in) != nil {
			return 0, false
		}
		return parseID(in.CommentID.String())
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return 0, false
	}
	return parseID(form.Get("comment_id"))
}

// PeekBody returns up to 64 KiB of the request body and puts it back for the
// next reader. It reports false when there is no body, reading fails, or the
// body is larger than that.
func PeekBody(c *gin.Context) ([]byte, bool) {
	if c.Request.Body == nil {
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPeekBytes+1))
	rest := c.Request.Body
	c.Request.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), rest), rest}
	if err != nil || len(body) > maxPeekBytes {
		return nil, false
	}
	return body, true
}

func parseID(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil && n > 0
}
