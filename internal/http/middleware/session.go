package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionKey = "sessionID"

// HeaderNonce may carry the vote nonce instead of the form field.
const HeaderNonce = "X-CR-Nonce"

// SessionOptions configures the anonymous session cookie.
type SessionOptions struct {
	CookieName string
	Secure     bool
	MaxAge     int // seconds; 0 makes it a browser-session cookie
}

// Session makes sure every visitor carries a session id cookie. Nonces are
// bound to it, so a nonce leaked from one browser is useless in another.
// A missing or malformed cookie is replaced with a fresh random id.
func Session(opt SessionOptions) gin.HandlerFunc {
	name := opt.CookieName
	if name == "" {
		name = "cr_session"
	}
	return func(c *gin.Context) {
		sid, err := c.Cookie(name)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(name, sid, opt.MaxAge, "/", "", opt.Secure, true)
		}
		c.Set(sessionKey, sid)
		c.Next()
	}
}

// SessionIDFrom returns the session id stored by Session, or "".
func SessionIDFrom(c *gin.Context) string {
	return c.GetString(sessionKey)
}
