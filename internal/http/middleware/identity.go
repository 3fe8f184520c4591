// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves who is voting. Auth verifies an optional bearer token
// and stores the user id; Voter turns that id, or the client address when
// there is none, into the domain.VoterKey every vote is stored under.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-comment-rating/internal/domain"
	"github.com/tbourn/go-comment-rating/internal/i18n"
)

const (
	// userIDKey holds the authenticated user id (string).
	userIDKey = "userID"
	// voterKey holds the resolved domain.VoterKey.
	voterKey = "voter"
)

var errNoSubject = errors.New("token carries no user id")

// Auth verifies "Authorization: Bearer <jwt>" signed with HS256 and stores the
// user id from the "sub" or "user_id" claim under "userID".
//
// Requests without an Authorization header pass through as anonymous. A
// header that is present but does not verify is rejected with 401. An empty
// secret disables the middleware.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if len(key) == 0 {
			c.Next()
			return
		}
		h := c.GetHeader("Authorization")
		if h == "" {
			c.Next()
			return
		}
		raw, found := strings.CutPrefix(h, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			AbortFailure(c, http.StatusUnauthorized, "unauthorized", i18n.MsgUnauthorized)
			return
		}
		uid, err := parseUserID(strings.TrimSpace(raw), key)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("bearer token rejected")
			AbortFailure(c, http.StatusUnauthorized, "unauthorized", i18n.MsgUnauthorized)
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

func parseUserID(raw string, key []byte) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	for _, name := range []string{"sub", "user_id"} {
		switch v := claims[name].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v, nil
			}
		case float64:
			if v > 0 && v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10), nil
			}
		case nil:
		default:
			return "", fmt.Errorf("claim %q has unsupported type %T", name, v)
		}
	}
	return "", errNoSubject
}

// UserIDFrom returns the authenticated user id, if any.
func UserIDFrom(c *gin.Context) (string, bool) {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Voter resolves the voter key once per request and stores it under "voter".
// Place it after Auth.
func Voter() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(voterKey, resolveVoter(c))
		c.Next()
	}
}

// VoterKeyFrom returns the voter key for c. It never fails: without a user
// id the client address stands in, as resolved by gin (which honours only
// the configured trusted proxies).
func VoterKeyFrom(c *gin.Context) domain.VoterKey {
	if v, ok := c.Get(voterKey); ok {
		if k, ok := v.(domain.VoterKey); ok {
			return k
		}
	}
	return resolveVoter(c)
}

func resolveVoter(c *gin.Context) domain.VoterKey {
	if uid, ok := UserIDFrom(c); ok {
		return domain.UserVoter(uid)
	}
	return domain.AnonVoter(c.ClientIP())
}

func voterKindOf(v any) string {
	if k, ok := v.(domain.VoterKey); ok {
		return string(k.Kind)
	}
	return ""
}
