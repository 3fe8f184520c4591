package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/tbourn/go-comment-rating/internal/i18n"
)

const langKey = "lang"

// FailureData carries the details of a failed request.
type FailureData struct {
	// Human-readable message in the negotiated language
	Message string `json:"message" example:"Comment not found."`
	// Stable, machine-readable code
	Code string `json:"code" example:"not_found"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// Failure is the envelope of every failed response:
//
//	{"success": false, "data": {"message": "...", "code": "...", "request_id": "..."}}
type Failure struct {
	Success bool        `json:"success" example:"false"`
	Data    FailureData `json:"data"`
}

// NewFailure builds the envelope for c with msg already localized.
func NewFailure(c *gin.Context, code, msg string) Failure {
	return Failure{
		Data: FailureData{
			Message:   msg,
			Code:      code,
			RequestID: c.Writer.Header().Get(requestIDHeader),
		},
	}
}

// AbortFailure stops the chain with the failure envelope, translating key
// into the request's language. The code is also left on the context for
// Metrics.
func AbortFailure(c *gin.Context, status int, code string, key i18n.Key) {
	c.Set(failureCodeKey, code)
	c.AbortWithStatusJSON(status, NewFailure(c, code, i18n.T(LangFrom(c), key)))
}

// Locale negotiates the response language from Accept-Language and stores it
// in the Gin context.
func Locale(def language.Tag) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(langKey, i18n.Negotiate(c.GetHeader("Accept-Language"), def))
		c.Next()
	}
}

// LangFrom returns the negotiated language, English when Locale did not run.
func LangFrom(c *gin.Context) language.Tag {
	if v, ok := c.Get(langKey); ok {
		if tag, ok := v.(language.Tag); ok {
			return tag
		}
	}
	return language.English
}
