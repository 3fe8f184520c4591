// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders. API responses are never meant to be
// rendered as documents, so they get a deny-all content policy. The widget
// fragment is the one response a host page may frame, and only the origins
// listed in FrameAncestors may do so.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests. Enable
	// only when traffic is HTTPS end to end, proxy hop included.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// FrameAncestors lists origins allowed to frame responses. Empty forbids
	// framing entirely.
	FrameAncestors []string
}

// SecurityHeaders attaches hardening headers to every response:
//
//	X-Content-Type-Options: nosniff
//	Referrer-Policy: no-referrer
//	Content-Security-Policy: default-src 'none'; frame-ancestors ...
//	Permissions-Policy: (all features disabled)
//	X-Frame-Options: DENY        (only when FrameAncestors is empty)
//	Strict-Transport-Security    (EnableHSTS and HTTPS only)
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains"

	ancestors := "'none'"
	if len(opt.FrameAncestors) > 0 {
		ancestors = strings.Join(opt.FrameAncestors, " ")
	}
	csp := "default-src 'none'; frame-ancestors " + ancestors
	denyFrames := len(opt.FrameAncestors) == 0

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", csp)
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
		// X-Frame-Options cannot express an allowlist; CSP covers that case.
		if denyFrames {
			h.Set("X-Frame-Options", "DENY")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

// isHTTPS reports whether r arrived over TLS, directly or behind a proxy
// that set X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
