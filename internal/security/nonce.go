// Package security issues and verifies the anti-forgery nonces that vote
// requests must carry.
//
// A nonce is an HMAC-SHA256 over (action, subject, tick) where tick advances
// every half lifetime. Verify accepts the current and the previous tick, so a
// nonce stays valid for between half and one full lifetime after it was
// issued. The subject binds the nonce to a session; a nonce lifted from
// another session does not verify.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinSecretLen is the shortest secret NewIssuer accepts.
const MinSecretLen = 16

// DefaultAction scopes nonces issued for the vote endpoint.
const DefaultAction = "comment-rating"

var (
	// ErrMissingNonce is returned when the request carries no nonce at all.
	ErrMissingNonce = errors.New("missing nonce")
	// ErrInvalidNonce is returned for a nonce that does not verify.
	ErrInvalidNonce = errors.New("invalid nonce")
	// ErrShortSecret is returned by NewIssuer for secrets under MinSecretLen.
	ErrShortSecret = errors.New("nonce secret too short")
)

// Issuer signs and checks nonces with a fixed secret.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
	action   string
	now      func() time.Time
}

// NewIssuer returns an Issuer valid for lifetime. A non-positive lifetime
// falls back to 24h.
func NewIssuer(secret []byte, lifetime time.Duration) (*Issuer, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrShortSecret
	}
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &Issuer{
		secret:   append([]byte(nil), secret...),
		lifetime: lifetime,
		action:   DefaultAction,
		now:      time.Now,
	}, nil
}

// RandomSecret returns n bytes from crypto/rand, for development setups that
// do not configure a secret.
func RandomSecret(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate nonce secret: %w", err)
	}
	return b, nil
}

// Issue returns a nonce for subject valid from now.
func (i *Issuer) Issue(subject string) string {
	return i.sign(subject, i.tick(i.now()))
}

// Verify checks token against subject.
func (i *Issuer) Verify(subject, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissingNonce
	}
	t := i.tick(i.now())
	for _, tk := range []int64{t, t - 1} {
		if hmac.Equal([]byte(token), []byte(i.sign(subject, tk))) {
			return nil
		}
	}
	return ErrInvalidNonce
}

// ExpiresIn is the guaranteed remaining validity of a nonce issued now.
func (i *Issuer) ExpiresIn() time.Duration {
	half := i.half()
	now := i.now()
	next := time.Unix(0, (i.tick(now)+1)*int64(half))
	// the previous-tick window keeps it alive one more half lifetime
	return next.Sub(now) + half
}

// Lifetime reports the configured lifetime.
func (i *Issuer) Lifetime() time.Duration { return i.lifetime }

func (i *Issuer) half() time.Duration {
	h := i.lifetime / 2
	if h <= 0 {
		h = 1
	}
	return h
}

func (i *Issuer) tick(t time.Time) int64 {
	return t.UnixNano() / int64(i.half())
}

func (i *Issuer) sign(subject string, tick int64) string {
	h := hmac.New(sha256.New, i.secret)
	h.Write([]byte(i.action))
	h.Write([]byte{0})
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(tick, 10)))
	// URL-safe base64, first 16 bytes of the MAC, no padding
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)[:16])
}
