// Package auth mints and checks the HMAC tokens that guard a session's
// websocket channel.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrTokenFormat = errors.New("invalid token format")
	ErrTokenSig    = errors.New("invalid token signature")
	ErrTokenExp    = errors.New("token expired")
	ErrTokenSID    = errors.New("session id mismatch")
	ErrNoSecret    = errors.New("token secret not configured")
)

// Issuer signs tokens bound to one session id.
// Format: base64url(session_id "." exp_unix "." hex(hmac_sha256(secret, session_id "." exp_unix)))
type Issuer struct {
	secret []byte
	ttl    time.Duration
	skew   time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl, skew time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, skew: skew, now: time.Now}
}

// WithClock replaces the clock; tests use it.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Mint returns a token for the session and its expiry.
func (i *Issuer) Mint(sessionID string) (string, time.Time, error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}
	exp := i.now().Add(i.ttl).Truncate(time.Second)
	msg := sessionID + "." + strconv.FormatInt(exp.Unix(), 10)
	raw := msg + "." + hex.EncodeToString(i.sign(msg))
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), exp, nil
}

// Verify checks the signature, the session binding and the expiry. An empty
// expectSessionID accepts any session and returns the embedded one.
func (i *Issuer) Verify(token, expectSessionID string) (string, error) {
	if len(i.secret) == 0 {
		return "", ErrNoSecret
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrTokenFormat
	}
	// the session id is a uuid and never contains a dot
	parts := strings.Split(string(b), ".")
	if len(parts) != 3 {
		return "", ErrTokenFormat
	}
	sid, expStr, sigHex := parts[0], parts[1], parts[2]
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", ErrTokenFormat
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", ErrTokenFormat
	}
	if !hmac.Equal(i.sign(sid+"."+expStr), got) {
		return "", ErrTokenSig
	}
	if expectSessionID != "" && sid != expectSessionID {
		return "", ErrTokenSID
	}
	if i.now().After(time.Unix(exp, 0).Add(i.skew)) {
		return "", ErrTokenExp
	}
	return sid, nil
}

func (i *Issuer) sign(msg string) []byte {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

// BearerToken reads "Authorization: Bearer <token>".
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
