package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedToken = errors.New("malformed download token")
	ErrBadSignature   = errors.New("invalid download token signature")
	ErrTokenExpired   = errors.New("download token expired")
)

// Grant is the payload carried by a signed download token.
type Grant struct {
	OwnerID   string
	Path      string
	ExpiresAt time.Time
}

// Signer issues and checks HMAC-SHA256 download tokens of the form
// owner.expiry.path.signature, with the path base64url encoded.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns a signer; ttl <= 0 defaults to one day.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign issues a token for ownerID and path.
func (s *Signer) Sign(ownerID, path string) (string, time.Time, error) {
	if ownerID == "" || path == "" {
		return "", time.Time{}, fmt.Errorf("owner and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	if strings.Contains(ownerID, ".") {
		return "", time.Time{}, fmt.Errorf("owner must not contain dots")
	}

	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(path))
	sig := s.mac(ownerID, exp, encoded)
	return strings.Join([]string{ownerID, exp, encoded, sig}, "."), expiresAt, nil
}

// Verify checks the signature and expiry of token.
func (s *Signer) Verify(token string) (Grant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Grant{}, ErrMalformedToken
	}
	owner, exp, encoded, sig := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.mac(owner, exp, encoded)), []byte(sig)) {
		return Grant{}, ErrBadSignature
	}

	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return Grant{}, ErrMalformedToken
	}
	path, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Grant{}, ErrMalformedToken
	}

	expiresAt := time.Unix(unix, 0)
	if s.now().After(expiresAt) {
		return Grant{}, ErrTokenExpired
	}
	return Grant{OwnerID: owner, Path: string(path), ExpiresAt: expiresAt}, nil
}

func (s *Signer) mac(owner, exp, encoded string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(owner + "|" + exp + "|" + encoded))
	return hex.EncodeToString(h.Sum(nil))
}
