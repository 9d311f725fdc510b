// Package fileurl issues HMAC-signed, expiring download URLs for message
// images so the raw GridFS ids are never exposed unauthenticated.
package fileurl

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Signer signs and verifies image download URLs. Signatures cover
// "{fileID}:{expiresUnix}" with HMAC-SHA256 under a shared secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func New(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// URL returns the relative download path for fileID with expiry and
// signature query parameters attached.
func (s *Signer) URL(fileID string) string {
	expires := time.Now().Add(s.ttl).Unix()
	return fmt.Sprintf("/api/v1/files/%s?expires=%d&sig=%s", fileID, expires, s.sign(fileID, expires))
}

// Verify reports whether sig matches fileID/expires and the link has not
// expired yet. Expiry is checked first so stale links fail cheap.
func (s *Signer) Verify(fileID, expires, sig string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	if time.Now().Unix() > exp {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(s.sign(fileID, exp)))
}

func (s *Signer) sign(fileID string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", fileID, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
