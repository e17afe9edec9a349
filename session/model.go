package session

import (
	"crypto/sha256"
	"encoding/hex"
)

// Record is the server-side session state stored per issued refresh token.
// It holds the digest of the currently valid token plus the device metadata
// captured at login. Rotation replaces Hash and nothing else.
type Record struct {
	Hash       string `json:"hash"`
	UserAgent  string `json:"ua"`
	IP         string `json:"ip"`
	CreatedAt  int64  `json:"createdAt"`
	DeviceInfo string `json:"deviceInfo"`
}

// Digest returns the one-way hash of a signed refresh token. Only digests
// are ever persisted, so a session-store compromise does not yield usable
// bearer tokens.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
