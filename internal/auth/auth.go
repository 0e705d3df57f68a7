package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

func HashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// CheckToken compares a presented token against a stored hash in constant
// time.
func CheckToken(tok, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(tok)), []byte(hash)) == 1
}
