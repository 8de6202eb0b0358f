package session

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minCodeLen = 4

	// argon2id parameters; 19 MiB, one pass
	argonTime    = 1
	argonMemory  = 19 * 1024
	argonThreads = 1
	argonKeyLen  = 32

	keyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NormalizeCode trims and upper-cases an access code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DeriveSessionID maps a normalized access code to a stable session id.
func DeriveSessionID(code, salt string) string {
	key := argon2.IDKey([]byte(code), []byte(salt), argonTime, argonMemory, argonThreads, argonKeyLen)
	return "u_" + hex.EncodeToString(key[:16])
}

// newAccessKey returns a random key of the form AG-XXXX-XXXX.
func newAccessKey() (string, error) {
	var b strings.Builder
	b.WriteString("AG-")
	for i := 0; i < 8; i++ {
		if i == 4 {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(keyAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(keyAlphabet[n.Int64()])
	}
	return b.String(), nil
}
