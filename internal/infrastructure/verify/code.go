// Package verify implements the account-transfer code verifier.
package verify

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// DigestVerifier issues random numeric codes and checks entries against the
// stored SHA-256 digest. The plaintext code is never persisted.
type DigestVerifier struct {
	codeLength int
}

func NewDigestVerifier(codeLength int) *DigestVerifier {
	if codeLength <= 0 {
		codeLength = 6
	}
	return &DigestVerifier{codeLength: codeLength}
}

func (v *DigestVerifier) Issue(ctx context.Context) (string, string, error) {
	code := make([]byte, v.codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", "", fmt.Errorf("generating verification code: %w", err)
		}
		code[i] = byte('0' + n.Int64())
	}
	c := string(code)
	return c, Digest(c), nil
}

func (v *DigestVerifier) Verify(code, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(code)), []byte(digest)) == 1
}

// Digest returns the hex SHA-256 of a code.
func Digest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
