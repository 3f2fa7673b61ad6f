package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// NewCode generates a uniformly random numeric one-time code with the given
// number of digits, one crypto/rand draw per digit. The first digit is drawn
// from [1,9], so a 6-digit code is uniform over [100000, 999999].
func NewCode(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	nine := big.NewInt(9)
	ten := big.NewInt(10)

	n, err := rand.Int(rand.Reader, nine)
	if err != nil {
		return "", err
	}
	b.WriteByte(byte('1' + n.Int64()))

	for i := 1; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	code := b.String()
	if len(code) != digits {
		return "", fmt.Errorf("invalid code generation length")
	}
	return code, nil
}

// HashCode produces the digest stored and compared by the code vault.
// The plaintext code never reaches the vault backend.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}
