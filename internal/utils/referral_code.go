package utils

import (
	"crypto/rand"
	"fmt"
	"strings"
	"unicode"

	"github.com/mr-tron/base58"
)

const (
	// ReferralPrefixLength is how many characters of the name start a code
	ReferralPrefixLength = 4
	// ReferralSuffixLength is the random part of a freshly generated code
	ReferralSuffixLength = 6
	// ReferralFallbackSuffixLength is used once short suffixes keep colliding
	ReferralFallbackSuffixLength = 10
)

// ReferralPrefix takes the first four characters of a name, upper-cases them
// and drops whitespace
func ReferralPrefix(name string) string {
	runes := []rune(name)
	if len(runes) > ReferralPrefixLength {
		runes = runes[:ReferralPrefixLength]
	}

	var b strings.Builder
	for _, r := range runes {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// RandomSuffix returns n upper-case characters drawn from base58-encoded
// random bytes
func RandomSuffix(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("suffix length must be positive, got %d", n)
	}

	for {
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random suffix: %w", err)
		}

		encoded := base58.Encode(buf)
		if len(encoded) >= n {
			return strings.ToUpper(encoded[:n]), nil
		}
	}
}

// GenerateReferralCode creates a code in the format PREFIX + SUFFIX, e.g.
// "ANSH12XYZ9" for a user named "Anshul"
func GenerateReferralCode(name string, suffixLength int) (string, error) {
	suffix, err := RandomSuffix(suffixLength)
	if err != nil {
		return "", err
	}
	return ReferralPrefix(name) + suffix, nil
}
