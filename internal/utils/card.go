package utils

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

const (
	// CardNumberLength is the number of digits in every issued card number
	CardNumberLength = 16
	// CardValidityYears is how long a card stays valid after issuance
	CardValidityYears = 3
)

// NumberGenerator draws card numbers from a random source.
// A zero value uses crypto/rand, which is safe for concurrent use.
type NumberGenerator struct {
	Source io.Reader
}

// Generate returns a 16-digit string of uniformly random digits. It may
// return a number already in use; uniqueness is enforced by the store.
func (g NumberGenerator) Generate() (string, error) {
	return GenerateCardNumber(g.source(), CardNumberLength)
}

func (g NumberGenerator) source() io.Reader {
	if g.Source != nil {
		return g.Source
	}
	return rand.Reader
}

// GenerateCardNumber generates length uniformly random digits from src
func GenerateCardNumber(src io.Reader, length int) (string, error) {
	if length <= 0 || length > 19 {
		return "", fmt.Errorf("invalid card number length: %d", length)
	}

	digits := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(digits) < length {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("failed to generate random digits: %w", err)
		}
		for _, b := range buf {
			// 250 is the largest multiple of 10 below 256; rejecting the
			// rest keeps every digit equally likely.
			if b >= 250 {
				continue
			}
			digits = append(digits, b%10+'0')
			if len(digits) == length {
				break
			}
		}
	}

	return string(digits), nil
}

// GenerateExpiry returns the expiry month and two-digit year for a card issued at now
func GenerateExpiry(now time.Time) (month, year int) {
	expiry := now.AddDate(CardValidityYears, 0, 0)
	return int(expiry.Month()), expiry.Year() % 100
}

// Last4 returns the final four digits of a card number
func Last4(number string) string {
	if len(number) < 4 {
		return ""
	}
	return number[len(number)-4:]
}
