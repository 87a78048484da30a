package crypto

import (
	"crypto/rand"
	"errors"
)

const (
	// DefaultOTPDigits is the length of generated one-time codes.
	DefaultOTPDigits = 6

	maxOTPDigits = 10
)

var ErrOTPDigitsOutOfRange = errors.New("otp digits must be between 4 and 10")

// GenerateOTP returns a numeric one-time code with the given number of
// digits. Each digit is drawn uniformly via rejection sampling so no digit
// is favored by modulo bias.
func GenerateOTP(digits int) (string, error) {
	if digits == 0 {
		digits = DefaultOTPDigits
	}
	if digits < 4 || digits > maxOTPDigits {
		return "", ErrOTPDigitsOutOfRange
	}

	code := make([]byte, digits)
	buf := make([]byte, digits*2)

	for position := 0; position < digits; {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for i := 0; i < len(buf) && position < digits; i++ {
			// Reject bytes >= 250 so the modulo over 10 stays uniform
			if buf[i] >= 250 {
				continue
			}
			code[position] = '0' + buf[i]%10
			position++
		}
	}

	return string(code), nil
}
