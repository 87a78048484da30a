package crypto

import (
	"crypto/rand"
	"errors"
	"math/bits"
)

const (
	nanoidAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	nanoidSize     = 22 // 22 * 6 = 132 bits of entropy (uuid is 128 bits)

	minAlphabetSize = 8
	maxAlphabetSize = 255
)

var (
	ErrAlphabetTooLong  = errors.New("alphabet must contain no more than 255 characters")
	ErrAlphabetTooShort = errors.New("alphabet must contain at least 8 characters")
	ErrAlphabetNotASCII = errors.New("alphabet must contain only ASCII characters")
)

// NanoIDGenerator produces short URL-safe identifiers. Rejection sampling
// keeps the output uniform over the alphabet.
type NanoIDGenerator struct {
	alphabet string
	mask     byte
}

// NewNanoID builds a generator over the given alphabet, or the URL-safe
// default when none is provided.
func NewNanoID(alphabet ...string) (*NanoIDGenerator, error) {
	chars := nanoidAlphabet
	if len(alphabet) > 0 && alphabet[0] != "" {
		chars = alphabet[0]
	}

	// Generate indexes by byte position, so multi-byte runes are out.
	for i := 0; i < len(chars); i++ {
		if chars[i] > 127 {
			return nil, ErrAlphabetNotASCII
		}
	}

	if len(chars) > maxAlphabetSize {
		return nil, ErrAlphabetTooLong
	}
	if len(chars) < minAlphabetSize {
		return nil, ErrAlphabetTooShort
	}

	// Smallest all-ones mask covering every alphabet index.
	mask := byte(1<<bits.Len(uint(len(chars)-1)) - 1)

	return &NanoIDGenerator{
		alphabet: chars,
		mask:     mask,
	}, nil
}

// Generate returns a fresh identifier of the given length (default 22).
func (n *NanoIDGenerator) Generate(length ...int) (string, error) {
	size := nanoidSize
	if len(length) > 0 && length[0] > 0 {
		size = length[0]
	}

	id := make([]byte, 0, size)
	buffer := make([]byte, size+size/2)

	for len(id) < size {
		if _, err := rand.Read(buffer); err != nil {
			return "", err
		}

		for _, b := range buffer {
			index := b & n.mask
			if int(index) >= len(n.alphabet) {
				continue // rejected, outside the alphabet
			}
			id = append(id, n.alphabet[index])
			if len(id) == size {
				break
			}
		}
	}

	return string(id), nil
}
