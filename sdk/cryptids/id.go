// Package cryptids generates short random identifiers from a fixed alphabet.
package cryptids

import (
	"crypto/rand"
	"fmt"
)

var (
	IDAlphabet = "bcdfghjklmnpqrstvwxyZBCDFGHJKLMNPQRSTVWXYZ0123456789"
	IDLength   = 18
)

// GenerateID creates a random string from defaults
func GenerateID() (string, error) {
	return generateID(IDAlphabet, IDLength)
}

// GenerateCustomID creates a random string from the given alphabet and size
func GenerateCustomID(alphabet string, size int) (string, error) {
	return generateID(alphabet, size)
}

func generateID(alphabet string, size int) (string, error) {
	if len(alphabet) < 2 || len(alphabet) > 256 {
		return "", fmt.Errorf("alphabet must contain between 2 and 256 characters")
	}
	if size < 1 {
		return "", fmt.Errorf("size must be at least 1")
	}

	// smallest all-ones mask covering the alphabet, rejected indexes are resampled
	mask := 1
	for mask < len(alphabet)-1 {
		mask = (mask << 1) | 1
	}

	step := size * 8 / 5
	if step < size {
		step = size
	}

	id := make([]byte, 0, size)
	buf := make([]byte, step)
	for len(id) < size {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			idx := int(b) & mask
			if idx >= len(alphabet) {
				continue
			}
			id = append(id, alphabet[idx])
			if len(id) == size {
				break
			}
		}
	}

	return string(id), nil
}
