// Package sluggen generates random short codes.
// Generators are safe for concurrent use.
package sluggen

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// base62Limit is the largest multiple of 62 that fits in a byte. Bytes at or
	// above it are discarded so every character is equally likely.
	base62Limit = 248

	// MaxHexLength is the number of hex digits in a 128-bit value.
	MaxHexLength = 32
)

// Generator generates short codes of a requested length.
type Generator interface {
	Generate(length int) (string, error)
}

type base62Generator struct{}

// NewBase62 returns a Generator drawing characters from [0-9A-Za-z] via crypto/rand.
func NewBase62() Generator {
	return base62Generator{}
}

func (base62Generator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/4+1)

	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= base62Limit {
				continue
			}
			out = append(out, base62Chars[int(b)%len(base62Chars)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}

type hexGenerator struct{}

// NewHex returns a Generator that renders a random (version 4) UUID as lowercase
// hex and keeps the leading length digits.
func NewHex() Generator {
	return hexGenerator{}
}

func (hexGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}
	if length > MaxHexLength {
		return "", fmt.Errorf("length must be at most %d", MaxHexLength)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}

	return hex.EncodeToString(id[:])[:length], nil
}
