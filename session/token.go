package session

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	tokenLen = 64
	alphanum = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// largest multiple of len(alphanum) that fits in a byte,
	// bytes above it are discarded to keep the distribution uniform
	maxByte = 256 - (256 % len(alphanum))
)

// GenerateToken returns 64 random characters from [0-9A-Za-z]
func GenerateToken() (string, error) {
	return generateFrom(rand.Reader)
}

func generateFrom(src io.Reader) (string, error) {
	out := make([]byte, 0, tokenLen)
	buf := make([]byte, tokenLen)
	for len(out) < tokenLen {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("unable to read random data for token, cause %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, alphanum[int(b)%len(alphanum)])
			if len(out) == tokenLen {
				break
			}
		}
	}
	return string(out), nil
}
