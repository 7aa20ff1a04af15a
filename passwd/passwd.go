// Package passwd implements the salted one-way hash used to store
// user passwords.
//
// Hashes are stored as PHC strings so the salt and cost parameters travel
// with the hash. Verification never decodes anything, it recomputes the
// hash reusing whatever is embedded in the stored value and compares both
// strings.
package passwd

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

type (
	Params struct {
		Time    uint32
		Memory  uint32
		Threads uint8
	}

	Hasher struct {
		params Params
		random io.Reader
	}
)

const (
	saltLen = 16
	keyLen  = 32
)

var (
	DefaultParams = Params{Time: 1, Memory: 64 * 1024, Threads: 4}
	// TestParams keeps unit tests fast, never use it for real passwords.
	TestParams = Params{Time: 1, Memory: 1024, Threads: 1}

	std = New(DefaultParams)
)

func New(p Params) *Hasher {
	return &Hasher{params: p, random: rand.Reader}
}

// Hash computes the hash of password. When existing is empty a fresh salt
// is generated, otherwise the salt and parameters from existing are reused.
func Hash(password, existing string) (string, error) {
	return std.Hash(password, existing)
}

func (h *Hasher) Hash(password, existing string) (string, error) {
	var salt []byte
	params := h.params
	if existing == "" {
		salt = make([]byte, saltLen)
		if _, err := io.ReadFull(h.random, salt); err != nil {
			return "", fmt.Errorf("unable to generate salt, cause %w", err)
		}
	} else {
		var err error
		params, salt, err = parse(existing)
		if err != nil {
			return "", err
		}
	}
	key := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Time, params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Equal compares two encoded hashes in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func parse(encoded string) (Params, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Params{}, nil, InvalidHash{Reason: "expecting 5 fields"}
	}
	if parts[1] != "argon2id" {
		return Params{}, nil, InvalidHash{Reason: fmt.Sprintf("unsupported algorithm %v", parts[1])}
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Params{}, nil, InvalidHash{Reason: fmt.Sprintf("unsupported version %v", parts[2])}
	}
	var p Params
	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &threads); err != nil {
		return Params{}, nil, InvalidHash{Reason: "invalid parameters"}
	}
	if threads == 0 || threads > 255 || p.Time == 0 {
		return Params{}, nil, InvalidHash{Reason: "parameters out of range"}
	}
	p.Threads = uint8(threads)
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Params{}, nil, InvalidHash{Reason: "invalid salt"}
	}
	return p, salt, nil
}
