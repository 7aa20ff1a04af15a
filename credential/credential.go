// Package credential reads and writes the two Authorization schemes
// understood by backstage: Basic and CacheToken.
package credential

import (
	"encoding/base64"
	"strings"
)

const (
	BasicPrefix = "Basic "
	TokenPrefix = "CacheToken "
)

// DecodeBasic extracts the username and password from a Basic
// authorization header. The decoded payload must contain exactly one colon.
func DecodeBasic(header string) (username, password string, err error) {
	if !strings.HasPrefix(header, BasicPrefix) {
		return "", "", MalformedHeader{Reason: "missing basic prefix"}
	}
	payload, err := base64.StdEncoding.DecodeString(header[len(BasicPrefix):])
	if err != nil {
		return "", "", MalformedHeader{Reason: "invalid base64 payload"}
	}
	parts := strings.Split(string(payload), ":")
	if len(parts) != 2 {
		return "", "", MalformedHeader{Reason: "payload must be username:password"}
	}
	return parts[0], parts[1], nil
}

func EncodeBasic(username, password string) string {
	return BasicPrefix + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// DecodeToken returns whatever follows the CacheToken prefix.
func DecodeToken(header string) (string, error) {
	if !strings.HasPrefix(header, TokenPrefix) {
		return "", MalformedHeader{Reason: "missing cache token prefix"}
	}
	return header[len(TokenPrefix):], nil
}

func EncodeToken(token string) string {
	return TokenPrefix + token
}
