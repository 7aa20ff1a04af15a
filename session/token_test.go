package session

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	re := regexp.MustCompile(`^[0-9A-Za-z]{64}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tk, err := GenerateToken()
		if err != nil {
			t.Fatal(err)
		}
		if !re.MatchString(tk) {
			t.Fatalf("token %q is not 64 alphanumeric characters", tk)
		}
		if seen[tk] {
			t.Fatalf("token %v generated twice", tk)
		}
		seen[tk] = true
	}
}

func TestGenerateSkipsBiasedBytes(t *testing.T) {
	first := append([]byte{250}, bytes.Repeat([]byte{0}, 63)...)
	second := append([]byte{61}, bytes.Repeat([]byte{0}, 63)...)
	tk, err := generateFrom(bytes.NewReader(append(first, second...)))
	if err != nil {
		t.Fatal(err)
	}
	expected := strings.Repeat("0", 63) + "z"
	if tk != expected {
		t.Fatalf("expecting %v got %v", expected, tk)
	}
}

func TestGenerateShortRead(t *testing.T) {
	_, err := generateFrom(bytes.NewReader([]byte{1, 2, 3}))
	if err == nil {
		t.Fatal("short random source should fail")
	}
}
