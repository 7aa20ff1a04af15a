package credential

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestBasicRoundTrip(t *testing.T) {
	type testCase struct {
		user   string
		passwd string
	}
	for _, tc := range []testCase{
		{"foo", "bar"},
		{"", ""},
		{"bob", "with spaces and ünïcode"},
		{"ana", ""},
	} {
		hdr := EncodeBasic(tc.user, tc.passwd)
		user, passwd, err := DecodeBasic(hdr)
		if err != nil {
			t.Fatalf("decoding %v should work, got %v", hdr, err)
		} else if user != tc.user || passwd != tc.passwd {
			t.Errorf("round trip of (%v, %v) returned (%v, %v)", tc.user, tc.passwd, user, passwd)
		}
	}
}

func TestEncodeBasic(t *testing.T) {
	if hdr := EncodeBasic("foo", "bar"); hdr != "Basic Zm9vOmJhcg==" {
		t.Fatalf("unexpected header %v", hdr)
	}
}

func TestMalformedBasic(t *testing.T) {
	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	for _, hdr := range []string{
		"",
		"Bearer abc",
		"basic " + b64("foo:bar"),
		"Basic not*base64",
		"Basic " + b64("nocolon"),
		"Basic " + b64("too:many:colons"),
	} {
		_, _, err := DecodeBasic(hdr)
		if !errors.Is(err, MalformedHeader{}) {
			t.Errorf("header %q should be malformed, got %v", hdr, err)
		}
	}
}

func TestToken(t *testing.T) {
	tk, err := DecodeToken(EncodeToken("abc123"))
	if err != nil {
		t.Fatal(err)
	} else if tk != "abc123" {
		t.Fatalf("expecting abc123 got %v", tk)
	}
	_, err = DecodeToken("Token abc123")
	if !errors.Is(err, MalformedHeader{}) {
		t.Fatalf("missing prefix should be malformed, got %v", err)
	}
}
