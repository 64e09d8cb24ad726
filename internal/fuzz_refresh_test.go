package internal

import (
	"testing"
)

// FuzzDecodeRefreshToken exercises refresh token decoding with arbitrary strings.
// Goal: no panics; invalid inputs should return errors cleanly.
func FuzzDecodeRefreshToken(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

	secret, err := NewRefreshSecret()
	if err == nil {
		token, err := EncodeRefreshToken(NewUserID(), secret)
		if err == nil {
			f.Add(token)
		}
	}

	f.Add("!!!not-base64!!!")
	f.Add("aGVsbG8=")
	f.Add("dG9vLXNob3J0")

	f.Fuzz(func(t *testing.T, input string) {
		userID, secret, err := DecodeRefreshToken(input)
		if err != nil {
			return
		}

		reEncoded, err := EncodeRefreshToken(userID, secret)
		if err != nil {
			t.Fatalf("re-encode of decoded token failed: %v", err)
		}

		uid2, secret2, err := DecodeRefreshToken(reEncoded)
		if err != nil {
			t.Fatalf("roundtrip decode failed: %v", err)
		}
		if uid2 != userID {
			t.Errorf("roundtrip user ID mismatch: %q vs %q", uid2, userID)
		}
		if secret2 != secret {
			t.Error("roundtrip secret mismatch")
		}
	})
}
