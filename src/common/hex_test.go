package common

import (
	"bytes"
	"testing"
)

func TestHexRoundTrip(t *testing.T) {
	raw := []byte{0xde, 0xad, 0xbe, 0xef}

	encoded := EncodeToString(raw)
	if encoded != "0XDEADBEEF" {
		t.Fatalf("encoded %s, expected 0XDEADBEEF", encoded)
	}

	decoded, err := DecodeFromString(encoded)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatalf("decoded %v, expected %v", decoded, raw)
	}
}

func TestDecodeFromStringTooShort(t *testing.T) {
	if _, err := DecodeFromString("0"); err == nil {
		t.Fatalf("short strings should be rejected")
	}
}
