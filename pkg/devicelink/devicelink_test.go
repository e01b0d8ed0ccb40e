package devicelink

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"testing"
)

func TestRoundtripEncodeDecode(t *testing.T) {
	encryptionKey := bytes.Repeat([]byte{0xAB}, encryptionKeyBytes)
	signingKey := bytes.Repeat([]byte{0xCD}, signingKeyBytes)
	proxyURL := "https://alice.example.com"
	libraryID := "lib-abc-123"

	data, err := Encode(proxyURL, encryptionKey, signingKey, libraryID)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.ProxyURL != proxyURL {
		t.Fatalf("proxy url mismatch: %q", decoded.ProxyURL)
	}
	if !bytes.Equal(decoded.EncryptionKey, encryptionKey) {
		t.Fatal("encryption key mismatch")
	}
	if !bytes.Equal(decoded.SigningKey, signingKey) {
		t.Fatal("signing key mismatch")
	}
	if decoded.LibraryID != libraryID {
		t.Fatalf("library id mismatch: %q", decoded.LibraryID)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	if _, err := Decode([]byte("not valid json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestDecodeWrongKeyLengths(t *testing.T) {
	shortEnc := base64.RawURLEncoding.EncodeToString(bytes.Repeat([]byte{0xAA}, 16))
	validSign := base64.RawURLEncoding.EncodeToString(bytes.Repeat([]byte{0xBB}, signingKeyBytes))
	json := fmt.Sprintf(`{"proxy_url":"x","encryption_key":"%s","signing_key":"%s","library_id":"y"}`, shortEnc, validSign)
	if _, err := Decode([]byte(json)); err == nil {
		t.Fatal("expected error for short encryption key")
	}

	validEnc := base64.RawURLEncoding.EncodeToString(bytes.Repeat([]byte{0xAA}, encryptionKeyBytes))
	shortSign := base64.RawURLEncoding.EncodeToString(bytes.Repeat([]byte{0xBB}, 32))
	json2 := fmt.Sprintf(`{"proxy_url":"x","encryption_key":"%s","signing_key":"%s","library_id":"y"}`, validEnc, shortSign)
	if _, err := Decode([]byte(json2)); err == nil {
		t.Fatal("expected error for short signing key")
	}
}

func TestDecodeInvalidKeyEncoding(t *testing.T) {
	json := `{"proxy_url":"x","encryption_key":"!!!","signing_key":"AAAA","library_id":"y"}`
	if _, err := Decode([]byte(json)); err == nil {
		t.Fatal("expected error for invalid base64 encoding")
	}
}
