// Package devicelink builds and parses the JSON payload a new device needs
// to bootstrap into an existing library: the library's symmetric
// encryption key and the inviting device's Ed25519 signing key, base64url
// encoded. Rendering this payload as a scannable QR code is a presentation
// concern left to callers; this package only produces and validates the
// underlying bytes.
package devicelink

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const (
	encryptionKeyBytes = 32
	signingKeyBytes    = 64
)

// Payload is the JSON object a device link encodes. Treat decoded keys as
// highly sensitive: never log them.
type Payload struct {
	ProxyURL      string `json:"proxy_url"`
	EncryptionKey string `json:"encryption_key"`
	SigningKey    string `json:"signing_key"`
	LibraryID     string `json:"library_id"`
}

// Decoded is a Payload after base64url decoding and length validation.
type Decoded struct {
	ProxyURL      string
	EncryptionKey []byte
	SigningKey    []byte
	LibraryID     string
}

// Encode builds the JSON bytes for a device link payload.
func Encode(proxyURL string, encryptionKey, signingKey []byte, libraryID string) ([]byte, error) {
	p := Payload{
		ProxyURL:      proxyURL,
		EncryptionKey: base64.RawURLEncoding.EncodeToString(encryptionKey),
		SigningKey:    base64.RawURLEncoding.EncodeToString(signingKey),
		LibraryID:     libraryID,
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("devicelink: marshal payload: %w", err)
	}
	return b, nil
}

// Decode parses and validates a device link payload's JSON bytes.
func Decode(data []byte) (Decoded, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Decoded{}, fmt.Errorf("devicelink: invalid device link JSON: %w", err)
	}

	encKey, err := base64.RawURLEncoding.DecodeString(p.EncryptionKey)
	if err != nil {
		return Decoded{}, fmt.Errorf("devicelink: invalid encryption key encoding: %w", err)
	}
	signKey, err := base64.RawURLEncoding.DecodeString(p.SigningKey)
	if err != nil {
		return Decoded{}, fmt.Errorf("devicelink: invalid signing key encoding: %w", err)
	}

	if len(encKey) != encryptionKeyBytes {
		return Decoded{}, fmt.Errorf("devicelink: encryption key must be %d bytes, got %d", encryptionKeyBytes, len(encKey))
	}
	if len(signKey) != signingKeyBytes {
		return Decoded{}, fmt.Errorf("devicelink: signing key must be %d bytes, got %d", signingKeyBytes, len(signKey))
	}

	return Decoded{
		ProxyURL:      p.ProxyURL,
		EncryptionKey: encKey,
		SigningKey:    signKey,
		LibraryID:     p.LibraryID,
	}, nil
}
