// Package pkce provides the building blocks of the OAuth2 Authorization Code
// flow with PKCE (Proof Key for Code Exchange) for native clients: verifier and
// challenge generation, anti-forgery state tokens, the authorization URL, the
// local callback listener and the token endpoint client.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// DefaultVerifierBytes yields an 86 character verifier.
	DefaultVerifierBytes = 64
	// MinVerifierBytes yields the RFC 7636 minimum of 43 characters.
	MinVerifierBytes = 32
	// MaxVerifierBytes yields the RFC 7636 maximum of 128 characters.
	MaxVerifierBytes = 96
)

// GeneratePKCECodes generates a new pair of PKCE codes from byteLength random bytes.
// A byteLength of 0 selects DefaultVerifierBytes. The challenge is derived with the
// S256 method as specified in RFC 7636 section 4.2.
func GeneratePKCECodes(byteLength int) (*PKCECodes, error) {
	if byteLength == 0 {
		byteLength = DefaultVerifierBytes
	}
	if byteLength < MinVerifierBytes || byteLength > MaxVerifierBytes {
		return nil, fmt.Errorf("verifier length must be between %d and %d bytes, got %d", MinVerifierBytes, MaxVerifierBytes, byteLength)
	}

	codeVerifier, err := generateCodeVerifier(byteLength)
	if err != nil {
		return nil, NewAuthenticationError(ErrEntropyFailure, err)
	}

	return &PKCECodes{
		CodeVerifier:        codeVerifier,
		CodeChallenge:       GenerateCodeChallenge(codeVerifier),
		CodeChallengeMethod: CodeChallengeMethodS256,
	}, nil
}

// generateCodeVerifier returns byteLength random bytes encoded as URL-safe
// base64 without padding.
func generateCodeVerifier(byteLength int) (string, error) {
	bytes := make([]byte, byteLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// GenerateCodeChallenge derives the S256 challenge from the encoded verifier.
// It is a pure function of its input.
func GenerateCodeChallenge(codeVerifier string) string {
	hash := sha256.Sum256([]byte(codeVerifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
