package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

func TestGeneratePKCECodesLengths(t *testing.T) {
	tests := []struct {
		bytes   int
		wantLen int
	}{
		{0, 86},
		{MinVerifierBytes, 43},
		{DefaultVerifierBytes, 86},
		{MaxVerifierBytes, 128},
	}
	for _, tt := range tests {
		codes, err := GeneratePKCECodes(tt.bytes)
		if err != nil {
			t.Fatalf("GeneratePKCECodes(%d) error: %v", tt.bytes, err)
		}
		if len(codes.CodeVerifier) != tt.wantLen {
			t.Fatalf("GeneratePKCECodes(%d) verifier length = %d, want %d", tt.bytes, len(codes.CodeVerifier), tt.wantLen)
		}
		if len(codes.CodeChallenge) != 43 {
			t.Fatalf("challenge length = %d, want 43", len(codes.CodeChallenge))
		}
		if codes.CodeChallengeMethod != CodeChallengeMethodS256 {
			t.Fatalf("unexpected method %q", codes.CodeChallengeMethod)
		}
	}
}

func TestGeneratePKCECodesRejectsOutOfRange(t *testing.T) {
	for _, n := range []int{-1, MinVerifierBytes - 1, MaxVerifierBytes + 1} {
		if _, err := GeneratePKCECodes(n); err == nil {
			t.Fatalf("expected error for %d bytes", n)
		}
	}
}

func TestCodeChallengeMatchesVerifier(t *testing.T) {
	codes, err := GeneratePKCECodes(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.ContainsAny(codes.CodeVerifier, "+/=") || strings.ContainsAny(codes.CodeChallenge, "+/=") {
		t.Fatalf("expected unpadded url-safe alphabet, got %q / %q", codes.CodeVerifier, codes.CodeChallenge)
	}

	decoded, err := base64.RawURLEncoding.DecodeString(codes.CodeChallenge)
	if err != nil {
		t.Fatalf("challenge is not base64url: %v", err)
	}
	sum := sha256.Sum256([]byte(codes.CodeVerifier))
	if string(decoded) != string(sum[:]) {
		t.Fatalf("challenge does not hash the verifier")
	}
	if GenerateCodeChallenge(codes.CodeVerifier) != codes.CodeChallenge {
		t.Fatalf("challenge is not deterministic")
	}
}

func TestGenerateCodeChallengeKnownVector(t *testing.T) {
	// RFC 7636 appendix B.
	got := GenerateCodeChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
	if got != "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM" {
		t.Fatalf("unexpected challenge %q", got)
	}
}

func TestGeneratePKCECodesDistinct(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		codes, err := GeneratePKCECodes(0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, dup := seen[codes.CodeVerifier]; dup {
			t.Fatalf("duplicate verifier generated")
		}
		seen[codes.CodeVerifier] = struct{}{}
	}
}
