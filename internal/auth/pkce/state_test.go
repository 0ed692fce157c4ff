package pkce

import (
	"encoding/base64"
	"testing"
)

func TestGenerateState(t *testing.T) {
	state, err := GenerateState(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		t.Fatalf("state is not base64url: %v", err)
	}
	if len(raw) != DefaultStateBytes {
		t.Fatalf("state carries %d bytes, want %d", len(raw), DefaultStateBytes)
	}
	if _, err = GenerateState(MinStateBytes - 1); err == nil {
		t.Fatalf("expected error below minimum entropy")
	}
}

func TestReserveStateUniqueUntilReleased(t *testing.T) {
	first, err := ReserveState(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ReserveState(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct reserved states")
	}
	if !stateReserved(first) || !stateReserved(second) {
		t.Fatalf("expected both states to be reserved")
	}

	ReleaseState(first)
	ReleaseState(second)
	if stateReserved(first) || stateReserved(second) {
		t.Fatalf("expected states to be released")
	}
}
