package pkce

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
)

const (
	// DefaultStateBytes is the entropy of a generated anti-forgery token.
	DefaultStateBytes = 16
	// MinStateBytes is the smallest accepted anti-forgery token entropy.
	MinStateBytes = 10
)

var (
	activeStatesMu sync.Mutex
	activeStates   = make(map[string]struct{})
)

// GenerateState returns a URL-safe anti-forgery token drawn from n random bytes.
// An n of 0 selects DefaultStateBytes.
func GenerateState(n int) (string, error) {
	if n == 0 {
		n = DefaultStateBytes
	}
	if n < MinStateBytes {
		return "", fmt.Errorf("state must carry at least %d bytes of entropy, got %d", MinStateBytes, n)
	}
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", NewAuthenticationError(ErrEntropyFailure, fmt.Errorf("failed to generate random bytes: %w", err))
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// ReserveState generates an anti-forgery token that no other live flow in this
// process holds. The caller must hand it back with ReleaseState.
func ReserveState(n int) (string, error) {
	for {
		state, err := GenerateState(n)
		if err != nil {
			return "", err
		}
		activeStatesMu.Lock()
		if _, taken := activeStates[state]; !taken {
			activeStates[state] = struct{}{}
			activeStatesMu.Unlock()
			return state, nil
		}
		activeStatesMu.Unlock()
	}
}

// ReleaseState forgets a token obtained from ReserveState.
func ReleaseState(state string) {
	activeStatesMu.Lock()
	delete(activeStates, state)
	activeStatesMu.Unlock()
}

// stateReserved reports whether a token is currently held by a live flow.
func stateReserved(state string) bool {
	activeStatesMu.Lock()
	defer activeStatesMu.Unlock()
	_, ok := activeStates[state]
	return ok
}
