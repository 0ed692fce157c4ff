package misc

import (
	"testing"

	"github.com/router-for-me/pkcelogin/internal/auth/pkce"
)

func TestParseOAuthCallback(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCode  string
		wantState string
		wantError string
	}{
		{"full url", "http://localhost:5555/cb?code=abc&state=xyz", "abc", "xyz", ""},
		{"query only", "?code=abc&state=xyz", "abc", "xyz", ""},
		{"bare pairs", "code=abc&state=xyz", "abc", "xyz", ""},
		{"fragment", "http://localhost/cb#code=abc&state=xyz", "abc", "xyz", ""},
		{"query wins over fragment", "http://localhost/cb?code=abc&state=xyz#code=other", "abc", "xyz", ""},
		{"code keeps hash", "http://localhost/cb?code=abc%23def&state=xyz", "abc#def", "xyz", ""},
		{"provider error", "http://localhost/cb?error=access_denied&state=xyz", "", "xyz", "access_denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := ParseOAuthCallback(tt.input)
			if err != nil {
				t.Fatalf("ParseOAuthCallback(%q) error: %v", tt.input, err)
			}
			if cb.Code != tt.wantCode || cb.State != tt.wantState || cb.Error != tt.wantError {
				t.Fatalf("unexpected callback %+v", cb)
			}
		})
	}
}

func TestParseOAuthCallbackRejectsInvalidInput(t *testing.T) {
	if cb, err := ParseOAuthCallback("   "); cb != nil || err != nil {
		t.Fatalf("expected nil result for empty input, got %+v, %v", cb, err)
	}
	if _, err := ParseOAuthCallback("nonsense"); err == nil {
		t.Fatalf("expected error for input without parameters")
	}
	if _, err := ParseOAuthCallback("http://localhost/cb?state=xyz"); err == nil {
		t.Fatalf("expected error when code is missing")
	}
	if _, err := ParseOAuthCallback("http://localhost/cb?code=abc"); err == nil {
		t.Fatalf("expected error when state is missing")
	}
	if _, err := ParseOAuthCallback("http://localhost/cb?error_description=denied&state=xyz"); err == nil {
		t.Fatalf("expected a description without an error code to be rejected")
	}
	if _, err := ParseOAuthCallback("http://localhost/cb"); err == nil {
		t.Fatalf("expected error for a URL without parameters")
	}
}

func TestOAuthCallbackResult(t *testing.T) {
	success := (&OAuthCallback{Code: "abc", State: "xyz"}).Result()
	if success.Kind != pkce.CallbackSuccess || success.Code != "abc" || success.State != "xyz" {
		t.Fatalf("unexpected success result %+v", success)
	}
	failure := (&OAuthCallback{Error: "access_denied", ErrorDescription: "no", State: "xyz"}).Result()
	if failure.Kind != pkce.CallbackProviderError || failure.Error != "access_denied" {
		t.Fatalf("unexpected error result %+v", failure)
	}
}
