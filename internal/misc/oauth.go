// Package misc holds small helpers shared by the login command, such as parsing
// a callback URL the user pasted by hand.
package misc

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/router-for-me/pkcelogin/internal/auth/pkce"
)

// OAuthCallback captures the parsed OAuth callback parameters.
type OAuthCallback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseOAuthCallback reads the redirect the user pasted by hand. It accepts a full
// URL, a bare query string or key=value pairs, and falls back to the fragment for
// parameters missing from the query. It returns nil when the input is empty.
// As on the callback endpoint, a success needs both code and state.
func ParseOAuthCallback(input string) (*OAuthCallback, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	parsedURL, err := url.Parse(normalizeCallbackInput(trimmed))
	if err != nil {
		return nil, err
	}
	if parsedURL.RawQuery == "" && parsedURL.Fragment == "" {
		return nil, fmt.Errorf("invalid callback URL: no parameters")
	}

	query := parsedURL.Query()
	fragment, _ := url.ParseQuery(parsedURL.Fragment)
	param := func(key string) string {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			return v
		}
		return strings.TrimSpace(fragment.Get(key))
	}

	cb := &OAuthCallback{
		Code:             param("code"),
		State:            param("state"),
		Error:            param("error"),
		ErrorDescription: param("error_description"),
	}
	switch {
	case cb.Error != "":
		return cb, nil
	case cb.Code == "":
		return nil, fmt.Errorf("callback URL missing code")
	case cb.State == "":
		return nil, fmt.Errorf("callback URL missing state")
	}
	return cb, nil
}

// normalizeCallbackInput turns partial input into something url.Parse reads as a URL.
func normalizeCallbackInput(input string) string {
	switch {
	case strings.Contains(input, "://"):
		return input
	case strings.HasPrefix(input, "?"):
		return "http://localhost/" + input
	case strings.HasPrefix(input, "#"):
		return "http://localhost/" + input
	case strings.Contains(input, "=") && !strings.ContainsAny(input, "/?#"):
		return "http://localhost/?" + input
	default:
		return "http://" + input
	}
}

// Result converts the parsed callback into the value the callback server delivers.
func (c *OAuthCallback) Result() *pkce.CallbackResult {
	if c == nil {
		return nil
	}
	if c.Error != "" {
		return &pkce.CallbackResult{
			Kind:             pkce.CallbackProviderError,
			Error:            c.Error,
			ErrorDescription: c.ErrorDescription,
			State:            c.State,
		}
	}
	return &pkce.CallbackResult{Kind: pkce.CallbackSuccess, Code: c.Code, State: c.State}
}
