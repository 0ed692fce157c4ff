package pkce

import (
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
)

// CodeChallengeMethodS256 is the only challenge method this client emits.
const CodeChallengeMethodS256 = "S256"

// PKCECodes holds the verification codes for the OAuth2 PKCE (Proof Key for Code Exchange) flow.
// The verifier must only leave the process in the token requests.
type PKCECodes struct {
	// CodeVerifier is the cryptographically random string used to correlate
	// the authorization request to the token request
	CodeVerifier string `json:"-"`
	// CodeChallenge is the SHA256 hash of the code verifier, base64url-encoded
	CodeChallenge string `json:"code_challenge"`
	// CodeChallengeMethod is always "S256"
	CodeChallengeMethod string `json:"code_challenge_method"`
}

// CallbackKind tags the variant carried by a CallbackResult.
type CallbackKind int

const (
	// CallbackSuccess carries an authorization code and state.
	CallbackSuccess CallbackKind = iota
	// CallbackProviderError carries the provider's error, description and state.
	CallbackProviderError
	// CallbackCancelled means the wait was interrupted before the provider redirected.
	CallbackCancelled
)

func (k CallbackKind) String() string {
	switch k {
	case CallbackSuccess:
		return "success"
	case CallbackProviderError:
		return "provider_error"
	case CallbackCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CallbackResult is produced exactly once by the OAuthServer and handed to the caller.
type CallbackResult struct {
	Kind             CallbackKind
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// TokenResponse is the parsed reply of the token endpoint.
type TokenResponse struct {
	// AccessToken is the OAuth2 access token for API access
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain new access tokens
	RefreshToken string `json:"refresh_token,omitempty"`
	// TokenType is usually "Bearer"
	TokenType string `json:"token_type,omitempty"`
	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int64 `json:"expires_in,omitempty"`
	// RefreshTokenExpiresIn is the refresh token lifetime in seconds, when the provider reports it
	RefreshTokenExpiresIn int64 `json:"refresh_token_expires_in,omitempty"`
	// ObtainedAt is the local time the response was received
	ObtainedAt time.Time `json:"-"`
	// Raw is the unmodified response body
	Raw json.RawMessage `json:"-"`
}

// Expiry returns the absolute expiry of the access token, or the zero time when unknown.
func (t *TokenResponse) Expiry() time.Time {
	if t == nil || t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return t.ObtainedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Token converts the response into an oauth2.Token for downstream HTTP clients.
func (t *TokenResponse) Token() *oauth2.Token {
	if t == nil {
		return nil
	}
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    tokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry(),
	}
	if t.ExpiresIn > 0 {
		tok.ExpiresIn = t.ExpiresIn
	}
	return tok
}
