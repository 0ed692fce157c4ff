package pkce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/router-for-me/pkcelogin/internal/config"
	"github.com/router-for-me/pkcelogin/internal/util"
	log "github.com/sirupsen/logrus"
)

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// PKCEAuth builds authorization URLs and talks to the provider's token endpoint.
// It holds no per-flow state; the caller passes codes and redirect URLs explicitly.
type PKCEAuth struct {
	app        config.AppConfig
	httpClient *http.Client
}

// NewPKCEAuth creates a new PKCEAuth service instance.
// It initializes an HTTP client with proxy settings from the provided configuration.
func NewPKCEAuth(cfg *config.Config) *PKCEAuth {
	return &PKCEAuth{
		app:        cfg.AppConfig,
		httpClient: util.SetProxy(cfg, &http.Client{Timeout: 30 * time.Second}),
	}
}

// NewPKCEAuthWithClient creates a PKCEAuth that uses the given HTTP client as is.
func NewPKCEAuthWithClient(app config.AppConfig, httpClient *http.Client) *PKCEAuth {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &PKCEAuth{app: app, httpClient: httpClient}
}

// HTTPClient returns the client used for provider requests.
func (o *PKCEAuth) HTTPClient() *http.Client {
	return o.httpClient
}

// GenerateAuthURL creates the OAuth authorization URL with PKCE.
// It carries the client ID, the anti-forgery state, the ephemeral redirect URI
// and the S256 challenge.
func (o *PKCEAuth) GenerateAuthURL(state, redirectURI string, pkceCodes *PKCECodes) (string, error) {
	if pkceCodes == nil {
		return "", fmt.Errorf("PKCE codes are required")
	}
	if state == "" {
		return "", fmt.Errorf("state is required")
	}

	authURL, err := url.Parse(o.app.AuthorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}

	params := authURL.Query()
	params.Set("response_type", "code")
	params.Set("client_id", o.app.AppKey)
	params.Set("state", state)
	params.Set("redirect_uri", redirectURI)
	params.Set("code_challenge", pkceCodes.CodeChallenge)
	params.Set("code_challenge_method", CodeChallengeMethodS256)
	if scope := strings.TrimSpace(o.app.Scope); scope != "" {
		params.Set("scope", scope)
	}
	authURL.RawQuery = params.Encode()

	return authURL.String(), nil
}

// ExchangeCodeForTokens exchanges an authorization code for access and refresh tokens.
// redirectURI must be the exact URI sent in the authorization request, ephemeral port included.
func (o *PKCEAuth) ExchangeCodeForTokens(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenResponse, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}
	if codeVerifier == "" {
		return nil, fmt.Errorf("PKCE code verifier is required for token exchange")
	}

	data := url.Values{
		"grant_type":    {grantAuthorizationCode},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {o.app.AppKey},
		"code_verifier": {codeVerifier},
	}
	return o.postToken(ctx, grantAuthorizationCode, data)
}

// RefreshTokens trades a refresh token for a new token pair.
// client_id is included unless the provider profile disables it.
func (o *PKCEAuth) RefreshTokens(ctx context.Context, refreshToken, codeVerifier string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	data := url.Values{
		"grant_type":    {grantRefreshToken},
		"refresh_token": {refreshToken},
		"code_verifier": {codeVerifier},
	}
	if o.app.IncludeClientIDOnRefresh() {
		data.Set("client_id", o.app.AppKey)
	}
	return o.postToken(ctx, grantRefreshToken, data)
}

func (o *PKCEAuth) postToken(ctx context.Context, grant string, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.app.TokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s token request: %w", grant, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	log.Debugf("POST %s (grant_type=%s)", o.app.TokenEndpoint, grant)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, &TokenExchangeError{Grant: grant, Cause: err}
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("failed to close response body: %v", errClose)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TokenExchangeError{Grant: grant, StatusCode: resp.StatusCode, Cause: fmt.Errorf("failed to read token response: %w", err)}
	}

	expected := o.app.TokenSuccessStatus
	if expected == 0 {
		expected = config.DefaultTokenSuccessStatus
	}
	if resp.StatusCode != expected {
		return nil, &TokenExchangeError{Grant: grant, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp TokenResponse
	if err = json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &TokenExchangeError{Grant: grant, StatusCode: resp.StatusCode, Body: string(body), Cause: fmt.Errorf("failed to parse token response: %w", err)}
	}
	if tokenResp.AccessToken == "" {
		return nil, &TokenExchangeError{Grant: grant, StatusCode: resp.StatusCode, Body: string(body), Cause: fmt.Errorf("token response has no access_token")}
	}
	tokenResp.ObtainedAt = time.Now()
	tokenResp.Raw = json.RawMessage(body)

	log.Debugf("%s grant succeeded, access token %s, expires in %ds", grant, util.HideAPIKey(tokenResp.AccessToken), tokenResp.ExpiresIn)
	return &tokenResp, nil
}
