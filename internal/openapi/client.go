// Package openapi calls the provider's downstream API with a freshly issued
// access token. Only the user lookup used to prove the token works is implemented.
package openapi

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
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// UserInfo holds the fields extracted from the user lookup.
type UserInfo struct {
	UserID string          `json:"user_id"`
	Name   string          `json:"name,omitempty"`
	Raw    json.RawMessage `json:"-"`
}

// APIError is returned when the downstream API answers with an unexpected status.
type APIError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client talks to the downstream API.
type Client struct {
	baseURL        string
	userInfoPath   string
	expectedStatus int
	httpClient     *http.Client
}

// NewClient creates a Client from the application settings. httpClient carries
// proxy settings and may be nil.
func NewClient(app config.AppConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	path := app.UserInfoPath
	if path == "" {
		path = config.DefaultUserInfoPath
	}
	status := app.UserInfoSuccessStatus
	if status == 0 {
		status = config.DefaultUserInfoSuccessStatus
	}
	return &Client{
		baseURL:        app.OpenAPIBaseURL,
		userInfoPath:   path,
		expectedStatus: status,
		httpClient:     httpClient,
	}
}

// FetchUserInfo requests the current user with token attached as a bearer credential.
func (c *Client) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	endpoint, err := c.resolve(c.userInfoPath)
	if err != nil {
		return nil, err
	}

	// The oauth2 transport wraps the proxied client found in ctx.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create user info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	log.WithField("authorization", util.MaskAuthorizationHeader(token.Type()+" "+token.AccessToken)).Debugf("GET %s", endpoint)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute user info request: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("failed to close response body: %v", errClose)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}
	if resp.StatusCode != c.expectedStatus {
		return nil, &APIError{URL: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("user info response is not valid JSON")
	}

	info := &UserInfo{
		UserID: firstString(body, "UserId", "user_id", "id", "sub"),
		Name:   firstString(body, "Name", "name", "email"),
		Raw:    json.RawMessage(body),
	}
	log.Debugf("user info retrieved for %s", util.HideAPIKey(info.UserID))
	return info, nil
}

func (c *Client) resolve(path string) (string, error) {
	base, err := url.Parse(strings.TrimSpace(c.baseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid openapi base url %q", c.baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid user info path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func firstString(body []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(body, p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
