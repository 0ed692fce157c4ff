package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/router-for-me/pkcelogin/internal/auth/pkce"
	"github.com/router-for-me/pkcelogin/internal/config"
	"github.com/router-for-me/pkcelogin/internal/logging"
	"github.com/router-for-me/pkcelogin/internal/openapi"
	"github.com/router-for-me/pkcelogin/internal/util"
	sdkAuth "github.com/router-for-me/pkcelogin/sdk/auth"
	"github.com/tidwall/gjson"
)

// LoginOptions contains options for the login process.
// It provides configuration for the authentication flow including browser behavior,
// interactive prompting and which demonstration steps run after the code grant.
type LoginOptions struct {
	// NoBrowser indicates whether to skip opening the browser automatically.
	NoBrowser bool

	// CallbackPort overrides the local OAuth callback port when set (>0).
	CallbackPort int

	// Prompt allows the caller to provide interactive input when needed.
	Prompt func(prompt string) (string, error)

	// SkipUserInfo skips the downstream user lookup.
	SkipUserInfo bool

	// SkipRefresh skips the refresh grant.
	SkipRefresh bool

	// ShowTokens prints token values unmasked.
	ShowTokens bool

	// Authenticator replaces the default PKCE authenticator.
	Authenticator sdkAuth.Authenticator

	// Out receives the user-facing report. Defaults to stdout.
	Out io.Writer
}

// DoPKCELogin runs one interactive handshake, proves the access token against the
// downstream API and performs the refresh grant. Errors are returned to the caller,
// which decides the process exit code.
func DoPKCELogin(ctx context.Context, cfg *config.Config, options *LoginOptions) error {
	if options == nil {
		options = &LoginOptions{}
	}
	out := options.Out
	if out == nil {
		out = os.Stdout
	}
	authenticator := options.Authenticator
	if authenticator == nil {
		authenticator = sdkAuth.NewPKCEAuthenticator()
	}

	authOpts := &sdkAuth.LoginOptions{
		NoBrowser:    options.NoBrowser,
		CallbackPort: options.CallbackPort,
		Prompt:       options.Prompt,
	}

	result, err := authenticator.Login(ctx, cfg, authOpts)
	if err != nil {
		return err
	}
	defer result.Discard()

	ctx = logging.WithFlowID(ctx, result.FlowID)
	logger := logging.FromContext(ctx)

	printTokenPayload(out, "Token response", result.Token, options.ShowTokens)

	if !options.SkipUserInfo && cfg.OpenAPIBaseURL != "" {
		client := openapi.NewClient(cfg.AppConfig, result.HTTPClient())
		info, errInfo := client.FetchUserInfo(ctx, result.Token.Token())
		if errInfo != nil {
			return pkce.CancelledIfInterrupted(ctx, fmt.Errorf("user info request failed: %w", errInfo))
		}
		_, _ = fmt.Fprintf(out, "Signed in as %s (%s)\n", displayName(info), info.UserID)
	} else {
		logger.Debug("user info lookup skipped")
	}

	if options.SkipRefresh {
		return nil
	}
	if result.Token.RefreshToken == "" {
		logger.Warn("token response carries no refresh token; refresh skipped")
		return nil
	}

	refreshed, err := authenticator.Refresh(ctx, result)
	if err != nil {
		return err
	}
	printTokenPayload(out, "Refreshed token response", refreshed, options.ShowTokens)
	_, _ = fmt.Fprintln(out, "Authentication cycle complete.")
	return nil
}

func printTokenPayload(out io.Writer, title string, token *pkce.TokenResponse, showTokens bool) {
	if token == nil {
		return
	}
	payload := []byte(token.Raw)
	if !showTokens {
		payload = util.MaskTokenPayload(payload)
	}
	if gjson.ValidBytes(payload) {
		payload = []byte(gjson.GetBytes(payload, "@pretty").Raw)
	}
	_, _ = fmt.Fprintf(out, "%s:\n%s\n", title, payload)
	if expiry := token.Expiry(); !expiry.IsZero() {
		_, _ = fmt.Fprintf(out, "Expires at: %s\n", expiry.Format("2006-01-02 15:04:05"))
	}
}

func displayName(info *openapi.UserInfo) string {
	if info.Name != "" {
		return info.Name
	}
	return "unknown user"
}
