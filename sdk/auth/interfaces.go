package auth

import (
	"context"

	"github.com/router-for-me/pkcelogin/internal/auth/pkce"
	"github.com/router-for-me/pkcelogin/internal/config"
)

// LoginOptions captures the interactive knobs of one handshake.
type LoginOptions struct {
	// NoBrowser prints the authorization URL instead of launching a browser.
	NoBrowser bool
	// CallbackPort is tried first for the callback listener. 0 defers to the configuration.
	CallbackPort int
	// Prompt, when set, is used to offer a manual callback URL paste after a delay.
	Prompt func(prompt string) (string, error)
}

// Authenticator runs the interactive login and the follow-up refresh grant.
type Authenticator interface {
	Login(ctx context.Context, cfg *config.Config, opts *LoginOptions) (*LoginResult, error)
	Refresh(ctx context.Context, result *LoginResult) (*pkce.TokenResponse, error)
}
