package auth

import "errors"

var (
	// ErrNoRefreshToken is returned by Refresh when the code grant issued no refresh token.
	ErrNoRefreshToken = errors.New("pkcelogin auth: token response carries no refresh token")

	// ErrSessionDiscarded is returned by Refresh once the code verifier has been wiped.
	ErrSessionDiscarded = errors.New("pkcelogin auth: login session already discarded")
)
