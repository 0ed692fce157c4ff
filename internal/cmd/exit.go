package cmd

import (
	"errors"
	"fmt"

	"github.com/router-for-me/pkcelogin/internal/auth/pkce"
	log "github.com/sirupsen/logrus"
)

const (
	// ExitOK is returned after a complete authentication cycle.
	ExitOK = 0
	// ExitFailure covers every failure without a dedicated code.
	ExitFailure = 1
)

// ExitCode maps the outcome of DoPKCELogin to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, pkce.ErrPortInUse):
		return pkce.ErrPortInUse.Code
	case errors.Is(err, pkce.ErrCancelled):
		return pkce.ErrCancelled.Code
	default:
		return ExitFailure
	}
}

// ReportError logs err with a message fit for the terminal.
func ReportError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, pkce.ErrCancelled) {
		fmt.Println("Authentication cancelled.")
		return
	}
	if authErr, ok := errors.AsType[*pkce.AuthenticationError](err); ok {
		log.Error(pkce.GetUserFriendlyMessage(authErr))
		log.Debugf("authentication error detail: %v", err)
		return
	}
	if pkce.IsOAuthError(err) {
		log.Error(pkce.GetUserFriendlyMessage(err))
		return
	}
	var tokenErr *pkce.TokenExchangeError
	if errors.As(err, &tokenErr) {
		log.WithFields(log.Fields{"grant_type": tokenErr.Grant, "status": tokenErr.StatusCode}).Error(pkce.GetUserFriendlyMessage(tokenErr))
		return
	}
	log.Errorf("Authentication failed: %v", err)
}
