package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/router-for-me/pkcelogin/internal/auth/pkce"
	"github.com/router-for-me/pkcelogin/internal/browser"
	"github.com/router-for-me/pkcelogin/internal/config"
	"github.com/router-for-me/pkcelogin/internal/logging"
	"github.com/router-for-me/pkcelogin/internal/misc"
	log "github.com/sirupsen/logrus"
)

// PKCEAuthenticator implements the interactive Authorization Code + PKCE login.
type PKCEAuthenticator struct {
	// CallbackPort is tried first when neither the options nor the config name a port.
	CallbackPort int
	// CallbackTimeout overrides callback-timeout-seconds when positive.
	CallbackTimeout time.Duration
	// ManualPromptDelay overrides manual-prompt-delay-seconds when positive.
	ManualPromptDelay time.Duration
	// HTTPClient overrides the proxied client used for the token endpoint.
	HTTPClient *http.Client
	// OpenURL overrides the system browser launcher.
	OpenURL func(url string) error
}

// NewPKCEAuthenticator constructs an authenticator with default settings.
func NewPKCEAuthenticator() *PKCEAuthenticator {
	return &PKCEAuthenticator{}
}

var _ Authenticator = (*PKCEAuthenticator)(nil)

// LoginResult is the outcome of a completed handshake.
type LoginResult struct {
	// Token is the code grant response.
	Token *pkce.TokenResponse
	// RedirectURI is the exact redirect URI, ephemeral port included, used by the handshake.
	RedirectURI string
	// FlowID tags every log line of the handshake.
	FlowID string

	session *loginSession
}

// HTTPClient returns the client that talked to the token endpoint, for downstream calls.
func (r *LoginResult) HTTPClient() *http.Client {
	if r == nil || r.session == nil {
		return nil
	}
	return r.session.auth.HTTPClient()
}

// Discard wipes the code verifier held for the refresh grant.
func (r *LoginResult) Discard() {
	if r != nil && r.session != nil {
		r.session.discard()
	}
}

// loginSession keeps the verifier and token client alive between the two grants.
type loginSession struct {
	mu       sync.Mutex
	verifier string
	auth     *pkce.PKCEAuth
}

// take returns the verifier and wipes it from the session.
func (s *loginSession) take() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verifier == "" {
		return "", false
	}
	verifier := s.verifier
	s.verifier = ""
	return verifier, true
}

func (s *loginSession) discard() {
	s.mu.Lock()
	s.verifier = ""
	s.mu.Unlock()
}

type promptReply struct {
	input string
	err   error
}

func (a *PKCEAuthenticator) Login(ctx context.Context, cfg *config.Config, opts *LoginOptions) (*LoginResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pkcelogin auth: configuration is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &LoginOptions{}
	}

	flowID := logging.GenerateFlowID()
	ctx = logging.WithFlowID(ctx, flowID)
	logger := logging.FromContext(ctx)

	pkceCodes, err := pkce.GeneratePKCECodes(cfg.VerifierBytes)
	if err != nil {
		return nil, fmt.Errorf("pkce generation failed: %w", err)
	}

	state, err := pkce.ReserveState(cfg.StateBytes)
	if err != nil {
		return nil, fmt.Errorf("state generation failed: %w", err)
	}
	defer pkce.ReleaseState(state)

	registered, err := cfg.RedirectURLWithPort(0)
	if err != nil {
		return nil, err
	}

	oauthServer, err := a.startServer(cfg, opts, registered.Hostname(), registered.Path, flowID)
	if err != nil {
		return nil, err
	}
	stopServer := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if stopErr := oauthServer.Stop(stopCtx); stopErr != nil {
			logger.Warnf("oauth callback server stop error: %v", stopErr)
		}
	}
	defer stopServer()

	redirect, err := cfg.RedirectURLWithPort(oauthServer.Port())
	if err != nil {
		return nil, err
	}
	redirectURI := redirect.String()

	authSvc := pkce.NewPKCEAuth(cfg)
	if a.HTTPClient != nil {
		authSvc = pkce.NewPKCEAuthWithClient(cfg.AppConfig, a.HTTPClient)
	}

	authURL, err := authSvc.GenerateAuthURL(state, redirectURI, pkceCodes)
	if err != nil {
		return nil, fmt.Errorf("authorization url generation failed: %w", err)
	}

	a.presentURL(authURL, opts)
	fmt.Println("Waiting for authentication callback...")

	callbackCh := make(chan *pkce.CallbackResult, 1)
	callbackErrCh := make(chan error, 1)
	go func() {
		result, errWait := oauthServer.WaitForCallback(ctx, a.callbackTimeout(cfg))
		if errWait != nil {
			callbackErrCh <- errWait
			return
		}
		callbackCh <- result
	}()

	var manualPromptC <-chan time.Time
	if opts.Prompt != nil {
		manualPromptTimer := time.NewTimer(a.manualPromptDelay(cfg))
		defer manualPromptTimer.Stop()
		manualPromptC = manualPromptTimer.C
	}
	promptCh := make(chan promptReply, 1)
	askManual := func() {
		go func() {
			input, errPrompt := opts.Prompt("Paste the callback URL (or press Enter to keep waiting): ")
			promptCh <- promptReply{input: input, err: errPrompt}
		}()
	}

	var result *pkce.CallbackResult
waitForCallback:
	for {
		select {
		case result = <-callbackCh:
			break waitForCallback
		case err = <-callbackErrCh:
			return nil, err
		case <-manualPromptC:
			manualPromptC = nil
			askManual()
		case reply := <-promptCh:
			if reply.err != nil {
				logger.Warnf("manual callback prompt failed: %v", reply.err)
				continue
			}
			parsed, errParse := misc.ParseOAuthCallback(reply.input)
			if errParse != nil {
				fmt.Printf("Could not read the callback URL: %v\n", errParse)
				askManual()
				continue
			}
			if parsed == nil {
				continue
			}
			if !oauthServer.Submit(parsed.Result()) {
				logger.Debug("pasted callback ignored; a result was already delivered")
			}
		}
	}

	stopServer()

	if result.Kind == pkce.CallbackCancelled {
		logger.Info("authentication cancelled")
		return nil, pkce.NewAuthenticationError(pkce.ErrCancelled, context.Cause(ctx))
	}

	if subtle.ConstantTimeCompare([]byte(result.State), []byte(state)) != 1 {
		logger.Error("state mismatch: callback does not belong to this authorization request")
		return nil, pkce.NewAuthenticationError(pkce.ErrInvalidState, fmt.Errorf("state mismatch"))
	}

	if result.Kind == pkce.CallbackProviderError {
		oauthErr := pkce.NewOAuthError(result.Error, result.ErrorDescription, http.StatusBadRequest)
		oauthErr.State = result.State
		return nil, oauthErr
	}

	logger.Debug("authorization code received; exchanging for tokens")

	tokens, err := authSvc.ExchangeCodeForTokens(ctx, result.Code, redirectURI, pkceCodes.CodeVerifier)
	if err != nil {
		if err = pkce.CancelledIfInterrupted(ctx, err); errors.Is(err, pkce.ErrCancelled) {
			logger.Info("authentication cancelled during token exchange")
			return nil, err
		}
		logger.Errorf("token exchange failed: %v", err)
		return nil, err
	}

	fmt.Println("Authentication successful")

	return &LoginResult{
		Token:       tokens,
		RedirectURI: redirectURI,
		FlowID:      flowID,
		session:     &loginSession{verifier: pkceCodes.CodeVerifier, auth: authSvc},
	}, nil
}

// Refresh performs the refresh grant for a completed login. The verifier is
// wiped afterwards whether or not the grant succeeds.
func (a *PKCEAuthenticator) Refresh(ctx context.Context, result *LoginResult) (*pkce.TokenResponse, error) {
	if result == nil || result.Token == nil || result.session == nil {
		return nil, fmt.Errorf("pkcelogin auth: login result is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if result.Token.RefreshToken == "" {
		result.Discard()
		return nil, ErrNoRefreshToken
	}
	verifier, ok := result.session.take()
	if !ok {
		return nil, ErrSessionDiscarded
	}

	ctx = logging.WithFlowID(ctx, result.FlowID)
	logging.FromContext(ctx).Debug("refreshing access token")

	tokens, err := result.session.auth.RefreshTokens(ctx, result.Token.RefreshToken, verifier)
	if err != nil {
		return nil, pkce.CancelledIfInterrupted(ctx, err)
	}
	return tokens, nil
}

// startServer binds the callback listener, retrying on bind failures with a new port.
func (a *PKCEAuthenticator) startServer(cfg *config.Config, opts *LoginOptions, host, path, flowID string) (*pkce.OAuthServer, error) {
	attempts := cfg.BindAttempts
	if attempts <= 0 {
		attempts = config.DefaultBindAttempts
	}

	preferred := opts.CallbackPort
	if preferred <= 0 {
		preferred = a.CallbackPort
	}
	if preferred <= 0 {
		preferred = cfg.CallbackPort
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		port := preferred
		if attempt > 0 || port <= 0 {
			port = nextCandidatePort(cfg)
		}

		server := pkce.NewOAuthServer(host, port, path).WithAppName(cfg.AppName).WithFlowID(flowID)
		err := server.Start()
		if err == nil {
			return server, nil
		}
		if !errors.Is(err, pkce.ErrPortInUse) {
			return nil, err
		}
		lastErr = err
		log.WithField("port", port).Warnf("callback port unavailable (attempt %d/%d)", attempt+1, attempts)
	}
	return nil, lastErr
}

// nextCandidatePort draws from the configured range, or asks the OS when none is set.
func nextCandidatePort(cfg *config.Config) int {
	if cfg.CallbackPortMin > 0 && cfg.CallbackPortMax >= cfg.CallbackPortMin {
		return cfg.CallbackPortMin + rand.IntN(cfg.CallbackPortMax-cfg.CallbackPortMin+1)
	}
	return 0
}

func (a *PKCEAuthenticator) presentURL(authURL string, opts *LoginOptions) {
	if !opts.NoBrowser {
		openURL := a.OpenURL
		if openURL == nil && browser.IsAvailable() {
			openURL = browser.OpenURL
		}
		if openURL != nil {
			fmt.Println("Opening browser for authentication")
			err := openURL(authURL)
			if err == nil {
				return
			}
			log.Warnf("Failed to open browser automatically: %v", err)
		} else {
			log.Warn("No browser available; please open the URL manually")
		}
		if errCopy := browser.CopyToClipboard(authURL); errCopy == nil {
			fmt.Println("The authorization URL has been copied to your clipboard.")
		} else {
			log.Debugf("clipboard unavailable: %v", errCopy)
		}
	}
	fmt.Printf("Visit the following URL to continue authentication:\n%s\n", authURL)
}

func (a *PKCEAuthenticator) callbackTimeout(cfg *config.Config) time.Duration {
	if a.CallbackTimeout > 0 {
		return a.CallbackTimeout
	}
	if cfg.CallbackTimeoutSeconds > 0 {
		return time.Duration(cfg.CallbackTimeoutSeconds) * time.Second
	}
	return config.DefaultCallbackTimeoutSeconds * time.Second
}

func (a *PKCEAuthenticator) manualPromptDelay(cfg *config.Config) time.Duration {
	if a.ManualPromptDelay > 0 {
		return a.ManualPromptDelay
	}
	if cfg.ManualPromptDelaySeconds > 0 {
		return time.Duration(cfg.ManualPromptDelaySeconds) * time.Second
	}
	return config.DefaultManualPromptDelaySeconds * time.Second
}
