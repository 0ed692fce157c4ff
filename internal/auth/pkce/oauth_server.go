package pkce

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/pkcelogin/internal/logging"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ServerState is the lifecycle state of an OAuthServer.
type ServerState int

const (
	StateIdle ServerState = iota
	StateListening
	StateCallbackReceived
	StateInterrupted
	StateStopped
)

func (s ServerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateCallbackReceived:
		return "callback_received"
	case StateInterrupted:
		return "interrupted"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// OAuthServer is a single-use loopback HTTP server that captures the provider redirect.
// It delivers exactly one CallbackResult and then stops accepting connections.
type OAuthServer struct {
	// host is the redirect host; it must resolve to a loopback address
	host string
	// port is the requested port before Start and the bound port after it
	port int
	// path is the registered redirect path
	path string
	// appName is shown on the browser pages
	appName string
	// flowID tags request logs of this handshake
	flowID string

	server *http.Server
	group  *errgroup.Group

	// resultChan carries the single CallbackResult
	resultChan chan *CallbackResult
	// errorChan carries a serve failure
	errorChan chan error

	stopOnce sync.Once
	stopErr  error

	// mu protects state, server, group and port
	mu    sync.Mutex
	state ServerState
}

// NewOAuthServer creates a callback server for the given redirect host, port and path.
// A port of 0 lets the operating system choose.
func NewOAuthServer(host string, port int, callbackPath string) *OAuthServer {
	if callbackPath == "" {
		callbackPath = "/"
	}
	if !strings.HasPrefix(callbackPath, "/") {
		callbackPath = "/" + callbackPath
	}
	return &OAuthServer{
		host:       host,
		port:       port,
		path:       callbackPath,
		resultChan: make(chan *CallbackResult, 1),
		errorChan:  make(chan error, 1),
	}
}

// WithAppName sets the application name rendered on the browser pages.
func (s *OAuthServer) WithAppName(name string) *OAuthServer {
	s.appName = name
	return s
}

// WithFlowID tags the callback request logs with the handshake identifier.
func (s *OAuthServer) WithFlowID(flowID string) *OAuthServer {
	s.flowID = flowID
	return s
}

// Start binds the loopback port and begins serving in a background goroutine.
// A bind failure is reported as ErrPortInUse so the caller may retry with another port.
func (s *OAuthServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return NewAuthenticationError(ErrServerStartFailed, fmt.Errorf("server is %s", s.state))
	}

	bindHost, err := loopbackHost(s.host)
	if err != nil {
		return NewAuthenticationError(ErrServerStartFailed, err)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(bindHost, strconv.Itoa(s.port)))
	if err != nil {
		return NewAuthenticationError(ErrPortInUse, fmt.Errorf("port %d: %w", s.port, err))
	}
	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port = addr.Port
	}

	engine := gin.New()
	engine.Use(logging.GinFlowID(s.flowID), logging.GinLogrusLogger(), logging.GinLogrusRecovery())
	engine.GET(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	server := s.server
	s.group = new(errgroup.Group)
	s.group.Go(func() error {
		if errServe := server.Serve(listener); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			select {
			case s.errorChan <- fmt.Errorf("callback server failed: %w", errServe):
			default:
			}
			return errServe
		}
		return nil
	})

	s.state = StateListening
	log.Debugf("OAuth callback server listening on %s (path %s)", listener.Addr(), s.path)
	return nil
}

// Port returns the bound port once Start has succeeded.
func (s *OAuthServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// State returns the current lifecycle state.
func (s *OAuthServer) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit delivers a result obtained outside the HTTP endpoint, such as a pasted
// callback URL. It reports false when a result was already delivered.
func (s *OAuthServer) Submit(result *CallbackResult) bool {
	if result == nil {
		return false
	}
	if !s.deliver(result) {
		return false
	}
	go s.stopAfterResult()
	return true
}

// Interrupt surfaces a Cancelled result and stops the server.
func (s *OAuthServer) Interrupt() {
	s.deliver(&CallbackResult{Kind: CallbackCancelled})
	if err := s.Stop(context.Background()); err != nil {
		log.Warnf("OAuth callback server stop error: %v", err)
	}
}

// Stop shuts the server down and waits for the serve goroutine, releasing the port.
// It is safe to call more than once.
func (s *OAuthServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.stopErr = s.shutdown(ctx)
	})
	return s.stopErr
}

func (s *OAuthServer) shutdown(ctx context.Context) error {
	s.deliver(&CallbackResult{Kind: CallbackCancelled})

	s.mu.Lock()
	server, group := s.server, s.group
	s.mu.Unlock()

	var err error
	if server != nil {
		log.Debug("Stopping OAuth callback server")
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err = server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
		}
		_ = group.Wait()
	}

	s.mu.Lock()
	s.state = StateStopped
	s.server = nil
	s.mu.Unlock()
	return err
}

// WaitForCallback blocks until a result arrives, the server fails, timeout elapses
// or ctx is cancelled. Cancellation interrupts the server and yields a Cancelled result.
// A timeout <= 0 waits without bound.
func (s *OAuthServer) WaitForCallback(ctx context.Context, timeout time.Duration) (*CallbackResult, error) {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case result := <-s.resultChan:
		return result, nil
	case err := <-s.errorChan:
		return nil, NewAuthenticationError(ErrServerStartFailed, err)
	case <-ctx.Done():
		s.Interrupt()
		select {
		case <-s.resultChan:
		default:
		}
		return &CallbackResult{Kind: CallbackCancelled}, nil
	case <-timeoutC:
		return nil, NewAuthenticationError(ErrCallbackTimeout, fmt.Errorf("no callback within %s", timeout))
	}
}

// handleCallback captures the provider redirect. Requests missing both an error
// and a code/state pair are rejected without changing state.
func (s *OAuthServer) handleCallback(c *gin.Context) {
	if s.State() != StateListening {
		c.String(http.StatusGone, "OAuth callback already received")
		return
	}

	query := c.Request.URL.Query()
	errorParam := strings.TrimSpace(query.Get("error"))
	code := strings.TrimSpace(query.Get("code"))
	state := strings.TrimSpace(query.Get("state"))

	var result *CallbackResult
	switch {
	case errorParam != "":
		result = &CallbackResult{
			Kind:             CallbackProviderError,
			Error:            errorParam,
			ErrorDescription: strings.TrimSpace(query.Get("error_description")),
			State:            state,
		}
	case code == "" || state == "":
		logging.FromContext(c.Request.Context()).Warnf("%s: code present=%t, state present=%t", ErrMalformedCallback.Message, code != "", state != "")
		c.String(http.StatusBadRequest, "Missing required parameter: code and state are required")
		return
	default:
		result = &CallbackResult{Kind: CallbackSuccess, Code: code, State: state}
	}

	if !s.deliver(result) {
		c.String(http.StatusGone, "OAuth callback already received")
		return
	}

	page := LoginSuccessHtml
	errMsg := ""
	if result.Kind == CallbackProviderError {
		logging.FromContext(c.Request.Context()).WithField("error", result.Error).Error("OAuth error received")
		page = LoginErrorHtml
		errMsg = (&OAuthError{Code: result.Error, Description: result.ErrorDescription}).Error()
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(renderPage(page, s.appName, errMsg)))

	go s.stopAfterResult()
}

// deliver records result as the single outcome of this server. Only the first
// call while listening succeeds.
func (s *OAuthServer) deliver(result *CallbackResult) bool {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return false
	}
	if result.Kind == CallbackCancelled {
		s.state = StateInterrupted
	} else {
		s.state = StateCallbackReceived
	}
	s.mu.Unlock()

	s.resultChan <- result
	log.Debugf("OAuth result (%s) sent to channel", result.Kind)
	return true
}

func (s *OAuthServer) stopAfterResult() {
	if err := s.Stop(context.Background()); err != nil {
		log.Warnf("OAuth callback server stop error: %v", err)
	}
}

// loopbackHost maps the redirect host to the address the listener binds.
func loopbackHost(host string) (string, error) {
	host = strings.Trim(strings.TrimSpace(host), "[]")
	if host == "" || strings.EqualFold(host, "localhost") {
		return "127.0.0.1", nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return "", fmt.Errorf("redirect host %q is not a loopback address", host)
	}
	return ip.String(), nil
}
