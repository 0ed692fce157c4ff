// Package config provides configuration management for the pkcelogin client.
// It handles loading and parsing YAML configuration files, applying environment
// overrides, and exposes the provider application settings that every PKCE
// component receives explicitly.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultTokenSuccessStatus is the status the reference provider returns on token issuance.
	DefaultTokenSuccessStatus = 201
	// DefaultUserInfoSuccessStatus is the status expected from the downstream user-info call.
	DefaultUserInfoSuccessStatus = 200
	// DefaultUserInfoPath is appended to the OpenAPI base URL for the illustrative user lookup.
	DefaultUserInfoPath = "port/v1/users/me"
	// DefaultCallbackTimeoutSeconds bounds the wait for the browser redirect.
	DefaultCallbackTimeoutSeconds = 120
	// DefaultManualPromptDelaySeconds is how long to wait before offering the manual paste prompt.
	DefaultManualPromptDelaySeconds = 15
	// DefaultBindAttempts bounds the listener bind retries.
	DefaultBindAttempts = 5
	// DefaultVerifierBytes yields an 86 character code verifier.
	DefaultVerifierBytes = 64
	// DefaultStateBytes is the entropy of the anti-forgery token.
	DefaultStateBytes = 16
)

// AppConfig describes the application registered with the identity provider.
// It is treated as immutable once loaded.
type AppConfig struct {
	// AppName is a display name used in log output only.
	AppName string `yaml:"app-name" json:"app-name"`

	// AppKey is the OAuth client identifier.
	AppKey string `yaml:"app-key" json:"app-key"`

	// AuthorizationEndpoint is the provider's authorization URL.
	AuthorizationEndpoint string `yaml:"authorization-endpoint" json:"authorization-endpoint"`

	// TokenEndpoint is the provider's token URL.
	TokenEndpoint string `yaml:"token-endpoint" json:"token-endpoint"`

	// RedirectURLs are the registered redirect URLs. Only the first one is used;
	// its port is replaced at runtime.
	RedirectURLs []string `yaml:"redirect-urls" json:"redirect-urls"`

	// OpenAPIBaseURL is the base URL of the downstream API.
	OpenAPIBaseURL string `yaml:"openapi-base-url" json:"openapi-base-url"`

	// UserInfoPath is the resource requested from the downstream API after login.
	UserInfoPath string `yaml:"user-info-path,omitempty" json:"user-info-path,omitempty"`

	// Scope is sent with the authorization request when non-empty.
	Scope string `yaml:"scope,omitempty" json:"scope,omitempty"`

	// TokenSuccessStatus is the HTTP status the token endpoint uses to signal success.
	TokenSuccessStatus int `yaml:"token-success-status,omitempty" json:"token-success-status,omitempty"`

	// UserInfoSuccessStatus is the HTTP status expected from the user-info call.
	UserInfoSuccessStatus int `yaml:"user-info-success-status,omitempty" json:"user-info-success-status,omitempty"`

	// RefreshIncludeClientID controls whether client_id is sent with the refresh grant.
	// Nil means true.
	RefreshIncludeClientID *bool `yaml:"refresh-include-client-id,omitempty" json:"refresh-include-client-id,omitempty"`
}

// Config represents the full client configuration, loaded from a YAML file.
type Config struct {
	AppConfig `yaml:",inline"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile writes logs to a rotating file instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir overrides the directory used when LoggingToFile is set.
	LogDir string `yaml:"log-dir,omitempty" json:"log-dir,omitempty"`

	// CallbackPort is the first port tried for the callback listener. 0 lets the OS choose.
	CallbackPort int `yaml:"callback-port,omitempty" json:"callback-port,omitempty"`

	// CallbackPortMin and CallbackPortMax, when both set, make retries draw a random port
	// from the inclusive range instead of asking the OS.
	CallbackPortMin int `yaml:"callback-port-min,omitempty" json:"callback-port-min,omitempty"`
	CallbackPortMax int `yaml:"callback-port-max,omitempty" json:"callback-port-max,omitempty"`

	// BindAttempts bounds how many ports are tried before giving up.
	BindAttempts int `yaml:"bind-attempts,omitempty" json:"bind-attempts,omitempty"`

	// CallbackTimeoutSeconds bounds the wait for the browser redirect.
	CallbackTimeoutSeconds int `yaml:"callback-timeout-seconds,omitempty" json:"callback-timeout-seconds,omitempty"`

	// ManualPromptDelaySeconds delays the manual callback paste prompt.
	// <= 0 uses the default.
	ManualPromptDelaySeconds int `yaml:"manual-prompt-delay-seconds,omitempty" json:"manual-prompt-delay-seconds,omitempty"`

	// VerifierBytes is the number of random bytes behind the PKCE code verifier.
	VerifierBytes int `yaml:"verifier-bytes,omitempty" json:"verifier-bytes,omitempty"`

	// StateBytes is the number of random bytes behind the anti-forgery token.
	StateBytes int `yaml:"state-bytes,omitempty" json:"state-bytes,omitempty"`
}

// envOverrides maps environment variables onto configuration fields.
var envOverrides = []struct {
	keys  []string
	apply func(cfg *Config, value string)
}{
	{[]string{"PKCE_APP_KEY", "pkce_app_key"}, func(cfg *Config, v string) { cfg.AppKey = v }},
	{[]string{"PKCE_AUTHORIZATION_ENDPOINT", "pkce_authorization_endpoint"}, func(cfg *Config, v string) { cfg.AuthorizationEndpoint = v }},
	{[]string{"PKCE_TOKEN_ENDPOINT", "pkce_token_endpoint"}, func(cfg *Config, v string) { cfg.TokenEndpoint = v }},
	{[]string{"PKCE_REDIRECT_URL", "pkce_redirect_url"}, func(cfg *Config, v string) { cfg.RedirectURLs = []string{v} }},
	{[]string{"PKCE_OPENAPI_BASE_URL", "pkce_openapi_base_url"}, func(cfg *Config, v string) { cfg.OpenAPIBaseURL = v }},
	{[]string{"PKCE_PROXY_URL", "pkce_proxy_url"}, func(cfg *Config, v string) { cfg.ProxyURL = v }},
}

// LoadConfig reads and parses the YAML configuration file, applies environment
// overrides and defaults, and validates the result.
func LoadConfig(configFile string) (*Config, error) {
	return loadConfig(configFile, false)
}

// LoadConfigOptional behaves like LoadConfig but tolerates a missing or empty
// file, so that a configuration supplied purely through the environment works.
func LoadConfigOptional(configFile string) (*Config, error) {
	return loadConfig(configFile, true)
}

func loadConfig(configFile string, optional bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configFile)
	if err != nil {
		if !optional || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if len(data) > 0 {
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually os.LookupEnv.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for _, o := range envOverrides {
		for _, key := range o.keys {
			if value, ok := lookup(key); ok {
				if trimmed := strings.TrimSpace(value); trimmed != "" {
					o.apply(cfg, trimmed)
					break
				}
			}
		}
	}
}

// ApplyDefaults fills unset tunables with their defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.TokenSuccessStatus == 0 {
		cfg.TokenSuccessStatus = DefaultTokenSuccessStatus
	}
	if cfg.UserInfoSuccessStatus == 0 {
		cfg.UserInfoSuccessStatus = DefaultUserInfoSuccessStatus
	}
	if cfg.UserInfoPath == "" {
		cfg.UserInfoPath = DefaultUserInfoPath
	}
	if cfg.CallbackTimeoutSeconds <= 0 {
		cfg.CallbackTimeoutSeconds = DefaultCallbackTimeoutSeconds
	}
	if cfg.ManualPromptDelaySeconds <= 0 {
		cfg.ManualPromptDelaySeconds = DefaultManualPromptDelaySeconds
	}
	if cfg.BindAttempts <= 0 {
		cfg.BindAttempts = DefaultBindAttempts
	}
	if cfg.VerifierBytes == 0 {
		cfg.VerifierBytes = DefaultVerifierBytes
	}
	if cfg.StateBytes == 0 {
		cfg.StateBytes = DefaultStateBytes
	}
}

// Validate checks that the configuration can drive a handshake.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.AppKey) == "" {
		return fmt.Errorf("config: app-key is required")
	}
	if err := validateAbsoluteURL("authorization-endpoint", cfg.AuthorizationEndpoint); err != nil {
		return err
	}
	if err := validateAbsoluteURL("token-endpoint", cfg.TokenEndpoint); err != nil {
		return err
	}
	if len(cfg.RedirectURLs) == 0 {
		return fmt.Errorf("config: at least one redirect-urls entry is required")
	}
	if _, err := cfg.RedirectURLWithPort(0); err != nil {
		return err
	}
	if cfg.CallbackPort < 0 || cfg.CallbackPort > 65535 {
		return fmt.Errorf("config: callback-port %d out of range", cfg.CallbackPort)
	}
	if cfg.CallbackPortMin != 0 || cfg.CallbackPortMax != 0 {
		if cfg.CallbackPortMin <= 0 || cfg.CallbackPortMax > 65535 || cfg.CallbackPortMin > cfg.CallbackPortMax {
			return fmt.Errorf("config: invalid callback port range %d-%d", cfg.CallbackPortMin, cfg.CallbackPortMax)
		}
	}
	if cfg.StateBytes != 0 && cfg.StateBytes < 10 {
		return fmt.Errorf("config: state-bytes must be at least 10, got %d", cfg.StateBytes)
	}
	return nil
}

// IncludeClientIDOnRefresh reports whether client_id is sent with the refresh grant.
func (a *AppConfig) IncludeClientIDOnRefresh() bool {
	return a.RefreshIncludeClientID == nil || *a.RefreshIncludeClientID
}

// RedirectURLWithPort returns the first registered redirect URL with its port replaced.
// Scheme, host and path are preserved; a port of 0 yields the URL without a port.
func (a *AppConfig) RedirectURLWithPort(port int) (*url.URL, error) {
	if len(a.RedirectURLs) == 0 {
		return nil, fmt.Errorf("config: no redirect url configured")
	}
	raw := strings.TrimSpace(a.RedirectURLs[0])
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: invalid redirect url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" || parsed.Hostname() == "" {
		return nil, fmt.Errorf("config: redirect url %q must be an absolute http url", raw)
	}
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	host := parsed.Hostname()
	if port > 0 {
		parsed.Host = net.JoinHostPort(host, strconv.Itoa(port))
	} else if strings.Contains(host, ":") {
		parsed.Host = "[" + host + "]"
	} else {
		parsed.Host = host
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed, nil
}

func validateAbsoluteURL(name, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("config: %s is required", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config: %s must be an absolute url", name)
	}
	return nil
}
