// Package main provides the entry point for pkcelogin, a native OAuth2 client that
// performs the Authorization Code flow with PKCE against a loopback redirect,
// proves the issued token against the provider API and runs one refresh grant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/router-for-me/pkcelogin/internal/buildinfo"
	"github.com/router-for-me/pkcelogin/internal/cmd"
	"github.com/router-for-me/pkcelogin/internal/config"
	"github.com/router-for-me/pkcelogin/internal/logging"
	"github.com/router-for-me/pkcelogin/internal/util"
	log "github.com/sirupsen/logrus"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = "config.yaml"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

// run is the single place that turns the outcome of the handshake into an exit code.
func run() int {
	var configPath string
	var noBrowser bool
	var oauthCallbackPort int
	var skipRefresh bool
	var skipUserInfo bool
	var showTokens bool
	var debug bool
	var showVersion bool

	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open browser automatically for OAuth")
	flag.IntVar(&oauthCallbackPort, "oauth-callback-port", 0, "Override OAuth callback port (defaults to an OS-assigned port)")
	flag.BoolVar(&skipRefresh, "skip-refresh", false, "Skip the refresh grant after login")
	flag.BoolVar(&skipUserInfo, "skip-user-info", false, "Skip the downstream user lookup after login")
	flag.BoolVar(&showTokens, "show-tokens", false, "Print token values unmasked")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("pkcelogin Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return cmd.ExitOK
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return cmd.ExitFailure
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(wd, configPath)
	}
	cfg, err := config.LoadConfigOptional(configPath)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return cmd.ExitFailure
	}
	if debug {
		cfg.Debug = true
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return cmd.ExitFailure
	}
	defer logging.CloseLogOutputs()

	util.SetLogLevel(cfg)
	log.Debugf("pkcelogin Version: %s, Commit: %s, BuiltAt: %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	// Interrupts cancel the handshake so the callback port is released before exit.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	options := &cmd.LoginOptions{
		NoBrowser:    noBrowser,
		CallbackPort: oauthCallbackPort,
		Prompt:       cmd.StdinPrompt(nil),
		SkipRefresh:  skipRefresh,
		SkipUserInfo: skipUserInfo,
		ShowTokens:   showTokens,
	}

	err = cmd.DoPKCELogin(ctx, cfg, options)
	cmd.ReportError(err)
	return cmd.ExitCode(err)
}
