// Package browser provides cross-platform functionality for opening URLs in the default web browser.
// It abstracts the underlying operating system commands and provides a simple interface,
// plus a clipboard fallback for hosts where no browser can be launched.
package browser

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// linuxBrowsers lists the commands tried on Linux, in order of preference.
var linuxBrowsers = []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// OpenURL opens the specified URL in the default web browser.
// It first attempts to use a platform-agnostic library and falls back to
// platform-specific commands if that fails.
//
// Parameters:
//   - url: The URL to open.
//
// Returns:
//   - An error if the URL cannot be opened, otherwise nil.
func OpenURL(url string) error {
	err := open.Run(url)
	if err == nil {
		log.Debug("opened authorization URL using open-golang")
		return nil
	}

	log.Debugf("open-golang failed: %v, trying platform-specific commands", err)
	return openURLPlatformSpecific(url)
}

// openURLPlatformSpecific opens a URL using OS-specific commands.
func openURLPlatformSpecific(url string) error {
	name, args, err := platformCommand(url)
	if err != nil {
		return err
	}

	cmd := exec.Command(name, args...)
	log.Debugf("running command: %s %v", cmd.Path, cmd.Args[1:])
	if err = cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	// Reap the child so it does not linger as a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}

func platformCommand(url string) (string, []string, error) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	case "linux":
		for _, browser := range linuxBrowsers {
			if _, err := lookPath(browser); err == nil {
				return browser, []string{url}, nil
			}
		}
		return "", nil, fmt.Errorf("no suitable browser found on Linux system")
	default:
		return "", nil, fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// IsAvailable reports whether the host appears able to open a web browser.
// Headless Linux sessions without DISPLAY or WAYLAND_DISPLAY are treated as unavailable.
func IsAvailable() bool {
	switch runtime.GOOS {
	case "darwin":
		_, err := lookPath("open")
		return err == nil
	case "windows":
		_, err := lookPath("rundll32")
		return err == nil
	case "linux":
		if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			return false
		}
		for _, browser := range linuxBrowsers {
			if _, err := lookPath(browser); err == nil {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// CopyToClipboard places text on the system clipboard when a clipboard utility is present.
func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not supported on this host")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}
