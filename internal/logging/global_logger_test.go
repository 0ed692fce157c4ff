package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/router-for-me/pkcelogin/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestLogFormatterIncludesShortFlowIDAndOrderedFields(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.StandardLogger(),
		Time:    time.Date(2025, 12, 23, 20, 14, 4, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "token request failed\n",
		Data: log.Fields{
			FlowIDField:  "3f0c9a1e-1111-2222-3333-444455556666",
			"status":     400,
			"grant_type": "authorization_code",
			"ignored":    "x",
		},
	}

	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	line := string(out)
	want := "[2025-12-23 20:14:04] [3f0c9a1e] [warn ] token request failed grant_type=authorization_code status=400\n"
	if line != want {
		t.Fatalf("unexpected line:\n got %q\nwant %q", line, want)
	}
	if strings.Contains(line, "ignored") {
		t.Fatalf("unexpected field in output: %q", line)
	}
}

func TestLogFormatterWithoutFlowID(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.StandardLogger(),
		Time:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   log.InfoLevel,
		Message: "hello",
	}
	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(out), "[2025-01-02 03:04:05] [--------] [info ] hello") {
		t.Fatalf("unexpected line: %q", string(out))
	}
}

func TestConfigureLogOutputWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{LoggingToFile: true, LogDir: dir}
	if got := ResolveLogDirectory(cfg); got != filepath.Clean(dir) {
		t.Fatalf("unexpected log directory %q", got)
	}

	if err := ConfigureLogOutput(cfg); err != nil {
		t.Fatalf("ConfigureLogOutput error: %v", err)
	}
	t.Cleanup(func() { _ = ConfigureLogOutput(&config.Config{}) })

	log.Info("written to file")
	CloseLogOutputs()

	data, err := os.ReadFile(filepath.Join(dir, "pkcelogin.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Fatalf("expected log line in file, got %q", string(data))
	}
}
