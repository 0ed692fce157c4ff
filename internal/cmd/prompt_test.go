package cmd

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestStdinPrompt(t *testing.T) {
	prompt := StdinPrompt(strings.NewReader("  http://localhost/cb?code=a&state=b \nlast"))

	line, err := prompt("> ")
	if err != nil || line != "http://localhost/cb?code=a&state=b" {
		t.Fatalf("unexpected first line %q, %v", line, err)
	}
	line, err = prompt("> ")
	if err != nil || line != "last" {
		t.Fatalf("unexpected trailing line %q, %v", line, err)
	}
	if _, err = prompt("> "); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}
