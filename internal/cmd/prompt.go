package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// StdinPrompt returns a prompt function reading one line per call from in.
// A nil reader uses os.Stdin.
func StdinPrompt(in io.Reader) func(string) (string, error) {
	if in == nil {
		in = os.Stdin
	}
	reader := bufio.NewReader(in)
	return func(prompt string) (string, error) {
		fmt.Print(prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line != "" {
				return strings.TrimSpace(line), nil
			}
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}
