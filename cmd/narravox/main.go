// Command narravox is the override studio CLI for the narration server:
// voice mix tooling, pronunciation override management, previews, and the
// interactive editor.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "narravox:", err)
		}
		os.Exit(1)
	}
}
