// Command chatwindow is a terminal chat client for local models that keeps
// conversations inside the model's context window.
package main

import (
	"context"
	"fmt"
	"os"

	"chatwindow/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
