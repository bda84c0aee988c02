package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/rentdesk/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	// Re-exec when the binary is rebuilt underneath a dev server.
	if os.Getenv("RENTDESK_AUTORESTART") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
