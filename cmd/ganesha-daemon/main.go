package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gtechsd/ganesha-go/internal/infrastructure/cli"
)

func main() {
	ctx := context.Background()
	opts := cli.Options{Verbose: isVerbose()}

	if err := cli.ExecuteDaemon(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "ganesha-daemon:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func isVerbose() bool {
	return strings.EqualFold(os.Getenv("GANESHA_DEBUG"), "1") || strings.EqualFold(os.Getenv("GANESHA_DEBUG"), "true")
}
