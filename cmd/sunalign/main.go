// Package main is the entry point for the sunalign command.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/sunalign/internal/cli"
	"github.com/Faultbox/sunalign/internal/logger"
)

func main() {
	if err := cli.Run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		// The logger is still a no-op when config loading failed.
		if logger.Log.Core().Enabled(zap.ErrorLevel) {
			logger.Error("command failed", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
