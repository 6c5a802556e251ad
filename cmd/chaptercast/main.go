package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var logger = log.New(os.Stderr, "chaptercast ", log.LstdFlags|log.Lmsgprefix)

var rootCmd = &cobra.Command{
	Use:           "chaptercast",
	Short:         "Build, inspect and repair chaptered podcast episodes",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(buildCmd, reportCmd, rescueCmd, serveCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Printf("error: %v", err)
		os.Exit(1)
	}
}
