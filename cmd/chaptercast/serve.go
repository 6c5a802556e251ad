package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"chaptercast/internal/config"
	"chaptercast/internal/library"
	"chaptercast/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve built episodes as a local podcast feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		episodesRoot, err := config.ResolveEpisodesRoot()
		if err != nil {
			return fmt.Errorf("resolve episodes root: %w", err)
		}

		listenAddr := config.ListenAddr()
		if err := config.ValidateListenAddr(listenAddr); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", listenAddr, err)
		}

		lib, err := library.NewLibrary(episodesRoot, config.RefreshDebounce(), logger)
		if err != nil {
			return fmt.Errorf("initialise library: %w", err)
		}
		defer func() {
			if err := lib.Close(); err != nil {
				logger.Printf("error closing library: %v", err)
			}
		}()

		show, err := config.ResolveShowMetadata()
		if err != nil {
			return fmt.Errorf("resolve show metadata: %w", err)
		}

		handler := server.New(lib, episodesRoot, server.ShowMetadata{
			Title:       show.Title,
			Description: show.Description,
			Language:    show.Language,
			Author:      show.Author,
		}, logger)

		httpServer := &http.Server{
			Addr:              listenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		ctx := cmd.Context()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("graceful shutdown error: %v", err)
			}
		}()

		logger.Printf("listening on %s (episodes directory: %s)", listenAddr, episodesRoot)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Println("shutdown complete")
		return nil
	},
}
