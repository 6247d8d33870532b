package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plmerge/internal/server"
	"github.com/desertthunder/plmerge/internal/storage"
)

// Serve runs the HTTP control surface until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host := r.config.Server.Host
	port := r.config.Server.Port
	if cmd.IsSet("port") {
		port = int(cmd.Int("port"))
	}

	d, stop := r.newDownloader(ctx)
	defer stop()

	repo, recorder, closeHistory := r.openHistory()
	defer closeHistory()

	opts := server.GenerationOptions{
		Downloader: d,
		BaseDir:    r.config.Downloader.BaseDir,
		Recorder:   recorder,
		Logger:     r.logger,
	}
	if repo != nil {
		opts.History = repo
	}
	if r.config.Publish.BucketURL != "" {
		p, err := storage.NewPublisher(ctx, r.config.Publish.BucketURL, r.fs, r.logger)
		if err != nil {
			return err
		}
		defer p.Close()
		opts.Publisher = p
	}

	handler := server.NewGenerationHandler(opts)
	router := server.NewMux()
	router.Use(server.Recoverer(r.logger), server.RequestLogger(r.logger))
	router.Mount(handler)

	serverAddr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-sigCtx.Done():
	}

	r.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if err := d.Cancel(shutdownCtx); err != nil {
		r.logger.Warn("failed to cancel active generation", "error", err)
	}
	handler.Wait()
	return nil
}
