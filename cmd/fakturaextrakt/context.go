package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// maxDocumentSizeBytes bounds how large a PDF this reference CLI will
// attempt to read.
const maxDocumentSizeBytes = 20 << 20

// defaultCommandTimeout is the wall-clock budget for one extract/validate
// invocation, independent of the AI consult's own 30s default timeout.
const defaultCommandTimeout = 120 * time.Second

// validatePDFPath runs existence, regular-file, non-empty and size-limit
// checks before any bytes are read.
func validatePDFPath(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied accessing file: %s", path)
		}
		return nil, fmt.Errorf("accessing file %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		logger.Warn().Str("file", path).Msg("file does not have a .pdf extension")
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("file is empty: %s", path)
	}
	if info.Size() > maxDocumentSizeBytes {
		return nil, fmt.Errorf("file too large (%d bytes); maximum is %d bytes (20MB)", info.Size(), maxDocumentSizeBytes)
	}
	return info, nil
}

// commandContext builds a context bounded by timeout and cancelled early
// on SIGINT/SIGTERM.
func commandContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("received interrupt, cancelling run")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
