// internal/minter/shutdown.go
package minter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CloseFunc adapts a function to io.Closer.
type CloseFunc func() error

func (f CloseFunc) Close() error { return f() }

// ShutdownHandler closes registered resources newest first, the reverse of
// the order they were wired in.
type ShutdownHandler struct {
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	closers []namedCloser
}

type namedCloser struct {
	name string
	io.Closer
}

// NewShutdownHandler returns a handler with the given overall deadline; zero means 10s.
func NewShutdownHandler(logger *zap.Logger, timeout time.Duration) *ShutdownHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ShutdownHandler{logger: logger.Named("shutdown"), timeout: timeout}
}

// Add registers closer under name.
func (sh *ShutdownHandler) Add(name string, closer io.Closer) {
	sh.mu.Lock()
	sh.closers = append(sh.closers, namedCloser{name: name, Closer: closer})
	sh.mu.Unlock()
	sh.logger.Debug("Registered for shutdown", zap.String("service", name))
}

// AddFunc registers fn under name.
func (sh *ShutdownHandler) AddFunc(name string, fn func() error) {
	sh.Add(name, CloseFunc(fn))
}

// Shutdown closes services one by one, newest first. A service that does not
// finish before the deadline is reported and left behind.
func (sh *ShutdownHandler) Shutdown(ctx context.Context) error {
	sh.mu.Lock()
	closers := sh.closers
	sh.closers = nil
	sh.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, sh.timeout)
	defer cancel()

	sh.logger.Debug("Closing resources", zap.Int("count", len(closers)))

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		done := make(chan error, 1)
		go func() { done <- c.Close() }()

		select {
		case err := <-done:
			if err != nil {
				sh.logger.Error("Close failed", zap.String("service", c.name), zap.Error(err))
				errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
			}
		case <-ctx.Done():
			sh.logger.Error("Close timed out", zap.String("service", c.name))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, ctx.Err()))
			return errors.Join(errs...)
		}
	}
	return errors.Join(errs...)
}
