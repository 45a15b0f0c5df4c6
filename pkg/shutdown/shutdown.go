package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// CreateGracefulShutdownChannel returns a channel notified on SIGINT and SIGTERM.
func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	return gracefulShutdown
}

// ListenForShutdown blocks until a signal arrives or done is closed, runs callback, and then
// waits up to timeout for it to finish.
func ListenForShutdown(gracefulShutdown chan os.Signal, done chan bool, callback func(), timeout time.Duration, l *zap.Logger) {
	select {
	case sig := <-gracefulShutdown:
		l.Sugar().Infow("Received shutdown signal", zap.String("signal", sig.String()))
	case <-done:
		l.Sugar().Infow("Shutdown requested")
	}
	signal.Stop(gracefulShutdown)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		callback()
	}()

	select {
	case <-finished:
		l.Sugar().Infow("Shutdown complete")
	case <-time.After(timeout):
		l.Sugar().Warnw("Shutdown timed out", zap.Duration("timeout", timeout))
	}
}
