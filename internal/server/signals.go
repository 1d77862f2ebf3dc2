package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// SignalHandler manages graceful shutdown of the HTTP server
type SignalHandler struct {
	server          *http.Server
	shutdownTimeout time.Duration
	onShutdown      []func()
}

// NewSignalHandler creates a new signal handler. onShutdown hooks run after
// the HTTP server has drained, in registration order.
func NewSignalHandler(server *http.Server, shutdownTimeout time.Duration, onShutdown ...func()) *SignalHandler {
	return &SignalHandler{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		onShutdown:      onShutdown,
	}
}

// WaitForShutdown waits for shutdown signals and handles graceful shutdown
func (sh *SignalHandler) WaitForShutdown() {
	quit := make(chan os.Signal, 1)

	// SIGINT - typically sent by Ctrl+C
	// SIGTERM - standard termination signal sent by process managers
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal: %v", sig)
	log.Println("Initiating graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), sh.shutdownTimeout)
	defer cancel()

	if err := sh.server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown due to timeout: %v", err)
	} else {
		log.Println("Server gracefully shut down")
	}

	for _, hook := range sh.onShutdown {
		hook()
	}
}
