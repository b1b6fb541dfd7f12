package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Server exposes the control API on a unix socket owned by the user.
type Server struct {
	socket  string
	handler *Handler
	server  *http.Server
}

func NewServer(socket string, control Control) *Server {
	handler := NewHandler(control)

	httpServer := &http.Server{
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		socket:  socket,
		handler: handler,
		server:  httpServer,
	}
}

// Serve listens until ctx is cancelled, then shuts down and removes the
// socket. Callers must hold the instance lock, so a leftover socket file is
// always stale.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socket), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(s.socket); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socket)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socket, err)
	}
	defer os.Remove(s.socket)

	if err := os.Chmod(s.socket, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to restrict socket permissions: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Control API listening on %s", s.socket)
		errCh <- s.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down control API...")
	return s.server.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return s.socket
}
