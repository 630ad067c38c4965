// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"
)

// Server is an HTTP test server bound to 127.0.0.1 only, for sandboxes without IPv6.
type Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

// NewIPv4Server starts handler on a random local port and stops it when the test ends.
// The test is skipped when the environment forbids opening a listener.
func NewIPv4Server(t *testing.T, handler http.Handler) *Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	s := &Server{
		URL: "http://" + ln.Addr().String(),
		srv: &http.Server{Handler: handler},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	t.Cleanup(s.Close)
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}
