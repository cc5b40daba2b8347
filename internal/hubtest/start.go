package hubtest

import (
	"net/http/httptest"
	"strings"
	"testing"
)

// Start serves a new hub on a loopback port for the duration of the test.
func Start(tb testing.TB, opts ...Option) *Server {
	tb.Helper()
	s := NewServer(opts...)
	srv := httptest.NewServer(s)
	s.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	tb.Cleanup(func() {
		s.Drop()
		srv.Close()
	})
	return s
}
