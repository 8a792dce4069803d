package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestGuardAllowed(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("disabled guard permits everything", func(t *testing.T) {
		guard, err := NewGuard(false, "https://example.com", "test-agent", true, logger)
		if err != nil {
			t.Fatalf("NewGuard() error = %v", err)
		}
		if !guard.Allowed(ctx, "https://example.com/whatever") {
			t.Fatal("allow-all policy should permit URLs")
		}
	})

	t.Run("disallow rules are enforced", func(t *testing.T) {
		robotsHits := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				robotsHits++
				fmt.Fprintln(w, "User-agent: *\nDisallow: /blocked")
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		guard, err := NewGuard(true, srv.URL, "test-agent", true, logger)
		if err != nil {
			t.Fatalf("NewGuard() error = %v", err)
		}
		if !guard.Allowed(ctx, srv.URL+"/allowed") {
			t.Fatal("expected allowed path to pass robots")
		}
		if guard.Allowed(ctx, srv.URL+"/blocked") {
			t.Fatal("expected blocked path to be denied")
		}
		if guard.Allowed(ctx, srv.URL+"/blocked/deeper") {
			t.Fatal("expected blocked prefix to be denied")
		}
		if robotsHits != 1 {
			t.Fatalf("expected robots.txt fetched once per run, got %d", robotsHits)
		}
	})

	t.Run("unreachable robots fails open", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		srv.Close() // force connection errors

		guard, err := NewGuard(true, srv.URL, "test-agent", true, logger)
		if err != nil {
			t.Fatalf("NewGuard() error = %v", err)
		}
		if !guard.Allowed(ctx, srv.URL+"/anything") {
			t.Fatal("expected fail-open guard to permit URL")
		}
	})

	t.Run("unreachable robots fails closed when configured", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		srv.Close()

		guard, err := NewGuard(true, srv.URL, "test-agent", false, logger)
		if err != nil {
			t.Fatalf("NewGuard() error = %v", err)
		}
		if guard.Allowed(ctx, srv.URL+"/anything") {
			t.Fatal("expected fail-closed guard to deny URL")
		}
	})

	t.Run("missing robots file allows all", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		guard, err := NewGuard(true, srv.URL, "test-agent", true, logger)
		if err != nil {
			t.Fatalf("NewGuard() error = %v", err)
		}
		if !guard.Allowed(ctx, srv.URL+"/anything") {
			t.Fatal("expected 404 robots to allow all paths")
		}
	})
}
