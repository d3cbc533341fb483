package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("GHRECON_TEST_KEY", "set")

	if got := getEnv("GHRECON_TEST_KEY", "fallback"); got != "set" {
		t.Errorf("getEnv() = %q, want %q", got, "set")
	}
	if got := getEnv("GHRECON_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnv() = %q, want fallback", got)
	}
}

func TestOptionalArg(t *testing.T) {
	args := []string{"query", "go"}

	if got := optionalArg(args, 1); got != "go" {
		t.Errorf("optionalArg(1) = %q, want %q", got, "go")
	}
	if got := optionalArg(args, 2); got != "" {
		t.Errorf("optionalArg(2) = %q, want empty", got)
	}
}
