package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestPostJSON_DecodesAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := Endpoint{
		Provider: "test",
		URL:      srv.URL,
		Header:   http.Header{"Authorization": {"Bearer k"}},
	}
	var out struct{ OK bool }
	if err := e.PostJSON(context.Background(), map[string]string{"q": "x"}, &out); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if !out.OK {
		t.Fatal("response not decoded")
	}
}

func TestPostJSON_ServerErrorIsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadRequest} {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "busy", status)
		}))

		e := Endpoint{Provider: "test", URL: srv.URL}
		err := e.PostJSON(context.Background(), struct{}{}, &struct{}{})
		srv.Close()

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: expected *APIError, got %v", status, err)
		}
		if apiErr.StatusCode != status || apiErr.Body != "busy" {
			t.Errorf("status %d: unexpected error %+v", status, apiErr)
		}
		if n := calls.Load(); n != 1 {
			t.Errorf("status %d: calls = %d, want 1", status, n)
		}
	}
}

func TestPostJSON_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := Endpoint{Provider: "test", URL: srv.URL}
	if err := e.PostJSON(ctx, struct{}{}, &struct{}{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
