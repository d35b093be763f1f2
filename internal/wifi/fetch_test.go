package wifi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newFetchManager(insecure bool, timeout time.Duration) *Manager {
	return NewManager(NewFakeRadio(), staticCreds{}, Options{
		InsecureSkipVerify: insecure,
		FetchTimeout:       timeout,
	})
}

func TestHTTPGetOK(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method: got %s, want GET", r.Method)
		}
		w.Write([]byte(`{"bitcoin":{"usd":42000}}`))
	}))
	defer ts.Close()

	m := newFetchManager(true, 0)
	body, err := m.HTTPGet(context.Background(), ts.URL+"/price")
	if err != nil {
		t.Fatalf("HTTPGet: %v", err)
	}
	if string(body) != `{"bitcoin":{"usd":42000}}` {
		t.Errorf("body: got %q", body)
	}
}

func TestHTTPGetStatusError(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	m := newFetchManager(true, 0)
	_, err := m.HTTPGet(context.Background(), ts.URL)
	if err == nil {
		t.Fatal("expected error")
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if se.Code != http.StatusTooManyRequests {
		t.Errorf("code: got %d, want 429", se.Code)
	}
	if err.Error() != "HTTP 429" {
		t.Errorf("message: got %q, want %q", err.Error(), "HTTP 429")
	}
}

func TestHTTPGetVerifiesCertificatesWhenConfigured(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	m := newFetchManager(false, 0)
	if _, err := m.HTTPGet(context.Background(), ts.URL); err == nil {
		t.Fatal("expected certificate error for self-signed server")
	}
}

func TestHTTPGetTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	m := newFetchManager(true, 50*time.Millisecond)
	start := time.Now()
	if _, err := m.HTTPGet(context.Background(), ts.URL); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout not honoured: %v", elapsed)
	}
}

func TestHTTPGetBadURL(t *testing.T) {
	m := newFetchManager(true, 0)
	if _, err := m.HTTPGet(context.Background(), "://nope"); err == nil {
		t.Fatal("expected error for malformed URL")
	}
}
