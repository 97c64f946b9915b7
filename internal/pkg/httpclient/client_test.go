package httpclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPost_SendsJSONBody(t *testing.T) {
	var gotContentType string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer srv.Close()

	resp, err := New().WithTimeout(5 * time.Second).Post(srv.URL+"/send", map[string]string{"text": "hello"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.IsError() {
		t.Fatalf("unexpected error status %d", resp.StatusCode())
	}
	if !strings.Contains(gotContentType, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotBody["text"] != "hello" {
		t.Errorf("body = %v, want text=hello", gotBody)
	}
}

func TestRequest_CarriesClientQueryParams(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
	}))
	defer srv.Close()

	c := New().WithQueryParam("api_key", "k123")
	if _, err := c.Request().Get(srv.URL); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotKey != "k123" {
		t.Errorf("api_key = %q, want k123", gotKey)
	}
}

func TestRetryOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "try again", http.StatusBadGateway)
			return
		}
	}))
	defer srv.Close()

	resp, err := New().Post(srv.URL, map[string]string{"n": "1"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.IsError() {
		t.Fatalf("expected retry to recover, final status %d", resp.StatusCode())
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}
