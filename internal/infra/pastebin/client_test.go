package pastebin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSubmitReturnsURL(t *testing.T) {
	var gotBody submitRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(submitResponse{
			Status:  0,
			FullURL: "https://bin.example/?abc#key",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "never", time.Second)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	url, err := client.Submit(context.Background(), "transcript body")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if url != "https://bin.example/?abc#key" {
		t.Fatalf("unexpected url %q", url)
	}
	if gotBody.Text != "transcript body" {
		t.Fatalf("unexpected submitted text %q", gotBody.Text)
	}
	if gotBody.Expiration != "never" {
		t.Fatalf("unexpected expiration %q", gotBody.Expiration)
	}
}

func TestSubmitRejectedByService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(submitResponse{Status: 1, Message: "too large"})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "never", time.Second)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	if _, err := client.Submit(context.Background(), "x"); err == nil {
		t.Fatal("expected submission error")
	}
}

func TestSubmitHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "never", time.Second)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	_, err = client.Submit(context.Background(), "x")
	if err == nil {
		t.Fatal("expected http error")
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected typed request error with status 502, got %v", err)
	}
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	if _, err := NewClient("", "never", time.Second); err == nil {
		t.Fatal("expected error for empty base url")
	}
	if _, err := NewClient("not a url", "never", time.Second); err == nil {
		t.Fatal("expected error for invalid base url")
	}
}
