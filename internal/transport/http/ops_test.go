package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(_ context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	srv := NewOpsServer(zap.NewNop(), &fakePinger{}, &fakePinger{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestReadyzHealthy(t *testing.T) {
	srv := NewOpsServer(zap.NewNop(), &fakePinger{}, &fakePinger{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("get readyz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		OK     bool              `json:"ok"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.OK || body.Checks["postgres"] != "ok" || body.Checks["redis"] != "ok" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestReadyzDegraded(t *testing.T) {
	srv := NewOpsServer(zap.NewNop(), &fakePinger{err: errors.New("connection refused")}, &fakePinger{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("get readyz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestReadyzUnconfiguredStoresDegrade(t *testing.T) {
	srv := NewOpsServer(zap.NewNop(), nil, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("get readyz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: got %d want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}
