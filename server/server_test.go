package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage/memory"
)

var fixedNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *memory.Store) {
	t.Helper()
	backend := memory.New()
	n := 0
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDFunc(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	}, opts...)
	srv := httptest.NewServer(New(backend, opts...).Router())
	t.Cleanup(srv.Close)
	return srv, backend
}

func call(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		resp, body := call(t, http.MethodGet, srv.URL+path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
		var h healthResponse
		if err := json.Unmarshal(body, &h); err != nil {
			t.Fatal(err)
		}
		if h.Status != "ok" || h.Timestamp != "2026-06-15T12:00:00Z" {
			t.Errorf("%s body = %+v", path, h)
		}
	}
}

type downBackend struct{ *memory.Store }

func (downBackend) HealthCheck(context.Context) error {
	return model.Unavailable(fmt.Errorf("database gone"))
}

func TestHealthUnavailable(t *testing.T) {
	srv := httptest.NewServer(New(downBackend{memory.New()}).Router())
	defer srv.Close()
	resp, _ := call(t, http.MethodGet, srv.URL+"/api/v1/health", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestCRUD(t *testing.T) {
	srv, backend := newTestServer(t)
	api := srv.URL + "/api/v1"

	resp, body := call(t, http.MethodPost, api+"/clients", model.Client{Name: "Acme", Email: "ops@acme.test"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", resp.StatusCode, body)
	}
	var client model.Client
	json.Unmarshal(body, &client)
	if client.ID != "id-1" || !client.CreatedAt.Equal(fixedNow) {
		t.Errorf("created client = %+v", client)
	}

	resp, body = call(t, http.MethodPost, api+"/projects", model.Project{
		ID: "p1", ClientID: client.ID, Title: "Site", Status: model.ProjectPending,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project status = %d body = %s", resp.StatusCode, body)
	}

	client.Phone = "+1 555 0100"
	client.CreatedAt = time.Time{}
	resp, body = call(t, http.MethodPut, api+"/clients/"+client.ID, client)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d body = %s", resp.StatusCode, body)
	}
	var updated model.Client
	json.Unmarshal(body, &updated)
	if updated.Phone != "+1 555 0100" || !updated.CreatedAt.Equal(fixedNow) {
		t.Errorf("updated client = %+v", updated)
	}

	resp, body = call(t, http.MethodGet, api+"/clients", nil)
	var clients []model.Client
	json.Unmarshal(body, &clients)
	if resp.StatusCode != http.StatusOK || len(clients) != 1 {
		t.Errorf("list = %d %s", resp.StatusCode, body)
	}

	if snap := backend.Snapshot(); len(snap.Projects) != 1 {
		t.Fatalf("backend projects = %+v", snap.Projects)
	}
}

func TestCreateRejectsInvalidAndDuplicates(t *testing.T) {
	srv, _ := newTestServer(t)
	api := srv.URL + "/api/v1"

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"missing email", "/clients", model.Client{Name: "Acme"}, http.StatusBadRequest},
		{"unknown client", "/projects", model.Project{ClientID: "ghost", Title: "x", Status: model.ProjectPending}, http.StatusBadRequest},
		{"bad json", "/clients", "not an object", http.StatusBadRequest},
		{"first", "/clients", model.Client{ID: "c1", Name: "A", Email: "a@x.test"}, http.StatusCreated},
		{"duplicate", "/clients", model.Client{ID: "c1", Name: "A", Email: "a@x.test"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := call(t, http.MethodPost, api+tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tt.status, body)
			}
		})
	}
}

func TestUpdateAndDeleteUnknown(t *testing.T) {
	srv, _ := newTestServer(t)
	api := srv.URL + "/api/v1"

	resp, _ := call(t, http.MethodPut, api+"/clients/nope", model.Client{Name: "A", Email: "a@x.test"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("update status = %d, want 404", resp.StatusCode)
	}
	resp, _ = call(t, http.MethodDelete, api+"/payments/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteClientCascades(t *testing.T) {
	srv, backend := newTestServer(t)
	api := srv.URL + "/api/v1"

	call(t, http.MethodPost, api+"/clients", model.Client{ID: "c1", Name: "A", Email: "a@x.test"})
	call(t, http.MethodPost, api+"/projects", model.Project{ID: "p1", ClientID: "c1", Title: "x", Status: model.ProjectPending})
	resp, body := call(t, http.MethodPost, api+"/payments", model.Payment{
		ID: "pay1", ProjectID: "p1", Amount: 10, Status: model.PaymentPending, DueDate: fixedNow,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("payment status = %d body = %s", resp.StatusCode, body)
	}

	resp, _ = call(t, http.MethodDelete, api+"/clients/c1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if snap := backend.Snapshot(); snap.Len() != 0 {
		t.Errorf("backend after cascade = %+v", snap)
	}
}

func TestSnapshotReturnsArrays(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := call(t, http.MethodGet, srv.URL+"/api/v1/snapshot", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	want := `{"clients":[],"projects":[],"payments":[]}`
	if strings.TrimSpace(string(body)) != want {
		t.Errorf("body = %s, want %s", body, want)
	}
}

func TestReset(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := call(t, http.MethodPost, srv.URL+"/api/v1/reset", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("reset without permission = %d, want 403", resp.StatusCode)
	}

	srv, backend := newTestServer(t, WithAllowReset(true))
	call(t, http.MethodPost, srv.URL+"/api/v1/clients", model.Client{Name: "A", Email: "a@x.test"})
	resp, _ = call(t, http.MethodPost, srv.URL+"/api/v1/reset", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("reset = %d, want 204", resp.StatusCode)
	}
	if backend.Snapshot().Len() != 0 {
		t.Error("backend not empty after reset")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	call(t, http.MethodGet, srv.URL+"/api/v1/clients", nil)

	resp, body := call(t, http.MethodGet, srv.URL+"/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `ironledger_http_requests_total{method="GET",route="/api/v1/clients",status="200"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}
}

func TestReplaceSnapshot(t *testing.T) {
	created := fixedNow.Add(-time.Hour)
	snap := model.Snapshot{
		Clients:  []model.Client{{ID: "c1", Name: "Acme", Email: "ops@acme.test", CreatedAt: created}},
		Projects: []model.Project{{ID: "p1", ClientID: "c1", Title: "Site", Status: model.ProjectPending, CreatedAt: created}},
	}

	srv, _ := newTestServer(t)
	resp, _ := call(t, http.MethodPut, srv.URL+"/api/v1/snapshot", snap)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("replace without permission = %d, want 403", resp.StatusCode)
	}

	srv, backend := newTestServer(t, WithAllowReset(true))
	call(t, http.MethodPost, srv.URL+"/api/v1/clients", model.Client{Name: "Old", Email: "old@x.test"})
	resp, body := call(t, http.MethodPut, srv.URL+"/api/v1/snapshot", snap)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("replace = %d %s, want 204", resp.StatusCode, body)
	}
	got := backend.Snapshot()
	if len(got.Clients) != 1 || got.Clients[0].ID != "c1" || len(got.Projects) != 1 {
		t.Errorf("backend after replace = %+v", got)
	}

	dangling := model.Snapshot{
		Payments: []model.Payment{{ID: "pay1", ProjectID: "gone", Amount: 10, Status: model.PaymentPending, CreatedAt: created}},
	}
	resp, _ = call(t, http.MethodPut, srv.URL+"/api/v1/snapshot", dangling)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("dangling replace = %d, want 422", resp.StatusCode)
	}
	if backend.Snapshot().Len() != 2 {
		t.Errorf("backend changed by rejected replace: %+v", backend.Snapshot())
	}
}
