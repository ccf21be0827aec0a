package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fastchat/relay/internal/chat"
	"github.com/fastchat/relay/internal/metrics"
	"github.com/fastchat/relay/internal/presence"
	"github.com/fastchat/relay/internal/ratelimit"
	"github.com/fastchat/relay/internal/registry"
	"github.com/fastchat/relay/internal/router"
	"github.com/fastchat/relay/internal/server"
)

type nopSender struct{}

func (nopSender) Send([]byte) error  { return nil }
func (nopSender) Ping() error        { return nil }
func (nopSender) Close(string) error { return nil }

// newTestAPI builds a full route tree with no presence store.
func newTestAPI(t *testing.T) (http.Handler, *registry.Registry, *metrics.Collector) {
	t.Helper()

	reg := registry.New(nil)
	coord := chat.NewCoordinator(chat.DefaultConfig(), reg, nil)
	broadcaster := presence.New(reg, nil)
	limiter := ratelimit.New(ratelimit.DefaultConfig(), nil)
	collector := metrics.NewCollector()
	rt := router.New(reg, coord, limiter, collector, nil)
	ws := server.NewHandler(server.DefaultConfig(), reg, coord, broadcaster, limiter, collector, rt, nil)

	return NewRouter(New(ws, nil, collector, nil)), reg, collector
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad response body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestAPI(t)

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Errorf("body = %v, want status ok", body)
	}
}

func TestWSStatus(t *testing.T) {
	h, reg, _ := newTestAPI(t)
	reg.Register(uuid.New(), "alice", nopSender{}, "")

	rec := doRequest(t, h, http.MethodGet, "/ws/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["active_connections"] != float64(1) {
		t.Errorf("active_connections = %v, want 1", body["active_connections"])
	}
	users := body["online_users"].([]any)
	if len(users) != 1 {
		t.Fatalf("online_users size = %d, want 1", len(users))
	}
	if users[0].(map[string]any)["display_name"] != "alice" {
		t.Errorf("online user = %v, want alice", users[0])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _, collector := newTestAPI(t)
	collector.RecordConnect()
	collector.RecordMessage("MSG", 3*time.Millisecond)

	rec := doRequest(t, h, http.MethodGet, "/api/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["total_connections"] != float64(1) {
		t.Errorf("total_connections = %v, want 1", body["total_connections"])
	}
	if body["total_messages"] != float64(1) {
		t.Errorf("total_messages = %v, want 1", body["total_messages"])
	}
}

func TestMetricsReset(t *testing.T) {
	h, _, collector := newTestAPI(t)
	collector.RecordConnect()

	rec := doRequest(t, h, http.MethodPost, "/api/metrics/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := collector.Snapshot().TotalConnections; got != 0 {
		t.Errorf("TotalConnections after reset = %d, want 0", got)
	}
}

func TestPresenceEndpoints_WithoutStore(t *testing.T) {
	h, _, _ := newTestAPI(t)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/presence/heartbeat", `{"display_name":"alice"}`},
		{http.MethodGet, "/api/presence/online", ""},
		{http.MethodDelete, "/api/presence/cleanup", ""},
		{http.MethodGet, "/health/db", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := doRequest(t, h, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", rec.Code)
			}
		})
	}
}
