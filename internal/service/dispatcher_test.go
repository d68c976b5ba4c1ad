package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"

	"ecom-admin-proxy/internal/client"
	"ecom-admin-proxy/internal/config"
	"ecom-admin-proxy/internal/metrics"
	"ecom-admin-proxy/internal/model"
)

func testConfig(origin string) *config.Config {
	return &config.Config{
		Backend: config.BackendConfig{
			DefaultURL:      origin,
			PathPrefix:      "/api/admin",
			AuthHeader:      "x-auth-token",
			Mode:            config.ModeClient,
			TimeoutSeconds:  5,
			IdleConnections: 10,
		},
	}
}

func newTestDispatcher(t *testing.T, cfg *config.Config, m *metrics.Metrics) *Dispatcher {
	t.Helper()
	backend := client.NewHTTPClient(cfg, discardLogger(), m)
	origins := newOriginResolver(nil, cfg.Backend.DefaultURL, func(string) string { return "" })
	return NewDispatcher(backend, origins, cfg, discardLogger(), m)
}

func TestDispatcher_TargetURL(t *testing.T) {
	d := newTestDispatcher(t, testConfig("https://shop.example.com"), nil)

	tests := []struct {
		name     string
		path     string
		rawQuery string
		want     string
	}{
		{"no query", "/ecom/categories", "", "https://shop.example.com/api/admin/ecom/categories"},
		{"pagination forwarded untouched", "/ecom/categories", "sb=name&ps=10&page=1&cnt=1", "https://shop.example.com/api/admin/ecom/categories?sb=name&ps=10&page=1&cnt=1"},
		{"raw escapes kept", "/ecom/products", "q=red%20shoes&tag=a+b", "https://shop.example.com/api/admin/ecom/products?q=red%20shoes&tag=a+b"},
		{"login", "/login", "", "https://shop.example.com/api/admin/login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.TargetURL(tt.path, tt.rawQuery); got != tt.want {
				t.Errorf("TargetURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDispatcher_Dispatch_ForwardsRequest(t *testing.T) {
	var (
		gotMethod, gotPath, gotQuery string
		gotToken, gotType, gotBody   string
		gotAuthorization             string
	)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotToken = r.Header.Get("x-auth-token")
		gotType = r.Header.Get("Content-Type")
		gotAuthorization = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()

	d := newTestDispatcher(t, testConfig(backend.URL), nil)

	pr := &model.ProxyRequest{
		Method:    http.MethodPost,
		Path:      "/ecom/categories/updatestatus/5",
		RawQuery:  "action=status",
		AuthToken: "tok-123",
	}
	body := &model.EncodedBody{Kind: model.BodyJSON, ContentType: "application/json", Payload: []byte(`{"status":0}`)}

	resp, err := d.Dispatch(context.Background(), pr, body)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != `{"ok":true}` {
		t.Errorf("resp = %d %q", resp.StatusCode, resp.Body)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotPath != "/api/admin/ecom/categories/updatestatus/5" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "action=status" {
		t.Errorf("query = %q, want %q", gotQuery, "action=status")
	}
	if gotToken != "tok-123" {
		t.Errorf("x-auth-token = %q, want %q", gotToken, "tok-123")
	}
	if gotAuthorization != "" {
		t.Errorf("Authorization = %q, want token only in x-auth-token", gotAuthorization)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotType)
	}
	if gotBody != `{"status":0}` {
		t.Errorf("body = %q", gotBody)
	}
}

func TestDispatcher_Dispatch_NoTokenNoBody(t *testing.T) {
	var sawToken bool
	var gotType string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawToken = r.Header["X-Auth-Token"]
		gotType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer backend.Close()

	d := newTestDispatcher(t, testConfig(backend.URL), nil)
	pr := &model.ProxyRequest{Method: http.MethodGet, Path: "/ecom/orders"}

	if _, err := d.Dispatch(context.Background(), pr, &model.EncodedBody{Kind: model.BodyNone}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if sawToken {
		t.Error("x-auth-token header sent without a token")
	}
	if gotType != "" {
		t.Errorf("Content-Type = %q, want none", gotType)
	}
}

func TestDispatcher_Dispatch_TransportError(t *testing.T) {
	d := newTestDispatcher(t, testConfig("http://127.0.0.1:1"), nil)
	pr := &model.ProxyRequest{Method: http.MethodGet, Path: "/ecom/products"}

	_, err := d.Dispatch(context.Background(), pr, nil)
	var trErr *TransportError
	if !errors.As(err, &trErr) {
		t.Fatalf("Dispatch() error = %v, want *TransportError", err)
	}
	if !strings.Contains(err.Error(), "127.0.0.1:1") {
		t.Errorf("error = %q, want underlying failure message", err)
	}
}

func TestDispatcher_Dispatch_ServerMode(t *testing.T) {
	cfg := testConfig("https://shop.example.com")
	origins := newOriginResolver(nil, cfg.Backend.DefaultURL, func(string) string { return "" })
	d := NewDispatcher(client.NopClient{}, origins, cfg, discardLogger(), nil)

	_, err := d.Dispatch(context.Background(), &model.ProxyRequest{Method: http.MethodGet, Path: "/ecom/products"}, nil)
	if !errors.Is(err, client.ErrClientUnavailable) {
		t.Fatalf("Dispatch() error = %v, want ErrClientUnavailable", err)
	}
}

func TestDispatcher_Breaker(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream down"}`))
	}))
	defer backend.Close()

	cfg := testConfig(backend.URL)
	cfg.Breaker = config.BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		IntervalSeconds:  60,
		TimeoutSeconds:   60,
		FailureThreshold: 2,
	}
	m := metrics.New()
	d := newTestDispatcher(t, cfg, m)
	pr := &model.ProxyRequest{Method: http.MethodGet, Path: "/ecom/products"}

	// 5xx responses are still returned to the caller while the breaker counts them.
	for i := 0; i < 2; i++ {
		resp, err := d.Dispatch(context.Background(), pr, nil)
		if err != nil {
			t.Fatalf("call %d: Dispatch() error = %v", i, err)
		}
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("call %d: status = %d, want 502", i, resp.StatusCode)
		}
	}

	_, err := d.Dispatch(context.Background(), pr, nil)
	var trErr *TransportError
	if !errors.As(err, &trErr) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("Dispatch() error = %v, want TransportError wrapping ErrOpenState", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("backend calls = %d, want 2 (open breaker must not dispatch)", got)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == "ecom_admin_proxy_backend_breaker_state" {
			if v := f.GetMetric()[0].GetGauge().GetValue(); v != float64(gobreaker.StateOpen) {
				t.Errorf("breaker state gauge = %v, want %v", v, float64(gobreaker.StateOpen))
			}
			return
		}
	}
	t.Error("expected ecom_admin_proxy_backend_breaker_state metric")
}
