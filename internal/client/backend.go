// Package client provides the outbound HTTP client for the e-commerce backend API.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"ecom-admin-proxy/internal/config"
	"ecom-admin-proxy/internal/metrics"
	"ecom-admin-proxy/internal/model"
)

// ErrClientUnavailable is returned by the server-mode client for every call.
var ErrClientUnavailable = errors.New("backend client is not available in server mode")

// Backend performs one HTTP exchange with the backend and returns the fully read response.
type Backend interface {
	Do(req *http.Request) (*model.BackendResponse, error)
}

// New selects the Backend implementation for the configured mode.
// The metrics parameter is optional; pass nil to disable backend metrics recording.
func New(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (Backend, error) {
	switch cfg.Backend.Mode {
	case config.ModeClient, "":
		return NewHTTPClient(cfg, logger, m), nil
	case config.ModeServer:
		logger.Info("backend client running in server mode; backend calls are disabled")
		return NopClient{}, nil
	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Backend.Mode)
	}
}

// NopClient never touches the network.
type NopClient struct{}

// Do implements Backend.
func (NopClient) Do(req *http.Request) (*model.BackendResponse, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	return nil, ErrClientUnavailable
}

// DoRequest builds a request bound to ctx and sends it through b.
func DoRequest(ctx context.Context, b Backend, method, url string, header http.Header, body []byte) (*model.BackendResponse, error) {
	req, err := newRequest(ctx, method, url, header, body)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	return b.Do(req)
}
