package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"ecom-admin-proxy/internal/client"
	"ecom-admin-proxy/internal/config"
	"ecom-admin-proxy/internal/metrics"
	"ecom-admin-proxy/internal/model"
)

// errBackendStatus marks a 5xx response so the breaker counts it as a failure.
// It never leaves Dispatch.
var errBackendStatus = errors.New("backend returned server error")

// Dispatcher sends one encoded request to the backend admin API.
type Dispatcher struct {
	backend    client.Backend
	origins    *OriginResolver
	pathPrefix string
	authHeader string
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher. The metrics parameter is optional.
func NewDispatcher(b client.Backend, origins *OriginResolver, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	d := &Dispatcher{
		backend:    b,
		origins:    origins,
		pathPrefix: cfg.Backend.PathPrefix,
		authHeader: cfg.Backend.AuthHeader,
		logger:     logger.With("component", "dispatcher"),
	}
	if d.authHeader == "" {
		d.authHeader = "x-auth-token"
	}
	if cfg.Breaker.Enabled {
		d.breaker = newBreaker(cfg.Breaker, d.logger, m)
	}
	return d
}

func newBreaker(cfg config.BreakerConfig, logger *slog.Logger, m *metrics.Metrics) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about backend health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			if m != nil {
				m.BreakerState.Set(float64(to))
			}
		},
	})
}

// TargetURL returns origin + admin prefix + path, plus the raw query when present.
func (d *Dispatcher) TargetURL(path, rawQuery string) string {
	u := d.origins.Origin() + d.pathPrefix + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

// Dispatch performs exactly one backend call. Any failure to complete the
// exchange is returned as *TransportError.
func (d *Dispatcher) Dispatch(ctx context.Context, pr *model.ProxyRequest, body *model.EncodedBody) (*model.BackendResponse, error) {
	target := d.TargetURL(pr.Path, pr.RawQuery)

	header := make(http.Header)
	var payload []byte
	if body != nil {
		payload = body.Payload
		if body.ContentType != "" {
			header.Set("Content-Type", body.ContentType)
		}
	}
	if pr.AuthToken != "" {
		header.Set(d.authHeader, pr.AuthToken)
	}

	d.logger.Debug("dispatching request",
		"method", pr.Method,
		"path", pr.Path,
		"body", bodyKind(body),
		"authenticated", pr.AuthToken != "",
	)

	call := func() (*model.BackendResponse, error) {
		return client.DoRequest(ctx, d.backend, pr.Method, target, header, payload)
	}

	var (
		resp *model.BackendResponse
		err  error
	)
	if d.breaker == nil {
		resp, err = call()
	} else {
		resp, err = d.execute(call)
	}
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}

func (d *Dispatcher) execute(call func() (*model.BackendResponse, error)) (*model.BackendResponse, error) {
	out, err := d.breaker.Execute(func() (interface{}, error) {
		resp, err := call()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errBackendStatus
		}
		return resp, nil
	})
	if errors.Is(err, errBackendStatus) {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return out.(*model.BackendResponse), nil
}

func bodyKind(b *model.EncodedBody) string {
	if b == nil {
		return model.BodyNone.String()
	}
	return b.Kind.String()
}
