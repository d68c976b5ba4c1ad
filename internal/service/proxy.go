// Package service implements the core proxy pipeline: encode, dispatch, normalize.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ecom-admin-proxy/internal/metrics"
	"ecom-admin-proxy/internal/model"
)

const (
	tracerName     = "ecom-admin-proxy/service"
	msgInternalErr = "Internal server error"
)

// ProxyService is the single entry point for proxied calls.
type ProxyService struct {
	dispatcher *Dispatcher
	normalizer *Normalizer
	tracer     trace.Tracer
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewProxyService creates a ProxyService. The metrics parameter is optional.
func NewProxyService(d *Dispatcher, n *Normalizer, tp trace.TracerProvider, m *metrics.Metrics, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		dispatcher: d,
		normalizer: n,
		tracer:     tp.Tracer(tracerName),
		metrics:    m,
		logger:     logger.With("component", "proxy_service"),
	}
}

// Proxy runs encode → dispatch → normalize for one request. It always returns
// a result; encoding, transport and unexpected failures become Server.Error,
// an unreadable inbound body becomes Client.Error.
// Nothing is retried.
func (s *ProxyService) Proxy(ctx context.Context, pr *model.ProxyRequest, opts model.ProxyOptions) (result model.UnifiedResult) {
	req := *pr
	if opts.Method != "" {
		req.Method = opts.Method
	}

	ctx, span := s.tracer.Start(ctx, "proxy "+req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("backend.path", req.Path),
			attribute.Bool("proxy.convert_urlencoded", opts.ConvertToURLEncoded),
		),
	)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while proxying", "path", req.Path, "panic", r)
			result = model.Failure(http.StatusInternalServerError, model.ServerError, panicMessage(r))
		}
		s.finish(span, result)
	}()

	result, err := s.run(ctx, &req, opts)
	if err != nil {
		s.logger.Error("error proxying request",
			"method", req.Method,
			"path", req.Path,
			"err", err,
		)
		span.RecordError(err)
		return failureFor(err)
	}
	return result
}

func (s *ProxyService) run(ctx context.Context, req *model.ProxyRequest, opts model.ProxyOptions) (model.UnifiedResult, error) {
	body, err := EncodeBody(req.Method, req.ContentType, req.Body, opts.ConvertToURLEncoded)
	if err != nil {
		return model.UnifiedResult{}, fmt.Errorf("encode body: %w", err)
	}
	if opts.ConvertToURLEncoded && body.Kind == model.BodyURLEncoded {
		s.logger.Debug("converted form data to url-encoded", "path", req.Path)
	}

	resp, err := s.dispatcher.Dispatch(ctx, req, body)
	if err != nil {
		return model.UnifiedResult{}, fmt.Errorf("dispatch: %w", err)
	}

	return s.normalizer.Normalize(req.Path, resp), nil
}

func (s *ProxyService) finish(span trace.Span, result model.UnifiedResult) {
	span.SetAttributes(
		attribute.Int("http.response.status_code", result.Status),
		attribute.String("proxy.error_type", result.ErrorTypeLabel()),
	)
	if !result.OK && result.Err != nil {
		span.SetStatus(codes.Error, result.Err.Errors)
	}
	span.End()

	if s.metrics != nil {
		s.metrics.ResultsTotal.WithLabelValues(result.ErrorTypeLabel()).Inc()
	}
}

// failureFor maps a pipeline error to its result. An inbound body that could
// not be read is the caller's problem; everything else is Server.Error.
func failureFor(err error) model.UnifiedResult {
	var readErr *BodyReadError
	if errors.As(err, &readErr) {
		status := http.StatusBadRequest
		if readErr.TooLarge() {
			status = http.StatusRequestEntityTooLarge
		}
		return model.Failure(status, model.ClientError, readErr.Error())
	}
	return model.Failure(http.StatusInternalServerError, model.ServerError, errorMessage(err))
}

// errorMessage returns the message of the innermost typed failure so callers
// see the cause rather than the pipeline stage prefixes.
func errorMessage(err error) string {
	var encErr *EncodingError
	if errors.As(err, &encErr) {
		return encErr.Error()
	}
	var trErr *TransportError
	if errors.As(err, &trErr) {
		return trErr.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return msgInternalErr
}

func panicMessage(r any) string {
	switch v := r.(type) {
	case error:
		if v.Error() != "" {
			return v.Error()
		}
	case string:
		if v != "" {
			return v
		}
	}
	return msgInternalErr
}
