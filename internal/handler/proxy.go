package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"ecom-admin-proxy/internal/config"
	"ecom-admin-proxy/internal/model"
	"ecom-admin-proxy/internal/service"
)

// ProxyHandler forwards admin API requests to the e-commerce backend.
type ProxyHandler struct {
	service    *service.ProxyService
	authHeader string
	bodyLimit  int64
	logger     *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, cfg *config.Config, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service:    svc,
		authHeader: cfg.Backend.AuthHeader,
		bodyLimit:  cfg.Server.BodyMaxBytes,
		logger:     logger.With("component", "proxy_handler"),
	}
}

// Forward proxies the current request to backendPath and writes the unified result.
func (h *ProxyHandler) Forward(c echo.Context, backendPath string, opts model.ProxyOptions) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Method:      req.Method,
		Path:        backendPath,
		RawQuery:    req.URL.RawQuery,
		ContentType: req.Header.Get(echo.HeaderContentType),
		Body:        h.limitBody(c.Response(), req.Body),
		AuthToken:   req.Header.Get(h.authHeader),
	}

	result := h.service.Proxy(req.Context(), pr, opts)
	if !result.OK {
		h.logger.Warn("proxied request failed",
			"path", req.URL.Path,
			"backend_path", backendPath,
			"status", result.Status,
			"error_type", result.ErrorTypeLabel(),
		)
	}
	return writeResult(c, result)
}

// limitBody caps the body at the configured size and reports every size
// limit, ours or echo's BodyLimit middleware, as *http.MaxBytesError.
func (h *ProxyHandler) limitBody(w http.ResponseWriter, body io.ReadCloser) io.Reader {
	if body == nil {
		return nil
	}
	var r io.Reader = body
	if h.bodyLimit > 0 {
		r = http.MaxBytesReader(w, body, h.bodyLimit)
	}
	return limitErrorReader{r: r, limit: h.bodyLimit}
}

type limitErrorReader struct {
	r     io.Reader
	limit int64
}

func (l limitErrorReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	var he *echo.HTTPError
	if err != nil && errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
		return n, &http.MaxBytesError{Limit: l.limit}
	}
	return n, err
}

// writeResult writes a success payload byte-for-byte or the failure envelope.
func writeResult(c echo.Context, result model.UnifiedResult) error {
	if result.OK {
		data := result.Data
		if len(data) == 0 {
			data = []byte("null")
		}
		return c.JSONBlob(result.Status, data)
	}
	status := result.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, result.Body())
}
