package handler

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecom-admin-proxy/internal/config"
	"ecom-admin-proxy/internal/metrics"
	"ecom-admin-proxy/internal/model"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// proxyRoute maps one inbound route onto a backend path. Backend paths may
// contain ":id". When Actions is set, the "action" query parameter selects
// the backend path; Target is the fallback and may be empty when an action is
// mandatory.
type proxyRoute struct {
	Method  string
	Path    string
	Target  string
	Actions map[string]string
	Opts    model.ProxyOptions
}

// adminRoutes builds the full inbound route table.
func adminRoutes() []proxyRoute {
	routes := []proxyRoute{
		{Method: http.MethodPost, Path: "/api/auth/login", Target: "/login", Opts: model.ProxyOptions{ConvertToURLEncoded: true}},
	}

	routes = append(routes, resourceRoutes("/api/categories", "/ecom/categories", true)...)
	routes = append(routes, resourceRoutes("/api/products", "/ecom/products", true)...)
	routes = append(routes, resourceRoutes("/api/adminusers/users", "/security/users", true)...)
	routes = append(routes, resourceRoutes("/api/adminusers/usertypes", "/security/usertypes", false)...)

	routes = append(routes,
		proxyRoute{Method: http.MethodGet, Path: "/api/orders", Target: "/ecom/orders"},
		proxyRoute{Method: http.MethodGet, Path: "/api/orders/:id", Target: "/ecom/orders/:id"},
		proxyRoute{Method: http.MethodPost, Path: "/api/orders/:id", Actions: map[string]string{
			"status": "/ecom/orders/updatestatus/:id",
		}},

		proxyRoute{Method: http.MethodGet, Path: "/api/bookings", Target: "/ecom/bookings"},
		proxyRoute{Method: http.MethodGet, Path: "/api/bookings/:id", Target: "/ecom/bookings/:id"},
		proxyRoute{Method: http.MethodPost, Path: "/api/bookings/:id", Target: "/ecom/bookings/:id", Actions: map[string]string{
			"status":   "/ecom/bookings/updatestatus/:id",
			"quantity": "/ecom/bookings/updatequantity/:id",
		}},

		proxyRoute{Method: http.MethodGet, Path: "/api/customers", Target: "/ecom/customers/getcustomers"},
		proxyRoute{Method: http.MethodGet, Path: "/api/reports/categorywise", Target: "/ecom/reports/orderscategorywise"},
	)

	return routes
}

// resourceRoutes returns the list/read/update/delete routes shared by the
// admin resources. Deletes go out as POST.
func resourceRoutes(inbound, backend string, statusAction bool) []proxyRoute {
	update := proxyRoute{Method: http.MethodPost, Path: inbound + "/:id", Target: backend + "/update/:id"}
	if statusAction {
		update.Actions = map[string]string{"status": backend + "/updatestatus/:id"}
	}

	return []proxyRoute{
		{Method: http.MethodGet, Path: inbound, Target: backend},
		{Method: http.MethodPost, Path: inbound, Target: backend},
		{Method: http.MethodGet, Path: inbound + "/:id", Target: backend + "/:id"},
		update,
		{Method: http.MethodDelete, Path: inbound + "/:id", Target: backend + "/delete/:id", Opts: model.ProxyOptions{Method: http.MethodPost}},
	}
}

// backendPath resolves the backend path for one request.
func (r proxyRoute) backendPath(c echo.Context) (string, error) {
	target := r.Target
	if r.Actions != nil {
		if p, ok := r.Actions[c.QueryParam("action")]; ok {
			target = p
		}
	}
	if target == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "unsupported action")
	}

	if !strings.Contains(target, ":id") {
		return target, nil
	}
	id := c.Param("id")
	if !idPattern.MatchString(id) {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return strings.ReplaceAll(target, ":id", id), nil
}

func (r proxyRoute) handler(proxy *ProxyHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		path, err := r.backendPath(c)
		if err != nil {
			return err
		}
		return proxy.Forward(c, path, r.Opts)
	}
}

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	for _, r := range adminRoutes() {
		e.Add(r.Method, r.Path, r.handler(proxy))
	}
}
