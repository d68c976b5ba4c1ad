package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ecom-admin-proxy/internal/model"
)

func TestRegisterRoutes_BackendMapping(t *testing.T) {
	srv, fb := newFakeBackend(t, http.StatusOK, "application/json", `{"ok":true}`)
	e := newTestEcho(t, testConfig(srv.URL))

	tests := []struct {
		name        string
		method      string
		path        string
		wantMethod  string
		wantBackend string
	}{
		{"login", http.MethodPost, "/api/auth/login", http.MethodPost, "/api/admin/login"},

		{"categories list", http.MethodGet, "/api/categories", http.MethodGet, "/api/admin/ecom/categories"},
		{"categories create", http.MethodPost, "/api/categories", http.MethodPost, "/api/admin/ecom/categories"},
		{"categories get", http.MethodGet, "/api/categories/5", http.MethodGet, "/api/admin/ecom/categories/5"},
		{"categories update", http.MethodPost, "/api/categories/5", http.MethodPost, "/api/admin/ecom/categories/update/5"},
		{"categories status", http.MethodPost, "/api/categories/5?action=status", http.MethodPost, "/api/admin/ecom/categories/updatestatus/5"},
		{"categories unknown action updates", http.MethodPost, "/api/categories/5?action=bogus", http.MethodPost, "/api/admin/ecom/categories/update/5"},
		{"categories delete", http.MethodDelete, "/api/categories/5", http.MethodPost, "/api/admin/ecom/categories/delete/5"},

		{"products list", http.MethodGet, "/api/products", http.MethodGet, "/api/admin/ecom/products"},
		{"products get", http.MethodGet, "/api/products/p-1", http.MethodGet, "/api/admin/ecom/products/p-1"},
		{"products update", http.MethodPost, "/api/products/p-1", http.MethodPost, "/api/admin/ecom/products/update/p-1"},
		{"products status", http.MethodPost, "/api/products/p-1?action=status", http.MethodPost, "/api/admin/ecom/products/updatestatus/p-1"},
		{"products delete", http.MethodDelete, "/api/products/p-1", http.MethodPost, "/api/admin/ecom/products/delete/p-1"},

		{"orders list", http.MethodGet, "/api/orders", http.MethodGet, "/api/admin/ecom/orders"},
		{"orders get", http.MethodGet, "/api/orders/42", http.MethodGet, "/api/admin/ecom/orders/42"},
		{"orders status", http.MethodPost, "/api/orders/42?action=status", http.MethodPost, "/api/admin/ecom/orders/updatestatus/42"},

		{"bookings list", http.MethodGet, "/api/bookings", http.MethodGet, "/api/admin/ecom/bookings"},
		{"bookings get", http.MethodGet, "/api/bookings/8", http.MethodGet, "/api/admin/ecom/bookings/8"},
		{"bookings status", http.MethodPost, "/api/bookings/8?action=status", http.MethodPost, "/api/admin/ecom/bookings/updatestatus/8"},
		{"bookings quantity", http.MethodPost, "/api/bookings/8?action=quantity", http.MethodPost, "/api/admin/ecom/bookings/updatequantity/8"},
		{"bookings default", http.MethodPost, "/api/bookings/8", http.MethodPost, "/api/admin/ecom/bookings/8"},

		{"customers", http.MethodGet, "/api/customers", http.MethodGet, "/api/admin/ecom/customers/getcustomers"},
		{"reports", http.MethodGet, "/api/reports/categorywise", http.MethodGet, "/api/admin/ecom/reports/orderscategorywise"},

		{"users list", http.MethodGet, "/api/adminusers/users", http.MethodGet, "/api/admin/security/users"},
		{"users create", http.MethodPost, "/api/adminusers/users", http.MethodPost, "/api/admin/security/users"},
		{"users get", http.MethodGet, "/api/adminusers/users/u_1", http.MethodGet, "/api/admin/security/users/u_1"},
		{"users update", http.MethodPost, "/api/adminusers/users/u_1", http.MethodPost, "/api/admin/security/users/update/u_1"},
		{"users status", http.MethodPost, "/api/adminusers/users/u_1?action=status", http.MethodPost, "/api/admin/security/users/updatestatus/u_1"},
		{"users delete", http.MethodDelete, "/api/adminusers/users/u_1", http.MethodPost, "/api/admin/security/users/delete/u_1"},

		{"usertypes list", http.MethodGet, "/api/adminusers/usertypes", http.MethodGet, "/api/admin/security/usertypes"},
		{"usertypes get", http.MethodGet, "/api/adminusers/usertypes/3", http.MethodGet, "/api/admin/security/usertypes/3"},
		{"usertypes update", http.MethodPost, "/api/adminusers/usertypes/3", http.MethodPost, "/api/admin/security/usertypes/update/3"},
		{"usertypes status is an update", http.MethodPost, "/api/adminusers/usertypes/3?action=status", http.MethodPost, "/api/admin/security/usertypes/update/3"},
		{"usertypes delete", http.MethodDelete, "/api/adminusers/usertypes/3", http.MethodPost, "/api/admin/security/usertypes/delete/3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body *strings.Reader
			if tt.method == http.MethodPost {
				body = strings.NewReader("a=1")
			} else {
				body = strings.NewReader("")
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.method == http.MethodPost {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}

			rec := serve(e, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
			}

			seen, _ := fb.lastRequest()
			if seen.Method != tt.wantMethod {
				t.Errorf("backend method = %q, want %q", seen.Method, tt.wantMethod)
			}
			if seen.Path != tt.wantBackend {
				t.Errorf("backend path = %q, want %q", seen.Path, tt.wantBackend)
			}
		})
	}
}

func TestRegisterRoutes_RejectedBeforeDispatch(t *testing.T) {
	srv, fb := newFakeBackend(t, http.StatusOK, "application/json", `{}`)
	e := newTestEcho(t, testConfig(srv.URL))

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantMsg    string
	}{
		{"invalid id", http.MethodGet, "/api/categories/a.b", http.StatusBadRequest, "invalid id"},
		{"invalid id on delete", http.MethodDelete, "/api/products/x~y", http.StatusBadRequest, "invalid id"},
		{"order update needs action", http.MethodPost, "/api/orders/1", http.StatusBadRequest, "unsupported action"},
		{"order unknown action", http.MethodPost, "/api/orders/1?action=quantity", http.StatusBadRequest, "unsupported action"},
		{"unknown route", http.MethodGet, "/api/unknown", http.StatusNotFound, "Not Found"},
		{"method not allowed", http.MethodPut, "/api/categories", http.StatusMethodNotAllowed, "Method Not Allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, httptest.NewRequest(tt.method, tt.path, http.NoBody))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			env := decodeEnvelope(t, rec)
			if env.RespondStatus != model.RespondStatusError {
				t.Errorf("respondStatus = %q", env.RespondStatus)
			}
			if env.ErrorMessages.ErrorType != model.ClientError {
				t.Errorf("ErrorType = %q, want Client.Error", env.ErrorMessages.ErrorType)
			}
			if env.ErrorMessages.Errors != tt.wantMsg {
				t.Errorf("Errors = %q, want %q", env.ErrorMessages.Errors, tt.wantMsg)
			}
		})
	}

	if _, hits := fb.lastRequest(); hits != 0 {
		t.Errorf("backend hits = %d, want 0", hits)
	}
}

func TestRegisterRoutes_Metrics(t *testing.T) {
	srv, _ := newFakeBackend(t, http.StatusOK, "application/json", `{}`)

	t.Run("enabled", func(t *testing.T) {
		e := newTestEcho(t, testConfig(srv.URL))
		serve(e, httptest.NewRequest(http.MethodGet, "/api/customers", http.NoBody))

		rec := serve(e, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "ecom_admin_proxy_results_total") {
			t.Error("metrics output missing ecom_admin_proxy_results_total")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig(srv.URL)
		cfg.Metrics.Enabled = false
		e := newTestEcho(t, cfg)

		rec := serve(e, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}
