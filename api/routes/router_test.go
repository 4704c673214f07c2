package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/procurehub/webshop-backend/internal/cart"
	"github.com/procurehub/webshop-backend/internal/checkout"
	"github.com/procurehub/webshop-backend/pkg/config"
	"github.com/procurehub/webshop-backend/pkg/docstore"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Env: "dev", Port: "8080"},
		Punchout: config.PunchoutConfig{
			AllowedOrigin: "https://catalog.example",
		},
		Upload: config.UploadConfig{MaxUploadMB: 5},
	}

	cartManager, err := cart.NewManager(docstore.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	checkoutService, err := checkout.NewService(cartManager)
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}

	return NewRouter(
		cfg, nil, nil, nil, prometheus.NewRegistry(),
		cartManager, checkoutService, checkout.NewMemoryFileStore(),
		nil, nil, nil,
	)
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if env := resp.Header().Get("X-Webshop-Env"); env != "dev" {
		t.Fatalf("expected env header, got %q", env)
	}
}

func TestRouterHealthReadySkipsNilPingers(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"skipped"`) {
		t.Fatalf("expected skipped checks in body: %s", resp.Body.String())
	}
}

func TestRouterRequiresUserHeader(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without user header, got %d", resp.Code)
	}
}

func TestRouterCartRoundTrip(t *testing.T) {
	router := newTestRouter(t)

	body := `{"items":[{"ZmmWebsArtikelId":"P500","Quantity":"2","Price":"3,10","Currency":"EUR"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req.Header.Set("X-Webshop-User", "alice")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("merge: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Webshop-User", "alice")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("get: expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"P500"`) {
		t.Fatalf("expected merged entry in response: %s", resp.Body.String())
	}
}

func TestRouterMetricsExposed(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
