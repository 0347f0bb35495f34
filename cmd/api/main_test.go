package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/v1/plans":                    "/v1/plans",
		"/v1/plans/0190-abc":           "/v1/plans/{id}",
		"/v1/plans/0190-abc/events/ws": "/v1/plans/{id}/events/ws",
		"/v1/optimize":                 "/v1/optimize",
		"/v1/admin/plan-metrics":       "/v1/admin/plan-metrics",
		"/healthz":                     "/healthz",
		"/v1/plans/":                   "/v1/plans/{id}",
		"/wp-login.php":                "other",
		"/v1/optimize/extra":           "other",
		"/":                            "other",
	}
	for in, want := range cases {
		if got := routeLabel(in); got != want {
			t.Errorf("routeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLogMiddlewareKeepsStatus(t *testing.T) {
	h := logMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("got %d", rr.Code)
	}
}
