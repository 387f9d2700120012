package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerKey(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := BearerKey("s3cret")(ok)

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"missing", "/api/v1/policies", nil, http.StatusUnauthorized},
		{"bearer", "/api/v1/policies", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
		{"api key header", "/api/v1/policies", map[string]string{"X-API-Key": "s3cret"}, http.StatusOK},
		{"wrong key", "/api/v1/policies", map[string]string{"Authorization": "Bearer nope"}, http.StatusForbidden},
		{"not bearer", "/api/v1/policies", map[string]string{"Authorization": "Basic s3cret"}, http.StatusUnauthorized},
		{"health is public", "/health", nil, http.StatusOK},
		{"ws query token", "/ws?token=s3cret", nil, http.StatusOK},
		{"query token elsewhere", "/api/v1/policies?token=s3cret", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBearerKeyDisabled(t *testing.T) {
	called := false
	handler := BearerKey("")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orchestrate", http.NoBody))
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
}
