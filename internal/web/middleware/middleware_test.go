package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/tenderdesk/internal/config"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k-one", "k-two"}}

	tests := []struct {
		name   string
		cfg    *config.SecurityConfig
		header map[string]string
		want   int
	}{
		{"disabled", &config.SecurityConfig{}, nil, http.StatusNoContent},
		{"missing key", cfg, nil, http.StatusUnauthorized},
		{"wrong key", cfg, map[string]string{"X-API-Key": "nope"}, http.StatusForbidden},
		{"first key", cfg, map[string]string{"X-API-Key": "k-one"}, http.StatusNoContent},
		{"second key", cfg, map[string]string{"X-API-Key": "k-two"}, http.StatusNoContent},
		{"bearer token", cfg, map[string]string{"Authorization": "Bearer k-two"}, http.StatusNoContent},
		{"basic auth is not a key", cfg, map[string]string{"Authorization": "Basic k-two"}, http.StatusUnauthorized},
		{"no keys configured", &config.SecurityConfig{RequireAPIKey: true}, map[string]string{"X-API-Key": "k-one"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := APIKeyAuth(tt.cfg)(http.HandlerFunc(okHandler))
			req := httptest.NewRequest(http.MethodGet, "/api/tenders", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestTrustedRealIP(t *testing.T) {
	mw := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.5", "not-a-cidr"})

	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		xff        string
		want       string
	}{
		{"untrusted peer keeps address", "203.0.113.9:5000", "1.2.3.4", "", "203.0.113.9:5000"},
		{"trusted peer with X-Real-IP", "10.1.2.3:5000", "1.2.3.4", "", "1.2.3.4"},
		{"trusted bare IP", "192.168.1.5:80", "1.2.3.4", "", "1.2.3.4"},
		{"forwarded chain skips trusted hops", "10.1.2.3:5000", "", "6.6.6.6, 1.2.3.4, 10.9.9.9", "1.2.3.4"},
		{"forwarded single hop", "10.1.2.3:5000", "", "1.2.3.4", "1.2.3.4"},
		{"invalid X-Real-IP ignored", "10.1.2.3:5000", "garbage", "", "10.1.2.3:5000"},
		{"invalid forwarded hop ignored", "10.1.2.3:5000", "", "1.2.3.4, junk", "10.1.2.3:5000"},
		{"trusted peer without headers", "10.1.2.3:5000", "", "", "10.1.2.3:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogger_CapturesStatusAndBytes(t *testing.T) {
	var captured *responseWriter
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = w.(*responseWriter)
		w.WriteHeader(http.StatusConflict)
		w.WriteHeader(http.StatusOK) // ignored
		w.Write([]byte("hello"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tenders/T-1/boq", nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("recorded status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if captured.status != http.StatusConflict || captured.bytes != 5 {
		t.Errorf("captured status=%d bytes=%d, want 409 and 5", captured.status, captured.bytes)
	}
}
