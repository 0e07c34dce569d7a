package gate

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func passThrough() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestReduceOrigin(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare origin", raw: "https://example.com", want: "https://example.com"},
		{name: "origin with port", raw: "http://localhost:3000", want: "http://localhost:3000"},
		{name: "referer with path", raw: "https://example.com/some/page?x=1", want: "https://example.com"},
		{name: "missing scheme", raw: "example.com", wantErr: true},
		{name: "garbage", raw: "://///", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReduceOrigin(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ReduceOrigin(%q) = %q, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReduceOrigin(%q) failed: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ReduceOrigin(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestOriginGateMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		allowed      []string
		allowMissing bool
		origin       string
		referer      string
		wantStatus   int
		wantCode     string
	}{
		{
			name:       "empty allow-list passes everything",
			allowed:    nil,
			origin:     "https://anywhere.example",
			wantStatus: http.StatusOK,
		},
		{
			name:       "allowed origin passes",
			allowed:    []string{"https://example.com"},
			origin:     "https://example.com",
			wantStatus: http.StatusOK,
		},
		{
			name:       "disallowed origin rejected",
			allowed:    []string{"https://example.com"},
			origin:     "https://evil.example",
			wantStatus: http.StatusForbidden,
			wantCode:   CodeOriginDenied,
		},
		{
			name:       "referer fallback when origin absent",
			allowed:    []string{"https://example.com"},
			referer:    "https://example.com/pricing/page",
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing origin rejected in strict mode",
			allowed:    []string{"https://example.com"},
			wantStatus: http.StatusForbidden,
			wantCode:   CodeOriginMissing,
		},
		{
			name:         "missing origin passes in permissive mode",
			allowed:      []string{"https://example.com"},
			allowMissing: true,
			wantStatus:   http.StatusOK,
		},
		{
			name:       "malformed origin rejected not crashed",
			allowed:    []string{"https://example.com"},
			origin:     "not a url",
			wantStatus: http.StatusForbidden,
			wantCode:   CodeOriginInvalid,
		},
		{
			name:       "allow-list entry with path still matches host",
			allowed:    []string{"https://example.com/widget"},
			origin:     "https://example.com",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewOriginGate(tt.allowed, tt.allowMissing)
			handler := gate.Middleware(passThrough())

			req := httptest.NewRequest("POST", "/chat", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode == "" {
				return
			}

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestNewOriginGateDropsUnparseableEntries(t *testing.T) {
	gate := NewOriginGate([]string{"%%%garbage", "https://example.com"}, false)

	req := httptest.NewRequest("POST", "/chat", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	gate.Middleware(passThrough()).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("valid entry should survive a bad neighbor, status = %d", w.Code)
	}
}
