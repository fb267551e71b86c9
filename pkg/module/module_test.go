package module_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/folio/pkg/module"
)

func TestNewInvalidPrefixPanics(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{"empty", ""},
		{"no leading slash", "api"},
		{"nested path", "/api/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Error("expected panic for invalid prefix")
				}
			}()
			module.New(tt.prefix, http.NewServeMux())
		})
	}
}

func TestServePrefixStripping(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/threads", "/threads"},
		{"/api", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var received string
			mux := http.NewServeMux()
			mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
				received = r.URL.Path
			})

			module.New("/api", mux).Serve(httptest.NewRecorder(), httptest.NewRequest("GET", tt.path, nil))

			if received != tt.want {
				t.Errorf("inner path: got %s, want %s", received, tt.want)
			}
		})
	}
}

func TestModuleMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {})

	m := module.New("/api", mux)

	var called bool
	m.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	})

	m.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/api", nil))

	if !called {
		t.Error("module middleware should have been called")
	}
}

func TestRouterDispatch(t *testing.T) {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /threads", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("api"))
	})

	router := module.NewRouter()
	router.Mount(module.New("/api", apiMux))
	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{"module", "/api/threads", http.StatusOK, "api"},
		{"trailing slash", "/api/threads/", http.StatusOK, "api"},
		{"native", "/healthz", http.StatusOK, "ok"},
		{"unmatched", "/nowhere", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body: got %s, want %s", rec.Body.String(), tt.wantBody)
			}
		})
	}

	if got := strings.Join(router.Prefixes(), ","); got != "/api" {
		t.Errorf("Prefixes() = %s, want /api", got)
	}
}
