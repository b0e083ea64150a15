package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/username/pinigine/backend/src/config"
	"github.com/username/pinigine/backend/src/logger"
)

var testAuthKey = []byte("0123456789abcdef0123456789abcdef")

func setupCSRFTest(t *testing.T) {
	t.Helper()
	logger.InitLogger("error")
	prev := config.Cfg
	config.Cfg = &config.AppConfig{CSRFAuthKey: testAuthKey}
	t.Cleanup(func() { config.Cfg = prev })
}

func issueToken(t *testing.T) (string, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	GetCSRFToken(rec, httptest.NewRequest(http.MethodGet, "/api/auth/csrf", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GetCSRFToken status = %d", rec.Code)
	}
	token := rec.Header().Get("X-CSRF-Token")
	if token == "" {
		t.Fatal("no X-CSRF-Token header issued")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no CSRF cookie issued")
	}
	return token, cookies[0]
}

func protectedHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCSRFMiddlewareAcceptsValidToken(t *testing.T) {
	setupCSRFTest(t)
	token, cookie := issueToken(t)

	var called bool
	handler := CSRFMiddleware(testAuthKey)(protectedHandler(&called))

	req := httptest.NewRequest(http.MethodPost, "/api/transactions", nil)
	req.Header.Set("X-CSRF-Token", token)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Errorf("valid token rejected: called=%v status=%d", called, rec.Code)
	}
}

func TestCSRFMiddlewareRejectsBadRequests(t *testing.T) {
	setupCSRFTest(t)
	token, cookie := issueToken(t)

	tests := []struct {
		name    string
		prepare func(r *http.Request)
	}{
		{"missing header", func(r *http.Request) {
			r.AddCookie(cookie)
		}},
		{"missing cookie", func(r *http.Request) {
			r.Header.Set("X-CSRF-Token", token)
		}},
		{"header cookie mismatch", func(r *http.Request) {
			r.Header.Set("X-CSRF-Token", token)
			r.AddCookie(&http.Cookie{Name: cookie.Name, Value: "other-value"})
		}},
		{"forged unsigned token", func(r *http.Request) {
			forged := "forgedvalue.deadbeef"
			r.Header.Set("X-CSRF-Token", forged)
			r.AddCookie(&http.Cookie{Name: cookie.Name, Value: forged})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			handler := CSRFMiddleware(testAuthKey)(protectedHandler(&called))

			req := httptest.NewRequest(http.MethodPost, "/api/transactions", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if called || rec.Code != http.StatusForbidden {
				t.Errorf("invalid request passed: called=%v status=%d", called, rec.Code)
			}
		})
	}
}

func TestCSRFMiddlewarePassesSafeMethods(t *testing.T) {
	setupCSRFTest(t)

	var called bool
	handler := CSRFMiddleware(testAuthKey)(protectedHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Errorf("GET without token rejected: called=%v status=%d", called, rec.Code)
	}
}
