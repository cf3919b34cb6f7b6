package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/famorg/internal/authn"
	"github.com/hitoshi/famorg/internal/metrics"
	"github.com/hitoshi/famorg/internal/model"
)

// recordingCollector はHTTPステータスのみを記録するMetricsCollector。
type recordingCollector struct {
	metrics.Nop
	mu       sync.Mutex
	statuses []int
	observed int
}

func (c *recordingCollector) RecordHTTPStatus(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, code)
}

func (c *recordingCollector) RecordRequestLatency(time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observed++
}

// TestRecoveryMiddleware_Returns500JSON はpanicを500のJSONレスポンスに変換することを検証する。
func TestRecoveryMiddleware_Returns500JSON(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/families", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

// TestRecoveryMiddleware_LogsRequestContext はpanicのログにrequest_idとuser_idが含まれ、
// 外側のロギング・メトリクスが500を記録することを検証する。
func TestRecoveryMiddleware_LogsRequestContext(t *testing.T) {
	var panicLog bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&panicLog, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	var accessLog bytes.Buffer
	mc := &recordingCollector{}
	auth := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, creds authn.Credentials) (*authn.Identity, error) {
			return testIdentity("user-panic", authn.AuthMethodBearerSession), nil
		},
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(NewLoggingMiddleware(slog.New(slog.NewJSONHandler(&accessLog, nil))))
	r.Use(NewMetricsMiddleware(mc))
	r.Use(NewRecoveryMiddleware())
	r.With(NewAuthnMiddleware(auth)).Get("/api/families", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/families", nil)
	req.Header.Set("Authorization", "Bearer session-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var entry map[string]any
	if err := json.Unmarshal(panicLog.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode panic log: %v\nraw: %s", err, panicLog.String())
	}
	if entry["user_id"] != "user-panic" {
		t.Errorf("user_id = %v, want user-panic", entry["user_id"])
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Error("panic log should contain request_id")
	}

	if !bytes.Contains(accessLog.Bytes(), []byte(`"status":500`)) {
		t.Errorf("access log should record status 500: %s", accessLog.String())
	}
	if len(mc.statuses) != 1 || mc.statuses[0] != http.StatusInternalServerError {
		t.Errorf("statuses = %v, want [500]", mc.statuses)
	}
}

// TestSecurityHeadersMiddleware はセキュリティヘッダーが付与されることを検証する。
func TestSecurityHeadersMiddleware(t *testing.T) {
	for _, hsts := range []bool{false, true} {
		w := httptest.NewRecorder()
		NewSecurityHeadersMiddleware(hsts)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
			t.Errorf("X-Content-Type-Options = %q", got)
		}
		if got := w.Header().Get("Cache-Control"); got != "no-store" {
			t.Errorf("Cache-Control = %q", got)
		}
		if got := w.Header().Get("Strict-Transport-Security") != ""; got != hsts {
			t.Errorf("hsts=%v: Strict-Transport-Security present = %v", hsts, got)
		}
	}
}

// TestMetricsMiddleware_RecordsStatus はステータスコードと処理時間を記録することを検証する。
func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	mc := &recordingCollector{}
	handler := NewMetricsMiddleware(mc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(mc.statuses) != 1 || mc.statuses[0] != http.StatusTeapot {
		t.Errorf("statuses = %v, want [418]", mc.statuses)
	}
	if mc.observed != 1 {
		t.Errorf("latency observations = %d, want 1", mc.observed)
	}
}

// TestMiddlewareChain_WithChiRouter は実際のルーターと同じ順序のチェーンを検証する。
// Logging → Metrics → Recovery → Authn → CSRF → RateLimit
func TestMiddlewareChain_WithChiRouter(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))
	mc := &recordingCollector{}

	auth := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, creds authn.Credentials) (*authn.Identity, error) {
			switch {
			case creds.Authorization == "Bearer session-token":
				return testIdentity("user-bearer", authn.AuthMethodBearerSession), nil
			case creds.SessionCookie == "cookie-token":
				return testIdentity("user-cookie", authn.AuthMethodCookie), nil
			}
			return nil, model.NewUnauthorizedError(model.MsgNoCredential)
		},
	}
	rl := NewRateLimiter(testRateLimiterConfig(100, 100))
	defer rl.Stop()

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewMetricsMiddleware(mc))
	r.Use(NewRecoveryMiddleware())
	r.Group(func(r chi.Router) {
		r.Use(NewAuthnMiddleware(auth))
		r.Use(NewCSRFMiddleware(enabledCSRF()))
		r.Use(rl.GeneralMiddleware())
		r.Post("/api/families", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(userID))
		})
	})

	tests := []struct {
		name       string
		prepare    func(req *http.Request)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "資格情報なしは401",
			prepare:    func(req *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "Bearerセッションは CSRFなしで通る",
			prepare: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer session-token")
			},
			wantStatus: http.StatusCreated,
			wantBody:   "user-bearer",
		},
		{
			name: "CookieはCSRFトークンなしで403",
			prepare: func(req *http.Request) {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "CookieはCSRFトークン付きで通る",
			prepare: func(req *http.Request) {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "csrf"})
				req.Header.Set(csrfHeaderName, "csrf")
			},
			wantStatus: http.StatusCreated,
			wantBody:   "user-cookie",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/families", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}

	if len(mc.statuses) != len(tests) {
		t.Errorf("recorded statuses = %v, want %d entries", mc.statuses, len(tests))
	}
	if !bytes.Contains(logBuf.Bytes(), []byte(`"auth_method":"cookie"`)) {
		t.Errorf("log should contain auth_method for cookie requests: %s", logBuf.String())
	}
}
