package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/famorg/internal/authn"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// requestAnnotation は内側のミドルウェアが認証結果を書き戻すための領域。
// ロギングミドルウェアが生成し、認証ミドルウェアが埋める。
type requestAnnotation struct {
	userID     string
	authMethod authn.AuthMethod
}

type annotationKey struct{}

// annotateIdentity は外側のロギングミドルウェアに認証結果を伝える。
func annotateIdentity(ctx context.Context, id *authn.Identity) {
	if a, ok := ctx.Value(annotationKey{}).(*requestAnnotation); ok && id != nil {
		a.userID = id.UserID()
		a.authMethod = id.AuthMethod
	}
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、request_id、認証済みの場合はuser_idとauth_methodを含む。
// 資格情報そのものは記録しない。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			annotation := &requestAnnotation{}
			ctx := context.WithValue(r.Context(), annotationKey{}, annotation)

			next.ServeHTTP(rec, r.WithContext(ctx))

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				args = append(args, slog.String("request_id", reqID))
			}

			userID, method := annotation.userID, annotation.authMethod
			if id, ok := authn.FromContext(r.Context()); ok {
				userID, method = id.UserID(), id.AuthMethod
			}
			if userID != "" {
				args = append(args,
					slog.String("user_id", userID),
					slog.String("auth_method", string(method)),
				)
			}

			// slogのログレベルをステータスコードに応じて変更
			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
