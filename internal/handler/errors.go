package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/famorg/internal/authn"
	"github.com/hitoshi/famorg/internal/authz"
	"github.com/hitoshi/famorg/internal/metrics"
	"github.com/hitoshi/famorg/internal/middleware"
	"github.com/hitoshi/famorg/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 1 << 20

// errorResponder はサービス層のエラーをHTTPレスポンスに変換する。
// 認可拒否はメトリクスに記録する。
type errorResponder struct {
	metrics metrics.MetricsCollector
}

func newErrorResponder(mc metrics.MetricsCollector) errorResponder {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return errorResponder{metrics: mc}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func (e errorResponder) handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeForbidden:
			e.metrics.RecordAuthorizationDenied(apiErr.Category)
		case model.ErrCodeNotFound:
			e.metrics.RecordAuthorizationDenied("not_found")
		}
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	if errors.Is(err, authz.ErrMisconfiguredCheck) {
		slog.Error("authorization check misconfigured", slog.String("error", err.Error()))
	} else {
		slog.Error("internal server error", slog.String("error", err.Error()))
	}
	middleware.WriteInternalServerError(w)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeEmailTaken, model.ErrCodeAlreadyMember, model.ErrCodeLastParent, model.ErrCodeTaskAlreadyCompleted:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをデコードする。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("Invalid JSON request body"))
		return false
	}
	return true
}

// requireIdentity は認証済みIdentityを取り出す。認証ミドルウェアの外で呼ばれた場合は401を書き込む。
func requireIdentity(w http.ResponseWriter, r *http.Request) (*authn.Identity, bool) {
	id, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(model.MsgNoCredential))
		return nil, false
	}
	return id, true
}
