// internal/pkg/httpx/response.go
package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"nexus-fulfillment/internal/pkg/apperr"
	"nexus-fulfillment/internal/pkg/auth"
	"nexus-fulfillment/internal/pkg/logger"
)

// ErrorResponse 是所有错误响应的 body
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusOf 把错误映射为 HTTP 状态码：NotFound→404，BadRequest→400，其余→500
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON 以 status 写出 JSON 响应
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError 写出错误响应；内部错误只记录日志，不把细节暴露给调用方。
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		logger.Ctx(ctx).Error().Err(err).Msgf("%+v", err)
	}
	WriteJSON(w, status, ErrorResponse{Error: apperr.Message(err)})
}

// DecodeJSON 解析请求体，格式错误时返回 BadRequest
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.BadRequest("invalid request body: %v", err)
	}
	return nil
}

// UserID 返回认证中间件放入的用户 ID
func UserID(r *http.Request) (string, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		return "", errors.WithStack(errMissingUser)
	}
	return userID, nil
}

var errMissingUser = apperr.NewBadRequest("missing user")
