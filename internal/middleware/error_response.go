package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/careerboard/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Action string `json:"action,omitempty"`
}

// StatusForCategory はエラーカテゴリをHTTPステータスに変換する。
// 未知のカテゴリは500とする。
func StatusForCategory(category string) int {
	switch category {
	case model.CategoryValidation:
		return http.StatusBadRequest
	case model.CategoryAuthentication:
		return http.StatusUnauthorized
	case model.CategoryAuthorization:
		return http.StatusForbidden
	case model.CategoryNotFound:
		return http.StatusNotFound
	case model.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ステータスコードはカテゴリから決まる。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusForCategory(apiErr.Category))
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Error:  apiErr.Message,
		Code:   apiErr.Code,
		Action: apiErr.Action,
	})
}

// WriteError は任意のエラーをレスポンスに変換する。
// APIError以外は詳細をログに記録し、一般的な500を返す。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, apiErr)
		return
	}

	slog.Error("unhandled error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", requestID(r)),
		slog.String("error", err.Error()),
	)
	WriteInternalServerError(w)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, model.NewInternalError())
}
