package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tarkam/internal/model"
)

// ErrorResponseBody はJSONエラー応答の共通形式。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// apiErrorStatus はエラーコードごとのHTTPステータス。未登録のコードは500。
var apiErrorStatus = map[string]int{
	model.ErrCodeInvalidRequest:  http.StatusBadRequest,
	model.ErrCodeUnauthorized:    http.StatusUnauthorized,
	model.ErrCodeForbidden:       http.StatusForbidden,
	model.ErrCodeProductNotFound: http.StatusNotFound,
	model.ErrCodeRateLimited:     http.StatusTooManyRequests,
}

// StatusForAPIError はAPIErrorのコードに対応するHTTPステータスを返す。
func StatusForAPIError(apiErr *model.APIError) int {
	if status, ok := apiErrorStatus[apiErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse はapiErrを指定ステータスのJSONとして書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	body := ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("failed to write error response", slog.String("error", err.Error()))
	}
}

// WriteInternalServerError は詳細を含まない500応答を書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
