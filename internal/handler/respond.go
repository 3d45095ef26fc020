// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tarkam/internal/middleware"
	"github.com/hitoshi/tarkam/internal/model"
)

// validationErrorBody は入力検証エラーのレスポンス形式。
type validationErrorBody struct {
	NonFieldErrors []string         `json:"non_field_errors"`
	FieldErrors    []fieldErrorBody `json:"field_errors"`
}

type fieldErrorBody struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func newValidationErrorBody(verr *model.ValidationError) validationErrorBody {
	body := validationErrorBody{
		NonFieldErrors: make([]string, 0, len(verr.NonFieldErrors)),
		FieldErrors:    make([]fieldErrorBody, 0, len(verr.FieldErrors)),
	}
	body.NonFieldErrors = append(body.NonFieldErrors, verr.NonFieldErrors...)
	for _, fe := range verr.FieldErrors {
		body.FieldErrors = append(body.FieldErrors, fieldErrorBody{Field: fe.Field, Error: fe.Message})
	}
	return body
}

// writeJSON はvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeText はプレーンテキストのレスポンスを書き込む。
func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(text))
}

// writeValidationError は検証エラーを400で書き込む。
func writeValidationError(w http.ResponseWriter, verr *model.ValidationError) {
	writeJSON(w, http.StatusBadRequest, newValidationErrorBody(verr))
}

// writeServiceError はサービス層のエラーを種類に応じたレスポンスに変換する。
// 型付きでないエラーはログに記録し、汎用の内部エラーを返す。
func writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		writeValidationError(w, verr)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForAPIError(apiErr), apiErr)
		return
	}

	slog.Error(logMsg, slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// isNotFound はエラーがPRODUCT_NOT_FOUNDかを返す。
func isNotFound(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeProductNotFound
}
