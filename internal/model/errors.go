// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, product, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeProductNotFound = "PRODUCT_NOT_FOUND"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("product not found: %s", productID),
		Category: "product",
		Action:   "商品IDを確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "authentication required",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は所有者以外による商品操作のエラーを生成する。
func NewForbiddenError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("product %s is not owned by the current user", productID),
		Category: "auth",
		Action:   "自分が登録した商品のみ編集・削除できます。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("invalid request: %s", reason),
		Category: "validation",
		Action:   "正しい形式でリクエストしてください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "too many requests",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "internal server error",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NonFieldKey はフィールドに紐付かないエラーを表す疑似フィールド名。
const NonFieldKey = "__all__"

// FieldError は特定の入力フィールドに対する検証エラー。
type FieldError struct {
	Field   string
	Message string
}

// ValidationError は入力検証エラーを表す。
// フィールド単位のエラーとフィールドに紐付かないエラーを分けて保持する。
type ValidationError struct {
	FieldErrors    []FieldError
	NonFieldErrors []string
}

// AddField はフィールドエラーを追加する。
// fieldが空またはNonFieldKeyの場合は非フィールドエラーとして扱う。
func (e *ValidationError) AddField(field, message string) {
	if field == "" || field == NonFieldKey {
		e.AddNonField(message)
		return
	}
	e.FieldErrors = append(e.FieldErrors, FieldError{Field: field, Message: message})
}

// AddNonField は非フィールドエラーを追加する。
func (e *ValidationError) AddNonField(message string) {
	e.NonFieldErrors = append(e.NonFieldErrors, message)
}

// HasErrors はエラーが1件以上あるかを返す。
func (e *ValidationError) HasErrors() bool {
	return len(e.FieldErrors) > 0 || len(e.NonFieldErrors) > 0
}

// OrNil はエラーがなければnilを返す。
func (e *ValidationError) OrNil() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return e
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.FieldErrors)+len(e.NonFieldErrors))
	parts = append(parts, e.NonFieldErrors...)
	for _, fe := range e.FieldErrors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
