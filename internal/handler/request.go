package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/tarkam/internal/middleware"
	"github.com/hitoshi/tarkam/internal/model"
	"github.com/hitoshi/tarkam/internal/product"
)

const (
	maxJSONBodySize = 1 << 20
	maxFormMemory   = 1 << 20
)

// requestFields はフォームまたはJSONボディから読み取った入力値。
// JSONの数値と真偽値は文字列に変換して保持する。
type requestFields map[string]string

// SessionHandlerFunc はセッションを明示的な引数として受け取るハンドラー。
// 未認証のリクエストではsessionはnil。
type SessionHandlerFunc func(w http.ResponseWriter, r *http.Request, session *model.Session)

// withSession はセッションミドルウェアが解決したセッションを取り出してfnへ渡す。
func withSession(fn SessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, middleware.SessionFromContext(r.Context()))
	}
}

// readFields はContent-Typeに応じてJSONボディまたはフォームを読み取る。
func readFields(r *http.Request) (requestFields, error) {
	if middleware.IsJSONBody(r) {
		return readJSONFields(r)
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	fields := make(requestFields, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	return fields, nil
}

// readJSONFields はJSONオブジェクトのボディを読み取る。
func readJSONFields(r *http.Request) (requestFields, error) {
	var raw map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodySize))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON body: %w", err)
	}

	fields := make(requestFields, len(raw))
	for key, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			fields[key] = val
		case json.Number:
			fields[key] = val.String()
		case bool:
			fields[key] = strconv.FormatBool(val)
		default:
			fields[key] = fmt.Sprint(val)
		}
	}
	return fields, nil
}

// flag はチェックボックスやJSONの真偽値を解釈する。
func (f requestFields) flag(key string) bool {
	switch strings.ToLower(strings.TrimSpace(f[key])) {
	case "on", "true", "1", "yes":
		return true
	default:
		return false
	}
}

// productInput は入力値から商品の作成・更新入力を組み立てる。
func (f requestFields) productInput(policy product.CategoryPolicy) product.Input {
	return product.Input{
		Name:           f["name"],
		Price:          f["price"],
		Description:    f["description"],
		Thumbnail:      f["thumbnail"],
		Category:       f["category"],
		IsFeatured:     f.flag("is_featured"),
		CategoryPolicy: policy,
	}
}
