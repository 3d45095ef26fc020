package middleware

import (
	"mime"
	"net/http"
	"strings"
)

// WantsJSON はリクエストがAPIモード（JSON応答）を期待しているかを判定する。
// Acceptにapplication/jsonを含む、XMLHttpRequestによる送信、
// またはJSONボディを持つリクエストをAPIモードとみなす。
func WantsJSON(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}

	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == "application/json" {
			return true
		}
	}

	return IsJSONBody(r)
}

// IsJSONBody はリクエストボディがJSONかをContent-Typeで判定する。
func IsJSONBody(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
