// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// パスワードはbcryptハッシュのみを保持する。
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// Usernameはセッション解決時にusersテーブルから結合される表示用の値。
type Session struct {
	ID        string
	UserID    string
	Username  string
	ExpiresAt time.Time
	CreatedAt time.Time
}
