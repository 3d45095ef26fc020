package app

import "strings"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はHTTPサーバーを起動する（デフォルト）。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの定期削除ワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate は未適用のマイグレーションを実行して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中サーバーの /health を確認して終了する。
	// distrolessイメージにはcurlがないためコンテナのヘルスチェックに使う。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 大文字小文字は区別しない。引数が空または未知のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[strings.ToLower(strings.TrimSpace(args[0]))]; ok {
		return cmd
	}
	return CommandServe
}

// NeedsConfig は起動前に環境変数の設定読み込みが必要かを返す。
// healthcheckはSERVER_PORTのみ参照するため不要。
func (c Command) NeedsConfig() bool {
	return c != CommandHealthcheck
}
