// Package database はPostgreSQL接続とスキーマ管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaStatus は適用済みスキーマの状態。
type SchemaStatus struct {
	Version uint
	Dirty   bool
	Applied bool // 今回の実行で新たに適用したか
}

// migrateLogger はgolang-migrateの進捗をslogへ流す。
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool { return false }

// NewMigrator は埋め込みSQLを読み込むmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = migrateLogger{logger: slog.Default().With(slog.String("component", "migrate"))}

	return m, nil
}

// RunMigrations は未適用のマイグレーションを順に適用し、適用後のスキーマ状態を返す。
// 既に最新であればApplied=falseで成功する。dirty状態のスキーマには適用しない。
func RunMigrations(databaseURL string) (SchemaStatus, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return SchemaStatus{}, err
	}
	defer m.Close()

	var status SchemaStatus
	upErr := m.Up()
	switch {
	case upErr == nil:
		status.Applied = true
	case errors.Is(upErr, migrate.ErrNoChange):
	default:
		return SchemaStatus{}, fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return SchemaStatus{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	status.Version = version
	status.Dirty = dirty
	return status, nil
}

// MigrationVersions は埋め込まれたupマイグレーションのファイル名を昇順で返す。
func MigrationVersions() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, strings.TrimSuffix(e.Name(), ".up.sql"))
		}
	}
	sort.Strings(names)
	return names, nil
}
