package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hitoshi/tarkam/internal/model"
)

// PostgresSessionRepoはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

func TestPostgresSessionRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	now := time.Now()
	expires := now.Add(time.Hour)
	mock.ExpectExec(`INSERT INTO sessions \(id, user_id, expires_at, created_at\)`).
		WithArgs("tok", "user-a", expires, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresSessionRepo(db)
	err = repo.Create(context.Background(), &model.Session{
		ID: "tok", UserID: "user-a", ExpiresAt: expires, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgresSessionRepo_FindByID_JoinsUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`JOIN users u ON u.id = s.user_id\s+WHERE s.id = \$1 AND s.expires_at > now\(\)`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "username", "expires_at", "created_at"}).
			AddRow("tok", "user-a", "alice", now.Add(time.Hour), now))

	repo := NewPostgresSessionRepo(db)
	s, err := repo.FindByID(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if s == nil {
		t.Fatal("expected session, got nil")
	}
	if s.UserID != "user-a" || s.Username != "alice" {
		t.Errorf("session = %+v", s)
	}
}

func TestPostgresSessionRepo_FindByID_ExpiredOrMissing_ReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM sessions s`).
		WithArgs("expired").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "username", "expires_at", "created_at"}))

	repo := NewPostgresSessionRepo(db)
	s, err := repo.FindByID(context.Background(), "expired")
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil, got %+v", s)
	}
}

func TestPostgresSessionRepo_FindByID_WrapsDBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	dbErr := errors.New("connection reset")
	mock.ExpectQuery(`FROM sessions s`).WillReturnError(dbErr)

	repo := NewPostgresSessionRepo(db)
	_, err = repo.FindByID(context.Background(), "tok")
	if !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped %v", err, dbErr)
	}
}

func TestPostgresSessionRepo_UpdateExpiryAndDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	extended := time.Now().Add(24 * time.Hour)
	mock.ExpectExec(`UPDATE sessions SET expires_at = \$2 WHERE id = \$1`).
		WithArgs("tok", extended).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM sessions WHERE id = \$1`).
		WithArgs("tok").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresSessionRepo(db)
	if err := repo.UpdateExpiry(context.Background(), "tok", extended); err != nil {
		t.Fatalf("UpdateExpiry returned error: %v", err)
	}
	if err := repo.DeleteByID(context.Background(), "tok"); err != nil {
		t.Fatalf("DeleteByID returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
