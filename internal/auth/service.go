// Package auth はユーザー登録、パスワード認証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/tarkam/internal/model"
	"github.com/hitoshi/tarkam/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// 利用者向けの非フィールドエラーメッセージ。
const (
	MsgInvalidCredentials = "invalid credentials"
	MsgUsernameTaken      = "username already taken"
	MsgPasswordMismatch   = "passwords do not match"
)

const (
	maxUsernameLength = 150
	minPasswordLength = 8
	// maxPasswordBytes はbcryptが受け付けるパスワード長の上限（バイト数）。
	maxPasswordBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// LoginRecorder はログイン結果のメトリクス記録先。
type LoginRecorder interface {
	RecordLogin(success bool)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	metrics     LoginRecorder
	config      ServiceConfig
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	metrics LoginRecorder,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		metrics:     metrics,
		config:      config,
		now:         time.Now,
	}
}

// Register は入力を検証してユーザーを作成する。
// 検証に失敗した場合は*model.ValidationErrorを返し、ユーザーは作成しない。
func (s *Service) Register(ctx context.Context, username, password, confirm string) (*model.User, error) {
	username = strings.TrimSpace(username)

	verr := validateRegistration(username, password, confirm)
	if verr.HasErrors() {
		return nil, verr
	}

	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		verr.AddNonField(MsgUsernameTaken)
		return nil, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		verr.AddField("password", fmt.Sprintf("Ensure this password has at most %d bytes.", maxPasswordBytes))
		return nil, verr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 同時登録で一意制約に違反した場合
		if errors.Is(err, repository.ErrDuplicateUsername) {
			verr.AddNonField(MsgUsernameTaken)
			return nil, verr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login は資格情報を検証してセッションを発行する。
// ユーザー不在とパスワード不一致は同じエラーになる。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, error) {
	username = strings.TrimSpace(username)

	var user *model.User
	if username != "" {
		u, err := s.userRepo.FindByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		user = u
	}

	hash := s.dummy()
	if user != nil {
		hash = []byte(user.PasswordHash)
	}

	// ユーザー不在時もダミーハッシュと比較して応答時間を揃える
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || user == nil {
		s.recordLogin(false)
		return nil, invalidCredentials()
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.recordLogin(true)
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return session, nil
}

// Logout はセッションを破棄する。
// 既に無効なセッションでも成功扱いとし、ストアのエラーはログに残すのみとする。
func (s *Service) Logout(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		slog.Warn("failed to delete session on logout", slog.String("error", err.Error()))
		return
	}

	slog.Info("user logged out")
}

// Authenticate はセッションIDから有効なセッションを解決する。
// 見つからない・期限切れの場合はnilを返す。
// 残り有効期間が最大有効期間の半分を下回った場合は期限を延長する。
func (s *Service) Authenticate(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	maxAge := s.maxAge()
	now := s.now()
	if session.ExpiresAt.Sub(now) < maxAge/2 {
		extended := now.Add(maxAge)
		if err := s.sessionRepo.UpdateExpiry(ctx, session.ID, extended); err != nil {
			slog.Warn("failed to extend session",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()),
			)
		} else {
			session.ExpiresAt = extended
		}
	}

	return session, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: now.Add(s.maxAge()),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) maxAge() time.Duration {
	return time.Duration(s.config.SessionMaxAge) * time.Second
}

// dummy はユーザー不在時の比較に使うハッシュを返す。
func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("tarkam-dummy-password"), s.config.BcryptCost)
		if err != nil {
			slog.Error("failed to generate dummy hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *Service) recordLogin(success bool) {
	if s.metrics != nil {
		s.metrics.RecordLogin(success)
	}
}

func invalidCredentials() *model.ValidationError {
	verr := &model.ValidationError{}
	verr.AddNonField(MsgInvalidCredentials)
	return verr
}

// validateRegistration は登録フォームの入力を検証する。
func validateRegistration(username, password, confirm string) *model.ValidationError {
	verr := &model.ValidationError{}

	switch {
	case username == "":
		verr.AddField("username", "This field is required.")
	case utf8.RuneCountInString(username) > maxUsernameLength:
		verr.AddField("username", fmt.Sprintf("Ensure this value has at most %d characters.", maxUsernameLength))
	case !usernamePattern.MatchString(username):
		verr.AddField("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}

	if password == "" {
		verr.AddField("password", "This field is required.")
	}
	if confirm == "" {
		verr.AddField("confirm_password", "This field is required.")
	}
	if password == "" || confirm == "" {
		return verr
	}

	if password != confirm {
		verr.AddNonField(MsgPasswordMismatch)
		return verr
	}

	if len(password) > maxPasswordBytes {
		verr.AddField("password", fmt.Sprintf("Ensure this password has at most %d bytes.", maxPasswordBytes))
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		verr.AddField("password", fmt.Sprintf("This password is too short. It must contain at least %d characters.", minPasswordLength))
	}
	if isAllDigits(password) {
		verr.AddField("password", "This password is entirely numeric.")
	}
	if username != "" && strings.EqualFold(password, username) {
		verr.AddField("password", "The password is too similar to the username.")
	}

	return verr
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
