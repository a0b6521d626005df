// Package auth はユーザー登録・ログイン・トークン管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// BcryptCost はパスワードハッシュのコスト。
const BcryptCost = 10

// TokenPair は発行したアクセストークンとリフレッシュトークン。
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Result は登録・ログインの結果。
type Result struct {
	User   *model.User
	Tokens TokenPair
}

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	Mobile      string
	DOB         *time.Time
	Image       string
	Preferences []string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	tokenRepo repository.RefreshTokenRepository
	tokens    *TokenIssuer
	metrics   metrics.MetricsCollector
	cost      int

	now   func() time.Time
	newID func() string
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	tokenRepo repository.RefreshTokenRepository,
	tokens *TokenIssuer,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		tokens:    tokens,
		metrics:   collector,
		cost:      BcryptCost,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Register はユーザーを作成し、トークンを発行する。
// メールアドレスは小文字に正規化する。興味カテゴリ未指定時はtechnologyとする。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	email := normalizeEmail(in.Email)

	prefs := model.DefaultPreferences()
	if len(in.Preferences) > 0 {
		var err error
		prefs, err = model.ParseCategories(in.Preferences)
		if err != nil {
			return nil, err
		}
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("メールアドレスでのユーザー検索に失敗しました: %w", err)
	}
	if existing != nil {
		s.metrics.RecordAuthAttempt("register", "failure")
		return nil, model.NewUserAlreadyExistsError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           s.newID(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: string(hash),
		Mobile:       strings.TrimSpace(in.Mobile),
		DOB:          in.DOB,
		Image:        in.Image,
		Preferences:  prefs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.RecordAuthAttempt("register", "failure")
			return nil, model.NewUserAlreadyExistsError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt("register", "success")
	slog.Info("ユーザーを登録しました", slog.String("user_id", user.ID))
	return &Result{User: user, Tokens: *pair}, nil
}

// LoginWithEmail はメールアドレスとパスワードで認証する。
func (s *Service) LoginWithEmail(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("メールアドレスでのユーザー検索に失敗しました: %w", err)
	}
	return s.login(ctx, "email", user, password)
}

// LoginWithMobile は電話番号とパスワードで認証する。
func (s *Service) LoginWithMobile(ctx context.Context, mobile, password string) (*Result, error) {
	user, err := s.userRepo.FindByMobile(ctx, strings.TrimSpace(mobile))
	if err != nil {
		return nil, fmt.Errorf("電話番号でのユーザー検索に失敗しました: %w", err)
	}
	return s.login(ctx, "mobile", user, password)
}

// login はパスワードを照合してトークンを発行する。
// ユーザー不在とパスワード不一致は同じエラーを返す。
func (s *Service) login(ctx context.Context, method string, user *model.User, password string) (*Result, error) {
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.metrics.RecordAuthAttempt(method, "failure")
		return nil, model.NewInvalidCredentialsError()
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt(method, "success")
	slog.Info("ログインしました",
		slog.String("user_id", user.ID),
		slog.String("method", method),
	)
	return &Result{User: user, Tokens: *pair}, nil
}

// Refresh はリフレッシュトークンを検証し、新しいトークンペアを発行する。
// 使用済みのリフレッシュトークンは失効させる。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		s.metrics.RecordAuthAttempt("refresh", "failure")
		return nil, model.NewUnauthenticatedError()
	}

	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		s.metrics.RecordAuthAttempt("refresh", "failure")
		return nil, model.NewUnauthenticatedError()
	}

	// 検証と失効を1回の操作で行い、同じトークンでの同時リフレッシュは1件のみ成功させる
	record, err := s.tokenRepo.ConsumeByHash(ctx, s.tokens.HashRefresh(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("リフレッシュトークンの失効に失敗しました: %w", err)
	}
	if record == nil || record.UserID != claims.ID {
		s.metrics.RecordAuthAttempt("refresh", "failure")
		return nil, model.NewUnauthenticatedError()
	}

	user, err := s.userRepo.FindByID(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		s.metrics.RecordAuthAttempt("refresh", "failure")
		return nil, model.NewUnauthenticatedError()
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt("refresh", "success")
	return pair, nil
}

// Logout はリフレッシュトークンを失効させる。トークンが空・未登録でもエラーにしない。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.tokenRepo.DeleteByHash(ctx, s.tokens.HashRefresh(refreshToken)); err != nil {
		return fmt.Errorf("リフレッシュトークンの失効に失敗しました: %w", err)
	}
	slog.Info("ログアウトしました")
	return nil
}

// ResolveViewer はアクセストークンを検証し、閲覧者のユーザーIDを返す。
func (s *Service) ResolveViewer(accessToken string) (string, error) {
	if accessToken == "" {
		return "", model.NewUnauthenticatedError()
	}
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return "", model.NewUnauthenticatedError()
	}
	return claims.ID, nil
}

// issuePair はトークンペアを発行し、リフレッシュトークンのハッシュを保存する。
func (s *Service) issuePair(ctx context.Context, user *model.User) (*TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, err
	}

	record := &model.RefreshToken{
		ID:        s.newID(),
		UserID:    user.ID,
		TokenHash: s.tokens.HashRefresh(refresh),
		ExpiresAt: refreshExp,
		CreatedAt: s.now(),
	}
	if err := s.tokenRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("リフレッシュトークンの保存に失敗しました: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
