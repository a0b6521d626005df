// Package profile はログインユーザー自身のプロフィール管理を提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// BcryptCost はパスワードハッシュのコスト。
const BcryptCost = 10

// MinPasswordLength は新しいパスワードの最小文字数。
const MinPasswordLength = 6

// ProfilePatch はプロフィール更新の入力値。
// nilのフィールドは現在値を維持する。
type ProfilePatch struct {
	Name        *string
	Mobile      *string
	DOB         *time.Time
	Image       *string
	Preferences []string
}

// Service はプロフィール管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	cost     int
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
		cost:     BcryptCost,
		now:      time.Now,
	}
}

// Get は指定ユーザーのプロフィールを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.User, error) {
	return s.findUser(ctx, userID)
}

// UpdateProfile は指定されたフィールドのみを上書きする。
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*model.User, error) {
	var prefs []model.Category
	if patch.Preferences != nil {
		parsed, err := model.ParseCategories(patch.Preferences)
		if err != nil {
			return nil, err
		}
		prefs = parsed
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, model.NewValidationError("name must not be empty")
		}
		user.Name = name
	}
	if patch.Mobile != nil {
		user.Mobile = strings.TrimSpace(*patch.Mobile)
	}
	if patch.DOB != nil {
		dob := *patch.DOB
		user.DOB = &dob
	}
	if patch.Image != nil {
		user.Image = strings.TrimSpace(*patch.Image)
	}
	if prefs != nil {
		user.Preferences = prefs
	}
	user.UpdatedAt = s.now()

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	slog.Info("プロフィールを更新しました", slog.String("user_id", userID))
	return user, nil
}

// ChangePassword は現在のパスワードを照合した上で新しいパスワードに置き換える。
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < MinPasswordLength {
		return model.NewValidationError(fmt.Sprintf("new password must be at least %d characters", MinPasswordLength))
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return model.NewIncorrectPasswordError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}

	slog.Info("パスワードを変更しました", slog.String("user_id", userID))
	return nil
}

// ChangePreferences は興味カテゴリを置き換える。空の指定は受け付けない。
func (s *Service) ChangePreferences(ctx context.Context, userID string, values []string) ([]model.Category, error) {
	prefs, err := model.ParseCategories(values)
	if err != nil {
		return nil, err
	}
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdatePreferences(ctx, userID, prefs); err != nil {
		return nil, fmt.Errorf("興味カテゴリの更新に失敗しました: %w", err)
	}
	return prefs, nil
}

func (s *Service) findUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
