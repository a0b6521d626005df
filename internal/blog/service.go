// Package blog は記事の閲覧・作成・リアクション・投稿者操作のドメインロジックを提供する。
package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
	"github.com/hitoshi/blogman/internal/security"
)

const (
	// DefaultPageSize はフィード一覧の既定件数。
	DefaultPageSize = 20
	// MaxPageSize はフィード一覧の最大件数。
	MaxPageSize = 100
	// DefaultLatestCount は最新記事取得の既定件数。
	DefaultLatestCount = 5
	// MaxLatestCount は最新記事取得の最大件数。
	MaxLatestCount = 20
)

// Service は記事のサービス層。
// フィード閲覧、記事作成、リアクション、投稿者による編集・公開・削除を提供する。
type Service struct {
	blogRepo    repository.BlogRepository
	userRepo    repository.UserRepository
	sanitizer   security.ContentSanitizerService
	imageGuard  security.ImageURLGuard
	metrics     metrics.MetricsCollector
	retry       RetryPolicy
	probeImages bool
	logger      *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService はServiceの新しいインスタンスを生成する。
// probeImagesがtrueの場合、記事画像URLへ実際にHEADリクエストを送って検証する。
func NewService(
	blogRepo repository.BlogRepository,
	userRepo repository.UserRepository,
	sanitizer security.ContentSanitizerService,
	imageGuard security.ImageURLGuard,
	collector metrics.MetricsCollector,
	retry RetryPolicy,
	probeImages bool,
) *Service {
	return &Service{
		blogRepo:    blogRepo,
		userRepo:    userRepo,
		sanitizer:   sanitizer,
		imageGuard:  imageGuard,
		metrics:     collector,
		retry:       retry,
		probeImages: probeImages,
		logger:      slog.Default(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// ListResult はListVisibleの戻り値。
type ListResult struct {
	Blogs      []*model.Blog
	NextCursor string
	HasMore    bool
}

// CreateInput は記事作成の入力値。
type CreateInput struct {
	Title       string
	Content     string
	Tags        []string
	Categories  []string
	Image       string
	IsPublished bool
}

// ListVisible は閲覧者のフィードをcreated_at降順・カーソルベースページネーションで返す。
// limit+1件を取得してHasMoreを判定する。
func (s *Service) ListVisible(ctx context.Context, viewerID, cursorStr string, limit int) (*ListResult, error) {
	viewer, err := s.loadViewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	cursor, err := parseCursor(cursorStr)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, DefaultPageSize, MaxPageSize)

	candidates, err := s.blogRepo.ListFeedCandidates(ctx, viewer.ID, viewer.Preferences, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	hasMore := len(candidates) > limit
	if hasMore {
		candidates = candidates[:limit]
	}

	var nextCursor string
	if hasMore && len(candidates) > 0 {
		nextCursor = formatCursor(candidates[len(candidates)-1])
	}

	return &ListResult{
		Blogs:      FilterVisible(viewer, candidates),
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// Latest は閲覧者のフィードの最新n件を返す。
func (s *Service) Latest(ctx context.Context, viewerID string, n int) ([]*model.Blog, error) {
	viewer, err := s.loadViewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	n = clampLimit(n, DefaultLatestCount, MaxLatestCount)

	candidates, err := s.blogRepo.ListFeedCandidates(ctx, viewer.ID, viewer.Preferences, repository.FeedCursor{}, n)
	if err != nil {
		return nil, fmt.Errorf("最新記事の取得に失敗しました: %w", err)
	}
	return FilterVisible(viewer, candidates), nil
}

// GetOne は記事を1件返す。カテゴリ条件は適用しない。
// 存在しない記事と閲覧できない記事はどちらもBLOG_NOT_FOUNDとなる。
func (s *Service) GetOne(ctx context.Context, viewerID, blogID string) (*model.Blog, error) {
	if err := validateID(blogID); err != nil {
		return nil, err
	}

	b, err := s.blogRepo.FindByID(ctx, blogID)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if b == nil || !CanView(viewerID, b) {
		return nil, model.NewBlogNotFoundError()
	}
	return b, nil
}

// Create は記事を作成する。投稿者は作成後に変更できない。
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (*model.Blog, error) {
	title := s.sanitizer.SanitizeText(in.Title)
	if title == "" {
		return nil, model.NewValidationError("title is required")
	}
	content := s.sanitizer.SanitizeContent(in.Content)
	if content == "" {
		return nil, model.NewValidationError("content is required")
	}
	categories, err := model.ParseCategories(in.Categories)
	if err != nil {
		return nil, err
	}
	if err := s.checkImage(ctx, in.Image); err != nil {
		return nil, err
	}

	now := s.now()
	b := &model.Blog{
		ID:           s.newID(),
		AuthorID:     authorID,
		Title:        title,
		Content:      content,
		Tags:         security.NormalizeTags(s.sanitizer, in.Tags),
		Categories:   categories,
		Image:        in.Image,
		IsPublished:  in.IsPublished,
		LikedBy:      []string{},
		DislikedBy:   []string{},
		BlockedUsers: []string{},
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b.Recount()

	if err := s.blogRepo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("記事の作成に失敗しました: %w", err)
	}

	s.metrics.RecordBlogCreated()
	s.logger.Info("blog created",
		slog.String("blog_id", b.ID),
		slog.String("author_id", authorID),
		slog.Bool("published", b.IsPublished),
	)
	return b, nil
}

// loadViewer は閲覧者の興味カテゴリを取得するためにユーザーを読み込む。
func (s *Service) loadViewer(ctx context.Context, viewerID string) (*model.User, error) {
	viewer, err := s.userRepo.FindByID(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if viewer == nil {
		return nil, model.NewUserNotFoundError()
	}
	if len(viewer.Preferences) == 0 {
		viewer.Preferences = model.DefaultPreferences()
	}
	return viewer, nil
}

// checkImage は画像URLを検証する。空文字は画像なしとして許可する。
func (s *Service) checkImage(ctx context.Context, image string) error {
	if image == "" {
		return nil
	}
	if err := s.imageGuard.ValidateURL(image); err != nil {
		return model.NewInvalidImageURLError(err.Error())
	}
	if !s.probeImages {
		return nil
	}
	if err := s.imageGuard.Probe(ctx, image); err != nil {
		s.logger.Warn("image probe failed",
			slog.String("url", image),
			slog.String("error", err.Error()),
		)
		return model.NewInvalidImageURLError(err.Error())
	}
	return nil
}

// retryOnConflict はfnがErrVersionConflictを返す間、再試行方針に従って再実行する。
// 試行回数を使い切った場合はexhaustedが生成したエラーを返す。
func (s *Service) retryOnConflict(ctx context.Context, onConflict func(), exhausted func() *model.APIError, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		if onConflict != nil {
			onConflict()
		}
		if attempt+1 >= s.retry.MaxAttempts {
			return exhausted()
		}
		if err := wait(ctx, s.retry.Backoff(attempt)); err != nil {
			return err
		}
	}
}

// validateID はUUID形式でないIDをストアに渡す前に拒否する。
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewInvalidIDError(id)
	}
	return nil
}

// cursorSeparator はカーソル文字列のcreated_atとidの区切り。RFC3339にもUUIDにも現れない。
const cursorSeparator = "_"

// formatCursor は記事の(created_at, id)を "RFC3339Nano_id" 形式のカーソルにする。
func formatCursor(b *model.Blog) string {
	return b.CreatedAt.UTC().Format(time.RFC3339Nano) + cursorSeparator + b.ID
}

func parseCursor(cursorStr string) (repository.FeedCursor, error) {
	if cursorStr == "" {
		return repository.FeedCursor{}, nil
	}
	invalid := model.NewValidationError("invalid cursor: " + cursorStr)

	ts, id, ok := strings.Cut(cursorStr, cursorSeparator)
	if !ok {
		return repository.FeedCursor{}, invalid
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return repository.FeedCursor{}, invalid
	}
	if _, err := uuid.Parse(id); err != nil {
		return repository.FeedCursor{}, invalid
	}
	return repository.FeedCursor{CreatedAt: createdAt, ID: id}, nil
}

func clampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
