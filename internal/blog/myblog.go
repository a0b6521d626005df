package blog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/security"
)

// BlogPatch は記事編集の部分更新。nilのフィールドは既存値を保持する。
// Tags / Categories は空スライスと未指定（nil）を区別する。
type BlogPatch struct {
	Title      *string
	Content    *string
	Tags       []string
	Categories []string
	Image      *string
}

// ListMine は自分の記事を下書きを含めてcreated_at降順で返す。記事が無い場合は空スライス。
func (s *Service) ListMine(ctx context.Context, authorID string) ([]*model.Blog, error) {
	blogs, err := s.blogRepo.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("自分の記事一覧の取得に失敗しました: %w", err)
	}
	if blogs == nil {
		blogs = []*model.Blog{}
	}
	return blogs, nil
}

// GetMine は自分の記事を1件返す。
func (s *Service) GetMine(ctx context.Context, authorID, blogID string) (*model.Blog, error) {
	return s.ownedBlog(ctx, authorID, blogID)
}

// EditContent は自分の記事のタイトル・本文・タグ・カテゴリ・画像を部分更新する。
// リアクションと公開状態は変更しない。
func (s *Service) EditContent(ctx context.Context, authorID, blogID string, patch BlogPatch) (*model.Blog, error) {
	var categories []model.Category
	if patch.Categories != nil {
		var err error
		categories, err = model.ParseCategories(patch.Categories)
		if err != nil {
			return nil, err
		}
	}
	if patch.Image != nil {
		if err := s.checkImage(ctx, *patch.Image); err != nil {
			return nil, err
		}
	}

	var title, content string
	if patch.Title != nil {
		title = s.sanitizer.SanitizeText(*patch.Title)
		if title == "" {
			return nil, model.NewValidationError("title must not be empty")
		}
	}
	if patch.Content != nil {
		content = s.sanitizer.SanitizeContent(*patch.Content)
		if content == "" {
			return nil, model.NewValidationError("content must not be empty")
		}
	}

	var updated *model.Blog
	err := s.retryOnConflict(ctx, nil, model.NewEditConflictError, func() error {
		b, err := s.ownedBlog(ctx, authorID, blogID)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			b.Title = title
		}
		if patch.Content != nil {
			b.Content = content
		}
		if patch.Tags != nil {
			b.Tags = security.NormalizeTags(s.sanitizer, patch.Tags)
		}
		if categories != nil {
			b.Categories = categories
		}
		if patch.Image != nil {
			b.Image = *patch.Image
		}
		if err := s.blogRepo.UpdateContent(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("blog updated",
		slog.String("blog_id", blogID),
		slog.String("author_id", authorID),
	)
	return updated, nil
}

// SetPublished は自分の記事の公開状態を設定する。
// 更新自体も投稿者スコープで行うため、確認後に削除された場合もBLOG_NOT_FOUNDとなる。
func (s *Service) SetPublished(ctx context.Context, authorID, blogID string, published bool) (*model.Blog, error) {
	if _, err := s.ownedBlog(ctx, authorID, blogID); err != nil {
		return nil, err
	}
	b, err := s.blogRepo.UpdatePublished(ctx, blogID, authorID, published)
	if err != nil {
		return nil, fmt.Errorf("公開状態の更新に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewBlogNotFoundError()
	}

	s.logger.Info("blog publish status changed",
		slog.String("blog_id", blogID),
		slog.String("author_id", authorID),
		slog.Bool("published", published),
	)
	return b, nil
}

// Delete は自分の記事を削除する。
func (s *Service) Delete(ctx context.Context, authorID, blogID string) error {
	if _, err := s.ownedBlog(ctx, authorID, blogID); err != nil {
		return err
	}
	deleted, err := s.blogRepo.DeleteByIDAndAuthor(ctx, blogID, authorID)
	if err != nil {
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewBlogNotFoundError()
	}

	s.logger.Info("blog deleted",
		slog.String("blog_id", blogID),
		slog.String("author_id", authorID),
	)
	return nil
}
