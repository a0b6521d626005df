package blog

import (
	"context"
	"fmt"

	"github.com/hitoshi/blogman/internal/model"
)

// ownedBlog は投稿者でスコープした検索で記事を取得する。
// 他人の記事と存在しない記事を区別せず、どちらもBLOG_NOT_FOUNDを返す。
// 投稿者のみが行える操作はすべてこの関数を経由する。
func (s *Service) ownedBlog(ctx context.Context, requesterID, blogID string) (*model.Blog, error) {
	if err := validateID(blogID); err != nil {
		return nil, err
	}
	b, err := s.blogRepo.FindByIDAndAuthor(ctx, blogID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewBlogNotFoundError()
	}
	return b, nil
}
