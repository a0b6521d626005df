package blog

import "github.com/hitoshi/blogman/internal/model"

// CanView は閲覧者が記事を閲覧できるかを返す。
// 投稿者は下書きを含め常に閲覧できる。それ以外は公開済みかつブロックされていない場合のみ。
func CanView(viewerID string, b *model.Blog) bool {
	if b.IsAuthor(viewerID) {
		return true
	}
	return b.IsPublished && !b.IsBlocked(viewerID)
}

// InFeed は記事が閲覧者のフィードに含まれるかを返す。
// CanViewの条件に加え、記事のカテゴリと閲覧者の興味カテゴリが1つ以上重なる必要がある。
// 自分の記事はカテゴリ条件の対象外。
func InFeed(viewer *model.User, b *model.Blog) bool {
	if !CanView(viewer.ID, b) {
		return false
	}
	if b.IsAuthor(viewer.ID) {
		return true
	}
	return model.Overlaps(b.Categories, viewer.Preferences)
}

// FilterVisible はフィードに含まれる記事のみを入力順のまま返す。
func FilterVisible(viewer *model.User, blogs []*model.Blog) []*model.Blog {
	out := make([]*model.Blog, 0, len(blogs))
	for _, b := range blogs {
		if InFeed(viewer, b) {
			out = append(out, b)
		}
	}
	return out
}
