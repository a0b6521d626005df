// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// ErrVersionConflict は楽観的排他制御で、読み取り後に記事が他のリクエストにより
// 更新されていた場合に返される。呼び出し側は再読み込みして再試行する。
var ErrVersionConflict = errors.New("repository: blog version conflict")

// ErrDuplicateEmail はメールアドレスのユニーク制約違反を表す。
var ErrDuplicateEmail = errors.New("repository: duplicate email")

// FeedCursor はフィードのキーセットページネーション位置。
// 前ページ末尾の記事の(created_at, id)を保持し、これより古い記事のみを対象とする。
type FeedCursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero はカーソル未指定（先頭から取得）かどうかを返す。
func (c FeedCursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}

// Before は(createdAt, id)がカーソル位置より後ろ（古い側）にあるかを返す。
// created_atが同じ記事はidの降順で並ぶ。
func (c FeedCursor) Before(createdAt time.Time, id string) bool {
	if c.IsZero() {
		return true
	}
	if createdAt.Equal(c.CreatedAt) {
		return id < c.ID
	}
	return createdAt.Before(c.CreatedAt)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（小文字正規化済み）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByMobile は電話番号でユーザーを検索する。見つからない場合はnilを返す。
	FindByMobile(ctx context.Context, mobile string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile は名前・電話番号・生年月日・画像・興味カテゴリを上書きする。
	UpdateProfile(ctx context.Context, user *model.User) error

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// UpdatePreferences は興味カテゴリのみを更新する。
	UpdatePreferences(ctx context.Context, userID string, prefs []model.Category) error
}

// BlogRepository は記事データの永続化インターフェース。
type BlogRepository interface {
	// Create は記事を作成する。ID・タイムスタンプ・Versionは呼び出し側で設定する。
	Create(ctx context.Context, blog *model.Blog) error

	// FindByID は指定IDの記事を投稿者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Blog, error)

	// FindByIDAndAuthor は投稿者でスコープした検索を行う。
	// 他人の記事と存在しない記事はどちらもnilを返す。
	FindByIDAndAuthor(ctx context.Context, id, authorID string) (*model.Blog, error)

	// ListFeedCandidates は閲覧者のフィード候補を(created_at, id)降順で取得する。
	// 公開状態・ブロック・カテゴリ重複の条件をSQL側でも適用する。
	// cursorがゼロ値の場合は先頭から取得する。
	ListFeedCandidates(ctx context.Context, viewerID string, prefs []model.Category, cursor FeedCursor, limit int) ([]*model.Blog, error)

	// ListByAuthor は投稿者の全記事（下書き含む）をcreated_at降順で取得する。
	ListByAuthor(ctx context.Context, authorID string) ([]*model.Blog, error)

	// UpdateContent はタイトル・本文・タグ・カテゴリ・画像を更新する。
	// blog.Versionと一致しない場合はErrVersionConflictを返す。成功時はblog.Versionを進める。
	UpdateContent(ctx context.Context, blog *model.Blog) error

	// UpdatePublished は投稿者スコープで公開状態を更新する。
	// 対象が無い場合はnilを返す。
	UpdatePublished(ctx context.Context, id, authorID string, published bool) (*model.Blog, error)

	// UpdateReactions はliked_by / disliked_by / blocked_users をCASで書き換える。
	// blog.Versionと一致しない場合はErrVersionConflictを返す。
	// 成功時はblog.Versionと件数を保存後の値で更新する。
	UpdateReactions(ctx context.Context, blog *model.Blog) error

	// DeleteByIDAndAuthor は投稿者スコープで記事を削除する。削除件数が0ならfalseを返す。
	DeleteByIDAndAuthor(ctx context.Context, id, authorID string) (bool, error)
}

// RefreshTokenRepository はリフレッシュトークン記録の永続化インターフェース。
type RefreshTokenRepository interface {
	// Create はトークン記録を作成する。
	Create(ctx context.Context, token *model.RefreshToken) error

	// ConsumeByHash は有効期限内のトークン記録を1回の操作で削除し、削除した記録を返す。
	// 期限切れ・失効済み・他のリクエストが先に消費した場合はnilを返す。
	ConsumeByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)

	// DeleteByHash は指定ハッシュのトークン記録を削除する。存在しなくてもエラーにしない。
	DeleteByHash(ctx context.Context, tokenHash string) error

	// DeleteExpired は期限切れのトークン記録を削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
