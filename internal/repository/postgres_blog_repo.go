package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/blogman/internal/model"
)

// PostgresBlogRepo はPostgreSQLを使用した記事リポジトリ。
// like_count / dislike_count は生成列のため、このリポジトリからは書き込まない。
type PostgresBlogRepo struct {
	db *sql.DB
}

// NewPostgresBlogRepo はPostgresBlogRepoを生成する。
func NewPostgresBlogRepo(db *sql.DB) *PostgresBlogRepo {
	return &PostgresBlogRepo{db: db}
}

const blogSelect = `
	SELECT b.id, b.author_id, b.title, b.content, b.tags, b.categories, b.image, b.is_published,
	       b.liked_by, b.disliked_by, b.blocked_users, b.like_count, b.dislike_count, b.version,
	       b.created_at, b.updated_at,
	       u.name, u.email, u.image
	FROM blogs b
	JOIN users u ON u.id = b.author_id`

func scanBlog(row rowScanner) (*model.Blog, error) {
	b := &model.Blog{Author: &model.AuthorSummary{}}
	var tags, categories, likedBy, dislikedBy, blocked pq.StringArray
	if err := row.Scan(
		&b.ID, &b.AuthorID, &b.Title, &b.Content, &tags, &categories, &b.Image, &b.IsPublished,
		&likedBy, &dislikedBy, &blocked, &b.LikeCount, &b.DislikeCount, &b.Version,
		&b.CreatedAt, &b.UpdatedAt,
		&b.Author.Name, &b.Author.Email, &b.Author.Image,
	); err != nil {
		return nil, err
	}
	b.Author.ID = b.AuthorID
	b.Tags = []string(tags)
	b.Categories = toCategories(categories)
	b.LikedBy = []string(likedBy)
	b.DislikedBy = []string(dislikedBy)
	b.BlockedUsers = []string(blocked)
	return b, nil
}

func scanBlogs(rows *sql.Rows) ([]*model.Blog, error) {
	var blogs []*model.Blog
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, fmt.Errorf("記事行の読み取りに失敗しました: %w", err)
		}
		blogs = append(blogs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}
	return blogs, nil
}

// textArray はnilスライスを空配列として書き込むためのpq.StringArrayを返す。
func textArray(values []string) pq.StringArray {
	if values == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(values)
}

// Create は記事を作成する。
func (r *PostgresBlogRepo) Create(ctx context.Context, blog *model.Blog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blogs (id, author_id, title, content, tags, categories, image, is_published,
		                    liked_by, disliked_by, blocked_users, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::uuid[], $10::uuid[], $11::uuid[], $12, $13, $14)`,
		blog.ID, blog.AuthorID, blog.Title, blog.Content,
		textArray(blog.Tags), textArray(model.CategoryStrings(blog.Categories)),
		blog.Image, blog.IsPublished,
		textArray(blog.LikedBy), textArray(blog.DislikedBy), textArray(blog.BlockedUsers),
		blog.Version, blog.CreatedAt, blog.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("記事の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresBlogRepo) FindByID(ctx context.Context, id string) (*model.Blog, error) {
	b, err := scanBlog(r.db.QueryRowContext(ctx, blogSelect+` WHERE b.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return b, nil
}

// FindByIDAndAuthor は投稿者でスコープして記事を取得する。見つからない場合はnilを返す。
func (r *PostgresBlogRepo) FindByIDAndAuthor(ctx context.Context, id, authorID string) (*model.Blog, error) {
	b, err := scanBlog(r.db.QueryRowContext(ctx,
		blogSelect+` WHERE b.id = $1 AND b.author_id = $2`,
		id, authorID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿者スコープでの記事取得に失敗しました: %w", err)
	}
	return b, nil
}

// ListFeedCandidates は閲覧者のフィード候補を取得する。
// 自分の記事は公開状態・ブロック・カテゴリ条件の対象外とする。
func (r *PostgresBlogRepo) ListFeedCandidates(
	ctx context.Context,
	viewerID string,
	prefs []model.Category,
	cursor FeedCursor,
	limit int,
) ([]*model.Blog, error) {
	query := blogSelect + `
	WHERE (b.author_id = $1 OR (
	          b.is_published
	          AND NOT ($1::uuid = ANY(b.blocked_users))
	          AND b.categories && $2::text[]
	      ))`
	args := []any{viewerID, textArray(model.CategoryStrings(prefs))}
	argIndex := 3

	// キーセットページネーション。created_atが同じ記事はidで順序付ける
	if !cursor.IsZero() {
		query += fmt.Sprintf(" AND (b.created_at, b.id) < ($%d, $%d::uuid)", argIndex, argIndex+1)
		args = append(args, cursor.CreatedAt, cursor.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY b.created_at DESC, b.id DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("フィード候補の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanBlogs(rows)
}

// ListByAuthor は投稿者の全記事を取得する。
func (r *PostgresBlogRepo) ListByAuthor(ctx context.Context, authorID string) ([]*model.Blog, error) {
	rows, err := r.db.QueryContext(ctx,
		blogSelect+` WHERE b.author_id = $1 ORDER BY b.created_at DESC, b.id DESC`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("投稿者の記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanBlogs(rows)
}

// UpdateContent はコンテンツ項目をCASで更新する。
func (r *PostgresBlogRepo) UpdateContent(ctx context.Context, blog *model.Blog) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE blogs SET title = $3, content = $4, tags = $5, categories = $6, image = $7,
		                  version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $2
		 RETURNING version, updated_at`,
		blog.ID, blog.Version, blog.Title, blog.Content,
		textArray(blog.Tags), textArray(model.CategoryStrings(blog.Categories)), blog.Image,
	).Scan(&blog.Version, &blog.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("記事の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdatePublished は投稿者スコープで公開状態を更新する。対象が無い場合はnilを返す。
func (r *PostgresBlogRepo) UpdatePublished(ctx context.Context, id, authorID string, published bool) (*model.Blog, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE blogs SET is_published = $3, version = version + 1, updated_at = now()
		 WHERE id = $1 AND author_id = $2`,
		id, authorID, published,
	)
	if err != nil {
		return nil, fmt.Errorf("公開状態の更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return r.FindByIDAndAuthor(ctx, id, authorID)
}

// UpdateReactions はリアクション集合とブロック集合をCASで更新する。
func (r *PostgresBlogRepo) UpdateReactions(ctx context.Context, blog *model.Blog) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE blogs SET liked_by = $3::uuid[], disliked_by = $4::uuid[], blocked_users = $5::uuid[],
		                  version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $2
		 RETURNING version, like_count, dislike_count, updated_at`,
		blog.ID, blog.Version,
		textArray(blog.LikedBy), textArray(blog.DislikedBy), textArray(blog.BlockedUsers),
	).Scan(&blog.Version, &blog.LikeCount, &blog.DislikeCount, &blog.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("リアクションの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByIDAndAuthor は投稿者スコープで記事を削除する。
func (r *PostgresBlogRepo) DeleteByIDAndAuthor(ctx context.Context, id, authorID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM blogs WHERE id = $1 AND author_id = $2`,
		id, authorID,
	)
	if err != nil {
		return false, fmt.Errorf("記事の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ BlogRepository = (*PostgresBlogRepo)(nil)
