package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/database"
	"github.com/hitoshi/blogman/internal/model"
)

// setupTestDB はテスト専用スキーマにマイグレーションを適用したDBを返す。
// TEST_DATABASE_URL が未設定、またはDBに接続できない場合はテストをスキップする。
// スキーマはテストごとに作成し、終了時に削除する。
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	baseURL := os.Getenv("TEST_DATABASE_URL")
	if baseURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	admin, err := sql.Open("postgres", baseURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	t.Cleanup(func() { admin.Close() })
	if err := admin.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	schema := "repo_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if _, err := admin.Exec(`CREATE SCHEMA ` + schema); err != nil {
		t.Fatalf("スキーマ作成に失敗: %v", err)
	}
	t.Cleanup(func() {
		if _, err := admin.Exec(`DROP SCHEMA ` + schema + ` CASCADE`); err != nil {
			t.Logf("スキーマ削除に失敗: %v", err)
		}
	})

	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("TEST_DATABASE_URL の解析に失敗: %v", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	schemaURL := u.String()

	if _, err := database.RunMigrations(schemaURL); err != nil {
		t.Fatalf("マイグレーションに失敗: %v", err)
	}

	db, err := database.Open(schemaURL, database.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("データベースのオープンに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedUser はランダムなユーザーを作成して返す。
func seedUser(t *testing.T, repo *PostgresUserRepo, faker *gofakeit.Faker, prefs ...model.Category) *model.User {
	t.Helper()
	if len(prefs) == 0 {
		prefs = []model.Category{model.CategoryTechnology}
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &model.User{
		ID:           uuid.NewString(),
		Name:         faker.Name(),
		Email:        strings.ToLower(faker.Email()),
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Mobile:       fmt.Sprintf("98%08d", faker.Number(0, 99999999)),
		Preferences:  prefs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("ユーザー作成に失敗: %v", err)
	}
	return u
}

// seedBlog は指定投稿者の記事を作成して返す。mutateで初期値を変更できる。
func seedBlog(t *testing.T, repo *PostgresBlogRepo, authorID string, createdAt time.Time, mutate func(b *model.Blog)) *model.Blog {
	t.Helper()
	b := &model.Blog{
		ID:          uuid.NewString(),
		AuthorID:    authorID,
		Title:       "Morning run",
		Content:     "<p>5km along the river</p>",
		Tags:        []string{"running"},
		Categories:  []model.Category{model.CategoryTechnology},
		IsPublished: true,
		Version:     1,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if mutate != nil {
		mutate(b)
	}
	if err := repo.Create(context.Background(), b); err != nil {
		t.Fatalf("記事作成に失敗: %v", err)
	}
	return b
}
