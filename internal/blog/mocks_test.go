package blog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
	"github.com/hitoshi/blogman/internal/security"
)

// --- インメモリストア ---

// memStore はBlogRepositoryとUserRepositoryのインメモリ実装。
// UpdateContent / UpdateReactions はVersionによるCASを行う。
type memStore struct {
	mu    sync.Mutex
	blogs map[string]*model.Blog
	users map[string]*model.User

	// beforeUpdateReactions が設定されている場合、CAS判定の直前に呼ばれる。
	// 競合を再現するためにストア上のVersionを進めるのに使う。
	beforeUpdateReactions func(b *model.Blog)
	updateReactionsCalls  int

	// beforeUpdateContent はUpdateContentのCAS判定の直前に呼ばれる。
	beforeUpdateContent func(b *model.Blog)
	updateContentCalls  int
}

func newMemStore() *memStore {
	return &memStore{
		blogs: make(map[string]*model.Blog),
		users: make(map[string]*model.User),
	}
}

func (m *memStore) addUser(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *u
	m.users[u.ID] = &c
}

func (m *memStore) put(b *model.Blog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blogs[b.ID] = b.Clone()
}

func (m *memStore) get(id string) *model.Blog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.blogs[id]; ok {
		return b.Clone()
	}
	return nil
}

// bumpVersion は他のリクエストによる更新を再現する。
func (m *memStore) bumpVersion(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blogs[id].Version++
}

// BlogRepository

func (m *memStore) FindByID(ctx context.Context, id string) (*model.Blog, error) {
	return m.get(id), nil
}

func (m *memStore) FindByIDAndAuthor(ctx context.Context, id, authorID string) (*model.Blog, error) {
	b := m.get(id)
	if b == nil || b.AuthorID != authorID {
		return nil, nil
	}
	return b, nil
}

func (m *memStore) Create(ctx context.Context, b *model.Blog) error {
	m.put(b)
	return nil
}

func (m *memStore) ListFeedCandidates(ctx context.Context, viewerID string, prefs []model.Category, cursor repository.FeedCursor, limit int) ([]*model.Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Blog
	for _, b := range m.blogs {
		if !cursor.Before(b.CreatedAt, b.ID) {
			continue
		}
		own := b.AuthorID == viewerID
		if own || (b.IsPublished && !b.IsBlocked(viewerID) && model.Overlaps(b.Categories, prefs)) {
			out = append(out, b.Clone())
		}
	}
	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListByAuthor(ctx context.Context, authorID string) ([]*model.Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Blog
	for _, b := range m.blogs {
		if b.AuthorID == authorID {
			out = append(out, b.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *memStore) UpdateContent(ctx context.Context, b *model.Blog) error {
	if m.beforeUpdateContent != nil {
		m.beforeUpdateContent(b)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateContentCalls++

	cur, ok := m.blogs[b.ID]
	if !ok || cur.Version != b.Version {
		return repository.ErrVersionConflict
	}
	b.Version++
	b.UpdatedAt = cur.UpdatedAt.Add(time.Second)
	cur.Title, cur.Content, cur.Image = b.Title, b.Content, b.Image
	cur.Tags = append([]string(nil), b.Tags...)
	cur.Categories = append([]model.Category(nil), b.Categories...)
	cur.Version, cur.UpdatedAt = b.Version, b.UpdatedAt
	return nil
}

func (m *memStore) UpdatePublished(ctx context.Context, id, authorID string, published bool) (*model.Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.blogs[id]
	if !ok || cur.AuthorID != authorID {
		return nil, nil
	}
	cur.IsPublished = published
	cur.Version++
	return cur.Clone(), nil
}

func (m *memStore) UpdateReactions(ctx context.Context, b *model.Blog) error {
	if m.beforeUpdateReactions != nil {
		m.beforeUpdateReactions(b)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateReactionsCalls++

	cur, ok := m.blogs[b.ID]
	if !ok || cur.Version != b.Version {
		return repository.ErrVersionConflict
	}
	b.Version++
	b.Recount()
	cur.LikedBy = append([]string{}, b.LikedBy...)
	cur.DislikedBy = append([]string{}, b.DislikedBy...)
	cur.BlockedUsers = append([]string{}, b.BlockedUsers...)
	cur.Version = b.Version
	cur.Recount()
	return nil
}

func (m *memStore) DeleteByIDAndAuthor(ctx context.Context, id, authorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.blogs[id]
	if !ok || cur.AuthorID != authorID {
		return false, nil
	}
	delete(m.blogs, id)
	return true, nil
}

func sortNewestFirst(blogs []*model.Blog) {
	sort.SliceStable(blogs, func(i, j int) bool {
		if blogs[i].CreatedAt.Equal(blogs[j].CreatedAt) {
			return blogs[i].ID > blogs[j].ID
		}
		return blogs[i].CreatedAt.After(blogs[j].CreatedAt)
	})
}

// memUsers はmemStoreのユーザー部分をUserRepositoryとして公開する。
type memUsers struct{ *memStore }

func (m memUsers) FindByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}
func (m memUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}
func (m memUsers) FindByMobile(ctx context.Context, mobile string) (*model.User, error) {
	return nil, nil
}
func (m memUsers) Create(ctx context.Context, user *model.User) error {
	m.addUser(user)
	return nil
}
func (m memUsers) UpdateProfile(ctx context.Context, user *model.User) error {
	m.addUser(user)
	return nil
}
func (m memUsers) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return nil
}
func (m memUsers) UpdatePreferences(ctx context.Context, userID string, prefs []model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.Preferences = prefs
	}
	return nil
}

// --- エラー注入用モック ---

type mockBlogRepo struct {
	repository.BlogRepository
	findByIDFn           func(ctx context.Context, id string) (*model.Blog, error)
	findByIDAndAuthorFn  func(ctx context.Context, id, authorID string) (*model.Blog, error)
	listFeedCandidatesFn func(ctx context.Context, viewerID string, prefs []model.Category, cursor repository.FeedCursor, limit int) ([]*model.Blog, error)
	createFn             func(ctx context.Context, b *model.Blog) error
}

func (m *mockBlogRepo) FindByID(ctx context.Context, id string) (*model.Blog, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockBlogRepo) FindByIDAndAuthor(ctx context.Context, id, authorID string) (*model.Blog, error) {
	return m.findByIDAndAuthorFn(ctx, id, authorID)
}
func (m *mockBlogRepo) ListFeedCandidates(ctx context.Context, viewerID string, prefs []model.Category, cursor repository.FeedCursor, limit int) ([]*model.Blog, error) {
	return m.listFeedCandidatesFn(ctx, viewerID, prefs, cursor, limit)
}
func (m *mockBlogRepo) Create(ctx context.Context, b *model.Blog) error {
	return m.createFn(ctx, b)
}

// --- メトリクス ---

type recordingMetrics struct {
	mu         sync.Mutex
	created    int
	reactions  map[string]int
	conflicts  int
	latencyObs int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{reactions: make(map[string]int)}
}

func (m *recordingMetrics) RecordBlogCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}
func (m *recordingMetrics) RecordReaction(kind, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions[kind+"/"+result]++
}
func (m *recordingMetrics) RecordReactionConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}
func (m *recordingMetrics) RecordReactionLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencyObs++
}
func (m *recordingMetrics) RecordAuthAttempt(method, result string) {}
func (m *recordingMetrics) RecordHTTPStatus(code int)               {}
func (m *recordingMetrics) RecordTokensCleaned(n int64)             {}

// --- 画像URLガード ---

type mockImageGuard struct {
	validateFn func(rawURL string) error
	probeFn    func(ctx context.Context, rawURL string) error
}

func (m *mockImageGuard) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}
func (m *mockImageGuard) Probe(ctx context.Context, rawURL string) error {
	if m.probeFn != nil {
		return m.probeFn(ctx, rawURL)
	}
	return nil
}

// --- ヘルパー ---

// testEnv はテスト用のServiceとその依存をまとめる。
type testEnv struct {
	svc     *Service
	store   *memStore
	metrics *recordingMetrics
	guard   *mockImageGuard
	clock   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	m := newRecordingMetrics()
	guard := &mockImageGuard{}
	svc := NewService(store, memUsers{store}, security.NewContentSanitizer(), guard, m,
		RetryPolicy{MaxAttempts: 3, InitialBackoff: 0, MaxBackoff: 0}, false)
	svc.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		svc:     svc,
		store:   store,
		metrics: m,
		guard:   guard,
		clock:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	svc.now = func() time.Time {
		env.clock = env.clock.Add(time.Second)
		return env.clock
	}
	return env
}

// addUser はユーザーを登録してIDを返す。
func (e *testEnv) addUser(prefs ...model.Category) string {
	if len(prefs) == 0 {
		prefs = model.DefaultPreferences()
	}
	id := uuid.NewString()
	e.store.addUser(&model.User{ID: id, Name: "user", Email: id + "@example.com", Preferences: prefs})
	return id
}

// addBlog は記事を直接ストアに登録してIDを返す。
func (e *testEnv) addBlog(authorID string, published bool, cats ...model.Category) string {
	if len(cats) == 0 {
		cats = []model.Category{model.CategoryTechnology}
	}
	e.clock = e.clock.Add(time.Minute)
	b := &model.Blog{
		ID:           uuid.NewString(),
		AuthorID:     authorID,
		Title:        "title",
		Content:      "<p>content</p>",
		Categories:   cats,
		IsPublished:  published,
		LikedBy:      []string{},
		DislikedBy:   []string{},
		BlockedUsers: []string{},
		Version:      1,
		CreatedAt:    e.clock,
		UpdatedAt:    e.clock,
	}
	e.store.put(b)
	return b.ID
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Errorf("error code = %q, want %q", apiErr.Code, code)
	}
}

func strPtr(s string) *string { return &s }
