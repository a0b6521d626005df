package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogman/internal/blog"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/validate"
)

// BlogServiceInterface は記事閲覧・投稿・リアクションのハンドラーが必要とするサービスインターフェース。
type BlogServiceInterface interface {
	Create(ctx context.Context, authorID string, in blog.CreateInput) (*model.Blog, error)
	ListVisible(ctx context.Context, viewerID, cursor string, limit int) (*blog.ListResult, error)
	Latest(ctx context.Context, viewerID string, n int) ([]*model.Blog, error)
	GetOne(ctx context.Context, viewerID, blogID string) (*model.Blog, error)
	Like(ctx context.Context, viewerID, blogID string) (blog.ReactionOutcome, error)
	Dislike(ctx context.Context, viewerID, blogID string) (blog.ReactionOutcome, error)
	ToggleBlock(ctx context.Context, requesterID, blogID, targetID string) (bool, error)
}

// BlogHandler は /api/blog 配下のHTTPハンドラー。
type BlogHandler struct {
	service   BlogServiceInterface
	validator *validate.Validator
}

// NewBlogHandler はBlogHandlerを生成する。
func NewBlogHandler(service BlogServiceInterface, v *validate.Validator) *BlogHandler {
	return &BlogHandler{service: service, validator: v}
}

type createBlogRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Content     string   `json:"content" validate:"required"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
	Categories  []string `json:"categories" validate:"required,min=1,dive,category"`
	Image       string   `json:"image" validate:"omitempty,max=2048"`
	IsPublished bool     `json:"isPublished"`
}

type blockRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// CreateBlog は記事を作成する。
// POST /api/blog/new-blog
func (h *BlogHandler) CreateBlog(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createBlogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	b, err := h.service.Create(r.Context(), userID, blog.CreateInput{
		Title:       req.Title,
		Content:     req.Content,
		Tags:        req.Tags,
		Categories:  req.Categories,
		Image:       req.Image,
		IsPublished: req.IsPublished,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Blog created successfully.",
		"blog":    toBlogResponse(b, userID),
	})
}

// ListBlogs は閲覧者のフィードを返す。
// GET /api/blog/all-blogs?cursor=...&limit=...
func (h *BlogHandler) ListBlogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.ListVisible(r.Context(), userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "All blogs fetched successfully.",
		"blogs":      toBlogListResponse(res.Blogs, userID),
		"nextCursor": res.NextCursor,
		"hasMore":    res.HasMore,
	})
}

// LatestBlogs は閲覧者のフィードの先頭n件を返す。
// GET /api/blog/latest?count=...
func (h *BlogHandler) LatestBlogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	n, err := queryInt(r, "count")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	blogs, err := h.service.Latest(r.Context(), userID, n)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Latest blogs fetched successfully.",
		"blogs":   toBlogListResponse(blogs, userID),
	})
}

// GetBlog は記事詳細を返す。閲覧できない記事は存在しない記事と同じく404とする。
// GET /api/blog/blogs/{id}
func (h *BlogHandler) GetBlog(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	b, err := h.service.GetOne(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Blog fetched successfully.",
		"blog":    toBlogResponse(b, userID),
	})
}

// Like は高評価をトグルする。
// PATCH /api/blog/like/{id}
func (h *BlogHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.service.Like, "Like added successfully.", "Like removed successfully.")
}

// Dislike は低評価をトグルする。
// PATCH /api/blog/dislike/{id}
func (h *BlogHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.service.Dislike, "Dislike added successfully.", "Dislike removed successfully.")
}

type reactFunc func(ctx context.Context, viewerID, blogID string) (blog.ReactionOutcome, error)

func (h *BlogHandler) react(w http.ResponseWriter, r *http.Request, fn reactFunc, addedMsg, removedMsg string) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	out, err := fn(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	msg := removedMsg
	if out.Added {
		msg = addedMsg
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      msg,
		"likeCount":    out.LikeCount,
		"dislikeCount": out.DislikeCount,
	})
}

// ToggleBlock は投稿者が指定ユーザーのブロック状態を切り替える。
// PATCH /api/blog/block/{id}  body: {"userId": "..."}
func (h *BlogHandler) ToggleBlock(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req blockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	blocked, err := h.service.ToggleBlock(r.Context(), userID, chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	msg := "User has been successfully unblocked from accessing the blog."
	if blocked {
		msg = "User has been successfully blocked from accessing the blog."
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": msg,
		"blocked": blocked,
	})
}

// queryInt は整数のクエリパラメータを読み取る。未指定の場合は0を返す。
func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, model.NewValidationError(key + " must be a non-negative integer")
	}
	return n, nil
}
