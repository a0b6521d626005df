package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogman/internal/blog"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/validate"
)

// MyBlogServiceInterface は自分の記事管理ハンドラーが必要とするサービスインターフェース。
// すべての操作は投稿者スコープで行われ、他人の記事は存在しないものとして扱われる。
type MyBlogServiceInterface interface {
	ListMine(ctx context.Context, authorID string) ([]*model.Blog, error)
	GetMine(ctx context.Context, authorID, blogID string) (*model.Blog, error)
	EditContent(ctx context.Context, authorID, blogID string, patch blog.BlogPatch) (*model.Blog, error)
	SetPublished(ctx context.Context, authorID, blogID string, published bool) (*model.Blog, error)
	Delete(ctx context.Context, authorID, blogID string) error
}

// MyBlogHandler は /api/my-blog 配下のHTTPハンドラー。
type MyBlogHandler struct {
	service   MyBlogServiceInterface
	validator *validate.Validator
}

// NewMyBlogHandler はMyBlogHandlerを生成する。
func NewMyBlogHandler(service MyBlogServiceInterface, v *validate.Validator) *MyBlogHandler {
	return &MyBlogHandler{service: service, validator: v}
}

// updateBlogRequest は記事更新のリクエスト。省略したフィールドは現在値を維持する。
type updateBlogRequest struct {
	Title      *string  `json:"title" validate:"omitempty,max=200"`
	Content    *string  `json:"content"`
	Tags       []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Categories []string `json:"categories" validate:"omitempty,dive,category"`
	Image      *string  `json:"image" validate:"omitempty,max=2048"`
}

// publishRequest はbool以外の値を検出するためにRawMessageで受け取る。
type publishRequest struct {
	IsPublished json.RawMessage `json:"isPublished"`
}

// ListMyBlogs は自分の記事（下書き含む）の一覧を返す。
// GET /api/my-blog/all-blogs
func (h *MyBlogHandler) ListMyBlogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	blogs, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "All blogs have been successfully fetched.",
		"blogs":   toBlogListResponse(blogs, userID),
	})
}

// GetMyBlog は自分の記事の詳細を返す。
// GET /api/my-blog/blog/{id}
func (h *MyBlogHandler) GetMyBlog(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	b, err := h.service.GetMine(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Blog fetched successfully.",
		"blog":    toBlogResponse(b, userID),
	})
}

// UpdateMyBlog は記事の内容を部分更新する。
// PUT /api/my-blog/update-blog/{id}
func (h *MyBlogHandler) UpdateMyBlog(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateBlogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	b, err := h.service.EditContent(r.Context(), userID, chi.URLParam(r, "id"), blog.BlogPatch{
		Title:      req.Title,
		Content:    req.Content,
		Image:      req.Image,
		Tags:       req.Tags,
		Categories: req.Categories,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Blog has been successfully updated.",
		"blog":    toBlogResponse(b, userID),
	})
}

// DeleteMyBlog は自分の記事を削除する。
// DELETE /api/my-blog/blog/{id}
func (h *MyBlogHandler) DeleteMyBlog(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Blog has been successfully deleted."})
}

// SetPublishStatus は公開状態を切り替える。
// PATCH /api/my-blog/publish-status/{id}  body: {"isPublished": true|false}
func (h *MyBlogHandler) SetPublishStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req publishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	var published bool
	if len(req.IsPublished) == 0 || string(req.IsPublished) == "null" || json.Unmarshal(req.IsPublished, &published) != nil {
		handleServiceError(w, r, model.NewValidationError("The isPublished field must be a boolean."))
		return
	}

	b, err := h.service.SetPublished(r.Context(), userID, chi.URLParam(r, "id"), published)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	msg := "Blog has been successfully unpublished."
	if published {
		msg = "Blog has been successfully published."
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": msg,
		"blog":    toBlogResponse(b, userID),
	})
}
