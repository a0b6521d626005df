// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/security"
)

// excerptRunes は一覧レスポンスに含める本文抜粋の最大文字数。
const excerptRunes = 200

// maxBodyBytes はリクエストボディの上限。
const maxBodyBytes = 1 << 20

// authorResponse は記事に付随する投稿者情報のAPIレスポンス。
type authorResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

// blogResponse は記事のAPIレスポンス。
// 一覧ではContentを省略してExcerptを返す。
type blogResponse struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Content      string          `json:"content,omitempty"`
	Excerpt      string          `json:"excerpt,omitempty"`
	Tags         []string        `json:"tags"`
	Categories   []string        `json:"categories"`
	Image        string          `json:"image,omitempty"`
	IsPublished  bool            `json:"isPublished"`
	LikeCount    int             `json:"likeCount"`
	DislikeCount int             `json:"dislikeCount"`
	LikedByMe    bool            `json:"likedByMe"`
	DislikedByMe bool            `json:"dislikedByMe"`
	BlockedUsers []string        `json:"blockedUsers,omitempty"`
	AuthorID     string          `json:"authorId"`
	Author       *authorResponse `json:"author,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Mobile              string     `json:"mobile,omitempty"`
	DOB                 *time.Time `json:"dob,omitempty"`
	Image               string     `json:"image,omitempty"`
	CategoryPreferences []string   `json:"categoryPreferences"`
	CreatedAt           time.Time  `json:"createdAt"`
}

// toBlogResponse はmodel.Blogを閲覧者向けのレスポンスに変換する。
// 投稿者本人にのみブロック一覧を返す。
func toBlogResponse(b *model.Blog, viewerID string) blogResponse {
	resp := blogResponse{
		ID:           b.ID,
		Title:        b.Title,
		Content:      b.Content,
		Tags:         nonNil(b.Tags),
		Categories:   model.CategoryStrings(b.Categories),
		Image:        b.Image,
		IsPublished:  b.IsPublished,
		LikeCount:    b.LikeCount,
		DislikeCount: b.DislikeCount,
		LikedByMe:    slices.Contains(b.LikedBy, viewerID),
		DislikedByMe: slices.Contains(b.DislikedBy, viewerID),
		AuthorID:     b.AuthorID,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
	if b.IsAuthor(viewerID) {
		resp.BlockedUsers = nonNil(b.BlockedUsers)
	}
	if b.Author != nil {
		resp.Author = &authorResponse{
			ID:    b.Author.ID,
			Name:  b.Author.Name,
			Email: b.Author.Email,
			Image: b.Author.Image,
		}
	}
	return resp
}

// toBlogListResponse は一覧用に本文を抜粋へ置き換えたレスポンスを返す。
func toBlogListResponse(blogs []*model.Blog, viewerID string) []blogResponse {
	out := make([]blogResponse, len(blogs))
	for i, b := range blogs {
		r := toBlogResponse(b, viewerID)
		r.Excerpt = security.Excerpt(b.Content, excerptRunes)
		r.Content = ""
		out[i] = r
	}
	return out
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:                  u.ID,
		Name:                u.Name,
		Email:               u.Email,
		Mobile:              u.Mobile,
		DOB:                 u.DOB,
		Image:               u.Image,
		CategoryPreferences: model.CategoryStrings(u.Preferences),
		CreatedAt:           u.CreatedAt,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForCode(apiErr.Code), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// decodeJSON はリクエストボディをdstにデコードする。
// 空ボディ・不正なJSONはValidationErrorとする。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewValidationError("Request body is required.")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return model.NewValidationError("The " + typeErr.Field + " field has an invalid type.")
		}
		return model.NewValidationError("Request body must be valid JSON.")
	}
	return nil
}

// requireUserID は認証済みユーザーIDを取得する。取得できない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return "", false
	}
	return userID, true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
