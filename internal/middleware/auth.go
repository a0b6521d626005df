// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/blogman/internal/model"
)

const (
	// AccessTokenCookieName はアクセストークンを保持するHTTP Only Cookieの名前。
	AccessTokenCookieName = "accessToken"

	// RefreshTokenCookieName はリフレッシュトークンを保持するHTTP Only Cookieの名前。
	RefreshTokenCookieName = "refreshToken"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")

	// userIDHolderContextKey は外側のミドルウェアへユーザーIDを返すためのキー。
	userIDHolderContextKey = contextKey("user_id_holder")
)

// userIDHolder は認証ミドルウェアが解決したユーザーIDと認証方式を
// ロギングミドルウェアへ受け渡すための入れ物。
type userIDHolder struct {
	userID     string
	authMethod string // "bearer" または "cookie"
}

func withUserIDHolder(ctx context.Context, h *userIDHolder) context.Context {
	return context.WithValue(ctx, userIDHolderContextKey, h)
}

// ViewerResolver はアクセストークンから閲覧者IDを解決するインターフェース。
// auth.Serviceが実装する。
type ViewerResolver interface {
	ResolveViewer(accessToken string) (string, error)
}

// NewAuthMiddleware はAuthorizationヘッダー（Bearer）またはaccessToken Cookieから
// アクセストークンを読み取り、検証するミドルウェアを返す。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
// 未認証リクエストには401を返す。
func NewAuthMiddleware(resolver ViewerResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := extractAccessToken(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			userID, err := resolver.ResolveViewer(token)
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			if h, ok := r.Context().Value(userIDHolderContextKey).(*userIDHolder); ok {
				h.userID = userID
				h.authMethod = "bearer"
				if fromCookie {
					h.authMethod = "cookie"
				}
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractAccessToken はBearerヘッダーを優先してアクセストークンを取り出す。
// 2番目の戻り値はCookieから取得した場合にtrueとなる。
func extractAccessToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r); ok {
		return token, false
	}
	cookie, err := r.Cookie(AccessTokenCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
