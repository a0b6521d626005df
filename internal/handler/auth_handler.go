package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/validate"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Result, error)
	LoginWithEmail(ctx context.Context, email, password string) (*auth.Result, error)
	LoginWithMobile(ctx context.Context, mobile, password string) (*auth.Result, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler は登録・ログイン・トークン更新のHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	validator *validate.Validator
	config    AuthHandlerConfig
	now       func() time.Time
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, v *validate.Validator, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: v,
		config:    config,
		now:       time.Now,
	}
}

type registerRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=6,max=72"`
	Mobile      string   `json:"mobile" validate:"required,mobile"`
	DOB         string   `json:"dob" validate:"required,isodate"`
	Image       string   `json:"image" validate:"omitempty,http_url"`
	Preferences []string `json:"preferences" validate:"omitempty,dive,category"`
}

type loginEmailRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginMobileRequest struct {
	Mobile   string `json:"mobile" validate:"required,loginmobile"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// authResponse は登録・ログインのレスポンス。
// Bearerで認証するクライアント向けにトークンもボディに含める。
type authResponse struct {
	Message          string       `json:"message"`
	User             userResponse `json:"user"`
	AccessToken      string       `json:"accessToken"`
	AccessExpiresAt  time.Time    `json:"accessTokenExpiresAt"`
	RefreshToken     string       `json:"refreshToken"`
	RefreshExpiresAt time.Time    `json:"refreshTokenExpiresAt"`
}

// Register はユーザー登録を処理する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Mobile = strings.TrimSpace(req.Mobile)
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	dob, _ := validate.ParseDate(req.DOB)
	res, err := h.service.Register(r.Context(), auth.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Mobile:      req.Mobile,
		DOB:         &dob,
		Image:       req.Image,
		Preferences: req.Preferences,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setTokenCookies(w, res.Tokens)
	writeJSON(w, http.StatusCreated, newAuthResponse("User registered successfully.", res))
}

// LoginWithEmail はメールアドレスとパスワードでログインする。
// POST /api/auth/login-email
func (h *AuthHandler) LoginWithEmail(w http.ResponseWriter, r *http.Request) {
	var req loginEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.LoginWithEmail(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setTokenCookies(w, res.Tokens)
	writeJSON(w, http.StatusOK, newAuthResponse("User logged in successfully.", res))
}

// LoginWithMobile は電話番号とパスワードでログインする。
// POST /api/auth/login-mobile
func (h *AuthHandler) LoginWithMobile(w http.ResponseWriter, r *http.Request) {
	var req loginMobileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	req.Mobile = strings.TrimSpace(req.Mobile)
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.LoginWithMobile(r.Context(), req.Mobile, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setTokenCookies(w, res.Tokens)
	writeJSON(w, http.StatusOK, newAuthResponse("User logged in successfully.", res))
}

// Logout はリフレッシュトークンを失効させ、認証Cookieを削除する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), refreshTokenFrom(r)); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.clearTokenCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User logged out successfully."})
}

// RefreshToken はリフレッシュトークンから新しいトークンペアを発行する。
// POST /api/auth/refresh-token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	pair, err := h.service.Refresh(r.Context(), refreshTokenFrom(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setTokenCookies(w, *pair)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":               "Access token updated successfully.",
		"accessToken":           pair.AccessToken,
		"accessTokenExpiresAt":  pair.AccessExpiresAt,
		"refreshToken":          pair.RefreshToken,
		"refreshTokenExpiresAt": pair.RefreshExpiresAt,
	})
}

// refreshTokenFrom はCookieを優先し、無ければJSONボディからリフレッシュトークンを取り出す。
func refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(middleware.RefreshTokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	var req refreshRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func newAuthResponse(message string, res *auth.Result) authResponse {
	return authResponse{
		Message:          message,
		User:             toUserResponse(res.User),
		AccessToken:      res.Tokens.AccessToken,
		AccessExpiresAt:  res.Tokens.AccessExpiresAt,
		RefreshToken:     res.Tokens.RefreshToken,
		RefreshExpiresAt: res.Tokens.RefreshExpiresAt,
	}
}

// setTokenCookies はアクセストークンとリフレッシュトークンをHTTP Only Cookieに設定する。
func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, pair auth.TokenPair) {
	now := h.now()
	h.setCookie(w, middleware.AccessTokenCookieName, pair.AccessToken, int(pair.AccessExpiresAt.Sub(now).Seconds()))
	h.setCookie(w, middleware.RefreshTokenCookieName, pair.RefreshToken, int(pair.RefreshExpiresAt.Sub(now).Seconds()))
}

func (h *AuthHandler) clearTokenCookies(w http.ResponseWriter) {
	h.setCookie(w, middleware.AccessTokenCookieName, "", -1)
	h.setCookie(w, middleware.RefreshTokenCookieName, "", -1)
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	sameSite := http.SameSiteLaxMode
	if h.config.CookieSecure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: sameSite,
	})
}
