package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/validate"
)

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn        func(ctx context.Context, in auth.RegisterInput) (*auth.Result, error)
	loginWithEmailFn  func(ctx context.Context, email, password string) (*auth.Result, error)
	loginWithMobileFn func(ctx context.Context, mobile, password string) (*auth.Result, error)
	refreshFn         func(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	logoutFn          func(ctx context.Context, refreshToken string) error
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.Result, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) LoginWithEmail(ctx context.Context, email, password string) (*auth.Result, error) {
	if m.loginWithEmailFn != nil {
		return m.loginWithEmailFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) LoginWithMobile(ctx context.Context, mobile, password string) (*auth.Result, error) {
	if m.loginWithMobileFn != nil {
		return m.loginWithMobileFn(ctx, mobile, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, model.NewUnauthenticatedError()
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, refreshToken)
	}
	return nil
}

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newTestAuthHandler(svc AuthServiceInterface) *AuthHandler {
	h := NewAuthHandler(svc, validate.New(), AuthHandlerConfig{CookieDomain: "example.com"})
	h.now = func() time.Time { return testNow }
	return h
}

func testAuthResult() *auth.Result {
	return &auth.Result{
		User: &model.User{
			ID:          "user-1",
			Name:        "Hana",
			Email:       "hana@example.com",
			Mobile:      "09012345678",
			Preferences: []model.Category{model.CategoryTechnology},
			CreatedAt:   testNow,
		},
		Tokens: auth.TokenPair{
			AccessToken:      "access-token",
			AccessExpiresAt:  testNow.Add(15 * time.Minute),
			RefreshToken:     "refresh-token",
			RefreshExpiresAt: testNow.Add(24 * time.Hour),
		},
	}
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- POST /api/auth/register ---

func TestAuthHandler_Register_Success(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*auth.Result, error) {
			if in.Name != "Hana" {
				t.Errorf("Name = %q, want trimmed %q", in.Name, "Hana")
			}
			if in.DOB == nil || !in.DOB.Equal(time.Date(1995, 7, 20, 0, 0, 0, 0, time.UTC)) {
				t.Errorf("DOB = %v", in.DOB)
			}
			if len(in.Preferences) != 2 {
				t.Errorf("Preferences = %v", in.Preferences)
			}
			return testAuthResult(), nil
		},
	}
	h := newTestAuthHandler(svc)

	req := jsonRequest(t, http.MethodPost, "/api/auth/register", map[string]any{
		"name":        "  Hana ",
		"email":       "hana@example.com",
		"password":    "secret1",
		"mobile":      "09012345678",
		"dob":         "1995-07-20",
		"preferences": []string{"technology", "music"},
	})
	w := httptest.NewRecorder()
	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusCreated, w.Body.String())
	}

	access := findCookie(w, middleware.AccessTokenCookieName)
	if access == nil || access.Value != "access-token" || !access.HttpOnly {
		t.Fatalf("access cookie = %+v", access)
	}
	if access.MaxAge != 900 {
		t.Errorf("access cookie MaxAge = %d, want 900", access.MaxAge)
	}
	if access.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax for insecure cookies", access.SameSite)
	}
	refresh := findCookie(w, middleware.RefreshTokenCookieName)
	if refresh == nil || refresh.MaxAge != 86400 {
		t.Errorf("refresh cookie = %+v", refresh)
	}

	body := decodeBody(t, w)
	if body["message"] != "User registered successfully." {
		t.Errorf("message = %v", body["message"])
	}
	if body["accessToken"] != "access-token" {
		t.Errorf("accessToken = %v", body["accessToken"])
	}
	user := body["user"].(map[string]any)
	if _, ok := user["passwordHash"]; ok {
		t.Error("password hash must never be serialized")
	}
	if user["email"] != "hana@example.com" {
		t.Errorf("user.email = %v", user["email"])
	}
}

func TestAuthHandler_Register_Rejections(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{
			"name":     "Hana",
			"email":    "hana@example.com",
			"password": "secret1",
			"mobile":   "09012345678",
			"dob":      "1995-07-20",
		}
	}
	tests := []struct {
		name   string
		mutate func(m map[string]any)
		code   string
	}{
		{"missing name", func(m map[string]any) { m["name"] = "   " }, model.ErrCodeValidation},
		{"bad email", func(m map[string]any) { m["email"] = "not-an-email" }, model.ErrCodeValidation},
		{"short password", func(m map[string]any) { m["password"] = "12345" }, model.ErrCodeValidation},
		{"bad mobile", func(m map[string]any) { m["mobile"] = "abc" }, model.ErrCodeValidation},
		{"bad dob", func(m map[string]any) { m["dob"] = "20/07/1995" }, model.ErrCodeValidation},
		{"bad image", func(m map[string]any) { m["image"] = "javascript:alert(1)" }, model.ErrCodeValidation},
		{"unknown preference", func(m map[string]any) { m["preferences"] = []string{"astrology"} }, model.ErrCodeInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := newTestAuthHandler(&mockAuthService{
				registerFn: func(ctx context.Context, in auth.RegisterInput) (*auth.Result, error) {
					called = true
					return testAuthResult(), nil
				},
			})
			body := valid()
			tt.mutate(body)

			w := httptest.NewRecorder()
			h.Register(w, jsonRequest(t, http.MethodPost, "/api/auth/register", body))

			assertAPIError(t, w, http.StatusBadRequest, tt.code)
			if called {
				t.Error("service must not be called for invalid input")
			}
		})
	}
}

func TestAuthHandler_Register_Duplicate(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{
		registerFn: func(ctx context.Context, in auth.RegisterInput) (*auth.Result, error) {
			return nil, model.NewUserAlreadyExistsError()
		},
	})

	w := httptest.NewRecorder()
	h.Register(w, jsonRequest(t, http.MethodPost, "/api/auth/register", map[string]any{
		"name": "Hana", "email": "hana@example.com", "password": "secret1",
		"mobile": "09012345678", "dob": "1995-07-20",
	}))

	assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeUserAlreadyExists)
	if findCookie(w, middleware.AccessTokenCookieName) != nil {
		t.Error("no cookie should be set on failure")
	}
}

// --- POST /api/auth/login-email, /login-mobile ---

func TestAuthHandler_LoginWithEmail(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{
		loginWithEmailFn: func(ctx context.Context, email, password string) (*auth.Result, error) {
			if email == "hana@example.com" && password == "secret1" {
				return testAuthResult(), nil
			}
			return nil, model.NewInvalidCredentialsError()
		},
	})

	w := httptest.NewRecorder()
	h.LoginWithEmail(w, jsonRequest(t, http.MethodPost, "/", map[string]string{"email": "hana@example.com", "password": "secret1"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if msg := decodeBody(t, w)["message"]; msg != "User logged in successfully." {
		t.Errorf("message = %v", msg)
	}

	w = httptest.NewRecorder()
	h.LoginWithEmail(w, jsonRequest(t, http.MethodPost, "/", map[string]string{"email": "hana@example.com", "password": "wrong"}))
	assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeInvalidCredentials)
}

func TestAuthHandler_LoginWithMobile(t *testing.T) {
	var gotMobile string
	h := newTestAuthHandler(&mockAuthService{
		loginWithMobileFn: func(ctx context.Context, mobile, password string) (*auth.Result, error) {
			gotMobile = mobile
			return testAuthResult(), nil
		},
	})

	w := httptest.NewRecorder()
	h.LoginWithMobile(w, jsonRequest(t, http.MethodPost, "/", map[string]string{"mobile": " 9876543210 ", "password": "secret1"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}
	if gotMobile != "9876543210" {
		t.Errorf("mobile = %q, want trimmed", gotMobile)
	}

	for _, mobile := range []string{"1234567890", "12345", "98765432101"} {
		w = httptest.NewRecorder()
		h.LoginWithMobile(w, jsonRequest(t, http.MethodPost, "/", map[string]string{"mobile": mobile, "password": "secret1"}))
		assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeValidation)
	}
}

// --- POST /api/auth/logout ---

func TestAuthHandler_Logout_RevokesAndClearsCookies(t *testing.T) {
	var revoked string
	h := newTestAuthHandler(&mockAuthService{
		logoutFn: func(ctx context.Context, refreshToken string) error {
			revoked = refreshToken
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookieName, Value: "refresh-token"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if revoked != "refresh-token" {
		t.Errorf("revoked = %q, want %q", revoked, "refresh-token")
	}
	for _, name := range []string{middleware.AccessTokenCookieName, middleware.RefreshTokenCookieName} {
		c := findCookie(w, name)
		if c == nil || c.MaxAge >= 0 {
			t.Errorf("cookie %s should be cleared, got %+v", name, c)
		}
	}
}

// --- POST /api/auth/refresh-token ---

func TestAuthHandler_RefreshToken_FromCookieOrBody(t *testing.T) {
	pair := testAuthResult().Tokens
	var got []string
	h := newTestAuthHandler(&mockAuthService{
		refreshFn: func(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
			got = append(got, refreshToken)
			return &pair, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookieName, Value: "from-cookie"})
	w := httptest.NewRecorder()
	h.RefreshToken(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if msg := decodeBody(t, w)["message"]; msg != "Access token updated successfully." {
		t.Errorf("message = %v", msg)
	}

	w = httptest.NewRecorder()
	h.RefreshToken(w, jsonRequest(t, http.MethodPost, "/api/auth/refresh-token", map[string]string{"refreshToken": "from-body"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	if len(got) != 2 || got[0] != "from-cookie" || got[1] != "from-body" {
		t.Errorf("tokens passed to service = %v", got)
	}
}

func TestAuthHandler_RefreshToken_Unauthenticated(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	w := httptest.NewRecorder()
	h.RefreshToken(w, httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil))

	assertAPIError(t, w, http.StatusUnauthorized, model.ErrCodeUnauthenticated)
}
