package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/profile"
	"github.com/hitoshi/blogman/internal/validate"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, patch profile.ProfilePatch) (*model.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	ChangePreferences(ctx context.Context, userID string, values []string) ([]model.Category, error)
}

// ProfileHandler は /api/profile 配下のHTTPハンドラー。
type ProfileHandler struct {
	service   ProfileServiceInterface
	validator *validate.Validator
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface, v *validate.Validator) *ProfileHandler {
	return &ProfileHandler{service: service, validator: v}
}

type updateProfileRequest struct {
	Name        *string  `json:"name" validate:"omitempty,max=100"`
	Mobile      *string  `json:"mobile" validate:"omitempty,mobile"`
	DOB         *string  `json:"dob" validate:"omitempty,isodate"`
	Image       *string  `json:"image" validate:"omitempty,http_url"`
	Preferences []string `json:"preferences" validate:"omitempty,dive,category"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

type changePreferencesRequest struct {
	Preferences []string `json:"preferences" validate:"required,min=1,dive,category"`
}

// GetProfile はログインユーザーのプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile fetched successfully",
		"user":    toUserResponse(user),
	})
}

// UpdateProfile はプロフィールを部分更新する。
// POST /api/profile/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if req.Mobile != nil {
		trimmed := strings.TrimSpace(*req.Mobile)
		req.Mobile = &trimmed
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	patch := profile.ProfilePatch{
		Name:        req.Name,
		Mobile:      req.Mobile,
		Image:       req.Image,
		Preferences: req.Preferences,
	}
	if req.DOB != nil && *req.DOB != "" {
		dob, err := validate.ParseDate(*req.DOB)
		if err != nil {
			handleServiceError(w, r, model.NewValidationError("Valid dob is required"))
			return
		}
		patch.DOB = &dob
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    toUserResponse(user),
	})
}

// ChangePassword はパスワードを変更する。
// POST /api/profile/password
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// ChangePreferences は興味カテゴリを置き換える。
// POST /api/profile/preferences
func (h *ProfileHandler) ChangePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req changePreferencesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	prefs, err := h.service.ChangePreferences(r.Context(), userID, req.Preferences)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Preferences updated successfully.",
		"preferences": model.CategoryStrings(prefs),
	})
}
