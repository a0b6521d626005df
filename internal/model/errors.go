// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, blog, profile, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeBlogNotFound       = "BLOG_NOT_FOUND"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeInvalidCategory    = "INVALID_CATEGORY"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeUserAlreadyExists  = "USER_ALREADY_EXISTS"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeIncorrectPassword  = "INCORRECT_CURRENT_PASSWORD"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidImageURL    = "INVALID_IMAGE_URL"
	ErrCodeReactionConflict   = "REACTION_CONFLICT"
	ErrCodeEditConflict       = "EDIT_CONFLICT"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeRouteNotFound      = "ROUTE_NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
)

// NewBlogNotFoundError は記事未検出エラーを生成する。
// 存在しない記事と閲覧できない記事を区別しない。
func NewBlogNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeBlogNotFound,
		Message:  "Blog not found.",
		Category: "blog",
		Action:   "記事IDを確認してください。",
	}
}

// NewForbiddenError は操作権限がない場合のエラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  reason,
		Category: "auth",
		Action:   "この操作を行う権限がありません。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidIDError はID形式が不正な場合のエラーを生成する。
func NewInvalidIDError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("無効なIDです: %s", id),
		Category: "validation",
		Action:   "正しいID形式（UUID）を指定してください。",
	}
}

// NewInvalidCategoryError は未定義のカテゴリが指定された場合のエラーを生成する。
func NewInvalidCategoryError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("Invalid preferences selected: %s", value),
		Category: "validation",
		Action:   "travel, food, lifestyle, fitness, technology, gaming, fashion, education, music, daily routine から選択してください。",
	}
}

// NewEmptyCategoriesError はカテゴリが1件も指定されていない場合のエラーを生成する。
func NewEmptyCategoriesError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  "At least one preference must be selected.",
		Category: "validation",
		Action:   "カテゴリを1件以上選択してください。",
	}
}

// NewUnauthenticatedError は認証されていない場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewUserAlreadyExistsError は登録済みメールアドレスでの登録エラーを生成する。
func NewUserAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserAlreadyExists,
		Message:  "User already exists",
		Category: "auth",
		Action:   "別のメールアドレスで登録するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
		Action:   "メールアドレス（または電話番号）とパスワードを確認してください。",
	}
}

// NewIncorrectPasswordError は現在のパスワードが一致しない場合のエラーを生成する。
func NewIncorrectPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeIncorrectPassword,
		Message:  "Current password is incorrect",
		Category: "profile",
		Action:   "現在のパスワードを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidImageURLError は画像URLが利用できない場合のエラーを生成する。
func NewInvalidImageURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageURL,
		Message:  fmt.Sprintf("画像URLが無効です: %s", reason),
		Category: "validation",
		Action:   "公開されている画像のURL（http:// または https://）を指定してください。",
	}
}

// NewReactionConflictError は同時更新が解消できなかった場合のエラーを生成する。
func NewReactionConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeReactionConflict,
		Message:  "記事が同時に更新されたため、操作を完了できませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewEditConflictError は記事の編集が同時更新により保存できなかった場合のエラーを生成する。
func NewEditConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeEditConflict,
		Message:  "記事が同時に編集されたため、変更を保存できませんでした。",
		Category: "blog",
		Action:   "記事を再読み込みしてから再度編集してください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewRouteNotFoundError は存在しないエンドポイントへのリクエストのエラーを生成する。
func NewRouteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRouteNotFound,
		Message:  "Route not found.",
		Category: "system",
		Action:   "リクエストURLを確認してください。",
	}
}

// NewMethodNotAllowedError は許可されていないHTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "Method not allowed.",
		Category: "system",
		Action:   "HTTPメソッドを確認してください。",
	}
}

// IsCode はerrが指定コードの*APIErrorかどうかを返す。
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
