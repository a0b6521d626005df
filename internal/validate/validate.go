// Package validate はリクエストDTOの入力値検証を提供する。
// go-playground/validatorにドメイン固有のルール（category, mobile, loginmobile, isodate）を登録して使用する。
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/blogman/internal/model"
)

var (
	mobilePattern      = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	loginMobilePattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// loginMobileDenylist はログイン時に拒否するダミー番号。
var loginMobileDenylist = map[string]struct{}{
	"1234567890": {},
	"1111111111": {},
}

// Validator はvalidator.Validateのラッパー。ゴルーチンセーフ。
type Validator struct {
	v *validator.Validate
}

// New はドメインルールを登録したValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// エラーメッセージにはJSONのフィールド名を使う
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "category", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).IsValid()
	})
	mustRegister(v, "mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "loginmobile", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if _, denied := loginMobileDenylist[s]; denied {
			return false
		}
		return loginMobilePattern.MatchString(s)
	})
	mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validate: failed to register %q: %v", tag, err))
	}
}

// Struct は構造体を検証し、最初の違反を*model.APIErrorとして返す。
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "category" {
			return model.NewInvalidCategoryError(fmt.Sprint(fe.Value()))
		}
		return model.NewValidationError(message(fe))
	}
	return fmt.Errorf("validation failed: %w", err)
}

// message はFieldErrorを利用者向けの英語メッセージに変換する。
func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Valid email is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "mobile", "loginmobile":
		return "Valid mobile number is required"
	case "isodate":
		return fmt.Sprintf("Valid %s is required", field)
	case "eqfield":
		return fmt.Sprintf("%s must match %s", field, fe.Param())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// ParseDate はISO 8601形式の日付（YYYY-MM-DD または RFC 3339）を解析する。
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
