package model

import "strings"

// Category は記事の分類、およびユーザーの興味カテゴリを表す。
type Category string

// 定義済みカテゴリ
const (
	CategoryTravel       Category = "travel"
	CategoryFood         Category = "food"
	CategoryLifestyle    Category = "lifestyle"
	CategoryFitness      Category = "fitness"
	CategoryTechnology   Category = "technology"
	CategoryGaming       Category = "gaming"
	CategoryFashion      Category = "fashion"
	CategoryEducation    Category = "education"
	CategoryMusic        Category = "music"
	CategoryDailyRoutine Category = "daily routine"
)

// AllCategories は定義済みカテゴリの一覧（表示順）。
var AllCategories = []Category{
	CategoryTravel,
	CategoryFood,
	CategoryLifestyle,
	CategoryFitness,
	CategoryTechnology,
	CategoryGaming,
	CategoryFashion,
	CategoryEducation,
	CategoryMusic,
	CategoryDailyRoutine,
}

// DefaultPreferences は新規ユーザーの初期興味カテゴリを返す。
func DefaultPreferences() []Category {
	return []Category{CategoryTechnology}
}

// IsValid は定義済みカテゴリかどうかを返す。
func (c Category) IsValid() bool {
	for _, v := range AllCategories {
		if c == v {
			return true
		}
	}
	return false
}

// ParseCategories は文字列のスライスをカテゴリに変換する。
// 空、または未定義の値を含む場合はAPIErrorを返す。重複は除去する。
func ParseCategories(values []string) ([]Category, error) {
	if len(values) == 0 {
		return nil, NewEmptyCategoriesError()
	}

	seen := make(map[Category]struct{}, len(values))
	result := make([]Category, 0, len(values))
	for _, v := range values {
		c := Category(strings.TrimSpace(v))
		if !c.IsValid() {
			return nil, NewInvalidCategoryError(v)
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		result = append(result, c)
	}
	return result, nil
}

// CategoryStrings はカテゴリを文字列のスライスに変換する。
func CategoryStrings(cs []Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// Overlaps は2つのカテゴリ集合に共通要素があるかを返す。
func Overlaps(a, b []Category) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
