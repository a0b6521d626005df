// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 記事の閲覧者（Viewer）としても扱われる。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Mobile       string
	DOB          *time.Time
	Image        string
	Preferences  []Category
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken は発行済みリフレッシュトークンの記録を表す。
// トークン本体は保持せず、ハッシュ値のみを保存する。
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
