package model

import (
	"slices"
	"time"
)

// Blog はユーザーが投稿した記事を表す。
// LikedBy / DislikedBy / BlockedUsers はユーザーIDの集合として扱う。
// LikeCount / DislikeCount は集合のサイズから導出され、Recount以外で書き換えない。
type Blog struct {
	ID           string
	AuthorID     string
	Title        string
	Content      string
	Tags         []string
	Categories   []Category
	Image        string
	IsPublished  bool
	LikedBy      []string
	DislikedBy   []string
	BlockedUsers []string
	LikeCount    int
	DislikeCount int
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Author は一覧・詳細表示用に結合された投稿者情報（任意）。
	Author *AuthorSummary
}

// AuthorSummary は記事に付随して返す投稿者の公開情報。
type AuthorSummary struct {
	ID    string
	Name  string
	Email string
	Image string
}

// ReactionCounts はリアクション操作後の件数を表す。
type ReactionCounts struct {
	LikeCount    int
	DislikeCount int
}

// Recount は集合のサイズから件数を再計算する。
func (b *Blog) Recount() {
	b.LikeCount = len(b.LikedBy)
	b.DislikeCount = len(b.DislikedBy)
}

// Counts は現在の件数を返す。
func (b *Blog) Counts() ReactionCounts {
	return ReactionCounts{LikeCount: b.LikeCount, DislikeCount: b.DislikeCount}
}

// IsAuthor は指定ユーザーが投稿者かどうかを返す。
func (b *Blog) IsAuthor(userID string) bool {
	return b.AuthorID == userID
}

// IsBlocked は指定ユーザーがブロックされているかを返す。
func (b *Blog) IsBlocked(userID string) bool {
	return slices.Contains(b.BlockedUsers, userID)
}

// Clone は集合フィールドを含めて記事を複製する。
func (b *Blog) Clone() *Blog {
	c := *b
	c.Tags = slices.Clone(b.Tags)
	c.Categories = slices.Clone(b.Categories)
	c.LikedBy = slices.Clone(b.LikedBy)
	c.DislikedBy = slices.Clone(b.DislikedBy)
	c.BlockedUsers = slices.Clone(b.BlockedUsers)
	if b.Author != nil {
		a := *b.Author
		c.Author = &a
	}
	return &c
}
