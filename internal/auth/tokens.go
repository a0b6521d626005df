package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/model"
)

// Claims はアクセストークン・リフレッシュトークン共通のクレーム。
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenConfig はトークン発行の設定。
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenIssuer はHS256署名のJWTを発行・検証する。
// アクセストークンとリフレッシュトークンは別の秘密鍵で署名する。
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

// IssueAccess はアクセストークンを発行し、トークンと有効期限を返す。
func (t *TokenIssuer) IssueAccess(user *model.User) (string, time.Time, error) {
	return t.sign(user, t.accessSecret, t.accessTTL)
}

// IssueRefresh はリフレッシュトークンを発行し、トークンと有効期限を返す。
func (t *TokenIssuer) IssueRefresh(user *model.User) (string, time.Time, error) {
	return t.sign(user, t.refreshSecret, t.refreshTTL)
}

// ParseAccess はアクセストークンを検証してクレームを返す。
func (t *TokenIssuer) ParseAccess(token string) (*Claims, error) {
	return parse(token, t.accessSecret)
}

// ParseRefresh はリフレッシュトークンを検証してクレームを返す。
func (t *TokenIssuer) ParseRefresh(token string) (*Claims, error) {
	return parse(token, t.refreshSecret)
}

// HashRefresh はリフレッシュトークンの保存用ハッシュ（HMAC-SHA256, 16進64文字）を返す。
func (t *TokenIssuer) HashRefresh(token string) string {
	m := hmac.New(sha256.New, t.refreshSecret)
	m.Write([]byte(token))
	return hex.EncodeToString(m.Sum(nil))
}

// AccessTTL はアクセストークンの有効期間を返す。
func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL はリフレッシュトークンの有効期間を返す。
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// sign はアクセス・リフレッシュ共通の署名処理。
// 同一秒内の再発行でも値が重複しないよう、jtiに乱数IDを設定する。
func (t *TokenIssuer) sign(user *model.User, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(ttl)
	claims := Claims{
		ID:    user.ID,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}
	return signed, exp, nil
}

func parse(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("トークンが不正です: %w", err)
	}
	if !parsed.Valid || claims.ID == "" {
		return nil, errors.New("トークンのクレームが不正です")
	}
	return claims, nil
}
