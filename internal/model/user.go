// Package model はドメインモデルを定義する。
package model

import (
	"net/mail"
	"time"
)

// User は購入Webhookによって払い出されたアカウントを表す。
// emailは保存されたとおりの大文字小文字で一意となる。
type User struct {
	ID             string
	Email          string
	PasswordHash   string // 書き込み専用。レスポンスやログには出さない
	EmailConfirmed bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsValidEmail はsが表示名や山括弧を含まない単一のメールアドレスかを判定する。
func IsValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
