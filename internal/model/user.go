// Package model はgenstudio全体で使うドメイン型を定義する。
package model

import "time"

// User はGoogleでサインインした利用者。
type User struct {
	ID    string
	Email string
	// Name はIdPの表示名。返されなければ空。
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName はNameが空ならEmailを返す。
func (u *User) DisplayName() string {
	if u.Name == "" {
		return u.Email
	}
	return u.Name
}

// Identity はUserとIdP上のアカウントの対応。(Provider, ProviderUserID)は一意。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はsession_idクッキーの値に対応するログイン状態。
// ExpiresAtを過ぎたものは存在しないものとして扱う。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
