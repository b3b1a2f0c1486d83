// Package repository はPostgreSQLに置くユーザー、IdP紐付け、セッションの読み書きを扱う。
// 見つからない行はエラーではなくnilで返す。
package repository

import (
	"context"

	"github.com/hitoshi/genstudio/internal/model"
)

// UserRepository はusersテーブルへのアクセス。
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	// CreateWithIdentity は初回ログイン時にuserとidentityをまとめて作る。片方だけ残ることはない。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
	// UpdateProfile はIdP側で変わったメールアドレスと表示名を反映する。
	UpdateProfile(ctx context.Context, id, email, name string) error
}

// IdentityRepository はidentitiesテーブルへのアクセス。
type IdentityRepository interface {
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はsessionsテーブルへのアクセス。
// FindByIDは期限切れのセッションを返さない。
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

type rowScanner interface {
	Scan(dest ...any) error
}
