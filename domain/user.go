package domain

import "time"

// User is a realm-scoped account. Applications get one too: the
// service-account user created alongside the application record.
//
//nolint:tagliatelle
type User struct {
	StoreID   string `bson:"_id,omitempty" json:"id,omitempty"`
	LoginName string `bson:"login_name" json:"login_name"`
	Enabled   bool   `bson:"enabled" json:"enabled"`
	RealmID   string `bson:"realm_id" json:"realm_id"`

	// RoleIDs are general role grants; ScopeIDs are role grants applied
	// in the context of a specific application/agent relationship.
	RoleIDs  []string `bson:"role_ids,omitempty" json:"role_ids,omitempty"`
	ScopeIDs []string `bson:"scope_ids,omitempty" json:"scope_ids,omitempty"`

	// Credential material managed by the credential handlers.
	PasswordHash string `bson:"password_hash,omitempty" json:"-"`
	TOTPSecret   string `bson:"totp_secret,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (*User) CollectionName() string { return UsersCollection }

func (u *User) RecordID() string { return u.StoreID }

func (u *User) SetRecordID(id string) { u.StoreID = id }
