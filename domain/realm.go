package domain

// Collection names for realm-scoped records.
const (
	RealmsCollection              = "realms"
	UsersCollection               = "realm_users"
	RolesCollection               = "realm_roles"
	ApplicationsCollection        = "realm_applications"
	RequiredCredentialsCollection = "realm_required_credentials"
	SocialLinksCollection         = "realm_social_links"
)

// Realm is the aggregate root of a tenant. Every other record in this
// package references its owning realm through the store-assigned id
// (StoreID), not the externally visible realm identifier.
//
//nolint:tagliatelle
type Realm struct {
	StoreID string `bson:"_id,omitempty" json:"-"`
	// ID is the externally assigned realm identifier, stable across
	// environments. StoreID is what child records point at.
	ID      string `bson:"realm_id" json:"id"`
	Name    string `bson:"name" json:"name"`
	Enabled bool   `bson:"enabled" json:"enabled"`

	Social                       bool `bson:"social" json:"social"`
	AutoRegisterAfterSocialLogin bool `bson:"auto_register_after_social_login" json:"auto_register_after_social_login"`

	SSLNotRequired      bool `bson:"ssl_not_required" json:"ssl_not_required"`
	CookieLoginAllowed  bool `bson:"cookie_login_allowed" json:"cookie_login_allowed"`
	RegistrationAllowed bool `bson:"registration_allowed" json:"registration_allowed"`

	// Lifespans are in seconds.
	TokenLifespan      int `bson:"token_lifespan" json:"token_lifespan"`
	AccessCodeLifespan int `bson:"access_code_lifespan" json:"access_code_lifespan"`

	// Key material is stored as base64 DER, PEM armor stripped.
	PublicKeyPEM  string `bson:"public_key_pem,omitempty" json:"public_key_pem,omitempty"`
	PrivateKeyPEM string `bson:"private_key_pem,omitempty" json:"-"`

	DefaultRoleIDs []string `bson:"default_role_ids,omitempty" json:"default_role_ids,omitempty"`
	AdminUserIDs   []string `bson:"admin_user_ids,omitempty" json:"admin_user_ids,omitempty"`
}

func (*Realm) CollectionName() string { return RealmsCollection }

func (r *Realm) RecordID() string { return r.StoreID }

func (r *Realm) SetRecordID(id string) { r.StoreID = id }
