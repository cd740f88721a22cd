package domain

// ClientCategory selects which actor category a required-credential
// declaration applies to.
type ClientCategory int

const (
	ClientCategoryUser ClientCategory = iota + 1
	ClientCategoryApplication
	ClientCategoryOAuthClient
)

func (c ClientCategory) String() string {
	switch c {
	case ClientCategoryUser:
		return "user"
	case ClientCategoryApplication:
		return "application"
	case ClientCategoryOAuthClient:
		return "oauth_client"
	default:
		return "unknown"
	}
}

// RequiredCredential declares that actors of a given category in a realm
// must supply a credential of this type. At most one declaration per
// (realm, category, type) exists after reconciliation.
//
//nolint:tagliatelle
type RequiredCredential struct {
	StoreID   string         `bson:"_id,omitempty" json:"id,omitempty"`
	Type      string         `bson:"type" json:"type"`
	FormLabel string         `bson:"form_label" json:"form_label"`
	Input     bool           `bson:"input" json:"input"`
	Secret    bool           `bson:"secret" json:"secret"`
	RealmID   string         `bson:"realm_id" json:"realm_id"`
	Category  ClientCategory `bson:"category" json:"category"`
}

func (*RequiredCredential) CollectionName() string { return RequiredCredentialsCollection }

func (c *RequiredCredential) RecordID() string { return c.StoreID }

func (c *RequiredCredential) SetRecordID(id string) { c.StoreID = id }
