package domain

// SocialIdentity is the (provider, external username) pair a social
// login presents. It resolves to at most one user per realm.
type SocialIdentity struct {
	Provider string `bson:"provider" json:"provider"`
	Username string `bson:"username" json:"username"`
}

// SocialLink binds a social identity to a local user within a realm.
//
//nolint:tagliatelle
type SocialLink struct {
	StoreID  string `bson:"_id,omitempty" json:"id,omitempty"`
	Provider string `bson:"provider" json:"provider"`
	Username string `bson:"username" json:"username"`
	RealmID  string `bson:"realm_id" json:"realm_id"`
	UserID   string `bson:"user_id" json:"user_id"`
}

func (*SocialLink) CollectionName() string { return SocialLinksCollection }

func (l *SocialLink) RecordID() string { return l.StoreID }

func (l *SocialLink) SetRecordID(id string) { l.StoreID = id }

// Identity returns the provider/username pair of the link.
func (l *SocialLink) Identity() SocialIdentity {
	return SocialIdentity{Provider: l.Provider, Username: l.Username}
}
