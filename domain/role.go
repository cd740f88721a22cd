package domain

// WildcardRole is granted to an application, and as a scope to its
// service-account user, when the application is created.
const WildcardRole = "*"

// Role is a named permission grouping. OwnerID is the store id of the
// owning realm, or of the owning application for application-scoped
// roles (the wildcard role created with an application). Membership
// reads filter on OwnerID, so roles never leak across that boundary.
//
//nolint:tagliatelle
type Role struct {
	StoreID string `bson:"_id,omitempty" json:"id,omitempty"`
	Name    string `bson:"name" json:"name"`
	OwnerID string `bson:"owner_id" json:"owner_id"`
}

func (*Role) CollectionName() string { return RolesCollection }

func (r *Role) RecordID() string { return r.StoreID }

func (r *Role) SetRecordID(id string) { r.StoreID = id }
