package domain

// Application is an OAuth/OIDC relying party registered within a realm,
// backed by a service-account user whose login name equals the
// application name.
//
//nolint:tagliatelle
type Application struct {
	StoreID       string `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string `bson:"name" json:"name"`
	RealmID       string `bson:"realm_id" json:"realm_id"`
	ServiceUserID string `bson:"service_user_id" json:"service_user_id"`
}

func (*Application) CollectionName() string { return ApplicationsCollection }

func (a *Application) RecordID() string { return a.StoreID }

func (a *Application) SetRecordID(id string) { a.StoreID = id }
