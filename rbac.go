package realm

import "go.pilab.hu/realm/domain"

// Evaluator answers membership questions over identifier lists already
// loaded onto records. It is stateless; checks are linear scans, which
// expected realm sizes keep cheap.
type Evaluator struct{}

// HasRoleID reports whether the user's role grants contain roleID.
func (Evaluator) HasRoleID(user *domain.User, roleID string) bool {
	return containsID(user.RoleIDs, roleID)
}

// HasScopeID reports whether the user's scope grants contain roleID.
func (Evaluator) HasScopeID(user *domain.User, roleID string) bool {
	return containsID(user.ScopeIDs, roleID)
}

// IsAdmin reports whether the user is listed as a realm admin.
func (Evaluator) IsAdmin(realm *domain.Realm, user *domain.User) bool {
	return containsID(realm.AdminUserIDs, user.StoreID)
}

// OwnedNames reduces resolved roles to the names of those owned by
// ownerID. Ids pointing at roles of another owner are dropped, so a
// tampered grant list never leaks foreign role names.
func (Evaluator) OwnedNames(roles []*domain.Role, ownerID string) map[string]struct{} {
	names := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if role.OwnerID == ownerID {
			names[role.Name] = struct{}{}
		}
	}
	return names
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
