package realm

import "go.pilab.hu/realm/domain"

// CredentialDelta computes what must change so that the stored
// required-credential declarations become exactly the desired type set.
// It is a pure function; the Manager applies deletions before
// creations, with no atomicity across the batch.
func CredentialDelta(current []*domain.RequiredCredential, desired []string) (toDelete []*domain.RequiredCredential, toCreate []string) {
	want := make(map[string]struct{}, len(desired))
	for _, typeName := range desired {
		want[typeName] = struct{}{}
	}

	have := make(map[string]struct{}, len(current))
	for _, decl := range current {
		if _, ok := want[decl.Type]; !ok {
			toDelete = append(toDelete, decl)
			continue
		}
		// Duplicate declarations of a retained type collapse to one, so
		// exactly one declaration per type remains afterwards.
		if _, dup := have[decl.Type]; dup {
			toDelete = append(toDelete, decl)
			continue
		}
		have[decl.Type] = struct{}{}
	}

	for _, typeName := range desired {
		if _, ok := have[typeName]; !ok {
			toCreate = append(toCreate, typeName)
		}
	}
	return toDelete, toCreate
}
