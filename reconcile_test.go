package realm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	realm "go.pilab.hu/realm"
	"go.pilab.hu/realm/domain"
)

func declOf(id, typeName string) *domain.RequiredCredential {
	return &domain.RequiredCredential{StoreID: id, Type: typeName}
}

func TestCredentialDelta(t *testing.T) {
	tests := []struct {
		name       string
		current    []*domain.RequiredCredential
		desired    []string
		wantDelete []string // store ids
		wantCreate []string
	}{
		{
			name:       "empty to empty",
			wantDelete: nil,
			wantCreate: nil,
		},
		{
			name:       "create all from scratch",
			desired:    []string{"password", "totp"},
			wantCreate: []string{"password", "totp"},
		},
		{
			name:       "delete all",
			current:    []*domain.RequiredCredential{declOf("1", "password"), declOf("2", "totp")},
			wantDelete: []string{"1", "2"},
		},
		{
			name:       "mixed delta keeps the intersection",
			current:    []*domain.RequiredCredential{declOf("1", "password"), declOf("2", "totp")},
			desired:    []string{"totp", "cert"},
			wantDelete: []string{"1"},
			wantCreate: []string{"cert"},
		},
		{
			name:    "no-op when sets match",
			current: []*domain.RequiredCredential{declOf("1", "password")},
			desired: []string{"password"},
		},
		{
			name:       "duplicate declarations collapse to one",
			current:    []*domain.RequiredCredential{declOf("1", "password"), declOf("2", "password")},
			desired:    []string{"password"},
			wantDelete: []string{"2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toDelete, toCreate := realm.CredentialDelta(tt.current, tt.desired)

			deleteIDs := make([]string, 0, len(toDelete))
			for _, decl := range toDelete {
				deleteIDs = append(deleteIDs, decl.StoreID)
			}
			assert.ElementsMatch(t, tt.wantDelete, deleteIDs)
			assert.ElementsMatch(t, tt.wantCreate, toCreate)
		})
	}
}
