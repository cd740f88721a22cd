package realm

import (
	"context"
	"errors"
	"fmt"

	"go.pilab.hu/realm/domain"
	"go.pilab.hu/realm/storage"
)

// Application provides the application-scoped view of role and scope
// operations. Application roles are owned by the application record,
// not the realm, so they never surface in realm-level role listings.
type Application struct {
	app   *domain.Application
	store storage.Store
	rbac  Evaluator
}

// Application wraps an application record loaded from this realm.
func (m *Manager) Application(app *domain.Application) *Application {
	return &Application{app: app, store: m.store}
}

// Record exposes the underlying application record.
func (a *Application) Record() *domain.Application { return a.app }

// Name returns the application name.
func (a *Application) Name() string { return a.app.Name }

// ServiceUser loads the application's backing service-account user.
func (a *Application) ServiceUser(ctx context.Context) (*domain.User, error) {
	var user domain.User
	err := a.store.Get(ctx, &user, a.app.ServiceUserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Role finds an application-scoped role by name. Returns nil when
// absent.
func (a *Application) Role(ctx context.Context, name string) (*domain.Role, error) {
	var role domain.Role
	err := a.store.FindOne(ctx, &role, storage.NewQuery().
		Eq("name", name).
		Eq("owner_id", a.app.StoreID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// AddRole creates an application-scoped role. Fails with
// ErrAlreadyExists when the name is taken within the application.
func (a *Application) AddRole(ctx context.Context, name string) (*domain.Role, error) {
	existing, err := a.Role(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("application role %q: %w", name, ErrAlreadyExists)
	}

	role := &domain.Role{Name: name, OwnerID: a.app.StoreID}
	if err := a.store.Save(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Roles lists the application's roles.
func (a *Application) Roles(ctx context.Context) ([]*domain.Role, error) {
	var roles []*domain.Role
	err := a.store.FindAll(ctx, &roles, storage.NewQuery().Eq("owner_id", a.app.StoreID))
	return roles, err
}

// AddScope grants the named application role as a scope to the agent.
// Fails with ErrNotFound when the application has no such role.
func (a *Application) AddScope(ctx context.Context, agent *domain.User, roleName string) error {
	role, err := a.Role(ctx, roleName)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("application role %q: %w", roleName, ErrNotFound)
	}
	return a.store.PushToList(ctx, agent, "scope_ids", role.StoreID)
}

// ScopeNames resolves the agent's scope grants to names, keeping only
// roles owned by this application.
func (a *Application) ScopeNames(ctx context.Context, agent *domain.User) (map[string]struct{}, error) {
	if len(agent.ScopeIDs) == 0 {
		return map[string]struct{}{}, nil
	}
	var roles []*domain.Role
	if err := a.store.FindAll(ctx, &roles, storage.NewQuery().In("_id", agent.ScopeIDs)); err != nil {
		return nil, err
	}
	return a.rbac.OwnedNames(roles, a.app.StoreID), nil
}
