// Package realm implements the realm aggregate: realm-scoped lifecycle
// of users, roles, applications, required-credential declarations and
// social-identity bindings, with per-realm uniqueness and ownership
// checks enforced on every operation.
package realm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/realm/domain"
	"go.pilab.hu/realm/storage"
)

// Manager owns the in-memory representation of one realm and is the
// only writer of its realm-scoped entities. It is not safe for
// concurrent mutation of the same realm from multiple Managers: the
// store's list append is the only multi-writer-safe primitive, and
// compound operations are not transactional.
type Manager struct {
	realm *domain.Realm
	store storage.Store

	keys     keyMaterial
	rbac     Evaluator
	handlers map[string]CredentialHandler
	log      zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithCredentialHandler installs or replaces the handler for a
// credential type.
func WithCredentialHandler(typeName string, h CredentialHandler) Option {
	return func(m *Manager) { m.handlers[typeName] = h }
}

// WithLogger replaces the default package logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.log = logger }
}

// NewManager creates a Manager over an already-loaded realm record.
// Password and one-time-password handlers are installed by default and
// can be overridden per realm.
func NewManager(realm *domain.Realm, store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		realm: realm,
		store: store,
		handlers: map[string]CredentialHandler{
			domain.CredentialPassword: NewPasswordHandler(0),
			domain.CredentialTOTP:     TOTPHandler{},
		},
		log: log.Logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With().Str("realm", realm.ID).Logger()
	return m
}

// Record exposes the underlying realm record.
func (m *Manager) Record() *domain.Realm { return m.realm }

// oid is the store-assigned realm identifier child records point at.
func (m *Manager) oid() string { return m.realm.StoreID }

func (m *Manager) updateRealm(ctx context.Context) error {
	return m.store.Save(ctx, m.realm)
}

// --- realm fields -----------------------------------------------------

func (m *Manager) ID() string   { return m.realm.ID }
func (m *Manager) Name() string { return m.realm.Name }

func (m *Manager) SetName(ctx context.Context, name string) error {
	m.realm.Name = name
	return m.updateRealm(ctx)
}

func (m *Manager) Enabled() bool { return m.realm.Enabled }

func (m *Manager) SetEnabled(ctx context.Context, enabled bool) error {
	m.realm.Enabled = enabled
	return m.updateRealm(ctx)
}

func (m *Manager) Social() bool { return m.realm.Social }

func (m *Manager) SetSocial(ctx context.Context, social bool) error {
	m.realm.Social = social
	return m.updateRealm(ctx)
}

func (m *Manager) AutoRegisterAfterSocialLogin() bool {
	return m.realm.AutoRegisterAfterSocialLogin
}

func (m *Manager) SetAutoRegisterAfterSocialLogin(ctx context.Context, auto bool) error {
	m.realm.AutoRegisterAfterSocialLogin = auto
	return m.updateRealm(ctx)
}

func (m *Manager) SSLNotRequired() bool { return m.realm.SSLNotRequired }

func (m *Manager) SetSSLNotRequired(ctx context.Context, notRequired bool) error {
	m.realm.SSLNotRequired = notRequired
	return m.updateRealm(ctx)
}

func (m *Manager) CookieLoginAllowed() bool { return m.realm.CookieLoginAllowed }

func (m *Manager) SetCookieLoginAllowed(ctx context.Context, allowed bool) error {
	m.realm.CookieLoginAllowed = allowed
	return m.updateRealm(ctx)
}

func (m *Manager) RegistrationAllowed() bool { return m.realm.RegistrationAllowed }

func (m *Manager) SetRegistrationAllowed(ctx context.Context, allowed bool) error {
	m.realm.RegistrationAllowed = allowed
	return m.updateRealm(ctx)
}

// TokenLifespan is the token lifetime in seconds.
func (m *Manager) TokenLifespan() int { return m.realm.TokenLifespan }

func (m *Manager) SetTokenLifespan(ctx context.Context, seconds int) error {
	m.realm.TokenLifespan = seconds
	return m.updateRealm(ctx)
}

// AccessCodeLifespan is the access-code lifetime in seconds.
func (m *Manager) AccessCodeLifespan() int { return m.realm.AccessCodeLifespan }

func (m *Manager) SetAccessCodeLifespan(ctx context.Context, seconds int) error {
	m.realm.AccessCodeLifespan = seconds
	return m.updateRealm(ctx)
}

func (m *Manager) PublicKeyPEM() string  { return m.realm.PublicKeyPEM }
func (m *Manager) PrivateKeyPEM() string { return m.realm.PrivateKeyPEM }

// --- users ------------------------------------------------------------

// User finds a user by login name within the realm. Returns nil when no
// such user exists.
func (m *Manager) User(ctx context.Context, loginName string) (*domain.User, error) {
	var user domain.User
	err := m.store.FindOne(ctx, &user, storage.NewQuery().
		Eq("login_name", loginName).
		Eq("realm_id", m.oid()))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AddUser creates an enabled user with the given login name. Fails with
// ErrAlreadyExists when the login name is taken within the realm.
func (m *Manager) AddUser(ctx context.Context, loginName string) (*domain.User, error) {
	existing, err := m.User(ctx, loginName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user %q: %w", loginName, ErrAlreadyExists)
	}

	now := time.Now().UTC()
	user := &domain.User{
		LoginName: loginName,
		Enabled:   true,
		RealmID:   m.oid(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RemoveUser deletes the user with the given login name, if any.
func (m *Manager) RemoveUser(ctx context.Context, loginName string) error {
	return m.store.DeleteAll(ctx, domain.UsersCollection, storage.NewQuery().
		Eq("login_name", loginName).
		Eq("realm_id", m.oid()))
}

// --- roles ------------------------------------------------------------

// Role finds a realm role by name. Returns nil when absent.
func (m *Manager) Role(ctx context.Context, name string) (*domain.Role, error) {
	var role domain.Role
	err := m.store.FindOne(ctx, &role, storage.NewQuery().
		Eq("name", name).
		Eq("owner_id", m.oid()))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// AddRole creates a realm role. Fails with ErrAlreadyExists when the
// name is taken within the realm.
func (m *Manager) AddRole(ctx context.Context, name string) (*domain.Role, error) {
	existing, err := m.Role(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("role %q: %w", name, ErrAlreadyExists)
	}

	role := &domain.Role{Name: name, OwnerID: m.oid()}
	if err := m.store.Save(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Roles lists every role owned by the realm. Order is not guaranteed.
func (m *Manager) Roles(ctx context.Context) ([]*domain.Role, error) {
	var roles []*domain.Role
	err := m.store.FindAll(ctx, &roles, storage.NewQuery().Eq("owner_id", m.oid()))
	return roles, err
}

// RoleByID loads a role by identifier. A role that exists but is owned
// by another realm (or by an application) is treated as absent.
func (m *Manager) RoleByID(ctx context.Context, id string) (*domain.Role, error) {
	var role domain.Role
	err := m.store.Get(ctx, &role, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if role.OwnerID != m.oid() {
		return nil, nil
	}
	return &role, nil
}

// DefaultRoles resolves the realm's default-role identifier list.
// Identifiers that no longer resolve are dropped from the result; the
// stored list is not reconciled here.
func (m *Manager) DefaultRoles(ctx context.Context) ([]*domain.Role, error) {
	ids := m.realm.DefaultRoleIDs
	if len(ids) == 0 {
		return nil, nil
	}
	var roles []*domain.Role
	err := m.store.FindAll(ctx, &roles, storage.NewQuery().In("_id", ids))
	return roles, err
}

// AddDefaultRole finds or creates the named role and appends its id to
// the realm's default-role list. Repeated calls append duplicates; the
// list is not deduplicated.
func (m *Manager) AddDefaultRole(ctx context.Context, name string) error {
	role, err := m.findOrCreateRole(ctx, name)
	if err != nil {
		return err
	}
	return m.store.PushToList(ctx, m.realm, "default_role_ids", role.StoreID)
}

// ReplaceDefaultRoles finds or creates each named role and replaces the
// realm's default-role list wholesale. Roles created before a failure
// stay created.
func (m *Manager) ReplaceDefaultRoles(ctx context.Context, names []string) error {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		role, err := m.findOrCreateRole(ctx, name)
		if err != nil {
			return err
		}
		ids = append(ids, role.StoreID)
	}
	m.realm.DefaultRoleIDs = ids
	return m.updateRealm(ctx)
}

func (m *Manager) findOrCreateRole(ctx context.Context, name string) (*domain.Role, error) {
	role, err := m.Role(ctx, name)
	if err != nil {
		return nil, err
	}
	if role != nil {
		return role, nil
	}
	return m.AddRole(ctx, name)
}

// --- applications -----------------------------------------------------

// ApplicationByID loads an application by identifier. An application
// owned by another realm is treated as absent; existence is never
// leaked across realms.
func (m *Manager) ApplicationByID(ctx context.Context, id string) (*domain.Application, error) {
	var app domain.Application
	err := m.store.Get(ctx, &app, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if app.RealmID != m.oid() {
		return nil, nil
	}
	return &app, nil
}

// Applications lists every application registered in the realm.
func (m *Manager) Applications(ctx context.Context) ([]*domain.Application, error) {
	var apps []*domain.Application
	err := m.store.FindAll(ctx, &apps, storage.NewQuery().Eq("realm_id", m.oid()))
	return apps, err
}

// ApplicationsByName returns the realm's applications keyed by name.
func (m *Manager) ApplicationsByName(ctx context.Context) (map[string]*domain.Application, error) {
	apps, err := m.Applications(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*domain.Application, len(apps))
	for _, app := range apps {
		byName[app.Name] = app
	}
	return byName, nil
}

// AddApplication creates an application and its surroundings: a
// service-account user named after the application, the application
// record, the application's wildcard role, and a wildcard scope grant
// for the service-account user. The sequence is not transactional; a
// storage failure partway leaves the completed steps committed.
func (m *Manager) AddApplication(ctx context.Context, name string) (*Application, error) {
	serviceUser, err := m.AddUser(ctx, name)
	if err != nil {
		return nil, err
	}

	record := &domain.Application{
		Name:          name,
		RealmID:       m.oid(),
		ServiceUserID: serviceUser.StoreID,
	}
	if err := m.store.Save(ctx, record); err != nil {
		return nil, err
	}

	app := m.Application(record)
	if _, err := app.AddRole(ctx, domain.WildcardRole); err != nil {
		return nil, err
	}
	if err := app.AddScope(ctx, serviceUser, domain.WildcardRole); err != nil {
		return nil, err
	}
	return app, nil
}

// --- role and scope grants --------------------------------------------

// GrantRole appends the role to the user's grants. No membership
// pre-check is made: repeated grants append duplicate ids.
func (m *Manager) GrantRole(ctx context.Context, user *domain.User, role *domain.Role) error {
	return m.store.PushToList(ctx, user, "role_ids", role.StoreID)
}

// HasRole reports whether the user's grants contain the role. A nil
// role is never held.
func (m *Manager) HasRole(user *domain.User, role *domain.Role) bool {
	if role == nil {
		return false
	}
	return m.rbac.HasRoleID(user, role.StoreID)
}

// HasRoleNamed resolves the role by name within the realm and checks
// membership. An unresolvable name is never held.
func (m *Manager) HasRoleNamed(ctx context.Context, user *domain.User, name string) (bool, error) {
	role, err := m.Role(ctx, name)
	if err != nil {
		return false, err
	}
	return m.HasRole(user, role), nil
}

// RoleNames resolves the user's role grants to names, keeping only
// roles owned by this realm.
func (m *Manager) RoleNames(ctx context.Context, user *domain.User) (map[string]struct{}, error) {
	return m.resolveOwnedNames(ctx, user.RoleIDs)
}

// AddScope grants the named realm role as a scope to the agent. Fails
// with ErrNotFound when no such role exists; no duplicate check.
func (m *Manager) AddScope(ctx context.Context, agent *domain.User, roleName string) error {
	role, err := m.Role(ctx, roleName)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("role %q: %w", roleName, ErrNotFound)
	}
	return m.store.PushToList(ctx, agent, "scope_ids", role.StoreID)
}

// ScopeNames resolves the agent's scope grants to names, keeping only
// roles owned by this realm.
func (m *Manager) ScopeNames(ctx context.Context, agent *domain.User) (map[string]struct{}, error) {
	return m.resolveOwnedNames(ctx, agent.ScopeIDs)
}

func (m *Manager) resolveOwnedNames(ctx context.Context, ids []string) (map[string]struct{}, error) {
	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}
	var roles []*domain.Role
	if err := m.store.FindAll(ctx, &roles, storage.NewQuery().In("_id", ids)); err != nil {
		return nil, err
	}
	return m.rbac.OwnedNames(roles, m.oid()), nil
}

// IsAdmin reports whether the agent is a realm admin.
func (m *Manager) IsAdmin(agent *domain.User) bool {
	return m.rbac.IsAdmin(m.realm, agent)
}

// AddAdmin appends the agent to the realm's admin list. No duplicate
// check.
func (m *Manager) AddAdmin(ctx context.Context, agent *domain.User) error {
	return m.store.PushToList(ctx, m.realm, "admin_user_ids", agent.StoreID)
}

// --- required credentials ---------------------------------------------

// AddRequiredCredential declares a required credential of the given
// built-in type for one actor category. Fails with
// ErrUnknownCredentialType when no built-in template exists.
func (m *Manager) AddRequiredCredential(ctx context.Context, typeName string, category domain.ClientCategory) error {
	tpl, ok := domain.TemplateFor(typeName)
	if !ok {
		return fmt.Errorf("credential type %q: %w", typeName, ErrUnknownCredentialType)
	}
	decl := &domain.RequiredCredential{
		Type:      tpl.Type,
		FormLabel: tpl.FormLabel,
		Input:     tpl.Input,
		Secret:    tpl.Secret,
		RealmID:   m.oid(),
		Category:  category,
	}
	return m.store.Save(ctx, decl)
}

// RequiredCredentials lists the declared credential requirements for
// one actor category.
func (m *Manager) RequiredCredentials(ctx context.Context, category domain.ClientCategory) ([]domain.CredentialTemplate, error) {
	decls, err := m.requiredCredentialRecords(ctx, category)
	if err != nil {
		return nil, err
	}
	templates := make([]domain.CredentialTemplate, 0, len(decls))
	for _, decl := range decls {
		templates = append(templates, domain.CredentialTemplate{
			Type:      decl.Type,
			FormLabel: decl.FormLabel,
			Input:     decl.Input,
			Secret:    decl.Secret,
		})
	}
	return templates, nil
}

// UpdateRequiredCredentials reconciles the stored declarations for one
// actor category against the desired type set: surplus declarations are
// deleted, missing ones created from the built-in templates, in that
// order. A failure partway leaves a mixed state; the operation is
// idempotent and can be retried.
func (m *Manager) UpdateRequiredCredentials(ctx context.Context, desired []string, category domain.ClientCategory) error {
	current, err := m.requiredCredentialRecords(ctx, category)
	if err != nil {
		return err
	}

	toDelete, toCreate := CredentialDelta(current, desired)
	for _, decl := range toDelete {
		m.log.Info().
			Str("type", decl.Type).
			Str("category", category.String()).
			Msg("removing required credential declaration")
		if err := m.store.Delete(ctx, decl); err != nil {
			return err
		}
	}
	for _, typeName := range toCreate {
		m.log.Info().
			Str("type", typeName).
			Str("category", category.String()).
			Msg("adding required credential declaration")
		if err := m.AddRequiredCredential(ctx, typeName, category); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) requiredCredentialRecords(ctx context.Context, category domain.ClientCategory) ([]*domain.RequiredCredential, error) {
	var decls []*domain.RequiredCredential
	err := m.store.FindAll(ctx, &decls, storage.NewQuery().
		Eq("realm_id", m.oid()).
		Eq("category", category))
	return decls, err
}

// --- credential validation and update ---------------------------------

// ValidatePassword checks the supplied password through the password
// handler. true only on a valid status.
func (m *Manager) ValidatePassword(ctx context.Context, user *domain.User, password string) (bool, error) {
	handler, ok := m.handlers[domain.CredentialPassword]
	if !ok {
		return false, nil
	}
	status, err := handler.Validate(ctx, m.store, user, password)
	if err != nil {
		return false, err
	}
	return status == StatusValid, nil
}

// ValidateTOTP is not implemented in this revision and always reports
// failure, regardless of the installed handler.
func (m *Manager) ValidateTOTP(_ context.Context, _ *domain.User, _ string, _ string) (bool, error) {
	return false, nil
}

// UpdateCredential dispatches new credential material to the handler
// for its type. Types without a handler are accepted as no-ops.
func (m *Manager) UpdateCredential(ctx context.Context, user *domain.User, cred domain.Credential) error {
	handler, ok := m.handlers[cred.Type]
	if !ok {
		m.log.Debug().
			Str("type", cred.Type).
			Msg("no handler for credential type, update ignored")
		return nil
	}
	return handler.Update(ctx, m.store, user, cred.Value, cred.Device)
}

// --- social links -----------------------------------------------------

// UserBySocialLink resolves the user bound to a social identity within
// the realm. A link whose bound user record is gone is reported as
// absent and logged; the dangling link is not pruned on this read path.
func (m *Manager) UserBySocialLink(ctx context.Context, identity domain.SocialIdentity) (*domain.User, error) {
	var link domain.SocialLink
	err := m.store.FindOne(ctx, &link, storage.NewQuery().
		Eq("provider", identity.Provider).
		Eq("username", identity.Username).
		Eq("realm_id", m.oid()))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var user domain.User
	err = m.store.Get(ctx, &user, link.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		m.log.Warn().
			Str("provider", identity.Provider).
			Str("username", identity.Username).
			Str("user_id", link.UserID).
			Msg("social link points at a missing user")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SocialLinks lists the social identities bound to the user.
func (m *Manager) SocialLinks(ctx context.Context, user *domain.User) ([]domain.SocialIdentity, error) {
	var links []*domain.SocialLink
	err := m.store.FindAll(ctx, &links, storage.NewQuery().Eq("user_id", user.StoreID))
	if err != nil {
		return nil, err
	}
	identities := make([]domain.SocialIdentity, 0, len(links))
	for _, link := range links {
		identities = append(identities, link.Identity())
	}
	return identities, nil
}

// AddSocialLink binds a social identity to the user.
func (m *Manager) AddSocialLink(ctx context.Context, user *domain.User, identity domain.SocialIdentity) error {
	link := &domain.SocialLink{
		Provider: identity.Provider,
		Username: identity.Username,
		RealmID:  m.oid(),
		UserID:   user.StoreID,
	}
	return m.store.Save(ctx, link)
}

// RemoveSocialLink removes the binding between the user and a social
// identity, if present.
func (m *Manager) RemoveSocialLink(ctx context.Context, user *domain.User, identity domain.SocialIdentity) error {
	return m.store.DeleteAll(ctx, domain.SocialLinksCollection, storage.NewQuery().
		Eq("provider", identity.Provider).
		Eq("username", identity.Username).
		Eq("user_id", user.StoreID))
}
