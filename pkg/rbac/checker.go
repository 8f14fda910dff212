package rbac

import (
	"context"
	"fmt"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// Workspace exposes the organization and project the current request
// operates in. Either may be nil.
type Workspace interface {
	Organization() *Resource
	Project() *Resource
}

// ViewContext exposes the active view id of the current request, or ""
type ViewContext interface {
	ViewID() string
}

// CheckerConfig configures a request-scoped Checker
type CheckerConfig struct {
	UserID       string
	Store        Store
	Workspace    Workspace
	View         ViewContext
	SkipSecurity bool
	Logger       *observability.Logger
	Metrics      *observability.Metrics
}

// Checker resolves the roles of one principal within one request. Outcomes
// are memoized per (resource, role) until InvalidateCache is called for the
// resource. A Checker is not safe for concurrent use.
type Checker struct {
	userID    string
	store     Store
	workspace Workspace
	view      ViewContext
	skip      bool
	logger    *observability.Logger
	metrics   *observability.Metrics

	memo        map[string]map[string]bool // resource id -> user:role -> outcome
	permissions map[string]Permissions
	groups      map[string][]string
	views       map[string]*View
	linkTypes   map[string][]LinkType
}

// NewChecker creates a checker for a single request
func NewChecker(cfg CheckerConfig) *Checker {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Checker{
		userID:      cfg.UserID,
		store:       cfg.Store,
		workspace:   cfg.Workspace,
		view:        cfg.View,
		skip:        cfg.SkipSecurity,
		logger:      logger.WithField("user_id", cfg.UserID),
		metrics:     cfg.Metrics,
		memo:        make(map[string]map[string]bool),
		permissions: make(map[string]Permissions),
		groups:      make(map[string][]string),
		views:       make(map[string]*View),
		linkTypes:   make(map[string][]LinkType),
	}
}

// UserID returns the principal this checker evaluates
func (c *Checker) UserID() string {
	return c.userID
}

// Decide evaluates role on res for the current principal, without view delegation
func (c *Checker) Decide(ctx context.Context, res *Resource, role RoleType) (Decision, error) {
	d, err := c.decide(ctx, res, role, c.userID)
	c.record(d, err)
	return d, err
}

// DecideWithView evaluates role on res, falling back to the active view:
// when the principal holds viewRole on the view, the view's query touches
// res and the view's author holds role on res, access is granted.
func (c *Checker) DecideWithView(ctx context.Context, res *Resource, role, viewRole RoleType) (Decision, error) {
	d, err := c.decideWithView(ctx, res, role, viewRole, nil)
	c.record(d, err)
	return d, err
}

// HasRole reports whether the principal holds role on res
func (c *Checker) HasRole(ctx context.Context, res *Resource, role RoleType) (bool, error) {
	d, err := c.Decide(ctx, res, role)
	return d.Allowed, err
}

// HasAnyRole reports whether the principal holds at least one of roles on res
func (c *Checker) HasAnyRole(ctx context.Context, res *Resource, roles ...RoleType) (bool, error) {
	for _, role := range roles {
		ok, err := c.HasRole(ctx, res, role)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// HasRoleWithView reports whether the principal holds role on res directly
// or through the active view
func (c *Checker) HasRoleWithView(ctx context.Context, res *Resource, role, viewRole RoleType) (bool, error) {
	d, err := c.DecideWithView(ctx, res, role, viewRole)
	return d.Allowed, err
}

// HasRoleWithViewQuery is HasRoleWithView for a caller-supplied query, which
// must not reach collections outside the active view's query
func (c *Checker) HasRoleWithViewQuery(ctx context.Context, res *Resource, role, viewRole RoleType, query Query) (bool, error) {
	d, err := c.decideWithView(ctx, res, role, viewRole, &query)
	c.record(d, err)
	return d.Allowed, err
}

// HasRoleInLinkTypeWithView reports whether role is held, directly or
// through the active view, on every collection the link type connects
func (c *Checker) HasRoleInLinkTypeWithView(ctx context.Context, lt *LinkType, role RoleType) (bool, error) {
	collections, err := c.collections(ctx, lt.CollectionIDs)
	if err != nil {
		return false, err
	}
	if len(collections) == 0 || len(collections) != len(unique(lt.CollectionIDs)) {
		return false, nil
	}

	for i := range collections {
		ok, err := c.HasRoleWithView(ctx, &collections[i], role, role)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// CheckRole fails with a NoPermissionError unless the principal holds role on res
func (c *Checker) CheckRole(ctx context.Context, res *Resource, role RoleType) error {
	if err := c.checkReadWorkspace(ctx, res); err != nil {
		return err
	}
	d, err := c.Decide(ctx, res, role)
	if err != nil {
		return err
	}
	return d.Err()
}

// CheckAnyRole fails unless the principal holds at least one of roles on res
func (c *Checker) CheckAnyRole(ctx context.Context, res *Resource, roles ...RoleType) error {
	ok, err := c.HasAnyRole(ctx, res, roles...)
	if err != nil {
		return err
	}
	if !ok {
		return &NoPermissionError{Resource: res.Ref()}
	}
	return nil
}

// CheckRoleWithView fails unless the principal holds role on res directly or
// through the active view
func (c *Checker) CheckRoleWithView(ctx context.Context, res *Resource, role, viewRole RoleType) error {
	if err := c.checkReadWorkspace(ctx, res); err != nil {
		return err
	}
	d, err := c.DecideWithView(ctx, res, role, viewRole)
	if err != nil {
		return err
	}
	return d.Err()
}

// CheckRoleInLinkTypeWithView checks role on the collections of a link
// type. When not strict, Write only needs one readable and one writable
// collection.
func (c *Checker) CheckRoleInLinkTypeWithView(ctx context.Context, collectionIDs []string, role RoleType, strict bool) error {
	collections, err := c.collections(ctx, collectionIDs)
	if err != nil {
		return err
	}

	if !strict && role == RoleWrite {
		var canRead, canWrite bool
		for i := range collections {
			if !canRead {
				if canRead, err = c.HasRoleWithView(ctx, &collections[i], RoleRead, RoleRead); err != nil {
					return err
				}
			}
			if !canWrite {
				if canWrite, err = c.HasRoleWithView(ctx, &collections[i], RoleWrite, RoleWrite); err != nil {
					return err
				}
			}
		}
		if !canRead || !canWrite {
			return &NoPermissionError{Resource: ResourceRef{Type: ResourceLinkType}, Role: role}
		}
		return nil
	}

	for i := range collections {
		if err := c.CheckRoleWithView(ctx, &collections[i], role, role); err != nil {
			return err
		}
	}
	return nil
}

// CheckCanDelete fails for non-removable resources and for principals who
// cannot manage res
func (c *Checker) CheckCanDelete(ctx context.Context, res *Resource) error {
	if res.NonRemovable {
		return &NoPermissionError{Resource: res.Ref()}
	}
	return c.CheckRole(ctx, res, RoleManage)
}

// IsManager reports whether the principal manages the current organization
func (c *Checker) IsManager(ctx context.Context) (bool, error) {
	if c.skip {
		return true, nil
	}
	return c.isOrganizationManager(ctx, c.userID)
}

// IsProjectManager reports whether the principal manages the current project
func (c *Checker) IsProjectManager(ctx context.Context) (bool, error) {
	if c.skip {
		return true, nil
	}
	return c.isProjectManager(ctx, c.userID)
}

// ActiveView returns the view the request operates through, or nil
func (c *Checker) ActiveView(ctx context.Context) (*View, error) {
	id := c.activeViewID()
	if id == "" {
		return nil, nil
	}
	return c.loadView(ctx, id)
}

// InvalidateCache forgets every memoized outcome and the cached grants of
// res. Call it after the resource's permissions change. Invalidating an
// organization or project forgets all outcomes, since transitive grants
// feed the decisions on everything inside it.
func (c *Checker) InvalidateCache(res *Resource) {
	if res.Type == ResourceOrganization || res.Type == ResourceProject {
		clear(c.memo)
	} else {
		delete(c.memo, res.ID)
	}
	delete(c.permissions, res.Ref().String())
	if res.Type == ResourceView {
		delete(c.views, res.ID)
	}
}

func (c *Checker) decide(ctx context.Context, res *Resource, role RoleType, userID string) (Decision, error) {
	if c.skip {
		return allow(res, role, ReasonSecurityDisabled), nil
	}
	if err := c.requireWorkspace(res); err != nil {
		return deny(res, role), err
	}

	manager, err := c.isManagerOf(ctx, res, userID)
	if err != nil {
		return deny(res, role), err
	}
	if manager {
		return allow(res, role, ReasonManager), nil
	}

	ok, err := c.hasRole(ctx, res, role, userID)
	if err != nil {
		return deny(res, role), err
	}
	if ok {
		return allow(res, role, ReasonGranted), nil
	}
	return deny(res, role), nil
}

func (c *Checker) decideWithView(ctx context.Context, res *Resource, role, viewRole RoleType, query *Query) (Decision, error) {
	d, err := c.decide(ctx, res, role, c.userID)
	if err != nil || d.Allowed {
		return d, err
	}

	ok, err := c.hasRoleViaView(ctx, res, role, viewRole, query)
	if err != nil {
		return deny(res, role), err
	}
	if ok {
		return allow(res, role, ReasonView), nil
	}
	return d, nil
}

func (c *Checker) hasRoleViaView(ctx context.Context, res *Resource, role, viewRole RoleType, query *Query) (bool, error) {
	viewID := c.activeViewID()
	if viewID == "" {
		return false, nil
	}

	view, err := c.loadView(ctx, viewID)
	if IsNotFound(err) {
		c.logger.WithField("view_id", viewID).Warn("active view does not exist")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	canUseView, err := c.decide(ctx, &view.Resource, viewRole, c.userID)
	if err != nil || !canUseView.Allowed {
		return false, err
	}
	if view.AuthorID == "" {
		return false, nil
	}

	linkTypes, err := c.projectLinkTypes(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := QueryCollectionIDs(view.Query, linkTypes)[res.ID]; !ok {
		return false, nil
	}
	if query != nil && !query.NarrowerThan(view.Query, linkTypes) {
		return false, nil
	}

	byAuthor, err := c.decide(ctx, res, role, view.AuthorID)
	if err != nil {
		return false, err
	}
	return byAuthor.Allowed, nil
}

func (c *Checker) checkReadWorkspace(ctx context.Context, res *Resource) error {
	if c.skip || res.Type == ResourceOrganization {
		return nil
	}
	if err := c.requireWorkspace(res); err != nil {
		return err
	}

	org := c.workspace.Organization()
	if d, err := c.decide(ctx, org, RoleRead, c.userID); err != nil || !d.Allowed {
		if err != nil {
			return err
		}
		return &NoPermissionError{Resource: res.Ref(), Role: RoleRead}
	}

	if res.Type.ProjectScoped() {
		project := c.workspace.Project()
		if d, err := c.decide(ctx, project, RoleRead, c.userID); err != nil || !d.Allowed {
			if err != nil {
				return err
			}
			return &NoPermissionError{Resource: res.Ref(), Role: RoleRead}
		}
	}
	return nil
}

func (c *Checker) requireWorkspace(res *Resource) error {
	if res.Type == ResourceOrganization {
		return nil
	}
	if c.workspace == nil || c.workspace.Organization() == nil {
		return &NotFoundError{Kind: ResourceOrganization}
	}
	if res.Type.ProjectScoped() && c.workspace.Project() == nil {
		return &NotFoundError{Kind: ResourceProject}
	}
	return nil
}

// isManagerOf applies the manager bypass for res: project-scoped resources
// need a project manager, organizations and projects an organization manager.
func (c *Checker) isManagerOf(ctx context.Context, res *Resource, userID string) (bool, error) {
	if res.Type.ProjectScoped() {
		return c.isProjectManager(ctx, userID)
	}
	return c.isOrganizationManager(ctx, userID)
}

func (c *Checker) isOrganizationManager(ctx context.Context, userID string) (bool, error) {
	if c.workspace == nil || c.workspace.Organization() == nil {
		return false, nil
	}
	return c.hasRole(ctx, c.workspace.Organization(), RoleManage, userID)
}

func (c *Checker) isProjectManager(ctx context.Context, userID string) (bool, error) {
	manager, err := c.isOrganizationManager(ctx, userID)
	if err != nil || manager {
		return manager, err
	}
	if c.workspace == nil || c.workspace.Project() == nil {
		return false, nil
	}

	manager, err = c.hasRole(ctx, c.workspace.Project(), RoleManage, userID)
	if err != nil || !manager {
		return false, err
	}
	return c.hasRole(ctx, c.workspace.Organization(), RoleRead, userID)
}

// hasRole is the memoized role lookup without manager bypass
func (c *Checker) hasRole(ctx context.Context, res *Resource, role RoleType, userID string) (bool, error) {
	key := userID + ":" + string(role)
	if outcome, ok := c.memo[res.ID][key]; ok {
		return outcome, nil
	}

	roles, err := c.rolesIn(ctx, res, userID)
	if err != nil {
		return false, err
	}

	outcome := roles.Has(role)
	if c.memo[res.ID] == nil {
		c.memo[res.ID] = make(map[string]bool)
	}
	c.memo[res.ID][key] = outcome
	return outcome, nil
}

// rolesIn computes the effective role set of userID on res. Organizations
// only honour direct user grants. Every other resource requires Read on the
// organization, and project-scoped resources also require Read on the
// project or a transitive Read on the organization. Transitive grants on the
// containers are inherited.
func (c *Checker) rolesIn(ctx context.Context, res *Resource, userID string) (RoleSet, error) {
	var org, project *Resource
	if c.workspace != nil {
		org, project = c.workspace.Organization(), c.workspace.Project()
	}

	perms, err := c.permissionsOf(ctx, res)
	if err != nil {
		return nil, err
	}

	actual := perms.UserRoles(userID)
	if res.Type == ResourceOrganization {
		return ExpandRoles(actual), nil
	}

	groups, err := c.groupsOf(ctx, org, userID)
	if err != nil {
		return nil, err
	}
	actual = append(actual, perms.GroupRoles(groups)...)

	if org == nil {
		return ExpandRoles(actual), nil
	}

	orgPerms, err := c.permissionsOf(ctx, org)
	if err != nil {
		return nil, err
	}
	orgRoles := orgPerms.UserRoles(userID)
	if !hasRead(orgRoles, false) {
		return RoleSet{}, nil
	}
	actual = append(actual, transitiveOnly(orgRoles)...)

	if project != nil && res.Type != ResourceProject {
		projectPerms, err := c.permissionsOf(ctx, project)
		if err != nil {
			return nil, err
		}
		projectRoles := append(projectPerms.UserRoles(userID), projectPerms.GroupRoles(groups)...)
		if !hasRead(orgRoles, true) && !hasRead(projectRoles, false) {
			return RoleSet{}, nil
		}
		actual = append(actual, transitiveOnly(projectRoles)...)
	}

	return ExpandRoles(actual), nil
}

func (c *Checker) permissionsOf(ctx context.Context, res *Resource) (Permissions, error) {
	key := res.Ref().String()
	if perms, ok := c.permissions[key]; ok {
		return perms, nil
	}

	perms, err := c.store.GetPermissions(ctx, res.Ref())
	if err != nil {
		return Permissions{}, fmt.Errorf("failed to load permissions of %s: %w", res.Ref(), err)
	}
	c.permissions[key] = perms
	return perms, nil
}

func (c *Checker) groupsOf(ctx context.Context, org *Resource, userID string) ([]string, error) {
	if org == nil || userID == "" {
		return nil, nil
	}

	key := org.ID + ":" + userID
	if groups, ok := c.groups[key]; ok {
		return groups, nil
	}

	groups, err := c.store.GetGroupsOfUser(ctx, org.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}
	c.groups[key] = groups
	return groups, nil
}

func (c *Checker) loadView(ctx context.Context, id string) (*View, error) {
	if view, ok := c.views[id]; ok {
		return view, nil
	}

	view, err := c.store.GetView(ctx, id)
	if err != nil {
		return nil, err
	}
	c.views[id] = view
	return view, nil
}

func (c *Checker) projectLinkTypes(ctx context.Context) ([]LinkType, error) {
	if c.workspace == nil || c.workspace.Project() == nil {
		return nil, nil
	}

	projectID := c.workspace.Project().ID
	if linkTypes, ok := c.linkTypes[projectID]; ok {
		return linkTypes, nil
	}

	linkTypes, err := c.store.GetLinkTypes(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load link types: %w", err)
	}
	c.linkTypes[projectID] = linkTypes
	return linkTypes, nil
}

func (c *Checker) collections(ctx context.Context, ids []string) ([]Resource, error) {
	collections, err := c.store.GetCollections(ctx, unique(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load collections: %w", err)
	}
	return collections, nil
}

func (c *Checker) activeViewID() string {
	if c.view == nil {
		return ""
	}
	return c.view.ViewID()
}

func (c *Checker) record(d Decision, err error) {
	outcome := string(d.Reason)
	if err != nil {
		outcome = "error"
	}
	c.metrics.RecordPermissionCheck(outcome)

	if err == nil && !d.Allowed {
		c.logger.WithFields(map[string]interface{}{
			"resource": d.Resource.String(),
			"role":     string(d.Role),
		}).Debug("permission denied")
	}
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
