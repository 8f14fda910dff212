// Package rbac resolves what a principal may do with the resources of a
// multi-tenant workspace.
//
// # Overview
//
// Resources form a tree: organizations contain projects, and projects
// contain collections, link types and views. Every resource carries its own
// grants (Permissions), which bind roles to users and to groups. Groups are
// scoped to one organization.
//
// # Roles
//
// A Role is a RoleType plus a Transitive flag. Roles imply weaker roles
// through a fixed table:
//
//	Manage          - implies every role
//	Write           - implies Read, DataRead, DataWrite, DataContribute
//	DataWrite       - implies DataRead
//	DataDelete      - implies DataRead
//	TechConfig      - implies AttributeEdit
//	*Contribute     - container contribute roles imply Read
//
// Transitive roles granted on an organization apply to every resource in it,
// and transitive roles granted on a project apply to everything in the
// project.
//
// # Permission Checking
//
// A Checker is created per request for one principal:
//
//	checker := rbac.NewChecker(rbac.CheckerConfig{
//		UserID:    principal.ID,
//		Store:     store,
//		Workspace: keeper,
//		View:      activeView,
//	})
//
//	if err := checker.CheckRole(ctx, collection, rbac.RoleDataWrite); err != nil {
//		// *rbac.NoPermissionError or *rbac.NotFoundError
//	}
//
// Each check walks the same decision tree:
//
//  1. Managers of the organization (or of the project, for project-scoped
//     resources) are granted everything.
//  2. Non-organization resources need Read on the organization;
//     project-scoped resources also need Read on the project.
//  3. Direct user grants, group grants and inherited transitive grants are
//     expanded through the implication table.
//  4. The *WithView variants fall back to the active view: a principal who
//     can read the view borrows the view author's roles on the collections
//     the view's query touches.
//
// Decide and DecideWithView return a Decision value naming why access was
// granted or denied. The Check* methods convert a denial into a typed error.
// Outcomes are memoized for the lifetime of the Checker; call InvalidateCache
// after changing a resource's grants.
//
// # Storage
//
// SQLStore implements Store on PostgreSQL (see pkg/storage/postgres for the
// schema).
package rbac
