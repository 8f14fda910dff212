package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Subject types stored in resource_permissions
const (
	SubjectUser  = "user"
	SubjectGroup = "group"
)

// Store is what the permission engine reads from
type Store interface {
	// GetPermissions returns the current grants of a resource
	GetPermissions(ctx context.Context, ref ResourceRef) (Permissions, error)

	// GetGroupsOfUser returns the groups userID belongs to in an organization
	GetGroupsOfUser(ctx context.Context, organizationID, userID string) ([]string, error)

	// GetView loads a view, returning a NotFoundError when it does not exist
	GetView(ctx context.Context, id string) (*View, error)

	// GetLinkTypes returns every link type of a project
	GetLinkTypes(ctx context.Context, projectID string) ([]LinkType, error)

	// GetCollections returns the collections with the given ids that exist
	GetCollections(ctx context.Context, ids []string) ([]Resource, error)
}

// SQLStore handles resource and permission persistence in PostgreSQL
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// GetPermissions returns the user and group grants of a resource
func (s *SQLStore) GetPermissions(ctx context.Context, ref ResourceRef) (Permissions, error) {
	query := `
		SELECT subject_type, subject_id, role, transitive
		FROM resource_permissions
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY subject_type, subject_id, role
	`

	rows, err := s.db.QueryContext(ctx, query, string(ref.Type), ref.ID)
	if err != nil {
		return Permissions{}, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	var perms Permissions
	for rows.Next() {
		var subjectType, subjectID, role string
		var transitive bool
		if err := rows.Scan(&subjectType, &subjectID, &role, &transitive); err != nil {
			return Permissions{}, fmt.Errorf("failed to scan permission: %w", err)
		}

		granted := Role{Type: RoleType(role), Transitive: transitive}
		switch subjectType {
		case SubjectUser:
			perms.Users = appendGrant(perms.Users, subjectID, granted)
		case SubjectGroup:
			perms.Groups = appendGrant(perms.Groups, subjectID, granted)
		}
	}

	return perms, rows.Err()
}

// rows are ordered by subject, so grants of one subject are adjacent
func appendGrant(perms []Permission, subjectID string, role Role) []Permission {
	if n := len(perms); n > 0 && perms[n-1].ID == subjectID {
		perms[n-1].Roles = append(perms[n-1].Roles, role)
		return perms
	}
	return append(perms, Permission{ID: subjectID, Roles: []Role{role}})
}

// GetGroupsOfUser returns the groups of a user within one organization
func (s *SQLStore) GetGroupsOfUser(ctx context.Context, organizationID, userID string) ([]string, error) {
	query := `
		SELECT group_id
		FROM group_members
		WHERE organization_id = $1 AND user_id = $2
		ORDER BY group_id
	`

	rows, err := s.db.QueryContext(ctx, query, organizationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var groupID string
		if err := rows.Scan(&groupID); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, groupID)
	}

	return groups, rows.Err()
}

// GetView retrieves a view by ID
func (s *SQLStore) GetView(ctx context.Context, id string) (*View, error) {
	query := `
		SELECT id, project_id, code, name, author_id, query, non_removable
		FROM views
		WHERE id = $1
	`

	var view View
	var queryJSON []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&view.ID,
		&view.ParentID,
		&view.Code,
		&view.Name,
		&view.AuthorID,
		&queryJSON,
		&view.NonRemovable,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: ResourceView, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get view: %w", err)
	}

	view.Type = ResourceView
	if len(queryJSON) > 0 {
		if err := json.Unmarshal(queryJSON, &view.Query); err != nil {
			return nil, fmt.Errorf("failed to unmarshal view query: %w", err)
		}
	}

	return &view, nil
}

// GetLinkTypes returns every link type of a project
func (s *SQLStore) GetLinkTypes(ctx context.Context, projectID string) ([]LinkType, error) {
	query := `
		SELECT id, project_id, name, collection_ids
		FROM link_types
		WHERE project_id = $1
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query link types: %w", err)
	}
	defer rows.Close()

	var linkTypes []LinkType
	for rows.Next() {
		var lt LinkType
		if err := rows.Scan(&lt.ID, &lt.ParentID, &lt.Name, pq.Array(&lt.CollectionIDs)); err != nil {
			return nil, fmt.Errorf("failed to scan link type: %w", err)
		}
		lt.Type = ResourceLinkType
		linkTypes = append(linkTypes, lt)
	}

	return linkTypes, rows.Err()
}

// GetCollections returns the collections with the given ids
func (s *SQLStore) GetCollections(ctx context.Context, ids []string) ([]Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, project_id, code, name, non_removable
		FROM collections
		WHERE id = ANY($1)
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	var collections []Resource
	for rows.Next() {
		c := Resource{Type: ResourceCollection}
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Code, &c.Name, &c.NonRemovable); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}

	return collections, rows.Err()
}

// GetOrganizationByCode loads an organization and its grants
func (s *SQLStore) GetOrganizationByCode(ctx context.Context, code string) (*Resource, error) {
	query := `
		SELECT id, code, name, non_removable
		FROM organizations
		WHERE code = $1
	`

	org := Resource{Type: ResourceOrganization}
	err := s.db.QueryRowContext(ctx, query, code).Scan(&org.ID, &org.Code, &org.Name, &org.NonRemovable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: ResourceOrganization, ID: code}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if org.Permissions, err = s.GetPermissions(ctx, org.Ref()); err != nil {
		return nil, err
	}
	return &org, nil
}

// GetProjectByCode loads a project of an organization and its grants
func (s *SQLStore) GetProjectByCode(ctx context.Context, organizationID, code string) (*Resource, error) {
	query := `
		SELECT id, organization_id, code, name, non_removable
		FROM projects
		WHERE organization_id = $1 AND code = $2
	`

	project := Resource{Type: ResourceProject}
	err := s.db.QueryRowContext(ctx, query, organizationID, code).Scan(
		&project.ID, &project.ParentID, &project.Code, &project.Name, &project.NonRemovable,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: ResourceProject, ID: code}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if project.Permissions, err = s.GetPermissions(ctx, project.Ref()); err != nil {
		return nil, err
	}
	return &project, nil
}

// OrganizationCodes returns every organization code in use
func (s *SQLStore) OrganizationCodes(ctx context.Context) ([]string, error) {
	return s.codes(ctx, "SELECT code FROM organizations")
}

// ProjectCodes returns every project code in use
func (s *SQLStore) ProjectCodes(ctx context.Context) ([]string, error) {
	return s.codes(ctx, "SELECT code FROM projects")
}

func (s *SQLStore) codes(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// HasOrganizations reports whether any organization grants userID a role
func (s *SQLStore) HasOrganizations(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM resource_permissions
			WHERE resource_type = $1 AND subject_type = $2 AND subject_id = $3
		)
	`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, string(ResourceOrganization), SubjectUser, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check organizations: %w", err)
	}
	return exists, nil
}

// CreateWorkspace inserts an organization and a project inside it, with
// their grants, in one transaction
func (s *SQLStore) CreateWorkspace(ctx context.Context, org, project *Resource) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertOrganization(ctx, tx, org); err != nil {
			return err
		}
		return insertProject(ctx, tx, project)
	})
}

func insertOrganization(ctx context.Context, tx *sql.Tx, org *Resource) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO organizations (id, code, name, non_removable) VALUES ($1, $2, $3, $4)",
		org.ID, org.Code, org.Name, org.NonRemovable,
	)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return insertGrants(ctx, tx, org)
}

func insertProject(ctx context.Context, tx *sql.Tx, project *Resource) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO projects (id, organization_id, code, name, non_removable) VALUES ($1, $2, $3, $4, $5)",
		project.ID, project.ParentID, project.Code, project.Name, project.NonRemovable,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return insertGrants(ctx, tx, project)
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertGrants(ctx context.Context, tx *sql.Tx, res *Resource) error {
	query := `
		INSERT INTO resource_permissions (resource_type, resource_id, subject_type, subject_id, role, transitive)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`

	insert := func(subjectType string, perms []Permission) error {
		for _, perm := range perms {
			for _, role := range perm.Roles {
				if _, err := tx.ExecContext(ctx, query,
					string(res.Type), res.ID, subjectType, perm.ID, string(role.Type), role.Transitive,
				); err != nil {
					return fmt.Errorf("failed to grant %s on %s: %w", role.Type, res.Ref(), err)
				}
			}
		}
		return nil
	}

	if err := insert(SubjectUser, res.Permissions.Users); err != nil {
		return err
	}
	return insert(SubjectGroup, res.Permissions.Groups)
}
