package limits

import (
	"context"
	"database/sql"
	"fmt"
)

// Usage counts existing resources of a kind. scopeID is the project for
// documents and the collection for rules and functions.
type Usage interface {
	Count(ctx context.Context, kind Kind, organizationID, scopeID string) (int64, error)
}

var countQueries = map[Kind]string{
	KindUsers: `
		SELECT COUNT(DISTINCT subject_id)
		FROM resource_permissions
		WHERE resource_type = 'organization' AND resource_id = $1 AND subject_type = 'user'
	`,
	KindProjects: `
		SELECT COUNT(*) FROM projects WHERE organization_id = $1
	`,
	KindCollections: `
		SELECT COUNT(*)
		FROM collections c
		JOIN projects p ON p.id = c.project_id
		WHERE p.organization_id = $1
	`,
	KindDocuments: `
		SELECT COUNT(*) FROM documents WHERE project_id = $1
	`,
	KindRules: `
		SELECT COUNT(*) FROM collection_rules WHERE collection_id = $1
	`,
	KindFunctions: `
		SELECT COUNT(*) FROM collection_functions WHERE collection_id = $1
	`,
}

// SQLUsage counts resources in PostgreSQL
type SQLUsage struct {
	db *sql.DB
}

// NewSQLUsage creates a PostgreSQL-backed usage counter
func NewSQLUsage(db *sql.DB) *SQLUsage {
	return &SQLUsage{db: db}
}

// Count returns the number of existing resources of kind
func (u *SQLUsage) Count(ctx context.Context, kind Kind, organizationID, scopeID string) (int64, error) {
	query, ok := countQueries[kind]
	if !ok {
		return 0, fmt.Errorf("unknown limit kind %q", kind)
	}

	arg := organizationID
	switch kind {
	case KindDocuments, KindRules, KindFunctions:
		arg = scopeID
	}

	var n int64
	if err := u.db.QueryRowContext(ctx, query, arg).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}
