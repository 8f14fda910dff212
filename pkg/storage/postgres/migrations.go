package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the gatehouse schema in application order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create workspace tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id TEXT PRIMARY KEY,
					code VARCHAR(64) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					non_removable BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS projects (
					id TEXT PRIMARY KEY,
					organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					code VARCHAR(64) NOT NULL,
					name VARCHAR(255) NOT NULL,
					non_removable BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(organization_id, code)
				);

				CREATE INDEX IF NOT EXISTS idx_projects_organization_id ON projects(organization_id);
			`,
		},
		{
			Version:     2,
			Description: "Create project content tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS collections (
					id TEXT PRIMARY KEY,
					project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					code VARCHAR(64) NOT NULL,
					name VARCHAR(255) NOT NULL,
					non_removable BOOLEAN NOT NULL DEFAULT FALSE
				);

				CREATE TABLE IF NOT EXISTS link_types (
					id TEXT PRIMARY KEY,
					project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					collection_ids TEXT[] NOT NULL
				);

				CREATE TABLE IF NOT EXISTS views (
					id TEXT PRIMARY KEY,
					project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					code VARCHAR(64) NOT NULL,
					name VARCHAR(255) NOT NULL,
					author_id TEXT NOT NULL,
					query JSONB NOT NULL DEFAULT '{}',
					non_removable BOOLEAN NOT NULL DEFAULT FALSE
				);

				CREATE TABLE IF NOT EXISTS documents (
					id TEXT PRIMARY KEY,
					project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_collections_project_id ON collections(project_id);
				CREATE INDEX IF NOT EXISTS idx_link_types_project_id ON link_types(project_id);
				CREATE INDEX IF NOT EXISTS idx_views_project_id ON views(project_id);
				CREATE INDEX IF NOT EXISTS idx_documents_project_id ON documents(project_id);
			`,
		},
		{
			Version:     3,
			Description: "Create permission tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS resource_permissions (
					resource_type VARCHAR(32) NOT NULL,
					resource_id TEXT NOT NULL,
					subject_type VARCHAR(16) NOT NULL,
					subject_id TEXT NOT NULL,
					role VARCHAR(64) NOT NULL,
					transitive BOOLEAN NOT NULL DEFAULT FALSE,
					PRIMARY KEY (resource_type, resource_id, subject_type, subject_id, role, transitive)
				);

				CREATE TABLE IF NOT EXISTS group_members (
					organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					group_id TEXT NOT NULL,
					user_id TEXT NOT NULL,
					PRIMARY KEY (organization_id, group_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_resource_permissions_subject ON resource_permissions(subject_type, subject_id);
				CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id);
			`,
		},
		{
			Version:     4,
			Description: "Create user tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					email VARCHAR(320) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL DEFAULT '',
					email_verified BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS user_auth_ids (
					user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					auth_id TEXT NOT NULL UNIQUE,
					PRIMARY KEY (user_id, auth_id)
				);

				CREATE TABLE IF NOT EXISTS user_logins (
					user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					logged_in_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_user_logins_user_id ON user_logins(user_id);
			`,
		},
		{
			Version:     5,
			Description: "Create payments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS payments (
					id TEXT PRIMARY KEY,
					organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					service_level VARCHAR(16) NOT NULL,
					state VARCHAR(16) NOT NULL,
					users INTEGER NOT NULL DEFAULT 0,
					valid_from TIMESTAMP NOT NULL,
					valid_until TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_payments_organization_id ON payments(organization_id, valid_until);
			`,
		},
		{
			Version:     6,
			Description: "Create collection rules and functions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS collection_rules (
					collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					PRIMARY KEY (collection_id, name)
				);

				CREATE TABLE IF NOT EXISTS collection_functions (
					collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
					attribute_id VARCHAR(64) NOT NULL,
					PRIMARY KEY (collection_id, attribute_id)
				);
			`,
		},
	}
}

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`

// RunMigrations applies every migration not yet recorded in
// schema_migrations. Each migration runs in its own transaction.
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) (int, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := 0
	for _, m := range GetMigrations() {
		var exists bool
		err := db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version,
		).Scan(&exists)
		if err != nil {
			return applied, fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		if err := apply(ctx, db, m); err != nil {
			return applied, err
		}

		logger.WithField("version", m.Version).WithField("description", m.Description).Info("migration applied")
		applied++
	}

	return applied, nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)", m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}

	return tx.Commit()
}
