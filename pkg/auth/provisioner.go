package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/gatehouse/pkg/async"
	"github.com/platinummonkey/gatehouse/pkg/observability"
	"github.com/platinummonkey/gatehouse/pkg/rbac"
)

const codeLookupTimeout = 10 * time.Second

// UserStore persists principals
type UserStore interface {
	// GetUserByAuthID returns nil, nil when no user carries authID
	GetUserByAuthID(ctx context.Context, authID string) (*Principal, error)
	// GetUserByEmail returns nil, nil when no user has email
	GetUserByEmail(ctx context.Context, email string) (*Principal, error)
	CreateUser(ctx context.Context, p *Principal) error
	UpdateUser(ctx context.Context, p *Principal) error
	GetGroups(ctx context.Context, userID string) (map[string][]string, error)
	RecordLogin(ctx context.Context, userID string) error
}

// WorkspaceWriter creates the demo workspace for users without one
type WorkspaceWriter interface {
	HasOrganizations(ctx context.Context, userID string) (bool, error)
	OrganizationCodes(ctx context.Context) ([]string, error)
	ProjectCodes(ctx context.Context) ([]string, error)
	// CreateWorkspace stores both resources or neither
	CreateWorkspace(ctx context.Context, org, project *rbac.Resource) error
}

// Provisioner turns verified claims into a local principal: it finds the
// user by external id, then by verified email, and otherwise creates one.
// Users that belong to no organization get a demo workspace.
type Provisioner struct {
	users      UserStore
	workspaces WorkspaceWriter
	logger     *observability.Logger
	newID      func() string
}

// NewProvisioner creates a provisioner. workspaces may be nil to disable
// demo workspace creation.
func NewProvisioner(users UserStore, workspaces WorkspaceWriter, logger *observability.Logger) *Provisioner {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Provisioner{
		users:      users,
		workspaces: workspaces,
		logger:     logger.WithField("component", "provisioner"),
		newID:      uuid.NewString,
	}
}

// Provision returns the principal for claims, creating or updating the
// stored user as needed
func (p *Provisioner) Provision(ctx context.Context, claims *Claims) (*Principal, error) {
	if claims == nil || claims.Subject == "" {
		return nil, fmt.Errorf("%w: identity provider returned no subject", ErrUnauthenticated)
	}

	user, err := p.findOrCreate(ctx, claims)
	if err != nil {
		return nil, err
	}

	if err := p.ensureDefaultWorkspace(ctx, user); err != nil {
		return nil, err
	}

	groups, err := p.users.GetGroups(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}
	user.Groups = groups

	if err := p.users.RecordLogin(ctx, user.ID); err != nil {
		p.logger.WithError(err).WithField("user_id", user.ID).Warn("failed to record login")
	}

	return user, nil
}

func (p *Provisioner) findOrCreate(ctx context.Context, claims *Claims) (*Principal, error) {
	user, err := p.users.GetUserByAuthID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user by auth id: %w", err)
	}
	if user != nil {
		if refreshProfile(user, claims) {
			if err := p.users.UpdateUser(ctx, user); err != nil {
				return nil, fmt.Errorf("failed to update user: %w", err)
			}
		}
		return user, nil
	}

	if claims.Email != "" {
		user, err = p.users.GetUserByEmail(ctx, claims.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user by email: %w", err)
		}
	}
	if user != nil {
		if !claims.EmailVerified {
			p.logger.WithField("user_id", user.ID).
				WithField("auth_id", claims.Subject).
				Warn("refusing to attach identity to account matched by unverified email")
			return nil, ErrEmailNotVerified
		}

		user.AuthIDs = append(user.AuthIDs, claims.Subject)
		refreshProfile(user, claims)
		if err := p.users.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to attach auth id: %w", err)
		}
		p.logger.WithField("user_id", user.ID).Info("attached new identity to existing account")
		return user, nil
	}

	user = &Principal{
		ID:            p.newID(),
		AuthIDs:       []string{claims.Subject},
		Email:         claims.Email,
		Name:          displayName(claims),
		EmailVerified: claims.EmailVerified,
	}
	if err := p.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	p.logger.WithField("user_id", user.ID).Info("created user")
	return user, nil
}

// refreshProfile copies provider-owned fields onto user and reports
// whether anything changed
func refreshProfile(user *Principal, claims *Claims) bool {
	changed := false
	if name := displayName(claims); name != "" && name != user.Name {
		user.Name = name
		changed = true
	}
	if claims.Email != "" && claims.Email != user.Email {
		user.Email = claims.Email
		changed = true
	}
	if claims.EmailVerified != user.EmailVerified {
		user.EmailVerified = claims.EmailVerified
		changed = true
	}
	return changed
}

func displayName(claims *Claims) string {
	if claims.Name != "" {
		return claims.Name
	}
	return claims.Email
}

func (p *Provisioner) ensureDefaultWorkspace(ctx context.Context, user *Principal) error {
	if p.workspaces == nil {
		return nil
	}

	has, err := p.workspaces.HasOrganizations(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to check organizations: %w", err)
	}
	if has {
		return nil
	}

	var orgCodes, projectCodes []string
	g := async.NewGroup(codeLookupTimeout)
	g.Go(func(ctx context.Context) (err error) {
		if orgCodes, err = p.workspaces.OrganizationCodes(ctx); err != nil {
			return fmt.Errorf("failed to list organization codes: %w", err)
		}
		return nil
	})
	g.Go(func(ctx context.Context) (err error) {
		if projectCodes, err = p.workspaces.ProjectCodes(ctx); err != nil {
			return fmt.Errorf("failed to list project codes: %w", err)
		}
		return nil
	})
	if err := errors.Join(g.Wait(ctx)...); err != nil {
		return err
	}

	ws := NewDefaultWorkspace(user, orgCodes, projectCodes)
	ws.Organization.ID = p.newID()
	ws.Project.ID = p.newID()
	ws.Project.ParentID = ws.Organization.ID

	if err := p.workspaces.CreateWorkspace(ctx, ws.Organization, ws.Project); err != nil {
		return fmt.Errorf("failed to create demo workspace: %w", err)
	}

	p.logger.WithField("user_id", user.ID).
		WithField("organization_code", ws.Organization.Code).
		Info("created demo workspace")
	return nil
}
