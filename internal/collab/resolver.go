package collab

import (
	"context"
	"errors"

	"collabhub/api/internal/rbac"
	"collabhub/api/internal/store"
)

// Access is what a user may do on a project. It is derived on every call and
// never stored.
type Access struct {
	ProjectID   string           `json:"projectId"`
	UserID      string           `json:"userId"`
	Role        rbac.Role        `json:"role"`
	Permissions rbac.Permissions `json:"permissions"`
}

func (a Access) IsOwner() bool { return a.Role == rbac.RoleOwner }

type Resolver struct {
	projects ProjectStore
	requests RequestStore
}

func NewResolver(projects ProjectStore, requests RequestStore) *Resolver {
	return &Resolver{projects: projects, requests: requests}
}

// ResolveAccess returns owner access for the project owner, the accepted
// request's role for a collaborator, and Forbidden for everyone else.
func (r *Resolver) ResolveAccess(ctx context.Context, userID, projectID string) (Access, error) {
	project, err := r.projects.GetProject(ctx, projectID)
	if err != nil {
		return Access{}, classify(err)
	}
	if project.OwnerID == userID {
		return Access{
			ProjectID:   project.ID,
			UserID:      userID,
			Role:        rbac.RoleOwner,
			Permissions: rbac.DefaultPermissions(rbac.RoleOwner),
		}, nil
	}

	req, err := r.requests.FindAcceptedCollaboration(ctx, project.ID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Access{}, Forbidden.New("no access to project %s", project.ID)
	}
	if err != nil {
		return Access{}, classify(err)
	}
	return Access{
		ProjectID:   project.ID,
		UserID:      userID,
		Role:        req.Role,
		Permissions: req.Permissions,
	}, nil
}

// Require resolves access and checks it against action.
func (r *Resolver) Require(ctx context.Context, userID, projectID string, action rbac.Action) (Access, error) {
	access, err := r.ResolveAccess(ctx, userID, projectID)
	if err != nil {
		return Access{}, err
	}
	if !rbac.Can(access.Permissions, action) {
		return Access{}, Forbidden.New("%s role cannot %s on project %s", access.Role, action, projectID)
	}
	return access, nil
}

// RequireOwner admits only the project owner. Project admins do not qualify.
func (r *Resolver) RequireOwner(ctx context.Context, userID, projectID string) (Access, error) {
	access, err := r.ResolveAccess(ctx, userID, projectID)
	if err != nil {
		return Access{}, err
	}
	if !access.IsOwner() {
		return Access{}, Forbidden.New("only the project owner can do this")
	}
	return access, nil
}
