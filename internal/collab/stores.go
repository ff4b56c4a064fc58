package collab

import (
	"context"

	"collabhub/api/internal/store"
)

type IdentityStore interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	CountActiveAdmins(ctx context.Context) (int, error)
	// SetUserActive and DeleteUser refuse, with store.ErrLastActiveAdmin,
	// to remove the last active admin. The check and the write are atomic.
	SetUserActive(ctx context.Context, userID string, active bool) error
	DeleteUser(ctx context.Context, userID string) error
}

type ProjectStore interface {
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	IsProjectOwner(ctx context.Context, projectID, userID string) (bool, error)
}

type RequestStore interface {
	// InsertCollaborationRequest fails with store.ErrDuplicate when a live
	// request already exists for the same (project, receiver).
	InsertCollaborationRequest(ctx context.Context, req store.CollaborationRequest) (store.CollaborationRequest, error)
	GetCollaborationRequest(ctx context.Context, requestID string) (store.CollaborationRequest, error)
	// TransitionCollaborationRequest fails with store.ErrStaleState when the
	// request is no longer in status from.
	TransitionCollaborationRequest(ctx context.Context, requestID string, from, to store.RequestStatus) (store.CollaborationRequest, error)
	FindAcceptedCollaboration(ctx context.Context, projectID, userID string) (store.CollaborationRequest, error)
	ListCollaborationRequests(ctx context.Context, filter store.RequestFilter, after store.Cursor, limit int) ([]store.CollaborationRequest, error)
}
