package collab

import (
	"context"
	"iter"
	"strings"

	"collabhub/api/internal/rbac"
	"collabhub/api/internal/store"
	"collabhub/api/internal/util"
)

const defaultPageSize = 50

// RequestInput is the validated body of a collaboration request.
type RequestInput struct {
	ProjectID   string
	SenderID    string
	ReceiverID  string
	Role        string
	Permissions rbac.PermissionOverrides
	Message     string
}

type Ledger struct {
	users    IdentityStore
	projects ProjectStore
	requests RequestStore
	pageSize int
}

func NewLedger(users IdentityStore, projects ProjectStore, requests RequestStore) *Ledger {
	return NewLedgerWithPageSize(users, projects, requests, defaultPageSize)
}

// NewLedgerWithPageSize sets how many requests each listing fetches per store
// round trip.
func NewLedgerWithPageSize(users IdentityStore, projects ProjectStore, requests RequestStore, pageSize int) *Ledger {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Ledger{users: users, projects: projects, requests: requests, pageSize: pageSize}
}

// RequestCollaboration records a pending request from the project owner to
// the receiver. Uniqueness of live requests is left to the store so that
// concurrent callers cannot both succeed.
func (l *Ledger) RequestCollaboration(ctx context.Context, in RequestInput) (store.CollaborationRequest, error) {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.SenderID = strings.TrimSpace(in.SenderID)
	in.ReceiverID = strings.TrimSpace(in.ReceiverID)
	switch {
	case in.ProjectID == "":
		return store.CollaborationRequest{}, ValidationError.New("projectId is required")
	case in.SenderID == "":
		return store.CollaborationRequest{}, ValidationError.New("senderId is required")
	case in.ReceiverID == "":
		return store.CollaborationRequest{}, ValidationError.New("receiverId is required")
	}

	project, err := l.projects.GetProject(ctx, in.ProjectID)
	if err != nil {
		return store.CollaborationRequest{}, classify(err)
	}
	// Ownership is checked before anything about the receiver is revealed.
	if project.OwnerID != in.SenderID {
		return store.CollaborationRequest{}, Forbidden.New("only the project owner can send collaboration requests")
	}
	if in.SenderID == in.ReceiverID {
		return store.CollaborationRequest{}, ValidationError.New("cannot send a collaboration request to yourself")
	}
	role, ok := rbac.ParseCollaboratorRole(in.Role)
	if !ok {
		return store.CollaborationRequest{}, ValidationError.New("role must be viewer, editor, or admin")
	}
	receiver, err := l.users.GetUserByID(ctx, in.ReceiverID)
	if err != nil {
		return store.CollaborationRequest{}, classify(err)
	}
	if !receiver.Active {
		return store.CollaborationRequest{}, NotFound.New("user %s", in.ReceiverID)
	}

	created, err := l.requests.InsertCollaborationRequest(ctx, store.CollaborationRequest{
		ID:          util.NewID("req"),
		ProjectID:   project.ID,
		SenderID:    in.SenderID,
		ReceiverID:  receiver.ID,
		Status:      store.RequestPending,
		Role:        role,
		Permissions: rbac.DefaultPermissions(role).Apply(in.Permissions),
		Message:     strings.TrimSpace(in.Message),
	})
	if err != nil {
		return store.CollaborationRequest{}, classify(err)
	}
	return created, nil
}

func (l *Ledger) Accept(ctx context.Context, requestID, actingUserID string) (store.CollaborationRequest, error) {
	return l.respond(ctx, requestID, actingUserID, store.RequestAccepted)
}

func (l *Ledger) Reject(ctx context.Context, requestID, actingUserID string) (store.CollaborationRequest, error) {
	return l.respond(ctx, requestID, actingUserID, store.RequestRejected)
}

func (l *Ledger) respond(ctx context.Context, requestID, actingUserID string, to store.RequestStatus) (store.CollaborationRequest, error) {
	req, err := l.requests.GetCollaborationRequest(ctx, requestID)
	if err != nil {
		return store.CollaborationRequest{}, classify(err)
	}
	if req.ReceiverID != actingUserID {
		return store.CollaborationRequest{}, Forbidden.New("only the receiver can respond to a collaboration request")
	}
	return l.transition(ctx, req, store.RequestPending, to)
}

// Remove ends an accepted collaboration. Only the project owner may do it.
func (l *Ledger) Remove(ctx context.Context, requestID, actingUserID string) (store.CollaborationRequest, error) {
	req, err := l.requests.GetCollaborationRequest(ctx, requestID)
	if err != nil {
		return store.CollaborationRequest{}, classify(err)
	}
	owner, err := l.projects.IsProjectOwner(ctx, req.ProjectID, actingUserID)
	if err != nil {
		return store.CollaborationRequest{}, classify(err)
	}
	if !owner {
		return store.CollaborationRequest{}, Forbidden.New("only the project owner can remove a collaborator")
	}
	return l.transition(ctx, req, store.RequestAccepted, store.RequestRemoved)
}

func (l *Ledger) transition(ctx context.Context, req store.CollaborationRequest, from, to store.RequestStatus) (store.CollaborationRequest, error) {
	if req.Status != from {
		return store.CollaborationRequest{}, InvalidState.New("cannot move request from %s to %s", req.Status, to)
	}
	updated, err := l.requests.TransitionCollaborationRequest(ctx, req.ID, from, to)
	if err != nil {
		return store.CollaborationRequest{}, classify(err)
	}
	return updated, nil
}

// Get returns a request to one of the parties involved in it.
func (l *Ledger) Get(ctx context.Context, requestID, actingUserID string) (store.CollaborationRequest, error) {
	req, err := l.requests.GetCollaborationRequest(ctx, requestID)
	if err != nil {
		return store.CollaborationRequest{}, classify(err)
	}
	if req.SenderID == actingUserID || req.ReceiverID == actingUserID {
		return req, nil
	}
	owner, err := l.projects.IsProjectOwner(ctx, req.ProjectID, actingUserID)
	if err != nil {
		return store.CollaborationRequest{}, classify(err)
	}
	if !owner {
		return store.CollaborationRequest{}, Forbidden.New("not a party to this collaboration request")
	}
	return req, nil
}

func (l *Ledger) ListPendingForReceiver(ctx context.Context, userID string) iter.Seq2[store.CollaborationRequest, error] {
	return l.list(ctx, store.RequestFilter{ReceiverID: userID, Statuses: []store.RequestStatus{store.RequestPending}})
}

func (l *Ledger) ListAcceptedForProject(ctx context.Context, projectID string) iter.Seq2[store.CollaborationRequest, error] {
	return l.list(ctx, store.RequestFilter{ProjectID: projectID, Statuses: []store.RequestStatus{store.RequestAccepted}})
}

func (l *Ledger) ListSentByUser(ctx context.Context, userID string) iter.Seq2[store.CollaborationRequest, error] {
	return l.list(ctx, store.RequestFilter{SenderID: userID})
}

// list pages through the store newest first. Nothing is fetched until the
// sequence is ranged over, and each range starts again from the top.
func (l *Ledger) list(ctx context.Context, filter store.RequestFilter) iter.Seq2[store.CollaborationRequest, error] {
	return func(yield func(store.CollaborationRequest, error) bool) {
		var cursor store.Cursor
		for {
			page, err := l.requests.ListCollaborationRequests(ctx, filter, cursor, l.pageSize)
			if err != nil {
				yield(store.CollaborationRequest{}, classify(err))
				return
			}
			for _, req := range page {
				if !yield(req, nil) {
					return
				}
			}
			if len(page) < l.pageSize {
				return
			}
			last := page[len(page)-1]
			cursor = store.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

// Collect drains a listing into a slice, stopping at the first error.
func Collect(seq iter.Seq2[store.CollaborationRequest, error]) ([]store.CollaborationRequest, error) {
	items := make([]store.CollaborationRequest, 0)
	for req, err := range seq {
		if err != nil {
			return nil, err
		}
		items = append(items, req)
	}
	return items, nil
}
