package collab_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"collabhub/api/internal/collab"
	"collabhub/api/internal/rbac"
	"collabhub/api/internal/store"
)

func TestResolveAccessOwnerCollaboratorStranger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "owner", store.SystemRoleUser)
	f.user(t, "alice", store.SystemRoleUser)
	f.user(t, "bob", store.SystemRoleUser)
	f.project(t, "prj", "owner")

	access, err := f.resolver.ResolveAccess(ctx, "owner", "prj")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleOwner, access.Role)
	require.Equal(t, rbac.DefaultPermissions(rbac.RoleOwner), access.Permissions)

	_, err = f.resolver.ResolveAccess(ctx, "alice", "prj")
	require.True(t, collab.Forbidden.Has(err), err)

	// A pending request grants nothing.
	req, err := f.ledger.RequestCollaboration(ctx, collab.RequestInput{ProjectID: "prj", SenderID: "owner", ReceiverID: "alice", Role: "admin"})
	require.NoError(t, err)
	_, err = f.resolver.ResolveAccess(ctx, "alice", "prj")
	require.True(t, collab.Forbidden.Has(err), err)

	_, err = f.ledger.Accept(ctx, req.ID, "alice")
	require.NoError(t, err)
	access, err = f.resolver.ResolveAccess(ctx, "alice", "prj")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleAdmin, access.Role)
	require.False(t, access.IsOwner())

	_, err = f.resolver.ResolveAccess(ctx, "bob", "prj")
	require.True(t, collab.Forbidden.Has(err), err)

	_, err = f.resolver.ResolveAccess(ctx, "owner", "missing")
	require.True(t, collab.NotFound.Has(err), err)
}

func TestEditorLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "owner", store.SystemRoleUser)
	f.user(t, "alice", store.SystemRoleUser)
	f.project(t, "prj", "owner")

	req, err := f.ledger.RequestCollaboration(ctx, collab.RequestInput{ProjectID: "prj", SenderID: "owner", ReceiverID: "alice", Role: "editor"})
	require.NoError(t, err)
	require.Equal(t, store.RequestPending, req.Status)

	req, err = f.ledger.Accept(ctx, req.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, store.RequestAccepted, req.Status)

	access, err := f.resolver.ResolveAccess(ctx, "alice", "prj")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleEditor, access.Role)

	req, err = f.ledger.Remove(ctx, req.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, store.RequestRemoved, req.Status)

	_, err = f.resolver.ResolveAccess(ctx, "alice", "prj")
	require.True(t, collab.Forbidden.Has(err), err)
}

func TestRequireChecksPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "owner", store.SystemRoleUser)
	f.user(t, "viewer", store.SystemRoleUser)
	f.user(t, "padmin", store.SystemRoleUser)
	f.project(t, "prj", "owner")

	for receiver, role := range map[string]string{"viewer": "viewer", "padmin": "admin"} {
		req, err := f.ledger.RequestCollaboration(ctx, collab.RequestInput{ProjectID: "prj", SenderID: "owner", ReceiverID: receiver, Role: role})
		require.NoError(t, err)
		_, err = f.ledger.Accept(ctx, req.ID, receiver)
		require.NoError(t, err)
	}

	cases := []struct {
		user    string
		action  rbac.Action
		allowed bool
	}{
		{"viewer", rbac.ActionRead, true},
		{"viewer", rbac.ActionMessage, true},
		{"viewer", rbac.ActionEdit, false},
		{"viewer", rbac.ActionUpload, false},
		{"padmin", rbac.ActionEdit, true},
		{"padmin", rbac.ActionDelete, true},
		{"owner", rbac.ActionDelete, true},
	}
	for _, tc := range cases {
		_, err := f.resolver.Require(ctx, tc.user, "prj", tc.action)
		if tc.allowed {
			require.NoError(t, err, "%s %s", tc.user, tc.action)
		} else {
			require.True(t, collab.Forbidden.Has(err), "%s %s: %v", tc.user, tc.action, err)
		}
	}

	_, err := f.resolver.RequireOwner(ctx, "padmin", "prj")
	require.True(t, collab.Forbidden.Has(err), "project admin is not the owner: %v", err)
	_, err = f.resolver.RequireOwner(ctx, "owner", "prj")
	require.NoError(t, err)
}
