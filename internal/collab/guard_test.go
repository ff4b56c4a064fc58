package collab_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"collabhub/api/internal/collab"
	"collabhub/api/internal/store"
)

func TestAdminGuardNthRemovalFails(t *testing.T) {
	for _, op := range []string{"deactivate", "delete"} {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			const n = 4
			for i := 0; i < n; i++ {
				f.user(t, fmt.Sprintf("admin-%d", i), store.SystemRoleAdmin)
			}
			remove := f.guard.Deactivate
			if op == "delete" {
				remove = f.guard.Delete
			}

			for i := 0; i < n-1; i++ {
				require.NoError(t, remove(ctx, fmt.Sprintf("admin-%d", i)))
			}
			last := fmt.Sprintf("admin-%d", n-1)
			require.True(t, collab.PolicyViolation.Has(f.guard.AssertCanDeactivateOrDelete(ctx, last)))
			err := remove(ctx, last)
			require.True(t, collab.PolicyViolation.Has(err), err)

			user, err := f.store.GetUserByID(ctx, last)
			require.NoError(t, err)
			require.True(t, user.IsActiveAdmin(), "refused mutation must leave the admin untouched")
		})
	}
}

func TestAdminGuardIgnoresNonAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "admin", store.SystemRoleAdmin)
	f.user(t, "plain", store.SystemRoleUser)

	require.NoError(t, f.guard.AssertCanDeactivateOrDelete(ctx, "plain"))
	require.NoError(t, f.guard.Deactivate(ctx, "plain"))
	require.NoError(t, f.guard.Activate(ctx, "plain"))
	require.NoError(t, f.guard.Delete(ctx, "plain"))

	err := f.guard.Deactivate(ctx, "ghost")
	require.True(t, collab.NotFound.Has(err), err)
}

func TestAdminGuardReactivationRestoresHeadroom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "a1", store.SystemRoleAdmin)
	f.user(t, "a2", store.SystemRoleAdmin)

	require.NoError(t, f.guard.Deactivate(ctx, "a1"))
	require.True(t, collab.PolicyViolation.Has(f.guard.Deactivate(ctx, "a2")))
	require.NoError(t, f.guard.Activate(ctx, "a1"))
	require.NoError(t, f.guard.Deactivate(ctx, "a2"))
}

func TestConcurrentAdminDeactivationKeepsOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const n = 6
	for i := 0; i < n; i++ {
		f.user(t, fmt.Sprintf("admin-%d", i), store.SystemRoleAdmin)
	}

	var group errgroup.Group
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("admin-%d", i)
		group.Go(func() error {
			err := f.guard.Deactivate(ctx, id)
			if err != nil && !collab.PolicyViolation.Has(err) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, group.Wait())

	count, err := f.store.CountActiveAdmins(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
