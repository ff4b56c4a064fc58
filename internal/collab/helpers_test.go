package collab_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"collabhub/api/internal/collab"
	"collabhub/api/internal/store"
)

type fixture struct {
	store    *store.MemoryStore
	ledger   *collab.Ledger
	resolver *collab.Resolver
	guard    *collab.AdminGuard
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	return &fixture{
		store:    mem,
		ledger:   collab.NewLedger(mem, mem, mem),
		resolver: collab.NewResolver(mem, mem),
		guard:    collab.NewAdminGuard(mem),
	}
}

func (f *fixture) user(t *testing.T, id string, role store.SystemRole) store.User {
	t.Helper()
	user := store.User{ID: id, Name: id, Email: id + "@example.com", Role: role, Active: true}
	require.NoError(t, f.store.CreateUser(context.Background(), user))
	return user
}

func (f *fixture) project(t *testing.T, id, ownerID string) store.Project {
	t.Helper()
	project := store.Project{ID: id, OwnerID: ownerID, Title: id, Status: store.ProjectActive}
	require.NoError(t, f.store.CreateProject(context.Background(), project))
	return project
}
