package collab

import "context"

// AdminGuard keeps at least one active administrator in the system.
type AdminGuard struct {
	users IdentityStore
}

func NewAdminGuard(users IdentityStore) *AdminGuard {
	return &AdminGuard{users: users}
}

// AssertCanDeactivateOrDelete is an advisory check. Deactivate and Delete
// repeat it atomically inside the store.
func (g *AdminGuard) AssertCanDeactivateOrDelete(ctx context.Context, userID string) error {
	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		return classify(err)
	}
	if !user.IsActiveAdmin() {
		return nil
	}
	count, err := g.users.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if count <= 1 {
		return PolicyViolation.New("cannot remove the last active admin")
	}
	return nil
}

func (g *AdminGuard) Deactivate(ctx context.Context, userID string) error {
	if err := g.AssertCanDeactivateOrDelete(ctx, userID); err != nil {
		return err
	}
	return classify(g.users.SetUserActive(ctx, userID, false))
}

func (g *AdminGuard) Delete(ctx context.Context, userID string) error {
	if err := g.AssertCanDeactivateOrDelete(ctx, userID); err != nil {
		return err
	}
	return classify(g.users.DeleteUser(ctx, userID))
}

func (g *AdminGuard) Activate(ctx context.Context, userID string) error {
	return classify(g.users.SetUserActive(ctx, userID, true))
}
