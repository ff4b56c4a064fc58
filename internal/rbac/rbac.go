package rbac

import "strings"

// Role is a project-level role. It is unrelated to the system-wide user role.
type Role string
type Action string

const (
	RoleOwner  Role = "owner"
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionMessage Action = "message"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionUpload  Action = "upload"
)

// Permissions are the per-collaborator capability flags. They start from the
// role defaults and can be overridden one by one.
type Permissions struct {
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
	// CanInvite is recorded and reported only; sending invitations stays
	// owner-only, so no Action maps to it.
	CanInvite bool `json:"canInvite"`
	CanUpload bool `json:"canUpload"`
}

// PermissionOverrides carries optional per-flag overrides from a request body.
type PermissionOverrides struct {
	CanEdit   *bool `json:"canEdit,omitempty"`
	CanDelete *bool `json:"canDelete,omitempty"`
	CanInvite *bool `json:"canInvite,omitempty"`
	CanUpload *bool `json:"canUpload,omitempty"`
}

func (r Role) Collaborator() bool {
	switch r {
	case RoleViewer, RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

func DefaultPermissions(role Role) Permissions {
	switch role {
	case RoleOwner:
		return Permissions{CanEdit: true, CanDelete: true, CanInvite: true, CanUpload: true}
	case RoleAdmin:
		return Permissions{CanEdit: true, CanDelete: true, CanInvite: true, CanUpload: true}
	case RoleEditor:
		return Permissions{CanEdit: true, CanUpload: true}
	default:
		return Permissions{}
	}
}

func (p Permissions) Apply(o PermissionOverrides) Permissions {
	if o.CanEdit != nil {
		p.CanEdit = *o.CanEdit
	}
	if o.CanDelete != nil {
		p.CanDelete = *o.CanDelete
	}
	if o.CanInvite != nil {
		p.CanInvite = *o.CanInvite
	}
	if o.CanUpload != nil {
		p.CanUpload = *o.CanUpload
	}
	return p
}

// Can reports whether a holder of p may perform action. Anyone holding
// permissions at all has access, so read and message are always allowed.
func Can(p Permissions, action Action) bool {
	switch action {
	case ActionRead, ActionMessage:
		return true
	case ActionEdit:
		return p.CanEdit
	case ActionDelete:
		return p.CanDelete
	case ActionUpload:
		return p.CanUpload
	default:
		return false
	}
}

// ParseCollaboratorRole maps request input to a collaborator role. An empty
// value defaults to viewer; "owner" and unknown values are rejected.
func ParseCollaboratorRole(raw string) (Role, bool) {
	value := Role(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return RoleViewer, true
	}
	if !value.Collaborator() {
		return "", false
	}
	return value, true
}
