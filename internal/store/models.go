package store

import (
	"time"

	"collabhub/api/internal/rbac"
)

// SystemRole is the platform-wide role of a user. It is unrelated to the
// project-level rbac.Role even though both have an "admin" value.
type SystemRole string

const (
	SystemRoleUser  SystemRole = "user"
	SystemRoleAdmin SystemRole = "admin"
)

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
	ProjectPending   ProjectStatus = "pending"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectArchived, ProjectPending:
		return true
	default:
		return false
	}
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
	RequestRemoved  RequestStatus = "removed"
)

// Live reports whether the status still occupies the (project, receiver) slot.
func (s RequestStatus) Live() bool {
	return s == RequestPending || s == RequestAccepted
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         SystemRole
	Active       bool
	Bio          string
	Skills       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) IsActiveAdmin() bool {
	return u.Role == SystemRoleAdmin && u.Active
}

type Project struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Status      ProjectStatus
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CollaborationRequest struct {
	ID          string
	ProjectID   string
	SenderID    string
	ReceiverID  string
	Status      RequestStatus
	Role        rbac.Role
	Permissions rbac.Permissions
	Message     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Message struct {
	ID        string
	ProjectID string
	SenderID  string
	Body      string
	CreatedAt time.Time
}

type Upload struct {
	ID          string
	ProjectID   string
	UploaderID  string
	FileName    string
	ContentType string
	SizeBytes   int64
	ObjectKey   string
	CreatedAt   time.Time
}

// Cursor is a keyset position in a newest-first listing. The zero value
// starts from the top.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

func (c Cursor) IsZero() bool {
	return c.ID == "" && c.CreatedAt.IsZero()
}

// Before reports whether an item at (createdAt, id) sorts after the cursor in
// newest-first order.
func (c Cursor) Before(createdAt time.Time, id string) bool {
	if c.IsZero() {
		return true
	}
	if createdAt.Equal(c.CreatedAt) {
		return id < c.ID
	}
	return createdAt.Before(c.CreatedAt)
}

type RequestFilter struct {
	ProjectID  string
	ReceiverID string
	SenderID   string
	Statuses   []RequestStatus
}

func (f RequestFilter) matches(req CollaborationRequest) bool {
	if f.ProjectID != "" && req.ProjectID != f.ProjectID {
		return false
	}
	if f.ReceiverID != "" && req.ReceiverID != f.ReceiverID {
		return false
	}
	if f.SenderID != "" && req.SenderID != f.SenderID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, status := range f.Statuses {
		if req.Status == status {
			return true
		}
	}
	return false
}

type UserFilter struct {
	Query           string
	IncludeInactive bool
	Limit           int
	Offset          int
}

type UserCounts struct {
	Total  int
	Active int
	Admins int
}
