package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process implementation of the same surface as
// PostgresStore. Every method runs under one mutex, which gives it the same
// atomicity the SQL store gets from constraints and transactions.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	last     time.Time
	users    map[string]User
	projects map[string]Project
	requests map[string]CollaborationRequest
	// (project, receiver) -> ID of the pending or accepted request
	live     map[[2]string]string
	messages map[string]Message
	uploads  map[string]Upload
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		users:    make(map[string]User),
		projects: make(map[string]Project),
		requests: make(map[string]CollaborationRequest),
		live:     make(map[[2]string]string),
		messages: make(map[string]Message),
		uploads:  make(map[string]Upload),
	}
}

// tick returns a strictly increasing timestamp so newest-first ordering is
// total even when writes land in the same clock tick.
func (m *MemoryStore) tick() time.Time {
	now := m.now().UTC()
	if !now.After(m.last) {
		now = m.last.Add(time.Microsecond)
	}
	m.last = now
	return now
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Callers get their own Skills/Tags so mutating a result never reaches the
// stored record.
func cloneUser(user User) User {
	user.Skills = slices.Clone(user.Skills)
	return user
}

func cloneProject(project Project) Project {
	project.Tags = slices.Clone(project.Tags)
	return project
}

func liveKey(req CollaborationRequest) [2]string {
	return [2]string{req.ProjectID, req.ReceiverID}
}

// indexLocked keeps live in step with req's current status.
func (m *MemoryStore) indexLocked(req CollaborationRequest) {
	key := liveKey(req)
	if req.Status.Live() {
		m.live[key] = req.ID
		return
	}
	if m.live[key] == req.ID {
		delete(m.live, key)
	}
}

func (m *MemoryStore) deleteRequestLocked(req CollaborationRequest) {
	delete(m.requests, req.ID)
	if m.live[liveKey(req)] == req.ID {
		delete(m.live, liveKey(req))
	}
}

// =============================================================================
// Users
// =============================================================================

func (m *MemoryStore) CreateUser(_ context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return fmt.Errorf("insert user %s: %w", user.Email, ErrDuplicate)
		}
	}
	if _, ok := m.users[user.ID]; ok {
		return fmt.Errorf("insert user %s: %w", user.ID, ErrDuplicate)
	}
	now := m.tick()
	user.CreatedAt, user.UpdatedAt = now, now
	user.Skills = slices.Clone(user.Skills)
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, userID string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return cloneUser(user), nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := strings.ToLower(strings.TrimSpace(email))
	for _, user := range m.users {
		if user.Email == want {
			return cloneUser(user), nil
		}
	}
	return User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
}

func (m *MemoryStore) UpdateUserProfile(_ context.Context, userID, name, bio string, skills []string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	user.Name = name
	user.Bio = bio
	user.Skills = slices.Clone(skills)
	user.UpdatedAt = m.tick()
	m.users[userID] = user
	return cloneUser(user), nil
}

func (m *MemoryStore) ListUsers(_ context.Context, filter UserFilter) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(filter.Query))
	items := make([]User, 0)
	for _, user := range m.users {
		if !filter.IncludeInactive && !user.Active {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(user.Name), q) && !strings.Contains(user.Email, q) {
			continue
		}
		items = append(items, cloneUser(user))
	}
	sort.Slice(items, func(i, j int) bool {
		return newerFirst(items[i].CreatedAt, items[i].ID, items[j].CreatedAt, items[j].ID)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	return paginate(items, filter.Offset, limit), nil
}

func (m *MemoryStore) CountActiveAdmins(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countActiveAdminsLocked(), nil
}

func (m *MemoryStore) countActiveAdminsLocked() int {
	count := 0
	for _, user := range m.users {
		if user.IsActiveAdmin() {
			count++
		}
	}
	return count
}

func (m *MemoryStore) SetUserActive(_ context.Context, userID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if !active && user.IsActiveAdmin() && m.countActiveAdminsLocked() <= 1 {
		return fmt.Errorf("user %s: %w", userID, ErrLastActiveAdmin)
	}
	user.Active = active
	user.UpdatedAt = m.tick()
	m.users[userID] = user
	return nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if user.IsActiveAdmin() && m.countActiveAdminsLocked() <= 1 {
		return fmt.Errorf("user %s: %w", userID, ErrLastActiveAdmin)
	}
	delete(m.users, userID)

	// Mirror ON DELETE CASCADE.
	for id, project := range m.projects {
		if project.OwnerID == userID {
			m.deleteProjectLocked(id)
		}
	}
	for _, req := range m.requests {
		if req.SenderID == userID || req.ReceiverID == userID {
			m.deleteRequestLocked(req)
		}
	}
	for id, msg := range m.messages {
		if msg.SenderID == userID {
			delete(m.messages, id)
		}
	}
	for id, item := range m.uploads {
		if item.UploaderID == userID {
			delete(m.uploads, id)
		}
	}
	return nil
}

func (m *MemoryStore) CountUsers(context.Context) (UserCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counts UserCounts
	for _, user := range m.users {
		counts.Total++
		if user.Active {
			counts.Active++
		}
		if user.Role == SystemRoleAdmin {
			counts.Admins++
		}
	}
	return counts, nil
}

func (m *MemoryStore) CountSignupsSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, user := range m.users {
		if !user.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// Projects
// =============================================================================

func (m *MemoryStore) CreateProject(_ context.Context, project Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[project.ID]; ok {
		return fmt.Errorf("insert project %s: %w", project.ID, ErrDuplicate)
	}
	if _, ok := m.users[project.OwnerID]; !ok {
		return fmt.Errorf("project owner %s: %w", project.OwnerID, ErrNotFound)
	}
	now := m.tick()
	project.CreatedAt, project.UpdatedAt = now, now
	project.Tags = slices.Clone(project.Tags)
	m.projects[project.ID] = project
	return nil
}

func (m *MemoryStore) GetProject(_ context.Context, projectID string) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	project, ok := m.projects[projectID]
	if !ok {
		return Project{}, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return cloneProject(project), nil
}

func (m *MemoryStore) IsProjectOwner(_ context.Context, projectID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	project, ok := m.projects[projectID]
	return ok && project.OwnerID == userID, nil
}

func (m *MemoryStore) UpdateProject(_ context.Context, project Project) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.projects[project.ID]
	if !ok {
		return Project{}, fmt.Errorf("project %s: %w", project.ID, ErrNotFound)
	}
	existing.Title = project.Title
	existing.Description = project.Description
	existing.Status = project.Status
	existing.Tags = slices.Clone(project.Tags)
	existing.UpdatedAt = m.tick()
	m.projects[project.ID] = existing
	return cloneProject(existing), nil
}

func (m *MemoryStore) DeleteProject(_ context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[projectID]; !ok {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	m.deleteProjectLocked(projectID)
	return nil
}

func (m *MemoryStore) deleteProjectLocked(projectID string) {
	delete(m.projects, projectID)
	for _, req := range m.requests {
		if req.ProjectID == projectID {
			m.deleteRequestLocked(req)
		}
	}
	for id, msg := range m.messages {
		if msg.ProjectID == projectID {
			delete(m.messages, id)
		}
	}
	for id, item := range m.uploads {
		if item.ProjectID == projectID {
			delete(m.uploads, id)
		}
	}
}

func (m *MemoryStore) ListProjectsForUser(_ context.Context, userID string, limit, offset int) ([]Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	collaborating := map[string]bool{}
	for _, req := range m.requests {
		if req.ReceiverID == userID && req.Status == RequestAccepted {
			collaborating[req.ProjectID] = true
		}
	}
	items := make([]Project, 0)
	for _, project := range m.projects {
		if project.OwnerID == userID || collaborating[project.ID] {
			items = append(items, cloneProject(project))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return newerFirst(items[i].UpdatedAt, items[i].ID, items[j].UpdatedAt, items[j].ID)
	})
	if limit <= 0 {
		limit = 20
	}
	return paginate(items, offset, limit), nil
}

// ListAllProjects returns every project, newest first. It feeds the in-memory
// search fallback.
func (m *MemoryStore) ListAllProjects(context.Context) ([]Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]Project, 0, len(m.projects))
	for _, project := range m.projects {
		items = append(items, cloneProject(project))
	}
	sort.Slice(items, func(i, j int) bool {
		return newerFirst(items[i].CreatedAt, items[i].ID, items[j].CreatedAt, items[j].ID)
	})
	return items, nil
}

func (m *MemoryStore) CountProjectsByStatus(context.Context) (map[ProjectStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := map[ProjectStatus]int{}
	for _, project := range m.projects {
		counts[project.Status]++
	}
	return counts, nil
}

// =============================================================================
// Collaboration requests
// =============================================================================

func (m *MemoryStore) InsertCollaborationRequest(_ context.Context, req CollaborationRequest) (CollaborationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[req.ProjectID]; !ok {
		return CollaborationRequest{}, fmt.Errorf("project %s: %w", req.ProjectID, ErrNotFound)
	}
	if _, taken := m.live[liveKey(req)]; taken && req.Status.Live() {
		return CollaborationRequest{}, fmt.Errorf("insert collaboration request: %w", ErrDuplicate)
	}
	if _, ok := m.requests[req.ID]; ok {
		return CollaborationRequest{}, fmt.Errorf("insert collaboration request %s: %w", req.ID, ErrDuplicate)
	}
	now := m.tick()
	req.CreatedAt, req.UpdatedAt = now, now
	m.requests[req.ID] = req
	m.indexLocked(req)
	return req, nil
}

func (m *MemoryStore) GetCollaborationRequest(_ context.Context, requestID string) (CollaborationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[requestID]
	if !ok {
		return CollaborationRequest{}, fmt.Errorf("collaboration request %s: %w", requestID, ErrNotFound)
	}
	return req, nil
}

func (m *MemoryStore) TransitionCollaborationRequest(_ context.Context, requestID string, from, to RequestStatus) (CollaborationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[requestID]
	if !ok {
		return CollaborationRequest{}, fmt.Errorf("collaboration request %s: %w", requestID, ErrNotFound)
	}
	if req.Status != from {
		return CollaborationRequest{}, fmt.Errorf("collaboration request %s not %s: %w", requestID, from, ErrStaleState)
	}
	req.Status = to
	req.UpdatedAt = m.tick()
	m.requests[requestID] = req
	m.indexLocked(req)
	return req, nil
}

func (m *MemoryStore) FindAcceptedCollaboration(_ context.Context, projectID, userID string) (CollaborationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.live[[2]string{projectID, userID}]; ok {
		if req := m.requests[id]; req.Status == RequestAccepted {
			return req, nil
		}
	}
	return CollaborationRequest{}, fmt.Errorf("accepted collaboration %s/%s: %w", projectID, userID, ErrNotFound)
}

func (m *MemoryStore) ListCollaborationRequests(_ context.Context, filter RequestFilter, after Cursor, limit int) ([]CollaborationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	items := make([]CollaborationRequest, 0)
	for _, req := range m.requests {
		if filter.matches(req) && after.Before(req.CreatedAt, req.ID) {
			items = append(items, req)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return newerFirst(items[i].CreatedAt, items[i].ID, items[j].CreatedAt, items[j].ID)
	})
	return paginate(items, 0, limit), nil
}

func (m *MemoryStore) CountRequestsByStatus(context.Context) (map[RequestStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := map[RequestStatus]int{}
	for _, req := range m.requests {
		counts[req.Status]++
	}
	return counts, nil
}

// =============================================================================
// Messages and uploads
// =============================================================================

func (m *MemoryStore) InsertMessage(_ context.Context, msg Message) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[msg.ProjectID]; !ok {
		return Message{}, fmt.Errorf("project %s: %w", msg.ProjectID, ErrNotFound)
	}
	msg.CreatedAt = m.tick()
	m.messages[msg.ID] = msg
	return msg, nil
}

func (m *MemoryStore) ListMessages(_ context.Context, projectID string, after Cursor, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	items := make([]Message, 0)
	for _, msg := range m.messages {
		if msg.ProjectID == projectID && after.Before(msg.CreatedAt, msg.ID) {
			items = append(items, msg)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return newerFirst(items[i].CreatedAt, items[i].ID, items[j].CreatedAt, items[j].ID)
	})
	return paginate(items, 0, limit), nil
}

func (m *MemoryStore) InsertUpload(_ context.Context, item Upload) (Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[item.ProjectID]; !ok {
		return Upload{}, fmt.Errorf("project %s: %w", item.ProjectID, ErrNotFound)
	}
	item.CreatedAt = m.tick()
	m.uploads[item.ID] = item
	return item, nil
}

func (m *MemoryStore) GetUpload(_ context.Context, projectID, uploadID string) (Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.uploads[uploadID]
	if !ok || item.ProjectID != projectID {
		return Upload{}, fmt.Errorf("upload %s: %w", uploadID, ErrNotFound)
	}
	return item, nil
}

func (m *MemoryStore) ListUploads(_ context.Context, projectID string) ([]Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]Upload, 0)
	for _, item := range m.uploads {
		if item.ProjectID == projectID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return newerFirst(items[i].CreatedAt, items[i].ID, items[j].CreatedAt, items[j].ID)
	})
	return items, nil
}

func (m *MemoryStore) DeleteUpload(_ context.Context, projectID, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.uploads[uploadID]
	if !ok || item.ProjectID != projectID {
		return fmt.Errorf("upload %s: %w", uploadID, ErrNotFound)
	}
	delete(m.uploads, uploadID)
	return nil
}

func newerFirst(aTime time.Time, aID string, bTime time.Time, bID string) bool {
	if aTime.Equal(bTime) {
		return aID > bID
	}
	return aTime.After(bTime)
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
