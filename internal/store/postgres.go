package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"collabhub/api/internal/rbac"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func textArray(dst *[]string) sql.Scanner {
	return pgtype.NewMap().SQLScanner(dst)
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// =============================================================================
// Users
// =============================================================================

const userColumns = `id, name, email, password_hash, role, active, bio, skills, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.Active,
		&user.Bio, textArray(&user.Skills), &user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, active, bio, skills)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7, $8)
	`, user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), user.Active, user.Bio, nonNilStrings(user.Skills))
	if isUniqueViolation(err) {
		return fmt.Errorf("insert user %s: %w", user.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID, name, bio string, skills []string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET name=$2, bio=$3, skills=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING `+userColumns,
		userID, name, bio, nonNilStrings(skills),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("update user profile: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, filter UserFilter) ([]User, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE ($1 OR active)`
	args := []any{filter.IncludeInactive}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+strings.ToLower(q)+"%")
		query += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args), len(args))
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountActiveAdmins(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role='admin' AND active`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active admins: %w", err)
	}
	return count, nil
}

// SetUserActive flips the active flag. Deactivating an active admin runs
// inside a transaction that holds row locks on every active admin, so two
// concurrent deactivations cannot both observe a second admin.
func (s *PostgresStore) SetUserActive(ctx context.Context, userID string, active bool) error {
	return s.guardedUserMutation(ctx, userID, !active, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE users SET active=$2, updated_at=NOW() WHERE id=$1`, userID, active)
		return err
	})
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	return s.guardedUserMutation(ctx, userID, true, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
		return err
	})
}

func (s *PostgresStore) guardedUserMutation(ctx context.Context, userID string, removesAdmin bool, mutate func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the admin set first, in id order, so concurrent guards serialize
	// instead of deadlocking on each other's target row.
	admins := map[string]struct{}{}
	if removesAdmin {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM users WHERE role='admin' AND active ORDER BY id FOR UPDATE`)
		if err != nil {
			return fmt.Errorf("lock active admins: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan admin id: %w", err)
			}
			admins[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate admins: %w", err)
		}
		rows.Close()
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT TRUE FROM users WHERE id=$1 FOR UPDATE`, userID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("lock user: %w", err)
	}

	if _, isAdmin := admins[userID]; removesAdmin && isAdmin && len(admins) <= 1 {
		return fmt.Errorf("user %s: %w", userID, ErrLastActiveAdmin)
	}

	if err := mutate(tx); err != nil {
		return fmt.Errorf("mutate user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountUsers(ctx context.Context) (UserCounts, error) {
	var counts UserCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE active),
			COUNT(*) FILTER (WHERE role='admin')
		FROM users
	`).Scan(&counts.Total, &counts.Active, &counts.Admins)
	if err != nil {
		return UserCounts{}, fmt.Errorf("count users: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) CountSignupsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE created_at >= $1`, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count signups: %w", err)
	}
	return count, nil
}

// =============================================================================
// Projects
// =============================================================================

const projectColumns = `id, owner_id, title, description, status, tags, created_at, updated_at`

func scanProject(row rowScanner) (Project, error) {
	var project Project
	err := row.Scan(
		&project.ID, &project.OwnerID, &project.Title, &project.Description, &project.Status,
		textArray(&project.Tags), &project.CreatedAt, &project.UpdatedAt,
	)
	return project, err
}

func (s *PostgresStore) CreateProject(ctx context.Context, project Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, title, description, status, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, project.ID, project.OwnerID, project.Title, project.Description, string(project.Status), nonNilStrings(project.Tags))
	if isUniqueViolation(err) {
		return fmt.Errorf("insert project %s: %w", project.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	project, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

func (s *PostgresStore) IsProjectOwner(ctx context.Context, projectID, userID string) (bool, error) {
	var owner bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE id=$1 AND owner_id=$2)`, projectID, userID).Scan(&owner)
	if err != nil {
		return false, fmt.Errorf("check project owner: %w", err)
	}
	return owner, nil
}

// UpdateProject writes the mutable fields. owner_id is never touched.
func (s *PostgresStore) UpdateProject(ctx context.Context, project Project) (Project, error) {
	updated, err := scanProject(s.db.QueryRowContext(ctx, `
		UPDATE projects SET title=$2, description=$3, status=$4, tags=$5, updated_at=NOW()
		WHERE id=$1
		RETURNING `+projectColumns,
		project.ID, project.Title, project.Description, string(project.Status), nonNilStrings(project.Tags),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("project %s: %w", project.ID, ErrNotFound)
	}
	if err != nil {
		return Project{}, fmt.Errorf("update project: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, projectID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, projectID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return nil
}

// ListProjectsForUser returns projects the user owns or collaborates on.
func (s *PostgresStore) ListProjectsForUser(ctx context.Context, userID string, limit, offset int) ([]Project, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects p
		WHERE p.owner_id = $1
			OR EXISTS (
				SELECT 1 FROM collaboration_requests cr
				WHERE cr.project_id = p.id AND cr.receiver_id = $1 AND cr.status = 'accepted'
			)
		ORDER BY p.updated_at DESC, p.id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountProjectsByStatus(ctx context.Context) (map[ProjectStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM projects GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	defer rows.Close()

	counts := map[ProjectStatus]int{}
	for rows.Next() {
		var status ProjectStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan project count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project counts: %w", err)
	}
	return counts, nil
}

// =============================================================================
// Collaboration requests
// =============================================================================

const requestColumns = `id, project_id, sender_id, receiver_id, status, role,
	can_edit, can_delete, can_invite, can_upload, message, created_at, updated_at`

func scanRequest(row rowScanner) (CollaborationRequest, error) {
	var req CollaborationRequest
	var role string
	err := row.Scan(
		&req.ID, &req.ProjectID, &req.SenderID, &req.ReceiverID, &req.Status, &role,
		&req.Permissions.CanEdit, &req.Permissions.CanDelete, &req.Permissions.CanInvite, &req.Permissions.CanUpload,
		&req.Message, &req.CreatedAt, &req.UpdatedAt,
	)
	req.Role = rbac.Role(role)
	return req, err
}

// InsertCollaborationRequest relies on collaboration_requests_active_receiver_uq;
// a second live request for the same (project, receiver) fails with ErrDuplicate
// no matter how the inserts interleave.
func (s *PostgresStore) InsertCollaborationRequest(ctx context.Context, req CollaborationRequest) (CollaborationRequest, error) {
	created, err := scanRequest(s.db.QueryRowContext(ctx, `
		INSERT INTO collaboration_requests
			(id, project_id, sender_id, receiver_id, status, role, can_edit, can_delete, can_invite, can_upload, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+requestColumns,
		req.ID, req.ProjectID, req.SenderID, req.ReceiverID, string(req.Status), string(req.Role),
		req.Permissions.CanEdit, req.Permissions.CanDelete, req.Permissions.CanInvite, req.Permissions.CanUpload,
		req.Message,
	))
	if isUniqueViolation(err) {
		return CollaborationRequest{}, fmt.Errorf("insert collaboration request: %w", ErrDuplicate)
	}
	if err != nil {
		return CollaborationRequest{}, fmt.Errorf("insert collaboration request: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetCollaborationRequest(ctx context.Context, requestID string) (CollaborationRequest, error) {
	req, err := scanRequest(s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM collaboration_requests WHERE id=$1`, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return CollaborationRequest{}, fmt.Errorf("collaboration request %s: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return CollaborationRequest{}, fmt.Errorf("get collaboration request: %w", err)
	}
	return req, nil
}

// TransitionCollaborationRequest moves a request from one status to another
// only if it is still in the expected status.
func (s *PostgresStore) TransitionCollaborationRequest(ctx context.Context, requestID string, from, to RequestStatus) (CollaborationRequest, error) {
	req, err := scanRequest(s.db.QueryRowContext(ctx, `
		UPDATE collaboration_requests SET status=$3, updated_at=NOW()
		WHERE id=$1 AND status=$2
		RETURNING `+requestColumns,
		requestID, string(from), string(to),
	))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetCollaborationRequest(ctx, requestID); getErr != nil {
			return CollaborationRequest{}, getErr
		}
		return CollaborationRequest{}, fmt.Errorf("collaboration request %s not %s: %w", requestID, from, ErrStaleState)
	}
	if err != nil {
		return CollaborationRequest{}, fmt.Errorf("transition collaboration request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) FindAcceptedCollaboration(ctx context.Context, projectID, userID string) (CollaborationRequest, error) {
	req, err := scanRequest(s.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM collaboration_requests
		WHERE project_id=$1 AND receiver_id=$2 AND status='accepted'
	`, projectID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return CollaborationRequest{}, fmt.Errorf("accepted collaboration %s/%s: %w", projectID, userID, ErrNotFound)
	}
	if err != nil {
		return CollaborationRequest{}, fmt.Errorf("find accepted collaboration: %w", err)
	}
	return req, nil
}

// ListCollaborationRequests returns at most limit requests matching filter,
// newest first, strictly after the given cursor.
func (s *PostgresStore) ListCollaborationRequests(ctx context.Context, filter RequestFilter, after Cursor, limit int) ([]CollaborationRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.ProjectID != "" {
		add("project_id = $%d", filter.ProjectID)
	}
	if filter.ReceiverID != "" {
		add("receiver_id = $%d", filter.ReceiverID)
	}
	if filter.SenderID != "" {
		add("sender_id = $%d", filter.SenderID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		add("status = ANY($%d)", statuses)
	}
	if !after.IsZero() {
		args = append(args, after.CreatedAt, after.ID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT ` + requestColumns + ` FROM collaboration_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list collaboration requests: %w", err)
	}
	defer rows.Close()

	items := make([]CollaborationRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collaboration request: %w", err)
		}
		items = append(items, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collaboration requests: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountRequestsByStatus(ctx context.Context) (map[RequestStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM collaboration_requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count collaboration requests: %w", err)
	}
	defer rows.Close()

	counts := map[RequestStatus]int{}
	for rows.Next() {
		var status RequestStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan request count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request counts: %w", err)
	}
	return counts, nil
}

// =============================================================================
// Messages and uploads
// =============================================================================

func (s *PostgresStore) InsertMessage(ctx context.Context, msg Message) (Message, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO project_messages (id, project_id, sender_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, msg.ID, msg.ProjectID, msg.SenderID, msg.Body).Scan(&msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, projectID string, after Cursor, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	args := []any{projectID}
	query := `SELECT id, project_id, sender_id, body, created_at FROM project_messages WHERE project_id=$1`
	if !after.IsZero() {
		args = append(args, after.CreatedAt, after.ID)
		query += " AND (created_at, id) < ($2, $3)"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var item Message
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.SenderID, &item.Body, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

const uploadColumns = `id, project_id, uploader_id, file_name, content_type, size_bytes, object_key, created_at`

func scanUpload(row rowScanner) (Upload, error) {
	var item Upload
	err := row.Scan(&item.ID, &item.ProjectID, &item.UploaderID, &item.FileName, &item.ContentType, &item.SizeBytes, &item.ObjectKey, &item.CreatedAt)
	return item, err
}

func (s *PostgresStore) InsertUpload(ctx context.Context, item Upload) (Upload, error) {
	created, err := scanUpload(s.db.QueryRowContext(ctx, `
		INSERT INTO project_uploads (id, project_id, uploader_id, file_name, content_type, size_bytes, object_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+uploadColumns,
		item.ID, item.ProjectID, item.UploaderID, item.FileName, item.ContentType, item.SizeBytes, item.ObjectKey,
	))
	if err != nil {
		return Upload{}, fmt.Errorf("insert upload: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetUpload(ctx context.Context, projectID, uploadID string) (Upload, error) {
	item, err := scanUpload(s.db.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM project_uploads WHERE id=$1 AND project_id=$2`, uploadID, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return Upload{}, fmt.Errorf("upload %s: %w", uploadID, ErrNotFound)
	}
	if err != nil {
		return Upload{}, fmt.Errorf("get upload: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListUploads(ctx context.Context, projectID string) ([]Upload, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+uploadColumns+` FROM project_uploads WHERE project_id=$1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	items := make([]Upload, 0)
	for rows.Next() {
		item, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteUpload(ctx context.Context, projectID, uploadID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM project_uploads WHERE id=$1 AND project_id=$2`, uploadID, projectID)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("upload %s: %w", uploadID, ErrNotFound)
	}
	return nil
}
