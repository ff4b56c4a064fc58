package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"collabhub/api/internal/assist"
	"collabhub/api/internal/auth"
	"collabhub/api/internal/authpw"
	"collabhub/api/internal/collab"
	"collabhub/api/internal/config"
	"collabhub/api/internal/email"
	"collabhub/api/internal/export"
	"collabhub/api/internal/history"
	"collabhub/api/internal/rbac"
	"collabhub/api/internal/search"
	"collabhub/api/internal/session"
	"collabhub/api/internal/store"
	"collabhub/api/internal/upload"
	"collabhub/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         store.SystemRole
	JTI          string
	ExpiresAt    time.Time
}

func (s Session) IsAdmin() bool {
	return s.Role == store.SystemRoleAdmin
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type ProfileInput struct {
	Name   string   `json:"name"`
	Bio    string   `json:"bio"`
	Skills []string `json:"skills"`
}

type CreateProjectInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
}

// UpdateProjectInput only touches the fields that are present.
type UpdateProjectInput struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	Tags        *[]string `json:"tags"`
}

type CollaborationInput struct {
	ProjectID   string                   `json:"projectId"`
	ReceiverID  string                   `json:"receiverId"`
	Role        string                   `json:"role"`
	Permissions rbac.PermissionOverrides `json:"permissions"`
	Message     string                   `json:"message"`
}

type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type UploadView struct {
	store.Upload
	URL string
}

type ProjectView struct {
	Project store.Project
	Access  collab.Access
}

type DashboardStats struct {
	Users            store.UserCounts
	ProjectsByStatus map[store.ProjectStatus]int
	RequestsByStatus map[store.RequestStatus]int
	RecentSignups    int
}

const (
	maxTitleLength    = 200
	maxMessageLength  = 4000
	defaultPageSize   = 20
	maxPageSize       = 100
	uploadURLExpiry   = 15 * time.Minute
	notifyTimeout     = 30 * time.Second
	recentSignupsSpan = 7 * 24 * time.Hour
	briefMessages     = 10
)

type dataStore interface {
	collab.IdentityStore
	collab.ProjectStore
	collab.RequestStore
	GetUserByEmail(context.Context, string) (store.User, error)
	CreateUser(context.Context, store.User) error
	UpdateUserProfile(ctx context.Context, userID, name, bio string, skills []string) (store.User, error)
	ListUsers(context.Context, store.UserFilter) ([]store.User, error)
	CountUsers(context.Context) (store.UserCounts, error)
	CountSignupsSince(context.Context, time.Time) (int, error)
	CreateProject(context.Context, store.Project) error
	UpdateProject(context.Context, store.Project) (store.Project, error)
	DeleteProject(context.Context, string) error
	ListProjectsForUser(ctx context.Context, userID string, limit, offset int) ([]store.Project, error)
	CountProjectsByStatus(context.Context) (map[store.ProjectStatus]int, error)
	CountRequestsByStatus(context.Context) (map[store.RequestStatus]int, error)
	InsertMessage(context.Context, store.Message) (store.Message, error)
	ListMessages(ctx context.Context, projectID string, after store.Cursor, limit int) ([]store.Message, error)
	InsertUpload(context.Context, store.Upload) (store.Upload, error)
	GetUpload(ctx context.Context, projectID, uploadID string) (store.Upload, error)
	ListUploads(ctx context.Context, projectID string) ([]store.Upload, error)
	DeleteUpload(ctx context.Context, projectID, uploadID string) error
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Service. Store and Sessions are required;
// the rest degrade to "not configured" when nil.
type Deps struct {
	Store     dataStore
	Sessions  session.Store
	Passwords *authpw.Service
	Search    *search.Service
	Files     upload.Storage
	Assist    *assist.Client
	Mail      *email.Service
	Export    *export.Service
	History   *history.Service
	Logger    *zap.Logger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  session.Store
	passwords *authpw.Service
	ledger    *collab.Ledger
	resolver  *collab.Resolver
	guard     *collab.AdminGuard
	search    *search.Service
	files     upload.Storage
	assist    *assist.Client
	mail      *email.Service
	exporter  *export.Service
	history   *history.Service
	log       *zap.Logger
	// notify runs e-mail side effects. Tests swap it for a synchronous call.
	notify func(func())
}

func New(cfg config.Config, deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	passwords := deps.Passwords
	if passwords == nil {
		passwords = authpw.NewService(deps.Store)
	}
	exporter := deps.Export
	if exporter == nil {
		exporter = export.NewService(log, export.Options{})
	}
	revisions := deps.History
	if revisions == nil {
		revisions = history.New("")
	}
	searchService := deps.Search
	if searchService == nil {
		searchService = search.NewService(nil, nil, nil, log)
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		sessions:  deps.Sessions,
		passwords: passwords,
		ledger:    collab.NewLedger(deps.Store, deps.Store, deps.Store),
		resolver:  collab.NewResolver(deps.Store, deps.Store),
		guard:     collab.NewAdminGuard(deps.Store),
		search:    searchService,
		files:     deps.Files,
		assist:    deps.Assist,
		mail:      deps.Mail,
		exporter:  exporter,
		history:   revisions,
		log:       log.Named("app"),
		notify:    func(fn func()) { go fn() },
	}
}

// Bootstrap creates the configured first admin when no active admin exists.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.cfg.BootstrapAdminEmail == "" || s.cfg.BootstrapAdminPassword == "" {
		return nil
	}
	created, err := s.passwords.EnsureAdmin(ctx, s.cfg.BootstrapAdminEmail, s.cfg.BootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		s.log.Info("bootstrap admin created", zap.String("email", s.cfg.BootstrapAdminEmail))
	}
	return nil
}

// Ping checks the health of service dependencies (database, sessions).
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := s.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	return nil
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (Session, error) {
	user, err := s.passwords.SignUp(ctx, authpw.SignUpRequest{
		Email:    input.Email,
		Password: input.Password,
		Name:     input.Name,
	})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, emailAddress, password string) (Session, error) {
	user, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: emailAddress, Password: password})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, session.ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if !user.Active {
		return Session{}, authpw.ErrAccountDisabled
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	jti := util.NewID("jti")
	claims := auth.NewClaims(user.ID, user.Name, string(user.Role), jti, s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := time.Now().Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// SessionFromToken validates an access token. The role comes from the stored
// user so that demotions and deactivations apply before the token expires.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	if !user.Active {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		Role:      user.Role,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) Me(ctx context.Context, sess Session) (store.User, error) {
	return s.store.GetUserByID(ctx, sess.UserID)
}

func (s *Service) UpdateProfile(ctx context.Context, sess Session, input ProfileInput) (store.User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return store.User{}, invalidInput("name is required", nil)
	}
	return s.store.UpdateUserProfile(ctx, sess.UserID, name, strings.TrimSpace(input.Bio), cleanList(input.Skills))
}

// ListUsers is the user directory. Only admins see deactivated accounts.
func (s *Service) ListUsers(ctx context.Context, sess Session, filter store.UserFilter) ([]store.User, error) {
	if !sess.IsAdmin() {
		filter.IncludeInactive = false
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.store.ListUsers(ctx, filter)
}

func (s *Service) CreateProject(ctx context.Context, sess Session, input CreateProjectInput) (ProjectView, error) {
	title := strings.TrimSpace(input.Title)
	if err := validateTitle(title); err != nil {
		return ProjectView{}, err
	}
	status := store.ProjectActive
	if input.Status != "" {
		status = store.ProjectStatus(strings.ToLower(input.Status))
		if !status.Valid() {
			return ProjectView{}, invalidStatus(input.Status)
		}
	}

	project := store.Project{
		ID:          util.NewID("prj"),
		OwnerID:     sess.UserID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		Tags:        cleanList(input.Tags),
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return ProjectView{}, err
	}
	created, err := s.store.GetProject(ctx, project.ID)
	if err != nil {
		return ProjectView{}, err
	}
	s.search.IndexProject(projectRecord(created))
	s.recordHistory(created, sess.UserName, "Create project")

	access, err := s.resolver.ResolveAccess(ctx, sess.UserID, created.ID)
	if err != nil {
		return ProjectView{}, err
	}
	return ProjectView{Project: created, Access: access}, nil
}

// ListProjects returns the projects the caller owns or collaborates on.
func (s *Service) ListProjects(ctx context.Context, sess Session, limit, offset int) ([]store.Project, error) {
	return s.store.ListProjectsForUser(ctx, sess.UserID, clampLimit(limit), max(offset, 0))
}

func (s *Service) GetProject(ctx context.Context, sess Session, projectID string) (ProjectView, error) {
	access, err := s.resolver.Require(ctx, sess.UserID, projectID, rbac.ActionRead)
	if err != nil {
		return ProjectView{}, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return ProjectView{}, err
	}
	return ProjectView{Project: project, Access: access}, nil
}

func (s *Service) UpdateProject(ctx context.Context, sess Session, projectID string, input UpdateProjectInput) (ProjectView, error) {
	access, err := s.resolver.Require(ctx, sess.UserID, projectID, rbac.ActionEdit)
	if err != nil {
		return ProjectView{}, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return ProjectView{}, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if err := validateTitle(title); err != nil {
			return ProjectView{}, err
		}
		project.Title = title
	}
	if input.Description != nil {
		project.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		status := store.ProjectStatus(strings.ToLower(*input.Status))
		if !status.Valid() {
			return ProjectView{}, invalidStatus(*input.Status)
		}
		project.Status = status
	}
	if input.Tags != nil {
		project.Tags = cleanList(*input.Tags)
	}

	updated, err := s.store.UpdateProject(ctx, project)
	if err != nil {
		return ProjectView{}, err
	}
	s.search.IndexProject(projectRecord(updated))
	s.recordHistory(updated, sess.UserName, "Update project")
	return ProjectView{Project: updated, Access: access}, nil
}

// DeleteProject is owner-only regardless of canDelete; a project admin can
// delete content but never the project itself.
func (s *Service) DeleteProject(ctx context.Context, sess Session, projectID string) error {
	if _, err := s.resolver.RequireOwner(ctx, sess.UserID, projectID); err != nil {
		return err
	}
	keys, err := s.uploadKeys(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.removeObjects(ctx, keys)
	s.search.DeleteProject(projectID)
	s.dropHistory(projectID)
	return nil
}

// ProjectHistory lists recorded field changes, newest first.
func (s *Service) ProjectHistory(ctx context.Context, sess Session, projectID string, limit int) ([]history.Revision, error) {
	if _, err := s.resolver.Require(ctx, sess.UserID, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.history.Log(projectID, clampLimit(limit))
}

// recordHistory and dropHistory are best effort; the store stays the source
// of truth.
func (s *Service) recordHistory(project store.Project, author, message string) {
	snap := history.Snapshot{
		Title:       project.Title,
		Description: project.Description,
		Status:      string(project.Status),
		Tags:        project.Tags,
	}
	if err := s.history.Record(project.ID, snap, author, message); err != nil {
		s.log.Warn("record project history", zap.String("project_id", project.ID), zap.Error(err))
	}
}

func (s *Service) dropHistory(projectID string) {
	if err := s.history.Remove(projectID); err != nil {
		s.log.Warn("remove project history", zap.String("project_id", projectID), zap.Error(err))
	}
}

func (s *Service) ProjectAccess(ctx context.Context, sess Session, projectID string) (collab.Access, error) {
	return s.resolver.ResolveAccess(ctx, sess.UserID, projectID)
}

func (s *Service) ListCollaborators(ctx context.Context, sess Session, projectID string) ([]store.CollaborationRequest, error) {
	if _, err := s.resolver.Require(ctx, sess.UserID, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return collab.Collect(s.ledger.ListAcceptedForProject(ctx, projectID))
}

func (s *Service) PostMessage(ctx context.Context, sess Session, projectID, body string) (store.Message, error) {
	if _, err := s.resolver.Require(ctx, sess.UserID, projectID, rbac.ActionMessage); err != nil {
		return store.Message{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return store.Message{}, invalidInput("message body is required", nil)
	}
	if len(body) > maxMessageLength {
		return store.Message{}, invalidInput("message is too long", map[string]any{"max": maxMessageLength})
	}
	return s.store.InsertMessage(ctx, store.Message{
		ID:        util.NewID("msg"),
		ProjectID: projectID,
		SenderID:  sess.UserID,
		Body:      body,
	})
}

// ListMessages pages newest-first. An empty cursor starts from the newest.
func (s *Service) ListMessages(ctx context.Context, sess Session, projectID string, after store.Cursor, limit int) ([]store.Message, error) {
	if _, err := s.resolver.Require(ctx, sess.UserID, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, projectID, after, clampLimit(limit))
}

func (s *Service) Upload(ctx context.Context, sess Session, projectID string, input UploadInput) (UploadView, error) {
	if _, err := s.resolver.Require(ctx, sess.UserID, projectID, rbac.ActionUpload); err != nil {
		return UploadView{}, err
	}
	if s.files == nil {
		return UploadView{}, upload.ErrNotConfigured
	}
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		return UploadView{}, invalidInput("file name is required", nil)
	}
	if input.Size > upload.MaxFileSize {
		return UploadView{}, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds the upload limit", map[string]any{"maxBytes": upload.MaxFileSize})
	}
	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := upload.ObjectKey(projectID, fileName)
	if err := s.files.Put(ctx, key, input.Body, input.Size, contentType); err != nil {
		return UploadView{}, err
	}
	item, err := s.store.InsertUpload(ctx, store.Upload{
		ID:          util.NewID("upl"),
		ProjectID:   projectID,
		UploaderID:  sess.UserID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   input.Size,
		ObjectKey:   key,
	})
	if err != nil {
		s.removeObjects(ctx, []string{key})
		return UploadView{}, err
	}
	return s.uploadView(ctx, item), nil
}

func (s *Service) ListUploads(ctx context.Context, sess Session, projectID string) ([]UploadView, error) {
	if _, err := s.resolver.Require(ctx, sess.UserID, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	items, err := s.store.ListUploads(ctx, projectID)
	if err != nil {
		return nil, err
	}
	views := make([]UploadView, 0, len(items))
	for _, item := range items {
		views = append(views, s.uploadView(ctx, item))
	}
	return views, nil
}

// DeleteUpload lets uploaders remove their own files; anyone else needs
// canDelete.
func (s *Service) DeleteUpload(ctx context.Context, sess Session, projectID, uploadID string) error {
	if _, err := s.resolver.Require(ctx, sess.UserID, projectID, rbac.ActionRead); err != nil {
		return err
	}
	item, err := s.store.GetUpload(ctx, projectID, uploadID)
	if err != nil {
		return err
	}
	if item.UploaderID != sess.UserID {
		if _, err := s.resolver.Require(ctx, sess.UserID, projectID, rbac.ActionDelete); err != nil {
			return err
		}
	}
	if err := s.store.DeleteUpload(ctx, projectID, uploadID); err != nil {
		return err
	}
	s.removeObjects(ctx, []string{item.ObjectKey})
	return nil
}

func (s *Service) uploadView(ctx context.Context, item store.Upload) UploadView {
	view := UploadView{Upload: item}
	if s.files == nil {
		return view
	}
	url, err := s.files.URL(ctx, item.ObjectKey, item.FileName, uploadURLExpiry)
	if err != nil {
		s.log.Warn("presign upload", zap.String("upload_id", item.ID), zap.Error(err))
		return view
	}
	view.URL = url
	return view
}

func (s *Service) uploadKeys(ctx context.Context, projectID string) ([]string, error) {
	items, err := s.store.ListUploads(ctx, projectID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.ObjectKey)
	}
	return keys, nil
}

// removeObjects is best effort; the rows are already gone.
func (s *Service) removeObjects(ctx context.Context, keys []string) {
	if s.files == nil {
		return
	}
	for _, key := range keys {
		if err := s.files.Remove(ctx, key); err != nil {
			s.log.Warn("remove object", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *Service) Suggest(ctx context.Context, sess Session, projectID, prompt string) (assist.Suggestion, error) {
	if _, err := s.resolver.Require(ctx, sess.UserID, projectID, rbac.ActionEdit); err != nil {
		return assist.Suggestion{}, err
	}
	if s.assist == nil || !s.assist.Configured() {
		return assist.Suggestion{}, assist.ErrNotConfigured
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return assist.Suggestion{}, err
	}
	return s.assist.Suggest(ctx, assist.ProjectBrief{
		Title:       project.Title,
		Description: project.Description,
		Status:      string(project.Status),
		Tags:        project.Tags,
		Prompt:      strings.TrimSpace(prompt),
	})
}

// ExportProject renders a brief of the project for anyone who can read it.
func (s *Service) ExportProject(ctx context.Context, sess Session, projectID string, format export.Format) (*export.Result, error) {
	if _, err := s.resolver.Require(ctx, sess.UserID, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	members, err := collab.Collect(s.ledger.ListAcceptedForProject(ctx, projectID))
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, projectID, store.Cursor{}, briefMessages)
	if err != nil {
		return nil, err
	}
	uploads, err := s.store.ListUploads(ctx, projectID)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	nameOf := func(userID string) string {
		if name, ok := names[userID]; ok {
			return name
		}
		name := "Former member"
		if user, err := s.store.GetUserByID(ctx, userID); err == nil {
			name = user.Name
		}
		names[userID] = name
		return name
	}

	brief := export.Brief{
		Title:       project.Title,
		Description: project.Description,
		Status:      string(project.Status),
		Tags:        project.Tags,
		Owner:       nameOf(project.OwnerID),
		UpdatedAt:   project.UpdatedAt,
	}
	for _, member := range members {
		brief.Members = append(brief.Members, export.Member{Name: nameOf(member.ReceiverID), Role: string(member.Role)})
	}
	// Oldest first.
	for i := len(messages) - 1; i >= 0; i-- {
		brief.Messages = append(brief.Messages, export.Note{Author: nameOf(messages[i].SenderID), Body: messages[i].Body, At: messages[i].CreatedAt})
	}
	for _, item := range uploads {
		brief.Files = append(brief.Files, export.File{Name: item.FileName, Size: item.SizeBytes})
	}
	return s.exporter.Export(ctx, brief, format)
}

// Search drops every hit the caller cannot resolve access to, so totals
// count visible projects on the returned page only.
func (s *Service) Search(ctx context.Context, sess Session, q search.Query) (search.Response, error) {
	q.Text = strings.TrimSpace(q.Text)
	resp := s.search.Search(ctx, q)

	visible := make([]search.Result, 0, len(resp.Results))
	for _, hit := range resp.Results {
		_, err := s.resolver.ResolveAccess(ctx, sess.UserID, hit.ID)
		if collab.Forbidden.Has(err) || collab.NotFound.Has(err) {
			continue
		}
		if err != nil {
			return search.Response{}, err
		}
		visible = append(visible, hit)
	}
	resp.Results = visible
	resp.Total = len(visible)
	return resp, nil
}

func (s *Service) RequestCollaboration(ctx context.Context, sess Session, input CollaborationInput) (store.CollaborationRequest, error) {
	req, err := s.ledger.RequestCollaboration(ctx, collab.RequestInput{
		ProjectID:   strings.TrimSpace(input.ProjectID),
		SenderID:    sess.UserID,
		ReceiverID:  strings.TrimSpace(input.ReceiverID),
		Role:        input.Role,
		Permissions: input.Permissions,
		Message:     strings.TrimSpace(input.Message),
	})
	if err != nil {
		return store.CollaborationRequest{}, err
	}
	s.notifyInvite(req, sess.UserName)
	return req, nil
}

func (s *Service) AcceptCollaboration(ctx context.Context, sess Session, requestID string) (store.CollaborationRequest, error) {
	req, err := s.ledger.Accept(ctx, requestID, sess.UserID)
	if err != nil {
		return store.CollaborationRequest{}, err
	}
	s.notifyResponse(req, sess.UserName, true)
	return req, nil
}

func (s *Service) RejectCollaboration(ctx context.Context, sess Session, requestID string) (store.CollaborationRequest, error) {
	req, err := s.ledger.Reject(ctx, requestID, sess.UserID)
	if err != nil {
		return store.CollaborationRequest{}, err
	}
	s.notifyResponse(req, sess.UserName, false)
	return req, nil
}

func (s *Service) RemoveCollaboration(ctx context.Context, sess Session, requestID string) (store.CollaborationRequest, error) {
	return s.ledger.Remove(ctx, requestID, sess.UserID)
}

func (s *Service) GetCollaboration(ctx context.Context, sess Session, requestID string) (store.CollaborationRequest, error) {
	return s.ledger.Get(ctx, requestID, sess.UserID)
}

func (s *Service) IncomingCollaborations(ctx context.Context, sess Session) ([]store.CollaborationRequest, error) {
	return collab.Collect(s.ledger.ListPendingForReceiver(ctx, sess.UserID))
}

func (s *Service) SentCollaborations(ctx context.Context, sess Session) ([]store.CollaborationRequest, error) {
	return collab.Collect(s.ledger.ListSentByUser(ctx, sess.UserID))
}

func (s *Service) notifyInvite(req store.CollaborationRequest, senderName string) {
	if s.mail == nil || !s.mail.IsConfigured() {
		return
	}
	s.notify(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		receiver, err := s.store.GetUserByID(ctx, req.ReceiverID)
		if err != nil {
			s.log.Warn("invite email: load receiver", zap.String("request_id", req.ID), zap.Error(err))
			return
		}
		project, err := s.store.GetProject(ctx, req.ProjectID)
		if err != nil {
			s.log.Warn("invite email: load project", zap.String("request_id", req.ID), zap.Error(err))
			return
		}
		err = s.mail.SendCollaborationInvite(receiver.Email, email.InviteData{
			ReceiverName: receiver.Name,
			SenderName:   senderName,
			ProjectTitle: project.Title,
			Role:         string(req.Role),
			Message:      req.Message,
		})
		if err != nil {
			s.log.Warn("invite email", zap.String("request_id", req.ID), zap.Error(err))
		}
	})
}

func (s *Service) notifyResponse(req store.CollaborationRequest, receiverName string, accepted bool) {
	if s.mail == nil || !s.mail.IsConfigured() {
		return
	}
	s.notify(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		sender, err := s.store.GetUserByID(ctx, req.SenderID)
		if err != nil {
			s.log.Warn("response email: load sender", zap.String("request_id", req.ID), zap.Error(err))
			return
		}
		project, err := s.store.GetProject(ctx, req.ProjectID)
		if err != nil {
			s.log.Warn("response email: load project", zap.String("request_id", req.ID), zap.Error(err))
			return
		}
		err = s.mail.SendCollaborationResponse(sender.Email, email.ResponseData{
			SenderName:   sender.Name,
			ReceiverName: receiverName,
			ProjectTitle: project.Title,
			Accepted:     accepted,
		})
		if err != nil {
			s.log.Warn("response email", zap.String("request_id", req.ID), zap.Error(err))
		}
	})
}

func (s *Service) AdminStats(ctx context.Context, sess Session) (DashboardStats, error) {
	if err := requireAdmin(sess); err != nil {
		return DashboardStats{}, err
	}

	var stats DashboardStats
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		stats.Users, err = s.store.CountUsers(gctx)
		return err
	})
	group.Go(func() error {
		var err error
		stats.ProjectsByStatus, err = s.store.CountProjectsByStatus(gctx)
		return err
	})
	group.Go(func() error {
		var err error
		stats.RequestsByStatus, err = s.store.CountRequestsByStatus(gctx)
		return err
	})
	group.Go(func() error {
		var err error
		stats.RecentSignups, err = s.store.CountSignupsSince(gctx, time.Now().Add(-recentSignupsSpan))
		return err
	})
	if err := group.Wait(); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}

func (s *Service) ActivateUser(ctx context.Context, sess Session, userID string) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	return s.guard.Activate(ctx, userID)
}

func (s *Service) DeactivateUser(ctx context.Context, sess Session, userID string) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	if err := s.guard.Deactivate(ctx, userID); err != nil {
		return err
	}
	s.revokeSessions(ctx, userID)
	return nil
}

// DeleteUser removes the account together with the projects it owns. Object
// keys are collected first because the rows cascade away with the user.
func (s *Service) DeleteUser(ctx context.Context, sess Session, userID string) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	if err := s.guard.AssertCanDeactivateOrDelete(ctx, userID); err != nil {
		return err
	}

	owned, keys, err := s.ownedProjectObjects(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.guard.Delete(ctx, userID); err != nil {
		return err
	}
	s.revokeSessions(ctx, userID)
	s.removeObjects(ctx, keys)
	for _, projectID := range owned {
		s.search.DeleteProject(projectID)
		s.dropHistory(projectID)
	}
	return nil
}

func (s *Service) ownedProjectObjects(ctx context.Context, userID string) ([]string, []string, error) {
	var owned, keys []string
	for offset := 0; ; offset += maxPageSize {
		page, err := s.store.ListProjectsForUser(ctx, userID, maxPageSize, offset)
		if err != nil {
			return nil, nil, err
		}
		for _, project := range page {
			if project.OwnerID != userID {
				continue
			}
			owned = append(owned, project.ID)
			projectKeys, err := s.uploadKeys(ctx, project.ID)
			if err != nil {
				return nil, nil, err
			}
			keys = append(keys, projectKeys...)
		}
		if len(page) < maxPageSize {
			return owned, keys, nil
		}
	}
}

func (s *Service) revokeSessions(ctx context.Context, userID string) {
	if err := s.sessions.RevokeUserSessions(ctx, userID); err != nil {
		s.log.Warn("revoke user sessions", zap.String("user_id", userID), zap.Error(err))
	}
}

// ReindexSearch pushes every project into the external index on boot.
func (s *Service) ReindexSearch(ctx context.Context) {
	s.search.ReindexAll(ctx)
}

func requireAdmin(sess Session) error {
	if !sess.IsAdmin() {
		return collab.Forbidden.New("admin role required")
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return invalidInput("title is required", nil)
	}
	if len(title) > maxTitleLength {
		return invalidInput("title is too long", map[string]any{"max": maxTitleLength})
	}
	return nil
}

func invalidStatus(raw string) error {
	return invalidInput("unknown project status", map[string]any{
		"status":  raw,
		"allowed": []store.ProjectStatus{store.ProjectActive, store.ProjectCompleted, store.ProjectArchived, store.ProjectPending},
	})
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return min(limit, maxPageSize)
}

// cleanList trims entries and drops blanks and duplicates, keeping order.
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || slices.Contains(out, value) {
			continue
		}
		out = append(out, value)
	}
	return out
}

func projectRecord(p store.Project) search.ProjectRecord {
	return search.ProjectRecord{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Status:      string(p.Status),
		OwnerID:     p.OwnerID,
		Tags:        p.Tags,
	}
}

// ProjectSource adapts a project lister into a search record source.
func ProjectSource(list func(context.Context) ([]store.Project, error)) search.RecordSource {
	return func(ctx context.Context) ([]search.ProjectRecord, error) {
		projects, err := list(ctx)
		if err != nil {
			return nil, err
		}
		records := make([]search.ProjectRecord, 0, len(projects))
		for _, project := range projects {
			records = append(records, projectRecord(project))
		}
		return records, nil
	}
}
