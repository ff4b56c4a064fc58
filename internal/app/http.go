package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"collabhub/api/internal/assist"
	"collabhub/api/internal/auth"
	"collabhub/api/internal/authpw"
	"collabhub/api/internal/export"
	"collabhub/api/internal/search"
	"collabhub/api/internal/session"
	"collabhub/api/internal/store"
	"collabhub/api/internal/upload"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: service.log.Named("http")}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"dependencies": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["dependencies"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/register" {
		s.handleAuthRegister(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		s.handleAuthLogin(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.RefreshToken) == "" {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "refreshToken is required", nil)
			return
		}
		sess, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(sess))
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}

	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	switch parts[1] {
	case "auth":
		if r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "logout" {
			var body struct {
				RefreshToken string `json:"refreshToken"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.Logout(r.Context(), body.RefreshToken); err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	case "me":
		if len(parts) == 2 {
			s.handleMe(w, r, sess)
			return
		}
	case "users":
		if len(parts) == 2 && r.Method == http.MethodGet {
			s.handleListUsers(w, r, sess)
			return
		}
	case "projects":
		s.handleProjects(w, r, sess, parts[2:])
		return
	case "search":
		if len(parts) == 2 && r.Method == http.MethodGet {
			s.handleSearch(w, r, sess)
			return
		}
	case "collaborations":
		s.handleCollaborations(w, r, sess, parts[2:])
		return
	case "admin":
		s.handleAdmin(w, r, sess, parts[2:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var body RegisterInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, err := s.service.Register(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload(sess))
}

func (s *HTTPServer) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(sess))
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, sess Session) {
	switch r.Method {
	case http.MethodGet:
		user, err := s.service.Me(r.Context(), sess)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, userPayload(user))
	case http.MethodPut:
		var body ProfileInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		user, err := s.service.UpdateProfile(r.Context(), sess, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, userPayload(user))
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request, sess Session) {
	query := r.URL.Query()
	users, err := s.service.ListUsers(r.Context(), sess, store.UserFilter{
		Query:           strings.TrimSpace(query.Get("q")),
		IncludeInactive: query.Get("includeInactive") == "true",
		Limit:           queryInt(r, "limit", defaultPageSize),
		Offset:          queryInt(r, "offset", 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, userPayload(user))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request, sess Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			projects, err := s.service.ListProjects(r.Context(), sess, queryInt(r, "limit", defaultPageSize), queryInt(r, "offset", 0))
			if err != nil {
				s.fail(w, r, err)
				return
			}
			items := make([]map[string]any, 0, len(projects))
			for _, project := range projects {
				items = append(items, projectPayload(project))
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
		case http.MethodPost:
			var body CreateProjectInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			view, err := s.service.CreateProject(r.Context(), sess, body)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, projectViewPayload(view))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	projectID := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			view, err := s.service.GetProject(r.Context(), sess, projectID)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, projectViewPayload(view))
		case http.MethodPut:
			var body UpdateProjectInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			view, err := s.service.UpdateProject(r.Context(), sess, projectID, body)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, projectViewPayload(view))
		case http.MethodDelete:
			if err := s.service.DeleteProject(r.Context(), sess, projectID); err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "projectId": projectID})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch parts[1] {
	case "access":
		if len(parts) == 2 && r.Method == http.MethodGet {
			access, err := s.service.ProjectAccess(r.Context(), sess, projectID)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, access)
			return
		}
	case "collaborators":
		if len(parts) == 2 && r.Method == http.MethodGet {
			requests, err := s.service.ListCollaborators(r.Context(), sess, projectID)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": requestPayloads(requests)})
			return
		}
	case "messages":
		if len(parts) == 2 {
			s.handleMessages(w, r, sess, projectID)
			return
		}
	case "uploads":
		if len(parts) == 2 {
			s.handleUploads(w, r, sess, projectID)
			return
		}
		if len(parts) == 3 && r.Method == http.MethodDelete {
			if err := s.service.DeleteUpload(r.Context(), sess, projectID, parts[2]); err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "uploadId": parts[2]})
			return
		}
	case "suggestions":
		if len(parts) == 2 && r.Method == http.MethodPost {
			var body struct {
				Prompt string `json:"prompt"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			suggestion, err := s.service.Suggest(r.Context(), sess, projectID, body.Prompt)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"suggestion": suggestion.Text, "model": suggestion.Model})
			return
		}
	case "history":
		if len(parts) == 2 && r.Method == http.MethodGet {
			revisions, err := s.service.ProjectHistory(r.Context(), sess, projectID, queryInt(r, "limit", defaultPageSize))
			if err != nil {
				s.fail(w, r, err)
				return
			}
			items := make([]map[string]any, 0, len(revisions))
			for _, revision := range revisions {
				items = append(items, revisionPayload(revision))
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
			return
		}
	case "export":
		if len(parts) == 2 && r.Method == http.MethodGet {
			format, err := export.ParseFormat(strings.ToLower(r.URL.Query().Get("format")))
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "format must be html, pdf or docx", nil)
				return
			}
			result, err := s.service.ExportProject(r.Context(), sess, projectID, format)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			w.Header().Set("Content-Type", result.MimeType)
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(result.Data)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleMessages(w http.ResponseWriter, r *http.Request, sess Session, projectID string) {
	switch r.Method {
	case http.MethodGet:
		after, err := decodeCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid cursor", nil)
			return
		}
		limit := clampLimit(queryInt(r, "limit", defaultPageSize))
		messages, err := s.service.ListMessages(r.Context(), sess, projectID, after, limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		items := make([]map[string]any, 0, len(messages))
		for _, msg := range messages {
			items = append(items, messagePayload(msg))
		}
		payload := map[string]any{"items": items}
		if len(messages) == limit {
			last := messages[len(messages)-1]
			payload["nextCursor"] = encodeCursor(store.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		}
		writeJSON(w, http.StatusOK, payload)
	case http.MethodPost:
		var body struct {
			Body string `json:"body"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		msg, err := s.service.PostMessage(r.Context(), sess, projectID, body.Body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, messagePayload(msg))
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

const multipartMemory = 8 << 20

func (s *HTTPServer) handleUploads(w http.ResponseWriter, r *http.Request, sess Session, projectID string) {
	switch r.Method {
	case http.MethodGet:
		views, err := s.service.ListUploads(r.Context(), sess, projectID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		items := make([]map[string]any, 0, len(views))
		for _, view := range views {
			items = append(items, uploadPayload(view))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, upload.MaxFileSize+multipartMemory)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds the upload limit", map[string]any{"maxBytes": upload.MaxFileSize})
				return
			}
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form data", nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "file field is required", nil)
			return
		}
		defer file.Close()

		view, err := s.service.Upload(r.Context(), sess, projectID, UploadInput{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, uploadPayload(view))
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, sess Session) {
	query := r.URL.Query()
	resp, err := s.service.Search(r.Context(), sess, search.Query{
		Text:   query.Get("q"),
		Status: strings.ToLower(query.Get("status")),
		Limit:  queryInt(r, "limit", defaultPageSize),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleCollaborations(w http.ResponseWriter, r *http.Request, sess Session, parts []string) {
	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body CollaborationInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		req, err := s.service.RequestCollaboration(r.Context(), sess, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, requestPayload(req))
		return
	}

	if len(parts) == 1 && r.Method == http.MethodGet {
		var (
			requests []store.CollaborationRequest
			err      error
		)
		switch parts[0] {
		case "incoming":
			requests, err = s.service.IncomingCollaborations(r.Context(), sess)
		case "sent":
			requests, err = s.service.SentCollaborations(r.Context(), sess)
		default:
			req, err := s.service.GetCollaboration(r.Context(), sess, parts[0])
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, requestPayload(req))
			return
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": requestPayloads(requests)})
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		var transition func(context.Context, Session, string) (store.CollaborationRequest, error)
		switch parts[1] {
		case "accept":
			transition = s.service.AcceptCollaboration
		case "reject":
			transition = s.service.RejectCollaboration
		case "remove":
			transition = s.service.RemoveCollaboration
		}
		if transition != nil {
			req, err := transition(r.Context(), sess, parts[0])
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, requestPayload(req))
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, sess Session, parts []string) {
	if len(parts) == 1 && parts[0] == "stats" && r.Method == http.MethodGet {
		stats, err := s.service.AdminStats(r.Context(), sess)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"users": map[string]any{
				"total":  stats.Users.Total,
				"active": stats.Users.Active,
				"admins": stats.Users.Admins,
			},
			"projectsByStatus": stats.ProjectsByStatus,
			"requestsByStatus": stats.RequestsByStatus,
			"recentSignups":    stats.RecentSignups,
		})
		return
	}

	if len(parts) >= 2 && parts[0] == "users" {
		userID := parts[1]
		var err error
		switch {
		case len(parts) == 2 && r.Method == http.MethodDelete:
			err = s.service.DeleteUser(r.Context(), sess, userID)
		case len(parts) == 3 && r.Method == http.MethodPost && parts[2] == "activate":
			err = s.service.ActivateUser(r.Context(), sess, userID)
		case len(parts) == 3 && r.Method == http.MethodPost && parts[2] == "deactivate":
			err = s.service.DeactivateUser(r.Context(), sess, userID)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
			return
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "userId": userID})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		s.log.Error("session lookup", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return sess, true
}

// fail writes the mapped error. Only unmapped failures are logged.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status == http.StatusInternalServerError {
		requestID, _ := r.Context().Value(requestIDKey{}).(string)
		s.log.Error("request failed",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.log.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// Cursors travel as "<unix nanos>.<id>".
func encodeCursor(c store.Cursor) string {
	return strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "." + c.ID
}

func decodeCursor(raw string) (store.Cursor, error) {
	if raw == "" {
		return store.Cursor{}, nil
	}
	nanos, id, ok := strings.Cut(raw, ".")
	if !ok || id == "" {
		return store.Cursor{}, fmt.Errorf("malformed cursor %q", raw)
	}
	value, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return store.Cursor{}, fmt.Errorf("malformed cursor %q: %w", raw, err)
	}
	return store.Cursor{CreatedAt: time.Unix(0, value).UTC(), ID: id}, nil
}

func mapError(err error) (status int, code, message string, details any) {
	if domainErr, ok := classified(err); ok {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, authpw.ErrInvalidInput), errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, authpw.ErrEmailTaken):
		return http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, authpw.ErrAccountDisabled):
		return http.StatusForbidden, "ACCOUNT_DISABLED", "Account is deactivated", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken), errors.Is(err, session.ErrSessionNotFound):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, upload.ErrNotConfigured):
		return http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "File storage is not configured", nil
	case errors.Is(err, assist.ErrNotConfigured):
		return http.StatusServiceUnavailable, "SUGGESTIONS_UNAVAILABLE", "Suggestions are not configured", nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export format is not available on this server", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
