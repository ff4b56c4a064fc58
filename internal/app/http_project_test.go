package app

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestProjectCRUD(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.register("Owner", "owner@example.com")

	expectError(t, env.do(http.MethodPost, "/api/projects", token, map[string]any{"title": " "}), http.StatusBadRequest, "VALIDATION_ERROR")
	expectError(t, env.do(http.MethodPost, "/api/projects", token, map[string]any{"title": "X", "status": "paused"}), http.StatusBadRequest, "VALIDATION_ERROR")

	rr := env.do(http.MethodPost, "/api/projects", token, map[string]any{
		"title":       "Community radio",
		"description": "Low-power FM",
		"tags":        []string{"radio", "radio", " audio "},
	})
	expectStatus(t, rr, http.StatusCreated)
	created := decode(t, rr)
	projectID := created["id"].(string)
	if created["ownerId"] != userID || created["status"] != "active" {
		t.Fatalf("unexpected project %v", created)
	}
	if access := created["access"].(map[string]any); access["role"] != "owner" {
		t.Fatalf("expected owner access, got %v", access)
	}
	if tags := created["tags"].([]any); len(tags) != 2 {
		t.Fatalf("expected deduplicated tags, got %v", tags)
	}

	rr = env.do(http.MethodPut, "/api/projects/"+projectID, token, map[string]any{"status": "archived"})
	expectStatus(t, rr, http.StatusOK)
	updated := decode(t, rr)
	if updated["status"] != "archived" || updated["title"] != "Community radio" {
		t.Fatalf("expected partial update, got %v", updated)
	}

	rr = env.do(http.MethodGet, "/api/projects", token, nil)
	expectStatus(t, rr, http.StatusOK)
	if got := len(items(t, rr)); got != 1 {
		t.Fatalf("expected 1 project, got %d", got)
	}

	expectStatus(t, env.do(http.MethodDelete, "/api/projects/"+projectID, token, nil), http.StatusOK)
	expectError(t, env.do(http.MethodGet, "/api/projects/"+projectID, token, nil), http.StatusNotFound, "NOT_FOUND")
}

func TestDeleteProjectCascadesRequests(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.register("Owner", "owner@example.com")
	memberToken, memberID := env.register("Member", "member@example.com")
	projectID := env.createProject(ownerToken, "Bike kitchen")
	requestID := env.invite(ownerToken, projectID, memberID, "editor")

	expectStatus(t, env.do(http.MethodDelete, "/api/projects/"+projectID, ownerToken, nil), http.StatusOK)

	expectError(t, env.do(http.MethodGet, "/api/collaborations/"+requestID, memberToken, nil), http.StatusNotFound, "NOT_FOUND")
	rr := env.do(http.MethodGet, "/api/collaborations/incoming", memberToken, nil)
	expectStatus(t, rr, http.StatusOK)
	if got := len(items(t, rr)); got != 0 {
		t.Fatalf("expected no incoming requests after delete, got %d", got)
	}
}

func TestMessagesArePagedNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.register("Owner", "owner@example.com")
	strangerToken, _ := env.register("Stranger", "stranger@example.com")
	projectID := env.createProject(ownerToken, "Choir")

	for _, body := range []string{"first", "second", "third"} {
		expectStatus(t, env.do(http.MethodPost, "/api/projects/"+projectID+"/messages", ownerToken, map[string]any{"body": body}), http.StatusCreated)
	}
	expectError(t, env.do(http.MethodPost, "/api/projects/"+projectID+"/messages", ownerToken, map[string]any{"body": "  "}), http.StatusBadRequest, "VALIDATION_ERROR")
	expectError(t, env.do(http.MethodPost, "/api/projects/"+projectID+"/messages", strangerToken, map[string]any{"body": "hi"}), http.StatusForbidden, "FORBIDDEN")

	rr := env.do(http.MethodGet, "/api/projects/"+projectID+"/messages?limit=2", ownerToken, nil)
	expectStatus(t, rr, http.StatusOK)
	page := decode(t, rr)
	first := page["items"].([]any)
	if len(first) != 2 || first[0].(map[string]any)["body"] != "third" {
		t.Fatalf("expected newest-first page of 2, got %v", first)
	}
	cursor, _ := page["nextCursor"].(string)
	if cursor == "" {
		t.Fatalf("expected nextCursor on a full page")
	}

	rr = env.do(http.MethodGet, "/api/projects/"+projectID+"/messages?limit=2&cursor="+url.QueryEscape(cursor), ownerToken, nil)
	expectStatus(t, rr, http.StatusOK)
	page = decode(t, rr)
	rest := page["items"].([]any)
	if len(rest) != 1 || rest[0].(map[string]any)["body"] != "first" {
		t.Fatalf("expected the oldest message on page 2, got %v", rest)
	}
	if _, more := page["nextCursor"]; more {
		t.Fatalf("expected no cursor on the last page")
	}

	expectError(t, env.do(http.MethodGet, "/api/projects/"+projectID+"/messages?cursor=bogus", ownerToken, nil), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestUploadsRespectPermissions(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.register("Owner", "owner@example.com")
	viewerToken, viewerID := env.register("Viewer", "viewer@example.com")
	projectID := env.createProject(ownerToken, "Zine")
	requestID := env.invite(ownerToken, projectID, viewerID, "viewer")
	expectStatus(t, env.do(http.MethodPost, "/api/collaborations/"+requestID+"/accept", viewerToken, nil), http.StatusOK)

	rr := env.upload(viewerToken, projectID, "cover.png", []byte("png-bytes"))
	expectError(t, rr, http.StatusForbidden, "FORBIDDEN")

	rr = env.upload(ownerToken, projectID, "cover.png", []byte("png-bytes"))
	expectStatus(t, rr, http.StatusCreated)
	uploaded := decode(t, rr)
	uploadID := uploaded["id"].(string)
	if uploaded["sizeBytes"] != float64(len("png-bytes")) || uploaded["url"] == nil {
		t.Fatalf("unexpected upload payload %v", uploaded)
	}
	keys := env.files.Keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], "projects/"+projectID+"/") || !strings.HasSuffix(keys[0], "-cover.png") {
		t.Fatalf("expected one object under the project prefix, got %v", keys)
	}
	objectKey := keys[0]
	if data, ok := env.files.Object(objectKey); !ok || string(data) != "png-bytes" {
		t.Fatalf("expected stored bytes under %s, got %q %v", objectKey, data, ok)
	}

	rr = env.do(http.MethodGet, "/api/projects/"+projectID+"/uploads", viewerToken, nil)
	expectStatus(t, rr, http.StatusOK)
	if got := len(items(t, rr)); got != 1 {
		t.Fatalf("expected 1 upload visible to the viewer, got %d", got)
	}

	expectError(t, env.do(http.MethodDelete, "/api/projects/"+projectID+"/uploads/"+uploadID, viewerToken, nil), http.StatusForbidden, "FORBIDDEN")
	expectStatus(t, env.do(http.MethodDelete, "/api/projects/"+projectID+"/uploads/"+uploadID, ownerToken, nil), http.StatusOK)
	if _, ok := env.files.Object(objectKey); ok {
		t.Fatalf("expected object %s removed from storage", objectKey)
	}
	if keys := env.files.Keys(); len(keys) != 0 {
		t.Fatalf("expected empty storage, got %v", keys)
	}
	expectError(t, env.do(http.MethodDelete, "/api/projects/"+projectID+"/uploads/"+uploadID, ownerToken, nil), http.StatusNotFound, "NOT_FOUND")
}

func TestUploadWithoutFileField(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register("Owner", "owner@example.com")
	projectID := env.createProject(token, "Zine")

	rr := env.do(http.MethodPost, "/api/projects/"+projectID+"/uploads", token, map[string]any{"file": "nope"})
	expectError(t, rr, http.StatusBadRequest, "INVALID_BODY")
}

func TestSuggestionsUnavailableWithoutClient(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register("Owner", "owner@example.com")
	projectID := env.createProject(token, "Seed bank")

	rr := env.do(http.MethodPost, "/api/projects/"+projectID+"/suggestions", token, map[string]any{"prompt": "what next?"})
	expectError(t, rr, http.StatusServiceUnavailable, "SUGGESTIONS_UNAVAILABLE")
}

func TestSearchOnlyReturnsAccessibleProjects(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.register("Owner", "owner@example.com")
	strangerToken, _ := env.register("Stranger", "stranger@example.com")
	env.createProject(ownerToken, "Solar kiosk")
	env.createProject(strangerToken, "Solar oven")

	rr := env.do(http.MethodGet, "/api/search?q=solar", ownerToken, nil)
	expectStatus(t, rr, http.StatusOK)
	payload := decode(t, rr)
	results := payload["results"].([]any)
	if len(results) != 1 || results[0].(map[string]any)["title"] != "Solar kiosk" {
		t.Fatalf("expected only the owner's project, got %v", results)
	}
	if payload["total"] != float64(1) {
		t.Fatalf("expected total 1, got %v", payload["total"])
	}
}

func (e *testEnv) upload(token, projectID, fileName string, content []byte) *httptest.ResponseRecorder {
	e.t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		e.t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		e.t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		e.t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+projectID+"/uploads", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func TestExportProjectBrief(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.register("Owner", "owner@example.com")
	viewerToken, viewerID := env.register("Viewer", "viewer@example.com")
	strangerToken, _ := env.register("Stranger", "stranger@example.com")
	projectID := env.createProject(ownerToken, "Tool library")
	requestID := env.invite(ownerToken, projectID, viewerID, "viewer")
	expectStatus(t, env.do(http.MethodPost, "/api/collaborations/"+requestID+"/accept", viewerToken, nil), http.StatusOK)
	expectStatus(t, env.do(http.MethodPost, "/api/projects/"+projectID+"/messages", ownerToken, map[string]any{"body": "Drills arrived"}), http.StatusCreated)
	expectStatus(t, env.upload(ownerToken, projectID, "inventory.csv", []byte("drill,2")), http.StatusCreated)

	rr := env.do(http.MethodGet, "/api/projects/"+projectID+"/export?format=html", viewerToken, nil)
	expectStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html content type, got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "tool-library.html") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	page := rr.Body.String()
	for _, want := range []string{"<h1>Tool library</h1>", "<td>Viewer</td><td>viewer</td>", "Drills arrived", "inventory.csv"} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected %q in brief, body=%s", want, page)
		}
	}

	expectError(t, env.do(http.MethodGet, "/api/projects/"+projectID+"/export", strangerToken, nil), http.StatusForbidden, "FORBIDDEN")
	expectError(t, env.do(http.MethodGet, "/api/projects/"+projectID+"/export?format=odt", ownerToken, nil), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestProjectHistoryRecordsEdits(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.register("Owner", "owner@example.com")
	strangerToken, _ := env.register("Stranger", "stranger@example.com")
	projectID := env.createProject(ownerToken, "Seed bank")

	expectStatus(t, env.do(http.MethodPut, "/api/projects/"+projectID, ownerToken, map[string]any{"status": "completed"}), http.StatusOK)
	// Saving the same values again adds no revision.
	expectStatus(t, env.do(http.MethodPut, "/api/projects/"+projectID, ownerToken, map[string]any{"status": "completed"}), http.StatusOK)

	rr := env.do(http.MethodGet, "/api/projects/"+projectID+"/history", ownerToken, nil)
	expectStatus(t, rr, http.StatusOK)
	revisions := items(t, rr)
	if len(revisions) != 2 {
		t.Fatalf("expected 2 revisions, got %v", revisions)
	}
	latest := revisions[0].(map[string]any)
	if latest["message"] != "Update project" || latest["author"] != "Owner" {
		t.Fatalf("unexpected latest revision %v", latest)
	}
	changes := latest["changes"].([]any)
	if len(changes) != 1 || changes[0].(map[string]any)["field"] != "status" || changes[0].(map[string]any)["after"] != "completed" {
		t.Fatalf("expected a single status change, got %v", changes)
	}

	expectError(t, env.do(http.MethodGet, "/api/projects/"+projectID+"/history", strangerToken, nil), http.StatusForbidden, "FORBIDDEN")

	expectStatus(t, env.do(http.MethodDelete, "/api/projects/"+projectID, ownerToken, nil), http.StatusOK)
	if log, err := env.service.history.Log(projectID, 0); err != nil || len(log) != 0 {
		t.Fatalf("expected history dropped with the project, got %v %v", log, err)
	}
}
