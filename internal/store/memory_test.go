package store

import (
	"context"
	"testing"
)

func TestMemoryStoreReadsDoNotShareSlices(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.CreateUser(ctx, User{ID: "usr_a", Name: "A", Email: "a@example.com", Role: SystemRoleUser, Active: true, Skills: []string{"go", "sql"}})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	err = s.CreateProject(ctx, Project{ID: "prj_1", OwnerID: "usr_a", Title: "Atlas", Status: ProjectActive, Tags: []string{"maps", "cli"}})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	user, err := s.GetUserByID(ctx, "usr_a")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	user.Skills[0] = "cobol"
	byEmail, err := s.GetUserByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	byEmail.Skills[1] = "fortran"
	listed, err := s.ListUsers(ctx, UserFilter{})
	if err != nil || len(listed) != 1 {
		t.Fatalf("list users: %v %+v", err, listed)
	}
	listed[0].Skills[0] = "basic"

	project, err := s.GetProject(ctx, "prj_1")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	project.Tags[0] = "graffiti"
	mine, err := s.ListProjectsForUser(ctx, "usr_a", 10, 0)
	if err != nil || len(mine) != 1 {
		t.Fatalf("list projects: %v %+v", err, mine)
	}
	mine[0].Tags[1] = "gui"
	all, err := s.ListAllProjects(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("list all projects: %v %+v", err, all)
	}
	all[0].Tags[0] = "paint"

	user, _ = s.GetUserByID(ctx, "usr_a")
	if user.Skills[0] != "go" || user.Skills[1] != "sql" {
		t.Fatalf("stored skills changed through a read: %v", user.Skills)
	}
	project, _ = s.GetProject(ctx, "prj_1")
	if project.Tags[0] != "maps" || project.Tags[1] != "cli" {
		t.Fatalf("stored tags changed through a read: %v", project.Tags)
	}
}

func TestMemoryStoreLiveIndexTracksCascades(t *testing.T) {
	s := NewMemoryStore()
	seedProject(t, s)
	ctx := context.Background()

	req, err := s.InsertCollaborationRequest(ctx, pendingRequest("req_1"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.TransitionCollaborationRequest(ctx, req.ID, RequestPending, RequestAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got := s.live[[2]string{"prj_1", "usr_recv"}]; got != "req_1" {
		t.Fatalf("expected live index to hold req_1, got %q", got)
	}
	if err := s.DeleteUser(ctx, "usr_recv"); err != nil {
		t.Fatalf("delete receiver: %v", err)
	}
	if len(s.live) != 0 {
		t.Fatalf("expected live index to be empty, got %v", s.live)
	}
}
