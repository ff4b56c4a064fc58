// Package history keeps a git log of project field changes. Each project gets
// its own repository holding a single project.json snapshot.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
)

const snapshotFile = "project.json"

var ErrInvalidProjectID = errors.New("invalid project id")

type Snapshot struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
}

type Change struct {
	Field  string
	Before string
	After  string
}

type Revision struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
	Changes   []Change
}

// Service stores repositories under baseDir, or in memory when baseDir is
// empty.
type Service struct {
	baseDir string
	now     func() time.Time

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	memory map[string]*git.Repository
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
		memory:  make(map[string]*git.Repository),
	}
}

// Record commits snap when it differs from the latest revision.
func (s *Service) Record(projectID string, snap Snapshot, author, message string) error {
	lock, err := s.projectLock(projectID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(projectID, true)
	if err != nil {
		return err
	}

	head, err := repo.Head()
	switch {
	case err == nil:
		commit, err := repo.CommitObject(head.Hash())
		if err != nil {
			return fmt.Errorf("load head commit: %w", err)
		}
		previous, err := readSnapshot(commit)
		if err != nil {
			return err
		}
		if len(diff(previous, snap)) == 0 {
			return nil
		}
	case errors.Is(err, plumbing.ErrReferenceNotFound):
	default:
		return fmt.Errorf("resolve head: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	file, err := worktree.Filesystem.Create(snapshotFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", snapshotFile, err)
	}
	if _, err := file.Write(append(payload, '\n')); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", snapshotFile, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", snapshotFile, err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return fmt.Errorf("git add snapshot: %w", err)
	}
	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: sanitizeEmail(author) + "@users.collabhub.local",
			When:  s.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Log returns revisions newest first. A project with no recorded revisions
// has an empty log.
func (s *Service) Log(projectID string, limit int) ([]Revision, error) {
	lock, err := s.projectLock(projectID)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	items := make([]Revision, 0)
	repo, err := s.open(projectID, false)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return items, nil
	}
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(commit *object.Commit) error {
		revision, err := toRevision(commit)
		if err != nil {
			return err
		}
		items = append(items, revision)
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Remove drops the project's repository. Removing an unknown project is a
// no-op.
func (s *Service) Remove(projectID string) error {
	lock, err := s.projectLock(projectID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	if s.baseDir == "" {
		s.mu.Lock()
		delete(s.memory, projectID)
		s.mu.Unlock()
		return nil
	}
	if err := os.RemoveAll(filepath.Join(s.baseDir, projectID)); err != nil {
		return fmt.Errorf("remove repo: %w", err)
	}
	return nil
}

func (s *Service) open(projectID string, create bool) (*git.Repository, error) {
	if s.baseDir == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		if repo, ok := s.memory[projectID]; ok {
			return repo, nil
		}
		if !create {
			return nil, git.ErrRepositoryNotExists
		}
		repo, err := git.Init(memory.NewStorage(), memfs.New())
		if err != nil {
			return nil, fmt.Errorf("init repo: %w", err)
		}
		s.memory[projectID] = repo
		return repo, nil
	}

	path := filepath.Join(s.baseDir, projectID)
	repo, err := git.PlainOpen(path)
	if err == nil || !errors.Is(err, git.ErrRepositoryNotExists) || !create {
		return repo, err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) projectLock(projectID string) (*sync.Mutex, error) {
	if projectID == "" || projectID != filepath.Base(projectID) || strings.HasPrefix(projectID, ".") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProjectID, projectID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[projectID] = lock
	}
	return lock, nil
}

func toRevision(commit *object.Commit) (Revision, error) {
	current, err := readSnapshot(commit)
	if err != nil {
		return Revision{}, err
	}
	var previous Snapshot
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return Revision{}, fmt.Errorf("load parent commit: %w", err)
		}
		if previous, err = readSnapshot(parent); err != nil {
			return Revision{}, err
		}
	}
	return Revision{
		Hash:      commit.Hash.String()[:7],
		Message:   strings.TrimSpace(commit.Message),
		Author:    commit.Author.Name,
		CreatedAt: commit.Author.When,
		Changes:   diff(previous, current),
	}, nil
}

func readSnapshot(commit *object.Commit) (Snapshot, error) {
	file, err := commit.File(snapshotFile)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s from commit: %w", snapshotFile, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", snapshotFile, err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(contents), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// diff lists changed fields in a fixed order.
func diff(from, to Snapshot) []Change {
	changes := make([]Change, 0)
	add := func(field, before, after string) {
		if before != after {
			changes = append(changes, Change{Field: field, Before: before, After: after})
		}
	}
	add("title", from.Title, to.Title)
	add("description", from.Description, to.Description)
	add("status", from.Status, to.Status)
	if !slices.Equal(from.Tags, to.Tags) {
		changes = append(changes, Change{Field: "tags", Before: strings.Join(from.Tags, ", "), After: strings.Join(to.Tags, ", ")})
	}
	return changes
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range strings.ToLower(input) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			out = append(out, r)
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
