package vcs

import (
	"context"
	"fmt"
	"sync"

	"github.com/dotcommander/zjj/internal/models"
)

// FakeDriver is an in-memory Driver for tests of components built on top of
// this package, avoiding any dependency on a real jj installation.
type FakeDriver struct {
	mu sync.Mutex

	workspaces map[string]string // name -> path
	changeIDs  map[string]string // path -> change id
	commitIDs  map[string]string // path -> commit id
	bookmarks  map[string][]string
	statuses   map[string]models.ChangesSummary
	diffStats  map[string]models.DiffStat

	// FailNext, if set, is returned (and cleared) by the next call to any method.
	FailNext error
}

// NewFakeDriver returns an empty FakeDriver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		workspaces: make(map[string]string),
		changeIDs:  make(map[string]string),
		commitIDs:  make(map[string]string),
		bookmarks:  make(map[string][]string),
		statuses:   make(map[string]models.ChangesSummary),
		diffStats:  make(map[string]models.DiffStat),
	}
}

func (f *FakeDriver) takeFailure() error {
	err := f.FailNext
	f.FailNext = nil
	return err
}

// SetStatus seeds WorkspaceStatus's return value for path, for tests.
func (f *FakeDriver) SetStatus(path string, summary models.ChangesSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[path] = summary
}

// SetDiffStat seeds WorkspaceDiffStat's return value for path, for tests.
func (f *FakeDriver) SetDiffStat(path string, stat models.DiffStat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diffStats[path] = stat
}

// SetChangeID seeds CurrentChangeID's return value for path, for tests.
func (f *FakeDriver) SetChangeID(path, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changeIDs[path] = id
}

func (f *FakeDriver) WorkspaceAdd(ctx context.Context, name, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	if _, exists := f.workspaces[name]; exists {
		return &models.JjWorkspaceConflictError{
			ConflictType:  models.JjConflictAlreadyExists,
			WorkspaceName: name,
			Source:        "fake: workspace already exists",
		}
	}
	f.workspaces[name] = path
	return nil
}

func (f *FakeDriver) WorkspaceForget(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	delete(f.workspaces, name)
	return nil
}

func (f *FakeDriver) WorkspaceList(ctx context.Context) ([]models.WorkspaceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	out := make([]models.WorkspaceInfo, 0, len(f.workspaces))
	for name, path := range f.workspaces {
		out = append(out, models.WorkspaceInfo{Name: name, Path: path})
	}
	return out, nil
}

func (f *FakeDriver) WorkspaceStatus(ctx context.Context, path string) (models.ChangesSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return models.ChangesSummary{}, err
	}
	return f.statuses[path], nil
}

func (f *FakeDriver) WorkspaceDiffStat(ctx context.Context, path string) (models.DiffStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return models.DiffStat{}, err
	}
	return f.diffStats[path], nil
}

func (f *FakeDriver) CurrentChangeID(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return "", err
	}
	if id, ok := f.changeIDs[path]; ok {
		return id, nil
	}
	return fmt.Sprintf("fake-change-%s", path), nil
}

func (f *FakeDriver) CurrentCommitID(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return "", err
	}
	if id, ok := f.commitIDs[path]; ok {
		return id, nil
	}
	return fmt.Sprintf("fake-commit-%s", path), nil
}

func (f *FakeDriver) CurrentBookmarks(ctx context.Context, path string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	return f.bookmarks[path], nil
}

func (f *FakeDriver) Commit(ctx context.Context, path, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.takeFailure()
}

func (f *FakeDriver) Edit(ctx context.Context, path, rev string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.takeFailure()
}

func (f *FakeDriver) PushBookmark(ctx context.Context, path, bookmark string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.bookmarks[path] = append(f.bookmarks[path], bookmark)
	return nil
}

var _ Driver = (*FakeDriver)(nil)
