package registry

import (
	"log/slog"
	"sync"
)

// ReleaseFunc is invoked for every released path so an external cleanup
// collaborator can remove the file. The registry itself never deletes
// anything.
type ReleaseFunc func(path string)

// LocalFileRegistry tracks the live local files harvested for each source.
// It is an explicit, owned object handed to sessions and harvesters, mutated
// concurrently by both, so all access is mutex-guarded.
type LocalFileRegistry struct {
	mu        sync.Mutex
	files     map[string]map[string]struct{} // owner -> set of paths
	onRelease ReleaseFunc
	logger    *slog.Logger
}

// New creates an empty registry. onRelease may be nil.
func New(onRelease ReleaseFunc, logger *slog.Logger) *LocalFileRegistry {
	return &LocalFileRegistry{
		files:     make(map[string]map[string]struct{}),
		onRelease: onRelease,
		logger:    logger.With("component", "file_registry"),
	}
}

// RegisterLocalFile records path as live under owner.
func (r *LocalFileRegistry) RegisterLocalFile(owner, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.files[owner]
	if !ok {
		set = make(map[string]struct{})
		r.files[owner] = set
	}
	set[path] = struct{}{}
	r.logger.Debug("registered local file", "owner", owner, "path", path)
}

// ReleaseLocalFile removes path from owner's set and notifies the cleanup
// callback. Releasing an unknown path is a no-op returning false.
func (r *LocalFileRegistry) ReleaseLocalFile(owner, path string) bool {
	r.mu.Lock()
	set, ok := r.files[owner]
	if ok {
		_, ok = set[path]
	}
	if ok {
		delete(set, path)
		if len(set) == 0 {
			delete(r.files, owner)
		}
	}
	onRelease := r.onRelease
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.logger.Debug("released local file", "owner", owner, "path", path)
	if onRelease != nil {
		onRelease(path)
	}
	return true
}

// OwnedFiles returns the live paths registered under owner.
func (r *LocalFileRegistry) OwnedFiles(owner string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, 0, len(r.files[owner]))
	for p := range r.files[owner] {
		paths = append(paths, p)
	}
	return paths
}

// ReleaseAll releases every live file, for process-exit cleanup.
func (r *LocalFileRegistry) ReleaseAll() {
	r.mu.Lock()
	var all []string
	for _, set := range r.files {
		for p := range set {
			all = append(all, p)
		}
	}
	r.files = make(map[string]map[string]struct{})
	onRelease := r.onRelease
	r.mu.Unlock()

	if onRelease == nil {
		return
	}
	for _, p := range all {
		onRelease(p)
	}
}
