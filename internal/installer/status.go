package installer

import "sort"

// DependencyStatus tracks which manifests are installed and which are in
// progress during one top-level install. Create one with
// NewDependencyStatus, share it by pointer with every Installer of that
// install, and discard it afterwards.
//
// It is not safe for concurrent use; installs are single-threaded.
type DependencyStatus struct {
	installed map[string]bool
	inQueue   map[string]bool
}

// NewDependencyStatus returns an empty status.
func NewDependencyStatus() *DependencyStatus {
	return &DependencyStatus{
		installed: make(map[string]bool),
		inQueue:   make(map[string]bool),
	}
}

// Enqueue marks name as in progress.
func (s *DependencyStatus) Enqueue(name string) {
	s.inQueue[name] = true
}

// Promote moves name from in progress to installed.
func (s *DependencyStatus) Promote(name string) {
	delete(s.inQueue, name)
	s.installed[name] = true
}

// Dequeue drops name from in progress after a failed install.
func (s *DependencyStatus) Dequeue(name string) {
	delete(s.inQueue, name)
}

// IsInstalled reports whether name was installed during this install.
func (s *DependencyStatus) IsInstalled(name string) bool {
	return s.installed[name]
}

// IsInQueue reports whether name is currently being installed.
func (s *DependencyStatus) IsInQueue(name string) bool {
	return s.inQueue[name]
}

// Check decides what to do with dependency dep of manifest parent: skip it
// when already installed, or fail when it is still in progress, which means
// dep (directly or transitively) depends on itself.
func (s *DependencyStatus) Check(parent, dep string) (skip bool, err error) {
	if s.installed[dep] {
		return true, nil
	}
	if s.inQueue[dep] {
		return false, &CyclicDependencyError{Manifest: parent, Dependency: dep}
	}
	return false, nil
}

// Installed returns the installed manifest names, sorted.
func (s *DependencyStatus) Installed() []string {
	return sortedKeys(s.installed)
}

// InQueue returns the in-progress manifest names, sorted.
func (s *DependencyStatus) InQueue() []string {
	return sortedKeys(s.inQueue)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
