package actor

import (
	"fmt"
	"sort"
	"sync"

	gerrors "github.com/hedisam/goactor/v2/errors"
)

type nameRegistry struct {
	mu     sync.RWMutex
	byName map[string]*PID
	byPID  map[*PID]string
}

func newNameRegistry() *nameRegistry {
	return &nameRegistry{
		byName: make(map[string]*PID),
		byPID:  make(map[*PID]string),
	}
}

func (r *nameRegistry) register(name string, pid *PID) error {
	if name == "" {
		return gerrors.ErrInvalidName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// checked under the lock: termination removes the name after the state changed
	if !pid.proc.alive() {
		return fmt.Errorf("%w: %s", gerrors.ErrDead, pid)
	}
	if owner, ok := r.byName[name]; ok {
		if owner == pid {
			return nil
		}
		return fmt.Errorf("%w: %s", gerrors.ErrNameTaken, name)
	}
	if current, ok := r.byPID[pid]; ok {
		return fmt.Errorf("%w: %s is registered as %s", gerrors.ErrAlreadyRegistered, pid, current)
	}
	r.byName[name] = pid
	r.byPID[pid] = name
	return nil
}

func (r *nameRegistry) unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pid, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", gerrors.ErrNameNotFound, name)
	}
	delete(r.byName, name)
	delete(r.byPID, pid)
	return nil
}

func (r *nameRegistry) whereIs(name string) *PID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

func (r *nameRegistry) nameOf(pid *PID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byPID[pid]
}

func (r *nameRegistry) removePID(pid *PID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.byPID[pid]; ok {
		delete(r.byName, name)
		delete(r.byPID, pid)
	}
}

func (r *nameRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register associates name with pid. A process holds at most one name and a name
// refers to at most one process. The entry is dropped when the process terminates.
func (s *System) Register(name string, pid *PID) error {
	if pid == nil {
		return gerrors.ErrDead
	}
	return s.names.register(name, pid)
}

// Unregister removes the name
func (s *System) Unregister(name string) error {
	return s.names.unregister(name)
}

// WhereIs returns the process registered under name, or nil
func (s *System) WhereIs(name string) *PID {
	return s.names.whereIs(name)
}

// Registered returns the registered names in sorted order
func (s *System) Registered() []string {
	return s.names.names()
}
