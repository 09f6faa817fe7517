// Package registry provides the concurrency-safe session store that is the
// single source of truth for session status queries, cancellation, and
// listing. Every component that needs session state receives an injected
// *Registry; there is no package-level singleton.
package registry

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by Registry operations.
var (
	// ErrNotFound indicates no session exists for the given id.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists indicates a session with the given id is already registered.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrLocked indicates exclusive access to the store could not be acquired
	// within the lock timeout.
	ErrLocked = errors.New("registry lock timed out")
)

// lockTimeout bounds how long a single operation waits for exclusive access
// before failing with ErrLocked. Variable so tests can shorten it.
var lockTimeout = 5 * time.Second

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusInitializing SessionStatus = "initializing"
	StatusWorking      SessionStatus = "working"
	StatusCompleted    SessionStatus = "completed"
	StatusError        SessionStatus = "error"
)

// IsTerminal returns true for completed and error states.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// SessionInfo is the queryable, persisted view of a session.
type SessionInfo struct {
	ID           string        `json:"id"`
	Status       SessionStatus `json:"status"`
	PRURL        string        `json:"pr_url,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	GitDirectory string        `json:"git_directory"`
	Instructions string        `json:"instructions"`
	CreatedAt    int64         `json:"created_at"`
}

// Session is the full registry record: the queryable info plus runtime
// fields that are not exposed through GetInfo.
type Session struct {
	Info       SessionInfo
	WorkDir    string
	BranchName string
	ProcessID  int
	HasProcess bool
}

// Registry is a concurrency-safe keyed store of session records.
// Exclusive access is a capacity-1 semaphore acquired per operation with a
// timeout, so query operations never block behind a long-running session and
// contention failure surfaces as ErrLocked instead of blocking forever.
type Registry struct {
	sem      chan struct{}
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sem:      make(chan struct{}, 1),
		sessions: make(map[string]*Session),
	}
}

// acquire takes exclusive access to the store, or fails with ErrLocked.
func (r *Registry) acquire() error {
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-time.After(lockTimeout):
		return ErrLocked
	}
}

func (r *Registry) release() {
	<-r.sem
}

// Create inserts a new session record in the initializing state.
// Fails with ErrAlreadyExists if the id is already present.
func (r *Registry) Create(id, gitDirectory, instructions, workDir, branchName string) (SessionInfo, error) {
	if err := r.acquire(); err != nil {
		return SessionInfo{}, err
	}
	defer r.release()

	if _, exists := r.sessions[id]; exists {
		return SessionInfo{}, fmt.Errorf("session %s: %w", id, ErrAlreadyExists)
	}

	sess := &Session{
		Info: SessionInfo{
			ID:           id,
			Status:       StatusInitializing,
			GitDirectory: gitDirectory,
			Instructions: instructions,
			CreatedAt:    time.Now().Unix(),
		},
		WorkDir:    workDir,
		BranchName: branchName,
	}
	r.sessions[id] = sess
	return sess.Info, nil
}

// GetInfo returns the queryable view of a session.
func (r *Registry) GetInfo(id string) (SessionInfo, error) {
	if err := r.acquire(); err != nil {
		return SessionInfo{}, err
	}
	defer r.release()

	sess, exists := r.sessions[id]
	if !exists {
		return SessionInfo{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess.Info, nil
}

// SetWorking transitions a session to working and records the agent pid.
func (r *Registry) SetWorking(id string, pid int) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()

	sess, exists := r.sessions[id]
	if !exists {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	sess.Info.Status = StatusWorking
	sess.ProcessID = pid
	sess.HasProcess = true
	return nil
}

// SetCompleted transitions a session to completed, clears the pid, and
// records the pull request URL.
func (r *Registry) SetCompleted(id, prURL string) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()

	sess, exists := r.sessions[id]
	if !exists {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	sess.Info.Status = StatusCompleted
	sess.Info.PRURL = prURL
	sess.Info.ErrorMessage = ""
	sess.ProcessID = 0
	sess.HasProcess = false
	return nil
}

// SetError transitions a session to error, clears the pid, and records the
// human-readable failure message.
func (r *Registry) SetError(id, message string) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()

	sess, exists := r.sessions[id]
	if !exists {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	sess.Info.Status = StatusError
	sess.Info.ErrorMessage = message
	sess.Info.PRURL = ""
	sess.ProcessID = 0
	sess.HasProcess = false
	return nil
}

// SetWorkDir records the isolated working copy path for a session.
func (r *Registry) SetWorkDir(id, workDir string) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()

	sess, exists := r.sessions[id]
	if !exists {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	sess.WorkDir = workDir
	return nil
}

// SetBranchName records the feature branch created for a session.
func (r *Registry) SetBranchName(id, branchName string) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()

	sess, exists := r.sessions[id]
	if !exists {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	sess.BranchName = branchName
	return nil
}

// GetProcessID returns the agent pid and whether one is recorded.
// The pair is a consistent snapshot taken under the store lock.
func (r *Registry) GetProcessID(id string) (int, bool, error) {
	if err := r.acquire(); err != nil {
		return 0, false, err
	}
	defer r.release()

	sess, exists := r.sessions[id]
	if !exists {
		return 0, false, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess.ProcessID, sess.HasProcess, nil
}

// GetWorkDir returns the working copy path for a session.
func (r *Registry) GetWorkDir(id string) (string, error) {
	if err := r.acquire(); err != nil {
		return "", err
	}
	defer r.release()

	sess, exists := r.sessions[id]
	if !exists {
		return "", fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess.WorkDir, nil
}

// GetBranchName returns the feature branch name for a session.
func (r *Registry) GetBranchName(id string) (string, error) {
	if err := r.acquire(); err != nil {
		return "", err
	}
	defer r.release()

	sess, exists := r.sessions[id]
	if !exists {
		return "", fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess.BranchName, nil
}

// Remove deletes a session and returns its final record.
func (r *Registry) Remove(id string) (Session, error) {
	if err := r.acquire(); err != nil {
		return Session{}, err
	}
	defer r.release()

	sess, exists := r.sessions[id]
	if !exists {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	delete(r.sessions, id)
	return *sess, nil
}

// List returns an unordered snapshot of all session infos.
func (r *Registry) List() []SessionInfo {
	if err := r.acquire(); err != nil {
		return nil
	}
	defer r.release()

	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, sess := range r.sessions {
		infos = append(infos, sess.Info)
	}
	return infos
}

// ListActive returns the subset of sessions that are initializing or working.
func (r *Registry) ListActive() []SessionInfo {
	if err := r.acquire(); err != nil {
		return nil
	}
	defer r.release()

	var infos []SessionInfo
	for _, sess := range r.sessions {
		if !sess.Info.Status.IsTerminal() {
			infos = append(infos, sess.Info)
		}
	}
	return infos
}
