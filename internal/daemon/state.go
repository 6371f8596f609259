package daemon

import (
	"fmt"

	"github.com/ZivoMartin/Dake/internal/config"
	"github.com/ZivoMartin/Dake/internal/ids"
	"github.com/ZivoMartin/Dake/internal/transport"
)

// State is the daemon's process-wide shared value, constructed once in the
// daemon's startup and handed to every handler (spec.md §4.3, §9 "Global
// mutable state"). The process table, the id database and the target-lock
// set each sit behind their own TimedMutex, so unrelated handlers never
// contend on the same lock. The notifier hub guards itself with a plain
// sync.Mutex, which has no acquisition timeout.
type State struct {
	Config config.DaemonConfig

	processesMu *TimedMutex
	processes   map[ids.ProcessId]transport.ProcessData

	idDatabaseMu *TimedMutex
	idDatabase   map[ids.ProjectId]uint64

	targetLocksMu *TimedMutex
	targetLocks   map[targetKey]struct{}

	Notifiers *NotifierHub
}

type targetKey struct {
	project ids.ProjectId
	target  string
}

func NewState(cfg config.DaemonConfig) *State {
	return &State{
		Config:        cfg,
		processesMu:   NewTimedMutex(),
		processes:     make(map[ids.ProcessId]transport.ProcessData),
		idDatabaseMu:  NewTimedMutex(),
		idDatabase:    make(map[ids.ProjectId]uint64),
		targetLocksMu: NewTimedMutex(),
		targetLocks:   make(map[targetKey]struct{}),
		Notifiers:     NewNotifierHub(),
	}
}

// processLess returns the reserved ProcessId used to broadcast project-wide
// events (target unlocks) on project's notifier channel (spec.md §3).
func processLess(project ids.ProjectId) ids.ProcessId {
	return ids.NewProcessId(ids.Processless, project)
}

// FreshId atomically allocates the next id for project, starting at 1
// (spec.md §4.3 "Fresh-id allocation"). It never returns 0 and is strictly
// monotonic within a ProjectId.
func (s *State) FreshId(project ids.ProjectId) (ids.ProcessId, error) {
	unlock, err := s.idDatabaseMu.Lock(ControlPlaneTimeout)
	if err != nil {
		return ids.ProcessId{}, fmt.Errorf("fresh id for %v: %w", project, err)
	}
	defer unlock()

	next, ok := s.idDatabase[project]
	if !ok {
		next = 2 // first returned id is 1, reserving 0 for process-less
	}
	s.idDatabase[project] = next + 1

	return ids.NewProcessId(next-1, project), nil
}

// RegisterProcess stores data for pid, overwriting any previous entry
// (spec.md §4.4.3 "Idempotence": a second NewMakefile for the same pid
// simply overwrites).
func (s *State) RegisterProcess(pid ids.ProcessId, data transport.ProcessData) error {
	unlock, err := s.processesMu.Lock(ControlPlaneTimeout)
	if err != nil {
		return fmt.Errorf("register process %v: %w", pid, err)
	}
	defer unlock()

	s.processes[pid] = data
	return nil
}

// GetProcess looks up pid's data. ok is false if pid is not (or no longer)
// registered -- spec.md §4.3 step 2 calls this a "late delivery" and the
// caller should silently discard the message.
func (s *State) GetProcess(pid ids.ProcessId) (transport.ProcessData, bool, error) {
	unlock, err := s.processesMu.Lock(ControlPlaneTimeout)
	if err != nil {
		return transport.ProcessData{}, false, fmt.Errorf("lookup process %v: %w", pid, err)
	}
	defer unlock()

	data, ok := s.processes[pid]
	return data, ok, nil
}

// RemoveProcess deletes pid's entry and retires its notifier channel
// (spec.md §4.4.6 "Done handler").
func (s *State) RemoveProcess(pid ids.ProcessId) error {
	unlock, err := s.processesMu.Lock(ControlPlaneTimeout)
	if err != nil {
		return fmt.Errorf("remove process %v: %w", pid, err)
	}
	delete(s.processes, pid)
	unlock()

	s.Notifiers.Remove(pid)
	return nil
}

// LockTarget acquires the (project, target) build lock, blocking
// indefinitely if another process already holds it (a build can legitimately
// take hours, so this is the one lock in the daemon with no timeout;
// spec.md §4.3 "Target lock"). It subscribes to the project's process-less
// notifier channel and retries on every TargetUnlock for t.
func (s *State) LockTarget(project ids.ProjectId, target string) error {
	key := targetKey{project: project, target: target}

	for {
		unlock, err := s.targetLocksMu.Lock(ControlPlaneTimeout)
		if err != nil {
			return fmt.Errorf("lock target %s/%s: %w", project, target, err)
		}

		if _, held := s.targetLocks[key]; !held {
			s.targetLocks[key] = struct{}{}
			unlock()
			return nil
		}

		sub := s.Notifiers.Subscribe(processLess(project), 16)
		unlock()

		for n := range sub {
			if n.Kind == NotifyTargetUnlock && n.Target == target {
				break
			}
		}
		s.Notifiers.Unsubscribe(processLess(project), sub)
	}
}

// UnlockTarget releases the (project, target) lock and broadcasts
// TargetUnlock to any waiter (spec.md §4.3).
func (s *State) UnlockTarget(project ids.ProjectId, target string) error {
	key := targetKey{project: project, target: target}

	unlock, err := s.targetLocksMu.Lock(ControlPlaneTimeout)
	if err != nil {
		return fmt.Errorf("unlock target %s/%s: %w", project, target, err)
	}
	delete(s.targetLocks, key)
	unlock()

	s.Notifiers.Publish(processLess(project), Notification{Kind: NotifyTargetUnlock, Target: target})
	return nil
}
