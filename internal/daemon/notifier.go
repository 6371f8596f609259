package daemon

import (
	"sync"

	"github.com/ZivoMartin/Dake/internal/ids"
	"github.com/ZivoMartin/Dake/internal/transport"
)

// NotificationKind discriminates the four notifier variants (spec.md §3
// "Notifier channel").
type NotificationKind int

const (
	NotifyDone NotificationKind = iota
	NotifyLog
	NotifyError
	NotifyTargetUnlock
)

// LogStream distinguishes stdout from stderr for a NotifyLog notification.
type LogStream int

const (
	StdoutStream LogStream = iota
	StderrStream
)

// Notification is the payload broadcast on a process's notifier channel.
// Only the fields relevant to Kind are populated.
type Notification struct {
	Kind NotificationKind

	// NotifyLog
	Stream LogStream
	Text   string

	// NotifyError
	ExitCode   int32
	GuiltyHost transport.Socket

	// NotifyTargetUnlock
	Target string
}

// channelState tracks whether a ProcessId's notifier channel has ever been
// subscribed to, so a broadcast before the first subscriber is a harmless
// no-op rather than a panic on a nil channel (spec.md §3 "Lifetimes").
type channelState int

const (
	stateUninitialized channelState = iota
	stateRunning
	stateOver
)

type notifierChannel struct {
	state channelState
	subs  []chan Notification
}

// NotifierHub is the per-ProcessId broadcast registry (spec.md §3, §9
// "Cyclic notification graph"). The process-less ProcessId (Id == 0) within
// a project is reused as the channel for project-wide events, namely
// TargetUnlock broadcasts (spec.md §4.3).
type NotifierHub struct {
	mu       sync.Mutex
	channels map[ids.ProcessId]*notifierChannel
}

func NewNotifierHub() *NotifierHub {
	return &NotifierHub{channels: make(map[ids.ProcessId]*notifierChannel)}
}

// Subscribe returns a channel of the given capacity that receives every
// Notification broadcast for pid from now on. The channel is created lazily
// on first subscribe and retained until the process is removed (Done).
func (h *NotifierHub) Subscribe(pid ids.ProcessId, capacity int) <-chan Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	nc, ok := h.channels[pid]
	if !ok {
		nc = &notifierChannel{state: stateRunning}
		h.channels[pid] = nc
	}
	ch := make(chan Notification, capacity)
	nc.subs = append(nc.subs, ch)
	return ch
}

// Publish broadcasts n to every current subscriber of pid. Publishing to a
// pid that has never been subscribed to, or whose channel has been removed,
// is a no-op.
func (h *NotifierHub) Publish(pid ids.ProcessId, n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	nc, ok := h.channels[pid]
	if !ok || nc.state != stateRunning {
		return
	}
	for _, sub := range nc.subs {
		select {
		case sub <- n:
		default:
			// a full subscriber channel means a slow consumer; drop rather
			// than block the broadcaster (spec.md §5 bounded channel
			// capacity 100, not a backpressure guarantee).
		}
	}
}

// Unsubscribe detaches ch from pid's channel so further broadcasts skip it.
// Used by waiters (e.g. LockTarget) that only need one notification and
// would otherwise accumulate as dead subscribers for the lifetime of a
// long-running project channel.
func (h *NotifierHub) Unsubscribe(pid ids.ProcessId, ch <-chan Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	nc, ok := h.channels[pid]
	if !ok {
		return
	}
	for i, sub := range nc.subs {
		if sub == ch {
			nc.subs = append(nc.subs[:i], nc.subs[i+1:]...)
			break
		}
	}
}

// Remove marks pid's channel Over and closes every subscriber channel,
// releasing any supervisor still ranging over it. Called when the process
// entry is removed from state (Done handler).
func (h *NotifierHub) Remove(pid ids.ProcessId) {
	h.mu.Lock()
	defer h.mu.Unlock()

	nc, ok := h.channels[pid]
	if !ok {
		return
	}
	nc.state = stateOver
	for _, sub := range nc.subs {
		close(sub)
	}
	delete(h.channels, pid)
}
