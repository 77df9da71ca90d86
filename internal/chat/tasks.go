package chat

import (
	"context"
	"sync"
)

// TaskKind partitions the cancellable operations. At most one task per kind
// is in flight; starting a new one cancels its predecessor.
type TaskKind string

const (
	TaskListChats  TaskKind = "list_chats"
	TaskOpen       TaskKind = "open"
	TaskRefresh    TaskKind = "refresh"
	TaskSend       TaskKind = "send"
	TaskMembership TaskKind = "membership"
)

// TaskRunner implements latest-wins semantics per operation kind.
// Cancellation is best-effort: a ledger write already on the wire may still
// land, and the next sync reconciles it.
type TaskRunner struct {
	mu     sync.Mutex
	active map[TaskKind]*task
}

type task struct {
	cancel context.CancelFunc
}

func NewTaskRunner() *TaskRunner {
	return &TaskRunner{active: make(map[TaskKind]*task)}
}

// Begin derives a cancellable context for a task of the given kind,
// cancelling any previous task of the same kind. The returned done func must
// be called when the task finishes.
func (r *TaskRunner) Begin(ctx context.Context, kind TaskKind) (context.Context, func()) {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.active[kind]; ok {
		prev.cancel()
	}
	r.active[kind] = t
	r.mu.Unlock()

	done := func() {
		r.mu.Lock()
		// Clear the slot only if it is still ours; a newer task may have
		// replaced us already.
		if current, ok := r.active[kind]; ok && current == t {
			delete(r.active, kind)
		}
		r.mu.Unlock()
		cancel()
	}
	return taskCtx, done
}

// CancelAll aborts every in-flight task; used on logout and shutdown.
func (r *TaskRunner) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for kind, t := range r.active {
		t.cancel()
		delete(r.active, kind)
	}
}
