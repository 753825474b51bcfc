package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/environment"
)

// Task is deferred work for one reduction key.
type Task struct {
	// ScheduledAt is the earliest time the task may be taken.
	ScheduledAt time.Time
	// ReductionKey identifies the alarm; it is the cancellation key.
	ReductionKey string
	// Environment is the command environment captured when the task was scheduled.
	Environment *environment.Environment

	// seq orders tasks scheduled for the same instant by insertion.
	seq uint64
	// index is the position in the heap, maintained by taskHeap.
	index int
}

// DelayQueue is a time-ordered queue holding at most one task per reduction key.
// Tasks become visible to Take once their scheduled time has passed.
// All methods are safe for concurrent use.
type DelayQueue struct {
	mu    sync.Mutex
	tasks taskHeap
	byKey map[string]*Task
	seq   uint64
	// wake is signalled whenever the head of the queue may have changed.
	wake chan struct{}
}

// New returns an empty queue.
func New() *DelayQueue {
	return &DelayQueue{
		byKey: make(map[string]*Task),
		wake:  make(chan struct{}, 1),
	}
}

// Enqueue schedules a task. If a task with the same reduction key is already queued,
// its environment is replaced and its scheduled time is kept, so repeated updates of
// one alarm never extend the hold-down window. It reports whether a task was replaced.
func (q *DelayQueue) Enqueue(task *Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.byKey[task.ReductionKey]; ok {
		existing.Environment = task.Environment

		return true
	}

	q.seq++
	task.seq = q.seq
	heap.Push(&q.tasks, task)
	q.byKey[task.ReductionKey] = task
	q.signal()

	return false
}

// RemoveByKey drops the queued task for reductionKey and reports whether one was removed.
// A task already returned by Take is not affected.
func (q *DelayQueue) RemoveByKey(reductionKey string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.byKey[reductionKey]
	if !ok {
		return false
	}

	heap.Remove(&q.tasks, task.index)
	delete(q.byKey, reductionKey)
	q.signal()

	return true
}

// Contains reports whether a task for reductionKey is queued.
func (q *DelayQueue) Contains(reductionKey string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.byKey[reductionKey]

	return ok
}

// Len returns the number of queued tasks, due or not.
func (q *DelayQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}

// Take blocks until the earliest task is due, then removes and returns it.
// It returns ctx.Err() without removing anything once ctx is done.
func (q *DelayQueue) Take(ctx context.Context) (*Task, error) {
	for {
		task, wait := q.poll()
		if task != nil {
			return task, nil
		}

		var (
			timer  *time.Timer
			expiry <-chan time.Time
		)

		if wait > 0 {
			timer = time.NewTimer(wait)
			expiry = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)

			return nil, ctx.Err()
		case <-q.wake:
		case <-expiry:
		}

		stopTimer(timer)
	}
}

// poll pops the head if it is due. Otherwise it returns how long to wait for the head,
// or zero when the queue is empty.
func (q *DelayQueue) poll() (*Task, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, 0
	}

	head := q.tasks[0]

	wait := time.Until(head.ScheduledAt)
	if wait > 0 {
		return nil, wait
	}

	heap.Pop(&q.tasks)
	delete(q.byKey, head.ReductionKey)

	return head, 0
}

// signal wakes a blocked Take without blocking the caller. Must hold q.mu.
func (q *DelayQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func stopTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}

// taskHeap implements heap.Interface ordered by scheduled time, then insertion.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].ScheduledAt.Equal(h[j].ScheduledAt) {
		return h[i].seq < h[j].seq
	}

	return h[i].ScheduledAt.Before(h[j].ScheduledAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	task, _ := x.(*Task)
	task.index = len(*h)
	*h = append(*h, task)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*h = old[:n-1]

	return task
}
