package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/environment"
)

func newTask(key string, at time.Time) *Task {
	return &Task{
		ScheduledAt:  at,
		ReductionKey: key,
		Environment:  environment.FromPairs("reductionKey", key),
	}
}

// TestTake_OrdersByScheduledTime verifies tasks come out in scheduled order and not before their time.
func TestTake_OrdersByScheduledTime(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		q := New()
		start := time.Now()

		q.Enqueue(newTask("K3", start.Add(3*time.Second)))
		q.Enqueue(newTask("K1", start.Add(1*time.Second)))
		q.Enqueue(newTask("K2", start.Add(2*time.Second)))

		for i, want := range []string{"K1", "K2", "K3"} {
			task, err := q.Take(context.Background())
			require.NoError(t, err)
			require.Equal(t, want, task.ReductionKey)
			require.Equal(t, time.Duration(i+1)*time.Second, time.Since(start))
		}

		require.Zero(t, q.Len())
	})
}

// TestTake_TiesKeepInsertionOrder checks equal timestamps are served first-in first-out.
func TestTake_TiesKeepInsertionOrder(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		q := New()
		at := time.Now().Add(time.Second)

		for i := range 5 {
			q.Enqueue(newTask(fmt.Sprintf("K%d", i), at))
		}

		for i := range 5 {
			task, err := q.Take(context.Background())
			require.NoError(t, err)
			require.Equal(t, fmt.Sprintf("K%d", i), task.ReductionKey)
		}
	})
}

// TestTake_NotEligibleBeforeDelay verifies a blocked Take does not return early.
func TestTake_NotEligibleBeforeDelay(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		q := New()
		taken := make(chan *Task, 1)

		go func() {
			task, err := q.Take(context.Background())
			if err == nil {
				taken <- task
			}
		}()

		q.Enqueue(newTask("K1", time.Now().Add(2*time.Second)))

		time.Sleep(1999 * time.Millisecond)
		synctest.Wait()
		require.Empty(t, taken)
		require.True(t, q.Contains("K1"))

		time.Sleep(time.Millisecond)
		synctest.Wait()
		require.Len(t, taken, 1)
		require.False(t, q.Contains("K1"))
	})
}

// TestRemoveByKey_PreventsTake ensures a cancelled task is never handed out.
func TestRemoveByKey_PreventsTake(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		q := New()
		q.Enqueue(newTask("K1", time.Now().Add(2*time.Second)))
		q.Enqueue(newTask("K2", time.Now().Add(3*time.Second)))

		time.Sleep(time.Second)
		require.True(t, q.RemoveByKey("K1"))
		require.False(t, q.RemoveByKey("K1"))
		require.False(t, q.RemoveByKey("unknown"))

		task, err := q.Take(context.Background())
		require.NoError(t, err)
		require.Equal(t, "K2", task.ReductionKey)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err = q.Take(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

// TestRemoveByKey_AfterTakeHasNoEffect documents that removal cannot recall a taken task.
func TestRemoveByKey_AfterTakeHasNoEffect(t *testing.T) {
	t.Parallel()

	q := New()
	q.Enqueue(newTask("K1", time.Now()))

	task, err := q.Take(context.Background())
	require.NoError(t, err)
	require.Equal(t, "K1", task.ReductionKey)
	require.False(t, q.RemoveByKey("K1"))
}

// TestEnqueue_ReplacesSameKey keeps one task per key and the original schedule.
func TestEnqueue_ReplacesSameKey(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		q := New()
		start := time.Now()

		require.False(t, q.Enqueue(newTask("K1", start.Add(2*time.Second))))

		update := newTask("K1", start.Add(5*time.Second))
		update.Environment = environment.FromPairs("reductionKey", "K1", "severity", "CRITICAL")
		require.True(t, q.Enqueue(update))
		require.Equal(t, 1, q.Len())

		task, err := q.Take(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2*time.Second, time.Since(start))
		require.Equal(t, "CRITICAL", task.Environment.Value("severity"))
	})
}

// TestTake_CancelLeavesQueueIntact verifies shutdown unblocks Take without dequeuing.
func TestTake_CancelLeavesQueueIntact(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		q := New()
		q.Enqueue(newTask("K1", time.Now().Add(time.Hour)))

		ctx, cancel := context.WithCancel(context.Background())
		errs := make(chan error, 1)

		go func() {
			_, err := q.Take(ctx)
			errs <- err
		}()

		synctest.Wait()
		cancel()

		require.ErrorIs(t, <-errs, context.Canceled)
		require.True(t, q.Contains("K1"))
	})
}

// TestTake_WakesOnEnqueue verifies a consumer blocked on an empty queue sees new work.
func TestTake_WakesOnEnqueue(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		q := New()
		taken := make(chan string, 1)

		go func() {
			task, err := q.Take(context.Background())
			if err == nil {
				taken <- task.ReductionKey
			}
		}()

		synctest.Wait()
		q.Enqueue(newTask("K1", time.Now()))

		require.Equal(t, "K1", <-taken)
	})
}

// TestTake_EarlierTaskPreemptsWait checks that a new earlier head shortens the wait.
func TestTake_EarlierTaskPreemptsWait(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		q := New()
		start := time.Now()
		q.Enqueue(newTask("late", start.Add(time.Hour)))

		taken := make(chan string, 1)

		go func() {
			task, err := q.Take(context.Background())
			if err == nil {
				taken <- task.ReductionKey
			}
		}()

		synctest.Wait()
		q.Enqueue(newTask("early", start.Add(time.Minute)))

		require.Equal(t, "early", <-taken)
		require.Equal(t, time.Minute, time.Since(start))
	})
}

// TestConcurrentAccess exercises Enqueue/RemoveByKey/Take from many goroutines.
func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	q := New()
	ctx, cancel := context.WithCancel(context.Background())

	var consumed sync.WaitGroup

	consumed.Add(1)

	go func() {
		defer consumed.Done()

		for {
			if _, err := q.Take(ctx); err != nil {
				return
			}
		}
	}()

	var producers sync.WaitGroup

	for p := range 8 {
		producers.Add(1)

		go func() {
			defer producers.Done()

			for i := range 100 {
				key := fmt.Sprintf("P%d-%d", p, i%10)
				q.Enqueue(newTask(key, time.Now().Add(time.Duration(i%3)*time.Millisecond)))
				q.RemoveByKey(key)
			}
		}()
	}

	producers.Wait()
	cancel()
	consumed.Wait()
}
