package sim

import (
	"container/heap"
	"context"
	"time"
)

// Scheduler runs fn once after d. Implementations must run callbacks on the
// same goroutine that drives the Driver.
type Scheduler interface {
	After(d time.Duration, fn func())
}

type timer struct {
	at  time.Duration
	seq uint64
	fn  func()
}

type timerQueue []*timer

func (q timerQueue) Len() int { return len(q) }
func (q timerQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *timerQueue) Push(x any)   { *q = append(*q, x.(*timer)) }
func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

// VirtualClock is a deterministic Scheduler. Time only moves when Advance or
// RunUntilIdle is called; callbacks due at the same instant run in the order
// they were scheduled.
type VirtualClock struct {
	now   time.Duration
	seq   uint64
	queue timerQueue
}

// NewVirtualClock starts a clock at zero.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

func (c *VirtualClock) After(d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	c.seq++
	heap.Push(&c.queue, &timer{at: c.now + d, seq: c.seq, fn: fn})
}

// Now is the elapsed virtual time.
func (c *VirtualClock) Now() time.Duration { return c.now }

// Pending counts callbacks not yet run, stale ones included.
func (c *VirtualClock) Pending() int { return len(c.queue) }

// Advance moves time forward by d, running every callback that falls due,
// including ones scheduled by callbacks along the way. It returns how many ran.
func (c *VirtualClock) Advance(d time.Duration) int {
	deadline := c.now + d
	ran := 0
	for len(c.queue) > 0 && c.queue[0].at <= deadline {
		t := heap.Pop(&c.queue).(*timer)
		c.now = t.at
		t.fn()
		ran++
	}
	c.now = deadline
	return ran
}

// RunUntilIdle runs callbacks until none are left or limit have run.
func (c *VirtualClock) RunUntilIdle(limit int) int {
	ran := 0
	for len(c.queue) > 0 && ran < limit {
		t := heap.Pop(&c.queue).(*timer)
		c.now = t.at
		t.fn()
		ran++
	}
	return ran
}

// EventLoop serialises work onto one goroutine and backs After with real
// timers. Run must be called exactly once.
type EventLoop struct {
	funcs chan func()
	done  chan struct{}
}

// NewEventLoop creates a loop; nothing runs until Run.
func NewEventLoop() *EventLoop {
	return &EventLoop{
		funcs: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

// Run executes posted work until ctx is cancelled.
func (l *EventLoop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.funcs:
			fn()
		}
	}
}

// Post queues fn. It reports false once the loop has stopped.
func (l *EventLoop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.funcs <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it.
func (l *EventLoop) Do(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

func (l *EventLoop) After(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { l.Post(fn) })
}
