// Package osal is the OS Abstraction Layer the flight core runs on.
//
// On real hardware this would bind to FreeRTOS, Zephyr, or RTEMS; on the
// ground harness it binds to the Go runtime scheduler instead, giving the
// same task/mutex/semaphore/queue/timer surface without pulling an RTOS
// into a development laptop. Every primitive here is safe for concurrent
// use and every allocation happens up front at construction time — no
// dynamic growth once a Task, Queue, or Timer exists.
package osal

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/TheusHen/OpenFSW/status"
)

// WaitForever and NoWait mirror OSAL_WAIT_FOREVER / OSAL_NO_WAIT: pass
// them to any timeout parameter below.
const (
	WaitForever time.Duration = -1
	NoWait      time.Duration = 0
)

var bootTime = time.Now()

// GetTimeMs returns milliseconds elapsed since the OSAL was linked in,
// standing in for a monotonic uptime counter driven by a hardware timer.
func GetTimeMs() uint32 {
	return uint32(time.Since(bootTime).Milliseconds())
}

// GetTickCount returns the scheduler tick count. The harness runs a
// virtual 1kHz tick, matching the common RTOS tick rate.
func GetTickCount() uint32 {
	return GetTimeMs()
}

// TickRateHz is the virtual scheduler tick rate.
const TickRateHz = 1000

// TaskFunc is the body a Task runs until it returns.
type TaskFunc func(ctx context.Context)

// TaskConfig describes a task to create.
type TaskConfig struct {
	Name     string
	Function TaskFunc
	Priority uint8
}

// Task is a running goroutine with a name and cancellation handle,
// standing in for an RTOS task control block.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// CreateTask starts cfg.Function in its own goroutine.
func CreateTask(cfg TaskConfig) (*Task, status.Code) {
	if cfg.Function == nil {
		return nil, status.InvalidParam
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{name: cfg.Name, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		cfg.Function(ctx)
	}()
	return t, status.Ok
}

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// Delete cancels the task's context and waits for it to return.
func (t *Task) Delete() status.Code {
	t.cancel()
	<-t.done
	return status.Ok
}

// Delay sleeps the calling goroutine for ms milliseconds, standing in
// for vTaskDelay.
func Delay(ms uint32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// Yield hands off the processor, standing in for taskYIELD.
func Yield() {
	runtime.Gosched()
}

// Mutex wraps sync.Mutex with a bounded-wait Lock, matching osal_mutex_lock's
// timeout semantics instead of Go's unconditional (and so uninterruptible
// in an RTOS sense) sync.Mutex.Lock.
type Mutex struct {
	ch chan struct{}
}

// CreateMutex constructs an unlocked mutex.
func CreateMutex() *Mutex {
	m := &Mutex{ch: make(chan struct{}, 1)}
	m.ch <- struct{}{}
	return m
}

// Lock acquires the mutex, waiting up to timeout (WaitForever to block
// indefinitely, NoWait to fail immediately if contended).
func (m *Mutex) Lock(timeout time.Duration) status.Code {
	if timeout == WaitForever {
		<-m.ch
		return status.Ok
	}
	if timeout == NoWait {
		select {
		case <-m.ch:
			return status.Ok
		default:
			return status.Busy
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-m.ch:
		return status.Ok
	case <-timer.C:
		return status.Timeout
	}
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() status.Code {
	select {
	case m.ch <- struct{}{}:
		return status.Ok
	default:
		return status.Generic
	}
}

// Semaphore is a counting semaphore bounded by a maximum count, built on
// a buffered channel of tokens rather than condition variables so Take's
// timeout can be expressed with a plain select.
type Semaphore struct {
	tokens chan struct{}
	max    uint32
}

// CreateSemaphore constructs a semaphore with the given initial count,
// bounded at max.
func CreateSemaphore(initial, max uint32) *Semaphore {
	s := &Semaphore{tokens: make(chan struct{}, max), max: max}
	for i := uint32(0); i < initial; i++ {
		s.tokens <- struct{}{}
	}
	return s
}

// Take blocks (up to timeout) until the semaphore can be decremented.
func (s *Semaphore) Take(timeout time.Duration) status.Code {
	if timeout == NoWait {
		select {
		case <-s.tokens:
			return status.Ok
		default:
			return status.Busy
		}
	}
	if timeout == WaitForever {
		<-s.tokens
		return status.Ok
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.tokens:
		return status.Ok
	case <-timer.C:
		return status.Timeout
	}
}

// Give increments the semaphore. It reports Overflow rather than blocking
// if the semaphore is already at its maximum count.
func (s *Semaphore) Give() status.Code {
	select {
	case s.tokens <- struct{}{}:
		return status.Ok
	default:
		return status.Overflow
	}
}

// Queue is a bounded FIFO of opaque items, matching a fixed-length
// RTOS message queue.
type Queue struct {
	ch chan any
}

// CreateQueue constructs a queue with the given capacity.
func CreateQueue(length uint32) *Queue {
	return &Queue{ch: make(chan any, length)}
}

// Send enqueues item, waiting up to timeout if the queue is full.
func (q *Queue) Send(item any, timeout time.Duration) status.Code {
	if timeout == NoWait {
		select {
		case q.ch <- item:
			return status.Ok
		default:
			return status.Overflow
		}
	}
	if timeout == WaitForever {
		q.ch <- item
		return status.Ok
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case q.ch <- item:
		return status.Ok
	case <-timer.C:
		return status.Timeout
	}
}

// Receive dequeues an item, waiting up to timeout if the queue is empty.
func (q *Queue) Receive(timeout time.Duration) (any, status.Code) {
	if timeout == NoWait {
		select {
		case v := <-q.ch:
			return v, status.Ok
		default:
			return nil, status.Underflow
		}
	}
	if timeout == WaitForever {
		return <-q.ch, status.Ok
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-q.ch:
		return v, status.Ok
	case <-timer.C:
		return nil, status.Timeout
	}
}

// Count returns the number of items currently queued.
func (q *Queue) Count() uint32 {
	return uint32(len(q.ch))
}

// Timer is a software timer, one-shot or auto-reloading.
type Timer struct {
	mu         sync.Mutex
	period     time.Duration
	autoReload bool
	callback   func()
	timer      *time.Timer
	running    bool
}

// CreateTimer constructs a stopped timer. Call Start to arm it.
func CreateTimer(period time.Duration, autoReload bool, callback func()) *Timer {
	return &Timer{period: period, autoReload: autoReload, callback: callback}
}

// Start arms the timer.
func (t *Timer) Start() status.Code {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return status.Busy
	}
	t.running = true
	t.arm()
	return status.Ok
}

func (t *Timer) arm() {
	t.timer = time.AfterFunc(t.period, t.fire)
}

func (t *Timer) fire() {
	t.mu.Lock()
	running := t.running
	reload := t.autoReload
	cb := t.callback
	if running && reload {
		t.arm()
	} else {
		t.running = false
	}
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Stop disarms the timer.
func (t *Timer) Stop() status.Code {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.running = false
	return status.Ok
}

// Reset restarts the timer's period from now.
func (t *Timer) Reset() status.Code {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.running = true
	t.arm()
	return status.Ok
}

// CriticalSection is a process-wide lock standing in for a disable-IRQ
// critical section. It exists so code ported from the flight core can
// keep its EnterCritical/ExitCritical bracketing without the harness
// needing real interrupt masking.
var criticalMu sync.Mutex

// EnterCritical acquires the process-wide critical section lock.
func EnterCritical() { criticalMu.Lock() }

// ExitCritical releases the process-wide critical section lock.
func ExitCritical() { criticalMu.Unlock() }
