// Package mode implements the spacecraft operating-mode state machine:
// a static transition table, per-mode dwell timeouts, a forced-override
// path for FDIR, and bounded-capacity entry/exit callback tables.
package mode

import (
	"sync"
	"time"

	"github.com/TheusHen/OpenFSW/status"
	"github.com/TheusHen/OpenFSW/types"
)

// Mode dwell timeouts. Zero means no timeout.
var (
	timeoutsMu sync.RWMutex
	timeouts   = map[types.Mode]time.Duration{
		types.ModeDetumble: 1800 * time.Second,
		types.ModeRecovery: 3600 * time.Second,
	}
)

func timeoutFor(m types.Mode) time.Duration {
	timeoutsMu.RLock()
	defer timeoutsMu.RUnlock()
	return timeouts[m]
}

// SetTimeoutOverride replaces the dwell timeout compiled in for mode m,
// letting a loaded configuration shorten or lengthen how long a ground
// test campaign tolerates DETUMBLE or RECOVERY before Process forces SAFE.
// A zero duration disables the timeout for m entirely.
func SetTimeoutOverride(m types.Mode, d time.Duration) {
	timeoutsMu.Lock()
	defer timeoutsMu.Unlock()
	timeouts[m] = d
}

// transition describes one entry in the static transition table.
type transition struct {
	from, to  types.Mode
	condition string
}

// transitionRules is the static, compile-time transition table. Entries
// absent from this table are implicitly disallowed.
var transitionRules = []transition{
	{types.ModeBoot, types.ModeSafe, "always"},
	{types.ModeBoot, types.ModeDetumble, "power_on"},
	{types.ModeBoot, types.ModeRecovery, "watchdog_reset"},
	{types.ModeBoot, types.ModeLowPower, "brownout"},

	{types.ModeSafe, types.ModeDetumble, "ground_cmd"},
	{types.ModeSafe, types.ModeNominal, "ground_cmd"},
	{types.ModeSafe, types.ModeLowPower, "low_power"},

	{types.ModeDetumble, types.ModeSafe, "fdir"},
	{types.ModeDetumble, types.ModeNominal, "detumble_complete"},
	{types.ModeDetumble, types.ModeLowPower, "low_power"},

	{types.ModeNominal, types.ModeSafe, "fdir"},
	{types.ModeNominal, types.ModeDetumble, "attitude_lost"},
	{types.ModeNominal, types.ModeLowPower, "low_power"},
	{types.ModeNominal, types.ModeRecovery, "fdir"},

	{types.ModeLowPower, types.ModeSafe, "fdir"},
	{types.ModeLowPower, types.ModeNominal, "power_restored"},
	{types.ModeLowPower, types.ModeDetumble, "power_restored"},

	{types.ModeRecovery, types.ModeSafe, "recovery_failed"},
	{types.ModeRecovery, types.ModeNominal, "recovery_success"},
	{types.ModeRecovery, types.ModeDetumble, "attitude_lost"},
}

// MaxCallbacks bounds the entry/exit callback tables, the same
// fixed-capacity-table discipline the rest of the core follows —
// no dynamic growth once the manager is constructed.
const MaxCallbacks = 8

// EntryFunc/ExitFunc run synchronously, with the manager's mutex held,
// so they must be fast and non-blocking: the FSM contract here is that
// a callback observes a fully-updated Manager, not a half-transitioned
// one, and no other transition can interleave with it.
type EntryFunc func(m types.Mode)
type ExitFunc func(m types.Mode)

// Manager is the mode state machine.
type Manager struct {
	mu sync.Mutex

	current           types.Mode
	previous          types.Mode
	requested         types.Mode
	entryTime         time.Time
	timeout           time.Duration
	transitionPending bool
	forcedOverride    bool

	entryCallbacks []EntryFunc
	exitCallbacks  []ExitFunc
}

// New constructs a Manager starting in initial, running any registered
// entry callbacks (none yet, at construction time) for consistency with
// the original's unconditional entry-callback invocation on init.
func New(initial types.Mode) *Manager {
	m := &Manager{
		current:   initial,
		previous:  types.ModeBoot,
		requested: initial,
		entryTime: time.Now(),
		timeout:   timeoutFor(initial),
	}
	return m
}

// Current returns the current mode.
func (m *Manager) Current() types.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Previous returns the mode the system was in before the current one.
func (m *Manager) Previous() types.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// CanTransition reports whether a direct transition from "from" to "to"
// is permitted by the static transition table.
func CanTransition(from, to types.Mode) bool {
	if from == to {
		return false
	}
	for _, r := range transitionRules {
		if r.from == from && r.to == to {
			return true
		}
	}
	return false
}

// Request schedules a transition to mode, rejecting it with
// status.ErrInvalidTransition if the static table disallows it from the
// current mode. The transition itself is applied by the next Process
// call, not immediately.
func (m *Manager) Request(target types.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanTransition(m.current, target) {
		return status.ErrInvalidTransition
	}

	m.requested = target
	m.transitionPending = true
	m.forcedOverride = false
	return nil
}

// Force schedules a transition bypassing the transition table entirely —
// FDIR's escape hatch for SAFE mode and system resets.
func (m *Manager) Force(target types.Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requested = target
	m.transitionPending = true
	m.forcedOverride = true
}

// Process applies a timeout-forced transition to SAFE if the current
// mode has overstayed its dwell time, then applies any pending
// transition, running exit/entry callbacks around the state swap while
// still holding the lock.
func (m *Manager) Process() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timeout > 0 && time.Since(m.entryTime) >= m.timeout {
		m.requested = types.ModeSafe
		m.transitionPending = true
		m.forcedOverride = true
	}

	if !m.transitionPending {
		return
	}

	for _, cb := range m.exitCallbacks {
		cb(m.current)
	}

	m.previous = m.current
	m.current = m.requested
	m.entryTime = time.Now()
	m.timeout = timeoutFor(m.current)
	m.transitionPending = false
	m.forcedOverride = false

	for _, cb := range m.entryCallbacks {
		cb(m.current)
	}
}

// TimeInMode returns how long the system has been in the current mode.
func (m *Manager) TimeInMode() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.entryTime)
}

// IsTimeout reports whether the current mode has exceeded its dwell
// timeout (false for modes with no configured timeout).
func (m *Manager) IsTimeout() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timeout == 0 {
		return false
	}
	return time.Since(m.entryTime) >= m.timeout
}

// AddEntryCallback registers a callback invoked (with the lock held)
// whenever a transition completes into the new mode.
func (m *Manager) AddEntryCallback(fn EntryFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entryCallbacks) >= MaxCallbacks {
		return status.New(status.NoMemory, "mode", "add_entry_callback", "entry callback table is full")
	}
	m.entryCallbacks = append(m.entryCallbacks, fn)
	return nil
}

// AddExitCallback registers a callback invoked (with the lock held) just
// before the mode changes away from its current value.
func (m *Manager) AddExitCallback(fn ExitFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.exitCallbacks) >= MaxCallbacks {
		return status.New(status.NoMemory, "mode", "add_exit_callback", "exit callback table is full")
	}
	m.exitCallbacks = append(m.exitCallbacks, fn)
	return nil
}
