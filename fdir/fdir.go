// Package fdir implements Fault Detection, Isolation and Recovery: a
// static rule table mapping fault kinds to threshold-gated recovery
// actions, a bounded per-fault-kind record table, and a reset-loop
// detector driven off the boot record's boot count and last reset cause.
package fdir

import (
	"sync"
	"time"

	"github.com/TheusHen/OpenFSW/status"
	"github.com/TheusHen/OpenFSW/types"
)

// FaultType identifies a class of detected fault.
type FaultType int

const (
	FaultNone FaultType = iota
	FaultWatchdogTimeout
	FaultBrownout
	FaultResetLoop
	FaultSensorInvalid
	FaultActuatorFail
	FaultBusError
	FaultMemoryError
	FaultCommLoss
	FaultPowerCritical
	FaultThermalLimit
	FaultAttitudeLost
	faultCount
)

// FaultCount is the number of defined fault kinds.
const FaultCount = int(faultCount)

func (f FaultType) String() string {
	switch f {
	case FaultNone:
		return "NONE"
	case FaultWatchdogTimeout:
		return "WATCHDOG_TIMEOUT"
	case FaultBrownout:
		return "BROWNOUT"
	case FaultResetLoop:
		return "RESET_LOOP"
	case FaultSensorInvalid:
		return "SENSOR_INVALID"
	case FaultActuatorFail:
		return "ACTUATOR_FAIL"
	case FaultBusError:
		return "BUS_ERROR"
	case FaultMemoryError:
		return "MEMORY_ERROR"
	case FaultCommLoss:
		return "COMM_LOSS"
	case FaultPowerCritical:
		return "POWER_CRITICAL"
	case FaultThermalLimit:
		return "THERMAL_LIMIT"
	case FaultAttitudeLost:
		return "ATTITUDE_LOST"
	default:
		return "INVALID"
	}
}

// RecoveryAction identifies the corrective action a rule prescribes.
type RecoveryAction int

const (
	RecoveryNone RecoveryAction = iota
	RecoveryRetry
	RecoveryIsolate
	RecoveryResetSubsys
	RecoverySafeMode
	RecoverySystemReset
	RecoveryPayloadOff
	RecoveryLoadShed
)

func (a RecoveryAction) String() string {
	switch a {
	case RecoveryNone:
		return "NONE"
	case RecoveryRetry:
		return "RETRY"
	case RecoveryIsolate:
		return "ISOLATE"
	case RecoveryResetSubsys:
		return "RESET_SUBSYS"
	case RecoverySafeMode:
		return "SAFE_MODE"
	case RecoverySystemReset:
		return "SYSTEM_RESET"
	case RecoveryPayloadOff:
		return "PAYLOAD_OFF"
	case RecoveryLoadShed:
		return "LOAD_SHED"
	default:
		return "INVALID"
	}
}

// Rail identifies a power rail a recovery action may disable.
type Rail int

const (
	RailNonEssential Rail = 3
	RailPayload      Rail = 4
)

// Rule maps a fault kind to the recovery action taken once it has
// recurred threshold_count times.
type Rule struct {
	Fault     FaultType
	Threshold uint32
	Window    time.Duration
	Action    RecoveryAction
}

// rules is the static recovery rule table.
var rules = []Rule{
	{FaultWatchdogTimeout, 1, 0, RecoverySystemReset},
	{FaultBrownout, 2, 60 * time.Second, RecoveryLoadShed},
	{FaultResetLoop, 3, 60 * time.Second, RecoverySafeMode},
	{FaultSensorInvalid, 3, 10 * time.Second, RecoveryIsolate},
	{FaultActuatorFail, 2, 5 * time.Second, RecoveryIsolate},
	{FaultBusError, 5, 1 * time.Second, RecoveryResetSubsys},
	{FaultMemoryError, 1, 0, RecoverySafeMode},
	{FaultCommLoss, 10, 60 * time.Second, RecoveryRetry},
	{FaultPowerCritical, 1, 0, RecoveryLoadShed},
	{FaultThermalLimit, 1, 0, RecoveryPayloadOff},
	{FaultAttitudeLost, 1, 0, RecoverySafeMode},
}

var rulesMu sync.RWMutex

func findRule(f FaultType) (Rule, bool) {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	for _, r := range rules {
		if r.Fault == f {
			return r, true
		}
	}
	return Rule{}, false
}

// SetRuleOverride replaces the threshold and window of the rule table
// entry for fault, leaving its recovery action unchanged. It exists so a
// loaded configuration can retune escalation sensitivity (a ground test
// campaign wanting a twitchier bus-error threshold, say) without
// recompiling the static table. Returns status.ErrUnknownFault if fault
// has no rule to override.
func SetRuleOverride(fault FaultType, threshold uint32, window time.Duration) error {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	for i := range rules {
		if rules[i].Fault == fault {
			rules[i].Threshold = threshold
			rules[i].Window = window
			return nil
		}
	}
	return status.ErrUnknownFault
}

// Record is the fault history kept per fault kind.
type Record struct {
	Type             FaultType
	Subsystem        types.SubsystemID
	Timestamp        time.Time
	OccurrenceCount  uint32
	Active           bool
	LastAction       RecoveryAction
}

// Hooks are the effectful recovery actions the manager invokes. Every
// field may be left nil in tests; a nil hook is simply a no-op, mirroring
// the generic BSP stub the original links against when no board driver
// is present.
type Hooks struct {
	ResetSubsystem func(types.SubsystemID)
	ResetSoftware  func()
	DisableRail    func(Rail)
	ForceSafeMode  func()
	LogEvent       func(sev types.Severity, subsys types.SubsystemID, fault FaultType, msg string)
	IsolateNotify  func(types.SubsystemID)
	RestoreNotify  func(types.SubsystemID)
}

// Manager is the fault detection, isolation and recovery engine.
type Manager struct {
	mu       sync.Mutex
	records  [FaultCount]Record
	isolated [types.SubsystemCount]bool
	hooks    Hooks
}

// New constructs a Manager with the given recovery hooks.
func New(hooks Hooks) *Manager {
	m := &Manager{hooks: hooks}
	for i := range m.records {
		m.records[i].Type = FaultType(i)
		m.records[i].Subsystem = types.SubsysCore
	}
	return m
}

func (m *Manager) log(sev types.Severity, subsys types.SubsystemID, fault FaultType, msg string) {
	if m.hooks.LogEvent != nil {
		m.hooks.LogEvent(sev, subsys, fault, msg)
	}
}

func (m *Manager) executeAction(action RecoveryAction, subsys types.SubsystemID) {
	switch action {
	case RecoveryNone, RecoveryRetry:
		// Retry leaves recovery to the subsystem itself; logging already
		// happened at report time.
	case RecoveryIsolate:
		m.isolateSubsystemLocked(subsys)
	case RecoveryResetSubsys:
		if m.hooks.ResetSubsystem != nil {
			m.hooks.ResetSubsystem(subsys)
		}
	case RecoverySafeMode:
		if m.hooks.ForceSafeMode != nil {
			m.hooks.ForceSafeMode()
		}
	case RecoverySystemReset:
		if m.hooks.ResetSoftware != nil {
			m.hooks.ResetSoftware()
		}
	case RecoveryPayloadOff:
		if m.hooks.DisableRail != nil {
			m.hooks.DisableRail(RailPayload)
		}
	case RecoveryLoadShed:
		if m.hooks.DisableRail != nil {
			m.hooks.DisableRail(RailNonEssential)
			m.hooks.DisableRail(RailPayload)
		}
	}
}

// ReportFault records an occurrence of fault against subsys, bumping its
// occurrence count and marking it active.
func (m *Manager) ReportFault(fault FaultType, subsys types.SubsystemID) error {
	if int(fault) >= FaultCount {
		return status.ErrUnknownFault
	}

	m.mu.Lock()
	r := &m.records[fault]
	r.Subsystem = subsys
	r.Timestamp = time.Now()
	r.OccurrenceCount++
	r.Active = true
	m.mu.Unlock()

	m.log(types.SeverityError, subsys, fault, "fault reported")
	return nil
}

// ClearFault marks fault inactive without resetting its occurrence count
// or history.
func (m *Manager) ClearFault(fault FaultType) error {
	if int(fault) >= FaultCount {
		return status.ErrUnknownFault
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[fault].Active = false
	return nil
}

// IsFaultActive reports whether fault is currently active.
func (m *Manager) IsFaultActive(fault FaultType) bool {
	if int(fault) >= FaultCount {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[fault].Active
}

// FaultCountOf returns the cumulative occurrence count for fault.
func (m *Manager) FaultCountOf(fault FaultType) uint32 {
	if int(fault) >= FaultCount {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[fault].OccurrenceCount
}

// FaultRecord returns a copy of the record for fault.
func (m *Manager) FaultRecord(fault FaultType) (Record, error) {
	if int(fault) >= FaultCount {
		return Record{}, status.ErrUnknownFault
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[fault], nil
}

// ExecuteRecovery runs the recovery action the rule table prescribes for
// fault, unconditionally (ignoring its threshold).
func (m *Manager) ExecuteRecovery(fault FaultType) error {
	if int(fault) >= FaultCount {
		return status.ErrUnknownFault
	}
	rule, ok := findRule(fault)
	if !ok {
		return status.ErrUnknownFault
	}
	m.mu.Lock()
	subsys := m.records[fault].Subsystem
	m.mu.Unlock()

	m.executeAction(rule.Action, subsys)

	m.mu.Lock()
	m.records[fault].LastAction = rule.Action
	m.mu.Unlock()
	return nil
}

func (m *Manager) isolateSubsystemLocked(subsys types.SubsystemID) {
	if int(subsys) >= types.SubsystemCount {
		return
	}
	m.isolated[subsys] = true
	if m.hooks.IsolateNotify != nil {
		m.hooks.IsolateNotify(subsys)
	}
	m.log(types.SeverityWarning, subsys, FaultNone, "subsystem isolated")
}

// IsolateSubsystem marks subsys isolated, invoking the isolation hook.
func (m *Manager) IsolateSubsystem(subsys types.SubsystemID) error {
	if int(subsys) >= types.SubsystemCount {
		return status.New(status.InvalidParam, "fdir", "isolate_subsystem", "unknown subsystem id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isolateSubsystemLocked(subsys)
	return nil
}

// RestoreSubsystem clears subsys's isolated flag.
func (m *Manager) RestoreSubsystem(subsys types.SubsystemID) error {
	if int(subsys) >= types.SubsystemCount {
		return status.New(status.InvalidParam, "fdir", "restore_subsystem", "unknown subsystem id")
	}
	m.mu.Lock()
	m.isolated[subsys] = false
	m.mu.Unlock()
	if m.hooks.RestoreNotify != nil {
		m.hooks.RestoreNotify(subsys)
	}
	m.log(types.SeverityInfo, subsys, FaultNone, "subsystem restored")
	return nil
}

// IsSubsystemIsolated reports whether subsys is currently isolated.
func (m *Manager) IsSubsystemIsolated(subsys types.SubsystemID) bool {
	if int(subsys) >= types.SubsystemCount {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isolated[subsys]
}

// Periodic scans every active fault and, where its occurrence count has
// reached the rule's threshold, executes the prescribed recovery action.
// It runs only when called; the scheduler's health job does not call it.
func (m *Manager) Periodic() {
	type due struct {
		action RecoveryAction
		subsys types.SubsystemID
		fault  FaultType
	}

	m.mu.Lock()
	var toRun []due
	for i := range m.records {
		r := &m.records[i]
		if !r.Active {
			continue
		}
		rule, ok := findRule(r.Type)
		if !ok || r.OccurrenceCount < rule.Threshold {
			continue
		}
		toRun = append(toRun, due{rule.Action, r.Subsystem, r.Type})
	}
	m.mu.Unlock()

	for _, d := range toRun {
		m.executeAction(d.action, d.subsys)
		m.mu.Lock()
		m.records[d.fault].LastAction = d.action
		m.mu.Unlock()
	}
}

// DetectResetLoop reports a reset loop when the last reset cause is
// WATCHDOG and the boot count has reached the reset-loop threshold.
// bootCount and cause come from the boot record the caller already
// loaded; fdir does not read persistent storage directly.
func DetectResetLoop(bootCount uint32, cause types.ResetCause) bool {
	const resetLoopThreshold = 3
	return cause == types.ResetWatchdog && bootCount >= resetLoopThreshold
}

// ForceSafeMode logs reason at CRITICAL severity and forces SAFE mode
// unconditionally, bypassing the rule table entirely — FDIR's direct
// escape hatch for conditions severe enough to skip threshold gating.
func (m *Manager) ForceSafeMode(reason string) {
	m.log(types.SeverityCritical, types.SubsysFDIR, FaultNone, reason)
	if m.hooks.ForceSafeMode != nil {
		m.hooks.ForceSafeMode()
	}
}
