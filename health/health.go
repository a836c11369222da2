// Package health implements system health monitoring: per-task
// heartbeat supervision, environmental threshold checks (temperature,
// voltage, CPU load, stack margin), per-subsystem error/warning
// counters, and a watchdog kick on every periodic pass.
package health

import (
	"sync"
	"time"

	"github.com/TheusHen/OpenFSW/bsp"
	"github.com/TheusHen/OpenFSW/types"
)

// MaxMonitoredTasks bounds the task heartbeat table.
const MaxMonitoredTasks = 16

// Threshold constants.
const (
	StackWarningBytes = 128
	CPUWarningPercent = 80
	TempMinC          = -40
	TempMaxC          = 85
	VoltageMinMV      = 3000
	VoltageMaxMV      = 4200
)

// Status is the overall health verdict.
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Data is the current system health snapshot.
type Data struct {
	CPULoadPercent uint32
	MinStackBytes  uint32
	TemperatureC   int16
	VoltageMV      uint16
	Overall        Status
	ErrorCount     uint32
	WarningCount   uint32
}

type monitoredTask struct {
	name            string
	timeout         time.Duration
	lastHeartbeat   time.Time
	registered      bool
	alive           bool
}

// Monitor is the health supervisor.
type Monitor struct {
	mu sync.Mutex

	data Data
	tasks [MaxMonitoredTasks]monitoredTask

	errorCounts   [types.SubsystemCount]uint32
	warningCounts [types.SubsystemCount]uint32

	bsp bsp.BSP
	now func() time.Time
}

// New constructs a Monitor with a plausible idle baseline (25C, 3.7V,
// unknown minimum stack margin), matching the reference's bring-up
// defaults.
func New(b bsp.BSP, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		data: Data{
			MinStackBytes: ^uint32(0),
			TemperatureC:  25,
			VoltageMV:     3700,
			Overall:       StatusOK,
		},
		bsp: b,
		now: now,
	}
}

// RegisterTask begins monitoring taskID's heartbeat with the given
// timeout. Out-of-range task IDs are silently ignored, matching the
// original's bounds-checked no-op.
func (m *Monitor) RegisterTask(taskID uint8, name string, timeout time.Duration) {
	if int(taskID) >= MaxMonitoredTasks {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[taskID] = monitoredTask{
		name:          name,
		timeout:       timeout,
		lastHeartbeat: m.now(),
		registered:    true,
		alive:         true,
	}
}

// UpdateTask records a heartbeat from taskID.
func (m *Monitor) UpdateTask(taskID uint8) {
	if int(taskID) >= MaxMonitoredTasks {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks[taskID].registered {
		m.tasks[taskID].lastHeartbeat = m.now()
		m.tasks[taskID].alive = true
	}
}

// IsTaskAlive reports whether taskID's last heartbeat is within its
// configured timeout.
func (m *Monitor) IsTaskAlive(taskID uint8) bool {
	if int(taskID) >= MaxMonitoredTasks {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[taskID].alive
}

// Periodic checks every registered task's heartbeat against its
// timeout, evaluates environmental thresholds, updates the overall
// status, and kicks the watchdog. A missed heartbeat always forces
// CRITICAL; voltage out of range forces CRITICAL; temperature, CPU load
// and stack margin only escalate to WARNING if nothing already raised
// the bar higher — matching the reference's "don't downgrade status"
// accumulation order exactly.
func (m *Monitor) Periodic() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	status := StatusOK

	for i := range m.tasks {
		if !m.tasks[i].registered {
			continue
		}
		if now.Sub(m.tasks[i].lastHeartbeat) > m.tasks[i].timeout {
			m.tasks[i].alive = false
			status = StatusCritical
		}
	}

	if m.data.TemperatureC < TempMinC || m.data.TemperatureC > TempMaxC {
		if status == StatusOK {
			status = StatusWarning
		}
	}

	if m.data.VoltageMV < VoltageMinMV || m.data.VoltageMV > VoltageMaxMV {
		status = StatusCritical
	}

	if m.data.CPULoadPercent > CPUWarningPercent {
		if status == StatusOK {
			status = StatusWarning
		}
	}

	if m.data.MinStackBytes < StackWarningBytes {
		if status == StatusOK {
			status = StatusWarning
		}
	}

	m.data.Overall = status

	if m.bsp != nil {
		m.bsp.WatchdogKick()
	}
}

// GetStatus returns the overall health status from the last Periodic pass.
func (m *Monitor) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Overall
}

// GetData returns a copy of the current health snapshot.
func (m *Monitor) GetData() Data {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// SetEnvironment updates the environmental readings Periodic evaluates
// against thresholds. There is no live sensor feed yet, so callers
// (simulation or a future thermal/power bridge) push readings in.
func (m *Monitor) SetEnvironment(cpuLoadPercent uint32, minStackBytes uint32, temperatureC int16, voltageMV uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.CPULoadPercent = cpuLoadPercent
	m.data.MinStackBytes = minStackBytes
	m.data.TemperatureC = temperatureC
	m.data.VoltageMV = voltageMV
}

// IncrementError records a subsystem error, bumping both the
// per-subsystem and aggregate counters.
func (m *Monitor) IncrementError(subsys types.SubsystemID) {
	if int(subsys) >= types.SubsystemCount {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCounts[subsys]++
	m.data.ErrorCount++
}

// IncrementWarning records a subsystem warning, bumping both the
// per-subsystem and aggregate counters.
func (m *Monitor) IncrementWarning(subsys types.SubsystemID) {
	if int(subsys) >= types.SubsystemCount {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warningCounts[subsys]++
	m.data.WarningCount++
}

// ErrorCount returns the number of errors recorded for subsys.
func (m *Monitor) ErrorCount(subsys types.SubsystemID) uint32 {
	if int(subsys) >= types.SubsystemCount {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errorCounts[subsys]
}

// WarningCount returns the number of warnings recorded for subsys.
func (m *Monitor) WarningCount(subsys types.SubsystemID) uint32 {
	if int(subsys) >= types.SubsystemCount {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warningCounts[subsys]
}
