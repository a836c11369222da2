// Package eps models the electrical power system: battery and solar
// telemetry, per-rail enable/disable with a core-rail guard, power
// budget tracking, low-power-mode entry/exit, and load shedding. Values
// come from a simulated power model rather than a battery-monitor IC,
// the same placeholder-values-for-now posture the flight reference
// takes pending real hardware.
package eps

import (
	"sync"

	"github.com/TheusHen/OpenFSW/bsp"
	"github.com/TheusHen/OpenFSW/fdir"
	"github.com/TheusHen/OpenFSW/mode"
	"github.com/TheusHen/OpenFSW/status"
	"github.com/TheusHen/OpenFSW/types"
)

// Rail identifies a switched power rail.
type Rail uint8

const (
	Rail3V3Core Rail = iota
	Rail5VSensors
	Rail12VActuators
	Rail3V3Comms
	RailPayload
	RailCount
)

// State-of-charge thresholds, in percent.
const (
	BatteryCriticalSOC = 10
	BatteryLowSOC      = 20
	BatteryNominalSOC  = 50
	BatteryFullSOC     = 95
)

// Power budget thresholds, in milliwatts.
const (
	LoadShedThresholdMW = 500
	SafePowerThesholdMW = 200
)

// NumSolarPanels is the number of independently monitored solar panels.
const NumSolarPanels = 6

// Battery is the simulated battery state.
type Battery struct {
	VoltageMV    uint16
	CurrentMA    int16 // positive = charging
	SOCPercent   uint8
	TemperatureC int8
	CapacityMAh  uint32
	RemainingMAh uint32
}

// SolarPanel is one panel's simulated state.
type SolarPanel struct {
	VoltageMV   uint16
	CurrentMA   uint16
	PowerMW     uint16
	Illuminated bool
}

// Budget is the generation/consumption power balance.
type Budget struct {
	GenerationMW  uint16
	ConsumptionMW uint16
	BalanceMW     int16
	Positive      bool
}

// Telemetry is the full power-system snapshot.
type Telemetry struct {
	Battery        Battery
	Panels         [NumSolarPanels]SolarPanel
	Budget         Budget
	RailStatus     [RailCount]bool
	RailCurrentMA  [RailCount]uint16
	LowPowerMode   bool
	CriticalPower bool
}

// Service is the power-system manager.
type Service struct {
	mu        sync.Mutex
	telemetry Telemetry

	bsp  bsp.BSP
	fdir *fdir.Manager
	mode *mode.Manager
}

// New constructs a Service with the essential rails (core, sensors,
// comms) enabled and the actuator and payload rails off, matching the
// reference power-on default.
func New(b bsp.BSP, f *fdir.Manager, m *mode.Manager) *Service {
	s := &Service{bsp: b, fdir: f, mode: m}
	s.telemetry.RailStatus[Rail3V3Core] = true
	s.telemetry.RailStatus[Rail5VSensors] = true
	s.telemetry.RailStatus[Rail3V3Comms] = true

	s.updateBattery()
	s.updateSolar()
	s.updateConsumption()
	s.updateBudget()
	return s
}

func (s *Service) updateBattery() {
	// State of charge starts at 80% and is then carried across refreshes.
	soc := s.telemetry.Battery.SOCPercent
	if soc == 0 {
		soc = 80
	}
	s.telemetry.Battery = Battery{
		VoltageMV:    3700,
		CurrentMA:    0,
		SOCPercent:   soc,
		TemperatureC: 25,
		CapacityMAh:  5200,
	}
	s.telemetry.Battery.RemainingMAh = s.telemetry.Battery.CapacityMAh * uint32(s.telemetry.Battery.SOCPercent) / 100
}

func (s *Service) updateSolar() {
	var total uint16
	for i := 0; i < NumSolarPanels; i++ {
		illuminated := i%2 == 0
		s.telemetry.Panels[i].Illuminated = illuminated
		if illuminated {
			s.telemetry.Panels[i] = SolarPanel{VoltageMV: 2400, CurrentMA: 200, PowerMW: 480, Illuminated: true}
		} else {
			s.telemetry.Panels[i] = SolarPanel{}
		}
		total += s.telemetry.Panels[i].PowerMW
	}
	s.telemetry.Budget.GenerationMW = total
}

func (s *Service) updateConsumption() {
	var total uint16
	for i := Rail(0); i < RailCount; i++ {
		if s.telemetry.RailStatus[i] {
			s.telemetry.RailCurrentMA[i] = 50 + uint16(i)*20
			total += s.telemetry.RailCurrentMA[i] * 3300 / 1000
		} else {
			s.telemetry.RailCurrentMA[i] = 0
		}
	}
	s.telemetry.Budget.ConsumptionMW = total
}

func (s *Service) updateBudget() {
	b := &s.telemetry.Budget
	b.BalanceMW = int16(b.GenerationMW) - int16(b.ConsumptionMW)
	b.Positive = b.BalanceMW > 0
	s.telemetry.Battery.CurrentMA = b.BalanceMW / 4
}

// Periodic refreshes the simulated telemetry, reports FaultPowerCritical
// and sheds load when SOC drops to BatteryCriticalSOC, enters low-power
// mode at BatteryLowSOC, and clears/restores at BatteryNominalSOC.
func (s *Service) Periodic() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateBattery()
	s.updateSolar()
	s.updateConsumption()
	s.updateBudget()

	soc := s.telemetry.Battery.SOCPercent
	switch {
	case soc <= BatteryCriticalSOC:
		s.telemetry.CriticalPower = true
		if s.fdir != nil {
			s.fdir.ReportFault(fdir.FaultPowerCritical, types.SubsysEPS)
		}
		s.loadShedLocked()
	case soc <= BatteryLowSOC:
		if !s.telemetry.LowPowerMode {
			s.enterLowPowerLocked()
		}
	case soc >= BatteryNominalSOC:
		if s.telemetry.LowPowerMode {
			s.exitLowPowerLocked()
		}
		s.telemetry.CriticalPower = false
	}
}

// EnableRail turns rail on.
func (s *Service) EnableRail(rail Rail) error {
	if rail >= RailCount {
		return status.New(status.InvalidParam, "eps", "enable_rail", "unknown rail")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enableRailLocked(rail)
	return nil
}

func (s *Service) enableRailLocked(rail Rail) {
	s.telemetry.RailStatus[rail] = true
	if s.bsp != nil {
		s.bsp.PowerEnableRail(uint8(rail))
	}
}

// DisableRail turns rail off. The core rail can never be disabled —
// doing so would be mistaking a power-management decision for a way to
// brick the vehicle.
func (s *Service) DisableRail(rail Rail) error {
	if rail >= RailCount {
		return status.New(status.InvalidParam, "eps", "disable_rail", "unknown rail")
	}
	if rail == Rail3V3Core {
		return status.New(status.PermissionDenied, "eps", "disable_rail", "core rail cannot be disabled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disableRailLocked(rail)
	return nil
}

func (s *Service) disableRailLocked(rail Rail) {
	s.telemetry.RailStatus[rail] = false
	if s.bsp != nil {
		s.bsp.PowerDisableRail(uint8(rail))
	}
}

// IsRailEnabled reports whether rail is currently powered.
func (s *Service) IsRailEnabled(rail Rail) bool {
	if rail >= RailCount {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry.RailStatus[rail]
}

// BatteryState returns a copy of the current battery telemetry.
func (s *Service) BatteryState() Battery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry.Battery
}

// SOC returns the current battery state of charge, in percent.
func (s *Service) SOC() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry.Battery.SOCPercent
}

// IsCharging reports whether net battery current is positive.
func (s *Service) IsCharging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry.Battery.CurrentMA > 0
}

// SolarPower returns the total generated solar power, in milliwatts.
func (s *Service) SolarPower() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry.Budget.GenerationMW
}

// InEclipse reports whether generated power is below the threshold that
// indicates the vehicle is in the Earth's shadow.
func (s *Service) InEclipse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry.Budget.GenerationMW < 50
}

// BudgetState returns a copy of the current power budget.
func (s *Service) BudgetState() Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry.Budget
}

// CanSupportLoad reports whether drawing powerMW more would still leave
// the budget positive, refusing entirely under critical power and
// capping to small loads in low-power mode.
func (s *Service) CanSupportLoad(powerMW uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.telemetry.CriticalPower {
		return false
	}
	if s.telemetry.LowPowerMode {
		return powerMW < 100
	}
	return s.telemetry.Budget.BalanceMW+int16(powerMW) > 0
}

func (s *Service) enterLowPowerLocked() {
	s.telemetry.LowPowerMode = true
	s.disableRailLocked(Rail12VActuators)
	s.disableRailLocked(RailPayload)
	if s.mode != nil {
		s.mode.Request(types.ModeLowPower)
	}
}

// EnterLowPower disables non-essential rails and requests ModeLowPower.
func (s *Service) EnterLowPower() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enterLowPowerLocked()
}

func (s *Service) exitLowPowerLocked() {
	s.telemetry.LowPowerMode = false
	s.enableRailLocked(Rail12VActuators)
}

// ExitLowPower re-enables the actuator rail and clears low-power mode.
func (s *Service) ExitLowPower() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exitLowPowerLocked()
}

// IsLowPower reports whether the system is currently in low-power mode.
func (s *Service) IsLowPower() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry.LowPowerMode
}

func (s *Service) loadShedLocked() {
	s.disableRailLocked(RailPayload)
	s.disableRailLocked(Rail12VActuators)
	s.disableRailLocked(Rail5VSensors)
	s.telemetry.LowPowerMode = true
}

// LoadShed disables the payload, actuator and sensor rails, leaving the
// core and comms rails powered, and enters low-power mode.
func (s *Service) LoadShed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadShedLocked()
}

// RestoreLoads re-enables the sensor and actuator rails once SOC has
// recovered to BatteryNominalSOC.
func (s *Service) RestoreLoads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.telemetry.Battery.SOCPercent >= BatteryNominalSOC {
		s.enableRailLocked(Rail5VSensors)
		s.enableRailLocked(Rail12VActuators)
		s.telemetry.LowPowerMode = false
	}
}

// TelemetrySnapshot returns a copy of the full power-system telemetry.
func (s *Service) TelemetrySnapshot() Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry
}
