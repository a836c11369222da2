// Package types holds the small set of enums shared across every
// OpenFSW subsystem package: reset causes, operating modes, event
// severities, and subsystem identifiers. Keeping them in one leaf
// package (rather than duplicated per-package constants) avoids import
// cycles between mode, fdir, bootrecord, and the telemetry/event
// producers that all need to name a mode or a subsystem.
package types

// ResetCause identifies why the system (re)booted.
type ResetCause int

const (
	ResetUnknown ResetCause = iota
	ResetPowerOn
	ResetPin
	ResetWatchdog
	ResetSoftware
	ResetBrownOut
	ResetLowPower
	resetCauseCount
)

func (r ResetCause) String() string {
	switch r {
	case ResetUnknown:
		return "UNKNOWN"
	case ResetPowerOn:
		return "POWER_ON"
	case ResetPin:
		return "PIN"
	case ResetWatchdog:
		return "WATCHDOG"
	case ResetSoftware:
		return "SOFTWARE"
	case ResetBrownOut:
		return "BROWN_OUT"
	case ResetLowPower:
		return "LOW_POWER"
	default:
		return "INVALID"
	}
}

// Mode identifies the spacecraft's operating mode.
type Mode int

const (
	ModeBoot Mode = iota
	ModeSafe
	ModeDetumble
	ModeNominal
	ModeLowPower
	ModeRecovery
	modeCount
)

func (m Mode) String() string {
	switch m {
	case ModeBoot:
		return "BOOT"
	case ModeSafe:
		return "SAFE"
	case ModeDetumble:
		return "DETUMBLE"
	case ModeNominal:
		return "NOMINAL"
	case ModeLowPower:
		return "LOW_POWER"
	case ModeRecovery:
		return "RECOVERY"
	default:
		return "INVALID"
	}
}

// ModeCount is the number of defined operating modes.
const ModeCount = int(modeCount)

// Severity is an event log / telemetry severity level.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "INVALID"
	}
}

// SubsystemID names a flight-software subsystem for fault and event
// attribution.
type SubsystemID int

const (
	SubsysBoot SubsystemID = iota
	SubsysRTOS
	SubsysCore
	SubsysMode
	SubsysHealth
	SubsysFDIR
	SubsysEPS
	SubsysADCS
	SubsysComms
	SubsysPayload
	SubsysData
	SubsysTime
	SubsysDrivers
	subsystemCount
)

func (s SubsystemID) String() string {
	switch s {
	case SubsysBoot:
		return "BOOT"
	case SubsysRTOS:
		return "RTOS"
	case SubsysCore:
		return "CORE"
	case SubsysMode:
		return "MODE"
	case SubsysHealth:
		return "HEALTH"
	case SubsysFDIR:
		return "FDIR"
	case SubsysEPS:
		return "EPS"
	case SubsysADCS:
		return "ADCS"
	case SubsysComms:
		return "COMMS"
	case SubsysPayload:
		return "PAYLOAD"
	case SubsysData:
		return "DATA"
	case SubsysTime:
		return "TIME"
	case SubsysDrivers:
		return "DRIVERS"
	default:
		return "INVALID"
	}
}

// SubsystemCount is the number of defined subsystem identifiers.
const SubsystemCount = int(subsystemCount)
