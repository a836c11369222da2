// Package bsp defines the board support package boundary: the thin
// interface separating flight-software logic from the hardware (clock,
// watchdog, reset cause, power rails, debug UART) underneath it. Generic
// is the no-op reference implementation used for bring-up and CI; a
// board-specific implementation replaces it at link time.
package bsp

import "github.com/TheusHen/OpenFSW/types"

// BSP is the board support package contract every subsystem that
// touches real hardware goes through, never talking to a driver
// directly.
type BSP interface {
	ClockBasicInit()
	ClockGetSysClkHz() uint32
	ClockGetHClkHz() uint32

	WatchdogInit()
	WatchdogKick()
	WatchdogSetTimeout(ms uint32)

	ResetGetCause() types.ResetCause
	ResetSoftware()
	ResetSubsystem(subsys types.SubsystemID)

	SafeModePinAsserted() bool

	PowerEnterLowPower()
	PowerEnableRail(rail uint8)
	PowerDisableRail(rail uint8)

	DebugPutchar(c byte)
	DebugPuts(s string)
}

// Generic is a no-op BSP suitable for bring-up, CI and ground-support
// simulation, mirroring the reference generic target: everything either
// does nothing or reports a conservative default.
type Generic struct{}

// NewGeneric constructs a Generic BSP.
func NewGeneric() *Generic { return &Generic{} }

func (g *Generic) ClockBasicInit() {}

// ClockGetSysClkHz returns a conservative 16 MHz, matching the generic
// target's assumption when no board-specific clock tree is known.
func (g *Generic) ClockGetSysClkHz() uint32 { return 16_000_000 }

func (g *Generic) ClockGetHClkHz() uint32 { return g.ClockGetSysClkHz() }

func (g *Generic) WatchdogInit() {}

func (g *Generic) WatchdogKick() {}

func (g *Generic) WatchdogSetTimeout(ms uint32) {}

func (g *Generic) ResetGetCause() types.ResetCause { return types.ResetUnknown }

// ResetSoftware has no reset mechanism on the generic target; unlike the
// original's infinite wait-for-interrupt trap, the ground harness simply
// returns so callers can observe the call happened.
func (g *Generic) ResetSoftware() {}

func (g *Generic) ResetSubsystem(subsys types.SubsystemID) {}

func (g *Generic) SafeModePinAsserted() bool { return false }

func (g *Generic) PowerEnterLowPower() {}

func (g *Generic) PowerEnableRail(rail uint8) {}

func (g *Generic) PowerDisableRail(rail uint8) {}

func (g *Generic) DebugPutchar(c byte) {}

// DebugPuts writes s one byte at a time through DebugPutchar, matching
// the reference implementation's byte-at-a-time UART loop.
func (g *Generic) DebugPuts(s string) {
	for i := 0; i < len(s); i++ {
		g.DebugPutchar(s[i])
	}
}
