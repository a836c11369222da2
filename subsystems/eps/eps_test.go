package eps

import (
	"testing"

	"github.com/TheusHen/OpenFSW/bsp"
	"github.com/TheusHen/OpenFSW/fdir"
	"github.com/TheusHen/OpenFSW/mode"
	"github.com/TheusHen/OpenFSW/status"
	"github.com/TheusHen/OpenFSW/types"
)

func newTestService() *Service {
	return New(bsp.NewGeneric(), fdir.New(fdir.Hooks{}), mode.New(types.ModeNominal))
}

func TestNew_EssentialRailsEnabled(t *testing.T) {
	s := newTestService()
	if !s.IsRailEnabled(Rail3V3Core) || !s.IsRailEnabled(Rail5VSensors) || !s.IsRailEnabled(Rail3V3Comms) {
		t.Fatal("expected core, sensor and comms rails enabled at construction")
	}
	if s.IsRailEnabled(Rail12VActuators) || s.IsRailEnabled(RailPayload) {
		t.Fatal("expected actuator and payload rails off at construction")
	}
}

func TestDisableRail_RejectsCoreRail(t *testing.T) {
	s := newTestService()
	if err := s.DisableRail(Rail3V3Core); !status.Is(err, status.PermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if !s.IsRailEnabled(Rail3V3Core) {
		t.Fatal("core rail must remain enabled")
	}
}

func TestEnableDisableRail_RejectsUnknownRail(t *testing.T) {
	s := newTestService()
	if err := s.EnableRail(RailCount); !status.Is(err, status.InvalidParam) {
		t.Fatalf("expected InvalidParam, got %v", err)
	}
	if err := s.DisableRail(RailCount + 1); !status.Is(err, status.InvalidParam) {
		t.Fatalf("expected InvalidParam, got %v", err)
	}
}

func TestEnableDisableRail_TogglesStatus(t *testing.T) {
	s := newTestService()
	if err := s.EnableRail(RailPayload); err != nil {
		t.Fatalf("EnableRail() error: %v", err)
	}
	if !s.IsRailEnabled(RailPayload) {
		t.Fatal("expected payload rail enabled")
	}
	if err := s.DisableRail(RailPayload); err != nil {
		t.Fatalf("DisableRail() error: %v", err)
	}
	if s.IsRailEnabled(RailPayload) {
		t.Fatal("expected payload rail disabled")
	}
}

func TestLoadShed_DisablesNonEssentialRailsAndEntersLowPower(t *testing.T) {
	s := newTestService()
	s.EnableRail(RailPayload)
	s.LoadShed()

	if s.IsRailEnabled(RailPayload) || s.IsRailEnabled(Rail12VActuators) || s.IsRailEnabled(Rail5VSensors) {
		t.Fatal("expected non-essential rails disabled after load shed")
	}
	if !s.IsRailEnabled(Rail3V3Core) {
		t.Fatal("core rail must survive load shed")
	}
	if !s.IsLowPower() {
		t.Fatal("expected low-power mode after load shed")
	}
}

func TestEnterExitLowPower(t *testing.T) {
	s := newTestService()
	s.EnterLowPower()
	if !s.IsLowPower() || s.IsRailEnabled(Rail12VActuators) {
		t.Fatal("expected low-power mode with actuators disabled")
	}

	s.ExitLowPower()
	if s.IsLowPower() {
		t.Fatal("expected low-power mode cleared")
	}
	if !s.IsRailEnabled(Rail12VActuators) {
		t.Fatal("expected actuator rail re-enabled on exit")
	}
}

func TestCanSupportLoad_CriticalPowerAlwaysFalse(t *testing.T) {
	s := newTestService()
	s.mu.Lock()
	s.telemetry.CriticalPower = true
	s.mu.Unlock()

	if s.CanSupportLoad(1) {
		t.Fatal("expected CanSupportLoad false under critical power")
	}
}

func TestCanSupportLoad_LowPowerCapsSmallLoads(t *testing.T) {
	s := newTestService()
	s.EnterLowPower()

	if !s.CanSupportLoad(50) {
		t.Fatal("expected small load supportable in low-power mode")
	}
	if s.CanSupportLoad(150) {
		t.Fatal("expected large load rejected in low-power mode")
	}
}

func TestPeriodic_RefreshesSimulatedTelemetry(t *testing.T) {
	s := newTestService()
	s.Periodic()
	bat := s.BatteryState()
	if bat.VoltageMV == 0 {
		t.Fatal("expected simulated battery voltage to be populated")
	}
}

func TestPeriodic_CriticalSOCReportsFaultAndSheds(t *testing.T) {
	f := fdir.New(fdir.Hooks{})
	s := New(bsp.NewGeneric(), f, mode.New(types.ModeNominal))

	s.mu.Lock()
	s.telemetry.Battery.SOCPercent = 5
	s.mu.Unlock()
	s.Periodic()

	if !f.IsFaultActive(fdir.FaultPowerCritical) {
		t.Fatal("expected FaultPowerCritical reported at critical SOC")
	}
	if !s.TelemetrySnapshot().LowPowerMode {
		t.Fatal("expected low-power mode after critical-SOC load shed")
	}
}

func TestRestoreLoads_OnlyAtNominalSOC(t *testing.T) {
	s := newTestService()
	s.LoadShed()

	s.mu.Lock()
	s.telemetry.Battery.SOCPercent = 30
	s.mu.Unlock()
	s.RestoreLoads()
	if s.IsRailEnabled(Rail5VSensors) {
		t.Fatal("expected restore to be a no-op below nominal SOC")
	}

	s.mu.Lock()
	s.telemetry.Battery.SOCPercent = 60
	s.mu.Unlock()
	s.RestoreLoads()
	if !s.IsRailEnabled(Rail5VSensors) || !s.IsRailEnabled(Rail12VActuators) {
		t.Fatal("expected sensor and actuator rails restored at nominal SOC")
	}
}
