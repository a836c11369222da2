package bootseq

import (
	"path/filepath"
	"testing"

	"github.com/TheusHen/OpenFSW/bootrecord"
	"github.com/TheusHen/OpenFSW/nvm"
	"github.com/TheusHen/OpenFSW/types"
)

type fakeBSP struct {
	cause        types.ResetCause
	safePin      bool
	clockInit    bool
	watchdogInit bool
}

func (f *fakeBSP) ClockBasicInit()                         { f.clockInit = true }
func (f *fakeBSP) ClockGetSysClkHz() uint32                { return 16_000_000 }
func (f *fakeBSP) ClockGetHClkHz() uint32                  { return 16_000_000 }
func (f *fakeBSP) WatchdogInit()                           { f.watchdogInit = true }
func (f *fakeBSP) WatchdogKick()                            {}
func (f *fakeBSP) WatchdogSetTimeout(ms uint32)             {}
func (f *fakeBSP) ResetGetCause() types.ResetCause          { return f.cause }
func (f *fakeBSP) ResetSoftware()                           {}
func (f *fakeBSP) ResetSubsystem(subsys types.SubsystemID)  {}
func (f *fakeBSP) SafeModePinAsserted() bool                { return f.safePin }
func (f *fakeBSP) PowerEnterLowPower()                      {}
func (f *fakeBSP) PowerEnableRail(rail uint8)                {}
func (f *fakeBSP) PowerDisableRail(rail uint8)               {}
func (f *fakeBSP) DebugPutchar(c byte)                      {}
func (f *fakeBSP) DebugPuts(s string)                        {}

func newTestStore(t *testing.T) *bootrecord.Store {
	t.Helper()
	store, err := nvm.Open(filepath.Join(t.TempDir(), "nvm.db"))
	if err != nil {
		t.Fatalf("nvm.Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return bootrecord.NewStore(store)
}

func TestRun_FirstBootPowerOnSelectsDetumble(t *testing.T) {
	store := newTestStore(t)
	b := &fakeBSP{cause: types.ResetPowerOn}

	result, err := Run(b, store)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Mode != types.ModeDetumble {
		t.Fatalf("Mode = %v, want Detumble", result.Mode)
	}
	if result.BootCount != 1 {
		t.Fatalf("BootCount = %d, want 1", result.BootCount)
	}
	if !b.clockInit || !b.watchdogInit {
		t.Fatal("expected platform init to run")
	}
}

func TestRun_SafeModePinOverridesEverything(t *testing.T) {
	store := newTestStore(t)
	b := &fakeBSP{cause: types.ResetPowerOn, safePin: true}

	result, err := Run(b, store)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Mode != types.ModeSafe {
		t.Fatalf("Mode = %v, want Safe", result.Mode)
	}
	if !result.SafeForced {
		t.Fatal("expected SafeForced true")
	}
}

func TestRun_RepeatedWatchdogResetsEscalateToSafe(t *testing.T) {
	store := newTestStore(t)
	b := &fakeBSP{cause: types.ResetWatchdog}

	var last Result
	for i := 0; i < bootrecord.SafeThreshold; i++ {
		r, err := Run(b, store)
		if err != nil {
			t.Fatalf("Run() error on iteration %d: %v", i, err)
		}
		last = r
	}
	if last.Mode != types.ModeSafe {
		t.Fatalf("Mode = %v, want Safe after %d watchdog resets", last.Mode, bootrecord.SafeThreshold)
	}
}

func TestRun_WatchdogResetBelowThresholdSelectsRecovery(t *testing.T) {
	store := newTestStore(t)
	b := &fakeBSP{cause: types.ResetWatchdog}

	result, err := Run(b, store)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Mode != types.ModeRecovery {
		t.Fatalf("Mode = %v, want Recovery", result.Mode)
	}
}

func TestRun_BrownOutSelectsLowPower(t *testing.T) {
	store := newTestStore(t)
	b := &fakeBSP{cause: types.ResetBrownOut}

	result, err := Run(b, store)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Mode != types.ModeLowPower {
		t.Fatalf("Mode = %v, want LowPower", result.Mode)
	}
}

func TestRun_SoftwareResetWithNoRequestedModeSelectsNominal(t *testing.T) {
	store := newTestStore(t)
	b := &fakeBSP{cause: types.ResetSoftware}

	result, err := Run(b, store)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Mode != types.ModeNominal {
		t.Fatalf("Mode = %v, want Nominal", result.Mode)
	}
}

func TestRun_BootCountPersistsAcrossCalls(t *testing.T) {
	store := newTestStore(t)
	b := &fakeBSP{cause: types.ResetPowerOn}

	first, err := Run(b, store)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	second, err := Run(b, store)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if second.BootCount != first.BootCount+1 {
		t.Fatalf("BootCount went from %d to %d, want +1", first.BootCount, second.BootCount)
	}
}

func TestClearFaultHistory_ZeroesCountersAfterWatchdogResets(t *testing.T) {
	store := newTestStore(t)
	b := &fakeBSP{cause: types.ResetWatchdog}
	if _, err := Run(b, store); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if err := ClearFaultHistory(store); err != nil {
		t.Fatalf("ClearFaultHistory() error: %v", err)
	}

	record, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if record.ResetCountWatchdog != 0 {
		t.Fatalf("ResetCountWatchdog = %d, want 0 after clearing", record.ResetCountWatchdog)
	}
}
