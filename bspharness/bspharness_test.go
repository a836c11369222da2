package bspharness

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TheusHen/OpenFSW/nvm"
	"github.com/TheusHen/OpenFSW/types"
)

func newTestStore(t *testing.T) *nvm.Store {
	t.Helper()
	store, err := nvm.Open(filepath.Join(t.TempDir(), "nvm.db"))
	if err != nil {
		t.Fatalf("nvm.Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResetGetCause_DefaultsToPowerOnWithoutPersistedState(t *testing.T) {
	h := New(newTestStore(t), "", nil)
	if h.ResetGetCause() != types.ResetPowerOn {
		t.Fatalf("ResetGetCause() = %v, want PowerOn", h.ResetGetCause())
	}
}

func TestResetSoftware_PersistsAcrossInstances(t *testing.T) {
	store := newTestStore(t)
	h1 := New(store, "", nil)
	h1.ResetSoftware()

	h2 := New(store, "", nil)
	if h2.ResetGetCause() != types.ResetSoftware {
		t.Fatalf("ResetGetCause() = %v, want Software after persisted ResetSoftware", h2.ResetGetCause())
	}
}

func TestSeedResetCause_PersistsAcrossInstances(t *testing.T) {
	store := newTestStore(t)
	h1 := New(store, "", nil)
	h1.SeedResetCause(types.ResetBrownOut)

	h2 := New(store, "", nil)
	if h2.ResetGetCause() != types.ResetBrownOut {
		t.Fatalf("ResetGetCause() = %v, want BrownOut after SeedResetCause", h2.ResetGetCause())
	}
}

func TestResetGetCause_NilStoreDefaultsToPowerOn(t *testing.T) {
	h := New(nil, "", nil)
	h.ResetSoftware()
	if h.ResetGetCause() != types.ResetPowerOn {
		t.Fatal("expected nil store to leave ResetGetCause at PowerOn")
	}
}

func TestSafeModePinAsserted_NoPathConfigured(t *testing.T) {
	h := New(newTestStore(t), "", nil)
	if h.SafeModePinAsserted() {
		t.Fatal("expected false with no safe-pin path configured")
	}
}

func TestSafeModePinAsserted_TracksSentinelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safe-pin")
	h := New(newTestStore(t), path, nil)
	if h.SafeModePinAsserted() {
		t.Fatal("expected false before sentinel file exists")
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if !h.SafeModePinAsserted() {
		t.Fatal("expected true once sentinel file exists")
	}
}

func TestWatchdog_ExpiresWithoutKick(t *testing.T) {
	h := New(newTestStore(t), "", nil)
	h.WatchdogSetTimeout(1)
	h.WatchdogInit()
	time.Sleep(5 * time.Millisecond)
	if !h.WatchdogExpired() {
		t.Fatal("expected watchdog expired after timeout elapsed without a kick")
	}
}

func TestWatchdog_KickResetsDeadline(t *testing.T) {
	h := New(newTestStore(t), "", nil)
	h.WatchdogSetTimeout(50)
	h.WatchdogInit()
	h.WatchdogKick()
	if h.WatchdogExpired() {
		t.Fatal("expected watchdog not expired immediately after a kick")
	}
}

func TestDebugPuts_WritesToConfiguredWriter(t *testing.T) {
	var buf bytes.Buffer
	h := New(newTestStore(t), "", &buf)
	h.DebugPuts("hello")
	if buf.String() != "hello" {
		t.Fatalf("debug output = %q, want %q", buf.String(), "hello")
	}
}

func TestRegisterSubsystemProcess_OutOfRangeRejected(t *testing.T) {
	h := New(newTestStore(t), "", nil)
	if err := h.RegisterSubsystemProcess(types.SubsystemID(types.SubsystemCount), "/bin/true"); err == nil {
		t.Fatal("expected error for out-of-range subsystem id")
	}
}

func TestIsSubsystemRunning_FalseBeforeRegistration(t *testing.T) {
	h := New(newTestStore(t), "", nil)
	if h.IsSubsystemRunning(types.SubsysEPS) {
		t.Fatal("expected false before any process is registered")
	}
}

func TestPowerEnableRail_NoRegisteredProcessIsANoop(t *testing.T) {
	h := New(newTestStore(t), "", nil)
	h.PowerEnableRail(uint8(types.SubsysEPS))
	h.PowerDisableRail(uint8(types.SubsysEPS))
	if h.IsSubsystemRunning(types.SubsysEPS) {
		t.Fatal("expected no-op without a registered process")
	}
}

func TestResetSubsystem_OutOfRangeIsANoop(t *testing.T) {
	h := New(newTestStore(t), "", nil)
	h.ResetSubsystem(types.SubsystemID(types.SubsystemCount))
}

func TestSubsystemProcessLifecycle_RequiresNamespacePrivileges(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("skipping namespaced-process lifecycle test: requires root")
	}
	h := New(newTestStore(t), "", nil)
	if err := h.RegisterSubsystemProcess(types.SubsysPayload, "/bin/sleep", "5"); err != nil {
		t.Fatalf("RegisterSubsystemProcess() error: %v", err)
	}
	h.PowerEnableRail(uint8(types.SubsysPayload))
	time.Sleep(20 * time.Millisecond)
	if !h.IsSubsystemRunning(types.SubsysPayload) {
		t.Fatal("expected subsystem process running after PowerEnableRail")
	}
	h.PowerDisableRail(uint8(types.SubsysPayload))
	if h.IsSubsystemRunning(types.SubsysPayload) {
		t.Fatal("expected subsystem process paused after PowerDisableRail")
	}
	h.ResetSubsystem(types.SubsysPayload)
}
