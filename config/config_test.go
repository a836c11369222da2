package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TheusHen/OpenFSW/ccsds"
	"github.com/TheusHen/OpenFSW/mode"
	"github.com/TheusHen/OpenFSW/telemetry"
	"github.com/TheusHen/OpenFSW/types"
)

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Modes) != 0 || len(cfg.FDIR) != 0 {
		t.Fatal("expected Default() for a missing file")
	}
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
modes:
  - mode: RECOVERY
    timeout_ms: 120000
fdir_rules:
  - fault: BUS_ERROR
    threshold: 10
    window_ms: 2000
telemetry:
  - packet_id: 1
    period_ms: 500
harness:
  safe_pin_path: /tmp/safe-pin
  watchdog_timeout_ms: 4000
  processes:
    - subsystem: PAYLOAD
      path: /usr/bin/payload-sim
      args: ["--foo"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Modes) != 1 || cfg.Modes[0].Mode != "RECOVERY" || cfg.Modes[0].TimeoutMs != 120000 {
		t.Fatalf("unexpected Modes: %+v", cfg.Modes)
	}
	if len(cfg.FDIR) != 1 || cfg.FDIR[0].Fault != "BUS_ERROR" || cfg.FDIR[0].Threshold != 10 {
		t.Fatalf("unexpected FDIR: %+v", cfg.FDIR)
	}
	if cfg.Harness.SafePinPath != "/tmp/safe-pin" || len(cfg.Harness.Processes) != 1 {
		t.Fatalf("unexpected Harness: %+v", cfg.Harness)
	}
}

func TestLoad_InvalidYAMLReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("modes: [this is not valid: yaml:::"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestApplyModeTimeouts_OverrideTakesEffect(t *testing.T) {
	cfg := Config{Modes: []ModeTimeoutOverride{{Mode: "RECOVERY", TimeoutMs: 1}}}
	if errs := cfg.ApplyModeTimeouts(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	defer mode.SetTimeoutOverride(types.ModeRecovery, 3600*time.Second)

	m := mode.New(types.ModeRecovery)
	time.Sleep(5 * time.Millisecond)
	if !m.IsTimeout() {
		t.Fatal("expected the 1ms override to have already elapsed")
	}
}

func TestApplyModeTimeouts_UnknownModeReportsError(t *testing.T) {
	cfg := Config{Modes: []ModeTimeoutOverride{{Mode: "NOT_A_MODE", TimeoutMs: 1}}}
	if errs := cfg.ApplyModeTimeouts(); len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
}

func TestApplyFDIRRules_OverridesKnownFault(t *testing.T) {
	cfg := Config{FDIR: []FDIRRuleOverride{{Fault: "COMM_LOSS", Threshold: 3, WindowMs: 1000}}}
	if errs := cfg.ApplyFDIRRules(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestApplyFDIRRules_UnknownFaultReportsError(t *testing.T) {
	cfg := Config{FDIR: []FDIRRuleOverride{{Fault: "NOT_A_FAULT", Threshold: 1}}}
	if errs := cfg.ApplyFDIRRules(); len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
}

func TestApplyTelemetryPeriods_OverridesKnownPacket(t *testing.T) {
	tm := telemetry.NewService(ccsds.NewSequenceCounter())
	cfg := Config{Telemetry: []TelemetryPeriodOverride{{PacketID: telemetry.PacketIDSystemHK, PeriodMs: 250}}}
	if errs := cfg.ApplyTelemetryPeriods(tm); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestApplyTelemetryPeriods_UnknownPacketReportsError(t *testing.T) {
	tm := telemetry.NewService(ccsds.NewSequenceCounter())
	cfg := Config{Telemetry: []TelemetryPeriodOverride{{PacketID: 9999, PeriodMs: 250}}}
	if errs := cfg.ApplyTelemetryPeriods(tm); len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
}

func TestJobPeriod_FallsBackWhenUnset(t *testing.T) {
	cfg := Config{Scheduler: SchedulerConfig{JobPeriodsMs: map[string]uint32{"health": 200}}}
	if d, ok := cfg.JobPeriod("health"); !ok || d != 200*time.Millisecond {
		t.Fatalf("JobPeriod(health) = %v, %v", d, ok)
	}
	if _, ok := cfg.JobPeriod("unknown"); ok {
		t.Fatal("expected no override for unregistered job name")
	}
}

func TestSubsystemByName_ResolvesKnownSubsystem(t *testing.T) {
	id, ok := SubsystemByName("PAYLOAD")
	if !ok || id != types.SubsysPayload {
		t.Fatalf("SubsystemByName(PAYLOAD) = %v, %v", id, ok)
	}
	if _, ok := SubsystemByName("NOT_A_SUBSYSTEM"); ok {
		t.Fatal("expected false for unknown subsystem name")
	}
}
