package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/TheusHen/OpenFSW/bsp"
	"github.com/TheusHen/OpenFSW/ccsds"
	"github.com/TheusHen/OpenFSW/fdir"
	"github.com/TheusHen/OpenFSW/health"
	"github.com/TheusHen/OpenFSW/mode"
	"github.com/TheusHen/OpenFSW/scheduler"
	"github.com/TheusHen/OpenFSW/subsystems/eps"
	"github.com/TheusHen/OpenFSW/telecommand"
	"github.com/TheusHen/OpenFSW/telemetry"
	"github.com/TheusHen/OpenFSW/timeservice"
	"github.com/TheusHen/OpenFSW/types"
)

func gatherText(t *testing.T, src Sources) string {
	t.Helper()
	reg := NewRegistry(src)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	var sb strings.Builder
	for _, mf := range families {
		sb.WriteString(mf.GetName())
		sb.WriteString("\n")
	}
	return sb.String()
}

func TestNewRegistry_NilSourcesRegistersNothing(t *testing.T) {
	reg := NewRegistry(Sources{})
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	if len(families) != 0 {
		t.Fatalf("expected no metric families, got %d", len(families))
	}
}

func TestNewRegistry_SchedulerMetricsRegistered(t *testing.T) {
	s := scheduler.New(types.ModeNominal, func() {})
	text := gatherText(t, Sources{Scheduler: s})
	if !strings.Contains(text, "openfsw_scheduler_job_count") {
		t.Fatalf("expected job_count metric, got:\n%s", text)
	}
}

func TestNewRegistry_ModeMetricsRegistered(t *testing.T) {
	m := mode.New(types.ModeNominal)
	text := gatherText(t, Sources{Mode: m})
	if !strings.Contains(text, "openfsw_mode_current") {
		t.Fatalf("expected mode_current metric, got:\n%s", text)
	}
}

func TestNewRegistry_FDIRMetricsRegisteredPerFault(t *testing.T) {
	f := fdir.New(fdir.Hooks{})
	text := gatherText(t, Sources{FDIR: f})
	if !strings.Contains(text, "openfsw_fdir_fault_occurrences_total") {
		t.Fatalf("expected fault_occurrences_total metric, got:\n%s", text)
	}
}

func TestNewRegistry_TelemetryMetricsRegistered(t *testing.T) {
	tm := telemetry.NewService(ccsds.NewSequenceCounter())
	text := gatherText(t, Sources{Telemetry: tm})
	if !strings.Contains(text, "openfsw_telemetry_queue_depth") || !strings.Contains(text, "openfsw_telemetry_generated_total") {
		t.Fatalf("expected telemetry metrics, got:\n%s", text)
	}
}

func TestNewRegistry_TelecommandMetricsRegistered(t *testing.T) {
	m := mode.New(types.ModeNominal)
	ts := timeservice.New()
	tm := telemetry.NewService(ccsds.NewSequenceCounter())
	d := telecommand.New(m, ts, tm, ccsds.NewSequenceCounter(), func() time.Duration { return 0 })
	text := gatherText(t, Sources{Telecommand: d})
	if !strings.Contains(text, "openfsw_telecommand_accepted_total") {
		t.Fatalf("expected telecommand_accepted_total metric, got:\n%s", text)
	}
}

func TestNewRegistry_EPSMetricsRegistered(t *testing.T) {
	e := eps.New(bsp.NewGeneric(), fdir.New(fdir.Hooks{}), mode.New(types.ModeNominal))
	text := gatherText(t, Sources{EPS: e})
	if !strings.Contains(text, "openfsw_eps_battery_soc_percent") {
		t.Fatalf("expected battery_soc_percent metric, got:\n%s", text)
	}
}

func TestNewRegistry_HealthMetricsRegistered(t *testing.T) {
	h := health.New(bsp.NewGeneric(), nil)
	text := gatherText(t, Sources{Health: h})
	if !strings.Contains(text, "openfsw_health_status") {
		t.Fatalf("expected health_status metric, got:\n%s", text)
	}
}
