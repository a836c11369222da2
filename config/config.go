// Package config loads ground-support configuration overrides —
// mode dwell timeouts, FDIR rule thresholds, telemetry definition
// periods, and the process-harness subsystem-sandbox parameters — from
// a YAML file, the way logging.Config and the rest of the ambient stack
// are configured in this codebase. Every field is a delta over the
// compiled-in defaults baked into mode, fdir, telemetry and bspharness;
// an absent or empty file changes nothing.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TheusHen/OpenFSW/fdir"
	"github.com/TheusHen/OpenFSW/mode"
	"github.com/TheusHen/OpenFSW/telemetry"
	"github.com/TheusHen/OpenFSW/types"
)

// ModeTimeoutOverride overrides the dwell timeout for one mode.
type ModeTimeoutOverride struct {
	Mode      string        `yaml:"mode"`
	TimeoutMs uint32        `yaml:"timeout_ms"`
}

// FDIRRuleOverride overrides the threshold and window of one FDIR rule.
// The rule's recovery action is never overridden from config — tuning
// when a fault trips is a ground-ops knob, what happens once it trips is
// a safety-certified decision the static table keeps.
type FDIRRuleOverride struct {
	Fault     string `yaml:"fault"`
	Threshold uint32 `yaml:"threshold"`
	WindowMs  uint32 `yaml:"window_ms"`
}

// TelemetryPeriodOverride overrides one housekeeping definition's
// generation period.
type TelemetryPeriodOverride struct {
	PacketID uint16 `yaml:"packet_id"`
	PeriodMs uint32 `yaml:"period_ms"`
}

// SubsystemProcess describes a real OS process bspharness should launch
// to stand in for a subsystem's isolation boundary.
type SubsystemProcess struct {
	Subsystem string   `yaml:"subsystem"`
	Path      string   `yaml:"path"`
	Args      []string `yaml:"args"`
}

// HarnessConfig configures the bspharness ground-support BSP.
type HarnessConfig struct {
	SafePinPath       string             `yaml:"safe_pin_path"`
	WatchdogTimeoutMs uint32             `yaml:"watchdog_timeout_ms"`
	Processes         []SubsystemProcess `yaml:"processes"`
}

// SchedulerConfig carries per-job period overrides, keyed by job name.
// cmd/openfsw-sim looks up "eps", "beacon" and "telemetry"; the
// scheduler's built-in health job takes its period from scheduler.New
// and no key here changes it.
type SchedulerConfig struct {
	JobPeriodsMs map[string]uint32 `yaml:"job_periods_ms"`
}

// Config is the full set of loadable overrides.
type Config struct {
	Scheduler SchedulerConfig           `yaml:"scheduler"`
	Modes     []ModeTimeoutOverride     `yaml:"modes"`
	FDIR      []FDIRRuleOverride        `yaml:"fdir_rules"`
	Telemetry []TelemetryPeriodOverride `yaml:"telemetry"`
	Harness   HarnessConfig             `yaml:"harness"`
}

// Default returns the zero-value Config: every compiled-in default
// stands, nothing is overridden.
func Default() Config {
	return Config{}
}

// Load reads and parses a YAML configuration file. A missing file is not
// an error — it returns Default(), matching a deployment that ships no
// override file at all.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func modeByName(name string) (types.Mode, bool) {
	for i := 0; i < types.ModeCount; i++ {
		m := types.Mode(i)
		if m.String() == name {
			return m, true
		}
	}
	return 0, false
}

func faultByName(name string) (fdir.FaultType, bool) {
	for i := 0; i < fdir.FaultCount; i++ {
		f := fdir.FaultType(i)
		if f.String() == name {
			return f, true
		}
	}
	return 0, false
}

// SubsystemByName resolves a subsystem name (as printed by
// types.SubsystemID.String) back to its ID.
func SubsystemByName(name string) (types.SubsystemID, bool) {
	for i := 0; i < types.SubsystemCount; i++ {
		s := types.SubsystemID(i)
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// ApplyModeTimeouts pushes every mode timeout override into the mode
// package's global table. Unknown mode names are skipped rather than
// failing the whole load, so one typo in a ground-ops config file
// doesn't block every other override from taking effect.
func (c Config) ApplyModeTimeouts() []error {
	var errs []error
	for _, o := range c.Modes {
		m, ok := modeByName(o.Mode)
		if !ok {
			errs = append(errs, fmt.Errorf("config: unknown mode %q", o.Mode))
			continue
		}
		mode.SetTimeoutOverride(m, time.Duration(o.TimeoutMs)*time.Millisecond)
	}
	return errs
}

// ApplyFDIRRules pushes every FDIR rule override into the fdir package's
// global rule table.
func (c Config) ApplyFDIRRules() []error {
	var errs []error
	for _, o := range c.FDIR {
		f, ok := faultByName(o.Fault)
		if !ok {
			errs = append(errs, fmt.Errorf("config: unknown fault %q", o.Fault))
			continue
		}
		if err := fdir.SetRuleOverride(f, o.Threshold, time.Duration(o.WindowMs)*time.Millisecond); err != nil {
			errs = append(errs, fmt.Errorf("config: override fault %q: %w", o.Fault, err))
		}
	}
	return errs
}

// ApplyTelemetryPeriods pushes every telemetry period override into the
// given telemetry.Service.
func (c Config) ApplyTelemetryPeriods(tm *telemetry.Service) []error {
	var errs []error
	for _, o := range c.Telemetry {
		if err := tm.SetPeriod(o.PacketID, time.Duration(o.PeriodMs)*time.Millisecond); err != nil {
			errs = append(errs, fmt.Errorf("config: override telemetry packet %d: %w", o.PacketID, err))
		}
	}
	return errs
}

// JobPeriod returns the configured override for jobName, and whether one
// was set; callers fall back to their compiled-in default otherwise.
func (c Config) JobPeriod(jobName string) (time.Duration, bool) {
	ms, ok := c.Scheduler.JobPeriodsMs[jobName]
	if !ok {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}
