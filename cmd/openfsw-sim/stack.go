package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TheusHen/OpenFSW/beacon"
	"github.com/TheusHen/OpenFSW/bootrecord"
	"github.com/TheusHen/OpenFSW/bootseq"
	"github.com/TheusHen/OpenFSW/bsp"
	"github.com/TheusHen/OpenFSW/bspharness"
	"github.com/TheusHen/OpenFSW/ccsds"
	"github.com/TheusHen/OpenFSW/config"
	"github.com/TheusHen/OpenFSW/eventlog"
	"github.com/TheusHen/OpenFSW/fdir"
	"github.com/TheusHen/OpenFSW/health"
	"github.com/TheusHen/OpenFSW/logging"
	"github.com/TheusHen/OpenFSW/mode"
	"github.com/TheusHen/OpenFSW/nvm"
	"github.com/TheusHen/OpenFSW/scheduler"
	"github.com/TheusHen/OpenFSW/subsystems/eps"
	"github.com/TheusHen/OpenFSW/telecommand"
	"github.com/TheusHen/OpenFSW/telemetry"
	"github.com/TheusHen/OpenFSW/timeservice"
	"github.com/TheusHen/OpenFSW/types"
)

// Stack is the full component graph one ground-support process wires
// up: the same set of collaborators the flight core links into a
// single image, assembled here instead as a set of Go values a CLI
// subcommand can drive directly.
type Stack struct {
	Config config.Config

	NVM       *nvm.Store
	BootStore *bootrecord.Store
	Events    *eventlog.Log
	Harness   *bspharness.Harness
	BSP       bsp.BSP
	Time      *timeservice.Service
	Seq       *ccsds.SequenceCounter

	Mode        *mode.Manager
	FDIR        *fdir.Manager
	EPS         *eps.Service
	Beacon      *beacon.Service
	Health      *health.Monitor
	Telemetry   *telemetry.Service
	Telecommand *telecommand.Dispatcher
	Scheduler   *scheduler.Scheduler

	Boot bootseq.Result
}

// newStack opens (or creates) the persistent store under stateDir,
// loads configPath (a missing file is not an error), runs the boot
// sequencer once, and wires every collaborator into one process the
// way boot_main links them into one image on the vehicle.
func newStack(stateDir, configPath string) (*Stack, error) {
	return newStackWithCause(stateDir, configPath, nil)
}

// newStackWithCause behaves like newStack, but when cause is non-nil it
// first seeds the persisted reset-cause register with *cause, letting a
// ground-support operator rehearse a specific boot path (watchdog
// escalation, brown-out, ...) without physically power-cycling anything.
func newStackWithCause(stateDir, configPath string, cause *types.ResetCause) (*Stack, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("openfsw-sim: create state dir %s: %w", stateDir, err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("openfsw-sim: load config: %w", err)
	}

	store, err := nvm.Open(filepath.Join(stateDir, "nvm.db"))
	if err != nil {
		return nil, fmt.Errorf("openfsw-sim: open nvm store: %w", err)
	}

	safePinPath := cfg.Harness.SafePinPath
	if safePinPath == "" {
		safePinPath = filepath.Join(stateDir, "safe-pin")
	}
	harness := bspharness.New(store, safePinPath, os.Stderr)
	if cfg.Harness.WatchdogTimeoutMs > 0 {
		harness.WatchdogSetTimeout(cfg.Harness.WatchdogTimeoutMs)
	}
	if cause != nil {
		harness.SeedResetCause(*cause)
	}
	for _, p := range cfg.Harness.Processes {
		id, ok := config.SubsystemByName(p.Subsystem)
		if !ok {
			logging.Warn("openfsw-sim: ignoring process harness entry for unknown subsystem", "subsystem", p.Subsystem)
			continue
		}
		if err := harness.RegisterSubsystemProcess(id, p.Path, p.Args...); err != nil {
			logging.Warn("openfsw-sim: register subsystem process failed", "subsystem", p.Subsystem, "error", err)
		}
	}

	bootStore := bootrecord.NewStore(store)
	bootResult, err := bootseq.Run(harness, bootStore)
	if err != nil {
		logging.Warn("openfsw-sim: boot sequencer reported a non-fatal error", "error", err)
	}

	ts := timeservice.New()
	events := eventlog.New(eventlog.UptimeMsFunc(func() time.Duration {
		return time.Duration(ts.UptimeMs()) * time.Millisecond
	}))
	if err := events.LoadFromNVM(store); err != nil {
		logging.Warn("openfsw-sim: event log restore failed, starting empty", "error", err)
	}

	modeMgr := mode.New(bootResult.Mode)

	// epsSvc is constructed after fdirMgr (it needs fdirMgr itself), so
	// the DisableRail hook below closes over this variable rather than
	// the eps.Service value directly.
	var epsSvc *eps.Service
	fdirMgr := fdir.New(fdir.Hooks{
		ResetSubsystem: harness.ResetSubsystem,
		ResetSoftware:  harness.ResetSoftware,
		DisableRail: func(r fdir.Rail) {
			// fdir.Rail and subsystems/eps.Rail share the same
			// numbering for the rails FDIR is allowed to shed.
			if epsSvc != nil {
				_ = epsSvc.DisableRail(eps.Rail(r))
			}
		},
		ForceSafeMode: func() { modeMgr.Force(types.ModeSafe) },
		LogEvent: func(sev types.Severity, subsys types.SubsystemID, fault fdir.FaultType, msg string) {
			events.Write(sev, subsys, uint16(fault), msg)
		},
	})
	epsSvc = eps.New(harness, fdirMgr, modeMgr)

	seq := ccsds.NewSequenceCounter()
	telemetrySvc := telemetry.NewService(seq)
	healthMon := health.New(harness, nil)
	beaconSvc := beacon.New(modeMgr, epsSvc)

	uptimeFn := func() time.Duration {
		return time.Duration(ts.UptimeMs()) * time.Millisecond
	}
	dispatcher := telecommand.New(modeMgr, ts, telemetrySvc, seq, uptimeFn)

	sched := scheduler.New(bootResult.Mode, func() {
		healthMon.Periodic()
	})
	if period, ok := cfg.JobPeriod("eps"); ok {
		_ = sched.RegisterPeriodic(epsSvc.Periodic, uint32(period.Milliseconds()))
	} else {
		_ = sched.RegisterPeriodic(epsSvc.Periodic, 200)
	}
	if period, ok := cfg.JobPeriod("beacon"); ok {
		_ = sched.RegisterPeriodic(func() { beaconSvc.Periodic(ts.UptimeMs()) }, uint32(period.Milliseconds()))
	} else {
		_ = sched.RegisterPeriodic(func() { beaconSvc.Periodic(ts.UptimeMs()) }, 1000)
	}
	if period, ok := cfg.JobPeriod("telemetry"); ok {
		_ = sched.RegisterPeriodic(func() { telemetrySvc.Periodic(uptimeFn(), ts.Now()) }, uint32(period.Milliseconds()))
	} else {
		_ = sched.RegisterPeriodic(func() { telemetrySvc.Periodic(uptimeFn(), ts.Now()) }, 1000)
	}

	if errs := cfg.ApplyModeTimeouts(); len(errs) > 0 {
		for _, e := range errs {
			logging.Warn("openfsw-sim: mode timeout override rejected", "error", e)
		}
	}
	if errs := cfg.ApplyFDIRRules(); len(errs) > 0 {
		for _, e := range errs {
			logging.Warn("openfsw-sim: FDIR rule override rejected", "error", e)
		}
	}
	if errs := cfg.ApplyTelemetryPeriods(telemetrySvc); len(errs) > 0 {
		for _, e := range errs {
			logging.Warn("openfsw-sim: telemetry period override rejected", "error", e)
		}
	}

	return &Stack{
		Config:      cfg,
		NVM:         store,
		BootStore:   bootStore,
		Events:      events,
		Harness:     harness,
		BSP:         harness,
		Time:        ts,
		Seq:         seq,
		Mode:        modeMgr,
		FDIR:        fdirMgr,
		EPS:         epsSvc,
		Beacon:      beaconSvc,
		Health:      healthMon,
		Telemetry:   telemetrySvc,
		Telecommand: dispatcher,
		Scheduler:   sched,
		Boot:        bootResult,
	}, nil
}

// Close persists the event log and releases the NVM store.
func (st *Stack) Close() error {
	if err := st.Events.SaveToNVM(st.NVM); err != nil {
		logging.Warn("openfsw-sim: event log save failed", "error", err)
	}
	return st.NVM.Close()
}
