// Package bspharness is the ground-support BSP: a bsp.BSP implementation
// backed by real OS mechanisms instead of bsp.Generic's no-ops, so the
// simulator can rehearse fault isolation and power gating against actual
// processes instead of pretending.
//
// Each subsystem that registers a process with the harness runs in its
// own PID/mount/UTS/IPC namespace, the same isolation linux.NamespaceFlags
// and BuildSysProcAttr construct for a container's init process — here
// standing in for the memory-protection boundary an RTOS gives each task
// on real silicon. Power-rail gating pauses and resumes that process with
// SIGSTOP/SIGCONT rather than a cgroup freezer, since the freezer
// controller needs privileges CI runners don't grant; a subsystem reset
// kills and relaunches its process, which is the one piece of realism a
// single Go binary can never give bsp.Generic.
//
// The persisted reset cause rides on the same bbolt-backed nvm.Store the
// boot record and event log already use, rather than a bespoke file
// format; the safe-mode pin is the existence of a sentinel file.
package bspharness

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/TheusHen/OpenFSW/nvm"
	"github.com/TheusHen/OpenFSW/types"
)

const (
	bucket        = "bspharness"
	keyResetCause = "reset_cause"
)

// subsystemProcess tracks the namespaced process standing in for one
// subsystem's isolation boundary.
type subsystemProcess struct {
	cmd     *exec.Cmd
	running bool
	path    string
	args    []string
}

// Harness is a real-process-backed BSP for ground-support simulation.
type Harness struct {
	mu sync.Mutex

	store       *nvm.Store
	safePinPath string
	debugOut    io.Writer

	watchdogTimeout  time.Duration
	watchdogDeadline time.Time

	procs [types.SubsystemCount]*subsystemProcess
}

// New constructs a Harness. store may be nil, in which case no reset
// cause is kept at all and ResetGetCause always reports ResetPowerOn
// (matching a cold start every run); safePinPath, if non-empty, is a file whose mere existence stands
// in for a physical safe-mode pin being asserted — an operator can touch
// it to force SAFE mode without rebuilding anything. debugOut defaults to
// os.Stderr.
func New(store *nvm.Store, safePinPath string, debugOut io.Writer) *Harness {
	if debugOut == nil {
		debugOut = os.Stderr
	}
	return &Harness{
		store:           store,
		safePinPath:     safePinPath,
		debugOut:        debugOut,
		watchdogTimeout: 4 * time.Second,
	}
}

func (h *Harness) ClockBasicInit() {}

// ClockGetSysClkHz reports the same conservative default as bsp.Generic;
// the harness has no board clock tree to read, only the host's.
func (h *Harness) ClockGetSysClkHz() uint32 { return 16_000_000 }

func (h *Harness) ClockGetHClkHz() uint32 { return h.ClockGetSysClkHz() }

// WatchdogInit arms the watchdog with its default timeout.
func (h *Harness) WatchdogInit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watchdogDeadline = time.Now().Add(h.watchdogTimeout)
}

// WatchdogKick pushes the deadline out by the configured timeout.
func (h *Harness) WatchdogKick() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watchdogDeadline = time.Now().Add(h.watchdogTimeout)
}

// WatchdogSetTimeout reconfigures the timeout and re-arms the deadline.
func (h *Harness) WatchdogSetTimeout(ms uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watchdogTimeout = time.Duration(ms) * time.Millisecond
	h.watchdogDeadline = time.Now().Add(h.watchdogTimeout)
}

// WatchdogExpired reports whether the watchdog deadline has passed
// without a kick — the harness's stand-in for the hardware reset a real
// watchdog timeout would cause. A supervisory loop polls this and calls
// ResetSoftware (or exits, to be relaunched) when it goes true.
func (h *Harness) WatchdogExpired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.watchdogDeadline.IsZero() && time.Now().After(h.watchdogDeadline)
}

// ResetGetCause reads the persisted reset cause, defaulting to
// ResetPowerOn when no prior cause was recorded — a fresh nvm.Store
// looks exactly like a cold power-on.
func (h *Harness) ResetGetCause() types.ResetCause {
	if h.store == nil {
		return types.ResetPowerOn
	}
	buf, err := h.store.Get(bucket, keyResetCause)
	if err != nil || len(buf) != 1 {
		return types.ResetPowerOn
	}
	return types.ResetCause(buf[0])
}

// ResetSoftware persists ResetSoftware as the cause the next boot will
// observe. A real board resets immediately after setting this register;
// the harness leaves the actual process restart to its caller (the
// ground-support CLI re-execs itself), matching how boot.c only ever
// reads the cause a separate reset mechanism already latched.
func (h *Harness) ResetSoftware() {
	h.persistCause(types.ResetSoftware)
}

// SeedResetCause overwrites the persisted reset-cause register directly,
// the way a ground-support operator forces a particular boot path
// through a test campaign without actually power-cycling anything.
func (h *Harness) SeedResetCause(cause types.ResetCause) {
	h.persistCause(cause)
}

func (h *Harness) persistCause(cause types.ResetCause) {
	if h.store == nil {
		return
	}
	_ = h.store.Put(bucket, keyResetCause, []byte{byte(cause)})
}

// ResetSubsystem kills and relaunches the namespaced process registered
// for subsys, if any. This is the isolation payoff real namespaces give
// the harness that bsp.Generic cannot: a faulted subsystem actually dies
// and comes back, instead of a fault flag merely being set in memory.
func (h *Harness) ResetSubsystem(subsys types.SubsystemID) {
	if int(subsys) >= types.SubsystemCount {
		return
	}
	h.mu.Lock()
	p := h.procs[subsys]
	h.mu.Unlock()
	if p == nil {
		return
	}
	_ = h.stopProcess(p)
	_ = h.startProcess(p)
}

// SafeModePinAsserted reports whether the sentinel safe-pin file exists.
func (h *Harness) SafeModePinAsserted() bool {
	if h.safePinPath == "" {
		return false
	}
	_, err := os.Stat(h.safePinPath)
	return err == nil
}

func (h *Harness) PowerEnterLowPower() {}

// PowerEnableRail resumes (or starts) the process registered for rail,
// if one was registered via RegisterSubsystemProcess.
func (h *Harness) PowerEnableRail(rail uint8) {
	h.mu.Lock()
	p := h.procAt(rail)
	h.mu.Unlock()
	if p == nil {
		return
	}
	if p.running {
		h.signalProcess(p, syscall.SIGCONT)
		return
	}
	_ = h.startProcess(p)
}

// PowerDisableRail pauses the process registered for rail via SIGSTOP,
// the portable stand-in for gating the rail's power off.
func (h *Harness) PowerDisableRail(rail uint8) {
	h.mu.Lock()
	p := h.procAt(rail)
	h.mu.Unlock()
	if p == nil || !p.running {
		return
	}
	h.signalProcess(p, syscall.SIGSTOP)
}

func (h *Harness) DebugPutchar(c byte) {
	_, _ = h.debugOut.Write([]byte{c})
}

func (h *Harness) DebugPuts(s string) {
	_, _ = io.WriteString(h.debugOut, s)
}

// RegisterSubsystemProcess arms id to run path(args...) in its own
// PID/mount/UTS/IPC namespace the next time its rail is enabled. It does
// not start the process; PowerEnableRail does.
func (h *Harness) RegisterSubsystemProcess(id types.SubsystemID, path string, args ...string) error {
	if int(id) >= types.SubsystemCount {
		return errors.New("bspharness: subsystem id out of range")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.procs[id] = &subsystemProcess{path: path, args: args}
	return nil
}

// IsSubsystemRunning reports whether id's registered process is currently
// running (and not paused).
func (h *Harness) IsSubsystemRunning(id types.SubsystemID) bool {
	if int(id) >= types.SubsystemCount {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.procs[id]
	return p != nil && p.running
}

func (h *Harness) procAt(rail uint8) *subsystemProcess {
	if int(rail) >= types.SubsystemCount {
		return nil
	}
	return h.procs[rail]
}

func (h *Harness) startProcess(p *subsystemProcess) error {
	cmd := exec.Command(p.path, p.args...)
	cmd.SysProcAttr = namespacedSysProcAttr()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	h.mu.Lock()
	p.cmd = cmd
	p.running = true
	h.mu.Unlock()
	go func() { _ = cmd.Wait() }()
	return nil
}

func (h *Harness) stopProcess(p *subsystemProcess) error {
	h.mu.Lock()
	cmd := p.cmd
	p.running = false
	h.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func (h *Harness) signalProcess(p *subsystemProcess, sig syscall.Signal) {
	h.mu.Lock()
	cmd := p.cmd
	if sig == syscall.SIGCONT {
		p.running = true
	} else if sig == syscall.SIGSTOP {
		p.running = false
	}
	h.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(sig)
}

// namespacedSysProcAttr isolates a subsystem process into its own
// PID, mount, UTS and IPC namespaces, the same clone flags
// linux.BuildSysProcAttr derives from an OCI namespace list — simplified
// here since the harness has no bundle config to read, just a fixed
// isolation policy every subsystem process gets.
func namespacedSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Cloneflags: unix.CLONE_NEWPID | unix.CLONE_NEWNS | unix.CLONE_NEWUTS | unix.CLONE_NEWIPC,
		Setsid:     true,
	}
}
