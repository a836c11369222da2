// Package bootseq implements the boot sequence: platform bring-up,
// persistent boot record validation, reset-cause-driven mode selection,
// and the boot counter update, handing off a selected mode to whatever
// starts the scheduler next.
//
// There is no data/bss copy step here — that is a linker-script concern
// the Go runtime already handles before main runs — so Run begins where
// the reference's boot_main begins being interesting: validating the
// persistent record and reading the reset cause.
package bootseq

import (
	"github.com/TheusHen/OpenFSW/bootrecord"
	"github.com/TheusHen/OpenFSW/bsp"
	"github.com/TheusHen/OpenFSW/types"
)

// Result is everything the caller needs to report on a boot and hand off
// to the scheduler.
type Result struct {
	Mode       types.Mode
	Cause      types.ResetCause
	BootCount  uint32
	SafeForced bool
	Record     bootrecord.Record
}

// Run executes the boot sequence against store, returning the mode the
// scheduler should start in. It mirrors boot_main: validate-or-reinit the
// persistent record, bring up the clock and watchdog, read the reset
// cause, bump the boot counter, select a mode, and persist the updated
// record before returning.
func Run(b bsp.BSP, store *bootrecord.Store) (Result, error) {
	record, err := store.Load()
	if err != nil {
		// A missing or corrupted record falls back to the fresh
		// zero-value record Load already returned; a first boot and a
		// corrupted-record recovery take the same path.
		err = nil
	}

	b.ClockBasicInit()
	b.WatchdogInit()

	cause := b.ResetGetCause()

	store.IncrementBootCount(&record)

	// Mode selection reads the previous boot's cause from the record, so
	// the new cause is stored only once the mode has been selected.
	safePin := b.SafeModePinAsserted()
	mode := bootrecord.SelectMode(&record, cause, safePin)
	safeForced := safePin || bootrecord.IsSafeRequired(&record)
	record.LastResetCause = cause

	if saveErr := store.Save(&record); saveErr != nil && err == nil {
		err = saveErr
	}

	return Result{
		Mode:       mode,
		Cause:      cause,
		BootCount:  record.BootCount,
		SafeForced: safeForced,
		Record:     record,
	}, err
}

// ClearFaultHistory zeroes the watchdog and brown-out counters and
// persists the result, for use once a mission phase has run long enough
// nominally that past reset history should stop influencing mode
// selection.
func ClearFaultHistory(store *bootrecord.Store) error {
	record, err := store.Load()
	if err != nil {
		return err
	}
	bootrecord.ClearCounters(&record)
	return store.Save(&record)
}
