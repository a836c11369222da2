// Package bootrecord implements the persistent boot record: the small
// struct that survives a reset (backup SRAM on the vehicle, an nvm.Store
// entry on the ground harness) and lets the boot sequencer tell a
// brown-out apart from a clean power cycle.
package bootrecord

import (
	"encoding/binary"

	"github.com/TheusHen/OpenFSW/nvm"
	"github.com/TheusHen/OpenFSW/status"
	"github.com/TheusHen/OpenFSW/types"
)

// Magic is the sentinel value identifying a valid persistent record,
// matching BOOT_COUNTER_MAGIC.
const Magic uint32 = 0xB007C0DE

// SafeThreshold is the number of watchdog resets that force SAFE mode.
const SafeThreshold = 3

const (
	bucket = "bootrecord"
	key    = "current"
	// wire layout: magic, boot_count, watchdog, brownout, software,
	// last_cause, requested_mode, checksum — all uint32.
	recordLen = 8 * 4
)

// Record is the persistent boot record.
type Record struct {
	BootCount           uint32
	ResetCountWatchdog  uint32
	ResetCountBrownout  uint32
	ResetCountSoftware  uint32
	LastResetCause      types.ResetCause
	RequestedMode       types.Mode
	checksum            uint32
}

// fresh returns the zero-value record a cold boot (or a corrupted
// record) falls back to.
func fresh() Record {
	return Record{
		LastResetCause: types.ResetUnknown,
		RequestedMode:  types.ModeBoot,
	}
}

func checksum(r *Record) uint32 {
	buf := encodeWithoutChecksum(r)
	var sum uint32
	for _, b := range buf {
		sum += uint32(b)
	}
	return sum ^ 0xDEADBEEF
}

func encodeWithoutChecksum(r *Record) []byte {
	buf := make([]byte, recordLen-4)
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	binary.BigEndian.PutUint32(buf[4:8], r.BootCount)
	binary.BigEndian.PutUint32(buf[8:12], r.ResetCountWatchdog)
	binary.BigEndian.PutUint32(buf[12:16], r.ResetCountBrownout)
	binary.BigEndian.PutUint32(buf[16:20], r.ResetCountSoftware)
	binary.BigEndian.PutUint32(buf[20:24], uint32(r.LastResetCause))
	binary.BigEndian.PutUint32(buf[24:28], uint32(r.RequestedMode))
	return buf
}

func encode(r *Record) []byte {
	r.checksum = checksum(r)
	buf := make([]byte, recordLen)
	copy(buf, encodeWithoutChecksum(r))
	binary.BigEndian.PutUint32(buf[28:32], r.checksum)
	return buf
}

func decode(buf []byte) (Record, bool) {
	if len(buf) != recordLen {
		return Record{}, false
	}
	magic := binary.BigEndian.Uint32(buf[0:4])
	if magic != Magic {
		return Record{}, false
	}
	r := Record{
		BootCount:          binary.BigEndian.Uint32(buf[4:8]),
		ResetCountWatchdog: binary.BigEndian.Uint32(buf[8:12]),
		ResetCountBrownout: binary.BigEndian.Uint32(buf[12:16]),
		ResetCountSoftware: binary.BigEndian.Uint32(buf[16:20]),
		LastResetCause:     types.ResetCause(binary.BigEndian.Uint32(buf[20:24])),
		RequestedMode:      types.Mode(binary.BigEndian.Uint32(buf[24:28])),
		checksum:           binary.BigEndian.Uint32(buf[28:32]),
	}
	if r.checksum != checksum(&r) {
		return Record{}, false
	}
	return r, true
}

// Store wraps an nvm.Store with Load/Save for the boot record.
type Store struct {
	nvm *nvm.Store
}

// NewStore wraps backing for the boot record.
func NewStore(backing *nvm.Store) *Store {
	return &Store{nvm: backing}
}

// Load reads the persistent record, validating its magic and checksum.
// If validation fails (first boot, corruption, or no prior record), it
// returns a freshly-initialized record and status.ErrBadMagic or
// status.ErrBadChecksum so callers can distinguish "never written" from
// "corrupted".
func (s *Store) Load() (Record, error) {
	buf, err := s.nvm.Get(bucket, key)
	if err != nil {
		return fresh(), status.ErrBadMagic
	}
	r, ok := decode(buf)
	if !ok {
		return fresh(), status.ErrBadChecksum
	}
	return r, nil
}

// Save persists r, recomputing its checksum.
func (s *Store) Save(r *Record) error {
	return s.nvm.Put(bucket, key, encode(r))
}

// IncrementBootCount increments and persists the boot counter. Saturates
// at MaxUint32 rather than wrapping, since the original's plain uint32++
// would silently wrap after four billion boots — harmless on a 12-month
// mission, but saturating is the correct bounded-counter discipline the
// rest of the core follows elsewhere.
func (s *Store) IncrementBootCount(r *Record) {
	if r.BootCount < ^uint32(0) {
		r.BootCount++
	}
}

// IsSafeRequired reports whether accumulated reset history forces SAFE
// mode regardless of the immediate reset cause.
func IsSafeRequired(r *Record) bool {
	if r.ResetCountWatchdog >= SafeThreshold {
		return true
	}
	return r.LastResetCause == types.ResetBrownOut
}

// ClearCounters zeroes the watchdog and brown-out counters after a
// sustained period of nominal operation. The software reset counter is
// deliberately left untouched, matching the original's clear_counters.
func ClearCounters(r *Record) {
	r.ResetCountWatchdog = 0
	r.ResetCountBrownout = 0
}

func saturatingIncrement(v uint32) uint32 {
	if v < ^uint32(0) {
		return v + 1
	}
	return v
}

// SelectMode runs the priority-ordered mode selection chain: safe-mode
// pin override, then accumulated-fault override, then per-cause
// selection. It mutates r's per-cause counters the same way the original
// boot_select_mode does.
func SelectMode(r *Record, cause types.ResetCause, safeModePinAsserted bool) types.Mode {
	if safeModePinAsserted {
		return types.ModeSafe
	}
	if IsSafeRequired(r) {
		return types.ModeSafe
	}

	switch cause {
	case types.ResetWatchdog:
		r.ResetCountWatchdog = saturatingIncrement(r.ResetCountWatchdog)
		if r.ResetCountWatchdog >= SafeThreshold {
			return types.ModeSafe
		}
		return types.ModeRecovery

	case types.ResetBrownOut:
		r.ResetCountBrownout = saturatingIncrement(r.ResetCountBrownout)
		return types.ModeLowPower

	case types.ResetPowerOn:
		return types.ModeDetumble

	case types.ResetSoftware:
		if r.RequestedMode != types.ModeBoot {
			return r.RequestedMode
		}
		return types.ModeNominal

	default:
		return types.ModeSafe
	}
}
