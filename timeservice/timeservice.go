// Package timeservice supplies the flight core's notion of time: a
// monotonic uptime counter, an optionally-synchronized UTC clock, and
// the coarse/fine timestamp pair CCSDS secondary headers carry.
package timeservice

import (
	"sync"
	"time"

	"github.com/TheusHen/OpenFSW/osal"
	"github.com/TheusHen/OpenFSW/status"
)

// Epoch is the CCSDS/mission reference epoch, matching the original
// time manager's "seconds since 2000-01-01T00:00:00Z" base.
var Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Timestamp is a coarse/fine UTC timestamp relative to Epoch: seconds
// plus a microsecond fraction, exactly as CCSDS secondary headers
// encode coarse+fine time.
type Timestamp struct {
	Seconds    uint32
	Subseconds uint32 // microseconds within the second
}

// Service tracks uptime, mission elapsed time, and an optional UTC sync
// point, guarded by a single mutex in the teacher's narrow-lock style.
type Service struct {
	mu         sync.Mutex
	utcBase    Timestamp
	syncUptime uint32
	driftPPM   int32
	synced     bool
}

// New constructs a Service with the clock unsynchronized.
func New() *Service {
	return &Service{}
}

// UptimeMs returns milliseconds since the OSAL was linked in.
func (s *Service) UptimeMs() uint32 {
	return osal.GetTimeMs()
}

// UptimeSeconds returns whole seconds since the OSAL was linked in.
func (s *Service) UptimeSeconds() uint32 {
	return osal.GetTimeMs() / 1000
}

// IsSynced reports whether SyncUTC has been called.
func (s *Service) IsSynced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// SyncUTC sets the UTC reference point from a telecommand-supplied
// timestamp, the TimeSync handler's job.
func (s *Service) SyncUTC(utc Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.utcBase = utc
	s.syncUptime = s.UptimeSeconds()
	s.synced = true
}

// UTC returns the current UTC timestamp, extrapolated from the last sync
// point and any configured drift correction.
func (s *Service) UTC() (Timestamp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.synced {
		return Timestamp{}, status.ErrClockNotSynced
	}

	elapsed := s.UptimeSeconds() - s.syncUptime
	if s.driftPPM != 0 {
		correction := int32(elapsed) * s.driftPPM / 1_000_000
		elapsed = uint32(int32(elapsed) + correction)
	}

	return Timestamp{
		Seconds:    s.utcBase.Seconds + elapsed,
		Subseconds: osal.GetTimeMs() % 1000 * 1000,
	}, nil
}

// SetDriftCorrection configures a parts-per-million correction applied
// when extrapolating UTC from the sync point.
func (s *Service) SetDriftCorrection(ppm int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driftPPM = ppm
}

// DriftCorrection returns the configured drift correction in PPM.
func (s *Service) DriftCorrection() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driftPPM
}

// Now returns the current uptime as a Timestamp relative to boot,
// independent of UTC sync — used for CCSDS packets generated before
// time sync has occurred.
func (s *Service) Now() Timestamp {
	ms := s.UptimeMs()
	return Timestamp{Seconds: ms / 1000, Subseconds: (ms % 1000) * 1000}
}

// ToTime converts a Timestamp to a standard library time.Time relative
// to Epoch, for display and logging.
func ToTime(ts Timestamp) time.Time {
	return Epoch.Add(time.Duration(ts.Seconds)*time.Second + time.Duration(ts.Subseconds)*time.Microsecond)
}

// Diff returns the difference a-b in milliseconds.
func Diff(a, b Timestamp) int32 {
	diffS := int32(a.Seconds) - int32(b.Seconds)
	diffUs := int32(a.Subseconds) - int32(b.Subseconds)
	return diffS*1000 + diffUs/1000
}
