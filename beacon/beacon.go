// Package beacon implements the health/status beacon: a fixed-size CRC
// protected frame broadcast at a mode-dependent interval, plus a
// high-priority emergency frame for FDIR-triggered alerts.
package beacon

import (
	"sync"
	"time"

	"github.com/TheusHen/OpenFSW/ccsds"
	"github.com/TheusHen/OpenFSW/mode"
	"github.com/TheusHen/OpenFSW/subsystems/eps"
	"github.com/TheusHen/OpenFSW/types"
)

// Broadcast intervals.
const (
	NormalInterval    = 30 * time.Second
	SafeInterval      = 10 * time.Second
	EmergencyInterval = 5 * time.Second

	MinInterval = time.Second
	MaxInterval = 5 * time.Minute
)

// CallsignSize is the fixed width of the amateur-radio callsign field.
const CallsignSize = 8

// Emergency codes, bit flags identifying what triggered an emergency
// beacon.
const (
	EmergencyPower    = 0x01
	EmergencyAttitude = 0x02
	EmergencyThermal  = 0x04
	EmergencyComms    = 0x08
	EmergencyFDIR     = 0x10
)

// Frame is the standard 46-byte health beacon.
type Frame struct {
	Callsign     [CallsignSize]byte
	FrameType    uint8
	FrameVersion uint8
	Sequence     uint16

	UptimeS      uint32
	Mode         uint8
	HealthFlags  uint8
	ResetCount   uint8
	FaultFlags   uint8

	BatteryVoltageMV uint16
	BatteryCurrentMA int16
	BatterySOC       uint8
	BatteryTempC     int8
	SolarPowerMW     uint16

	QuaternionW int16
	QuaternionX int16
	QuaternionY int16
	QuaternionZ int16

	TempOBCC     int8
	TempBatteryC int8
	TempCommsC   int8
	TempPayloadC int8

	RSSILast      int8
	PacketsRX24h  uint8
	PacketsTX24h  uint8
	LinkMarginDB  uint8

	CRC16 uint16
}

// FrameSize is Frame's on-the-wire byte count.
const FrameSize = 46

// Emergency is the compact 16-byte emergency beacon.
type Emergency struct {
	Callsign      [CallsignSize]byte
	EmergencyCode uint8
	Sequence      uint8
	Timestamp     uint32
	CRC16         uint16
}

// EmergencySize is Emergency's on-the-wire byte count.
const EmergencySize = 16

// Service is the beacon transmitter.
type Service struct {
	mu sync.Mutex

	callsign   [CallsignSize]byte
	intervalMs uint32
	lastTxMs   uint32
	txCount    uint32
	sequence   uint16
	enabled    bool

	mode *mode.Manager
	eps  *eps.Service
}

// New constructs a Service defaulting to callsign "OFSW-3U", enabled, at
// NormalInterval.
func New(m *mode.Manager, e *eps.Service) *Service {
	s := &Service{
		intervalMs: uint32(NormalInterval.Milliseconds()),
		enabled:    true,
		mode:       m,
		eps:        e,
	}
	copy(s.callsign[:], "OFSW-3U")
	return s
}

// Periodic transmits the health beacon once its mode-dependent interval
// has elapsed since the last transmission; while nothing has been
// transmitted yet, every call is due. SAFE and RECOVERY use faster
// intervals than the configured default, same as FDIR escalation
// demanding more frequent ground visibility.
func (s *Service) Periodic(uptimeMs uint32) {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}

	interval := s.intervalMs
	if s.mode != nil {
		switch s.mode.Current() {
		case types.ModeSafe:
			interval = uint32(SafeInterval.Milliseconds())
		case types.ModeRecovery:
			interval = uint32(EmergencyInterval.Milliseconds())
		}
	}

	// Nothing transmitted yet: the first call is always due.
	due := s.txCount == 0 || uptimeMs-s.lastTxMs >= interval
	s.mu.Unlock()

	if due {
		s.TransmitNow(uptimeMs)
		s.mu.Lock()
		s.lastTxMs = uptimeMs
		s.mu.Unlock()
	}
}

// SetCallsign overwrites the transmitted callsign, truncating to
// CallsignSize.
func (s *Service) SetCallsign(callsign string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callsign = [CallsignSize]byte{}
	copy(s.callsign[:], callsign)
}

// SetInterval clamps interval to [MinInterval, MaxInterval] and applies it.
func (s *Service) SetInterval(interval time.Duration) {
	if interval < MinInterval {
		interval = MinInterval
	}
	if interval > MaxInterval {
		interval = MaxInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervalMs = uint32(interval.Milliseconds())
}

// Enable and Disable control whether Periodic transmits at all.
func (s *Service) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
}

func (s *Service) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
}

// IsEnabled reports whether the beacon is currently enabled.
func (s *Service) IsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// LastTxTimeMs returns the uptime, in milliseconds, of the last beacon
// transmission.
func (s *Service) LastTxTimeMs() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTxMs
}

// TxCount returns the number of frames (health and emergency) sent so
// far.
func (s *Service) TxCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

// BuildFrame assembles a health beacon frame stamped with uptimeMs,
// drawing battery/solar telemetry from the wired eps.Service. Attitude,
// thermal and comms fields stay at their placeholder values pending
// those subsystems.
func (s *Service) BuildFrame(uptimeMs uint32) Frame {
	s.mu.Lock()
	callsign := s.callsign
	seq := s.sequence
	s.sequence++
	currentMode := types.ModeBoot
	if s.mode != nil {
		currentMode = s.mode.Current()
	}
	s.mu.Unlock()

	f := Frame{
		Callsign:     callsign,
		FrameType:    0,
		FrameVersion: 1,
		Sequence:     seq,
		UptimeS:      uptimeMs / 1000,
		Mode:         uint8(currentMode),
		QuaternionW:  32767, // 1.0 in Q15
		TempOBCC:     25,
		TempCommsC:   25,
		TempPayloadC: 25,
		RSSILast:     -80,
		LinkMarginDB: 10,
	}

	if s.eps != nil {
		bat := s.eps.BatteryState()
		f.BatteryVoltageMV = bat.VoltageMV
		f.BatteryCurrentMA = bat.CurrentMA
		f.BatterySOC = bat.SOCPercent
		f.BatteryTempC = bat.TemperatureC
		f.SolarPowerMW = s.eps.SolarPower()
		f.TempBatteryC = bat.TemperatureC
	}

	f.CRC16 = ccsds.CalcCRC(packFrame(f)[:FrameSize-2])
	return f
}

// Serialize returns f's 46-byte wire representation, the same layout
// BuildFrame's CRC is computed over.
func Serialize(f Frame) []byte {
	return packFrame(f)
}

// packFrame serializes f into its 46-byte wire layout. Every multi-byte
// field is little-endian, matching the reference's native uint16_t/
// int16_t/uint32_t packed struct on its little-endian target — a
// deliberate departure from CCSDS's usual big-endian convention, since
// this frame is never parsed by CCSDS-aware ground software.
func packFrame(f Frame) []byte {
	buf := make([]byte, 0, FrameSize)
	buf = append(buf, f.Callsign[:]...)
	buf = append(buf, f.FrameType, f.FrameVersion, byte(f.Sequence), byte(f.Sequence>>8))
	buf = append(buf,
		byte(f.UptimeS), byte(f.UptimeS>>8), byte(f.UptimeS>>16), byte(f.UptimeS>>24),
		f.Mode, f.HealthFlags, f.ResetCount, f.FaultFlags,
	)
	buf = append(buf,
		byte(f.BatteryVoltageMV), byte(f.BatteryVoltageMV>>8),
		byte(uint16(f.BatteryCurrentMA)), byte(uint16(f.BatteryCurrentMA)>>8),
		f.BatterySOC, byte(f.BatteryTempC),
		byte(f.SolarPowerMW), byte(f.SolarPowerMW>>8),
	)
	buf = append(buf,
		byte(uint16(f.QuaternionW)), byte(uint16(f.QuaternionW)>>8),
		byte(uint16(f.QuaternionX)), byte(uint16(f.QuaternionX)>>8),
		byte(uint16(f.QuaternionY)), byte(uint16(f.QuaternionY)>>8),
		byte(uint16(f.QuaternionZ)), byte(uint16(f.QuaternionZ)>>8),
	)
	buf = append(buf, byte(f.TempOBCC), byte(f.TempBatteryC), byte(f.TempCommsC), byte(f.TempPayloadC))
	buf = append(buf, byte(f.RSSILast), f.PacketsRX24h, f.PacketsTX24h, f.LinkMarginDB)
	buf = append(buf, byte(f.CRC16), byte(f.CRC16>>8))
	return buf
}

// TransmitNow builds and "transmits" a health frame, incrementing the
// transmission counter. Hand-off to the radio driver is left to the
// comms layer; this only tracks what would have gone out.
func (s *Service) TransmitNow(uptimeMs uint32) {
	s.BuildFrame(uptimeMs)
	s.mu.Lock()
	s.txCount++
	s.mu.Unlock()
}

// TransmitEmergency builds and "transmits" a high-priority emergency
// frame for the given code bitmask.
func (s *Service) TransmitEmergency(code uint8, uptimeMs uint32) Emergency {
	s.mu.Lock()
	callsign := s.callsign
	seq := uint8(s.sequence & 0xFF)
	s.sequence++
	s.mu.Unlock()

	e := Emergency{
		Callsign:      callsign,
		EmergencyCode: code,
		Sequence:      seq,
		Timestamp:     uptimeMs / 1000,
	}
	body := make([]byte, 0, EmergencySize-2)
	body = append(body, e.Callsign[:]...)
	body = append(body, e.EmergencyCode, e.Sequence)
	body = append(body, byte(e.Timestamp), byte(e.Timestamp>>8), byte(e.Timestamp>>16), byte(e.Timestamp>>24))
	e.CRC16 = ccsds.CalcCRC(body)

	s.mu.Lock()
	s.txCount++
	s.mu.Unlock()
	return e
}
