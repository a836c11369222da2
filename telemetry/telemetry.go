// Package telemetry implements housekeeping packetization and a
// priority-preempting downlink queue: a fixed-capacity table of
// periodic telemetry definitions feeding a bounded queue that, once
// full, only accepts a new high/critical-priority packet by evicting an
// existing lower-priority one.
package telemetry

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/TheusHen/OpenFSW/ccsds"
	"github.com/TheusHen/OpenFSW/status"
	"github.com/TheusHen/OpenFSW/timeservice"
)

// Type identifies the category of a telemetry definition.
type Type int

const (
	TypeHousekeeping Type = iota
	TypeEvent
	TypeScience
	TypeDiagnostic
)

// Priority orders packets within the downlink queue. Higher values win
// both the eviction check and the dequeue comparison.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// Limits matching the fixed-capacity tables of the onboard implementation.
const (
	MaxDefinitions    = 32
	QueueSize         = 16
	HKDefaultPeriod   = time.Second
	HKCommsPeriod     = 5 * time.Second
)

// Standard housekeeping packet IDs.
const (
	PacketIDSystemHK = 1
	PacketIDPowerHK  = 2
	PacketIDADCSHK   = 3
	PacketIDCommsHK  = 4
)

// GeneratorFunc produces the payload bytes for a housekeeping packet.
// Returning a zero-length slice skips this cycle, matching the
// original's "len > 0" gate before queuing.
type GeneratorFunc func() []byte

// Definition describes one registered telemetry packet.
type Definition struct {
	PacketID  uint16
	APID      ccsds.APID
	Type      Type
	Priority  Priority
	Period    time.Duration
	LastSent  time.Duration
	Enabled   bool
	Generator GeneratorFunc
}

type queueEntry struct {
	packet   ccsds.TMPacket
	priority Priority
	valid    bool
}

// Service is the telemetry packetization and downlink-queue engine.
type Service struct {
	mu          sync.Mutex
	definitions []Definition
	queue       [QueueSize]queueEntry
	queueTail   int
	queueCount  int
	seq         *ccsds.SequenceCounter

	packetsGenerated uint32
	packetsQueued    uint32
	packetsSent      uint32
	queueOverflows   uint32
}

// NewService constructs a Service with the four standard housekeeping
// definitions registered (system, power, ADCS, comms), all enabled and
// without a generator attached — callers wire one in with SetGenerator
// once the producing subsystem (eps, health, adcs) is available.
func NewService(seq *ccsds.SequenceCounter) *Service {
	s := &Service{seq: seq}
	s.definitions = []Definition{
		{PacketID: PacketIDSystemHK, APID: ccsds.APIDSystem, Type: TypeHousekeeping, Priority: PriorityNormal, Period: HKDefaultPeriod, Enabled: true},
		{PacketID: PacketIDPowerHK, APID: ccsds.APIDPower, Type: TypeHousekeeping, Priority: PriorityNormal, Period: HKDefaultPeriod, Enabled: true},
		{PacketID: PacketIDADCSHK, APID: ccsds.APIDADCS, Type: TypeHousekeeping, Priority: PriorityNormal, Period: HKDefaultPeriod, Enabled: true},
		{PacketID: PacketIDCommsHK, APID: ccsds.APIDComms, Type: TypeHousekeeping, Priority: PriorityNormal, Period: HKCommsPeriod, Enabled: true},
	}
	return s
}

func (s *Service) findDefinition(packetID uint16) int {
	for i := range s.definitions {
		if s.definitions[i].PacketID == packetID {
			return i
		}
	}
	return -1
}

// Register adds a new telemetry definition. Returns status.ErrDefinitionTableFull
// once MaxDefinitions is reached, or a Busy-classified error on a
// duplicate packet id.
func (s *Service) Register(def Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.definitions) >= MaxDefinitions {
		return status.ErrDefinitionTableFull
	}
	if s.findDefinition(def.PacketID) >= 0 {
		return status.New(status.Busy, "telemetry", "register", "packet id already registered")
	}
	s.definitions = append(s.definitions, def)
	return nil
}

// SetGenerator attaches fn as the generator for an existing definition.
func (s *Service) SetGenerator(packetID uint16, fn GeneratorFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findDefinition(packetID)
	if idx < 0 {
		return status.ErrDefinitionNotFound
	}
	s.definitions[idx].Generator = fn
	return nil
}

// Enable turns on periodic generation for packetID.
func (s *Service) Enable(packetID uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findDefinition(packetID)
	if idx < 0 {
		return status.ErrDefinitionNotFound
	}
	s.definitions[idx].Enabled = true
	return nil
}

// Disable turns off periodic generation for packetID.
func (s *Service) Disable(packetID uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findDefinition(packetID)
	if idx < 0 {
		return status.ErrDefinitionNotFound
	}
	s.definitions[idx].Enabled = false
	return nil
}

// SetPeriod changes a definition's generation period. Rejects anything
// under 100ms with status.InvalidParam.
func (s *Service) SetPeriod(packetID uint16, period time.Duration) error {
	if period < 100*time.Millisecond {
		return status.New(status.InvalidParam, "telemetry", "set_period", "period below 100ms minimum")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findDefinition(packetID)
	if idx < 0 {
		return status.ErrDefinitionNotFound
	}
	s.definitions[idx].Period = period
	return nil
}

// QueueCount returns the number of packets currently queued for downlink.
func (s *Service) QueueCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queueCount
}

// QueuePacket adds pkt to the downlink queue at priority. If the queue
// is full, a high-or-above priority packet may evict the first
// strictly-lower-priority entry it finds; if none exists (or priority is
// not high enough to evict), status.ErrQueueFull is returned.
func (s *Service) QueuePacket(pkt ccsds.TMPacket, priority Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queueCount >= QueueSize {
		if priority >= PriorityHigh {
			for i := range s.queue {
				if s.queue[i].valid && s.queue[i].priority < priority {
					s.queue[i].valid = false
					s.queueCount--
					break
				}
			}
		}
		if s.queueCount >= QueueSize {
			s.queueOverflows++
			return status.ErrQueueFull
		}
	}

	// Take the first free slot from the tail on; after an eviction that
	// is the evicted entry's slot.
	slot := s.queueTail
	for s.queue[slot].valid {
		slot = (slot + 1) % QueueSize
	}
	s.queue[slot] = queueEntry{packet: pkt, priority: priority, valid: true}
	s.queueTail = (slot + 1) % QueueSize
	s.queueCount++
	s.packetsQueued++
	return nil
}

// DequeuePacket removes and returns the highest-priority queued packet.
// Among equal priorities, the entry found latest in slot order wins,
// matching the >= comparison the scan is built on.
func (s *Service) DequeuePacket() (ccsds.TMPacket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queueCount == 0 {
		return ccsds.TMPacket{}, status.ErrQueueEmpty
	}

	bestIdx := -1
	bestPriority := PriorityLow
	for i := range s.queue {
		if s.queue[i].valid && s.queue[i].priority >= bestPriority {
			bestPriority = s.queue[i].priority
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return ccsds.TMPacket{}, status.ErrQueueEmpty
	}

	pkt := s.queue[bestIdx].packet
	s.queue[bestIdx].valid = false
	s.queueCount--
	s.packetsSent++
	return pkt, nil
}

// SendEvent packetizes and queues an event telemetry record: a 2-byte
// event id, a 4-byte uptime stamp, then up to ccsds.MaxDataSize-6 bytes
// of event data. Longer data is left out entirely; only the id and the
// stamp are sent.
func (s *Service) SendEvent(eventID uint16, uptime time.Duration, data []byte, ts timeservice.Timestamp) error {
	buf := make([]byte, 6, 6+len(data))
	binary.BigEndian.PutUint16(buf[0:2], eventID)
	binary.BigEndian.PutUint32(buf[2:6], uint32(uptime.Milliseconds()))
	if len(data) > 0 && len(data) <= ccsds.MaxDataSize-6 {
		buf = append(buf, data...)
	}

	pkt, err := ccsds.BuildTMHeader(s.seq, ccsds.APIDSystem, uint8(ccsds.PUSServiceEventReporting), 5, ts)
	if err != nil {
		return err
	}
	if err := pkt.SetData(buf); err != nil {
		return err
	}
	pkt.Finalize()
	return s.QueuePacket(pkt, PriorityHigh)
}

// Periodic scans enabled housekeeping definitions and regenerates/queues
// any whose period has elapsed since last sent, advancing LastSent.
// Definitions with no generator attached are skipped.
func (s *Service) Periodic(uptime time.Duration, ts timeservice.Timestamp) {
	s.mu.Lock()
	type due struct {
		idx int
		def Definition
	}
	var toRun []due
	for i := range s.definitions {
		d := &s.definitions[i]
		if !d.Enabled || d.Type != TypeHousekeeping || d.Generator == nil {
			continue
		}
		if uptime-d.LastSent >= d.Period {
			toRun = append(toRun, due{i, *d})
		}
	}
	s.mu.Unlock()

	for _, r := range toRun {
		data := r.def.Generator()
		if len(data) > 0 {
			pkt, err := ccsds.BuildTMHeader(s.seq, r.def.APID, uint8(ccsds.PUSServiceHousekeeping), 25, ts)
			if err == nil {
				if err := pkt.SetData(data); err == nil {
					pkt.Finalize()
					if s.QueuePacket(pkt, r.def.Priority) == nil {
						s.mu.Lock()
						s.packetsGenerated++
						s.mu.Unlock()
					}
				}
			}
		}
		s.mu.Lock()
		s.definitions[r.idx].LastSent = uptime
		s.mu.Unlock()
	}
}

// Stats returns the service's lifetime counters: packets generated,
// queued, sent downlink, and queue overflows.
func (s *Service) Stats() (generated, queued, sent, overflows uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packetsGenerated, s.packetsQueued, s.packetsSent, s.queueOverflows
}

// SystemHK is the standard system housekeeping record.
type SystemHK struct {
	UptimeS       uint32
	Mode          uint8
	HealthStatus  uint8
	BootCount     uint16
	ResetCause    uint8
	ErrorCount    uint8
	WarningCount  uint8
}

// PackSystemHK encodes a SystemHK record to its wire layout.
func PackSystemHK(hk SystemHK) []byte {
	buf := make([]byte, 10)
	binary.BigEndian.PutUint32(buf[0:4], hk.UptimeS)
	buf[4] = hk.Mode
	buf[5] = hk.HealthStatus
	binary.BigEndian.PutUint16(buf[6:8], hk.BootCount)
	buf[8] = hk.ResetCause
	buf[9] = hk.ErrorCount
	return append(buf, hk.WarningCount, 0)
}

// PowerHK is the standard power housekeeping record.
type PowerHK struct {
	BatteryVoltageMV uint16
	BatteryCurrentMA int16
	BatterySOC       uint8
	BatteryTempC     int8
	SolarPowerMW     uint16
	RailStatus       uint8
	LowPowerFlag     uint8
}

// PackPowerHK encodes a PowerHK record to its wire layout.
func PackPowerHK(hk PowerHK) []byte {
	buf := make([]byte, 10)
	binary.BigEndian.PutUint16(buf[0:2], hk.BatteryVoltageMV)
	binary.BigEndian.PutUint16(buf[2:4], uint16(hk.BatteryCurrentMA))
	buf[4] = hk.BatterySOC
	buf[5] = byte(hk.BatteryTempC)
	binary.BigEndian.PutUint16(buf[6:8], hk.SolarPowerMW)
	buf[8] = hk.RailStatus
	buf[9] = hk.LowPowerFlag
	return buf
}

// ADCSHK is the standard attitude-determination housekeeping record.
type ADCSHK struct {
	QuaternionW, QuaternionX, QuaternionY, QuaternionZ int16
	RateX, RateY, RateZ                                int16
	Mode, Status                                       uint8
	ErrorAngle                                          int16
}

// PackADCSHK encodes an ADCSHK record to its wire layout.
func PackADCSHK(hk ADCSHK) []byte {
	buf := make([]byte, 18)
	binary.BigEndian.PutUint16(buf[0:2], uint16(hk.QuaternionW))
	binary.BigEndian.PutUint16(buf[2:4], uint16(hk.QuaternionX))
	binary.BigEndian.PutUint16(buf[4:6], uint16(hk.QuaternionY))
	binary.BigEndian.PutUint16(buf[6:8], uint16(hk.QuaternionZ))
	binary.BigEndian.PutUint16(buf[8:10], uint16(hk.RateX))
	binary.BigEndian.PutUint16(buf[10:12], uint16(hk.RateY))
	binary.BigEndian.PutUint16(buf[12:14], uint16(hk.RateZ))
	buf[14] = hk.Mode
	buf[15] = hk.Status
	binary.BigEndian.PutUint16(buf[16:18], uint16(hk.ErrorAngle))
	return buf
}

// CommsHK is the standard comms housekeeping record.
type CommsHK struct {
	RXPackets, TXPackets uint8
	RSSI                 int8
	SNR                  uint8
	CRCErrors            uint8
	Status               uint8
}

// PackCommsHK encodes a CommsHK record to its wire layout.
func PackCommsHK(hk CommsHK) []byte {
	return []byte{hk.RXPackets, hk.TXPackets, byte(hk.RSSI), hk.SNR, hk.CRCErrors, hk.Status}
}
