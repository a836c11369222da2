// Package ccsds implements the CCSDS Space Packet Protocol framing used
// for every uplink/downlink packet: a 6-byte primary header, a 10-byte
// PUS (ECSS-E-ST-70-41C) secondary header, a CRC-16/CCITT trailer, and
// per-APID sequence counting.
package ccsds

import (
	"sync"

	"github.com/TheusHen/OpenFSW/status"
	"github.com/TheusHen/OpenFSW/timeservice"
)

// Packet version number. CCSDS only defines version 0 to date.
const Version = 0

// Packet type bit.
const (
	TypeTM = 0
	TypeTC = 1
)

// Secondary header flag.
const (
	SecHdrAbsent  = 0
	SecHdrPresent = 1
)

// Sequence flags.
const (
	SeqContinuation = 0
	SeqFirst        = 1
	SeqLast         = 2
	SeqStandalone   = 3
)

// Size constants.
const (
	MaxPacketSize  = 4096
	PrimaryHdrSize = 6
	SecHdrSize     = 10
	// MaxDataSize is the largest telemetry/telecommand payload a packet
	// can carry, after the primary header, secondary header and CRC.
	MaxDataSize = MaxPacketSize - PrimaryHdrSize - SecHdrSize - 2
)

// APID identifies the application process that originated or is
// addressed by a packet.
type APID uint16

const (
	APIDIdle APID = iota
	APIDSystem
	APIDHealth
	APIDPower
	APIDADCS
	APIDComms
	APIDPayload
	APIDTime
	APIDFDIR
	APIDFile
)

// APIDMax is the largest valid 11-bit APID value.
const APIDMax = 2047

// PUSService enumerates the ECSS-E-ST-70-41C service types in use.
type PUSService uint8

const (
	PUSServiceRequestVerification PUSService = 1
	PUSServiceDeviceAccess        PUSService = 2
	PUSServiceHousekeeping        PUSService = 3
	PUSServiceParameterStats      PUSService = 4
	PUSServiceEventReporting      PUSService = 5
	PUSServiceMemoryMgmt          PUSService = 6
	PUSServiceFunctionMgmt        PUSService = 8
	PUSServiceTimeMgmt            PUSService = 9
	PUSServiceScheduling          PUSService = 11
	PUSServiceOnboardMonitor      PUSService = 12
	PUSServiceLargeData           PUSService = 13
	PUSServicePacketFwd           PUSService = 14
	PUSServiceStorageRetrieval    PUSService = 15
	PUSServiceTest                PUSService = 17
	PUSServiceOnboardCtrl         PUSService = 18
	PUSServiceEventAction         PUSService = 19
)

// PUS request-verification subtypes (service 1 acknowledgments).
const (
	PUSSubtypeAcceptSuccess  = 1
	PUSSubtypeAcceptFailure  = 2
	PUSSubtypeExecSuccess    = 7
	PUSSubtypeExecFailure    = 8
)

// PUSSubtypeCommandResponse is the TM subtype carrying a handler's
// response payload, downlinked under the same service type as the
// triggering command. 130 sits in the application-specific range
// ECSS-E-ST-70-41C reserves above the standard request-verification
// subtypes, so it can't collide with a future standard subtype in any
// service.
const PUSSubtypeCommandResponse = 130

// PrimaryHeader is the 6-byte CCSDS primary header.
type PrimaryHeader struct {
	PacketID     uint16 // version(3) | type(1) | sec-hdr(1) | APID(11)
	SequenceCtrl uint16 // seq flags(2) | seq count(14)
	PacketLength uint16 // data length - 1
}

// TMSecondaryHeader is the 10-byte PUS secondary header carried by
// telemetry packets.
type TMSecondaryHeader struct {
	CoarseTime     uint32
	FineTime       uint16
	ServiceType    uint8
	ServiceSubtype uint8
	DestinationID  uint8
	Spare          uint8
}

// TCSecondaryHeader is the 10-byte PUS secondary header carried by
// telecommand packets.
type TCSecondaryHeader struct {
	ServiceType    uint8
	ServiceSubtype uint8
	SourceID       uint8
	Spare          uint8
	ScheduledTime  uint32
	AckFlags       uint16
}

// TMPacket is a complete telemetry packet.
type TMPacket struct {
	Primary   PrimaryHeader
	Secondary TMSecondaryHeader
	Data      []byte
	CRC       uint16
}

// TCPacket is a complete telecommand packet.
type TCPacket struct {
	Primary   PrimaryHeader
	Secondary TCSecondaryHeader
	Data      []byte
	CRC       uint16
}

// crcTable is the CRC-16/CCITT lookup table (polynomial 0x1021).
var crcTable = [256]uint16{
	0x0000, 0x1021, 0x2042, 0x3063, 0x4084, 0x50A5, 0x60C6, 0x70E7,
	0x8108, 0x9129, 0xA14A, 0xB16B, 0xC18C, 0xD1AD, 0xE1CE, 0xF1EF,
	0x1231, 0x0210, 0x3273, 0x2252, 0x52B5, 0x4294, 0x72F7, 0x62D6,
	0x9339, 0x8318, 0xB37B, 0xA35A, 0xD3BD, 0xC39C, 0xF3FF, 0xE3DE,
	0x2462, 0x3443, 0x0420, 0x1401, 0x64E6, 0x74C7, 0x44A4, 0x5485,
	0xA56A, 0xB54B, 0x8528, 0x9509, 0xE5EE, 0xF5CF, 0xC5AC, 0xD58D,
	0x3653, 0x2672, 0x1611, 0x0630, 0x76D7, 0x66F6, 0x5695, 0x46B4,
	0xB75B, 0xA77A, 0x9719, 0x8738, 0xF7DF, 0xE7FE, 0xD79D, 0xC7BC,
	0x48C4, 0x58E5, 0x6886, 0x78A7, 0x0840, 0x1861, 0x2802, 0x3823,
	0xC9CC, 0xD9ED, 0xE98E, 0xF9AF, 0x8948, 0x9969, 0xA90A, 0xB92B,
	0x5AF5, 0x4AD4, 0x7AB7, 0x6A96, 0x1A71, 0x0A50, 0x3A33, 0x2A12,
	0xDBFD, 0xCBDC, 0xFBBF, 0xEB9E, 0x9B79, 0x8B58, 0xBB3B, 0xAB1A,
	0x6CA6, 0x7C87, 0x4CE4, 0x5CC5, 0x2C22, 0x3C03, 0x0C60, 0x1C41,
	0xEDAE, 0xFD8F, 0xCDEC, 0xDDCD, 0xAD2A, 0xBD0B, 0x8D68, 0x9D49,
	0x7E97, 0x6EB6, 0x5ED5, 0x4EF4, 0x3E13, 0x2E32, 0x1E51, 0x0E70,
	0xFF9F, 0xEFBE, 0xDFDD, 0xCFFC, 0xBF1B, 0xAF3A, 0x9F59, 0x8F78,
	0x9188, 0x81A9, 0xB1CA, 0xA1EB, 0xD10C, 0xC12D, 0xF14E, 0xE16F,
	0x1080, 0x00A1, 0x30C2, 0x20E3, 0x5004, 0x4025, 0x7046, 0x6067,
	0x83B9, 0x9398, 0xA3FB, 0xB3DA, 0xC33D, 0xD31C, 0xE37F, 0xF35E,
	0x02B1, 0x1290, 0x22F3, 0x32D2, 0x4235, 0x5214, 0x6277, 0x7256,
	0xB5EA, 0xA5CB, 0x95A8, 0x8589, 0xF56E, 0xE54F, 0xD52C, 0xC50D,
	0x34E2, 0x24C3, 0x14A0, 0x0481, 0x7466, 0x6447, 0x5424, 0x4405,
	0xA7DB, 0xB7FA, 0x8799, 0x97B8, 0xE75F, 0xF77E, 0xC71D, 0xD73C,
	0x26D3, 0x36F2, 0x0691, 0x16B0, 0x6657, 0x7676, 0x4615, 0x5634,
	0xD94C, 0xC96D, 0xF90E, 0xE92F, 0x99C8, 0x89E9, 0xB98A, 0xA9AB,
	0x5844, 0x4865, 0x7806, 0x6827, 0x18C0, 0x08E1, 0x3882, 0x28A3,
	0xCB7D, 0xDB5C, 0xEB3F, 0xFB1E, 0x8BF9, 0x9BD8, 0xABBB, 0xBB9A,
	0x4A75, 0x5A54, 0x6A37, 0x7A16, 0x0AF1, 0x1AD0, 0x2AB3, 0x3A92,
	0xFD2E, 0xED0F, 0xDD6C, 0xCD4D, 0xBDAA, 0xAD8B, 0x9DE8, 0x8DC9,
	0x7C26, 0x6C07, 0x5C64, 0x4C45, 0x3CA2, 0x2C83, 0x1CE0, 0x0CC1,
	0xEF1F, 0xFF3E, 0xCF5D, 0xDF7C, 0xAF9B, 0xBFBA, 0x8FD9, 0x9FF8,
	0x6E17, 0x7E36, 0x4E55, 0x5E74, 0x2E93, 0x3EB2, 0x0ED1, 0x1EF0,
}

// CalcCRC computes the CRC-16/CCITT over data, seeded at 0xFFFF.
func CalcCRC(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = (crc << 8) ^ crcTable[((crc>>8)^uint16(b))&0xFF]
	}
	return crc
}

// SequenceCounter hands out monotonically increasing, 14-bit wrapping
// sequence counts per APID.
type SequenceCounter struct {
	mu     sync.Mutex
	counts map[APID]uint16
}

// NewSequenceCounter constructs an empty per-APID sequence counter.
func NewSequenceCounter() *SequenceCounter {
	return &SequenceCounter{counts: make(map[APID]uint16)}
}

// Next returns apid's current sequence count and advances it, wrapping
// at 14 bits. Returns status.ErrPacketTooShort-unrelated InvalidParam if
// apid exceeds APIDMax.
func (c *SequenceCounter) Next(apid APID) (uint16, error) {
	if apid > APIDMax {
		return 0, status.New(status.InvalidParam, "ccsds", "next_sequence", "apid exceeds APIDMax")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.counts[apid]
	c.counts[apid] = (seq + 1) & 0x3FFF
	return seq, nil
}

// GetAPID extracts the 11-bit APID field from a primary header.
func GetAPID(hdr PrimaryHeader) APID {
	return APID(hdr.PacketID & 0x07FF)
}

// GetSequence extracts the 14-bit sequence count from a primary header.
func GetSequence(hdr PrimaryHeader) uint16 {
	return hdr.SequenceCtrl & 0x3FFF
}

// BuildTMHeader constructs a standalone telemetry packet header stamped
// with ts and the next sequence count for apid.
func BuildTMHeader(seq *SequenceCounter, apid APID, serviceType, serviceSubtype uint8, ts timeservice.Timestamp) (TMPacket, error) {
	n, err := seq.Next(apid)
	if err != nil {
		return TMPacket{}, err
	}
	return TMPacket{
		Primary: PrimaryHeader{
			PacketID:     uint16(Version<<13) | uint16(TypeTM<<12) | uint16(SecHdrPresent<<11) | uint16(apid&0x07FF),
			SequenceCtrl: uint16(SeqStandalone<<14) | n,
		},
		Secondary: TMSecondaryHeader{
			CoarseTime:     ts.Seconds,
			FineTime:       uint16(ts.Subseconds & 0xFFFF),
			ServiceType:    serviceType,
			ServiceSubtype: serviceSubtype,
		},
	}, nil
}

// BuildTCHeader constructs a standalone telecommand packet header. Unlike
// telemetry, telecommand sequence counts are assigned by the ground
// station, so the sequence count field is left at zero.
func BuildTCHeader(apid APID, serviceType, serviceSubtype uint8) TCPacket {
	return TCPacket{
		Primary: PrimaryHeader{
			PacketID:     uint16(Version<<13) | uint16(TypeTC<<12) | uint16(SecHdrPresent<<11) | uint16(apid&0x07FF),
			SequenceCtrl: uint16(SeqStandalone << 14),
		},
		Secondary: TCSecondaryHeader{
			ServiceType:    serviceType,
			ServiceSubtype: serviceSubtype,
		},
	}
}

// SetData attaches the telemetry payload, rejecting payloads larger than
// MaxDataSize.
func (p *TMPacket) SetData(data []byte) error {
	if len(data) > MaxDataSize {
		return status.New(status.Overflow, "ccsds", "tm_set_data", "payload exceeds MaxDataSize")
	}
	p.Data = append([]byte(nil), data...)
	return nil
}

// Finalize computes the packet length field and the CRC over the entire
// packet (primary header, secondary header, data) except the CRC field
// itself. Call this immediately before Serialize.
func (p *TMPacket) Finalize() {
	p.Primary.PacketLength = uint16(SecHdrSize + len(p.Data) + 2 - 1)
	p.CRC = CalcCRC(p.bodyBytes())
}

func (p *TMPacket) bodyBytes() []byte {
	buf := make([]byte, 0, PrimaryHdrSize+SecHdrSize+len(p.Data))
	buf = appendPrimary(buf, p.Primary)
	buf = appendTMSecondary(buf, p.Secondary)
	buf = append(buf, p.Data...)
	return buf
}

// TotalLength returns the number of bytes Serialize will produce.
func (p *TMPacket) TotalLength() int {
	return PrimaryHdrSize + SecHdrSize + len(p.Data) + 2
}

// Serialize writes the wire representation of p into buf, returning the
// number of bytes written. Returns status.ErrPacketTooLong if buf is
// smaller than TotalLength().
func (p *TMPacket) Serialize(buf []byte) (int, error) {
	total := p.TotalLength()
	if len(buf) < total {
		return 0, status.ErrPacketTooLong
	}
	body := p.bodyBytes()
	n := copy(buf, body)
	buf[n] = byte(p.CRC >> 8)
	buf[n+1] = byte(p.CRC)
	return n + 2, nil
}

// SetData attaches the telecommand payload, rejecting payloads larger
// than MaxDataSize.
func (p *TCPacket) SetData(data []byte) error {
	if len(data) > MaxDataSize {
		return status.New(status.Overflow, "ccsds", "tc_set_data", "payload exceeds MaxDataSize")
	}
	p.Data = append([]byte(nil), data...)
	return nil
}

// Finalize computes the packet length field and the CRC over the entire
// packet (primary header, secondary header, data) except the CRC field
// itself. Call this immediately before Serialize or before handing the
// packet to a dispatcher that re-validates the CRC.
func (p *TCPacket) Finalize() {
	p.Primary.PacketLength = uint16(SecHdrSize + len(p.Data) + 2 - 1)
	p.CRC = CalcCRC(p.bodyBytes())
}

func (p *TCPacket) bodyBytes() []byte {
	buf := make([]byte, 0, PrimaryHdrSize+SecHdrSize+len(p.Data))
	buf = appendPrimary(buf, p.Primary)
	buf = appendTCSecondary(buf, p.Secondary)
	buf = append(buf, p.Data...)
	return buf
}

// TotalLength returns the number of bytes Serialize will produce.
func (p *TCPacket) TotalLength() int {
	return PrimaryHdrSize + SecHdrSize + len(p.Data) + 2
}

// Serialize writes the wire representation of p into buf, returning the
// number of bytes written. Returns status.ErrPacketTooLong if buf is
// smaller than TotalLength().
func (p *TCPacket) Serialize(buf []byte) (int, error) {
	total := p.TotalLength()
	if len(buf) < total {
		return 0, status.ErrPacketTooLong
	}
	body := p.bodyBytes()
	n := copy(buf, body)
	buf[n] = byte(p.CRC >> 8)
	buf[n+1] = byte(p.CRC)
	return n + 2, nil
}

func appendPrimary(buf []byte, h PrimaryHeader) []byte {
	return append(buf,
		byte(h.PacketID>>8), byte(h.PacketID),
		byte(h.SequenceCtrl>>8), byte(h.SequenceCtrl),
		byte(h.PacketLength>>8), byte(h.PacketLength),
	)
}

func appendTMSecondary(buf []byte, s TMSecondaryHeader) []byte {
	return append(buf,
		byte(s.CoarseTime>>24), byte(s.CoarseTime>>16), byte(s.CoarseTime>>8), byte(s.CoarseTime),
		byte(s.FineTime>>8), byte(s.FineTime),
		s.ServiceType, s.ServiceSubtype, s.DestinationID, s.Spare,
	)
}

func appendTCSecondary(buf []byte, s TCSecondaryHeader) []byte {
	return append(buf,
		s.ServiceType, s.ServiceSubtype, s.SourceID, s.Spare,
		byte(s.ScheduledTime>>24), byte(s.ScheduledTime>>16), byte(s.ScheduledTime>>8), byte(s.ScheduledTime),
		byte(s.AckFlags>>8), byte(s.AckFlags),
	)
}

// ParseTC decodes a raw telecommand packet from the wire. Returns
// status.ErrPacketTooShort if raw is shorter than a complete header plus
// CRC, or status.ErrPacketTooLong if the declared data length would
// overflow MaxDataSize.
func ParseTC(raw []byte) (TCPacket, error) {
	if len(raw) < PrimaryHdrSize+SecHdrSize+2 {
		return TCPacket{}, status.ErrPacketTooShort
	}

	var pkt TCPacket
	off := 0
	pkt.Primary.PacketID = uint16(raw[off])<<8 | uint16(raw[off+1])
	off += 2
	pkt.Primary.SequenceCtrl = uint16(raw[off])<<8 | uint16(raw[off+1])
	off += 2
	pkt.Primary.PacketLength = uint16(raw[off])<<8 | uint16(raw[off+1])
	off += 2

	pkt.Secondary.ServiceType = raw[off]
	off++
	pkt.Secondary.ServiceSubtype = raw[off]
	off++
	pkt.Secondary.SourceID = raw[off]
	off++
	pkt.Secondary.Spare = raw[off]
	off++
	pkt.Secondary.ScheduledTime = uint32(raw[off])<<24 | uint32(raw[off+1])<<16 | uint32(raw[off+2])<<8 | uint32(raw[off+3])
	off += 4
	pkt.Secondary.AckFlags = uint16(raw[off])<<8 | uint16(raw[off+1])
	off += 2

	dataLen := int(pkt.Primary.PacketLength) + 1 - SecHdrSize - 2
	if dataLen < 0 || dataLen > MaxDataSize {
		return TCPacket{}, status.ErrPacketTooLong
	}
	if off+dataLen+2 > len(raw) {
		return TCPacket{}, status.ErrPacketTooShort
	}

	pkt.Data = append([]byte(nil), raw[off:off+dataLen]...)
	off += dataLen

	pkt.CRC = uint16(raw[off])<<8 | uint16(raw[off+1])
	return pkt, nil
}

// ValidateTC checks a parsed telecommand's version, type bit and CRC.
func ValidateTC(pkt *TCPacket) bool {
	if (pkt.Primary.PacketID >> 13) != Version {
		return false
	}
	if (pkt.Primary.PacketID>>12)&0x01 != TypeTC {
		return false
	}

	buf := make([]byte, 0, PrimaryHdrSize+SecHdrSize+len(pkt.Data))
	buf = appendPrimary(buf, pkt.Primary)
	buf = appendTCSecondary(buf, pkt.Secondary)
	buf = append(buf, pkt.Data...)

	return CalcCRC(buf) == pkt.CRC
}

// IsTelecommand reports whether the packet type bit in hdr identifies a
// telecommand, returning status.ErrNotATelecommand if not.
func IsTelecommand(hdr PrimaryHeader) error {
	if (hdr.PacketID>>12)&0x01 != TypeTC {
		return status.ErrNotATelecommand
	}
	return nil
}
