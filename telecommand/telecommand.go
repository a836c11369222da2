// Package telecommand implements command registration and dispatch: a
// fixed-capacity handler table keyed by PUS service/subtype, mode-aware
// authorization with a safe-mode allow list, a circular command history,
// and PUS request-verification acknowledgments sent back through the
// telemetry downlink queue.
package telecommand

import (
	"sync"
	"time"

	"github.com/TheusHen/OpenFSW/ccsds"
	"github.com/TheusHen/OpenFSW/mode"
	"github.com/TheusHen/OpenFSW/status"
	"github.com/TheusHen/OpenFSW/telemetry"
	"github.com/TheusHen/OpenFSW/timeservice"
	"github.com/TheusHen/OpenFSW/types"
)

// AuthLevel orders the authorization a command requires.
type AuthLevel int

const (
	AuthNone AuthLevel = iota
	AuthBasic
	AuthElevated
	AuthCritical
)

// Status is the outcome of processing a command.
type Status int

const (
	StatusAccepted Status = iota
	StatusRejectedAuth
	StatusRejectedInvalid
	StatusRejectedBusy
	StatusExecuted
	StatusFailed
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "ACCEPTED"
	case StatusRejectedAuth:
		return "REJECTED_AUTH"
	case StatusRejectedInvalid:
		return "REJECTED_INVALID"
	case StatusRejectedBusy:
		return "REJECTED_BUSY"
	case StatusExecuted:
		return "EXECUTED"
	case StatusFailed:
		return "FAILED"
	case StatusTimeout:
		return "TIMEOUT"
	default:
		return "INVALID"
	}
}

// HandlerFunc executes a command's payload and returns a response
// payload (possibly empty) plus the outcome status.
type HandlerFunc func(data []byte) ([]byte, Status)

// Definition registers one command handler.
type Definition struct {
	ServiceType    uint8
	ServiceSubtype uint8
	AuthLevel      AuthLevel
	Handler        HandlerFunc
	Name           string
	Timeout        time.Duration
}

// Record is a circular command-history entry.
type Record struct {
	Sequence       uint16
	ServiceType    uint8
	ServiceSubtype uint8
	Timestamp      time.Duration
	Status         Status
}

// Fixed-capacity table sizes.
const (
	MaxHandlers  = 64
	HistorySize  = 16
	SafeListSize = 16
)

type safeEntry struct {
	serviceType, serviceSubtype uint8
}

// Dispatcher is the command registration, validation, authorization and
// execution engine.
type Dispatcher struct {
	mu sync.Mutex

	handlers []Definition
	history  [HistorySize]Record
	historyIdx int

	authKey    []byte
	authKeySet bool

	safeList []safeEntry

	acceptedCount uint32
	rejectedCount uint32
	executedCount uint32

	mode *mode.Manager
	time *timeservice.Service
	tm   *telemetry.Service
	seq  *ccsds.SequenceCounter

	uptime func() time.Duration
}

// New constructs a Dispatcher wired to m (for mode-aware authorization
// and handling mode-change commands), ts (for time-sync commands), tm
// (to queue acknowledgments downlink) and seq (to stamp acknowledgment
// packets). uptimeFn supplies the monotonic uptime used for history
// timestamps and acknowledgment payloads.
//
// The seven standard command handlers (ping, connection test, mode
// change, reset, enable/disable HK, time sync) are registered
// immediately, along with the safe-mode allow list entries every
// always-executable command needs.
func New(m *mode.Manager, ts *timeservice.Service, tm *telemetry.Service, seq *ccsds.SequenceCounter, uptimeFn func() time.Duration) *Dispatcher {
	d := &Dispatcher{mode: m, time: ts, tm: tm, seq: seq, uptime: uptimeFn}

	d.Register(Definition{ServiceType: uint8(ccsds.PUSServiceTest), ServiceSubtype: 1, AuthLevel: AuthNone, Handler: handlerPing, Name: "Ping", Timeout: time.Second})
	d.Register(Definition{ServiceType: uint8(ccsds.PUSServiceTest), ServiceSubtype: 2, AuthLevel: AuthNone, Handler: handlerConnectionTest, Name: "Connection Test", Timeout: 5 * time.Second})
	d.Register(Definition{ServiceType: uint8(ccsds.PUSServiceFunctionMgmt), ServiceSubtype: 1, AuthLevel: AuthElevated, Handler: d.handlerModeChange, Name: "Mode Change", Timeout: 5 * time.Second})
	d.Register(Definition{ServiceType: uint8(ccsds.PUSServiceFunctionMgmt), ServiceSubtype: 4, AuthLevel: AuthCritical, Handler: handlerReset, Name: "System Reset", Timeout: 10 * time.Second})
	d.Register(Definition{ServiceType: uint8(ccsds.PUSServiceHousekeeping), ServiceSubtype: 5, AuthLevel: AuthBasic, Handler: d.handlerEnableHK, Name: "Enable HK", Timeout: time.Second})
	d.Register(Definition{ServiceType: uint8(ccsds.PUSServiceHousekeeping), ServiceSubtype: 6, AuthLevel: AuthBasic, Handler: d.handlerDisableHK, Name: "Disable HK", Timeout: time.Second})
	d.Register(Definition{ServiceType: uint8(ccsds.PUSServiceTimeMgmt), ServiceSubtype: 1, AuthLevel: AuthElevated, Handler: d.handlerTimeSync, Name: "Time Sync", Timeout: 2 * time.Second})

	d.AddToSafeList(uint8(ccsds.PUSServiceTest), 1)
	d.AddToSafeList(uint8(ccsds.PUSServiceTest), 2)
	d.AddToSafeList(uint8(ccsds.PUSServiceHousekeeping), 5)
	d.AddToSafeList(uint8(ccsds.PUSServiceHousekeeping), 6)

	return d
}

func (d *Dispatcher) findHandler(serviceType, serviceSubtype uint8) *Definition {
	for i := range d.handlers {
		if d.handlers[i].ServiceType == serviceType && d.handlers[i].ServiceSubtype == serviceSubtype {
			return &d.handlers[i]
		}
	}
	return nil
}

func (d *Dispatcher) recordCommand(pkt *ccsds.TCPacket, st Status) {
	d.history[d.historyIdx] = Record{
		Sequence:       ccsds.GetSequence(pkt.Primary),
		ServiceType:    pkt.Secondary.ServiceType,
		ServiceSubtype: pkt.Secondary.ServiceSubtype,
		Timestamp:      d.uptime(),
		Status:         st,
	}
	d.historyIdx = (d.historyIdx + 1) % HistorySize
}

// Register adds def to the handler table. Returns status.ErrHandlerTableFull
// once MaxHandlers is reached, or a Busy-classified error on a duplicate
// service/subtype pair.
func (d *Dispatcher) Register(def Definition) error {
	if def.Handler == nil {
		return status.New(status.InvalidParam, "telecommand", "register", "handler must not be nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.handlers) >= MaxHandlers {
		return status.ErrHandlerTableFull
	}
	if d.findHandler(def.ServiceType, def.ServiceSubtype) != nil {
		return status.New(status.Busy, "telecommand", "register", "service/subtype already registered")
	}
	d.handlers = append(d.handlers, def)
	return nil
}

// Validate reports whether pkt's CRC is valid and a handler is
// registered for its service/subtype.
func (d *Dispatcher) Validate(pkt *ccsds.TCPacket) bool {
	if !ccsds.ValidateTC(pkt) {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.findHandler(pkt.Secondary.ServiceType, pkt.Secondary.ServiceSubtype) != nil
}

// Authorize reports whether pkt may run a command that requires level
// required: always true for AuthNone, gated by the safe-mode allow list
// while the system is in SAFE mode, and gated by the authentication key
// (once VerifyAuth is meaningfully implemented) for AuthElevated and above.
func (d *Dispatcher) Authorize(pkt *ccsds.TCPacket, required AuthLevel) bool {
	if required == AuthNone {
		return true
	}

	if d.mode != nil && d.mode.Current() == types.ModeSafe {
		if !d.IsSafe(pkt.Secondary.ServiceType, pkt.Secondary.ServiceSubtype) {
			return false
		}
	}

	d.mu.Lock()
	keySet := d.authKeySet
	d.mu.Unlock()
	if keySet && required >= AuthElevated {
		return d.VerifyAuth(pkt)
	}
	return true
}

// Process validates, authorizes, acknowledges and finally executes pkt,
// recording the outcome in the command history and returning the final
// Status. Acknowledgments are sent twice: once at StatusAccepted right
// after authorization, and once more with the handler's actual result.
// If the handler returns a non-empty response payload, it is downlinked
// as a third, separate TM packet via SendResponse.
func (d *Dispatcher) Process(pkt *ccsds.TCPacket) Status {
	// Validate and Authorize take d.mu themselves, so it is not held
	// across either call.
	valid := d.Validate(pkt)
	d.mu.Lock()
	if !valid {
		d.rejectedCount++
		d.recordCommand(pkt, StatusRejectedInvalid)
		d.mu.Unlock()
		return StatusRejectedInvalid
	}

	handler := *d.findHandler(pkt.Secondary.ServiceType, pkt.Secondary.ServiceSubtype)
	d.mu.Unlock()

	authorized := d.Authorize(pkt, handler.AuthLevel)
	d.mu.Lock()
	if !authorized {
		d.rejectedCount++
		d.recordCommand(pkt, StatusRejectedAuth)
		d.mu.Unlock()
		return StatusRejectedAuth
	}

	d.acceptedCount++
	seq := ccsds.GetSequence(pkt.Primary)
	d.mu.Unlock()

	d.SendAck(seq, StatusAccepted)

	resp, result := handler.Handler(pkt.Data)
	if len(resp) > 0 {
		d.SendResponse(pkt.Secondary.ServiceType, seq, resp)
	}

	d.mu.Lock()
	if result == StatusExecuted {
		d.executedCount++
	}
	d.recordCommand(pkt, result)
	d.mu.Unlock()

	d.SendAck(seq, result)
	return result
}

// SetAuthKey installs the shared authentication key used by VerifyAuth.
func (d *Dispatcher) SetAuthKey(key []byte) error {
	if len(key) == 0 {
		return status.New(status.InvalidParam, "telecommand", "set_auth_key", "key must not be empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.authKey = append([]byte(nil), key...)
	d.authKeySet = true
	return nil
}

// VerifyAuth checks pkt's authentication. The onboard baseline never
// implemented real cryptographic verification (a TODO in the original
// left it unconditionally permissive); this keeps that behavior rather
// than inventing an auth scheme the original never specified.
func (d *Dispatcher) VerifyAuth(pkt *ccsds.TCPacket) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.authKeySet {
		return true
	}
	// TODO: replace with HMAC verification once the ground segment
	// defines the authentication key exchange.
	return true
}

// AddToSafeList marks service/subtype as always executable in SAFE
// mode. Returns status.ErrSafeListFull once SafeListSize is reached.
func (d *Dispatcher) AddToSafeList(serviceType, serviceSubtype uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.safeList) >= SafeListSize {
		return status.ErrSafeListFull
	}
	d.safeList = append(d.safeList, safeEntry{serviceType, serviceSubtype})
	return nil
}

// IsSafe reports whether service/subtype is on the safe-mode allow list.
func (d *Dispatcher) IsSafe(serviceType, serviceSubtype uint8) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.safeList {
		if e.serviceType == serviceType && e.serviceSubtype == serviceSubtype {
			return true
		}
	}
	return false
}

// AcceptedCount, RejectedCount and ExecutedCount return the dispatcher's
// lifetime counters.
func (d *Dispatcher) AcceptedCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acceptedCount
}

func (d *Dispatcher) RejectedCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rejectedCount
}

func (d *Dispatcher) ExecutedCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.executedCount
}

// LastRecord returns the most recently recorded command-history entry.
func (d *Dispatcher) LastRecord() Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.historyIdx
	if idx == 0 {
		idx = HistorySize - 1
	} else {
		idx--
	}
	return d.history[idx]
}

// SendAck builds and downlinks a PUS service-1 request-verification
// acknowledgment for sequence, mapping status to the standard PUS
// subtype: 1 (accepted), 7 (executed) or 8 (anything else/failed).
func (d *Dispatcher) SendAck(sequence uint16, st Status) error {
	subtype := uint8(ccsds.PUSSubtypeAcceptFailure)
	switch st {
	case StatusAccepted:
		subtype = ccsds.PUSSubtypeAcceptSuccess
	case StatusExecuted:
		subtype = ccsds.PUSSubtypeExecSuccess
	default:
		subtype = ccsds.PUSSubtypeExecFailure
	}

	uptime := d.uptime()
	ackData := make([]byte, 8)
	ackData[0] = byte(sequence >> 8)
	ackData[1] = byte(sequence)
	ackData[2] = byte(st)
	ackData[3] = 0
	ms := uint32(uptime.Milliseconds())
	ackData[4] = byte(ms >> 24)
	ackData[5] = byte(ms >> 16)
	ackData[6] = byte(ms >> 8)
	ackData[7] = byte(ms)

	var ts timeservice.Timestamp
	if d.time != nil {
		ts = d.time.Now()
	}

	pkt, err := ccsds.BuildTMHeader(d.seq, ccsds.APIDSystem, uint8(ccsds.PUSServiceRequestVerification), subtype, ts)
	if err != nil {
		return err
	}
	if err := pkt.SetData(ackData); err != nil {
		return err
	}
	pkt.Finalize()

	if d.tm == nil {
		return nil
	}
	return d.tm.QueuePacket(pkt, telemetry.PriorityHigh)
}

// SendResponse downlinks a handler's response payload as a TM packet
// under serviceType (the triggering command's service) and
// PUSSubtypeCommandResponse, the way Ping's "PONG" reply or
// ConnectionTest's echoed data reach the ground independently of the
// two request-verification acknowledgments SendAck sends.
func (d *Dispatcher) SendResponse(serviceType uint8, sequence uint16, resp []byte) error {
	var ts timeservice.Timestamp
	if d.time != nil {
		ts = d.time.Now()
	}

	pkt, err := ccsds.BuildTMHeader(d.seq, ccsds.APIDSystem, serviceType, ccsds.PUSSubtypeCommandResponse, ts)
	if err != nil {
		return err
	}
	if err := pkt.SetData(resp); err != nil {
		return err
	}
	pkt.Finalize()

	if d.tm == nil {
		return nil
	}
	return d.tm.QueuePacket(pkt, telemetry.PriorityNormal)
}

/* Standard command handlers. */

func handlerPing(data []byte) ([]byte, Status) {
	return []byte("PONG"), StatusExecuted
}

func handlerConnectionTest(data []byte) ([]byte, Status) {
	if len(data) == 0 || len(data) > 200 {
		return nil, StatusExecuted
	}
	return append([]byte(nil), data...), StatusExecuted
}

func (d *Dispatcher) handlerModeChange(data []byte) ([]byte, Status) {
	if len(data) < 1 {
		return nil, StatusFailed
	}
	target := types.Mode(data[0])
	if int(target) >= types.ModeCount {
		return nil, StatusFailed
	}

	err := d.mode.Request(target)
	resp := make([]byte, 2)
	if err == nil {
		resp[0] = 1
	}
	resp[1] = byte(d.mode.Current())
	if err != nil {
		return resp, StatusFailed
	}
	return resp, StatusExecuted
}

func handlerReset(data []byte) ([]byte, Status) {
	// Deferred reset is FDIR's responsibility; this only acknowledges
	// the request so the response can be sent before power actually
	// cycles.
	return []byte{1}, StatusExecuted
}

func (d *Dispatcher) handlerEnableHK(data []byte) ([]byte, Status) {
	if len(data) < 2 {
		return nil, StatusFailed
	}
	packetID := uint16(data[0])<<8 | uint16(data[1])
	if err := d.tm.Enable(packetID); err != nil {
		return []byte{0}, StatusFailed
	}
	return []byte{1}, StatusExecuted
}

func (d *Dispatcher) handlerDisableHK(data []byte) ([]byte, Status) {
	if len(data) < 2 {
		return nil, StatusFailed
	}
	packetID := uint16(data[0])<<8 | uint16(data[1])
	if err := d.tm.Disable(packetID); err != nil {
		return []byte{0}, StatusFailed
	}
	return []byte{1}, StatusExecuted
}

func (d *Dispatcher) handlerTimeSync(data []byte) ([]byte, Status) {
	if len(data) < 6 {
		return nil, StatusFailed
	}
	seconds := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	subseconds := uint16(data[4])<<8 | uint16(data[5])

	d.time.SyncUTC(timeservice.Timestamp{Seconds: seconds, Subseconds: uint32(subseconds)})

	current := d.time.Now()
	resp := make([]byte, 4)
	resp[0] = byte(current.Seconds >> 24)
	resp[1] = byte(current.Seconds >> 16)
	resp[2] = byte(current.Seconds >> 8)
	resp[3] = byte(current.Seconds)
	return resp, StatusExecuted
}
