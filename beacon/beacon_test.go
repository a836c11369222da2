package beacon

import (
	"testing"
	"time"

	"github.com/TheusHen/OpenFSW/bsp"
	"github.com/TheusHen/OpenFSW/ccsds"
	"github.com/TheusHen/OpenFSW/fdir"
	"github.com/TheusHen/OpenFSW/mode"
	"github.com/TheusHen/OpenFSW/subsystems/eps"
	"github.com/TheusHen/OpenFSW/types"
)

func newTestService() (*Service, *mode.Manager) {
	m := mode.New(types.ModeNominal)
	e := eps.New(bsp.NewGeneric(), fdir.New(fdir.Hooks{}), m)
	return New(m, e), m
}

func TestNew_DefaultsEnabledWithDefaultCallsign(t *testing.T) {
	s, _ := newTestService()
	if !s.IsEnabled() {
		t.Fatal("expected beacon enabled by default")
	}
}

func TestBuildFrame_ProducesValidCRC(t *testing.T) {
	s, _ := newTestService()
	f := s.BuildFrame(5000)
	raw := packFrame(f)
	if len(raw) != FrameSize {
		t.Fatalf("packFrame length = %d, want %d", len(raw), FrameSize)
	}
	if got := ccsds.CalcCRC(raw[:FrameSize-2]); got != f.CRC16 {
		t.Fatalf("recomputed CRC %#x != stored CRC %#x", got, f.CRC16)
	}
}

func TestSerialize_MatchesInternalPacking(t *testing.T) {
	s, _ := newTestService()
	f := s.BuildFrame(1234)
	if got, want := Serialize(f), packFrame(f); string(got) != string(want) {
		t.Fatalf("Serialize() = %x, want %x", got, want)
	}
}

func TestBuildFrame_SequenceIncrements(t *testing.T) {
	s, _ := newTestService()
	f1 := s.BuildFrame(0)
	f2 := s.BuildFrame(0)
	if f2.Sequence != f1.Sequence+1 {
		t.Fatalf("expected sequence to increment, got %d then %d", f1.Sequence, f2.Sequence)
	}
}

func TestBuildFrame_PullsBatteryTelemetryFromEPS(t *testing.T) {
	s, _ := newTestService()
	f := s.BuildFrame(0)
	if f.BatteryVoltageMV == 0 {
		t.Fatal("expected battery voltage populated from eps.Service")
	}
}

func TestPeriodic_TransmitsOnceIntervalElapsed(t *testing.T) {
	s, _ := newTestService()
	s.Periodic(0)
	if s.TxCount() != 1 {
		t.Fatalf("TxCount() = %d, want 1 (first call always due)", s.TxCount())
	}

	s.Periodic(uint32(time.Second.Milliseconds()))
	if s.TxCount() != 1 {
		t.Fatalf("TxCount() = %d, want 1 (interval not yet elapsed)", s.TxCount())
	}

	s.Periodic(uint32(NormalInterval.Milliseconds()))
	if s.TxCount() != 2 {
		t.Fatalf("TxCount() = %d, want 2", s.TxCount())
	}
}

func TestPeriodic_UsesFasterIntervalInSafeMode(t *testing.T) {
	s, m := newTestService()
	m.Force(types.ModeSafe)
	m.Process()

	s.Periodic(0)
	if s.TxCount() != 1 {
		t.Fatalf("TxCount() = %d, want 1", s.TxCount())
	}

	s.Periodic(uint32(SafeInterval.Milliseconds()))
	if s.TxCount() != 2 {
		t.Fatalf("TxCount() = %d, want 2 once SafeInterval has elapsed", s.TxCount())
	}
}

func TestPeriodic_DisabledNeverTransmits(t *testing.T) {
	s, _ := newTestService()
	s.Disable()
	s.Periodic(uint32(NormalInterval.Milliseconds()) * 10)
	if s.TxCount() != 0 {
		t.Fatalf("TxCount() = %d, want 0 while disabled", s.TxCount())
	}
}

func TestSetInterval_Clamps(t *testing.T) {
	s, _ := newTestService()
	s.SetInterval(100 * time.Millisecond)
	s.mu.Lock()
	got := s.intervalMs
	s.mu.Unlock()
	if got != uint32(MinInterval.Milliseconds()) {
		t.Fatalf("intervalMs = %d, want clamped to MinInterval", got)
	}

	s.SetInterval(time.Hour)
	s.mu.Lock()
	got = s.intervalMs
	s.mu.Unlock()
	if got != uint32(MaxInterval.Milliseconds()) {
		t.Fatalf("intervalMs = %d, want clamped to MaxInterval", got)
	}
}

func TestTransmitEmergency_ProducesValidCRC(t *testing.T) {
	s, _ := newTestService()
	e := s.TransmitEmergency(EmergencyPower, 1000)
	if e.EmergencyCode != EmergencyPower {
		t.Fatalf("EmergencyCode = %#x, want %#x", e.EmergencyCode, EmergencyPower)
	}
	body := make([]byte, 0, EmergencySize-2)
	body = append(body, e.Callsign[:]...)
	body = append(body, e.EmergencyCode, e.Sequence)
	body = append(body, byte(e.Timestamp), byte(e.Timestamp>>8), byte(e.Timestamp>>16), byte(e.Timestamp>>24))
	if got := ccsds.CalcCRC(body); got != e.CRC16 {
		t.Fatalf("recomputed CRC %#x != stored CRC %#x", got, e.CRC16)
	}
	if s.TxCount() != 1 {
		t.Fatalf("TxCount() = %d, want 1", s.TxCount())
	}
}

func TestSetCallsign_Truncates(t *testing.T) {
	s, _ := newTestService()
	s.SetCallsign("TOOLONGCALLSIGN")
	f := s.BuildFrame(0)
	if len(f.Callsign) != CallsignSize {
		t.Fatalf("Callsign array length = %d, want %d", len(f.Callsign), CallsignSize)
	}
}
