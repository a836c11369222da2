package eventlog

import (
	"path/filepath"
	"testing"

	"github.com/TheusHen/OpenFSW/nvm"
	"github.com/TheusHen/OpenFSW/types"
)

func newTestLog() *Log {
	var ms uint32
	return New(func() uint32 { return ms })
}

func TestWrite_IncrementsCount(t *testing.T) {
	l := newTestLog()
	l.Info(types.SubsysEPS, "boot complete")
	if l.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", l.Count())
	}
}

func TestWrite_TruncatesLongMessages(t *testing.T) {
	l := newTestLog()
	long := "this message is definitely longer than thirty two characters"
	l.Info(types.SubsysEPS, long)
	latest, ok := l.Latest()
	if !ok {
		t.Fatal("expected a latest entry")
	}
	if len(latest.Message) != MsgMaxLen {
		t.Fatalf("Message length = %d, want %d", len(latest.Message), MsgMaxLen)
	}
}

func TestWrite_WrapsAtCapacity(t *testing.T) {
	l := newTestLog()
	for i := 0; i < Size+10; i++ {
		l.Debug(types.SubsysEPS, "x")
	}
	if l.Count() != Size {
		t.Fatalf("Count() = %d, want %d", l.Count(), Size)
	}
}

func TestEntry_OldestFirstOrdering(t *testing.T) {
	l := newTestLog()
	l.Error(types.SubsysEPS, 1, "first")
	l.Error(types.SubsysEPS, 2, "second")

	e0, ok := l.Entry(0)
	if !ok || e0.EventID != 1 {
		t.Fatalf("Entry(0) = %+v, want EventID=1", e0)
	}
	e1, ok := l.Entry(1)
	if !ok || e1.EventID != 2 {
		t.Fatalf("Entry(1) = %+v, want EventID=2", e1)
	}
}

func TestEntry_OutOfRange(t *testing.T) {
	l := newTestLog()
	if _, ok := l.Entry(0); ok {
		t.Fatal("expected Entry(0) to fail on empty log")
	}
}

func TestLatest_EmptyLog(t *testing.T) {
	l := newTestLog()
	if _, ok := l.Latest(); ok {
		t.Fatal("expected Latest() to fail on empty log")
	}
}

func TestCountBySeverity(t *testing.T) {
	l := newTestLog()
	l.Debug(types.SubsysEPS, "d")
	l.Warning(types.SubsysEPS, "w")
	l.Critical(types.SubsysEPS, 5, "c")

	if got := l.CountBySeverity(types.SeverityWarning); got != 2 {
		t.Fatalf("CountBySeverity(Warning) = %d, want 2", got)
	}
}

func TestCountBySubsystem(t *testing.T) {
	l := newTestLog()
	l.Info(types.SubsysEPS, "p")
	l.Info(types.SubsysADCS, "a")
	l.Info(types.SubsysEPS, "p2")

	if got := l.CountBySubsystem(types.SubsysEPS); got != 2 {
		t.Fatalf("CountBySubsystem(Power) = %d, want 2", got)
	}
}

func TestExport_FiltersAndCaps(t *testing.T) {
	l := newTestLog()
	for i := 0; i < 5; i++ {
		l.Debug(types.SubsysEPS, "d")
	}
	l.Critical(types.SubsysEPS, 1, "crit")

	exported := l.Export(10, types.SeverityCritical)
	if len(exported) != 1 {
		t.Fatalf("len(exported) = %d, want 1", len(exported))
	}

	capped := l.Export(2, types.SeverityDebug)
	if len(capped) != 2 {
		t.Fatalf("len(capped) = %d, want 2", len(capped))
	}
}

func TestClear(t *testing.T) {
	l := newTestLog()
	l.Info(types.SubsysEPS, "x")
	l.Clear()
	if l.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after Clear", l.Count())
	}
}

func TestSaveAndLoadFromNVM_RoundTrips(t *testing.T) {
	store, err := nvm.Open(filepath.Join(t.TempDir(), "eventlog.db"))
	if err != nil {
		t.Fatalf("nvm.Open() error: %v", err)
	}
	defer store.Close()

	l := newTestLog()
	l.Info(types.SubsysEPS, "alpha")
	l.Warning(types.SubsysADCS, "beta")
	l.Critical(types.SubsysComms, 9, "gamma")

	if err := l.SaveToNVM(store); err != nil {
		t.Fatalf("SaveToNVM() error: %v", err)
	}

	l2 := newTestLog()
	if err := l2.LoadFromNVM(store); err != nil {
		t.Fatalf("LoadFromNVM() error: %v", err)
	}
	if l2.Count() != 3 {
		t.Fatalf("Count() after load = %d, want 3", l2.Count())
	}
	e0, _ := l2.Entry(0)
	if e0.Message != "alpha" {
		t.Fatalf("Entry(0).Message = %q, want alpha", e0.Message)
	}
	e2, _ := l2.Entry(2)
	if e2.EventID != 9 || e2.Message != "gamma" {
		t.Fatalf("Entry(2) = %+v, want EventID=9 Message=gamma", e2)
	}
}
