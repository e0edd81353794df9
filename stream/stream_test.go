package stream

import (
	"errors"
	"testing"

	"github.com/xiph/libopusenc/sink"
)

func TestSetSerialFailsAfterFreeze(t *testing.T) {
	s := New(sink.NewMemory())
	if err := s.SetSerial(42); err != nil {
		t.Fatalf("SetSerial before freeze: %v", err)
	}
	s.FreezeHeader()
	if err := s.SetSerial(7); !errors.Is(err, ErrHeaderFrozen) {
		t.Errorf("SetSerial after freeze = %v, want ErrHeaderFrozen", err)
	}
	if serial, _ := s.Serial(); serial != 42 {
		t.Errorf("serial changed to %d despite rejected SetSerial", serial)
	}
}

func TestAssignRandomSerialRespectsExplicit(t *testing.T) {
	s := New(nil)
	if err := s.SetSerial(99); err != nil {
		t.Fatal(err)
	}
	s.AssignRandomSerial(func() uint32 { return 1 })
	if serial, _ := s.Serial(); serial != 99 {
		t.Errorf("explicit serial overwritten: got %d", serial)
	}

	unset := New(nil)
	unset.AssignRandomSerial(func() uint32 { return 555 })
	if serial, ok := unset.Serial(); !ok || serial != 555 {
		t.Errorf("AssignRandomSerial = (%d, %v), want (555, true)", serial, ok)
	}
}

func TestAdvanceWriteTracksEndGranule(t *testing.T) {
	s := New(nil)
	s.AdvanceWrite(480)
	s.AdvanceWrite(480)
	if s.WriteGranule() != 960 {
		t.Errorf("WriteGranule = %d, want 960", s.WriteGranule())
	}
	if s.EndGranule() != 960 {
		t.Errorf("EndGranule = %d, want 960", s.EndGranule())
	}
}

func TestListChaining(t *testing.T) {
	l := NewList()
	if !l.Empty() {
		t.Fatal("new list should be empty")
	}

	a := New(nil)
	l.InsertTail(a)
	if l.Head() != a || l.Tail() != a {
		t.Fatal("single-element list: head and tail should both be a")
	}

	b := New(nil)
	l.InsertTail(b)
	if l.Head() != a {
		t.Error("head should still be a until a's EOS is drained")
	}
	if l.Tail() != b {
		t.Error("tail should move to b immediately on chain")
	}
	if a.Next() != b {
		t.Error("a.Next() should be b after chaining")
	}

	l.RemoveHead()
	if l.Head() != b {
		t.Error("head should advance to b after removing a")
	}
	if l.Tail() != b {
		t.Error("tail should remain b")
	}

	l.RemoveHead()
	if !l.Empty() {
		t.Error("list should be empty after draining both streams")
	}
}

func TestRemoveHeadOnEmptyListIsNoop(t *testing.T) {
	l := NewList()
	l.RemoveHead()
	if !l.Empty() {
		t.Error("RemoveHead on empty list should stay empty")
	}
}
