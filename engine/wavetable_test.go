package engine

import (
	"math"
	"testing"

	"github.com/tmaarne/waveweaver"
)

func TestGenerateFillsAllFramesIdentically(t *testing.T) {
	var s WavetableStore
	if !s.Generate(0, "sine", SineShape) {
		t.Fatalf("Generate failed for a valid slot")
	}
	table := s.Table(0)
	if table == nil {
		t.Fatalf("Table(0) is nil after Generate")
	}
	for frame := 1; frame < waveweaver.WavetableFrames; frame++ {
		if table.Data[frame] != table.Data[0] {
			t.Fatalf("frame %d differs from frame 0", frame)
		}
	}
	quarter := table.Data[0][waveweaver.WavetableSize/4]
	if math.Abs(float64(quarter)-1) > 1e-6 {
		t.Errorf("sine at quarter phase = %v, want 1", quarter)
	}
}

func TestGenerateOutOfRangeSlot(t *testing.T) {
	var s WavetableStore
	if s.Generate(-1, "bad", SineShape) {
		t.Errorf("Generate accepted slot -1")
	}
	if s.Generate(waveweaver.NumWavetableSlots, "bad", SineShape) {
		t.Errorf("Generate accepted slot %d", waveweaver.NumWavetableSlots)
	}
}

func TestTableOutOfRange(t *testing.T) {
	var s WavetableStore
	if s.Table(-1) != nil || s.Table(waveweaver.NumWavetableSlots) != nil {
		t.Errorf("out of range slots should read as nil")
	}
}

func TestLoadFailureLeavesSlotUnchanged(t *testing.T) {
	var s WavetableStore
	s.Generate(0, "sine", SineShape)
	before := s.Table(0)
	if err := s.Load("this-file-does-not-exist.wav", 0); err == nil {
		t.Fatalf("expected an error loading a missing file")
	}
	if s.Table(0) != before {
		t.Errorf("failed load replaced the slot contents")
	}
	if err := s.Load("whatever.wav", -1); err == nil {
		t.Errorf("expected an error for an out of range slot")
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	var s WavetableStore
	if err := s.Load("sound.ogg", 0); err == nil {
		t.Errorf("expected an error for an unsupported extension")
	}
}
