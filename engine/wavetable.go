package engine

import (
	"sync/atomic"

	"github.com/chewxy/math32"

	"github.com/tmaarne/waveweaver"
)

// Wavetable is an immutable grid of single-cycle frames. Tables are built
// off the audio thread and published to a store slot wholesale; the audio
// thread only ever sees a fully written table or the previous one.
type Wavetable struct {
	Name string
	Data [waveweaver.WavetableFrames][waveweaver.WavetableSize]float32
}

// WavetableStore owns the fixed slots oscillators reference by index. All
// mutation goes through atomic slot swaps.
type WavetableStore struct {
	slots [waveweaver.NumWavetableSlots]atomic.Pointer[Wavetable]
}

// Table returns the table currently published in the slot, or nil if the
// slot is empty or out of range. Safe to call from the audio thread.
func (s *WavetableStore) Table(slot int) *Wavetable {
	if slot < 0 || slot >= len(s.slots) {
		return nil
	}
	return s.slots[slot].Load()
}

// publish swaps the slot to the new table. A nil table empties the slot.
func (s *WavetableStore) publish(slot int, t *Wavetable) bool {
	if slot < 0 || slot >= len(s.slots) {
		return false
	}
	s.slots[slot].Store(t)
	return true
}

// Generate fills every frame of a new table identically from a closed-form
// function of phase in [0,1) and publishes it to the slot. Returns false
// only for an out-of-range slot.
func (s *WavetableStore) Generate(slot int, name string, f func(phase float32) float32) bool {
	t := &Wavetable{Name: name}
	for i := 0; i < waveweaver.WavetableSize; i++ {
		t.Data[0][i] = f(float32(i) / waveweaver.WavetableSize)
	}
	for frame := 1; frame < waveweaver.WavetableFrames; frame++ {
		t.Data[frame] = t.Data[0]
	}
	return s.publish(slot, t)
}

// Built-in generator shapes. Saw and square are naive shapes; the bandwidth
// control for cleaner high notes comes from choosing a milder frame
// position, not from extra tables per octave.
func SineShape(phase float32) float32 {
	return math32.Sin(2 * math32.Pi * phase)
}

func SawShape(phase float32) float32 {
	return 2*phase - 1
}

func SquareShape(phase float32) float32 {
	if phase < 0.5 {
		return 1
	}
	return -1
}

func TriangleShape(phase float32) float32 {
	if phase < 0.25 {
		return 4 * phase
	}
	if phase < 0.75 {
		return 2 - 4*phase
	}
	return 4*phase - 4
}

// LoadDefaults fills the first four slots with the classic shapes. Called
// once at engine construction; slots may be overwritten by imports later.
func (s *WavetableStore) LoadDefaults() {
	s.Generate(0, "sine", SineShape)
	s.Generate(1, "saw", SawShape)
	s.Generate(2, "square", SquareShape)
	s.Generate(3, "triangle", TriangleShape)
}
