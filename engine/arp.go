package engine

import (
	"github.com/tmaarne/waveweaver"
)

const maxHeldNotes = 128

type heldNote struct {
	note     byte
	velocity byte
}

// arpState converts the held-note set into timed triggers. All timing
// state lives here so separate engine instances never share a clock.
type arpState struct {
	held  []heldNote // insertion order
	order []heldNote // scratch, sorted per mode for the current tick

	timer    float32 // samples accumulated toward the next tick
	wait     float32 // samples the upcoming tick needs
	step     int     // tick parity for swing
	index    int     // position within the note list
	octave   int     // position within the octave cycle
	randSeed uint32

	gateLeft float32 // samples until the sounding notes are released
	sounding []byte
}

func newArpState() *arpState {
	return &arpState{
		held:     make([]heldNote, 0, maxHeldNotes),
		order:    make([]heldNote, 0, maxHeldNotes),
		sounding: make([]byte, 0, maxHeldNotes),
		randSeed: 1,
	}
}

func (a *arpState) reset() {
	a.held = a.held[:0]
	a.order = a.order[:0]
	a.sounding = a.sounding[:0]
	a.timer = 0
	a.wait = 0
	a.step = 0
	a.index = 0
	a.octave = 0
	a.gateLeft = 0
}

func (a *arpState) noteOn(note, velocity byte) {
	for i := range a.held {
		if a.held[i].note == note {
			a.held[i].velocity = velocity
			return
		}
	}
	if len(a.held) == cap(a.held) {
		return
	}
	wasEmpty := len(a.held) == 0
	a.held = append(a.held, heldNote{note, velocity})
	if wasEmpty {
		// First held note fires on the next sample.
		a.timer = 0
		a.wait = 0
		a.step = 0
		a.index = 0
		a.octave = 0
	}
}

func (a *arpState) noteOff(note byte) {
	for i := range a.held {
		if a.held[i].note == note {
			a.held = append(a.held[:i], a.held[i+1:]...)
			return
		}
	}
}

// period returns the tick length in samples.
func arpPeriod(cfg *waveweaver.Arpeggiator, tempo, sampleRate float32) float32 {
	if cfg.Division > 0 {
		return cfg.Division * 60 / tempo * sampleRate
	}
	if cfg.FreeRate > 0 {
		return sampleRate / cfg.FreeRate
	}
	return sampleRate / 4
}

// advance moves the arp clock forward by n samples, firing triggers and
// gate-end releases through the callbacks. Runs on the audio thread;
// allocation-free.
func (a *arpState) advance(cfg *waveweaver.Arpeggiator, tempo, sampleRate float32, n int, trigger func(note, velocity byte), release func(note byte)) {
	if len(a.held) == 0 && len(a.sounding) == 0 {
		return
	}
	period := arpPeriod(cfg, tempo, sampleRate)
	for i := 0; i < n; i++ {
		if a.gateLeft > 0 {
			a.gateLeft--
			if a.gateLeft <= 0 {
				for _, note := range a.sounding {
					release(note)
				}
				a.sounding = a.sounding[:0]
			}
		}
		if len(a.held) == 0 {
			continue
		}
		if a.timer < a.wait {
			a.timer++
			continue
		}
		a.timer -= a.wait
		a.timer++
		a.fire(cfg, trigger, release)
		a.gateLeft = cfg.Gate * period
		a.step++
		// Every other tick lands late by the swing fraction, so the
		// following tick comes correspondingly early.
		if a.step%2 == 1 {
			a.wait = period * (1 + cfg.Swing)
		} else {
			a.wait = period * (1 - cfg.Swing)
		}
	}
}

// fire emits the trigger(s) for one tick.
func (a *arpState) fire(cfg *waveweaver.Arpeggiator, trigger func(note, velocity byte), release func(note byte)) {
	// Cut any note still inside its gate before the new one starts.
	for _, note := range a.sounding {
		release(note)
	}
	a.sounding = a.sounding[:0]
	a.buildOrder(cfg)
	if len(a.order) == 0 {
		return
	}
	octaves := octaveCycle(cfg.OctaveMode)
	if a.octave >= len(octaves) {
		a.octave = 0
	}
	if cfg.Mode == waveweaver.ArpChord {
		shift := octaves[a.octave]
		for _, h := range a.order {
			n := transpose(h.note, shift)
			trigger(n, h.velocity)
			a.sounding = append(a.sounding, n)
		}
		a.octave++
		if a.octave >= len(octaves) {
			a.octave = 0
		}
		return
	}
	if a.index >= len(a.order) {
		a.index = 0
		a.octave++
		if a.octave >= len(octaves) {
			a.octave = 0
		}
	}
	pick := a.index
	if cfg.Mode == waveweaver.ArpRandom {
		a.randSeed *= 16007
		pick = int(a.randSeed>>16) % len(a.order)
	}
	h := a.order[pick]
	n := transpose(h.note, octaves[a.octave])
	trigger(n, h.velocity)
	a.sounding = append(a.sounding, n)
	a.index++
}

// buildOrder fills the scratch list in the order the mode walks it.
func (a *arpState) buildOrder(cfg *waveweaver.Arpeggiator) {
	a.order = a.order[:0]
	a.order = append(a.order, a.held...)
	switch cfg.Mode {
	case waveweaver.ArpAsPlayed, waveweaver.ArpRandom, waveweaver.ArpChord:
		return
	}
	sortHeld(a.order)
	switch cfg.Mode {
	case waveweaver.ArpDown:
		reverseHeld(a.order)
	case waveweaver.ArpUpDown:
		a.order = pingPong(a.order)
	case waveweaver.ArpDownUp:
		reverseHeld(a.order)
		a.order = pingPong(a.order)
	}
}

// pingPong appends the interior notes in reverse so a full pass walks
// up and back down without repeating the endpoints.
func pingPong(notes []heldNote) []heldNote {
	n := len(notes)
	for i := n - 2; i >= 1; i-- {
		if len(notes) == cap(notes) {
			break
		}
		notes = append(notes, notes[i])
	}
	return notes
}

func sortHeld(notes []heldNote) {
	for i := 1; i < len(notes); i++ {
		for j := i; j > 0 && notes[j].note < notes[j-1].note; j-- {
			notes[j], notes[j-1] = notes[j-1], notes[j]
		}
	}
}

func reverseHeld(notes []heldNote) {
	for i, j := 0, len(notes)-1; i < j; i, j = i+1, j-1 {
		notes[i], notes[j] = notes[j], notes[i]
	}
}

func octaveCycle(mode waveweaver.ArpOctaveMode) []int {
	switch mode {
	case waveweaver.ArpOctaveUp:
		return octavesUp1
	case waveweaver.ArpOctaveDown:
		return octavesDown1
	case waveweaver.ArpOctaveUpDown:
		return octavesUpDown
	case waveweaver.ArpOctaveTwoUp:
		return octavesUp2
	case waveweaver.ArpOctaveThreeUp:
		return octavesUp3
	}
	return octavesNone
}

var (
	octavesNone   = []int{0}
	octavesUp1    = []int{0, 12}
	octavesDown1  = []int{0, -12}
	octavesUpDown = []int{0, 12, 0, -12}
	octavesUp2    = []int{0, 12, 24}
	octavesUp3    = []int{0, 12, 24, 36}
)

func transpose(note byte, shift int) byte {
	n := int(note) + shift
	if n < 0 {
		n = 0
	}
	if n > 127 {
		n = 127
	}
	return byte(n)
}
