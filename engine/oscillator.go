package engine

import (
	"github.com/chewxy/math32"

	"github.com/tmaarne/waveweaver"
)

// tableRead interpolates the table bilinearly at (framePos, phase), framePos
// in [0,1] along the frame axis and phase in [0,1) along the sample axis.
// The phase axis wraps, the frame axis clamps at the last frame.
func tableRead(t *Wavetable, framePos, phase float32) float32 {
	fpos := framePos * (waveweaver.WavetableFrames - 1)
	f0 := int(fpos)
	if f0 >= waveweaver.WavetableFrames-1 {
		f0 = waveweaver.WavetableFrames - 2
	}
	if f0 < 0 {
		f0 = 0
	}
	ffrac := fpos - float32(f0)
	spos := phase * waveweaver.WavetableSize
	s0 := int(spos) & (waveweaver.WavetableSize - 1)
	s1 := (s0 + 1) & (waveweaver.WavetableSize - 1)
	sfrac := spos - math32.Floor(spos)
	a := t.Data[f0][s0] + (t.Data[f0][s1]-t.Data[f0][s0])*sfrac
	b := t.Data[f0+1][s0] + (t.Data[f0+1][s1]-t.Data[f0+1][s0])*sfrac
	return a + (b-a)*ffrac
}

// oscState is the per-voice mutable state of one oscillator slot.
type oscState struct {
	phases [waveweaver.MaxUnison]float32
}

// oscBlock is the per-block resolved rendering plan for one oscillator
// slot of one voice: all patch and modulation reads happen when this is
// filled, the per-sample path only touches plain numbers.
type oscBlock struct {
	enabled  bool
	table    *Wavetable
	vector   bool
	framePos float32
	level    float32
	pitchMul float32
	unison   int
	detune   [waveweaver.MaxUnison]float32 // per-unison-voice frequency multiplier
	gainL    [waveweaver.MaxUnison]float32
	gainR    [waveweaver.MaxUnison]float32
}

// initPhases resets the unison phase array at note-on. Voice 0 starts at
// the configured phase exactly; the extra unison voices get deterministic
// offsets so they do not start phase-locked.
func (o *oscState) initPhases(cfg *waveweaver.Oscillator) {
	o.phases[0] = cfg.Phase
	seed := uint32(1)
	for v := 1; v < waveweaver.MaxUnison; v++ {
		seed = seed*1664525 + 1013904223
		p := cfg.Phase + float32(seed>>8)/float32(1<<24)
		o.phases[v] = p - math32.Floor(p)
	}
}

// resolve fills the block plan from the patch, the wavetable store and the
// block's modulation cache.
func (b *oscBlock) resolve(cfg *waveweaver.Oscillator, store *WavetableStore, mod *modCache, index int, pitchBendMul, masterTuneMul float32) {
	b.enabled = cfg.Enabled
	if !b.enabled {
		return
	}
	b.vector = cfg.UseVector
	b.table = store.Table(cfg.Wavetable)
	if b.table == nil && !b.vector {
		b.enabled = false
		return
	}
	var pitchMod, frameMod, levelMod, panMod float32
	if index == 0 {
		pitchMod = mod.get(waveweaver.DestOsc1Pitch)
		frameMod = mod.get(waveweaver.DestOsc1Frame)
		levelMod = mod.get(waveweaver.DestOsc1Level)
		panMod = mod.get(waveweaver.DestOsc1Pan)
	} else {
		pitchMod = mod.get(waveweaver.DestOsc2Pitch)
		frameMod = mod.get(waveweaver.DestOsc2Frame)
		levelMod = mod.get(waveweaver.DestOsc2Level)
		panMod = mod.get(waveweaver.DestOsc2Pan)
	}
	b.framePos = clampUnit(cfg.FramePos + frameMod)
	b.level = clampUnit(cfg.Level + levelMod)
	// Pitch modulation spans +-2 octaves at full amount.
	b.pitchMul = math32.Exp2(float32(cfg.Semitones)/12+cfg.Cents/1200+pitchMod*2) * pitchBendMul * masterTuneMul
	n := cfg.Unison
	if n < 1 {
		n = 1
	}
	if n > waveweaver.MaxUnison {
		n = waveweaver.MaxUnison
	}
	b.unison = n
	pan := clampSym(cfg.Pan + panMod)
	norm := 1 / float32(n)
	for v := 0; v < n; v++ {
		pos := float32(0)
		if n > 1 {
			pos = (float32(v) - float32(n-1)/2) / (float32(n-1) / 2)
		}
		b.detune[v] = math32.Exp2(pos * cfg.Detune / 1200)
		vpan := clampSym(pan + pos*cfg.Spread)
		// Balance-style pan: both channels stay at unity in the center.
		l, r := float32(1), float32(1)
		if vpan > 0 {
			l = 1 - vpan
		} else if vpan < 0 {
			r = 1 + vpan
		}
		b.gainL[v] = l * norm
		b.gainR[v] = r * norm
	}
}

// render computes one stereo sample and advances the unison phases. freq is
// the voice's current base frequency in Hz before the oscillator's own
// pitch offsets. vec supplies the corner plan when the slot reads the
// vector pad instead of its own table.
func (b *oscBlock) render(o *oscState, freq, invSampleRate float32, vec *vectorBlock) (l, r float32) {
	if !b.enabled {
		return 0, 0
	}
	for v := 0; v < b.unison; v++ {
		phase := o.phases[v]
		var s float32
		if b.vector {
			s = vec.read(phase)
		} else {
			s = tableRead(b.table, b.framePos, phase)
		}
		l += s * b.gainL[v]
		r += s * b.gainR[v]
		phase += freq * b.pitchMul * b.detune[v] * invSampleRate
		phase -= math32.Floor(phase)
		o.phases[v] = phase
	}
	return l * b.level, r * b.level
}

// subState is the dedicated sine sub-oscillator an octave or two below
// oscillator 1.
type subState struct {
	phase float32
}

type subBlock struct {
	enabled bool
	level   float32
	freqMul float32
}

func (b *subBlock) resolve(cfg *waveweaver.SubOscillator) {
	b.enabled = cfg.Enabled && cfg.Level > 0
	if !b.enabled {
		return
	}
	b.level = cfg.Level
	b.freqMul = 0.5
	if cfg.Octave <= -2 {
		b.freqMul = 0.25
	}
}

func (b *subBlock) render(s *subState, freq, invSampleRate float32) float32 {
	if !b.enabled {
		return 0
	}
	out := math32.Sin(2*math32.Pi*s.phase) * b.level
	s.phase += freq * b.freqMul * invSampleRate
	s.phase -= math32.Floor(s.phase)
	return out
}

// noiseState is a white noise source with a one-pole color filter.
type noiseState struct {
	seed uint32
	lp   float32
}

type noiseBlock struct {
	enabled bool
	level   float32
	coeff   float32 // one-pole coefficient, 1 = white
}

func (b *noiseBlock) resolve(cfg *waveweaver.Noise) {
	b.enabled = cfg.Enabled && cfg.Level > 0
	if !b.enabled {
		return
	}
	b.level = cfg.Level
	b.coeff = 1 - 0.98*cfg.Color
}

func (b *noiseBlock) render(n *noiseState) float32 {
	if !b.enabled {
		return 0
	}
	if n.seed == 0 {
		n.seed = 0x9e3779b9
	}
	n.seed = n.seed*1664525 + 1013904223
	white := float32(int32(n.seed)) / float32(1<<31)
	n.lp += b.coeff * (white - n.lp)
	return n.lp * b.level
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampSym(v float32) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
