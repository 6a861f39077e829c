package engine

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"

	"github.com/tmaarne/waveweaver"
)

const defaultTempo = 120

// atomicFloat is a float32 shared across the control/audio thread boundary
// through its bit pattern. Continuous parameters go through these; anything
// structural goes through a full pointer swap instead.
type atomicFloat struct {
	bits atomic.Uint32
}

func (f *atomicFloat) Store(v float32) { f.bits.Store(math.Float32bits(v)) }
func (f *atomicFloat) Load() float32   { return math.Float32frombits(f.bits.Load()) }

// Engine is the polyphonic synthesis core. The audio thread owns Render and
// everything reachable from it; all other methods run on the control thread
// and communicate through atomic swaps, atomic floats and the event queue.
// After Prepare, Render neither allocates nor blocks.
type Engine struct {
	sampleRate    float32
	invSampleRate float32
	maxBlock      int

	patch  atomic.Pointer[waveweaver.Patch]
	store  WavetableStore
	events *eventBuffer

	tempo      atomicFloat
	pitchBend  atomicFloat
	modWheel   atomicFloat
	aftertouch atomicFloat
	slide      atomicFloat
	pressure   atomicFloat
	lift       atomicFloat
	bioHRV     atomicFloat
	bioCoh     atomicFloat
	bioBreath  atomicFloat
	macros     [waveweaver.NumMacros]atomicFloat

	// Audio-thread state.
	voices     []voice
	ageCounter uint64
	lastFreq   float32
	randSeed   uint32
	lfos       [waveweaver.NumLFOs]lfoState
	lfoOut     [waveweaver.NumLFOs]float32
	envBlocks  [waveweaver.NumEnvelopes]envBlock
	oscBlocks  [waveweaver.NumOscillators]oscBlock
	subBlk     subBlock
	noiseBlk   noiseBlock
	filterBlks [waveweaver.NumFilters]filterBlock
	vector     vectorBlock
	sources    modSources
	mod        modCache
	arp        *arpState
	effects    effectsState
	prevArpOn  bool
	prevCount  int

	// Output metering, readable from any thread.
	peakL, peakR atomicFloat
	rmsL, rmsR   atomicFloat
	meterL       []float32
	meterR       []float32
	meterScratch []float32

	prepared bool
}

// NewEngine creates an engine with the default patch and the built-in
// wavetable shapes loaded. Prepare must be called before Render.
func NewEngine() *Engine {
	e := &Engine{
		events:   newEventBuffer(256),
		arp:      newArpState(),
		randSeed: 1,
	}
	e.store.LoadDefaults()
	e.tempo.Store(defaultTempo)
	p := waveweaver.DefaultPatch()
	e.setPatch(&p)
	return e
}

// Store exposes the wavetable store for imports and generation; all its
// mutating operations run off the audio thread and publish atomically.
func (e *Engine) Store() *WavetableStore { return &e.store }

// Prepare negotiates the stream format and allocates every buffer the audio
// thread will touch. Not safe to call concurrently with Render.
func (e *Engine) Prepare(sampleRate, maxBlockSize int) error {
	if sampleRate <= 0 || maxBlockSize <= 0 {
		return fmt.Errorf("engine.Prepare: invalid format %d Hz / %d samples", sampleRate, maxBlockSize)
	}
	e.sampleRate = float32(sampleRate)
	e.invSampleRate = 1 / e.sampleRate
	e.maxBlock = maxBlockSize
	e.voices = make([]voice, waveweaver.MaxVoices)
	for i := range e.voices {
		e.voices[i].prepare(e.sampleRate)
	}
	e.effects.prepare(e.sampleRate)
	e.meterL = make([]float32, maxBlockSize)
	e.meterR = make([]float32, maxBlockSize)
	e.meterScratch = make([]float32, maxBlockSize)
	for i := range e.lfos {
		e.lfos[i].reset()
	}
	e.prepared = true
	e.Reset()
	return nil
}

// Reset hard-stops every voice and clears all filter, effect and LFO state.
// Calling it twice in a row leaves the same silent state as calling it
// once.
func (e *Engine) Reset() {
	for i := range e.voices {
		e.voices[i].hardStop()
		for j := range e.voices[i].filters {
			e.voices[i].filters[j].reset()
		}
	}
	e.effects.reset()
	e.arp.reset()
	for i := range e.lfos {
		e.lfos[i].reset()
	}
	e.lfoOut = [waveweaver.NumLFOs]float32{}
	e.lastFreq = 0
	e.peakL.Store(0)
	e.peakR.Store(0)
	e.rmsL.Store(0)
	e.rmsR.Store(0)
}

func (e *Engine) setPatch(p *waveweaver.Patch) {
	e.patch.Store(p)
	for i := range e.macros {
		e.macros[i].Store(p.Macros[i].Value)
	}
}

// Update swaps in a new patch atomically. The engine keeps its own clamped
// copy so later edits to the caller's value cannot race the audio thread.
func (e *Engine) Update(patch waveweaver.Patch) error {
	p := patch.Copy()
	p.Clamp()
	e.setPatch(&p)
	return nil
}

// Patch returns the currently active patch (a copy).
func (e *Engine) Patch() waveweaver.Patch {
	return e.patch.Load().Copy()
}

func (e *Engine) NoteOn(channel, note, velocity byte) {
	if velocity == 0 {
		e.NoteOff(channel, note, 64)
		return
	}
	e.events.push(noteEvent{kind: eventNoteOn, channel: channel, note: note, velocity: velocity})
}

func (e *Engine) NoteOff(channel, note, velocity byte) {
	e.lift.Store(float32(velocity) / 127)
	e.events.push(noteEvent{kind: eventNoteOff, channel: channel, note: note, velocity: velocity})
}

// Controller dispatches a MIDI CC: mod wheel, MPE slide, and anything the
// patch's CC map routes to a macro or bio parameter.
func (e *Engine) Controller(channel, cc, value byte) {
	v := float32(value) / 127
	switch cc {
	case 1:
		e.modWheel.Store(v)
	case 74:
		e.slide.Store(v)
	}
	p := e.patch.Load()
	for i := range p.CCMap {
		m := &p.CCMap[i]
		if m.CC != int(cc) {
			continue
		}
		if m.Macro >= 1 && m.Macro <= waveweaver.NumMacros {
			e.macros[m.Macro-1].Store(v)
		}
		switch m.Bio {
		case "hrv":
			e.bioHRV.Store(v)
		case "coherence":
			e.bioCoh.Store(v)
		case "breath":
			e.bioBreath.Store(v)
		}
	}
}

func (e *Engine) PitchBend(channel int, value float32) {
	e.pitchBend.Store(clampSym(value))
}

func (e *Engine) ChannelPressure(channel int, pressure float32) {
	e.aftertouch.Store(clampUnit(pressure))
	e.pressure.Store(clampUnit(pressure))
}

func (e *Engine) PolyPressure(channel int, note byte, pressure float32) {
	p := clampUnit(pressure)
	for i := range e.voices {
		if e.voices[i].active() && e.voices[i].note == note {
			e.voices[i].polyAT = p
		}
	}
}

func (e *Engine) SetTempo(bpm float32) {
	if bpm < 20 {
		bpm = 20
	}
	if bpm > 999 {
		bpm = 999
	}
	e.tempo.Store(bpm)
}

func (e *Engine) SetMacro(index int, value float32) {
	if index < 0 || index >= waveweaver.NumMacros {
		return
	}
	e.macros[index].Store(clampUnit(value))
}

// SetBio publishes the three bio-sensor scalars. Values arrive already
// normalized; cadence and authenticity are the sensor adapter's problem.
func (e *Engine) SetBio(hrv, coherence, breath float32) {
	e.bioHRV.Store(clampUnit(hrv))
	e.bioCoh.Store(clampUnit(coherence))
	e.bioBreath.Store(clampUnit(breath))
}

// Peak returns the most recent block's per-channel peak levels.
func (e *Engine) Peak() (l, r float32) { return e.peakL.Load(), e.peakR.Load() }

// RMS returns the most recent block's per-channel mean absolute levels.
func (e *Engine) RMS() (l, r float32) { return e.rmsL.Load(), e.rmsR.Load() }

// Render fills the buffer with audio. Must only be called from one
// goroutine; processes in chunks of at most the prepared block size.
func (e *Engine) Render(buffer waveweaver.AudioBuffer) (renderError error) {
	if !e.prepared {
		return errors.New("engine.Render called before Prepare")
	}
	defer func() {
		if err := recover(); err != nil {
			renderError = fmt.Errorf("render panicked: %v", err)
		}
	}()
	for len(buffer) > 0 {
		n := len(buffer)
		if n > e.maxBlock {
			n = e.maxBlock
		}
		e.renderBlock(buffer[:n])
		buffer = buffer[n:]
	}
	return nil
}

func (e *Engine) renderBlock(buf waveweaver.AudioBuffer) {
	p := e.patch.Load()
	tempo := e.tempo.Load()

	if p.NumVoices != e.prevCount {
		// Voices above a lowered count would keep their state without
		// rendering, and their note-offs have already been consumed.
		for i := p.NumVoices; i < e.prevCount; i++ {
			e.voices[i].hardStop()
		}
		e.prevCount = p.NumVoices
	}

	// Block-rate control resolution. LFO rate modulation reads the previous
	// block's cache, everything else this block's. This runs before the
	// event drain so voices triggered below pick up this block's envelope
	// timing.
	for i := range e.lfos {
		rateScale := float32(1)
		if i < 4 {
			rateScale = math32.Exp2(2 * e.mod.get(waveweaver.DestLFO1Rate+waveweaver.ModDest(i)))
		}
		e.lfoOut[i] = e.lfos[i].next(&p.LFOs[i], rateScale, tempo, len(buf), e.sampleRate)
	}
	e.fillSources(p)
	e.mod.resolve(p, &e.sources)
	e.vector.resolve(&p.Vector, &e.store, &e.mod, &e.lfoOut)
	bendMul := math32.Exp2(e.pitchBend.Load() * p.BendRange / 12)
	tuneMul := math32.Exp2(p.MasterTune / 1200)
	for i := range e.oscBlocks {
		e.oscBlocks[i].resolve(&p.Oscillators[i], &e.store, &e.mod, i, bendMul, tuneMul)
	}
	e.subBlk.resolve(&p.Sub)
	e.noiseBlk.resolve(&p.Noise)
	attackScale := math32.Exp2(2 * e.mod.get(waveweaver.DestAmpAttack))
	releaseScale := math32.Exp2(2 * e.mod.get(waveweaver.DestAmpRelease))
	for i := range e.envBlocks {
		as, rs := float32(1), float32(1)
		if i == waveweaver.AmpEnvelope {
			as, rs = attackScale, releaseScale
		}
		e.envBlocks[i].resolve(&p.Envelopes[i], as, rs)
	}
	arpOn := p.Arp.Mode != waveweaver.ArpOff
	if e.prevArpOn != arpOn {
		// A mode flip strands whatever the previous mode left sounding.
		e.releaseAll()
		e.prevArpOn = arpOn
	}
	e.events.drain(func(ev noteEvent) {
		switch ev.kind {
		case eventNoteOn:
			e.arp.noteOn(ev.note, ev.velocity)
			if !arpOn {
				e.triggerNote(p, ev.note, ev.channel, ev.velocity)
			}
		case eventNoteOff:
			e.arp.noteOff(ev.note)
			if !arpOn {
				e.releaseNote(p, ev.note)
			}
		}
	})
	if arpOn {
		e.arp.advance(&p.Arp, tempo, e.sampleRate, len(buf),
			func(note, velocity byte) { e.triggerNote(p, note, 0, velocity) },
			func(note byte) { e.releaseNote(p, note) })
	}

	ampMod := e.mod.get(waveweaver.DestAmp)
	panMod := clampSym(e.mod.get(waveweaver.DestPan))
	ampGain := 1 + ampMod
	if ampGain < 0 {
		ampGain = 0
	}
	panL, panR := float32(1), float32(1)
	if panMod > 0 {
		panL = 1 - panMod
	} else if panMod < 0 {
		panR = 1 + panMod
	}

	for i := range buf {
		buf[i][0] = 0
		buf[i][1] = 0
	}
	for vi := range e.voices[:p.NumVoices] {
		v := &e.voices[vi]
		if !v.active() {
			continue
		}
		for fi := range e.filterBlks {
			e.filterBlks[fi].resolve(&p.Filters[fi], &e.mod, fi, v.note, v.velocity)
		}
		for i := range buf {
			v.glide(p.Portamento, e.sampleRate)
			amp := v.envs[waveweaver.AmpEnvelope].next(&e.envBlocks[waveweaver.AmpEnvelope], e.sampleRate)
			filterEnv := v.envs[waveweaver.FilterEnvelope].next(&e.envBlocks[waveweaver.FilterEnvelope], e.sampleRate)
			for ei := 2; ei < waveweaver.NumEnvelopes; ei++ {
				v.envs[ei].next(&e.envBlocks[ei], e.sampleRate)
			}
			if amp == 0 && !v.active() {
				break
			}
			var l, r float32
			for oi := range e.oscBlocks {
				ol, or := e.oscBlocks[oi].render(&v.osc[oi], v.curFreq, e.invSampleRate, &e.vector)
				l += ol
				r += or
			}
			mono := e.subBlk.render(&v.sub, v.curFreq, e.invSampleRate) + e.noiseBlk.render(&v.noise)
			l += mono
			r += mono
			l, r = v.filters[0].process(&e.filterBlks[0], filterEnv, l, r, e.sampleRate)
			l, r = v.filters[1].process(&e.filterBlks[1], filterEnv, l, r, e.sampleRate)
			gain := amp * v.velocity * ampGain
			buf[i][0] += l * gain * panL
			buf[i][1] += r * gain * panR
		}
	}

	e.effects.process(&p.Effects, &e.mod, tempo, buf)
	vol := p.MasterVolume
	for i := range buf {
		buf[i][0] *= vol
		buf[i][1] *= vol
	}
	e.meter(buf)
}

// fillSources snapshots every modulation source for this block. Per-voice
// sources read the most recently triggered active voice.
func (e *Engine) fillSources(p *waveweaver.Patch) {
	s := &e.sources
	s.lfo = e.lfoOut
	s.pitchBend = e.pitchBend.Load()
	s.modWheel = e.modWheel.Load()
	s.aftertouch = e.aftertouch.Load()
	s.bioHRV = e.bioHRV.Load()
	s.bioCoh = e.bioCoh.Load()
	s.bioBreath = e.bioBreath.Load()
	if p.MPEEnabled {
		s.slide = e.slide.Load()
		s.pressure = e.pressure.Load()
		s.lift = e.lift.Load()
	} else {
		s.slide, s.pressure, s.lift = 0, 0, 0
	}
	for i := range s.macroValues {
		s.macroValues[i] = e.macros[i].Load()
	}
	s.vectorX = e.vector.x
	s.vectorY = e.vector.y
	var newest *voice
	for i := range e.voices[:p.NumVoices] {
		v := &e.voices[i]
		if v.active() && (newest == nil || v.age > newest.age) {
			newest = v
		}
	}
	if newest == nil {
		s.env = [waveweaver.NumEnvelopes]float32{}
		s.velocity = 0
		s.keyTrack = 0
		s.noteRand = 0
		s.polyAT = 0
		return
	}
	for i := range s.env {
		s.env[i] = newest.envs[i].value
	}
	s.velocity = newest.velocity
	s.keyTrack = (float32(newest.note) - 60) / 64
	s.noteRand = newest.noteRand
	s.polyAT = newest.polyAT
}

func (e *Engine) triggerNote(p *waveweaver.Patch, note, channel, velocity byte) {
	v := allocVoice(e.voices[:p.NumVoices])
	if v == nil {
		return
	}
	e.ageCounter++
	v.trigger(p, &e.envBlocks, note, channel, float32(velocity)/127, e.ageCounter, e.lastFreq, e.sampleRate, &e.randSeed)
	e.lastFreq = v.baseFreq
}

func (e *Engine) releaseNote(p *waveweaver.Patch, note byte) {
	for i := range e.voices[:p.NumVoices] {
		v := &e.voices[i]
		if v.active() && !v.stolen && v.note == note && !v.releasing() {
			v.release(&e.envBlocks, e.sampleRate)
		}
	}
}

func (e *Engine) releaseAll() {
	for i := range e.voices {
		if e.voices[i].active() {
			e.voices[i].release(&e.envBlocks, e.sampleRate)
		}
	}
}

// meter updates the peak and mean-absolute level readouts for the block.
func (e *Engine) meter(buf waveweaver.AudioBuffer) {
	n := len(buf)
	if n == 0 || n > len(e.meterL) {
		return
	}
	for i := range buf {
		e.meterL[i] = buf[i][0]
		e.meterR[i] = buf[i][1]
	}
	vek32.Abs_Into(e.meterScratch[:n], e.meterL[:n])
	e.peakL.Store(vek32.Max(e.meterScratch[:n]))
	e.rmsL.Store(vek32.Mean(e.meterScratch[:n]))
	vek32.Abs_Into(e.meterScratch[:n], e.meterR[:n])
	e.peakR.Store(vek32.Max(e.meterScratch[:n]))
	e.rmsR.Store(vek32.Mean(e.meterScratch[:n]))
}

var _ waveweaver.Synth = (*Engine)(nil)
