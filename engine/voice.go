package engine

import (
	"github.com/chewxy/math32"

	"github.com/tmaarne/waveweaver"
)

// voice is the ephemeral state of one sounding note. Everything here is
// owned by the audio thread.
type voice struct {
	note     byte
	channel  byte
	velocity float32
	age      uint64 // trigger ordinal, for oldest-first stealing
	stolen   bool   // note-off for this note is a no-op until retrigger

	baseFreq float32 // glide target in Hz
	curFreq  float32 // current frequency after portamento
	noteRand float32
	polyAT   float32

	osc     [waveweaver.NumOscillators]oscState
	sub     subState
	noise   noiseState
	envs    [waveweaver.NumEnvelopes]envState
	filters [waveweaver.NumFilters]filterState
}

func noteToFreq(note byte) float32 {
	return 440 * math32.Exp2((float32(note)-69)/12)
}

func (v *voice) active() bool {
	return v.envs[waveweaver.AmpEnvelope].active()
}

func (v *voice) releasing() bool {
	return v.envs[waveweaver.AmpEnvelope].releasing()
}

func (v *voice) prepare(sampleRate float32) {
	for i := range v.filters {
		v.filters[i].prepare(sampleRate)
	}
}

// trigger starts the voice for a note. lastFreq carries the previous
// voice frequency so portamento can glide from it; zero means no glide
// source and the voice starts on pitch.
func (v *voice) trigger(p *waveweaver.Patch, env *[waveweaver.NumEnvelopes]envBlock, note, channel byte, velocity float32, age uint64, lastFreq, sampleRate float32, randSeed *uint32) {
	v.note = note
	v.channel = channel
	v.velocity = velocity
	v.age = age
	v.stolen = false
	v.baseFreq = noteToFreq(note)
	v.curFreq = v.baseFreq
	if p.Portamento > 0 && lastFreq > 0 {
		v.curFreq = lastFreq
	}
	*randSeed *= 16007
	v.noteRand = float32(*randSeed) / float32(1<<32)
	v.polyAT = 0
	for i := range v.osc {
		v.osc[i].initPhases(&p.Oscillators[i])
	}
	v.sub.phase = 0
	for i := range v.envs {
		v.envs[i].trigger(&env[i], sampleRate)
	}
	for i := range v.filters {
		v.filters[i].reset()
	}
}

// release enters the release stage of every envelope (tail-off).
func (v *voice) release(env *[waveweaver.NumEnvelopes]envBlock, sampleRate float32) {
	for i := range v.envs {
		v.envs[i].release(&env[i], sampleRate)
	}
}

// hardStop silences the voice within the current sample and makes it
// immediately reusable. No tail is rendered.
func (v *voice) hardStop() {
	for i := range v.envs {
		v.envs[i].hardStop()
	}
	v.stolen = true
}

// glide advances portamento one sample toward the target frequency.
func (v *voice) glide(portamento, sampleRate float32) {
	if v.curFreq == v.baseFreq {
		return
	}
	if portamento <= 0 {
		v.curFreq = v.baseFreq
		return
	}
	// Exponential approach covering most of the distance in the glide time.
	coeff := 5 / (portamento * sampleRate)
	if coeff > 1 {
		coeff = 1
	}
	v.curFreq += (v.baseFreq - v.curFreq) * coeff
	if math32.Abs(v.baseFreq-v.curFreq) < 0.01 {
		v.curFreq = v.baseFreq
	}
}

// allocVoice picks the voice for a new note: a free voice if one exists,
// otherwise steal, preferring a voice already in release, else the oldest.
// Stolen voices are hard-stopped so they are free by the time the caller
// triggers them.
func allocVoice(voices []voice) *voice {
	for i := range voices {
		if !voices[i].active() {
			return &voices[i]
		}
	}
	var steal *voice
	for i := range voices {
		v := &voices[i]
		if v.releasing() {
			if steal == nil || !steal.releasing() || v.age < steal.age {
				steal = v
			}
		} else if steal == nil || (!steal.releasing() && v.age < steal.age) {
			steal = v
		}
	}
	if steal != nil {
		steal.hardStop()
	}
	return steal
}
