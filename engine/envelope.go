package engine

import (
	"github.com/tmaarne/waveweaver"
)

type envPhase int

const (
	envOff envPhase = iota
	envAttack
	envDecay
	envSustain
	envStaged // traversing a multi-stage contour
	envHold   // multi-stage contour finished, holding last target
	envRelease
)

// envTolerance is how close the value must get to its target before the
// next stage starts; on transition the value snaps to the target exactly.
const envTolerance = 0.001

// envBlock is the per-block resolved envelope timing. The amp envelope's
// attack and release can be modulated, so the times are re-read each block
// and picked up whenever a stage is entered.
type envBlock struct {
	attack  float32
	decay   float32
	sustain float32
	release float32
	stages  []waveweaver.EnvStage
}

func (b *envBlock) resolve(cfg *waveweaver.Envelope, attackScale, releaseScale float32) {
	b.attack = cfg.Attack * attackScale
	b.decay = cfg.Decay
	b.sustain = cfg.Sustain
	b.release = cfg.Release * releaseScale
	b.stages = cfg.Stages
}

// envState is the per-voice state machine of one envelope. The increment is
// fixed at stage entry, so each segment is a linear ramp of
// (target - current) / (time * sampleRate) per sample. A stage with zero
// time jumps straight to its target.
type envState struct {
	phase  envPhase
	stage  int
	value  float32
	target float32
	inc    float32
}

func (e *envState) active() bool { return e.phase != envOff }

func (e *envState) releasing() bool { return e.phase == envRelease }

func (e *envState) trigger(b *envBlock, sampleRate float32) {
	e.value = 0
	if len(b.stages) > 0 {
		e.stage = 0
		e.phase = envStaged
		e.enterStage(b, sampleRate)
		return
	}
	e.phase = envAttack
	e.enter(b, 1, b.attack, sampleRate)
}

func (e *envState) release(b *envBlock, sampleRate float32) {
	if e.phase == envOff || e.phase == envRelease {
		return
	}
	e.phase = envRelease
	e.enter(b, 0, b.release, sampleRate)
}

// hardStop silences the envelope within the current sample. Used by voice
// stealing and reset, where no tail is permitted.
func (e *envState) hardStop() {
	e.phase = envOff
	e.value = 0
	e.inc = 0
}

// enter starts a ramp toward target. Zero or negative time means the ramp
// is instantaneous: the value jumps and the following stage begins at once.
func (e *envState) enter(b *envBlock, target, time, sampleRate float32) {
	e.target = target
	if time <= 0 {
		e.value = target
		e.inc = 0
		e.advance(b, sampleRate)
		return
	}
	e.inc = (target - e.value) / (time * sampleRate)
}

func (e *envState) enterStage(b *envBlock, sampleRate float32) {
	for e.stage < len(b.stages) {
		s := b.stages[e.stage]
		e.target = s.Target
		if s.Time > 0 {
			e.inc = (s.Target - e.value) / (s.Time * sampleRate)
			return
		}
		e.value = s.Target
		e.stage++
	}
	e.phase = envHold
	e.inc = 0
}

// advance moves to the phase following the one whose target was just
// reached.
func (e *envState) advance(b *envBlock, sampleRate float32) {
	switch e.phase {
	case envAttack:
		e.phase = envDecay
		e.enter(b, b.sustain, b.decay, sampleRate)
	case envDecay:
		e.phase = envSustain
		e.inc = 0
	case envStaged:
		e.stage++
		e.enterStage(b, sampleRate)
	case envRelease:
		e.phase = envOff
		e.value = 0
		e.inc = 0
	}
}

// next advances the envelope one sample and returns its value, always in
// [0, 1].
func (e *envState) next(b *envBlock, sampleRate float32) float32 {
	switch e.phase {
	case envOff:
		return 0
	case envSustain, envHold:
		return e.value
	}
	// Stages entered with zero time in a previous block may still carry
	// inc 0 toward an already reached target; treat as reached.
	if e.inc == 0 && e.value == e.target {
		e.advance(b, sampleRate)
		return e.value
	}
	e.value += e.inc
	reached := (e.inc >= 0 && e.value >= e.target-envTolerance) ||
		(e.inc < 0 && e.value <= e.target+envTolerance)
	if reached {
		e.value = e.target
		e.advance(b, sampleRate)
	}
	if e.value < 0 {
		e.value = 0
	} else if e.value > 1 {
		e.value = 1
	}
	return e.value
}
