package engine

import (
	"github.com/chewxy/math32"

	"github.com/tmaarne/waveweaver"
)

// Formant center frequencies, three peaks per vowel, morphed in the order
// A E I O U. Values follow the classic vocal formant tables.
var formantTable = [5][3]float32{
	{800, 1150, 2900}, // A
	{350, 2000, 2800}, // E
	{270, 2140, 2950}, // I
	{450, 800, 2830},  // O
	{325, 700, 2700},  // U
}

const (
	minCutoff    = 20
	nyquistRatio = 0.45 // cutoff ceiling as a fraction of the sample rate
	denormGuard  = 1e-24
)

// filterBlock is the per-block resolved configuration of one filter slot.
// The envelope contribution still varies per sample, so the cutoff is
// recomputed sample by sample from these cached terms.
type filterBlock struct {
	model      waveweaver.FilterModel
	baseCutoff float32 // Hz, key tracking already applied
	cutoffMod  float32 // router contribution, in octaves when multiplied by 4
	envAmount  float32
	resonance  float32 // 0..1 after modulation and accent
	morph      float32
}

func (b *filterBlock) resolve(cfg *waveweaver.Filter, mod *modCache, index int, note byte, velocity float32) {
	b.model = cfg.Model
	if b.model == waveweaver.FilterBypass {
		return
	}
	var cutoffMod, resMod float32
	if index == 0 {
		cutoffMod = mod.get(waveweaver.DestFilter1Cutoff)
		resMod = mod.get(waveweaver.DestFilter1Res)
	} else {
		cutoffMod = mod.get(waveweaver.DestFilter2Cutoff)
		resMod = mod.get(waveweaver.DestFilter2Res)
	}
	// Key tracking scales cutoff by the note's offset from middle C.
	keyMul := float32(1)
	if cfg.KeyTrack > 0 {
		keyMul = math32.Exp2(cfg.KeyTrack * float32(int(note)-60) / 12)
	}
	b.baseCutoff = cfg.Cutoff * keyMul
	b.cutoffMod = cutoffMod
	b.envAmount = cfg.EnvAmount
	res := cfg.Resonance + resMod
	if cfg.Model == waveweaver.FilterAcid {
		res += cfg.Accent * velocity * 0.5
	}
	// Asymptote limiting: resonance never quite reaches the value where
	// the feedback path blows up.
	b.resonance = clampUnit(res) * 0.995
	b.morph = cfg.Morph
}

// cutoff computes the per-sample cutoff in Hz from the cached terms and the
// filter envelope value, clamped away from both DC and Nyquist.
func (b *filterBlock) cutoff(env, sampleRate float32) float32 {
	fc := b.baseCutoff * math32.Exp2(4*(b.envAmount*env+b.cutoffMod))
	max := nyquistRatio * sampleRate
	if fc < minCutoff {
		return minCutoff
	}
	if fc > max {
		return max
	}
	return fc
}

// filterChannel is the numerical history of one stereo channel of one
// filter slot. The fields are reused across models; switching models
// mid-note restarts from whatever state is there, which settles within a
// few samples.
type filterChannel struct {
	x1, x2, y1, y2     float32 // biquad stage 1 (also formant peak 1)
	x1b, x2b, y1b, y2b float32 // biquad stage 2 (also formant peak 2)
	x1c, x2c, y1c, y2c float32 // formant peak 3
	s0, s1, s2, s3     float32 // ladder integrator states
	low, band          float32 // state-variable states
	comb               []float32
	combPos            int
}

type filterState struct {
	ch [2]filterChannel
}

// prepare sizes the comb delay lines for the sample rate. Runs off the
// audio thread.
func (f *filterState) prepare(sampleRate float32) {
	n := int(sampleRate/minCutoff) + 1
	for c := range f.ch {
		f.ch[c].comb = make([]float32, n)
		f.ch[c].combPos = 0
	}
}

func (f *filterState) reset() {
	for c := range f.ch {
		ch := &f.ch[c]
		comb := ch.comb
		*ch = filterChannel{comb: comb}
		for i := range comb {
			comb[i] = 0
		}
	}
}

// process filters one stereo sample. env is the filter envelope value for
// this sample.
func (f *filterState) process(b *filterBlock, env, inL, inR, sampleRate float32) (float32, float32) {
	if b.model == waveweaver.FilterBypass {
		return inL, inR
	}
	fc := b.cutoff(env, sampleRate)
	switch b.model {
	case waveweaver.FilterLowPass12, waveweaver.FilterLowPass24,
		waveweaver.FilterHighPass12, waveweaver.FilterHighPass24,
		waveweaver.FilterBandPass, waveweaver.FilterNotch:
		return f.biquad(b, fc, inL, sampleRate), f.biquadR(b, fc, inR, sampleRate)
	case waveweaver.FilterComb:
		return f.ch[0].combStep(b, fc, inL, sampleRate), f.ch[1].combStep(b, fc, inR, sampleRate)
	case waveweaver.FilterLadder:
		return f.ch[0].ladderStep(b, fc, inL, sampleRate, false), f.ch[1].ladderStep(b, fc, inR, sampleRate, false)
	case waveweaver.FilterDiodeLadder:
		return f.ch[0].ladderStep(b, fc, inL, sampleRate, true), f.ch[1].ladderStep(b, fc, inR, sampleRate, true)
	case waveweaver.FilterStateVariable:
		return f.ch[0].svfStep(b, fc, inL, sampleRate), f.ch[1].svfStep(b, fc, inR, sampleRate)
	case waveweaver.FilterFormant:
		return f.ch[0].formantStep(b, inL, sampleRate), f.ch[1].formantStep(b, inR, sampleRate)
	case waveweaver.FilterAcid:
		return f.ch[0].acidStep(b, fc, inL, sampleRate), f.ch[1].acidStep(b, fc, inR, sampleRate)
	}
	return inL, inR
}

func (f *filterState) biquad(b *filterBlock, fc, in, sampleRate float32) float32 {
	return f.ch[0].biquadStep(b, fc, in, sampleRate)
}

func (f *filterState) biquadR(b *filterBlock, fc, in, sampleRate float32) float32 {
	return f.ch[1].biquadStep(b, fc, in, sampleRate)
}

// biquadCoeffs computes RBJ cookbook coefficients, already normalized by
// a0.
func biquadCoeffs(model waveweaver.FilterModel, fc, q, sampleRate float32) (b0, b1, b2, a1, a2 float32) {
	w0 := 2 * math32.Pi * fc / sampleRate
	sinW, cosW := math32.Sin(w0), math32.Cos(w0)
	alpha := sinW / (2 * q)
	a0 := 1 + alpha
	switch model {
	case waveweaver.FilterLowPass12, waveweaver.FilterLowPass24:
		b1 = (1 - cosW) / a0
		b0 = b1 / 2
		b2 = b0
	case waveweaver.FilterHighPass12, waveweaver.FilterHighPass24:
		b1 = -(1 + cosW) / a0
		b0 = -b1 / 2
		b2 = b0
	case waveweaver.FilterNotch:
		b0 = 1 / a0
		b1 = -2 * cosW / a0
		b2 = b0
	case waveweaver.FilterBandPass:
		b0 = alpha / a0
		b1 = 0
		b2 = -b0
	}
	a1 = -2 * cosW / a0
	a2 = (1 - alpha) / a0
	return
}

func resonanceToQ(res float32) float32 {
	return 0.707 / (1 - 0.98*res)
}

func (ch *filterChannel) biquadStep(b *filterBlock, fc, in, sampleRate float32) float32 {
	q := resonanceToQ(b.resonance)
	b0, b1, b2, a1, a2 := biquadCoeffs(b.model, fc, q, sampleRate)
	out := b0*in + b1*ch.x1 + b2*ch.x2 - a1*ch.y1 - a2*ch.y2
	ch.x2, ch.x1 = ch.x1, in
	ch.y2, ch.y1 = ch.y1, flushDenorm(out)
	if b.model == waveweaver.FilterLowPass24 || b.model == waveweaver.FilterHighPass24 {
		in2 := out
		out = b0*in2 + b1*ch.x1b + b2*ch.x2b - a1*ch.y1b - a2*ch.y2b
		ch.x2b, ch.x1b = ch.x1b, in2
		ch.y2b, ch.y1b = ch.y1b, flushDenorm(out)
	}
	return out
}

func (ch *filterChannel) combStep(b *filterBlock, fc, in, sampleRate float32) float32 {
	delay := int(sampleRate / fc)
	if delay < 1 {
		delay = 1
	}
	if delay >= len(ch.comb) {
		delay = len(ch.comb) - 1
	}
	readPos := ch.combPos - delay
	if readPos < 0 {
		readPos += len(ch.comb)
	}
	out := in + b.resonance*ch.comb[readPos]
	ch.comb[ch.combPos] = flushDenorm(out)
	ch.combPos++
	if ch.combPos >= len(ch.comb) {
		ch.combPos = 0
	}
	return out * 0.5
}

// ladderStep runs a 4-pole ladder. The tuning polynomial follows the
// classic Stilson/Smith fit; diode mode saturates every stage and biases
// the shaper for asymmetric clipping.
func (ch *filterChannel) ladderStep(b *filterBlock, fc, in, sampleRate float32, diode bool) float32 {
	f := 2 * fc / sampleRate
	g := 0.9892*f - 0.4342*f*f + 0.1381*f*f*f - 0.0202*f*f*f*f
	k := 4 * b.resonance
	x := in - k*ch.s3
	if diode {
		x = math32.Tanh(1.2*x+0.1) - math32.Tanh(0.1)
		ch.s0 += g * (x - math32.Tanh(ch.s0))
		ch.s1 += g * (math32.Tanh(ch.s0) - math32.Tanh(ch.s1))
		ch.s2 += g * (math32.Tanh(ch.s1) - math32.Tanh(ch.s2))
		ch.s3 += g * (math32.Tanh(ch.s2) - math32.Tanh(ch.s3))
	} else {
		x = math32.Tanh(x)
		ch.s0 += g * (x - ch.s0)
		ch.s1 += g * (ch.s0 - ch.s1)
		ch.s2 += g * (ch.s1 - ch.s2)
		ch.s3 += g * (ch.s2 - ch.s3)
	}
	ch.s0 = flushDenorm(ch.s0)
	ch.s1 = flushDenorm(ch.s1)
	ch.s2 = flushDenorm(ch.s2)
	ch.s3 = flushDenorm(ch.s3)
	return ch.s3
}

// svfStep is a Chamberlin state-variable filter; morph blends the lowpass,
// bandpass and highpass taps.
func (ch *filterChannel) svfStep(b *filterBlock, fc, in, sampleRate float32) float32 {
	f := 2 * math32.Sin(math32.Pi*fc/sampleRate)
	if f > 1.5 {
		f = 1.5
	}
	damp := 2 * (1 - b.resonance)
	if damp < 0.02 {
		damp = 0.02
	}
	ch.low += f * ch.band
	high := in - ch.low - damp*ch.band
	ch.band += f * high
	ch.low = flushDenorm(ch.low)
	ch.band = flushDenorm(ch.band)
	m := b.morph
	if m < 0.5 {
		t := m * 2
		return ch.low*(1-t) + ch.band*t
	}
	t := (m - 0.5) * 2
	return ch.band*(1-t) + high*t
}

// formantStep runs three parallel bandpass peaks whose center frequencies
// morph through the vowel table.
func (ch *filterChannel) formantStep(b *filterBlock, in, sampleRate float32) float32 {
	pos := b.morph * float32(len(formantTable)-1)
	i := int(pos)
	if i >= len(formantTable)-1 {
		i = len(formantTable) - 2
	}
	t := pos - float32(i)
	f1 := formantTable[i][0] + (formantTable[i+1][0]-formantTable[i][0])*t
	f2 := formantTable[i][1] + (formantTable[i+1][1]-formantTable[i][1])*t
	f3 := formantTable[i][2] + (formantTable[i+1][2]-formantTable[i][2])*t
	q := 6 + 12*b.resonance
	b0, b1c, b2, a1, a2 := biquadCoeffs(waveweaver.FilterBandPass, f1, q, sampleRate)
	out1 := b0*in + b1c*ch.x1 + b2*ch.x2 - a1*ch.y1 - a2*ch.y2
	ch.x2, ch.x1 = ch.x1, in
	ch.y2, ch.y1 = ch.y1, flushDenorm(out1)
	b0, b1c, b2, a1, a2 = biquadCoeffs(waveweaver.FilterBandPass, f2, q, sampleRate)
	out2 := b0*in + b1c*ch.x1b + b2*ch.x2b - a1*ch.y1b - a2*ch.y2b
	ch.x2b, ch.x1b = ch.x1b, in
	ch.y2b, ch.y1b = ch.y1b, flushDenorm(out2)
	b0, b1c, b2, a1, a2 = biquadCoeffs(waveweaver.FilterBandPass, f3, q, sampleRate)
	out3 := b0*in + b1c*ch.x1c + b2*ch.x2c - a1*ch.y1c - a2*ch.y2c
	ch.x2c, ch.x1c = ch.x1c, in
	ch.y2c, ch.y1c = ch.y1c, flushDenorm(out3)
	return out1 + out2 + out3
}

// acidStep is a 2-pole resonant lowpass with a saturated feedback path,
// voiced for squelchy self-oscillation. The accent contribution is folded
// into the resonance when the block resolves.
func (ch *filterChannel) acidStep(b *filterBlock, fc, in, sampleRate float32) float32 {
	f := 2 * fc / sampleRate
	g := 0.9892*f - 0.4342*f*f + 0.1381*f*f*f - 0.0202*f*f*f*f
	k := 4 * b.resonance
	x := in - math32.Tanh(k*ch.s1)
	ch.s0 += g * (x - ch.s0)
	ch.s1 += g * (ch.s0 - ch.s1)
	ch.s0 = flushDenorm(ch.s0)
	ch.s1 = flushDenorm(ch.s1)
	return ch.s1
}

func flushDenorm(v float32) float32 {
	if v < denormGuard && v > -denormGuard {
		return 0
	}
	return v
}
