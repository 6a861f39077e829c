package engine

import (
	"github.com/chewxy/math32"

	"github.com/tmaarne/waveweaver"
)

// Reverb network tuning. Comb and allpass delays are in seconds; the right
// channel reads each line a fixed sample count later for stereo decorrelation.
var reverbCombTimes = [4]float32{0.0297, 0.0371, 0.0411, 0.0437}

var reverbAllpassTimes = [2]float32{0.005, 0.0017}

const (
	reverbStereoSpread  = 23 // samples
	reverbAllpassSpread = 7
	chorusBaseDelay     = 0.007 // seconds
	chorusModDepth      = 0.003
)

type effectsState struct {
	sampleRate float32
	distortion distortionState
	chorus     chorusState
	delay      delayState
	reverb     reverbState
}

func (e *effectsState) prepare(sampleRate float32) {
	e.sampleRate = sampleRate
	e.chorus.prepare(sampleRate)
	e.delay.prepare(sampleRate)
	e.reverb.prepare(sampleRate)
}

func (e *effectsState) reset() {
	e.distortion = distortionState{}
	e.chorus.reset()
	e.delay.reset()
	e.reverb.reset()
}

// process runs the enabled effects over the block in the configured slot
// order. The buffer is modified in place.
func (e *effectsState) process(cfg *waveweaver.EffectsChain, mod *modCache, tempo float32, buf waveweaver.AudioBuffer) {
	for _, slot := range cfg.Order {
		switch slot {
		case waveweaver.EffectDistortion:
			if cfg.Distortion.Enabled {
				e.distortion.process(&cfg.Distortion, mod, buf, e.sampleRate)
			}
		case waveweaver.EffectChorus:
			if cfg.Chorus.Enabled {
				e.chorus.process(&cfg.Chorus, mod, buf, e.sampleRate)
			}
		case waveweaver.EffectDelay:
			if cfg.Delay.Enabled {
				e.delay.process(&cfg.Delay, mod, tempo, buf, e.sampleRate)
			}
		case waveweaver.EffectReverb:
			if cfg.Reverb.Enabled {
				e.reverb.process(&cfg.Reverb, mod, buf, e.sampleRate)
			}
		}
	}
}

type distortionState struct {
	toneL, toneR float32
}

func (d *distortionState) process(cfg *waveweaver.Distortion, mod *modCache, buf waveweaver.AudioBuffer, sampleRate float32) {
	drive := clampUnit(cfg.Drive + mod.get(waveweaver.DestDistortionDrive))
	gain := 1 + drive*15
	// One-pole tone filter; Tone 1 leaves the signal untouched.
	toneCoeff := 0.05 + 0.95*cfg.Tone
	mix := cfg.Mix
	for i := range buf {
		l, r := buf[i][0], buf[i][1]
		wl, wr := l, r
		if !cfg.PostEQ {
			d.toneL += toneCoeff * (wl - d.toneL)
			d.toneR += toneCoeff * (wr - d.toneR)
			wl, wr = d.toneL, d.toneR
		}
		wl = shape(cfg.Type, wl*gain, drive)
		wr = shape(cfg.Type, wr*gain, drive)
		if cfg.PostEQ {
			d.toneL += toneCoeff * (wl - d.toneL)
			d.toneR += toneCoeff * (wr - d.toneR)
			wl, wr = d.toneL, d.toneR
		}
		buf[i][0] = l + (wl-l)*mix
		buf[i][1] = r + (wr-r)*mix
	}
	d.toneL = flushDenorm(d.toneL)
	d.toneR = flushDenorm(d.toneR)
}

func shape(t waveweaver.DistortionType, x, drive float32) float32 {
	switch t {
	case waveweaver.DistortSoft:
		return math32.Tanh(x)
	case waveweaver.DistortHard:
		return clampSym(x)
	case waveweaver.DistortFold:
		// Triangle fold back into [-1, 1].
		x = (x + 1) / 4
		x -= math32.Floor(x)
		return math32.Abs(x*4-2) - 1
	case waveweaver.DistortAsymmetric:
		return math32.Tanh(x+0.3) - math32.Tanh(0.3)
	case waveweaver.DistortBitcrush:
		levels := math32.Exp2(16 - drive*14)
		return math32.Floor(clampSym(x)*levels) / levels
	}
	return x
}

type chorusState struct {
	buf   [2][]float32
	pos   int
	phase float32
	fbL   float32
	fbR   float32
}

func (c *chorusState) prepare(sampleRate float32) {
	n := int(sampleRate * 0.05)
	c.buf[0] = make([]float32, n)
	c.buf[1] = make([]float32, n)
	c.pos = 0
}

func (c *chorusState) reset() {
	for ch := range c.buf {
		for i := range c.buf[ch] {
			c.buf[ch][i] = 0
		}
	}
	c.pos = 0
	c.phase = 0
	c.fbL, c.fbR = 0, 0
}

func (c *chorusState) process(cfg *waveweaver.Chorus, mod *modCache, buf waveweaver.AudioBuffer, sampleRate float32) {
	depth := clampUnit(cfg.Depth + mod.get(waveweaver.DestChorusDepth))
	voices := cfg.Voices
	if voices != 4 {
		voices = 2
	}
	inc := cfg.Rate / sampleRate
	norm := 1 / float32(voices)
	size := len(c.buf[0])
	for i := range buf {
		c.buf[0][c.pos] = buf[i][0] + c.fbL*cfg.Feedback
		c.buf[1][c.pos] = buf[i][1] + c.fbR*cfg.Feedback
		var wl, wr float32
		for v := 0; v < voices; v++ {
			// Evenly offset LFO phases; the right channel sits a quarter
			// cycle further along.
			ph := c.phase + float32(v)/float32(voices)
			dl := chorusBaseDelay + chorusModDepth*depth*(0.5+0.5*math32.Sin(2*math32.Pi*ph))
			dr := chorusBaseDelay + chorusModDepth*depth*(0.5+0.5*math32.Sin(2*math32.Pi*(ph+0.25)))
			wl += c.tap(0, dl*sampleRate, size)
			wr += c.tap(1, dr*sampleRate, size)
		}
		wl *= norm
		wr *= norm
		c.fbL, c.fbR = flushDenorm(wl), flushDenorm(wr)
		buf[i][0] += (wl - buf[i][0]) * cfg.Mix
		buf[i][1] += (wr - buf[i][1]) * cfg.Mix
		c.pos++
		if c.pos >= size {
			c.pos = 0
		}
		c.phase += inc
		c.phase -= math32.Floor(c.phase)
	}
}

// tap reads the delay line with linear interpolation.
func (c *chorusState) tap(ch int, delay float32, size int) float32 {
	d := int(delay)
	frac := delay - float32(d)
	if d >= size-1 {
		d = size - 2
	}
	p0 := c.pos - d
	if p0 < 0 {
		p0 += size
	}
	p1 := p0 - 1
	if p1 < 0 {
		p1 += size
	}
	return c.buf[ch][p0] + (c.buf[ch][p1]-c.buf[ch][p0])*frac
}

type delayState struct {
	buf   [2][]float32
	pos   int
	dampL float32
	dampR float32
}

func (d *delayState) prepare(sampleRate float32) {
	n := int(sampleRate*2) + 1
	d.buf[0] = make([]float32, n)
	d.buf[1] = make([]float32, n)
	d.pos = 0
}

func (d *delayState) reset() {
	for ch := range d.buf {
		for i := range d.buf[ch] {
			d.buf[ch][i] = 0
		}
	}
	d.pos = 0
	d.dampL, d.dampR = 0, 0
}

func (d *delayState) process(cfg *waveweaver.Delay, mod *modCache, tempo float32, buf waveweaver.AudioBuffer, sampleRate float32) {
	timeL, timeR := cfg.TimeL, cfg.TimeR
	if cfg.SyncBeatsL > 0 {
		timeL = cfg.SyncBeatsL * 60 / tempo
	}
	if cfg.SyncBeatsR > 0 {
		timeR = cfg.SyncBeatsR * 60 / tempo
	}
	size := len(d.buf[0])
	dl := clampInt(int(timeL*sampleRate), 1, size-1)
	dr := clampInt(int(timeR*sampleRate), 1, size-1)
	fb := clampUnit(cfg.Feedback + mod.get(waveweaver.DestDelayFeedback))
	if fb > 0.95 {
		fb = 0.95
	}
	dampCoeff := 1 - 0.9*cfg.Damp
	for i := range buf {
		rl := d.pos - dl
		if rl < 0 {
			rl += size
		}
		rr := d.pos - dr
		if rr < 0 {
			rr += size
		}
		wl, wr := d.buf[0][rl], d.buf[1][rr]
		// Feedback lowpass darkens each repeat.
		d.dampL += dampCoeff * (wl - d.dampL)
		d.dampR += dampCoeff * (wr - d.dampR)
		d.buf[0][d.pos] = flushDenorm(buf[i][0] + d.dampL*fb)
		d.buf[1][d.pos] = flushDenorm(buf[i][1] + d.dampR*fb)
		buf[i][0] += (wl - buf[i][0]) * cfg.Mix
		buf[i][1] += (wr - buf[i][1]) * cfg.Mix
		d.pos++
		if d.pos >= size {
			d.pos = 0
		}
	}
}

type reverbComb struct {
	buf  []float32
	pos  int
	damp float32
}

type reverbAllpass struct {
	buf []float32
	pos int
}

type reverbState struct {
	combs    [2][4]reverbComb
	allpass  [2][2]reverbAllpass
	predelay [2][]float32
	prePos   int
	modPhase float32
}

func (r *reverbState) prepare(sampleRate float32) {
	for ch := 0; ch < 2; ch++ {
		spread := ch * reverbStereoSpread
		for i := range r.combs[ch] {
			n := int(reverbCombTimes[i]*sampleRate) + spread
			r.combs[ch][i] = reverbComb{buf: make([]float32, n+8)}
		}
		for i := range r.allpass[ch] {
			n := int(reverbAllpassTimes[i]*sampleRate) + ch*reverbAllpassSpread
			r.allpass[ch][i] = reverbAllpass{buf: make([]float32, n)}
		}
		r.predelay[ch] = make([]float32, int(sampleRate*0.1)+1)
	}
	r.prePos = 0
}

func (r *reverbState) reset() {
	for ch := 0; ch < 2; ch++ {
		for i := range r.combs[ch] {
			c := &r.combs[ch][i]
			for j := range c.buf {
				c.buf[j] = 0
			}
			c.pos = 0
			c.damp = 0
		}
		for i := range r.allpass[ch] {
			a := &r.allpass[ch][i]
			for j := range a.buf {
				a.buf[j] = 0
			}
			a.pos = 0
		}
		for i := range r.predelay[ch] {
			r.predelay[ch][i] = 0
		}
	}
	r.prePos = 0
	r.modPhase = 0
}

func (r *reverbState) process(cfg *waveweaver.Reverb, mod *modCache, buf waveweaver.AudioBuffer, sampleRate float32) {
	size := clampUnit(cfg.Size + mod.get(waveweaver.DestReverbSize))
	fb := 0.7 + 0.28*size
	dampCoeff := 1 - 0.8*cfg.Damp
	preLen := clampInt(int(cfg.Predelay*sampleRate), 1, len(r.predelay[0])-1)
	modInc := 0.1 / sampleRate // slow comb-length modulation against metallic ringing
	for i := range buf {
		r.modPhase += modInc
		r.modPhase -= math32.Floor(r.modPhase)
		modOff := 2 + 2*math32.Sin(2*math32.Pi*r.modPhase)
		var wet [2]float32
		for ch := 0; ch < 2; ch++ {
			pre := r.predelay[ch]
			readPos := r.prePos - preLen
			if readPos < 0 {
				readPos += len(pre)
			}
			in := pre[readPos]
			pre[r.prePos] = buf[i][ch]
			var sum float32
			for k := range r.combs[ch] {
				c := &r.combs[ch][k]
				// Reading slightly ahead of the write head shortens the
				// line by the modulation offset; prepare reserved the
				// extra samples.
				rp := c.pos + int(modOff)
				if rp >= len(c.buf) {
					rp -= len(c.buf)
				}
				out := c.buf[rp]
				c.damp += dampCoeff * (out - c.damp)
				c.buf[c.pos] = flushDenorm(in + c.damp*fb)
				c.pos++
				if c.pos >= len(c.buf) {
					c.pos = 0
				}
				sum += out
			}
			for k := range r.allpass[ch] {
				a := &r.allpass[ch][k]
				delayed := a.buf[a.pos]
				a.buf[a.pos] = flushDenorm(sum + delayed*0.5)
				sum = delayed - sum*0.5
				a.pos++
				if a.pos >= len(a.buf) {
					a.pos = 0
				}
			}
			wet[ch] = sum * 0.25
		}
		r.prePos++
		if r.prePos >= len(r.predelay[0]) {
			r.prePos = 0
		}
		mid := (wet[0] + wet[1]) / 2
		wl := mid + (wet[0]-mid)*cfg.Width
		wr := mid + (wet[1]-mid)*cfg.Width
		buf[i][0] += (wl - buf[i][0]) * cfg.Mix
		buf[i][1] += (wr - buf[i][1]) * cfg.Mix
	}
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
