package engine

import (
	"github.com/chewxy/math32"

	"github.com/tmaarne/waveweaver"
)

// lfoState holds one LFO's running state. LFOs are engine-global and
// evaluated at block rate; their phase still advances by rate / sampleRate
// per sample so block size does not change the perceived rate.
type lfoState struct {
	phase    float32
	fade     float32 // seconds since (re)trigger, for the fade-in ramp
	randSeed uint32
	held     float32 // current random draw, updated once per cycle
	prev     float32 // previous draw, for the smoothed-random shape
	chaos    float32 // logistic-map iterate in (0,1)
}

func (l *lfoState) reset() {
	l.phase = 0
	l.fade = 0
	if l.randSeed == 0 {
		l.randSeed = 17
	}
	if l.chaos <= 0 || l.chaos >= 1 {
		l.chaos = 0.618
	}
	l.draw()
}

// draw pulls the next random value in [-1, 1] and iterates the chaotic
// map. Called exactly once per cycle at phase wrap, never per sample.
func (l *lfoState) draw() {
	l.prev = l.held
	l.randSeed *= 16007
	l.held = float32(l.randSeed)/float32(1<<31) - 1
	l.chaos = 3.99 * l.chaos * (1 - l.chaos)
}

// next advances the LFO over a whole block and returns its bipolar output
// scaled by depth and the fade-in ramp. rateScale is the modulation
// router's rate multiplier, tempo the engine tempo in BPM.
func (l *lfoState) next(cfg *waveweaver.LFO, rateScale, tempo float32, samples int, sampleRate float32) float32 {
	rate := cfg.Rate
	if cfg.SyncBeats > 0 {
		rate = tempo / 60 / cfg.SyncBeats
	}
	rate *= rateScale
	dt := float32(samples) / sampleRate
	l.phase += rate * dt
	for l.phase >= 1 {
		l.phase--
		l.draw()
	}
	if l.phase < 0 {
		l.phase = 0
	}
	out := l.shape(cfg)
	gain := cfg.Depth
	if cfg.FadeIn > 0 {
		l.fade += dt
		if l.fade < cfg.FadeIn {
			gain *= l.fade / cfg.FadeIn
		}
	}
	return out * gain
}

func (l *lfoState) shape(cfg *waveweaver.LFO) float32 {
	p := l.phase
	switch cfg.Shape {
	case waveweaver.LFOSine:
		return math32.Sin(2 * math32.Pi * p)
	case waveweaver.LFOTriangle:
		return TriangleShape(p)
	case waveweaver.LFOSaw:
		return 2*p - 1
	case waveweaver.LFOSquare:
		if p < 0.5 {
			return 1
		}
		return -1
	case waveweaver.LFOSampleHold:
		return l.held
	case waveweaver.LFOStaircase:
		steps := cfg.Steps
		if steps < 2 {
			steps = 4
		}
		k := int(p * float32(steps))
		if k >= steps {
			k = steps - 1
		}
		return float32(k)/float32(steps-1)*2 - 1
	case waveweaver.LFOExpRise:
		return (math32.Exp(3*p)-1)/(math32.Exp(3)-1)*2 - 1
	case waveweaver.LFOExpFall:
		return (math32.Exp(3*(1-p))-1)/(math32.Exp(3)-1)*2 - 1
	case waveweaver.LFOSmoothRandom:
		// Cosine interpolation between the last two draws.
		t := (1 - math32.Cos(math32.Pi*p)) / 2
		return l.prev + (l.held-l.prev)*t
	case waveweaver.LFOChaos:
		return l.chaos*2 - 1
	}
	return 0
}
