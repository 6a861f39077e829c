package engine

import (
	"github.com/tmaarne/waveweaver"
)

// modSources is the snapshot of every modulation source value for one
// block. The engine fills it before asking the router to resolve; all
// values are either bipolar [-1,1] or unipolar [0,1] depending on the
// source, exactly as they arrive.
type modSources struct {
	lfo        [waveweaver.NumLFOs]float32
	env        [waveweaver.NumEnvelopes]float32
	velocity   float32
	pitchBend  float32 // normalized, -1..1
	modWheel   float32
	aftertouch float32
	polyAT     float32
	keyTrack   float32 // note offset from middle C, normalized by 64
	noteRand   float32
	vectorX    float32
	vectorY    float32
	slide      float32
	pressure   float32
	lift       float32
	bioHRV     float32
	bioCoh     float32
	bioBreath  float32
	// Live macro values; the patch's own macro values only seed these, so
	// macro turns do not require a patch swap.
	macroValues [waveweaver.NumMacros]float32
}

func (s *modSources) eval(src waveweaver.ModSource) float32 {
	switch {
	case src >= waveweaver.SourceLFO1 && src <= waveweaver.SourceLFO8:
		return s.lfo[src-waveweaver.SourceLFO1]
	case src >= waveweaver.SourceEnv1 && src <= waveweaver.SourceEnv4:
		return s.env[src-waveweaver.SourceEnv1]
	case src >= waveweaver.SourceMacro1 && src <= waveweaver.SourceMacro8:
		return s.macroValues[src-waveweaver.SourceMacro1]
	}
	switch src {
	case waveweaver.SourceVelocity:
		return s.velocity
	case waveweaver.SourcePitchBend:
		return s.pitchBend
	case waveweaver.SourceModWheel:
		return s.modWheel
	case waveweaver.SourceAftertouch:
		return s.aftertouch
	case waveweaver.SourcePolyAftertouch:
		return s.polyAT
	case waveweaver.SourceKeyTrack:
		return s.keyTrack
	case waveweaver.SourceNoteRandom:
		return s.noteRand
	case waveweaver.SourceVectorX:
		return s.vectorX
	case waveweaver.SourceVectorY:
		return s.vectorY
	case waveweaver.SourceSlide:
		return s.slide
	case waveweaver.SourcePressure:
		return s.pressure
	case waveweaver.SourceLift:
		return s.lift
	case waveweaver.SourceBioHRV:
		return s.bioHRV
	case waveweaver.SourceBioCoherence:
		return s.bioCoh
	case waveweaver.SourceBioBreath:
		return s.bioBreath
	}
	return 0
}

// modCache is the per-block resolved destination table. Every matrix route
// and macro target contributes additively; the raw sums are stored and the
// read sites decide how a contribution maps onto their parameter.
type modCache struct {
	values [waveweaver.NumModDests]float32
}

func (c *modCache) get(dest waveweaver.ModDest) float32 {
	return c.values[dest]
}

// resolve recomputes the whole cache. Called once per block on the audio
// thread; allocation-free.
func (c *modCache) resolve(patch *waveweaver.Patch, src *modSources) {
	for i := range c.values {
		c.values[i] = 0
	}
	for i := range patch.Routes {
		r := &patch.Routes[i]
		if r.Dest <= waveweaver.DestNone || r.Dest >= waveweaver.NumModDests {
			continue
		}
		v := src.eval(r.Source)
		if v == 0 {
			continue
		}
		c.values[r.Dest] += v * r.Amount
	}
	for i := range patch.Macros {
		value := src.macroValues[i]
		if value == 0 {
			continue
		}
		for j := range patch.Macros[i].Targets {
			t := &patch.Macros[i].Targets[j]
			if t.Dest <= waveweaver.DestNone || t.Dest >= waveweaver.NumModDests {
				continue
			}
			c.values[t.Dest] += value * t.Amount
		}
	}
}
