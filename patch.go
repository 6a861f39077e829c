package waveweaver

// Capacity limits of the engine. These are fixed so that the render path can
// use plain arrays and never allocate; patches may use fewer of everything.
const (
	NumOscillators    = 2
	MaxUnison         = 16
	NumFilters        = 2
	NumEnvelopes      = 4
	NumLFOs           = 8
	MaxModRoutes      = 16
	NumMacros         = 8
	MaxMacroTargets   = 8
	NumWavetableSlots = 16
	MaxVoices         = 32
	NumEffectSlots    = 4
)

// WavetableFrames and WavetableSize fix the dimensions of every wavetable
// grid: 256 single-cycle frames of 2048 samples each. Imported audio is
// resampled into this grid; oscillators read it with bilinear interpolation.
const (
	WavetableFrames = 256
	WavetableSize   = 2048
)

// Envelope indices with a fixed role. The remaining envelopes are free
// modulation sources.
const (
	AmpEnvelope    = 0
	FilterEnvelope = 1
)

type (
	// Patch is the serializable aggregate of everything a sound needs except
	// the wavetable sample data itself; wavetables are referenced by slot
	// index. A Patch round-trips through YAML byte-for-byte.
	Patch struct {
		Name      string `yaml:",omitempty"`
		NumVoices int

		MasterVolume float32 // linear gain, 0..2
		MasterTune   float32 // cents, -100..100
		BendRange    float32 // semitones, 0..24
		Portamento   float32 // glide time in seconds, 0 = off
		MPEEnabled   bool    `yaml:"mpeenabled,omitempty"`

		Oscillators [NumOscillators]Oscillator
		Sub         SubOscillator
		Noise       Noise
		Vector      VectorPad
		Filters     [NumFilters]Filter
		Envelopes   [NumEnvelopes]Envelope
		LFOs        [NumLFOs]LFO `yaml:"lfos"`

		Routes []ModRoute       `yaml:",omitempty"`
		Macros [NumMacros]Macro `yaml:",flow"`
		CCMap  []CCMapping      `yaml:"ccmap,omitempty"`

		Effects EffectsChain
		Arp     Arpeggiator
	}

	// Oscillator is the configuration of one wavetable oscillator slot. The
	// audio thread only ever reads it; all writes go through the control
	// thread and a full patch swap.
	Oscillator struct {
		Enabled   bool
		Wavetable int     // wavetable store slot
		FramePos  float32 // read position along the frame axis, 0..1
		Level     float32 // 0..1
		Pan       float32 // -1..1
		Semitones int     // -48..48
		Cents     float32 // -100..100
		Unison    int     // number of detuned sub-oscillators, 1..16
		Detune    float32 // unison detune spread in cents, 0..100
		Spread    float32 // unison stereo spread, 0..1
		Phase     float32 // start phase, 0..1
		UseVector bool    `yaml:"usevector,omitempty"` // read the vector pad instead of the own slot
	}

	// SubOscillator is a plain sine one or two octaves below oscillator 1.
	SubOscillator struct {
		Enabled bool
		Level   float32 // 0..1
		Octave  int     // -1 or -2
	}

	// Noise is a white noise source with a one-pole color filter; color 0 is
	// white, 1 is heavily lowpassed.
	Noise struct {
		Enabled bool
		Level   float32 // 0..1
		Color   float32 // 0..1
	}

	// VectorPad blends four wavetable corners by 2-D position. Corner order
	// is (0,0), (1,0), (0,1), (1,1). XLFO/YLFO are 1-based LFO numbers that
	// drive the position on top of the static placement; 0 means none.
	VectorPad struct {
		X, Y    float32         // 0..1
		Corners [4]VectorCorner `yaml:",flow"`
		XLFO    int             `yaml:"xlfo,omitempty"`
		YLFO    int             `yaml:"ylfo,omitempty"`
	}

	VectorCorner struct {
		Wavetable int
		FramePos  float32
	}

	// Filter configures one of the two per-voice filter slots.
	Filter struct {
		Model     FilterModel
		Cutoff    float32 // Hz, 20..20000
		Resonance float32 // 0..1, asymptotically approaches self-oscillation
		KeyTrack  float32 // 0..1, cutoff scaling by note offset from middle C
		EnvAmount float32 // -1..1, amount of the filter envelope
		Morph     float32 // 0..1, vowel morph for the formant model
		Accent    float32 // 0..1, velocity-scaled resonance spike for the acid model
	}

	// Envelope is an ADSR with times in seconds and sustain as a level. If
	// Stages is non-empty it overrides the ADSR with a multi-stage contour:
	// the segments are traversed in order on note-on and Release still
	// applies on note-off.
	Envelope struct {
		Attack  float32    // seconds
		Decay   float32    // seconds
		Sustain float32    // level 0..1
		Release float32    // seconds
		Stages  []EnvStage `yaml:",flow,omitempty"`
	}

	EnvStage struct {
		Target float32 // level 0..1
		Time   float32 // seconds
	}

	// LFO is one low-frequency oscillator. If SyncBeats is nonzero the rate
	// is tempo-synced to one cycle per SyncBeats beats, otherwise Rate is in
	// Hz. Steps is only used by the staircase shape.
	LFO struct {
		Shape     LFOShape
		Rate      float32 // Hz, 0..50
		SyncBeats float32 `yaml:"syncbeats,omitempty"` // beats per cycle, 0 = free-running
		Depth     float32 // 0..1
		FadeIn    float32 `yaml:"fadein,omitempty"` // seconds
		Steps     int     `yaml:",omitempty"`       // staircase step count, 2..16
	}

	// ModRoute is one (source, destination, amount) entry of the modulation
	// matrix. Route order has no semantic effect; all routes targeting the
	// same destination are summed.
	ModRoute struct {
		Source ModSource
		Dest   ModDest
		Amount float32 // -1..1
	}

	// Macro is a single control value fanned out to up to 8 destinations.
	// Its contribution is additive with matrix routes and other macros.
	Macro struct {
		Value   float32       // 0..1
		Targets []MacroTarget `yaml:",flow,omitempty"`
	}

	MacroTarget struct {
		Dest   ModDest
		Amount float32 // -1..1
	}

	// CCMapping routes an incoming MIDI controller to a macro (1-based) or a
	// bio parameter ("hrv", "coherence" or "breath"). Exactly one of Macro
	// and Bio should be set.
	CCMapping struct {
		CC    int
		Macro int    `yaml:",omitempty"`
		Bio   string `yaml:",omitempty"`
	}
)

type FilterModel int

const (
	FilterBypass FilterModel = iota
	FilterLowPass12
	FilterLowPass24
	FilterHighPass12
	FilterHighPass24
	FilterBandPass
	FilterNotch
	FilterComb
	FilterLadder
	FilterDiodeLadder
	FilterStateVariable
	FilterFormant
	FilterAcid
	numFilterModels
)

type LFOShape int

const (
	LFOSine LFOShape = iota
	LFOTriangle
	LFOSaw
	LFOSquare
	LFOSampleHold
	LFOStaircase
	LFOExpRise
	LFOExpFall
	LFOSmoothRandom
	LFOChaos
	numLFOShapes
)

// ModSource enumerates everything the modulation router can read. Bio
// sources are externally pushed scalars; the router treats them exactly like
// any other source.
type ModSource int

const (
	SourceNone ModSource = iota
	SourceLFO1
	SourceLFO2
	SourceLFO3
	SourceLFO4
	SourceLFO5
	SourceLFO6
	SourceLFO7
	SourceLFO8
	SourceEnv1
	SourceEnv2
	SourceEnv3
	SourceEnv4
	SourceVelocity
	SourcePitchBend
	SourceModWheel
	SourceAftertouch
	SourcePolyAftertouch
	SourceKeyTrack
	SourceNoteRandom
	SourceVectorX
	SourceVectorY
	SourceSlide
	SourcePressure
	SourceLift
	SourceBioHRV
	SourceBioCoherence
	SourceBioBreath
	SourceMacro1
	SourceMacro2
	SourceMacro3
	SourceMacro4
	SourceMacro5
	SourceMacro6
	SourceMacro7
	SourceMacro8
	NumModSources
)

// ModDest enumerates the fixed destination slots of the router cache.
type ModDest int

const (
	DestNone ModDest = iota
	DestOsc1Pitch
	DestOsc2Pitch
	DestOsc1Frame
	DestOsc2Frame
	DestOsc1Level
	DestOsc2Level
	DestOsc1Pan
	DestOsc2Pan
	DestVectorX
	DestVectorY
	DestFilter1Cutoff
	DestFilter2Cutoff
	DestFilter1Res
	DestFilter2Res
	DestAmp
	DestPan
	DestAmpAttack
	DestAmpRelease
	DestLFO1Rate
	DestLFO2Rate
	DestLFO3Rate
	DestLFO4Rate
	DestDistortionDrive
	DestChorusDepth
	DestDelayFeedback
	DestReverbSize
	NumModDests
)

type (
	// EffectsChain is the fixed four-slot post-voice chain. Order is a
	// permutation of the slot indices below; the same slot cannot run twice.
	EffectsChain struct {
		Order      [NumEffectSlots]int `yaml:",flow"`
		Distortion Distortion
		Chorus     Chorus
		Delay      Delay
		Reverb     Reverb
	}

	Distortion struct {
		Enabled bool
		Type    DistortionType
		Drive   float32 // 0..1
		Tone    float32 // 0..1, tone filter cutoff normalized
		PostEQ  bool    `yaml:"posteq,omitempty"` // tone filter after the shaper instead of before
		Mix     float32 // 0..1
	}

	Chorus struct {
		Enabled  bool
		Voices   int     // 2 or 4 modulated delay lines
		Rate     float32 // LFO Hz, 0.05..5
		Depth    float32 // 0..1
		Feedback float32 // 0..0.9
		Mix      float32 // 0..1
	}

	// Delay keeps independent left/right lines. If SyncBeatsL/R are nonzero
	// the times are tempo-synced note divisions in beats, otherwise TimeL/R
	// are in seconds.
	Delay struct {
		Enabled    bool
		TimeL      float32 `yaml:"timel"` // seconds
		TimeR      float32 `yaml:"timer"` // seconds
		SyncBeatsL float32 `yaml:"syncbeatsl,omitempty"`
		SyncBeatsR float32 `yaml:"syncbeatsr,omitempty"`
		Feedback   float32 // 0..0.95
		Damp       float32 // 0..1, feedback lowpass amount
		Mix        float32 // 0..1
	}

	Reverb struct {
		Enabled  bool
		Size     float32 // 0..1
		Damp     float32 // 0..1
		Predelay float32 // seconds, 0..0.1
		Width    float32 // 0..1 stereo width
		Mix      float32 // 0..1
	}
)

// Effect slot indices used in EffectsChain.Order.
const (
	EffectDistortion = iota
	EffectChorus
	EffectDelay
	EffectReverb
)

type DistortionType int

const (
	DistortSoft DistortionType = iota
	DistortHard
	DistortFold
	DistortAsymmetric
	DistortBitcrush
	numDistortionTypes
)

type ArpMode int

const (
	ArpOff ArpMode = iota
	ArpUp
	ArpDown
	ArpUpDown
	ArpDownUp
	ArpRandom
	ArpAsPlayed
	ArpChord
	numArpModes
)

type ArpOctaveMode int

const (
	ArpOctaveOff ArpOctaveMode = iota
	ArpOctaveUp
	ArpOctaveDown
	ArpOctaveUpDown
	ArpOctaveTwoUp
	ArpOctaveThreeUp
	numArpOctaveModes
)

// Arpeggiator converts the held-note set into timed triggers. If Division is
// nonzero a step lasts Division beats at the engine tempo; otherwise
// FreeRate steps per second. Gate is the fraction of a step a note sounds.
// Swing delays every other step by a fraction of the step length.
type Arpeggiator struct {
	Mode       ArpMode
	OctaveMode ArpOctaveMode `yaml:"octavemode,omitempty"`
	Division   float32       // beats per step, e.g. 0.25 = 1/16
	FreeRate   float32       `yaml:"freerate,omitempty"` // steps per second when Division is 0
	Gate       float32       // 0..1
	Swing      float32       // 0..0.75
}

// Copy makes a deep copy of the patch.
func (p *Patch) Copy() Patch {
	ret := *p
	ret.Routes = make([]ModRoute, len(p.Routes))
	copy(ret.Routes, p.Routes)
	for i := range p.Macros {
		targets := make([]MacroTarget, len(p.Macros[i].Targets))
		copy(targets, p.Macros[i].Targets)
		ret.Macros[i].Targets = targets
	}
	for i := range p.Envelopes {
		if len(p.Envelopes[i].Stages) > 0 {
			stages := make([]EnvStage, len(p.Envelopes[i].Stages))
			copy(stages, p.Envelopes[i].Stages)
			ret.Envelopes[i].Stages = stages
		}
	}
	ret.CCMap = make([]CCMapping, len(p.CCMap))
	copy(ret.CCMap, p.CCMap)
	return ret
}

// Clamp forces every parameter into its documented range, in place.
// Out-of-range writes are never rejected on the control path; they are
// clamped here and by the engine when the patch is applied.
func (p *Patch) Clamp() {
	p.NumVoices = clampInt(p.NumVoices, 1, MaxVoices)
	p.MasterVolume = clamp(p.MasterVolume, 0, 2)
	p.MasterTune = clamp(p.MasterTune, -100, 100)
	p.BendRange = clamp(p.BendRange, 0, 24)
	p.Portamento = clamp(p.Portamento, 0, 10)
	for i := range p.Oscillators {
		o := &p.Oscillators[i]
		o.Wavetable = clampInt(o.Wavetable, 0, NumWavetableSlots-1)
		o.FramePos = clamp(o.FramePos, 0, 1)
		o.Level = clamp(o.Level, 0, 1)
		o.Pan = clamp(o.Pan, -1, 1)
		o.Semitones = clampInt(o.Semitones, -48, 48)
		o.Cents = clamp(o.Cents, -100, 100)
		o.Unison = clampInt(o.Unison, 1, MaxUnison)
		o.Detune = clamp(o.Detune, 0, 100)
		o.Spread = clamp(o.Spread, 0, 1)
		o.Phase = clamp(o.Phase, 0, 1)
	}
	p.Sub.Level = clamp(p.Sub.Level, 0, 1)
	p.Sub.Octave = clampInt(p.Sub.Octave, -2, -1)
	p.Noise.Level = clamp(p.Noise.Level, 0, 1)
	p.Noise.Color = clamp(p.Noise.Color, 0, 1)
	p.Vector.X = clamp(p.Vector.X, 0, 1)
	p.Vector.Y = clamp(p.Vector.Y, 0, 1)
	for i := range p.Vector.Corners {
		c := &p.Vector.Corners[i]
		c.Wavetable = clampInt(c.Wavetable, 0, NumWavetableSlots-1)
		c.FramePos = clamp(c.FramePos, 0, 1)
	}
	p.Vector.XLFO = clampInt(p.Vector.XLFO, 0, NumLFOs)
	p.Vector.YLFO = clampInt(p.Vector.YLFO, 0, NumLFOs)
	for i := range p.Filters {
		f := &p.Filters[i]
		if f.Model < 0 || f.Model >= numFilterModels {
			f.Model = FilterBypass
		}
		f.Cutoff = clamp(f.Cutoff, 20, 20000)
		f.Resonance = clamp(f.Resonance, 0, 1)
		f.KeyTrack = clamp(f.KeyTrack, 0, 1)
		f.EnvAmount = clamp(f.EnvAmount, -1, 1)
		f.Morph = clamp(f.Morph, 0, 1)
		f.Accent = clamp(f.Accent, 0, 1)
	}
	for i := range p.Envelopes {
		e := &p.Envelopes[i]
		e.Attack = clamp(e.Attack, 0, 30)
		e.Decay = clamp(e.Decay, 0, 30)
		e.Sustain = clamp(e.Sustain, 0, 1)
		e.Release = clamp(e.Release, 0, 30)
		for j := range e.Stages {
			e.Stages[j].Target = clamp(e.Stages[j].Target, 0, 1)
			e.Stages[j].Time = clamp(e.Stages[j].Time, 0, 30)
		}
	}
	for i := range p.LFOs {
		l := &p.LFOs[i]
		if l.Shape < 0 || l.Shape >= numLFOShapes {
			l.Shape = LFOSine
		}
		l.Rate = clamp(l.Rate, 0, 50)
		l.SyncBeats = clamp(l.SyncBeats, 0, 64)
		l.Depth = clamp(l.Depth, 0, 1)
		l.FadeIn = clamp(l.FadeIn, 0, 30)
		if l.Steps != 0 {
			l.Steps = clampInt(l.Steps, 2, 16)
		}
	}
	if len(p.Routes) > MaxModRoutes {
		p.Routes = p.Routes[:MaxModRoutes]
	}
	for i := range p.Routes {
		r := &p.Routes[i]
		if r.Source < 0 || r.Source >= NumModSources {
			r.Source = SourceNone
		}
		if r.Dest < 0 || r.Dest >= NumModDests {
			r.Dest = DestNone
		}
		r.Amount = clamp(r.Amount, -1, 1)
	}
	for i := range p.Macros {
		m := &p.Macros[i]
		m.Value = clamp(m.Value, 0, 1)
		if len(m.Targets) > MaxMacroTargets {
			m.Targets = m.Targets[:MaxMacroTargets]
		}
		for j := range m.Targets {
			if m.Targets[j].Dest < 0 || m.Targets[j].Dest >= NumModDests {
				m.Targets[j].Dest = DestNone
			}
			m.Targets[j].Amount = clamp(m.Targets[j].Amount, -1, 1)
		}
	}
	p.Effects.clamp()
	p.Arp.clamp()
}

func (c *EffectsChain) clamp() {
	if !isPermutation(c.Order) {
		c.Order = [NumEffectSlots]int{EffectDistortion, EffectChorus, EffectDelay, EffectReverb}
	}
	d := &c.Distortion
	if d.Type < 0 || d.Type >= numDistortionTypes {
		d.Type = DistortSoft
	}
	d.Drive = clamp(d.Drive, 0, 1)
	d.Tone = clamp(d.Tone, 0, 1)
	d.Mix = clamp(d.Mix, 0, 1)
	ch := &c.Chorus
	if ch.Voices != 2 && ch.Voices != 4 {
		ch.Voices = 2
	}
	ch.Rate = clamp(ch.Rate, 0.05, 5)
	ch.Depth = clamp(ch.Depth, 0, 1)
	ch.Feedback = clamp(ch.Feedback, 0, 0.9)
	ch.Mix = clamp(ch.Mix, 0, 1)
	dl := &c.Delay
	dl.TimeL = clamp(dl.TimeL, 0, 2)
	dl.TimeR = clamp(dl.TimeR, 0, 2)
	dl.SyncBeatsL = clamp(dl.SyncBeatsL, 0, 8)
	dl.SyncBeatsR = clamp(dl.SyncBeatsR, 0, 8)
	dl.Feedback = clamp(dl.Feedback, 0, 0.95)
	dl.Damp = clamp(dl.Damp, 0, 1)
	dl.Mix = clamp(dl.Mix, 0, 1)
	r := &c.Reverb
	r.Size = clamp(r.Size, 0, 1)
	r.Damp = clamp(r.Damp, 0, 1)
	r.Predelay = clamp(r.Predelay, 0, 0.1)
	r.Width = clamp(r.Width, 0, 1)
	r.Mix = clamp(r.Mix, 0, 1)
}

func (a *Arpeggiator) clamp() {
	if a.Mode < 0 || a.Mode >= numArpModes {
		a.Mode = ArpOff
	}
	if a.OctaveMode < 0 || a.OctaveMode >= numArpOctaveModes {
		a.OctaveMode = ArpOctaveOff
	}
	a.Division = clamp(a.Division, 0, 8)
	a.FreeRate = clamp(a.FreeRate, 0, 50)
	a.Gate = clamp(a.Gate, 0, 1)
	a.Swing = clamp(a.Swing, 0, 0.75)
}

func isPermutation(order [NumEffectSlots]int) bool {
	var seen [NumEffectSlots]bool
	for _, o := range order {
		if o < 0 || o >= NumEffectSlots || seen[o] {
			return false
		}
		seen[o] = true
	}
	return true
}

// DefaultPatch returns a sensible single-oscillator patch: full pool, plain
// ADSR amp envelope, filters and effects bypassed.
func DefaultPatch() Patch {
	p := Patch{
		Name:         "Init",
		NumVoices:    MaxVoices,
		MasterVolume: 1,
		BendRange:    2,
	}
	p.Oscillators[0] = Oscillator{
		Enabled: true,
		Level:   1,
		Unison:  1,
	}
	p.Oscillators[1].Unison = 1
	p.Sub.Octave = -1
	p.Envelopes[AmpEnvelope] = Envelope{Attack: 0.005, Decay: 0.1, Sustain: 0.8, Release: 0.2}
	p.Envelopes[FilterEnvelope] = Envelope{Attack: 0.01, Decay: 0.3, Sustain: 0.5, Release: 0.2}
	for i := range p.Filters {
		p.Filters[i].Cutoff = 20000
	}
	for i := range p.LFOs {
		p.LFOs[i].Rate = 1
		p.LFOs[i].Depth = 1
	}
	p.Effects.Order = [NumEffectSlots]int{EffectDistortion, EffectChorus, EffectDelay, EffectReverb}
	p.Effects.Chorus.Voices = 2
	p.Arp = Arpeggiator{Division: 0.25, Gate: 0.5}
	p.Clamp()
	return p
}

func clamp(value, min, max float32) float32 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
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
