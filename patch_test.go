package waveweaver_test

import (
	"bytes"
	"testing"

	"github.com/tmaarne/waveweaver"
)

func TestPatchRoundTrip(t *testing.T) {
	p := waveweaver.DefaultPatch()
	p.Name = "Round Trip"
	p.Routes = []waveweaver.ModRoute{
		{Source: waveweaver.SourceLFO1, Dest: waveweaver.DestFilter1Cutoff, Amount: 0.5},
		{Source: waveweaver.SourceVelocity, Dest: waveweaver.DestAmp, Amount: -0.25},
	}
	p.Macros[0].Value = 0.75
	p.Macros[0].Targets = []waveweaver.MacroTarget{
		{Dest: waveweaver.DestFilter1Cutoff, Amount: 0.5},
		{Dest: waveweaver.DestFilter1Res, Amount: 0.3},
	}
	p.Envelopes[2].Stages = []waveweaver.EnvStage{
		{Target: 1, Time: 0.1},
		{Target: 0.3, Time: 0.5},
		{Target: 0.8, Time: 1},
	}
	p.CCMap = []waveweaver.CCMapping{{CC: 71, Macro: 1}, {CC: 20, Bio: "breath"}}
	first, err := waveweaver.MarshalPatch(p)
	if err != nil {
		t.Fatalf("MarshalPatch failed: %v", err)
	}
	parsed, err := waveweaver.ParsePatch(first)
	if err != nil {
		t.Fatalf("ParsePatch failed: %v", err)
	}
	second, err := waveweaver.MarshalPatch(parsed)
	if err != nil {
		t.Fatalf("MarshalPatch of parsed patch failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("round trip not byte-identical:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestParsePatchRejectsUnknownFields(t *testing.T) {
	_, err := waveweaver.ParsePatch([]byte("name: broken\nbogusfield: 42\n"))
	if err == nil {
		t.Errorf("expected an error for unknown fields, got nil")
	}
}

func TestPatchClamp(t *testing.T) {
	p := waveweaver.DefaultPatch()
	p.NumVoices = 1000
	p.MasterVolume = -3
	p.Oscillators[0].Unison = 99
	p.Oscillators[0].Detune = 500
	p.Filters[0].Cutoff = 1e9
	p.Filters[1].Cutoff = 0
	p.Filters[0].Resonance = 7
	p.Effects.Order = [waveweaver.NumEffectSlots]int{0, 0, 2, 3}
	for i := 0; i < 40; i++ {
		p.Routes = append(p.Routes, waveweaver.ModRoute{Source: waveweaver.SourceLFO1, Dest: waveweaver.DestAmp, Amount: 2})
	}
	p.Clamp()
	if p.NumVoices != waveweaver.MaxVoices {
		t.Errorf("NumVoices = %d, want %d", p.NumVoices, waveweaver.MaxVoices)
	}
	if p.MasterVolume != 0 {
		t.Errorf("MasterVolume = %v, want 0", p.MasterVolume)
	}
	if p.Oscillators[0].Unison != waveweaver.MaxUnison {
		t.Errorf("Unison = %d, want %d", p.Oscillators[0].Unison, waveweaver.MaxUnison)
	}
	if p.Oscillators[0].Detune != 100 {
		t.Errorf("Detune = %v, want 100", p.Oscillators[0].Detune)
	}
	if p.Filters[0].Cutoff != 20000 || p.Filters[1].Cutoff != 20 {
		t.Errorf("Cutoffs = %v, %v, want 20000, 20", p.Filters[0].Cutoff, p.Filters[1].Cutoff)
	}
	if p.Filters[0].Resonance != 1 {
		t.Errorf("Resonance = %v, want 1", p.Filters[0].Resonance)
	}
	if len(p.Routes) != waveweaver.MaxModRoutes {
		t.Errorf("len(Routes) = %d, want %d", len(p.Routes), waveweaver.MaxModRoutes)
	}
	for i, r := range p.Routes {
		if r.Amount != 1 {
			t.Errorf("route %d amount = %v, want 1", i, r.Amount)
		}
	}
	want := [waveweaver.NumEffectSlots]int{waveweaver.EffectDistortion, waveweaver.EffectChorus, waveweaver.EffectDelay, waveweaver.EffectReverb}
	if p.Effects.Order != want {
		t.Errorf("invalid effect order not reset: %v", p.Effects.Order)
	}
}

func TestPatchCopyIsDeep(t *testing.T) {
	p := waveweaver.DefaultPatch()
	p.Routes = []waveweaver.ModRoute{{Source: waveweaver.SourceLFO1, Dest: waveweaver.DestAmp, Amount: 0.5}}
	p.Macros[0].Targets = []waveweaver.MacroTarget{{Dest: waveweaver.DestAmp, Amount: 1}}
	p.Envelopes[0].Stages = []waveweaver.EnvStage{{Target: 1, Time: 0.1}}
	c := p.Copy()
	c.Routes[0].Amount = -1
	c.Macros[0].Targets[0].Amount = -1
	c.Envelopes[0].Stages[0].Target = 0
	if p.Routes[0].Amount != 0.5 {
		t.Errorf("route amount changed through copy")
	}
	if p.Macros[0].Targets[0].Amount != 1 {
		t.Errorf("macro target changed through copy")
	}
	if p.Envelopes[0].Stages[0].Target != 1 {
		t.Errorf("envelope stage changed through copy")
	}
}
