package engine

import (
	"math"
	"testing"

	"github.com/tmaarne/waveweaver"
)

func TestMacroTargetsResolveExactly(t *testing.T) {
	p := waveweaver.DefaultPatch()
	p.Macros[0].Value = 1
	p.Macros[0].Targets = []waveweaver.MacroTarget{
		{Dest: waveweaver.DestFilter1Cutoff, Amount: 0.5},
		{Dest: waveweaver.DestFilter1Res, Amount: 0.3},
	}
	var src modSources
	src.macroValues[0] = 1
	var c modCache
	c.resolve(&p, &src)
	if got := c.get(waveweaver.DestFilter1Cutoff); got != 0.5 {
		t.Errorf("cutoff contribution = %v, want exactly 0.5", got)
	}
	if got := c.get(waveweaver.DestFilter1Res); got != 0.3 {
		t.Errorf("resonance contribution = %v, want exactly 0.3", got)
	}
	for d := waveweaver.DestNone + 1; d < waveweaver.NumModDests; d++ {
		if d == waveweaver.DestFilter1Cutoff || d == waveweaver.DestFilter1Res {
			continue
		}
		if got := c.get(d); got != 0 {
			t.Errorf("destination %d contribution = %v, want 0", d, got)
		}
	}
}

func TestRoutesAndMacrosSumAdditively(t *testing.T) {
	p := waveweaver.DefaultPatch()
	p.Routes = []waveweaver.ModRoute{
		{Source: waveweaver.SourceVelocity, Dest: waveweaver.DestAmp, Amount: 0.25},
		{Source: waveweaver.SourceModWheel, Dest: waveweaver.DestAmp, Amount: 0.5},
	}
	p.Macros[2].Targets = []waveweaver.MacroTarget{{Dest: waveweaver.DestAmp, Amount: -0.1}}
	var src modSources
	src.velocity = 1
	src.modWheel = 0.5
	src.macroValues[2] = 1
	var c modCache
	c.resolve(&p, &src)
	want := 0.25 + 0.5*0.5 - 0.1
	if got := c.get(waveweaver.DestAmp); math.Abs(float64(got)-want) > 1e-6 {
		t.Errorf("amp contribution = %v, want %v", got, want)
	}
}

func TestResolveClearsPreviousBlock(t *testing.T) {
	p := waveweaver.DefaultPatch()
	p.Routes = []waveweaver.ModRoute{{Source: waveweaver.SourceVelocity, Dest: waveweaver.DestAmp, Amount: 1}}
	var src modSources
	src.velocity = 1
	var c modCache
	c.resolve(&p, &src)
	if c.get(waveweaver.DestAmp) != 1 {
		t.Fatalf("first resolve missing contribution")
	}
	src.velocity = 0
	c.resolve(&p, &src)
	if got := c.get(waveweaver.DestAmp); got != 0 {
		t.Errorf("stale contribution %v survived re-resolve", got)
	}
}

func TestSourceEvalCoversEverySource(t *testing.T) {
	var src modSources
	for i := range src.lfo {
		src.lfo[i] = float32(i) + 1
	}
	for i := range src.env {
		src.env[i] = float32(i) + 0.5
	}
	src.velocity = 0.9
	src.bioBreath = 0.4
	src.macroValues[7] = 0.7
	tests := []struct {
		src  waveweaver.ModSource
		want float32
	}{
		{waveweaver.SourceNone, 0},
		{waveweaver.SourceLFO3, 3},
		{waveweaver.SourceEnv2, 1.5},
		{waveweaver.SourceVelocity, 0.9},
		{waveweaver.SourceBioBreath, 0.4},
		{waveweaver.SourceMacro8, 0.7},
	}
	for _, test := range tests {
		if got := src.eval(test.src); got != test.want {
			t.Errorf("eval(%d) = %v, want %v", test.src, got, test.want)
		}
	}
}
