package engine

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/tmaarne/waveweaver"
)

// runFilter pushes a sine at the given frequency through one filter slot
// and returns the steady-state peak of the output, skipping the first half
// of the samples so the transient settles.
func runFilter(t *testing.T, cfg waveweaver.Filter, freq float32, n int) float32 {
	t.Helper()
	var b filterBlock
	var mod modCache
	b.resolve(&cfg, &mod, 0, 60, 1)
	var f filterState
	f.prepare(testRate)
	var peak float32
	phase := float32(0)
	for i := 0; i < n; i++ {
		in := math32.Sin(2 * math32.Pi * phase)
		phase += freq / testRate
		if phase >= 1 {
			phase--
		}
		l, _ := f.process(&b, 0, in, in, testRate)
		if i >= n/2 {
			if a := math32.Abs(l); a > peak {
				peak = a
			}
		}
	}
	return peak
}

func TestBypassPassesThrough(t *testing.T) {
	var b filterBlock
	var mod modCache
	cfg := waveweaver.Filter{Model: waveweaver.FilterBypass, Cutoff: 1000}
	b.resolve(&cfg, &mod, 0, 60, 1)
	var f filterState
	f.prepare(testRate)
	for _, in := range []float32{0, 0.5, -1, 0.25} {
		l, r := f.process(&b, 0, in, -in, testRate)
		if l != in || r != -in {
			t.Errorf("bypass altered %v to %v %v", in, l, r)
		}
	}
}

func TestLowpassAttenuatesAboveCutoff(t *testing.T) {
	models := []struct {
		name  string
		model waveweaver.FilterModel
	}{
		{"biquad12", waveweaver.FilterLowPass12},
		{"biquad24", waveweaver.FilterLowPass24},
		{"ladder", waveweaver.FilterLadder},
		{"diode", waveweaver.FilterDiodeLadder},
		{"svf", waveweaver.FilterStateVariable},
		{"acid", waveweaver.FilterAcid},
	}
	for _, test := range models {
		cfg := waveweaver.Filter{Model: test.model, Cutoff: 500, Resonance: 0.1}
		low := runFilter(t, cfg, 100, 4800)
		high := runFilter(t, cfg, 8000, 4800)
		// The saturating ladder variants compress the passband well below
		// unity; only require a clearly audible level.
		if low < 0.25 {
			t.Errorf("%s: passband peak %v, want > 0.25", test.name, low)
		}
		if high > low*0.5 {
			t.Errorf("%s: stopband peak %v vs passband %v, want strong attenuation", test.name, high, low)
		}
	}
}

func TestHighpassAttenuatesBelowCutoff(t *testing.T) {
	cfg := waveweaver.Filter{Model: waveweaver.FilterHighPass12, Cutoff: 2000, Resonance: 0.1}
	low := runFilter(t, cfg, 100, 9600)
	high := runFilter(t, cfg, 8000, 9600)
	if high < 0.5 {
		t.Errorf("passband peak %v, want > 0.5", high)
	}
	if low > high*0.5 {
		t.Errorf("stopband peak %v vs passband %v, want strong attenuation", low, high)
	}
}

func TestFilterOutputStaysBounded(t *testing.T) {
	models := []waveweaver.FilterModel{
		waveweaver.FilterBandPass, waveweaver.FilterNotch, waveweaver.FilterComb,
		waveweaver.FilterLadder, waveweaver.FilterDiodeLadder, waveweaver.FilterStateVariable,
		waveweaver.FilterFormant, waveweaver.FilterAcid,
	}
	for _, model := range models {
		cfg := waveweaver.Filter{Model: model, Cutoff: 800, Resonance: 0.9, Morph: 0.5}
		peak := runFilter(t, cfg, 440, 9600)
		if peak > 10 || math32.IsNaN(peak) {
			t.Errorf("model %d: peak %v out of bounds", model, peak)
		}
	}
}

func TestCutoffModulationIsExponential(t *testing.T) {
	cfg := waveweaver.Filter{Model: waveweaver.FilterLowPass12, Cutoff: 1000, EnvAmount: 1}
	var b filterBlock
	var mod modCache
	b.resolve(&cfg, &mod, 0, 60, 1)
	base := b.cutoff(0, testRate)
	raised := b.cutoff(0.5, testRate)
	if math32.Abs(base-1000) > 1 {
		t.Errorf("base cutoff = %v, want 1000", base)
	}
	// Half the envelope over a four-octave sweep is two octaves up.
	if math32.Abs(raised-4000) > 4 {
		t.Errorf("modulated cutoff = %v, want 4000", raised)
	}
}

func TestCutoffClampsToStableRange(t *testing.T) {
	cfg := waveweaver.Filter{Model: waveweaver.FilterLowPass12, Cutoff: 20000, EnvAmount: 1}
	var b filterBlock
	var mod modCache
	b.resolve(&cfg, &mod, 0, 60, 1)
	if got := b.cutoff(1, testRate); got > 0.45*testRate+1 {
		t.Errorf("cutoff %v exceeds the stable ceiling", got)
	}
	cfg = waveweaver.Filter{Model: waveweaver.FilterLowPass12, Cutoff: 20, EnvAmount: -1}
	b.resolve(&cfg, &mod, 0, 60, 1)
	if got := b.cutoff(1, testRate); got < 20 {
		t.Errorf("cutoff %v fell below 20 Hz", got)
	}
}

func TestFormantVowelPeaks(t *testing.T) {
	cfg := waveweaver.Filter{Model: waveweaver.FilterFormant, Cutoff: 1000, Resonance: 0.5}
	// Morph 0 is the A vowel with peaks at 800, 1150 and 2900 Hz. The
	// third peak must pass while frequencies beyond it fall off.
	cfg.Morph = 0
	onPeak := runFilter(t, cfg, 2900, 8192)
	offPeak := runFilter(t, cfg, 4500, 8192)
	if onPeak < 0.5 {
		t.Errorf("A vowel at 2900 Hz = %v, want a resonant peak", onPeak)
	}
	if offPeak > onPeak*0.5 {
		t.Errorf("A vowel at 4500 Hz = %v, want well below the 2900 Hz peak %v", offPeak, onPeak)
	}
	// Morph 0.25 is the E vowel, whose second peak sits at 2000 Hz; the U
	// vowel at morph 1 has nothing near it.
	cfg.Morph = 0.25
	eVowel := runFilter(t, cfg, 2000, 8192)
	cfg.Morph = 1
	uVowel := runFilter(t, cfg, 2000, 8192)
	if eVowel < 0.5 {
		t.Errorf("E vowel at 2000 Hz = %v, want a resonant peak", eVowel)
	}
	if uVowel > eVowel*0.5 {
		t.Errorf("U vowel at 2000 Hz = %v, want well below the E response %v", uVowel, eVowel)
	}
}
