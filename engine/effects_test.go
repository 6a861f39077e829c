package engine

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/tmaarne/waveweaver"
)

func defaultChain() waveweaver.EffectsChain {
	return waveweaver.EffectsChain{
		Order: [waveweaver.NumEffectSlots]int{
			waveweaver.EffectDistortion, waveweaver.EffectChorus,
			waveweaver.EffectDelay, waveweaver.EffectReverb,
		},
	}
}

func TestDisabledChainPassesThrough(t *testing.T) {
	var e effectsState
	e.prepare(testRate)
	cfg := defaultChain()
	buf := make(waveweaver.AudioBuffer, 64)
	for i := range buf {
		buf[i][0] = float32(i) * 0.01
		buf[i][1] = -float32(i) * 0.01
	}
	var mod modCache
	e.process(&cfg, &mod, 120, buf)
	for i := range buf {
		if buf[i][0] != float32(i)*0.01 || buf[i][1] != -float32(i)*0.01 {
			t.Fatalf("sample %d changed to %v %v", i, buf[i][0], buf[i][1])
		}
	}
}

func TestSoftDistortionShape(t *testing.T) {
	var e effectsState
	e.prepare(testRate)
	cfg := defaultChain()
	// Tone 1 leaves the tone filter transparent, so the output is the
	// bare saturator at full mix.
	cfg.Distortion = waveweaver.Distortion{Enabled: true, Type: waveweaver.DistortSoft, Drive: 1, Tone: 1, Mix: 1}
	buf := make(waveweaver.AudioBuffer, 16)
	inputs := []float32{0, 0.01, -0.05, 0.1, 0.5, -0.5, 1, -1}
	for i, in := range inputs {
		buf[i][0] = in
		buf[i][1] = in
	}
	var mod modCache
	e.process(&cfg, &mod, 120, buf[:len(inputs)])
	for i, in := range inputs {
		want := math32.Tanh(in * 16)
		if math32.Abs(buf[i][0]-want) > 1e-5 {
			t.Errorf("input %v shaped to %v, want %v", in, buf[i][0], want)
		}
	}
}

func TestHardDistortionClamps(t *testing.T) {
	var e effectsState
	e.prepare(testRate)
	cfg := defaultChain()
	cfg.Distortion = waveweaver.Distortion{Enabled: true, Type: waveweaver.DistortHard, Drive: 1, Tone: 1, Mix: 1}
	buf := make(waveweaver.AudioBuffer, 64)
	for i := range buf {
		buf[i][0] = float32(i-32) * 0.25
		buf[i][1] = buf[i][0]
	}
	var mod modCache
	e.process(&cfg, &mod, 120, buf)
	for i := range buf {
		if math32.Abs(buf[i][0]) > 1 {
			t.Errorf("sample %d = %v, want within [-1, 1]", i, buf[i][0])
		}
	}
}

func TestDelayEchoPosition(t *testing.T) {
	var e effectsState
	e.prepare(testRate)
	cfg := defaultChain()
	cfg.Delay = waveweaver.Delay{Enabled: true, TimeL: 0.01, TimeR: 0.01, Mix: 0.5}
	buf := make(waveweaver.AudioBuffer, 1000)
	buf[0][0] = 1
	buf[0][1] = 1
	var mod modCache
	e.process(&cfg, &mod, 120, buf)
	if buf[0][0] != 0.5 {
		t.Errorf("dry sample = %v, want 0.5", buf[0][0])
	}
	echo := int(0.01 * testRate)
	if math32.Abs(buf[echo][0]-0.5) > 1e-6 {
		t.Errorf("echo at %d = %v, want 0.5", echo, buf[echo][0])
	}
	for i := 1; i < len(buf); i++ {
		if i == echo {
			continue
		}
		if buf[i][0] != 0 {
			t.Errorf("unexpected signal %v at sample %d", buf[i][0], i)
		}
	}
}

func TestDelayTempoSync(t *testing.T) {
	var e effectsState
	e.prepare(testRate)
	cfg := defaultChain()
	// A tenth of a beat at 120 BPM is 50 ms.
	cfg.Delay = waveweaver.Delay{Enabled: true, SyncBeatsL: 0.1, SyncBeatsR: 0.1, Mix: 1}
	buf := make(waveweaver.AudioBuffer, 3000)
	buf[0][0] = 1
	buf[0][1] = 1
	var mod modCache
	e.process(&cfg, &mod, 120, buf)
	echo := int(0.05 * testRate)
	if math32.Abs(buf[echo][0]-1) > 1e-6 {
		t.Errorf("echo at %d = %v, want 1", echo, buf[echo][0])
	}
}

func TestDelayFeedbackDecays(t *testing.T) {
	var e effectsState
	e.prepare(testRate)
	cfg := defaultChain()
	cfg.Delay = waveweaver.Delay{Enabled: true, TimeL: 0.01, TimeR: 0.01, Feedback: 0.5, Mix: 1}
	buf := make(waveweaver.AudioBuffer, 4800)
	buf[0][0] = 1
	buf[0][1] = 1
	var mod modCache
	e.process(&cfg, &mod, 120, buf)
	step := int(0.01 * testRate)
	first := buf[step][0]
	second := buf[2*step][0]
	third := buf[3*step][0]
	if first < 0.9 {
		t.Fatalf("first echo = %v, want about 1", first)
	}
	if second >= first || third >= second {
		t.Errorf("echoes not decaying: %v %v %v", first, second, third)
	}
}

func TestReverbTailBuildsAndStaysBounded(t *testing.T) {
	var e effectsState
	e.prepare(testRate)
	cfg := defaultChain()
	cfg.Reverb = waveweaver.Reverb{Enabled: true, Size: 0.5, Width: 1, Mix: 1}
	buf := make(waveweaver.AudioBuffer, testRate/2)
	buf[0][0] = 1
	buf[0][1] = 1
	var mod modCache
	e.process(&cfg, &mod, 120, buf)
	var tail float32
	for i := 2000; i < len(buf); i++ {
		if a := math32.Abs(buf[i][0]); a > tail {
			tail = a
		}
		if math32.Abs(buf[i][0]) > 4 || math32.IsNaN(buf[i][0]) {
			t.Fatalf("sample %d = %v, out of bounds", i, buf[i][0])
		}
	}
	if tail == 0 {
		t.Error("no reverb tail after the impulse")
	}
}

func TestChorusThickensWithoutBlowingUp(t *testing.T) {
	var e effectsState
	e.prepare(testRate)
	cfg := defaultChain()
	cfg.Chorus = waveweaver.Chorus{Enabled: true, Voices: 2, Rate: 1, Depth: 1, Feedback: 0.5, Mix: 0.5}
	buf := make(waveweaver.AudioBuffer, 9600)
	for i := range buf {
		buf[i][0] = math32.Sin(2 * math32.Pi * 220 * float32(i) / testRate)
		buf[i][1] = buf[i][0]
	}
	var mod modCache
	e.process(&cfg, &mod, 120, buf)
	var peak float32
	changed := false
	for i := range buf {
		dry := math32.Sin(2 * math32.Pi * 220 * float32(i) / testRate)
		if math32.Abs(buf[i][0]-dry) > 1e-3 {
			changed = true
		}
		if a := math32.Abs(buf[i][0]); a > peak {
			peak = a
		}
	}
	if !changed {
		t.Error("chorus left the signal untouched")
	}
	if peak > 3 {
		t.Errorf("peak %v, want bounded output", peak)
	}
}
