package engine

import (
	"testing"

	"github.com/tmaarne/waveweaver"
)

const testRate = 48000

func resolveEnv(cfg waveweaver.Envelope) envBlock {
	var b envBlock
	b.resolve(&cfg, 1, 1)
	return b
}

func TestEnvelopeStaysInRangeAndReachesTargets(t *testing.T) {
	b := resolveEnv(waveweaver.Envelope{Attack: 0.01, Decay: 0.02, Sustain: 0.5, Release: 0.05})
	var e envState
	e.trigger(&b, testRate)
	reachedPeak := false
	for i := 0; i < testRate; i++ {
		v := e.next(&b, testRate)
		if v < 0 || v > 1 {
			t.Fatalf("value %v out of [0,1] at sample %d", v, i)
		}
		if v == 1 {
			reachedPeak = true
		}
		if e.phase == envSustain {
			if v != 0.5 {
				t.Fatalf("sustain value = %v, want 0.5", v)
			}
			break
		}
	}
	if !reachedPeak {
		t.Fatalf("attack never reached exactly 1")
	}
	if e.phase != envSustain {
		t.Fatalf("envelope never reached sustain")
	}
	e.release(&b, testRate)
	for i := 0; i < testRate; i++ {
		v := e.next(&b, testRate)
		if v < 0 || v > 1 {
			t.Fatalf("release value %v out of [0,1]", v)
		}
		if !e.active() {
			break
		}
	}
	if e.active() {
		t.Fatalf("envelope still active long after release")
	}
	if e.value != 0 {
		t.Fatalf("released envelope value = %v, want 0", e.value)
	}
}

func TestEnvelopeZeroTimesJumpInstantly(t *testing.T) {
	b := resolveEnv(waveweaver.Envelope{Attack: 0, Decay: 0, Sustain: 1, Release: 0.1})
	var e envState
	e.trigger(&b, testRate)
	if v := e.next(&b, testRate); v != 1 {
		t.Fatalf("first sample = %v, want 1", v)
	}
}

func TestEnvelopeZeroReleaseStopsImmediately(t *testing.T) {
	b := resolveEnv(waveweaver.Envelope{Attack: 0, Decay: 0, Sustain: 1, Release: 0})
	var e envState
	e.trigger(&b, testRate)
	e.next(&b, testRate)
	e.release(&b, testRate)
	if e.active() {
		t.Fatalf("zero release should turn the envelope off at once")
	}
}

func TestEnvelopeHardStop(t *testing.T) {
	b := resolveEnv(waveweaver.Envelope{Attack: 0.5, Decay: 0.5, Sustain: 0.9, Release: 3})
	var e envState
	e.trigger(&b, testRate)
	for i := 0; i < 100; i++ {
		e.next(&b, testRate)
	}
	e.hardStop()
	if e.active() {
		t.Fatalf("hard stopped envelope still active")
	}
	if v := e.next(&b, testRate); v != 0 {
		t.Fatalf("hard stopped envelope value = %v, want 0", v)
	}
}

func TestEnvelopeMultiStageTraversal(t *testing.T) {
	b := resolveEnv(waveweaver.Envelope{
		Release: 0.01,
		Stages: []waveweaver.EnvStage{
			{Target: 1, Time: 0.002},
			{Target: 0.2, Time: 0.002},
			{Target: 0.7, Time: 0.002},
		},
	})
	var e envState
	e.trigger(&b, testRate)
	var sawPeak, sawDip bool
	for i := 0; i < testRate; i++ {
		v := e.next(&b, testRate)
		if v < 0 || v > 1 {
			t.Fatalf("staged value %v out of [0,1]", v)
		}
		if v == 1 {
			sawPeak = true
		}
		if sawPeak && v == 0.2 {
			sawDip = true
		}
		if e.phase == envHold {
			break
		}
	}
	if !sawPeak || !sawDip {
		t.Fatalf("stage targets missed: peak %v dip %v", sawPeak, sawDip)
	}
	if e.phase != envHold {
		t.Fatalf("staged envelope never reached hold, phase %v", e.phase)
	}
	if e.value != 0.7 {
		t.Fatalf("hold value = %v, want 0.7", e.value)
	}
}

func TestEnvelopeReleaseFromAnyStage(t *testing.T) {
	b := resolveEnv(waveweaver.Envelope{Attack: 1, Decay: 1, Sustain: 0.5, Release: 0.001})
	var e envState
	e.trigger(&b, testRate)
	// Release mid-attack.
	for i := 0; i < 100; i++ {
		e.next(&b, testRate)
	}
	e.release(&b, testRate)
	for i := 0; i < 1000 && e.active(); i++ {
		e.next(&b, testRate)
	}
	if e.active() {
		t.Fatalf("release from attack never finished")
	}
}
