package engine

import (
	"sync"
	"testing"
)

func TestEventBufferDrainsInOrder(t *testing.T) {
	b := newEventBuffer(8)
	for i := 0; i < 5; i++ {
		b.push(noteEvent{kind: eventNoteOn, note: byte(60 + i), velocity: 100})
	}
	var notes []byte
	b.drain(func(e noteEvent) {
		if e.kind != eventNoteOn {
			t.Errorf("unexpected event kind %d", e.kind)
		}
		notes = append(notes, e.note)
	})
	if len(notes) != 5 {
		t.Fatalf("drained %d events, want 5", len(notes))
	}
	for i, n := range notes {
		if n != byte(60+i) {
			t.Errorf("event %d note = %d, want %d", i, n, 60+i)
		}
	}
	b.drain(func(e noteEvent) {
		t.Errorf("second drain yielded event %v", e)
	})
}

func TestEventBufferConcurrentPushDrain(t *testing.T) {
	const total = 10000
	b := newEventBuffer(64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			b.push(noteEvent{kind: eventNoteOff, note: byte(i)})
		}
	}()
	seen := 0
	var last int = -1
	for seen < total {
		b.drain(func(e noteEvent) {
			want := byte((last + 1) & 0xff)
			if e.note != want {
				t.Errorf("event %d note = %d, want %d", seen, e.note, want)
			}
			last = int(e.note)
			seen++
		})
	}
	wg.Wait()
}
