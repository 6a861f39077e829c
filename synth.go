package waveweaver

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Synth renders stereo audio from note events. Implementations are expected
// to be driven from a single goroutine; the event methods only queue work
// and are safe to call from other goroutines.
type Synth interface {
	// Render fills the whole buffer with audio, applying queued events at
	// their positions.
	Render(buffer AudioBuffer) error
	// Update swaps the patch without interrupting playback. Sounding voices
	// keep their envelope positions where the new patch allows.
	Update(patch Patch) error
	NoteOn(channel, note, velocity byte)
	// NoteOff releases with tail-off; velocity is the MPE lift value.
	NoteOff(channel, note, velocity byte)
	Controller(channel, cc, value byte)
	// PitchBend takes the normalized bend position in -1..1; the patch's
	// bend range decides how many semitones that spans.
	PitchBend(channel int, value float32)
	ChannelPressure(channel int, pressure float32)
	PolyPressure(channel int, note byte, pressure float32)
}

// Render renders zero-input audio with the synth until the buffer is full.
func Render(synth Synth, buffer AudioBuffer) error {
	if err := synth.Render(buffer); err != nil {
		return fmt.Errorf("waveweaver.Render failed: %v", err)
	}
	return nil
}

// SynthReader adapts a Synth into an io.Reader producing the little-endian
// float32 stream AudioContext.Play expects. It renders in fixed-size chunks
// so event-to-audio latency stays bounded regardless of how much the player
// asks for at once.
type SynthReader struct {
	Synth Synth

	chunk AudioBuffer
	scrap []byte
	err   error
}

const synthReaderChunk = 512 // frames per render call

func (s *SynthReader) Read(p []byte) (n int, err error) {
	for n < len(p) {
		if len(s.scrap) == 0 {
			if s.err != nil {
				if n > 0 {
					return n, nil
				}
				return 0, s.err
			}
			if s.chunk == nil {
				s.chunk = make(AudioBuffer, synthReaderChunk)
				s.scrap = make([]byte, 0, synthReaderChunk*8)
			}
			if err := s.Synth.Render(s.chunk); err != nil {
				s.err = fmt.Errorf("SynthReader: %w", err)
				continue
			}
			s.scrap = s.scrap[:len(s.chunk)*8]
			for i, frame := range s.chunk {
				binary.LittleEndian.PutUint32(s.scrap[i*8:], math.Float32bits(frame[0]))
				binary.LittleEndian.PutUint32(s.scrap[i*8+4:], math.Float32bits(frame[1]))
			}
		}
		c := copy(p[n:], s.scrap)
		s.scrap = s.scrap[c:]
		n += c
	}
	return n, nil
}

var _ io.Reader = (*SynthReader)(nil)
