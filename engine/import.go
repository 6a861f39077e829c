package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dh1tw/gosamplerate"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/tmaarne/waveweaver"
)

// Load imports an audio file into a wavetable slot: decode, downmix to
// mono, resample into the fixed frame grid by linear time-mapping, then
// publish. On any error the slot keeps its previous content.
func (s *WavetableStore) Load(path string, slot int) error {
	if slot < 0 || slot >= waveweaver.NumWavetableSlots {
		return fmt.Errorf("wavetable load: slot %d out of range", slot)
	}
	mono, err := decodeMono(path)
	if err != nil {
		return fmt.Errorf("wavetable load %q: %w", path, err)
	}
	if len(mono) < 2 {
		return fmt.Errorf("wavetable load %q: source too short", path)
	}
	const gridLen = waveweaver.WavetableFrames * waveweaver.WavetableSize
	grid := mono
	if len(mono) != gridLen {
		ratio := float64(gridLen) / float64(len(mono))
		grid, err = gosamplerate.Simple(mono, ratio, 1, gosamplerate.SRC_SINC_FASTEST)
		if err != nil {
			return fmt.Errorf("wavetable load %q: resample: %w", path, err)
		}
	}
	t := &Wavetable{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
	var peak float32
	for i := 0; i < gridLen && i < len(grid); i++ {
		v := grid[i]
		t.Data[i/waveweaver.WavetableSize][i%waveweaver.WavetableSize] = v
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak > 0 {
		gain := 1 / peak
		for f := range t.Data {
			for i := range t.Data[f] {
				t.Data[f][i] *= gain
			}
		}
	}
	s.publish(slot, t)
	return nil
}

func decodeMono(path string) ([]float32, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWavMono(path)
	case ".mp3":
		return decodeMP3Mono(path)
	}
	return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
}

func decodeWavMono(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("wav file has no channels")
	}
	scale := float32(1)
	if d.BitDepth > 0 && d.BitDepth <= 32 {
		scale = 1 / float32(int64(1)<<(d.BitDepth-1))
	}
	frames := len(buf.Data) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]) * scale
		}
		mono[i] = sum / float32(channels)
	}
	return mono, nil
}

func decodeMP3Mono(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	// go-mp3 always emits 16-bit little-endian stereo.
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, err
	}
	frames := len(raw) / 4
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(uint16(raw[i*4]) | uint16(raw[i*4+1])<<8)
		r := int16(uint16(raw[i*4+2]) | uint16(raw[i*4+3])<<8)
		mono[i] = (float32(l) + float32(r)) / (2 * 32768)
	}
	return mono, nil
}
