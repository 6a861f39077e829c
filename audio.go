package waveweaver

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// AudioBuffer is a buffer of stereo audio samples, each [2]float32 being one
// (left, right) frame.
type AudioBuffer [][2]float32

// AudioContext is the player side audio backend. Play keeps reading
// little-endian stereo float32 frames from r until the reader is exhausted
// or the returned CloserWaiter is closed.
type AudioContext interface {
	Play(r io.Reader) CloserWaiter
	Close() error
}

type CloserWaiter interface {
	io.Closer
	Wait()
}

// Source returns an io.Reader that reads through the buffer as raw
// little-endian float32 data, suitable for handing to AudioContext.Play.
func (buffer AudioBuffer) Source() io.Reader {
	return &audioBufferSource{buffer: buffer}
}

type audioBufferSource struct {
	buffer AudioBuffer
	pos    int // frames already consumed
	scrap  []byte
}

func (s *audioBufferSource) Read(p []byte) (n int, err error) {
	for n < len(p) {
		if len(s.scrap) == 0 {
			if s.pos >= len(s.buffer) {
				if n > 0 {
					return n, nil
				}
				return 0, io.EOF
			}
			var frame [8]byte
			binary.LittleEndian.PutUint32(frame[0:], math.Float32bits(s.buffer[s.pos][0]))
			binary.LittleEndian.PutUint32(frame[4:], math.Float32bits(s.buffer[s.pos][1]))
			s.scrap = append(s.scrap[:0], frame[:]...)
			s.pos++
		}
		c := copy(p[n:], s.scrap)
		s.scrap = s.scrap[c:]
		n += c
	}
	return n, nil
}

// Wav converts the buffer into a valid stereo .wav file, either 16-bit PCM
// or 32-bit float depending on pcm16.
func (buffer AudioBuffer) Wav(sampleRate int, pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	wavHeader(len(buffer)*2, sampleRate, pcm16, buf)
	err := buffer.rawToBuffer(pcm16, buf)
	if err != nil {
		return nil, fmt.Errorf("Wav failed: %v", err)
	}
	return buf.Bytes(), nil
}

// Raw converts the buffer into headerless audio data, i.e. the .wav payload
// without the RIFF wrapping.
func (buffer AudioBuffer) Raw(pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := buffer.rawToBuffer(pcm16, buf)
	if err != nil {
		return nil, fmt.Errorf("Raw failed: %v", err)
	}
	return buf.Bytes(), nil
}

func (buffer AudioBuffer) rawToBuffer(pcm16 bool, buf *bytes.Buffer) error {
	var err error
	if pcm16 {
		int16data := make([]int16, len(buffer)*2)
		for i, v := range buffer {
			int16data[i*2] = int16(clampInt(int(v[0]*math.MaxInt16), math.MinInt16, math.MaxInt16))
			int16data[i*2+1] = int16(clampInt(int(v[1]*math.MaxInt16), math.MinInt16, math.MaxInt16))
		}
		err = binary.Write(buf, binary.LittleEndian, int16data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, buffer)
	}
	if err != nil {
		return fmt.Errorf("could not binary write data to binary buffer: %v", err)
	}
	return nil
}

// wavHeader writes a wave header for either float32 or int16 .wav file into
// the bytes.Buffer. bufferLength is in individual samples, so twice the
// number of stereo frames. pcm16 = true means a header for int16 audio,
// pcm16 = false a header for float32 audio.
func wavHeader(bufferLength int, sampleRate int, pcm16 bool, buf *bytes.Buffer) {
	// Refer to: http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
	numChannels := 2
	var bytesPerSample, chunkSize, fmtChunkSize, waveFormat int
	var factChunk bool
	if pcm16 {
		bytesPerSample = 2
		chunkSize = 36 + bytesPerSample*bufferLength
		fmtChunkSize = 16
		waveFormat = 1 // PCM
		factChunk = false
	} else {
		bytesPerSample = 4
		chunkSize = 50 + bytesPerSample*bufferLength
		fmtChunkSize = 18
		waveFormat = 3 // IEEE float
		factChunk = true
	}
	buf.Write([]byte("RIFF"))
	binary.Write(buf, binary.LittleEndian, uint32(chunkSize))
	buf.Write([]byte("WAVE"))
	buf.Write([]byte("fmt "))
	binary.Write(buf, binary.LittleEndian, uint32(fmtChunkSize))
	binary.Write(buf, binary.LittleEndian, uint16(waveFormat))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*numChannels*bytesPerSample)) // avgBytesPerSec
	binary.Write(buf, binary.LittleEndian, uint16(numChannels*bytesPerSample))            // blockAlign
	binary.Write(buf, binary.LittleEndian, uint16(8*bytesPerSample))                      // bits per sample
	if fmtChunkSize > 16 {
		binary.Write(buf, binary.LittleEndian, uint16(0)) // size of extension
	}
	if factChunk {
		buf.Write([]byte("fact"))
		binary.Write(buf, binary.LittleEndian, uint32(4))            // fact chunk size
		binary.Write(buf, binary.LittleEndian, uint32(bufferLength)) // sample length
	}
	buf.Write([]byte("data"))
	binary.Write(buf, binary.LittleEndian, uint32(bytesPerSample*bufferLength))
}
