// Package oto wraps github.com/ebitengine/oto/v3 as a waveweaver
// AudioContext playing 32-bit float stereo streams.
package oto

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/tmaarne/waveweaver"
)

type Context struct {
	context *oto.Context
}

// NewContext opens the system audio device at the given sample rate and
// waits until it is ready.
func NewContext(sampleRate int) (*Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	context, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{context: context}, nil
}

func (c *Context) Play(r io.Reader) waveweaver.CloserWaiter {
	p := c.context.NewPlayer(r)
	p.Play()
	return playerCloserWaiter{p}
}

func (c *Context) Close() error {
	if err := c.context.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

type playerCloserWaiter struct {
	player *oto.Player
}

func (p playerCloserWaiter) Close() error {
	if err := p.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// Wait blocks until the player has consumed its whole stream. Streams fed
// by a live synth never end, so Wait on those only returns after Close.
func (p playerCloserWaiter) Wait() {
	for p.player.IsPlaying() {
		time.Sleep(time.Millisecond * 10)
	}
}

var _ waveweaver.AudioContext = (*Context)(nil)
