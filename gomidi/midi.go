// Package gomidi feeds MIDI input into a waveweaver synth through the
// rtmidi driver.
package gomidi

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/tmaarne/waveweaver"
)

type Context struct {
	driver *rtmididrv.Driver
	in     drivers.In
	stop   func()
	synth  waveweaver.Synth
}

// NewContext opens the rtmidi driver. A nil driver is tolerated; the
// context then simply has no input devices.
func NewContext() *Context {
	c := &Context{}
	c.driver, _ = rtmididrv.New()
	return c
}

// InputNames lists the available MIDI input ports.
func (c *Context) InputNames() []string {
	if c.driver == nil {
		return nil
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return nil
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names
}

// Open connects the first input whose name starts with namePrefix (or the
// first input at all if the prefix is empty) to the synth.
func (c *Context) Open(namePrefix string, synth waveweaver.Synth) error {
	if c.driver == nil {
		return errors.New("no MIDI driver available")
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return fmt.Errorf("listing MIDI inputs failed: %w", err)
	}
	for _, in := range ins {
		if namePrefix != "" && !strings.HasPrefix(in.String(), namePrefix) {
			continue
		}
		if err := in.Open(); err != nil {
			return fmt.Errorf("opening MIDI input failed: %w", err)
		}
		stop, err := midi.ListenTo(in, c.handleMessage)
		if err != nil {
			in.Close()
			return fmt.Errorf("listening to MIDI input failed: %w", err)
		}
		c.in = in
		c.stop = stop
		c.synth = synth
		return nil
	}
	if namePrefix == "" {
		return errors.New("no MIDI inputs found")
	}
	return fmt.Errorf("no MIDI input starting with %q", namePrefix)
}

func (c *Context) handleMessage(msg midi.Message, timestampms int32) {
	s := c.synth
	if s == nil {
		return
	}
	var channel, key, velocity, value uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		s.NoteOn(channel, key, velocity)
	case msg.GetNoteOff(&channel, &key, &velocity):
		s.NoteOff(channel, key, velocity)
	case msg.GetControlChange(&channel, &key, &value):
		s.Controller(channel, key, value)
	case msg.GetPitchBend(&channel, &rel, &abs):
		s.PitchBend(int(channel), float32(rel)/8192)
	case msg.GetAfterTouch(&channel, &value):
		s.ChannelPressure(int(channel), float32(value)/127)
	case msg.GetPolyAfterTouch(&channel, &key, &value):
		s.PolyPressure(int(channel), key, float32(value)/127)
	}
}

func (c *Context) Close() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.in != nil && c.in.IsOpen() {
		c.in.Close()
		c.in = nil
	}
	if c.driver != nil {
		c.driver.Close()
	}
}
