package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tmaarne/waveweaver"
	"github.com/tmaarne/waveweaver/engine"
	"github.com/tmaarne/waveweaver/gomidi"
	"github.com/tmaarne/waveweaver/oto"
	"github.com/tmaarne/waveweaver/version"
)

func main() {
	patchFile := flag.String("patch", "", "Patch file to load; the init patch is used when omitted.")
	sampleRate := flag.Int("rate", 48000, "Sample rate in Hz.")
	midiInput := flag.String("midi", "", "Name prefix of the MIDI input to open; the first input is used when empty.")
	listInputs := flag.Bool("l", false, "List MIDI inputs and exit.")
	tempo := flag.Float64("bpm", 120, "Tempo in BPM, used by tempo-synced LFOs, delays and the arpeggiator.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	midiContext := gomidi.NewContext()
	defer midiContext.Close()
	if *listInputs {
		for _, name := range midiContext.InputNames() {
			fmt.Println(name)
		}
		os.Exit(0)
	}
	synth := engine.NewEngine()
	if err := synth.Prepare(*sampleRate, 512); err != nil {
		fmt.Fprintf(os.Stderr, "could not prepare synth: %v\n", err)
		os.Exit(1)
	}
	synth.SetTempo(float32(*tempo))
	if *patchFile != "" {
		patch, err := waveweaver.LoadPatch(*patchFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not load patch: %v\n", err)
			os.Exit(1)
		}
		synth.Update(patch)
	}
	if err := midiContext.Open(*midiInput, synth); err != nil {
		fmt.Fprintf(os.Stderr, "could not open MIDI input: %v\n", err)
		os.Exit(1)
	}
	audioContext, err := oto.NewContext(*sampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
		os.Exit(1)
	}
	defer audioContext.Close()
	player := audioContext.Play(&waveweaver.SynthReader{Synth: synth})
	defer player.Close()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	fmt.Println("playing, ctrl-c to quit")
	<-sig
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Waveweaver live synth: plays MIDI input through a patch.\nUsage: %s [flags]\n", os.Args[0])
	flag.PrintDefaults()
}
