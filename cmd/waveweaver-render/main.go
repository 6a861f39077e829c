package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tmaarne/waveweaver"
	"github.com/tmaarne/waveweaver/engine"
	"github.com/tmaarne/waveweaver/version"
)

func main() {
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the same directory where the patch file is.")
	rawOut := flag.Bool("r", false, "Output the rendered audio as .raw file instead of .wav.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	sampleRate := flag.Int("rate", 48000, "Sample rate in Hz.")
	notesFlag := flag.String("notes", "60", "Comma-separated MIDI notes to trigger.")
	hold := flag.Float64("hold", 2, "Seconds to hold the notes.")
	tail := flag.Float64("tail", 2, "Seconds to render after release.")
	tempo := flag.Float64("bpm", 120, "Tempo in BPM, used by tempo-synced LFOs, delays and the arpeggiator.")
	tables := flag.String("tables", "", "Wavetable imports as slot=path pairs separated by commas, e.g. 4=growl.wav,5=choir.mp3.")
	versionFlag := flag.Bool("v", false, "Print version.")
	help := flag.Bool("h", false, "Show help.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	notes, err := parseNotes(*notesFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -notes: %v\n", err)
		os.Exit(1)
	}
	retval := 0
	for _, filename := range flag.Args() {
		if err := process(filename, *directory, notes, *rawOut, *pcm, *sampleRate, *hold, *tail, *tempo, *tables); err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", filename, err)
			retval = 1
		}
	}
	os.Exit(retval)
}

func process(filename, directory string, notes []byte, rawOut, pcm bool, sampleRate int, hold, tail, tempo float64, tables string) error {
	patch, err := waveweaver.LoadPatch(filename)
	if err != nil {
		return err
	}
	e := engine.NewEngine()
	if err := e.Prepare(sampleRate, 512); err != nil {
		return err
	}
	if tables != "" {
		if err := importTables(e.Store(), tables); err != nil {
			return err
		}
	}
	if err := e.Update(patch); err != nil {
		return err
	}
	e.SetTempo(float32(tempo))
	for _, n := range notes {
		e.NoteOn(0, n, 127)
	}
	holdBuf := make(waveweaver.AudioBuffer, int(hold*float64(sampleRate)))
	if err := e.Render(holdBuf); err != nil {
		return err
	}
	for _, n := range notes {
		e.NoteOff(0, n, 64)
	}
	tailBuf := make(waveweaver.AudioBuffer, int(tail*float64(sampleRate)))
	if err := e.Render(tailBuf); err != nil {
		return err
	}
	buffer := append(holdBuf, tailBuf...)
	var contents []byte
	extension := ".wav"
	if rawOut {
		extension = ".raw"
		contents, err = buffer.Raw(pcm)
	} else {
		contents, err = buffer.Wav(sampleRate, pcm)
	}
	if err != nil {
		return fmt.Errorf("could not generate %v file: %v", extension, err)
	}
	return output(filename, directory, extension, contents)
}

func output(filename, directory, extension string, contents []byte) error {
	dir, name := filepath.Split(filename)
	if directory != "" {
		dir = directory
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("could not create output directory %v: %v", dir, err)
		}
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
	f := filepath.Join(dir, name)
	if err := os.WriteFile(f, contents, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %v", f, err)
	}
	return nil
}

func parseNotes(s string) ([]byte, error) {
	var notes []byte
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if n < 0 || n > 127 {
			return nil, fmt.Errorf("note %d out of MIDI range", n)
		}
		notes = append(notes, byte(n))
	}
	return notes, nil
}

func importTables(store *engine.WavetableStore, tables string) error {
	for _, pair := range strings.Split(tables, ",") {
		slotStr, path, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid -tables entry %q, expected slot=path", pair)
		}
		slot, err := strconv.Atoi(strings.TrimSpace(slotStr))
		if err != nil {
			return fmt.Errorf("invalid -tables slot in %q: %v", pair, err)
		}
		if err := store.Load(strings.TrimSpace(path), slot); err != nil {
			return err
		}
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Waveweaver command line utility for rendering patch files to audio.\nUsage: %s [flags] [patch.yml ...]\n", os.Args[0])
	flag.PrintDefaults()
}
