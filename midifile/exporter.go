// Package midifile serializes track content to Standard MIDI Files using
// gomidi. Export is a pure translation: the same content always produces
// byte-identical output, and any valid content is exportable.
package midifile

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/Conceptual-Machines/musicflow/models"
)

const (
	// Resolution of exported files in ticks per quarter note.
	ticksPerQuarter = 960

	// General MIDI percussion channel (0-based).
	drumChannel = 9
)

// gmProgramMap maps track types to General MIDI program numbers, as the
// generation prompt describes them. Unknown types fall back to piano.
var gmProgramMap = map[string]uint8{
	"bass": 33, // Electric Bass (finger)
	"lead": 80, // Lead 1 (square)
	"pad":  88, // Pad 1 (new age)
	"keys": 0,  // Acoustic Grand Piano
	"perc": 112, // Tinkle Bell block
}

// ExportError reports a filesystem failure while writing a MIDI file.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("midi export to %s failed: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Exporter writes track content into <OutputDir>/<track>.mid, overwriting
// any prior file for the same track.
type Exporter struct {
	outputDir string
}

// NewExporter creates an exporter rooted at outputDir, creating the
// directory if needed.
func NewExporter(outputDir string) (*Exporter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, &ExportError{Path: outputDir, Err: err}
	}
	return &Exporter{outputDir: outputDir}, nil
}

// PathFor returns the destination path for a track without writing it.
// The live-sync layer surfaces this path when falling back to manual import.
func (e *Exporter) PathFor(trackName string) string {
	return filepath.Join(e.outputDir, trackName+".mid")
}

// Export writes the content as a single-track SMF and returns the file path.
func (e *Exporter) Export(content *models.TrackContent) (string, error) {
	path := e.PathFor(content.TrackName)

	data := Encode(content)
	if err := data.WriteFile(path); err != nil {
		return "", &ExportError{Path: path, Err: err}
	}

	log.Printf("💾 Exported %q (rev %d, %d notes) -> %s",
		content.TrackName, content.Revision, len(content.Notes), path)
	return path, nil
}

// Encode translates content into an in-memory SMF. Exposed separately so
// tests can assert on deterministic output without touching the filesystem.
func Encode(content *models.TrackContent) *smf.SMF {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	channel := channelFor(content)

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(content.TrackName))
	tr.Add(0, smf.MetaTempo(content.BPM))
	tr.Add(0, smf.MetaMeter(uint8(content.TimeSigNumerator), uint8(content.TimeSigDenominator)))
	if channel != drumChannel {
		tr.Add(0, midi.ProgramChange(channel, programFor(content)))
	}

	var lastTick uint32
	for _, ev := range noteEvents(content.Notes) {
		delta := ev.tick - lastTick
		lastTick = ev.tick
		if ev.on {
			tr.Add(delta, midi.NoteOn(channel, ev.key, ev.velocity))
		} else {
			tr.Add(delta, midi.NoteOff(channel, ev.key))
		}
	}
	tr.Close(0)

	s.Add(tr)
	return s
}

type event struct {
	tick     uint32
	on       bool
	key      uint8
	velocity uint8
	seq      int // insertion order, keeps the sort deterministic
}

// noteEvents flattens notes into a tick-ordered on/off event stream.
// At equal ticks, note-offs sort before note-ons so back-to-back repeats
// of the same pitch do not cancel each other.
func noteEvents(notes []models.Note) []event {
	events := make([]event, 0, len(notes)*2)
	for i, n := range notes {
		onTick := beatsToTicks(n.StartBeats)
		offTick := beatsToTicks(n.StartBeats + n.DurationBeats)
		if offTick <= onTick {
			offTick = onTick + 1
		}
		events = append(events,
			event{tick: onTick, on: true, key: uint8(n.MidiNoteNumber), velocity: uint8(n.Velocity), seq: i},
			event{tick: offTick, on: false, key: uint8(n.MidiNoteNumber), seq: i},
		)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		if events[i].on != events[j].on {
			return !events[i].on // offs first
		}
		if events[i].key != events[j].key {
			return events[i].key < events[j].key
		}
		return events[i].seq < events[j].seq
	})
	return events
}

func beatsToTicks(beats float64) uint32 {
	return uint32(math.Round(beats * ticksPerQuarter))
}

func channelFor(content *models.TrackContent) uint8 {
	if content.IsDrums() {
		return drumChannel
	}
	return 0
}

func programFor(content *models.TrackContent) uint8 {
	if prog, ok := gmProgramMap[strings.ToLower(content.TrackName)]; ok {
		return prog
	}
	return 0
}
