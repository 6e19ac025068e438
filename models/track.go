package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// MIDI value range
	MidiValueMin = 0
	MidiValueMax = 127

	// Defaults applied when the LLM omits a field
	DefaultBPM      = 120.0
	DefaultVelocity = 100

	defaultTimeSigNumerator   = 4
	defaultTimeSigDenominator = 4

	// Meter bounds for the MIDI meter meta event (single byte numerator,
	// power-of-two denominator).
	maxTimeSigNumerator = 32
)

// Note is a single MIDI note event, timed in beats.
type Note struct {
	MidiNoteNumber int     `json:"midiNoteNumber"`
	Velocity       int     `json:"velocity"`
	StartBeats     float64 `json:"startBeats"`
	DurationBeats  float64 `json:"durationBeats"`
	Slide          bool    `json:"slide,omitempty"` // pitch-bend/slide marker (303-style lines)
}

// Validate checks that the note is inside MIDI ranges and has positive length.
func (n Note) Validate() error {
	if n.MidiNoteNumber < MidiValueMin || n.MidiNoteNumber > MidiValueMax {
		return fmt.Errorf("midi note number %d out of range", n.MidiNoteNumber)
	}
	if n.Velocity < MidiValueMin || n.Velocity > MidiValueMax {
		return fmt.Errorf("velocity %d out of range", n.Velocity)
	}
	if n.StartBeats < 0 {
		return fmt.Errorf("start %.3f before beat zero", n.StartBeats)
	}
	if n.DurationBeats <= 0 {
		return fmt.Errorf("duration %.3f must be positive", n.DurationBeats)
	}
	return nil
}

// TrackContent is the immutable musical content of one track at one revision.
// Updates never mutate a TrackContent in place - they build a new value with
// Revision+1 so old and new content can be diffed during live reconciliation.
type TrackContent struct {
	TrackName          string  `json:"trackName"`
	BPM                float64 `json:"bpm"`
	TimeSigNumerator   int     `json:"timeSigNumerator"`
	TimeSigDenominator int     `json:"timeSigDenominator"`
	Notes              []Note  `json:"notes"`
	LastPrompt         string  `json:"lastPrompt"`
	Revision           int     `json:"revision"`
}

// NewTrackContent builds a revision-1 TrackContent from raw note data.
// Notes are sorted by start beat (then pitch), and a later note with the
// same pitch and start replaces the earlier one instead of duplicating it.
func NewTrackContent(name string, bpm float64, sigNum, sigDen int, notes []Note, prompt string) *TrackContent {
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	if sigNum <= 0 {
		sigNum = defaultTimeSigNumerator
	}
	if sigDen <= 0 {
		sigDen = defaultTimeSigDenominator
	}
	return &TrackContent{
		TrackName:          name,
		BPM:                bpm,
		TimeSigNumerator:   sigNum,
		TimeSigDenominator: sigDen,
		Notes:              normalizeNotes(notes),
		LastPrompt:         prompt,
		Revision:           1,
	}
}

// NextRevision builds the successor content value for an update: same track
// name, new notes/prompt, revision incremented by exactly one.
func (c *TrackContent) NextRevision(bpm float64, sigNum, sigDen int, notes []Note, prompt string) *TrackContent {
	next := NewTrackContent(c.TrackName, bpm, sigNum, sigDen, notes, prompt)
	next.Revision = c.Revision + 1
	return next
}

// Clone returns a deep copy, so callers can hold content across registry
// replacements without aliasing the note slice.
func (c *TrackContent) Clone() *TrackContent {
	dup := *c
	dup.Notes = make([]Note, len(c.Notes))
	copy(dup.Notes, c.Notes)
	return &dup
}

// BeatsPerBar returns the bar length in quarter-note beats.
func (c *TrackContent) BeatsPerBar() float64 {
	return float64(c.TimeSigNumerator) * 4.0 / float64(c.TimeSigDenominator)
}

// LengthBeats returns the content length rounded up to a whole bar
// (minimum one bar), used for clip and loop sizing.
func (c *TrackContent) LengthBeats() float64 {
	var end float64
	for _, n := range c.Notes {
		if e := n.StartBeats + n.DurationBeats; e > end {
			end = e
		}
	}
	bar := c.BeatsPerBar()
	bars := 1.0
	for bars*bar < end {
		bars++
	}
	return bars * bar
}

// TimeSignature formats the signature as "4/4".
func (c *TrackContent) TimeSignature() string {
	return fmt.Sprintf("%d/%d", c.TimeSigNumerator, c.TimeSigDenominator)
}

// IsDrums reports whether the track should live on the GM drum channel.
func (c *TrackContent) IsDrums() bool {
	name := strings.ToLower(c.TrackName)
	return name == "drums" || name == "drum"
}

// normalizeNotes sorts by (start, pitch) and collapses exact (pitch, start)
// duplicates, keeping the last occurrence - replace, not duplicate.
func normalizeNotes(notes []Note) []Note {
	type key struct {
		pitch int
		start float64
	}
	seen := make(map[key]int, len(notes))
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		k := key{n.MidiNoteNumber, n.StartBeats}
		if idx, ok := seen[k]; ok {
			out[idx] = n
			continue
		}
		seen[k] = len(out)
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartBeats != out[j].StartBeats {
			return out[i].StartBeats < out[j].StartBeats
		}
		return out[i].MidiNoteNumber < out[j].MidiNoteNumber
	})
	return out
}

// ParseTimeSignature parses "4/4"-style signatures, falling back to 4/4 on
// anything malformed or outside meter bounds (the LLM occasionally returns
// "common time", huge numerators or non-power-of-two denominators, none of
// which fit the MIDI meter meta event).
func ParseTimeSignature(sig string) (num, den int) {
	parts := strings.SplitN(strings.TrimSpace(sig), "/", 2)
	if len(parts) == 2 {
		n, errN := strconv.Atoi(strings.TrimSpace(parts[0]))
		d, errD := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errN == nil && errD == nil && validMeter(n, d) {
			return n, d
		}
	}
	return defaultTimeSigNumerator, defaultTimeSigDenominator
}

func validMeter(num, den int) bool {
	if num < 1 || num > maxTimeSigNumerator {
		return false
	}
	switch den {
	case 1, 2, 4, 8, 16, 32:
		return true
	}
	return false
}
