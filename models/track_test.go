package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrackContent_NormalizesNotes(t *testing.T) {
	notes := []Note{
		{MidiNoteNumber: 38, Velocity: 90, StartBeats: 1.0, DurationBeats: 0.5},
		{MidiNoteNumber: 36, Velocity: 100, StartBeats: 0.0, DurationBeats: 0.25},
		// Same pitch and start as the first note: replaces, never duplicates
		{MidiNoteNumber: 38, Velocity: 127, StartBeats: 1.0, DurationBeats: 0.25},
	}

	content := NewTrackContent("drums", 120, 4, 4, notes, "test")

	require.Len(t, content.Notes, 2)
	assert.Equal(t, 36, content.Notes[0].MidiNoteNumber)
	assert.Equal(t, 38, content.Notes[1].MidiNoteNumber)
	// The later duplicate won
	assert.Equal(t, 127, content.Notes[1].Velocity)
	assert.Equal(t, 0.25, content.Notes[1].DurationBeats)
	assert.Equal(t, 1, content.Revision)
}

func TestNewTrackContent_Defaults(t *testing.T) {
	content := NewTrackContent("bass", 0, 0, 0, nil, "test")

	assert.Equal(t, DefaultBPM, content.BPM)
	assert.Equal(t, "4/4", content.TimeSignature())
}

func TestNextRevision_IncrementsByOne(t *testing.T) {
	first := NewTrackContent("bass", 100, 4, 4, []Note{
		{MidiNoteNumber: 40, Velocity: 100, StartBeats: 0, DurationBeats: 1},
	}, "first")

	second := first.NextRevision(100, 4, 4, []Note{
		{MidiNoteNumber: 43, Velocity: 100, StartBeats: 0, DurationBeats: 1},
	}, "second")

	assert.Equal(t, 1, first.Revision)
	assert.Equal(t, 2, second.Revision)
	assert.Equal(t, "bass", second.TrackName)
	// The original value is untouched
	assert.Equal(t, 40, first.Notes[0].MidiNoteNumber)
}

func TestClone_DoesNotAliasNotes(t *testing.T) {
	content := NewTrackContent("lead", 120, 4, 4, []Note{
		{MidiNoteNumber: 60, Velocity: 100, StartBeats: 0, DurationBeats: 1},
	}, "test")

	dup := content.Clone()
	dup.Notes[0].MidiNoteNumber = 72

	assert.Equal(t, 60, content.Notes[0].MidiNoteNumber)
}

func TestLengthBeats_RoundsUpToWholeBars(t *testing.T) {
	tests := []struct {
		name     string
		sigNum   int
		sigDen   int
		notes    []Note
		expected float64
	}{
		{
			name:     "empty track is one bar",
			sigNum:   4,
			sigDen:   4,
			notes:    nil,
			expected: 4,
		},
		{
			name:   "exactly one bar",
			sigNum: 4,
			sigDen: 4,
			notes: []Note{
				{MidiNoteNumber: 36, Velocity: 100, StartBeats: 3, DurationBeats: 1},
			},
			expected: 4,
		},
		{
			name:   "spills into second bar",
			sigNum: 4,
			sigDen: 4,
			notes: []Note{
				{MidiNoteNumber: 36, Velocity: 100, StartBeats: 3.5, DurationBeats: 1},
			},
			expected: 8,
		},
		{
			name:   "three four bar length",
			sigNum: 3,
			sigDen: 4,
			notes: []Note{
				{MidiNoteNumber: 36, Velocity: 100, StartBeats: 0, DurationBeats: 3},
			},
			expected: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := NewTrackContent("drums", 120, tt.sigNum, tt.sigDen, tt.notes, "test")
			assert.Equal(t, tt.expected, content.LengthBeats())
		})
	}
}

func TestParseTimeSignature(t *testing.T) {
	tests := []struct {
		input string
		num   int
		den   int
	}{
		{"4/4", 4, 4},
		{"3/4", 3, 4},
		{"7/8", 7, 8},
		{" 6 / 8 ", 6, 8},
		{"12/8", 12, 8},
		{"common time", 4, 4},
		{"", 4, 4},
		{"0/4", 4, 4},
		// Out of meter bounds: a single-byte numerator and a power-of-two
		// denominator are required for the exported meter meta event
		{"999/4", 4, 4},
		{"4/5", 4, 4},
		{"4/64", 4, 4},
	}

	for _, tt := range tests {
		num, den := ParseTimeSignature(tt.input)
		assert.Equal(t, tt.num, num, "numerator for %q", tt.input)
		assert.Equal(t, tt.den, den, "denominator for %q", tt.input)
	}
}

func TestNoteValidate(t *testing.T) {
	valid := Note{MidiNoteNumber: 60, Velocity: 100, StartBeats: 0, DurationBeats: 0.5}
	require.NoError(t, valid.Validate())

	assert.Error(t, Note{MidiNoteNumber: 128, Velocity: 100, StartBeats: 0, DurationBeats: 1}.Validate())
	assert.Error(t, Note{MidiNoteNumber: 60, Velocity: -1, StartBeats: 0, DurationBeats: 1}.Validate())
	assert.Error(t, Note{MidiNoteNumber: 60, Velocity: 100, StartBeats: -0.5, DurationBeats: 1}.Validate())
	assert.Error(t, Note{MidiNoteNumber: 60, Velocity: 100, StartBeats: 0, DurationBeats: 0}.Validate())
}
