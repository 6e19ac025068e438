package midifile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/Conceptual-Machines/musicflow/models"
)

func testContent(name string) *models.TrackContent {
	return models.NewTrackContent(name, 128, 4, 4, []models.Note{
		{MidiNoteNumber: 36, Velocity: 110, StartBeats: 0, DurationBeats: 0.5},
		{MidiNoteNumber: 38, Velocity: 100, StartBeats: 1, DurationBeats: 0.5},
		{MidiNoteNumber: 42, Velocity: 80, StartBeats: 0.5, DurationBeats: 0.25},
	}, "test")
}

func encodeBytes(t *testing.T, content *models.TrackContent) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := Encode(content).WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestEncode_Deterministic(t *testing.T) {
	content := testContent("drums")

	first := encodeBytes(t, content)
	second := encodeBytes(t, content)

	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestExport_SameContentSameFile(t *testing.T) {
	exporter, err := NewExporter(t.TempDir())
	require.NoError(t, err)
	content := testContent("drums")

	path, err := exporter.Export(content)
	require.NoError(t, err)
	assert.Equal(t, exporter.PathFor("drums"), path)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// Re-export overwrites with byte-identical output
	_, err = exporter.Export(content)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExport_OverwritesPriorRevision(t *testing.T) {
	exporter, err := NewExporter(t.TempDir())
	require.NoError(t, err)

	content := testContent("bass")
	_, err = exporter.Export(content)
	require.NoError(t, err)

	updated := content.NextRevision(128, 4, 4, []models.Note{
		{MidiNoteNumber: 40, Velocity: 100, StartBeats: 0, DurationBeats: 4},
	}, "updated")
	path, err := exporter.Export(updated)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, encodeBytes(t, updated), data)
}

func TestExport_UnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewExporter(dir)
	require.NoError(t, err)

	// A directory squatting on the destination path makes the write fail
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bass.mid"), 0o755))

	_, err = exporter.Export(testContent("bass"))
	require.Error(t, err)

	var exportErr *ExportError
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, filepath.Join(dir, "bass.mid"), exportErr.Path)
}

func TestEncode_DrumsUsePercussionChannel(t *testing.T) {
	data := encodeBytes(t, testContent("drums"))
	decoded, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, decoded.Tracks, 1)

	sawNoteOn := false
	for _, ev := range decoded.Tracks[0] {
		var ch, key, vel uint8
		if ev.Message.GetNoteOn(&ch, &key, &vel) {
			sawNoteOn = true
			assert.Equal(t, uint8(9), ch)
		}
		var prog uint8
		assert.False(t, ev.Message.GetProgramChange(&ch, &prog),
			"drum tracks carry no program change")
	}
	assert.True(t, sawNoteOn)
}

func TestEncode_MelodicTrackGetsProgram(t *testing.T) {
	data := encodeBytes(t, testContent("bass"))
	decoded, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, decoded.Tracks, 1)

	sawProgram := false
	for _, ev := range decoded.Tracks[0] {
		var ch, prog uint8
		if ev.Message.GetProgramChange(&ch, &prog) {
			sawProgram = true
			assert.Equal(t, uint8(0), ch)
			assert.Equal(t, uint8(33), prog)
		}
	}
	assert.True(t, sawProgram)
}

func TestNoteEvents_OffsBeforeOnsAtSameTick(t *testing.T) {
	// Back-to-back repeats of the same pitch: the off of the first note
	// lands on the same tick as the on of the second.
	events := noteEvents([]models.Note{
		{MidiNoteNumber: 36, Velocity: 100, StartBeats: 0, DurationBeats: 1},
		{MidiNoteNumber: 36, Velocity: 100, StartBeats: 1, DurationBeats: 1},
	})

	require.Len(t, events, 4)
	boundary := beatsToTicks(1)
	assert.Equal(t, boundary, events[1].tick)
	assert.False(t, events[1].on, "off sorts first at the shared tick")
	assert.Equal(t, boundary, events[2].tick)
	assert.True(t, events[2].on)
}

func TestNoteEvents_ZeroLengthGetsMinimumDuration(t *testing.T) {
	events := noteEvents([]models.Note{
		{MidiNoteNumber: 60, Velocity: 100, StartBeats: 0, DurationBeats: 0.0001},
	})

	require.Len(t, events, 2)
	assert.Greater(t, events[1].tick, events[0].tick)
}
