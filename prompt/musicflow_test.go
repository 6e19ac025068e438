package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/musicflow/models"
)

func TestBuildSystemPrompt(t *testing.T) {
	builder := NewMusicFlowPromptBuilder()
	system := builder.BuildSystemPrompt()

	assert.Contains(t, system, "MusicFlow")
	assert.Contains(t, system, "MIDI note numbers")
	// The drum reference and the JSON contract are always included
	assert.Contains(t, system, "General MIDI drum note mappings")
	assert.Contains(t, system, `"midiNoteNumber"`)
}

func TestBuildGeneratePrompt(t *testing.T) {
	builder := NewMusicFlowPromptBuilder()
	prompt := builder.BuildGeneratePrompt("bass", "funky bassline in G minor")

	assert.Contains(t, prompt, `"bass"`)
	assert.Contains(t, prompt, "funky bassline in G minor")
}

func TestBuildUpdatePrompt_EmbedsPriorContent(t *testing.T) {
	builder := NewMusicFlowPromptBuilder()
	prior := models.NewTrackContent("drums", 128, 4, 4, []models.Note{
		{MidiNoteNumber: 36, Velocity: 110, StartBeats: 0, DurationBeats: 0.25},
		{MidiNoteNumber: 36, Velocity: 110, StartBeats: 1, DurationBeats: 0.25},
	}, "kick pattern")

	prompt := builder.BuildUpdatePrompt(prior, "add snare on beats 2 and 4")

	require.Contains(t, prompt, "add snare on beats 2 and 4")
	assert.Contains(t, prompt, `"drums"`)
	assert.Contains(t, prompt, `"bpm":128`)
	assert.Contains(t, prompt, `"timeSignature":"4/4"`)
	assert.Contains(t, prompt, `"midiNoteNumber":36`)
	// The contract line that keeps updates incremental
	assert.Contains(t, prompt, "Keep the same BPM and time signature")
	assert.Contains(t, prompt, "Return the complete updated track")
}
