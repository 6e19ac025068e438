package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Conceptual-Machines/musicflow/models"
)

// MusicFlowPromptBuilder builds prompts for the MusicFlow generation engine
type MusicFlowPromptBuilder struct{}

// NewMusicFlowPromptBuilder creates a new MusicFlow prompt builder
func NewMusicFlowPromptBuilder() *MusicFlowPromptBuilder {
	return &MusicFlowPromptBuilder{}
}

// BuildSystemPrompt builds the complete system prompt for MIDI generation
func (b *MusicFlowPromptBuilder) BuildSystemPrompt() string {
	sections := []string{
		b.getSystemInstructions(),
		b.getDrumMappingReference(),
		b.getOutputFormatInstructions(),
	}

	return strings.Join(sections, "\n\n")
}

// getSystemInstructions returns the main system instructions
func (b *MusicFlowPromptBuilder) getSystemInstructions() string {
	return `You are MusicFlow, an expert in MIDI composition for electronic music. You generate MIDI note data for different tracks in a song (drums, bass, lead, pad, keys, perc) based on natural language prompts.

For each track you provide:
1. Notes as MIDI note numbers (0-127, where 60 is middle C)
2. Velocities (1-127, how hard each note is played)
3. Start times in beats (beat 0 is the start of the clip)
4. Durations in beats
5. BPM (beats per minute)
6. Time signature (e.g., "4/4", "3/4")

Timing rules:
- Beats are quarter notes. In 4/4, one bar is 4 beats; beat positions 0, 1, 2, 3 are the four beats of bar one.
- Keep patterns loopable: fill whole bars, do not leave trailing silence past the last bar.
- Be creative and musical, following the user's style preferences.`
}

// getDrumMappingReference returns the General MIDI drum note reference
func (b *MusicFlowPromptBuilder) getDrumMappingReference() string {
	return `For drum tracks, use General MIDI drum note mappings:
- 35/36: kick
- 38: snare, 37: side stick
- 42: closed hi-hat, 46: open hi-hat, 44: pedal hi-hat
- 41/43/45/47/48/50: toms (low to high)
- 49: crash, 51: ride, 53: ride bell
- 39: clap, 54: tambourine, 56: cowbell`
}

// getOutputFormatInstructions returns the JSON output contract
func (b *MusicFlowPromptBuilder) getOutputFormatInstructions() string {
	return `Always respond with a single JSON object with this structure:
{
  "trackType": "drums",
  "bpm": 120,
  "timeSignature": "4/4",
  "notes": [
    {"midiNoteNumber": 36, "velocity": 100, "startBeats": 0.0, "durationBeats": 0.25}
  ],
  "description": "Brief description of what you generated"
}`
}

// BuildGeneratePrompt builds the user prompt for a brand new track
func (b *MusicFlowPromptBuilder) BuildGeneratePrompt(trackName, userPrompt string) string {
	return fmt.Sprintf("Generate MIDI data for a track named %q: %s", trackName, userPrompt)
}

// BuildUpdatePrompt builds the user prompt for an incremental edit. The
// prior content is embedded as JSON so the model revises the existing
// material instead of replacing the track wholesale.
func (b *MusicFlowPromptBuilder) BuildUpdatePrompt(prior *models.TrackContent, userPrompt string) string {
	priorJSON, err := json.Marshal(struct {
		BPM           float64       `json:"bpm"`
		TimeSignature string        `json:"timeSignature"`
		Notes         []models.Note `json:"notes"`
	}{prior.BPM, prior.TimeSignature(), prior.Notes})
	if err != nil {
		// Marshalling plain note data cannot realistically fail; fall back
		// to an update without context rather than aborting.
		priorJSON = []byte("{}")
	}

	return fmt.Sprintf(`Update the %q track with the following: %s

Current track content (revise this, keep everything not mentioned in the request unchanged):
%s

Keep the same BPM and time signature as before unless the request explicitly changes them. Return the complete updated track, including all unchanged notes.`,
		prior.TrackName, userPrompt, string(priorJSON))
}
