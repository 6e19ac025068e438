package llm

const (
	// MIDI note number constraints
	midiNoteNumberMin = 0
	midiNoteNumberMax = 127

	// Velocity constraints
	velocityMin     = 1
	velocityMax     = 127
	velocityDefault = 100

	// Duration constraints
	durationBeatsMin = 0.01

	// Tempo constraints
	bpmMin = 20
	bpmMax = 300
)

// GetTrackOutputSchema returns the JSON schema for generated track content.
// This schema defines the structure of the AI's MIDI generation output.
// Note: OpenAI requires additionalProperties: false, which means all
// properties must be listed in 'required'.
func GetTrackOutputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"trackType": map[string]any{
				"type":        "string",
				"description": "Kind of track: drums, bass, lead, pad, keys, perc, etc.",
			},
			"bpm": map[string]any{
				"type":    "number",
				"minimum": bpmMin,
				"maximum": bpmMax,
			},
			"timeSignature": map[string]any{
				"type":        "string",
				"description": "Time signature such as 4/4 or 3/4.",
			},
			"notes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"midiNoteNumber": map[string]any{"type": "integer", "minimum": midiNoteNumberMin, "maximum": midiNoteNumberMax},
						"velocity":       map[string]any{"type": "integer", "minimum": velocityMin, "maximum": velocityMax, "default": velocityDefault},
						"startBeats":     map[string]any{"type": "number", "minimum": 0},
						"durationBeats":  map[string]any{"type": "number", "minimum": durationBeatsMin},
					},
					"required":             []string{"midiNoteNumber", "velocity", "startBeats", "durationBeats"},
					"additionalProperties": false,
				},
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Brief description of what was generated.",
			},
		},
		"required":             []string{"trackType", "bpm", "timeSignature", "notes", "description"},
		"additionalProperties": false,
	}
}
