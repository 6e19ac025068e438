package models

// TrackOutput represents the structured output from the MusicFlow LLM
type TrackOutput struct {
	TrackType     string  `json:"trackType"`
	BPM           float64 `json:"bpm"`
	TimeSignature string  `json:"timeSignature"`
	Notes         []Note  `json:"notes"`
	Description   string  `json:"description"`
}
